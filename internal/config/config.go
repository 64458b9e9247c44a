package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"
)

// Config holds all configuration for our application
type Config struct {
	Port                      string
	Origin                    string
	Environment               string
	LogLevel                  string
	JWTSecret                 string
	JWTRefreshSecret          string
	JWTExpirationMinutes      int
	JWTRefreshExpirationHours int
	Mailer                    MailerConfig
	PasswordResetTokenExpiry  int // minutes
	VerificationTokenExpiry   int // hours
	AppURL                    string
	Database                  DatabaseConfig
	Timeline                  TimelineConfig
	Assistant                 AssistantConfig
}

// MailerConfig holds email service configuration
type MailerConfig struct {
	Transport   string
	DefaultFrom string
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// TimelineConfig controls how pregnancy and appointment dates are derived.
type TimelineConfig struct {
	// ClampOverdue caps the reported week at 40 and progress at 100%.
	ClampOverdue bool
	Timezone     string
	Location     *time.Location
}

// AssistantConfig holds the chat-completions provider used for tips and the chatbot.
type AssistantConfig struct {
	BaseURL           string
	APIKey            string
	Model             string
	TimeoutSeconds    int
	RequestsPerMinute int
	Burst             int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	dbConfig := DatabaseConfig{
		Driver:   getEnv("DB_DRIVER", "mysql"),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "3306"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "maternity"),
	}

	switch dbConfig.Driver {
	case "mysql":
		dbConfig.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name)
	case "sqlite":
		// For sqlite DB_NAME is the file path.
		dbConfig.DSN = getEnv("DB_NAME", "maternity.db")
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", dbConfig.Driver)
	}

	jwtExpMinutes, err := strconv.Atoi(getEnv("JWT_EXPIRATION_MINUTES", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_MINUTES: %w", err)
	}

	jwtRefreshExpHours, err := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRATION_HOURS", "168")) // 7 days
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_REFRESH_EXPIRATION_HOURS: %w", err)
	}

	passwordResetTokenExpiry, err := strconv.Atoi(getEnv("PASSWORD_RESET_TOKEN_EXPIRY_MINUTES", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid PASSWORD_RESET_TOKEN_EXPIRY_MINUTES: %w", err)
	}

	verificationTokenExpiry, err := strconv.Atoi(getEnv("VERIFICATION_TOKEN_EXPIRY_HOURS", "24"))
	if err != nil {
		return nil, fmt.Errorf("invalid VERIFICATION_TOKEN_EXPIRY_HOURS: %w", err)
	}

	timelineConfig, err := loadTimelineConfig()
	if err != nil {
		return nil, err
	}

	assistantConfig, err := loadAssistantConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:                      getEnv("PORT", "3001"),
		Origin:                    getEnv("ORIGIN", "http://localhost:3000"),
		Environment:               getEnv("APP_ENV", "development"),
		LogLevel:                  getEnv("LOG_LEVEL", "info"),
		JWTSecret:                 getEnv("JWT_SECRET", "default_jwt_secret"),
		JWTRefreshSecret:          getEnv("JWT_REFRESH_SECRET", "default_refresh_secret"),
		JWTExpirationMinutes:      jwtExpMinutes,
		JWTRefreshExpirationHours: jwtRefreshExpHours,
		Mailer: MailerConfig{
			Transport:   getEnv("MAILER_TRANSPORT", "log"),
			DefaultFrom: getEnv("MAILER_DEFAULT_FROM", "no-reply@maternity.local"),
		},
		PasswordResetTokenExpiry: passwordResetTokenExpiry,
		VerificationTokenExpiry:  verificationTokenExpiry,
		AppURL:                   getEnv("APP_URL", "http://localhost:3000"),
		Database:                 dbConfig,
		Timeline:                 timelineConfig,
		Assistant:                assistantConfig,
	}, nil
}

func loadTimelineConfig() (TimelineConfig, error) {
	clamp, err := strconv.ParseBool(getEnv("TIMELINE_CLAMP_OVERDUE", "false"))
	if err != nil {
		return TimelineConfig{}, fmt.Errorf("invalid TIMELINE_CLAMP_OVERDUE: %w", err)
	}

	tz := getEnv("TIMELINE_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return TimelineConfig{}, fmt.Errorf("invalid TIMELINE_TIMEZONE: %w", err)
	}

	return TimelineConfig{ClampOverdue: clamp, Timezone: tz, Location: loc}, nil
}

func loadAssistantConfig() (AssistantConfig, error) {
	timeout, err := strconv.Atoi(getEnv("ASSISTANT_TIMEOUT_SECONDS", "60"))
	if err != nil {
		return AssistantConfig{}, fmt.Errorf("invalid ASSISTANT_TIMEOUT_SECONDS: %w", err)
	}

	rpm, err := strconv.Atoi(getEnv("ASSISTANT_REQUESTS_PER_MINUTE", "20"))
	if err != nil {
		return AssistantConfig{}, fmt.Errorf("invalid ASSISTANT_REQUESTS_PER_MINUTE: %w", err)
	}

	burst, err := strconv.Atoi(getEnv("ASSISTANT_BURST", "5"))
	if err != nil {
		return AssistantConfig{}, fmt.Errorf("invalid ASSISTANT_BURST: %w", err)
	}

	return AssistantConfig{
		BaseURL:           getEnv("ASSISTANT_BASE_URL", "https://api.openai.com/v1"),
		APIKey:            getEnv("ASSISTANT_API_KEY", ""),
		Model:             getEnv("ASSISTANT_MODEL", "gpt-4o-mini"),
		TimeoutSeconds:    timeout,
		RequestsPerMinute: rpm,
		Burst:             burst,
	}, nil
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
