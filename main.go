package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"maternity-companion-server/internal/assistant"
	"maternity-companion-server/internal/config"
	"maternity-companion-server/internal/handlers"
	"maternity-companion-server/internal/logging"
	"maternity-companion-server/internal/mailer"
	"maternity-companion-server/internal/metrics"
	"maternity-companion-server/internal/middleware"
	"maternity-companion-server/internal/models"
	"maternity-companion-server/internal/routes"
	"maternity-companion-server/internal/timeline"
)

func main() {
	// Load environment variables; a missing .env is fine outside development
	envErr := godotenv.Load()

	// Initialize configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if envErr != nil {
		logger.Info("No .env file loaded, using process environment", zap.Error(envErr))
	}

	// Initialize database connection
	db, err := models.InitDB(models.DatabaseConfig{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
		Debug:  cfg.Environment == "development",
	})
	if err != nil {
		logger.Fatal("Error connecting to database", zap.Error(err))
	}

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	m := metrics.New()

	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Recovery(logger),
		m.Middleware(),
	)

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader, "Retry-After"}
	router.Use(cors.New(corsConfig))

	if cfg.Assistant.APIKey == "" {
		logger.Warn("ASSISTANT_API_KEY not set, AI insights and chat are disabled")
	}
	generator := assistant.NewHTTPGenerator(cfg.Assistant, logger.Named("assistant"))
	assistantSvc := assistant.NewService(generator, logger.Named("assistant"), m.ObserveAssistant)

	mail, err := mailer.New(cfg.Mailer, logger.Named("mailer"))
	if err != nil {
		logger.Fatal("Error creating mailer", zap.Error(err))
	}

	deps := handlers.Deps{
		DB:     db,
		Cfg:    cfg,
		Logger: logger,
		Clock:  timeline.SystemClock,
		Mailer: mail,
	}
	routes.SetupRoutes(router, deps, assistantSvc, m)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server running",
			zap.String("port", cfg.Port),
			zap.String("environment", cfg.Environment),
			zap.String("db_driver", cfg.Database.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
