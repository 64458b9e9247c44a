package models

import (
	"time"

	"maternity-companion-server/internal/timeline"

	"golang.org/x/crypto/bcrypt"
)

// User is an expecting parent and the owner of every other record.
// DueDate is kept as the calendar string the client submitted; the timeline
// package parses it on every read.
type User struct {
	BaseModel
	Email                 string   `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password              string   `gorm:"size:255;not null" json:"-"` // Never send password in JSON
	FullName              string   `gorm:"size:200" json:"fullName"`
	PhoneNumber           string   `gorm:"size:50" json:"phoneNumber,omitempty"`
	DueDate               *string  `gorm:"size:10" json:"dueDate,omitempty"`
	WeightLbs             *float64 `json:"weightLbs,omitempty"`
	EmergencyContactName  string   `gorm:"size:200" json:"emergencyContactName,omitempty"`
	EmergencyContactPhone string   `gorm:"size:50" json:"emergencyContactPhone,omitempty"`

	// Tokens are stored as SHA-256 hashes; the raw value only travels by email.
	IsVerified              bool       `gorm:"default:false" json:"isVerified"`
	VerificationToken       string     `gorm:"size:255;index" json:"-"`
	VerificationTokenExpiry *time.Time `json:"-"`
	ResetToken              string     `gorm:"size:255;index" json:"-"`
	ResetTokenExpiry        *time.Time `json:"-"`

	// Relations (not always preloaded)
	RefreshTokens []RefreshToken `gorm:"foreignKey:UserID" json:"-"`
	Appointments  []Appointment  `gorm:"foreignKey:UserID" json:"-"`
	SymptomLogs   []SymptomLog   `gorm:"foreignKey:UserID" json:"-"`
	WeightLogs    []WeightLog    `gorm:"foreignKey:UserID" json:"-"`
	Vaccinations  []Vaccination  `gorm:"foreignKey:UserID" json:"-"`
}

// UserSanitized represents the user data that is safe to send in API responses.
type UserSanitized struct {
	ID                    string    `json:"id"`
	Email                 string    `json:"email"`
	FullName              string    `json:"fullName"`
	PhoneNumber           string    `json:"phoneNumber,omitempty"`
	DueDate               *string   `json:"dueDate,omitempty"`
	WeightLbs             *float64  `json:"weightLbs,omitempty"`
	EmergencyContactName  string    `json:"emergencyContactName,omitempty"`
	EmergencyContactPhone string    `json:"emergencyContactPhone,omitempty"`
	ProfileComplete       bool      `json:"profileComplete"`
	IsVerified            bool      `json:"isVerified"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

// SetPassword hashes a password and sets it on the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

// CheckPassword compares a password with the user's hashed password
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}

// HasDueDate reports whether the profile holds a due date the timeline can use.
func (u *User) HasDueDate() bool {
	return u.DueDate != nil && timeline.ParseDueDate(*u.DueDate, time.UTC) != nil
}

// Sanitize strips credentials from the user for API responses.
func (u *User) Sanitize() UserSanitized {
	return UserSanitized{
		ID:                    u.ID,
		Email:                 u.Email,
		FullName:              u.FullName,
		PhoneNumber:           u.PhoneNumber,
		DueDate:               u.DueDate,
		WeightLbs:             u.WeightLbs,
		EmergencyContactName:  u.EmergencyContactName,
		EmergencyContactPhone: u.EmergencyContactPhone,
		ProfileComplete:       u.HasDueDate(),
		IsVerified:            u.IsVerified,
		CreatedAt:             u.CreatedAt,
		UpdatedAt:             u.UpdatedAt,
	}
}
