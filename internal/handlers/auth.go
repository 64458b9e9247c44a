package handlers

import (
	"errors"
	"strings"
	"time"

	"maternity-companion-server/internal/middleware"
	"maternity-companion-server/internal/models"
	"maternity-companion-server/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const refreshCookieName = "refresh_token"

// AuthHandler handles authentication and profile requests.
type AuthHandler struct {
	Deps
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(deps Deps) *AuthHandler {
	return &AuthHandler{Deps: deps}
}

// RegisterRequest represents the request body for user registration.
type RegisterRequest struct {
	FullName string `json:"fullName" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	DueDate  string `json:"dueDate" validate:"omitempty,calendardate"`
}

// Register handles user registration.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var existingUser models.User
	if err := h.DB.Where("email = ?", email).First(&existingUser).Error; err == nil {
		utils.Conflict(c, "User with this email already exists")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		utils.InternalServerError(c, "Database error: "+err.Error())
		return
	}

	user := models.User{
		FullName: req.FullName,
		Email:    email,
	}
	if req.DueDate != "" {
		user.DueDate = &req.DueDate
	}

	if err := user.SetPassword(req.Password); err != nil {
		utils.InternalServerError(c, "Failed to hash password: "+err.Error())
		return
	}
	verification := h.issueVerification(&user)

	if err := h.DB.Create(&user).Error; err != nil {
		utils.InternalServerError(c, "Failed to create user: "+err.Error())
		return
	}
	h.sendVerification(c, &user, verification)

	h.Logger.Info("User registered", zap.String("user_id", user.ID))
	utils.Created(c, "User registered successfully. Check your email to verify your address.", user.Sanitize())
}

// LoginRequest represents the request body for user login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents the response body for successful login.
type LoginResponse struct {
	AccessToken  string               `json:"accessToken"`
	RefreshToken string               `json:"refreshToken"`
	User         models.UserSanitized `json:"user"`
}

// Login handles user login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var user models.User
	if err := h.DB.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Unauthorized(c, "Invalid email or password")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	if !user.CheckPassword(req.Password) {
		utils.Unauthorized(c, "Invalid email or password")
		return
	}

	accessToken, refreshToken, err := h.issueTokens(c, &user)
	if err != nil {
		return
	}

	utils.Success(c, "Login successful", LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user.Sanitize(),
	})
}

// issueTokens signs a token pair, stores the refresh token and sets the
// cookie. On failure it has already written the error response.
func (h *AuthHandler) issueTokens(c *gin.Context, user *models.User) (string, string, error) {
	accessToken, refreshTokenString, err := utils.GenerateTokens(user, h.Cfg)
	if err != nil {
		utils.InternalServerError(c, "Failed to generate tokens: "+err.Error())
		return "", "", err
	}

	refreshToken := models.RefreshToken{
		UserID:    user.ID,
		Token:     refreshTokenString,
		ExpiresAt: time.Now().Add(time.Duration(h.Cfg.JWTRefreshExpirationHours) * time.Hour),
	}
	if err := h.DB.Create(&refreshToken).Error; err != nil {
		utils.InternalServerError(c, "Failed to store refresh token: "+err.Error())
		return "", "", err
	}

	c.SetCookie(
		refreshCookieName,
		refreshTokenString,
		h.Cfg.JWTRefreshExpirationHours*60*60,
		"/",
		"",
		h.Cfg.Environment != "development",
		true,
	)
	return accessToken, refreshTokenString, nil
}

// RefreshTokenRequest represents the request body for token refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// RefreshTokenResponse represents the response body for successful token refresh.
type RefreshTokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// refreshTokenFromRequest prefers the HTTP-only cookie and falls back to the body.
func refreshTokenFromRequest(c *gin.Context) (string, bool) {
	if token, err := c.Cookie(refreshCookieName); err == nil && token != "" {
		return token, true
	}
	var req RefreshTokenRequest
	if !utils.BindAndValidate(c, &req) {
		return "", false
	}
	return req.RefreshToken, true
}

// RefreshToken exchanges a refresh token for a new pair, revoking the old one.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	token, ok := refreshTokenFromRequest(c)
	if !ok {
		return
	}

	claims, err := utils.ValidateToken(token, h.Cfg.JWTRefreshSecret)
	if err != nil {
		utils.Unauthorized(c, "Invalid refresh token structure or signature: "+err.Error())
		return
	}

	var storedToken models.RefreshToken
	if err := h.DB.Where("token = ? AND user_id = ?", token, claims.UserID).First(&storedToken).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Unauthorized(c, "Refresh token not found, expired, or revoked")
		} else {
			utils.InternalServerError(c, "Database error checking refresh token: "+err.Error())
		}
		return
	}
	if !storedToken.Usable(time.Now()) {
		utils.Unauthorized(c, "Refresh token not found, expired, or revoked")
		return
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", claims.UserID).Error; err != nil {
		utils.InternalServerError(c, "Failed to find user associated with token: "+err.Error())
		return
	}

	storedToken.IsRevoked = true
	if err := h.DB.Save(&storedToken).Error; err != nil {
		utils.InternalServerError(c, "Failed to revoke refresh token: "+err.Error())
		return
	}

	accessToken, refreshToken, err := h.issueTokens(c, &user)
	if err != nil {
		return
	}

	utils.Success(c, "Access token refreshed successfully", RefreshTokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

// Logout revokes the presented refresh token and clears the cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	token, ok := refreshTokenFromRequest(c)
	if !ok {
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	result := h.DB.Model(&models.RefreshToken{}).
		Where("token = ? AND user_id = ? AND is_revoked = ?", token, userID, false).
		Updates(map[string]interface{}{"is_revoked": true, "expires_at": time.Now()})
	if result.Error != nil {
		utils.InternalServerError(c, "Failed to revoke refresh token: "+result.Error.Error())
		return
	}

	c.SetCookie(refreshCookieName, "", -1, "/", "", h.Cfg.Environment != "development", true)

	if result.RowsAffected == 0 {
		utils.Success(c, "Logout successful (token not found or already invalid).", nil)
		return
	}
	utils.Success(c, "Logout successful. Refresh token has been invalidated.", nil)
}

// GetProfile handles fetching the currently authenticated user's profile.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	utils.Success(c, "Profile fetched successfully", user.Sanitize())
}

// UpdateProfileRequest is the profile setup form. Nil fields are left alone;
// an empty dueDate clears it.
type UpdateProfileRequest struct {
	FullName              *string  `json:"fullName" validate:"omitnil,min=1,max=200"`
	PhoneNumber           *string  `json:"phoneNumber" validate:"omitnil,max=50"`
	DueDate               *string  `json:"dueDate" validate:"omitnil,eq=|calendardate"`
	WeightLbs             *float64 `json:"weightLbs" validate:"omitnil,gt=0,lt=1000"`
	EmergencyContactName  *string  `json:"emergencyContactName" validate:"omitnil,max=200"`
	EmergencyContactPhone *string  `json:"emergencyContactPhone" validate:"omitnil,max=50"`
}

// UpdateProfile handles updating the currently authenticated user's profile.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	if req.FullName != nil {
		user.FullName = *req.FullName
	}
	if req.PhoneNumber != nil {
		user.PhoneNumber = *req.PhoneNumber
	}
	if req.DueDate != nil {
		if *req.DueDate == "" {
			user.DueDate = nil
		} else {
			user.DueDate = req.DueDate
		}
	}
	if req.WeightLbs != nil {
		user.WeightLbs = req.WeightLbs
	}
	if req.EmergencyContactName != nil {
		user.EmergencyContactName = *req.EmergencyContactName
	}
	if req.EmergencyContactPhone != nil {
		user.EmergencyContactPhone = *req.EmergencyContactPhone
	}

	if err := h.DB.Save(user).Error; err != nil {
		utils.InternalServerError(c, "Failed to update profile: "+err.Error())
		return
	}

	utils.Success(c, "Profile updated successfully", user.Sanitize())
}
