package handlers

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"maternity-companion-server/internal/mailer"
	"maternity-companion-server/internal/models"
	"maternity-companion-server/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const forgotPasswordMessage = "If an account exists for that email, a password reset link has been sent."

// EmailTokenRequest carries the token from an emailed link.
type EmailTokenRequest struct {
	Token string `json:"token" validate:"required,max=255"`
}

// ForgotPasswordRequest starts a password reset.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest completes a password reset.
type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

func tokenUsable(expiry *time.Time, now time.Time) bool {
	return expiry != nil && now.Before(*expiry)
}

func (d Deps) appLink(path, token string) string {
	return strings.TrimRight(d.Cfg.AppURL, "/") + path + "?token=" + url.QueryEscape(token)
}

// issueVerification puts a fresh verification token on user and returns the
// raw value for the email. The caller saves user.
func (h *AuthHandler) issueVerification(user *models.User) string {
	raw, hashed := utils.NewEmailToken()
	expires := h.now().Add(time.Duration(h.Cfg.VerificationTokenExpiry) * time.Hour)
	user.VerificationToken = hashed
	user.VerificationTokenExpiry = &expires
	return raw
}

func (h *AuthHandler) sendVerification(c *gin.Context, user *models.User, raw string) {
	h.sendEmail(c.Request.Context(), user.Email, mailer.TemplateVerifyEmail, map[string]string{
		"name":    user.FullName,
		"link":    h.appLink("/verify-email", raw),
		"expires": fmt.Sprintf("%d hours", h.Cfg.VerificationTokenExpiry),
	})
}

// findByToken loads the user whose column holds the hash of raw. It writes the
// error response itself when it returns false.
func (h *AuthHandler) findByToken(c *gin.Context, column, raw, invalidMessage string) (*models.User, bool) {
	var user models.User
	err := h.DB.Where(column+" = ?", utils.HashEmailToken(raw)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.BadRequest(c, invalidMessage)
		return nil, false
	}
	if err != nil {
		utils.InternalServerError(c, "Database error: "+err.Error())
		return nil, false
	}
	return &user, true
}

// VerifyEmail confirms the address from a verification link.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req EmailTokenRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	const invalid = "Invalid or expired verification token"
	user, ok := h.findByToken(c, "verification_token", req.Token, invalid)
	if !ok {
		return
	}
	if !tokenUsable(user.VerificationTokenExpiry, h.now()) {
		utils.BadRequest(c, invalid)
		return
	}

	user.IsVerified = true
	user.VerificationToken = ""
	user.VerificationTokenExpiry = nil
	if err := h.DB.Save(user).Error; err != nil {
		utils.InternalServerError(c, "Failed to verify email: "+err.Error())
		return
	}

	h.Logger.Info("Email verified", zap.String("user_id", user.ID))
	utils.Success(c, "Email verified successfully", user.Sanitize())
}

// ResendVerification mails a new verification link to the signed-in user.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	if user.IsVerified {
		utils.Conflict(c, "Email is already verified")
		return
	}

	raw := h.issueVerification(user)
	if err := h.DB.Save(user).Error; err != nil {
		utils.InternalServerError(c, "Failed to store verification token: "+err.Error())
		return
	}
	h.sendVerification(c, user, raw)

	utils.Success(c, "Verification email sent", nil)
}

// ForgotPassword mails a reset link. The response is the same whether or not
// the email belongs to an account.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var user models.User
	err := h.DB.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		h.Logger.Info("Password reset requested for unknown email")
		utils.Success(c, forgotPasswordMessage, nil)
		return
	}
	if err != nil {
		utils.InternalServerError(c, "Database error: "+err.Error())
		return
	}

	raw, hashed := utils.NewEmailToken()
	expires := h.now().Add(time.Duration(h.Cfg.PasswordResetTokenExpiry) * time.Minute)
	err = h.DB.Model(&user).Updates(map[string]interface{}{
		"reset_token":        hashed,
		"reset_token_expiry": expires,
	}).Error
	if err != nil {
		utils.InternalServerError(c, "Failed to store reset token: "+err.Error())
		return
	}

	h.sendEmail(c.Request.Context(), user.Email, mailer.TemplatePasswordReset, map[string]string{
		"name":    user.FullName,
		"link":    h.appLink("/reset-password", raw),
		"expires": fmt.Sprintf("%d minutes", h.Cfg.PasswordResetTokenExpiry),
	})
	h.Logger.Info("Password reset requested", zap.String("user_id", user.ID))
	utils.Success(c, forgotPasswordMessage, nil)
}

// ResetPassword sets a new password from a reset link and signs out every
// session of the account.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	const invalid = "Invalid or expired password reset token"
	user, ok := h.findByToken(c, "reset_token", req.Token, invalid)
	if !ok {
		return
	}
	if !tokenUsable(user.ResetTokenExpiry, h.now()) {
		utils.BadRequest(c, invalid)
		return
	}

	if err := user.SetPassword(req.Password); err != nil {
		utils.InternalServerError(c, "Failed to hash password: "+err.Error())
		return
	}
	user.ResetToken = ""
	user.ResetTokenExpiry = nil
	// Following the link proves the user reads this inbox.
	user.IsVerified = true
	user.VerificationToken = ""
	user.VerificationTokenExpiry = nil

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(user).Error; err != nil {
			return err
		}
		return tx.Model(&models.RefreshToken{}).
			Where("user_id = ? AND is_revoked = ?", user.ID, false).
			Update("is_revoked", true).Error
	})
	if err != nil {
		utils.InternalServerError(c, "Failed to reset password: "+err.Error())
		return
	}

	h.Logger.Info("Password reset", zap.String("user_id", user.ID))
	utils.Success(c, "Password reset successfully. Please log in with your new password.", nil)
}
