package handlers

import (
	"net/http"
	"testing"
	"time"

	"maternity-companion-server/internal/models"
	"maternity-companion-server/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_VerifyEmail(t *testing.T) {
	env := newTestEnv(t, "")

	code, resp := env.doWithToken("", http.MethodPost, "/api/v1/auth/register", map[string]string{
		"fullName": "Achieng Odhiambo",
		"email":    "achieng@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, code, resp.Error)
	var user models.UserSanitized
	decodeData(t, resp, &user)
	assert.False(t, user.IsVerified)

	require.Len(t, env.mail.sent, 1)
	email := env.mail.sent[0]
	assert.Equal(t, "achieng@example.com", email.To)
	assert.Equal(t, "Verify your email address", email.Subject)
	assert.Contains(t, email.Body, "http://localhost:3000/verify-email?token=")
	assert.Contains(t, email.Body, "24 hours")
	token := env.mail.linkToken(t)

	var stored models.User
	require.NoError(t, env.db.First(&stored, "id = ?", user.ID).Error)
	assert.Equal(t, utils.HashEmailToken(token), stored.VerificationToken, "only the hash is stored")

	code, resp = env.doWithToken("", http.MethodPost, "/api/v1/auth/verify-email", map[string]string{"token": token})
	require.Equal(t, http.StatusOK, code, resp.Error)
	decodeData(t, resp, &user)
	assert.True(t, user.IsVerified)

	// Links are single use.
	code, _ = env.doWithToken("", http.MethodPost, "/api/v1/auth/verify-email", map[string]string{"token": token})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestVerifyEmail_Rejections(t *testing.T) {
	env := newTestEnv(t, "")

	raw, hashed := utils.NewEmailToken()
	expired := fixedNow.Add(-time.Minute)
	require.NoError(t, env.db.Model(&env.user).Updates(map[string]interface{}{
		"verification_token":        hashed,
		"verification_token_expiry": expired,
	}).Error)

	code, resp := env.doWithToken("", http.MethodPost, "/api/v1/auth/verify-email", map[string]string{"token": raw})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, resp.Error, "expired")

	code, _ = env.doWithToken("", http.MethodPost, "/api/v1/auth/verify-email", map[string]string{"token": "made-up"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.doWithToken("", http.MethodPost, "/api/v1/auth/verify-email", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestResendVerification(t *testing.T) {
	env := newTestEnv(t, "")

	code, resp := env.do(http.MethodPost, "/api/v1/auth/resend-verification", nil)
	require.Equal(t, http.StatusOK, code, resp.Error)
	require.Len(t, env.mail.sent, 1)
	assert.Equal(t, "wanjiru@example.com", env.mail.sent[0].To)
	first := env.mail.linkToken(t)

	code, _ = env.do(http.MethodPost, "/api/v1/auth/resend-verification", nil)
	require.Equal(t, http.StatusOK, code)
	second := env.mail.linkToken(t)
	assert.NotEqual(t, first, second)

	// The replaced link no longer works.
	code, _ = env.doWithToken("", http.MethodPost, "/api/v1/auth/verify-email", map[string]string{"token": first})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = env.doWithToken("", http.MethodPost, "/api/v1/auth/verify-email", map[string]string{"token": second})
	require.Equal(t, http.StatusOK, code)

	code, _ = env.do(http.MethodPost, "/api/v1/auth/resend-verification", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Len(t, env.mail.sent, 2)
}

func TestForgotAndResetPassword(t *testing.T) {
	env := newTestEnv(t, "")

	code, resp := env.doWithToken("", http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "wanjiru@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, code, resp.Error)
	var login LoginResponse
	decodeData(t, resp, &login)

	code, resp = env.doWithToken("", http.MethodPost, "/api/v1/auth/forgot-password", map[string]string{
		"email": "WANJIRU@example.com",
	})
	require.Equal(t, http.StatusOK, code, resp.Error)
	assert.Equal(t, forgotPasswordMessage, resp.Message)
	require.Len(t, env.mail.sent, 1)
	assert.Equal(t, "Reset your password", env.mail.sent[0].Subject)
	assert.Contains(t, env.mail.sent[0].Body, "http://localhost:3000/reset-password?token=")
	assert.Contains(t, env.mail.sent[0].Body, "60 minutes")
	token := env.mail.linkToken(t)

	code, _ = env.doWithToken("", http.MethodPost, "/api/v1/auth/reset-password", map[string]string{
		"token":    token,
		"password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp = env.doWithToken("", http.MethodPost, "/api/v1/auth/reset-password", map[string]string{
		"token":    token,
		"password": "newpassword456",
	})
	require.Equal(t, http.StatusOK, code, resp.Error)

	code, _ = env.doWithToken("", http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "wanjiru@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = env.doWithToken("", http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "wanjiru@example.com",
		"password": "newpassword456",
	})
	assert.Equal(t, http.StatusOK, code)

	// Sessions from before the reset are signed out.
	code, _ = env.doWithToken("", http.MethodPost, "/api/v1/auth/refresh-token", map[string]string{
		"refreshToken": login.RefreshToken,
	})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = env.doWithToken("", http.MethodPost, "/api/v1/auth/reset-password", map[string]string{
		"token":    token,
		"password": "anotherpass789",
	})
	assert.Equal(t, http.StatusBadRequest, code)

	var stored models.User
	require.NoError(t, env.db.First(&stored, "id = ?", env.user.ID).Error)
	assert.Empty(t, stored.ResetToken)
	assert.True(t, stored.IsVerified)
}

func TestForgotPassword_UnknownEmail(t *testing.T) {
	env := newTestEnv(t, "")

	code, resp := env.doWithToken("", http.MethodPost, "/api/v1/auth/forgot-password", map[string]string{
		"email": "stranger@example.com",
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, forgotPasswordMessage, resp.Message)
	assert.Empty(t, env.mail.sent)

	code, _ = env.doWithToken("", http.MethodPost, "/api/v1/auth/forgot-password", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestResetPassword_Expired(t *testing.T) {
	env := newTestEnv(t, "")

	code, _ := env.doWithToken("", http.MethodPost, "/api/v1/auth/forgot-password", map[string]string{
		"email": "wanjiru@example.com",
	})
	require.Equal(t, http.StatusOK, code)
	token := env.mail.linkToken(t)

	require.NoError(t, env.db.Model(&env.user).Update("reset_token_expiry", fixedNow.Add(-time.Second)).Error)

	code, resp := env.doWithToken("", http.MethodPost, "/api/v1/auth/reset-password", map[string]string{
		"token":    token,
		"password": "newpassword456",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, resp.Error, "expired")

	var stored models.User
	require.NoError(t, env.db.First(&stored, "id = ?", env.user.ID).Error)
	assert.True(t, stored.CheckPassword("password123"))
}
