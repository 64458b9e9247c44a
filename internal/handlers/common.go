package handlers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"maternity-companion-server/internal/assistant"
	"maternity-companion-server/internal/config"
	"maternity-companion-server/internal/mailer"
	"maternity-companion-server/internal/middleware"
	"maternity-companion-server/internal/models"
	"maternity-companion-server/internal/timeline"
	"maternity-companion-server/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Deps bundles what every handler needs.
type Deps struct {
	DB     *gorm.DB
	Cfg    *config.Config
	Logger *zap.Logger
	Clock  timeline.Clock
	Mailer mailer.Sender
}

func (d Deps) now() time.Time {
	if d.Clock == nil {
		return time.Now()
	}
	return d.Clock()
}

func (d Deps) timelineOptions() timeline.Options {
	return timeline.Options{
		ClampOverdue: d.Cfg.Timeline.ClampOverdue,
		Location:     d.Cfg.Timeline.Location,
	}
}

// currentUser loads the authenticated user, writing the error response itself
// when it returns false.
func (d Deps) currentUser(c *gin.Context) (*models.User, bool) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return nil, false
	}

	var user models.User
	if err := d.DB.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "User profile not found")
		} else {
			d.Logger.Error("Failed to load user", zap.String("user_id", userID), zap.Error(err))
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return nil, false
	}
	return &user, true
}

// pregnancyInfo derives the timeline for user at the injected clock.
func (d Deps) pregnancyInfo(user *models.User) timeline.PregnancyInfo {
	opts := d.timelineOptions()
	var due *time.Time
	if user.HasDueDate() {
		due = timeline.ParseDueDate(*user.DueDate, opts.Location)
	}
	return timeline.ComputePregnancyInfo(due, d.now(), opts)
}

// respondAssistantError maps assistant failures to HTTP responses.
func (d Deps) respondAssistantError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, assistant.ErrIncompleteProfile):
		utils.Conflict(c, "Add your due date to your profile to unlock weekly insights")
	case errors.Is(err, assistant.ErrNotConfigured):
		utils.ServiceUnavailable(c, "AI assistant is not configured")
	case errors.Is(err, assistant.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		utils.ServiceUnavailable(c, "AI assistant is temporarily unavailable, please try again later")
	case errors.Is(err, assistant.ErrInvalidOutput):
		utils.BadGateway(c, "AI assistant returned an unexpected response")
	default:
		d.Logger.Error("Assistant request failed", zap.Error(err))
		utils.InternalServerError(c, "Failed to generate response")
	}
}

// sendEmail renders and sends a template. Delivery failures are logged and
// never fail the request.
func (d Deps) sendEmail(ctx context.Context, to, templateID string, data map[string]string) {
	if d.Mailer == nil {
		d.Logger.Warn("No mailer configured, email dropped", zap.String("template", templateID))
		return
	}
	subject, body, err := mailer.Render(templateID, data)
	if err == nil {
		err = d.Mailer.SendEmail(ctx, to, subject, body)
	}
	if err != nil {
		d.Logger.Error("Failed to send email", zap.String("template", templateID), zap.Error(err))
	}
}

// listLimit reads ?limit= with a default and an upper bound.
func listLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
