package handlers

import (
	"maternity-companion-server/internal/middleware"
	"maternity-companion-server/internal/models"
	"maternity-companion-server/internal/timeline"
	"maternity-companion-server/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LogHandler handles symptom, mood and weight tracking.
type LogHandler struct {
	Deps
}

// NewLogHandler creates a new LogHandler.
func NewLogHandler(deps Deps) *LogHandler {
	return &LogHandler{Deps: deps}
}

// CreateSymptomLogRequest is one day's symptom and mood entry.
type CreateSymptomLogRequest struct {
	Date     string   `json:"date" validate:"omitempty,calendardate"`
	Symptoms []string `json:"symptoms" validate:"max=20,dive,required,max=100"`
	Moods    []string `json:"moods" validate:"max=20,dive,required,max=100"`
	Notes    string   `json:"notes" validate:"max=2000"`
}

// CreateSymptomLog records symptoms and moods. Date defaults to today.
func (h *LogHandler) CreateSymptomLog(c *gin.Context) {
	var req CreateSymptomLogRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	if len(req.Symptoms) == 0 && len(req.Moods) == 0 {
		utils.BadRequest(c, "Select at least one symptom or mood")
		return
	}

	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	entry := models.SymptomLog{
		UserID:   userID,
		Date:     h.dateOrToday(req.Date),
		Symptoms: models.StringList(req.Symptoms),
		Moods:    models.StringList(req.Moods),
		Notes:    req.Notes,
	}
	if err := h.DB.Create(&entry).Error; err != nil {
		utils.InternalServerError(c, "Failed to save symptom log: "+err.Error())
		return
	}

	utils.Created(c, "Symptom log saved successfully", entry)
}

// GetSymptomLogs lists the user's symptom logs, newest first.
func (h *LogHandler) GetSymptomLogs(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	logs, err := recentSymptomLogs(h.DB, userID, listLimit(c))
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch symptom logs: "+err.Error())
		return
	}
	utils.Success(c, "Symptom logs fetched successfully", logs)
}

// CreateWeightLogRequest is a single weigh-in.
type CreateWeightLogRequest struct {
	Date      string  `json:"date" validate:"omitempty,calendardate"`
	WeightLbs float64 `json:"weightLbs" validate:"required,gt=0,lt=1000"`
}

// CreateWeightLog records a weigh-in and mirrors it onto the profile.
func (h *LogHandler) CreateWeightLog(c *gin.Context) {
	var req CreateWeightLogRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	entry := models.WeightLog{
		UserID:    userID,
		Date:      h.dateOrToday(req.Date),
		WeightLbs: req.WeightLbs,
	}
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		latest, err := latestWeightLog(tx, userID)
		if err != nil || latest == nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", userID).Update("weight_lbs", latest.WeightLbs).Error
	})
	if err != nil {
		h.Logger.Error("Failed to save weight log", zap.String("user_id", userID), zap.Error(err))
		utils.InternalServerError(c, "Failed to save weight log: "+err.Error())
		return
	}

	utils.Created(c, "Weight log saved successfully", entry)
}

// GetWeightLogs lists the user's weigh-ins, newest first.
func (h *LogHandler) GetWeightLogs(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	logs, err := recentWeightLogs(h.DB, userID, listLimit(c))
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch weight logs: "+err.Error())
		return
	}
	utils.Success(c, "Weight logs fetched successfully", logs)
}

func (d Deps) dateOrToday(date string) string {
	if date != "" {
		return date
	}
	now := d.now()
	if loc := d.timelineOptions().Location; loc != nil {
		now = now.In(loc)
	}
	return now.Format(timeline.DateLayout)
}

func recentSymptomLogs(db *gorm.DB, userID string, limit int) ([]models.SymptomLog, error) {
	logs := []models.SymptomLog{}
	err := db.Where("user_id = ?", userID).
		Order("date desc").Order("created_at desc").
		Limit(limit).Find(&logs).Error
	return logs, err
}

func recentWeightLogs(db *gorm.DB, userID string, limit int) ([]models.WeightLog, error) {
	logs := []models.WeightLog{}
	err := db.Where("user_id = ?", userID).
		Order("date desc").Order("created_at desc").
		Limit(limit).Find(&logs).Error
	return logs, err
}

// latestWeightLog returns nil without error when the user has no weigh-ins.
func latestWeightLog(db *gorm.DB, userID string) (*models.WeightLog, error) {
	logs, err := recentWeightLogs(db, userID, 1)
	if err != nil || len(logs) == 0 {
		return nil, err
	}
	return &logs[0], nil
}
