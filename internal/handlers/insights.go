package handlers

import (
	"maternity-companion-server/internal/assistant"
	"maternity-companion-server/internal/utils"

	"github.com/gin-gonic/gin"
)

const dashboardLogWindow = 5

// InsightHandler serves the AI-generated weekly content.
type InsightHandler struct {
	Deps
	Assistant *assistant.Service
}

// NewInsightHandler creates a new InsightHandler.
func NewInsightHandler(deps Deps, svc *assistant.Service) *InsightHandler {
	return &InsightHandler{Deps: deps, Assistant: svc}
}

// GetBabyUpdate describes the baby's development for the current week.
func (h *InsightHandler) GetBabyUpdate(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	info := h.pregnancyInfo(user)

	update, err := h.Assistant.BabyUpdate(c.Request.Context(), info.CurrentWeek)
	if err != nil {
		h.respondAssistantError(c, err)
		return
	}
	utils.Success(c, "Baby update generated successfully", gin.H{
		"currentWeek": info.CurrentWeek,
		"update":      update,
	})
}

// GetHealthTips returns one nutrition, exercise and wellness tip for the week.
func (h *InsightHandler) GetHealthTips(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	info := h.pregnancyInfo(user)

	tips, err := h.Assistant.HealthTips(c.Request.Context(), info.CurrentWeek)
	if err != nil {
		h.respondAssistantError(c, err)
		return
	}
	utils.Success(c, "Health tips generated successfully", gin.H{
		"currentWeek": info.CurrentWeek,
		"tips":        tips.Tips,
	})
}

// GetDashboardTip personalizes a tip from the user's most recent logs.
func (h *InsightHandler) GetDashboardTip(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	info := h.pregnancyInfo(user)

	symptoms, err := recentSymptomLogs(h.DB, user.ID, dashboardLogWindow)
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch symptom logs: "+err.Error())
		return
	}
	weights, err := recentWeightLogs(h.DB, user.ID, dashboardLogWindow)
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch weight logs: "+err.Error())
		return
	}

	in := assistant.DashboardInput{
		CurrentWeek:    info.CurrentWeek,
		Trimester:      info.Trimester,
		RecentSymptoms: make([]assistant.SymptomEntry, 0, len(symptoms)),
		RecentWeights:  make([]assistant.WeightEntry, 0, len(weights)),
	}
	for _, s := range symptoms {
		in.RecentSymptoms = append(in.RecentSymptoms, assistant.SymptomEntry{
			Date:     s.Date,
			Symptoms: s.Symptoms,
			Moods:    s.Moods,
		})
	}
	for _, w := range weights {
		in.RecentWeights = append(in.RecentWeights, assistant.WeightEntry{Date: w.Date, Weight: w.WeightLbs})
	}

	tip, err := h.Assistant.DashboardTip(c.Request.Context(), in)
	if err != nil {
		h.respondAssistantError(c, err)
		return
	}
	utils.Success(c, "Dashboard tip generated successfully", tip)
}
