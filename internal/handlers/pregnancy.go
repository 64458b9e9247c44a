package handlers

import (
	"maternity-companion-server/internal/models"
	"maternity-companion-server/internal/timeline"
	"maternity-companion-server/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PregnancyHandler serves the dashboard summary.
type PregnancyHandler struct {
	Deps
}

// NewPregnancyHandler creates a new PregnancyHandler.
func NewPregnancyHandler(deps Deps) *PregnancyHandler {
	return &PregnancyHandler{Deps: deps}
}

// PregnancySummary is everything the dashboard header shows.
type PregnancySummary struct {
	Pregnancy       timeline.PregnancyInfo `json:"pregnancy"`
	ProfileComplete bool                   `json:"profileComplete"`
	NextAppointment *AppointmentView       `json:"nextAppointment,omitempty"`
	LatestWeight    *models.WeightLog      `json:"latestWeight,omitempty"`
}

// GetSummary returns the user's pregnancy timeline, next appointment and
// latest weigh-in. Users without a due date get the zero-state timeline.
func (h *PregnancyHandler) GetSummary(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	info := h.pregnancyInfo(user)
	summary := PregnancySummary{
		Pregnancy:       info,
		ProfileComplete: info.Complete,
	}

	var appointments []models.Appointment
	if err := h.DB.Where("user_id = ?", user.ID).Find(&appointments).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch appointments: "+err.Error())
		return
	}
	p := timeline.PartitionAndSortAppointments(appointments, h.now(), h.timelineOptions().Location)
	if len(p.Malformed) > 0 {
		h.Logger.Warn("Ignoring malformed appointments in summary",
			zap.String("user_id", user.ID),
			zap.Int("count", len(p.Malformed)),
		)
	}
	if next, found := p.NextUpcoming(); found {
		view := viewOf(next)
		summary.NextAppointment = &view
	}

	latest, err := latestWeightLog(h.DB, user.ID)
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch weight logs: "+err.Error())
		return
	}
	summary.LatestWeight = latest

	utils.Success(c, "Pregnancy summary fetched successfully", summary)
}
