package handlers

import (
	"errors"
	"time"

	"maternity-companion-server/internal/middleware"
	"maternity-companion-server/internal/models"
	"maternity-companion-server/internal/timeline"
	"maternity-companion-server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// VaccinationHandler tracks the maternal and infant vaccine checklist.
type VaccinationHandler struct {
	Deps
}

// NewVaccinationHandler creates a new VaccinationHandler.
func NewVaccinationHandler(deps Deps) *VaccinationHandler {
	return &VaccinationHandler{Deps: deps}
}

// VaccinationListResponse splits the checklist the way the app shows it.
type VaccinationListResponse struct {
	Maternal []models.Vaccination `json:"maternal"`
	Infant   []models.Vaccination `json:"infant"`
}

// GetVaccinations returns the user's checklist, adding catalog vaccines the
// user does not have yet.
func (h *VaccinationHandler) GetVaccinations(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	if err := models.SeedVaccinations(h.DB, userID); err != nil {
		h.Logger.Error("Failed to seed vaccinations", zap.String("user_id", userID), zap.Error(err))
		utils.InternalServerError(c, err.Error())
		return
	}

	var all []models.Vaccination
	if err := h.DB.Where("user_id = ?", userID).Order("position asc").Find(&all).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch vaccinations: "+err.Error())
		return
	}

	resp := VaccinationListResponse{Maternal: []models.Vaccination{}, Infant: []models.Vaccination{}}
	for _, v := range all {
		if v.Category == models.VaccineInfant {
			resp.Infant = append(resp.Infant, v)
		} else {
			resp.Maternal = append(resp.Maternal, v)
		}
	}
	utils.Success(c, "Vaccinations fetched successfully", resp)
}

// UpdateVaccinationRequest changes a vaccine's status; nil means unchanged.
// dateGiven is only kept while the status is Completed.
type UpdateVaccinationRequest struct {
	Status    *string `json:"status" validate:"omitnil,oneof=Recommended Completed Declined"`
	DateGiven *string `json:"dateGiven" validate:"omitnil,eq=|calendardate"`
	Notes     *string `json:"notes" validate:"omitnil,max=2000"`
}

// UpdateVaccination records a vaccine as completed, declined or back to recommended.
func (h *VaccinationHandler) UpdateVaccination(c *gin.Context) {
	var req UpdateVaccinationRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	vaccination, ok := h.findOwned(c)
	if !ok {
		return
	}

	if req.Status != nil {
		vaccination.Status = models.VaccineStatus(*req.Status)
	}
	if req.DateGiven != nil {
		if *req.DateGiven == "" {
			vaccination.DateGiven = nil
		} else {
			vaccination.DateGiven = req.DateGiven
		}
	}
	if req.Notes != nil {
		vaccination.Notes = *req.Notes
	}

	if vaccination.Status != models.VaccineCompleted {
		if req.DateGiven != nil && *req.DateGiven != "" {
			utils.BadRequest(c, "A date can only be recorded for a completed vaccination")
			return
		}
		vaccination.DateGiven = nil
	}
	if vaccination.DateGiven != nil {
		loc := h.timelineOptions().Location
		if loc == nil {
			loc = time.UTC
		}
		today := h.now().In(loc).Format(timeline.DateLayout)
		if *vaccination.DateGiven > today {
			utils.BadRequest(c, "Vaccination date cannot be in the future")
			return
		}
	}

	if err := h.DB.Save(vaccination).Error; err != nil {
		utils.InternalServerError(c, "Failed to update vaccination: "+err.Error())
		return
	}

	utils.Success(c, "Vaccination updated successfully", vaccination)
}

func (h *VaccinationHandler) findOwned(c *gin.Context) (*models.Vaccination, bool) {
	vaccinationID := c.Param("id")
	if _, err := uuid.Parse(vaccinationID); err != nil {
		utils.BadRequest(c, "Invalid Vaccination ID format")
		return nil, false
	}

	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return nil, false
	}

	var vaccination models.Vaccination
	if err := h.DB.First(&vaccination, "id = ? AND user_id = ?", vaccinationID, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Vaccination not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return nil, false
	}
	return &vaccination, true
}
