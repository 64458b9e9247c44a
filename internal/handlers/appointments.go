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

// AppointmentHandler handles appointment related requests.
type AppointmentHandler struct {
	Deps
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(deps Deps) *AppointmentHandler {
	return &AppointmentHandler{Deps: deps}
}

// AppointmentView is an appointment with its status derived at read time.
type AppointmentView struct {
	models.Appointment
	Status timeline.Status `json:"status,omitempty"`
	At     *time.Time      `json:"at,omitempty"`
}

func viewOf(a timeline.Annotated[models.Appointment]) AppointmentView {
	at := a.At
	return AppointmentView{Appointment: a.Record, Status: a.Status, At: &at}
}

func viewsOf(list []timeline.Annotated[models.Appointment]) []AppointmentView {
	out := make([]AppointmentView, len(list))
	for i, a := range list {
		out[i] = viewOf(a)
	}
	return out
}

// AppointmentListResponse groups a user's appointments by derived status.
type AppointmentListResponse struct {
	Upcoming  []AppointmentView               `json:"upcoming"`
	Completed []AppointmentView               `json:"completed"`
	Missed    []AppointmentView               `json:"missed"`
	Malformed []timeline.MalformedRecordError `json:"malformed,omitempty"`
}

// CreateAppointmentRequest represents the request body for creating an appointment.
type CreateAppointmentRequest struct {
	Title    string `json:"title" validate:"required,max=255"`
	Type     string `json:"type" validate:"omitempty,oneof=checkup scan nutrition other"`
	Date     string `json:"date" validate:"required,calendardate"`
	Time     string `json:"time" validate:"required,clock"`
	Doctor   string `json:"doctor" validate:"max=200"`
	Location string `json:"location" validate:"max=255"`
	Notes    string `json:"notes" validate:"max=5000"`
}

// CreateAppointment books a new appointment for the authenticated user.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	var req CreateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	status, _, err := timeline.ClassifyAppointment(req.Date, req.Time, h.now(), h.timelineOptions().Location)
	if err != nil {
		utils.BadRequest(c, err.Error())
		return
	}
	if status != timeline.StatusUpcoming {
		utils.BadRequest(c, "Appointment date must be in the future.")
		return
	}

	apptType := models.AppointmentType(req.Type)
	if apptType == "" {
		apptType = models.AppointmentCheckup
	}

	appointment := models.Appointment{
		UserID:   userID,
		Title:    req.Title,
		Type:     apptType,
		Date:     req.Date,
		Time:     req.Time,
		Doctor:   req.Doctor,
		Location: req.Location,
		Notes:    req.Notes,
	}
	if err := h.DB.Create(&appointment).Error; err != nil {
		utils.InternalServerError(c, "Failed to create appointment: "+err.Error())
		return
	}

	utils.Created(c, "Appointment created successfully", h.annotate(appointment))
}

// GetAppointments lists the user's appointments split into upcoming
// (soonest first), completed (most recent first) and missed.
func (h *AppointmentHandler) GetAppointments(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var appointments []models.Appointment
	if err := h.DB.Where("user_id = ?", userID).Order("created_at asc").Find(&appointments).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch appointments: "+err.Error())
		return
	}

	utils.Success(c, "Appointments fetched successfully", h.partition(userID, appointments))
}

func (h *AppointmentHandler) partition(userID string, appointments []models.Appointment) AppointmentListResponse {
	p := timeline.PartitionAndSortAppointments(appointments, h.now(), h.timelineOptions().Location)
	for _, m := range p.Malformed {
		h.Logger.Warn("Skipping malformed appointment",
			zap.String("user_id", userID),
			zap.String("appointment_id", m.ID),
			zap.Error(&m),
		)
	}

	attended, missed := timeline.SplitMissed(p.Completed, func(a models.Appointment) bool { return a.Missed })
	return AppointmentListResponse{
		Upcoming:  viewsOf(p.Upcoming),
		Completed: viewsOf(attended),
		Missed:    viewsOf(missed),
		Malformed: p.Malformed,
	}
}

// annotate derives the status of a single appointment.
func (h *AppointmentHandler) annotate(a models.Appointment) AppointmentView {
	status, at, err := timeline.ClassifyAppointment(a.Date, a.Time, h.now(), h.timelineOptions().Location)
	if err != nil {
		return AppointmentView{Appointment: a}
	}
	if status == timeline.StatusCompleted && a.Missed {
		status = timeline.StatusMissed
	}
	return AppointmentView{Appointment: a, Status: status, At: &at}
}

// findOwned loads an appointment by :id belonging to the current user,
// writing the error response itself when it returns false.
func (h *AppointmentHandler) findOwned(c *gin.Context) (*models.Appointment, bool) {
	appointmentID := c.Param("id")
	if _, err := uuid.Parse(appointmentID); err != nil {
		utils.BadRequest(c, "Invalid Appointment ID format")
		return nil, false
	}

	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return nil, false
	}

	var appointment models.Appointment
	if err := h.DB.First(&appointment, "id = ? AND user_id = ?", appointmentID, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Appointment not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return nil, false
	}
	return &appointment, true
}

// GetAppointmentByID returns one appointment with its current status.
func (h *AppointmentHandler) GetAppointmentByID(c *gin.Context) {
	appointment, ok := h.findOwned(c)
	if !ok {
		return
	}
	utils.Success(c, "Appointment fetched successfully", h.annotate(*appointment))
}

// UpdateAppointmentRequest carries the editable fields; nil means unchanged.
// omitnil keeps validating an explicit "", so a title cannot be blanked.
type UpdateAppointmentRequest struct {
	Title    *string `json:"title" validate:"omitnil,min=1,max=255"`
	Type     *string `json:"type" validate:"omitnil,oneof=checkup scan nutrition other"`
	Date     *string `json:"date" validate:"omitnil,calendardate"`
	Time     *string `json:"time" validate:"omitnil,clock"`
	Doctor   *string `json:"doctor" validate:"omitnil,max=200"`
	Location *string `json:"location" validate:"omitnil,max=255"`
	Notes    *string `json:"notes" validate:"omitnil,max=5000"`
	Summary  *string `json:"summary" validate:"omitnil,max=5000"`
}

// UpdateAppointment edits or reschedules an appointment.
func (h *AppointmentHandler) UpdateAppointment(c *gin.Context) {
	var req UpdateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	appointment, ok := h.findOwned(c)
	if !ok {
		return
	}

	rescheduled := false
	if req.Date != nil && *req.Date != appointment.Date {
		appointment.Date = *req.Date
		rescheduled = true
	}
	if req.Time != nil && *req.Time != appointment.Time {
		appointment.Time = *req.Time
		rescheduled = true
	}
	if rescheduled {
		status, _, err := timeline.ClassifyAppointment(appointment.Date, appointment.Time, h.now(), h.timelineOptions().Location)
		if err != nil {
			utils.BadRequest(c, err.Error())
			return
		}
		if status != timeline.StatusUpcoming {
			utils.BadRequest(c, "New appointment date must be in the future.")
			return
		}
		appointment.Missed = false
	}

	if req.Title != nil {
		appointment.Title = *req.Title
	}
	if req.Type != nil {
		appointment.Type = models.AppointmentType(*req.Type)
	}
	if req.Doctor != nil {
		appointment.Doctor = *req.Doctor
	}
	if req.Location != nil {
		appointment.Location = *req.Location
	}
	if req.Notes != nil {
		appointment.Notes = *req.Notes
	}
	if req.Summary != nil {
		appointment.Summary = *req.Summary
	}

	if err := h.DB.Save(appointment).Error; err != nil {
		utils.InternalServerError(c, "Failed to update appointment: "+err.Error())
		return
	}

	utils.Success(c, "Appointment updated successfully", h.annotate(*appointment))
}

// AttendanceRequest marks a past appointment as missed or attended.
type AttendanceRequest struct {
	Missed *bool `json:"missed" validate:"required"`
}

// UpdateAttendance records whether a past appointment actually took place.
func (h *AppointmentHandler) UpdateAttendance(c *gin.Context) {
	var req AttendanceRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	appointment, ok := h.findOwned(c)
	if !ok {
		return
	}

	status, _, err := timeline.ClassifyAppointment(appointment.Date, appointment.Time, h.now(), h.timelineOptions().Location)
	if err != nil {
		utils.Conflict(c, "Appointment has an invalid date or time")
		return
	}
	if status == timeline.StatusUpcoming {
		utils.Conflict(c, "Only past appointments can be marked as missed or attended")
		return
	}

	appointment.Missed = *req.Missed
	if err := h.DB.Model(appointment).Update("missed", appointment.Missed).Error; err != nil {
		utils.InternalServerError(c, "Failed to update attendance: "+err.Error())
		return
	}

	utils.Success(c, "Attendance updated successfully", h.annotate(*appointment))
}

// DeleteAppointment cancels an appointment.
func (h *AppointmentHandler) DeleteAppointment(c *gin.Context) {
	appointment, ok := h.findOwned(c)
	if !ok {
		return
	}

	if err := h.DB.Delete(appointment).Error; err != nil {
		utils.InternalServerError(c, "Failed to cancel appointment: "+err.Error())
		return
	}

	utils.Success(c, "Appointment cancelled successfully", nil)
}
