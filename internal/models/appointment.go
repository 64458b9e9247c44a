package models

// AppointmentType is the category chosen when booking.
type AppointmentType string

const (
	AppointmentCheckup   AppointmentType = "checkup"
	AppointmentScan      AppointmentType = "scan"
	AppointmentNutrition AppointmentType = "nutrition"
	AppointmentOther     AppointmentType = "other"
)

// Appointment is a scheduled visit. Its Upcoming/Completed status is not
// stored; it is derived from Date and Time whenever the record is read.
type Appointment struct {
	BaseModel
	UserID   string          `gorm:"size:36;index" json:"userId"`
	Title    string          `gorm:"size:255;not null" json:"title"`
	Type     AppointmentType `gorm:"size:20;default:'checkup'" json:"type"`
	Date     string          `gorm:"size:10;index" json:"date"` // YYYY-MM-DD
	Time     string          `gorm:"size:8" json:"time"`        // HH:MM
	Doctor   string          `gorm:"size:200" json:"doctor,omitempty"`
	Location string          `gorm:"size:255" json:"location,omitempty"`
	Notes    string          `gorm:"type:text" json:"notes,omitempty"`
	Summary  string          `gorm:"type:text" json:"summary,omitempty"`
	// Missed is set by the user for a past visit that did not happen.
	Missed bool `gorm:"default:false" json:"missed"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (a Appointment) RecordID() string      { return a.ID }
func (a Appointment) ScheduledDate() string { return a.Date }
func (a Appointment) ScheduledTime() string { return a.Time }
