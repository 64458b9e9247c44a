package models

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VaccineStatus is the user's decision about a catalog vaccine.
type VaccineStatus string

const (
	VaccineRecommended VaccineStatus = "Recommended"
	VaccineCompleted   VaccineStatus = "Completed"
	VaccineDeclined    VaccineStatus = "Declined"
)

// VaccineCategory separates vaccines for the mother from the baby's schedule.
type VaccineCategory string

const (
	VaccineMaternal VaccineCategory = "maternal"
	VaccineInfant   VaccineCategory = "infant"
)

// VaccineDefinition is one entry of the built-in catalog.
type VaccineDefinition struct {
	Code            string
	Category        VaccineCategory
	Name            string
	Description     string
	Timing          string
	ProtectsAgainst []string
}

// VaccineCatalog lists the tracked vaccines in display order.
var VaccineCatalog = []VaccineDefinition{
	{
		Code:            "influenza",
		Category:        VaccineMaternal,
		Name:            "Influenza (Flu) Shot",
		Description:     "The inactivated flu vaccine is recommended for pregnant women during flu season (October through May).",
		Timing:          "Any trimester",
		ProtectsAgainst: []string{"Influenza"},
	},
	{
		Code:            "tdap",
		Category:        VaccineMaternal,
		Name:            "Tetanus, Diphtheria, and Pertussis (Tdap)",
		Description:     "The Tdap vaccine helps protect against pertussis (whooping cough), which is serious for newborns.",
		Timing:          "Between 27 and 36 weeks of each pregnancy",
		ProtectsAgainst: []string{"Tetanus", "Diphtheria", "Pertussis"},
	},
	{
		Code:            "covid-19",
		Category:        VaccineMaternal,
		Name:            "COVID-19 Vaccine",
		Description:     "Staying up to date with COVID-19 vaccines is recommended before, during, and after pregnancy.",
		Timing:          "Any trimester",
		ProtectsAgainst: []string{"COVID-19"},
	},
	{
		Code:            "hepb",
		Category:        VaccineInfant,
		Name:            "Hepatitis B (HepB)",
		Description:     "First dose given to most newborns before they leave the hospital.",
		Timing:          "Birth",
		ProtectsAgainst: []string{"Hepatitis B"},
	},
	{
		Code:            "dtap",
		Category:        VaccineInfant,
		Name:            "Diphtheria, Tetanus, and Pertussis (DTaP)",
		Description:     "A 5-dose series for infants and children.",
		Timing:          "2, 4, 6, 15-18 months, 4-6 years",
		ProtectsAgainst: []string{"Diphtheria", "Tetanus", "Pertussis"},
	},
	{
		Code:            "hib",
		Category:        VaccineInfant,
		Name:            "Haemophilus influenzae type b (Hib)",
		Description:     "Protects against a leading cause of bacterial meningitis in children.",
		Timing:          "2, 4, 6, 12-15 months",
		ProtectsAgainst: []string{"Meningitis", "Pneumonia", "Epiglottitis"},
	},
	{
		Code:            "pcv13",
		Category:        VaccineInfant,
		Name:            "Pneumococcal (PCV13)",
		Description:     "Protects against pneumococcal disease, which can cause ear infections, pneumonia, and meningitis.",
		Timing:          "2, 4, 6, 12-15 months",
		ProtectsAgainst: []string{"Pneumonia", "Meningitis"},
	},
	{
		Code:            "ipv",
		Category:        VaccineInfant,
		Name:            "Polio (IPV)",
		Description:     "Protects against poliovirus, a disabling and life-threatening disease.",
		Timing:          "2, 4, 6-18 months, 4-6 years",
		ProtectsAgainst: []string{"Poliomyelitis"},
	},
	{
		Code:            "rotavirus",
		Category:        VaccineInfant,
		Name:            "Rotavirus (RV)",
		Description:     "Protects against rotavirus, which causes severe diarrhea, mostly in babies and young children.",
		Timing:          "2, 4, 6 months",
		ProtectsAgainst: []string{"Rotavirus"},
	},
}

// Vaccination is a user's copy of a catalog vaccine and its status.
type Vaccination struct {
	BaseModel
	UserID          string          `gorm:"size:36;not null;uniqueIndex:idx_vaccination_user_code" json:"userId"`
	Code            string          `gorm:"size:50;not null;uniqueIndex:idx_vaccination_user_code" json:"code"`
	Category        VaccineCategory `gorm:"size:20;not null" json:"category"`
	Name            string          `gorm:"size:200;not null" json:"name"`
	Description     string          `gorm:"type:text" json:"description"`
	Timing          string          `gorm:"size:200" json:"timing"`
	ProtectsAgainst StringList      `gorm:"type:text" json:"protectsAgainst"`
	Status          VaccineStatus   `gorm:"size:20;not null;default:'Recommended'" json:"status"`
	DateGiven       *string         `gorm:"size:10" json:"dateGiven,omitempty"` // YYYY-MM-DD, Completed only
	Notes           string          `gorm:"type:text" json:"notes,omitempty"`
	Position        int             `json:"-"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

// SeedVaccinations adds any catalog vaccines the user does not have yet.
// Existing rows, and their statuses, are never touched.
func SeedVaccinations(db *gorm.DB, userID string) error {
	var have []string
	if err := db.Model(&Vaccination{}).Where("user_id = ?", userID).Pluck("code", &have).Error; err != nil {
		return fmt.Errorf("failed to load vaccinations: %w", err)
	}
	existing := make(map[string]bool, len(have))
	for _, code := range have {
		existing[code] = true
	}

	var missing []Vaccination
	for i, def := range VaccineCatalog {
		if existing[def.Code] {
			continue
		}
		missing = append(missing, Vaccination{
			UserID:          userID,
			Code:            def.Code,
			Category:        def.Category,
			Name:            def.Name,
			Description:     def.Description,
			Timing:          def.Timing,
			ProtectsAgainst: StringList(def.ProtectsAgainst),
			Status:          VaccineRecommended,
			Position:        i,
		})
	}
	if len(missing) == 0 {
		return nil
	}
	// A concurrent first fetch may insert the same codes.
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&missing).Error; err != nil {
		return fmt.Errorf("failed to seed vaccinations: %w", err)
	}
	return nil
}
