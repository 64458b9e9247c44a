package models

// SymptomLog is one day's symptom and mood entry.
type SymptomLog struct {
	BaseModel
	UserID   string     `gorm:"size:36;index" json:"userId"`
	Date     string     `gorm:"size:10;index" json:"date"`
	Symptoms StringList `gorm:"type:text" json:"symptoms"`
	Moods    StringList `gorm:"type:text" json:"moods"`
	Notes    string     `gorm:"type:text" json:"notes,omitempty"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

// WeightLog is a single weigh-in, in pounds.
type WeightLog struct {
	BaseModel
	UserID    string  `gorm:"size:36;index" json:"userId"`
	Date      string  `gorm:"size:10;index" json:"date"`
	WeightLbs float64 `gorm:"not null" json:"weightLbs"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}
