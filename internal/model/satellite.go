package model

import (
	"time"

	"github.com/google/uuid"
)

// Satellite records live in the unified database but are owned by the sibling
// inverter, weather and meter services. This service only mirrors submission
// statuses onto them, so the mappings below carry just the columns the
// propagator filters and updates by.

// InverterRecord is instant-keyed: one row per site per day with a map of
// named inverter channel outputs.
type InverterRecord struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey"`
	SiteName  string           `gorm:"index;not null"`
	Date      time.Time        `gorm:"index;not null"`
	Status    SubmissionStatus `gorm:"default:Draft"`
	UpdatedAt time.Time
}

func (InverterRecord) TableName() string { return "inverter_records" }

// WeatherRecord is string-keyed: date is stored as "DD-MM-YYYY".
type WeatherRecord struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey"`
	SiteName  string           `gorm:"index"`
	Date      string           `gorm:"index;not null"`
	Time      string           `gorm:"not null"`
	POA       float64          `gorm:"column:poa"`
	Status    SubmissionStatus `gorm:"default:Draft"`
	UpdatedAt time.Time
}

func (WeatherRecord) TableName() string { return "weather_records" }

// MeterRecord is string-keyed and plant-wide: no site dimension.
type MeterRecord struct {
	ID                 uuid.UUID        `gorm:"type:uuid;primaryKey"`
	Date               string           `gorm:"index;not null"`
	Time               string           `gorm:"not null"`
	ActiveEnergyExport float64          `gorm:"not null;default:0"`
	Status             SubmissionStatus `gorm:"default:Draft"`
	UpdatedAt          time.Time
}

func (MeterRecord) TableName() string { return "meter_records" }

// Site is the registry row resolving a free-form site name to the key the
// generation aggregates are stored under.
type Site struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	SiteName string    `gorm:"uniqueIndex;not null"`
}

func (Site) TableName() string { return "sites" }

type DailyGeneration struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey"`
	SiteID    uuid.UUID        `gorm:"type:uuid;index;not null"`
	Date      time.Time        `gorm:"index;not null"`
	Status    SubmissionStatus `gorm:"default:Draft"`
	UpdatedAt time.Time
}

func (DailyGeneration) TableName() string { return "daily_generations" }

// MonthlyGeneration keeps the owning service's zero-based month convention.
type MonthlyGeneration struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey"`
	SiteID    uuid.UUID        `gorm:"type:uuid;index;not null"`
	Year      int              `gorm:"not null"`
	Month     int              `gorm:"not null"`
	Status    SubmissionStatus `gorm:"default:Draft"`
	UpdatedAt time.Time
}

func (MonthlyGeneration) TableName() string { return "monthly_generations" }

type BuildGeneration struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey"`
	SiteID    uuid.UUID        `gorm:"type:uuid;index;not null"`
	Year      int              `gorm:"not null"`
	Status    SubmissionStatus `gorm:"default:Draft"`
	UpdatedAt time.Time
}

func (BuildGeneration) TableName() string { return "build_generations" }
