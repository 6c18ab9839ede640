package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultTimezone applies when an organization has no zone configured.
const DefaultTimezone = "America/Toronto"

// Organization is the tenant boundary for every dispatch row.
type Organization struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;type:text;not null"`
	Timezone  string    `gorm:"column:timezone;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (o *Organization) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	if o.Timezone == "" {
		o.Timezone = DefaultTimezone
	}
	return nil
}

// Location resolves the organization's IANA zone, falling back to the default.
func (o Organization) Location() *time.Location {
	if loc, err := time.LoadLocation(o.Timezone); err == nil {
		return loc
	}
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DispatchSettings holds per-organization knobs consumed by the dispatch engine.
type DispatchSettings struct {
	OrganizationID        uuid.UUID `gorm:"column:organization_id;type:uuid;primaryKey"`
	EmergencyBonusPercent int       `gorm:"column:emergency_bonus_percent;not null"`
	NoShowGraceMinutes    int       `gorm:"column:no_show_grace_minutes;not null"`
	UpdatedAt             time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (DispatchSettings) TableName() string {
	return "dispatch_settings"
}
