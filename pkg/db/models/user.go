package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/orro3790/drive-sub008/pkg/db/types"
	"github.com/orro3790/drive-sub008/pkg/enums"
)

// DefaultWeeklyCap is the shift limit for drivers without an explicit cap.
const DefaultWeeklyCap = 4

// User is a driver, manager or admin within an organization.
type User struct {
	ID             uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	OrganizationID uuid.UUID      `gorm:"column:organization_id;type:uuid;not null;index"`
	FullName       string         `gorm:"column:full_name;type:text;not null"`
	Role           enums.UserRole `gorm:"column:role;type:text;not null"`
	WeeklyCap      int            `gorm:"column:weekly_cap;not null"`
	HiredAt        *time.Time     `gorm:"column:hired_at"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	if u.WeeklyCap <= 0 {
		u.WeeklyCap = DefaultWeeklyCap
	}
	return nil
}

// DriverMetrics accumulates reliability counters consumed by health scoring.
type DriverMetrics struct {
	UserID          uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	OrganizationID  uuid.UUID `gorm:"column:organization_id;type:uuid;not null;index"`
	NoShows         int       `gorm:"column:no_shows;not null"`
	CompletedShifts int       `gorm:"column:completed_shifts;not null"`
	CancelledShifts int       `gorm:"column:cancelled_shifts;not null"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// DriverHealthState is written by the external health evaluator.
type DriverHealthState struct {
	UserID         uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	OrganizationID uuid.UUID `gorm:"column:organization_id;type:uuid;not null;index"`
	Score          float64   `gorm:"column:score;not null"`
	HardStop       bool      `gorm:"column:hard_stop;not null"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// DriverPreference lists routes a driver would rather run.
type DriverPreference struct {
	UserID            uuid.UUID         `gorm:"column:user_id;type:uuid;primaryKey"`
	OrganizationID    uuid.UUID         `gorm:"column:organization_id;type:uuid;not null;index"`
	PreferredRouteIDs dbtypes.UUIDArray `gorm:"column:preferred_route_ids;not null"`
}
