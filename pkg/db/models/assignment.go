package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/orro3790/drive-sub008/pkg/enums"
)

// Index names referenced by conflict handling.
const (
	IndexAssignmentsUserDateActive = "ux_assignments_user_date_active"
	IndexBidWindowsAssignmentOpen  = "ux_bid_windows_assignment_open"
	IndexBidWindowsNoShow          = "ux_bid_windows_assignment_no_show"
	IndexBidsWindowUser            = "ux_bids_window_user"
	IndexBidsWindowWon             = "ux_bids_window_won"
)

// Assignment is one route on one calendar date, optionally held by a driver.
// Date is a civil date stored at UTC midnight.
type Assignment struct {
	ID             uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OrganizationID uuid.UUID              `gorm:"column:organization_id;type:uuid;not null;index"`
	RouteID        uuid.UUID              `gorm:"column:route_id;type:uuid;not null"`
	WarehouseID    uuid.UUID              `gorm:"column:warehouse_id;type:uuid;not null"`
	UserID         *uuid.UUID             `gorm:"column:user_id;type:uuid;uniqueIndex:ux_assignments_user_date_active,where:status <> 'cancelled' AND user_id IS NOT NULL"`
	Date           datatypes.Date         `gorm:"column:date;not null;uniqueIndex:ux_assignments_user_date_active,where:status <> 'cancelled' AND user_id IS NOT NULL"`
	Status         enums.AssignmentStatus `gorm:"column:status;type:text;not null"`
	AssignedBy     *enums.AssignedBy      `gorm:"column:assigned_by;type:text"`
	ConfirmedAt    *time.Time             `gorm:"column:confirmed_at"`
	ArrivedAt      *time.Time             `gorm:"column:arrived_at"`
	CompletedAt    *time.Time             `gorm:"column:completed_at"`
	CancelledAt    *time.Time             `gorm:"column:cancelled_at"`
	CreatedAt      time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *Assignment) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// CivilDate returns the assignment date as a UTC-midnight time.
func (a Assignment) CivilDate() time.Time {
	return time.Time(a.Date)
}

// BidWindow is a time-bounded opportunity to claim an unfilled assignment.
type BidWindow struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OrganizationID  uuid.UUID              `gorm:"column:organization_id;type:uuid;not null;index"`
	AssignmentID    uuid.UUID              `gorm:"column:assignment_id;type:uuid;not null;uniqueIndex:ux_bid_windows_assignment_open,where:status = 'open';uniqueIndex:ux_bid_windows_assignment_no_show,where:trigger_type = 'no_show' AND status = 'open'"`
	Mode            enums.BidWindowMode    `gorm:"column:mode;type:text;not null"`
	Trigger         enums.BidWindowTrigger `gorm:"column:trigger_type;type:text;not null"`
	PayBonusPercent int                    `gorm:"column:pay_bonus_percent;not null"`
	OpensAt         time.Time              `gorm:"column:opens_at;not null"`
	ClosesAt        time.Time              `gorm:"column:closes_at;not null;index"`
	Status          enums.BidWindowStatus  `gorm:"column:status;type:text;not null"`
	WinnerID        *uuid.UUID             `gorm:"column:winner_id;type:uuid"`
	ResolvedAt      *time.Time             `gorm:"column:resolved_at"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (w *BidWindow) BeforeCreate(*gorm.DB) error {
	ensureID(&w.ID)
	return nil
}
