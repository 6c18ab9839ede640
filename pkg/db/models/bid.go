package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/orro3790/drive-sub008/pkg/enums"
)

// Bid is a driver's claim on a bid window. Score is fixed at submission.
type Bid struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrganizationID uuid.UUID           `gorm:"column:organization_id;type:uuid;not null;index"`
	BidWindowID    uuid.UUID           `gorm:"column:bid_window_id;type:uuid;not null;uniqueIndex:ux_bids_window_user;uniqueIndex:ux_bids_window_won,where:status = 'won'"`
	AssignmentID   uuid.UUID           `gorm:"column:assignment_id;type:uuid;not null"`
	UserID         uuid.UUID           `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_bids_window_user"`
	Score          decimal.NullDecimal `gorm:"column:score;type:numeric(6,4)"`
	Status         enums.BidStatus     `gorm:"column:status;type:text;not null"`
	BidAt          time.Time           `gorm:"column:bid_at;not null"`
	WindowClosesAt time.Time           `gorm:"column:window_closes_at;not null"`
	ResolvedAt     *time.Time          `gorm:"column:resolved_at"`
}

func (b *Bid) BeforeCreate(*gorm.DB) error {
	ensureID(&b.ID)
	return nil
}
