package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/orro3790/drive-sub008/pkg/enums"
)

// Notification stores in-app notification payloads scoped to an organization.
type Notification struct {
	ID             uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OrganizationID uuid.UUID              `gorm:"column:organization_id;type:uuid;not null;index"`
	UserID         uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index"`
	Type           enums.NotificationType `gorm:"column:type;type:text;not null"`
	Title          string                 `gorm:"column:title;type:text;not null"`
	Body           string                 `gorm:"column:body;type:text;not null"`
	Data           datatypes.JSON         `gorm:"column:data"`
	DedupeKey      *string                `gorm:"column:dedupe_key;type:text;uniqueIndex:ux_notifications_dedupe_key"`
	ReadAt         *time.Time             `gorm:"column:read_at"`
	CreatedAt      time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	ensureID(&n.ID)
	return nil
}

// All lists every model in migration order.
func All() []any {
	return []any{
		&Organization{},
		&DispatchSettings{},
		&Warehouse{},
		&Route{},
		&User{},
		&DriverMetrics{},
		&DriverHealthState{},
		&DriverPreference{},
		&Assignment{},
		&BidWindow{},
		&Bid{},
		&Notification{},
	}
}
