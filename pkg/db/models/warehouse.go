package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Warehouse is a depot routes depart from.
type Warehouse struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OrganizationID uuid.UUID  `gorm:"column:organization_id;type:uuid;not null;index"`
	Name           string     `gorm:"column:name;type:text;not null"`
	ManagerID      *uuid.UUID `gorm:"column:manager_id;type:uuid"`
}

func (w *Warehouse) BeforeCreate(*gorm.DB) error {
	ensureID(&w.ID)
	return nil
}

// Route is a recurring delivery run with an org-local start time (HH:MM).
type Route struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrganizationID uuid.UUID `gorm:"column:organization_id;type:uuid;not null;index"`
	WarehouseID    uuid.UUID `gorm:"column:warehouse_id;type:uuid;not null"`
	Name           string    `gorm:"column:name;type:text;not null"`
	StartTime      string    `gorm:"column:start_time;type:text;not null"`
}

func (r *Route) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
