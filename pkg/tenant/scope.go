// Package tenant carries the organization boundary through every data access.
package tenant

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrMissingOrganization is returned when a scope is built without an org id.
var ErrMissingOrganization = errors.New("organization id is required")

// Scope restricts queries to a single organization. The zero value matches
// no rows.
type Scope struct {
	orgID uuid.UUID
}

// NewScope builds a scope for orgID.
func NewScope(orgID uuid.UUID) (Scope, error) {
	if orgID == uuid.Nil {
		return Scope{}, ErrMissingOrganization
	}
	return Scope{orgID: orgID}, nil
}

// OrgID returns the organization the scope is bound to.
func (s Scope) OrgID() uuid.UUID {
	return s.orgID
}

// IsZero reports whether the scope was never bound.
func (s Scope) IsZero() bool {
	return s.orgID == uuid.Nil
}

// Apply adds the organization filter to db.
func (s Scope) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("organization_id = ?", s.orgID)
}
