package settings

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orro3790/drive-sub008/pkg/config"
	"github.com/orro3790/drive-sub008/pkg/db/models"
	"github.com/orro3790/drive-sub008/pkg/tenant"
)

// Settings are the per-organization dispatch parameters, with defaults filled in.
type Settings struct {
	OrganizationID        uuid.UUID
	EmergencyBonusPercent int
	NoShowGraceMinutes    int
	Location              *time.Location
}

// Grace returns the no-show grace period.
func (s Settings) Grace() time.Duration {
	return time.Duration(s.NoShowGraceMinutes) * time.Minute
}

// Repository reads organization settings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, scope tenant.Scope) (Settings, error)
	ListOrganizationIDs(ctx context.Context) ([]uuid.UUID, error)
}

// ErrOrganizationNotFound is returned when the scope names an unknown org.
var ErrOrganizationNotFound = errors.New("organization not found")

type repositoryImpl struct {
	db       *gorm.DB
	defaults config.DispatchConfig
}

// NewRepository binds the repository to db; defaults apply when an
// organization has no settings row.
func NewRepository(db *gorm.DB, defaults config.DispatchConfig) Repository {
	return &repositoryImpl{db: db, defaults: defaults}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx, defaults: r.defaults}
}

func (r *repositoryImpl) Get(ctx context.Context, scope tenant.Scope) (Settings, error) {
	var org models.Organization
	err := r.db.WithContext(ctx).Where("id = ?", scope.OrgID()).Take(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Settings{}, ErrOrganizationNotFound
	}
	if err != nil {
		return Settings{}, err
	}

	out := Settings{
		OrganizationID:        org.ID,
		EmergencyBonusPercent: r.defaults.DefaultEmergencyBonus,
		NoShowGraceMinutes:    r.defaults.DefaultGraceMinutes,
		Location:              org.Location(),
	}

	var row models.DispatchSettings
	err = scope.Apply(r.db.WithContext(ctx)).Take(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return out, nil
	case err != nil:
		return Settings{}, err
	}
	out.EmergencyBonusPercent = row.EmergencyBonusPercent
	out.NoShowGraceMinutes = row.NoShowGraceMinutes
	return out, nil
}

func (r *repositoryImpl) ListOrganizationIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&models.Organization{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
