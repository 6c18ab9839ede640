// Package health reads the driver signals produced by the external health
// evaluator and feeds reliability counters back to it.
package health

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/orro3790/drive-sub008/pkg/db/models"
	"github.com/orro3790/drive-sub008/pkg/enums"
	"github.com/orro3790/drive-sub008/pkg/tenant"
)

const (
	familiarityShifts = 10
	seniorityDays     = 365
	familiarityWindow = 90 * 24 * time.Hour
)

// ScoreInputs are the bid scoring signals, each clamped to [0,1].
type ScoreInputs struct {
	Health      float64
	Familiarity float64
	Seniority   float64
	Preference  float64
}

// Provider supplies scoring inputs and the hard-stop gate.
type Provider interface {
	// ScoreInputs returns ok=false when the driver has no health state yet.
	ScoreInputs(ctx context.Context, scope tenant.Scope, userID, routeID uuid.UUID, now time.Time) (ScoreInputs, bool, error)
	IsHardStopped(ctx context.Context, scope tenant.Scope, userID uuid.UUID) (bool, error)
}

// Service is the gorm-backed Provider.
type Service struct {
	db *gorm.DB
}

// NewService binds the provider to db.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// WithTx returns a provider reading through tx.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	if tx == nil {
		return s
	}
	return &Service{db: tx}
}

func (s *Service) ScoreInputs(ctx context.Context, scope tenant.Scope, userID, routeID uuid.UUID, now time.Time) (ScoreInputs, bool, error) {
	db := s.db.WithContext(ctx)

	var state models.DriverHealthState
	err := scope.Apply(db).Where("user_id = ?", userID).Take(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ScoreInputs{}, false, nil
	}
	if err != nil {
		return ScoreInputs{}, false, err
	}

	var user models.User
	if err := scope.Apply(db).Where("id = ?", userID).Take(&user).Error; err != nil {
		return ScoreInputs{}, false, err
	}

	var completed int64
	since := now.Add(-familiarityWindow).UTC()
	if err := scope.Apply(db.Model(&models.Assignment{})).
		Where("user_id = ? AND route_id = ? AND status = ? AND completed_at >= ?", userID, routeID, enums.AssignmentStatusCompleted, since).
		Count(&completed).Error; err != nil {
		return ScoreInputs{}, false, err
	}

	var pref models.DriverPreference
	preferred := false
	err = scope.Apply(db).Where("user_id = ?", userID).Take(&pref).Error
	switch {
	case err == nil:
		preferred = pref.PreferredRouteIDs.Contains(routeID)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return ScoreInputs{}, false, err
	}

	in := ScoreInputs{
		Health:      clamp(state.Score / 100),
		Familiarity: clamp(float64(completed) / familiarityShifts),
	}
	if user.HiredAt != nil {
		in.Seniority = clamp(now.Sub(*user.HiredAt).Hours() / 24 / seniorityDays)
	}
	if preferred {
		in.Preference = 1
	}
	return in, true, nil
}

func (s *Service) IsHardStopped(ctx context.Context, scope tenant.Scope, userID uuid.UUID) (bool, error) {
	var state models.DriverHealthState
	err := scope.Apply(s.db.WithContext(ctx)).Where("user_id = ?", userID).Take(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return state.HardStop, nil
}

// IncrementNoShows bumps the driver's no-show counter, creating the metrics
// row on first use.
func (s *Service) IncrementNoShows(ctx context.Context, scope tenant.Scope, userID uuid.UUID) error {
	row := models.DriverMetrics{UserID: userID, OrganizationID: scope.OrgID(), NoShows: 1}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{"no_shows": gorm.Expr("driver_metrics.no_shows + 1")}),
	}).Create(&row).Error
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
