package assignments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orro3790/drive-sub008/pkg/civil"
	"github.com/orro3790/drive-sub008/pkg/db/models"
	"github.com/orro3790/drive-sub008/pkg/enums"
	"github.com/orro3790/drive-sub008/pkg/tenant"
)

var (
	// ErrNotFound is returned when an assignment is missing from the scope.
	ErrNotFound = errors.New("assignment not found")
	// ErrRouteNotFound is returned when a route is missing from the scope.
	ErrRouteNotFound = errors.New("route not found")
)

// Slot is an assignment joined with its route and resolved shift start.
type Slot struct {
	Assignment models.Assignment
	Route      models.Route
	Warehouse  models.Warehouse
	ShiftStart time.Time
}

// Repository persists assignments. Every write is conditional on the
// current status and reports whether it won.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, a *models.Assignment) error
	Get(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*models.Assignment, error)
	GetRoute(ctx context.Context, scope tenant.Scope, routeID uuid.UUID) (*models.Route, error)
	GetSlot(ctx context.Context, scope tenant.Scope, id uuid.UUID, loc *time.Location) (*Slot, error)
	ClaimUnfilled(ctx context.Context, scope tenant.Scope, id, userID uuid.UUID, by enums.AssignedBy) (bool, error)
	Confirm(ctx context.Context, scope tenant.Scope, id, userID uuid.UUID, now time.Time) (bool, error)
	Arrive(ctx context.Context, scope tenant.Scope, id, userID uuid.UUID, now time.Time) (bool, error)
	Complete(ctx context.Context, scope tenant.Scope, id, userID uuid.UUID, now time.Time) (bool, error)
	Release(ctx context.Context, scope tenant.Scope, id, userID uuid.UUID) (bool, error)
	Cancel(ctx context.Context, scope tenant.Scope, id uuid.UUID, now time.Time) (bool, error)
	MarkNoShow(ctx context.Context, scope tenant.Scope, id, userID uuid.UUID) (bool, error)
	CountActiveInRange(ctx context.Context, scope tenant.Scope, userID uuid.UUID, from, to time.Time) (int64, error)
	HasActiveOnDate(ctx context.Context, scope tenant.Scope, userID uuid.UUID, date time.Time) (bool, error)
	ListNoShowCandidates(ctx context.Context, scope tenant.Scope, dates ...time.Time) ([]Slot, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an assignments repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) scoped(ctx context.Context, scope tenant.Scope) *gorm.DB {
	return scope.Apply(r.db.WithContext(ctx).Model(&models.Assignment{}))
}

func (r *repositoryImpl) Create(ctx context.Context, a *models.Assignment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *repositoryImpl) Get(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*models.Assignment, error) {
	var a models.Assignment
	err := scope.Apply(r.db.WithContext(ctx)).Where("id = ?", id).Take(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repositoryImpl) GetRoute(ctx context.Context, scope tenant.Scope, routeID uuid.UUID) (*models.Route, error) {
	var route models.Route
	err := scope.Apply(r.db.WithContext(ctx)).Where("id = ?", routeID).Take(&route).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRouteNotFound
	}
	if err != nil {
		return nil, err
	}
	return &route, nil
}

func (r *repositoryImpl) GetSlot(ctx context.Context, scope tenant.Scope, id uuid.UUID, loc *time.Location) (*Slot, error) {
	a, err := r.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	return r.slotFor(ctx, scope, *a, loc)
}

func (r *repositoryImpl) slotFor(ctx context.Context, scope tenant.Scope, a models.Assignment, loc *time.Location) (*Slot, error) {
	var route models.Route
	if err := scope.Apply(r.db.WithContext(ctx)).Where("id = ?", a.RouteID).Take(&route).Error; err != nil {
		return nil, err
	}
	var wh models.Warehouse
	if err := scope.Apply(r.db.WithContext(ctx)).Where("id = ?", a.WarehouseID).Take(&wh).Error; err != nil {
		return nil, err
	}
	start, err := ShiftStart(a, route, loc)
	if err != nil {
		return nil, err
	}
	return &Slot{Assignment: a, Route: route, Warehouse: wh, ShiftStart: start}, nil
}

// ShiftStart resolves the route start time on the assignment date in loc.
func ShiftStart(a models.Assignment, route models.Route, loc *time.Location) (time.Time, error) {
	clock, err := civil.ParseClock(route.StartTime)
	if err != nil {
		return time.Time{}, err
	}
	return civil.At(a.CivilDate(), clock, loc), nil
}

func (r *repositoryImpl) ClaimUnfilled(ctx context.Context, scope tenant.Scope, id, userID uuid.UUID, by enums.AssignedBy) (bool, error) {
	res := r.scoped(ctx, scope).
		Where("id = ? AND status = ?", id, enums.AssignmentStatusUnfilled).
		Updates(map[string]any{
			"status":      enums.AssignmentStatusScheduled,
			"user_id":     userID,
			"assigned_by": by,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *repositoryImpl) Confirm(ctx context.Context, scope tenant.Scope, id, userID uuid.UUID, now time.Time) (bool, error) {
	res := r.scoped(ctx, scope).
		Where("id = ? AND user_id = ? AND status = ? AND confirmed_at IS NULL", id, userID, enums.AssignmentStatusScheduled).
		Update("confirmed_at", now.UTC())
	return res.RowsAffected > 0, res.Error
}

func (r *repositoryImpl) Arrive(ctx context.Context, scope tenant.Scope, id, userID uuid.UUID, now time.Time) (bool, error) {
	res := r.scoped(ctx, scope).
		Where("id = ? AND user_id = ? AND status = ? AND arrived_at IS NULL", id, userID, enums.AssignmentStatusScheduled).
		Updates(map[string]any{"status": enums.AssignmentStatusActive, "arrived_at": now.UTC()})
	return res.RowsAffected > 0, res.Error
}

func (r *repositoryImpl) Complete(ctx context.Context, scope tenant.Scope, id, userID uuid.UUID, now time.Time) (bool, error) {
	res := r.scoped(ctx, scope).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, enums.AssignmentStatusActive).
		Updates(map[string]any{"status": enums.AssignmentStatusCompleted, "completed_at": now.UTC()})
	return res.RowsAffected > 0, res.Error
}

// Release returns a driver's scheduled assignment to the unfilled pool.
func (r *repositoryImpl) Release(ctx context.Context, scope tenant.Scope, id, userID uuid.UUID) (bool, error) {
	res := r.scoped(ctx, scope).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, enums.AssignmentStatusScheduled).
		Updates(map[string]any{
			"status":       enums.AssignmentStatusUnfilled,
			"user_id":      nil,
			"assigned_by":  nil,
			"confirmed_at": nil,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *repositoryImpl) Cancel(ctx context.Context, scope tenant.Scope, id uuid.UUID, now time.Time) (bool, error) {
	res := r.scoped(ctx, scope).
		Where("id = ? AND status IN ?", id, []enums.AssignmentStatus{
			enums.AssignmentStatusUnfilled,
			enums.AssignmentStatusScheduled,
			enums.AssignmentStatusActive,
		}).
		Updates(map[string]any{"status": enums.AssignmentStatusCancelled, "cancelled_at": now.UTC()})
	return res.RowsAffected > 0, res.Error
}

// MarkNoShow unassigns a driver who never arrived. Only one concurrent caller
// can win because the guard requires the original driver and no arrival.
func (r *repositoryImpl) MarkNoShow(ctx context.Context, scope tenant.Scope, id, userID uuid.UUID) (bool, error) {
	res := r.scoped(ctx, scope).
		Where("id = ? AND user_id = ? AND arrived_at IS NULL AND status IN ?", id, userID, []enums.AssignmentStatus{
			enums.AssignmentStatusScheduled,
			enums.AssignmentStatusActive,
		}).
		Updates(map[string]any{
			"status":       enums.AssignmentStatusUnfilled,
			"user_id":      nil,
			"assigned_by":  nil,
			"confirmed_at": nil,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *repositoryImpl) CountActiveInRange(ctx context.Context, scope tenant.Scope, userID uuid.UUID, from, to time.Time) (int64, error) {
	var count int64
	err := r.scoped(ctx, scope).
		Where("user_id = ? AND status <> ? AND date >= ? AND date < ?", userID, enums.AssignmentStatusCancelled, from, to).
		Count(&count).Error
	return count, err
}

func (r *repositoryImpl) HasActiveOnDate(ctx context.Context, scope tenant.Scope, userID uuid.UUID, date time.Time) (bool, error) {
	var count int64
	err := r.scoped(ctx, scope).
		Where("user_id = ? AND status <> ? AND date = ?", userID, enums.AssignmentStatusCancelled, civil.Date(date)).
		Count(&count).Error
	return count > 0, err
}

func (r *repositoryImpl) ListNoShowCandidates(ctx context.Context, scope tenant.Scope, dates ...time.Time) ([]Slot, error) {
	days := make([]time.Time, len(dates))
	for i, d := range dates {
		days[i] = civil.Date(d)
	}
	var rows []models.Assignment
	err := scope.Apply(r.db.WithContext(ctx)).
		Where("date IN ? AND user_id IS NOT NULL AND arrived_at IS NULL AND status IN ?", days, []enums.AssignmentStatus{
			enums.AssignmentStatusScheduled,
			enums.AssignmentStatusActive,
		}).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	routes := map[uuid.UUID]models.Route{}
	warehouses := map[uuid.UUID]models.Warehouse{}
	out := make([]Slot, 0, len(rows))
	for _, a := range rows {
		route, ok := routes[a.RouteID]
		if !ok {
			if err := scope.Apply(r.db.WithContext(ctx)).Where("id = ?", a.RouteID).Take(&route).Error; err != nil {
				return nil, err
			}
			routes[a.RouteID] = route
		}
		wh, ok := warehouses[a.WarehouseID]
		if !ok {
			if err := scope.Apply(r.db.WithContext(ctx)).Where("id = ?", a.WarehouseID).Take(&wh).Error; err != nil {
				return nil, err
			}
			warehouses[a.WarehouseID] = wh
		}
		out = append(out, Slot{Assignment: a, Route: route, Warehouse: wh})
	}
	return out, nil
}
