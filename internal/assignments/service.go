package assignments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/orro3790/drive-sub008/pkg/civil"
	"github.com/orro3790/drive-sub008/pkg/db"
	"github.com/orro3790/drive-sub008/pkg/db/models"
	"github.com/orro3790/drive-sub008/pkg/enums"
	pkgerrors "github.com/orro3790/drive-sub008/pkg/errors"
	"github.com/orro3790/drive-sub008/pkg/logger"
	"github.com/orro3790/drive-sub008/pkg/tenant"
)

// WindowOpener opens a bid window for an assignment that just became unfilled.
type WindowOpener interface {
	OpenWindow(ctx context.Context, scope tenant.Scope, assignmentID uuid.UUID, trigger enums.BidWindowTrigger, now time.Time) (uuid.UUID, error)
}

// Result is the outcome of a lifecycle transition.
type Result struct {
	Success     bool         `json:"success"`
	Reason      enums.Reason `json:"reason,omitempty"`
	BidWindowID *uuid.UUID   `json:"bidWindowId,omitempty"`
}

// CreateUnfilledInput is the scheduler's request for a new open slot.
type CreateUnfilledInput struct {
	RouteID    uuid.UUID
	Date       time.Time
	OpenWindow bool
	Now        time.Time
}

// CancelInput describes who cancels. Drivers release their own route back to
// the pool; managers cancel the slot outright.
type CancelInput struct {
	AssignmentID uuid.UUID
	ActorID      uuid.UUID
	ByManager    bool
	Now          time.Time
}

// Service implements the assignment lifecycle.
type Service struct {
	tx      db.Transactor
	repo    Repository
	windows WindowOpener
	logg    *logger.Logger
}

// NewService wires the lifecycle service. windows may be nil, in which case
// no window is opened when an assignment becomes unfilled.
func NewService(tx db.Transactor, repo Repository, windows WindowOpener, logg *logger.Logger) *Service {
	return &Service{tx: tx, repo: repo, windows: windows, logg: logg}
}

// SetWindowOpener attaches the window opener after construction.
func (s *Service) SetWindowOpener(w WindowOpener) {
	s.windows = w
}

// CreateUnfilled inserts an unfilled assignment for a route and date and
// optionally opens its bid window.
func (s *Service) CreateUnfilled(ctx context.Context, scope tenant.Scope, in CreateUnfilledInput) (*models.Assignment, *uuid.UUID, error) {
	route, err := s.repo.GetRoute(ctx, scope, in.RouteID)
	if errors.Is(err, ErrRouteNotFound) {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "route not found")
	}
	if err != nil {
		return nil, nil, pkgerrors.Dependency(err, "load route")
	}

	a := &models.Assignment{
		OrganizationID: scope.OrgID(),
		RouteID:        route.ID,
		WarehouseID:    route.WarehouseID,
		Date:           datatypes.Date(civil.Date(in.Date)),
		Status:         enums.AssignmentStatusUnfilled,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, nil, pkgerrors.Dependency(err, "create assignment")
	}

	if !in.OpenWindow || s.windows == nil {
		return a, nil, nil
	}
	windowID, err := s.windows.OpenWindow(ctx, scope, a.ID, enums.BidWindowTriggerAuto, in.Now)
	if err != nil {
		return a, nil, err
	}
	if windowID == uuid.Nil {
		return a, nil, nil
	}
	return a, &windowID, nil
}

func (s *Service) Confirm(ctx context.Context, scope tenant.Scope, id, userID uuid.UUID, now time.Time) (Result, error) {
	return s.transition(ctx, scope, id, func() (bool, error) {
		return s.repo.Confirm(ctx, scope, id, userID, now)
	})
}

func (s *Service) Arrive(ctx context.Context, scope tenant.Scope, id, userID uuid.UUID, now time.Time) (Result, error) {
	return s.transition(ctx, scope, id, func() (bool, error) {
		return s.repo.Arrive(ctx, scope, id, userID, now)
	})
}

func (s *Service) Complete(ctx context.Context, scope tenant.Scope, id, userID uuid.UUID, now time.Time) (Result, error) {
	return s.transition(ctx, scope, id, func() (bool, error) {
		return s.repo.Complete(ctx, scope, id, userID, now)
	})
}

// Cancel releases or cancels an assignment. A driver cancellation returns
// the slot to unfilled and opens a window with trigger cancellation. A
// manager cancellation also closes any open window for the slot.
func (s *Service) Cancel(ctx context.Context, scope tenant.Scope, in CancelInput) (Result, error) {
	if in.ByManager {
		var won bool
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			ok, err := s.repo.WithTx(tx).Cancel(ctx, scope, in.AssignmentID, in.Now)
			if err != nil || !ok {
				won = false
				return err
			}
			won = true
			return scope.Apply(tx.WithContext(ctx).Model(&models.BidWindow{})).
				Where("assignment_id = ? AND status = ?", in.AssignmentID, enums.BidWindowStatusOpen).
				Updates(map[string]any{"status": enums.BidWindowStatusClosed, "resolved_at": in.Now.UTC()}).Error
		})
		if err != nil {
			return Result{}, pkgerrors.Dependency(err, "cancel assignment")
		}
		if !won {
			return s.failure(ctx, scope, in.AssignmentID)
		}
		s.logg.Info(s.logg.WithDispatch(ctx, in.AssignmentID.String(), ""), "assignment.cancelled")
		return Result{Success: true}, nil
	}

	res, err := s.transition(ctx, scope, in.AssignmentID, func() (bool, error) {
		return s.repo.Release(ctx, scope, in.AssignmentID, in.ActorID)
	})
	if err != nil || !res.Success || s.windows == nil {
		return res, err
	}
	windowID, err := s.windows.OpenWindow(ctx, scope, in.AssignmentID, enums.BidWindowTriggerCancellation, in.Now)
	if err != nil {
		return res, err
	}
	if windowID != uuid.Nil {
		res.BidWindowID = &windowID
	}
	s.logg.Info(s.logg.WithDispatch(ctx, in.AssignmentID.String(), windowID.String()), "assignment.released")
	return res, nil
}

func (s *Service) transition(ctx context.Context, scope tenant.Scope, id uuid.UUID, apply func() (bool, error)) (Result, error) {
	ok, err := apply()
	if err != nil {
		return Result{}, pkgerrors.Dependency(err, "update assignment")
	}
	if !ok {
		return s.failure(ctx, scope, id)
	}
	return Result{Success: true}, nil
}

func (s *Service) failure(ctx context.Context, scope tenant.Scope, id uuid.UUID) (Result, error) {
	_, err := s.repo.Get(ctx, scope, id)
	switch {
	case errors.Is(err, ErrNotFound):
		return Result{Reason: enums.ReasonAssignmentNotFound}, nil
	case err != nil:
		return Result{}, pkgerrors.Dependency(err, "load assignment")
	default:
		return Result{Reason: enums.ReasonInvalidTransition}, nil
	}
}
