// Package instantassign lets the first driver to accept an instant or
// emergency window take the route, and lets managers assign directly.
package instantassign

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/orro3790/drive-sub008/internal/assignments"
	"github.com/orro3790/drive-sub008/internal/bidding"
	"github.com/orro3790/drive-sub008/internal/eligibility"
	"github.com/orro3790/drive-sub008/internal/health"
	"github.com/orro3790/drive-sub008/internal/notifications"
	"github.com/orro3790/drive-sub008/internal/resolution"
	"github.com/orro3790/drive-sub008/internal/settings"
	"github.com/orro3790/drive-sub008/pkg/db"
	"github.com/orro3790/drive-sub008/pkg/db/models"
	"github.com/orro3790/drive-sub008/pkg/enums"
	pkgerrors "github.com/orro3790/drive-sub008/pkg/errors"
	"github.com/orro3790/drive-sub008/pkg/logger"
	"github.com/orro3790/drive-sub008/pkg/metrics"
	"github.com/orro3790/drive-sub008/pkg/tenant"
)

// failure aborts the assignment transaction with a typed code.
type failure struct {
	code enums.Reason
}

func (f failure) Error() string {
	return string(f.code)
}

type Eligibility interface {
	CheckForDate(ctx context.Context, scope tenant.Scope, userID uuid.UUID, date time.Time) (eligibility.Result, error)
}

type InstantAssignInput struct {
	AssignmentID uuid.UUID
	UserID       uuid.UUID
	BidWindowID  uuid.UUID
	Now          time.Time
}

// InstantAssignResult is returned by both accept paths. Code is empty on
// success; Error carries the human readable message for Code.
type InstantAssignResult struct {
	InstantlyAssigned bool         `json:"instantlyAssigned"`
	BidID             *uuid.UUID   `json:"bidId,omitempty"`
	Error             string       `json:"error,omitempty"`
	Code              enums.Reason `json:"code,omitempty"`
}

type ManagerAssignInput struct {
	AssignmentID uuid.UUID
	UserID       uuid.UUID
	ManagerID    uuid.UUID
	Now          time.Time
}

type Deps struct {
	Tx          db.Transactor
	Windows     bidding.Repository
	Assignments assignments.Repository
	Settings    settings.Repository
	Eligibility Eligibility
	Health      health.Provider
	Notifier    notifications.Dispatcher
	Metrics     *metrics.DispatchMetrics
	Logger      *logger.Logger
}

type Resolver struct {
	deps Deps
}

func NewResolver(deps Deps) *Resolver {
	return &Resolver{deps: deps}
}

func fail(code enums.Reason) InstantAssignResult {
	return InstantAssignResult{Code: code, Error: code.Message()}
}

// InstantAssign gives the route to the first eligible driver who accepts an
// open instant or emergency window. Losing a race is reported through Code
// and never retried.
func (r *Resolver) InstantAssign(ctx context.Context, scope tenant.Scope, in InstantAssignInput) (InstantAssignResult, error) {
	ctx = r.deps.Logger.WithDispatch(ctx, in.AssignmentID.String(), in.BidWindowID.String())
	ctx = r.deps.Logger.WithUserID(ctx, in.UserID.String())

	res, err := r.instantAssign(ctx, scope, in)
	if err != nil {
		r.deps.Metrics.IncInstantAssign("error")
		return InstantAssignResult{}, err
	}
	if !res.InstantlyAssigned {
		r.deps.Metrics.IncInstantAssign(string(res.Code))
		r.deps.Logger.Info(r.deps.Logger.WithField(ctx, "code", string(res.Code)), "instant_assign.rejected")
		return res, nil
	}
	r.deps.Metrics.IncInstantAssign("assigned")
	r.deps.Logger.Info(ctx, "instant_assign.assigned")
	return res, nil
}

func (r *Resolver) instantAssign(ctx context.Context, scope tenant.Scope, in InstantAssignInput) (InstantAssignResult, error) {
	w, err := r.deps.Windows.GetWindow(ctx, scope, in.BidWindowID)
	if errors.Is(err, bidding.ErrWindowNotFound) {
		return fail(enums.ReasonWindowNotFound), nil
	}
	if err != nil {
		return InstantAssignResult{}, pkgerrors.Dependency(err, "load bid window")
	}
	if w.AssignmentID != in.AssignmentID {
		return fail(enums.ReasonWindowNotFound), nil
	}
	if w.Status != enums.BidWindowStatusOpen {
		return fail(enums.ReasonWindowClosed), nil
	}
	if !w.Mode.IsFirstAccept() {
		return fail(enums.ReasonWindowIsCompetitive), nil
	}
	if !in.Now.Before(w.ClosesAt) {
		return fail(enums.ReasonWindowExpired), nil
	}

	cfg, err := r.deps.Settings.Get(ctx, scope)
	if err != nil {
		return InstantAssignResult{}, pkgerrors.Dependency(err, "load dispatch settings")
	}
	slot, err := r.deps.Assignments.GetSlot(ctx, scope, w.AssignmentID, cfg.Location)
	if errors.Is(err, assignments.ErrNotFound) {
		return fail(enums.ReasonWindowNotFound), nil
	}
	if err != nil {
		return InstantAssignResult{}, pkgerrors.Dependency(err, "load assignment")
	}
	if slot.Assignment.Status != enums.AssignmentStatusUnfilled {
		return fail(enums.ReasonRouteAlreadyAssigned), nil
	}

	check, err := r.deps.Eligibility.CheckForDate(ctx, scope, in.UserID, slot.Assignment.CivilDate())
	if err != nil {
		return InstantAssignResult{}, pkgerrors.Dependency(err, "check eligibility")
	}
	if !check.Eligible {
		if check.IsSameDayConflict() {
			return fail(enums.ReasonDriverAlreadyAssigned), nil
		}
		return fail(enums.ReasonDriverIneligible), nil
	}

	score, err := r.score(ctx, scope, in.UserID, slot.Assignment.RouteID, in.Now)
	if err != nil {
		return InstantAssignResult{}, err
	}

	var won *models.Bid
	err = r.deps.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		windows := r.deps.Windows.WithTx(tx)

		ok, err := windows.ResolveWindow(ctx, scope, w.ID, in.UserID, in.Now)
		if err != nil {
			return err
		}
		if !ok {
			return failure{enums.ReasonRouteAlreadyAssigned}
		}

		claimed, err := r.deps.Assignments.WithTx(tx).ClaimUnfilled(ctx, scope, w.AssignmentID, in.UserID, enums.AssignedByBid)
		if db.IsUniqueViolation(err, models.IndexAssignmentsUserDateActive) {
			return failure{enums.ReasonDriverAlreadyAssigned}
		}
		if err != nil {
			return err
		}
		if !claimed {
			return failure{enums.ReasonRouteAlreadyAssigned}
		}

		won, err = windows.PromoteOrInsertWonBid(ctx, scope, *w, in.UserID, score, in.Now)
		if err != nil {
			return err
		}
		if won == nil {
			return failure{enums.ReasonRouteAlreadyAssigned}
		}
		_, err = windows.MarkOthersLost(ctx, scope, w.ID, &won.ID, in.Now)
		return err
	})

	var f failure
	if errors.As(err, &f) {
		return fail(f.code), nil
	}
	if db.IsUniqueViolation(err, "") {
		return fail(enums.ReasonRouteAlreadyAssigned), nil
	}
	if err != nil {
		return InstantAssignResult{}, pkgerrors.Dependency(err, "instant assign")
	}

	r.notifyAssigned(ctx, *slot, *w, in.UserID, enums.NotificationTypeBidWon, "bid_won:"+won.ID.String())
	return InstantAssignResult{InstantlyAssigned: true, BidID: &won.ID}, nil
}

func (r *Resolver) score(ctx context.Context, scope tenant.Scope, userID, routeID uuid.UUID, now time.Time) (decimal.NullDecimal, error) {
	if r.deps.Health == nil {
		return decimal.NullDecimal{}, nil
	}
	inputs, ok, err := r.deps.Health.ScoreInputs(ctx, scope, userID, routeID, now)
	if err != nil {
		return decimal.NullDecimal{}, pkgerrors.Dependency(err, "load score inputs")
	}
	if !ok {
		return decimal.NullDecimal{}, nil
	}
	return decimal.NewNullDecimal(resolution.Score(inputs)), nil
}

// ManagerAssign assigns a driver directly. When a window is open for the
// assignment it is closed with the driver as winner in the same
// transaction, so a racing instant accept and the manager cannot both win.
func (r *Resolver) ManagerAssign(ctx context.Context, scope tenant.Scope, in ManagerAssignInput) (InstantAssignResult, error) {
	ctx = r.deps.Logger.WithDispatch(ctx, in.AssignmentID.String(), "")
	ctx = r.deps.Logger.WithFields(ctx, map[string]any{"user_id": in.UserID.String(), "manager_id": in.ManagerID.String()})

	cfg, err := r.deps.Settings.Get(ctx, scope)
	if err != nil {
		return InstantAssignResult{}, pkgerrors.Dependency(err, "load dispatch settings")
	}
	slot, err := r.deps.Assignments.GetSlot(ctx, scope, in.AssignmentID, cfg.Location)
	if errors.Is(err, assignments.ErrNotFound) {
		return fail(enums.ReasonAssignmentNotFound), nil
	}
	if err != nil {
		return InstantAssignResult{}, pkgerrors.Dependency(err, "load assignment")
	}
	if slot.Assignment.Status != enums.AssignmentStatusUnfilled {
		r.deps.Metrics.IncInstantAssign("manager_" + string(enums.ReasonRouteAlreadyAssigned))
		return fail(enums.ReasonRouteAlreadyAssigned), nil
	}

	check, err := r.deps.Eligibility.CheckForDate(ctx, scope, in.UserID, slot.Assignment.CivilDate())
	if err != nil {
		return InstantAssignResult{}, pkgerrors.Dependency(err, "check eligibility")
	}
	if !check.Eligible {
		code := enums.ReasonDriverIneligible
		if check.IsSameDayConflict() {
			code = enums.ReasonDriverAlreadyAssigned
		}
		return fail(code), nil
	}

	open, err := r.deps.Windows.FindOpenWindow(ctx, scope, in.AssignmentID)
	if err != nil && !errors.Is(err, bidding.ErrWindowNotFound) {
		return InstantAssignResult{}, pkgerrors.Dependency(err, "load bid window")
	}

	err = r.deps.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		windows := r.deps.Windows.WithTx(tx)
		if open != nil {
			closed, err := windows.CloseWindow(ctx, scope, open.ID, &in.UserID, in.Now)
			if err != nil {
				return err
			}
			if !closed {
				return failure{enums.ReasonRouteAlreadyAssigned}
			}
		}

		claimed, err := r.deps.Assignments.WithTx(tx).ClaimUnfilled(ctx, scope, in.AssignmentID, in.UserID, enums.AssignedByManager)
		if db.IsUniqueViolation(err, models.IndexAssignmentsUserDateActive) {
			return failure{enums.ReasonDriverAlreadyAssigned}
		}
		if err != nil {
			return err
		}
		if !claimed {
			return failure{enums.ReasonRouteAlreadyAssigned}
		}

		if open != nil {
			_, err = windows.MarkOthersLost(ctx, scope, open.ID, nil, in.Now)
		}
		return err
	})

	var f failure
	if errors.As(err, &f) {
		r.deps.Metrics.IncInstantAssign("manager_" + string(f.code))
		return fail(f.code), nil
	}
	if err != nil {
		return InstantAssignResult{}, pkgerrors.Dependency(err, "manager assign")
	}

	r.deps.Metrics.IncInstantAssign("manager_assigned")
	r.deps.Logger.Info(ctx, "manager_assign.assigned")
	windowID := uuid.Nil
	if open != nil {
		windowID = open.ID
	}
	r.notifyAssigned(ctx, *slot, models.BidWindow{ID: windowID, OrganizationID: slot.Assignment.OrganizationID}, in.UserID,
		enums.NotificationTypeRouteAssigned, "route_assigned:"+in.AssignmentID.String()+":"+in.UserID.String())
	return InstantAssignResult{InstantlyAssigned: true}, nil
}

func (r *Resolver) notifyAssigned(ctx context.Context, slot assignments.Slot, w models.BidWindow, userID uuid.UUID, kind enums.NotificationType, dedupe string) {
	if r.deps.Notifier == nil {
		return
	}
	summary := r.deps.Notifier.Dispatch(ctx, []notifications.Message{{
		Type:      kind,
		UserID:    userID,
		OrgID:     slot.Assignment.OrganizationID,
		Payload:   notifications.SlotPayload(slot.Assignment, slot.Route, slot.ShiftStart, w.ID),
		DedupeKey: dedupe,
	}})
	if summary.Failed > 0 {
		r.deps.Logger.Warn(ctx, "instant_assign.notify_failed")
	}
}
