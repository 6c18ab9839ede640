// Package resolution settles competitive bid windows.
package resolution

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/orro3790/drive-sub008/internal/assignments"
	"github.com/orro3790/drive-sub008/internal/bidding"
	"github.com/orro3790/drive-sub008/internal/eligibility"
	"github.com/orro3790/drive-sub008/internal/notifications"
	"github.com/orro3790/drive-sub008/internal/settings"
	"github.com/orro3790/drive-sub008/pkg/config"
	"github.com/orro3790/drive-sub008/pkg/db"
	"github.com/orro3790/drive-sub008/pkg/db/models"
	"github.com/orro3790/drive-sub008/pkg/enums"
	pkgerrors "github.com/orro3790/drive-sub008/pkg/errors"
	"github.com/orro3790/drive-sub008/pkg/logger"
	"github.com/orro3790/drive-sub008/pkg/metrics"
	"github.com/orro3790/drive-sub008/pkg/tenant"
)

var (
	errConflict   = errors.New("resolution lost a concurrent write")
	errIneligible = errors.New("winner already assigned that date")
)

// Eligibility gates a candidate winner and lists drivers to notify.
type Eligibility interface {
	CheckForDate(ctx context.Context, scope tenant.Scope, userID uuid.UUID, date time.Time) (eligibility.Result, error)
	EligibleDrivers(ctx context.Context, scope tenant.Scope, date time.Time) ([]uuid.UUID, error)
}

// ResolveResult reports how a resolution attempt ended.
type ResolveResult struct {
	Resolved     bool         `json:"resolved"`
	Reason       enums.Reason `json:"reason"`
	Transitioned bool         `json:"transitioned"`
	WinnerID     *uuid.UUID   `json:"winnerId,omitempty"`
	BidCount     int          `json:"bidCount"`
	Attempts     int          `json:"attempts"`
}

type Engine struct {
	tx          db.Transactor
	windows     bidding.Repository
	assignments assignments.Repository
	settings    settings.Repository
	eligibility Eligibility
	notifier    notifications.Dispatcher
	metrics     *metrics.DispatchMetrics
	logg        *logger.Logger
	maxRetries  uint64
	backoff     time.Duration
}

type Deps struct {
	Tx          db.Transactor
	Windows     bidding.Repository
	Assignments assignments.Repository
	Settings    settings.Repository
	Eligibility Eligibility
	Notifier    notifications.Dispatcher
	Metrics     *metrics.DispatchMetrics
	Logger      *logger.Logger
}

func NewEngine(deps Deps, cfg config.DispatchConfig) *Engine {
	return &Engine{
		tx:          deps.Tx,
		windows:     deps.Windows,
		assignments: deps.Assignments,
		settings:    deps.Settings,
		eligibility: deps.Eligibility,
		notifier:    deps.Notifier,
		metrics:     deps.Metrics,
		logg:        deps.Logger,
		maxRetries:  uint64(cfg.ResolveMaxRetries),
		backoff:     cfg.ResolveRetryBackoff,
	}
}

type outcome struct {
	result ResolveResult
	msgs   []notifications.Message
}

// ResolveBidWindow picks the single winner of a competitive window, or moves
// a window without live bids to instant mode. Lost races reload state and
// retry a bounded number of times.
func (e *Engine) ResolveBidWindow(ctx context.Context, scope tenant.Scope, bidWindowID uuid.UUID, actor string, now time.Time) (ResolveResult, error) {
	ctx = e.logg.WithFields(ctx, map[string]any{"bid_window_id": bidWindowID.String(), "actor": actor})

	var (
		attempts int
		out      outcome
	)
	backoff := retry.WithMaxRetries(e.maxRetries, retry.NewConstant(e.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		o, err := e.attempt(ctx, scope, bidWindowID, now)
		if errors.Is(err, errConflict) || db.IsTransient(err) {
			e.logg.Warn(e.logg.WithField(ctx, "attempt", attempts), "bid_window.resolve_conflict")
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		out = o
		return nil
	})

	switch {
	case errors.Is(err, errConflict):
		out = outcome{result: ResolveResult{Reason: enums.ReasonConflictRetriesExhausted}}
	case err != nil:
		e.metrics.ObserveResolution("error", attempts)
		return ResolveResult{Attempts: attempts}, pkgerrors.Dependency(err, "resolve bid window")
	}

	out.result.Attempts = attempts
	e.metrics.ObserveResolution(string(out.result.Reason), attempts)
	if len(out.msgs) > 0 && e.notifier != nil {
		summary := e.notifier.Dispatch(ctx, out.msgs)
		if summary.Failed > 0 {
			e.logg.Warn(e.logg.WithField(ctx, "failed", summary.Failed), "bid_window.notify_partial")
		}
	}
	e.logg.Info(e.logg.WithField(ctx, "reason", string(out.result.Reason)), "bid_window.resolved")
	return out.result, nil
}

func (e *Engine) attempt(ctx context.Context, scope tenant.Scope, bidWindowID uuid.UUID, now time.Time) (outcome, error) {
	w, err := e.windows.GetWindow(ctx, scope, bidWindowID)
	if errors.Is(err, bidding.ErrWindowNotFound) {
		return reason(enums.ReasonWindowNotFound), nil
	}
	if err != nil {
		return outcome{}, err
	}
	if w.Status != enums.BidWindowStatusOpen {
		return reason(enums.ReasonWindowNotOpen), nil
	}
	if w.Mode != enums.BidWindowModeCompetitive {
		return reason(enums.ReasonWindowNotCompetitive), nil
	}

	cfg, err := e.settings.Get(ctx, scope)
	if err != nil {
		return outcome{}, err
	}
	slot, err := e.assignments.GetSlot(ctx, scope, w.AssignmentID, cfg.Location)
	if err != nil {
		return outcome{}, err
	}
	if slot.Assignment.Status != enums.AssignmentStatusUnfilled {
		return reason(enums.ReasonAssignmentNotUnfilled), nil
	}

	bids, err := e.windows.ListBids(ctx, scope, w.ID, enums.BidStatusPending)
	if err != nil {
		return outcome{}, err
	}
	total := len(bids)
	sortBids(bids)

	var losers []models.Bid
	for i, candidate := range bids {
		check, err := e.eligibility.CheckForDate(ctx, scope, candidate.UserID, slot.Assignment.CivilDate())
		if err != nil {
			return outcome{}, err
		}
		if !check.Eligible {
			if err := e.discard(ctx, scope, candidate, now); err != nil {
				return outcome{}, err
			}
			losers = append(losers, candidate)
			continue
		}

		err = e.commit(ctx, scope, *w, candidate, now)
		if errors.Is(err, errIneligible) {
			if err := e.discard(ctx, scope, candidate, now); err != nil {
				return outcome{}, err
			}
			losers = append(losers, candidate)
			continue
		}
		if err != nil {
			return outcome{}, err
		}

		winner := candidate.UserID
		losers = append(losers, bids[i+1:]...)
		return outcome{
			result: ResolveResult{Resolved: true, Reason: enums.ReasonResolved, WinnerID: &winner, BidCount: total},
			msgs:   resolvedMessages(*slot, *w, candidate, losers),
		}, nil
	}

	// No bid could win; fall back to first-come instant acceptance.
	o, err := e.transition(ctx, scope, *slot, *w)
	if err != nil {
		return outcome{}, err
	}
	o.result.BidCount = total
	o.msgs = append(o.msgs, lostMessages(*slot, *w, losers)...)
	return o, nil
}

// commit flips window, assignment and bids in one transaction, locking rows
// in that order.
func (e *Engine) commit(ctx context.Context, scope tenant.Scope, w models.BidWindow, bid models.Bid, now time.Time) error {
	return e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		windows := e.windows.WithTx(tx)

		ok, err := windows.ResolveWindow(ctx, scope, w.ID, bid.UserID, now)
		if err != nil {
			return err
		}
		if !ok {
			return errConflict
		}

		claimed, err := e.assignments.WithTx(tx).ClaimUnfilled(ctx, scope, w.AssignmentID, bid.UserID, enums.AssignedByBid)
		if db.IsUniqueViolation(err, models.IndexAssignmentsUserDateActive) {
			return errIneligible
		}
		if err != nil {
			return err
		}
		if !claimed {
			return errConflict
		}

		won, err := windows.MarkBidWon(ctx, scope, bid.ID, now)
		if err != nil {
			return err
		}
		if !won {
			return errConflict
		}
		_, err = windows.MarkOthersLost(ctx, scope, w.ID, &bid.ID, now)
		return err
	})
}

func (e *Engine) discard(ctx context.Context, scope tenant.Scope, bid models.Bid, now time.Time) error {
	_, err := e.windows.MarkBidLost(ctx, scope, bid.ID, now)
	return err
}

func (e *Engine) transition(ctx context.Context, scope tenant.Scope, slot assignments.Slot, w models.BidWindow) (outcome, error) {
	ok, err := e.windows.TransitionToInstant(ctx, scope, w.ID, slot.ShiftStart)
	if err != nil {
		return outcome{}, err
	}
	if !ok {
		return outcome{}, errConflict
	}

	drivers, err := e.eligibility.EligibleDrivers(ctx, scope, slot.Assignment.CivilDate())
	if err != nil {
		return outcome{}, err
	}
	base := notifications.Message{
		Type:    enums.NotificationTypeRouteNowInstant,
		OrgID:   w.OrganizationID,
		Payload: notifications.SlotPayload(slot.Assignment, slot.Route, slot.ShiftStart, w.ID),
	}
	return outcome{
		result: ResolveResult{Reason: enums.ReasonTransitionedToInstant, Transitioned: true},
		msgs:   notifications.Fanout(base, drivers, "route_now_instant:"+w.ID.String()),
	}, nil
}

func resolvedMessages(slot assignments.Slot, w models.BidWindow, winner models.Bid, losers []models.Bid) []notifications.Message {
	msgs := []notifications.Message{{
		Type:      enums.NotificationTypeBidWon,
		UserID:    winner.UserID,
		OrgID:     w.OrganizationID,
		Payload:   notifications.SlotPayload(slot.Assignment, slot.Route, slot.ShiftStart, w.ID),
		DedupeKey: "bid_won:" + winner.ID.String(),
	}}
	return append(msgs, lostMessages(slot, w, losers)...)
}

func lostMessages(slot assignments.Slot, w models.BidWindow, losers []models.Bid) []notifications.Message {
	msgs := make([]notifications.Message, 0, len(losers))
	for _, b := range losers {
		msgs = append(msgs, notifications.Message{
			Type:      enums.NotificationTypeBidLost,
			UserID:    b.UserID,
			OrgID:     w.OrganizationID,
			Payload:   notifications.SlotPayload(slot.Assignment, slot.Route, slot.ShiftStart, w.ID),
			DedupeKey: "bid_lost:" + b.ID.String(),
		})
	}
	return msgs
}

func reason(r enums.Reason) outcome {
	return outcome{result: ResolveResult{Reason: r}}
}
