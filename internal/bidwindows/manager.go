// Package bidwindows opens, sweeps and accepts bids on bid windows.
package bidwindows

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/orro3790/drive-sub008/internal/assignments"
	"github.com/orro3790/drive-sub008/internal/bidding"
	"github.com/orro3790/drive-sub008/internal/eligibility"
	"github.com/orro3790/drive-sub008/internal/health"
	"github.com/orro3790/drive-sub008/internal/notifications"
	"github.com/orro3790/drive-sub008/internal/resolution"
	"github.com/orro3790/drive-sub008/internal/settings"
	"github.com/orro3790/drive-sub008/pkg/config"
	"github.com/orro3790/drive-sub008/pkg/db/models"
	"github.com/orro3790/drive-sub008/pkg/enums"
	pkgerrors "github.com/orro3790/drive-sub008/pkg/errors"
	"github.com/orro3790/drive-sub008/pkg/logger"
	"github.com/orro3790/drive-sub008/pkg/metrics"
	"github.com/orro3790/drive-sub008/pkg/tenant"
)

// Eligibility is the subset of the eligibility checker the manager needs.
type Eligibility interface {
	CheckForDate(ctx context.Context, scope tenant.Scope, userID uuid.UUID, date time.Time) (eligibility.Result, error)
	EligibleDrivers(ctx context.Context, scope tenant.Scope, date time.Time) ([]uuid.UUID, error)
}

// Resolver settles competitive windows that reached their cutoff.
type Resolver interface {
	ResolveBidWindow(ctx context.Context, scope tenant.Scope, bidWindowID uuid.UUID, actor string, now time.Time) (resolution.ResolveResult, error)
}

// CreateOptions override the derived window parameters.
type CreateOptions struct {
	Mode            *enums.BidWindowMode
	Trigger         enums.BidWindowTrigger
	PayBonusPercent *int
	AllowPastShift  bool
	Now             time.Time
}

// CreateResult reports the window that now covers the assignment.
type CreateResult struct {
	Success       bool         `json:"success"`
	BidWindowID   *uuid.UUID   `json:"bidWindowId,omitempty"`
	NotifiedCount int          `json:"notifiedCount"`
	Existing      bool         `json:"existing"`
	Reason        enums.Reason `json:"reason,omitempty"`
}

type Deps struct {
	Windows     bidding.Repository
	Assignments assignments.Repository
	Settings    settings.Repository
	Eligibility Eligibility
	Health      health.Provider
	Resolver    Resolver
	Notifier    notifications.Dispatcher
	Metrics     *metrics.DispatchMetrics
	Logger      *logger.Logger
}

type Manager struct {
	Deps
	timing    Timing
	batchSize int
}

func NewManager(deps Deps, cfg config.DispatchConfig) *Manager {
	return &Manager{
		Deps:      deps,
		timing:    Timing{CompetitiveCutoff: cfg.CompetitiveCutoff, EmergencyWindow: cfg.EmergencyWindow},
		batchSize: 200,
	}
}

// Timing exposes the cutoffs for callers that build windows in their own
// transaction.
func (m *Manager) Timing() Timing {
	return m.timing
}

// CreateBidWindow opens a window for an unfilled assignment and notifies
// eligible drivers. A window that already covers the assignment is returned
// as a successful, existing result.
func (m *Manager) CreateBidWindow(ctx context.Context, scope tenant.Scope, assignmentID uuid.UUID, opts CreateOptions) (CreateResult, error) {
	ctx = m.Logger.WithDispatch(ctx, assignmentID.String(), "")

	cfg, err := m.Settings.Get(ctx, scope)
	if err != nil {
		return CreateResult{}, pkgerrors.Dependency(err, "load dispatch settings")
	}
	slot, err := m.Assignments.GetSlot(ctx, scope, assignmentID, cfg.Location)
	if errors.Is(err, assignments.ErrNotFound) {
		return CreateResult{Reason: enums.ReasonAssignmentNotFound}, nil
	}
	if err != nil {
		return CreateResult{}, pkgerrors.Dependency(err, "load assignment")
	}
	if slot.Assignment.Status != enums.AssignmentStatusUnfilled {
		return CreateResult{Reason: enums.ReasonAssignmentNotUnfilled}, nil
	}

	window, reason := m.timing.Plan(*slot, cfg, opts)
	if reason != enums.ReasonNone {
		return CreateResult{Reason: reason}, nil
	}

	inserted, err := m.Windows.CreateWindow(ctx, &window)
	if err != nil {
		return CreateResult{}, pkgerrors.Dependency(err, "create bid window")
	}
	if !inserted {
		existing, err := m.Windows.FindOpenWindow(ctx, scope, assignmentID)
		if err != nil {
			return CreateResult{}, pkgerrors.Dependency(err, "load existing bid window")
		}
		return CreateResult{Success: true, Existing: true, BidWindowID: &existing.ID}, nil
	}

	m.Metrics.IncWindowOpened(string(window.Mode))
	m.Logger.Info(m.Logger.WithFields(ctx, map[string]any{
		"bid_window_id": window.ID.String(),
		"mode":          string(window.Mode),
		"trigger":       string(window.Trigger),
	}), "bid_window.created")

	notified := m.NotifyOpened(ctx, scope, *slot, window)
	return CreateResult{Success: true, BidWindowID: &window.ID, NotifiedCount: notified}, nil
}

// NotifyOpened tells every eligible driver except those in skip about a new
// window and returns how many notifications were delivered.
func (m *Manager) NotifyOpened(ctx context.Context, scope tenant.Scope, slot assignments.Slot, w models.BidWindow, skip ...uuid.UUID) int {
	if m.Notifier == nil {
		return 0
	}
	drivers, err := m.Eligibility.EligibleDrivers(ctx, scope, slot.Assignment.CivilDate())
	if err != nil {
		m.Logger.Error(ctx, "bid_window.eligible_drivers_failed", err)
		return 0
	}
	drivers = without(drivers, skip)

	kind := enums.NotificationTypeBidOpen
	if w.Mode.IsFirstAccept() {
		kind = enums.NotificationTypeEmergencyRouteAvailable
	}
	payload := notifications.SlotPayload(slot.Assignment, slot.Route, slot.ShiftStart, w.ID)
	payload["mode"] = string(w.Mode)
	payload["payBonusPercent"] = w.PayBonusPercent
	payload["closesAt"] = w.ClosesAt.UTC().Format(time.RFC3339)

	base := notifications.Message{Type: kind, OrgID: w.OrganizationID, Payload: payload}
	summary := m.Notifier.Dispatch(ctx, notifications.Fanout(base, drivers, string(kind)+":"+w.ID.String()))
	if summary.Failed > 0 {
		m.Logger.Warn(m.Logger.WithField(ctx, "failed", summary.Failed), "bid_window.notify_partial")
	}
	return summary.Sent
}

// OpenWindow opens a window with derived mode for the lifecycle service. It
// returns uuid.Nil when no window could be opened.
func (m *Manager) OpenWindow(ctx context.Context, scope tenant.Scope, assignmentID uuid.UUID, trigger enums.BidWindowTrigger, now time.Time) (uuid.UUID, error) {
	res, err := m.CreateBidWindow(ctx, scope, assignmentID, CreateOptions{Trigger: trigger, Now: now})
	if err != nil {
		return uuid.Nil, err
	}
	if !res.Success || res.BidWindowID == nil {
		m.Logger.Info(m.Logger.WithField(ctx, "reason", string(res.Reason)), "bid_window.not_opened")
		return uuid.Nil, nil
	}
	return *res.BidWindowID, nil
}

// ListOpenWindows returns the organization's open windows, soonest closing first.
func (m *Manager) ListOpenWindows(ctx context.Context, scope tenant.Scope) ([]models.BidWindow, error) {
	rows, err := m.Windows.ListOpenWindows(ctx, scope)
	if err != nil {
		return nil, pkgerrors.Dependency(err, "list bid windows")
	}
	return rows, nil
}

func without(ids, skip []uuid.UUID) []uuid.UUID {
	if len(skip) == 0 {
		return ids
	}
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(skip, id) {
			out = append(out, id)
		}
	}
	return out
}
