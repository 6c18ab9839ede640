package bidwindows

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/orro3790/drive-sub008/pkg/db/models"
	"github.com/orro3790/drive-sub008/pkg/enums"
	pkgerrors "github.com/orro3790/drive-sub008/pkg/errors"
	"github.com/orro3790/drive-sub008/pkg/tenant"
)

const sweepActor = "cron"

// CloseSummary counts what a sweep did with each due window.
type CloseSummary struct {
	Processed    int `json:"processed"`
	Resolved     int `json:"resolved"`
	Transitioned int `json:"transitioned"`
	Closed       int `json:"closed"`
	Errors       int `json:"errors"`
}

// CloseBidWindows processes every open window whose closesAt has passed, in
// every organization. Competitive windows are resolved; first-accept windows
// are closed without a winner since their shift has started. A failing
// window is counted and the sweep continues.
func (m *Manager) CloseBidWindows(ctx context.Context, now time.Time) (CloseSummary, error) {
	var summary CloseSummary

	due, err := m.Windows.ListDueWindows(ctx, now, m.batchSize)
	if err != nil {
		return summary, pkgerrors.Dependency(err, "list due bid windows")
	}

	var errs error
	for _, w := range due {
		summary.Processed++
		if err := m.closeOne(ctx, w, now, &summary); err != nil {
			summary.Errors++
			errs = multierr.Append(errs, fmt.Errorf("bid window %s: %w", w.ID, err))
			m.Logger.Error(m.Logger.WithDispatch(ctx, w.AssignmentID.String(), w.ID.String()), "bid_window.sweep_failed", err)
		}
	}

	m.Logger.Info(m.Logger.WithFields(ctx, map[string]any{
		"processed":    summary.Processed,
		"resolved":     summary.Resolved,
		"transitioned": summary.Transitioned,
		"closed":       summary.Closed,
		"errors":       summary.Errors,
	}), "bid_window.sweep_complete")
	return summary, errs
}

func (m *Manager) closeOne(ctx context.Context, w models.BidWindow, now time.Time, summary *CloseSummary) error {
	scope, err := tenant.NewScope(w.OrganizationID)
	if err != nil {
		return err
	}

	switch w.Mode {
	case enums.BidWindowModeCompetitive:
		res, err := m.Resolver.ResolveBidWindow(ctx, scope, w.ID, sweepActor, now)
		if err != nil {
			return err
		}
		switch {
		case res.Resolved:
			summary.Resolved++
		case res.Transitioned:
			summary.Transitioned++
		case res.Reason == enums.ReasonConflictRetriesExhausted:
			return fmt.Errorf("resolution: %s", res.Reason)
		}
		return nil
	case enums.BidWindowModeInstant, enums.BidWindowModeEmergency:
		closed, err := m.Windows.CloseWindow(ctx, scope, w.ID, nil, now)
		if err != nil {
			return err
		}
		if closed {
			summary.Closed++
		}
		return nil
	default:
		return fmt.Errorf("unknown bid window mode %q", w.Mode)
	}
}
