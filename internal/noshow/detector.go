// Package noshow escalates drivers who miss their route start into
// emergency bid windows.
package noshow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/orro3790/drive-sub008/internal/assignments"
	"github.com/orro3790/drive-sub008/internal/bidding"
	"github.com/orro3790/drive-sub008/internal/bidwindows"
	"github.com/orro3790/drive-sub008/internal/health"
	"github.com/orro3790/drive-sub008/internal/notifications"
	"github.com/orro3790/drive-sub008/internal/settings"
	"github.com/orro3790/drive-sub008/pkg/civil"
	"github.com/orro3790/drive-sub008/pkg/db"
	"github.com/orro3790/drive-sub008/pkg/db/models"
	"github.com/orro3790/drive-sub008/pkg/enums"
	pkgerrors "github.com/orro3790/drive-sub008/pkg/errors"
	"github.com/orro3790/drive-sub008/pkg/logger"
	"github.com/orro3790/drive-sub008/pkg/metrics"
	"github.com/orro3790/drive-sub008/pkg/tenant"
)

// WindowNotifier plans emergency windows and fans them out to drivers.
type WindowNotifier interface {
	Timing() bidwindows.Timing
	NotifyOpened(ctx context.Context, scope tenant.Scope, slot assignments.Slot, w models.BidWindow, skip ...uuid.UUID) int
}

// DetectionResult summarizes one organization's pass.
type DetectionResult struct {
	Evaluated       int `json:"evaluated"`
	NoShows         int `json:"noShows"`
	WindowsCreated  int `json:"windowsCreated"`
	ManagerAlerts   int `json:"managerAlerts"`
	DriversNotified int `json:"driversNotified"`
	Skipped         int `json:"skipped"`
	Errors          int `json:"errors"`
}

func (r *DetectionResult) add(o DetectionResult) {
	r.Evaluated += o.Evaluated
	r.NoShows += o.NoShows
	r.WindowsCreated += o.WindowsCreated
	r.ManagerAlerts += o.ManagerAlerts
	r.DriversNotified += o.DriversNotified
	r.Skipped += o.Skipped
	r.Errors += o.Errors
}

// BatchResult summarizes a pass over every organization.
type BatchResult struct {
	Organizations int `json:"organizations"`
	DetectionResult
}

type Deps struct {
	Tx          db.Transactor
	DB          *gorm.DB
	Assignments assignments.Repository
	Windows     bidding.Repository
	Settings    settings.Repository
	Health      *health.Service
	Opener      WindowNotifier
	Notifier    notifications.Dispatcher
	Metrics     *metrics.DispatchMetrics
	Logger      *logger.Logger
}

type Detector struct {
	deps Deps
}

func NewDetector(deps Deps) *Detector {
	return &Detector{deps: deps}
}

// DetectNoShows runs detection for every organization. One organization
// failing does not stop the others.
func (d *Detector) DetectNoShows(ctx context.Context, now time.Time) (BatchResult, error) {
	var batch BatchResult
	orgIDs, err := d.deps.Settings.ListOrganizationIDs(ctx)
	if err != nil {
		return batch, pkgerrors.Dependency(err, "list organizations")
	}

	var errs error
	for _, id := range orgIDs {
		scope, err := tenant.NewScope(id)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		batch.Organizations++
		res, err := d.DetectNoShowsForOrganization(ctx, scope, now)
		batch.add(res)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("organization %s: %w", id, err))
		}
	}
	return batch, errs
}

// DetectNoShowsForOrganization unassigns every driver in scope who has not
// arrived by route start plus grace, then opens an emergency window for the
// assignment and alerts the manager. Routes from the previous civil date are
// included when their grace period runs past midnight. Concurrent or repeated
// runs for the same tick are no-ops after the first.
func (d *Detector) DetectNoShowsForOrganization(ctx context.Context, scope tenant.Scope, now time.Time) (DetectionResult, error) {
	var result DetectionResult
	ctx = d.deps.Logger.WithOrgID(ctx, scope.OrgID().String())

	cfg, err := d.deps.Settings.Get(ctx, scope)
	if err != nil {
		return result, pkgerrors.Dependency(err, "load dispatch settings")
	}
	today := civil.Today(now, cfg.Location)

	candidates, err := d.deps.Assignments.ListNoShowCandidates(ctx, scope, today.AddDate(0, 0, -1), today)
	if err != nil {
		return result, pkgerrors.Dependency(err, "list no-show candidates")
	}

	var errs error
	for _, slot := range candidates {
		start, err := assignments.ShiftStart(slot.Assignment, slot.Route, cfg.Location)
		if err != nil {
			result.Evaluated++
			result.Errors++
			errs = multierr.Append(errs, fmt.Errorf("assignment %s: %w", slot.Assignment.ID, err))
			continue
		}
		deadline := start.Add(cfg.Grace())
		if slot.Assignment.CivilDate().Before(today) && civil.Today(deadline, cfg.Location).Before(today) {
			continue
		}

		result.Evaluated++
		slot.ShiftStart = start
		if now.Before(deadline) {
			result.Skipped++
			continue
		}

	if err := d.escalate(ctx, scope, cfg, slot, now, &result); err != nil {
			result.Errors++
			errs = multierr.Append(errs, fmt.Errorf("assignment %s: %w", slot.Assignment.ID, err))
			d.deps.Logger.Error(d.deps.Logger.WithDispatch(ctx, slot.Assignment.ID.String(), ""), "no_show.escalate_failed", err)
		}
	}

	d.deps.Logger.Info(d.deps.Logger.WithFields(ctx, map[string]any{
		"evaluated":       result.Evaluated,
		"no_shows":        result.NoShows,
		"windows_created": result.WindowsCreated,
		"skipped":         result.Skipped,
		"errors":          result.Errors,
	}), "no_show.detection_complete")
	return result, errs
}

var errAlreadyHandled = errors.New("no-show already handled")

func (d *Detector) escalate(ctx context.Context, scope tenant.Scope, cfg settings.Settings, slot assignments.Slot, now time.Time, result *DetectionResult) error {
	driverID := *slot.Assignment.UserID
	ctx = d.deps.Logger.WithDispatch(ctx, slot.Assignment.ID.String(), "")

	emergency := enums.BidWindowModeEmergency
	window, reason := d.deps.Opener.Timing().Plan(slot, cfg, bidwindows.CreateOptions{
		Mode:           &emergency,
		Trigger:        enums.BidWindowTriggerNoShow,
		AllowPastShift: true,
		Now:            now,
	})
	if reason != enums.ReasonNone {
		return fmt.Errorf("plan emergency window: %s", reason)
	}

	var opened bool
	err := d.deps.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		won, err := d.deps.Assignments.WithTx(tx).MarkNoShow(ctx, scope, slot.Assignment.ID, driverID)
		if err != nil {
			return err
		}
		if !won {
			return errAlreadyHandled
		}
		if opened, err = d.deps.Windows.WithTx(tx).CreateWindow(ctx, &window); err != nil {
			return err
		}
		return d.deps.Health.WithTx(tx).IncrementNoShows(ctx, scope, driverID)
	})
	if errors.Is(err, errAlreadyHandled) {
		result.Skipped++
		return nil
	}
	if err != nil {
		return err
	}

	result.NoShows++
	d.deps.Metrics.IncNoShow()
	d.deps.Logger.Info(d.deps.Logger.WithFields(ctx, map[string]any{
		"driver_id":      driverID.String(),
		"window_created": opened,
	}), "no_show.detected")

	if opened {
		result.WindowsCreated++
		d.deps.Metrics.IncWindowOpened(string(window.Mode))
		result.DriversNotified += d.deps.Opener.NotifyOpened(ctx, scope, slot, window, driverID)
	} else if existing, err := d.deps.Windows.FindOpenWindow(ctx, scope, slot.Assignment.ID); err == nil {
		window = *existing
	} else if !errors.Is(err, bidding.ErrWindowNotFound) {
		d.deps.Logger.Error(ctx, "no_show.window_lookup_failed", err)
	}
	result.ManagerAlerts += d.alertManagers(ctx, scope, slot, window, driverID, now)
	return nil
}

// alertManagers dedupes per no-show event, so a later no-show on the same
// assignment still reaches the manager.
func (d *Detector) alertManagers(ctx context.Context, scope tenant.Scope, slot assignments.Slot, window models.BidWindow, driverID uuid.UUID, now time.Time) int {
	if d.deps.Notifier == nil {
		return 0
	}
	recipients, err := d.managers(ctx, scope, slot.Warehouse)
	if err != nil {
		d.deps.Logger.Error(ctx, "no_show.manager_lookup_failed", err)
		return 0
	}

	payload := notifications.SlotPayload(slot.Assignment, slot.Route, slot.ShiftStart, window.ID)
	payload["driverId"] = driverID.String()
	base := notifications.Message{
		Type:    enums.NotificationTypeDriverNoShow,
		OrgID:   scope.OrgID(),
		Payload: payload,
	}
	key := fmt.Sprintf("no_show:%s:%s:%d", slot.Assignment.ID, driverID, now.Unix())
	summary := d.deps.Notifier.Dispatch(ctx, notifications.Fanout(base, recipients, key))
	return summary.Sent
}

// managers returns the warehouse manager, or every organization manager
// when the warehouse has none.
func (d *Detector) managers(ctx context.Context, scope tenant.Scope, wh models.Warehouse) ([]uuid.UUID, error) {
	if wh.ManagerID != nil {
		return []uuid.UUID{*wh.ManagerID}, nil
	}
	var ids []uuid.UUID
	err := scope.Apply(d.deps.DB.WithContext(ctx).Model(&models.User{})).
		Where("role = ?", enums.UserRoleManager).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}
