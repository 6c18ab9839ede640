package bidwindows

import (
	"time"

	"github.com/orro3790/drive-sub008/internal/assignments"
	"github.com/orro3790/drive-sub008/internal/settings"
	"github.com/orro3790/drive-sub008/pkg/db/models"
	"github.com/orro3790/drive-sub008/pkg/enums"
)

// Timing holds the cutoffs used to derive mode and closing time.
type Timing struct {
	CompetitiveCutoff time.Duration
	EmergencyWindow   time.Duration
}

// Plan builds the window row for slot, or returns a failure reason.
func (t Timing) Plan(slot assignments.Slot, cfg settings.Settings, opts CreateOptions) (models.BidWindow, enums.Reason) {
	trigger := opts.Trigger
	if trigger == "" {
		trigger = enums.BidWindowTriggerAuto
	}
	if !trigger.IsValid() {
		return models.BidWindow{}, enums.ReasonInvalidTrigger
	}

	now := opts.Now.UTC()
	if !now.Before(slot.ShiftStart) && !opts.AllowPastShift {
		return models.BidWindow{}, enums.ReasonShiftAlreadyStarted
	}

	mode := t.mode(slot.ShiftStart, now)
	if opts.Mode != nil {
		mode = *opts.Mode
	}
	if !mode.IsValid() {
		return models.BidWindow{}, enums.ReasonInvalidMode
	}
	if mode == enums.BidWindowModeEmergency && !trigger.AllowsEmergency() {
		return models.BidWindow{}, enums.ReasonInvalidMode
	}

	closesAt := t.closesAt(mode, slot.ShiftStart, now)
	if mode == enums.BidWindowModeCompetitive && !closesAt.After(now) {
		return models.BidWindow{}, enums.ReasonInvalidMode
	}

	bonus := 0
	switch {
	case opts.PayBonusPercent != nil:
		bonus = *opts.PayBonusPercent
	case mode == enums.BidWindowModeEmergency:
		bonus = cfg.EmergencyBonusPercent
	}

	return models.BidWindow{
		OrganizationID:  slot.Assignment.OrganizationID,
		AssignmentID:    slot.Assignment.ID,
		Mode:            mode,
		Trigger:         trigger,
		PayBonusPercent: bonus,
		OpensAt:         now,
		ClosesAt:        closesAt.UTC(),
		Status:          enums.BidWindowStatusOpen,
	}, enums.ReasonNone
}

func (t Timing) mode(shiftStart, now time.Time) enums.BidWindowMode {
	if shiftStart.Sub(now) > t.CompetitiveCutoff {
		return enums.BidWindowModeCompetitive
	}
	return enums.BidWindowModeInstant
}

func (t Timing) closesAt(mode enums.BidWindowMode, shiftStart, now time.Time) time.Time {
	switch mode {
	case enums.BidWindowModeCompetitive:
		return shiftStart.Add(-t.CompetitiveCutoff)
	case enums.BidWindowModeEmergency:
		if deadline := now.Add(t.EmergencyWindow); deadline.After(shiftStart) {
			return deadline
		}
		return shiftStart
	default:
		return shiftStart
	}
}
