// Package eligibility gates whether a driver may take another assignment.
package eligibility

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orro3790/drive-sub008/internal/assignments"
	"github.com/orro3790/drive-sub008/pkg/civil"
	"github.com/orro3790/drive-sub008/pkg/db/models"
	"github.com/orro3790/drive-sub008/pkg/enums"
	"github.com/orro3790/drive-sub008/pkg/tenant"
)

// HardStopper reports the health hard-stop flag.
type HardStopper interface {
	IsHardStopped(ctx context.Context, scope tenant.Scope, userID uuid.UUID) (bool, error)
}

// Result is the outcome of an eligibility check.
type Result struct {
	Eligible      bool         `json:"eligible"`
	Reason        enums.Reason `json:"reason,omitempty"`
	AssignedCount int          `json:"assignedCount"`
	WeeklyCap     int          `json:"weeklyCap"`
}

// Checker answers eligibility questions. All methods are reads.
type Checker struct {
	db          *gorm.DB
	assignments assignments.Repository
	health      HardStopper
}

// NewChecker wires the checker.
func NewChecker(db *gorm.DB, repo assignments.Repository, health HardStopper) *Checker {
	return &Checker{db: db, assignments: repo, health: health}
}

// WeekStart returns the Monday of the organization-local week holding date.
func WeekStart(date time.Time) time.Time {
	return civil.WeekStart(date)
}

func (c *Checker) loadDriver(ctx context.Context, scope tenant.Scope, userID uuid.UUID) (*models.User, enums.Reason, error) {
	var user models.User
	err := scope.Apply(c.db.WithContext(ctx)).Where("id = ?", userID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, enums.ReasonUserNotFound, nil
	}
	if err != nil {
		return nil, enums.ReasonNone, err
	}
	if user.Role != enums.UserRoleDriver {
		return &user, enums.ReasonNotADriver, nil
	}
	return &user, enums.ReasonNone, nil
}

// CanDriverTakeAssignment counts the driver's non-cancelled assignments in the
// week starting at WeekStart(weekStartDate) and compares with the cap.
func (c *Checker) CanDriverTakeAssignment(ctx context.Context, scope tenant.Scope, userID uuid.UUID, weekStartDate time.Time) (Result, error) {
	user, reason, err := c.loadDriver(ctx, scope, userID)
	if err != nil {
		return Result{}, err
	}
	if reason != enums.ReasonNone {
		return Result{Reason: reason}, nil
	}

	from, to := civil.WeekRange(weekStartDate)
	count, err := c.assignments.CountActiveInRange(ctx, scope, userID, from, to)
	if err != nil {
		return Result{}, err
	}

	res := Result{AssignedCount: int(count), WeeklyCap: user.WeeklyCap}
	if res.AssignedCount >= res.WeeklyCap {
		res.Reason = enums.ReasonWeeklyCapReached
		return res, nil
	}
	res.Eligible = true
	return res, nil
}

// CheckForDate applies every gate for taking an assignment on date: role,
// hard stop, existing same-day assignment, and weekly cap.
func (c *Checker) CheckForDate(ctx context.Context, scope tenant.Scope, userID uuid.UUID, date time.Time) (Result, error) {
	_, reason, err := c.loadDriver(ctx, scope, userID)
	if err != nil {
		return Result{}, err
	}
	if reason != enums.ReasonNone {
		return Result{Reason: reason}, nil
	}

	stopped, err := c.health.IsHardStopped(ctx, scope, userID)
	if err != nil {
		return Result{}, err
	}
	if stopped {
		return Result{Reason: enums.ReasonHardStopped}, nil
	}

	busy, err := c.assignments.HasActiveOnDate(ctx, scope, userID, date)
	if err != nil {
		return Result{}, err
	}
	if busy {
		return Result{Reason: enums.ReasonDriverAlreadyAssigned}, nil
	}

	return c.CanDriverTakeAssignment(ctx, scope, userID, date)
}

// EligibleDrivers lists drivers of the organization who pass CheckForDate.
func (c *Checker) EligibleDrivers(ctx context.Context, scope tenant.Scope, date time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := scope.Apply(c.db.WithContext(ctx).Model(&models.User{})).
		Where("role = ?", enums.UserRoleDriver).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}

	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		res, err := c.CheckForDate(ctx, scope, id, date)
		if err != nil {
			return nil, err
		}
		if res.Eligible {
			out = append(out, id)
		}
	}
	return out, nil
}

// IsSameDayConflict reports whether a failed check is due to another
// assignment that date rather than a standing ineligibility.
func (r Result) IsSameDayConflict() bool {
	return r.Reason == enums.ReasonDriverAlreadyAssigned
}
