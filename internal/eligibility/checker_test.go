package eligibility

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orro3790/drive-sub008/internal/assignments"
	"github.com/orro3790/drive-sub008/internal/health"
	"github.com/orro3790/drive-sub008/pkg/civil"
	"github.com/orro3790/drive-sub008/pkg/db/dbtest"
	"github.com/orro3790/drive-sub008/pkg/db/models"
	"github.com/orro3790/drive-sub008/pkg/enums"
)

func newChecker(t *testing.T) (*Checker, dbtest.Org, func(string, float64) models.User, func(time.Time, enums.AssignmentStatus, *models.User) models.Assignment) {
	t.Helper()
	conn := dbtest.Open(t)
	org := dbtest.SeedOrg(t, conn, "acme", "America/Toronto")
	checker := NewChecker(conn, assignments.NewRepository(conn), health.NewService(conn))
	seedDriver := func(name string, score float64) models.User {
		return dbtest.SeedDriver(t, conn, org.Org.ID, name, score)
	}
	seedAssignment := func(date time.Time, status enums.AssignmentStatus, u *models.User) models.Assignment {
		if u == nil {
			return dbtest.SeedAssignment(t, conn, org, date, status, nil)
		}
		return dbtest.SeedAssignment(t, conn, org, date, status, &u.ID)
	}
	return checker, org, seedDriver, seedAssignment
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := civil.ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestCanDriverTakeAssignment_CountsWeekOnly(t *testing.T) {
	checker, org, seedDriver, seedAssignment := newChecker(t)
	driver := seedDriver("d1", 80)

	// Monday 2026-03-09 .. Sunday 2026-03-15
	seedAssignment(day(t, "2026-03-09"), enums.AssignmentStatusScheduled, &driver)
	seedAssignment(day(t, "2026-03-10"), enums.AssignmentStatusCompleted, &driver)
	seedAssignment(day(t, "2026-03-11"), enums.AssignmentStatusCancelled, &driver)
	seedAssignment(day(t, "2026-03-08"), enums.AssignmentStatusScheduled, &driver)
	seedAssignment(day(t, "2026-03-16"), enums.AssignmentStatusScheduled, &driver)

	res, err := checker.CanDriverTakeAssignment(context.Background(), org.Scope, driver.ID, day(t, "2026-03-12"))
	require.NoError(t, err)
	assert.True(t, res.Eligible)
	assert.Equal(t, 2, res.AssignedCount)
	assert.Equal(t, models.DefaultWeeklyCap, res.WeeklyCap)
}

func TestCanDriverTakeAssignment_CapReached(t *testing.T) {
	checker, org, seedDriver, seedAssignment := newChecker(t)
	driver := seedDriver("d1", 80)
	for _, d := range []string{"2026-03-09", "2026-03-10", "2026-03-11", "2026-03-12"} {
		seedAssignment(day(t, d), enums.AssignmentStatusScheduled, &driver)
	}

	res, err := checker.CanDriverTakeAssignment(context.Background(), org.Scope, driver.ID, day(t, "2026-03-09"))
	require.NoError(t, err)
	assert.False(t, res.Eligible)
	assert.Equal(t, enums.ReasonWeeklyCapReached, res.Reason)
	assert.Equal(t, 4, res.AssignedCount)
}

func TestCheckForDate_Gates(t *testing.T) {
	checker, org, seedDriver, seedAssignment := newChecker(t)
	busy := seedDriver("busy", 80)
	seedAssignment(day(t, "2026-03-10"), enums.AssignmentStatusScheduled, &busy)

	res, err := checker.CheckForDate(context.Background(), org.Scope, busy.ID, day(t, "2026-03-10"))
	require.NoError(t, err)
	assert.Equal(t, enums.ReasonDriverAlreadyAssigned, res.Reason)
	assert.True(t, res.IsSameDayConflict())

	res, err = checker.CheckForDate(context.Background(), org.Scope, org.Manager.ID, day(t, "2026-03-10"))
	require.NoError(t, err)
	assert.Equal(t, enums.ReasonNotADriver, res.Reason)

	res, err = checker.CheckForDate(context.Background(), org.Scope, busy.ID, day(t, "2026-03-11"))
	require.NoError(t, err)
	assert.True(t, res.Eligible)
}

func TestEligibleDrivers_ExcludesHardStopAndOtherOrgs(t *testing.T) {
	conn := dbtest.Open(t)
	a := dbtest.SeedOrg(t, conn, "a", "UTC")
	b := dbtest.SeedOrg(t, conn, "b", "UTC")
	ok := dbtest.SeedDriver(t, conn, a.Org.ID, "ok", 70)
	stopped := dbtest.SeedDriver(t, conn, a.Org.ID, "stopped", 10)
	dbtest.SeedDriver(t, conn, b.Org.ID, "other-org", 90)
	require.NoError(t, conn.Model(&models.DriverHealthState{}).Where("user_id = ?", stopped.ID).Update("hard_stop", true).Error)

	checker := NewChecker(conn, assignments.NewRepository(conn), health.NewService(conn))
	ids, err := checker.EligibleDrivers(context.Background(), a.Scope, day(t, "2026-03-10"))
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, ok.ID, ids[0])
}

func TestWeekStart(t *testing.T) {
	assert.Equal(t, day(t, "2026-03-09"), WeekStart(day(t, "2026-03-15")))
}
