package noshow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/orro3790/drive-sub008/internal/assignments"
	"github.com/orro3790/drive-sub008/internal/bidding"
	"github.com/orro3790/drive-sub008/internal/bidwindows"
	"github.com/orro3790/drive-sub008/internal/eligibility"
	"github.com/orro3790/drive-sub008/internal/health"
	"github.com/orro3790/drive-sub008/internal/notifications/notificationstest"
	"github.com/orro3790/drive-sub008/internal/settings"
	"github.com/orro3790/drive-sub008/pkg/config"
	"github.com/orro3790/drive-sub008/pkg/db/dbtest"
	"github.com/orro3790/drive-sub008/pkg/db/models"
	"github.com/orro3790/drive-sub008/pkg/enums"
	"github.com/orro3790/drive-sub008/pkg/logger"
	"github.com/orro3790/drive-sub008/pkg/metrics"
)

// 2026-03-08 is the spring-forward date in America/Toronto.
var afterDST = time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

type harness struct {
	conn     *gorm.DB
	org      dbtest.Org
	recorder *notificationstest.Recorder
	detector *Detector
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client, conn := dbtest.Client(t)
	org := dbtest.SeedOrg(t, conn, "acme", "America/Toronto")

	cfg := config.DispatchConfig{
		CompetitiveCutoff: 24 * time.Hour,
		EmergencyWindow:   2 * time.Hour,
		DefaultTimezone:   "America/Toronto",
	}
	windows := bidding.NewRepository(conn)
	repo := assignments.NewRepository(conn)
	sets := settings.NewRepository(conn, cfg)
	healthSvc := health.NewService(conn)
	recorder := notificationstest.New()
	dm := metrics.NewDispatchMetrics(prometheus.NewRegistry())

	manager := bidwindows.NewManager(bidwindows.Deps{
		Windows:     windows,
		Assignments: repo,
		Settings:    sets,
		Eligibility: eligibility.NewChecker(conn, repo, healthSvc),
		Health:      healthSvc,
		Notifier:    recorder,
		Metrics:     dm,
		Logger:      logger.Nop(),
	}, cfg)

	detector := NewDetector(Deps{
		Tx:          client,
		DB:          conn,
		Assignments: repo,
		Windows:     windows,
		Settings:    sets,
		Health:      healthSvc,
		Opener:      manager,
		Notifier:    recorder,
		Metrics:     dm,
		Logger:      logger.Nop(),
	})
	return &harness{conn: conn, org: org, recorder: recorder, detector: detector}
}

func (h *harness) noShowWindows(t *testing.T, assignmentID any) []models.BidWindow {
	t.Helper()
	var rows []models.BidWindow
	require.NoError(t, h.conn.Where("assignment_id = ? AND trigger_type = ?", assignmentID, enums.BidWindowTriggerNoShow).Find(&rows).Error)
	return rows
}

func TestDetect_EscalatesAfterGraceWithDSTOffset(t *testing.T) {
	h := newHarness(t)
	driver := dbtest.SeedDriver(t, h.conn, h.org.Org.ID, "late", 80)
	standby := dbtest.SeedDriver(t, h.conn, h.org.Org.ID, "standby", 80)
	a := dbtest.SeedAssignment(t, h.conn, h.org, afterDST, enums.AssignmentStatusScheduled, &driver.ID)

	// 09:00 EDT is 13:00 UTC; grace is 15 minutes.
	res, err := h.detector.DetectNoShowsForOrganization(context.Background(), h.org.Scope, time.Date(2026, 3, 9, 13, 10, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, DetectionResult{Evaluated: 1, Skipped: 1}, res)

	res, err = h.detector.DetectNoShowsForOrganization(context.Background(), h.org.Scope, time.Date(2026, 3, 9, 13, 16, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, res.NoShows)
	assert.Equal(t, 1, res.WindowsCreated)
	assert.Equal(t, 1, res.ManagerAlerts)
	assert.Equal(t, 1, res.DriversNotified)

	var got models.Assignment
	require.NoError(t, h.conn.Where("id = ?", a.ID).Take(&got).Error)
	assert.Equal(t, enums.AssignmentStatusUnfilled, got.Status)
	assert.Nil(t, got.UserID)

	windows := h.noShowWindows(t, a.ID)
	require.Len(t, windows, 1)
	assert.Equal(t, enums.BidWindowModeEmergency, windows[0].Mode)
	assert.Equal(t, 20, windows[0].PayBonusPercent)
	assert.True(t, windows[0].ClosesAt.Equal(time.Date(2026, 3, 9, 15, 16, 0, 0, time.UTC)))

	var m models.DriverMetrics
	require.NoError(t, h.conn.Where("user_id = ?", driver.ID).Take(&m).Error)
	assert.Equal(t, 1, m.NoShows)

	assert.Len(t, h.recorder.To(h.org.Manager.ID, enums.NotificationTypeDriverNoShow), 1)
	assert.Len(t, h.recorder.To(standby.ID, enums.NotificationTypeEmergencyRouteAvailable), 1)
	assert.Empty(t, h.recorder.To(driver.ID, enums.NotificationTypeEmergencyRouteAvailable))
}

func TestDetect_UsesOrganizationBonus(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.conn.Model(&models.DispatchSettings{}).
		Where("organization_id = ?", h.org.Org.ID).
		Update("emergency_bonus_percent", 35).Error)
	driver := dbtest.SeedDriver(t, h.conn, h.org.Org.ID, "late", 80)
	a := dbtest.SeedAssignment(t, h.conn, h.org, afterDST, enums.AssignmentStatusScheduled, &driver.ID)

	_, err := h.detector.DetectNoShowsForOrganization(context.Background(), h.org.Scope, time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	windows := h.noShowWindows(t, a.ID)
	require.Len(t, windows, 1)
	assert.Equal(t, 35, windows[0].PayBonusPercent)
}

func TestDetect_ConcurrentRunsEscalateOnce(t *testing.T) {
	h := newHarness(t)
	driver := dbtest.SeedDriver(t, h.conn, h.org.Org.ID, "late", 80)
	a := dbtest.SeedAssignment(t, h.conn, h.org, afterDST, enums.AssignmentStatusScheduled, &driver.ID)
	now := time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC)

	const runs = 4
	results := make([]DetectionResult, runs)
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := h.detector.DetectNoShowsForOrganization(context.Background(), h.org.Scope, now)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	var total DetectionResult
	for _, r := range results {
		total.add(r)
	}
	assert.Equal(t, 1, total.NoShows)
	assert.Equal(t, 1, total.WindowsCreated)
	assert.Equal(t, 1, total.ManagerAlerts)
	assert.Len(t, h.noShowWindows(t, a.ID), 1)

	again, err := h.detector.DetectNoShowsForOrganization(context.Background(), h.org.Scope, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, again.NoShows)
	assert.Zero(t, again.Evaluated)
}

func TestDetect_IgnoresArrivedOtherDaysAndCancelled(t *testing.T) {
	h := newHarness(t)
	arrived := dbtest.SeedDriver(t, h.conn, h.org.Org.ID, "arrived", 80)
	tomorrow := dbtest.SeedDriver(t, h.conn, h.org.Org.ID, "tomorrow", 80)
	cancelled := dbtest.SeedDriver(t, h.conn, h.org.Org.ID, "cancelled", 80)

	a := dbtest.SeedAssignment(t, h.conn, h.org, afterDST, enums.AssignmentStatusActive, &arrived.ID)
	require.NoError(t, h.conn.Model(&models.Assignment{}).Where("id = ?", a.ID).Update("arrived_at", time.Date(2026, 3, 9, 12, 55, 0, 0, time.UTC)).Error)
	dbtest.SeedAssignment(t, h.conn, h.org, afterDST.AddDate(0, 0, 1), enums.AssignmentStatusScheduled, &tomorrow.ID)
	dbtest.SeedAssignment(t, h.conn, h.org, afterDST, enums.AssignmentStatusCancelled, &cancelled.ID)

	res, err := h.detector.DetectNoShowsForOrganization(context.Background(), h.org.Scope, time.Date(2026, 3, 9, 20, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, DetectionResult{}, res)
}

func TestDetect_OrganizationLocalToday(t *testing.T) {
	h := newHarness(t)
	driver := dbtest.SeedDriver(t, h.conn, h.org.Org.ID, "late", 80)
	dbtest.SeedAssignment(t, h.conn, h.org, afterDST, enums.AssignmentStatusScheduled, &driver.ID)

	// 02:00 UTC on the 10th is still the evening of the 9th in Toronto.
	res, err := h.detector.DetectNoShowsForOrganization(context.Background(), h.org.Scope, time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, res.NoShows)
}

func TestDetect_FallsBackToOrganizationManagers(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.conn.Model(&models.Warehouse{}).Where("id = ?", h.org.Warehouse.ID).Update("manager_id", nil).Error)
	second := models.User{OrganizationID: h.org.Org.ID, FullName: "second", Role: enums.UserRoleManager}
	require.NoError(t, h.conn.Create(&second).Error)
	driver := dbtest.SeedDriver(t, h.conn, h.org.Org.ID, "late", 80)
	dbtest.SeedAssignment(t, h.conn, h.org, afterDST, enums.AssignmentStatusScheduled, &driver.ID)

	res, err := h.detector.DetectNoShowsForOrganization(context.Background(), h.org.Scope, time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, res.ManagerAlerts)
	assert.Len(t, h.recorder.To(second.ID, enums.NotificationTypeDriverNoShow), 1)
}

func TestDetectNoShows_AllOrganizations(t *testing.T) {
	h := newHarness(t)
	other := dbtest.SeedOrg(t, h.conn, "west", "America/Vancouver")
	d1 := dbtest.SeedDriver(t, h.conn, h.org.Org.ID, "east", 80)
	d2 := dbtest.SeedDriver(t, h.conn, other.Org.ID, "west", 80)
	dbtest.SeedAssignment(t, h.conn, h.org, afterDST, enums.AssignmentStatusScheduled, &d1.ID)
	dbtest.SeedAssignment(t, h.conn, other, afterDST, enums.AssignmentStatusScheduled, &d2.ID)

	// 14:00 UTC: past 09:15 in Toronto, 07:00 in Vancouver.
	batch, err := h.detector.DetectNoShows(context.Background(), time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Organizations)
	assert.Equal(t, 2, batch.Evaluated)
	assert.Equal(t, 1, batch.NoShows)
	assert.Equal(t, 1, batch.Skipped)
}

func TestDetect_RepeatedNoShowOnSameAssignmentEscalatesAgain(t *testing.T) {
	h := newHarness(t)
	first := dbtest.SeedDriver(t, h.conn, h.org.Org.ID, "first", 80)
	replacement := dbtest.SeedDriver(t, h.conn, h.org.Org.ID, "replacement", 80)
	a := dbtest.SeedAssignment(t, h.conn, h.org, afterDST, enums.AssignmentStatusScheduled, &first.ID)
	ctx := context.Background()

	_, err := h.detector.DetectNoShowsForOrganization(ctx, h.org.Scope, time.Date(2026, 3, 9, 13, 16, 0, 0, time.UTC))
	require.NoError(t, err)
	windows := h.noShowWindows(t, a.ID)
	require.Len(t, windows, 1)

	// The replacement takes the emergency window and then fails to arrive too.
	require.NoError(t, h.conn.Model(&models.BidWindow{}).Where("id = ?", windows[0].ID).Updates(map[string]any{
		"status":      enums.BidWindowStatusResolved,
		"winner_id":   replacement.ID,
		"resolved_at": time.Date(2026, 3, 9, 13, 20, 0, 0, time.UTC),
	}).Error)
	require.NoError(t, h.conn.Model(&models.Assignment{}).Where("id = ?", a.ID).Updates(map[string]any{
		"status":  enums.AssignmentStatusScheduled,
		"user_id": replacement.ID,
	}).Error)

	res, err := h.detector.DetectNoShowsForOrganization(ctx, h.org.Scope, time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, res.NoShows)
	assert.Equal(t, 1, res.WindowsCreated)
	assert.Equal(t, 1, res.ManagerAlerts)

	var got models.Assignment
	require.NoError(t, h.conn.Where("id = ?", a.ID).Take(&got).Error)
	assert.Equal(t, enums.AssignmentStatusUnfilled, got.Status)
	assert.Nil(t, got.UserID)

	windows = h.noShowWindows(t, a.ID)
	require.Len(t, windows, 2)
	var open int
	for _, w := range windows {
		if w.Status == enums.BidWindowStatusOpen {
			open++
		}
	}
	assert.Equal(t, 1, open)

	alerts := h.recorder.To(h.org.Manager.ID, enums.NotificationTypeDriverNoShow)
	require.Len(t, alerts, 2)
	assert.Equal(t, replacement.ID.String(), alerts[1].Payload["driverId"])

	var m models.DriverMetrics
	require.NoError(t, h.conn.Where("user_id = ?", replacement.ID).Take(&m).Error)
	assert.Equal(t, 1, m.NoShows)
}

func TestDetect_GraceRunningPastMidnight(t *testing.T) {
	h := newHarness(t)
	late := h.org
	late.Route = models.Route{OrganizationID: h.org.Org.ID, WarehouseID: h.org.Warehouse.ID, Name: "R-NIGHT", StartTime: "23:50"}
	require.NoError(t, h.conn.Create(&late.Route).Error)
	night := dbtest.SeedDriver(t, h.conn, h.org.Org.ID, "night", 80)
	a := dbtest.SeedAssignment(t, h.conn, late, afterDST, enums.AssignmentStatusScheduled, &night.ID)
	ctx := context.Background()

	// 23:58 EDT on the 9th: still inside the 15 minute grace.
	res, err := h.detector.DetectNoShowsForOrganization(ctx, h.org.Scope, time.Date(2026, 3, 10, 3, 58, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, DetectionResult{Evaluated: 1, Skipped: 1}, res)

	// A day route from the 9th whose deadline passed before midnight is not rescanned.
	day := dbtest.SeedDriver(t, h.conn, h.org.Org.ID, "day", 80)
	dbtest.SeedAssignment(t, h.conn, h.org, afterDST, enums.AssignmentStatusScheduled, &day.ID)

	// 00:10 EDT on the 10th: the overnight deadline has passed.
	res, err = h.detector.DetectNoShowsForOrganization(ctx, h.org.Scope, time.Date(2026, 3, 10, 4, 10, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Evaluated)
	assert.Equal(t, 1, res.NoShows)
	assert.Len(t, h.noShowWindows(t, a.ID), 1)
}
