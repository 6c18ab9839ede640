package dbtest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/orro3790/drive-sub008/pkg/db/models"
	"github.com/orro3790/drive-sub008/pkg/enums"
	"github.com/orro3790/drive-sub008/pkg/tenant"
)

// Org is a seeded organization with one warehouse, its manager and one route.
type Org struct {
	Org       models.Organization
	Settings  models.DispatchSettings
	Warehouse models.Warehouse
	Manager   models.User
	Route     models.Route
	Scope     tenant.Scope
}

// SeedOrg creates an organization in tz with a 09:00 route.
func SeedOrg(t *testing.T, conn *gorm.DB, name, tz string) Org {
	t.Helper()

	org := models.Organization{Name: name, Timezone: tz}
	mustCreate(t, conn, &org)

	settings := models.DispatchSettings{OrganizationID: org.ID, EmergencyBonusPercent: 20, NoShowGraceMinutes: 15}
	mustCreate(t, conn, &settings)

	manager := models.User{OrganizationID: org.ID, FullName: name + " manager", Role: enums.UserRoleManager}
	mustCreate(t, conn, &manager)

	wh := models.Warehouse{OrganizationID: org.ID, Name: name + " depot", ManagerID: &manager.ID}
	mustCreate(t, conn, &wh)

	route := models.Route{OrganizationID: org.ID, WarehouseID: wh.ID, Name: "R-100", StartTime: "09:00"}
	mustCreate(t, conn, &route)

	scope, err := tenant.NewScope(org.ID)
	if err != nil {
		t.Fatalf("scope: %v", err)
	}

	return Org{Org: org, Settings: settings, Warehouse: wh, Manager: manager, Route: route, Scope: scope}
}

// SeedDriver creates a driver with a health score in [0,100].
func SeedDriver(t *testing.T, conn *gorm.DB, orgID uuid.UUID, name string, health float64) models.User {
	t.Helper()

	hired := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	driver := models.User{OrganizationID: orgID, FullName: name, Role: enums.UserRoleDriver, HiredAt: &hired}
	mustCreate(t, conn, &driver)
	mustCreate(t, conn, &models.DriverHealthState{UserID: driver.ID, OrganizationID: orgID, Score: health})
	mustCreate(t, conn, &models.DriverMetrics{UserID: driver.ID, OrganizationID: orgID})
	return driver
}

// SeedAssignment creates an assignment for o's route on date.
func SeedAssignment(t *testing.T, conn *gorm.DB, o Org, date time.Time, status enums.AssignmentStatus, userID *uuid.UUID) models.Assignment {
	t.Helper()

	y, m, d := date.Date()
	a := models.Assignment{
		OrganizationID: o.Org.ID,
		RouteID:        o.Route.ID,
		WarehouseID:    o.Warehouse.ID,
		UserID:         userID,
		Date:           datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC)),
		Status:         status,
	}
	if userID != nil {
		by := enums.AssignedByAlgorithm
		a.AssignedBy = &by
	}
	mustCreate(t, conn, &a)
	return a
}

func mustCreate(t *testing.T, conn *gorm.DB, value any) {
	t.Helper()
	if err := conn.Create(value).Error; err != nil {
		t.Fatalf("seed %T: %v", value, err)
	}
}
