package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/orro3790/drive-sub008/api/responses"
	"github.com/orro3790/drive-sub008/api/validators"
	"github.com/orro3790/drive-sub008/internal/eligibility"
	pkgerrors "github.com/orro3790/drive-sub008/pkg/errors"
	"github.com/orro3790/drive-sub008/pkg/logger"
	"github.com/orro3790/drive-sub008/pkg/tenant"
)

type EligibilityService interface {
	CanDriverTakeAssignment(ctx context.Context, scope tenant.Scope, userID uuid.UUID, weekStartDate time.Time) (eligibility.Result, error)
}

type eligibilityResponse struct {
	eligibility.Result
	WeekStart string `json:"weekStart"`
}

// DriverEligibility reports the weekly-cap check for a driver. Drivers may
// only query themselves.
func DriverEligibility(svc EligibilityService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		driverID, err := validators.ParseUUIDParam(r, "driverId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if driverID != c.UserID && !c.Role.CanDispatch() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "cannot view another driver"))
			return
		}
		week, err := validators.ParseQueryDate(r, "week")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if week.IsZero() {
			week = clock()
		}
		week = eligibility.WeekStart(week)

		res, err := svc.CanDriverTakeAssignment(r.Context(), c.Scope, driverID, week)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, eligibilityResponse{Result: res, WeekStart: week.Format("2006-01-02")})
	}
}
