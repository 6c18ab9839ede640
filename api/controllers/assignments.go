package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/orro3790/drive-sub008/api/responses"
	"github.com/orro3790/drive-sub008/api/validators"
	"github.com/orro3790/drive-sub008/internal/assignments"
	"github.com/orro3790/drive-sub008/internal/instantassign"
	"github.com/orro3790/drive-sub008/pkg/logger"
	"github.com/orro3790/drive-sub008/pkg/tenant"
)

type LifecycleService interface {
	Confirm(ctx context.Context, scope tenant.Scope, id, userID uuid.UUID, now time.Time) (assignments.Result, error)
	Arrive(ctx context.Context, scope tenant.Scope, id, userID uuid.UUID, now time.Time) (assignments.Result, error)
	Complete(ctx context.Context, scope tenant.Scope, id, userID uuid.UUID, now time.Time) (assignments.Result, error)
	Cancel(ctx context.Context, scope tenant.Scope, in assignments.CancelInput) (assignments.Result, error)
}

type lifecycleStep func(ctx context.Context, scope tenant.Scope, id, userID uuid.UUID, now time.Time) (assignments.Result, error)

// ConfirmAssignment, ArriveAssignment and CompleteAssignment act on the
// calling driver's own assignment.
func ConfirmAssignment(svc LifecycleService, logg *logger.Logger) http.HandlerFunc {
	return driverStep(svc.Confirm, logg)
}

func ArriveAssignment(svc LifecycleService, logg *logger.Logger) http.HandlerFunc {
	return driverStep(svc.Arrive, logg)
}

func CompleteAssignment(svc LifecycleService, logg *logger.Logger) http.HandlerFunc {
	return driverStep(svc.Complete, logg)
}

func driverStep(step lifecycleStep, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "assignmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := step(r.Context(), c.Scope, id, c.UserID, clock())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}

// CancelAssignment releases a driver's route back to bidding, or cancels
// the slot outright when the caller dispatches.
func CancelAssignment(svc LifecycleService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "assignmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := svc.Cancel(r.Context(), c.Scope, assignments.CancelInput{
			AssignmentID: id,
			ActorID:      c.UserID,
			ByManager:    c.Role.CanDispatch(),
			Now:          clock(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}

type managerAssignRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
}

// ManagerAssign hands an unfilled assignment to a chosen driver.
func ManagerAssign(svc AssignService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "assignmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req managerAssignRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := svc.ManagerAssign(r.Context(), c.Scope, instantassign.ManagerAssignInput{
			AssignmentID: id,
			UserID:       uuid.MustParse(req.UserID),
			ManagerID:    c.UserID,
			Now:          clock(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}
