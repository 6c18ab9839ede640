package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/orro3790/drive-sub008/api/responses"
	"github.com/orro3790/drive-sub008/api/validators"
	"github.com/orro3790/drive-sub008/internal/bidwindows"
	"github.com/orro3790/drive-sub008/internal/instantassign"
	"github.com/orro3790/drive-sub008/internal/resolution"
	"github.com/orro3790/drive-sub008/pkg/db/models"
	"github.com/orro3790/drive-sub008/pkg/enums"
	"github.com/orro3790/drive-sub008/pkg/logger"
	"github.com/orro3790/drive-sub008/pkg/tenant"
)

type BidWindowService interface {
	CreateBidWindow(ctx context.Context, scope tenant.Scope, assignmentID uuid.UUID, opts bidwindows.CreateOptions) (bidwindows.CreateResult, error)
	SubmitBid(ctx context.Context, scope tenant.Scope, in bidwindows.SubmitBidInput) (bidwindows.SubmitBidResult, error)
	ListOpenWindows(ctx context.Context, scope tenant.Scope) ([]models.BidWindow, error)
}

type WindowResolver interface {
	ResolveBidWindow(ctx context.Context, scope tenant.Scope, bidWindowID uuid.UUID, actor string, now time.Time) (resolution.ResolveResult, error)
}

type AssignService interface {
	InstantAssign(ctx context.Context, scope tenant.Scope, in instantassign.InstantAssignInput) (instantassign.InstantAssignResult, error)
	ManagerAssign(ctx context.Context, scope tenant.Scope, in instantassign.ManagerAssignInput) (instantassign.InstantAssignResult, error)
}

type createBidWindowRequest struct {
	Mode            string `json:"mode" validate:"omitempty,oneof=competitive instant emergency"`
	Trigger         string `json:"trigger" validate:"omitempty,oneof=auto cancellation manager no_show cron"`
	PayBonusPercent *int   `json:"payBonusPercent" validate:"omitempty,min=0,max=100"`
	AllowPastShift  bool   `json:"allowPastShift"`
}

// CreateBidWindow opens a window for an unfilled assignment. Business
// refusals come back as success=false with a reason.
func CreateBidWindow(svc BidWindowService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		assignmentID, err := validators.ParseUUIDParam(r, "assignmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req createBidWindowRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		opts := bidwindows.CreateOptions{
			Trigger:         enums.BidWindowTriggerManager,
			PayBonusPercent: req.PayBonusPercent,
			AllowPastShift:  req.AllowPastShift,
			Now:             clock(),
		}
		if req.Trigger != "" {
			opts.Trigger = enums.BidWindowTrigger(req.Trigger)
		}
		if req.Mode != "" {
			mode := enums.BidWindowMode(req.Mode)
			opts.Mode = &mode
		}

		res, err := svc.CreateBidWindow(r.Context(), c.Scope, assignmentID, opts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusOK
		if res.Success && !res.Existing {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, res)
	}
}

// ListOpenWindows returns the caller organization's open windows.
func ListOpenWindows(svc BidWindowService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		windows, err := svc.ListOpenWindows(r.Context(), c.Scope)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": windows})
	}
}

// SubmitBid records the calling driver's bid.
func SubmitBid(svc BidWindowService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		windowID, err := validators.ParseUUIDParam(r, "bidWindowId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := svc.SubmitBid(r.Context(), c.Scope, bidwindows.SubmitBidInput{
			BidWindowID: windowID,
			UserID:      c.UserID,
			Now:         clock(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}

// ResolveBidWindow settles a competitive window on demand.
func ResolveBidWindow(svc WindowResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		windowID, err := validators.ParseUUIDParam(r, "bidWindowId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := svc.ResolveBidWindow(r.Context(), c.Scope, windowID, c.Actor(), clock())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}

type acceptRequest struct {
	AssignmentID string `json:"assignmentId" validate:"required,uuid"`
}

// AcceptBidWindow claims a first-accept window for the calling driver.
func AcceptBidWindow(svc AssignService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		windowID, err := validators.ParseUUIDParam(r, "bidWindowId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req acceptRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := svc.InstantAssign(r.Context(), c.Scope, instantassign.InstantAssignInput{
			AssignmentID: uuid.MustParse(req.AssignmentID),
			BidWindowID:  windowID,
			UserID:       c.UserID,
			Now:          clock(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}
