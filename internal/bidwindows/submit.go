package bidwindows

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orro3790/drive-sub008/internal/assignments"
	"github.com/orro3790/drive-sub008/internal/bidding"
	"github.com/orro3790/drive-sub008/internal/resolution"
	"github.com/orro3790/drive-sub008/pkg/db/models"
	"github.com/orro3790/drive-sub008/pkg/enums"
	pkgerrors "github.com/orro3790/drive-sub008/pkg/errors"
	"github.com/orro3790/drive-sub008/pkg/tenant"
)

type SubmitBidInput struct {
	BidWindowID uuid.UUID
	UserID      uuid.UUID
	Now         time.Time
}

type SubmitBidResult struct {
	Success  bool             `json:"success"`
	BidID    *uuid.UUID       `json:"bidId,omitempty"`
	Score    *decimal.Decimal `json:"score,omitempty"`
	Existing bool             `json:"existing"`
	Reason   enums.Reason     `json:"reason,omitempty"`
}

// SubmitBid records a driver's bid on an open competitive window. Resubmits
// return the driver's existing bid.
func (m *Manager) SubmitBid(ctx context.Context, scope tenant.Scope, in SubmitBidInput) (SubmitBidResult, error) {
	ctx = m.Logger.WithDispatch(ctx, "", in.BidWindowID.String())

	w, err := m.Windows.GetWindow(ctx, scope, in.BidWindowID)
	if errors.Is(err, bidding.ErrWindowNotFound) {
		return SubmitBidResult{Reason: enums.ReasonWindowNotFound}, nil
	}
	if err != nil {
		return SubmitBidResult{}, pkgerrors.Dependency(err, "load bid window")
	}
	switch {
	case w.Status != enums.BidWindowStatusOpen:
		return SubmitBidResult{Reason: enums.ReasonWindowClosed}, nil
	case w.Mode.IsFirstAccept():
		return SubmitBidResult{Reason: enums.ReasonWindowIsInstant}, nil
	case !in.Now.Before(w.ClosesAt):
		return SubmitBidResult{Reason: enums.ReasonWindowExpired}, nil
	}

	if existing, err := m.Windows.GetBidForUser(ctx, scope, w.ID, in.UserID); err == nil {
		return existingBid(existing), nil
	} else if !errors.Is(err, bidding.ErrBidNotFound) {
		return SubmitBidResult{}, pkgerrors.Dependency(err, "load bid")
	}

	a, err := m.Assignments.Get(ctx, scope, w.AssignmentID)
	if errors.Is(err, assignments.ErrNotFound) {
		return SubmitBidResult{Reason: enums.ReasonAssignmentNotFound}, nil
	}
	if err != nil {
		return SubmitBidResult{}, pkgerrors.Dependency(err, "load assignment")
	}
	if a.Status != enums.AssignmentStatusUnfilled {
		return SubmitBidResult{Reason: enums.ReasonRouteAlreadyAssigned}, nil
	}

	check, err := m.Eligibility.CheckForDate(ctx, scope, in.UserID, a.CivilDate())
	if err != nil {
		return SubmitBidResult{}, pkgerrors.Dependency(err, "check eligibility")
	}
	if !check.Eligible {
		return SubmitBidResult{Reason: check.Reason}, nil
	}

	var score decimal.NullDecimal
	inputs, ok, err := m.Health.ScoreInputs(ctx, scope, in.UserID, a.RouteID, in.Now)
	if err != nil {
		return SubmitBidResult{}, pkgerrors.Dependency(err, "load score inputs")
	}
	if ok {
		score = decimal.NewNullDecimal(resolution.Score(inputs))
	}

	bid := models.Bid{
		OrganizationID: w.OrganizationID,
		BidWindowID:    w.ID,
		AssignmentID:   w.AssignmentID,
		UserID:         in.UserID,
		Score:          score,
		Status:         enums.BidStatusPending,
		BidAt:          in.Now.UTC(),
		WindowClosesAt: w.ClosesAt,
	}
	inserted, open, err := m.Windows.CreatePendingBid(ctx, scope, &bid, in.Now)
	if err != nil {
		return SubmitBidResult{}, pkgerrors.Dependency(err, "create bid")
	}
	if !open {
		return SubmitBidResult{Reason: enums.ReasonWindowClosed}, nil
	}
	if !inserted {
		existing, err := m.Windows.GetBidForUser(ctx, scope, w.ID, in.UserID)
		if err != nil {
			return SubmitBidResult{}, pkgerrors.Dependency(err, "load bid")
		}
		return existingBid(existing), nil
	}

	m.Logger.Info(m.Logger.WithUserID(ctx, in.UserID.String()), "bid.submitted")
	res := SubmitBidResult{Success: true, BidID: &bid.ID}
	if score.Valid {
		res.Score = &score.Decimal
	}
	return res, nil
}

func existingBid(b *models.Bid) SubmitBidResult {
	res := SubmitBidResult{Success: true, Existing: true, BidID: &b.ID}
	if b.Score.Valid {
		res.Score = &b.Score.Decimal
	}
	return res
}
