// Package bidding persists bid windows and bids. Every state change is a
// single conditional UPDATE whose affected-row count tells the caller
// whether it won the race.
package bidding

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/orro3790/drive-sub008/pkg/db/models"
	"github.com/orro3790/drive-sub008/pkg/enums"
	"github.com/orro3790/drive-sub008/pkg/tenant"
)

var (
	ErrWindowNotFound = errors.New("bid window not found")
	ErrBidNotFound    = errors.New("bid not found")
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateWindow(ctx context.Context, w *models.BidWindow) (bool, error)
	GetWindow(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*models.BidWindow, error)
	FindOpenWindow(ctx context.Context, scope tenant.Scope, assignmentID uuid.UUID) (*models.BidWindow, error)
	ListOpenWindows(ctx context.Context, scope tenant.Scope) ([]models.BidWindow, error)
	ListDueWindows(ctx context.Context, now time.Time, limit int) ([]models.BidWindow, error)
	TransitionToInstant(ctx context.Context, scope tenant.Scope, id uuid.UUID, closesAt time.Time) (bool, error)
	ResolveWindow(ctx context.Context, scope tenant.Scope, id, winnerID uuid.UUID, now time.Time) (bool, error)
	CloseWindow(ctx context.Context, scope tenant.Scope, id uuid.UUID, winnerID *uuid.UUID, now time.Time) (bool, error)

	CreateBid(ctx context.Context, b *models.Bid) (bool, error)
	CreatePendingBid(ctx context.Context, scope tenant.Scope, b *models.Bid, now time.Time) (inserted, open bool, err error)
	GetBidForUser(ctx context.Context, scope tenant.Scope, windowID, userID uuid.UUID) (*models.Bid, error)
	ListBids(ctx context.Context, scope tenant.Scope, windowID uuid.UUID, statuses ...enums.BidStatus) ([]models.Bid, error)
	MarkBidWon(ctx context.Context, scope tenant.Scope, bidID uuid.UUID, now time.Time) (bool, error)
	MarkBidLost(ctx context.Context, scope tenant.Scope, bidID uuid.UUID, now time.Time) (bool, error)
	MarkOthersLost(ctx context.Context, scope tenant.Scope, windowID uuid.UUID, winnerBidID *uuid.UUID, now time.Time) (int64, error)
	PromoteOrInsertWonBid(ctx context.Context, scope tenant.Scope, w models.BidWindow, userID uuid.UUID, score decimal.NullDecimal, now time.Time) (*models.Bid, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) windows(ctx context.Context, scope tenant.Scope) *gorm.DB {
	return scope.Apply(r.db.WithContext(ctx).Model(&models.BidWindow{}))
}

func (r *repositoryImpl) bids(ctx context.Context, scope tenant.Scope) *gorm.DB {
	return scope.Apply(r.db.WithContext(ctx).Model(&models.Bid{}))
}

// CreateWindow inserts w unless an open window already covers the
// assignment. It reports whether the row was inserted.
func (r *repositoryImpl) CreateWindow(ctx context.Context, w *models.BidWindow) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(w)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repositoryImpl) GetWindow(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*models.BidWindow, error) {
	return r.takeWindow(r.windows(ctx, scope).Where("id = ?", id))
}

func (r *repositoryImpl) FindOpenWindow(ctx context.Context, scope tenant.Scope, assignmentID uuid.UUID) (*models.BidWindow, error) {
	return r.takeWindow(r.windows(ctx, scope).
		Where("assignment_id = ? AND status = ?", assignmentID, enums.BidWindowStatusOpen))
}

func (r *repositoryImpl) takeWindow(q *gorm.DB) (*models.BidWindow, error) {
	var w models.BidWindow
	err := q.Take(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWindowNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *repositoryImpl) ListOpenWindows(ctx context.Context, scope tenant.Scope) ([]models.BidWindow, error) {
	var rows []models.BidWindow
	err := r.windows(ctx, scope).
		Where("status = ?", enums.BidWindowStatusOpen).
		Order("closes_at ASC, id ASC").
		Find(&rows).Error
	return rows, err
}

// ListDueWindows returns open windows across every organization whose
// closesAt has passed, oldest first.
func (r *repositoryImpl) ListDueWindows(ctx context.Context, now time.Time, limit int) ([]models.BidWindow, error) {
	var rows []models.BidWindow
	q := r.db.WithContext(ctx).
		Where("status = ? AND closes_at <= ?", enums.BidWindowStatusOpen, now.UTC()).
		Order("closes_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}

// TransitionToInstant flips an open competitive window to instant mode.
func (r *repositoryImpl) TransitionToInstant(ctx context.Context, scope tenant.Scope, id uuid.UUID, closesAt time.Time) (bool, error) {
	res := r.windows(ctx, scope).
		Where("id = ? AND status = ? AND mode = ?", id, enums.BidWindowStatusOpen, enums.BidWindowModeCompetitive).
		Updates(map[string]any{"mode": enums.BidWindowModeInstant, "closes_at": closesAt.UTC()})
	return res.RowsAffected > 0, res.Error
}

// ResolveWindow marks the window resolved for winnerID (a user id). The guard
// on existing won bids keeps a late writer from resolving a window another
// path already settled.
func (r *repositoryImpl) ResolveWindow(ctx context.Context, scope tenant.Scope, id, winnerID uuid.UUID, now time.Time) (bool, error) {
	res := r.windows(ctx, scope).
		Where("id = ? AND status = ?", id, enums.BidWindowStatusOpen).
		Where("NOT EXISTS (SELECT 1 FROM bids WHERE bids.bid_window_id = bid_windows.id AND bids.status = ?)", enums.BidStatusWon).
		Updates(map[string]any{
			"status":      enums.BidWindowStatusResolved,
			"winner_id":   winnerID,
			"resolved_at": now.UTC(),
		})
	return res.RowsAffected > 0, res.Error
}

func (r *repositoryImpl) CloseWindow(ctx context.Context, scope tenant.Scope, id uuid.UUID, winnerID *uuid.UUID, now time.Time) (bool, error) {
	updates := map[string]any{
		"status":      enums.BidWindowStatusClosed,
		"resolved_at": now.UTC(),
	}
	if winnerID != nil {
		updates["winner_id"] = *winnerID
	}
	res := r.windows(ctx, scope).
		Where("id = ? AND status = ?", id, enums.BidWindowStatusOpen).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

// CreateBid inserts b unless the driver already bid on the window.
func (r *repositoryImpl) CreateBid(ctx context.Context, b *models.Bid) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(b)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CreatePendingBid inserts b while holding the window row, so a resolution
// committing concurrently either sees the bid or makes the insert refuse.
// open is false when the window is no longer an open competitive window.
func (r *repositoryImpl) CreatePendingBid(ctx context.Context, scope tenant.Scope, b *models.Bid, now time.Time) (bool, bool, error) {
	var inserted, open bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &repositoryImpl{db: tx}
		res := txRepo.windows(ctx, scope).
			Where("id = ? AND status = ? AND mode = ?", b.BidWindowID, enums.BidWindowStatusOpen, enums.BidWindowModeCompetitive).
			Update("updated_at", now.UTC())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		open = true
		var err error
		inserted, err = txRepo.CreateBid(ctx, b)
		return err
	})
	if err != nil {
		return false, false, err
	}
	return inserted, open, nil
}

func (r *repositoryImpl) GetBidForUser(ctx context.Context, scope tenant.Scope, windowID, userID uuid.UUID) (*models.Bid, error) {
	var b models.Bid
	err := r.bids(ctx, scope).Where("bid_window_id = ? AND user_id = ?", windowID, userID).Take(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBidNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *repositoryImpl) ListBids(ctx context.Context, scope tenant.Scope, windowID uuid.UUID, statuses ...enums.BidStatus) ([]models.Bid, error) {
	q := r.bids(ctx, scope).Where("bid_window_id = ?", windowID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var rows []models.Bid
	err := q.Order("bid_at ASC, id ASC").Find(&rows).Error
	return rows, err
}

func (r *repositoryImpl) MarkBidWon(ctx context.Context, scope tenant.Scope, bidID uuid.UUID, now time.Time) (bool, error) {
	res := r.bids(ctx, scope).
		Where("id = ? AND status = ?", bidID, enums.BidStatusPending).
		Updates(map[string]any{"status": enums.BidStatusWon, "resolved_at": now.UTC()})
	return res.RowsAffected > 0, res.Error
}

func (r *repositoryImpl) MarkBidLost(ctx context.Context, scope tenant.Scope, bidID uuid.UUID, now time.Time) (bool, error) {
	res := r.bids(ctx, scope).
		Where("id = ? AND status = ?", bidID, enums.BidStatusPending).
		Updates(map[string]any{"status": enums.BidStatusLost, "resolved_at": now.UTC()})
	return res.RowsAffected > 0, res.Error
}

// MarkOthersLost settles every pending bid on the window except winnerBidID.
func (r *repositoryImpl) MarkOthersLost(ctx context.Context, scope tenant.Scope, windowID uuid.UUID, winnerBidID *uuid.UUID, now time.Time) (int64, error) {
	q := r.bids(ctx, scope).Where("bid_window_id = ? AND status = ?", windowID, enums.BidStatusPending)
	if winnerBidID != nil {
		q = q.Where("id <> ?", *winnerBidID)
	}
	res := q.Updates(map[string]any{"status": enums.BidStatusLost, "resolved_at": now.UTC()})
	return res.RowsAffected, res.Error
}

// PromoteOrInsertWonBid turns the driver's existing bid on w into the winning
// bid, or records a new won bid when the driver never bid. A nil bid with a
// nil error means another writer holds the win.
func (r *repositoryImpl) PromoteOrInsertWonBid(ctx context.Context, scope tenant.Scope, w models.BidWindow, userID uuid.UUID, score decimal.NullDecimal, now time.Time) (*models.Bid, error) {
	existing, err := r.GetBidForUser(ctx, scope, w.ID, userID)
	switch {
	case errors.Is(err, ErrBidNotFound):
		b := &models.Bid{
			OrganizationID: w.OrganizationID,
			BidWindowID:    w.ID,
			AssignmentID:   w.AssignmentID,
			UserID:         userID,
			Score:          score,
			Status:         enums.BidStatusWon,
			BidAt:          now.UTC(),
			WindowClosesAt: w.ClosesAt,
			ResolvedAt:     ptrTime(now.UTC()),
		}
		inserted, err := r.CreateBid(ctx, b)
		if err != nil || !inserted {
			return nil, err
		}
		return b, nil
	case err != nil:
		return nil, err
	}

	res := r.bids(ctx, scope).
		Where("id = ? AND status <> ?", existing.ID, enums.BidStatusWon).
		Updates(map[string]any{"status": enums.BidStatusWon, "resolved_at": now.UTC()})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	existing.Status = enums.BidStatusWon
	existing.ResolvedAt = ptrTime(now.UTC())
	return existing, nil
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
