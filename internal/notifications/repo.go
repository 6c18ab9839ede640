package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/orro3790/drive-sub008/pkg/db/models"
	"github.com/orro3790/drive-sub008/pkg/pagination"
	"github.com/orro3790/drive-sub008/pkg/tenant"
)

// Repository is the inbox table. Every read is confined to one user in one
// organization.
type Repository interface {
	// CreateIfAbsent inserts n unless its dedupe key already exists.
	CreateIfAbsent(ctx context.Context, n *models.Notification) (bool, error)
	Page(ctx context.Context, scope tenant.Scope, q inboxQuery) ([]models.Notification, error)
	CountUnread(ctx context.Context, scope tenant.Scope, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, scope tenant.Scope, userID, notificationID uuid.UUID, now time.Time) (readOutcome, error)
	CountByDedupeKey(ctx context.Context, scope tenant.Scope, key string) (int64, error)
}

type inboxQuery struct {
	UserID     uuid.UUID
	After      *pagination.Cursor
	Rows       int
	UnreadOnly bool
}

type readOutcome int

const (
	readMissing readOutcome = iota
	readMarked
	readAlready
)

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) inbox(ctx context.Context, scope tenant.Scope, userID uuid.UUID) *gorm.DB {
	return scope.Apply(r.db.WithContext(ctx).Model(&models.Notification{})).Where("user_id = ?", userID)
}

func (r *gormRepository) CreateIfAbsent(ctx context.Context, n *models.Notification) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(n)
	return res.RowsAffected > 0, res.Error
}

// Page returns up to q.Rows notifications newest first, strictly after q.After.
func (r *gormRepository) Page(ctx context.Context, scope tenant.Scope, q inboxQuery) ([]models.Notification, error) {
	tx := r.inbox(ctx, scope, q.UserID)
	if q.UnreadOnly {
		tx = tx.Where("read_at IS NULL")
	}
	if c := q.After; c != nil {
		tx = tx.Where("created_at < ? OR (created_at = ? AND id < ?)", c.CreatedAt, c.CreatedAt, c.ID)
	}
	var rows []models.Notification
	err := tx.Order("created_at DESC").Order("id DESC").Limit(q.Rows).Find(&rows).Error
	return rows, err
}

func (r *gormRepository) CountUnread(ctx context.Context, scope tenant.Scope, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.inbox(ctx, scope, userID).Where("read_at IS NULL").Count(&n).Error
	return n, err
}

// MarkRead stamps read_at once; a second call reports readAlready.
func (r *gormRepository) MarkRead(ctx context.Context, scope tenant.Scope, userID, notificationID uuid.UUID, now time.Time) (readOutcome, error) {
	res := r.inbox(ctx, scope, userID).
		Where("id = ? AND read_at IS NULL", notificationID).
		UpdateColumn("read_at", now.UTC())
	if res.Error != nil {
		return readMissing, res.Error
	}
	if res.RowsAffected > 0 {
		return readMarked, nil
	}

	var n int64
	if err := r.inbox(ctx, scope, userID).Where("id = ?", notificationID).Count(&n).Error; err != nil {
		return readMissing, err
	}
	if n == 0 {
		return readMissing, nil
	}
	return readAlready, nil
}

func (r *gormRepository) CountByDedupeKey(ctx context.Context, scope tenant.Scope, key string) (int64, error) {
	var n int64
	err := scope.Apply(r.db.WithContext(ctx).Model(&models.Notification{})).Where("dedupe_key = ?", key).Count(&n).Error
	return n, err
}
