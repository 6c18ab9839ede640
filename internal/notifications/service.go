package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/orro3790/drive-sub008/pkg/db/models"
	pkgerrors "github.com/orro3790/drive-sub008/pkg/errors"
	"github.com/orro3790/drive-sub008/pkg/pagination"
	"github.com/orro3790/drive-sub008/pkg/tenant"
)

// Service is the driver-facing inbox.
type Service interface {
	List(ctx context.Context, scope tenant.Scope, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, scope tenant.Scope, userID, notificationID uuid.UUID, now time.Time) error
}

type ListParams struct {
	UserID     uuid.UUID
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// ListResult is one inbox page. NextCursor is empty on the last page; Unread
// counts every unread notification, not just those on this page.
type ListResult struct {
	Items      []models.Notification `json:"items"`
	NextCursor string                `json:"nextCursor,omitempty"`
	Unread     int64                 `json:"unread"`
}

type inboxService struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, errors.New("notifications repository required")
	}
	return &inboxService{repo: repo}, nil
}

func (s *inboxService) List(ctx context.Context, scope tenant.Scope, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	after, err := pagination.Decode(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.Page(ctx, scope, inboxQuery{
		UserID:     params.UserID,
		After:      after,
		Rows:       pagination.FetchLimit(params.Limit),
		UnreadOnly: params.UnreadOnly,
	})
	if err != nil {
		return nil, pkgerrors.Dependency(err, "list notifications")
	}
	unread, err := s.repo.CountUnread(ctx, scope, params.UserID)
	if err != nil {
		return nil, pkgerrors.Dependency(err, "count unread notifications")
	}

	page, next := pagination.Trim(rows, params.Limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
	if page == nil {
		page = []models.Notification{}
	}
	out := &ListResult{Items: page, Unread: unread}
	if next != nil {
		out.NextCursor = next.Encode()
	}
	return out, nil
}

// MarkRead is idempotent: marking an already-read notification succeeds.
func (s *inboxService) MarkRead(ctx context.Context, scope tenant.Scope, userID, notificationID uuid.UUID, now time.Time) error {
	if userID == uuid.Nil || notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user and notification ids required")
	}
	outcome, err := s.repo.MarkRead(ctx, scope, userID, notificationID, now)
	if err != nil {
		return pkgerrors.Dependency(err, "mark notification read")
	}
	if outcome == readMissing {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}
