package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orro3790/drive-sub008/pkg/db/dbtest"
	"github.com/orro3790/drive-sub008/pkg/db/models"
	"github.com/orro3790/drive-sub008/pkg/enums"
	pkgerrors "github.com/orro3790/drive-sub008/pkg/errors"
	"github.com/orro3790/drive-sub008/pkg/tenant"
)

var inboxNow = time.Date(2026, 3, 12, 15, 0, 0, 0, time.UTC)

type inboxFixture struct {
	svc    Service
	scope  tenant.Scope
	driver uuid.UUID
	ids    []uuid.UUID
}

// newInbox seeds n notifications for one driver, newest first in ids.
func newInbox(t *testing.T, n int) inboxFixture {
	t.Helper()
	conn := dbtest.Open(t)
	org := dbtest.SeedOrg(t, conn, "acme", "UTC")
	driver := dbtest.SeedDriver(t, conn, org.Org.ID, "d1", 90)

	ids := make([]uuid.UUID, n)
	for i := 0; i < n; i++ {
		row := models.Notification{
			OrganizationID: org.Org.ID,
			UserID:         driver.ID,
			Type:           enums.NotificationTypeDriverNoShow,
			Title:          "Shift update",
			Body:           "body",
			CreatedAt:      inboxNow.Add(-time.Duration(i) * time.Minute),
		}
		require.NoError(t, conn.Create(&row).Error)
		ids[i] = row.ID
	}
	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)
	return inboxFixture{svc: svc, scope: org.Scope, driver: driver.ID, ids: ids}
}

func TestInboxPagesNewestFirst(t *testing.T) {
	f := newInbox(t, 3)
	ctx := context.Background()

	first, err := f.svc.List(ctx, f.scope, ListParams{UserID: f.driver, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.Equal(t, f.ids[0], first.Items[0].ID)
	assert.Equal(t, f.ids[1], first.Items[1].ID)
	assert.EqualValues(t, 3, first.Unread)
	require.NotEmpty(t, first.NextCursor)

	second, err := f.svc.List(ctx, f.scope, ListParams{UserID: f.driver, Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, f.ids[2], second.Items[0].ID)
	assert.Empty(t, second.NextCursor)
}

func TestInboxMarkReadIsIdempotent(t *testing.T) {
	f := newInbox(t, 2)
	ctx := context.Background()

	require.NoError(t, f.svc.MarkRead(ctx, f.scope, f.driver, f.ids[0], inboxNow))
	require.NoError(t, f.svc.MarkRead(ctx, f.scope, f.driver, f.ids[0], inboxNow.Add(time.Minute)))

	unread, err := f.svc.List(ctx, f.scope, ListParams{UserID: f.driver, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread.Items, 1)
	assert.Equal(t, f.ids[1], unread.Items[0].ID)
	assert.EqualValues(t, 1, unread.Unread)
}

func TestInboxIsPrivateToItsOwner(t *testing.T) {
	f := newInbox(t, 1)
	ctx := context.Background()

	err := f.svc.MarkRead(ctx, f.scope, uuid.New(), f.ids[0], inboxNow)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	other, err := tenant.NewScope(uuid.New())
	require.NoError(t, err)
	res, err := f.svc.List(ctx, other, ListParams{UserID: f.driver})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Zero(t, res.Unread)
}

func TestInboxValidatesInput(t *testing.T) {
	f := newInbox(t, 0)
	ctx := context.Background()

	_, err := f.svc.List(ctx, f.scope, ListParams{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.List(ctx, f.scope, ListParams{UserID: f.driver, Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	err = f.svc.MarkRead(ctx, f.scope, f.driver, uuid.Nil, inboxNow)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

type brokenRepository struct{ Repository }

func (brokenRepository) Page(context.Context, tenant.Scope, inboxQuery) ([]models.Notification, error) {
	return nil, errors.New("db down")
}

func (brokenRepository) MarkRead(context.Context, tenant.Scope, uuid.UUID, uuid.UUID, time.Time) (readOutcome, error) {
	return readMissing, errors.New("db down")
}

func TestInboxSurfacesStoreFailures(t *testing.T) {
	svc, err := NewService(brokenRepository{})
	require.NoError(t, err)
	scope, err := tenant.NewScope(uuid.New())
	require.NoError(t, err)

	_, err = svc.List(context.Background(), scope, ListParams{UserID: uuid.New()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	err = svc.MarkRead(context.Background(), scope, uuid.New(), uuid.New(), inboxNow)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}
