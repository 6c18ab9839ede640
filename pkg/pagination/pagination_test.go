package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultLimit, NormalizeLimit(-4))
	assert.Equal(t, 7, NormalizeLimit(7))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+1))
	assert.Equal(t, 8, FetchLimit(7))
}

func TestCursorTokenRoundTrip(t *testing.T) {
	c := Cursor{CreatedAt: time.Date(2026, 3, 12, 15, 0, 0, 123, time.FixedZone("x", 3600)), ID: uuid.New()}

	got, err := Decode(c.Encode())
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.Equal(c.CreatedAt))
	assert.Equal(t, time.UTC, got.CreatedAt.Location())
	assert.Equal(t, c.ID, got.ID)
	assert.NotContains(t, c.Encode(), "=")
}

func TestDecodeRejectsGarbage(t *testing.T) {
	got, err := Decode("  ")
	require.NoError(t, err)
	assert.Nil(t, got)

	for _, token := range []string{"%%%", "bm8tc2VwYXJhdG9y", Cursor{ID: uuid.New()}.Encode()[:10]} {
		_, err := Decode(token)
		assert.ErrorIs(t, err, ErrInvalidCursor, token)
	}
}

func TestTrim(t *testing.T) {
	base := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
	type row struct {
		at time.Time
		id uuid.UUID
	}
	rows := make([]row, 4)
	for i := range rows {
		rows[i] = row{at: base.Add(-time.Duration(i) * time.Minute), id: uuid.New()}
	}
	key := func(r row) Cursor { return Cursor{CreatedAt: r.at, ID: r.id} }

	page, next := Trim(rows, 3, key)
	assert.Len(t, page, 3)
	require.NotNil(t, next)
	assert.Equal(t, rows[2].id, next.ID)

	page, next = Trim(rows[:3], 3, key)
	assert.Len(t, page, 3)
	assert.Nil(t, next)
}
