package tenant_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orro3790/drive-sub008/pkg/db/dbtest"
	"github.com/orro3790/drive-sub008/pkg/db/models"
	"github.com/orro3790/drive-sub008/pkg/tenant"
)

func TestNewScope(t *testing.T) {
	_, err := tenant.NewScope(uuid.Nil)
	assert.ErrorIs(t, err, tenant.ErrMissingOrganization)

	org := uuid.New()
	s, err := tenant.NewScope(org)
	require.NoError(t, err)
	assert.Equal(t, org, s.OrgID())
	assert.False(t, s.IsZero())
	assert.True(t, tenant.Scope{}.IsZero())
}

func TestApplyFiltersByOrganization(t *testing.T) {
	conn := dbtest.Open(t)
	north := dbtest.SeedOrg(t, conn, "North", "UTC")
	south := dbtest.SeedOrg(t, conn, "South", "UTC")
	dbtest.SeedDriver(t, conn, north.Org.ID, "Ana", 80)
	dbtest.SeedDriver(t, conn, north.Org.ID, "Ben", 70)
	dbtest.SeedDriver(t, conn, south.Org.ID, "Cai", 60)

	count := func(s tenant.Scope) int64 {
		var n int64
		require.NoError(t, s.Apply(conn.Model(&models.User{})).Where("role = ?", "driver").Count(&n).Error)
		return n
	}

	assert.Equal(t, int64(2), count(north.Scope))
	assert.Equal(t, int64(1), count(south.Scope))
	assert.Zero(t, count(tenant.Scope{}), "the zero scope matches nothing")
}
