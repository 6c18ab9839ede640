package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/orro3790/drive-sub008/pkg/config"
	"github.com/orro3790/drive-sub008/pkg/logger"
)

type routeRow struct {
	ID   uuid.UUID `gorm:"type:text;primaryKey"`
	Name string
}

func openClient(t *testing.T) *Client {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), GormConfig())
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&routeRow{}))
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return FromGorm(conn)
}

func countRoutes(t *testing.T, c *Client) int64 {
	t.Helper()
	var n int64
	require.NoError(t, c.DB().Model(&routeRow{}).Count(&n).Error)
	return n
}

func TestWithTxCommits(t *testing.T) {
	client := openClient(t)

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return tx.Create(&routeRow{ID: uuid.New(), Name: "North Loop"}).Error
	})

	require.NoError(t, err)
	assert.Equal(t, int64(1), countRoutes(t, client))
}

func TestWithTxRollsBackOnError(t *testing.T) {
	client := openClient(t)
	boom := errors.New("window already closed")

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := tx.Create(&routeRow{ID: uuid.New(), Name: "Harbour"}).Error; err != nil {
			return err
		}
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Zero(t, countRoutes(t, client))
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	client := openClient(t)

	assert.Panics(t, func() {
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			require.NoError(t, tx.Create(&routeRow{ID: uuid.New(), Name: "Airport"}).Error)
			panic("scoring blew up")
		})
	})
	assert.Zero(t, countRoutes(t, client))
}

func TestPing(t *testing.T) {
	client := openClient(t)
	assert.NoError(t, client.Ping(context.Background()))

	require.NoError(t, client.Close())
	assert.Error(t, client.Ping(context.Background()))
}

func TestDialectorFor(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.DBConfig
		want    string
		wantErr bool
	}{
		{name: "postgres without dsn", cfg: config.DBConfig{}, wantErr: true},
		{name: "sqlite without path", cfg: config.DBConfig{UseSQLite: true}, wantErr: true},
		{name: "sqlite", cfg: config.DBConfig{UseSQLite: true, SQLitePath: "drive.db"}, want: "sqlite"},
		{name: "postgres", cfg: config.DBConfig{DSN: "postgres://drive@localhost:5432/drive"}, want: "postgres"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := dialectorFor(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Name())
		})
	}
}

func TestQueryLoggerReportsSlowAndFailedQueries(t *testing.T) {
	var buf bytes.Buffer
	q := newQueryLogger(logger.New(logger.Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: &buf}), time.Millisecond)
	ctx := context.Background()
	stmt := func() (string, int64) { return `SELECT * FROM "bid_windows"`, 3 }

	q.Trace(ctx, time.Now(), stmt, gorm.ErrRecordNotFound)
	q.Trace(ctx, time.Now(), stmt, nil)
	assert.Empty(t, buf.String(), "fast queries and missing rows stay quiet")

	q.Trace(ctx, time.Now().Add(-time.Second), stmt, nil)
	assert.Contains(t, buf.String(), "db.query_slow")
	assert.Contains(t, buf.String(), "bid_windows")

	buf.Reset()
	q.Trace(ctx, time.Now(), stmt, errors.New("relation does not exist"))
	assert.Contains(t, buf.String(), "db.query_failed")

	buf.Reset()
	q.LogMode(gormlogger.Silent).Trace(ctx, time.Now().Add(-time.Second), stmt, nil)
	assert.Empty(t, strings.TrimSpace(buf.String()))
}
