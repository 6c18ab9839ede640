// Package migrate owns the Postgres schema: embedded goose migrations, the
// dev auto-run hook, and helpers behind cmd/migrate.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where new migrations are written, relative to the repo root.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// embeddedDir is the root of the migrations inside embedded.
const embeddedDir = "migrations"

// Migrator applies migrations through a goose provider bound to one
// database. It touches no goose package globals.
type Migrator struct {
	provider *goose.Provider
}

// Status is one migration as the database sees it.
type Status struct {
	Version   int64     `json:"version"`
	File      string    `json:"file"`
	Applied   bool      `json:"applied"`
	AppliedAt time.Time `json:"appliedAt,omitzero"`
}

// New reads migrations from dir, or from the set compiled into the binary
// when dir is empty.
func New(db *sql.DB, dir string) (*Migrator, error) {
	return newMigrator(db, dir, goose.DialectPostgres)
}

func newMigrator(db *sql.DB, dir string, dialect goose.Dialect) (*Migrator, error) {
	if db == nil {
		return nil, errors.New("migrate: db is required")
	}
	fsys, err := migrationsFS(dir)
	if err != nil {
		return nil, err
	}
	p, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Migrator{provider: p}, nil
}

func migrationsFS(dir string) (fs.FS, error) {
	if dir == "" {
		return fs.Sub(embedded, "migrations")
	}
	return os.DirFS(dir), nil
}

// Up applies every pending migration and returns the versions applied.
func (m *Migrator) Up(ctx context.Context) ([]int64, error) {
	res, err := m.provider.Up(ctx)
	if err != nil {
		return versions(res), fmt.Errorf("goose up: %w", err)
	}
	return versions(res), nil
}

// Down rolls back the most recent migration.
func (m *Migrator) Down(ctx context.Context) ([]int64, error) {
	res, err := m.provider.Down(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose down: %w", err)
	}
	return versions([]*goose.MigrationResult{res}), nil
}

// To moves the schema up or down until target is the newest applied version.
func (m *Migrator) To(ctx context.Context, target int64) ([]int64, error) {
	current, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("read db version: %w", err)
	}
	var res []*goose.MigrationResult
	switch {
	case current < target:
		res, err = m.provider.UpTo(ctx, target)
	case current > target:
		res, err = m.provider.DownTo(ctx, target)
	}
	if err != nil {
		return versions(res), fmt.Errorf("goose to %d: %w", target, err)
	}
	return versions(res), nil
}

// Status lists every known migration in version order.
func (m *Migrator) Status(ctx context.Context) ([]Status, error) {
	rows, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	out := make([]Status, 0, len(rows))
	for _, row := range rows {
		out = append(out, Status{
			Version:   row.Source.Version,
			File:      filepath.Base(row.Source.Path),
			Applied:   row.State == goose.StateApplied,
			AppliedAt: row.AppliedAt,
		})
	}
	return out, nil
}

// ParseVersion accepts the YYYYMMDDHHMMSS prefix of a migration file name.
func ParseVersion(raw string) (int64, error) {
	if len(raw) != 14 {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", raw)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", raw, err)
	}
	return v, nil
}

func versions(res []*goose.MigrationResult) []int64 {
	out := make([]int64, 0, len(res))
	for _, r := range res {
		if r != nil && r.Source != nil {
			out = append(out, r.Source.Version)
		}
	}
	return out
}
