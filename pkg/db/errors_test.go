package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type uniqueModel struct {
	ID   int
	Slot string `gorm:"uniqueIndex:ux_unique_models_slot"`
}

func TestIsUniqueViolation_Postgres(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_bids_window_user"}
	wrapped := fmt.Errorf("insert bid: %w", pgErr)

	if !IsUniqueViolation(wrapped, "ux_bids_window_user") {
		t.Fatal("expected match on constraint name")
	}
	if !IsUniqueViolation(wrapped, "") {
		t.Fatal("expected match without constraint filter")
	}
	if IsUniqueViolation(wrapped, "ux_bids_window_won") {
		t.Fatal("did not expect match for other constraint")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Fatal("foreign key violation is not a unique violation")
	}
}

func TestIsUniqueViolation_SQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:unique_violation?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&uniqueModel{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := conn.Create(&uniqueModel{Slot: "a"}).Error; err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err = conn.Create(&uniqueModel{Slot: "a"}).Error
	if !IsUniqueViolation(err, "ux_unique_models_slot") {
		t.Fatalf("expected unique violation, got %v", err)
	}
}

func TestIsUniqueViolation_Other(t *testing.T) {
	if IsUniqueViolation(nil, "") {
		t.Fatal("nil is not a violation")
	}
	if IsUniqueViolation(errors.New("connection refused"), "") {
		t.Fatal("unexpected match")
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(fmt.Errorf("accept bid: %w", &pgconn.PgError{Code: "40001"})) {
		t.Fatal("serialization failure should be transient")
	}
	if !IsTransient(&pgconn.PgError{Code: "40P01"}) {
		t.Fatal("deadlock should be transient")
	}
	if IsTransient(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("unique violation is not transient")
	}
	if IsTransient(nil) {
		t.Fatal("nil is not transient")
	}
}
