package errors

import (
	stdErrors "errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// SQLSTATE classes the dispatch engine reacts to.
const (
	PGUniqueViolation      = "23505"
	PGSerializationFailure = "40001"
	PGDeadlockDetected     = "40P01"
)

// ErrorDump flattens an error chain for structured logs.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`

	SQLiteMessage string `json:"sqlite_message,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error()}
	if typed := As(err); typed != nil {
		d.Code = typed.Code
	}
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	d.PGCode, d.PGConstraint, d.PGTable, d.PGDetail = postgresFields(err)
	if d.PGCode == "" && isSQLiteConstraint(err.Error()) {
		d.SQLiteMessage = err.Error()
	}
	return d
}

// postgresFields reads SQLSTATE details from either driver in the stack:
// pgx through gorm, lib/pq where raw database/sql is used.
func postgresFields(err error) (code, constraint, table, detail string) {
	var pgxErr *pgconn.PgError
	if stdErrors.As(err, &pgxErr) {
		return pgxErr.Code, pgxErr.ConstraintName, pgxErr.TableName, pgxErr.Detail
	}
	var pqErr *pq.Error
	if stdErrors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint, pqErr.Table, pqErr.Detail
	}
	return "", "", "", ""
}

func isSQLiteConstraint(msg string) bool {
	return strings.Contains(msg, "constraint failed")
}

// IsUniqueViolation matches a unique-index failure, optionally narrowed to
// one constraint. SQLite names columns rather than the index, so any SQLite
// UNIQUE failure matches regardless of constraint.
func IsUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	code, name, _, _ := postgresFields(err)
	if code != "" {
		return code == PGUniqueViolation && (constraint == "" || name == constraint)
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return true
	}
	return strings.Contains(msg, "duplicate key value") && (constraint == "" || strings.Contains(msg, constraint))
}

// IsTransient matches serialization failures and deadlocks, which succeed
// when the transaction is simply rerun.
func IsTransient(err error) bool {
	code, _, _, _ := postgresFields(err)
	if code == PGSerializationFailure || code == PGDeadlockDetected {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "database is locked")
}
