package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestUniqueViolationDetection(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", Message: "duplicate key value"}
	if !isUniqueViolation(dup) {
		t.Error("unique_violation not detected")
	}
	if !isUniqueViolation(fmt.Errorf("insert pp_user_friends: %w", dup)) {
		t.Error("wrapped unique_violation not detected")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Error("foreign-key violation misread as unique_violation")
	}
	if isUniqueViolation(errors.New("connection refused")) {
		t.Error("plain error misread as unique_violation")
	}
}

func TestSQLName(t *testing.T) {
	if got := sqlName("pp-user-result-log"); got != "pp_user_result_log" {
		t.Errorf("got %q, want pp_user_result_log", got)
	}
	if got := sqlName("reference"); got != "reference" {
		t.Errorf("got %q, want reference", got)
	}
}
