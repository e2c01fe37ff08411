package postgres

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestIsBindParameterMismatch(t *testing.T) {
	t.Run("matches bind mismatch error", func(t *testing.T) {
		err := fakeErr("pq: bind message supplies 2 parameters, but prepared statement \"\" requires 1 (08P01)")
		if !isBindParameterMismatch(err) {
			t.Fatalf("expected true for bind mismatch error")
		}
	})

	t.Run("ignores unrelated error", func(t *testing.T) {
		err := fakeErr("pq: relation games does not exist")
		if isBindParameterMismatch(err) {
			t.Fatalf("expected false for unrelated error")
		}
	})
}

func TestIsUnnamedPreparedStatementMissing(t *testing.T) {
	t.Run("matches statement missing message", func(t *testing.T) {
		err := fakeErr("pq: unnamed prepared statement does not exist (26000)")
		if !isUnnamedPreparedStatementMissing(err) {
			t.Fatalf("expected true for statement missing error")
		}
	})

	t.Run("matches by 26000 code", func(t *testing.T) {
		err := fakeErr("pq: prepared statement missing (26000)")
		if !isUnnamedPreparedStatementMissing(err) {
			t.Fatalf("expected true for 26000 prepared statement error")
		}
	})

	t.Run("matches wrapped pq error", func(t *testing.T) {
		err := fmt.Errorf("select games: %w", &pq.Error{Code: "26000", Message: "gone"})
		if !isUnnamedPreparedStatementMissing(err) {
			t.Fatalf("expected true for wrapped pq error")
		}
	})

	t.Run("ignores unrelated error", func(t *testing.T) {
		err := fakeErr("pq: relation games does not exist")
		if isUnnamedPreparedStatementMissing(err) {
			t.Fatalf("expected false for unrelated error")
		}
		if isRetryableStatementError(nil) {
			t.Fatalf("expected false for nil error")
		}
	})
}

func TestIsNotFound(t *testing.T) {
	if !isNotFound(fmt.Errorf("select: %w", sql.ErrNoRows)) {
		t.Fatalf("expected wrapped ErrNoRows to be not found")
	}
	if isNotFound(fakeErr("boom")) {
		t.Fatalf("expected unrelated error to be found")
	}
}

func TestNullInt64ToInt64(t *testing.T) {
	if got := nullInt64ToInt64(sql.NullInt64{Int64: 3, Valid: true}); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	if got := nullInt64ToInt64(sql.NullInt64{Int64: 3}); got != 0 {
		t.Fatalf("expected 0 for null, got %d", got)
	}
}

func TestPropertiesJSON(t *testing.T) {
	t.Run("empty bag is stored as an object", func(t *testing.T) {
		value, err := propertiesJSON(nil).Value()
		if err != nil {
			t.Fatalf("value: %v", err)
		}
		if value != "{}" {
			t.Fatalf("expected {}, got %v", value)
		}
	})

	t.Run("scans jsonb bytes", func(t *testing.T) {
		var props propertiesJSON
		if err := props.Scan([]byte(`{"venue":"Anfield","minute":"12"}`)); err != nil {
			t.Fatalf("scan: %v", err)
		}
		if props["venue"] != "Anfield" || props["minute"] != "12" {
			t.Fatalf("unexpected properties: %#v", props)
		}
	})

	t.Run("null clears the bag", func(t *testing.T) {
		props := propertiesJSON{"venue": "x"}
		if err := props.Scan(nil); err != nil {
			t.Fatalf("scan: %v", err)
		}
		if props != nil {
			t.Fatalf("expected nil properties, got %#v", props)
		}
	})

	t.Run("rejects unsupported source", func(t *testing.T) {
		var props propertiesJSON
		if err := props.Scan(42); err == nil {
			t.Fatalf("expected error for int source")
		}
	})
}

func TestNodeColumnsAliasParent(t *testing.T) {
	lv, err := levelOf("round")
	if err != nil {
		t.Fatalf("levelOf: %v", err)
	}
	cols := nodeColumns(lv)
	if cols[1] != "stage_external_id AS parent_external_id" {
		t.Fatalf("unexpected parent column: %s", cols[1])
	}
	if _, err := levelOf("tournament"); err == nil {
		t.Fatalf("expected tournament to be outside the status hierarchy")
	}
}

type fakeErr string

func (e fakeErr) Error() string { return string(e) }
