package querybuilder

import (
	"testing"
	"time"
)

func TestSelectBuilder(t *testing.T) {
	query, args, err := Select("external_id", "status").
		From("games").
		Where(Eq("round_external_id", "R1")).
		OrderBy("external_id").
		Limit(10).
		ToSQL()
	if err != nil {
		t.Fatalf("build select query: %v", err)
	}

	wantQuery := "SELECT external_id, status FROM games WHERE round_external_id = $1 ORDER BY external_id LIMIT 10"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 1 || args[0] != "R1" {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestSelectBuilderAnyAndComparison(t *testing.T) {
	cutoff := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	statuses := []string{"SCHEDULED", "POSTPONED"}

	query, args, err := Select("external_id").
		From("games").
		Where(Any("status", statuses), Lte("start_date", cutoff)).
		ToSQL()
	if err != nil {
		t.Fatalf("build select query: %v", err)
	}

	wantQuery := "SELECT external_id FROM games WHERE status = ANY($1) AND start_date <= $2"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 2 || args[1] != cutoff {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestInsertBuilder(t *testing.T) {
	query, args, err := InsertInto("feed_ledger").
		Columns("filename", "remote_modified_at").
		Values("ENG1-2024-results.xml", "2024-03-01").
		Suffix("ON CONFLICT (filename) DO NOTHING").
		ToSQL()
	if err != nil {
		t.Fatalf("build insert query: %v", err)
	}

	wantQuery := "INSERT INTO feed_ledger (filename, remote_modified_at) VALUES ($1, $2) ON CONFLICT (filename) DO NOTHING"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 2 || args[0] != "ENG1-2024-results.xml" {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestUpdateBuilder(t *testing.T) {
	query, args, err := Update("rounds").
		Set("status", "TERMINATED").
		SetExpr("updated_at", "NOW()").
		Where(Eq("external_id", "R1")).
		ToSQL()
	if err != nil {
		t.Fatalf("build update query: %v", err)
	}

	wantQuery := "UPDATE rounds SET status = $1, updated_at = NOW() WHERE external_id = $2"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 2 || args[0] != "TERMINATED" || args[1] != "R1" {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestUpdateBuilderCompareAndSet(t *testing.T) {
	query, args, err := Update("games").
		Set("status", "ON_GOING").
		Where(Eq("external_id", "G1"), Eq("status", "SCHEDULED")).
		ToSQL()
	if err != nil {
		t.Fatalf("build update query: %v", err)
	}

	wantQuery := "UPDATE games SET status = $1 WHERE external_id = $2 AND status = $3"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 3 || args[2] != "SCHEDULED" {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestUpdateBuilderExpressionArgsAreNumbered(t *testing.T) {
	query, args, err := Update("games").
		Set("home_score", 2).
		SetExpr("properties", "properties || ?::jsonb", `{"minute":"67"}`).
		SetExpr("updated_at", "NOW()").
		Where(Eq("external_id", "G1")).
		ToSQL()
	if err != nil {
		t.Fatalf("build update query: %v", err)
	}

	wantQuery := "UPDATE games SET home_score = $1, properties = properties || $2::jsonb, updated_at = NOW() WHERE external_id = $3"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 3 || args[1] != `{"minute":"67"}` || args[2] != "G1" {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestInsertModelSkipsOmitInsertColumns(t *testing.T) {
	type row struct {
		ID         int64  `db:"id,omitinsert"`
		ExternalID string `db:"external_id"`
		Name       string `db:"name"`
		internal   string
	}

	query, args, err := InsertModel("tournaments", row{ID: 9, ExternalID: "ENG1", Name: "Premier League", internal: "x"}, "")
	if err != nil {
		t.Fatalf("build insert model: %v", err)
	}

	wantQuery := "INSERT INTO tournaments (external_id, name) VALUES ($1, $2)"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 2 || args[0] != "ENG1" {
		t.Fatalf("unexpected args: %+v", args)
	}
}
