package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riskibarqy/sports-feed-sync/internal/infrastructure/repository/memory"
)

func TestFeedLedger_IsStale(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger := NewFeedLedger(memory.NewLedgerRepository())
	applied := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	stale, err := ledger.IsStale(ctx, "a.xml", applied)
	if err != nil || !stale {
		t.Fatalf("never applied file must be stale: stale=%v err=%v", stale, err)
	}
	if err := ledger.RecordApplied(ctx, "a.xml", applied, []byte("<a/>")); err != nil {
		t.Fatalf("record: %v", err)
	}

	tests := []struct {
		name   string
		remote time.Time
		want   bool
	}{
		{name: "same timestamp", remote: applied, want: false},
		{name: "older timestamp", remote: applied.Add(-time.Hour), want: false},
		{name: "newer timestamp", remote: applied.Add(time.Second), want: true},
		{name: "unknown timestamp", remote: time.Time{}, want: true},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, err := ledger.IsStale(ctx, "a.xml", tc.remote)
			if err != nil {
				t.Fatalf("is stale: %v", err)
			}
			if got != tc.want {
				t.Fatalf("unexpected staleness: got=%v want=%v", got, tc.want)
			}
		})
	}
}

func TestFeedLedger_RecordAppliedIsMonotonic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := memory.NewLedgerRepository()
	ledger := NewFeedLedger(repo)
	newer := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	if err := ledger.RecordApplied(ctx, "a.xml", newer, []byte("v2")); err != nil {
		t.Fatalf("record newer: %v", err)
	}
	if err := ledger.RecordApplied(ctx, "a.xml", newer.Add(-24*time.Hour), []byte("v1")); err != nil {
		t.Fatalf("record older: %v", err)
	}

	entry, ok, err := repo.Get(ctx, "a.xml")
	if err != nil || !ok {
		t.Fatalf("get entry: ok=%v err=%v", ok, err)
	}
	if !entry.RemoteModifiedAt.Equal(newer) {
		t.Fatalf("ledger moved backwards: %v", entry.RemoteModifiedAt)
	}
	if entry.ContentHash == "" || len(entry.ContentHash) != 64 {
		t.Fatalf("unexpected content hash: %q", entry.ContentHash)
	}
}

func TestFeedLedger_RejectsEmptyFilename(t *testing.T) {
	t.Parallel()

	ledger := NewFeedLedger(memory.NewLedgerRepository())
	if _, err := ledger.IsStale(context.Background(), " ", time.Now()); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got=%v", err)
	}
}
