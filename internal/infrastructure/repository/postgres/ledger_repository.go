package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/sports-feed-sync/internal/domain/feed"
	qb "github.com/riskibarqy/sports-feed-sync/internal/platform/querybuilder"
)

type ledgerTableModel struct {
	Filename         string     `db:"filename"`
	RemoteModifiedAt *time.Time `db:"remote_modified_at"`
	AppliedAt        time.Time  `db:"applied_at"`
	ContentHash      string     `db:"content_hash"`
}

type LedgerRepository struct {
	db *sqlx.DB
}

func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) Get(ctx context.Context, filename string) (feed.LedgerEntry, bool, error) {
	query, args, err := qb.Select("*").From("feed_ledger").
		Where(qb.Eq("filename", filename)).
		Limit(1).
		ToSQL()
	if err != nil {
		return feed.LedgerEntry{}, false, fmt.Errorf("build select ledger entry query: %w", err)
	}

	var row ledgerTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return feed.LedgerEntry{}, false, nil
		}
		return feed.LedgerEntry{}, false, fmt.Errorf("select ledger entry: %w", err)
	}

	entry := feed.LedgerEntry{
		Filename:    row.Filename,
		AppliedAt:   row.AppliedAt.UTC(),
		ContentHash: row.ContentHash,
	}
	if row.RemoteModifiedAt != nil {
		entry.RemoteModifiedAt = row.RemoteModifiedAt.UTC()
	}
	return entry, true, nil
}

// Upsert keeps the greater of the stored and incoming remote timestamps.
// GREATEST ignores NULL, so an untimed listing never clears a known stamp.
func (r *LedgerRepository) Upsert(ctx context.Context, entry feed.LedgerEntry) error {
	model := ledgerTableModel{
		Filename:    entry.Filename,
		AppliedAt:   entry.AppliedAt.UTC(),
		ContentHash: entry.ContentHash,
	}
	if !entry.RemoteModifiedAt.IsZero() {
		remote := entry.RemoteModifiedAt.UTC()
		model.RemoteModifiedAt = &remote
	}

	query, args, err := qb.InsertModel("feed_ledger", model, `
		ON CONFLICT (filename) DO UPDATE SET
			remote_modified_at = GREATEST(feed_ledger.remote_modified_at, EXCLUDED.remote_modified_at),
			applied_at = EXCLUDED.applied_at,
			content_hash = EXCLUDED.content_hash
	`)
	if err != nil {
		return fmt.Errorf("build upsert ledger entry query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert ledger entry %s: %w", entry.Filename, err)
	}
	return nil
}
