package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/riskibarqy/sports-feed-sync/internal/domain/feed"
)

// FeedLedger decides whether a remote file must be (re)processed and records
// successful applies.
type FeedLedger struct {
	repo feed.LedgerRepository
	now  func() time.Time
}

func NewFeedLedger(repo feed.LedgerRepository) *FeedLedger {
	return &FeedLedger{repo: repo, now: time.Now}
}

// IsStale reports true when the file was never applied, when the remote
// timestamp is strictly newer than the recorded one, or when the remote
// timestamp is unknown (zero).
func (l *FeedLedger) IsStale(ctx context.Context, filename string, remoteModifiedAt time.Time) (bool, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return false, fmt.Errorf("%w: empty ledger filename", ErrInvalidInput)
	}
	if remoteModifiedAt.IsZero() {
		return true, nil
	}

	entry, exists, err := l.repo.Get(ctx, filename)
	if err != nil {
		return false, fmt.Errorf("get ledger entry %s: %w", filename, err)
	}
	if !exists || entry.RemoteModifiedAt.IsZero() {
		return true, nil
	}
	return remoteModifiedAt.After(entry.RemoteModifiedAt), nil
}

// RecordApplied must only be called after every mutation of the file has
// been committed. The repository keeps the stored remote timestamp monotonic.
func (l *FeedLedger) RecordApplied(ctx context.Context, filename string, remoteModifiedAt time.Time, content []byte) error {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return fmt.Errorf("%w: empty ledger filename", ErrInvalidInput)
	}

	sum := sha256.Sum256(content)
	entry := feed.LedgerEntry{
		Filename:         filename,
		RemoteModifiedAt: remoteModifiedAt.UTC(),
		AppliedAt:        l.now().UTC(),
		ContentHash:      hex.EncodeToString(sum[:]),
	}
	if err := l.repo.Upsert(ctx, entry); err != nil {
		return fmt.Errorf("record ledger entry %s: %w", filename, err)
	}
	return nil
}
