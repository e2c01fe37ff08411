package memory

import (
	"context"
	"sync"

	"github.com/riskibarqy/sports-feed-sync/internal/domain/feed"
)

type LedgerRepository struct {
	mu      sync.RWMutex
	entries map[string]feed.LedgerEntry
}

func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{entries: make(map[string]feed.LedgerEntry)}
}

func (r *LedgerRepository) Get(_ context.Context, filename string) (feed.LedgerEntry, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.entries[filename]
	return item, ok, nil
}

// Upsert keeps the newer of the stored and incoming remote timestamps.
func (r *LedgerRepository) Upsert(_ context.Context, entry feed.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.entries[entry.Filename]; ok && current.RemoteModifiedAt.After(entry.RemoteModifiedAt) {
		entry.RemoteModifiedAt = current.RemoteModifiedAt
	}
	r.entries[entry.Filename] = entry
	return nil
}

func (r *LedgerRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
