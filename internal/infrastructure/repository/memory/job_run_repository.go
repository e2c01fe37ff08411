package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/riskibarqy/sports-feed-sync/internal/domain/jobscheduler"
)

// JobRunRepository keeps the latest event per run id.
type JobRunRepository struct {
	mu     sync.RWMutex
	events map[string]jobscheduler.RunEvent
}

func NewJobRunRepository() *JobRunRepository {
	return &JobRunRepository{events: make(map[string]jobscheduler.RunEvent)}
}

func (r *JobRunRepository) UpsertEvent(_ context.Context, event jobscheduler.RunEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events[event.RunID] = event
	return nil
}

func (r *JobRunRepository) ListRecent(_ context.Context, jobName string, limit int) ([]jobscheduler.RunEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]jobscheduler.RunEvent, 0, len(r.events))
	for _, event := range r.events {
		if jobName != "" && event.JobName != jobName {
			continue
		}
		out = append(out, event)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
