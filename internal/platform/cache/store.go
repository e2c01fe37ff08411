package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/riskibarqy/sports-feed-sync/internal/platform/resilience"
)

type entry struct {
	value     any
	expiresAt time.Time
}

// Store is an in-process TTL cache. A non-positive ttl keeps entries until
// they are deleted.
//
// Every Delete bumps the key's generation and DeletePrefix bumps a store wide
// epoch. GetOrLoad drops a loaded value when either moved while it loaded.
type Store struct {
	mu          sync.RWMutex
	entries     map[string]entry
	generations map[string]uint64
	epoch       uint64
	ttl         time.Duration
	now         func() time.Time
	flight      resilience.SingleFlight
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		entries:     make(map[string]entry),
		generations: make(map[string]uint64),
		ttl:         ttl,
		now:         time.Now,
	}
}

func (s *Store) Get(_ context.Context, key string) (any, bool) {
	if key == "" {
		return nil, false
	}

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if s.expired(e) {
		s.mu.Lock()
		if current, still := s.entries[key]; still && s.expired(current) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false
	}

	return e.value, true
}

func (s *Store) Set(_ context.Context, key string, value any) {
	if key == "" {
		return
	}

	s.mu.Lock()
	s.entries[key] = entry{value: value, expiresAt: s.expiry()}
	s.mu.Unlock()
}

func (s *Store) Delete(_ context.Context, key string) {
	if key == "" {
		return
	}

	s.mu.Lock()
	delete(s.entries, key)
	s.generations[key]++
	s.mu.Unlock()
}

func (s *Store) DeletePrefix(_ context.Context, prefix string) {
	if prefix == "" {
		return
	}

	s.mu.Lock()
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
		}
	}
	s.epoch++
	s.mu.Unlock()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// GetOrLoad returns the cached value for key or loads it once, sharing the
// result with concurrent callers. Loader errors are not cached.
func (s *Store) GetOrLoad(ctx context.Context, key string, loader func(context.Context) (any, error)) (any, error) {
	if loader == nil {
		return nil, fmt.Errorf("loader is required")
	}
	if key == "" {
		return loader(ctx)
	}

	if value, ok := s.Get(ctx, key); ok {
		return value, nil
	}

	value, err, _ := s.flight.Do(key, func() (any, error) {
		if cached, ok := s.Get(ctx, key); ok {
			return cached, nil
		}

		stamp := s.stamp(key)
		loaded, loadErr := loader(ctx)
		if loadErr != nil {
			return nil, loadErr
		}
		s.setIfUnchanged(key, loaded, stamp)
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}

	return value, nil
}

// Load is the typed form of GetOrLoad.
func Load[T any](ctx context.Context, s *Store, key string, loader func(context.Context) (T, error)) (T, error) {
	var zero T
	value, err := s.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		return loader(ctx)
	})
	if err != nil {
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("cache key %q holds %T", key, value)
	}
	return typed, nil
}

type generation struct {
	key   uint64
	epoch uint64
}

func (s *Store) stamp(key string) generation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return generation{key: s.generations[key], epoch: s.epoch}
}

// setIfUnchanged stores value unless key was deleted after stamp was taken.
// The caller still receives the loaded value either way.
func (s *Store) setIfUnchanged(key string, value any, stamp generation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generations[key] != stamp.key || s.epoch != stamp.epoch {
		return
	}
	s.entries[key] = entry{value: value, expiresAt: s.expiry()}
}

func (s *Store) expiry() time.Time {
	if s.ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(s.ttl)
}

func (s *Store) expired(e entry) bool {
	return s.ttl > 0 && !e.expiresAt.After(s.now())
}
