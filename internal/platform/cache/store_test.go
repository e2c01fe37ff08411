package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestStore_GetOrLoad_UsesSingleFlight(t *testing.T) {
	t.Parallel()

	store := NewStore(time.Minute)
	var calls atomic.Int32

	loader := func(context.Context) (any, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return "value", nil
	}

	const workers = 32
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)
	errCh := make(chan error, workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			v, err := store.GetOrLoad(context.Background(), "graph:game:G1", loader)
			if err != nil {
				errCh <- err
				return
			}
			if got, _ := v.(string); got != "value" {
				errCh <- errUnexpectedValue
			}
		}()
	}

	close(start)
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if got := calls.Load(); got != 1 {
		t.Fatalf("loader called %d times, want 1", got)
	}
}

func TestStore_EntriesExpireAfterTTL(t *testing.T) {
	t.Parallel()

	store := NewStore(time.Minute)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	store.Set(context.Background(), "k", 1)
	if _, ok := store.Get(context.Background(), "k"); !ok {
		t.Fatalf("expected fresh entry")
	}

	now = now.Add(time.Minute)
	if _, ok := store.Get(context.Background(), "k"); ok {
		t.Fatalf("expected entry to expire")
	}
	if store.Len() != 0 {
		t.Fatalf("expected expired entry to be evicted")
	}
}

func TestStore_DeletePrefix(t *testing.T) {
	t.Parallel()

	store := NewStore(0)
	ctx := context.Background()
	store.Set(ctx, "graph:game:G1", 1)
	store.Set(ctx, "graph:game:G2", 2)
	store.Set(ctx, "graph:round:R1", 3)

	store.DeletePrefix(ctx, "graph:game:")

	if store.Len() != 1 {
		t.Fatalf("expected only the round to remain, got %d entries", store.Len())
	}
	if _, ok := store.Get(ctx, "graph:round:R1"); !ok {
		t.Fatalf("round entry must survive")
	}
}

func TestLoad_TypedAndErrorsNotCached(t *testing.T) {
	t.Parallel()

	store := NewStore(time.Minute)
	ctx := context.Background()
	var calls atomic.Int32

	failing := func(context.Context) (int, error) {
		calls.Add(1)
		return 0, errors.New("db down")
	}
	if _, err := Load(ctx, store, "k", failing); err == nil {
		t.Fatalf("expected loader error")
	}

	got, err := Load(ctx, store, "k", func(context.Context) (int, error) {
		calls.Add(1)
		return 7, nil
	})
	if err != nil || got != 7 {
		t.Fatalf("unexpected typed load: %d, %v", got, err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected failed load not to be cached, calls=%d", calls.Load())
	}

	if _, err := Load(ctx, store, "k", func(context.Context) (string, error) { return "", nil }); err == nil {
		t.Fatalf("expected type mismatch error")
	}
}

var errUnexpectedValue = errors.New("unexpected loaded value")

func TestStore_GetOrLoad_DropsValueDeletedDuringLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore(time.Minute)

	value, err := store.GetOrLoad(ctx, "graph:game:G1", func(ctx context.Context) (any, error) {
		store.Delete(ctx, "graph:game:G1")
		return "stale", nil
	})
	if err != nil {
		t.Fatalf("get or load: %v", err)
	}
	if value != "stale" {
		t.Fatalf("expected caller to still receive the loaded value, got %v", value)
	}
	if _, ok := store.Get(ctx, "graph:game:G1"); ok {
		t.Fatalf("expected value loaded across a delete not to be cached")
	}

	if _, err := store.GetOrLoad(ctx, "graph:game:G1", func(context.Context) (any, error) {
		return "fresh", nil
	}); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got, ok := store.Get(ctx, "graph:game:G1"); !ok || got != "fresh" {
		t.Fatalf("expected fresh value cached, got %v ok=%v", got, ok)
	}
}

func TestStore_GetOrLoad_DropsValueAfterPrefixDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore(time.Minute)

	if _, err := store.GetOrLoad(ctx, "graph:round:R1", func(ctx context.Context) (any, error) {
		store.DeletePrefix(ctx, "graph:")
		return "stale", nil
	}); err != nil {
		t.Fatalf("get or load: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected nothing cached, len=%d", store.Len())
	}
}
