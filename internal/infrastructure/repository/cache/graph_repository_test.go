package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/riskibarqy/sports-feed-sync/internal/domain/graph"
	"github.com/riskibarqy/sports-feed-sync/internal/infrastructure/repository/memory"
	basecache "github.com/riskibarqy/sports-feed-sync/internal/platform/cache"
)

type countingGraphRepository struct {
	*memory.GraphRepository
	roundLookups atomic.Int32
}

func (r *countingGraphRepository) FindRound(ctx context.Context, externalID string) (graph.Round, bool, error) {
	r.roundLookups.Add(1)
	return r.GraphRepository.FindRound(ctx, externalID)
}

func newCachedGraph() (*GraphRepository, *countingGraphRepository) {
	next := &countingGraphRepository{GraphRepository: memory.NewGraphRepository()}
	return NewGraphRepository(next, basecache.NewStore(time.Minute)), next
}

func TestGraphRepository_CachesMissUntilUpsert(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo, next := newCachedGraph()

	for i := 0; i < 3; i++ {
		if _, exists, err := repo.FindRound(ctx, "R1"); err != nil || exists {
			t.Fatalf("expected cached miss, exists=%v err=%v", exists, err)
		}
	}
	if got := next.roundLookups.Load(); got != 1 {
		t.Fatalf("expected one backend lookup, got %d", got)
	}

	if err := repo.UpsertRound(ctx, graph.Round{ExternalID: "R1", StageExternalID: "ST1", Number: 4}); err != nil {
		t.Fatalf("upsert round: %v", err)
	}
	item, exists, err := repo.FindRound(ctx, "R1")
	if err != nil || !exists {
		t.Fatalf("expected round after upsert, exists=%v err=%v", exists, err)
	}
	if item.Number != 4 {
		t.Fatalf("unexpected round number: %d", item.Number)
	}
	if got := next.roundLookups.Load(); got != 2 {
		t.Fatalf("expected upsert to invalidate the cached miss, lookups=%d", got)
	}
}

func TestGraphRepository_StatusWriteInvalidates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo, _ := newCachedGraph()

	if err := repo.UpsertRound(ctx, graph.Round{ExternalID: "R1", StageExternalID: "ST1", Status: graph.StatusScheduled}); err != nil {
		t.Fatalf("upsert round: %v", err)
	}
	if _, _, err := repo.FindRound(ctx, "R1"); err != nil {
		t.Fatalf("find round: %v", err)
	}
	if err := repo.SetStatus(ctx, graph.KindRound, "R1", graph.StatusOnGoing); err != nil {
		t.Fatalf("set status: %v", err)
	}

	item, _, err := repo.FindRound(ctx, "R1")
	if err != nil {
		t.Fatalf("find round: %v", err)
	}
	if item.Status != graph.StatusOnGoing {
		t.Fatalf("expected fresh status, got %q", item.Status)
	}
}

func TestGraphRepository_ReturnsCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo, _ := newCachedGraph()

	if err := repo.UpsertRound(ctx, graph.Round{
		ExternalID:      "R1",
		StageExternalID: "ST1",
		Properties:      map[string]string{graph.PropertyVenue: "Anfield"},
	}); err != nil {
		t.Fatalf("upsert round: %v", err)
	}

	first, _, _ := repo.FindRound(ctx, "R1")
	first.Properties[graph.PropertyVenue] = "changed"

	second, _, _ := repo.FindRound(ctx, "R1")
	if second.Properties[graph.PropertyVenue] != "Anfield" {
		t.Fatalf("cached value was mutated through a returned map: %#v", second.Properties)
	}
}

// interleavingGraphRepository runs afterRead once, between reading a game
// from the backend and handing it back to the cache.
type interleavingGraphRepository struct {
	*memory.GraphRepository
	afterRead func()
}

func (r *interleavingGraphRepository) FindGame(ctx context.Context, externalID string) (graph.Game, bool, error) {
	item, exists, err := r.GraphRepository.FindGame(ctx, externalID)
	if hook := r.afterRead; hook != nil {
		r.afterRead = nil
		hook()
	}
	return item, exists, err
}

func TestGraphRepository_LoadRacingWriteIsNotCached(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	next := &interleavingGraphRepository{GraphRepository: memory.NewGraphRepository()}
	repo := NewGraphRepository(next, basecache.NewStore(time.Minute))

	if err := repo.UpsertGame(ctx, graph.Game{ExternalID: "G1", RoundExternalID: "R1", Status: graph.StatusScheduled}); err != nil {
		t.Fatalf("upsert game: %v", err)
	}
	next.afterRead = func() {
		if err := repo.SetStatus(ctx, graph.KindGame, "G1", graph.StatusOnGoing); err != nil {
			t.Errorf("set status: %v", err)
		}
	}

	first, _, err := repo.FindGame(ctx, "G1")
	if err != nil {
		t.Fatalf("find game: %v", err)
	}
	if first.Status != graph.StatusScheduled {
		t.Fatalf("expected the racing read to see the old status, got %q", first.Status)
	}

	second, _, err := repo.FindGame(ctx, "G1")
	if err != nil {
		t.Fatalf("find game: %v", err)
	}
	if second.Status != graph.StatusOnGoing {
		t.Fatalf("stale game outlived the status write: %q", second.Status)
	}
}

func TestGraphRepository_TargetedGameWritesInvalidate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo, _ := newCachedGraph()

	if err := repo.UpsertGame(ctx, graph.Game{ExternalID: "G1", RoundExternalID: "R1", Status: graph.StatusOnGoing}); err != nil {
		t.Fatalf("upsert game: %v", err)
	}
	if _, _, err := repo.FindGame(ctx, "G1"); err != nil {
		t.Fatalf("find game: %v", err)
	}
	if err := repo.SetGameScore(ctx, "G1", graph.Score{Home: 1, Away: 0}); err != nil {
		t.Fatalf("set score: %v", err)
	}
	if err := repo.MergeGameProperties(ctx, "G1", map[string]string{graph.PropertyMinute: "67"}); err != nil {
		t.Fatalf("merge properties: %v", err)
	}

	item, _, err := repo.FindGame(ctx, "G1")
	if err != nil {
		t.Fatalf("find game: %v", err)
	}
	if item.Score == nil || *item.Score != (graph.Score{Home: 1, Away: 0}) {
		t.Fatalf("unexpected score: %+v", item.Score)
	}
	if item.Properties[graph.PropertyMinute] != "67" {
		t.Fatalf("unexpected properties: %#v", item.Properties)
	}
	if item.Status != graph.StatusOnGoing {
		t.Fatalf("targeted writes changed the status: %q", item.Status)
	}
}

func TestGraphRepository_DirectReadsBypassAndWritesInvalidate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo, next := newCachedGraph()
	direct := repo.Direct()

	if _, exists, _ := repo.FindRound(ctx, "R1"); exists {
		t.Fatalf("expected cached miss")
	}
	if err := next.UpsertRound(ctx, graph.Round{ExternalID: "R1", StageExternalID: "ST1"}); err != nil {
		t.Fatalf("upsert below cache: %v", err)
	}
	if _, exists, _ := direct.FindRound(ctx, "R1"); !exists {
		t.Fatalf("direct read must not be served from the cache")
	}

	if err := direct.SetStatus(ctx, graph.KindRound, "R1", graph.StatusScheduled); err != nil {
		t.Fatalf("set status: %v", err)
	}
	item, exists, err := repo.FindRound(ctx, "R1")
	if err != nil || !exists {
		t.Fatalf("expected cached reader to see round after direct write, exists=%v err=%v", exists, err)
	}
	if item.Status != graph.StatusScheduled {
		t.Fatalf("unexpected status: %q", item.Status)
	}
}
