package cache

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/riskibarqy/sports-feed-sync/internal/domain/graph"
	basecache "github.com/riskibarqy/sports-feed-sync/internal/platform/cache"
)

// GraphRepository memoises external id lookups in front of another graph
// repository. Every write drops the key it touched, so a miss recorded
// before a parent arrives never outlives that parent's upsert.
type GraphRepository struct {
	next  graph.Repository
	cache *basecache.Store
}

func NewGraphRepository(next graph.Repository, cache *basecache.Store) *GraphRepository {
	return &GraphRepository{next: next, cache: cache}
}

// Direct returns a view that reads from the wrapped repository without the
// cache but still invalidates it on every write. Callers that read a row
// in order to write it back use this view.
func (r *GraphRepository) Direct() graph.Repository {
	return directGraphRepository{GraphRepository: r}
}

type directGraphRepository struct {
	*GraphRepository
}

func (d directGraphRepository) FindTournament(ctx context.Context, externalID string) (graph.Tournament, bool, error) {
	return d.next.FindTournament(ctx, externalID)
}

func (d directGraphRepository) FindSeason(ctx context.Context, externalID string) (graph.Season, bool, error) {
	return d.next.FindSeason(ctx, externalID)
}

func (d directGraphRepository) FindStage(ctx context.Context, externalID string) (graph.Stage, bool, error) {
	return d.next.FindStage(ctx, externalID)
}

func (d directGraphRepository) FindRound(ctx context.Context, externalID string) (graph.Round, bool, error) {
	return d.next.FindRound(ctx, externalID)
}

func (d directGraphRepository) FindGame(ctx context.Context, externalID string) (graph.Game, bool, error) {
	return d.next.FindGame(ctx, externalID)
}

func (d directGraphRepository) FindContestant(ctx context.Context, externalID string) (graph.Contestant, bool, error) {
	return d.next.FindContestant(ctx, externalID)
}

type cachedLookup[T any] struct {
	value  T
	exists bool
}

func lookup[T any](ctx context.Context, store *basecache.Store, kind graph.Kind, externalID string, find func(context.Context, string) (T, bool, error)) (T, bool, error) {
	cached, err := basecache.Load(ctx, store, entityKey(kind, externalID), func(ctx context.Context) (cachedLookup[T], error) {
		value, exists, err := find(ctx, externalID)
		if err != nil {
			return cachedLookup[T]{}, err
		}
		return cachedLookup[T]{value: value, exists: exists}, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return cached.value, cached.exists, nil
}

func (r *GraphRepository) FindTournament(ctx context.Context, externalID string) (graph.Tournament, bool, error) {
	item, exists, err := lookup(ctx, r.cache, graph.KindTournament, externalID, r.next.FindTournament)
	item.Sports = slices.Clone(item.Sports)
	return item, exists, err
}

func (r *GraphRepository) FindSeason(ctx context.Context, externalID string) (graph.Season, bool, error) {
	item, exists, err := lookup(ctx, r.cache, graph.KindSeason, externalID, r.next.FindSeason)
	item.StartDate = cloneTime(item.StartDate)
	item.EndDate = cloneTime(item.EndDate)
	item.ContestantIDs = slices.Clone(item.ContestantIDs)
	return item, exists, err
}

func (r *GraphRepository) FindStage(ctx context.Context, externalID string) (graph.Stage, bool, error) {
	item, exists, err := lookup(ctx, r.cache, graph.KindStage, externalID, r.next.FindStage)
	item.StartDate = cloneTime(item.StartDate)
	item.EndDate = cloneTime(item.EndDate)
	return item, exists, err
}

func (r *GraphRepository) FindRound(ctx context.Context, externalID string) (graph.Round, bool, error) {
	item, exists, err := lookup(ctx, r.cache, graph.KindRound, externalID, r.next.FindRound)
	item.StartDate = cloneTime(item.StartDate)
	item.EndDate = cloneTime(item.EndDate)
	item.Properties = maps.Clone(item.Properties)
	return item, exists, err
}

func (r *GraphRepository) FindGame(ctx context.Context, externalID string) (graph.Game, bool, error) {
	item, exists, err := lookup(ctx, r.cache, graph.KindGame, externalID, r.next.FindGame)
	item.StartDate = cloneTime(item.StartDate)
	item.Contestants = slices.Clone(item.Contestants)
	item.Properties = maps.Clone(item.Properties)
	if item.Score != nil {
		score := *item.Score
		item.Score = &score
	}
	return item, exists, err
}

func (r *GraphRepository) FindContestant(ctx context.Context, externalID string) (graph.Contestant, bool, error) {
	return lookup(ctx, r.cache, graph.KindContestant, externalID, r.next.FindContestant)
}

func (r *GraphRepository) UpsertTournament(ctx context.Context, item graph.Tournament) error {
	defer r.invalidate(ctx, graph.KindTournament, item.ExternalID)
	return r.next.UpsertTournament(ctx, item)
}

func (r *GraphRepository) UpsertSeason(ctx context.Context, item graph.Season) error {
	defer r.invalidate(ctx, graph.KindSeason, item.ExternalID)
	return r.next.UpsertSeason(ctx, item)
}

func (r *GraphRepository) UpsertStage(ctx context.Context, item graph.Stage) error {
	defer r.invalidate(ctx, graph.KindStage, item.ExternalID)
	return r.next.UpsertStage(ctx, item)
}

func (r *GraphRepository) UpsertRound(ctx context.Context, item graph.Round) error {
	defer r.invalidate(ctx, graph.KindRound, item.ExternalID)
	return r.next.UpsertRound(ctx, item)
}

func (r *GraphRepository) UpsertGame(ctx context.Context, item graph.Game) error {
	defer r.invalidate(ctx, graph.KindGame, item.ExternalID)
	return r.next.UpsertGame(ctx, item)
}

func (r *GraphRepository) UpsertContestant(ctx context.Context, item graph.Contestant) error {
	defer r.invalidate(ctx, graph.KindContestant, item.ExternalID)
	return r.next.UpsertContestant(ctx, item)
}

func (r *GraphRepository) ReplaceStandings(ctx context.Context, parentKind graph.Kind, parentExternalID string, rows []graph.StandingRow) error {
	return r.next.ReplaceStandings(ctx, parentKind, parentExternalID, rows)
}

func (r *GraphRepository) ListNodes(ctx context.Context, kind graph.Kind, statuses ...graph.Status) ([]graph.Node, error) {
	return r.next.ListNodes(ctx, kind, statuses...)
}

func (r *GraphRepository) ListDueNodes(ctx context.Context, kind graph.Kind, status graph.Status, reference time.Time) ([]graph.Node, error) {
	return r.next.ListDueNodes(ctx, kind, status, reference)
}

func (r *GraphRepository) ChildrenOf(ctx context.Context, parent graph.Node) ([]graph.Node, error) {
	return r.next.ChildrenOf(ctx, parent)
}

func (r *GraphRepository) SetStatus(ctx context.Context, kind graph.Kind, externalID string, status graph.Status) error {
	defer r.invalidate(ctx, kind, externalID)
	return r.next.SetStatus(ctx, kind, externalID, status)
}

func (r *GraphRepository) SetStartDate(ctx context.Context, kind graph.Kind, externalID string, startDate time.Time) error {
	defer r.invalidate(ctx, kind, externalID)
	return r.next.SetStartDate(ctx, kind, externalID, startDate)
}

func (r *GraphRepository) CompareAndSetStatus(ctx context.Context, kind graph.Kind, externalID string, from, to graph.Status) (bool, error) {
	defer r.invalidate(ctx, kind, externalID)
	return r.next.CompareAndSetStatus(ctx, kind, externalID, from, to)
}

func (r *GraphRepository) SetStartDateIfStatus(ctx context.Context, kind graph.Kind, externalID string, status graph.Status, startDate time.Time) (bool, error) {
	defer r.invalidate(ctx, kind, externalID)
	return r.next.SetStartDateIfStatus(ctx, kind, externalID, status, startDate)
}

func (r *GraphRepository) SetGameScore(ctx context.Context, externalID string, score graph.Score) error {
	defer r.invalidate(ctx, graph.KindGame, externalID)
	return r.next.SetGameScore(ctx, externalID, score)
}

func (r *GraphRepository) MergeGameProperties(ctx context.Context, externalID string, properties map[string]string) error {
	defer r.invalidate(ctx, graph.KindGame, externalID)
	return r.next.MergeGameProperties(ctx, externalID, properties)
}

func (r *GraphRepository) invalidate(ctx context.Context, kind graph.Kind, externalID string) {
	r.cache.Delete(ctx, entityKey(kind, externalID))
}

func entityKey(kind graph.Kind, externalID string) string {
	return "graph:" + string(kind) + ":" + externalID
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	out := *value
	return &out
}
