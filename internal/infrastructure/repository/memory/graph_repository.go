package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/riskibarqy/sports-feed-sync/internal/domain/graph"
	"github.com/riskibarqy/sports-feed-sync/internal/platform/id"
)

// GraphRepository keeps the whole event graph in process. Values are copied
// on the way in and out so callers never share maps or pointers with it.
type GraphRepository struct {
	mu          sync.RWMutex
	ids         id.Generator
	tournaments map[string]graph.Tournament
	seasons     map[string]graph.Season
	stages      map[string]graph.Stage
	rounds      map[string]graph.Round
	games       map[string]graph.Game
	contestants map[string]graph.Contestant
	standings   map[string][]graph.StandingRow
}

func NewGraphRepository() *GraphRepository {
	return &GraphRepository{
		ids:         id.NewRandomGenerator(),
		tournaments: make(map[string]graph.Tournament),
		seasons:     make(map[string]graph.Season),
		stages:      make(map[string]graph.Stage),
		rounds:      make(map[string]graph.Round),
		games:       make(map[string]graph.Game),
		contestants: make(map[string]graph.Contestant),
		standings:   make(map[string][]graph.StandingRow),
	}
}

func (r *GraphRepository) FindTournament(_ context.Context, externalID string) (graph.Tournament, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.tournaments[externalID]
	if !ok {
		return graph.Tournament{}, false, nil
	}
	item.Sports = append([]string(nil), item.Sports...)
	return item, true, nil
}

func (r *GraphRepository) FindSeason(_ context.Context, externalID string) (graph.Season, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.seasons[externalID]
	if !ok {
		return graph.Season{}, false, nil
	}
	return copySeason(item), true, nil
}

func (r *GraphRepository) FindStage(_ context.Context, externalID string) (graph.Stage, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.stages[externalID]
	if !ok {
		return graph.Stage{}, false, nil
	}
	return copyStage(item), true, nil
}

func (r *GraphRepository) FindRound(_ context.Context, externalID string) (graph.Round, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.rounds[externalID]
	if !ok {
		return graph.Round{}, false, nil
	}
	return copyRound(item), true, nil
}

func (r *GraphRepository) FindGame(_ context.Context, externalID string) (graph.Game, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.games[externalID]
	if !ok {
		return graph.Game{}, false, nil
	}
	return copyGame(item), true, nil
}

func (r *GraphRepository) FindContestant(_ context.Context, externalID string) (graph.Contestant, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.contestants[externalID]
	return item, ok, nil
}

func (r *GraphRepository) UpsertTournament(_ context.Context, item graph.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item.ID = r.keepID(r.tournaments[item.ExternalID].ID, item.ID)
	item.Sports = append([]string(nil), item.Sports...)
	r.tournaments[item.ExternalID] = item
	return nil
}

func (r *GraphRepository) UpsertSeason(_ context.Context, item graph.Season) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item.ID = r.keepID(r.seasons[item.ExternalID].ID, item.ID)
	r.seasons[item.ExternalID] = copySeason(item)
	return nil
}

func (r *GraphRepository) UpsertStage(_ context.Context, item graph.Stage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item.ID = r.keepID(r.stages[item.ExternalID].ID, item.ID)
	r.stages[item.ExternalID] = copyStage(item)
	return nil
}

func (r *GraphRepository) UpsertRound(_ context.Context, item graph.Round) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item.ID = r.keepID(r.rounds[item.ExternalID].ID, item.ID)
	r.rounds[item.ExternalID] = copyRound(item)
	return nil
}

func (r *GraphRepository) UpsertGame(_ context.Context, item graph.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item.ID = r.keepID(r.games[item.ExternalID].ID, item.ID)
	r.games[item.ExternalID] = copyGame(item)
	return nil
}

func (r *GraphRepository) UpsertContestant(_ context.Context, item graph.Contestant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item.ID = r.keepID(r.contestants[item.ExternalID].ID, item.ID)
	r.contestants[item.ExternalID] = item
	return nil
}

func (r *GraphRepository) ReplaceStandings(_ context.Context, parentKind graph.Kind, parentExternalID string, rows []graph.StandingRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.standings[standingsKey(parentKind, parentExternalID)] = append([]graph.StandingRow(nil), rows...)
	return nil
}

// Standings returns the table attached to a parent, ordered by rank.
func (r *GraphRepository) Standings(_ context.Context, parentKind graph.Kind, parentExternalID string) ([]graph.StandingRow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := append([]graph.StandingRow(nil), r.standings[standingsKey(parentKind, parentExternalID)]...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Rank < rows[j].Rank })
	return rows, nil
}

func (r *GraphRepository) ListNodes(_ context.Context, kind graph.Kind, statuses ...graph.Status) ([]graph.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all, err := r.nodesOfKind(kind)
	if err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return all, nil
	}
	out := make([]graph.Node, 0, len(all))
	for _, node := range all {
		for _, status := range statuses {
			if node.Status == status {
				out = append(out, node)
				break
			}
		}
	}
	return out, nil
}

func (r *GraphRepository) ChildrenOf(_ context.Context, parent graph.Node) ([]graph.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	childKind := parent.Kind.ChildKind()
	if childKind == "" {
		return nil, nil
	}
	all, err := r.nodesOfKind(childKind)
	if err != nil {
		return nil, err
	}
	out := make([]graph.Node, 0, len(all))
	for _, node := range all {
		if node.ParentExternalID == parent.ExternalID {
			out = append(out, node)
		}
	}
	return out, nil
}

func (r *GraphRepository) ListDueNodes(_ context.Context, kind graph.Kind, status graph.Status, reference time.Time) ([]graph.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all, err := r.nodesOfKind(kind)
	if err != nil {
		return nil, err
	}
	out := make([]graph.Node, 0, len(all))
	for _, node := range all {
		if node.Status != status || node.StartDate == nil || node.StartDate.After(reference) {
			continue
		}
		out = append(out, node)
	}
	return out, nil
}

func (r *GraphRepository) SetStatus(_ context.Context, kind graph.Kind, externalID string, status graph.Status) error {
	_, err := r.updateNode(kind, externalID, func(current *graph.Status, _ **time.Time) bool {
		*current = status
		return true
	})
	return err
}

func (r *GraphRepository) SetStartDate(_ context.Context, kind graph.Kind, externalID string, startDate time.Time) error {
	value := startDate.UTC()
	_, err := r.updateNode(kind, externalID, func(_ *graph.Status, current **time.Time) bool {
		*current = &value
		return true
	})
	return err
}

func (r *GraphRepository) CompareAndSetStatus(_ context.Context, kind graph.Kind, externalID string, from, to graph.Status) (bool, error) {
	return r.updateNode(kind, externalID, func(current *graph.Status, _ **time.Time) bool {
		if *current != from {
			return false
		}
		*current = to
		return true
	})
}

func (r *GraphRepository) SetStartDateIfStatus(_ context.Context, kind graph.Kind, externalID string, status graph.Status, startDate time.Time) (bool, error) {
	value := startDate.UTC()
	return r.updateNode(kind, externalID, func(current *graph.Status, start **time.Time) bool {
		if *current != status {
			return false
		}
		*start = &value
		return true
	})
}

func (r *GraphRepository) SetGameScore(_ context.Context, externalID string, score graph.Score) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.games[externalID]
	if !ok {
		return notFound(graph.KindGame, externalID)
	}
	item.Score = &score
	r.games[externalID] = item
	return nil
}

func (r *GraphRepository) MergeGameProperties(_ context.Context, externalID string, properties map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.games[externalID]
	if !ok {
		return notFound(graph.KindGame, externalID)
	}
	item.Properties = graph.MergeProperties(copyProperties(item.Properties), properties)
	r.games[externalID] = item
	return nil
}

// updateNode runs fn on the status and start date of one node while holding
// the write lock. The node is stored back only when fn returns true.
func (r *GraphRepository) updateNode(kind graph.Kind, externalID string, fn func(status *graph.Status, startDate **time.Time) bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch kind {
	case graph.KindSeason:
		item, ok := r.seasons[externalID]
		if !ok {
			return false, notFound(kind, externalID)
		}
		if !fn(&item.Status, &item.StartDate) {
			return false, nil
		}
		r.seasons[externalID] = item
	case graph.KindStage:
		item, ok := r.stages[externalID]
		if !ok {
			return false, notFound(kind, externalID)
		}
		if !fn(&item.Status, &item.StartDate) {
			return false, nil
		}
		r.stages[externalID] = item
	case graph.KindRound:
		item, ok := r.rounds[externalID]
		if !ok {
			return false, notFound(kind, externalID)
		}
		if !fn(&item.Status, &item.StartDate) {
			return false, nil
		}
		r.rounds[externalID] = item
	case graph.KindGame:
		item, ok := r.games[externalID]
		if !ok {
			return false, notFound(kind, externalID)
		}
		if !fn(&item.Status, &item.StartDate) {
			return false, nil
		}
		r.games[externalID] = item
	default:
		return false, fmt.Errorf("kind %q is not part of the status hierarchy", kind)
	}
	return true, nil
}

func (r *GraphRepository) nodesOfKind(kind graph.Kind) ([]graph.Node, error) {
	var out []graph.Node
	switch kind {
	case graph.KindSeason:
		for _, item := range r.seasons {
			out = append(out, graph.Node{Kind: kind, ExternalID: item.ExternalID, ParentExternalID: item.TournamentExternalID, Status: item.Status, StartDate: copyTime(item.StartDate)})
		}
	case graph.KindStage:
		for _, item := range r.stages {
			out = append(out, graph.Node{Kind: kind, ExternalID: item.ExternalID, ParentExternalID: item.SeasonExternalID, Status: item.Status, StartDate: copyTime(item.StartDate)})
		}
	case graph.KindRound:
		for _, item := range r.rounds {
			out = append(out, graph.Node{Kind: kind, ExternalID: item.ExternalID, ParentExternalID: item.StageExternalID, Status: item.Status, StartDate: copyTime(item.StartDate)})
		}
	case graph.KindGame:
		for _, item := range r.games {
			out = append(out, graph.Node{Kind: kind, ExternalID: item.ExternalID, ParentExternalID: item.RoundExternalID, Status: item.Status, StartDate: copyTime(item.StartDate)})
		}
	default:
		return nil, fmt.Errorf("kind %q is not part of the status hierarchy", kind)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out, nil
}

func (r *GraphRepository) keepID(existing, incoming string) string {
	if existing != "" {
		return existing
	}
	if incoming != "" {
		return incoming
	}
	return id.MustNewID(r.ids)
}

func standingsKey(kind graph.Kind, externalID string) string {
	return string(kind) + ":" + externalID
}

func notFound(kind graph.Kind, externalID string) error {
	return fmt.Errorf("%s %q not found", kind, externalID)
}

func copyTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	out := *value
	return &out
}

func copyProperties(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copySeason(item graph.Season) graph.Season {
	item.StartDate = copyTime(item.StartDate)
	item.EndDate = copyTime(item.EndDate)
	item.ContestantIDs = append([]string(nil), item.ContestantIDs...)
	return item
}

func copyStage(item graph.Stage) graph.Stage {
	item.StartDate = copyTime(item.StartDate)
	item.EndDate = copyTime(item.EndDate)
	return item
}

func copyRound(item graph.Round) graph.Round {
	item.StartDate = copyTime(item.StartDate)
	item.EndDate = copyTime(item.EndDate)
	item.Properties = copyProperties(item.Properties)
	return item
}

func copyGame(item graph.Game) graph.Game {
	item.StartDate = copyTime(item.StartDate)
	item.Contestants = append([]string(nil), item.Contestants...)
	item.Properties = copyProperties(item.Properties)
	if item.Score != nil {
		score := *item.Score
		item.Score = &score
	}
	return item
}
