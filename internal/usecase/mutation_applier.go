package usecase

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/riskibarqy/sports-feed-sync/internal/domain/graph"
	"github.com/riskibarqy/sports-feed-sync/internal/extractor"
	"github.com/riskibarqy/sports-feed-sync/internal/platform/logging"
)

type ApplyResult struct {
	Changed   int
	Unchanged int
}

// MutationApplier commits extractor output to the graph store. Every
// mutation is an upsert keyed by external id, so applying the same list
// twice leaves the graph as applying it once.
type MutationApplier struct {
	repo     graph.Repository
	locks    *EntityLocks
	validate *validator.Validate
	logger   *logging.Logger
	now      func() time.Time
}

func NewMutationApplier(repo graph.Repository, locks *EntityLocks, logger *logging.Logger) *MutationApplier {
	if logger == nil {
		logger = logging.Default()
	}
	if locks == nil {
		locks = NewEntityLocks()
	}
	return &MutationApplier{
		repo:     repo,
		locks:    locks,
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
	}
}

// Apply validates every mutation of list before writing any of them, so a
// malformed file leaves the graph untouched. It then applies in order and
// stops at the first error. Mutations applied before an unresolved reference
// stay applied; re-running the list later converges.
func (a *MutationApplier) Apply(ctx context.Context, list graph.MutationList) (ApplyResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MutationApplier.Apply")
	defer span.End()

	var result ApplyResult
	for i, m := range list {
		if err := a.validateOne(m); err != nil {
			kind, id := m.Target()
			return result, fmt.Errorf("validate mutation %d (%T %s/%s): %w", i, m, kind, id, err)
		}
	}
	for i, m := range list {
		changed, err := a.applyOne(ctx, m)
		if err != nil {
			kind, id := m.Target()
			return result, fmt.Errorf("apply mutation %d (%T %s/%s): %w", i, m, kind, id, err)
		}
		if changed {
			result.Changed++
		} else {
			result.Unchanged++
		}
	}
	return result, nil
}

func (a *MutationApplier) applyOne(ctx context.Context, m graph.Mutation) (bool, error) {
	kind, id := m.Target()
	unlock := a.locks.Lock(kind, id)
	defer unlock()

	switch v := m.(type) {
	case graph.UpsertTournament:
		return a.upsertTournament(ctx, v.Tournament)
	case graph.UpsertSeason:
		return a.upsertSeason(ctx, v.Season)
	case graph.UpsertStage:
		return a.upsertStage(ctx, v.Stage)
	case graph.UpsertRound:
		return a.upsertRound(ctx, v.Round)
	case graph.UpsertGame:
		return a.upsertGame(ctx, v.Game)
	case graph.UpsertContestant:
		return a.upsertContestant(ctx, v.Contestant)
	case graph.LinkPlayerTeam:
		return a.linkPlayerTeam(ctx, v)
	case graph.SetGameStatus:
		return a.setGameStatus(ctx, v)
	case graph.SetGameScore:
		return a.setGameScore(ctx, v)
	case graph.SetGameStartDate:
		return a.setGameStartDate(ctx, v)
	case graph.MergeGameProperties:
		return a.mergeGameProperties(ctx, v)
	case graph.AttachStandings:
		return a.attachStandings(ctx, v)
	default:
		return false, fmt.Errorf("%w: unsupported mutation %T", ErrInvalidInput, m)
	}
}

// validateOne holds every rule that needs no graph read.
func (a *MutationApplier) validateOne(m graph.Mutation) error {
	switch v := m.(type) {
	case graph.UpsertTournament:
		return a.check(v.Tournament)
	case graph.UpsertSeason:
		if err := a.check(v.Season); err != nil {
			return err
		}
		if v.Season.Status.Known() && !v.Season.Status.AllowedFor(graph.KindSeason) {
			return fmt.Errorf("%w: season %s status %s", extractor.ErrMalformedFeed, v.Season.ExternalID, v.Season.Status)
		}
		return nil
	case graph.UpsertStage:
		return a.check(v.Stage)
	case graph.UpsertRound:
		return a.check(v.Round)
	case graph.UpsertGame:
		return a.check(v.Game)
	case graph.UpsertContestant:
		return a.check(v.Contestant)
	case graph.LinkPlayerTeam:
		if v.PlayerExternalID == "" || v.TeamExternalID == "" {
			return fmt.Errorf("%w: player/team link needs both ids", extractor.ErrMalformedFeed)
		}
		return nil
	case graph.SetGameStatus:
		if !v.Status.AllowedFor(graph.KindGame) {
			return fmt.Errorf("%w: game %s status %q", extractor.ErrMalformedFeed, v.GameExternalID, v.Status)
		}
		return nil
	case graph.SetGameScore:
		if v.Score.Home < 0 || v.Score.Away < 0 {
			return fmt.Errorf("%w: game %s negative score", extractor.ErrMalformedFeed, v.GameExternalID)
		}
		return nil
	case graph.SetGameStartDate, graph.MergeGameProperties:
		return nil
	case graph.AttachStandings:
		switch v.ParentKind {
		case graph.KindSeason, graph.KindStage, graph.KindRound:
		default:
			return fmt.Errorf("%w: standings cannot hang off %s", extractor.ErrMalformedFeed, v.ParentKind)
		}
		for _, row := range v.Rows {
			if err := a.check(row); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported mutation %T", ErrInvalidInput, m)
	}
}

func (a *MutationApplier) check(item any) error {
	if err := a.validate.Struct(item); err != nil {
		return fmt.Errorf("%w: %v", extractor.ErrMalformedFeed, err)
	}
	return nil
}

func (a *MutationApplier) upsertTournament(ctx context.Context, item graph.Tournament) (bool, error) {
	current, exists, err := a.repo.FindTournament(ctx, item.ExternalID)
	if err != nil {
		return false, err
	}
	next := item
	if exists {
		next = current
		next.Code = keepString(current.Code, item.Code)
		next.Name = keepString(current.Name, item.Name)
		next.Sports = unionSorted(current.Sports, item.Sports)
		if reflect.DeepEqual(current, next) {
			return false, nil
		}
	}
	return true, a.repo.UpsertTournament(ctx, next)
}

func (a *MutationApplier) upsertSeason(ctx context.Context, item graph.Season) (bool, error) {
	if err := a.requireParent(ctx, graph.KindTournament, item.TournamentExternalID); err != nil {
		return false, err
	}
	current, exists, err := a.repo.FindSeason(ctx, item.ExternalID)
	if err != nil {
		return false, err
	}
	next := item
	if exists {
		next = current
		next.TournamentExternalID = item.TournamentExternalID
		next.Year = keepString(current.Year, item.Year)
		next.Status = keepStatus(current.Status, item.Status)
		next.StartDate = keepTime(current.StartDate, item.StartDate)
		next.EndDate = keepTime(current.EndDate, item.EndDate)
		if len(item.ContestantIDs) > 0 {
			next.ContestantIDs = append([]string(nil), item.ContestantIDs...)
		}
		if reflect.DeepEqual(current, next) {
			return false, nil
		}
	}
	return true, a.repo.UpsertSeason(ctx, next)
}

func (a *MutationApplier) upsertStage(ctx context.Context, item graph.Stage) (bool, error) {
	if err := a.requireParent(ctx, graph.KindSeason, item.SeasonExternalID); err != nil {
		return false, err
	}
	current, exists, err := a.repo.FindStage(ctx, item.ExternalID)
	if err != nil {
		return false, err
	}
	next := item
	if exists {
		next = current
		next.SeasonExternalID = item.SeasonExternalID
		next.Name = keepString(current.Name, item.Name)
		next.Status = keepStatus(current.Status, item.Status)
		next.StartDate = keepTime(current.StartDate, item.StartDate)
		next.EndDate = keepTime(current.EndDate, item.EndDate)
		if reflect.DeepEqual(current, next) {
			return false, nil
		}
	}
	return true, a.repo.UpsertStage(ctx, next)
}

func (a *MutationApplier) upsertRound(ctx context.Context, item graph.Round) (bool, error) {
	if err := a.requireParent(ctx, graph.KindStage, item.StageExternalID); err != nil {
		return false, err
	}
	current, exists, err := a.repo.FindRound(ctx, item.ExternalID)
	if err != nil {
		return false, err
	}
	next := item
	if exists {
		next = current
		next.StageExternalID = item.StageExternalID
		if item.Number != 0 {
			next.Number = item.Number
		}
		next.Name = keepString(current.Name, item.Name)
		next.Status = keepStatus(current.Status, item.Status)
		next.StartDate = keepTime(current.StartDate, item.StartDate)
		next.EndDate = keepTime(current.EndDate, item.EndDate)
		next.Properties = graph.MergeProperties(current.Properties, item.Properties)
		if reflect.DeepEqual(current, next) {
			return false, nil
		}
	}
	return true, a.repo.UpsertRound(ctx, next)
}

// upsertGame creates a game with everything the feed knows. An existing game
// only has its round link and contestants refreshed; status, score, start
// date and properties have dedicated mutations with their own rules.
func (a *MutationApplier) upsertGame(ctx context.Context, item graph.Game) (bool, error) {
	if err := a.requireParent(ctx, graph.KindRound, item.RoundExternalID); err != nil {
		return false, err
	}
	for _, contestantID := range item.Contestants {
		if err := a.requireParent(ctx, graph.KindContestant, contestantID); err != nil {
			return false, err
		}
	}

	current, exists, err := a.repo.FindGame(ctx, item.ExternalID)
	if err != nil {
		return false, err
	}
	if !exists {
		next := item
		if !next.Status.Known() {
			next.Status = graph.StatusScheduled
		}
		next.Properties = graph.MergeProperties(nil, item.Properties)
		return true, a.repo.UpsertGame(ctx, next)
	}

	next := current
	next.RoundExternalID = item.RoundExternalID
	if len(item.Contestants) == 2 {
		next.Contestants = append([]string(nil), item.Contestants...)
	}
	if reflect.DeepEqual(current, next) {
		return false, nil
	}
	return true, a.repo.UpsertGame(ctx, next)
}

func (a *MutationApplier) upsertContestant(ctx context.Context, item graph.Contestant) (bool, error) {
	current, exists, err := a.repo.FindContestant(ctx, item.ExternalID)
	if err != nil {
		return false, err
	}
	next := item
	if exists {
		next = current
		next.Name = keepString(current.Name, item.Name)
		if item.Type != "" {
			next.Type = item.Type
		}
		if item.TeamExternalID != "" {
			next.TeamExternalID = item.TeamExternalID
		}
		if reflect.DeepEqual(current, next) {
			return false, nil
		}
	}
	return true, a.repo.UpsertContestant(ctx, next)
}

func (a *MutationApplier) linkPlayerTeam(ctx context.Context, m graph.LinkPlayerTeam) (bool, error) {
	if err := a.requireParent(ctx, graph.KindContestant, m.TeamExternalID); err != nil {
		return false, err
	}
	player, exists, err := a.repo.FindContestant(ctx, m.PlayerExternalID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, fmt.Errorf("%w: player %s", graph.ErrUnresolvedReference, m.PlayerExternalID)
	}
	if player.TeamExternalID == m.TeamExternalID {
		return false, nil
	}
	if player.TeamExternalID != "" {
		a.logger.InfoContext(ctx, "player transferred",
			"player", m.PlayerExternalID,
			"from_team", player.TeamExternalID,
			"to_team", m.TeamExternalID,
		)
	}
	player.TeamExternalID = m.TeamExternalID
	return true, a.repo.UpsertContestant(ctx, player)
}

func (a *MutationApplier) findGame(ctx context.Context, externalID string) (graph.Game, error) {
	game, exists, err := a.repo.FindGame(ctx, externalID)
	if err != nil {
		return graph.Game{}, err
	}
	if !exists {
		return graph.Game{}, fmt.Errorf("%w: game %s", graph.ErrUnresolvedReference, externalID)
	}
	return game, nil
}

func (a *MutationApplier) setGameStatus(ctx context.Context, m graph.SetGameStatus) (bool, error) {
	game, err := a.findGame(ctx, m.GameExternalID)
	if err != nil {
		return false, err
	}
	if game.Status == m.Status {
		return false, nil
	}
	return true, a.repo.SetStatus(ctx, graph.KindGame, m.GameExternalID, m.Status)
}

func (a *MutationApplier) setGameScore(ctx context.Context, m graph.SetGameScore) (bool, error) {
	game, err := a.findGame(ctx, m.GameExternalID)
	if err != nil {
		return false, err
	}
	if game.Score != nil && *game.Score == m.Score {
		return false, nil
	}
	return true, a.repo.SetGameScore(ctx, m.GameExternalID, m.Score)
}

// setGameStartDate honours FutureOnly: a stored date is replaced only by a
// date strictly after now. A game without a date always takes the new one.
func (a *MutationApplier) setGameStartDate(ctx context.Context, m graph.SetGameStartDate) (bool, error) {
	if m.StartDate.IsZero() {
		return false, nil
	}
	game, err := a.findGame(ctx, m.GameExternalID)
	if err != nil {
		return false, err
	}
	if game.StartDate != nil {
		if game.StartDate.Equal(m.StartDate) {
			return false, nil
		}
		if m.FutureOnly && !m.StartDate.After(a.now()) {
			a.logger.DebugContext(ctx, "kept game start date, new date is not in the future",
				"game", m.GameExternalID,
				"stored", game.StartDate.UTC(),
				"parsed", m.StartDate.UTC(),
			)
			return false, nil
		}
	}
	return true, a.repo.SetStartDate(ctx, graph.KindGame, m.GameExternalID, m.StartDate.UTC())
}

func (a *MutationApplier) mergeGameProperties(ctx context.Context, m graph.MergeGameProperties) (bool, error) {
	game, err := a.findGame(ctx, m.GameExternalID)
	if err != nil {
		return false, err
	}
	merged := graph.MergeProperties(game.Properties, m.Properties)
	if len(merged) == len(game.Properties) && reflect.DeepEqual(merged, game.Properties) {
		return false, nil
	}
	return true, a.repo.MergeGameProperties(ctx, m.GameExternalID, graph.MergeProperties(nil, m.Properties))
}

func (a *MutationApplier) attachStandings(ctx context.Context, m graph.AttachStandings) (bool, error) {
	if err := a.requireParent(ctx, m.ParentKind, m.ParentExternalID); err != nil {
		return false, err
	}
	rows := append([]graph.StandingRow(nil), m.Rows...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Rank < rows[j].Rank })
	return true, a.repo.ReplaceStandings(ctx, m.ParentKind, m.ParentExternalID, rows)
}

func (a *MutationApplier) requireParent(ctx context.Context, kind graph.Kind, externalID string) error {
	var (
		exists bool
		err    error
	)
	switch kind {
	case graph.KindTournament:
		_, exists, err = a.repo.FindTournament(ctx, externalID)
	case graph.KindSeason:
		_, exists, err = a.repo.FindSeason(ctx, externalID)
	case graph.KindStage:
		_, exists, err = a.repo.FindStage(ctx, externalID)
	case graph.KindRound:
		_, exists, err = a.repo.FindRound(ctx, externalID)
	case graph.KindGame:
		_, exists, err = a.repo.FindGame(ctx, externalID)
	case graph.KindContestant:
		_, exists, err = a.repo.FindContestant(ctx, externalID)
	default:
		return fmt.Errorf("%w: unknown kind %s", ErrInvalidInput, kind)
	}
	if err != nil {
		return fmt.Errorf("find %s %s: %w", kind, externalID, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s %s", graph.ErrUnresolvedReference, kind, externalID)
	}
	return nil
}

func keepString(current, next string) string {
	if next != "" {
		return next
	}
	return current
}

func keepStatus(current, next graph.Status) graph.Status {
	if next.Known() {
		return next
	}
	return current
}

func keepTime(current, next *time.Time) *time.Time {
	if next != nil && !next.IsZero() {
		value := next.UTC()
		return &value
	}
	return current
}

func unionSorted(left, right []string) []string {
	seen := make(map[string]struct{}, len(left)+len(right))
	out := make([]string, 0, len(left)+len(right))
	for _, item := range append(append([]string(nil), left...), right...) {
		if _, dup := seen[item]; dup || item == "" {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}

// isSoftSkip reports errors that mean "try this file again later" without
// anything being wrong with it.
func isSoftSkip(err error) bool {
	return errors.Is(err, graph.ErrUnresolvedReference)
}
