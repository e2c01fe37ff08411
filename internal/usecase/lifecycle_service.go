package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/riskibarqy/sports-feed-sync/internal/domain/graph"
	"github.com/riskibarqy/sports-feed-sync/internal/platform/logging"
	"github.com/riskibarqy/sports-feed-sync/internal/platform/resilience"
)

const LifecycleJobName = "lifecycle"

type LifecycleConfig struct {
	// PreEventLead moves the reference time forward: an event counts as
	// started once now+PreEventLead reaches its start date.
	PreEventLead time.Duration
}

// SweepResult summarises one lifecycle or time propagation sweep.
type SweepResult struct {
	Skipped bool
	Updated map[graph.Kind]int
}

func (r SweepResult) Total() int {
	total := 0
	for _, n := range r.Updated {
		total += n
	}
	return total
}

// cascadeOrder is the bottom-up per-tick order. Each level runs its primary
// cascade and then its unknown-status recovery before the next level reads
// it as children.
var cascadeOrder = []graph.Kind{graph.KindRound, graph.KindStage, graph.KindSeason}

// cascadeCandidates are the parent statuses the primary cascade may change.
// TERMINATED and CANCELLED parents are final.
var cascadeCandidates = []graph.Status{graph.StatusScheduled, graph.StatusOnGoing, graph.StatusPostponed}

// LifecycleService derives Round, Stage and Season status from their
// children and starts scheduled games whose start time has come.
type LifecycleService struct {
	repo   graph.Hierarchy
	guard  *resilience.JobGuard
	locks  *EntityLocks
	cfg    LifecycleConfig
	logger *logging.Logger
	now    func() time.Time
}

func NewLifecycleService(
	repo graph.Hierarchy,
	guard *resilience.JobGuard,
	locks *EntityLocks,
	cfg LifecycleConfig,
	logger *logging.Logger,
) *LifecycleService {
	if guard == nil {
		guard = resilience.NewJobGuard()
	}
	if locks == nil {
		locks = NewEntityLocks()
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.PreEventLead < 0 {
		cfg.PreEventLead = 0
	}
	return &LifecycleService{
		repo:   repo,
		guard:  guard,
		locks:  locks,
		cfg:    cfg,
		logger: logger.With("job", LifecycleJobName),
		now:    time.Now,
	}
}

func (s *LifecycleService) Name() string {
	return LifecycleJobName
}

func (s *LifecycleService) Run(ctx context.Context) error {
	_, err := s.Sweep(ctx)
	return err
}

// Sweep runs one tick: game start sweep, then Round, Stage and Season, each
// as cascade followed by unknown-status recovery. An invocation while a
// sweep is running returns at once with Skipped set.
func (s *LifecycleService) Sweep(ctx context.Context) (SweepResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LifecycleService.Sweep")
	defer span.End()

	release, ok := s.guard.TryAcquire(s.Name())
	if !ok {
		s.logger.DebugContext(ctx, "lifecycle sweep already running, skipping")
		return SweepResult{Skipped: true}, nil
	}
	defer release()

	result := SweepResult{Updated: make(map[graph.Kind]int)}
	reference := s.now().UTC().Add(s.cfg.PreEventLead)

	started, err := s.startDueGames(ctx, reference)
	result.Updated[graph.KindGame] += started
	if err != nil {
		return result, err
	}

	for _, kind := range cascadeOrder {
		n, err := s.cascade(ctx, kind, reference)
		result.Updated[kind] += n
		if err != nil {
			return result, err
		}
		n, err = s.recoverUnknown(ctx, kind)
		result.Updated[kind] += n
		if err != nil {
			return result, err
		}
	}

	if total := result.Total(); total > 0 {
		s.logger.InfoContext(ctx, "lifecycle sweep finished",
			"games", result.Updated[graph.KindGame],
			"rounds", result.Updated[graph.KindRound],
			"stages", result.Updated[graph.KindStage],
			"seasons", result.Updated[graph.KindSeason],
		)
	}
	return result, nil
}

// startDueGames is the only place a game moves SCHEDULED -> ON_GOING
// without a feed telling us.
func (s *LifecycleService) startDueGames(ctx context.Context, reference time.Time) (int, error) {
	games, err := s.repo.ListDueNodes(ctx, graph.KindGame, graph.StatusScheduled, reference)
	if err != nil {
		return 0, fmt.Errorf("list due games: %w", err)
	}
	updated := 0
	for _, game := range games {
		changed, err := s.transition(ctx, game, graph.StatusOnGoing)
		if err != nil {
			return updated, err
		}
		if changed {
			updated++
		}
	}
	return updated, nil
}

func (s *LifecycleService) cascade(ctx context.Context, kind graph.Kind, reference time.Time) (int, error) {
	parents, err := s.repo.ListNodes(ctx, kind, cascadeCandidates...)
	if err != nil {
		return 0, fmt.Errorf("list %s nodes: %w", kind, err)
	}
	updated := 0
	for _, parent := range parents {
		children, err := s.repo.ChildrenOf(ctx, parent)
		if err != nil {
			return updated, fmt.Errorf("children of %s %s: %w", kind, parent.ExternalID, err)
		}
		next, ok := CascadeStatus(parent, children, reference)
		if !ok {
			continue
		}
		changed, err := s.transition(ctx, parent, next)
		if err != nil {
			return updated, err
		}
		if changed {
			updated++
		}
	}
	return updated, nil
}

func (s *LifecycleService) recoverUnknown(ctx context.Context, kind graph.Kind) (int, error) {
	parents, err := s.repo.ListNodes(ctx, kind, graph.StatusUnknown)
	if err != nil {
		return 0, fmt.Errorf("list %s nodes without status: %w", kind, err)
	}
	updated := 0
	for _, parent := range parents {
		children, err := s.repo.ChildrenOf(ctx, parent)
		if err != nil {
			return updated, fmt.Errorf("children of %s %s: %w", kind, parent.ExternalID, err)
		}
		next, ok := ClassifyUnknown(parent, children)
		if !ok {
			continue
		}
		changed, err := s.transition(ctx, parent, next)
		if err != nil {
			return updated, err
		}
		if changed {
			updated++
		}
	}
	return updated, nil
}

// transition moves node to next only if its stored status is still the one
// the sweep listed. A feed write that landed in between wins and the node is
// looked at again on the next tick.
func (s *LifecycleService) transition(ctx context.Context, node graph.Node, next graph.Status) (bool, error) {
	unlock := s.locks.Lock(node.Kind, node.ExternalID)
	defer unlock()

	changed, err := s.repo.CompareAndSetStatus(ctx, node.Kind, node.ExternalID, node.Status, next)
	if err != nil {
		return false, fmt.Errorf("set %s %s status: %w", node.Kind, node.ExternalID, err)
	}
	if !changed {
		s.logger.DebugContext(ctx, "status changed since listing, transition dropped",
			"kind", string(node.Kind),
			"external_id", node.ExternalID,
			"expected", string(node.Status),
			"to", string(next),
		)
		return false, nil
	}
	s.logger.InfoContext(ctx, "status transition",
		"kind", string(node.Kind),
		"external_id", node.ExternalID,
		"from", string(node.Status),
		"to", string(next),
	)
	return true, nil
}

// CascadeStatus applies the primary rules in precedence order:
//  1. children exist and all are TERMINATED or CANCELLED: TERMINATED
//  2. any child ON_GOING: ON_GOING
//  3. no children, parent SCHEDULED and reference past its start: ON_GOING
//
// ok is false when the parent keeps its status.
func CascadeStatus(parent graph.Node, children []graph.Node, reference time.Time) (graph.Status, bool) {
	next := parent.Status
	switch {
	case len(children) > 0 && allClosed(children):
		next = graph.StatusTerminated
	case anyStatus(children, graph.StatusOnGoing):
		next = graph.StatusOnGoing
	case len(children) == 0 && parent.Status == graph.StatusScheduled &&
		parent.StartDate != nil && !reference.Before(*parent.StartDate):
		next = graph.StatusOnGoing
	}
	if !next.AllowedFor(parent.Kind) || next == parent.Status {
		return parent.Status, false
	}
	return next, true
}

// ClassifyUnknown derives a status for a parent the feed never gave one:
// any child ON_GOING gives ON_GOING, else any SCHEDULED or POSTPONED child
// gives SCHEDULED, else TERMINATED. A parent without children becomes
// SCHEDULED once it has a start date, so the childless start rule of
// CascadeStatus can reach it; without a date it stays unknown.
func ClassifyUnknown(parent graph.Node, children []graph.Node) (graph.Status, bool) {
	switch {
	case len(children) == 0 && parent.StartDate != nil:
		return graph.StatusScheduled, true
	case len(children) == 0:
		return graph.StatusUnknown, false
	case anyStatus(children, graph.StatusOnGoing):
		return graph.StatusOnGoing, true
	case anyStatus(children, graph.StatusScheduled, graph.StatusPostponed):
		return graph.StatusScheduled, true
	default:
		return graph.StatusTerminated, true
	}
}

func allClosed(nodes []graph.Node) bool {
	for _, node := range nodes {
		if !node.Status.Closed() {
			return false
		}
	}
	return true
}

func anyStatus(nodes []graph.Node, statuses ...graph.Status) bool {
	for _, node := range nodes {
		for _, status := range statuses {
			if node.Status == status {
				return true
			}
		}
	}
	return false
}
