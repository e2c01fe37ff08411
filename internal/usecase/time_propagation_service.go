package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/riskibarqy/sports-feed-sync/internal/domain/graph"
	"github.com/riskibarqy/sports-feed-sync/internal/platform/logging"
	"github.com/riskibarqy/sports-feed-sync/internal/platform/resilience"
)

const TimePropagationJobName = "time-propagation"

// TimePropagationService sets every SCHEDULED Round, Stage and Season start
// date to the earliest start date among its direct children.
type TimePropagationService struct {
	repo   graph.Hierarchy
	guard  *resilience.JobGuard
	locks  *EntityLocks
	logger *logging.Logger
}

func NewTimePropagationService(
	repo graph.Hierarchy,
	guard *resilience.JobGuard,
	locks *EntityLocks,
	logger *logging.Logger,
) *TimePropagationService {
	if guard == nil {
		guard = resilience.NewJobGuard()
	}
	if locks == nil {
		locks = NewEntityLocks()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &TimePropagationService{
		repo:   repo,
		guard:  guard,
		locks:  locks,
		logger: logger.With("job", TimePropagationJobName),
	}
}

func (s *TimePropagationService) Name() string {
	return TimePropagationJobName
}

func (s *TimePropagationService) Run(ctx context.Context) error {
	_, err := s.Sweep(ctx)
	return err
}

func (s *TimePropagationService) Sweep(ctx context.Context) (SweepResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.TimePropagationService.Sweep")
	defer span.End()

	release, ok := s.guard.TryAcquire(s.Name())
	if !ok {
		s.logger.DebugContext(ctx, "time propagation already running, skipping")
		return SweepResult{Skipped: true}, nil
	}
	defer release()

	result := SweepResult{Updated: make(map[graph.Kind]int)}
	for _, kind := range cascadeOrder {
		n, err := s.propagate(ctx, kind)
		result.Updated[kind] = n
		if err != nil {
			return result, err
		}
	}
	if result.Total() > 0 {
		s.logger.InfoContext(ctx, "time propagation finished",
			"rounds", result.Updated[graph.KindRound],
			"stages", result.Updated[graph.KindStage],
			"seasons", result.Updated[graph.KindSeason],
		)
	}
	return result, nil
}

func (s *TimePropagationService) propagate(ctx context.Context, kind graph.Kind) (int, error) {
	parents, err := s.repo.ListNodes(ctx, kind, graph.StatusScheduled)
	if err != nil {
		return 0, fmt.Errorf("list scheduled %s nodes: %w", kind, err)
	}
	updated := 0
	for _, parent := range parents {
		children, err := s.repo.ChildrenOf(ctx, parent)
		if err != nil {
			return updated, fmt.Errorf("children of %s %s: %w", kind, parent.ExternalID, err)
		}
		earliest := graph.EarliestStart(children)
		if earliest == nil {
			continue
		}
		if parent.StartDate != nil && parent.StartDate.Equal(*earliest) {
			continue
		}
		changed, err := s.setStart(ctx, parent, *earliest)
		if err != nil {
			return updated, err
		}
		if changed {
			updated++
		}
	}
	return updated, nil
}

// setStart writes only while node is still SCHEDULED; a parent that started
// or closed since it was listed keeps its date.
func (s *TimePropagationService) setStart(ctx context.Context, node graph.Node, start time.Time) (bool, error) {
	unlock := s.locks.Lock(node.Kind, node.ExternalID)
	defer unlock()

	changed, err := s.repo.SetStartDateIfStatus(ctx, node.Kind, node.ExternalID, graph.StatusScheduled, start.UTC())
	if err != nil {
		return false, fmt.Errorf("set %s %s start date: %w", node.Kind, node.ExternalID, err)
	}
	if !changed {
		s.logger.DebugContext(ctx, "parent left SCHEDULED since listing, start date kept",
			"kind", string(node.Kind),
			"external_id", node.ExternalID,
		)
		return false, nil
	}
	s.logger.DebugContext(ctx, "start date propagated",
		"kind", string(node.Kind),
		"external_id", node.ExternalID,
		"start_date", start.UTC(),
	)
	return true, nil
}
