package usecase

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"time"

	"github.com/riskibarqy/sports-feed-sync/internal/domain/feed"
	"github.com/riskibarqy/sports-feed-sync/internal/domain/graph"
	"github.com/riskibarqy/sports-feed-sync/internal/extractor"
	"github.com/riskibarqy/sports-feed-sync/internal/platform/logging"
	"github.com/riskibarqy/sports-feed-sync/internal/platform/resilience"
)

type LiveSyncConfig struct {
	Sport       string
	Dir         string
	Pattern     string
	BatchSize   int
	UTCOffset   time.Duration
	FileTimeout time.Duration
}

const LiveSyncJobName = "feed-sync-live"

// LiveSyncService applies near-real-time score files selected by filename
// pattern, oldest first. Payloads that reference no known game are recorded
// in the ledger so they are not fetched again.
type LiveSyncService struct {
	cfg       LiveSyncConfig
	pattern   *regexp.Regexp
	client    feed.Client
	ledger    *FeedLedger
	guard     *resilience.JobGuard
	processor *feedProcessor
	logger    *logging.Logger
	now       func() time.Time
}

func NewLiveSyncService(
	client feed.Client,
	ledger *FeedLedger,
	extractors *extractor.Registry,
	applier *MutationApplier,
	lookup graph.Reader,
	guard *resilience.JobGuard,
	cfg LiveSyncConfig,
	logger *logging.Logger,
) (*LiveSyncService, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if guard == nil {
		guard = resilience.NewJobGuard()
	}
	if extractors == nil {
		extractors = extractor.NewRegistry()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Pattern == "" {
		cfg.Pattern = `^live-.+\.json$`
	}
	pattern, err := regexp.Compile(cfg.Pattern)
	if err != nil {
		return nil, errors.Join(ErrInvalidInput, err)
	}
	logger = logger.With("job", LiveSyncJobName)

	s := &LiveSyncService{
		cfg:     cfg,
		pattern: pattern,
		client:  client,
		ledger:  ledger,
		guard:   guard,
		logger:  logger,
		now:     time.Now,
	}
	s.processor = &feedProcessor{
		client:      client,
		ledger:      ledger,
		extractors:  extractors,
		applier:     applier,
		lookup:      lookup,
		fileTimeout: cfg.FileTimeout,
		logger:      logger,
		now:         func() time.Time { return s.now() },
	}
	return s, nil
}

func (s *LiveSyncService) Name() string {
	return LiveSyncJobName
}

func (s *LiveSyncService) Run(ctx context.Context) error {
	_, err := s.Sync(ctx)
	return err
}

func (s *LiveSyncService) Sync(ctx context.Context) (int, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LiveSyncService.Sync")
	defer span.End()

	release, ok := s.guard.TryAcquire(s.Name())
	if !ok {
		s.logger.DebugContext(ctx, "live sync already running, skipping")
		return 0, nil
	}
	defer release()

	if err := s.client.Connect(ctx); err != nil {
		return 0, wrapTransport("connect", err)
	}
	defer func() {
		if err := s.client.Disconnect(); err != nil {
			s.logger.WarnContext(ctx, "feed client disconnect failed", "error", err)
		}
	}()

	remote, err := s.client.List(ctx, s.cfg.Dir, s.pattern.String())
	if err != nil {
		return 0, wrapTransport("list live files", err)
	}
	candidates := make([]feed.RemoteFile, 0, len(remote))
	for _, file := range remote {
		if s.pattern.MatchString(file.Name) {
			candidates = append(candidates, file)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if !candidates[i].ModifiedAt.Equal(candidates[j].ModifiedAt) {
			return candidates[i].ModifiedAt.Before(candidates[j].ModifiedAt)
		}
		return candidates[i].Name < candidates[j].Name
	})

	var (
		processed int
		errs      []error
	)
	for _, file := range candidates {
		if processed >= s.cfg.BatchSize {
			break
		}
		stale, err := s.ledger.IsStale(ctx, file.Name, file.ModifiedAt)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !stale {
			continue
		}

		outcome, err := s.processor.process(ctx, fileJob{
			dir:    s.cfg.Dir,
			file:   file,
			format: extractor.FormatLive,
			input: extractor.Input{
				Sport:     s.cfg.Sport,
				UTCOffset: s.cfg.UTCOffset,
			},
		})
		switch outcome {
		case outcomeApplied, outcomeNoGame:
			processed++
		case outcomeFailed:
			errs = append(errs, err)
			if errors.Is(err, ErrDependencyUnavailable) {
				return processed, errors.Join(errs...)
			}
		}
	}

	s.logger.InfoContext(ctx, "live sync finished", "candidates", len(candidates), "processed", processed)
	return processed, errors.Join(errs...)
}
