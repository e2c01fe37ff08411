package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/riskibarqy/sports-feed-sync/internal/domain/feed"
	"github.com/riskibarqy/sports-feed-sync/internal/domain/graph"
	"github.com/riskibarqy/sports-feed-sync/internal/extractor"
	"github.com/riskibarqy/sports-feed-sync/internal/platform/logging"
	"github.com/riskibarqy/sports-feed-sync/internal/platform/resilience"
)

// Competition is one registry entry of a feed family.
type Competition struct {
	ID      string
	Seasons []string
}

type FeedSyncConfig struct {
	Family          string
	Sport           string
	Dir             string
	Competitions    []Competition
	BatchSize       int
	Workers         int
	UTCOffset       time.Duration
	FutureOnlyDates bool
	FileTimeout     time.Duration
}

// feedFileKinds is the dependency order of one competition season: rosters
// create the contestants results refer to, results create the stages and
// rounds standings attach to.
var feedFileKinds = []extractor.Format{
	extractor.FormatSquads,
	extractor.FormatResults,
	extractor.FormatStandings,
}

// FeedFileName is the remote name of one competition season feed.
func FeedFileName(competition, season string, format extractor.Format) string {
	return fmt.Sprintf("%s-%s-%s.xml", competition, season, format)
}

// FeedSyncService walks the competition registry of one feed family and
// applies every stale file, up to BatchSize files per run.
type FeedSyncService struct {
	cfg       FeedSyncConfig
	client    feed.Client
	ledger    *FeedLedger
	guard     *resilience.JobGuard
	processor *feedProcessor
	logger    *logging.Logger
	now       func() time.Time
}

func NewFeedSyncService(
	client feed.Client,
	ledger *FeedLedger,
	extractors *extractor.Registry,
	applier *MutationApplier,
	lookup graph.Reader,
	guard *resilience.JobGuard,
	cfg FeedSyncConfig,
	logger *logging.Logger,
) *FeedSyncService {
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
		cfg.BatchSize = 10
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if strings.TrimSpace(cfg.Sport) == "" {
		cfg.Sport = cfg.Family
	}
	logger = logger.With("job", cfg.JobName(), "family", cfg.Family)

	s := &FeedSyncService{
		cfg:    cfg,
		client: client,
		ledger: ledger,
		guard:  guard,
		logger: logger,
		now:    time.Now,
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
	return s
}

func (c FeedSyncConfig) JobName() string {
	return "feed-sync-" + c.Family
}

func (s *FeedSyncService) Name() string {
	return s.cfg.JobName()
}

// Run is the scheduler entry point.
func (s *FeedSyncService) Run(ctx context.Context) error {
	_, err := s.Sync(ctx)
	return err
}

// Sync processes at most BatchSize stale files and returns how many were
// applied. Transport failures abort only their file and are returned joined;
// an unavailable transport aborts the rest of the run.
func (s *FeedSyncService) Sync(ctx context.Context) (int, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.FeedSyncService.Sync")
	defer span.End()

	release, ok := s.guard.TryAcquire(s.Name())
	if !ok {
		s.logger.DebugContext(ctx, "feed sync already running, skipping")
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

	run := &syncRun{budget: newFileBudget(s.cfg.BatchSize)}

	pool, err := ants.NewPool(s.cfg.Workers)
	if err != nil {
		return 0, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var workers sync.WaitGroup
	for _, competition := range s.cfg.Competitions {
		competition := competition
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()
			s.syncCompetition(ctx, run, competition)
		}); err != nil {
			workers.Done()
			run.fail(fmt.Errorf("submit competition %s to worker pool: %w", competition.ID, err))
			break
		}
	}
	workers.Wait()

	processed := run.budget.count()
	joined := run.err()
	s.logger.InfoContext(ctx, "feed sync finished",
		"processed", processed,
		"batch_size", s.cfg.BatchSize,
		"parse_failures", run.parseFailures(),
		"deferred", run.deferredCount(),
		"failed", joined != nil,
	)
	return processed, joined
}

func (s *FeedSyncService) syncCompetition(ctx context.Context, run *syncRun, competition Competition) {
	logger := s.logger.With("competition", competition.ID)
	for _, season := range competition.Seasons {
		if run.stopped() {
			return
		}
		files, err := s.listSeasonFiles(ctx, competition.ID, season)
		if err != nil {
			logger.WarnContext(ctx, "list feed files failed", "season", season, "error", err)
			run.fail(err)
			continue
		}

		for _, job := range files {
			if run.stopped() {
				return
			}
			stale, err := s.ledger.IsStale(ctx, job.file.Name, job.file.ModifiedAt)
			if err != nil {
				run.fail(err)
				continue
			}
			if !stale {
				continue
			}
			if !run.budget.reserve() {
				return
			}

			outcome, err := s.processor.process(ctx, job)
			run.budget.settle(outcome == outcomeApplied || outcome == outcomeNoGame)
			switch outcome {
			case outcomeParseFailed:
				run.countParseFailure()
			case outcomeUnresolved:
				run.countDeferred()
			case outcomeFailed:
				run.fail(err)
			}
		}
	}
}

// listSeasonFiles returns the season's remote files in dependency order.
func (s *FeedSyncService) listSeasonFiles(ctx context.Context, competition, season string) ([]fileJob, error) {
	pattern := "^" + regexp.QuoteMeta(competition+"-"+season+"-") + `(squads|results|standings)\.xml$`
	remote, err := s.client.List(ctx, s.cfg.Dir, pattern)
	if err != nil {
		return nil, wrapTransport(fmt.Sprintf("list %s %s", competition, season), err)
	}

	byName := make(map[string]feed.RemoteFile, len(remote))
	for _, file := range remote {
		byName[file.Name] = file
	}

	jobs := make([]fileJob, 0, len(feedFileKinds))
	for _, format := range feedFileKinds {
		file, ok := byName[FeedFileName(competition, season, format)]
		if !ok {
			continue
		}
		jobs = append(jobs, fileJob{
			dir:    s.cfg.Dir,
			file:   file,
			format: format,
			input: extractor.Input{
				Sport:           s.cfg.Sport,
				UTCOffset:       s.cfg.UTCOffset,
				FutureOnlyDates: s.cfg.FutureOnlyDates,
			},
		})
	}
	return jobs, nil
}

// syncRun is the shared state of one Sync call across worker goroutines.
type syncRun struct {
	budget *fileBudget

	mu       sync.Mutex
	errs     []error
	aborted  bool
	parseErr int
	deferred int
}

func (r *syncRun) fail(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
	if errors.Is(err, ErrDependencyUnavailable) {
		r.aborted = true
	}
}

// stopped is true once the budget is spent or the transport is unavailable.
func (r *syncRun) stopped() bool {
	r.mu.Lock()
	aborted := r.aborted
	r.mu.Unlock()
	return aborted || r.budget.exhausted()
}

func (r *syncRun) countParseFailure() {
	r.mu.Lock()
	r.parseErr++
	r.mu.Unlock()
}

func (r *syncRun) countDeferred() {
	r.mu.Lock()
	r.deferred++
	r.mu.Unlock()
}

func (r *syncRun) parseFailures() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.parseErr
}

func (r *syncRun) deferredCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deferred
}

func (r *syncRun) err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return errors.Join(r.errs...)
}
