package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
	"go.opentelemetry.io/otel/attribute"

	"github.com/riskibarqy/sports-feed-sync/internal/config"
	"github.com/riskibarqy/sports-feed-sync/internal/domain/feed"
	"github.com/riskibarqy/sports-feed-sync/internal/domain/graph"
	"github.com/riskibarqy/sports-feed-sync/internal/domain/jobscheduler"
	"github.com/riskibarqy/sports-feed-sync/internal/extractor"
	"github.com/riskibarqy/sports-feed-sync/internal/infrastructure/feedclient"
	cacherepo "github.com/riskibarqy/sports-feed-sync/internal/infrastructure/repository/cache"
	"github.com/riskibarqy/sports-feed-sync/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/sports-feed-sync/internal/infrastructure/repository/postgres"
	basecache "github.com/riskibarqy/sports-feed-sync/internal/platform/cache"
	"github.com/riskibarqy/sports-feed-sync/internal/platform/logging"
	"github.com/riskibarqy/sports-feed-sync/internal/platform/resilience"
	"github.com/riskibarqy/sports-feed-sync/internal/scheduler"
	"github.com/riskibarqy/sports-feed-sync/internal/usecase"
)

const (
	dbMaxOpenConns    = 10
	dbMaxIdleConns    = 5
	dbConnMaxLifetime = 30 * time.Minute
)

// Worker owns every long-lived dependency of the sync process.
type Worker struct {
	scheduler *scheduler.Scheduler
	db        *sqlx.DB
	logger    *logging.Logger
}

// stores keeps the cached graph reader used by extractors apart from the
// repository the applier and the sweeps read and write through.
type stores struct {
	graph  graph.Repository
	lookup graph.Reader
	ledger feed.LedgerRepository
	runs   jobscheduler.Repository
}

// NewWorker wires repositories, the feed transport, the ingestion and
// lifecycle services, and registers one scheduler job per service.
func NewWorker(cfg config.Config, logger *logging.Logger) (*Worker, error) {
	if logger == nil {
		logger = logging.Default()
	}

	w := &Worker{logger: logger}
	st, err := w.openStores(cfg)
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(st.runs, logger)
	if err := registerJobs(sched, cfg, st, logger); err != nil {
		_ = w.Close()
		return nil, err
	}
	w.scheduler = sched

	return w, nil
}

func (w *Worker) Scheduler() *scheduler.Scheduler {
	return w.scheduler
}

func (w *Worker) Close() error {
	if w.db == nil {
		return nil
	}
	if err := w.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func (w *Worker) openStores(cfg config.Config) (stores, error) {
	var st stores
	if cfg.DBURL == "" {
		w.logger.Warn("DB_URL empty, using in-memory stores")
		st = stores{
			graph:  memory.NewGraphRepository(),
			ledger: memory.NewLedgerRepository(),
			runs:   memory.NewJobRunRepository(),
		}
	} else {
		db, err := openDatabase(cfg)
		if err != nil {
			return stores{}, err
		}
		w.db = db
		st = stores{
			graph:  postgres.NewGraphRepository(db),
			ledger: postgres.NewLedgerRepository(db),
			runs:   postgres.NewJobRunRepository(db),
		}
		w.logger.Info("postgres stores ready", "db_name", dbNameFromURL(cfg.DBURL))
	}

	st.lookup = st.graph
	if cfg.CacheEnabled {
		cached := cacherepo.NewGraphRepository(st.graph, basecache.NewStore(cfg.CacheTTL))
		st.graph = cached.Direct()
		st.lookup = cached
	}
	return st, nil
}

func openDatabase(cfg config.Config) (*sqlx.DB, error) {
	db, err := otelsqlx.Open("postgres", NormalizeDBURL(cfg.DBURL, cfg.DBDisablePreparedBinary),
		otelsql.WithAttributes(attribute.String("db.system", "postgresql")),
		otelsql.WithDBName(dbNameFromURL(cfg.DBURL)),
		otelsql.WithQueryFormatter(formatDBQueryForTrace),
	)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(dbMaxOpenConns)
	db.SetMaxIdleConns(dbMaxIdleConns)
	db.SetConnMaxLifetime(dbConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	otelsql.ReportDBStatsMetrics(db.DB)
	return db, nil
}

func registerJobs(sched *scheduler.Scheduler, cfg config.Config, st stores, logger *logging.Logger) error {
	guard := resilience.NewJobGuard()
	locks := usecase.NewEntityLocks()
	ledger := usecase.NewFeedLedger(st.ledger)
	applier := usecase.NewMutationApplier(st.graph, locks, logger)
	extractors := extractor.NewRegistry()

	var errs []error
	for _, family := range cfg.FeedFamilies {
		offset, err := extractor.ParseUTCOffset(family.UTCOffset)
		if err != nil {
			errs = append(errs, fmt.Errorf("feed family %s: %w", family.Name, err))
			continue
		}

		svc := usecase.NewFeedSyncService(
			newFeedClient(cfg, logger.With("feed_family", family.Name)),
			ledger,
			extractors,
			applier,
			st.lookup,
			guard,
			usecase.FeedSyncConfig{
				Family:          family.Name,
				Sport:           family.Sport,
				Dir:             family.Dir,
				Competitions:    toCompetitions(family.Competitions),
				BatchSize:       family.BatchSize,
				Workers:         family.Workers,
				UTCOffset:       offset,
				FutureOnlyDates: family.FutureOnlyDates,
				FileTimeout:     cfg.FeedFileTimeout,
			},
			logger,
		)
		errs = append(errs, sched.Register(scheduler.Job{
			Name:     svc.Name(),
			Interval: family.SyncInterval,
			Timeout:  family.SyncInterval,
			Run:      svc.Sync,
		}))
	}

	if cfg.Live.Enabled {
		offset, err := extractor.ParseUTCOffset(cfg.Live.UTCOffset)
		if err != nil {
			return fmt.Errorf("live feed: %w", err)
		}
		live, err := usecase.NewLiveSyncService(
			newFeedClient(cfg, logger.With("feed_family", "live")),
			ledger,
			extractors,
			applier,
			st.lookup,
			guard,
			usecase.LiveSyncConfig{
				Sport:       cfg.Live.Sport,
				Dir:         cfg.Live.Dir,
				Pattern:     cfg.Live.Pattern,
				BatchSize:   cfg.Live.BatchSize,
				UTCOffset:   offset,
				FileTimeout: cfg.FeedFileTimeout,
			},
			logger,
		)
		if err != nil {
			return fmt.Errorf("live feed: %w", err)
		}
		errs = append(errs, sched.Register(scheduler.Job{
			Name:     live.Name(),
			Interval: cfg.Live.Interval,
			Timeout:  cfg.Live.Interval,
			Run:      live.Sync,
		}))
	}

	lifecycle := usecase.NewLifecycleService(st.graph, guard, locks, usecase.LifecycleConfig{
		PreEventLead: cfg.JobPreEventLead,
	}, logger)
	errs = append(errs, sched.Register(scheduler.Job{
		Name:     lifecycle.Name(),
		Interval: cfg.JobLifecycleInterval,
		Run:      sweepJob(lifecycle.Sweep),
	}))

	propagation := usecase.NewTimePropagationService(st.graph, guard, locks, logger)
	errs = append(errs, sched.Register(scheduler.Job{
		Name:     propagation.Name(),
		Interval: cfg.JobTimePropagationInterval,
		Run:      sweepJob(propagation.Sweep),
	}))

	return errors.Join(errs...)
}

func sweepJob(sweep func(ctx context.Context) (usecase.SweepResult, error)) func(ctx context.Context) (int, error) {
	return func(ctx context.Context) (int, error) {
		result, err := sweep(ctx)
		return result.Total(), err
	}
}

func newFeedClient(cfg config.Config, logger *logging.Logger) *feedclient.Client {
	return feedclient.NewClient(feedclient.Config{
		Addr:     cfg.FTPAddr,
		User:     cfg.FTPUser,
		Password: cfg.FTPPassword,
		Timeout:  cfg.FTPTimeout,
		Logger:   logger,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.FTPCircuitEnabled,
			FailureThreshold: cfg.FTPCircuitFailureCount,
			OpenTimeout:      cfg.FTPCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.FTPCircuitHalfOpenMaxReq,
		},
	})
}

func toCompetitions(in []config.Competition) []usecase.Competition {
	out := make([]usecase.Competition, 0, len(in))
	for _, item := range in {
		out = append(out, usecase.Competition{
			ID:      item.ID,
			Seasons: append([]string(nil), item.Seasons...),
		})
	}
	return out
}
