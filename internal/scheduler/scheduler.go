package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sourcegraph/conc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/riskibarqy/sports-feed-sync/internal/domain/jobscheduler"
	"github.com/riskibarqy/sports-feed-sync/internal/platform/id"
	"github.com/riskibarqy/sports-feed-sync/internal/platform/logging"
	"github.com/riskibarqy/sports-feed-sync/internal/platform/resilience"
)

var (
	ErrInvalidJob = errors.New("invalid job")
	ErrUnknownJob = errors.New("unknown job")
)

var schedulerTracer = otel.Tracer("sports-feed-sync/internal/scheduler")

// Job is one periodic unit of work. Run reports how many items it processed.
type Job struct {
	Name     string
	Interval time.Duration
	// Timeout bounds a single run. Zero means the run is only bounded by
	// the scheduler lifetime.
	Timeout time.Duration
	Run     func(ctx context.Context) (int, error)
}

// Scheduler fires registered jobs on fixed intervals and records an audit
// event for every run. A job whose previous run is still going is skipped
// for that tick.
type Scheduler struct {
	cron   *cron.Cron
	runs   jobscheduler.Repository
	ids    id.Generator
	guard  *resilience.JobGuard
	logger *logging.Logger
	now    func() time.Time

	mu     sync.RWMutex
	jobs   map[string]Job
	ctx    context.Context
	cancel context.CancelFunc
}

func New(runs jobscheduler.Repository, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.With("component", "scheduler")
	ctx, cancel := context.WithCancel(context.Background())

	adapter := cronLogger{logger: logger}
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(adapter), cron.WithChain(cron.Recover(adapter))),
		runs:   runs,
		ids:    id.NewPrefixedGenerator("run"),
		guard:  resilience.NewJobGuard(),
		logger: logger,
		now:    time.Now,
		jobs:   make(map[string]Job),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Scheduler) Register(job Job) error {
	job.Name = strings.TrimSpace(job.Name)
	switch {
	case job.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidJob)
	case job.Run == nil:
		return fmt.Errorf("%w: %s has no run func", ErrInvalidJob, job.Name)
	case job.Interval < time.Second:
		return fmt.Errorf("%w: %s interval %s is below one second", ErrInvalidJob, job.Name, job.Interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("%w: %s registered twice", ErrInvalidJob, job.Name)
	}
	s.cron.Schedule(cron.Every(job.Interval), cron.FuncJob(func() {
		_ = s.execute(s.ctx, job)
	}))
	s.jobs[job.Name] = job

	s.logger.Info("job registered", "job", job.Name, "interval", job.Interval.String())
	return nil
}

// Jobs returns the registered job names in order.
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.Jobs()))
}

// Stop cancels in-flight runs and waits for them to return or for ctx to
// expire, whichever comes first.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for running jobs: %w", ctx.Err())
	}
}

// RunNow runs one job synchronously, outside the cron schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.RLock()
	job, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.execute(ctx, job)
}

// RunAll runs every registered job once, concurrently, and waits for all of
// them. Used for the bootstrap tick on start.
func (s *Scheduler) RunAll(ctx context.Context) error {
	s.mu.RLock()
	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	s.mu.RUnlock()

	var (
		mu   sync.Mutex
		errs []error
	)
	wg := conc.NewWaitGroup()
	for _, job := range jobs {
		job := job
		wg.Go(func() {
			if err := s.execute(ctx, job); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", job.Name, err))
				mu.Unlock()
			}
		})
	}
	if recovered := wg.WaitAndRecover(); recovered != nil {
		errs = append(errs, recovered.AsError())
	}
	return errors.Join(errs...)
}

func (s *Scheduler) execute(ctx context.Context, job Job) (err error) {
	runID, idErr := s.ids.NewID()
	if idErr != nil {
		runID = fmt.Sprintf("run_%s_%d", job.Name, s.now().UnixNano())
	}
	logger := s.logger.With("job", job.Name, "run_id", runID)

	release, ok := s.guard.TryAcquire(job.Name)
	if !ok {
		logger.DebugContext(ctx, "previous run still in progress, skipping tick")
		s.record(ctx, jobscheduler.RunEvent{RunID: runID, JobName: job.Name, Status: jobscheduler.StatusSkipped})
		return nil
	}
	defer release()

	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}
	ctx, span := schedulerTracer.Start(ctx, "scheduler.run "+job.Name, trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	started := s.now()
	s.record(ctx, jobscheduler.RunEvent{RunID: runID, JobName: job.Name, Status: jobscheduler.StatusStarted})

	processed, err := runSafely(ctx, job)
	elapsed := s.now().Sub(started)

	event := jobscheduler.RunEvent{
		RunID:     runID,
		JobName:   job.Name,
		Status:    jobscheduler.StatusCompleted,
		Processed: processed,
		Payload:   map[string]any{"duration_ms": elapsed.Milliseconds()},
	}
	if err != nil {
		event.Status = jobscheduler.StatusFailed
		event.ErrorMessage = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.WarnContext(ctx, "job run failed", "processed", processed, "duration", elapsed.String(), "error", err)
	} else {
		logger.DebugContext(ctx, "job run completed", "processed", processed, "duration", elapsed.String())
	}
	s.record(ctx, event)
	return err
}

func runSafely(ctx context.Context, job Job) (processed int, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, recovered)
		}
	}()
	return job.Run(ctx)
}

// record never fails the run; the audit trail is best effort.
func (s *Scheduler) record(ctx context.Context, event jobscheduler.RunEvent) {
	if s.runs == nil {
		return
	}
	event.OccurredAt = s.now().UTC()
	spanContext := trace.SpanFromContext(ctx).SpanContext()
	if spanContext.IsValid() {
		event.TraceID = spanContext.TraceID().String()
		event.SpanID = spanContext.SpanID().String()
	}
	if err := s.runs.UpsertEvent(context.WithoutCancel(ctx), event); err != nil {
		s.logger.WarnContext(ctx, "record job run event failed", "job", event.JobName, "status", string(event.Status), "error", err)
	}
}

// cronLogger adapts the zap-backed logger to cron.Logger.
type cronLogger struct {
	logger *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
