package usecase

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/riskibarqy/sports-feed-sync/internal/domain/feed"
	"github.com/riskibarqy/sports-feed-sync/internal/domain/graph"
	"github.com/riskibarqy/sports-feed-sync/internal/extractor"
	"github.com/riskibarqy/sports-feed-sync/internal/platform/logging"
	"github.com/riskibarqy/sports-feed-sync/internal/platform/resilience"
)

type fileOutcome int

const (
	outcomeApplied fileOutcome = iota
	outcomeUnresolved
	outcomeNoGame
	outcomeParseFailed
	outcomeFailed
)

// fileJob is one stale remote file ready to be fetched and applied.
type fileJob struct {
	dir    string
	file   feed.RemoteFile
	format extractor.Format
	input  extractor.Input
}

// feedProcessor runs the per-file pipeline shared by the batched and the
// live sync: download, extract, apply, record.
type feedProcessor struct {
	client      feed.Client
	ledger      *FeedLedger
	extractors  *extractor.Registry
	applier     *MutationApplier
	lookup      graph.Reader
	fileTimeout time.Duration
	logger      *logging.Logger
	now         func() time.Time
}

// process returns a non-nil error only for outcomeFailed. A failed file
// never touches the ledger.
func (p *feedProcessor) process(ctx context.Context, job fileJob) (fileOutcome, error) {
	name := job.file.Name
	logger := p.logger.With("file", name, "format", string(job.format))

	data, err := p.download(ctx, path.Join(job.dir, name))
	if err != nil {
		logger.WarnContext(ctx, "feed download failed", "error", err)
		return outcomeFailed, err
	}

	in := job.input
	in.Filename = name
	in.Data = data
	in.Lookup = p.lookup
	in.Now = p.now().UTC()

	list, err := p.extractors.Extract(ctx, job.format, in)
	switch {
	case err == nil:
	case isSoftSkip(err):
		logger.DebugContext(ctx, "feed references unknown graph entities, will retry", "reason", err)
		return outcomeUnresolved, nil
	case errors.Is(err, extractor.ErrNoResolvableGame):
		logger.InfoContext(ctx, "live feed references no known game", "reason", err)
		if err := p.ledger.RecordApplied(ctx, name, job.file.ModifiedAt, data); err != nil {
			return outcomeFailed, err
		}
		return outcomeNoGame, nil
	case errors.Is(err, extractor.ErrMalformedFeed):
		logger.ErrorContext(ctx, "feed parse failed", "error", err)
		return outcomeParseFailed, nil
	default:
		return outcomeFailed, fmt.Errorf("extract %s: %w", name, err)
	}

	result, err := p.applier.Apply(ctx, list)
	switch {
	case err == nil:
	case isSoftSkip(err):
		logger.DebugContext(ctx, "feed apply hit unknown graph entity, will retry", "reason", err)
		return outcomeUnresolved, nil
	case errors.Is(err, extractor.ErrMalformedFeed):
		logger.ErrorContext(ctx, "feed content rejected", "error", err)
		return outcomeParseFailed, nil
	default:
		return outcomeFailed, fmt.Errorf("apply %s: %w", name, err)
	}

	if err := p.ledger.RecordApplied(ctx, name, job.file.ModifiedAt, data); err != nil {
		return outcomeFailed, err
	}
	logger.InfoContext(ctx, "feed applied",
		"mutations", len(list),
		"changed", result.Changed,
		"unchanged", result.Unchanged,
	)
	return outcomeApplied, nil
}

// download bounds one fetch by fileTimeout so a hung transfer only costs
// the current file.
func (p *feedProcessor) download(ctx context.Context, remotePath string) ([]byte, error) {
	fetchCtx := ctx
	if p.fileTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, p.fileTimeout)
		defer cancel()
	}
	data, err := p.client.Download(fetchCtx, remotePath)
	if err != nil {
		return nil, wrapTransport("download "+remotePath, err)
	}
	return data, nil
}

func wrapTransport(op string, err error) error {
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, ErrDependencyUnavailable) {
		return fmt.Errorf("%s: %w: %w", op, ErrDependencyUnavailable, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrTransport, err)
}

// fileBudget is a reservation counter shared by the workers of one run so
// the per-run ceiling holds exactly. A worker that finds every slot reserved
// waits for an in-flight file to settle, since a failed file gives its slot
// back.
type fileBudget struct {
	mu        sync.Mutex
	settled   *sync.Cond
	limit     int
	reserved  int
	processed int
}

func newFileBudget(limit int) *fileBudget {
	b := &fileBudget{limit: limit}
	b.settled = sync.NewCond(&b.mu)
	return b
}

// reserve claims a slot for one file; false means the run is full.
func (b *fileBudget) reserve() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.reserved >= b.limit {
		if b.processed >= b.limit {
			return false
		}
		b.settled.Wait()
	}
	b.reserved++
	return true
}

// settle converts a reservation into a processed file or gives it back.
func (b *fileBudget) settle(processed bool) {
	b.mu.Lock()
	if processed {
		b.processed++
	} else {
		b.reserved--
	}
	b.mu.Unlock()
	b.settled.Broadcast()
}

func (b *fileBudget) exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.processed >= b.limit
}

func (b *fileBudget) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.processed
}
