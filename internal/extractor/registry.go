package extractor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/riskibarqy/sports-feed-sync/internal/domain/graph"
)

var (
	// ErrMalformedFeed wraps every content-level failure: bad XML/JSON,
	// unparseable dates, missing mandatory identifiers.
	ErrMalformedFeed = errors.New("malformed feed")
	// ErrNoResolvableGame is returned by live extractors when a payload
	// references no game the graph knows.
	ErrNoResolvableGame = errors.New("no resolvable game in feed")
	ErrUnknownFormat    = errors.New("unknown feed format")
)

type Format string

const (
	FormatSquads    Format = "squads"
	FormatResults   Format = "results"
	FormatStandings Format = "standings"
	FormatLive      Format = "live"
)

// Input is everything an extractor may look at. Lookup is read-only.
type Input struct {
	Filename  string
	Data      []byte
	Sport     string
	Lookup    graph.Reader
	Now       time.Time
	UTCOffset time.Duration
	// FutureOnlyDates makes results extractors emit start dates that only
	// overwrite a stored date when the new one is in the future.
	FutureOnlyDates bool
}

// Func turns one feed document into an ordered list of graph mutations.
type Func func(ctx context.Context, in Input) (graph.MutationList, error)

// Registry dispatches a format code to its extractor.
type Registry struct {
	mu         sync.RWMutex
	extractors map[Format]Func
}

// NewRegistry returns a registry with the built-in extractors registered.
func NewRegistry() *Registry {
	r := &Registry{extractors: make(map[Format]Func)}
	r.Register(FormatSquads, ExtractSquads)
	r.Register(FormatResults, ExtractResults)
	r.Register(FormatStandings, ExtractStandings)
	r.Register(FormatLive, ExtractLive)
	return r
}

// Register installs fn for format, replacing any previous extractor.
func (r *Registry) Register(format Format, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[format] = fn
}

func (r *Registry) Formats() []Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Format, 0, len(r.extractors))
	for format := range r.extractors {
		out = append(out, format)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) Extract(ctx context.Context, format Format, in Input) (graph.MutationList, error) {
	r.mu.RLock()
	fn, ok := r.extractors[format]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
	if len(in.Data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrMalformedFeed, in.Filename)
	}
	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}
	in.Sport = strings.ToLower(strings.TrimSpace(in.Sport))
	return fn(ctx, in)
}

func malformed(filename, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformedFeed, filename, fmt.Sprintf(format, args...))
}
