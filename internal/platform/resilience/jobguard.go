package resilience

import "sync"

// JobGuard is a per-name "in progress" flag. A second TryAcquire for a name
// that is already held fails immediately instead of waiting.
type JobGuard struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func NewJobGuard() *JobGuard {
	return &JobGuard{running: make(map[string]struct{})}
}

// TryAcquire marks name as running. On success the returned release must be
// called exactly once; calling it more than once is a no-op.
func (g *JobGuard) TryAcquire(name string) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running == nil {
		g.running = make(map[string]struct{})
	}
	if _, busy := g.running[name]; busy {
		return func() {}, false
	}
	g.running[name] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.running, name)
			g.mu.Unlock()
		})
	}, true
}

func (g *JobGuard) Running(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.running[name]
	return busy
}
