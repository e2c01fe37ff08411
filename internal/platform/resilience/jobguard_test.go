package resilience

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestJobGuard_DropsOverlappingRuns(t *testing.T) {
	g := NewJobGuard()

	release, ok := g.TryAcquire("lifecycle")
	if !ok {
		t.Fatalf("expected first acquire to succeed")
	}
	if _, ok := g.TryAcquire("lifecycle"); ok {
		t.Fatalf("expected second acquire of the same name to fail")
	}
	otherRelease, ok := g.TryAcquire("time-propagation")
	if !ok {
		t.Fatalf("different names must not block each other")
	}
	otherRelease()

	release()
	release()
	if g.Running("lifecycle") {
		t.Fatalf("expected lifecycle to be released")
	}
	if _, ok := g.TryAcquire("lifecycle"); !ok {
		t.Fatalf("expected acquire after release to succeed")
	}
}

func TestJobGuard_ConcurrentAcquireAdmitsOne(t *testing.T) {
	var g JobGuard
	var admitted int32

	const workers = 32
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			if _, ok := g.TryAcquire("feed-sync"); ok {
				atomic.AddInt32(&admitted, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := atomic.LoadInt32(&admitted); got != 1 {
		t.Fatalf("expected exactly one admitted run, got %d", got)
	}
}
