package app

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/riskibarqy/sports-feed-sync/internal/config"
	"github.com/riskibarqy/sports-feed-sync/internal/platform/logging"
	"github.com/riskibarqy/sports-feed-sync/internal/usecase"
)

func workerConfig() config.Config {
	return config.Config{
		CacheEnabled:               true,
		CacheTTL:                   time.Minute,
		FTPAddr:                    "127.0.0.1:1",
		FTPTimeout:                 time.Second,
		FeedFileTimeout:            time.Second,
		JobLifecycleInterval:       time.Minute,
		JobTimePropagationInterval: time.Minute,
		FeedFamilies: []config.FeedFamilyConfig{{
			Name:         "football",
			Sport:        "football",
			Dir:          "/football",
			Competitions: []config.Competition{{ID: "ENG1", Seasons: []string{"2024"}}},
			BatchSize:    10,
			SyncInterval: 10 * time.Minute,
			UTCOffset:    "+1",
			Workers:      2,
		}},
		Live: config.LiveFeedConfig{
			Enabled:   true,
			Sport:     "football",
			Dir:       "/live",
			Pattern:   `^live-.+\.json$`,
			BatchSize: 50,
			Interval:  time.Minute,
			UTCOffset: "0",
		},
	}
}

func TestNewWorker_RegistersEveryJob(t *testing.T) {
	w, err := NewWorker(workerConfig(), logging.NewNop())
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}
	defer w.Close()

	want := []string{
		"feed-sync-football",
		usecase.LiveSyncJobName,
		usecase.LifecycleJobName,
		usecase.TimePropagationJobName,
	}
	slices.Sort(want)
	if got := w.Scheduler().Jobs(); !slices.Equal(got, want) {
		t.Fatalf("unexpected jobs: got %v want %v", got, want)
	}
}

func TestNewWorker_SweepJobsRunOnEmptyGraph(t *testing.T) {
	cfg := workerConfig()
	cfg.FeedFamilies = nil
	cfg.Live.Enabled = false

	w, err := NewWorker(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}
	defer w.Close()

	if err := w.Scheduler().RunAll(context.Background()); err != nil {
		t.Fatalf("run all: %v", err)
	}
}

func TestNewWorker_RejectsBadUTCOffset(t *testing.T) {
	cfg := workerConfig()
	cfg.FeedFamilies[0].UTCOffset = "+25"

	if _, err := NewWorker(cfg, logging.NewNop()); err == nil {
		t.Fatalf("expected invalid offset to fail wiring")
	}
}
