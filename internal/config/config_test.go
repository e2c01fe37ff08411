package config

import (
	"testing"
	"time"
)

func TestLoad_AppEnvValidation(t *testing.T) {
	t.Setenv("APP_ENV", "invalid")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid APP_ENV")
	}
}

func TestLoad_UptraceRequiresDSNWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "true")
	t.Setenv("UPTRACE_DSN", "")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when UPTRACE_ENABLED=true without UPTRACE_DSN")
	}
}

func TestLoad_UptraceDSNFromOTLPHeaders(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "true")
	t.Setenv("UPTRACE_DSN", "")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", `uptrace-dsn="https://token@api.uptrace.dev?grpc=4317"`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.UptraceDSN != "https://token@api.uptrace.dev?grpc=4317" {
		t.Fatalf("unexpected UptraceDSN: %q", cfg.UptraceDSN)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "false")
	t.Setenv("FEED_FAMILIES", "")
	t.Setenv("FEED_LIVE_ENABLED", "")
	t.Setenv("DB_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ServiceName != "sports-feed-sync" {
		t.Fatalf("unexpected ServiceName: %q", cfg.ServiceName)
	}
	if cfg.DBURL != "" {
		t.Fatalf("expected empty DB_URL to select in-memory stores, got %q", cfg.DBURL)
	}
	if cfg.JobLifecycleInterval != 5*time.Minute || cfg.JobTimePropagationInterval != 15*time.Minute {
		t.Fatalf("unexpected job intervals: %s / %s", cfg.JobLifecycleInterval, cfg.JobTimePropagationInterval)
	}
	if cfg.FeedFileTimeout != 2*time.Minute {
		t.Fatalf("unexpected FeedFileTimeout: %s", cfg.FeedFileTimeout)
	}
	if cfg.Live.BatchSize != 100 || cfg.Live.Enabled {
		t.Fatalf("unexpected live defaults: %+v", cfg.Live)
	}
	if len(cfg.FeedFamilies) != 0 {
		t.Fatalf("expected no feed families by default")
	}
	if cfg.LogLevel.String() != "info" {
		t.Fatalf("unexpected LogLevel: %s", cfg.LogLevel)
	}
}

func TestLoad_PprofDefaultsAddrWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "false")
	t.Setenv("PPROF_ENABLED", "true")
	t.Setenv("PPROF_ADDR", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.PprofAddr != ":6060" {
		t.Fatalf("unexpected PprofAddr: %q", cfg.PprofAddr)
	}
}

func TestLoad_PyroscopeRequiresServerAddressWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "false")
	t.Setenv("PYROSCOPE_ENABLED", "true")
	t.Setenv("PYROSCOPE_SERVER_ADDRESS", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when PYROSCOPE_ENABLED=true without PYROSCOPE_SERVER_ADDRESS")
	}
}

func TestLoad_FeedFamilies(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "false")
	t.Setenv("FEED_FTP_ADDR", "ftp.example.com:21")
	t.Setenv("FEED_FAMILIES", "football, rugby")
	t.Setenv("FEED_FOOTBALL_COMPETITIONS", "ITA1:2024,ENG1:2024|2023")
	t.Setenv("FEED_FOOTBALL_BATCH_SIZE", "25")
	t.Setenv("FEED_FOOTBALL_WORKERS", "4")
	t.Setenv("FEED_FOOTBALL_UTC_OFFSET", "+5.5")
	t.Setenv("FEED_RUGBY_COMPETITIONS", "SIXN:2024")
	t.Setenv("FEED_RUGBY_SYNC_INTERVAL", "30m")
	t.Setenv("FEED_RUGBY_FUTURE_ONLY_DATES", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.FeedFamilies) != 2 {
		t.Fatalf("expected 2 families, got %d", len(cfg.FeedFamilies))
	}

	football := cfg.FeedFamilies[0]
	if football.Name != "football" || football.Sport != "football" || football.Dir != "/football" {
		t.Fatalf("unexpected football family: %+v", football)
	}
	if football.BatchSize != 25 || football.Workers != 4 || football.UTCOffset != "+5.5" {
		t.Fatalf("unexpected football tuning: %+v", football)
	}
	if football.Competitions[0].ID != "ENG1" || football.Competitions[0].Seasons[0] != "2023" {
		t.Fatalf("expected sorted registry, got %+v", football.Competitions)
	}

	rugby := cfg.FeedFamilies[1]
	if rugby.SyncInterval != 30*time.Minute || rugby.BatchSize != 10 {
		t.Fatalf("unexpected rugby family: %+v", rugby)
	}
	if !football.FutureOnlyDates || rugby.FutureOnlyDates {
		t.Fatalf("unexpected future-only flags: football=%v rugby=%v", football.FutureOnlyDates, rugby.FutureOnlyDates)
	}
}

func TestLoad_FeedFamilyValidation(t *testing.T) {
	cases := map[string]map[string]string{
		"missing ftp addr": {
			"FEED_FAMILIES":              "football",
			"FEED_FOOTBALL_COMPETITIONS": "ENG1:2024",
		},
		"missing competitions": {
			"FEED_FTP_ADDR": "ftp:21",
			"FEED_FAMILIES": "football",
		},
		"zero batch size": {
			"FEED_FTP_ADDR":              "ftp:21",
			"FEED_FAMILIES":              "football",
			"FEED_FOOTBALL_COMPETITIONS": "ENG1:2024",
			"FEED_FOOTBALL_BATCH_SIZE":   "0",
		},
		"duplicate family": {
			"FEED_FTP_ADDR":              "ftp:21",
			"FEED_FAMILIES":              "football,FOOTBALL",
			"FEED_FOOTBALL_COMPETITIONS": "ENG1:2024",
		},
		"bad live pattern": {
			"FEED_FTP_ADDR":     "ftp:21",
			"FEED_LIVE_ENABLED": "true",
			"FEED_LIVE_PATTERN": "live-(",
		},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("APP_ENV", EnvDev)
			t.Setenv("UPTRACE_ENABLED", "false")
			t.Setenv("FEED_FTP_ADDR", "")
			for key, value := range env {
				t.Setenv(key, value)
			}
			if _, err := Load(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestParseCompetitions(t *testing.T) {
	t.Parallel()

	got, err := ParseCompetitions("ENG1:2024|2023, ITA1:2024, ENG1:2023|2022")
	if err != nil {
		t.Fatalf("parse competitions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected merged registry of 2, got %+v", got)
	}
	if got[0].ID != "ENG1" || len(got[0].Seasons) != 3 || got[0].Seasons[0] != "2022" || got[0].Seasons[2] != "2024" {
		t.Fatalf("unexpected ENG1 seasons: %+v", got[0])
	}

	for _, bad := range []string{"ENG1", ":2024", "ENG1:", "ENG1:20/24"} {
		if _, err := ParseCompetitions(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestLoad_JobPreEventLeadAllowsZero(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "false")
	t.Setenv("JOB_PRE_EVENT_LEAD", "-1m")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for negative JOB_PRE_EVENT_LEAD")
	}

	t.Setenv("JOB_PRE_EVENT_LEAD", "10m")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.JobPreEventLead != 10*time.Minute {
		t.Fatalf("unexpected JobPreEventLead: %s", cfg.JobPreEventLead)
	}
}
