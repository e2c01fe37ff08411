package main

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"

	"github.com/riskibarqy/sports-feed-sync/internal/platform/logging"
)

func TestParseSteps(t *testing.T) {
	cases := []struct {
		name    string
		args    []string
		want    int
		wantErr bool
	}{
		{name: "default one step", args: nil, want: 1},
		{name: "explicit steps", args: []string{" 3 "}, want: 3},
		{name: "zero rejected", args: []string{"0"}, wantErr: true},
		{name: "garbage rejected", args: []string{"two"}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseSteps(tc.args)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("parseSteps(%v) = %d, %v", tc.args, got, err)
			}
		})
	}
}

func TestParseVersionAndTarget(t *testing.T) {
	if v, err := parseVersion("2"); err != nil || v != 2 {
		t.Fatalf("parseVersion: %d %v", v, err)
	}
	if _, err := parseVersion("-1"); err == nil {
		t.Fatalf("expected negative version error")
	}
	if v, err := parseTarget("5"); err != nil || v != 5 {
		t.Fatalf("parseTarget: %d %v", v, err)
	}
	if _, err := parseTarget("-5"); err == nil {
		t.Fatalf("expected negative target error")
	}
}

func TestIgnoreNoChange(t *testing.T) {
	logger := logging.NewNop()
	if err := ignoreNoChange(migrate.ErrNoChange, logger); err != nil {
		t.Fatalf("expected no change to be ignored, got %v", err)
	}
	boom := errors.New("boom")
	if err := ignoreNoChange(boom, logger); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("MIGRATION_FLAG", "off")
	if envBool("MIGRATION_FLAG", true) {
		t.Fatalf("expected off to be false")
	}
	t.Setenv("MIGRATION_FLAG", "")
	if !envBool("MIGRATION_FLAG", true) {
		t.Fatalf("expected fallback for empty value")
	}
}

func TestRunRequiresCommand(t *testing.T) {
	if err := run(nil, logging.NewNop()); !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}
