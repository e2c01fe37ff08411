package config

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	crerr "github.com/cockroachdb/errors"
)

// Competition is one registry line: a provider competition code and the
// season labels to keep in sync for it.
type Competition struct {
	ID      string
	Seasons []string
}

// FeedFamilyConfig configures one batched sync job, e.g. "football".
type FeedFamilyConfig struct {
	Name         string
	Sport        string
	Dir          string
	Competitions []Competition
	BatchSize    int
	SyncInterval time.Duration
	UTCOffset    string
	Workers      int
	// FutureOnlyDates keeps a stored game start unless the feed moves it
	// into the future.
	FutureOnlyDates bool
}

// LiveFeedConfig configures the pattern-selected near-real-time feed.
type LiveFeedConfig struct {
	Enabled   bool
	Sport     string
	Dir       string
	Pattern   string
	BatchSize int
	Interval  time.Duration
	UTCOffset string
}

var familyNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func loadFeedFamilies() ([]FeedFamilyConfig, error) {
	names := splitCSV(getEnv("FEED_FAMILIES", ""))
	out := make([]FeedFamilyConfig, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, raw := range names {
		name := strings.ToLower(raw)
		if !familyNamePattern.MatchString(name) {
			return nil, fmt.Errorf("invalid FEED_FAMILIES entry %q", raw)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate FEED_FAMILIES entry %q", raw)
		}
		seen[name] = struct{}{}

		family, err := loadFeedFamily(name)
		if err != nil {
			return nil, err
		}
		out = append(out, family)
	}
	return out, nil
}

func loadFeedFamily(name string) (FeedFamilyConfig, error) {
	prefix := "FEED_" + strings.ToUpper(name) + "_"

	competitionsKey := prefix + "COMPETITIONS"
	competitions, err := ParseCompetitions(getEnv(competitionsKey, ""))
	if err != nil {
		return FeedFamilyConfig{}, fmt.Errorf("parse %s: %w", competitionsKey, err)
	}
	if len(competitions) == 0 {
		return FeedFamilyConfig{}, fmt.Errorf("%s is required for feed family %q", competitionsKey, name)
	}

	batchSize, err := getEnvAsInt(prefix+"BATCH_SIZE", 10)
	if err != nil {
		return FeedFamilyConfig{}, fmt.Errorf("parse %sBATCH_SIZE: %w", prefix, err)
	}
	if batchSize < 1 {
		return FeedFamilyConfig{}, fmt.Errorf("%sBATCH_SIZE must be >= 1", prefix)
	}
	workers, err := getEnvAsInt(prefix+"WORKERS", 1)
	if err != nil {
		return FeedFamilyConfig{}, fmt.Errorf("parse %sWORKERS: %w", prefix, err)
	}
	if workers < 1 {
		return FeedFamilyConfig{}, fmt.Errorf("%sWORKERS must be >= 1", prefix)
	}
	interval, err := getEnvAsDuration(prefix+"SYNC_INTERVAL", "10m")
	if err != nil {
		return FeedFamilyConfig{}, err
	}
	futureOnly, err := parseBoolEnv(prefix+"FUTURE_ONLY_DATES", "true")
	if err != nil {
		return FeedFamilyConfig{}, err
	}

	return FeedFamilyConfig{
		Name:            name,
		Sport:           strings.ToLower(strings.TrimSpace(getEnv(prefix+"SPORT", name))),
		Dir:             strings.TrimSpace(getEnv(prefix+"DIR", "/"+name)),
		Competitions:    competitions,
		BatchSize:       batchSize,
		SyncInterval:    interval,
		UTCOffset:       strings.TrimSpace(getEnv(prefix+"UTC_OFFSET", "0")),
		Workers:         workers,
		FutureOnlyDates: futureOnly,
	}, nil
}

func loadLiveFeed() (LiveFeedConfig, error) {
	var cfg LiveFeedConfig
	enabled, err := parseBoolEnv("FEED_LIVE_ENABLED", "false")
	if err != nil {
		return cfg, err
	}
	batchSize, err := getEnvAsInt("FEED_LIVE_BATCH_SIZE", 100)
	if err != nil {
		return cfg, fmt.Errorf("parse FEED_LIVE_BATCH_SIZE: %w", err)
	}
	if batchSize < 1 {
		return cfg, fmt.Errorf("FEED_LIVE_BATCH_SIZE must be >= 1")
	}
	interval, err := getEnvAsDuration("FEED_LIVE_INTERVAL", "1m")
	if err != nil {
		return cfg, err
	}
	pattern := strings.TrimSpace(getEnv("FEED_LIVE_PATTERN", `^live-.+\.json$`))
	if _, err := regexp.Compile(pattern); err != nil {
		return cfg, fmt.Errorf("parse FEED_LIVE_PATTERN: %w", err)
	}

	return LiveFeedConfig{
		Enabled:   enabled,
		Sport:     strings.ToLower(strings.TrimSpace(getEnv("FEED_LIVE_SPORT", "football"))),
		Dir:       strings.TrimSpace(getEnv("FEED_LIVE_DIR", "/live")),
		Pattern:   pattern,
		BatchSize: batchSize,
		Interval:  interval,
		UTCOffset: strings.TrimSpace(getEnv("FEED_LIVE_UTC_OFFSET", "0")),
	}, nil
}

// ParseCompetitions parses "ENG1:2023|2024,ITA1:2024" into a registry sorted
// by competition id, seasons sorted and de-duplicated. Repeated competitions
// are merged.
func ParseCompetitions(raw string) ([]Competition, error) {
	byID := make(map[string]map[string]struct{})
	for _, item := range splitCSV(raw) {
		segments := strings.SplitN(item, ":", 2)
		if len(segments) != 2 {
			return nil, crerr.Newf("invalid competition item %q, expected competition:season|season", item)
		}
		id := strings.TrimSpace(segments[0])
		if id == "" {
			return nil, crerr.Newf("empty competition id in item %q", item)
		}

		seasons, ok := byID[id]
		if !ok {
			seasons = make(map[string]struct{})
			byID[id] = seasons
		}
		for _, season := range strings.Split(segments[1], "|") {
			season = strings.TrimSpace(season)
			if season == "" {
				continue
			}
			if strings.ContainsAny(season, "/ ") {
				return nil, crerr.Newf("invalid season %q for competition %q", season, id)
			}
			seasons[season] = struct{}{}
		}
		if len(seasons) == 0 {
			return nil, crerr.Newf("competition %q has no seasons", id)
		}
	}

	out := make([]Competition, 0, len(byID))
	for id, seasons := range byID {
		labels := make([]string, 0, len(seasons))
		for season := range seasons {
			labels = append(labels, season)
		}
		sort.Strings(labels)
		out = append(out, Competition{ID: id, Seasons: labels})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func parseBoolEnv(key, fallback string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(getEnv(key, fallback))) {
	case "1", "t", "true", "yes", "on":
		return true, nil
	case "0", "f", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("parse %s: invalid boolean %q", key, getEnv(key, fallback))
	}
}
