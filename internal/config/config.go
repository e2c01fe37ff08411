package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/riskibarqy/sports-feed-sync/internal/platform/logging"
)

// Config stores runtime configuration for the worker.
type Config struct {
	AppEnv                     string
	ServiceName                string
	ServiceVersion             string
	DBURL                      string
	DBDisablePreparedBinary    bool
	CacheEnabled               bool
	CacheTTL                   time.Duration
	PprofEnabled               bool
	PprofAddr                  string
	UptraceEnabled             bool
	UptraceDSN                 string
	UptraceLogsEnabled         bool
	PyroscopeEnabled           bool
	PyroscopeServerAddress     string
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string
	PyroscopeUploadRate        time.Duration
	FTPAddr                    string
	FTPUser                    string
	FTPPassword                string
	FTPTimeout                 time.Duration
	FTPCircuitEnabled          bool
	FTPCircuitFailureCount     int
	FTPCircuitOpenTimeout      time.Duration
	FTPCircuitHalfOpenMaxReq   int
	FeedFileTimeout            time.Duration
	FeedFamilies               []FeedFamilyConfig
	Live                       LiveFeedConfig
	JobLifecycleInterval       time.Duration
	JobTimePropagationInterval time.Duration
	JobPreEventLead            time.Duration
	LogLevel                   logging.Level
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	uptraceEnabled, err := strconv.ParseBool(getEnv("UPTRACE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}
	uptraceDSN := strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if uptraceDSN == "" {
		uptraceDSN = parseUptraceDSNFromOTLPHeaders(getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""))
	}
	if uptraceEnabled && uptraceDSN == "" {
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}
	uptraceLogsEnabled, err := strconv.ParseBool(getEnv("UPTRACE_LOGS_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UPTRACE_LOGS_ENABLED: %w", err)
	}

	pprofEnabled, err := strconv.ParseBool(getEnv("PPROF_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PPROF_ENABLED: %w", err)
	}
	pprofAddr := strings.TrimSpace(getEnv("PPROF_ADDR", ":6060"))
	if pprofEnabled && pprofAddr == "" {
		return Config{}, fmt.Errorf("PPROF_ADDR is required when PPROF_ENABLED=true")
	}

	pyroscopeEnabled, err := strconv.ParseBool(getEnv("PYROSCOPE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_ENABLED: %w", err)
	}
	pyroscopeServerAddress := strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if pyroscopeEnabled && pyroscopeServerAddress == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	pyroscopeUploadRate, err := getEnvAsDuration("PYROSCOPE_UPLOAD_RATE", "15s")
	if err != nil {
		return Config{}, err
	}

	dbDisablePreparedBinary, err := strconv.ParseBool(getEnv("DB_DISABLE_PREPARED_BINARY_RESULT", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse DB_DISABLE_PREPARED_BINARY_RESULT: %w", err)
	}
	cacheEnabled, err := strconv.ParseBool(getEnv("CACHE_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse CACHE_ENABLED: %w", err)
	}
	cacheTTL, err := getEnvAsDuration("CACHE_TTL", "60s")
	if err != nil {
		return Config{}, err
	}

	ftpTimeout, err := getEnvAsDuration("FEED_FTP_TIMEOUT", "30s")
	if err != nil {
		return Config{}, err
	}
	ftpCircuitEnabled, err := strconv.ParseBool(getEnv("FEED_FTP_CIRCUIT_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse FEED_FTP_CIRCUIT_ENABLED: %w", err)
	}
	ftpCircuitFailureCount, err := getEnvAsInt("FEED_FTP_CIRCUIT_FAILURE_COUNT", 3)
	if err != nil {
		return Config{}, fmt.Errorf("parse FEED_FTP_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	if ftpCircuitFailureCount < 1 {
		return Config{}, fmt.Errorf("FEED_FTP_CIRCUIT_FAILURE_COUNT must be >= 1")
	}
	ftpCircuitOpenTimeout, err := getEnvAsDuration("FEED_FTP_CIRCUIT_OPEN_TIMEOUT", "30s")
	if err != nil {
		return Config{}, err
	}
	ftpCircuitHalfOpenMaxReq, err := getEnvAsInt("FEED_FTP_CIRCUIT_HALF_OPEN_MAX_REQ", 1)
	if err != nil {
		return Config{}, fmt.Errorf("parse FEED_FTP_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}
	if ftpCircuitHalfOpenMaxReq < 1 {
		return Config{}, fmt.Errorf("FEED_FTP_CIRCUIT_HALF_OPEN_MAX_REQ must be >= 1")
	}
	feedFileTimeout, err := getEnvAsDuration("FEED_FILE_TIMEOUT", "2m")
	if err != nil {
		return Config{}, err
	}

	families, err := loadFeedFamilies()
	if err != nil {
		return Config{}, err
	}
	live, err := loadLiveFeed()
	if err != nil {
		return Config{}, err
	}
	ftpAddr := strings.TrimSpace(getEnv("FEED_FTP_ADDR", ""))
	if ftpAddr == "" && (len(families) > 0 || live.Enabled) {
		return Config{}, fmt.Errorf("FEED_FTP_ADDR is required when feed families or the live feed are configured")
	}

	jobLifecycleInterval, err := getEnvAsDuration("JOB_LIFECYCLE_INTERVAL", "5m")
	if err != nil {
		return Config{}, err
	}
	jobTimePropagationInterval, err := getEnvAsDuration("JOB_TIME_PROPAGATION_INTERVAL", "15m")
	if err != nil {
		return Config{}, err
	}
	jobPreEventLead, err := time.ParseDuration(getEnv("JOB_PRE_EVENT_LEAD", "0s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse JOB_PRE_EVENT_LEAD: %w", err)
	}
	if jobPreEventLead < 0 {
		return Config{}, fmt.Errorf("JOB_PRE_EVENT_LEAD must be >= 0")
	}

	cfg := Config{
		AppEnv:                     appEnv,
		ServiceName:                getEnv("APP_SERVICE_NAME", "sports-feed-sync"),
		ServiceVersion:             getEnv("APP_SERVICE_VERSION", "dev"),
		DBURL:                      strings.TrimSpace(getEnv("DB_URL", "")),
		DBDisablePreparedBinary:    dbDisablePreparedBinary,
		CacheEnabled:               cacheEnabled,
		CacheTTL:                   cacheTTL,
		PprofEnabled:               pprofEnabled,
		PprofAddr:                  pprofAddr,
		UptraceEnabled:             uptraceEnabled,
		UptraceDSN:                 uptraceDSN,
		UptraceLogsEnabled:         uptraceLogsEnabled,
		PyroscopeEnabled:           pyroscopeEnabled,
		PyroscopeServerAddress:     pyroscopeServerAddress,
		PyroscopeAuthToken:         strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", "")),
		PyroscopeBasicAuthUser:     strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", "")),
		PyroscopeBasicAuthPassword: strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", "")),
		PyroscopeUploadRate:        pyroscopeUploadRate,
		FTPAddr:                    ftpAddr,
		FTPUser:                    getEnv("FEED_FTP_USER", "anonymous"),
		FTPPassword:                getEnv("FEED_FTP_PASSWORD", ""),
		FTPTimeout:                 ftpTimeout,
		FTPCircuitEnabled:          ftpCircuitEnabled,
		FTPCircuitFailureCount:     ftpCircuitFailureCount,
		FTPCircuitOpenTimeout:      ftpCircuitOpenTimeout,
		FTPCircuitHalfOpenMaxReq:   ftpCircuitHalfOpenMaxReq,
		FeedFileTimeout:            feedFileTimeout,
		FeedFamilies:               families,
		Live:                       live,
		JobLifecycleInterval:       jobLifecycleInterval,
		JobTimePropagationInterval: jobTimePropagationInterval,
		JobPreEventLead:            jobPreEventLead,
		LogLevel:                   logging.ParseLevel(getEnv("APP_LOG_LEVEL", "info")),
	}
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))
	if cfg.PyroscopeEnabled && cfg.PyroscopeAppName == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_APP_NAME cannot be empty when PYROSCOPE_ENABLED=true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

// getEnvAsDuration parses a strictly positive duration.
func getEnvAsDuration(key, fallback string) (time.Duration, error) {
	value, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return value, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}

func parseUptraceDSNFromOTLPHeaders(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	items := strings.Split(raw, ",")
	for _, item := range items {
		parts := strings.SplitN(strings.TrimSpace(item), "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), "uptrace-dsn") {
			value := strings.TrimSpace(parts[1])
			return strings.Trim(value, "\"'")
		}
	}

	return ""
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}
