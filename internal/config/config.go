package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/riskibarqy/league-sync/internal/domain/source"
	"github.com/riskibarqy/league-sync/internal/fetch"
	"github.com/riskibarqy/league-sync/internal/infrastructure/provider/etf2l"
	"github.com/riskibarqy/league-sync/internal/infrastructure/provider/rgl"
	"github.com/riskibarqy/league-sync/internal/platform/logging"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config stores runtime configuration for the sync tool.
type Config struct {
	AppEnv                  string `validate:"oneof=dev stage prod"`
	ServiceName             string `validate:"required"`
	ServiceVersion          string
	LogLevel                logging.Level
	StoreDriver             string `validate:"oneof=postgres memory"`
	DBURL                   string `validate:"required_if=StoreDriver postgres"`
	DBDisablePreparedBinary bool
	DBMaxOpenConns          int `validate:"gte=1"`
	RGLBaseURL              string `validate:"url"`
	ETF2LBaseURL            string `validate:"url"`
	// Profiles holds the fetch profile of every site source with a provider.
	Profiles                   map[source.Source]fetch.Profile `validate:"required,dive"`
	FetchTimeout               time.Duration                   `validate:"gt=0"`
	FetchPermanentStatuses     []int                           `validate:"dive,gte=100,lte=599"`
	ListPageSize               int                             `validate:"gte=1"`
	ListPagesPerRound          int                             `validate:"gte=1"`
	DetailBatch                int                             `validate:"gte=1"`
	DetailMaxRounds            int                             `validate:"gte=1"`
	CheckpointDir              string
	UptraceEnabled             bool
	UptraceDSN                 string `validate:"required_if=UptraceEnabled true"`
	UptraceLogsEnabled         bool
	PyroscopeEnabled           bool
	PyroscopeServerAddress     string `validate:"required_if=PyroscopeEnabled true"`
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string
	PyroscopeUploadRate        time.Duration `validate:"gt=0"`
}

// defaultProfiles are the fastest stagger settings measured by calibration.
var defaultProfiles = map[source.Source]fetch.Profile{
	source.RGL:   {BatchSize: 9, DelayStep: 200 * time.Millisecond, DelaySize: 1},
	source.ETF2L: {BatchSize: 9, DelayStep: 200 * time.Millisecond, DelaySize: 5, EmptyRoundBackoff: 10 * time.Second},
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}
	logLevel, err := logging.ParseLevel(getEnv("APP_LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_LOG_LEVEL: %w", err)
	}

	dbDisablePreparedBinary, err := strconv.ParseBool(getEnv("DB_DISABLE_PREPARED_BINARY_RESULT", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse DB_DISABLE_PREPARED_BINARY_RESULT: %w", err)
	}
	dbMaxOpenConns, err := getEnvAsInt("DB_MAX_OPEN_CONNS", 4)
	if err != nil {
		return Config{}, fmt.Errorf("parse DB_MAX_OPEN_CONNS: %w", err)
	}

	profiles := make(map[source.Source]fetch.Profile, len(defaultProfiles))
	for src, fallback := range defaultProfiles {
		profile, err := loadProfile(src.String(), fallback)
		if err != nil {
			return Config{}, err
		}
		profiles[src] = profile
	}

	fetchTimeout, err := time.ParseDuration(getEnv("FETCH_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse FETCH_TIMEOUT: %w", err)
	}
	permanentStatuses, err := parseStatuses(getEnv("FETCH_PERMANENT_STATUSES", "500"))
	if err != nil {
		return Config{}, fmt.Errorf("parse FETCH_PERMANENT_STATUSES: %w", err)
	}

	listPageSize, err := getEnvAsInt("SYNC_LIST_PAGE_SIZE", 1000)
	if err != nil {
		return Config{}, fmt.Errorf("parse SYNC_LIST_PAGE_SIZE: %w", err)
	}
	listPagesPerRound, err := getEnvAsInt("SYNC_LIST_PAGES_PER_ROUND", 1)
	if err != nil {
		return Config{}, fmt.Errorf("parse SYNC_LIST_PAGES_PER_ROUND: %w", err)
	}
	detailBatch, err := getEnvAsInt("SYNC_DETAIL_BATCH", 200)
	if err != nil {
		return Config{}, fmt.Errorf("parse SYNC_DETAIL_BATCH: %w", err)
	}
	detailMaxRounds, err := getEnvAsInt("SYNC_DETAIL_MAX_ROUNDS", 50)
	if err != nil {
		return Config{}, fmt.Errorf("parse SYNC_DETAIL_MAX_ROUNDS: %w", err)
	}

	uptraceEnabled, err := strconv.ParseBool(getEnv("UPTRACE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}
	uptraceDSN := strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if uptraceDSN == "" {
		uptraceDSN = parseUptraceDSNFromOTLPHeaders(getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""))
	}
	uptraceLogsEnabled, err := strconv.ParseBool(getEnv("UPTRACE_LOGS_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UPTRACE_LOGS_ENABLED: %w", err)
	}

	pyroscopeEnabled, err := strconv.ParseBool(getEnv("PYROSCOPE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_ENABLED: %w", err)
	}
	pyroscopeUploadRate, err := time.ParseDuration(getEnv("PYROSCOPE_UPLOAD_RATE", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_UPLOAD_RATE: %w", err)
	}

	cfg := Config{
		AppEnv:                     appEnv,
		ServiceName:                strings.TrimSpace(getEnv("APP_SERVICE_NAME", "league-sync")),
		ServiceVersion:             strings.TrimSpace(getEnv("APP_SERVICE_VERSION", "dev")),
		LogLevel:                   logLevel,
		StoreDriver:                strings.ToLower(strings.TrimSpace(getEnv("STORE_DRIVER", StorePostgres))),
		DBURL:                      strings.TrimSpace(getEnv("DB_URL", "")),
		DBDisablePreparedBinary:    dbDisablePreparedBinary,
		DBMaxOpenConns:             dbMaxOpenConns,
		RGLBaseURL:                 strings.TrimRight(getEnv("RGL_BASE_URL", rgl.DefaultBaseURL), "/"),
		ETF2LBaseURL:               strings.TrimRight(getEnv("ETF2L_BASE_URL", etf2l.DefaultBaseURL), "/"),
		Profiles:                   profiles,
		FetchTimeout:               fetchTimeout,
		FetchPermanentStatuses:     permanentStatuses,
		ListPageSize:               listPageSize,
		ListPagesPerRound:          listPagesPerRound,
		DetailBatch:                detailBatch,
		DetailMaxRounds:            detailMaxRounds,
		CheckpointDir:              strings.TrimSpace(getEnv("CHECKPOINT_DIR", "")),
		UptraceEnabled:             uptraceEnabled,
		UptraceDSN:                 uptraceDSN,
		UptraceLogsEnabled:         uptraceLogsEnabled,
		PyroscopeEnabled:           pyroscopeEnabled,
		PyroscopeServerAddress:     strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", "")),
		PyroscopeAppName:           strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", "league-sync")),
		PyroscopeAuthToken:         strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", "")),
		PyroscopeBasicAuthUser:     strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", "")),
		PyroscopeBasicAuthPassword: strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", "")),
		PyroscopeUploadRate:        pyroscopeUploadRate,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Profile returns the fetch profile of src. Sources without a provider get the RGL profile.
func (c Config) Profile(src source.Source) fetch.Profile {
	if profile, ok := c.Profiles[src]; ok {
		return profile
	}
	return defaultProfiles[source.RGL]
}

// loadProfile reads <PREFIX>_BATCH_SIZE, <PREFIX>_DELAY_STEP, <PREFIX>_DELAY_SIZE and
// <PREFIX>_EMPTY_ROUND_BACKOFF over fallback.
func loadProfile(prefix string, fallback fetch.Profile) (fetch.Profile, error) {
	out := fallback
	var err error
	if out.BatchSize, err = getEnvAsInt(prefix+"_BATCH_SIZE", fallback.BatchSize); err != nil {
		return fetch.Profile{}, fmt.Errorf("parse %s_BATCH_SIZE: %w", prefix, err)
	}
	if out.DelayStep, err = getEnvAsDuration(prefix+"_DELAY_STEP", fallback.DelayStep); err != nil {
		return fetch.Profile{}, fmt.Errorf("parse %s_DELAY_STEP: %w", prefix, err)
	}
	if out.DelaySize, err = getEnvAsInt(prefix+"_DELAY_SIZE", fallback.DelaySize); err != nil {
		return fetch.Profile{}, fmt.Errorf("parse %s_DELAY_SIZE: %w", prefix, err)
	}
	if out.EmptyRoundBackoff, err = getEnvAsDuration(prefix+"_EMPTY_ROUND_BACKOFF", fallback.EmptyRoundBackoff); err != nil {
		return fetch.Profile{}, fmt.Errorf("parse %s_EMPTY_ROUND_BACKOFF: %w", prefix, err)
	}
	return out, nil
}

// parseStatuses reads a CSV of HTTP statuses. "none" yields an empty, non-nil list.
func parseStatuses(raw string) ([]int, error) {
	if strings.EqualFold(strings.TrimSpace(raw), "none") {
		return []int{}, nil
	}
	items := splitCSV(raw)
	out := make([]int, 0, len(items))
	for _, item := range items {
		status, err := strconv.Atoi(item)
		if err != nil {
			return nil, fmt.Errorf("invalid status %q: %w", item, err)
		}
		out = append(out, status)
	}
	return out, nil
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

	return strconv.Atoi(value)
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	return time.ParseDuration(value)
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
	for _, item := range splitCSV(raw) {
		key, value, ok := strings.Cut(item, "=")
		if ok && strings.EqualFold(strings.TrimSpace(key), "uptrace-dsn") {
			return strings.Trim(strings.TrimSpace(value), "\"'")
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
