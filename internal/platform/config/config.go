package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	AppURL      string `env:"APP_URL" default:"http://localhost:8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	SessionSecret string        `env:"SESSION_SECRET"`
	SessionMaxAge time.Duration `env:"SESSION_MAX_AGE" default:"24h"`
	TokenTTL      time.Duration `env:"TOKEN_TTL" default:"24h"`
	AdminUserIDs  string        `env:"ADMIN_USER_IDS"`

	LoginMaxAttempts int           `env:"LOGIN_MAX_ATTEMPTS" default:"3"`
	LoginWindow      time.Duration `env:"LOGIN_WINDOW" default:"50s"`

	ReactionRatePerSecond float64 `env:"REACTION_RATE_PER_SECOND" default:"5"`
	ReactionBurst         int     `env:"REACTION_BURST" default:"10"`

	TornAPIBaseURL     string        `env:"TORN_API_BASE_URL" default:"https://api.torn.com"`
	TornRequestTimeout time.Duration `env:"TORN_REQUEST_TIMEOUT" default:"10s"`

	SyncSchedule string        `env:"SYNC_SCHEDULE"`
	SyncAPIKey   string        `env:"SYNC_API_KEY"`
	SyncLockTTL  time.Duration `env:"SYNC_LOCK_TTL" default:"10m"`

	CatalogCacheTTL time.Duration `env:"CATALOG_CACHE_TTL" default:"5m"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// AdminIDs parses ADMIN_USER_IDS into the set of permitted Torn profile ids.
func (c *Config) AdminIDs() []int64 {
	ids, _ := parseIDs(c.AdminUserIDs)
	return ids
}

// ScheduledSyncEnabled reports whether the background sync should run.
func (c *Config) ScheduledSyncEnabled() bool {
	return c.SyncSchedule != "" && c.SyncAPIKey != ""
}

func validate(cfg *Config) error {
	required := map[string]string{
		"DATABASE_URL":   cfg.DatabaseURL,
		"REDIS_URL":      cfg.RedisURL,
		"SESSION_SECRET": cfg.SessionSecret,
		"ADMIN_USER_IDS": cfg.AdminUserIDs,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if len(cfg.SessionSecret) < 32 {
		return errors.New("SESSION_SECRET must be at least 32 characters")
	}

	if _, err := parseIDs(cfg.AdminUserIDs); err != nil {
		return fmt.Errorf("ADMIN_USER_IDS is invalid: %w", err)
	}

	if cfg.LoginMaxAttempts < 1 {
		return errors.New("LOGIN_MAX_ATTEMPTS must be at least 1")
	}

	if cfg.SyncSchedule != "" && !gronx.IsValid(cfg.SyncSchedule) {
		return fmt.Errorf("SYNC_SCHEDULE is not a valid cron expression: %q", cfg.SyncSchedule)
	}

	return nil
}

func parseIDs(raw string) ([]int64, error) {
	var ids []int64
	for part := range strings.SplitSeq(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a numeric id", part)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, errors.New("no ids given")
	}
	return ids, nil
}
