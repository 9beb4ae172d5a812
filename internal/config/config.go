package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jinzhu/configor"

	"github.com/yourname/paceman-leaderboard-bot/internal/timeutil"
)

// Config is read from a YAML file and overridden by environment variables.
type Config struct {
	Env         string `yaml:"env" env:"APP_ENV" default:"prod"`
	LogLevel    string `yaml:"log_level" env:"LOG_LEVEL" default:"info"`
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL" default:"./data/data.db"`
	Timezone    string `yaml:"timezone" env:"TIMEZONE" default:"Asia/Shanghai"`

	Bot struct {
		Token      string `yaml:"token" env:"BOT_TOKEN"`
		OperatorID int64  `yaml:"operator_id" env:"OPERATOR_ID"`
		Debug      bool   `yaml:"debug" env:"BOT_DEBUG"`
	}
	Stats struct {
		SessionURL     string `yaml:"session_url" env:"STATS_SESSION_URL"`
		RankedURL      string `yaml:"ranked_url" env:"STATS_RANKED_URL"`
		TimeoutSeconds int    `yaml:"timeout_seconds" env:"STATS_TIMEOUT_SECONDS" default:"10"`
		Concurrency    int    `yaml:"concurrency" env:"STATS_CONCURRENCY" default:"10"`
		RatePerSec     int    `yaml:"rate_per_sec" env:"STATS_RATE_PER_SEC" default:"5"`
	}
	Leaderboard struct {
		TopN int `yaml:"top_n" env:"LEADERBOARD_TOP_N" default:"3"`
	}
	Scheduler struct {
		StopGraceSeconds int    `yaml:"stop_grace_seconds" env:"SCHEDULER_STOP_GRACE_SECONDS" default:"5"`
		ReconcileAt      string `yaml:"reconcile_at" env:"SCHEDULER_RECONCILE_AT" default:"00:05"`
	}
}

func Load(path string) (Config, error) {
	var cfg Config
	if err := configor.Load(&cfg, path); err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	if cfg.Bot.Token == "" {
		return cfg, errors.New("BOT_TOKEN is not set")
	}
	if _, err := cfg.Location(); err != nil {
		return cfg, err
	}
	if _, _, err := cfg.ReconcileTime(); err != nil {
		return cfg, err
	}
	if cfg.Leaderboard.TopN < 1 {
		return cfg, fmt.Errorf("leaderboard top_n must be positive, got %d", cfg.Leaderboard.TopN)
	}
	dir := filepath.Dir(cfg.DatabaseURL)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return cfg, fmt.Errorf("create data dir: %w", err)
		}
	}
	return cfg, nil
}

// Location is the zone schedules are interpreted in.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c Config) ReconcileTime() (hour, minute int, err error) {
	hour, minute, ok := timeutil.ParseHHMM(c.Scheduler.ReconcileAt)
	if !ok {
		return 0, 0, fmt.Errorf("reconcile_at %q is not HH:MM", c.Scheduler.ReconcileAt)
	}
	return hour, minute, nil
}

func (c Config) StatsTimeout() time.Duration {
	return time.Duration(c.Stats.TimeoutSeconds) * time.Second
}

func (c Config) StopGrace() time.Duration {
	return time.Duration(c.Scheduler.StopGraceSeconds) * time.Second
}
