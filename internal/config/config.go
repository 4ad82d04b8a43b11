// Package config loads and validates jdkdb configuration via Viper.
package config

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. JDKDB_SCRAPER_THREADS.
const EnvPrefix = "JDKDB"

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Paths     PathsConfig     `mapstructure:"paths"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Status    StatusConfig    `mapstructure:"status"`
	Heartbeat HeartbeatConfig `mapstructure:"heartbeat"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	GCS       GCSConfig       `mapstructure:"gcs"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
}

// PathsConfig locates the metadata and checksum trees.
type PathsConfig struct {
	MetadataDir string `mapstructure:"metadata_dir"`
	ChecksumDir string `mapstructure:"checksum_dir"`
}

// ScraperConfig governs the update run.
type ScraperConfig struct {
	Threads         int  `mapstructure:"threads"`
	FromStart       bool `mapstructure:"from_start"`
	MaxFailureCount int  `mapstructure:"max_failure_count"`
	LimitProgress   int  `mapstructure:"limit_progress"`
	SkipEADays      int  `mapstructure:"skip_ea_days"`
}

// HTTPConfig configures listing and download clients.
type HTTPConfig struct {
	ConnectTimeoutSeconds int    `mapstructure:"connect_timeout_seconds"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`
	UserAgent             string `mapstructure:"user_agent"`
	GitHubToken           string `mapstructure:"github_token"`
	GitHubAPIBase         string `mapstructure:"github_api_base"`
	// RequestsPerSecond paces listing requests per host. Zero disables it.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// StatusConfig controls the optional status server. An empty Addr disables it.
type StatusConfig struct {
	Addr   string `mapstructure:"addr"`
	APIKey string `mapstructure:"api_key"`
}

// HeartbeatConfig sets how often the heartbeat line is logged.
type HeartbeatConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
}

// PostgresConfig enables the Postgres record mirror and run history when DSN
// is set.
type PostgresConfig struct {
	DSN       string `mapstructure:"dsn"`
	Table     string `mapstructure:"table"`
	RunsTable string `mapstructure:"runs_table"`
}

// GCSConfig enables the GCS object mirror when Bucket is set.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// PubSubConfig enables record notifications when both fields are set.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Options tells Load where to look.
type Options struct {
	// File is an optional YAML/TOML/JSON config file.
	File string
	// EnvFile is an optional .env file loaded before the environment is read.
	// A missing file is not an error.
	EnvFile string
}

// New returns a Viper instance with defaults and environment binding. Callers
// bind command-line flags on it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load builds a Config from the optional files, the environment and v.
func Load(v *viper.Viper, opts Options) (Config, error) {
	if v == nil {
		v = New()
	}
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("load env file: %w", err)
		}
	}
	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("paths.metadata_dir", "docs/metadata")
	v.SetDefault("paths.checksum_dir", "docs/checksums")
	v.SetDefault("scraper.threads", 0)
	v.SetDefault("scraper.from_start", false)
	v.SetDefault("scraper.max_failure_count", 10)
	v.SetDefault("scraper.limit_progress", -1)
	v.SetDefault("scraper.skip_ea_days", 0)
	v.SetDefault("http.connect_timeout_seconds", 30)
	v.SetDefault("http.request_timeout_seconds", 60)
	v.SetDefault("http.user_agent", "jdkdb-crawler/1.0 (+https://github.com/JakeFAU/jdkdb-crawler)")
	v.SetDefault("http.github_token", "")
	v.SetDefault("http.github_api_base", "https://api.github.com")
	v.SetDefault("http.requests_per_second", 0)
	v.SetDefault("http.burst", 1)
	v.SetDefault("logging.development", true)
	v.SetDefault("status.addr", "")
	v.SetDefault("status.api_key", "")
	v.SetDefault("heartbeat.interval_seconds", 30)
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.table", "jdk_artifacts")
	v.SetDefault("postgres.runs_table", "jdk_scraper_runs")
	v.SetDefault("gcs.bucket", "")
	v.SetDefault("gcs.prefix", "")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Paths.MetadataDir) == "" {
		return fmt.Errorf("paths.metadata_dir is required")
	}
	if strings.TrimSpace(c.Paths.ChecksumDir) == "" {
		return fmt.Errorf("paths.checksum_dir is required")
	}
	if c.Scraper.Threads < 0 {
		return fmt.Errorf("scraper.threads must be >= 0")
	}
	if c.Scraper.SkipEADays < 0 {
		return fmt.Errorf("scraper.skip_ea_days must be >= 0")
	}
	if c.HTTP.ConnectTimeoutSeconds <= 0 {
		return fmt.Errorf("http.connect_timeout_seconds must be > 0")
	}
	if c.HTTP.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("http.request_timeout_seconds must be > 0")
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return fmt.Errorf("http.requests_per_second must be >= 0")
	}
	if c.Heartbeat.IntervalSeconds < 0 {
		return fmt.Errorf("heartbeat.interval_seconds must be >= 0")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.Topic == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic must be set together")
	}
	return nil
}

// ConnectTimeout returns the HTTP connect timeout.
func (c Config) ConnectTimeout() time.Duration {
	return time.Duration(c.HTTP.ConnectTimeoutSeconds) * time.Second
}

// RequestTimeout bounds one listing request.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.RequestTimeoutSeconds) * time.Second
}

// SkipEAOlderThan converts scraper.skip_ea_days into a window. Zero disables it.
func (c Config) SkipEAOlderThan() time.Duration {
	return time.Duration(c.Scraper.SkipEADays) * 24 * time.Hour
}

// HeartbeatInterval returns the heartbeat period. Zero disables it.
func (c Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Heartbeat.IntervalSeconds) * time.Second
}

// TokenSource looks up a GitHub token outside the configuration.
type TokenSource interface {
	Getenv(key string) string
	GHAuthToken(ctx context.Context) (string, error)
}

// SystemTokens reads GITHUB_TOKEN and shells out to the gh CLI.
type SystemTokens struct{}

// Getenv implements TokenSource.
func (SystemTokens) Getenv(key string) string { return os.Getenv(key) }

// GHAuthToken runs `gh auth token`.
func (SystemTokens) GHAuthToken(ctx context.Context) (string, error) {
	if _, err := exec.LookPath("gh"); err != nil {
		return "", fmt.Errorf("gh not installed: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, "gh", "auth", "token").Output()
	if err != nil {
		return "", fmt.Errorf("gh auth token: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// GitHubToken resolves the API token from http.github_token, then
// GITHUB_TOKEN, then `gh auth token`. It returns "" when none is available.
func (c Config) GitHubToken(ctx context.Context, src TokenSource) string {
	if tok := strings.TrimSpace(c.HTTP.GitHubToken); tok != "" {
		return tok
	}
	if src == nil {
		src = SystemTokens{}
	}
	if tok := strings.TrimSpace(src.Getenv("GITHUB_TOKEN")); tok != "" {
		return tok
	}
	tok, err := src.GHAuthToken(ctx)
	if err != nil {
		return ""
	}
	return tok
}
