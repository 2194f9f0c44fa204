package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig           `yaml:"store" mapstructure:"store"`
	Keywords   KeywordsConfig        `yaml:"keywords" mapstructure:"keywords"`
	Sources    SourcesConfig         `yaml:"sources" mapstructure:"sources"`
	Modes      map[string]ModeConfig `yaml:"modes" mapstructure:"modes"`
	Retry      RetryConfig           `yaml:"retry" mapstructure:"retry"`
	Run        RunConfig             `yaml:"run" mapstructure:"run"`
	Server     ServerConfig          `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig      `yaml:"monitoring" mapstructure:"monitoring"`
	Export     ExportConfig          `yaml:"export" mapstructure:"export"`
	Log        LogConfig             `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// KeywordsConfig locates the tracked keyword list.
type KeywordsConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// SourcesConfig holds per-source connector settings.
type SourcesConfig struct {
	YouTube   YouTubeConfig   `yaml:"youtube" mapstructure:"youtube"`
	Discourse DiscourseConfig `yaml:"discourse" mapstructure:"discourse"`
	Trends    TrendsConfig    `yaml:"trends" mapstructure:"trends"`
}

// RateLimitConfig bounds outbound request rate for one source.
type RateLimitConfig struct {
	MaxRequests int `yaml:"max_requests" mapstructure:"max_requests"`
	WindowSecs  int `yaml:"window_secs" mapstructure:"window_secs"`
}

// Window returns the configured window as a duration.
func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSecs) * time.Second
}

// YouTubeConfig configures the video platform connector.
type YouTubeConfig struct {
	Enabled   bool            `yaml:"enabled" mapstructure:"enabled"`
	APIKey    string          `yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string          `yaml:"base_url" mapstructure:"base_url"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// DiscourseConfig configures the forum connector.
type DiscourseConfig struct {
	Enabled   bool            `yaml:"enabled" mapstructure:"enabled"`
	BaseURL   string          `yaml:"base_url" mapstructure:"base_url"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// TrendsConfig configures the search-trends/ads connector.
type TrendsConfig struct {
	Enabled   bool            `yaml:"enabled" mapstructure:"enabled"`
	APIKey    string          `yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string          `yaml:"base_url" mapstructure:"base_url"`
	Countries []string        `yaml:"countries" mapstructure:"countries"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ModeConfig holds the per-mode run parameters. MaxKeywords of 0 means the
// full keyword list.
type ModeConfig struct {
	MaxKeywords     int `yaml:"max_keywords" mapstructure:"max_keywords"`
	PagesPerKeyword int `yaml:"pages_per_keyword" mapstructure:"pages_per_keyword"`
}

// RetryConfig configures transient-failure retry behavior.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMS int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffSecs   int `yaml:"max_backoff_secs" mapstructure:"max_backoff_secs"`
}

// InitialBackoff returns the base retry delay as a duration.
func (c RetryConfig) InitialBackoff() time.Duration {
	return time.Duration(c.InitialBackoffMS) * time.Millisecond
}

// MaxBackoff returns the retry delay cap as a duration.
func (c RetryConfig) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffSecs) * time.Second
}

// RunConfig bounds a single orchestrator invocation.
type RunConfig struct {
	DeadlineSecs int `yaml:"deadline_secs" mapstructure:"deadline_secs"`
}

// Deadline returns the per-run wall-clock budget; zero means no deadline.
func (c RunConfig) Deadline() time.Duration {
	return time.Duration(c.DeadlineSecs) * time.Second
}

// ServerConfig configures the read-only query API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitoringConfig configures health checks and alerting.
type MonitoringConfig struct {
	StaleRunHours        int     `yaml:"stale_run_hours" mapstructure:"stale_run_hours"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// ExportConfig configures spreadsheet export.
type ExportConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("POPVISION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "popvision.db")
	v.SetDefault("keywords.file", "keywords.yaml")
	v.SetDefault("sources.youtube.enabled", true)
	v.SetDefault("sources.youtube.base_url", "https://www.googleapis.com/youtube/v3")
	v.SetDefault("sources.youtube.rate_limit.max_requests", 30)
	v.SetDefault("sources.youtube.rate_limit.window_secs", 60)
	v.SetDefault("sources.discourse.enabled", true)
	v.SetDefault("sources.discourse.base_url", "https://community.n8n.io")
	v.SetDefault("sources.discourse.rate_limit.max_requests", 60)
	v.SetDefault("sources.discourse.rate_limit.window_secs", 60)
	v.SetDefault("sources.trends.enabled", true)
	v.SetDefault("sources.trends.base_url", "https://trends.googleapis.com/trends/api")
	v.SetDefault("sources.trends.countries", []string{"US", "IN"})
	v.SetDefault("sources.trends.rate_limit.max_requests", 60)
	v.SetDefault("sources.trends.rate_limit.window_secs", 60)
	v.SetDefault("modes.full.max_keywords", 0)
	v.SetDefault("modes.full.pages_per_keyword", 5)
	v.SetDefault("modes.test.max_keywords", 3)
	v.SetDefault("modes.test.pages_per_keyword", 2)
	v.SetDefault("modes.deep.max_keywords", 0)
	v.SetDefault("modes.deep.pages_per_keyword", 10)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_secs", 30)
	v.SetDefault("run.deadline_secs", 3600)
	v.SetDefault("server.port", 8080)
	v.SetDefault("monitoring.stale_run_hours", 25)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("export.path", "workflows.xlsx")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Mode returns the run parameters for a mode name, falling back to full-mode
// defaults when the mode has no explicit section.
func (c *Config) Mode(name string) ModeConfig {
	if mc, ok := c.Modes[name]; ok {
		return mc
	}
	return ModeConfig{PagesPerKeyword: 5}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
