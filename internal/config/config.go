// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Twitter   TwitterConfig   `mapstructure:"twitter"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlerConfig governs fetch behavior shared by all strategies.
type CrawlerConfig struct {
	PerDomainMax        int     `mapstructure:"per_domain_max"`
	DefaultRequestDelay float64 `mapstructure:"default_request_delay"`
	SourcesDir          string  `mapstructure:"sources_dir"`
}

// HTTPConfig configures HTTP client retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffJitterMs  int `mapstructure:"backoff_jitter_ms"`
}

// BrowserConfig configures the headless rendering subsystem.
type BrowserConfig struct {
	MaxContexts       int     `mapstructure:"max_contexts"`
	WaitTimeoutMs     int     `mapstructure:"wait_timeout_ms"`
	DetailTimeoutMs   int     `mapstructure:"detail_timeout_ms"`
	ShutdownTimeoutMs int     `mapstructure:"shutdown_timeout_ms"`
	DomainQPS         float64 `mapstructure:"domain_qps"`
}

// StorageConfig sets the root of the data directory tree.
type StorageConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// PipelineConfig controls the daily analytical pipeline schedule.
type PipelineConfig struct {
	CronHour   int `mapstructure:"cron_hour"`
	CronMinute int `mapstructure:"cron_minute"`
}

// OracleConfig configures the optional text-analysis enrichment backend.
type OracleConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	Threshold int    `mapstructure:"threshold"`
}

// TwitterConfig holds credentials for the Twitter API parsers.
type TwitterConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// SchedulerConfig bounds concurrent crawl work.
type SchedulerConfig struct {
	MaxConcurrentCrawls int `mapstructure:"max_concurrent_crawls"`
	JitterMaxSeconds    int `mapstructure:"jitter_max_seconds"`
}

// Load builds a Config from disk/environment. A missing .env file is fine.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("DEANAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindLegacyEnv(v)

	if path != "" {
		v.SetConfigFile(path)
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
	v.SetDefault("server.port", 8000)
	v.SetDefault("crawler.per_domain_max", 2)
	v.SetDefault("crawler.default_request_delay", 1.0)
	v.SetDefault("crawler.sources_dir", "sources")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial_ms", 1000)
	v.SetDefault("http.backoff_jitter_ms", 1000)
	v.SetDefault("browser.max_contexts", 3)
	v.SetDefault("browser.wait_timeout_ms", 15000)
	v.SetDefault("browser.detail_timeout_ms", 10000)
	v.SetDefault("browser.shutdown_timeout_ms", 5000)
	v.SetDefault("browser.domain_qps", 1.0)
	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("pipeline.cron_hour", 7)
	v.SetDefault("pipeline.cron_minute", 30)
	v.SetDefault("oracle.enabled", false)
	v.SetDefault("oracle.model", "claude-sonnet-4-5")
	v.SetDefault("oracle.threshold", 40)
	v.SetDefault("logging.development", true)
	v.SetDefault("scheduler.max_concurrent_crawls", 5)
	v.SetDefault("scheduler.jitter_max_seconds", 300)
}

// bindLegacyEnv maps the bare operational variable names onto viper keys so
// deployments keep working without the DEANAGENT_ prefix.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("scheduler.max_concurrent_crawls", "MAX_CONCURRENT_CRAWLS")
	_ = v.BindEnv("crawler.per_domain_max", "MAX_CONCURRENT_PER_DOMAIN")
	_ = v.BindEnv("browser.max_contexts", "PLAYWRIGHT_MAX_CONTEXTS")
	_ = v.BindEnv("pipeline.cron_hour", "PIPELINE_CRON_HOUR")
	_ = v.BindEnv("pipeline.cron_minute", "PIPELINE_CRON_MINUTE")
	_ = v.BindEnv("oracle.enabled", "ENABLE_LLM_ENRICHMENT")
	_ = v.BindEnv("oracle.api_key", "ORACLE_API_KEY")
	_ = v.BindEnv("oracle.model", "ORACLE_MODEL")
	_ = v.BindEnv("twitter.api_key", "TWITTER_API_KEY")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scheduler.MaxConcurrentCrawls <= 0 {
		return fmt.Errorf("scheduler.max_concurrent_crawls must be > 0")
	}
	if c.Crawler.PerDomainMax <= 0 {
		return fmt.Errorf("crawler.per_domain_max must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Browser.MaxContexts <= 0 {
		return fmt.Errorf("browser.max_contexts must be > 0")
	}
	if c.Pipeline.CronHour < 0 || c.Pipeline.CronHour > 23 {
		return fmt.Errorf("pipeline.cron_hour must be in [0,23]")
	}
	if c.Pipeline.CronMinute < 0 || c.Pipeline.CronMinute > 59 {
		return fmt.Errorf("pipeline.cron_minute must be in [0,59]")
	}
	return nil
}

// HTTPTimeout converts the configured timeout into a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// OracleAvailable reports whether enrichment is both enabled and usable.
func (c Config) OracleAvailable() bool {
	return c.Oracle.Enabled && c.Oracle.APIKey != ""
}
