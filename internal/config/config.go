// Package config loads and validates crawl engine configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Proxy     ProxyConfig     `mapstructure:"proxy"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls the HTTP API surface.
type ServerConfig struct {
	Port           int    `mapstructure:"port"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// CrawlerConfig governs partition crawling behavior.
type CrawlerConfig struct {
	BaseURL            string   `mapstructure:"base_url"`
	UserAgent          string   `mapstructure:"user_agent"`
	Workers            int      `mapstructure:"workers"`
	Sequential         bool     `mapstructure:"sequential"`
	Profile            string   `mapstructure:"profile"`
	MaxPages           int      `mapstructure:"max_pages"`
	EmptyPageThreshold int      `mapstructure:"empty_page_threshold"`
	MinDelayMs         int      `mapstructure:"min_delay_ms"`
	MaxDelayMs         int      `mapstructure:"max_delay_ms"`
	TimeoutSeconds     int      `mapstructure:"timeout_seconds"`
	MinContentLength   int      `mapstructure:"min_content_length"`
	CountTolerance     float64  `mapstructure:"count_tolerance"`
	Categories         []string `mapstructure:"categories"`
}

// HTTPConfig configures request retry behavior.
type HTTPConfig struct {
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
}

// ProxyConfig lists outbound proxies and the endpoint used to verify them.
type ProxyConfig struct {
	URLs     []string `mapstructure:"urls"`
	ProbeURL string   `mapstructure:"probe_url"`
}

// StorageConfig selects and configures record persistence.
type StorageConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// PublisherConfig selects and configures the downstream notifier.
type PublisherConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// ArchiveConfig selects and configures the raw page archive.
type ArchiveConfig struct {
	Provider string `mapstructure:"provider"`
	Bucket   string `mapstructure:"bucket"`
	BaseDir  string `mapstructure:"base_dir"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk and environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper unmarshals and validates a Config from an initialized Viper.
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SetDefaults registers defaults for every knob on the given Viper.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 60)

	v.SetDefault("crawler.base_url", "https://gd.pkulaw.com")
	v.SetDefault("crawler.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	v.SetDefault("crawler.workers", 3)
	v.SetDefault("crawler.sequential", false)
	v.SetDefault("crawler.profile", "")
	v.SetDefault("crawler.max_pages", 500)
	v.SetDefault("crawler.empty_page_threshold", 3)
	v.SetDefault("crawler.min_delay_ms", 1000)
	v.SetDefault("crawler.max_delay_ms", 3000)
	v.SetDefault("crawler.timeout_seconds", 30)
	v.SetDefault("crawler.min_content_length", 100)
	v.SetDefault("crawler.count_tolerance", 0.1)
	v.SetDefault("crawler.categories", []string{})

	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 5000)

	v.SetDefault("proxy.urls", []string{})
	v.SetDefault("proxy.probe_url", "https://gd.pkulaw.com/")

	v.SetDefault("storage.provider", "noop")
	v.SetDefault("storage.table", "records")
	v.SetDefault("publisher.provider", "noop")
	v.SetDefault("archive.provider", "noop")
	v.SetDefault("archive.base_dir", "data/pages")

	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.BaseURL == "" {
		return fmt.Errorf("crawler.base_url is required")
	}
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be > 0")
	}
	if c.Crawler.EmptyPageThreshold <= 0 {
		return fmt.Errorf("crawler.empty_page_threshold must be > 0")
	}
	if c.Crawler.MaxPages < 0 {
		return fmt.Errorf("crawler.max_pages must be >= 0")
	}
	if c.Crawler.MinDelayMs > c.Crawler.MaxDelayMs {
		return fmt.Errorf("crawler.min_delay_ms must not exceed crawler.max_delay_ms")
	}
	switch c.Crawler.Profile {
	case "", "fast", "normal", "careful":
	default:
		return fmt.Errorf("unknown crawler.profile %q", c.Crawler.Profile)
	}
	switch c.Storage.Provider {
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the postgres provider")
		}
	case "noop":
	default:
		return fmt.Errorf("unknown storage.provider %q", c.Storage.Provider)
	}
	switch c.Publisher.Provider {
	case "pubsub":
		if c.Publisher.ProjectID == "" || c.Publisher.TopicID == "" {
			return fmt.Errorf("publisher.project_id and publisher.topic_id are required for pubsub")
		}
	case "noop":
	default:
		return fmt.Errorf("unknown publisher.provider %q", c.Publisher.Provider)
	}
	switch c.Archive.Provider {
	case "gcs":
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket is required for the gcs provider")
		}
	case "local":
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.base_dir is required for the local provider")
		}
	case "noop":
	default:
		return fmt.Errorf("unknown archive.provider %q", c.Archive.Provider)
	}
	return nil
}

// RequestTimeout converts the crawler timeout into a duration.
func (c CrawlerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Named pacing presets. A set profile overrides the per-knob delay values.
var profileDelays = map[string][2]time.Duration{
	"fast":    {250 * time.Millisecond, 1 * time.Second},
	"normal":  {1 * time.Second, 3 * time.Second},
	"careful": {3 * time.Second, 8 * time.Second},
}

// MinDelay converts the pacing floor into a duration.
func (c CrawlerConfig) MinDelay() time.Duration {
	if d, ok := profileDelays[c.Profile]; ok {
		return d[0]
	}
	return time.Duration(c.MinDelayMs) * time.Millisecond
}

// MaxDelay converts the pacing ceiling into a duration.
func (c CrawlerConfig) MaxDelay() time.Duration {
	if d, ok := profileDelays[c.Profile]; ok {
		return d[1]
	}
	return time.Duration(c.MaxDelayMs) * time.Millisecond
}

// BackoffInitial converts the first retry delay into a duration.
func (c HTTPConfig) BackoffInitial() time.Duration {
	return time.Duration(c.BackoffInitialMs) * time.Millisecond
}

// BackoffMax converts the retry delay ceiling into a duration.
func (c HTTPConfig) BackoffMax() time.Duration {
	return time.Duration(c.BackoffMaxMs) * time.Millisecond
}

// RequestTimeout converts the API timeout into a duration.
func (c ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
