// Package config loads crawl configuration from file, environment and
// flags via viper, and validates it before the engine starts.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"siteharvest/internal/crawler"
)

const envPrefix = "SITEHARVEST"

// Crawl holds the core crawl parameters.
type Crawl struct {
	Seeds                []string      `mapstructure:"seeds"`
	OutputDir            string        `mapstructure:"output_dir"`
	AllowedDomains       []string      `mapstructure:"allowed_domains"`
	MaxPages             int           `mapstructure:"max_pages"`
	MaxDepth             int           `mapstructure:"max_depth"`
	Concurrency          int           `mapstructure:"concurrency"`
	PerOriginConcurrency int           `mapstructure:"per_origin_concurrency"`
	QueueDepth           int           `mapstructure:"queue_depth"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
	UserAgent            string        `mapstructure:"user_agent"`
	RespectRobots        bool          `mapstructure:"respect_robots"`
	RenderPolicy         string        `mapstructure:"render_policy"`
	DownloadImages       bool          `mapstructure:"download_images"`
	Delay                time.Duration `mapstructure:"delay"`
}

// Render holds headless-browser settings.
type Render struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxSessions int           `mapstructure:"max_sessions"`
}

// Server holds the ops HTTP server settings. Port 0 disables the server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Storage holds optional cloud mirroring settings.
type Storage struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// Index holds optional Postgres index settings. An empty DSN disables it.
type Index struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// Publish holds optional Pub/Sub settings. An empty topic disables it.
type Publish struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Logging selects the logger profile.
type Logging struct {
	Development bool `mapstructure:"development"`
}

// Config is the root configuration document.
type Config struct {
	Crawl   Crawl   `mapstructure:"crawl"`
	Render  Render  `mapstructure:"render"`
	Server  Server  `mapstructure:"server"`
	Storage Storage `mapstructure:"storage"`
	Index   Index   `mapstructure:"index"`
	Publish Publish `mapstructure:"publish"`
	Logging Logging `mapstructure:"logging"`
}

// SetDefaults registers default values on the given viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("crawl.output_dir", "output")
	v.SetDefault("crawl.max_pages", 200)
	v.SetDefault("crawl.max_depth", 3)
	v.SetDefault("crawl.concurrency", 8)
	v.SetDefault("crawl.per_origin_concurrency", 2)
	v.SetDefault("crawl.queue_depth", 4096)
	v.SetDefault("crawl.request_timeout", 20*time.Second)
	v.SetDefault("crawl.user_agent", "siteharvest/1.0")
	v.SetDefault("crawl.respect_robots", true)
	v.SetDefault("crawl.render_policy", string(crawler.RenderAuto))
	v.SetDefault("crawl.download_images", false)
	v.SetDefault("crawl.delay", 500*time.Millisecond)
	v.SetDefault("render.timeout", 30*time.Second)
	v.SetDefault("render.max_sessions", 2)
	v.SetDefault("server.port", 0)
	v.SetDefault("index.table", "pages")
	v.SetDefault("logging.development", false)
}

// Load reads configuration into the viper instance and unmarshals it.
// If path is non-empty the file must exist and parse.
func Load(v *viper.Viper, path string) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
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

// Validate checks that the configuration can drive a crawl.
func (c Config) Validate() error {
	if len(c.Crawl.Seeds) == 0 {
		return fmt.Errorf("at least one seed URL is required")
	}
	if c.Crawl.OutputDir == "" {
		return fmt.Errorf("output dir is required")
	}
	if c.Crawl.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive, got %d", c.Crawl.MaxPages)
	}
	if c.Crawl.MaxDepth < 0 {
		return fmt.Errorf("max depth must not be negative, got %d", c.Crawl.MaxDepth)
	}
	if c.Crawl.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if _, err := crawler.ParseRenderPolicy(c.Crawl.RenderPolicy); err != nil {
		return err
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	return nil
}
