package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JOSM/changeset-viewer/internal/core/domain"
)

// Config holds all application configuration.
type Config struct {
	Server          ServerConfig              `mapstructure:"server"`
	NATS            NATSConfig                `mapstructure:"nats"`
	Valkey          ValkeyConfig              `mapstructure:"valkey"`
	Telemetry       TelemetryConfig           `mapstructure:"telemetry"`
	Temporal        TemporalConfig            `mapstructure:"temporal"`
	Logging         LoggingConfig             `mapstructure:"logging"`
	Acquisition     AcquisitionConfig         `mapstructure:"acquisition"`
	DefaultPlatform string                    `mapstructure:"default_platform"`
	Platforms       map[string]PlatformConfig `mapstructure:"platforms"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

type ValkeyConfig struct {
	Addr      string `mapstructure:"addr"`
	KeyPrefix string `mapstructure:"key_prefix"`
	Enabled   bool   `mapstructure:"enabled"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	TaskQueue string `mapstructure:"task_queue"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AcquisitionConfig holds the diff acquisition budget. Durations are seconds.
type AcquisitionConfig struct {
	QueryTimeout  int    `mapstructure:"query_timeout"`
	TimeoutMargin int    `mapstructure:"timeout_margin"`
	FetchTimeout  int    `mapstructure:"fetch_timeout"`
	MaxDownloadMB int    `mapstructure:"max_download_mb"`
	CacheTTL      int    `mapstructure:"cache_ttl"`
	PadSeconds    int    `mapstructure:"pad_seconds"`
	UserAgent     string `mapstructure:"user_agent"`
}

func (a AcquisitionConfig) QueryTimeoutDuration() time.Duration {
	return time.Duration(a.QueryTimeout) * time.Second
}

func (a AcquisitionConfig) MarginDuration() time.Duration {
	return time.Duration(a.TimeoutMargin) * time.Second
}

func (a AcquisitionConfig) FetchTimeoutDuration() time.Duration {
	return time.Duration(a.FetchTimeout) * time.Second
}

func (a AcquisitionConfig) MaxDownloadBytes() int64 {
	return int64(a.MaxDownloadMB) << 20
}

func (a AcquisitionConfig) CacheTTLDuration() time.Duration {
	return time.Duration(a.CacheTTL) * time.Second
}

func (a AcquisitionConfig) Pad() time.Duration {
	return time.Duration(a.PadSeconds) * time.Second
}

// PlatformConfig is the endpoint set of one mapping platform.
type PlatformConfig struct {
	Label        string        `mapstructure:"label"`
	APIURL       string        `mapstructure:"api_url"`
	Feeds        []domain.Feed `mapstructure:"feeds"`
	OverpassURL  string        `mapstructure:"overpass_url"`
	ChangesetURL string        `mapstructure:"changeset_url"`
}

// Platform returns the named platform as an immutable value. An empty name
// selects the default platform.
func (c *Config) Platform(name string) (domain.Platform, error) {
	if name == "" {
		name = c.DefaultPlatform
	}
	p, ok := c.Platforms[strings.ToLower(name)]
	if !ok {
		return domain.Platform{}, fmt.Errorf("platform %q: %w", name, domain.ErrUnknownPlatform)
	}
	feeds := make([]domain.Feed, len(p.Feeds))
	copy(feeds, p.Feeds)
	return domain.Platform{
		Name:         strings.ToLower(name),
		Label:        p.Label,
		APIURL:       p.APIURL,
		Feeds:        feeds,
		OverpassURL:  p.OverpassURL,
		ChangesetURL: p.ChangesetURL,
	}, nil
}

// PlatformNames lists configured platforms in sorted order.
func (c *Config) PlatformNames() []string {
	names := make([]string, 0, len(c.Platforms))
	for name := range c.Platforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func defaultPlatforms() map[string]any {
	return map[string]any{
		"osm": map[string]any{
			"label":   "OpenStreetMap",
			"api_url": "https://api.openstreetmap.org/api/0.6/",
			"feeds": []map[string]any{
				{"url": "https://adiffs.osmcha.org/changesets/{id}.adiff", "format": "xml"},
				{"url": "https://real-changesets.s3.amazonaws.com/{id}.json", "format": "json"},
			},
			"overpass_url":  "https://overpass-api.de/api/interpreter",
			"changeset_url": "https://www.openstreetmap.org/changeset/",
		},
		"ohm": map[string]any{
			"label":   "OpenHistoricalMap",
			"api_url": "https://www.openhistoricalmap.org/api/0.6/",
			"feeds": []map[string]any{
				{"url": "https://s3.us-east-1.amazonaws.com/planet.openhistoricalmap.org/ohm-augmented-diffs/changesets/{id}.adiff", "format": "xml"},
			},
			"overpass_url":  "https://overpass-api.openhistoricalmap.org/api/interpreter",
			"changeset_url": "https://www.openhistoricalmap.org/changeset/",
		},
	}
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	return load(service, ".", "./configs")
}

func load(service string, paths ...string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 200)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", true)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.key_prefix", "csv:")
	v.SetDefault("valkey.enabled", true)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.task_queue", "changeset-prefetch")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("acquisition.query_timeout", 180)
	v.SetDefault("acquisition.timeout_margin", 10)
	v.SetDefault("acquisition.fetch_timeout", 190)
	v.SetDefault("acquisition.max_download_mb", 50)
	v.SetDefault("acquisition.cache_ttl", 86400)
	v.SetDefault("acquisition.pad_seconds", 1)
	v.SetDefault("acquisition.user_agent", "changeset-viewer/1.0")
	v.SetDefault("default_platform", "osm")
	v.SetDefault("platforms", defaultPlatforms())

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: CHANGESETVIEWER_VALKEY_ADDR → valkey.addr
	v.SetEnvPrefix("CHANGESETVIEWER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Enabled && c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}

	a := c.Acquisition
	if a.QueryTimeout <= 0 {
		errs = append(errs, "acquisition.query_timeout must be positive")
	}
	if a.TimeoutMargin <= 0 {
		errs = append(errs, "acquisition.timeout_margin must be positive")
	}
	if a.FetchTimeout < a.QueryTimeout+a.TimeoutMargin {
		errs = append(errs, fmt.Sprintf("acquisition.fetch_timeout must be at least query_timeout+timeout_margin (%ds), got %d",
			a.QueryTimeout+a.TimeoutMargin, a.FetchTimeout))
	}
	if a.MaxDownloadMB <= 0 {
		errs = append(errs, "acquisition.max_download_mb must be positive")
	}
	if a.PadSeconds < 1 {
		errs = append(errs, fmt.Sprintf("acquisition.pad_seconds must be at least 1, got %d", a.PadSeconds))
	}

	if len(c.Platforms) == 0 {
		errs = append(errs, "at least one platform is required")
	}
	if _, ok := c.Platforms[strings.ToLower(c.DefaultPlatform)]; !ok {
		errs = append(errs, fmt.Sprintf("default_platform %q is not configured", c.DefaultPlatform))
	}
	for _, name := range c.PlatformNames() {
		p := c.Platforms[name]
		if p.APIURL == "" {
			errs = append(errs, fmt.Sprintf("platforms.%s.api_url is required", name))
		}
		if p.ChangesetURL == "" {
			errs = append(errs, fmt.Sprintf("platforms.%s.changeset_url is required", name))
		}
		for i, f := range p.Feeds {
			if !strings.Contains(f.URL, "{id}") {
				errs = append(errs, fmt.Sprintf("platforms.%s.feeds[%d].url must contain {id}", name, i))
			}
			if !f.Format.Valid() {
				errs = append(errs, fmt.Sprintf("platforms.%s.feeds[%d].format must be xml or json, got %q", name, i, f.Format))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
