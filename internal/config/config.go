package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Catalog    CatalogConfig    `yaml:"catalog" mapstructure:"catalog"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Sources    SourcesConfig    `yaml:"sources" mapstructure:"sources"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// CatalogConfig locates the catalog and archive files.
type CatalogConfig struct {
	Path        string `yaml:"path" mapstructure:"path"`
	ArchivePath string `yaml:"archive_path" mapstructure:"archive_path"`
	// Timezone is the IANA zone calendar-day comparisons are made in.
	Timezone string `yaml:"timezone" mapstructure:"timezone"`
}

// FetchConfig configures the HTTP fetcher shared by all adapters.
type FetchConfig struct {
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	// DelayMs is the minimum spacing between requests to one host.
	DelayMs     int `yaml:"delay_ms" mapstructure:"delay_ms"`
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// SourceConfig overrides one adapter's defaults.
type SourceConfig struct {
	URL      string `yaml:"url" mapstructure:"url"`
	MaxPages int    `yaml:"max_pages" mapstructure:"max_pages"`
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
}

// SourcesConfig configures each adapter.
type SourcesConfig struct {
	Parks   SourceConfig `yaml:"parks" mapstructure:"parks"`
	Library SourceConfig `yaml:"library" mapstructure:"library"`
	Museum  SourceConfig `yaml:"museum" mapstructure:"museum"`
	Farm    SourceConfig `yaml:"farm" mapstructure:"farm"`
}

// StoreConfig configures the run ledger.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the read API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MonitoringConfig configures health checks and alert delivery.
type MonitoringConfig struct {
	WebhookURL        string `yaml:"webhook_url" mapstructure:"webhook_url"`
	StaleAfterHours   int    `yaml:"stale_after_hours" mapstructure:"stale_after_hours"`
	DriftRuns         int    `yaml:"drift_runs" mapstructure:"drift_runs"`
	CheckIntervalSecs int    `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Scope names the part of the configuration a command depends on.
type Scope string

const (
	ScopeCatalog Scope = "catalog"
	ScopeFetch   Scope = "fetch"
	ScopeStore   Scope = "store"
	ScopeServer  Scope = "server"
)

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FAMEVENTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("catalog.path", "data/events.json")
	v.SetDefault("catalog.archive_path", "data/archive.json")
	v.SetDefault("catalog.timezone", "America/New_York")
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; FamilyEventsBot/1.0)")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.delay_ms", 1000)
	v.SetDefault("fetch.concurrency", 4)
	for _, name := range []string{"parks", "library", "museum", "farm"} {
		v.SetDefault("sources."+name+".enabled", true)
		v.SetDefault("sources."+name+".url", "")
		v.SetDefault("sources."+name+".max_pages", 0)
	}
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "data/runs.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.stale_after_hours", 48)
	v.SetDefault("monitoring.drift_runs", 3)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
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

// Validate checks the settings the given scopes depend on and reports every
// problem at once.
func (c *Config) Validate(scopes ...Scope) error {
	var errs []string
	for _, s := range scopes {
		switch s {
		case ScopeCatalog:
			if c.Catalog.Path == "" {
				errs = append(errs, "catalog.path is required")
			}
			if c.Catalog.ArchivePath == "" {
				errs = append(errs, "catalog.archive_path is required")
			}
			if c.Catalog.Path != "" && c.Catalog.Path == c.Catalog.ArchivePath {
				errs = append(errs, "catalog.path and catalog.archive_path must differ")
			}
			if _, err := c.Location(); err != nil {
				errs = append(errs, "catalog.timezone "+strconv.Quote(c.Catalog.Timezone)+" is not a known zone")
			}
		case ScopeFetch:
			if c.Fetch.TimeoutSecs <= 0 {
				errs = append(errs, "fetch.timeout_secs must be > 0")
			}
			if c.Fetch.MaxRetries < 0 {
				errs = append(errs, "fetch.max_retries must be >= 0")
			}
			if c.Fetch.Concurrency < 1 || c.Fetch.Concurrency > 16 {
				errs = append(errs, "fetch.concurrency must be between 1 and 16")
			}
		case ScopeStore:
			if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
				errs = append(errs, "store.driver must be sqlite or postgres")
			}
			if c.Store.DatabaseURL == "" {
				errs = append(errs, "store.database_url is required")
			}
		case ScopeServer:
			if c.Server.Port <= 0 || c.Server.Port > 65535 {
				errs = append(errs, "server.port must be > 0 and <= 65535")
			}
		default:
			return eris.Errorf("config: unknown scope %q", s)
		}
	}
	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Location returns the catalog time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Catalog.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Catalog.Timezone)
	if err != nil {
		return nil, eris.Wrapf(err, "config: catalog.timezone %q", c.Catalog.Timezone)
	}
	return loc, nil
}

// FetchTimeout returns the per-request timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSecs) * time.Second
}

// FetchDelay returns the per-host request spacing.
func (c *Config) FetchDelay() time.Duration {
	return time.Duration(c.Fetch.DelayMs) * time.Millisecond
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
