package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/ohss-collector/internal/store"
)

// Config is the top-level application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Collector  CollectorConfig  `yaml:"collector" mapstructure:"collector"`
	Schedule   ScheduleConfig   `yaml:"schedule" mapstructure:"schedule"`
	Schema     SchemaConfig     `yaml:"schema" mapstructure:"schema"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// StoreConfig configures the record sink.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// PoolConfig returns the pool tuning for the Postgres sink, or nil when unset.
func (c StoreConfig) PoolConfig() *store.PoolConfig {
	if c.MaxConns == 0 && c.MinConns == 0 {
		return nil
	}
	return &store.PoolConfig{MaxConns: c.MaxConns, MinConns: c.MinConns}
}

// CollectorConfig configures the OHSS portal collector.
type CollectorConfig struct {
	SourceName  string `yaml:"source_name" mapstructure:"source_name"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	DataPath    string `yaml:"data_path" mapstructure:"data_path"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	ArchiveDir  string `yaml:"archive_dir" mapstructure:"archive_dir"`
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
}

// Timeout returns the per-request timeout.
func (c CollectorConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// ScheduleConfig configures the cron trigger used by serve.
type ScheduleConfig struct {
	Cron       string `yaml:"cron" mapstructure:"cron"`
	Timezone   string `yaml:"timezone" mapstructure:"timezone"`
	RunOnStart bool   `yaml:"run_on_start" mapstructure:"run_on_start"`
}

// SchemaConfig points at an optional alias override file.
type SchemaConfig struct {
	AliasesFile string `yaml:"aliases_file" mapstructure:"aliases_file"`
}

// ServerConfig configures the read API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// MonitoringConfig configures collection health alerting.
type MonitoringConfig struct {
	Enabled                bool   `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL             string `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs      int    `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackRuns           int    `yaml:"lookback_runs" mapstructure:"lookback_runs"`
	StaleAfterHours        int    `yaml:"stale_after_hours" mapstructure:"stale_after_hours"`
	MaxConsecutiveFailures int    `yaml:"max_consecutive_failures" mapstructure:"max_consecutive_failures"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("COLLECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Keys without a meaningful default are still registered so
	// AutomaticEnv can populate them during Unmarshal.
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.sqlite_path", "ohss.db")
	v.SetDefault("store.max_conns", 0)
	v.SetDefault("store.min_conns", 0)
	v.SetDefault("collector.source_name", "OHSS")
	v.SetDefault("collector.base_url", "https://ohss.dhs.gov")
	v.SetDefault("collector.data_path", "/topics/immigration/immigration-enforcement/monthly-tables")
	v.SetDefault("collector.user_agent", "ICE Activities Tracker (Research/Monitoring Project)")
	v.SetDefault("collector.timeout_secs", 30)
	v.SetDefault("collector.max_retries", 3)
	v.SetDefault("collector.archive_dir", "")
	v.SetDefault("collector.enabled", true)
	v.SetDefault("schedule.cron", "0 2 * * *")
	v.SetDefault("schedule.timezone", "America/Chicago")
	v.SetDefault("schedule.run_on_start", true)
	v.SetDefault("schema.aliases_file", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 900)
	v.SetDefault("monitoring.lookback_runs", 20)
	v.SetDefault("monitoring.stale_after_hours", 48)
	v.SetDefault("monitoring.max_consecutive_failures", 3)

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

// Validate checks the settings a command needs. Mode is the cobra command
// name; commands that do not touch the store pass "discover".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "discover":
	case "collect", "migrate", "status", "serve":
		errs = append(errs, c.validateStore()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if mode == "discover" || mode == "collect" || mode == "serve" {
		if c.Collector.BaseURL == "" {
			errs = append(errs, "collector.base_url is required")
		}
		if c.Collector.MaxRetries < 1 || c.Collector.MaxRetries > 10 {
			errs = append(errs, "collector.max_retries must be between 1 and 10")
		}
		if c.Collector.TimeoutSecs <= 0 {
			errs = append(errs, "collector.timeout_secs must be > 0")
		}
	}

	if mode == "serve" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Collector.Enabled && c.Schedule.Cron == "" {
			errs = append(errs, "schedule.cron is required when collector.enabled")
		}
		if c.Schedule.Timezone != "" {
			if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
				errs = append(errs, fmt.Sprintf("schedule.timezone %q is not a known location", c.Schedule.Timezone))
			}
		}
	}

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return []string{"store.database_url is required for the postgres driver"}
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return []string{"store.sqlite_path is required for the sqlite driver"}
		}
	default:
		return []string{fmt.Sprintf("store.driver must be postgres or sqlite, got %q", c.Store.Driver)}
	}
	return nil
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
