package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Blob       BlobConfig       `yaml:"blob" mapstructure:"blob"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Extract    ExtractConfig    `yaml:"extract" mapstructure:"extract"`
	Queue      QueueConfig      `yaml:"queue" mapstructure:"queue"`
	Commit     CommitConfig     `yaml:"commit" mapstructure:"commit"`
	DLQ        DLQConfig        `yaml:"dlq" mapstructure:"dlq"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// BlobConfig configures where uploaded artifacts are kept.
type BlobConfig struct {
	Driver          string `yaml:"driver" mapstructure:"driver"`
	Dir             string `yaml:"dir" mapstructure:"dir"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	Prefix          string `yaml:"prefix" mapstructure:"prefix"`
	Region          string `yaml:"region" mapstructure:"region"`
	Endpoint        string `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" mapstructure:"secret_access_key"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key               string `yaml:"key" mapstructure:"key"`
	Model             string `yaml:"model" mapstructure:"model"`
	MaxTokens         int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerMinute int    `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// ExtractConfig configures the extraction adapter.
type ExtractConfig struct {
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RetryAttempts int     `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	MaxArtifactMB int     `yaml:"max_artifact_mb" mapstructure:"max_artifact_mb"`
	MinConfidence float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
	MaxSheetRows  int     `yaml:"max_sheet_rows" mapstructure:"max_sheet_rows"`
}

// QueueConfig configures how extraction tasks are dispatched.
type QueueConfig struct {
	Driver            string `yaml:"driver" mapstructure:"driver"`
	Workers           int    `yaml:"workers" mapstructure:"workers"`
	Size              int    `yaml:"size" mapstructure:"size"`
	TemporalHost      string `yaml:"temporal_host" mapstructure:"temporal_host"`
	TemporalNamespace string `yaml:"temporal_namespace" mapstructure:"temporal_namespace"`
	TaskQueue         string `yaml:"task_queue" mapstructure:"task_queue"`
}

// CommitConfig configures canonical writes.
type CommitConfig struct {
	EditWindowHours int `yaml:"edit_window_hours" mapstructure:"edit_window_hours"`
}

// DLQConfig configures replay of undeliverable extraction tasks and the
// sweep that fails submissions left processing longer than StaleAfterMins.
type DLQConfig struct {
	Schedule       string `yaml:"schedule" mapstructure:"schedule"`
	MaxRetries     int    `yaml:"max_retries" mapstructure:"max_retries"`
	BatchSize      int    `yaml:"batch_size" mapstructure:"batch_size"`
	StaleAfterMins int    `yaml:"stale_after_mins" mapstructure:"stale_after_mins"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MonitoringConfig configures the background alert checker.
type MonitoringConfig struct {
	Enabled              bool    `yaml:"enabled" mapstructure:"enabled"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	MinFinished          int     `yaml:"min_finished" mapstructure:"min_finished"`
	DLQDepthThreshold    int     `yaml:"dlq_depth_threshold" mapstructure:"dlq_depth_threshold"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("INTAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("blob.driver", "local")
	v.SetDefault("blob.dir", "./artifacts")
	v.SetDefault("blob.bucket", "")
	v.SetDefault("blob.prefix", "submissions/")
	v.SetDefault("blob.region", "us-east-1")
	v.SetDefault("blob.endpoint", "")
	v.SetDefault("blob.access_key_id", "")
	v.SetDefault("blob.secret_access_key", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.requests_per_minute", 50)
	v.SetDefault("extract.timeout_secs", 120)
	v.SetDefault("extract.retry_attempts", 3)
	v.SetDefault("extract.max_artifact_mb", 20)
	v.SetDefault("extract.min_confidence", 0.5)
	v.SetDefault("extract.max_sheet_rows", 500)
	v.SetDefault("queue.driver", "local")
	v.SetDefault("queue.workers", 4)
	v.SetDefault("queue.size", 100)
	v.SetDefault("queue.temporal_host", "localhost:7233")
	v.SetDefault("queue.temporal_namespace", "default")
	v.SetDefault("queue.task_queue", "intake-extraction")
	v.SetDefault("commit.edit_window_hours", 48)
	v.SetDefault("dlq.schedule", "@every 1m")
	v.SetDefault("dlq.max_retries", 5)
	v.SetDefault("dlq.batch_size", 20)
	v.SetDefault("dlq.stale_after_mins", 60)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.min_finished", 5)
	v.SetDefault("monitoring.dlq_depth_threshold", 10)
	v.SetDefault("monitoring.webhook_url", "")
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

// Validate checks the settings required by a command mode: "serve",
// "worker" or "cli".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for postgres")
		}
	case "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("unknown store.driver %q", c.Store.Driver))
	}

	switch c.Blob.Driver {
	case "local":
		if c.Blob.Dir == "" {
			errs = append(errs, "blob.dir is required for local blobs")
		}
	case "s3":
		if c.Blob.Bucket == "" {
			errs = append(errs, "blob.bucket is required for s3")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown blob.driver %q", c.Blob.Driver))
	}

	switch mode {
	case "serve", "worker":
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required")
		}
		if c.Extract.TimeoutSecs <= 0 {
			errs = append(errs, "extract.timeout_secs must be > 0")
		}
		switch c.Queue.Driver {
		case "local":
			if c.Queue.Workers < 1 || c.Queue.Workers > 64 {
				errs = append(errs, "queue.workers must be between 1 and 64")
			}
		case "temporal":
			if c.Queue.TemporalHost == "" {
				errs = append(errs, "queue.temporal_host is required for temporal")
			}
		default:
			errs = append(errs, fmt.Sprintf("unknown queue.driver %q", c.Queue.Driver))
		}
		if mode == "serve" && c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Commit.EditWindowHours <= 0 {
			errs = append(errs, "commit.edit_window_hours must be > 0")
		}
		if mode == "serve" && c.Monitoring.Enabled {
			if c.Monitoring.LookbackWindowHours <= 0 {
				errs = append(errs, "monitoring.lookback_window_hours must be > 0")
			}
			if c.Monitoring.FailureRateThreshold <= 0 || c.Monitoring.FailureRateThreshold > 1 {
				errs = append(errs, "monitoring.failure_rate_threshold must be in (0, 1]")
			}
		}
	case "cli":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
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
