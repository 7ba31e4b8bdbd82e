package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Matcher   MatcherConfig   `yaml:"matcher" mapstructure:"matcher"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the knowledge base backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// AnthropicConfig holds LLM settings for the translation and extraction stages.
// An empty key disables LLM calls; stages then fall back to pass-through behavior.
type AnthropicConfig struct {
	Key               string  `yaml:"key" mapstructure:"key"`
	Model             string  `yaml:"model" mapstructure:"model"`
	MaxTokens         int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	MaxAttempts       int     `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// WeightsConfig holds the similarity signal weights.
type WeightsConfig struct {
	Name       float64 `yaml:"name" mapstructure:"name"`
	PartNumber float64 `yaml:"part_number" mapstructure:"part_number"`
	Vendor     float64 `yaml:"vendor" mapstructure:"vendor"`
	Unit       float64 `yaml:"unit" mapstructure:"unit"`
}

// MatcherConfig configures item matching.
type MatcherConfig struct {
	MinConfidence float64       `yaml:"min_confidence" mapstructure:"min_confidence"`
	Workers       int           `yaml:"workers" mapstructure:"workers"`
	Weights       WeightsConfig `yaml:"weights" mapstructure:"weights"`
}

// PipelineConfig configures the document workflow.
type PipelineConfig struct {
	ResultsDir        string `yaml:"results_dir" mapstructure:"results_dir"`
	SourceLanguage    string `yaml:"source_language" mapstructure:"source_language"`
	TargetLanguage    string `yaml:"target_language" mapstructure:"target_language"`
	ProgressTimeoutMS int    `yaml:"progress_timeout_ms" mapstructure:"progress_timeout_ms"`
	Report            bool   `yaml:"report" mapstructure:"report"`
}

// MetricsConfig configures the Prometheus textfile export.
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path" mapstructure:"textfile_path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables take precedence.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: read .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BOMMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

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

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "knowledge.db")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.requests_per_second", 2)
	v.SetDefault("anthropic.max_attempts", 3)
	v.SetDefault("matcher.min_confidence", 0.3)
	v.SetDefault("matcher.workers", 8)
	v.SetDefault("matcher.weights.name", 0.5)
	v.SetDefault("matcher.weights.part_number", 0.3)
	v.SetDefault("matcher.weights.vendor", 0.1)
	v.SetDefault("matcher.weights.unit", 0.1)
	v.SetDefault("pipeline.results_dir", "results")
	v.SetDefault("pipeline.source_language", "ja")
	v.SetDefault("pipeline.target_language", "en")
	v.SetDefault("pipeline.progress_timeout_ms", 2000)
	v.SetDefault("pipeline.report", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
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

// Validate checks settings that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres", "memory":
	default:
		errs = append(errs, "store.driver must be sqlite, postgres or memory")
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required for postgres")
	}
	if c.Matcher.MinConfidence < 0 || c.Matcher.MinConfidence > 1 {
		errs = append(errs, "matcher.min_confidence must be between 0 and 1")
	}
	if c.Matcher.Workers < 1 {
		errs = append(errs, "matcher.workers must be >= 1")
	}
	if c.Pipeline.ResultsDir == "" {
		errs = append(errs, "pipeline.results_dir is required")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
