// Package config loads the decision core configuration from a YAML file
// with environment overrides for secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"trading-core/internal/analyzer"
	"trading-core/internal/cache"
	"trading-core/internal/logging"
	"trading-core/internal/signal"
	"trading-core/internal/store"
)

// Config is the root configuration.
type Config struct {
	Logging  logging.Config `yaml:"logging"`
	Database store.Config   `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	Signal   SignalConfig   `yaml:"signal"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// RedisConfig configures the shared analysis cache and lock backend.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size" default:"10"`
}

// Store converts to the cache package's connection settings.
func (r RedisConfig) Store() cache.RedisConfig {
	return cache.RedisConfig{
		Address:  r.Address,
		Password: r.Password,
		DB:       r.DB,
		PoolSize: r.PoolSize,
	}
}

// AnalyzerConfig configures the external reasoning service client. The API
// key normally arrives through the ANALYZER_API_KEY environment variable.
type AnalyzerConfig struct {
	Provider       string  `yaml:"provider" default:"claude" validate:"oneof=claude openai deepseek"`
	APIKey         string  `yaml:"api_key"`
	Model          string  `yaml:"model" default:"claude-sonnet-4-20250514"`
	MaxTokens      int     `yaml:"max_tokens" default:"1024"`
	Temperature    float64 `yaml:"temperature" default:"0.3"`
	TimeoutSeconds int     `yaml:"timeout_seconds" default:"90" validate:"min=1"`
}

// Client converts to the analyzer client settings.
func (a AnalyzerConfig) Client() *analyzer.ClientConfig {
	return &analyzer.ClientConfig{
		Provider:    analyzer.Provider(a.Provider),
		APIKey:      a.APIKey,
		Model:       a.Model,
		MaxTokens:   a.MaxTokens,
		Temperature: a.Temperature,
		Timeout:     time.Duration(a.TimeoutSeconds) * time.Second,
	}
}

// SignalConfig configures the orchestrator. Durations are expressed in
// seconds so the YAML stays plain numbers.
type SignalConfig struct {
	UseAnalyzer            bool              `yaml:"use_analyzer" default:"true"`
	CacheBucketSeconds     int               `yaml:"cache_bucket_seconds" default:"60" validate:"min=1"`
	CacheTTLSeconds        int               `yaml:"cache_ttl_seconds" default:"60" validate:"min=1"`
	LockLeaseSeconds       int               `yaml:"lock_lease_seconds" default:"300" validate:"min=1"`
	LockWaitSeconds        int               `yaml:"lock_wait_seconds" default:"2" validate:"min=0"`
	AnalyzerTimeoutSeconds int               `yaml:"analyzer_timeout_seconds" default:"90" validate:"min=1"`
	AgreementThreshold     float64           `yaml:"agreement_threshold" default:"0.667" validate:"min=0,max=1"`
	Rules                  signal.RuleConfig `yaml:"rules"`
}

// Orchestrator converts to the orchestrator settings.
func (s SignalConfig) Orchestrator() signal.Config {
	return signal.Config{
		UseAnalyzer:        s.UseAnalyzer,
		CacheBucket:        time.Duration(s.CacheBucketSeconds) * time.Second,
		CacheTTL:           time.Duration(s.CacheTTLSeconds) * time.Second,
		LockLease:          time.Duration(s.LockLeaseSeconds) * time.Second,
		LockWait:           time.Duration(s.LockWaitSeconds) * time.Second,
		AnalyzerTimeout:    time.Duration(s.AnalyzerTimeoutSeconds) * time.Second,
		AgreementThreshold: s.AgreementThreshold,
		Rules:              s.Rules,
	}
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address" default:":9090"`
}

// Load reads configuration from path (optional), applies defaults, then
// environment overrides, then validates. A missing file is not an error;
// defaults plus environment are enough to run.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply config defaults: %w", err)
	}
	applyEnv(cfg)

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnv pulls secrets from the environment so they stay out of the
// config file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("ANALYZER_API_KEY"); v != "" {
		cfg.Analyzer.APIKey = v
	}
	if v := os.Getenv("DATABASE_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
