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
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	GitHub     GitHubConfig     `yaml:"github" mapstructure:"github"`
	Jobs       JobsConfig       `yaml:"jobs" mapstructure:"jobs"`
	Aggregate  AggregateConfig  `yaml:"aggregate" mapstructure:"aggregate"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings for the extraction
// normalizer.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// JinaConfig holds Jina AI Reader/Search settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// GitHubConfig holds code-hosting API settings. An empty token is valid:
// the client falls back to the unauthenticated rate budget.
type GitHubConfig struct {
	Token   string  `yaml:"token" mapstructure:"token"`
	BaseURL string  `yaml:"base_url" mapstructure:"base_url"`
	RPS     float64 `yaml:"rps" mapstructure:"rps"`
}

// JobsConfig holds job-listing search API settings.
type JobsConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AggregateConfig configures the aggregation pipeline. Adapter timeouts
// are distinct because LLM-backed providers are inherently slower than
// direct-API ones.
type AggregateConfig struct {
	FastTimeoutSecs int    `yaml:"fast_timeout_secs" mapstructure:"fast_timeout_secs"`
	SlowTimeoutSecs int    `yaml:"slow_timeout_secs" mapstructure:"slow_timeout_secs"`
	DeadlineSecs    int    `yaml:"deadline_secs" mapstructure:"deadline_secs"`
	PolicyPath      string `yaml:"policy_path" mapstructure:"policy_path"`
}

// FastTimeout is the per-call upper bound for direct-API adapters.
func (c AggregateConfig) FastTimeout() time.Duration {
	return time.Duration(c.FastTimeoutSecs) * time.Second
}

// SlowTimeout is the per-call upper bound for LLM-backed adapters.
func (c AggregateConfig) SlowTimeout() time.Duration {
	return time.Duration(c.SlowTimeoutSecs) * time.Second
}

// Deadline is the outer bound for a full aggregation pass; categories
// still pending when it fires are reported failed-by-timeout.
func (c AggregateConfig) Deadline() time.Duration {
	return time.Duration(c.DeadlineSecs) * time.Second
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("INTEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Credentials and other optional keys default to empty so
	// viper knows them: AutomaticEnv only surfaces INTEL_ variables for
	// keys it has seen via a default or the config file.
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "intel.db")
	v.SetDefault("store.max_conns", 0)
	v.SetDefault("store.min_conns", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("perplexity.key", "")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("jina.key", "")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("github.token", "")
	v.SetDefault("github.base_url", "https://api.github.com")
	v.SetDefault("github.rps", 1.0)
	v.SetDefault("jobs.key", "")
	v.SetDefault("jobs.base_url", "https://api.jsearch.dev")
	v.SetDefault("aggregate.fast_timeout_secs", 15)
	v.SetDefault("aggregate.slow_timeout_secs", 60)
	v.SetDefault("aggregate.deadline_secs", 120)
	v.SetDefault("aggregate.policy_path", "")

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
