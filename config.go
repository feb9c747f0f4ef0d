package main

import (
	"fmt"
	"strings"
	"time"

	"deception-analyzer/internal/constants"

	"github.com/spf13/viper"
)

// Config holds the runtime configuration. Every key can be set through the
// environment (LLM_PROVIDER, DB_DSN, ...) or a YAML file passed with --config.
type Config struct {
	ListenAddr string `mapstructure:"listen_addr"`
	LogLevel   string `mapstructure:"log_level"`

	LLMProvider       string        `mapstructure:"llm_provider"`
	LLMModel          string        `mapstructure:"llm_model"`
	LLMBaseURL        string        `mapstructure:"llm_base_url"`
	LLMAPIKey         string        `mapstructure:"llm_api_key"`
	OpenAIAPIKey      string        `mapstructure:"openai_api_key"`
	GoogleAIAPIKey    string        `mapstructure:"googleai_api_key"`
	OllamaHost        string        `mapstructure:"ollama_host"`
	Temperature       float64       `mapstructure:"llm_temperature"`
	RequestsPerMinute float64       `mapstructure:"llm_requests_per_minute"`
	MaxRetries        int           `mapstructure:"llm_max_retries"`
	BackoffMaxWait    time.Duration `mapstructure:"llm_backoff_max_wait"`
	HTTPRetries       int           `mapstructure:"llm_http_retries"`
	LLMTimeout        time.Duration `mapstructure:"llm_timeout"`
	BreakerFailures   uint32        `mapstructure:"breaker_max_failures"`
	BreakerTimeout    time.Duration `mapstructure:"breaker_timeout"`
	TokenLimit        int           `mapstructure:"token_limit"`

	DBDriver string `mapstructure:"db_driver"`
	DBDSN    string `mapstructure:"db_dsn"`

	JWTSecret     string        `mapstructure:"auth_jwt_secret"`
	AdminRole     string        `mapstructure:"auth_admin_role"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	JobWorkers    int           `mapstructure:"job_workers"`
	JobTTL        time.Duration `mapstructure:"job_ttl"`
	RetentionDays int           `mapstructure:"retention_days"`
	PromptsDir    string        `mapstructure:"prompts_dir"`
	ConfigDir     string        `mapstructure:"config_dir"`
}

var configKeys = map[string]interface{}{
	"listen_addr":             ":8080",
	"log_level":               "info",
	"llm_provider":            "gateway",
	"llm_model":               constants.DefaultModel,
	"llm_base_url":            constants.DefaultGatewayURL,
	"llm_api_key":             "",
	"openai_api_key":          "",
	"googleai_api_key":        "",
	"ollama_host":             "http://127.0.0.1:11434",
	"llm_temperature":         constants.DefaultTemperature,
	"llm_requests_per_minute": 0,
	"llm_max_retries":         3,
	"llm_backoff_max_wait":    30 * time.Second,
	"llm_http_retries":        2,
	"llm_timeout":             60 * time.Second,
	"breaker_max_failures":    5,
	"breaker_timeout":         30 * time.Second,
	"token_limit":             0,
	"db_driver":               "sqlite",
	"db_dsn":                  "db/analyses.db",
	"auth_jwt_secret":         "",
	"auth_admin_role":         "service_role",
	"cache_ttl":               time.Duration(0),
	"job_workers":             2,
	"job_ttl":                 time.Hour,
	"retention_days":          0,
	"prompts_dir":             "prompts",
	"config_dir":              "config",
}

// loadConfig reads the configuration from v. Environment variables are matched
// by upper-casing the key, so llm_provider is read from LLM_PROVIDER.
func loadConfig(v *viper.Viper) (*Config, error) {
	for key, def := range configKeys {
		v.SetDefault(key, def)
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate ensures the provider has what it needs before anything is started.
func (cfg *Config) validate() error {
	switch cfg.LLMProvider {
	case "gateway":
		if cfg.LLMBaseURL == "" {
			return fmt.Errorf("please set the LLM_BASE_URL environment variable")
		}
	case "openai", "ollama", "googleai":
	default:
		return fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	if cfg.LLMModel == "" {
		return fmt.Errorf("please set the LLM_MODEL environment variable")
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		return fmt.Errorf("LLM_TEMPERATURE must be between 0 and 2, got %g", cfg.Temperature)
	}

	switch cfg.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.DBDriver)
	}

	if cfg.JobWorkers < 1 {
		cfg.JobWorkers = 1
	}
	if cfg.JWTSecret != "" && strings.TrimSpace(cfg.AdminRole) == "" {
		return fmt.Errorf("please set the AUTH_ADMIN_ROLE environment variable")
	}
	return nil
}

// apiKey returns the key for the configured provider. Ollama needs none.
func (cfg *Config) apiKey() string {
	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIAPIKey != "" {
			return cfg.OpenAIAPIKey
		}
		return cfg.LLMAPIKey
	case "googleai":
		if cfg.GoogleAIAPIKey != "" {
			return cfg.GoogleAIAPIKey
		}
		return cfg.LLMAPIKey
	case "ollama":
		return constants.DummyAPIKey
	default:
		return cfg.LLMAPIKey
	}
}
