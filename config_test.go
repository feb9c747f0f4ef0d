package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(viper.New())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "gateway", cfg.LLMProvider)
	assert.Equal(t, "google/gemini-2.5-flash", cfg.LLMModel)
	assert.Equal(t, "https://ai.gateway.lovable.dev/v1", cfg.LLMBaseURL)
	assert.InDelta(t, 0.7, cfg.Temperature, 1e-9)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 2, cfg.JobWorkers)
	assert.Equal(t, 30*time.Second, cfg.BreakerTimeout)
	assert.Equal(t, time.Duration(0), cfg.CacheTTL)
	assert.Equal(t, "service_role", cfg.AdminRole)
	assert.Equal(t, time.Hour, cfg.JobTTL)
}

func TestLoadConfig_ZeroTemperature(t *testing.T) {
	t.Setenv("LLM_TEMPERATURE", "0")

	cfg, err := loadConfig(viper.New())
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.Temperature)
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("LLM_MODEL", "gpt-4o-mini")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("CACHE_TTL", "5m")
	t.Setenv("TOKEN_LIMIT", "4000")
	t.Setenv("JOB_WORKERS", "0")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := loadConfig(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLMProvider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLMModel)
	assert.Equal(t, "sk-test", cfg.apiKey())
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 4000, cfg.TokenLimit)
	assert.Equal(t, 1, cfg.JobWorkers, "at least one worker")
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm_provider: ollama\nllm_model: llama3\nretention_days: 30\n"), 0644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.LLMProvider)
	assert.Equal(t, "llama3", cfg.LLMModel)
	assert.Equal(t, 30, cfg.RetentionDays)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"unknown provider", map[string]string{"LLM_PROVIDER": "tongyi"}, "unsupported LLM provider"},
		{"unknown database", map[string]string{"DB_DRIVER": "mysql"}, "unsupported database driver"},
		{"temperature out of range", map[string]string{"LLM_TEMPERATURE": "3"}, "LLM_TEMPERATURE must be between 0 and 2"},
		{"negative temperature", map[string]string{"LLM_TEMPERATURE": "-0.5"}, "LLM_TEMPERATURE must be between 0 and 2"},
		{"auth without admin role", map[string]string{"AUTH_JWT_SECRET": "s3cret", "AUTH_ADMIN_ROLE": " "}, "AUTH_ADMIN_ROLE"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := loadConfig(viper.New())
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestLoadConfig_GatewayRequiresURL(t *testing.T) {
	v := viper.New()
	v.Set("llm_base_url", "")
	_, err := loadConfig(v)
	assert.ErrorContains(t, err, "LLM_BASE_URL")
}

func TestAPIKeySelection(t *testing.T) {
	cfg := &Config{LLMProvider: "googleai", LLMAPIKey: "shared"}
	assert.Equal(t, "shared", cfg.apiKey())

	cfg.GoogleAIAPIKey = "gemini"
	assert.Equal(t, "gemini", cfg.apiKey())

	cfg.LLMProvider = "ollama"
	assert.Equal(t, "not-needed", cfg.apiKey())

	cfg.LLMProvider = "gateway"
	assert.Equal(t, "shared", cfg.apiKey())
}

func TestInitLogger(t *testing.T) {
	assert.NoError(t, initLogger("warn"))
	assert.Error(t, initLogger("verbose"))
	assert.NoError(t, initLogger("info"))
}
