package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"google.golang.org/genai"
)

func TestSplitSystemPrompt(t *testing.T) {
	system, contents := splitSystemPrompt([]llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, "You are an analyst."),
		llms.TextParts(llms.ChatMessageTypeHuman, "Analyze this."),
		llms.TextParts(llms.ChatMessageTypeAI, "Done."),
	})

	assert.Equal(t, "You are an analyst.", system)
	require.Len(t, contents, 2)
	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, "Analyze this.", contents[0].Parts[0].Text)
	assert.Equal(t, genai.RoleModel, contents[1].Role)
}

func TestNewGoogleAIProvider(t *testing.T) {
	_, err := NewGoogleAIProvider(context.Background(), "google/gemini-2.5-flash", "")
	assert.ErrorContains(t, err, "API key is not configured")

	provider, err := NewGoogleAIProvider(context.Background(), "google/gemini-2.5-flash", "test-key")
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", provider.model)
	assert.Equal(t, "googleai", provider.ProviderName())
}

func TestGenerateConfig(t *testing.T) {
	t.Run("zero temperature is sent", func(t *testing.T) {
		cfg := generateConfig("You are an analyst.", resolveCallOptions([]llms.CallOption{llms.WithTemperature(0), llms.WithJSONMode()}))
		require.NotNil(t, cfg.Temperature)
		assert.Equal(t, float32(0), *cfg.Temperature)
		assert.Equal(t, "application/json", cfg.ResponseMIMEType)
		require.NotNil(t, cfg.SystemInstruction)
		assert.Equal(t, "You are an analyst.", cfg.SystemInstruction.Parts[0].Text)
	})

	t.Run("unset temperature is left to the model", func(t *testing.T) {
		cfg := generateConfig("", resolveCallOptions(nil))
		assert.Nil(t, cfg.Temperature)
		assert.Nil(t, cfg.SystemInstruction)
		assert.Empty(t, cfg.ResponseMIMEType)
	})
}
