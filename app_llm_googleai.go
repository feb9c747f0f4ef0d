package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"google.golang.org/genai"
)

// GoogleAIProvider implements llms.Model for the Google Gemini API using google.golang.org/genai
type GoogleAIProvider struct {
	client *genai.Client
	model  string
}

// NewGoogleAIProvider creates a new GoogleAIProvider instance
func NewGoogleAIProvider(ctx context.Context, model string, apiKey string) (*GoogleAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("googleai API key is not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create googleai client: %w", err)
	}

	// The gateway addresses Gemini as "google/<model>"; the Gemini API does not.
	model = strings.TrimPrefix(model, "google/")

	return &GoogleAIProvider{
		client: client,
		model:  model,
	}, nil
}

// splitSystemPrompt separates system messages, which Gemini takes as a
// system instruction, from the conversation turns.
func splitSystemPrompt(messages []llms.MessageContent) (string, []*genai.Content) {
	var system []string
	var contents []*genai.Content

	for _, msg := range messages {
		var text strings.Builder
		for _, part := range msg.Parts {
			if tc, ok := part.(llms.TextContent); ok {
				text.WriteString(tc.Text)
			}
		}
		switch msg.Role {
		case llms.ChatMessageTypeSystem:
			system = append(system, text.String())
		case llms.ChatMessageTypeAI:
			contents = append(contents, genai.NewContentFromText(text.String(), genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(text.String(), genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}

// generateConfig maps langchaingo call options onto a Gemini request config.
func generateConfig(system string, opts llms.CallOptions) *genai.GenerateContentConfig {
	genConfig := &genai.GenerateContentConfig{}
	if system != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if opts.Temperature >= 0 {
		genConfig.Temperature = genai.Ptr(float32(opts.Temperature))
	}
	if opts.JSONMode {
		genConfig.ResponseMIMEType = "application/json"
	}
	return genConfig
}

/*
GenerateContent implements the llms.Model interface for GoogleAIProvider.
System messages become the system instruction, the rest are sent as turns.
*/
func (p *GoogleAIProvider) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if p.client == nil {
		return nil, fmt.Errorf("googleai client not initialized")
	}

	opts := resolveCallOptions(options)

	system, contents := splitSystemPrompt(messages)
	if len(contents) == 0 {
		return nil, fmt.Errorf("no prompt provided")
	}
	genConfig := generateConfig(system, opts)

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, genConfig)
	if err != nil {
		return nil, fmt.Errorf("googleai GenerateContent API error: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("googleai GenerateContent API returned empty response")
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("googleai GenerateContent API returned a candidate with empty text")
	}

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{
				Content: text,
			},
		},
	}, nil
}

// Call implements the llms.Model interface for compatibility with langchaingo.
func (p *GoogleAIProvider) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, p, prompt, options...)
}

// ProviderName returns the provider name
func (p *GoogleAIProvider) ProviderName() string {
	return "googleai"
}
