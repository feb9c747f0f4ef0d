package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tmc/langchaingo/llms"
)

// unsetTemperature marks call options without a temperature so that an
// explicit 0 is still sent upstream.
const unsetTemperature = -1

// resolveCallOptions applies options over defaults with no temperature set.
func resolveCallOptions(options []llms.CallOption) llms.CallOptions {
	opts := llms.CallOptions{Temperature: unsetTemperature}
	for _, opt := range options {
		opt(&opts)
	}
	return opts
}

// GatewayError is a non-2xx reply from the chat-completion gateway.
type GatewayError struct {
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway returned status %d: %s", e.StatusCode, e.Body)
}

// GatewayProvider implements llms.Model for OpenAI-compatible chat completion
// gateways. Unlike the langchaingo openai client it keeps the upstream status
// code, which callers need to tell rate limits from exhausted credits.
type GatewayProvider struct {
	endpoint string
	model    string
	client   *retryablehttp.Client
}

type gatewayMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type gatewayResponseFormat struct {
	Type string `json:"type"`
}

type gatewayRequest struct {
	Model          string                 `json:"model"`
	Messages       []gatewayMessage       `json:"messages"`
	Temperature    *float64               `json:"temperature,omitempty"`
	MaxTokens      int                    `json:"max_tokens,omitempty"`
	ResponseFormat *gatewayResponseFormat `json:"response_format,omitempty"`
}

type gatewayResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// NewGatewayProvider creates a provider for baseURL (".../v1"). Server errors and
// transport failures are retried httpRetries times; 4xx replies never are.
func NewGatewayProvider(baseURL, apiKey, model string, httpRetries int, timeout time.Duration) (*GatewayProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gateway API key is not configured")
	}
	if baseURL == "" {
		return nil, fmt.Errorf("gateway base URL is not configured")
	}

	client := retryablehttp.NewClient()
	client.RetryMax = httpRetries
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.Logger = log
	client.HTTPClient = NewHttpClientWithBearerTransport(apiKey, map[string]string{
		"Content-Type": "application/json",
	})
	client.HTTPClient.Timeout = timeout
	client.CheckRetry = gatewayRetryPolicy
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &GatewayProvider{
		endpoint: strings.TrimRight(baseURL, "/") + "/chat/completions",
		model:    model,
		client:   client,
	}, nil
}

// gatewayRetryPolicy retries only what another attempt can fix.
func gatewayRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err == nil && resp != nil && resp.StatusCode < http.StatusInternalServerError {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

func gatewayRole(role llms.ChatMessageType) string {
	switch role {
	case llms.ChatMessageTypeSystem:
		return "system"
	case llms.ChatMessageTypeAI:
		return "assistant"
	default:
		return "user"
	}
}

// GenerateContent implements llms.Model.
func (p *GatewayProvider) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := resolveCallOptions(options)

	reqBody := gatewayRequest{
		Model:     p.model,
		MaxTokens: opts.MaxTokens,
	}
	if opts.Model != "" {
		reqBody.Model = opts.Model
	}
	if opts.Temperature >= 0 {
		temperature := opts.Temperature
		reqBody.Temperature = &temperature
	}
	if opts.JSONMode {
		reqBody.ResponseFormat = &gatewayResponseFormat{Type: "json_object"}
	}

	for _, msg := range messages {
		var text strings.Builder
		for _, part := range msg.Parts {
			if tc, ok := part.(llms.TextContent); ok {
				text.WriteString(tc.Text)
			}
		}
		reqBody.Messages = append(reqBody.Messages, gatewayMessage{
			Role:    gatewayRole(msg.Role),
			Content: text.String(),
		})
	}
	if len(reqBody.Messages) == 0 {
		return nil, fmt.Errorf("no prompt provided")
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &GatewayError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed gatewayResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("gateway returned no choices")
	}

	choice := parsed.Choices[0]
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{
				Content:    choice.Message.Content,
				StopReason: choice.FinishReason,
				GenerationInfo: map[string]any{
					"PromptTokens":     parsed.Usage.PromptTokens,
					"CompletionTokens": parsed.Usage.CompletionTokens,
					"TotalTokens":      parsed.Usage.TotalTokens,
				},
			},
		},
	}, nil
}

// Call implements llms.Model.
func (p *GatewayProvider) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, p, prompt, options...)
}

// ProviderName returns the provider name
func (p *GatewayProvider) ProviderName() string {
	return "gateway"
}
