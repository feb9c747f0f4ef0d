package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc, retries int) *GatewayProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := NewGatewayProvider(server.URL+"/v1/", "test-key", "google/gemini-2.5-flash", retries, 5*time.Second)
	require.NoError(t, err)
	return provider
}

func testMessages() []llms.MessageContent {
	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, "system prompt"),
		llms.TextParts(llms.ChatMessageTypeHuman, "Analyze this text for deception indicators:\n\nhello"),
	}
}

func TestGatewayProvider_GenerateContent(t *testing.T) {
	var got gatewayRequest
	provider := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"text_score\": 12}"},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`))
	}, 0)

	resp, err := provider.GenerateContent(context.Background(), testMessages(), llms.WithTemperature(0.7))
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, `{"text_score": 12}`, resp.Choices[0].Content)
	assert.Equal(t, 15, resp.Choices[0].GenerationInfo["TotalTokens"])

	assert.Equal(t, "google/gemini-2.5-flash", got.Model)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.7, *got.Temperature, 1e-9)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "Analyze this text for deception indicators:\n\nhello", got.Messages[1].Content)
	assert.Nil(t, got.ResponseFormat)
}

func TestGatewayProvider_Temperature(t *testing.T) {
	tests := []struct {
		name    string
		options []llms.CallOption
		want    *float64
	}{
		{name: "zero is sent", options: []llms.CallOption{llms.WithTemperature(0)}, want: new(float64)},
		{name: "unset is omitted", options: nil, want: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var raw map[string]interface{}
			provider := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
				require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
			}, 0)

			_, err := provider.GenerateContent(context.Background(), testMessages(), tc.options...)
			require.NoError(t, err)

			temperature, sent := raw["temperature"]
			if tc.want == nil {
				assert.False(t, sent)
				return
			}
			require.True(t, sent)
			assert.Equal(t, *tc.want, temperature)
		})
	}
}

func TestGatewayProvider_StatusErrors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		retries       int
		expectedCalls int32
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, retries: 2, expectedCalls: 1},
		{name: "credits exhausted", status: http.StatusPaymentRequired, retries: 2, expectedCalls: 1},
		{name: "server error is retried", status: http.StatusInternalServerError, retries: 1, expectedCalls: 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var calls int32
			provider := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tc.status)
				w.Write([]byte("upstream says no"))
			}, tc.retries)

			resp, err := provider.GenerateContent(context.Background(), testMessages())
			assert.Nil(t, resp)

			var gwErr *GatewayError
			require.ErrorAs(t, err, &gwErr)
			assert.Equal(t, tc.status, gwErr.StatusCode)
			assert.Equal(t, "upstream says no", gwErr.Body)
			assert.Equal(t, tc.expectedCalls, atomic.LoadInt32(&calls))
		})
	}
}

func TestGatewayProvider_RecoversAfterServerError(t *testing.T) {
	var calls int32
	provider := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}, 2)

	resp, err := provider.GenerateContent(context.Background(), testMessages())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Choices[0].Content)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGatewayProvider_NoChoices(t *testing.T) {
	provider := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}, 0)

	_, err := provider.GenerateContent(context.Background(), testMessages())
	assert.ErrorContains(t, err, "no choices")
}

func TestGatewayProvider_JSONMode(t *testing.T) {
	var got gatewayRequest
	provider := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
	}, 0)

	_, err := provider.GenerateContent(context.Background(), testMessages(), llms.WithJSONMode(), llms.WithModel("other-model"))
	require.NoError(t, err)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	assert.Equal(t, "other-model", got.Model)
}

func TestNewGatewayProvider_RequiresKey(t *testing.T) {
	_, err := NewGatewayProvider("http://localhost/v1", "", "model", 0, time.Second)
	assert.ErrorContains(t, err, "API key is not configured")
}
