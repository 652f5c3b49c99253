package llmclient

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
	"go.uber.org/zap/zaptest"

	"github.com/droidmind/droidpilot/api/schemas"
	"github.com/droidmind/droidpilot/internal/config"
)

func openAIConfig(endpoint string) config.LLMModelConfig {
	return config.LLMModelConfig{
		Provider:   config.ProviderOpenAI,
		Endpoint:   endpoint,
		Model:      "gpt-4o-mini",
		APIKey:     "test-key",
		APITimeout: 5 * time.Second,
		MaxTokens:  256,
	}
}

func openAIResponse(content string) string {
	return `{"choices": [{"message": {"role": "assistant", "content": ` + mustJSON(content) + `}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}}`
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestOpenAIGenerate(t *testing.T) {
	var gotPayload chatRequestPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(openAIResponse(`{"action": "wait"}`)))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(openAIConfig(server.URL), zaptest.NewLogger(t))
	require.NoError(t, err)

	out, err := client.Generate(context.Background(), schemas.GenerationRequest{
		SystemPrompt: "you are a planner",
		UserPrompt:   "decide",
		Options:      schemas.GenerationOptions{ForceJSONFormat: true, Temperature: 0.2},
	})
	require.NoError(t, err)

	assert.Equal(t, `{"action": "wait"}`, out)
	assert.Equal(t, "gpt-4o-mini", gotPayload.Model)
	require.Len(t, gotPayload.Messages, 2)
	assert.Equal(t, "system", gotPayload.Messages[0].Role)
	assert.Equal(t, "you are a planner", gotPayload.Messages[0].Content)
	require.NotNil(t, gotPayload.ResponseFormat)
	assert.Equal(t, "json_object", gotPayload.ResponseFormat.Type)
	assert.InDelta(t, 0.2, gotPayload.Temperature, 1e-9)
}

func TestOpenAIRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error": "rate limited"}`))
			return
		}
		_, _ = w.Write([]byte(openAIResponse("ok")))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(openAIConfig(server.URL), zaptest.NewLogger(t))
	require.NoError(t, err)

	out, err := client.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "decide"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenAIDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "bad request"}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(openAIConfig(server.URL), zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "decide"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "4xx responses are permanent")
}

func TestOpenAIRequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIClient(config.LLMModelConfig{Provider: config.ProviderOpenAI}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestOpenAIIsTextOnly(t *testing.T) {
	client, err := NewOpenAIClient(openAIConfig("http://unused"), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, client.SupportsVision())
}
