package llmclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/droidmind/droidpilot/api/schemas"
	"github.com/droidmind/droidpilot/internal/config"
)

func geminiConfig(endpoint string) config.LLMModelConfig {
	return config.LLMModelConfig{
		Provider:   config.ProviderGemini,
		Endpoint:   endpoint,
		Model:      "gemini-2.0-flash",
		APIKey:     "test-key",
		APITimeout: 5 * time.Second,
		MaxTokens:  256,
	}
}

func TestGeminiGenerateWithScreenshot(t *testing.T) {
	png := []byte{0x89, 0x50, 0x4e, 0x47}

	var gotPayload geminiRequestPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		_, _ = w.Write([]byte(`{"candidates": [{"content": {"parts": [{"text": "{\"action\": \"back\"}"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 4, "totalTokenCount": 16}}`))
	}))
	defer server.Close()

	client, err := NewGeminiClient(geminiConfig(server.URL), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, client.SupportsVision())

	out, err := client.Generate(context.Background(), schemas.GenerationRequest{
		SystemPrompt: "you are a planner",
		UserPrompt:   "decide",
		ImagePNG:     png,
		Options:      schemas.GenerationOptions{ForceJSONFormat: true},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"action": "back"}`, out)

	require.Len(t, gotPayload.Contents, 1)
	require.Len(t, gotPayload.Contents[0].Parts, 2, "text part plus inline image part")
	assert.Equal(t, "decide", gotPayload.Contents[0].Parts[0].Text)
	require.NotNil(t, gotPayload.Contents[0].Parts[1].InlineData)
	assert.Equal(t, "image/png", gotPayload.Contents[0].Parts[1].InlineData.MimeType)
	assert.Equal(t, base64.StdEncoding.EncodeToString(png), gotPayload.Contents[0].Parts[1].InlineData.Data)
	require.NotNil(t, gotPayload.SystemInstruction)
	assert.Equal(t, "application/json", gotPayload.GenerationConfig.ResponseMimeType)
}

func TestGeminiSafetyBlockIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates": [{"content": {"parts": []}, "finishReason": "SAFETY"}]}`))
	}))
	defer server.Close()

	client, err := NewGeminiClient(geminiConfig(server.URL), zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "decide"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SAFETY")
}

func TestNewClientFactory(t *testing.T) {
	logger := zaptest.NewLogger(t)

	openai, err := NewClient(openAIConfig("http://unused"), logger)
	require.NoError(t, err)
	assert.False(t, openai.SupportsVision())

	gemini, err := NewClient(geminiConfig("http://unused"), logger)
	require.NoError(t, err)
	assert.True(t, gemini.SupportsVision())

	_, err = NewClient(config.LLMModelConfig{Provider: "mystery"}, logger)
	assert.Error(t, err)
}
