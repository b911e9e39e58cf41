package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mikey/inbox-triage/internal/config"
	"github.com/mikey/inbox-triage/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) core.LLMClient {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.NewFromViper(config.NewEmptyViper())
	cfg.Set("openai.api_key", "sk-test")
	cfg.Set("openai.base_url", srv.URL+"/v1")

	client, err := NewFactory(cfg, zaptest.NewLogger(t)).CreateLLMClient()
	require.NoError(t, err)
	return client
}

func TestComplete(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body["model"])
		assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])
		messages := body["messages"].([]any)
		require.Len(t, messages, 2)
		assert.Equal(t, "system", messages[0].(map[string]any)["role"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"model": "gpt-4o-mini-2024-07-18",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"isSupport\":true}"}}],
			"usage": {"prompt_tokens": 120, "completion_tokens": 8, "total_tokens": 128}
		}`))
	})

	completion, err := client.Complete(context.Background(), core.CompletionRequest{
		System: "sys", Prompt: "classify", Temperature: 0.1, JSON: true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"isSupport":true}`, completion.Content)
	assert.Equal(t, "gpt-4o-mini-2024-07-18", completion.Model)
	assert.Equal(t, 120, completion.Usage.PromptTokens)
	assert.Equal(t, 8, completion.Usage.CompletionTokens)
}

func TestCompleteErrors(t *testing.T) {
	t.Run("rate limited", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"requests"}}`))
		})
		_, err := client.Complete(context.Background(), core.CompletionRequest{Prompt: "x"})
		var rl *core.RateLimitError
		assert.ErrorAs(t, err, &rl)
	})

	t.Run("server error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
		})
		_, err := client.Complete(context.Background(), core.CompletionRequest{Prompt: "x"})
		var pe *core.ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "openai", pe.Provider)
		assert.Equal(t, http.StatusInternalServerError, pe.StatusCode)
	})

	t.Run("no choices", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
		})
		_, err := client.Complete(context.Background(), core.CompletionRequest{Prompt: "x"})
		assert.ErrorIs(t, err, core.ErrEmptyResponse)
	})
}

func TestFactoryRequiresAPIKey(t *testing.T) {
	cfg := config.NewFromViper(config.NewEmptyViper())
	_, err := NewFactory(cfg, zaptest.NewLogger(t)).CreateLLMClient()
	assert.Error(t, err)
}
