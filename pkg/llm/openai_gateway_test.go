package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitly/pkg/llm"
)

func newOpenAIServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func chatCompletionBody(content string, prompt, completion int) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4o",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{
			"prompt_tokens":     prompt,
			"completion_tokens": completion,
			"total_tokens":      prompt + completion,
		},
	}
}

func TestOpenAIGateway_InvokeSuccess(t *testing.T) {
	var received map[string]any
	srv := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletionBody(`{"title":"x"}`, 1000, 1000))
	})

	gw := llm.NewOpenAIGateway("test-key", llm.WithBaseURL(srv.URL))

	res, err := gw.Invoke(context.Background(), "user-1",
		[]llm.Message{{Role: llm.RoleSystem, Content: "sys"}, {Role: llm.RoleUser, Content: "hi"}},
		llm.CallConfig{Model: "gpt-4o-mini", Temperature: 0, MaxOutputTokens: 100, StrictJSON: true})
	require.NoError(t, err)

	assert.Equal(t, `{"title":"x"}`, res.Content)
	assert.Equal(t, int64(2000), res.TokensUsed)
	assert.Equal(t, int64(10), res.ResourceCost)

	assert.Equal(t, "gpt-4o-mini", received["model"])
	assert.Equal(t, "user-1", received["user"])
	format, ok := received["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_object", format["type"])
}

func TestOpenAIGateway_CustomCostFormula(t *testing.T) {
	srv := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletionBody("text", 10, 10))
	})

	gw := llm.NewOpenAIGateway("k", llm.WithBaseURL(srv.URL), llm.WithCostFormula(llm.CostFormula{Minimum: 7, InputPer1K: 1}))

	res, err := gw.Invoke(context.Background(), "u", []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, llm.CallConfig{Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.ResourceCost)
}

func TestOpenAIGateway_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, llm.ErrProviderRejected},
		{"rate limited", http.StatusTooManyRequests, llm.ErrProviderRejected},
		{"server error", http.StatusInternalServerError, llm.ErrProviderRejected},
		{"request timeout", http.StatusRequestTimeout, llm.ErrTemporarilyUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"error"}}`))
			})

			gw := llm.NewOpenAIGateway("k", llm.WithBaseURL(srv.URL))
			_, err := gw.Invoke(context.Background(), "u", []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, llm.CallConfig{Model: "gpt-4o"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var gwErr *llm.GatewayError
			require.ErrorAs(t, err, &gwErr)
			assert.Equal(t, llm.ProviderOpenAI, gwErr.Provider)
		})
	}
}

func TestOpenAIGateway_TimeoutIsTemporary(t *testing.T) {
	srv := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	gw := llm.NewOpenAIGateway("k", llm.WithBaseURL(srv.URL), llm.WithTimeout(50*time.Millisecond))
	_, err := gw.Invoke(context.Background(), "u", []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, llm.CallConfig{Model: "gpt-4o"})
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrTemporarilyUnavailable)
	assert.True(t, llm.IsRetryable(err))
}

func TestOpenAIGateway_EmptyChoicesIsUnclassified(t *testing.T) {
	srv := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		body := chatCompletionBody("", 1, 1)
		body["choices"] = []any{}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})

	gw := llm.NewOpenAIGateway("k", llm.WithBaseURL(srv.URL))
	_, err := gw.Invoke(context.Background(), "u", []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, llm.CallConfig{Model: "gpt-4o"})
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrUnclassified)
	assert.False(t, llm.IsRetryable(err))
}
