package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/context-engine/config"
)

func testLLMConfig() config.LLMConfig {
	return config.LLMConfig{
		Provider:            "anthropic",
		APIKey:              "test-key",
		Model:               "claude-sonnet-4-20250514",
		MaxTokens:           4096,
		GenerationMaxTokens: 8192,
		TimeoutMs:           5000,
		DescriptionMinLen:   50,
		DescriptionMaxLen:   2000,
	}
}

func anthropicTestServer(t *testing.T, status int, body any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, ToolName, req.ToolChoice.Name)
		assert.Equal(t, "tool", req.ToolChoice.Type)
		require.Len(t, req.Tools, 1)
		assert.Equal(t, 8192, req.MaxTokens)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
}

func TestAnthropicGenerateMeta(t *testing.T) {
	toolInput := validToolPayload()
	srv := anthropicTestServer(t, http.StatusOK, map[string]any{
		"id":    "msg_test",
		"model": "claude-sonnet-4-20250514",
		"content": []map[string]any{
			{"type": "tool_use", "name": ToolName, "input": toolInput},
		},
		"stop_reason": "tool_use",
		"usage":       map[string]any{"input_tokens": 812, "output_tokens": 406},
	})
	defer srv.Close()

	g := NewAnthropicGenerator(testLLMConfig(), zerolog.Nop())
	g.baseURL = srv.URL

	result, err := g.GenerateMeta(context.Background(), metaRequest())
	require.NoError(t, err)

	assert.Equal(t, "Button", result.Meta.Name)
	assert.Equal(t, "claude-sonnet-4-20250514", result.Model)
	require.NotNil(t, result.Usage)
	assert.Equal(t, 812, result.Usage.InputTokens)
	assert.Equal(t, 406, result.Usage.OutputTokens)
}

func TestAnthropicErrorClasses(t *testing.T) {
	cases := []struct {
		name   string
		status int
		class  ErrorClass
	}{
		{"unauthorized", http.StatusUnauthorized, ErrorClassAuth},
		{"forbidden", http.StatusForbidden, ErrorClassAuth},
		{"rate limited", http.StatusTooManyRequests, ErrorClassRateLimit},
		{"service unavailable", http.StatusServiceUnavailable, ErrorClassUnavailable},
		{"overloaded", 529, ErrorClassUnavailable},
		{"server error", http.StatusInternalServerError, ErrorClassOther},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":{"type":"test","message":"nope"}}`))
			}))
			defer srv.Close()

			g := NewAnthropicGenerator(testLLMConfig(), zerolog.Nop())
			g.baseURL = srv.URL

			_, err := g.GenerateMeta(context.Background(), metaRequest())
			require.Error(t, err)

			var genErr *Error
			require.ErrorAs(t, err, &genErr)
			assert.Equal(t, tc.class, genErr.Class)
			assert.Equal(t, "anthropic", genErr.Provider)
		})
	}
}

func TestAnthropicNoToolCall(t *testing.T) {
	srv := anthropicTestServer(t, http.StatusOK, map[string]any{
		"id":          "msg_test",
		"model":       "claude-sonnet-4-20250514",
		"content":     []map[string]any{{"type": "text", "text": "I refuse."}},
		"stop_reason": "end_turn",
		"usage":       map[string]any{"input_tokens": 10, "output_tokens": 4},
	})
	defer srv.Close()

	g := NewAnthropicGenerator(testLLMConfig(), zerolog.Nop())
	g.baseURL = srv.URL

	_, err := g.GenerateMeta(context.Background(), metaRequest())
	require.Error(t, err)

	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, ErrorClassOther, genErr.Class)
	assert.Contains(t, genErr.Error(), "no generate_component_metadata tool call")
}

func TestNewGeneratorProviderSelection(t *testing.T) {
	t.Run("anthropic", func(t *testing.T) {
		g, err := NewGenerator(testLLMConfig(), zerolog.Nop())
		require.NoError(t, err)
		assert.Equal(t, "anthropic", g.Provider())
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := testLLMConfig()
		cfg.Provider = "openai"
		_, err := NewGenerator(cfg, zerolog.Nop())
		assert.Error(t, err)
	})
}
