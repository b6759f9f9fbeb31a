package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/context-engine/config"
)

func TestNewClientSelection(t *testing.T) {
	log := zerolog.Nop()

	t.Run("voyage with key", func(t *testing.T) {
		c, err := NewClient(config.EmbeddingConfig{Provider: "voyage", VoyageKey: "vk", Model: "voyage-3.5", Dimensions: 1024}, log)
		require.NoError(t, err)
		require.NotNil(t, c)
		info := c.ModelInfo()
		assert.Equal(t, "voyage", info.Provider)
		assert.Equal(t, 1024, info.Dimensions)
	})

	t.Run("voyage without key degrades to nil", func(t *testing.T) {
		c, err := NewClient(config.EmbeddingConfig{Provider: "voyage"}, log)
		require.NoError(t, err)
		assert.Nil(t, c)
	})

	t.Run("no provider is keyword-only, not an error", func(t *testing.T) {
		c, err := NewClient(config.EmbeddingConfig{Provider: "none"}, log)
		require.NoError(t, err)
		assert.Nil(t, c)
	})

	t.Run("unknown provider fails", func(t *testing.T) {
		_, err := NewClient(config.EmbeddingConfig{Provider: "openai"}, log)
		assert.Error(t, err)
	})

	t.Run("mock", func(t *testing.T) {
		c, err := NewClient(config.EmbeddingConfig{Provider: "mock", Dimensions: 64}, log)
		require.NoError(t, err)
		require.NotNil(t, c)
		assert.Equal(t, "mock", c.ModelInfo().Provider)
	})
}

func TestVoyageClient(t *testing.T) {
	var gotInputTypes []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer vk", r.Header.Get("Authorization"))

		var req voyageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotInputTypes = append(gotInputTypes, req.InputType)

		// Return data deliberately out of order; index must win.
		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[len(req.Input)-1-i] = map[string]any{
				"object":    "embedding",
				"embedding": []float32{float32(i), 1, 0},
				"index":     i,
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]any{"total_tokens": 7},
		})
	}))
	defer srv.Close()

	c := NewVoyageClient(config.EmbeddingConfig{VoyageKey: "vk", Model: "voyage-3.5", Dimensions: 3, TimeoutMs: 5000}, zerolog.Nop())
	c.baseURL = srv.URL

	t.Run("batch embeds as documents and orders by index", func(t *testing.T) {
		vecs, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
		require.NoError(t, err)
		require.Len(t, vecs, 2)
		assert.Equal(t, float32(0), vecs[0][0])
		assert.Equal(t, float32(1), vecs[1][0])
		assert.Equal(t, "document", gotInputTypes[len(gotInputTypes)-1])
	})

	t.Run("query embeds as query", func(t *testing.T) {
		vec, err := c.EmbedQuery(context.Background(), "find a button")
		require.NoError(t, err)
		assert.Len(t, vec, 3)
		assert.Equal(t, "query", gotInputTypes[len(gotInputTypes)-1])
	})

	t.Run("empty batch short-circuits", func(t *testing.T) {
		vecs, err := c.EmbedBatch(context.Background(), nil)
		require.NoError(t, err)
		assert.Nil(t, vecs)
	})
}

func TestVoyageClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"detail":"rate limited"}`))
	}))
	defer srv.Close()

	c := NewVoyageClient(config.EmbeddingConfig{VoyageKey: "vk", Model: "voyage-3.5", TimeoutMs: 5000}, zerolog.Nop())
	c.baseURL = srv.URL

	_, err := c.EmbedBatch(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestMockClientDeterminism(t *testing.T) {
	c := NewMockClient(32)

	first, err := c.EmbedQuery(context.Background(), "button component")
	require.NoError(t, err)
	second, err := c.EmbedQuery(context.Background(), "button component")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := c.EmbedQuery(context.Background(), "completely different text about tables")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)

	t.Run("vectors are unit length", func(t *testing.T) {
		var sum float64
		for _, v := range first {
			sum += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
	})

	t.Run("batch matches single", func(t *testing.T) {
		vecs, err := c.EmbedBatch(context.Background(), []string{"button component"})
		require.NoError(t, err)
		require.Len(t, vecs, 1)
		assert.Equal(t, first, vecs[0])
	})
}
