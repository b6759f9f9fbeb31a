package embedding

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/context-engine/config"
	"github.com/context-engine/models"
)

// Client generates fixed-dimension vectors. Documents and queries embed
// differently on providers that support asymmetric retrieval, hence the
// split interface.
type Client interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	ModelInfo() models.EmbeddingModelInfo
}

// NewClient selects the provider from configuration. A nil client (no
// provider, or missing credentials) leaves the engine in keyword-only mode;
// that is an operating state, not an error.
func NewClient(cfg config.EmbeddingConfig, log zerolog.Logger) (Client, error) {
	switch cfg.Provider {
	case "voyage":
		if cfg.VoyageKey == "" {
			log.Warn().Msg("voyage selected but VOYAGE_API_KEY is empty; running keyword-only")
			return nil, nil
		}
		return NewVoyageClient(cfg, log), nil
	case "gemini":
		if cfg.GeminiKey == "" {
			log.Warn().Msg("gemini selected but GEMINI_API_KEY is empty; running keyword-only")
			return nil, nil
		}
		return NewGeminiClient(cfg, log)
	case "mock":
		return NewMockClient(cfg.Dimensions), nil
	case "", "none":
		log.Warn().Msg("no embedding provider configured; running keyword-only")
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}
