package embedding

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/context-engine/config"
	"github.com/context-engine/models"
)

// GeminiClient embeds through the genai SDK with retrieval task types.
type GeminiClient struct {
	client     *genai.Client
	model      string
	dimensions int
	timeout    time.Duration
	log        zerolog.Logger
}

func NewGeminiClient(cfg config.EmbeddingConfig, log zerolog.Logger) (*GeminiClient, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.GeminiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	model := cfg.Model
	if model == "" || model == "voyage-3.5" {
		// The shared EMBEDDING_MODEL default targets voyage; swap in the
		// gemini equivalent when this provider is selected.
		model = "gemini-embedding-001"
	}
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GeminiClient{
		client:     client,
		model:      model,
		dimensions: cfg.Dimensions,
		timeout:    timeout,
		log:        log.With().Str("component", "embedding").Str("provider", "gemini").Logger(),
	}, nil
}

func (c *GeminiClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return c.embed(ctx, texts, genai.TaskTypeRetrievalDocument)
}

func (c *GeminiClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.embed(ctx, []string{text}, genai.TaskTypeRetrievalQuery)
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return vecs[0], nil
}

func (c *GeminiClient) ModelInfo() models.EmbeddingModelInfo {
	return models.EmbeddingModelInfo{Provider: "gemini", Model: c.model, Dimensions: c.dimensions}
}

func (c *GeminiClient) embed(ctx context.Context, texts []string, task genai.TaskType) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := c.client.Models.EmbedContent(ctx, c.model, contents, &genai.EmbedContentRequest{
		TaskType: task,
	})
	if err != nil {
		return nil, fmt.Errorf("genai embed failed: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}

	out := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		out[i] = c.fitDimensions(emb.Values)
	}

	c.log.Debug().Int("texts", len(texts)).Str("task", string(task)).Msg("embedded batch")
	return out, nil
}

// fitDimensions truncates Matryoshka-trained gemini vectors down to the
// deployment dimensionality and re-normalizes, so mixed-provider deployments
// share one vector column width.
func (c *GeminiClient) fitDimensions(vec []float32) []float32 {
	if c.dimensions <= 0 || len(vec) <= c.dimensions {
		return vec
	}
	out := make([]float32, c.dimensions)
	copy(out, vec[:c.dimensions])

	var sum float64
	for _, v := range out {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return out
	}
	norm := float32(1 / math.Sqrt(sum))
	for i := range out {
		out[i] *= norm
	}
	return out
}
