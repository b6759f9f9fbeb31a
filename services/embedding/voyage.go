package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/context-engine/config"
	"github.com/context-engine/models"
)

const voyageBaseURL = "https://api.voyageai.com/v1"

// VoyageClient is the reference embedding provider. Voyage retrieval models
// are asymmetric: chunks embed with input_type=document, queries with
// input_type=query.
type VoyageClient struct {
	apiKey     string
	baseURL    string
	model      string
	dimensions int
	httpClient *http.Client
	log        zerolog.Logger
}

func NewVoyageClient(cfg config.EmbeddingConfig, log zerolog.Logger) *VoyageClient {
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &VoyageClient{
		apiKey:     cfg.VoyageKey,
		baseURL:    voyageBaseURL,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With().Str("component", "embedding").Str("provider", "voyage").Logger(),
	}
}

type voyageRequest struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type,omitempty"`
}

type voyageResponse struct {
	Object string `json:"object"`
	Data   []struct {
		Object    string    `json:"object"`
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *VoyageClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return c.embed(ctx, texts, "document")
}

func (c *VoyageClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.embed(ctx, []string{text}, "query")
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("no embedding data in response")
	}
	return vecs[0], nil
}

func (c *VoyageClient) ModelInfo() models.EmbeddingModelInfo {
	return models.EmbeddingModelInfo{Provider: "voyage", Model: c.model, Dimensions: c.dimensions}
}

func (c *VoyageClient) embed(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqBody := voyageRequest{Input: texts, Model: c.model, InputType: inputType}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("voyage API error (status %d): %s", resp.StatusCode, string(body))
	}

	var voyageResp voyageResponse
	if err := json.Unmarshal(body, &voyageResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(voyageResp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(voyageResp.Data))
	}

	// The API may return data out of order; index is authoritative.
	out := make([][]float32, len(texts))
	for _, d := range voyageResp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}

	c.log.Debug().
		Int("texts", len(texts)).
		Str("input_type", inputType).
		Int("total_tokens", voyageResp.Usage.TotalTokens).
		Msg("embedded batch")

	return out, nil
}
