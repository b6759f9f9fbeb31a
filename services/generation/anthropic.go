package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/context-engine/config"
)

const (
	anthropicBaseURL = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"
)

// AnthropicGenerator is the reference provider: the Messages API with a
// forced tool call.
type AnthropicGenerator struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	minDesc    int
	maxDesc    int
	httpClient *http.Client
	log        zerolog.Logger
}

func NewAnthropicGenerator(cfg config.LLMConfig, log zerolog.Logger) *AnthropicGenerator {
	maxTokens := cfg.GenerationMaxTokens
	if maxTokens <= 0 {
		maxTokens = cfg.MaxTokens
	}
	return &AnthropicGenerator{
		apiKey:    cfg.APIKey,
		baseURL:   anthropicBaseURL,
		model:     cfg.Model,
		maxTokens: maxTokens,
		minDesc:   cfg.DescriptionMinLen,
		maxDesc:   cfg.DescriptionMaxLen,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond,
		},
		log: log.With().Str("component", "generation").Str("provider", "anthropic").Logger(),
	}
}

func (g *AnthropicGenerator) Provider() string { return "anthropic" }
func (g *AnthropicGenerator) Model() string    { return g.model }

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model      string              `json:"model"`
	Messages   []anthropicMessage  `json:"messages"`
	MaxTokens  int                 `json:"max_tokens"`
	Tools      []anthropicTool     `json:"tools"`
	ToolChoice anthropicToolChoice `json:"tool_choice"`
}

type anthropicContent struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type anthropicResponse struct {
	ID         string             `json:"id"`
	Content    []anthropicContent `json:"content"`
	Model      string             `json:"model"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
	Error      *anthropicError    `json:"error,omitempty"`
}

func (g *AnthropicGenerator) GenerateMeta(ctx context.Context, req MetaRequest) (*MetaResult, error) {
	prompt := buildPrompt(req, g.minDesc, g.maxDesc)

	body := anthropicRequest{
		Model:      g.model,
		Messages:   []anthropicMessage{{Role: "user", Content: prompt}},
		MaxTokens:  g.maxTokens,
		Tools:      []anthropicTool{{Name: ToolName, Description: toolDescription, InputSchema: anthropicToolSchema(g.minDesc, g.maxDesc)}},
		ToolChoice: anthropicToolChoice{Type: "tool", Name: ToolName},
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, newError(g.Provider(), g.model, ErrorClassOther, fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, newError(g.Provider(), g.model, ErrorClassOther, fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("x-api-key", g.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, newError(g.Provider(), g.model, classifyTransportError(err), fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(g.Provider(), g.model, ErrorClassOther, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, newError(g.Provider(), g.model, classifyStatus(resp.StatusCode),
			fmt.Errorf("anthropic returned %d: %s", resp.StatusCode, truncateBody(respBody)))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, newError(g.Provider(), g.model, ErrorClassOther, fmt.Errorf("failed to parse response: %w", err))
	}
	if apiResp.Error != nil {
		return nil, newError(g.Provider(), g.model, ErrorClassOther,
			fmt.Errorf("anthropic API error: %s", apiResp.Error.Message))
	}

	var toolInput json.RawMessage
	for _, c := range apiResp.Content {
		if c.Type == "tool_use" && c.Name == ToolName {
			toolInput = c.Input
			break
		}
	}
	if toolInput == nil {
		return nil, newError(g.Provider(), g.model, ErrorClassOther,
			fmt.Errorf("response contains no %s tool call (stop_reason=%s)", ToolName, apiResp.StopReason))
	}

	meta, err := metaFromToolArgs(toolInput, req, g.minDesc, g.maxDesc)
	if err != nil {
		return nil, newError(g.Provider(), g.model, ErrorClassOther, err)
	}

	model := apiResp.Model
	if model == "" {
		model = g.model
	}
	g.log.Debug().
		Str("name", req.Name).
		Int("input_tokens", apiResp.Usage.InputTokens).
		Int("output_tokens", apiResp.Usage.OutputTokens).
		Msg("generated component metadata")

	return &MetaResult{
		Meta:  meta,
		Usage: &Usage{InputTokens: apiResp.Usage.InputTokens, OutputTokens: apiResp.Usage.OutputTokens},
		Model: model,
	}, nil
}

// classifyStatus buckets HTTP status codes into error classes.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorClassAuth
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status == http.StatusServiceUnavailable || status == 529:
		return ErrorClassUnavailable
	default:
		return ErrorClassOther
	}
}

// classifyTransportError distinguishes timeouts from other transport
// failures. Both context deadlines and client timeouts count.
func classifyTransportError(err error) ErrorClass {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassTimeout
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return ErrorClassTimeout
	}
	return ErrorClassOther
}

func truncateBody(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
