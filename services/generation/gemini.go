package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/context-engine/config"
)

// GeminiGenerator drives the same tool contract through the genai SDK's
// function calling.
type GeminiGenerator struct {
	client    *genai.Client
	model     string
	maxTokens int
	minDesc   int
	maxDesc   int
	timeout   time.Duration
	log       zerolog.Logger
}

func NewGeminiGenerator(cfg config.LLMConfig, log zerolog.Logger) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	maxTokens := cfg.GenerationMaxTokens
	if maxTokens <= 0 {
		maxTokens = cfg.MaxTokens
	}
	return &GeminiGenerator{
		client:    client,
		model:     cfg.Model,
		maxTokens: maxTokens,
		minDesc:   cfg.DescriptionMinLen,
		maxDesc:   cfg.DescriptionMaxLen,
		timeout:   time.Duration(cfg.TimeoutMs) * time.Millisecond,
		log:       log.With().Str("component", "generation").Str("provider", "gemini").Logger(),
	}
}

func (g *GeminiGenerator) Provider() string { return "gemini" }
func (g *GeminiGenerator) Model() string    { return g.model }

func (g *GeminiGenerator) GenerateMeta(ctx context.Context, req MetaRequest) (*MetaResult, error) {
	prompt := buildPrompt(req, g.minDesc, g.maxDesc)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(g.maxTokens),
		Tools: []*genai.Tool{{
			FunctionDeclarations: []*genai.FunctionDeclaration{{
				Name:        ToolName,
				Description: toolDescription,
				Parameters:  geminiToolSchema(),
			}},
		}},
		ToolConfig: &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode:                 genai.FunctionCallingConfigModeAny,
				AllowedFunctionNames: []string{ToolName},
			},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return nil, newError(g.Provider(), g.model, classifyGeminiError(err), fmt.Errorf("generate content failed: %w", err))
	}

	var call *genai.FunctionCall
	for _, fc := range resp.FunctionCalls() {
		if fc.Name == ToolName {
			call = fc
			break
		}
	}
	if call == nil {
		return nil, newError(g.Provider(), g.model, ErrorClassOther,
			fmt.Errorf("response contains no %s function call", ToolName))
	}

	raw, err := json.Marshal(call.Args)
	if err != nil {
		return nil, newError(g.Provider(), g.model, ErrorClassOther, fmt.Errorf("failed to encode function args: %w", err))
	}
	meta, err := metaFromToolArgs(raw, req, g.minDesc, g.maxDesc)
	if err != nil {
		return nil, newError(g.Provider(), g.model, ErrorClassOther, err)
	}

	var usage *Usage
	if resp.UsageMetadata != nil {
		usage = &Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
		g.log.Debug().
			Str("name", req.Name).
			Int("input_tokens", usage.InputTokens).
			Int("output_tokens", usage.OutputTokens).
			Msg("generated component metadata")
	}

	return &MetaResult{Meta: meta, Usage: usage, Model: g.model}, nil
}

// classifyGeminiError maps SDK failures onto error classes. The SDK wraps
// HTTP failures as genai.APIError carrying the status code.
func classifyGeminiError(err error) ErrorClass {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassTimeout
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.Code)
	}
	// Fall back to message sniffing for wrapped transport errors.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "deadline") || strings.Contains(msg, "timeout"):
		return ErrorClassTimeout
	case strings.Contains(msg, "unauthenticated") || strings.Contains(msg, "permission"):
		return ErrorClassAuth
	case strings.Contains(msg, "resource exhausted") || strings.Contains(msg, "quota"):
		return ErrorClassRateLimit
	case strings.Contains(msg, "unavailable") || strings.Contains(msg, "overloaded"):
		return ErrorClassUnavailable
	}
	return ErrorClassOther
}
