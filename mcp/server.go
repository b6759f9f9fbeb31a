// Package mcp exposes the component knowledge base over the Model Context
// Protocol. Every session gets its own server instance with tools and
// resources closed over the session's org, so cross-tenant reads are
// impossible by construction. The session store ties transport-assigned
// session ids back to the org that opened them.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/context-engine/models"
	"github.com/context-engine/services"
)

const serverName = "context-engine"

// ServerFactory builds the per-session MCP servers.
type ServerFactory struct {
	components services.ComponentService
	search     services.SearchService
	index      services.IndexService
	version    string
	log        zerolog.Logger
}

func NewServerFactory(components services.ComponentService, search services.SearchService, index services.IndexService, version string, log zerolog.Logger) *ServerFactory {
	return &ServerFactory{
		components: components,
		search:     search,
		index:      index,
		version:    version,
		log:        log.With().Str("component", "mcp_server").Logger(),
	}
}

// NewSessionHandler returns a fresh per-org server wrapped in a stateful
// streamable HTTP transport. The transport assigns the session id during the
// initialize round-trip and echoes it in the Mcp-Session-Id header.
func (f *ServerFactory) NewSessionHandler(orgID uuid.UUID) (*server.MCPServer, http.Handler) {
	s := server.NewMCPServer(
		serverName,
		f.version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)
	f.registerTools(s, orgID)
	f.registerResources(s, orgID)
	return s, server.NewStreamableHTTPServer(s, server.WithStateful(true))
}

func (f *ServerFactory) registerTools(s *server.MCPServer, orgID uuid.UUID) {
	searchTool := mcpgo.NewTool("search_components",
		mcpgo.WithDescription(`Search the component library by natural-language query.

Modes: hybrid (default) blends keyword and semantic rankings, keyword matches
component names and descriptions only, semantic ranks by embedding similarity.`),
		mcpgo.WithString("query",
			mcpgo.Required(),
			mcpgo.Description("Search text, up to 500 characters"),
		),
		mcpgo.WithString("mode",
			mcpgo.Description("hybrid, keyword or semantic (default hybrid)"),
		),
		mcpgo.WithNumber("limit",
			mcpgo.Description("Maximum results, 1-50 (default 10)"),
		),
		mcpgo.WithString("framework",
			mcpgo.Description("Restrict results to one framework, e.g. react"),
		),
	)
	s.AddTool(searchTool, f.handleSearchComponents(orgID))

	similarTool := mcpgo.NewTool("find_similar_components",
		mcpgo.WithDescription(`Find components semantically similar to a known one.

Requires the embedding provider; the reference component must have a built
manifest. Useful for "what else is like Dialog" style questions.`),
		mcpgo.WithString("identifier",
			mcpgo.Required(),
			mcpgo.Description("Component id, slug or name"),
		),
		mcpgo.WithNumber("limit",
			mcpgo.Description("Maximum results, 1-20 (default 10)"),
		),
		mcpgo.WithNumber("minScore",
			mcpgo.Description("Minimum similarity between 0 and 1 (default 0.5)"),
		),
		mcpgo.WithString("framework",
			mcpgo.Description("Restrict results to one framework"),
		),
	)
	s.AddTool(similarTool, f.handleFindSimilar(orgID))

	getTool := mcpgo.NewTool("get_component",
		mcpgo.WithDescription("Fetch one component with its full manifest by id, slug or name."),
		mcpgo.WithString("identifier",
			mcpgo.Required(),
			mcpgo.Description("Component id, slug or name"),
		),
	)
	s.AddTool(getTool, f.handleGetComponent(orgID))

	statsTool := mcpgo.NewTool("get_index_stats",
		mcpgo.WithDescription("Report indexing progress: component counts by embedding status, chunk counts by type, and the embedding model in use."),
	)
	s.AddTool(statsTool, f.handleIndexStats(orgID))
}

func (f *ServerFactory) handleSearchComponents(orgID uuid.UUID) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil {
			return mcpgo.NewToolResultError("query parameter is required"), nil
		}

		req := models.SearchRequest{Query: query}
		if mode := request.GetString("mode", ""); mode != "" {
			req.Mode = models.SearchMode(mode)
		}
		if limit := request.GetFloat("limit", 0); limit > 0 {
			req.Limit = int(limit)
		}
		if fw := request.GetString("framework", ""); fw != "" {
			framework := models.Framework(fw)
			req.Framework = &framework
		}

		resp, err := f.search.Search(ctx, orgID, req)
		if err != nil {
			return f.toolError("search_components", err), nil
		}
		return toolJSON(resp)
	}
}

func (f *ServerFactory) handleFindSimilar(orgID uuid.UUID) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		identifier, err := request.RequireString("identifier")
		if err != nil {
			return mcpgo.NewToolResultError("identifier parameter is required"), nil
		}

		req := models.SimilarRequest{Identifier: identifier}
		if limit := request.GetFloat("limit", 0); limit > 0 {
			req.Limit = int(limit)
		}
		if minScore := request.GetFloat("minScore", -1); minScore >= 0 {
			req.MinScore = &minScore
		}
		if fw := request.GetString("framework", ""); fw != "" {
			framework := models.Framework(fw)
			req.Framework = &framework
		}

		resp, err := f.search.SimilarComponents(ctx, orgID, req)
		if err != nil {
			return f.toolError("find_similar_components", err), nil
		}
		return toolJSON(resp)
	}
}

// componentDetail is the tool/resource projection of a component row. The
// raw row also carries extraction and generation payloads that only the
// pipeline cares about; they stay out of model context.
type componentDetail struct {
	ComponentID     uuid.UUID              `json:"componentId"`
	Slug            string                 `json:"slug"`
	Name            string                 `json:"name"`
	Framework       models.Framework       `json:"framework"`
	Version         string                 `json:"version,omitempty"`
	FilePath        string                 `json:"filePath,omitempty"`
	Visibility      models.Visibility      `json:"visibility"`
	EmbeddingStatus models.EmbeddingStatus `json:"embeddingStatus"`
	Manifest        json.RawMessage        `json:"manifest,omitempty"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

func (f *ServerFactory) handleGetComponent(orgID uuid.UUID) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		identifier, err := request.RequireString("identifier")
		if err != nil {
			return mcpgo.NewToolResultError("identifier parameter is required"), nil
		}

		comp, err := f.resolveComponent(ctx, orgID, identifier)
		if err != nil {
			return f.toolError("get_component", err), nil
		}

		detail := componentDetail{
			ComponentID:     comp.ID,
			Slug:            comp.Slug,
			Name:            comp.Name,
			Framework:       comp.Framework,
			Version:         comp.Version,
			FilePath:        comp.FilePath,
			Visibility:      comp.Visibility,
			EmbeddingStatus: comp.EmbeddingStatus,
			CreatedAt:       comp.CreatedAt,
			UpdatedAt:       comp.UpdatedAt,
		}
		if len(comp.Manifest) > 0 {
			detail.Manifest = json.RawMessage(comp.Manifest)
		}
		return toolJSON(detail)
	}
}

func (f *ServerFactory) handleIndexStats(orgID uuid.UUID) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		stats, err := f.index.GetIndexStats(ctx, orgID)
		if err != nil {
			return f.toolError("get_index_stats", err), nil
		}
		return toolJSON(stats)
	}
}

func (f *ServerFactory) registerResources(s *server.MCPServer, orgID uuid.UUID) {
	catalog := mcpgo.NewResource(
		"context://components",
		"Component catalog",
		mcpgo.WithResourceDescription("Every component with a built manifest: slug, name, framework, description and indexing status"),
		mcpgo.WithMIMEType("application/json"),
	)
	s.AddResource(catalog, f.readCatalog(orgID))

	stats := mcpgo.NewResource(
		"context://stats",
		"Index statistics",
		mcpgo.WithResourceDescription("Component counts by embedding status and chunk counts by type"),
		mcpgo.WithMIMEType("application/json"),
	)
	s.AddResource(stats, f.readStats(orgID))

	detail := mcpgo.NewResourceTemplate(
		"component://detail/{slug}",
		"Component manifest",
		mcpgo.WithTemplateDescription("Full manifest for one component, addressed by slug"),
		mcpgo.WithTemplateMIMEType("application/json"),
	)
	s.AddResourceTemplate(detail, f.readManifestResource(orgID, "component://detail/", nil))

	props := mcpgo.NewResourceTemplate(
		"component://props/{slug}",
		"Component props",
		mcpgo.WithTemplateDescription("Categorized props for one component"),
		mcpgo.WithTemplateMIMEType("application/json"),
	)
	s.AddResourceTemplate(props, f.readManifestResource(orgID, "component://props/", func(m *models.AIManifest) any {
		return m.Props
	}))

	examples := mcpgo.NewResourceTemplate(
		"component://examples/{slug}",
		"Component examples",
		mcpgo.WithTemplateDescription("Usage examples for one component"),
		mcpgo.WithTemplateMIMEType("application/json"),
	)
	s.AddResourceTemplate(examples, f.readManifestResource(orgID, "component://examples/", func(m *models.AIManifest) any {
		return m.Examples
	}))

	guidance := mcpgo.NewResourceTemplate(
		"component://guidance/{slug}",
		"Component guidance",
		mcpgo.WithTemplateDescription("When-to-use guidance, accessibility notes and patterns for one component"),
		mcpgo.WithTemplateMIMEType("application/json"),
	)
	s.AddResourceTemplate(guidance, f.readManifestResource(orgID, "component://guidance/", func(m *models.AIManifest) any {
		return m.Guidance
	}))
}

type catalogEntry struct {
	Slug        string                 `json:"slug"`
	Name        string                 `json:"name"`
	Framework   models.Framework       `json:"framework"`
	Description string                 `json:"description,omitempty"`
	Status      models.EmbeddingStatus `json:"embeddingStatus"`
}

func (f *ServerFactory) readCatalog(orgID uuid.UUID) server.ResourceHandlerFunc {
	return func(ctx context.Context, request mcpgo.ReadResourceRequest) ([]mcpgo.ResourceContents, error) {
		summaries, err := f.components.FindAllManifests(ctx, orgID, models.ManifestFilter{Limit: 100})
		if err != nil {
			return nil, fmt.Errorf("failed to list components: %w", err)
		}

		entries := make([]catalogEntry, 0, len(summaries))
		for _, summary := range summaries {
			entry := catalogEntry{
				Slug:      summary.Slug,
				Name:      summary.Name,
				Framework: summary.Framework,
				Status:    summary.Status,
			}
			if manifest, err := models.ConvertFromJSON[models.AIManifest](summary.Manifest); err == nil {
				entry.Description = manifest.Description
			}
			entries = append(entries, entry)
		}

		return jsonResource(request.Params.URI, map[string]any{
			"components": entries,
			"total":      len(entries),
		})
	}
}

func (f *ServerFactory) readStats(orgID uuid.UUID) server.ResourceHandlerFunc {
	return func(ctx context.Context, request mcpgo.ReadResourceRequest) ([]mcpgo.ResourceContents, error) {
		stats, err := f.index.GetIndexStats(ctx, orgID)
		if err != nil {
			return nil, fmt.Errorf("failed to load index stats: %w", err)
		}
		return jsonResource(request.Params.URI, stats)
	}
}

// readManifestResource serves one slice of a component's manifest. A nil
// project func serves the stored manifest verbatim.
func (f *ServerFactory) readManifestResource(orgID uuid.UUID, prefix string, project func(*models.AIManifest) any) server.ResourceTemplateHandlerFunc {
	return func(ctx context.Context, request mcpgo.ReadResourceRequest) ([]mcpgo.ResourceContents, error) {
		slug := strings.TrimPrefix(request.Params.URI, prefix)
		if slug == "" || slug == request.Params.URI {
			return nil, fmt.Errorf("invalid resource uri: %s", request.Params.URI)
		}

		comp, err := f.components.GetComponentBySlug(ctx, orgID, slug)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				return nil, fmt.Errorf("component not found: %s", slug)
			}
			return nil, fmt.Errorf("failed to load component %s: %w", slug, err)
		}
		if len(comp.Manifest) == 0 {
			return nil, fmt.Errorf("component %s has no manifest yet", slug)
		}

		if project == nil {
			return []mcpgo.ResourceContents{
				mcpgo.TextResourceContents{
					URI:      request.Params.URI,
					MIMEType: "application/json",
					Text:     string(comp.Manifest),
				},
			}, nil
		}

		manifest, err := models.ConvertFromJSON[models.AIManifest](comp.Manifest)
		if err != nil {
			return nil, fmt.Errorf("failed to decode manifest for %s: %w", slug, err)
		}
		return jsonResource(request.Params.URI, project(&manifest))
	}
}

func (f *ServerFactory) resolveComponent(ctx context.Context, orgID uuid.UUID, identifier string) (*models.Component, error) {
	if id, err := uuid.Parse(identifier); err == nil {
		return f.components.GetComponent(ctx, orgID, id)
	}
	comp, err := f.components.GetComponentBySlug(ctx, orgID, identifier)
	if errors.Is(err, services.ErrNotFound) {
		return f.components.GetComponentByName(ctx, orgID, identifier)
	}
	return comp, err
}

// toolError translates service failures into tool results the model can act
// on. Anything unexpected is logged and reported generically.
func (f *ServerFactory) toolError(tool string, err error) *mcpgo.CallToolResult {
	switch {
	case errors.Is(err, services.ErrValidation):
		return mcpgo.NewToolResultError(err.Error())
	case errors.Is(err, services.ErrNotFound):
		return mcpgo.NewToolResultError("component not found")
	case errors.Is(err, services.ErrNoManifest):
		return mcpgo.NewToolResultError("component has no manifest yet; run the build phase first")
	case errors.Is(err, services.ErrEmbeddingUnavailable):
		return mcpgo.NewToolResultError("semantic search is unavailable: no embedding provider is configured")
	default:
		f.log.Error().Err(err).Str("tool", tool).Msg("mcp tool failed")
		return mcpgo.NewToolResultError("internal error")
	}
}

func toolJSON(v any) (*mcpgo.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return mcpgo.NewToolResultText(string(data)), nil
}

func jsonResource(uri string, v any) ([]mcpgo.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode resource: %w", err)
	}
	return []mcpgo.ResourceContents{
		mcpgo.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
