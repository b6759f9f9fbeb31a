package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/context-engine/auth"
	"github.com/context-engine/mcp"
	"github.com/context-engine/models"
)

// tokenValidator is the slice of auth.Validator the gateway needs.
type tokenValidator interface {
	Validate(ctx context.Context, token string) (*auth.Context, error)
}

const (
	sessionHeader  = "Mcp-Session-Id"
	protocolHeader = "MCP-Protocol-Version"

	jsonRPCParseError   = -32700
	jsonRPCSessionError = -32000
	jsonRPCAuthError    = -32001

	// Initialize payloads are tiny; anything near this size is garbage.
	maxInitializeBody = 4 << 20
)

// MCPGateway fronts the streamable HTTP transport. The order of operations
// is fixed: CORS headers go straight onto the response writer because the
// transport writes to it directly and bypasses gin's rendering; then auth;
// then session retrieval for requests that reference one.
type MCPGateway struct {
	store     *mcp.Store
	factory   *mcp.ServerFactory
	validator tokenValidator
	corsMode  string
	origins   []string
	log       zerolog.Logger
}

func NewMCPGateway(store *mcp.Store, factory *mcp.ServerFactory, validator tokenValidator, corsMode string, origins []string, log zerolog.Logger) *MCPGateway {
	return &MCPGateway{
		store:     store,
		factory:   factory,
		validator: validator,
		corsMode:  corsMode,
		origins:   origins,
		log:       log.With().Str("component", "mcp_gateway").Logger(),
	}
}

// Handle serves every method on /mcp.
func (g *MCPGateway) Handle(c *gin.Context) {
	w, r := c.Writer, c.Request

	g.writeCORS(w, r)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	authCtx, ok := g.authenticate(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodPost:
		g.handlePost(w, r, authCtx)
	case http.MethodGet, http.MethodDelete:
		g.handleExisting(w, r, authCtx)
	default:
		writeJSONRPCError(w, http.StatusMethodNotAllowed, jsonRPCSessionError, "method not allowed")
	}
}

func (g *MCPGateway) writeCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	switch {
	case g.corsMode == "wildcard":
		w.Header().Set("Access-Control-Allow-Origin", "*")
	case origin != "" && g.originAllowed(origin):
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, "+sessionHeader+", "+protocolHeader)
	w.Header().Set("Access-Control-Expose-Headers", sessionHeader+", "+protocolHeader)
}

func (g *MCPGateway) originAllowed(origin string) bool {
	for _, allowed := range g.origins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// authenticate requires a tenant key carrying component:read. Platform
// tokens never satisfy tenant scopes, so they are rejected here too.
func (g *MCPGateway) authenticate(w http.ResponseWriter, r *http.Request) (*auth.Context, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		writeJSONRPCError(w, http.StatusUnauthorized, jsonRPCAuthError, "Authorization header required")
		return nil, false
	}

	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	authCtx, err := g.validator.Validate(r.Context(), token)
	if err != nil {
		writeJSONRPCError(w, http.StatusUnauthorized, jsonRPCAuthError, "Invalid or expired credentials")
		return nil, false
	}
	if !authCtx.HasScope(models.ScopeComponentRead) {
		writeJSONRPCError(w, http.StatusForbidden, jsonRPCAuthError, "component:read scope required")
		return nil, false
	}
	return authCtx, true
}

// handlePost routes to an existing session when the header names one,
// otherwise bootstraps a new session around the initialize request.
func (g *MCPGateway) handlePost(w http.ResponseWriter, r *http.Request, authCtx *auth.Context) {
	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		g.createSession(w, r, authCtx)
		return
	}

	sess, err := g.store.Get(sessionID, authCtx.OrgID)
	if err != nil {
		g.writeSessionError(w, err)
		return
	}
	sess.Handler.ServeHTTP(w, r)
}

func (g *MCPGateway) createSession(w http.ResponseWriter, r *http.Request, authCtx *auth.Context) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxInitializeBody))
	if err != nil || !json.Valid(body) {
		writeJSONRPCError(w, http.StatusBadRequest, jsonRPCParseError, "request body is not valid JSON")
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	mcpServer, handler := g.factory.NewSessionHandler(authCtx.OrgID)
	handler.ServeHTTP(w, r)

	// The transport assigns an id only when the request was a valid
	// initialize; anything else stays unregistered and the pair is dropped.
	sessionID := w.Header().Get(sessionHeader)
	if sessionID == "" {
		return
	}

	g.store.Put(&mcp.Session{
		ID:      sessionID,
		OrgID:   authCtx.OrgID,
		Server:  mcpServer,
		Handler: handler,
	})
	g.log.Info().
		Str("session_id", sessionID).
		Str("org_id", authCtx.OrgID.String()).
		Msg("mcp session opened")
}

// handleExisting serves GET (notification stream) and DELETE (terminate)
// against a stored session after the ownership check.
func (g *MCPGateway) handleExisting(w http.ResponseWriter, r *http.Request, authCtx *auth.Context) {
	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		writeJSONRPCError(w, http.StatusBadRequest, jsonRPCSessionError, sessionHeader+" header required")
		return
	}

	sess, err := g.store.Get(sessionID, authCtx.OrgID)
	if err != nil {
		g.writeSessionError(w, err)
		return
	}

	sess.Handler.ServeHTTP(w, r)

	if r.Method == http.MethodDelete {
		g.store.Remove(sessionID)
		g.log.Info().Str("session_id", sessionID).Msg("mcp session closed")
	}
}

func (g *MCPGateway) writeSessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, mcp.ErrSessionForbidden) {
		writeJSONRPCError(w, http.StatusForbidden, jsonRPCAuthError, "session belongs to another organization")
		return
	}
	writeJSONRPCError(w, http.StatusNotFound, jsonRPCSessionError, "session not found or expired")
}

func writeJSONRPCError(w http.ResponseWriter, status, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"jsonrpc": "2.0",
		"id":      nil,
		"error":   map[string]any{"code": code, "message": message},
	})
}
