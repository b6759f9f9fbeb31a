package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/context-engine/auth"
	"github.com/context-engine/mcp"
	"github.com/context-engine/models"
)

type fakeValidator struct {
	ctx *auth.Context
	err error
}

func (f *fakeValidator) Validate(_ context.Context, _ string) (*auth.Context, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ctx, nil
}

func gatewayRouter(gw *MCPGateway) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Any("/mcp", gw.Handle)
	return router
}

func newTestGateway(t *testing.T, validator tokenValidator, corsMode string, origins []string) (*MCPGateway, *mcp.Store) {
	t.Helper()
	store := mcp.NewStore(0, zerolog.Nop())
	factory := mcp.NewServerFactory(nil, nil, nil, "test", zerolog.Nop())
	return NewMCPGateway(store, factory, validator, corsMode, origins, zerolog.Nop()), store
}

func mcpRequest(router *gin.Engine, method, token, sessionID string, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, "/mcp", reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if sessionID != "" {
		req.Header.Set(sessionHeader, sessionID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestMCPGatewayCORS(t *testing.T) {
	orgID := uuid.New()
	validator := &fakeValidator{ctx: &auth.Context{Kind: auth.KindTenant, OrgID: orgID, Scopes: []models.Scope{models.ScopeComponentRead}}}

	t.Run("wildcard preflight", func(t *testing.T) {
		gw, _ := newTestGateway(t, validator, "wildcard", nil)
		router := gatewayRouter(gw)

		req := httptest.NewRequest(http.MethodOptions, "/mcp", nil)
		req.Header.Set("Origin", "https://anywhere.example")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), sessionHeader)
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
	})

	t.Run("list mode echoes allowed origin", func(t *testing.T) {
		gw, _ := newTestGateway(t, validator, "list", []string{"https://app.example.com"})
		router := gatewayRouter(gw)

		req := httptest.NewRequest(http.MethodOptions, "/mcp", nil)
		req.Header.Set("Origin", "https://app.example.com")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("list mode omits disallowed origin", func(t *testing.T) {
		gw, _ := newTestGateway(t, validator, "list", []string{"https://app.example.com"})
		router := gatewayRouter(gw)

		req := httptest.NewRequest(http.MethodOptions, "/mcp", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestMCPGatewayAuth(t *testing.T) {
	orgID := uuid.New()

	t.Run("missing header", func(t *testing.T) {
		gw, _ := newTestGateway(t, &fakeValidator{err: auth.ErrUnauthorized}, "wildcard", nil)
		router := gatewayRouter(gw)

		w := mcpRequest(router, http.MethodPost, "", "", `{}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "-32001")
		assert.Contains(t, w.Body.String(), "Authorization header required")
	})

	t.Run("invalid credentials", func(t *testing.T) {
		gw, _ := newTestGateway(t, &fakeValidator{err: auth.ErrUnauthorized}, "wildcard", nil)
		router := gatewayRouter(gw)

		w := mcpRequest(router, http.MethodPost, "ce_bogus", "", `{}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid or expired credentials")
	})

	t.Run("platform token lacks tenant scope", func(t *testing.T) {
		validator := &fakeValidator{ctx: &auth.Context{Kind: auth.KindPlatform, Scopes: []models.Scope{models.ScopePlatformAdmin}}}
		gw, _ := newTestGateway(t, validator, "wildcard", nil)
		router := gatewayRouter(gw)

		w := mcpRequest(router, http.MethodPost, "cep_platform", "", `{}`)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "component:read")
	})

	t.Run("tenant key without component:read", func(t *testing.T) {
		validator := &fakeValidator{ctx: &auth.Context{Kind: auth.KindTenant, OrgID: orgID, Scopes: []models.Scope{models.ScopeComponentWrite}}}
		gw, _ := newTestGateway(t, validator, "wildcard", nil)
		router := gatewayRouter(gw)

		w := mcpRequest(router, http.MethodPost, "ce_writeonly", "", `{}`)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestMCPGatewayNewSessionRejectsBadJSON(t *testing.T) {
	orgID := uuid.New()
	validator := &fakeValidator{ctx: &auth.Context{Kind: auth.KindTenant, OrgID: orgID, Scopes: []models.Scope{models.ScopeComponentRead}}}
	gw, store := newTestGateway(t, validator, "wildcard", nil)
	router := gatewayRouter(gw)

	w := mcpRequest(router, http.MethodPost, "ce_valid", "", `{"jsonrpc": "2.0", "meth`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "-32700")
	assert.Equal(t, 0, store.Len())
}

func TestMCPGatewaySessionRouting(t *testing.T) {
	orgID := uuid.New()
	otherOrg := uuid.New()
	validator := &fakeValidator{ctx: &auth.Context{Kind: auth.KindTenant, OrgID: orgID, Scopes: []models.Scope{models.ScopeComponentRead}}}

	t.Run("GET without session header", func(t *testing.T) {
		gw, _ := newTestGateway(t, validator, "wildcard", nil)
		router := gatewayRouter(gw)

		w := mcpRequest(router, http.MethodGet, "ce_valid", "", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "-32000")
	})

	t.Run("unknown session", func(t *testing.T) {
		gw, _ := newTestGateway(t, validator, "wildcard", nil)
		router := gatewayRouter(gw)

		w := mcpRequest(router, http.MethodGet, "ce_valid", "does-not-exist", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "session not found or expired")
	})

	t.Run("foreign session", func(t *testing.T) {
		gw, store := newTestGateway(t, validator, "wildcard", nil)
		router := gatewayRouter(gw)
		store.Put(&mcp.Session{ID: "sess-foreign", OrgID: otherOrg})

		w := mcpRequest(router, http.MethodGet, "ce_valid", "sess-foreign", "")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "another organization")
	})

	t.Run("owned session is delegated", func(t *testing.T) {
		gw, store := newTestGateway(t, validator, "wildcard", nil)
		router := gatewayRouter(gw)

		delegated := false
		store.Put(&mcp.Session{
			ID:    "sess-owned",
			OrgID: orgID,
			Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				delegated = true
				w.WriteHeader(http.StatusOK)
			}),
		})

		w := mcpRequest(router, http.MethodPost, "ce_valid", "sess-owned", `{"jsonrpc":"2.0","method":"ping","id":1}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, delegated)
		assert.Equal(t, 1, store.Len())
	})

	t.Run("DELETE removes the session", func(t *testing.T) {
		gw, store := newTestGateway(t, validator, "wildcard", nil)
		router := gatewayRouter(gw)

		store.Put(&mcp.Session{
			ID:    "sess-done",
			OrgID: orgID,
			Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}),
		})
		require.Equal(t, 1, store.Len())

		w := mcpRequest(router, http.MethodDelete, "ce_valid", "sess-done", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 0, store.Len())
	})
}
