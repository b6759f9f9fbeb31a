package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/context-engine/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func tenantContext(orgID uuid.UUID, scopes ...models.Scope) *Context {
	return &Context{Kind: KindTenant, OrgID: orgID, ApiKeyID: uuid.New(), Scopes: scopes}
}

// injectContext stands in for RequireAuth in tests that only exercise the
// downstream guards.
func injectContext(authCtx *Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authCtx != nil {
			c.Set(ContextKey, authCtx)
		}
		c.Next()
	}
}

func performRequest(router *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	validator := NewValidator(nil, "test-secret", "cep_platform_token")

	router := gin.New()
	router.GET("/ping", RequireAuth(validator), func(c *gin.Context) {
		authCtx, ok := FromGinContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{})
			return
		}
		c.JSON(http.StatusOK, gin.H{"kind": string(authCtx.Kind)})
	})

	t.Run("missing header", func(t *testing.T) {
		w := performRequest(router, http.MethodGet, "/ping", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
	})

	t.Run("malformed token", func(t *testing.T) {
		w := performRequest(router, http.MethodGet, "/ping", "Bearer not-a-key")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("platform token with bearer prefix", func(t *testing.T) {
		w := performRequest(router, http.MethodGet, "/ping", "Bearer cep_platform_token")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "platform")
	})

	t.Run("platform token bare", func(t *testing.T) {
		w := performRequest(router, http.MethodGet, "/ping", "cep_platform_token")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("wrong platform token", func(t *testing.T) {
		w := performRequest(router, http.MethodGet, "/ping", "cep_wrong")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRequireOrgAccess(t *testing.T) {
	orgID := uuid.New()

	newRouter := func(authCtx *Context) *gin.Engine {
		router := gin.New()
		router.GET("/organizations/:orgId/ping", injectContext(authCtx), RequireOrgAccess(), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
		return router
	}

	t.Run("matching org", func(t *testing.T) {
		router := newRouter(tenantContext(orgID, models.ScopeComponentRead))
		w := performRequest(router, http.MethodGet, "/organizations/"+orgID.String()+"/ping", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("foreign org", func(t *testing.T) {
		router := newRouter(tenantContext(uuid.New(), models.ScopeComponentRead))
		w := performRequest(router, http.MethodGet, "/organizations/"+orgID.String()+"/ping", "")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("platform context cannot enter tenant routes", func(t *testing.T) {
		router := newRouter(&Context{Kind: KindPlatform, Scopes: []models.Scope{models.ScopePlatformAdmin}})
		w := performRequest(router, http.MethodGet, "/organizations/"+orgID.String()+"/ping", "")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("invalid org id in path", func(t *testing.T) {
		router := newRouter(tenantContext(orgID))
		w := performRequest(router, http.MethodGet, "/organizations/not-a-uuid/ping", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("no auth context", func(t *testing.T) {
		router := newRouter(nil)
		w := performRequest(router, http.MethodGet, "/organizations/"+orgID.String()+"/ping", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRequireScope(t *testing.T) {
	newRouter := func(authCtx *Context, scope models.Scope) *gin.Engine {
		router := gin.New()
		router.GET("/ping", injectContext(authCtx), RequireScope(scope), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
		return router
	}

	t.Run("direct scope", func(t *testing.T) {
		router := newRouter(tenantContext(uuid.New(), models.ScopeComponentRead), models.ScopeComponentRead)
		w := performRequest(router, http.MethodGet, "/ping", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("admin covers everything", func(t *testing.T) {
		router := newRouter(tenantContext(uuid.New(), models.ScopeAdmin), models.ScopeComponentDelete)
		w := performRequest(router, http.MethodGet, "/ping", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing scope", func(t *testing.T) {
		router := newRouter(tenantContext(uuid.New(), models.ScopeComponentRead), models.ScopeComponentWrite)
		w := performRequest(router, http.MethodGet, "/ping", "")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "component:write")
	})

	t.Run("platform context never satisfies tenant scopes", func(t *testing.T) {
		router := newRouter(&Context{Kind: KindPlatform, Scopes: []models.Scope{models.ScopePlatformAdmin}}, models.ScopeComponentRead)
		w := performRequest(router, http.MethodGet, "/ping", "")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestRequirePlatform(t *testing.T) {
	newRouter := func(authCtx *Context) *gin.Engine {
		router := gin.New()
		router.GET("/admin", injectContext(authCtx), RequirePlatform(), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
		return router
	}

	t.Run("platform context", func(t *testing.T) {
		router := newRouter(&Context{Kind: KindPlatform, Scopes: []models.Scope{models.ScopePlatformAdmin}})
		w := performRequest(router, http.MethodGet, "/admin", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("tenant context", func(t *testing.T) {
		router := newRouter(tenantContext(uuid.New(), models.ScopeAdmin))
		w := performRequest(router, http.MethodGet, "/admin", "")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
