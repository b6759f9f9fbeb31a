package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/context-engine/models"
)

// ContextKey is where RequireAuth stores the authenticated *Context on the
// gin context.
const ContextKey = "auth_context"

// FromGinContext returns the identity RequireAuth attached to the request.
func FromGinContext(c *gin.Context) (*Context, bool) {
	v, ok := c.Get(ContextKey)
	if !ok {
		return nil, false
	}
	authCtx, ok := v.(*Context)
	return authCtx, ok
}

func abortAuth(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   gin.H{"code": code, "message": message},
	})
}

// RequireAuth validates the Authorization header and attaches the resulting
// identity. Both "Bearer ce_..." and a bare key are accepted.
func RequireAuth(validator *Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortAuth(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authorization header required")
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		authCtx, err := validator.Validate(c.Request.Context(), token)
		if err != nil {
			abortAuth(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired credentials")
			return
		}

		c.Set(ContextKey, authCtx)
		c.Next()
	}
}

// RequireOrgAccess pins the request to the org in the path: the orgId
// parameter must parse and must equal the authenticated org. Platform
// contexts have no org and are rejected here too.
func RequireOrgAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		authCtx, ok := FromGinContext(c)
		if !ok {
			abortAuth(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}

		orgID, err := uuid.Parse(c.Param("orgId"))
		if err != nil {
			abortAuth(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid organization id")
			return
		}
		if authCtx.Kind != KindTenant || authCtx.OrgID != orgID {
			abortAuth(c, http.StatusForbidden, "FORBIDDEN", "Access to this organization is not allowed")
			return
		}

		c.Next()
	}
}

// RequireScope guards one route with a tenant scope. Platform contexts never
// satisfy tenant scopes.
func RequireScope(scope models.Scope) gin.HandlerFunc {
	return func(c *gin.Context) {
		authCtx, ok := FromGinContext(c)
		if !ok {
			abortAuth(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}
		if !authCtx.HasScope(scope) {
			abortAuth(c, http.StatusForbidden, "FORBIDDEN", "Missing required scope: "+string(scope))
			return
		}

		c.Next()
	}
}

// RequirePlatform guards the admin surface.
func RequirePlatform() gin.HandlerFunc {
	return func(c *gin.Context) {
		authCtx, ok := FromGinContext(c)
		if !ok {
			abortAuth(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}
		if !authCtx.IsPlatform() {
			abortAuth(c, http.StatusForbidden, "FORBIDDEN", "Platform credentials required")
			return
		}

		c.Next()
	}
}
