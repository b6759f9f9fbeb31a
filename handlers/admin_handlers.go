package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/context-engine/models"
	"github.com/context-engine/services"
)

// AdminHandlers is the platform surface: organizations and their API keys.
// Every route sits behind RequirePlatform.
type AdminHandlers struct {
	orgs services.OrganizationService
}

func NewAdminHandlers(orgs services.OrganizationService) *AdminHandlers {
	return &AdminHandlers{orgs: orgs}
}

// CreateOrganization handles POST /admin/organizations
func (h *AdminHandlers) CreateOrganization(c *gin.Context) {
	var req models.CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}

	org, err := h.orgs.CreateOrg(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, org)
}

// ListOrganizations handles GET /admin/organizations
func (h *AdminHandlers) ListOrganizations(c *gin.Context) {
	limit := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid limit")
			return
		}
		limit = parsed
	}
	offset := 0
	if offsetStr := c.Query("offset"); offsetStr != "" {
		parsed, err := strconv.Atoi(offsetStr)
		if err != nil || parsed < 0 {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid offset")
			return
		}
		offset = parsed
	}

	resp, err := h.orgs.ListOrgs(c.Request.Context(), limit, offset)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, resp)
}

// GetOrganization handles GET /admin/organizations/:orgId
func (h *AdminHandlers) GetOrganization(c *gin.Context) {
	orgID, ok := pathUUID(c, "orgId")
	if !ok {
		return
	}

	org, err := h.orgs.GetOrg(c.Request.Context(), orgID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, org)
}

// UpdateOrganization handles PATCH /admin/organizations/:orgId
func (h *AdminHandlers) UpdateOrganization(c *gin.Context) {
	orgID, ok := pathUUID(c, "orgId")
	if !ok {
		return
	}

	var req models.UpdateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}

	org, err := h.orgs.UpdateOrg(c.Request.Context(), orgID, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, org)
}

// DeleteOrganization handles DELETE /admin/organizations/:orgId.
// Refused with 409 while components still reference the org.
func (h *AdminHandlers) DeleteOrganization(c *gin.Context) {
	orgID, ok := pathUUID(c, "orgId")
	if !ok {
		return
	}

	if err := h.orgs.DeleteOrg(c.Request.Context(), orgID); err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"id": orgID, "deleted": true})
}

// CreateApiKey handles POST /admin/organizations/:orgId/api-keys.
// The response is the only place the raw key ever appears.
func (h *AdminHandlers) CreateApiKey(c *gin.Context) {
	orgID, ok := pathUUID(c, "orgId")
	if !ok {
		return
	}

	var req models.CreateApiKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}

	resp, err := h.orgs.CreateApiKey(c.Request.Context(), orgID, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, resp)
}

// ListApiKeys handles GET /admin/organizations/:orgId/api-keys
func (h *AdminHandlers) ListApiKeys(c *gin.Context) {
	orgID, ok := pathUUID(c, "orgId")
	if !ok {
		return
	}

	keys, err := h.orgs.ListApiKeys(c.Request.Context(), orgID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"apiKeys": keys, "total": len(keys)})
}

// RevokeApiKey handles DELETE /admin/organizations/:orgId/api-keys/:keyId.
// Deactivates the key; the row stays for audit.
func (h *AdminHandlers) RevokeApiKey(c *gin.Context) {
	orgID, ok := pathUUID(c, "orgId")
	if !ok {
		return
	}
	keyID, ok := pathUUID(c, "keyId")
	if !ok {
		return
	}

	if err := h.orgs.RevokeApiKey(c.Request.Context(), orgID, keyID); err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"id": keyID, "revoked": true})
}
