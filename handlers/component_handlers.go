package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/context-engine/models"
	"github.com/context-engine/services"
)

type ComponentHandlers struct {
	components services.ComponentService
	index      services.IndexService
	cache      services.CacheService
}

func NewComponentHandlers(components services.ComponentService, index services.IndexService, cache services.CacheService) *ComponentHandlers {
	return &ComponentHandlers{
		components: components,
		index:      index,
		cache:      cache,
	}
}

// ListComponents handles GET /organizations/:orgId/components
func (h *ComponentHandlers) ListComponents(c *gin.Context) {
	orgID, ok := pathUUID(c, "orgId")
	if !ok {
		return
	}

	var filter models.ComponentListFilter

	if fwStr := c.Query("framework"); fwStr != "" {
		fw := models.Framework(fwStr)
		filter.Framework = &fw
	}
	if visStr := c.Query("visibility"); visStr != "" {
		vis := models.Visibility(visStr)
		filter.Visibility = &vis
	}
	if statusStr := c.Query("embeddingStatus"); statusStr != "" {
		status := models.EmbeddingStatus(statusStr)
		filter.EmbeddingStatus = &status
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid limit")
			return
		}
		filter.Limit = limit
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid offset")
			return
		}
		filter.Offset = offset
	}
	filter.OrderBy = c.DefaultQuery("orderBy", "name")
	filter.Order = c.DefaultQuery("order", "asc")

	resp, err := h.components.ListComponents(c.Request.Context(), orgID, filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, resp)
}

// GetComponent handles GET /organizations/:orgId/components/:id
func (h *ComponentHandlers) GetComponent(c *gin.Context) {
	orgID, ok := pathUUID(c, "orgId")
	if !ok {
		return
	}
	componentID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	component, err := h.components.GetComponent(c.Request.Context(), orgID, componentID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, component)
}

// GetComponentBySlug handles GET /organizations/:orgId/components/slug/:slug
func (h *ComponentHandlers) GetComponentBySlug(c *gin.Context) {
	orgID, ok := pathUUID(c, "orgId")
	if !ok {
		return
	}

	component, err := h.components.GetComponentBySlug(c.Request.Context(), orgID, c.Param("slug"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, component)
}

// UpsertComponent handles POST /organizations/:orgId/components.
// 201 when a row was created, 200 when an existing one was updated.
func (h *ComponentHandlers) UpsertComponent(c *gin.Context) {
	orgID, ok := pathUUID(c, "orgId")
	if !ok {
		return
	}

	var req models.UpsertComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}

	component, created, err := h.components.UpsertComponent(c.Request.Context(), orgID, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	invalidateSearchCache(c, h.cache, orgID)

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondOK(c, status, component)
}

// UpdateComponent handles PATCH /organizations/:orgId/components/:id
func (h *ComponentHandlers) UpdateComponent(c *gin.Context) {
	orgID, ok := pathUUID(c, "orgId")
	if !ok {
		return
	}
	componentID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req models.UpdateComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}

	component, err := h.components.UpdateComponent(c.Request.Context(), orgID, componentID, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	invalidateSearchCache(c, h.cache, orgID)
	respondOK(c, http.StatusOK, component)
}

// DeleteComponent handles DELETE /organizations/:orgId/components/:id
func (h *ComponentHandlers) DeleteComponent(c *gin.Context) {
	orgID, ok := pathUUID(c, "orgId")
	if !ok {
		return
	}
	componentID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.components.DeleteComponent(c.Request.Context(), orgID, componentID); err != nil {
		respondServiceError(c, err)
		return
	}

	invalidateSearchCache(c, h.cache, orgID)
	respondOK(c, http.StatusOK, gin.H{"id": componentID, "deleted": true})
}

// IndexComponent handles POST /organizations/:orgId/components/:id/index.
// Synchronous chunk+embed+store for one component.
func (h *ComponentHandlers) IndexComponent(c *gin.Context) {
	orgID, ok := pathUUID(c, "orgId")
	if !ok {
		return
	}
	componentID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	resp, err := h.index.ForceReindex(c.Request.Context(), orgID, componentID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	invalidateSearchCache(c, h.cache, orgID)
	respondOK(c, http.StatusOK, resp)
}
