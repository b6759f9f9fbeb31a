package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/context-engine/models"
	"github.com/context-engine/services"
)

type PipelineHandlers struct {
	pipeline services.PipelineService
	cache    services.CacheService
}

func NewPipelineHandlers(pipeline services.PipelineService, cache services.CacheService) *PipelineHandlers {
	return &PipelineHandlers{
		pipeline: pipeline,
		cache:    cache,
	}
}

// Extract handles POST /organizations/:orgId/processing/extract
func (h *PipelineHandlers) Extract(c *gin.Context) {
	orgID, ok := pathUUID(c, "orgId")
	if !ok {
		return
	}

	var req models.ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}

	resp, err := h.pipeline.Extract(c.Request.Context(), orgID, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	// A fresh extraction resets the manifest and drops the row out of
	// search until it is rebuilt and reindexed.
	invalidateSearchCache(c, h.cache, orgID)
	respondOK(c, http.StatusOK, resp)
}

// Generate handles POST /organizations/:orgId/processing/generate
func (h *PipelineHandlers) Generate(c *gin.Context) {
	orgID, ok := pathUUID(c, "orgId")
	if !ok {
		return
	}

	var req models.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}

	resp, err := h.pipeline.Generate(c.Request.Context(), orgID, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, resp)
}

// Build handles POST /organizations/:orgId/processing/build
func (h *PipelineHandlers) Build(c *gin.Context) {
	orgID, ok := pathUUID(c, "orgId")
	if !ok {
		return
	}

	var req models.BuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}

	resp, err := h.pipeline.Build(c.Request.Context(), orgID, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	invalidateSearchCache(c, h.cache, orgID)
	respondOK(c, http.StatusOK, resp)
}
