package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/context-engine/models"
	"github.com/context-engine/services"
)

type ReconciliationHandlers struct {
	index services.IndexService
	cache services.CacheService
}

func NewReconciliationHandlers(index services.IndexService, cache services.CacheService) *ReconciliationHandlers {
	return &ReconciliationHandlers{
		index: index,
		cache: cache,
	}
}

// Status handles GET /organizations/:orgId/reconciliation/status
func (h *ReconciliationHandlers) Status(c *gin.Context) {
	orgID, ok := pathUUID(c, "orgId")
	if !ok {
		return
	}

	counts, err := h.index.CountByEmbeddingStatus(c.Request.Context(), orgID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, counts)
}

// ProcessPending handles POST /organizations/:orgId/reconciliation/process-pending.
// Runs one synchronous batch and reports the outcome; long work belongs to
// the background loop.
func (h *ReconciliationHandlers) ProcessPending(c *gin.Context) {
	orgID, ok := pathUUID(c, "orgId")
	if !ok {
		return
	}

	// The body is optional; an absent one means defaults.
	var req models.ProcessPendingRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondErrorDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}

	resp, err := h.index.ProcessPending(c.Request.Context(), orgID, req.BatchSize)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	invalidateSearchCache(c, h.cache, orgID)
	respondOK(c, http.StatusOK, resp)
}

// RetryFailed handles POST /organizations/:orgId/reconciliation/retry-failed
func (h *ReconciliationHandlers) RetryFailed(c *gin.Context) {
	orgID, ok := pathUUID(c, "orgId")
	if !ok {
		return
	}

	resp, err := h.index.RetryFailed(c.Request.Context(), orgID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, resp)
}

// ForceReindex handles POST /organizations/:orgId/reconciliation/force-reindex/:componentId
func (h *ReconciliationHandlers) ForceReindex(c *gin.Context) {
	orgID, ok := pathUUID(c, "orgId")
	if !ok {
		return
	}
	componentID, ok := pathUUID(c, "componentId")
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

// MigrateEmbeddings handles POST /organizations/:orgId/reconciliation/migrate-embeddings.
// Queues components embedded with an older model for reindexing.
func (h *ReconciliationHandlers) MigrateEmbeddings(c *gin.Context) {
	orgID, ok := pathUUID(c, "orgId")
	if !ok {
		return
	}

	var req models.MigrateEmbeddingsRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondErrorDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}

	resp, err := h.index.MigrateEmbeddings(c.Request.Context(), orgID, req.BatchSize)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, resp)
}

// Stats handles GET /organizations/:orgId/stats. Same projection the MCP
// get_index_stats tool and context://stats resource serve.
func (h *ReconciliationHandlers) Stats(c *gin.Context) {
	orgID, ok := pathUUID(c, "orgId")
	if !ok {
		return
	}

	stats, err := h.index.GetIndexStats(c.Request.Context(), orgID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, stats)
}
