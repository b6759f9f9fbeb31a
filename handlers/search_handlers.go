package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/context-engine/models"
	"github.com/context-engine/services"
)

type SearchHandlers struct {
	search services.SearchService
}

func NewSearchHandlers(search services.SearchService) *SearchHandlers {
	return &SearchHandlers{search: search}
}

// Search handles POST /organizations/:orgId/search
func (h *SearchHandlers) Search(c *gin.Context) {
	orgID, ok := pathUUID(c, "orgId")
	if !ok {
		return
	}

	var req models.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}

	resp, err := h.search.Search(c.Request.Context(), orgID, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, resp)
}

// Similar handles POST /organizations/:orgId/search/similar
func (h *SearchHandlers) Similar(c *gin.Context) {
	orgID, ok := pathUUID(c, "orgId")
	if !ok {
		return
	}

	var req models.SimilarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}

	resp, err := h.search.SimilarComponents(c.Request.Context(), orgID, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, resp)
}
