package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/context-engine/services"
	"github.com/context-engine/services/generation"
)

// Every response uses the same envelope: {success: true, data} or
// {success: false, error: {code, message, details?}}.

func respondOK(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   gin.H{"code": code, "message": message},
	})
}

func respondErrorDetails(c *gin.Context, status int, code, message, details string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   gin.H{"code": code, "message": message, "details": details},
	})
}

// respondServiceError maps service sentinels onto HTTP statuses. Anything
// unrecognized is logged and answered generically so internals never leak
// to tenants.
func respondServiceError(c *gin.Context, err error) {
	var genErr *generation.Error
	switch {
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrNoExtraction),
		errors.Is(err, services.ErrNoGeneration),
		errors.Is(err, services.ErrNoManifest):
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, services.ErrNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, services.ErrConflict):
		respondError(c, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, services.ErrEmbeddingUnavailable):
		respondError(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Embedding service unavailable")
	case errors.As(err, &genErr):
		if genErr.Class == generation.ErrorClassUnavailable || genErr.Class == generation.ErrorClassTimeout {
			respondError(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE",
				"Generation provider "+genErr.Provider+" unavailable")
		} else {
			respondError(c, http.StatusBadGateway, "GENERATION_FAILED", genErr.Error())
		}
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// invalidateSearchCache drops the org's cached search results after a write.
// Failures are logged, never surfaced: the cache heals itself via TTL.
func invalidateSearchCache(c *gin.Context, cache services.CacheService, orgID uuid.UUID) {
	if cache == nil {
		return
	}
	if err := cache.InvalidateOrg(c.Request.Context(), orgID); err != nil {
		log.Warn().Err(err).Str("org_id", orgID.String()).Msg("failed to invalidate search cache")
	}
}
