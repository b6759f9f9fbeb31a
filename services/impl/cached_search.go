package impl

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/context-engine/models"
	"github.com/context-engine/services"
)

// cachedSearchService decorates a SearchService with the short-TTL result
// cache. Cache failures never fail a search; they only cost the round-trip.
type cachedSearchService struct {
	inner services.SearchService
	cache services.CacheService
	ttl   time.Duration
	log   zerolog.Logger
}

func NewCachedSearchService(inner services.SearchService, cache services.CacheService, ttl time.Duration, log zerolog.Logger) services.SearchService {
	return &cachedSearchService{
		inner: inner,
		cache: cache,
		ttl:   ttl,
		log:   log.With().Str("component", "search_cache").Logger(),
	}
}

func (s *cachedSearchService) Search(ctx context.Context, orgID uuid.UUID, req models.SearchRequest) (*models.SearchResponse, error) {
	key := s.cache.GenerateCacheKey(orgID, "search", searchRequestHash(req))

	if cached, err := s.cache.GetCachedSearch(ctx, key); err == nil && cached != nil {
		cached.Meta.Cached = true
		return cached, nil
	}

	resp, err := s.inner.Search(ctx, orgID, req)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetCachedSearch(ctx, key, resp, s.ttl); err != nil {
		s.log.Warn().Err(err).Msg("failed to cache search response")
	}
	return resp, nil
}

func (s *cachedSearchService) SimilarComponents(ctx context.Context, orgID uuid.UUID, req models.SimilarRequest) (*models.SearchResponse, error) {
	key := s.cache.GenerateCacheKey(orgID, "similar", similarRequestHash(req))

	if cached, err := s.cache.GetCachedSearch(ctx, key); err == nil && cached != nil {
		cached.Meta.Cached = true
		return cached, nil
	}

	resp, err := s.inner.SimilarComponents(ctx, orgID, req)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetCachedSearch(ctx, key, resp, s.ttl); err != nil {
		s.log.Warn().Err(err).Msg("failed to cache similar response")
	}
	return resp, nil
}

// searchRequestHash canonicalizes every parameter that changes the result
// set; two requests differing in any of them occupy distinct cache slots.
func searchRequestHash(req models.SearchRequest) string {
	framework := ""
	if req.Framework != nil {
		framework = string(*req.Framework)
	}
	minScore := ""
	if req.MinScore != nil {
		minScore = fmt.Sprintf("%g", *req.MinScore)
	}
	canonical := fmt.Sprintf("q=%s|mode=%s|limit=%d|min=%s|fw=%s",
		req.Query, req.Mode, req.Limit, minScore, framework)
	return HashQuery(canonical)
}

func similarRequestHash(req models.SimilarRequest) string {
	framework := ""
	if req.Framework != nil {
		framework = string(*req.Framework)
	}
	minScore := ""
	if req.MinScore != nil {
		minScore = fmt.Sprintf("%g", *req.MinScore)
	}
	canonical := fmt.Sprintf("id=%s|limit=%d|min=%s|fw=%s",
		req.Identifier, req.Limit, minScore, framework)
	return HashQuery(canonical)
}
