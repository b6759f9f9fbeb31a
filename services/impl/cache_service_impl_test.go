package impl

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/context-engine/config"
	"github.com/context-engine/models"
	"github.com/context-engine/services"
)

func setupSearchCacheRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client, func()) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return mr, client, cleanup
}

func cacheTestConfig() *config.RedisConfig {
	return &config.RedisConfig{
		SearchCacheTTL:    60,
		EnableSearchCache: true,
	}
}

func sampleSearchResponse(query string) *models.SearchResponse {
	count := 1
	return &models.SearchResponse{
		Results: []models.SearchResult{{
			ComponentID: uuid.New(),
			Slug:        "button-react-a1b2c3d4",
			Name:        "Button",
			Description: "Clickable button",
			Framework:   models.FrameworkReact,
			Score:       0.91,
		}},
		Total: 1,
		Query: query,
		Meta:  models.SearchMeta{SearchMode: models.SearchModeKeyword, KeywordCount: &count},
	}
}

func TestSearchCacheHitAndMiss(t *testing.T) {
	_, client, cleanup := setupSearchCacheRedis(t)
	defer cleanup()

	cache := NewCacheServiceWithRedis(client, cacheTestConfig())
	orgID := uuid.New()
	key := cache.GenerateCacheKey(orgID, "search", HashQuery("button"))

	got, err := cache.GetCachedSearch(context.Background(), key)
	require.NoError(t, err)
	assert.Nil(t, got)

	resp := sampleSearchResponse("button")
	require.NoError(t, cache.SetCachedSearch(context.Background(), key, resp, 0))

	got, err = cache.GetCachedSearch(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, resp.Query, got.Query)
	assert.Equal(t, resp.Results[0].Slug, got.Results[0].Slug)

	other := cache.GenerateCacheKey(orgID, "search", HashQuery("dialog"))
	got, err = cache.GetCachedSearch(context.Background(), other)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSearchCacheTTLExpiry(t *testing.T) {
	mr, client, cleanup := setupSearchCacheRedis(t)
	defer cleanup()

	cache := NewCacheServiceWithRedis(client, cacheTestConfig())
	orgID := uuid.New()
	key := cache.GenerateCacheKey(orgID, "search", HashQuery("button"))

	require.NoError(t, cache.SetCachedSearch(context.Background(), key, sampleSearchResponse("button"), time.Second))

	mr.FastForward(2 * time.Second)

	got, err := cache.GetCachedSearch(context.Background(), key)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSearchCacheInvalidateOrg(t *testing.T) {
	_, client, cleanup := setupSearchCacheRedis(t)
	defer cleanup()

	cache := NewCacheServiceWithRedis(client, cacheTestConfig())
	orgA := uuid.New()
	orgB := uuid.New()

	keyA1 := cache.GenerateCacheKey(orgA, "search", HashQuery("button"))
	keyA2 := cache.GenerateCacheKey(orgA, "similar", HashQuery("dialog"))
	keyB := cache.GenerateCacheKey(orgB, "search", HashQuery("button"))

	require.NoError(t, cache.SetCachedSearch(context.Background(), keyA1, sampleSearchResponse("button"), 0))
	require.NoError(t, cache.SetCachedSearch(context.Background(), keyA2, sampleSearchResponse("dialog"), 0))
	require.NoError(t, cache.SetCachedSearch(context.Background(), keyB, sampleSearchResponse("button"), 0))

	require.NoError(t, cache.InvalidateOrg(context.Background(), orgA))

	got, err := cache.GetCachedSearch(context.Background(), keyA1)
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = cache.GetCachedSearch(context.Background(), keyA2)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = cache.GetCachedSearch(context.Background(), keyB)
	require.NoError(t, err)
	require.NotNil(t, got, "other org's entries must survive")
}

func TestSearchCacheDisabledIsPassThrough(t *testing.T) {
	cache, err := NewCacheService(nil)
	require.NoError(t, err)

	orgID := uuid.New()
	key := cache.GenerateCacheKey(orgID, "search", HashQuery("button"))

	require.NoError(t, cache.SetCachedSearch(context.Background(), key, sampleSearchResponse("button"), 0))
	got, err := cache.GetCachedSearch(context.Background(), key)
	require.NoError(t, err)
	assert.Nil(t, got)
}

type stubSearchService struct {
	searchCalls  int
	similarCalls int
	resp         *models.SearchResponse
}

func (s *stubSearchService) Search(ctx context.Context, orgID uuid.UUID, req models.SearchRequest) (*models.SearchResponse, error) {
	s.searchCalls++
	return s.resp, nil
}

func (s *stubSearchService) SimilarComponents(ctx context.Context, orgID uuid.UUID, req models.SimilarRequest) (*models.SearchResponse, error) {
	s.similarCalls++
	return s.resp, nil
}

var _ services.SearchService = (*stubSearchService)(nil)

func TestCachedSearchDecorator(t *testing.T) {
	_, client, cleanup := setupSearchCacheRedis(t)
	defer cleanup()

	cache := NewCacheServiceWithRedis(client, cacheTestConfig())
	stub := &stubSearchService{resp: sampleSearchResponse("button")}
	decorated := NewCachedSearchService(stub, cache, time.Minute, zerolog.Nop())

	orgID := uuid.New()
	req := models.SearchRequest{Query: "button", Mode: models.SearchModeKeyword}

	first, err := decorated.Search(context.Background(), orgID, req)
	require.NoError(t, err)
	assert.False(t, first.Meta.Cached)
	assert.Equal(t, 1, stub.searchCalls)

	second, err := decorated.Search(context.Background(), orgID, req)
	require.NoError(t, err)
	assert.True(t, second.Meta.Cached, "second identical request must come from cache")
	assert.Equal(t, 1, stub.searchCalls, "inner service must not be called on a hit")
	assert.Equal(t, first.Results[0].Slug, second.Results[0].Slug)

	// A different limit occupies a different slot.
	widened := req
	widened.Limit = 25
	third, err := decorated.Search(context.Background(), orgID, widened)
	require.NoError(t, err)
	assert.False(t, third.Meta.Cached)
	assert.Equal(t, 2, stub.searchCalls)
}
