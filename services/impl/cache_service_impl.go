package impl

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/context-engine/config"
	"github.com/context-engine/models"
	"github.com/context-engine/services"
)

const (
	// searchCacheKeyPrefix namespaces every search cache key.
	searchCacheKeyPrefix = "search"

	// defaultSearchCacheTTL applies when neither the caller nor the config
	// provide one.
	defaultSearchCacheTTL = 60 * time.Second

	// maxSearchCacheTTL caps caller-provided TTLs.
	maxSearchCacheTTL = 10 * time.Minute
)

// cacheServiceImpl caches search responses in Redis, falling back to a
// process-local map when Redis is unreachable. A disabled cache is a
// pass-through: every read misses, every write is dropped.
type cacheServiceImpl struct {
	memCache map[string]cacheEntry
	mu       sync.RWMutex

	redis *redis.Client

	config   *config.RedisConfig
	enabled  bool
	useRedis bool
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewCacheService connects to Redis when configured; connection failure is
// not an error, just a downgrade to the in-memory cache.
func NewCacheService(cfg *config.RedisConfig) (services.CacheService, error) {
	if cfg == nil || !cfg.EnableSearchCache {
		return &cacheServiceImpl{enabled: false}, nil
	}

	svc := &cacheServiceImpl{
		memCache: make(map[string]cacheEntry),
		config:   cfg,
		enabled:  true,
		useRedis: false,
	}

	if cfg.Host != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password: cfg.Password,
			DB:       cfg.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := redisClient.Ping(ctx).Err(); err == nil {
			svc.redis = redisClient
			svc.useRedis = true
		}
	}

	return svc, nil
}

// NewCacheServiceWithRedis builds a cache around an existing client. Used by
// tests with miniredis.
func NewCacheServiceWithRedis(redisClient *redis.Client, cfg *config.RedisConfig) services.CacheService {
	if redisClient == nil || cfg == nil || !cfg.EnableSearchCache {
		return &cacheServiceImpl{
			memCache: make(map[string]cacheEntry),
			config:   cfg,
			enabled:  cfg != nil && cfg.EnableSearchCache,
			useRedis: false,
		}
	}

	return &cacheServiceImpl{
		memCache: make(map[string]cacheEntry),
		redis:    redisClient,
		config:   cfg,
		enabled:  true,
		useRedis: true,
	}
}

func (s *cacheServiceImpl) GetCachedSearch(ctx context.Context, key string) (*models.SearchResponse, error) {
	if !s.enabled {
		return nil, nil
	}

	prefixedKey := s.prefixKey(key)

	if s.useRedis && s.redis != nil {
		data, err := s.redis.Get(ctx, prefixedKey).Bytes()
		if err == nil {
			var resp models.SearchResponse
			if err := json.Unmarshal(data, &resp); err != nil {
				// Poisoned entry; drop it and treat as a miss.
				s.redis.Del(ctx, prefixedKey)
				return nil, nil
			}
			return &resp, nil
		}
		if err != redis.Nil {
			return s.getFromMemCache(prefixedKey)
		}
		return nil, nil
	}

	return s.getFromMemCache(prefixedKey)
}

func (s *cacheServiceImpl) getFromMemCache(prefixedKey string) (*models.SearchResponse, error) {
	s.mu.RLock()
	entry, exists := s.memCache[prefixedKey]
	s.mu.RUnlock()

	if !exists {
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.memCache, prefixedKey)
		s.mu.Unlock()
		return nil, nil
	}

	var resp models.SearchResponse
	if err := json.Unmarshal(entry.data, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached search: %w", err)
	}
	return &resp, nil
}

func (s *cacheServiceImpl) SetCachedSearch(ctx context.Context, key string, resp *models.SearchResponse, ttl time.Duration) error {
	if !s.enabled || resp == nil {
		return nil
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal search response for caching: %w", err)
	}

	if ttl <= 0 && s.config != nil {
		ttl = time.Duration(s.config.SearchCacheTTL) * time.Second
	}
	if ttl <= 0 {
		ttl = defaultSearchCacheTTL
	}
	if ttl > maxSearchCacheTTL {
		ttl = maxSearchCacheTTL
	}

	prefixedKey := s.prefixKey(key)

	if s.useRedis && s.redis != nil {
		if err := s.redis.Set(ctx, prefixedKey, data, ttl).Err(); err != nil {
			s.setInMemCache(prefixedKey, data, ttl)
			return nil
		}
		return nil
	}

	s.setInMemCache(prefixedKey, data, ttl)
	return nil
}

func (s *cacheServiceImpl) setInMemCache(prefixedKey string, data []byte, ttl time.Duration) {
	s.mu.Lock()
	s.memCache[prefixedKey] = cacheEntry{
		data:      data,
		expiresAt: time.Now().Add(ttl),
	}
	s.mu.Unlock()
}

// InvalidateOrg drops every cached search for the org. Component writes call
// this so stale results never outlive a library change by more than one
// round-trip.
func (s *cacheServiceImpl) InvalidateOrg(ctx context.Context, orgID uuid.UUID) error {
	if !s.enabled {
		return nil
	}

	pattern := s.prefixKey(orgID.String() + ":*")

	if s.useRedis && s.redis != nil {
		var cursor uint64
		for {
			keys, newCursor, err := s.redis.Scan(ctx, cursor, pattern, 100).Result()
			if err != nil {
				break
			}
			if len(keys) > 0 {
				s.redis.Del(ctx, keys...)
			}
			cursor = newCursor
			if cursor == 0 {
				break
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.memCache {
		if matchPattern(key, pattern) {
			delete(s.memCache, key)
		}
	}
	return nil
}

// matchPattern supports a single trailing * wildcard, which is the only
// shape InvalidateOrg produces.
func matchPattern(key, pattern string) bool {
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(key, strings.TrimSuffix(pattern, "*"))
	}
	return key == pattern
}

// GenerateCacheKey keeps the org id in clear text so org-scoped
// invalidation can pattern-match it.
func (s *cacheServiceImpl) GenerateCacheKey(orgID uuid.UUID, kind string, queryHash string) string {
	return fmt.Sprintf("%s:%s:%s", orgID.String(), kind, queryHash)
}

func (s *cacheServiceImpl) prefixKey(key string) string {
	return fmt.Sprintf("%s:%s", searchCacheKeyPrefix, key)
}

// HashQuery digests a canonical query string into a short cache key part.
func HashQuery(query string) string {
	hash := sha256.Sum256([]byte(query))
	return hex.EncodeToString(hash[:16])
}
