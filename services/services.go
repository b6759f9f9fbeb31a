package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/context-engine/models"
)

// Sentinel errors shared by every service implementation. Handlers map these
// onto HTTP status codes; nothing else about a failure is load-bearing.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")

	// Pipeline preconditions: a later phase was requested before an earlier
	// one produced its payload.
	ErrNoExtraction = errors.New("component has no extraction")
	ErrNoGeneration = errors.New("component has no generation")
	ErrNoManifest   = errors.New("component has no manifest")

	// ErrEmbeddingUnavailable means no embedding provider is configured or
	// the configured one cannot be reached; keyword search still works.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
)

type OrganizationService interface {
	CreateOrg(ctx context.Context, req models.CreateOrganizationRequest) (*models.Organization, error)
	GetOrg(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	ListOrgs(ctx context.Context, limit, offset int) (*models.OrganizationListResponse, error)
	UpdateOrg(ctx context.Context, id uuid.UUID, req models.UpdateOrganizationRequest) (*models.Organization, error)
	// DeleteOrg fails with ErrConflict while components still reference the org.
	DeleteOrg(ctx context.Context, id uuid.UUID) error

	CreateApiKey(ctx context.Context, orgID uuid.UUID, req models.CreateApiKeyRequest) (*models.CreateApiKeyResponse, error)
	ListApiKeys(ctx context.Context, orgID uuid.UUID) ([]models.ApiKey, error)
	RevokeApiKey(ctx context.Context, orgID uuid.UUID, keyID uuid.UUID) error
}

type ComponentService interface {
	// UpsertComponent is keyed by (orgID, slug); the bool reports whether a
	// new row was created.
	UpsertComponent(ctx context.Context, orgID uuid.UUID, req models.UpsertComponentRequest) (*models.Component, bool, error)
	GetComponent(ctx context.Context, orgID uuid.UUID, id uuid.UUID) (*models.Component, error)
	GetComponentBySlug(ctx context.Context, orgID uuid.UUID, slug string) (*models.Component, error)
	GetComponentByName(ctx context.Context, orgID uuid.UUID, name string) (*models.Component, error)
	ListComponents(ctx context.Context, orgID uuid.UUID, filter models.ComponentListFilter) (*models.ComponentListResponse, error)
	UpdateComponent(ctx context.Context, orgID uuid.UUID, id uuid.UUID, req models.UpdateComponentRequest) (*models.Component, error)
	DeleteComponent(ctx context.Context, orgID uuid.UUID, id uuid.UUID) error

	FindAllManifests(ctx context.Context, orgID uuid.UUID, filter models.ManifestFilter) ([]models.ManifestSummary, error)
	FindAllNames(ctx context.Context, orgID uuid.UUID) ([]string, error)
}

// PipelineService runs the three phases. Each operation loads the row, runs
// the matching stage, and writes the result back; a fresh extraction resets
// everything downstream of it.
type PipelineService interface {
	Extract(ctx context.Context, orgID uuid.UUID, req models.ExtractRequest) (*models.ExtractResponse, error)
	Generate(ctx context.Context, orgID uuid.UUID, req models.GenerateRequest) (*models.GenerateResponse, error)
	Build(ctx context.Context, orgID uuid.UUID, req models.BuildRequest) (*models.BuildResponse, error)
}

type SearchService interface {
	Search(ctx context.Context, orgID uuid.UUID, req models.SearchRequest) (*models.SearchResponse, error)
	SimilarComponents(ctx context.Context, orgID uuid.UUID, req models.SimilarRequest) (*models.SearchResponse, error)
}

// IndexService owns the embedding lifecycle of components: status counters,
// pending-work selection, the pending→processing claim, and the
// chunk→embed→insert pipeline. The reconciler and the reconciliation HTTP
// surface both drive it.
type IndexService interface {
	CountByEmbeddingStatus(ctx context.Context, orgID uuid.UUID) (*models.EmbeddingStatusCounts, error)
	FindPending(ctx context.Context, orgID uuid.UUID, limit int) ([]models.Component, error)
	// FindAllPendingFair interleaves pending rows round-robin across orgs so
	// one huge tenant cannot starve the rest. Only rows with a manifest are
	// eligible. maxPerOrg <= 0 means ceil(limit/10).
	FindAllPendingFair(ctx context.Context, limit, maxPerOrg int) ([]models.Component, error)

	// ClaimForProcessing flips pending→processing for exactly one caller;
	// false means another worker got there first.
	ClaimForProcessing(ctx context.Context, orgID uuid.UUID, componentID uuid.UUID) (bool, error)
	// IndexComponent chunks the manifest, embeds, replaces the chunk rows,
	// and marks the row indexed (or failed, with the error recorded). Returns
	// the number of chunks written.
	IndexComponent(ctx context.Context, orgID uuid.UUID, componentID uuid.UUID) (int, error)

	ProcessPending(ctx context.Context, orgID uuid.UUID, batchSize int) (*models.ProcessPendingResponse, error)
	RetryFailed(ctx context.Context, orgID uuid.UUID) (*models.RetryFailedResponse, error)
	ForceReindex(ctx context.Context, orgID uuid.UUID, componentID uuid.UUID) (*models.ForceReindexResponse, error)
	MigrateEmbeddings(ctx context.Context, orgID uuid.UUID, batchSize int) (*models.MigrateEmbeddingsResponse, error)

	// ResetStaleProcessing returns rows stuck in processing for longer than
	// the threshold back to pending. Crash recovery for dead workers.
	ResetStaleProcessing(ctx context.Context, olderThan time.Duration) (int64, error)

	GetIndexStats(ctx context.Context, orgID uuid.UUID) (*models.IndexStats, error)
	EmbeddingAvailable() bool
}

// CacheService fronts search results with a short-TTL cache. A nil or
// unreachable backend degrades to a pass-through.
type CacheService interface {
	GetCachedSearch(ctx context.Context, key string) (*models.SearchResponse, error)
	SetCachedSearch(ctx context.Context, key string, resp *models.SearchResponse, ttl time.Duration) error
	InvalidateOrg(ctx context.Context, orgID uuid.UUID) error
	GenerateCacheKey(orgID uuid.UUID, kind string, queryHash string) string
}
