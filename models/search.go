package models

import "github.com/google/uuid"

type SearchMode string

const (
	SearchModeSemantic SearchMode = "semantic"
	SearchModeKeyword  SearchMode = "keyword"
	SearchModeHybrid   SearchMode = "hybrid"
)

// SearchRequest deliberately leaves Query unbound: an empty query is a
// valid request that matches nothing, not a client error.
type SearchRequest struct {
	Query     string     `json:"query"`
	Limit     int        `json:"limit,omitempty"`
	MinScore  *float64   `json:"minScore,omitempty"`
	Framework *Framework `json:"framework,omitempty"`
	Mode      SearchMode `json:"mode,omitempty"`
}

type SearchResult struct {
	ComponentID uuid.UUID `json:"componentId"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Framework   Framework `json:"framework"`
	Score       float64   `json:"score"`
}

type SearchMeta struct {
	SearchMode    SearchMode `json:"searchMode"`
	SemanticCount *int       `json:"semanticCount,omitempty"`
	KeywordCount  *int       `json:"keywordCount,omitempty"`
	Cached        bool       `json:"cached,omitempty"`
}

type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
	Query   string         `json:"query"`
	Meta    SearchMeta     `json:"meta"`
}

type SimilarRequest struct {
	Identifier string     `json:"identifier" binding:"required"`
	Limit      int        `json:"limit,omitempty"`
	MinScore   *float64   `json:"minScore,omitempty"`
	Framework  *Framework `json:"framework,omitempty"`
}

// EmbeddingStatusCounts reports reconciliation progress for one org.
// Absent statuses are zero.
type EmbeddingStatusCounts struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Indexed    int64 `json:"indexed"`
	Failed     int64 `json:"failed"`
	Total      int64 `json:"total"`
}

type ProcessPendingRequest struct {
	BatchSize int `json:"batchSize,omitempty"`
}

type ProcessPendingResponse struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

type RetryFailedResponse struct {
	Reset int64 `json:"reset"`
}

type ForceReindexResponse struct {
	ComponentID     uuid.UUID       `json:"componentId"`
	ChunksCreated   int             `json:"chunksCreated"`
	EmbeddingStatus EmbeddingStatus `json:"embeddingStatus"`
}

type MigrateEmbeddingsRequest struct {
	BatchSize int `json:"batchSize,omitempty"`
}

type MigrateEmbeddingsResponse struct {
	Queued             int64    `json:"queued"`
	CurrentModel       string   `json:"currentModel"`
	OutdatedComponents []string `json:"outdatedComponents"`
}

type ComponentStats struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"byStatus"`
}

type ChunkStats struct {
	Total  int64            `json:"total"`
	ByType map[string]int64 `json:"byType"`
}

// IndexStats backs both the stats endpoint and the MCP stats surfaces.
type IndexStats struct {
	Components     ComponentStats      `json:"components"`
	Chunks         ChunkStats          `json:"chunks"`
	EmbeddingModel *EmbeddingModelInfo `json:"embeddingModel,omitempty"`
}
