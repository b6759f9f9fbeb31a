package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Framework string

const (
	FrameworkReact   Framework = "react"
	FrameworkVue     Framework = "vue"
	FrameworkSvelte  Framework = "svelte"
	FrameworkAngular Framework = "angular"
)

// KnownFrameworks lists every accepted framework value. The pipeline is
// implemented for react; the rest are reserved for future extractors.
func KnownFrameworks() []Framework {
	return []Framework{FrameworkReact, FrameworkVue, FrameworkSvelte, FrameworkAngular}
}

func IsKnownFramework(f Framework) bool {
	for _, k := range KnownFrameworks() {
		if f == k {
			return true
		}
	}
	return false
}

type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityOrg     Visibility = "org"
	VisibilityPublic  Visibility = "public"
)

type EmbeddingStatus string

const (
	EmbeddingStatusPending    EmbeddingStatus = "pending"
	EmbeddingStatusProcessing EmbeddingStatus = "processing"
	EmbeddingStatusIndexed    EmbeddingStatus = "indexed"
	EmbeddingStatusFailed     EmbeddingStatus = "failed"
)

type ChunkType string

const (
	ChunkTypeDescription ChunkType = "description"
	ChunkTypeImport      ChunkType = "import"
	ChunkTypeProps       ChunkType = "props"
	ChunkTypeComposition ChunkType = "composition"
	ChunkTypeExamples    ChunkType = "examples"
	ChunkTypePatterns    ChunkType = "patterns"
	ChunkTypeGuidance    ChunkType = "guidance"
)

// EmbeddingModelInfo records which embedding deployment produced a
// component's chunks. Stored as JSONB on the component row.
type EmbeddingModelInfo struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
}

func (m EmbeddingModelInfo) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *EmbeddingModelInfo) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return errors.New("cannot scan embedding model info")
	}
}

// Component is one library component owned by an organization. The three
// JSON payloads record the pipeline phases in order: extraction, then
// generation, then the merged manifest. A later phase is only ever present
// when every earlier phase is.
type Component struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	OrgID     uuid.UUID `gorm:"type:uuid;not null;index:idx_components_org;uniqueIndex:idx_components_org_slug" json:"orgId"`
	Slug      string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_components_org_slug" json:"slug"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Framework Framework `gorm:"type:varchar(20);not null;default:'react';index:idx_components_org_framework" json:"framework"`
	Version   string    `gorm:"type:varchar(50)" json:"version,omitempty"`

	Visibility Visibility `gorm:"type:varchar(20);not null;default:'private'" json:"visibility"`
	SourceHash string     `gorm:"type:varchar(64)" json:"sourceHash,omitempty"`
	FilePath   string     `gorm:"type:varchar(1024)" json:"filePath,omitempty"`

	Extraction datatypes.JSON `gorm:"type:jsonb" json:"extraction,omitempty"`
	Generation datatypes.JSON `gorm:"type:jsonb" json:"generation,omitempty"`
	Manifest   datatypes.JSON `gorm:"type:jsonb" json:"manifest,omitempty"`

	GenerationProvider string `gorm:"type:varchar(50)" json:"generationProvider,omitempty"`
	GenerationModel    string `gorm:"type:varchar(100)" json:"generationModel,omitempty"`

	EmbeddingStatus EmbeddingStatus     `gorm:"type:varchar(20);not null;default:'pending';index:idx_components_org_embedding_status" json:"embeddingStatus"`
	EmbeddingError  *string             `gorm:"type:text" json:"embeddingError,omitempty"`
	EmbeddingModel  *EmbeddingModelInfo `gorm:"type:jsonb" json:"embeddingModel,omitempty"`
	EmbeddedAt      *time.Time          `json:"embeddedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `gorm:"index:idx_components_status_updated" json:"updatedAt"`
}

func (Component) TableName() string {
	return "context_engine.components"
}

// EmbeddingChunk is one embedded slice of a component manifest. The vector
// column itself is created by the bootstrap DDL and written through raw SQL;
// gorm only sees the scalar columns.
type EmbeddingChunk struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	OrgID       uuid.UUID `gorm:"type:uuid;not null;index:idx_chunks_org" json:"orgId"`
	ComponentID uuid.UUID `gorm:"type:uuid;not null;index:idx_chunks_component" json:"componentId"`
	ChunkType   ChunkType `gorm:"type:varchar(20);not null" json:"chunkType"`
	ChunkIndex  int       `gorm:"not null;default:0" json:"chunkIndex"`
	Content     string    `gorm:"type:text;not null" json:"content"`

	Embedding []float32 `gorm:"-" json:"-"`

	CreatedAt time.Time `json:"createdAt"`
}

func (EmbeddingChunk) TableName() string {
	return "context_engine.embedding_chunks"
}

// UpsertComponentRequest creates or replaces a component row directly,
// bypassing the pipeline. Payloads are accepted as raw JSON.
type UpsertComponentRequest struct {
	Name       string          `json:"name" binding:"required"`
	Framework  Framework       `json:"framework,omitempty"`
	Version    string          `json:"version,omitempty"`
	Visibility Visibility      `json:"visibility,omitempty"`
	SourceHash string          `json:"sourceHash,omitempty"`
	FilePath   string          `json:"filePath,omitempty"`
	Extraction json.RawMessage `json:"extraction,omitempty"`
	Generation json.RawMessage `json:"generation,omitempty"`
	Manifest   json.RawMessage `json:"manifest,omitempty"`
}

// UpdateComponentRequest carries a partial update; nil fields are left
// untouched.
type UpdateComponentRequest struct {
	Name       *string          `json:"name,omitempty"`
	Version    *string          `json:"version,omitempty"`
	Visibility *Visibility      `json:"visibility,omitempty"`
	FilePath   *string          `json:"filePath,omitempty"`
	Manifest   *json.RawMessage `json:"manifest,omitempty"`
}

type ComponentListFilter struct {
	Framework       *Framework       `json:"framework,omitempty"`
	Visibility      *Visibility      `json:"visibility,omitempty"`
	EmbeddingStatus *EmbeddingStatus `json:"embeddingStatus,omitempty"`
	Limit           int              `json:"limit"`
	Offset          int              `json:"offset"`
	OrderBy         string           `json:"orderBy"`
	Order           string           `json:"order"`
}

type ComponentListResponse struct {
	Components []Component `json:"components"`
	Total      int64       `json:"total"`
	Limit      int         `json:"limit"`
	Offset     int         `json:"offset"`
}

// ManifestSummary is the trimmed projection used by manifest listings and
// the MCP component catalog resource.
type ManifestSummary struct {
	ComponentID uuid.UUID       `json:"componentId"`
	Slug        string          `json:"slug"`
	Name        string          `json:"name"`
	Framework   Framework       `json:"framework"`
	Manifest    datatypes.JSON  `json:"manifest"`
	Status      EmbeddingStatus `json:"embeddingStatus"`
}

type ManifestFilter struct {
	Slugs     []string   `json:"slugs,omitempty"`
	Framework *Framework `json:"framework,omitempty"`
	Limit     int        `json:"limit"`
}
