package impl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/context-engine/models"
	"github.com/context-engine/services"
	"github.com/context-engine/services/extraction"
	"github.com/context-engine/services/generation"
	"github.com/context-engine/services/manifest"
)

type pipelineServiceImpl struct {
	db         *gorm.DB
	components services.ComponentService
	engine     *extraction.Engine
	generator  generation.Generator
	builder    *manifest.Builder
	log        zerolog.Logger
}

// NewPipelineService wires the three processing phases. generator may be
// nil when no LLM provider is configured; Generate then fails with an
// unavailable-class error.
func NewPipelineService(db *gorm.DB, components services.ComponentService, engine *extraction.Engine, generator generation.Generator, builder *manifest.Builder, log zerolog.Logger) services.PipelineService {
	return &pipelineServiceImpl{
		db:         db,
		components: components,
		engine:     engine,
		generator:  generator,
		builder:    builder,
		log:        log.With().Str("component", "pipeline").Logger(),
	}
}

// Extract runs the structural pass and persists its payload. A fresh
// extraction invalidates everything derived from the old one: generation,
// manifest, and chunks are cleared and the row goes back to pending.
func (s *pipelineServiceImpl) Extract(ctx context.Context, orgID uuid.UUID, req models.ExtractRequest) (*models.ExtractResponse, error) {
	if req.SourceCode == "" || req.Name == "" {
		return nil, services.ErrValidation
	}
	framework := req.Framework
	if framework == "" {
		framework = models.FrameworkReact
	}
	if !models.IsKnownFramework(framework) {
		return nil, services.ErrValidation
	}

	result := s.engine.Extract(ctx, extraction.Input{
		Name:            req.Name,
		SourceCode:      req.SourceCode,
		StoriesCode:     req.StoriesCode,
		Framework:       framework,
		FilePath:        req.FilePath,
		StoriesFilePath: req.StoriesFilePath,
	})

	extractionJSON, err := models.ConvertToJSON(result.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode extraction: %w", err)
	}
	sourceHash := models.SourceHash(req.SourceCode)

	component, err := s.persistExtraction(ctx, orgID, req, framework, extractionJSON, sourceHash)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("component_id", component.ID.String()).
		Str("slug", component.Slug).
		Str("method", string(result.Diagnostics.Method)).
		Bool("fallback", result.Diagnostics.FallbackTriggered).
		Msg("extraction stored")

	return &models.ExtractResponse{
		ComponentID: component.ID,
		Slug:        component.Slug,
		Name:        component.Name,
		Framework:   component.Framework,
		SourceHash:  sourceHash,
		Extraction:  extractionJSON,
		Metadata:    result.Diagnostics,
	}, nil
}

// persistExtraction updates the row named by ExistingID, or upserts by the
// component's (name, framework) identity.
func (s *pipelineServiceImpl) persistExtraction(ctx context.Context, orgID uuid.UUID, req models.ExtractRequest, framework models.Framework, extractionJSON []byte, sourceHash string) (*models.Component, error) {
	var existing models.Component
	var err error
	if req.ExistingID != nil {
		err = s.db.WithContext(ctx).Where("id = ? AND org_id = ?", *req.ExistingID, orgID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrNotFound
		}
	} else {
		err = s.db.WithContext(ctx).
			Where("org_id = ? AND LOWER(name) = LOWER(?) AND framework = ?", orgID, req.Name, framework).
			First(&existing).Error
	}

	switch {
	case err == nil:
		updates := map[string]any{
			"name":             req.Name,
			"framework":        framework,
			"extraction":       extractionJSON,
			"source_hash":      sourceHash,
			"generation":       nil,
			"manifest":         nil,
			"embedding_status": models.EmbeddingStatusPending,
			"embedding_error":  nil,
			"updated_at":       time.Now(),
		}
		if req.FilePath != "" {
			updates["file_path"] = req.FilePath
		}
		if req.Version != "" {
			updates["version"] = req.Version
		}
		if err := s.db.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update component: %w", translateDBError(err))
		}
		if err := s.db.WithContext(ctx).Where("component_id = ? AND org_id = ?", existing.ID, orgID).
			Delete(&models.EmbeddingChunk{}).Error; err != nil {
			return nil, fmt.Errorf("failed to clear stale chunks: %w", err)
		}
		if err := s.db.WithContext(ctx).First(&existing, "id = ?", existing.ID).Error; err != nil {
			return nil, fmt.Errorf("failed to reload component: %w", err)
		}
		return &existing, nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		id := models.NewComponentID()
		component := &models.Component{
			ID:              id,
			OrgID:           orgID,
			Slug:            models.SlugFor(req.Name, framework, id),
			Name:            req.Name,
			Framework:       framework,
			Version:         req.Version,
			Visibility:      models.VisibilityPrivate,
			SourceHash:      sourceHash,
			FilePath:        req.FilePath,
			Extraction:      extractionJSON,
			EmbeddingStatus: models.EmbeddingStatusPending,
			CreatedAt:       time.Now(),
			UpdatedAt:       time.Now(),
		}
		if err := s.db.WithContext(ctx).Create(component).Error; err != nil {
			return nil, fmt.Errorf("failed to create component: %w", translateDBError(err))
		}
		return component, nil

	default:
		return nil, fmt.Errorf("failed to look up component: %w", err)
	}
}

func (s *pipelineServiceImpl) Generate(ctx context.Context, orgID uuid.UUID, req models.GenerateRequest) (*models.GenerateResponse, error) {
	component, err := s.components.GetComponent(ctx, orgID, req.ComponentID)
	if err != nil {
		return nil, err
	}
	if len(component.Extraction) == 0 {
		return nil, services.ErrNoExtraction
	}
	if s.generator == nil {
		return nil, &generation.Error{
			Class:    generation.ErrorClassUnavailable,
			Provider: "none",
			Err:      errors.New("no generation provider configured"),
		}
	}

	extracted, err := models.ConvertFromJSON[models.ExtractedData](component.Extraction)
	if err != nil {
		return nil, fmt.Errorf("failed to decode extraction: %w", err)
	}

	result, err := s.generator.GenerateMeta(ctx, generation.MetaRequest{
		OrgID:     orgID,
		Name:      component.Name,
		Framework: component.Framework,
		Extracted: &extracted,
		Hints:     req.Hints,
	})
	if err != nil {
		return nil, err
	}

	generationJSON, err := models.ConvertToJSON(result.Meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode generation: %w", err)
	}

	model := result.Model
	if model == "" {
		model = s.generator.Model()
	}
	updates := map[string]any{
		"generation":          []byte(generationJSON),
		"generation_provider": s.generator.Provider(),
		"generation_model":    model,
		"updated_at":          time.Now(),
	}
	if err := s.db.WithContext(ctx).Model(&models.Component{}).
		Where("id = ? AND org_id = ?", component.ID, orgID).
		Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to store generation: %w", err)
	}

	s.log.Info().
		Str("component_id", component.ID.String()).
		Str("provider", s.generator.Provider()).
		Str("model", model).
		Msg("generation stored")

	return &models.GenerateResponse{
		ComponentID: component.ID,
		Generation:  generationJSON,
		Provider:    s.generator.Provider(),
		Model:       model,
	}, nil
}

func (s *pipelineServiceImpl) Build(ctx context.Context, orgID uuid.UUID, req models.BuildRequest) (*models.BuildResponse, error) {
	component, err := s.components.GetComponent(ctx, orgID, req.ComponentID)
	if err != nil {
		return nil, err
	}
	if len(component.Extraction) == 0 {
		return nil, services.ErrNoExtraction
	}
	if len(component.Generation) == 0 {
		return nil, services.ErrNoGeneration
	}

	extracted, err := models.ConvertFromJSON[models.ExtractedData](component.Extraction)
	if err != nil {
		return nil, fmt.Errorf("failed to decode extraction: %w", err)
	}
	meta, err := models.ConvertFromJSON[models.ComponentMeta](component.Generation)
	if err != nil {
		return nil, fmt.Errorf("failed to decode generation: %w", err)
	}

	names, err := s.components.FindAllNames(ctx, orgID)
	if err != nil {
		return nil, err
	}

	manifestDoc := s.builder.Build(manifest.Input{
		Name:                component.Name,
		Slug:                component.Slug,
		Extracted:           &extracted,
		Meta:                &meta,
		AvailableComponents: names,
	})
	manifestJSON, err := models.ConvertToJSON(manifestDoc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}

	builtAt := time.Now()
	updates := map[string]any{
		"manifest":         []byte(manifestJSON),
		"embedding_status": models.EmbeddingStatusPending,
		"embedding_error":  nil,
		"updated_at":       builtAt,
	}
	if err := s.db.WithContext(ctx).Model(&models.Component{}).
		Where("id = ? AND org_id = ?", component.ID, orgID).
		Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to store manifest: %w", err)
	}

	s.log.Info().
		Str("component_id", component.ID.String()).
		Str("slug", component.Slug).
		Msg("manifest built")

	return &models.BuildResponse{
		ComponentID: component.ID,
		Name:        manifestDoc.Name,
		Manifest:    manifestJSON,
		SourceHash:  component.SourceHash,
		BuiltAt:     builtAt.UTC().Format(time.RFC3339),
	}, nil
}
