package impl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/context-engine/models"
	"github.com/context-engine/services"
)

type componentServiceImpl struct {
	db *gorm.DB
}

func NewComponentService(db *gorm.DB) services.ComponentService {
	return &componentServiceImpl{db: db}
}

// translateDBError maps duplicate-key violations onto the conflict sentinel
// so handlers can answer 409. Relies on TranslateError being set on the
// gorm session.
func translateDBError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return services.ErrConflict
	}
	return err
}

// UpsertComponent is keyed by the component's identity within the org:
// (name, framework), case-insensitive on name. The slug embeds the row id,
// so a fresh row can never collide on slug alone.
func (s *componentServiceImpl) UpsertComponent(ctx context.Context, orgID uuid.UUID, req models.UpsertComponentRequest) (*models.Component, bool, error) {
	if req.Name == "" {
		return nil, false, services.ErrValidation
	}
	framework := req.Framework
	if framework == "" {
		framework = models.FrameworkReact
	}
	if !models.IsKnownFramework(framework) {
		return nil, false, services.ErrValidation
	}

	var existing models.Component
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND LOWER(name) = LOWER(?) AND framework = ?", orgID, req.Name, framework).
		First(&existing).Error

	switch {
	case err == nil:
		updates := map[string]any{"updated_at": time.Now()}
		if req.Version != "" {
			updates["version"] = req.Version
		}
		if req.Visibility != "" {
			updates["visibility"] = req.Visibility
		}
		if req.SourceHash != "" {
			updates["source_hash"] = req.SourceHash
		}
		if req.FilePath != "" {
			updates["file_path"] = req.FilePath
		}
		if req.Extraction != nil {
			updates["extraction"] = []byte(req.Extraction)
		}
		if req.Generation != nil {
			updates["generation"] = []byte(req.Generation)
		}
		if req.Manifest != nil {
			updates["manifest"] = []byte(req.Manifest)
			updates["embedding_status"] = models.EmbeddingStatusPending
			updates["embedding_error"] = nil
		}
		if err := s.db.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
			return nil, false, fmt.Errorf("failed to update component: %w", translateDBError(err))
		}
		if err := s.db.WithContext(ctx).First(&existing, "id = ?", existing.ID).Error; err != nil {
			return nil, false, fmt.Errorf("failed to reload component: %w", err)
		}
		return &existing, false, nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		id := models.NewComponentID()
		visibility := req.Visibility
		if visibility == "" {
			visibility = models.VisibilityPrivate
		}
		component := &models.Component{
			ID:              id,
			OrgID:           orgID,
			Slug:            models.SlugFor(req.Name, framework, id),
			Name:            req.Name,
			Framework:       framework,
			Version:         req.Version,
			Visibility:      visibility,
			SourceHash:      req.SourceHash,
			FilePath:        req.FilePath,
			EmbeddingStatus: models.EmbeddingStatusPending,
			CreatedAt:       time.Now(),
			UpdatedAt:       time.Now(),
		}
		if req.Extraction != nil {
			component.Extraction = []byte(req.Extraction)
		}
		if req.Generation != nil {
			component.Generation = []byte(req.Generation)
		}
		if req.Manifest != nil {
			component.Manifest = []byte(req.Manifest)
		}
		if err := s.db.WithContext(ctx).Create(component).Error; err != nil {
			return nil, false, fmt.Errorf("failed to create component: %w", translateDBError(err))
		}
		return component, true, nil

	default:
		return nil, false, fmt.Errorf("failed to look up component: %w", err)
	}
}

func (s *componentServiceImpl) GetComponent(ctx context.Context, orgID uuid.UUID, id uuid.UUID) (*models.Component, error) {
	var component models.Component
	if err := s.db.WithContext(ctx).Where("id = ? AND org_id = ?", id, orgID).First(&component).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get component: %w", err)
	}
	return &component, nil
}

func (s *componentServiceImpl) GetComponentBySlug(ctx context.Context, orgID uuid.UUID, slug string) (*models.Component, error) {
	var component models.Component
	if err := s.db.WithContext(ctx).Where("org_id = ? AND slug = ?", orgID, slug).First(&component).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get component by slug: %w", err)
	}
	return &component, nil
}

func (s *componentServiceImpl) GetComponentByName(ctx context.Context, orgID uuid.UUID, name string) (*models.Component, error) {
	var component models.Component
	if err := s.db.WithContext(ctx).Where("org_id = ? AND LOWER(name) = LOWER(?)", orgID, name).First(&component).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get component by name: %w", err)
	}
	return &component, nil
}

// orderColumns whitelists sortable columns; anything else falls back to name.
var orderColumns = map[string]string{
	"name":      "name",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

func (s *componentServiceImpl) ListComponents(ctx context.Context, orgID uuid.UUID, filter models.ComponentListFilter) (*models.ComponentListResponse, error) {
	query := s.db.WithContext(ctx).Model(&models.Component{}).Where("org_id = ?", orgID)

	if filter.Framework != nil {
		query = query.Where("framework = ?", *filter.Framework)
	}
	if filter.Visibility != nil {
		query = query.Where("visibility = ?", *filter.Visibility)
	}
	if filter.EmbeddingStatus != nil {
		query = query.Where("embedding_status = ?", *filter.EmbeddingStatus)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count components: %w", err)
	}

	limit := filter.Limit
	if limit < 1 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	column, ok := orderColumns[filter.OrderBy]
	if !ok {
		column = "name"
	}
	direction := "ASC"
	if filter.Order == "desc" {
		direction = "DESC"
	}

	var components []models.Component
	if err := query.Order(column + " " + direction).Limit(limit).Offset(offset).Find(&components).Error; err != nil {
		return nil, fmt.Errorf("failed to list components: %w", err)
	}

	return &models.ComponentListResponse{
		Components: components,
		Total:      total,
		Limit:      limit,
		Offset:     offset,
	}, nil
}

func (s *componentServiceImpl) UpdateComponent(ctx context.Context, orgID uuid.UUID, id uuid.UUID, req models.UpdateComponentRequest) (*models.Component, error) {
	var component models.Component
	if err := s.db.WithContext(ctx).Where("id = ? AND org_id = ?", id, orgID).First(&component).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find component: %w", err)
	}

	updates := make(map[string]any)
	if req.Name != nil {
		if *req.Name == "" {
			return nil, services.ErrValidation
		}
		updates["name"] = *req.Name
	}
	if req.Version != nil {
		updates["version"] = *req.Version
	}
	if req.Visibility != nil {
		updates["visibility"] = *req.Visibility
	}
	if req.FilePath != nil {
		updates["file_path"] = *req.FilePath
	}
	if req.Manifest != nil {
		// A changed manifest invalidates the index for this row.
		updates["manifest"] = []byte(*req.Manifest)
		updates["embedding_status"] = models.EmbeddingStatusPending
		updates["embedding_error"] = nil
	}
	updates["updated_at"] = time.Now()

	if err := s.db.WithContext(ctx).Model(&component).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update component: %w", translateDBError(err))
	}
	if err := s.db.WithContext(ctx).First(&component, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to reload component: %w", err)
	}
	return &component, nil
}

func (s *componentServiceImpl) DeleteComponent(ctx context.Context, orgID uuid.UUID, id uuid.UUID) error {
	// Chunks first so a crash between the two deletes never orphans them.
	if err := s.db.WithContext(ctx).Where("component_id = ? AND org_id = ?", id, orgID).Delete(&models.EmbeddingChunk{}).Error; err != nil {
		return fmt.Errorf("failed to delete component chunks: %w", err)
	}

	result := s.db.WithContext(ctx).Where("id = ? AND org_id = ?", id, orgID).Delete(&models.Component{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete component: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return services.ErrNotFound
	}
	return nil
}

func (s *componentServiceImpl) FindAllManifests(ctx context.Context, orgID uuid.UUID, filter models.ManifestFilter) ([]models.ManifestSummary, error) {
	limit := filter.Limit
	if limit < 1 || limit > 100 {
		limit = 100
	}

	query := s.db.WithContext(ctx).Model(&models.Component{}).
		Select("id AS component_id, slug, name, framework, manifest, embedding_status AS status").
		Where("org_id = ? AND manifest IS NOT NULL", orgID)

	if len(filter.Slugs) > 0 {
		query = query.Where("slug IN ?", filter.Slugs)
	}
	if filter.Framework != nil {
		query = query.Where("framework = ?", *filter.Framework)
	}

	var summaries []models.ManifestSummary
	if err := query.Order("name ASC").Limit(limit).Find(&summaries).Error; err != nil {
		return nil, fmt.Errorf("failed to list manifests: %w", err)
	}
	return summaries, nil
}

func (s *componentServiceImpl) FindAllNames(ctx context.Context, orgID uuid.UUID) ([]string, error) {
	var names []string
	if err := s.db.WithContext(ctx).Model(&models.Component{}).
		Where("org_id = ?", orgID).
		Order("name ASC").
		Pluck("name", &names).Error; err != nil {
		return nil, fmt.Errorf("failed to list component names: %w", err)
	}
	return names, nil
}
