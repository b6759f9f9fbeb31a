package impl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/context-engine/auth"
	"github.com/context-engine/models"
	"github.com/context-engine/services"
)

type organizationServiceImpl struct {
	db     *gorm.DB
	secret string
}

// NewOrganizationService wires tenant administration. secret is the HMAC
// key used to digest freshly minted API keys.
func NewOrganizationService(db *gorm.DB, secret string) services.OrganizationService {
	return &organizationServiceImpl{db: db, secret: secret}
}

func (s *organizationServiceImpl) CreateOrg(ctx context.Context, req models.CreateOrganizationRequest) (*models.Organization, error) {
	if req.Name == "" {
		return nil, services.ErrValidation
	}
	org := &models.Organization{
		ID:        uuid.New(),
		Name:      req.Name,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(org).Error; err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", translateDBError(err))
	}
	return org, nil
}

func (s *organizationServiceImpl) GetOrg(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	var org models.Organization
	if err := s.db.WithContext(ctx).First(&org, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &org, nil
}

func (s *organizationServiceImpl) ListOrgs(ctx context.Context, limit, offset int) (*models.OrganizationListResponse, error) {
	if limit < 1 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Organization{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count organizations: %w", err)
	}

	var orgs []models.Organization
	if err := s.db.WithContext(ctx).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&orgs).Error; err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}

	return &models.OrganizationListResponse{
		Organizations: orgs,
		Total:         total,
		Limit:         limit,
		Offset:        offset,
	}, nil
}

func (s *organizationServiceImpl) UpdateOrg(ctx context.Context, id uuid.UUID, req models.UpdateOrganizationRequest) (*models.Organization, error) {
	var org models.Organization
	if err := s.db.WithContext(ctx).First(&org, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find organization: %w", err)
	}

	updates := map[string]any{"updated_at": time.Now()}
	if req.Name != nil {
		if *req.Name == "" {
			return nil, services.ErrValidation
		}
		updates["name"] = *req.Name
	}

	if err := s.db.WithContext(ctx).Model(&org).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update organization: %w", err)
	}
	if err := s.db.WithContext(ctx).First(&org, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to reload organization: %w", err)
	}
	return &org, nil
}

// DeleteOrg refuses to remove a tenant that still owns components; callers
// must drain the library first.
func (s *organizationServiceImpl) DeleteOrg(ctx context.Context, id uuid.UUID) error {
	var org models.Organization
	if err := s.db.WithContext(ctx).First(&org, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return services.ErrNotFound
		}
		return fmt.Errorf("failed to find organization: %w", err)
	}

	var componentCount int64
	if err := s.db.WithContext(ctx).Model(&models.Component{}).
		Where("org_id = ?", id).
		Count(&componentCount).Error; err != nil {
		return fmt.Errorf("failed to count components: %w", err)
	}
	if componentCount > 0 {
		return services.ErrConflict
	}

	if err := s.db.WithContext(ctx).Where("org_id = ?", id).Delete(&models.ApiKey{}).Error; err != nil {
		return fmt.Errorf("failed to delete organization API keys: %w", err)
	}

	result := s.db.WithContext(ctx).Delete(&models.Organization{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete organization: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return services.ErrNotFound
	}
	return nil
}

func (s *organizationServiceImpl) CreateApiKey(ctx context.Context, orgID uuid.UUID, req models.CreateApiKeyRequest) (*models.CreateApiKeyResponse, error) {
	if req.Name == "" || len(req.Scopes) == 0 {
		return nil, services.ErrValidation
	}
	scopes := make([]models.Scope, 0, len(req.Scopes))
	for _, raw := range req.Scopes {
		scope := models.Scope(raw)
		if !models.IsKnownTenantScope(scope) {
			return nil, services.ErrValidation
		}
		scopes = append(scopes, scope)
	}
	if req.ExpiresAt != nil && req.ExpiresAt.Before(time.Now()) {
		return nil, services.ErrValidation
	}

	if _, err := s.GetOrg(ctx, orgID); err != nil {
		return nil, err
	}

	generated, err := auth.GenerateAPIKey(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate API key: %w", err)
	}

	scopesJSON, err := models.ConvertToJSON(scopes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode scopes: %w", err)
	}

	key := &models.ApiKey{
		ID:        uuid.New(),
		OrgID:     orgID,
		Name:      req.Name,
		KeyHash:   generated.Hash,
		KeyPrefix: generated.Prefix,
		Scopes:    scopesJSON,
		Active:    true,
		ExpiresAt: req.ExpiresAt,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(key).Error; err != nil {
		return nil, fmt.Errorf("failed to create API key: %w", translateDBError(err))
	}

	return &models.CreateApiKeyResponse{
		ID:        key.ID,
		ApiKey:    generated.Raw,
		KeyPrefix: generated.Prefix,
		Scopes:    scopes,
		ExpiresAt: key.ExpiresAt,
	}, nil
}

func (s *organizationServiceImpl) ListApiKeys(ctx context.Context, orgID uuid.UUID) ([]models.ApiKey, error) {
	var keys []models.ApiKey
	if err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at DESC").
		Find(&keys).Error; err != nil {
		return nil, fmt.Errorf("failed to list API keys: %w", err)
	}
	return keys, nil
}

// RevokeApiKey deactivates the key but keeps the row for audit.
func (s *organizationServiceImpl) RevokeApiKey(ctx context.Context, orgID uuid.UUID, keyID uuid.UUID) error {
	result := s.db.WithContext(ctx).Model(&models.ApiKey{}).
		Where("id = ? AND org_id = ?", keyID, orgID).
		Updates(map[string]any{"active": false, "updated_at": time.Now()})
	if result.Error != nil {
		return fmt.Errorf("failed to revoke API key: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return services.ErrNotFound
	}
	return nil
}
