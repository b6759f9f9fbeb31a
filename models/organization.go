package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Organization is the tenant root. Every component, chunk, and API key
// hangs off exactly one org.
type Organization struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Organization) TableName() string {
	return "context_engine.organizations"
}

type Scope string

const (
	ScopeComponentRead   Scope = "component:read"
	ScopeComponentWrite  Scope = "component:write"
	ScopeComponentDelete Scope = "component:delete"
	ScopeEmbeddingManage Scope = "embedding:manage"
	ScopeAdmin           Scope = "admin"

	// ScopePlatformAdmin is never stored on a tenant key; it is the synthetic
	// scope of the platform token context.
	ScopePlatformAdmin Scope = "platform:admin"
)

// KnownTenantScopes is the closed set storable on an API key. Key creation
// rejects anything outside it.
func KnownTenantScopes() []Scope {
	return []Scope{
		ScopeComponentRead,
		ScopeComponentWrite,
		ScopeComponentDelete,
		ScopeEmbeddingManage,
		ScopeAdmin,
	}
}

func IsKnownTenantScope(s Scope) bool {
	for _, k := range KnownTenantScopes() {
		if s == k {
			return true
		}
	}
	return false
}

// ApiKey stores only the HMAC digest of a tenant credential. The raw key is
// returned once at creation and never persisted.
type ApiKey struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	OrgID     uuid.UUID `gorm:"type:uuid;not null;index:idx_api_keys_org" json:"orgId"`
	Name      string    `gorm:"type:varchar(255)" json:"name"`
	KeyHash   string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_api_keys_hash" json:"-"`
	KeyPrefix string    `gorm:"type:varchar(8);not null" json:"keyPrefix"`

	Scopes datatypes.JSON `gorm:"type:jsonb;default:'[]'" json:"scopes"`

	Active    bool       `gorm:"not null;default:true" json:"active"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (ApiKey) TableName() string {
	return "context_engine.api_keys"
}

// ScopeList parses the stored scopes, dropping anything outside the known
// enumeration.
func (k *ApiKey) ScopeList() []Scope {
	raw, err := ConvertFromJSON[[]string](k.Scopes)
	if err != nil {
		return nil
	}
	scopes := make([]Scope, 0, len(raw))
	for _, s := range raw {
		if IsKnownTenantScope(Scope(s)) {
			scopes = append(scopes, Scope(s))
		}
	}
	return scopes
}

type CreateOrganizationRequest struct {
	Name string `json:"name" binding:"required"`
}

type UpdateOrganizationRequest struct {
	Name *string `json:"name,omitempty"`
}

type OrganizationListResponse struct {
	Organizations []Organization `json:"organizations"`
	Total         int64          `json:"total"`
	Limit         int            `json:"limit"`
	Offset        int            `json:"offset"`
}

type CreateApiKeyRequest struct {
	Name      string     `json:"name" binding:"required"`
	Scopes    []string   `json:"scopes" binding:"required"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// CreateApiKeyResponse is the only place the raw key ever appears.
type CreateApiKeyResponse struct {
	ID        uuid.UUID  `json:"id"`
	ApiKey    string     `json:"apiKey"`
	KeyPrefix string     `json:"keyPrefix"`
	Scopes    []Scope    `json:"scopes"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}
