package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/context-engine/models"
)

const (
	// TenantKeyPrefix marks org-scoped credentials: ce_ + 64 lowercase hex.
	TenantKeyPrefix = "ce_"
	// PlatformKeyPrefix marks the cross-tenant admin token. Checked before
	// the tenant prefix since "cep_" also begins with "ce".
	PlatformKeyPrefix = "cep_"

	rawKeyHexLen = 64
	keyPrefixLen = 8
)

var tenantKeyPattern = regexp.MustCompile(`^ce_[0-9a-f]{64}$`)

// ErrUnauthorized covers every credential failure. The cause is deliberately
// not distinguished to the caller.
var ErrUnauthorized = errors.New("invalid or expired credentials")

type Kind string

const (
	KindTenant   Kind = "tenant"
	KindPlatform Kind = "platform"
)

// Context is the authenticated identity attached to a request.
type Context struct {
	Kind     Kind
	OrgID    uuid.UUID
	ApiKeyID uuid.UUID
	Scopes   []models.Scope
}

// HasScope reports whether a tenant context carries the scope, directly or
// via admin. Platform contexts never satisfy tenant scopes.
func (c *Context) HasScope(s models.Scope) bool {
	if c == nil || c.Kind != KindTenant {
		return false
	}
	for _, have := range c.Scopes {
		if have == models.ScopeAdmin || have == s {
			return true
		}
	}
	return false
}

// HasAllScopes is vacuously true for an empty list on a tenant context.
func (c *Context) HasAllScopes(scopes []models.Scope) bool {
	if c == nil || c.Kind != KindTenant {
		return false
	}
	for _, s := range scopes {
		if !c.HasScope(s) {
			return false
		}
	}
	return true
}

func (c *Context) IsPlatform() bool {
	return c != nil && c.Kind == KindPlatform
}

// GeneratedKey carries a freshly minted tenant credential. Raw exists only
// in this value; storage keeps Hash and Prefix.
type GeneratedKey struct {
	Raw    string
	Hash   string
	Prefix string
}

// GenerateAPIKey mints a new raw tenant key and its stored digest.
func GenerateAPIKey(secret string) (*GeneratedKey, error) {
	buf := make([]byte, rawKeyHexLen/2)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate key material: %w", err)
	}
	body := hex.EncodeToString(buf)
	raw := TenantKeyPrefix + body
	return &GeneratedKey{
		Raw:    raw,
		Hash:   HashKey(raw, secret),
		Prefix: body[:keyPrefixLen],
	}, nil
}

// HashKey digests a raw key with the server secret. The digest, never the
// key, is what api_keys rows store.
func HashKey(rawKey, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(rawKey))
	return hex.EncodeToString(mac.Sum(nil))
}

// Validator resolves bearer credentials into authenticated contexts.
type Validator struct {
	db            *gorm.DB
	secret        string
	platformToken string
}

func NewValidator(db *gorm.DB, secret, platformToken string) *Validator {
	return &Validator{
		db:            db,
		secret:        secret,
		platformToken: platformToken,
	}
}

// Validate classifies the token by prefix, platform before tenant, and
// rejects everything else.
func (v *Validator) Validate(ctx context.Context, token string) (*Context, error) {
	if strings.HasPrefix(token, PlatformKeyPrefix) {
		return v.validatePlatform(token)
	}
	if strings.HasPrefix(token, TenantKeyPrefix) {
		return v.validateTenant(ctx, token)
	}
	return nil, ErrUnauthorized
}

func (v *Validator) validatePlatform(token string) (*Context, error) {
	if v.platformToken == "" {
		return nil, ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(v.platformToken)) != 1 {
		return nil, ErrUnauthorized
	}
	return &Context{
		Kind:   KindPlatform,
		Scopes: []models.Scope{models.ScopePlatformAdmin},
	}, nil
}

func (v *Validator) validateTenant(ctx context.Context, token string) (*Context, error) {
	if !tenantKeyPattern.MatchString(token) {
		return nil, ErrUnauthorized
	}

	digest := HashKey(token, v.secret)

	var key models.ApiKey
	if err := v.db.WithContext(ctx).Where("key_hash = ?", digest).First(&key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to look up API key: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(key.KeyHash), []byte(digest)) != 1 {
		return nil, ErrUnauthorized
	}
	if !key.Active {
		return nil, ErrUnauthorized
	}
	if key.ExpiresAt != nil && time.Now().After(*key.ExpiresAt) {
		return nil, ErrUnauthorized
	}

	return &Context{
		Kind:     KindTenant,
		OrgID:    key.OrgID,
		ApiKeyID: key.ID,
		Scopes:   key.ScopeList(),
	}, nil
}
