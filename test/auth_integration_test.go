package test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/context-engine/auth"
	"github.com/context-engine/models"
	"github.com/context-engine/services"
	"github.com/context-engine/services/impl"
)

const (
	testHashSecret    = "integration-hash-secret"
	testPlatformToken = "cep_integration_platform_token"
)

// TestApiKeyRoundTrip mints a key through the admin surface and validates
// it the way the middleware would.
func TestApiKeyRoundTrip(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()

	orgService := impl.NewOrganizationService(db, testHashSecret)
	validator := auth.NewValidator(db, testHashSecret, testPlatformToken)

	org := createTestOrg(t, db, "auth-roundtrip-org")

	created, err := orgService.CreateApiKey(ctx, org.ID, models.CreateApiKeyRequest{
		Name:   "ci-key",
		Scopes: []string{"component:read", "component:write"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ApiKey)
	assert.True(t, len(created.ApiKey) > len("ce_"), "raw key must carry material beyond the prefix")
	assert.Contains(t, created.ApiKey, "ce_")

	t.Run("1. Raw key validates to a tenant context", func(t *testing.T) {
		authCtx, err := validator.Validate(ctx, created.ApiKey)
		require.NoError(t, err)
		assert.Equal(t, auth.KindTenant, authCtx.Kind)
		assert.Equal(t, org.ID, authCtx.OrgID)
		assert.True(t, authCtx.HasScope(models.ScopeComponentRead))
		assert.True(t, authCtx.HasScope(models.ScopeComponentWrite))
		assert.False(t, authCtx.HasScope(models.ScopeEmbeddingManage))
	})

	t.Run("2. Tampered key fails", func(t *testing.T) {
		_, err := validator.Validate(ctx, created.ApiKey+"x")
		assert.ErrorIs(t, err, auth.ErrUnauthorized)
	})

	t.Run("3. Unknown scope is rejected at minting", func(t *testing.T) {
		_, err := orgService.CreateApiKey(ctx, org.ID, models.CreateApiKeyRequest{
			Name:   "bad-key",
			Scopes: []string{"component:read", "component:admin"},
		})
		assert.ErrorIs(t, err, services.ErrValidation)
	})

	t.Run("4. Expired key fails closed", func(t *testing.T) {
		future := time.Now().Add(time.Hour)
		shortLived, err := orgService.CreateApiKey(ctx, org.ID, models.CreateApiKeyRequest{
			Name:      "short-lived",
			Scopes:    []string{"component:read"},
			ExpiresAt: &future,
		})
		require.NoError(t, err)

		_, err = validator.Validate(ctx, shortLived.ApiKey)
		require.NoError(t, err, "key must be valid before expiry")

		require.NoError(t, db.Exec(
			`UPDATE context_engine.api_keys SET expires_at = NOW() - INTERVAL '1 minute' WHERE id = ?`,
			shortLived.ID).Error)

		_, err = validator.Validate(ctx, shortLived.ApiKey)
		assert.ErrorIs(t, err, auth.ErrUnauthorized)
	})

	t.Run("5. Revoked key fails", func(t *testing.T) {
		require.NoError(t, orgService.RevokeApiKey(ctx, org.ID, created.ID))

		_, err := validator.Validate(ctx, created.ApiKey)
		assert.ErrorIs(t, err, auth.ErrUnauthorized)

		keys, err := orgService.ListApiKeys(ctx, org.ID)
		require.NoError(t, err)
		for _, key := range keys {
			if key.ID == created.ID {
				assert.False(t, key.Active, "revocation deactivates instead of deleting")
			}
		}
	})

	t.Run("6. Platform token bypasses the key table", func(t *testing.T) {
		authCtx, err := validator.Validate(ctx, testPlatformToken)
		require.NoError(t, err)
		assert.True(t, authCtx.IsPlatform())
		assert.False(t, authCtx.HasScope(models.ScopeComponentRead),
			"platform context never satisfies tenant scopes")
	})
}

// TestOrganizationLifecycle covers the admin CRUD plus the guarded delete.
func TestOrganizationLifecycle(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()

	orgService := impl.NewOrganizationService(db, testHashSecret)

	org, err := orgService.CreateOrg(ctx, models.CreateOrganizationRequest{Name: "Acme Design Systems"})
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Exec(`DELETE FROM context_engine.components WHERE org_id = ?`, org.ID)
		db.Exec(`DELETE FROM context_engine.api_keys WHERE org_id = ?`, org.ID)
		db.Exec(`DELETE FROM context_engine.organizations WHERE id = ?`, org.ID)
	})

	t.Run("1. Get and update", func(t *testing.T) {
		loaded, err := orgService.GetOrg(ctx, org.ID)
		require.NoError(t, err)
		assert.Equal(t, "Acme Design Systems", loaded.Name)

		newName := "Acme DS"
		updated, err := orgService.UpdateOrg(ctx, org.ID, models.UpdateOrganizationRequest{Name: &newName})
		require.NoError(t, err)
		assert.Equal(t, "Acme DS", updated.Name)
	})

	t.Run("2. Delete refuses while components exist", func(t *testing.T) {
		component := seedIndexedComponent(t, db, org.ID, "Badge",
			"Small status descriptor for counts and labels.", models.FrameworkReact)

		err := orgService.DeleteOrg(ctx, org.ID)
		assert.ErrorIs(t, err, services.ErrConflict)

		require.NoError(t, db.Exec(`DELETE FROM context_engine.components WHERE id = ?`, component.ID).Error)

		require.NoError(t, orgService.DeleteOrg(ctx, org.ID))
		_, err = orgService.GetOrg(ctx, org.ID)
		assert.ErrorIs(t, err, services.ErrNotFound)
	})
}
