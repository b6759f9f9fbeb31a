package test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/context-engine/models"
	"github.com/context-engine/services"
	"github.com/context-engine/services/embedding"
	"github.com/context-engine/services/extraction"
	"github.com/context-engine/services/impl"
	"github.com/context-engine/services/manifest"
)

// TestComponentLifecycle walks one component through the whole pipeline:
// extract from source, generate metadata, build the manifest, index it, and
// find it through search.
func TestComponentLifecycle(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	org := createTestOrg(t, db, "lifecycle-org")

	workspace, err := extraction.NewWorkspace(t.TempDir(), testLogger())
	require.NoError(t, err)
	engine := extraction.NewEngine(extraction.NewTypedPropsExtractor(), workspace, testLogger())
	builder := manifest.NewBuilder("@/components/ui")
	generator := &cannedGenerator{}
	embedder := embedding.NewMockClient(1024)

	componentService := impl.NewComponentService(db)
	pipelineService := impl.NewPipelineService(db, componentService, engine, generator, builder, testLogger())
	indexService := impl.NewIndexService(db, embedder, testLogger())
	searchService := impl.NewSearchService(db, embedder, testLogger())

	var componentID = models.NewComponentID()

	t.Run("1. Extract", func(t *testing.T) {
		resp, err := pipelineService.Extract(ctx, org.ID, models.ExtractRequest{
			SourceCode:  buttonSource,
			StoriesCode: buttonStories,
			Name:        "Button",
			Framework:   models.FrameworkReact,
			FilePath:    "src/components/ui/button.tsx",
		})
		require.NoError(t, err)
		componentID = resp.ComponentID

		assert.Equal(t, "Button", resp.Name)
		assert.NotEmpty(t, resp.Slug)
		assert.NotEmpty(t, resp.SourceHash)
		require.NotEmpty(t, resp.Extraction)

		extracted, err := models.ConvertFromJSON[models.ExtractedData](resp.Extraction)
		require.NoError(t, err)
		propNames := make([]string, 0, len(extracted.Props))
		for _, p := range extracted.Props {
			propNames = append(propNames, p.Name)
		}
		assert.Contains(t, propNames, "variant")
		assert.Contains(t, propNames, "size")

		t.Logf("✅ extracted %d props via %s", len(extracted.Props), resp.Metadata.Method)
	})

	t.Run("2. Generate before extract fails on other rows", func(t *testing.T) {
		bare, created, err := componentService.UpsertComponent(ctx, org.ID, models.UpsertComponentRequest{
			Name:      "BareCard",
			Framework: models.FrameworkReact,
		})
		require.NoError(t, err)
		require.True(t, created)

		_, err = pipelineService.Generate(ctx, org.ID, models.GenerateRequest{ComponentID: bare.ID})
		assert.ErrorIs(t, err, services.ErrNoExtraction)

		_, err = pipelineService.Build(ctx, org.ID, models.BuildRequest{ComponentID: bare.ID})
		assert.ErrorIs(t, err, services.ErrNoExtraction)
	})

	t.Run("3. Generate", func(t *testing.T) {
		resp, err := pipelineService.Generate(ctx, org.ID, models.GenerateRequest{
			ComponentID: componentID,
		})
		require.NoError(t, err)
		assert.Equal(t, "canned", resp.Provider)
		assert.Equal(t, "canned-model", resp.Model)
		assert.Equal(t, 1, generator.calls)

		var meta models.ComponentMeta
		require.NoError(t, json.Unmarshal(resp.Generation, &meta))
		assert.NotEmpty(t, meta.Description)
		assert.NotEmpty(t, meta.AI.WhenToUse)
	})

	t.Run("4. Build", func(t *testing.T) {
		resp, err := pipelineService.Build(ctx, org.ID, models.BuildRequest{
			ComponentID: componentID,
		})
		require.NoError(t, err)
		assert.Equal(t, "Button", resp.Name)
		assert.NotEmpty(t, resp.BuiltAt)

		var aiManifest models.AIManifest
		require.NoError(t, json.Unmarshal(resp.Manifest, &aiManifest))
		assert.NotEmpty(t, aiManifest.Description)
		assert.Contains(t, aiManifest.ImportStatement.Primary, "Button")

		component, err := componentService.GetComponent(ctx, org.ID, componentID)
		require.NoError(t, err)
		assert.Equal(t, models.EmbeddingStatusPending, component.EmbeddingStatus,
			"a rebuilt manifest must queue the row for reindexing")
	})

	t.Run("5. Index and verify chunks", func(t *testing.T) {
		chunks, err := indexService.IndexComponent(ctx, org.ID, componentID)
		require.NoError(t, err)
		assert.Greater(t, chunks, 0)

		var chunkCount int64
		require.NoError(t, db.Model(&models.EmbeddingChunk{}).
			Where("component_id = ?", componentID).Count(&chunkCount).Error)
		assert.Equal(t, int64(chunks), chunkCount)

		component, err := componentService.GetComponent(ctx, org.ID, componentID)
		require.NoError(t, err)
		assert.Equal(t, models.EmbeddingStatusIndexed, component.EmbeddingStatus)
	})

	t.Run("6. Search finds the component", func(t *testing.T) {
		resp, err := searchService.Search(ctx, org.ID, models.SearchRequest{
			Query: "button",
			Mode:  models.SearchModeKeyword,
		})
		require.NoError(t, err)
		require.NotEmpty(t, resp.Results)
		assert.Equal(t, componentID, resp.Results[0].ComponentID)
	})

	t.Run("7. Re-extract resets downstream phases", func(t *testing.T) {
		existing := componentID
		resp, err := pipelineService.Extract(ctx, org.ID, models.ExtractRequest{
			SourceCode: buttonSource + "\n// revised\n",
			Name:       "Button",
			Framework:  models.FrameworkReact,
			ExistingID: &existing,
		})
		require.NoError(t, err)
		assert.Equal(t, componentID, resp.ComponentID)

		component, err := componentService.GetComponent(ctx, org.ID, componentID)
		require.NoError(t, err)
		assert.Empty(t, component.Generation, "generation must be cleared")
		assert.Empty(t, component.Manifest, "manifest must be cleared")
		assert.Equal(t, models.EmbeddingStatusPending, component.EmbeddingStatus)

		var chunkCount int64
		require.NoError(t, db.Model(&models.EmbeddingChunk{}).
			Where("component_id = ?", componentID).Count(&chunkCount).Error)
		assert.Zero(t, chunkCount, "stale chunks must be dropped")
	})

	t.Run("8. Delete cascades chunks", func(t *testing.T) {
		victim := seedIndexedComponent(t, db, org.ID, "Toast",
			"Transient notification anchored to a screen edge.", models.FrameworkReact)
		_, err := indexService.ForceReindex(ctx, org.ID, victim.ID)
		require.NoError(t, err)

		require.NoError(t, componentService.DeleteComponent(ctx, org.ID, victim.ID))

		var chunkCount int64
		require.NoError(t, db.Model(&models.EmbeddingChunk{}).
			Where("component_id = ?", victim.ID).Count(&chunkCount).Error)
		assert.Zero(t, chunkCount)

		_, err = componentService.GetComponent(ctx, org.ID, victim.ID)
		assert.ErrorIs(t, err, services.ErrNotFound)
	})
}

// TestReconciliationFlow exercises status counting, claiming, and the
// org-scoped batch processor against real rows.
func TestReconciliationFlow(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	org := createTestOrg(t, db, "reconciliation-org")

	embedder := embedding.NewMockClient(1024)
	indexService := impl.NewIndexService(db, embedder, testLogger())

	pendingOf := func(name string) models.Component {
		component := seedIndexedComponent(t, db, org.ID, name,
			"Part of the reconciliation fixture set for background indexing.", models.FrameworkReact)
		require.NoError(t, db.Exec(
			`UPDATE context_engine.components SET embedding_status = 'pending' WHERE id = ?`, component.ID).Error)
		return component
	}

	first := pendingOf("Accordion")
	second := pendingOf("Breadcrumb")
	pendingOf("Checkbox")

	t.Run("1. Status counts", func(t *testing.T) {
		counts, err := indexService.CountByEmbeddingStatus(ctx, org.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), counts.Pending)
		assert.Equal(t, int64(3), counts.Total)
		assert.Zero(t, counts.Indexed)
	})

	t.Run("2. Claim is exclusive", func(t *testing.T) {
		claimed, err := indexService.ClaimForProcessing(ctx, org.ID, first.ID)
		require.NoError(t, err)
		assert.True(t, claimed)

		again, err := indexService.ClaimForProcessing(ctx, org.ID, first.ID)
		require.NoError(t, err)
		assert.False(t, again, "second claim must lose")

		// Put it back for the batch run below.
		require.NoError(t, db.Exec(
			`UPDATE context_engine.components SET embedding_status = 'pending' WHERE id = ?`, first.ID).Error)
	})

	t.Run("3. ProcessPending drains the org", func(t *testing.T) {
		resp, err := indexService.ProcessPending(ctx, org.ID, 10)
		require.NoError(t, err)
		assert.Equal(t, 3, resp.Processed)
		assert.Equal(t, 3, resp.Succeeded)
		assert.Zero(t, resp.Failed)

		counts, err := indexService.CountByEmbeddingStatus(ctx, org.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), counts.Indexed)
		assert.Zero(t, counts.Pending)
	})

	t.Run("4. Retry failed requeues", func(t *testing.T) {
		require.NoError(t, db.Exec(
			`UPDATE context_engine.components SET embedding_status = 'failed', embedding_error = 'boom' WHERE id = ?`,
			second.ID).Error)

		resp, err := indexService.RetryFailed(ctx, org.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), resp.Reset)

		var row models.Component
		require.NoError(t, db.Where("id = ?", second.ID).First(&row).Error)
		assert.Equal(t, models.EmbeddingStatusPending, row.EmbeddingStatus)
		assert.Nil(t, row.EmbeddingError)
	})

	t.Run("5. Index stats", func(t *testing.T) {
		// Re-index the retried row so the org is fully indexed again.
		_, err := indexService.ForceReindex(ctx, org.ID, second.ID)
		require.NoError(t, err)

		stats, err := indexService.GetIndexStats(ctx, org.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), stats.Components.Total)
		assert.Equal(t, int64(3), stats.Components.ByStatus[string(models.EmbeddingStatusIndexed)])
		assert.Greater(t, stats.Chunks.Total, int64(0))
		require.NotNil(t, stats.EmbeddingModel)
		assert.Equal(t, "mock", stats.EmbeddingModel.Provider)
	})
}
