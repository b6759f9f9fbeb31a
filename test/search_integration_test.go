package test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/context-engine/models"
	"github.com/context-engine/services"
	"github.com/context-engine/services/embedding"
	"github.com/context-engine/services/impl"
)

// TestKeywordSearchRanking seeds components where the query term appears in
// different fields and checks the weighted ranking: a name hit must beat a
// description-only hit.
func TestKeywordSearchRanking(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	org := createTestOrg(t, db, "search-ranking-org")

	calendar := seedIndexedComponent(t, db, org.ID, "Calendar",
		"Displays days of a month in a grid for browsing and selection.", models.FrameworkReact)
	datePicker := seedIndexedComponent(t, db, org.ID, "DatePicker",
		"Lets users pick a date from a calendar shown in a popover.", models.FrameworkReact)
	seedIndexedComponent(t, db, org.ID, "Button",
		"Triggers an action when pressed.", models.FrameworkReact)

	searchService := impl.NewSearchService(db, nil, testLogger())

	t.Run("1. Name match outranks description match", func(t *testing.T) {
		resp, err := searchService.Search(ctx, org.ID, models.SearchRequest{
			Query: "calendar",
			Mode:  models.SearchModeKeyword,
		})
		require.NoError(t, err)
		require.Len(t, resp.Results, 2, "Button must not match")

		assert.Equal(t, calendar.ID, resp.Results[0].ComponentID, "name hit should rank first")
		assert.Equal(t, datePicker.ID, resp.Results[1].ComponentID)
		assert.Greater(t, resp.Results[0].Score, resp.Results[1].Score)

		assert.Equal(t, models.SearchModeKeyword, resp.Meta.SearchMode)
		require.NotNil(t, resp.Meta.KeywordCount)
		assert.Equal(t, 2, *resp.Meta.KeywordCount)

		t.Logf("✅ calendar=%.4f datePicker=%.4f", resp.Results[0].Score, resp.Results[1].Score)
	})

	t.Run("2. Framework filter", func(t *testing.T) {
		seedIndexedComponent(t, db, org.ID, "CalendarHeatmap",
			"Shows activity intensity per day.", models.FrameworkVue)

		react := models.FrameworkReact
		resp, err := searchService.Search(ctx, org.ID, models.SearchRequest{
			Query:     "calendar",
			Mode:      models.SearchModeKeyword,
			Framework: &react,
		})
		require.NoError(t, err)
		for _, result := range resp.Results {
			assert.Equal(t, models.FrameworkReact, result.Framework)
		}
	})

	t.Run("3. Pending components stay invisible", func(t *testing.T) {
		draft := seedIndexedComponent(t, db, org.ID, "CalendarRange",
			"Selects a span of days across months.", models.FrameworkReact)
		require.NoError(t, db.Exec(
			`UPDATE context_engine.components SET embedding_status = 'pending' WHERE id = ?`, draft.ID).Error)

		resp, err := searchService.Search(ctx, org.ID, models.SearchRequest{
			Query: "calendar",
			Mode:  models.SearchModeKeyword,
		})
		require.NoError(t, err)
		for _, result := range resp.Results {
			assert.NotEqual(t, draft.ID, result.ComponentID)
		}
	})

	t.Run("4. Org isolation", func(t *testing.T) {
		otherOrg := createTestOrg(t, db, "search-ranking-other-org")
		resp, err := searchService.Search(ctx, otherOrg.ID, models.SearchRequest{
			Query: "calendar",
			Mode:  models.SearchModeKeyword,
		})
		require.NoError(t, err)
		assert.Empty(t, resp.Results)
	})
}

func TestSearchValidation(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	org := createTestOrg(t, db, "search-validation-org")

	searchService := impl.NewSearchService(db, nil, testLogger())

	t.Run("empty query matches nothing without erroring", func(t *testing.T) {
		resp, err := searchService.Search(ctx, org.ID, models.SearchRequest{
			Query: "   ",
			Mode:  models.SearchModeKeyword,
		})
		require.NoError(t, err)
		assert.Empty(t, resp.Results)
		assert.Equal(t, 0, resp.Total)
	})

	t.Run("over-long query", func(t *testing.T) {
		_, err := searchService.Search(ctx, org.ID, models.SearchRequest{
			Query: strings.Repeat("x", 501),
		})
		assert.ErrorIs(t, err, services.ErrValidation)
	})

	t.Run("minScore out of range", func(t *testing.T) {
		bad := 1.5
		_, err := searchService.Search(ctx, org.ID, models.SearchRequest{
			Query:    "button",
			MinScore: &bad,
		})
		assert.ErrorIs(t, err, services.ErrValidation)
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := searchService.Search(ctx, org.ID, models.SearchRequest{
			Query: "button",
			Mode:  models.SearchMode("fuzzy"),
		})
		assert.ErrorIs(t, err, services.ErrValidation)
	})
}

// TestSearchWithoutEmbedder pins the keyword-only operating mode: semantic
// fails loudly, hybrid silently degrades and says so in the metadata.
func TestSearchWithoutEmbedder(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	org := createTestOrg(t, db, "keyword-only-org")

	seedIndexedComponent(t, db, org.ID, "Tooltip",
		"Shows contextual help next to a hovered element.", models.FrameworkReact)

	searchService := impl.NewSearchService(db, nil, testLogger())

	t.Run("semantic mode fails", func(t *testing.T) {
		_, err := searchService.Search(ctx, org.ID, models.SearchRequest{
			Query: "tooltip",
			Mode:  models.SearchModeSemantic,
		})
		assert.ErrorIs(t, err, services.ErrEmbeddingUnavailable)
	})

	t.Run("similar fails", func(t *testing.T) {
		_, err := searchService.SimilarComponents(ctx, org.ID, models.SimilarRequest{
			Identifier: "Tooltip",
		})
		assert.ErrorIs(t, err, services.ErrEmbeddingUnavailable)
	})

	t.Run("hybrid degrades to keyword", func(t *testing.T) {
		resp, err := searchService.Search(ctx, org.ID, models.SearchRequest{
			Query: "tooltip",
			Mode:  models.SearchModeHybrid,
		})
		require.NoError(t, err)
		assert.Equal(t, models.SearchModeKeyword, resp.Meta.SearchMode)
		assert.Nil(t, resp.Meta.SemanticCount)
		require.Len(t, resp.Results, 1)
	})
}

// TestHybridSearchWithMockEmbedder runs the full index-then-search path with
// deterministic vectors: chunks are written, both branches produce hits, and
// the fused result carries both counters.
func TestHybridSearchWithMockEmbedder(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	org := createTestOrg(t, db, "hybrid-search-org")

	embedder := embedding.NewMockClient(1024)
	searchService := impl.NewSearchService(db, embedder, testLogger())
	indexService := impl.NewIndexService(db, embedder, testLogger())

	component := seedIndexedComponent(t, db, org.ID, "Dialog",
		"A modal window that interrupts the flow for a focused task.", models.FrameworkReact)
	require.NoError(t, db.Exec(
		`UPDATE context_engine.components SET embedding_status = 'pending' WHERE id = ?`, component.ID).Error)

	chunks, err := indexService.IndexComponent(ctx, org.ID, component.ID)
	require.NoError(t, err)
	require.Greater(t, chunks, 0, "manifest should chunk into at least one row")

	var stored models.Component
	require.NoError(t, db.Where("id = ?", component.ID).First(&stored).Error)
	assert.Equal(t, models.EmbeddingStatusIndexed, stored.EmbeddingStatus)
	require.NotNil(t, stored.EmbeddingModel)
	assert.Equal(t, "mock", stored.EmbeddingModel.Provider)

	zero := 0.0
	resp, err := searchService.Search(ctx, org.ID, models.SearchRequest{
		Query:    "dialog",
		Mode:     models.SearchModeHybrid,
		MinScore: &zero,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, component.ID, resp.Results[0].ComponentID)

	assert.Equal(t, models.SearchModeHybrid, resp.Meta.SearchMode)
	require.NotNil(t, resp.Meta.KeywordCount)
	require.NotNil(t, resp.Meta.SemanticCount)
	assert.GreaterOrEqual(t, *resp.Meta.KeywordCount, 1)
	assert.GreaterOrEqual(t, *resp.Meta.SemanticCount, 1)

	t.Logf("✅ hybrid search fused keyword=%d semantic=%d", *resp.Meta.KeywordCount, *resp.Meta.SemanticCount)
}
