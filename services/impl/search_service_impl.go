package impl

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/context-engine/models"
	"github.com/context-engine/services"
	"github.com/context-engine/services/embedding"
)

const (
	rrfK                    = 60
	semanticChunkOverfetch  = 3
	hybridBranchOverfetch   = 2
	defaultSearchLimit      = 10
	maxSearchLimit          = 50
	maxSimilarLimit         = 20
	maxQueryLength          = 500
	defaultSemanticMinScore = 0.5
)

type searchServiceImpl struct {
	db       *gorm.DB
	embedder embedding.Client
	log      zerolog.Logger
}

// NewSearchService wires hybrid retrieval. embedder may be nil; semantic
// mode then fails with ErrEmbeddingUnavailable and hybrid degrades to
// keyword-only.
func NewSearchService(db *gorm.DB, embedder embedding.Client, log zerolog.Logger) services.SearchService {
	return &searchServiceImpl{
		db:       db,
		embedder: embedder,
		log:      log.With().Str("component", "search").Logger(),
	}
}

type searchRow struct {
	ComponentID uuid.UUID
	Slug        string
	Name        string
	Description string
	Framework   models.Framework
	Score       float64
}

func (r searchRow) result() models.SearchResult {
	return models.SearchResult{
		ComponentID: r.ComponentID,
		Slug:        r.Slug,
		Name:        r.Name,
		Description: r.Description,
		Framework:   r.Framework,
		Score:       r.Score,
	}
}

func (s *searchServiceImpl) Search(ctx context.Context, orgID uuid.UUID, req models.SearchRequest) (*models.SearchResponse, error) {
	query := strings.TrimSpace(req.Query)
	if utf8.RuneCountInString(query) > maxQueryLength {
		return nil, services.ErrValidation
	}
	if req.MinScore != nil && (*req.MinScore < 0 || *req.MinScore > 1) {
		return nil, services.ErrValidation
	}
	limit := req.Limit
	if limit < 1 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	mode := req.Mode
	if mode == "" {
		mode = models.SearchModeHybrid
	}

	keywordMin := 0.0
	semanticMin := defaultSemanticMinScore
	if req.MinScore != nil {
		keywordMin = *req.MinScore
		semanticMin = *req.MinScore
	}

	switch mode {
	case models.SearchModeKeyword:
		results, err := s.searchKeyword(ctx, orgID, query, limit, keywordMin, req.Framework)
		if err != nil {
			return nil, err
		}
		count := len(results)
		return &models.SearchResponse{
			Results: results,
			Total:   count,
			Query:   query,
			Meta:    models.SearchMeta{SearchMode: models.SearchModeKeyword, KeywordCount: &count},
		}, nil

	case models.SearchModeSemantic:
		if s.embedder == nil {
			return nil, services.ErrEmbeddingUnavailable
		}
		if query == "" {
			count := 0
			return &models.SearchResponse{
				Results: []models.SearchResult{},
				Query:   query,
				Meta:    models.SearchMeta{SearchMode: models.SearchModeSemantic, SemanticCount: &count},
			}, nil
		}
		queryVec, err := s.embedder.EmbedQuery(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", services.ErrEmbeddingUnavailable, err)
		}
		results, err := s.searchSemantic(ctx, orgID, queryVec, limit, semanticMin, req.Framework, uuid.Nil)
		if err != nil {
			return nil, err
		}
		count := len(results)
		return &models.SearchResponse{
			Results: results,
			Total:   count,
			Query:   query,
			Meta:    models.SearchMeta{SearchMode: models.SearchModeSemantic, SemanticCount: &count},
		}, nil

	case models.SearchModeHybrid:
		if s.embedder == nil {
			// Keyword-only degradation; the meta reports what actually ran.
			results, err := s.searchKeyword(ctx, orgID, query, limit, keywordMin, req.Framework)
			if err != nil {
				return nil, err
			}
			count := len(results)
			return &models.SearchResponse{
				Results: results,
				Total:   count,
				Query:   query,
				Meta:    models.SearchMeta{SearchMode: models.SearchModeKeyword, KeywordCount: &count},
			}, nil
		}

		if query == "" {
			count := 0
			return &models.SearchResponse{
				Results: []models.SearchResult{},
				Query:   query,
				Meta: models.SearchMeta{
					SearchMode:    models.SearchModeHybrid,
					SemanticCount: &count,
					KeywordCount:  &count,
				},
			}, nil
		}

		keywordResults, err := s.searchKeyword(ctx, orgID, query, limit*hybridBranchOverfetch, keywordMin, req.Framework)
		if err != nil {
			return nil, err
		}
		queryVec, err := s.embedder.EmbedQuery(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", services.ErrEmbeddingUnavailable, err)
		}
		semanticResults, err := s.searchSemantic(ctx, orgID, queryVec, limit*hybridBranchOverfetch, semanticMin, req.Framework, uuid.Nil)
		if err != nil {
			return nil, err
		}

		fused := fuseRRF(keywordResults, semanticResults, limit)
		keywordCount := len(keywordResults)
		semanticCount := len(semanticResults)
		return &models.SearchResponse{
			Results: fused,
			Total:   len(fused),
			Query:   query,
			Meta: models.SearchMeta{
				SearchMode:    models.SearchModeHybrid,
				SemanticCount: &semanticCount,
				KeywordCount:  &keywordCount,
			},
		}, nil

	default:
		return nil, services.ErrValidation
	}
}

// SimilarComponents embeds the seed component's manifest name+description
// and runs a semantic pass that excludes the seed itself.
func (s *searchServiceImpl) SimilarComponents(ctx context.Context, orgID uuid.UUID, req models.SimilarRequest) (*models.SearchResponse, error) {
	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" {
		return nil, services.ErrValidation
	}
	if req.MinScore != nil && (*req.MinScore < 0 || *req.MinScore > 1) {
		return nil, services.ErrValidation
	}
	if s.embedder == nil {
		return nil, services.ErrEmbeddingUnavailable
	}
	limit := req.Limit
	if limit < 1 {
		limit = defaultSearchLimit
	}
	if limit > maxSimilarLimit {
		limit = maxSimilarLimit
	}

	component, err := s.resolveComponent(ctx, orgID, identifier)
	if err != nil {
		return nil, err
	}
	if len(component.Manifest) == 0 {
		return nil, services.ErrNoManifest
	}
	aiManifest, err := models.ConvertFromJSON[models.AIManifest](component.Manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}

	seed := aiManifest.Name
	if seed == "" {
		seed = component.Name
	}
	if aiManifest.Description != "" {
		seed += ". " + aiManifest.Description
	}

	seedVec, err := s.embedder.EmbedQuery(ctx, seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", services.ErrEmbeddingUnavailable, err)
	}

	minScore := defaultSemanticMinScore
	if req.MinScore != nil {
		minScore = *req.MinScore
	}

	results, err := s.searchSemantic(ctx, orgID, seedVec, limit, minScore, req.Framework, component.ID)
	if err != nil {
		return nil, err
	}
	count := len(results)
	return &models.SearchResponse{
		Results: results,
		Total:   count,
		Query:   identifier,
		Meta:    models.SearchMeta{SearchMode: models.SearchModeSemantic, SemanticCount: &count},
	}, nil
}

// resolveComponent accepts a component id, slug, or name, tried in that
// order.
func (s *searchServiceImpl) resolveComponent(ctx context.Context, orgID uuid.UUID, identifier string) (*models.Component, error) {
	if id, err := uuid.Parse(identifier); err == nil {
		var component models.Component
		err := s.db.WithContext(ctx).Where("id = ? AND org_id = ?", id, orgID).First(&component).Error
		if err == nil {
			return &component, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to resolve component: %w", err)
		}
	}

	var component models.Component
	err := s.db.WithContext(ctx).Where("org_id = ? AND slug = ?", orgID, identifier).First(&component).Error
	if err == nil {
		return &component, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to resolve component: %w", err)
	}

	err = s.db.WithContext(ctx).Where("org_id = ? AND LOWER(name) = LOWER(?)", orgID, identifier).First(&component).Error
	if err == nil {
		return &component, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, services.ErrNotFound
	}
	return nil, fmt.Errorf("failed to resolve component: %w", err)
}

// searchKeyword ranks indexed components by weighted full-text match. The
// rank is normalized by document length (flag 32: rank/(rank+1) scaled), so
// scores stay inside [0,1).
func (s *searchServiceImpl) searchKeyword(ctx context.Context, orgID uuid.UUID, query string, limit int, minScore float64, framework *models.Framework) ([]models.SearchResult, error) {
	var b strings.Builder
	b.WriteString(`
SELECT id AS component_id, slug, name, framework,
	COALESCE(manifest->>'description', '') AS description,
	ts_rank(search_vector, websearch_to_tsquery('english', ?), 32) AS score
FROM context_engine.components
WHERE org_id = ?
	AND embedding_status = 'indexed'
	AND search_vector @@ websearch_to_tsquery('english', ?)
	AND ts_rank(search_vector, websearch_to_tsquery('english', ?), 32) >= ?`)
	args := []any{query, orgID, query, query, minScore}

	if framework != nil {
		b.WriteString(" AND framework = ?")
		args = append(args, *framework)
	}
	b.WriteString(" ORDER BY score DESC, name ASC LIMIT ?")
	args = append(args, limit)

	var rows []searchRow
	if err := s.db.WithContext(ctx).Raw(b.String(), args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}

	results := make([]models.SearchResult, len(rows))
	for i, row := range rows {
		results[i] = row.result()
	}
	return results, nil
}

// searchSemantic over-fetches chunks ordered by cosine distance (the
// ordering the HNSW index serves) and keeps each component's best chunk.
func (s *searchServiceImpl) searchSemantic(ctx context.Context, orgID uuid.UUID, queryVec []float32, limit int, minScore float64, framework *models.Framework, exclude uuid.UUID) ([]models.SearchResult, error) {
	vec := formatVector(queryVec)

	var b strings.Builder
	b.WriteString(`
SELECT k.component_id, c.slug, c.name, c.framework,
	COALESCE(c.manifest->>'description', '') AS description,
	(1 - (k.embedding <=> ?::vector))::float AS score
FROM context_engine.embedding_chunks k
JOIN context_engine.components c ON c.id = k.component_id AND c.org_id = k.org_id
WHERE k.org_id = ?
	AND c.embedding_status = 'indexed'`)
	args := []any{vec, orgID}

	if framework != nil {
		b.WriteString(" AND c.framework = ?")
		args = append(args, *framework)
	}
	if exclude != uuid.Nil {
		b.WriteString(" AND k.component_id <> ?")
		args = append(args, exclude)
	}
	b.WriteString(" ORDER BY k.embedding <=> ?::vector ASC LIMIT ?")
	args = append(args, vec, limit*semanticChunkOverfetch)

	var rows []searchRow
	if err := s.db.WithContext(ctx).Raw(b.String(), args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("semantic search failed: %w", err)
	}

	// Rows arrive most-similar first, so the first chunk seen for a
	// component already carries its maximum similarity.
	seen := make(map[uuid.UUID]bool, len(rows))
	results := make([]models.SearchResult, 0, limit)
	for _, row := range rows {
		if seen[row.ComponentID] {
			continue
		}
		seen[row.ComponentID] = true
		if row.Score < minScore {
			continue
		}
		results = append(results, row.result())
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

// fuseRRF merges two ranked lists by Reciprocal Rank Fusion: each appearance
// at 1-indexed rank r contributes 1/(k+r).
func fuseRRF(keyword, semantic []models.SearchResult, limit int) []models.SearchResult {
	type fusedEntry struct {
		result models.SearchResult
		score  float64
	}
	fused := make(map[uuid.UUID]*fusedEntry, len(keyword)+len(semantic))

	accumulate := func(list []models.SearchResult) {
		for rank, result := range list {
			contribution := 1.0 / float64(rrfK+rank+1)
			if entry, ok := fused[result.ComponentID]; ok {
				entry.score += contribution
				continue
			}
			fused[result.ComponentID] = &fusedEntry{result: result, score: contribution}
		}
	}
	accumulate(keyword)
	accumulate(semantic)

	merged := make([]models.SearchResult, 0, len(fused))
	for _, entry := range fused {
		result := entry.result
		result.Score = entry.score
		merged = append(merged, result)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].Slug < merged[j].Slug
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}
