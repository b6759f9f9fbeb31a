package impl

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/context-engine/models"
	"github.com/context-engine/services"
	"github.com/context-engine/services/embedding"
	"github.com/context-engine/services/manifest"
)

type indexServiceImpl struct {
	db       *gorm.DB
	embedder embedding.Client
	log      zerolog.Logger
}

// NewIndexService wires the embedding lifecycle. embedder may be nil, in
// which case every indexing operation reports ErrEmbeddingUnavailable and
// the engine runs keyword-only.
func NewIndexService(db *gorm.DB, embedder embedding.Client, log zerolog.Logger) services.IndexService {
	return &indexServiceImpl{
		db:       db,
		embedder: embedder,
		log:      log.With().Str("component", "index").Logger(),
	}
}

func (s *indexServiceImpl) EmbeddingAvailable() bool {
	return s.embedder != nil
}

func (s *indexServiceImpl) CountByEmbeddingStatus(ctx context.Context, orgID uuid.UUID) (*models.EmbeddingStatusCounts, error) {
	var rows []struct {
		Status models.EmbeddingStatus
		Count  int64
	}
	if err := s.db.WithContext(ctx).Model(&models.Component{}).
		Select("embedding_status AS status, COUNT(*) AS count").
		Where("org_id = ?", orgID).
		Group("embedding_status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count embedding statuses: %w", err)
	}

	counts := &models.EmbeddingStatusCounts{}
	for _, row := range rows {
		switch row.Status {
		case models.EmbeddingStatusPending:
			counts.Pending = row.Count
		case models.EmbeddingStatusProcessing:
			counts.Processing = row.Count
		case models.EmbeddingStatusIndexed:
			counts.Indexed = row.Count
		case models.EmbeddingStatusFailed:
			counts.Failed = row.Count
		}
		counts.Total += row.Count
	}
	return counts, nil
}

func (s *indexServiceImpl) FindPending(ctx context.Context, orgID uuid.UUID, limit int) ([]models.Component, error) {
	if limit < 1 {
		limit = 10
	}
	var components []models.Component
	if err := s.db.WithContext(ctx).
		Where("org_id = ? AND embedding_status = ? AND manifest IS NOT NULL", orgID, models.EmbeddingStatusPending).
		Order("updated_at ASC").
		Limit(limit).
		Find(&components).Error; err != nil {
		return nil, fmt.Errorf("failed to find pending components: %w", err)
	}
	return components, nil
}

// pendingCandidatesSQL caps each org at maxPerOrg of its oldest pending
// rows; the round-robin across orgs happens in interleaveFair.
const pendingCandidatesSQL = `
SELECT * FROM (
	SELECT c.*, ROW_NUMBER() OVER (PARTITION BY org_id ORDER BY updated_at ASC) AS org_rank
	FROM context_engine.components c
	WHERE embedding_status = 'pending' AND manifest IS NOT NULL
) ranked
WHERE org_rank <= ?
ORDER BY org_id, updated_at ASC`

func (s *indexServiceImpl) FindAllPendingFair(ctx context.Context, limit, maxPerOrg int) ([]models.Component, error) {
	if limit < 1 {
		limit = 50
	}
	if maxPerOrg <= 0 {
		maxPerOrg = (limit + 9) / 10
	}
	var candidates []models.Component
	if err := s.db.WithContext(ctx).Raw(pendingCandidatesSQL, maxPerOrg).Scan(&candidates).Error; err != nil {
		return nil, fmt.Errorf("failed to select fair pending batch: %w", err)
	}
	return interleaveFair(candidates, limit), nil
}

// interleaveFair round-robins rows across orgs: the oldest pending row of
// every org first, then each org's second-oldest, until limit. The org whose
// oldest row has waited longest leads each round. Candidates must arrive
// grouped by org and age-ordered within the group.
func interleaveFair(candidates []models.Component, limit int) []models.Component {
	if limit < 1 || len(candidates) == 0 {
		return nil
	}

	var orgs []uuid.UUID
	buckets := make(map[uuid.UUID][]models.Component)
	for _, candidate := range candidates {
		if _, ok := buckets[candidate.OrgID]; !ok {
			orgs = append(orgs, candidate.OrgID)
		}
		buckets[candidate.OrgID] = append(buckets[candidate.OrgID], candidate)
	}
	sort.SliceStable(orgs, func(i, j int) bool {
		return buckets[orgs[i]][0].UpdatedAt.Before(buckets[orgs[j]][0].UpdatedAt)
	})

	out := make([]models.Component, 0, limit)
	for round := 0; len(out) < limit; round++ {
		advanced := false
		for _, org := range orgs {
			bucket := buckets[org]
			if round >= len(bucket) {
				continue
			}
			out = append(out, bucket[round])
			advanced = true
			if len(out) == limit {
				break
			}
		}
		if !advanced {
			break
		}
	}
	return out
}

// ClaimForProcessing bumps updated_at so the stale sweep can treat it as the
// claim timestamp.
func (s *indexServiceImpl) ClaimForProcessing(ctx context.Context, orgID uuid.UUID, componentID uuid.UUID) (bool, error) {
	result := s.db.WithContext(ctx).Model(&models.Component{}).
		Where("id = ? AND org_id = ? AND embedding_status = ?", componentID, orgID, models.EmbeddingStatusPending).
		Updates(map[string]any{
			"embedding_status": models.EmbeddingStatusProcessing,
			"embedding_error":  nil,
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to claim component: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

const insertChunkSQL = `
INSERT INTO context_engine.embedding_chunks
	(id, org_id, component_id, chunk_type, chunk_index, content, embedding, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?::vector, NOW())`

// formatVector renders a pgvector literal, e.g. [0.12,-0.5,...].
func formatVector(vector []float32) string {
	elems := make([]string, len(vector))
	for i, v := range vector {
		elems[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(elems, ",") + "]"
}

func (s *indexServiceImpl) IndexComponent(ctx context.Context, orgID uuid.UUID, componentID uuid.UUID) (int, error) {
	if s.embedder == nil {
		return 0, services.ErrEmbeddingUnavailable
	}

	var component models.Component
	if err := s.db.WithContext(ctx).Where("id = ? AND org_id = ?", componentID, orgID).First(&component).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, services.ErrNotFound
		}
		return 0, fmt.Errorf("failed to load component: %w", err)
	}
	if len(component.Manifest) == 0 {
		return 0, services.ErrNoManifest
	}

	aiManifest, err := models.ConvertFromJSON[models.AIManifest](component.Manifest)
	if err != nil {
		s.markFailed(ctx, orgID, componentID, fmt.Errorf("manifest is not valid JSON: %w", err))
		return 0, fmt.Errorf("failed to decode manifest: %w", err)
	}

	// Visible to status queries while the embedding round-trip is in flight.
	if err := s.db.WithContext(ctx).Model(&models.Component{}).
		Where("id = ? AND org_id = ?", componentID, orgID).
		Updates(map[string]any{
			"embedding_status": models.EmbeddingStatusProcessing,
			"embedding_error":  nil,
			"updated_at":       time.Now(),
		}).Error; err != nil {
		return 0, fmt.Errorf("failed to mark component processing: %w", err)
	}

	chunks := manifest.ChunkManifest(&aiManifest)
	if len(chunks) == 0 {
		err := errors.New("manifest produced no chunks")
		s.markFailed(ctx, orgID, componentID, err)
		return 0, err
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		s.markFailed(ctx, orgID, componentID, err)
		return 0, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		err := fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
		s.markFailed(ctx, orgID, componentID, err)
		return 0, err
	}

	info := s.embedder.ModelInfo()
	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("component_id = ? AND org_id = ?", componentID, orgID).
			Delete(&models.EmbeddingChunk{}).Error; err != nil {
			return fmt.Errorf("failed to delete old chunks: %w", err)
		}
		for i, chunk := range chunks {
			if err := tx.Exec(insertChunkSQL,
				uuid.New(), orgID, componentID,
				chunk.Type, chunk.Index, chunk.Content,
				formatVector(vectors[i]),
			).Error; err != nil {
				return fmt.Errorf("failed to insert chunk %d: %w", i, err)
			}
		}
		return tx.Model(&models.Component{}).
			Where("id = ? AND org_id = ?", componentID, orgID).
			Updates(map[string]any{
				"embedding_status": models.EmbeddingStatusIndexed,
				"embedding_error":  nil,
				"embedding_model":  info,
				"embedded_at":      now,
				"updated_at":       now,
			}).Error
	})
	if err != nil {
		s.markFailed(ctx, orgID, componentID, err)
		return 0, fmt.Errorf("failed to store chunks: %w", err)
	}

	s.log.Debug().
		Str("component_id", componentID.String()).
		Int("chunks", len(chunks)).
		Str("model", info.Model).
		Msg("component indexed")
	return len(chunks), nil
}

// markFailed records the failure on the row. It deliberately ignores the
// caller's cancellation so a timed-out embed still leaves a diagnosable row.
func (s *indexServiceImpl) markFailed(ctx context.Context, orgID uuid.UUID, componentID uuid.UUID, cause error) {
	msg := cause.Error()
	if err := s.db.WithContext(context.WithoutCancel(ctx)).Model(&models.Component{}).
		Where("id = ? AND org_id = ?", componentID, orgID).
		Updates(map[string]any{
			"embedding_status": models.EmbeddingStatusFailed,
			"embedding_error":  msg,
			"updated_at":       time.Now(),
		}).Error; err != nil {
		s.log.Error().Err(err).Str("component_id", componentID.String()).Msg("failed to record embedding failure")
	}
}

func (s *indexServiceImpl) ProcessPending(ctx context.Context, orgID uuid.UUID, batchSize int) (*models.ProcessPendingResponse, error) {
	if batchSize < 1 {
		batchSize = 10
	}
	if batchSize > 100 {
		batchSize = 100
	}
	if s.embedder == nil {
		return nil, services.ErrEmbeddingUnavailable
	}

	pending, err := s.FindPending(ctx, orgID, batchSize)
	if err != nil {
		return nil, err
	}

	resp := &models.ProcessPendingResponse{}
	for _, component := range pending {
		claimed, err := s.ClaimForProcessing(ctx, orgID, component.ID)
		if err != nil {
			return nil, err
		}
		if !claimed {
			continue
		}
		resp.Processed++
		if _, err := s.IndexComponent(ctx, orgID, component.ID); err != nil {
			resp.Failed++
			s.log.Warn().Err(err).Str("component_id", component.ID.String()).Msg("indexing failed")
			continue
		}
		resp.Succeeded++
	}
	return resp, nil
}

func (s *indexServiceImpl) RetryFailed(ctx context.Context, orgID uuid.UUID) (*models.RetryFailedResponse, error) {
	result := s.db.WithContext(ctx).Model(&models.Component{}).
		Where("org_id = ? AND embedding_status = ?", orgID, models.EmbeddingStatusFailed).
		Updates(map[string]any{
			"embedding_status": models.EmbeddingStatusPending,
			"embedding_error":  nil,
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to reset failed components: %w", result.Error)
	}
	return &models.RetryFailedResponse{Reset: result.RowsAffected}, nil
}

func (s *indexServiceImpl) ForceReindex(ctx context.Context, orgID uuid.UUID, componentID uuid.UUID) (*models.ForceReindexResponse, error) {
	chunksCreated, err := s.IndexComponent(ctx, orgID, componentID)
	if err != nil {
		return nil, err
	}
	return &models.ForceReindexResponse{
		ComponentID:     componentID,
		ChunksCreated:   chunksCreated,
		EmbeddingStatus: models.EmbeddingStatusIndexed,
	}, nil
}

func (s *indexServiceImpl) MigrateEmbeddings(ctx context.Context, orgID uuid.UUID, batchSize int) (*models.MigrateEmbeddingsResponse, error) {
	if batchSize < 1 {
		batchSize = 50
	}
	if batchSize > 100 {
		batchSize = 100
	}
	if s.embedder == nil {
		return nil, services.ErrEmbeddingUnavailable
	}
	currentModel := s.embedder.ModelInfo().Model

	var outdated []models.Component
	if err := s.db.WithContext(ctx).
		Where("org_id = ? AND embedding_status = ? AND embedding_model->>'model' IS DISTINCT FROM ?",
			orgID, models.EmbeddingStatusIndexed, currentModel).
		Order("updated_at ASC").
		Limit(batchSize).
		Find(&outdated).Error; err != nil {
		return nil, fmt.Errorf("failed to find outdated components: %w", err)
	}

	resp := &models.MigrateEmbeddingsResponse{
		CurrentModel:       currentModel,
		OutdatedComponents: make([]string, 0, len(outdated)),
	}
	if len(outdated) == 0 {
		return resp, nil
	}

	ids := make([]uuid.UUID, len(outdated))
	for i, component := range outdated {
		ids[i] = component.ID
		resp.OutdatedComponents = append(resp.OutdatedComponents, component.Slug)
	}

	result := s.db.WithContext(ctx).Model(&models.Component{}).
		Where("id IN ? AND org_id = ?", ids, orgID).
		Updates(map[string]any{
			"embedding_status": models.EmbeddingStatusPending,
			"embedding_error":  nil,
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to queue outdated components: %w", result.Error)
	}
	resp.Queued = result.RowsAffected
	return resp, nil
}

func (s *indexServiceImpl) ResetStaleProcessing(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	result := s.db.WithContext(ctx).Model(&models.Component{}).
		Where("embedding_status = ? AND updated_at < ?", models.EmbeddingStatusProcessing, cutoff).
		Updates(map[string]any{
			"embedding_status": models.EmbeddingStatusPending,
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to reset stale processing rows: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		s.log.Warn().Int64("reset", result.RowsAffected).Msg("reset stale processing components")
	}
	return result.RowsAffected, nil
}

func (s *indexServiceImpl) GetIndexStats(ctx context.Context, orgID uuid.UUID) (*models.IndexStats, error) {
	counts, err := s.CountByEmbeddingStatus(ctx, orgID)
	if err != nil {
		return nil, err
	}

	var chunkRows []struct {
		ChunkType models.ChunkType
		Count     int64
	}
	if err := s.db.WithContext(ctx).Model(&models.EmbeddingChunk{}).
		Select("chunk_type, COUNT(*) AS count").
		Where("org_id = ?", orgID).
		Group("chunk_type").
		Scan(&chunkRows).Error; err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}

	chunkStats := models.ChunkStats{ByType: make(map[string]int64)}
	for _, row := range chunkRows {
		chunkStats.ByType[string(row.ChunkType)] = row.Count
		chunkStats.Total += row.Count
	}

	stats := &models.IndexStats{
		Components: models.ComponentStats{
			Total: counts.Total,
			ByStatus: map[string]int64{
				string(models.EmbeddingStatusPending):    counts.Pending,
				string(models.EmbeddingStatusProcessing): counts.Processing,
				string(models.EmbeddingStatusIndexed):    counts.Indexed,
				string(models.EmbeddingStatusFailed):     counts.Failed,
			},
		},
		Chunks: chunkStats,
	}
	if s.embedder != nil {
		info := s.embedder.ModelInfo()
		stats.EmbeddingModel = &info
	}
	return stats, nil
}
