// Package reconciler drives components from pending to indexed in the
// background. Each tick sweeps stale processing rows, selects a fair
// cross-tenant batch, and fans the rows out to a small worker pool. Rows are
// claimed individually, so manual reconciliation calls and multiple workers
// never double-process.
package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/context-engine/config"
	"github.com/context-engine/models"
	"github.com/context-engine/services"
)

type Reconciler struct {
	index       services.IndexService
	interval    time.Duration
	batchSize   int
	concurrency int
	maxPerOrg   int
	staleAfter  time.Duration
	log         zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func New(index services.IndexService, cfg config.ReconcilerConfig, log zerolog.Logger) *Reconciler {
	interval := time.Duration(cfg.Interval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	batchSize := cfg.BatchSize
	if batchSize < 1 {
		batchSize = 10
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 3
	}
	staleAfter := time.Duration(cfg.StaleAfter) * time.Second
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}

	return &Reconciler{
		index:       index,
		interval:    interval,
		batchSize:   batchSize,
		concurrency: concurrency,
		maxPerOrg:   cfg.MaxPerOrg,
		staleAfter:  staleAfter,
		log:         log.With().Str("component", "reconciler").Logger(),
	}
}

// Start launches the background loop. Call Stop to cancel it and wait for
// in-flight work to finish.
func (r *Reconciler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.run(ctx)
}

func (r *Reconciler) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}

func (r *Reconciler) run(ctx context.Context) {
	defer close(r.done)

	r.log.Info().
		Dur("interval", r.interval).
		Int("batch_size", r.batchSize).
		Int("concurrency", r.concurrency).
		Msg("reconciler started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("reconciler stopped")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// tick runs one reconciliation round. The stale sweep always runs; batch
// work is skipped without an embedding provider so rows are never claimed
// into a state nothing can finish.
func (r *Reconciler) tick(ctx context.Context) {
	if _, err := r.index.ResetStaleProcessing(ctx, r.staleAfter); err != nil {
		r.log.Error().Err(err).Msg("stale sweep failed")
	}

	if !r.index.EmbeddingAvailable() {
		return
	}

	batch, err := r.index.FindAllPendingFair(ctx, r.batchSize, r.maxPerOrg)
	if err != nil {
		r.log.Error().Err(err).Msg("failed to select pending batch")
		return
	}
	if len(batch) == 0 {
		return
	}

	jobs := make(chan models.Component, len(batch))
	var wg sync.WaitGroup
	for i := 0; i < r.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for component := range jobs {
				r.process(ctx, component)
			}
		}()
	}
	for _, component := range batch {
		jobs <- component
	}
	close(jobs)
	wg.Wait()
}

func (r *Reconciler) process(ctx context.Context, component models.Component) {
	if ctx.Err() != nil {
		return
	}

	claimed, err := r.index.ClaimForProcessing(ctx, component.OrgID, component.ID)
	if err != nil {
		r.log.Error().Err(err).Str("component_id", component.ID.String()).Msg("claim failed")
		return
	}
	if !claimed {
		// Another worker or a manual reconciliation call won the row.
		return
	}

	if _, err := r.index.IndexComponent(ctx, component.OrgID, component.ID); err != nil {
		// The row is already marked failed with the cause.
		r.log.Warn().Err(err).
			Str("component_id", component.ID.String()).
			Str("org_id", component.OrgID.String()).
			Msg("background indexing failed")
		return
	}

	r.log.Debug().
		Str("component_id", component.ID.String()).
		Str("slug", component.Slug).
		Msg("component reconciled")
}
