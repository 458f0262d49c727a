package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/heygregwood/woodhouse-creative-sub001/internal/interfaces"
	"github.com/heygregwood/woodhouse-creative-sub001/internal/models"
	"github.com/heygregwood/woodhouse-creative-sub001/internal/services/renderer"
)

// Dispatcher submits pending jobs to the renderer on a fixed cadence. Each
// invocation takes at most limit jobs, oldest first, so dealers queue fairly
// across posts.
type Dispatcher struct {
	storage    interfaces.StorageManager
	renderer   interfaces.RendererClient
	aggregator *Aggregator
	limit      int
	logger     arbor.ILogger
}

// NewDispatcher creates a dispatcher with the given per-invocation limit
func NewDispatcher(storage interfaces.StorageManager, rendererClient interfaces.RendererClient, aggregator *Aggregator, limit int, logger arbor.ILogger) *Dispatcher {
	return &Dispatcher{
		storage:    storage,
		renderer:   rendererClient,
		aggregator: aggregator,
		limit:      limit,
		logger:     logger,
	}
}

// DispatchPending runs one dispatcher invocation. A single job's submission
// failure never aborts the invocation; the job simply stays pending and is
// retried next time. A provider rate-limit error stops the remainder of the
// invocation instead of burning through the batch.
func (d *Dispatcher) DispatchPending(ctx context.Context) error {
	jobs, err := d.storage.JobStorage().GetPendingJobs(ctx, d.limit)
	if err != nil {
		return fmt.Errorf("failed to fetch pending jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil
	}

	d.logger.Info().Int("count", len(jobs)).Msg("Dispatching pending render jobs")

	dispatched := 0
	touchedBatches := make(map[string]bool)

	for _, job := range jobs {
		submission, err := d.submitJob(ctx, job)
		if err != nil {
			if errors.Is(err, renderer.ErrRateLimited) {
				d.logger.Warn().
					Int("dispatched", dispatched).
					Int("remaining", len(jobs)-dispatched).
					Msg("Renderer rate limit hit, backing off until next invocation")
				break
			}
			// Stays pending; recorded for the dashboard, retried next tick
			d.logger.Warn().Err(err).
				Str("job_id", job.ID).
				Str("dealer", job.DealerName).
				Msg("Render submission failed, job left pending")

			if updateErr := d.storage.JobStorage().UpdateJob(ctx, job.ID, func(j *models.RenderJob) error {
				j.LastError = err.Error()
				return nil
			}); updateErr != nil {
				d.logger.Warn().Err(updateErr).Str("job_id", job.ID).Msg("Failed to record submission error")
			}
			continue
		}

		err = d.storage.JobStorage().UpdateJob(ctx, job.ID, func(j *models.RenderJob) error {
			if j.Status != models.JobStatusPending {
				// Raced a manual operation between fetch and submit; keep
				// whatever state won
				return fmt.Errorf("job %s no longer pending", j.ID)
			}
			j.MarkProcessing(submission.RenderID)
			return nil
		})
		if err != nil {
			d.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to mark job processing")
			continue
		}

		dispatched++
		touchedBatches[job.BatchID] = true

		d.logger.Info().
			Str("job_id", job.ID).
			Str("render_id", submission.RenderID).
			Str("dealer", job.DealerName).
			Msg("Render dispatched")
	}

	for batchID := range touchedBatches {
		if err := d.aggregator.Recompute(ctx, batchID); err != nil {
			d.logger.Warn().Err(err).Str("batch_id", batchID).Msg("Failed to recompute batch after dispatch")
		}
	}

	d.logger.Info().Int("dispatched", dispatched).Int("fetched", len(jobs)).Msg("Dispatch invocation finished")
	return nil
}

// submitJob builds the provider substitution payload from the dealer record
// and submits the render.
func (d *Dispatcher) submitJob(ctx context.Context, job *models.RenderJob) (*interfaces.RenderSubmission, error) {
	dealer, err := d.storage.DealerStorage().GetDealer(ctx, job.DealerNo)
	if err != nil {
		return nil, fmt.Errorf("failed to load dealer: %w", err)
	}

	// Keys match the text/image fields in the Creatomate templates
	modifications := map[string]string{
		"Logo":                 dealer.LogoURL,
		"Public-Company-Name":  dealer.DisplayName,
		"Public-Company-Phone": dealer.Phone,
	}
	if dealer.Website != "" {
		modifications["Public-Company-Website"] = dealer.Website
	}

	return d.renderer.Submit(ctx, job.TemplateID, modifications)
}
