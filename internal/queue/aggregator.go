package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/heygregwood/woodhouse-creative-sub001/internal/interfaces"
	"github.com/heygregwood/woodhouse-creative-sub001/internal/models"
)

// BatchState is the fully derived aggregate over a batch's jobs
type BatchState struct {
	Completed  int
	Failed     int
	Pending    int
	Processing int

	Status models.BatchStatus

	// Rollups from completed jobs only
	TotalCostUnits   float64
	TotalBytes       int64
	AvgRenderSeconds float64
}

// ComputeBatchState derives the batch counters, status, and rollups from the
// current job records. It is a pure function: webhook deliveries are
// at-least-once and unordered, so the aggregate is always recomputed from a
// full read, never incremented.
func ComputeBatchState(jobs []*models.RenderJob) BatchState {
	var state BatchState
	var durationSum float64

	for _, job := range jobs {
		switch job.Status {
		case models.JobStatusCompleted:
			state.Completed++
			if job.Metadata != nil {
				state.TotalCostUnits += job.Metadata.CostUnits
				state.TotalBytes += job.Metadata.SizeBytes
				durationSum += job.Metadata.DurationSeconds
			}
		case models.JobStatusFailed:
			state.Failed++
		case models.JobStatusProcessing:
			state.Processing++
		default:
			state.Pending++
		}
	}

	if state.Completed > 0 {
		state.AvgRenderSeconds = durationSum / float64(state.Completed)
	}

	total := len(jobs)
	terminal := state.Completed + state.Failed
	switch {
	case state.Pending == total:
		state.Status = models.BatchStatusQueued
	case terminal < total:
		state.Status = models.BatchStatusProcessing
	case state.Failed == 0:
		state.Status = models.BatchStatusCompleted
	case state.Completed == 0:
		state.Status = models.BatchStatusFailed
	default:
		state.Status = models.BatchStatusPartialFailure
	}

	return state
}

// Aggregator keeps batch records consistent with their job rows
type Aggregator struct {
	storage interfaces.StorageManager
	logger  arbor.ILogger
}

// NewAggregator creates a batch aggregator
func NewAggregator(storage interfaces.StorageManager, logger arbor.ILogger) *Aggregator {
	return &Aggregator{
		storage: storage,
		logger:  logger,
	}
}

// Recompute re-derives a batch's counters and status from a full query of
// its jobs and writes the result back in one update. Idempotent: with no
// intervening job changes a second call produces an identical write.
func (a *Aggregator) Recompute(ctx context.Context, batchID string) error {
	batch, err := a.storage.BatchStorage().GetBatch(ctx, batchID)
	if err != nil {
		return fmt.Errorf("failed to load batch for recompute: %w", err)
	}

	jobs, err := a.storage.JobStorage().GetJobsByBatch(ctx, batchID)
	if err != nil {
		return fmt.Errorf("failed to load jobs for recompute: %w", err)
	}

	state := ComputeBatchState(jobs)

	batch.CompletedJobs = state.Completed
	batch.FailedJobs = state.Failed
	batch.PendingJobs = state.Pending
	batch.ProcessingJobs = state.Processing
	batch.Status = state.Status
	batch.TotalCostUnits = state.TotalCostUnits
	batch.TotalBytes = state.TotalBytes
	batch.AvgRenderSeconds = state.AvgRenderSeconds

	now := time.Now()
	if batch.StartedAt == nil && state.Status != models.BatchStatusQueued {
		batch.StartedAt = &now
	}
	if batch.CompletedAt == nil && batch.IsTerminal() {
		batch.CompletedAt = &now
	}

	if err := a.storage.BatchStorage().SaveBatch(ctx, batch); err != nil {
		return fmt.Errorf("failed to save recomputed batch: %w", err)
	}

	a.logger.Debug().
		Str("batch_id", batchID).
		Str("status", string(batch.Status)).
		Int("completed", state.Completed).
		Int("failed", state.Failed).
		Int("pending", state.Pending).
		Int("processing", state.Processing).
		Msg("Batch recomputed")

	return nil
}
