package queue

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/heygregwood/woodhouse-creative-sub001/internal/common"
	"github.com/heygregwood/woodhouse-creative-sub001/internal/interfaces"
	"github.com/heygregwood/woodhouse-creative-sub001/internal/models"
)

// JobManager creates batches and handles manual job operations. The
// dispatcher and completion handler own the automatic transitions.
type JobManager struct {
	storage    interfaces.StorageManager
	aggregator *Aggregator
	logger     arbor.ILogger
}

// NewJobManager creates a job manager
func NewJobManager(storage interfaces.StorageManager, aggregator *Aggregator, logger arbor.ILogger) *JobManager {
	return &JobManager{
		storage:    storage,
		aggregator: aggregator,
		logger:     logger,
	}
}

// CreateBatchRequest describes one render submission across dealers
type CreateBatchRequest struct {
	PostNumber int      `json:"post_number"`
	TemplateID string   `json:"template_id"`
	DealerNo   string   `json:"dealer_no,omitempty"` // Single-dealer test render
	Skip       []string `json:"skip,omitempty"`      // Dealer numbers to exclude
}

// CreateBatchResult reports what the batch creation produced
type CreateBatchResult struct {
	Batch   *models.RenderBatch `json:"batch"`
	Skipped []string            `json:"skipped,omitempty"` // Dealers excluded for missing render fields
}

// CreateBatch enumerates eligible dealers and creates the batch plus one
// pending job per dealer. TotalJobs is fixed here and never changes.
// Dealers missing a display name, phone, or logo are skipped up front: those
// renders would fail at the provider on every retry.
func (m *JobManager) CreateBatch(ctx context.Context, req CreateBatchRequest) (*CreateBatchResult, error) {
	if req.PostNumber <= 0 {
		return nil, fmt.Errorf("post number must be positive")
	}
	if req.TemplateID == "" {
		return nil, fmt.Errorf("template ID is required")
	}

	dealers, err := m.eligibleDealers(ctx, req)
	if err != nil {
		return nil, err
	}

	skip := make(map[string]bool, len(req.Skip))
	for _, no := range req.Skip {
		skip[no] = true
	}

	var targets []*models.Dealer
	var skipped []string
	for _, dealer := range dealers {
		if skip[dealer.DealerNo] {
			continue
		}
		if !dealer.RenderReady() {
			skipped = append(skipped, dealer.DealerNo)
			continue
		}
		targets = append(targets, dealer)
	}

	if len(targets) == 0 {
		return nil, fmt.Errorf("no eligible dealers for post %d", req.PostNumber)
	}

	batch := models.NewRenderBatch(common.NewBatchID(), req.PostNumber, req.TemplateID, len(targets))
	if err := m.storage.BatchStorage().CreateBatch(ctx, batch); err != nil {
		return nil, err
	}

	for _, dealer := range targets {
		job := models.NewRenderJob(common.NewJobID(), batch.ID, dealer, req.PostNumber, req.TemplateID)
		if err := m.storage.JobStorage().CreateJob(ctx, job); err != nil {
			return nil, fmt.Errorf("failed to create job for dealer %s: %w", dealer.DealerNo, err)
		}
	}

	m.logger.Info().
		Str("batch_id", batch.ID).
		Int("post_number", req.PostNumber).
		Int("jobs", len(targets)).
		Int("skipped", len(skipped)).
		Msg("Render batch created")

	return &CreateBatchResult{Batch: batch, Skipped: skipped}, nil
}

func (m *JobManager) eligibleDealers(ctx context.Context, req CreateBatchRequest) ([]*models.Dealer, error) {
	if req.DealerNo != "" {
		dealer, err := m.storage.DealerStorage().GetDealer(ctx, req.DealerNo)
		if err != nil {
			return nil, err
		}
		return []*models.Dealer{dealer}, nil
	}

	dealers, err := m.storage.DealerStorage().GetDealersByProgramStatus(ctx, models.ProgramStatusFull)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible dealers: %w", err)
	}
	return dealers, nil
}

// ResetJob manually returns a terminal job to pending for redispatch and
// recomputes its batch.
func (m *JobManager) ResetJob(ctx context.Context, jobID string) (*models.RenderJob, error) {
	var batchID string
	err := m.storage.JobStorage().UpdateJob(ctx, jobID, func(job *models.RenderJob) error {
		batchID = job.BatchID
		return job.Reset()
	})
	if err != nil {
		return nil, err
	}

	if err := m.aggregator.Recompute(ctx, batchID); err != nil {
		m.logger.Warn().Err(err).Str("batch_id", batchID).Msg("Failed to recompute batch after reset")
	}

	m.logger.Info().Str("job_id", jobID).Msg("Job manually reset to pending")
	return m.storage.JobStorage().GetJob(ctx, jobID)
}
