package badger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/heygregwood/woodhouse-creative-sub001/internal/interfaces"
	"github.com/heygregwood/woodhouse-creative-sub001/internal/models"
)

// JobStorage implements the JobStorage interface for Badger
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger

	// Serializes read-modify-write updates within this process. Badger
	// writes are atomic per record but UpdateJob is a read-then-write.
	mu sync.Mutex
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

func (s *JobStorage) CreateJob(ctx context.Context, job *models.RenderJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("invalid job: %w", err)
	}

	if err := s.db.Store().Insert(job.ID, job); err != nil {
		if err == badgerhold.ErrKeyExists {
			return fmt.Errorf("job already exists: %s", job.ID)
		}
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (s *JobStorage) GetJob(ctx context.Context, jobID string) (*models.RenderJob, error) {
	var job models.RenderJob
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("job not found: %s: %w", jobID, err)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// GetJobByRenderID resolves a provider render identifier to its job. Returns
// (nil, nil) when no job tracks that identifier - a stale or duplicate
// callback, which the completion handler treats as a no-op.
func (s *JobStorage) GetJobByRenderID(ctx context.Context, renderID string) (*models.RenderJob, error) {
	if renderID == "" {
		return nil, fmt.Errorf("render ID is required")
	}

	var jobs []models.RenderJob
	if err := s.db.Store().Find(&jobs, badgerhold.Where("RenderID").Eq(renderID).Index("RenderID")); err != nil {
		return nil, fmt.Errorf("failed to query job by render ID: %w", err)
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	if len(jobs) > 1 {
		// RenderID is one-to-one while in flight; more than one match means
		// a provider identifier was reused across jobs
		s.logger.Warn().Str("render_id", renderID).Int("count", len(jobs)).Msg("Multiple jobs share a render ID")
	}
	return &jobs[0], nil
}

func (s *JobStorage) GetPendingJobs(ctx context.Context, limit int) ([]*models.RenderJob, error) {
	query := badgerhold.Where("Status").Eq(models.JobStatusPending).Index("Status").SortBy("CreatedAt")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var jobs []models.RenderJob
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to get pending jobs: %w", err)
	}

	result := make([]*models.RenderJob, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

func (s *JobStorage) GetJobsByBatch(ctx context.Context, batchID string) ([]*models.RenderJob, error) {
	var jobs []models.RenderJob
	if err := s.db.Store().Find(&jobs, badgerhold.Where("BatchID").Eq(batchID).Index("BatchID").SortBy("CreatedAt")); err != nil {
		return nil, fmt.Errorf("failed to get jobs for batch %s: %w", batchID, err)
	}

	result := make([]*models.RenderJob, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

func (s *JobStorage) GetStaleProcessingJobs(ctx context.Context, threshold time.Duration) ([]*models.RenderJob, error) {
	cutoff := time.Now().Add(-threshold)

	var jobs []models.RenderJob
	err := s.db.Store().Find(&jobs, badgerhold.Where("Status").Eq(models.JobStatusProcessing).Index("Status").
		And("ProcessingStartedAt").Lt(cutoff))
	if err != nil {
		return nil, fmt.Errorf("failed to get stale processing jobs: %w", err)
	}

	result := make([]*models.RenderJob, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

// UpdateJob fetches the job, applies mutate, and persists the result. The
// internal lock makes concurrent updates to the same record last-reader-safe
// within this process; cross-process consistency comes from the idempotent
// transition rules in the callers.
func (s *JobStorage) UpdateJob(ctx context.Context, jobID string, mutate func(*models.RenderJob) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var job models.RenderJob
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("job not found: %s: %w", jobID, err)
		}
		return fmt.Errorf("failed to get job for update: %w", err)
	}

	if err := mutate(&job); err != nil {
		return err
	}

	if err := s.db.Store().Upsert(job.ID, &job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func (s *JobStorage) CountJobsByStatus(ctx context.Context, status models.JobStatus) (int, error) {
	count, err := s.db.Store().Count(&models.RenderJob{}, badgerhold.Where("Status").Eq(status).Index("Status"))
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return int(count), nil
}
