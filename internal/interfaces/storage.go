package interfaces

import (
	"context"
	"time"

	"github.com/heygregwood/woodhouse-creative-sub001/internal/models"
)

// JobStorage - persistence for render jobs.
//
// All job mutation in the system goes through UpdateJob; nothing mutates a
// stored record any other way. Batch counters are never written here - they
// are derived by the aggregator from GetJobsByBatch.
type JobStorage interface {
	CreateJob(ctx context.Context, job *models.RenderJob) error
	GetJob(ctx context.Context, jobID string) (*models.RenderJob, error)

	// GetJobByRenderID is the completion handler's hook: the provider only
	// knows its own render identifier. Backed by an index, not a scan.
	GetJobByRenderID(ctx context.Context, renderID string) (*models.RenderJob, error)

	// GetPendingJobs returns up to limit pending jobs, oldest first
	GetPendingJobs(ctx context.Context, limit int) ([]*models.RenderJob, error)

	// GetJobsByBatch is the only input the batch aggregator trusts
	GetJobsByBatch(ctx context.Context, batchID string) ([]*models.RenderJob, error)

	// GetStaleProcessingJobs returns processing jobs whose dispatch is older
	// than the threshold - candidates for the backup status poll
	GetStaleProcessingJobs(ctx context.Context, threshold time.Duration) ([]*models.RenderJob, error)

	// UpdateJob applies mutate to the stored record and persists the result
	UpdateJob(ctx context.Context, jobID string, mutate func(*models.RenderJob) error) error

	CountJobsByStatus(ctx context.Context, status models.JobStatus) (int, error)
}

// BatchStorage - persistence for render batches
type BatchStorage interface {
	CreateBatch(ctx context.Context, batch *models.RenderBatch) error
	GetBatch(ctx context.Context, batchID string) (*models.RenderBatch, error)
	SaveBatch(ctx context.Context, batch *models.RenderBatch) error
	ListBatches(ctx context.Context, limit int) ([]*models.RenderBatch, error)
}

// DealerStorage - read access to dealer records
type DealerStorage interface {
	SaveDealer(ctx context.Context, dealer *models.Dealer) error
	GetDealer(ctx context.Context, dealerNo string) (*models.Dealer, error)
	GetDealersByProgramStatus(ctx context.Context, programStatus string) ([]*models.Dealer, error)
}

// StorageManager provides access to all storage interfaces
type StorageManager interface {
	JobStorage() JobStorage
	BatchStorage() BatchStorage
	DealerStorage() DealerStorage
	Close() error
}
