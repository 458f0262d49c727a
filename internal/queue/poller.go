package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/heygregwood/woodhouse-creative-sub001/internal/interfaces"
	"github.com/heygregwood/woodhouse-creative-sub001/internal/models"
)

// Poller is the backup delivery path for dropped webhooks. It scans jobs
// stuck in processing past the staleness threshold, asks the provider for
// their real status, and re-drives the completion handler with the answer.
type Poller struct {
	storage    interfaces.StorageManager
	renderer   interfaces.RendererClient
	completion *CompletionHandler
	threshold  time.Duration
	logger     arbor.ILogger
}

// NewPoller creates a backup status poller
func NewPoller(storage interfaces.StorageManager, rendererClient interfaces.RendererClient, completion *CompletionHandler, threshold time.Duration, logger arbor.ILogger) *Poller {
	return &Poller{
		storage:    storage,
		renderer:   rendererClient,
		completion: completion,
		threshold:  threshold,
		logger:     logger,
	}
}

// PollStale runs one poller invocation. Failures are isolated per job so one
// unreachable render cannot block the sweep.
func (p *Poller) PollStale(ctx context.Context) error {
	jobs, err := p.storage.JobStorage().GetStaleProcessingJobs(ctx, p.threshold)
	if err != nil {
		return fmt.Errorf("failed to fetch stale processing jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil
	}

	p.logger.Info().Int("count", len(jobs)).Dur("threshold", p.threshold).Msg("Polling stale processing jobs")

	for _, job := range jobs {
		if err := p.pollJob(ctx, job); err != nil {
			p.logger.Warn().Err(err).
				Str("job_id", job.ID).
				Str("render_id", job.RenderID).
				Msg("Backup poll failed for job")
		}
	}
	return nil
}

func (p *Poller) pollJob(ctx context.Context, job *models.RenderJob) error {
	status, err := p.renderer.GetStatus(ctx, job.RenderID)
	if err != nil {
		// Transient; the job stays processing and the next sweep retries
		return fmt.Errorf("status poll: %w", err)
	}

	switch status.Status {
	case "succeeded":
		return p.completion.HandleSuccess(ctx, job.RenderID, status.URL, nil)
	case "failed":
		errMsg := status.Error
		if errMsg == "" {
			errMsg = "render failed without provider error message"
		}
		return p.completion.HandleFailure(ctx, job.RenderID, errMsg)
	default:
		// Still rendering provider-side; genuinely slow renders are left
		// alone rather than force-failed while the provider reports progress
		p.logger.Debug().
			Str("job_id", job.ID).
			Str("provider_status", status.Status).
			Msg("Stale job still in progress at provider")
		return nil
	}
}
