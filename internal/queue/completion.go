package queue

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/heygregwood/woodhouse-creative-sub001/internal/interfaces"
	"github.com/heygregwood/woodhouse-creative-sub001/internal/models"
	"github.com/heygregwood/woodhouse-creative-sub001/internal/services/drive"
)

// ArtifactStore is the slice of Drive the completion handler needs
type ArtifactStore interface {
	UploadFile(ctx context.Context, folderID, name, mimeType string, data []byte) (*drive.File, error)
}

// CompletionHandler reacts to render outcomes, delivered by the provider
// webhook or re-driven by the backup poller. Deliveries are at-least-once,
// possibly concurrent and out of order; every path here is idempotent.
type CompletionHandler struct {
	storage       interfaces.StorageManager
	renderer      interfaces.RendererClient
	resolver      interfaces.FolderResolver
	artifacts     ArtifactStore
	archiver      *Archiver
	schedule      interfaces.ScheduleSource
	aggregator    *Aggregator
	dealersFolder string
	maxRetries    int
	logger        arbor.ILogger
}

// NewCompletionHandler creates a completion handler
func NewCompletionHandler(
	storage interfaces.StorageManager,
	rendererClient interfaces.RendererClient,
	resolver interfaces.FolderResolver,
	artifacts ArtifactStore,
	archiver *Archiver,
	schedule interfaces.ScheduleSource,
	aggregator *Aggregator,
	dealersFolder string,
	maxRetries int,
	logger arbor.ILogger,
) *CompletionHandler {
	return &CompletionHandler{
		storage:       storage,
		renderer:      rendererClient,
		resolver:      resolver,
		artifacts:     artifacts,
		archiver:      archiver,
		schedule:      schedule,
		aggregator:    aggregator,
		dealersFolder: dealersFolder,
		maxRetries:    maxRetries,
		logger:        logger,
	}
}

// ArtifactFileName is the deterministic name an artifact is stored under.
// Re-uploading for the same post overwrites instead of duplicating, and the
// archival sweep parses the post number back out of it.
func ArtifactFileName(postNumber int, dealerName string) string {
	return fmt.Sprintf("Post %d_%s.mp4", postNumber, dealerName)
}

// HandleSuccess persists a finished render and completes its job. The job is
// only marked completed after the artifact is durably uploaded; any earlier
// failure leaves it processing for the backup poller to re-drive.
func (h *CompletionHandler) HandleSuccess(ctx context.Context, renderID, artifactURL string, meta *models.RenderMetadata) error {
	job, err := h.storage.JobStorage().GetJobByRenderID(ctx, renderID)
	if err != nil {
		return fmt.Errorf("failed to resolve render %s: %w", renderID, err)
	}
	if job == nil {
		// Duplicate or stale callback for a job we no longer track
		h.logger.Debug().Str("render_id", renderID).Msg("Success callback for unknown render, ignoring")
		return nil
	}
	if job.IsTerminal() {
		h.logger.Debug().Str("job_id", job.ID).Str("render_id", renderID).Msg("Success callback for terminal job, ignoring")
		return nil
	}

	data, err := h.renderer.Download(ctx, artifactURL)
	if err != nil {
		return fmt.Errorf("failed to download artifact for job %s: %w", job.ID, err)
	}

	folderPath := h.dealersFolder + "/" + job.DealerName
	folderID, err := h.resolver.Resolve(ctx, folderPath)
	if err != nil {
		return fmt.Errorf("failed to resolve dealer folder for job %s: %w", job.ID, err)
	}

	fileName := ArtifactFileName(job.PostNumber, job.DealerName)
	uploaded, err := h.artifacts.UploadFile(ctx, folderID, fileName, "video/mp4", data)
	if err != nil {
		return fmt.Errorf("failed to upload artifact for job %s: %w", job.ID, err)
	}

	err = h.storage.JobStorage().UpdateJob(ctx, job.ID, func(j *models.RenderJob) error {
		if j.IsTerminal() {
			// A concurrent delivery won between our lookup and this write;
			// the upload above overwrote the same file, so nothing diverged
			return nil
		}
		j.RenderURL = artifactURL
		j.MarkCompleted(uploaded.ID, uploaded.WebViewLink, folderPath+"/"+fileName, meta)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to complete job %s: %w", job.ID, err)
	}

	h.logger.Info().
		Str("job_id", job.ID).
		Str("dealer", job.DealerName).
		Int("post_number", job.PostNumber).
		Str("drive_file_id", uploaded.ID).
		Msg("Render completed and uploaded")

	h.sweepDealerFolder(ctx, folderPath)

	if err := h.aggregator.Recompute(ctx, job.BatchID); err != nil {
		h.logger.Warn().Err(err).Str("batch_id", job.BatchID).Msg("Failed to recompute batch after completion")
	}
	return nil
}

// HandleFailure records a failed render. Below the retry ceiling the job
// returns to pending for redispatch; at the ceiling it is permanently failed
// and surfaces in the batch counters.
func (h *CompletionHandler) HandleFailure(ctx context.Context, renderID, errMsg string) error {
	job, err := h.storage.JobStorage().GetJobByRenderID(ctx, renderID)
	if err != nil {
		return fmt.Errorf("failed to resolve render %s: %w", renderID, err)
	}
	if job == nil || job.IsTerminal() {
		h.logger.Debug().Str("render_id", renderID).Msg("Failure callback with no actionable job, ignoring")
		return nil
	}

	var status models.JobStatus
	err = h.storage.JobStorage().UpdateJob(ctx, job.ID, func(j *models.RenderJob) error {
		if j.IsTerminal() {
			status = j.Status
			return nil
		}
		j.ApplyFailure(errMsg, h.maxRetries)
		status = j.Status
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record failure for job %s: %w", job.ID, err)
	}

	h.logger.Warn().
		Str("job_id", job.ID).
		Str("dealer", job.DealerName).
		Str("status", string(status)).
		Str("error", errMsg).
		Msg("Render failed")

	if err := h.aggregator.Recompute(ctx, job.BatchID); err != nil {
		h.logger.Warn().Err(err).Str("batch_id", job.BatchID).Msg("Failed to recompute batch after failure")
	}
	return nil
}

// sweepDealerFolder archives artifacts for posts no longer on the schedule.
// Opportunistic: a failure here never fails the completion.
func (h *CompletionHandler) sweepDealerFolder(ctx context.Context, folderPath string) {
	activePosts, err := h.schedule.ActivePostNumbers(ctx)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to load active post numbers, skipping archival sweep")
		return
	}

	moved, err := h.archiver.Archive(ctx, folderPath, activePosts)
	if err != nil {
		h.logger.Warn().Err(err).Str("folder", folderPath).Msg("Archival sweep failed")
		return
	}
	if moved > 0 {
		h.logger.Info().Int("moved", moved).Str("folder", folderPath).Msg("Superseded artifacts archived")
	}
}
