// -----------------------------------------------------------------------
// Render Job - One template render for one dealer for one content post
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"time"
)

// JobStatus represents the lifecycle state of a render job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// RenderMetadata holds numeric facts about a completed artifact,
// used only for batch-level rollups.
type RenderMetadata struct {
	SizeBytes       int64   `json:"size_bytes"`
	DurationSeconds float64 `json:"duration_seconds"`
	CostUnits       float64 `json:"cost_units"`
}

// RenderJob represents one unit of work: render a single template for a
// single dealer for a single content post.
//
// Status transitions:
//
//	pending -> processing (dispatcher submits to Creatomate)
//	processing -> completed (webhook/poll reports success, artifact uploaded)
//	processing -> failed    (retry ceiling reached)
//	processing -> pending   (failure below retry ceiling, redispatched)
//	failed/completed -> pending (manual reset only)
//
// RenderID correlates the provider's completion callback back to this job
// and must be unique across in-flight jobs.
type RenderJob struct {
	ID        string `json:"id" badgerhold:"key"`
	BatchID   string `json:"batch_id" badgerholdIndex:"BatchID"`
	DealerNo  string `json:"dealer_no"`
	DealerName string `json:"dealer_name"` // Denormalized display name

	PostNumber int    `json:"post_number"`
	TemplateID string `json:"template_id"`

	Status JobStatus `json:"status" badgerholdIndex:"Status"`

	// Provider-side identifiers, set when dispatched
	RenderID  string `json:"render_id,omitempty" badgerholdIndex:"RenderID"`
	RenderURL string `json:"render_url,omitempty"` // Provider CDN location, pre-persistence

	// Persisted artifact identity, set on completion
	DriveFileID string `json:"drive_file_id,omitempty"`
	DriveURL    string `json:"drive_url,omitempty"`
	DrivePath   string `json:"drive_path,omitempty"`

	CreatedAt           time.Time  `json:"created_at"`
	ProcessingStartedAt *time.Time `json:"processing_started_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`

	RetryCount int    `json:"retry_count"`
	LastError  string `json:"last_error,omitempty"`

	Metadata *RenderMetadata `json:"metadata,omitempty"`
}

// NewRenderJob creates a pending job for a dealer within a batch
func NewRenderJob(id, batchID string, dealer *Dealer, postNumber int, templateID string) *RenderJob {
	return &RenderJob{
		ID:         id,
		BatchID:    batchID,
		DealerNo:   dealer.DealerNo,
		DealerName: dealer.DisplayName,
		PostNumber: postNumber,
		TemplateID: templateID,
		Status:     JobStatusPending,
		CreatedAt:  time.Now(),
	}
}

// Validate validates the render job
func (j *RenderJob) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	if j.BatchID == "" {
		return fmt.Errorf("batch ID is required")
	}
	if j.DealerNo == "" {
		return fmt.Errorf("dealer number is required")
	}
	if j.TemplateID == "" {
		return fmt.Errorf("template ID is required")
	}
	if j.PostNumber <= 0 {
		return fmt.Errorf("post number must be positive")
	}
	return nil
}

// MarkProcessing records a successful submission to the renderer
func (j *RenderJob) MarkProcessing(renderID string) {
	j.Status = JobStatusProcessing
	j.RenderID = renderID
	now := time.Now()
	j.ProcessingStartedAt = &now
}

// MarkCompleted records the durably persisted artifact. The job must never
// reach completed before the upload has succeeded.
func (j *RenderJob) MarkCompleted(fileID, driveURL, drivePath string, meta *RenderMetadata) {
	j.Status = JobStatusCompleted
	j.DriveFileID = fileID
	j.DriveURL = driveURL
	j.DrivePath = drivePath
	j.Metadata = meta
	now := time.Now()
	j.CompletedAt = &now
}

// ApplyFailure records a failed render attempt. Below the retry ceiling the
// job goes back to pending so the dispatcher picks it up again; at the
// ceiling it is permanently failed.
func (j *RenderJob) ApplyFailure(errMsg string, maxRetries int) {
	j.RetryCount++
	j.LastError = errMsg
	if j.RetryCount >= maxRetries {
		j.Status = JobStatusFailed
		now := time.Now()
		j.CompletedAt = &now
	} else {
		j.Status = JobStatusPending
		// Stale provider identifiers must not match future callbacks
		j.RenderID = ""
		j.RenderURL = ""
		j.ProcessingStartedAt = nil
	}
}

// Reset returns a terminal job to pending for manual redispatch
func (j *RenderJob) Reset() error {
	if !j.IsTerminal() {
		return fmt.Errorf("cannot reset job %s in status %s", j.ID, j.Status)
	}
	j.Status = JobStatusPending
	j.RenderID = ""
	j.RenderURL = ""
	j.ProcessingStartedAt = nil
	j.CompletedAt = nil
	j.RetryCount = 0
	j.LastError = ""
	return nil
}

// IsTerminal returns true if the job is in a terminal state
func (j *RenderJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
