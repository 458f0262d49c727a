// -----------------------------------------------------------------------
// Render Batch - Aggregate over all jobs created for one submission
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"time"
)

// BatchStatus is the derived aggregate state of a render batch
type BatchStatus string

const (
	BatchStatusQueued         BatchStatus = "queued"          // All jobs pending
	BatchStatusProcessing     BatchStatus = "processing"      // At least one job past pending, not all terminal
	BatchStatusCompleted      BatchStatus = "completed"       // All jobs completed, zero failed
	BatchStatusFailed         BatchStatus = "failed"          // All jobs terminal, zero completed
	BatchStatusPartialFailure BatchStatus = "partial_failure" // Mixed terminal outcomes
)

// RenderBatch is the aggregate over all RenderJobs created together for one
// (postNumber, templateID) submission.
//
// The counters are a pure function of the current job records: they are
// recomputed from a full jobs-by-batch query, never incremented, because
// webhook delivery is at-least-once and unordered.
type RenderBatch struct {
	ID         string `json:"id" badgerhold:"key"`
	PostNumber int    `json:"post_number"`
	TemplateID string `json:"template_id"`

	TotalJobs      int `json:"total_jobs"` // Fixed at creation time
	CompletedJobs  int `json:"completed_jobs"`
	FailedJobs     int `json:"failed_jobs"`
	PendingJobs    int `json:"pending_jobs"`
	ProcessingJobs int `json:"processing_jobs"`

	Status BatchStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`   // First observed non-queued state
	CompletedAt *time.Time `json:"completed_at,omitempty"` // First observed terminal aggregate state

	// Rollups computed from completed jobs only
	TotalCostUnits   float64 `json:"total_cost_units"`
	TotalBytes       int64   `json:"total_bytes"`
	AvgRenderSeconds float64 `json:"avg_render_seconds"`
}

// NewRenderBatch creates a queued batch for the given submission
func NewRenderBatch(id string, postNumber int, templateID string, totalJobs int) *RenderBatch {
	return &RenderBatch{
		ID:          id,
		PostNumber:  postNumber,
		TemplateID:  templateID,
		TotalJobs:   totalJobs,
		PendingJobs: totalJobs,
		Status:      BatchStatusQueued,
		CreatedAt:   time.Now(),
	}
}

// Validate validates the render batch
func (b *RenderBatch) Validate() error {
	if b.ID == "" {
		return fmt.Errorf("batch ID is required")
	}
	if b.PostNumber <= 0 {
		return fmt.Errorf("post number must be positive")
	}
	if b.TemplateID == "" {
		return fmt.Errorf("template ID is required")
	}
	if b.TotalJobs <= 0 {
		return fmt.Errorf("batch must contain at least one job")
	}
	return nil
}

// IsTerminal returns true if the batch has reached a terminal aggregate state
func (b *RenderBatch) IsTerminal() bool {
	return b.Status == BatchStatusCompleted ||
		b.Status == BatchStatusFailed ||
		b.Status == BatchStatusPartialFailure
}
