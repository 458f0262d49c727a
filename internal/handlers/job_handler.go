package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/heygregwood/woodhouse-creative-sub001/internal/common"
	"github.com/heygregwood/woodhouse-creative-sub001/internal/interfaces"
	"github.com/heygregwood/woodhouse-creative-sub001/internal/models"
	"github.com/heygregwood/woodhouse-creative-sub001/internal/queue"
)

// JobHandler exposes individual job inspection and manual retry.
type JobHandler struct {
	jobManager *queue.JobManager
	storage    interfaces.StorageManager
	logger     arbor.ILogger
}

func NewJobHandler(jobManager *queue.JobManager, storage interfaces.StorageManager) *JobHandler {
	return &JobHandler{
		jobManager: jobManager,
		storage:    storage,
		logger:     common.GetLogger(),
	}
}

// GetJobHandler handles GET /api/jobs/{id}
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := extractJobID(r.URL.Path)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Missing job ID")
		return
	}

	job, err := h.storage.JobStorage().GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

// RetryJobHandler handles POST /api/jobs/{id}/retry
//
// Retry is an operator action for jobs that exhausted automatic retries. The
// job returns to pending with a clean slate and the next dispatch picks it up.
func (h *JobHandler) RetryJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := extractJobID(strings.TrimSuffix(r.URL.Path, "/retry"))
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Missing job ID")
		return
	}

	job, err := h.jobManager.ResetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.logger.Warn().Err(err).Str("job_id", jobID).Msg("Job retry rejected")
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info().
		Str("job_id", jobID).
		Str("batch_id", job.BatchID).
		Msg("Job queued for retry")

	WriteJSON(w, http.StatusOK, job)
}

// CountsHandler handles GET /api/jobs/counts - queue depth by status
func (h *JobHandler) CountsHandler(w http.ResponseWriter, r *http.Request) {
	counts := make(map[string]int)
	for _, status := range []models.JobStatus{
		models.JobStatusPending,
		models.JobStatusProcessing,
		models.JobStatusCompleted,
		models.JobStatusFailed,
	} {
		n, err := h.storage.JobStorage().CountJobsByStatus(r.Context(), status)
		if err != nil {
			h.logger.Error().Err(err).Str("job_status", string(status)).Msg("Failed to count jobs")
			WriteError(w, http.StatusInternalServerError, "Failed to count jobs")
			return
		}
		counts[string(status)] = n
	}

	WriteJSON(w, http.StatusOK, counts)
}

// extractJobID pulls the job ID out of /api/jobs/{id}
func extractJobID(path string) string {
	const prefix = "/api/jobs/"
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	return strings.Trim(strings.TrimPrefix(path, prefix), "/")
}
