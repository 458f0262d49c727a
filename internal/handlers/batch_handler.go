package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/heygregwood/woodhouse-creative-sub001/internal/common"
	"github.com/heygregwood/woodhouse-creative-sub001/internal/interfaces"
	"github.com/heygregwood/woodhouse-creative-sub001/internal/queue"
)

// BatchHandler exposes batch creation and inspection endpoints.
type BatchHandler struct {
	jobManager *queue.JobManager
	storage    interfaces.StorageManager
	logger     arbor.ILogger
}

func NewBatchHandler(jobManager *queue.JobManager, storage interfaces.StorageManager) *BatchHandler {
	return &BatchHandler{
		jobManager: jobManager,
		storage:    storage,
		logger:     common.GetLogger(),
	}
}

// CreateBatchHandler handles POST /api/batches
func (h *BatchHandler) CreateBatchHandler(w http.ResponseWriter, r *http.Request) {
	var req queue.CreateBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	result, err := h.jobManager.CreateBatch(r.Context(), req)
	if err != nil {
		h.logger.Warn().Err(err).Int("post_number", req.PostNumber).Msg("Batch creation rejected")
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info().
		Str("batch_id", result.Batch.ID).
		Int("post_number", req.PostNumber).
		Int("total_jobs", result.Batch.TotalJobs).
		Int("skipped", len(result.Skipped)).
		Msg("Batch created")

	WriteJSON(w, http.StatusCreated, result)
}

// ListBatchesHandler handles GET /api/batches
func (h *BatchHandler) ListBatchesHandler(w http.ResponseWriter, r *http.Request) {
	limit := GetLimitParam(r, 50, 200)

	batches, err := h.storage.BatchStorage().ListBatches(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list batches")
		WriteError(w, http.StatusInternalServerError, "Failed to list batches")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"batches": batches,
		"count":   len(batches),
	})
}

// GetBatchHandler handles GET /api/batches/{id}
func (h *BatchHandler) GetBatchHandler(w http.ResponseWriter, r *http.Request) {
	batchID := extractBatchID(r.URL.Path)
	if batchID == "" {
		WriteError(w, http.StatusBadRequest, "Missing batch ID")
		return
	}

	batch, err := h.storage.BatchStorage().GetBatch(r.Context(), batchID)
	if err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Batch not found")
			return
		}
		h.logger.Error().Err(err).Str("batch_id", batchID).Msg("Failed to get batch")
		WriteError(w, http.StatusInternalServerError, "Failed to get batch")
		return
	}

	WriteJSON(w, http.StatusOK, batch)
}

// GetBatchJobsHandler handles GET /api/batches/{id}/jobs
func (h *BatchHandler) GetBatchJobsHandler(w http.ResponseWriter, r *http.Request) {
	batchID := extractBatchID(strings.TrimSuffix(r.URL.Path, "/jobs"))
	if batchID == "" {
		WriteError(w, http.StatusBadRequest, "Missing batch ID")
		return
	}

	jobs, err := h.storage.JobStorage().GetJobsByBatch(r.Context(), batchID)
	if err != nil {
		h.logger.Error().Err(err).Str("batch_id", batchID).Msg("Failed to get batch jobs")
		WriteError(w, http.StatusInternalServerError, "Failed to get batch jobs")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"batch_id": batchID,
		"jobs":     jobs,
		"count":    len(jobs),
	})
}

// extractBatchID pulls the batch ID out of /api/batches/{id}
func extractBatchID(path string) string {
	const prefix = "/api/batches/"
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	id := strings.TrimPrefix(path, prefix)
	return strings.Trim(id, "/")
}
