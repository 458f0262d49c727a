package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/heygregwood/woodhouse-creative-sub001/internal/common"
	"github.com/heygregwood/woodhouse-creative-sub001/internal/interfaces"
	"github.com/heygregwood/woodhouse-creative-sub001/internal/models"
)

// DealerHandler ingests dealer records from the upstream roster export.
type DealerHandler struct {
	storage interfaces.StorageManager
	logger  arbor.ILogger
}

func NewDealerHandler(storage interfaces.StorageManager) *DealerHandler {
	return &DealerHandler{
		storage: storage,
		logger:  common.GetLogger(),
	}
}

// UpsertDealersHandler handles POST /api/dealers - bulk upsert
func (h *DealerHandler) UpsertDealersHandler(w http.ResponseWriter, r *http.Request) {
	var dealers []*models.Dealer
	if err := json.NewDecoder(r.Body).Decode(&dealers); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON payload, expected an array of dealers")
		return
	}
	if len(dealers) == 0 {
		WriteError(w, http.StatusBadRequest, "Empty dealer list")
		return
	}

	now := time.Now()
	saved := 0
	for _, dealer := range dealers {
		if dealer.DealerNo == "" {
			WriteError(w, http.StatusBadRequest, "Dealer missing dealer_no")
			return
		}
		dealer.UpdatedAt = now
		if err := h.storage.DealerStorage().SaveDealer(r.Context(), dealer); err != nil {
			h.logger.Error().Err(err).Str("dealer_no", dealer.DealerNo).Msg("Failed to save dealer")
			WriteError(w, http.StatusInternalServerError, "Failed to save dealer")
			return
		}
		saved++
	}

	h.logger.Info().Int("count", saved).Msg("Dealers upserted")

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"saved":  saved,
	})
}

// ListDealersHandler handles GET /api/dealers - active program members
func (h *DealerHandler) ListDealersHandler(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("program_status")
	if status == "" {
		status = models.ProgramStatusFull
	}

	dealers, err := h.storage.DealerStorage().GetDealersByProgramStatus(r.Context(), status)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list dealers")
		WriteError(w, http.StatusInternalServerError, "Failed to list dealers")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"dealers": dealers,
		"count":   len(dealers),
	})
}
