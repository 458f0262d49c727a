package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/heygregwood/woodhouse-creative-sub001/internal/common"
	"github.com/heygregwood/woodhouse-creative-sub001/internal/models"
	"github.com/heygregwood/woodhouse-creative-sub001/internal/queue"
)

// WebhookHandler receives render completion callbacks from the provider.
type WebhookHandler struct {
	completion *queue.CompletionHandler
	logger     arbor.ILogger
}

func NewWebhookHandler(completion *queue.CompletionHandler) *WebhookHandler {
	return &WebhookHandler{
		completion: completion,
		logger:     common.GetLogger(),
	}
}

// renderWebhookPayload is the provider's callback body. The render ID
// arrives as "id"; older webhook configurations send "render_id".
type renderWebhookPayload struct {
	ID           string  `json:"id"`
	RenderID     string  `json:"render_id"`
	Status       string  `json:"status"`
	URL          string  `json:"url"`
	ErrorMessage string  `json:"error_message"`
	FileSize     int64   `json:"file_size"`
	Duration     float64 `json:"duration"`
	CostUnits    float64 `json:"credits_used"`
}

func (p *renderWebhookPayload) renderID() string {
	if p.ID != "" {
		return p.ID
	}
	return p.RenderID
}

// RenderCompletedHandler handles POST /api/webhooks/creatomate.
//
// The provider retries delivery on non-2xx responses, so every outcome the
// handler can absorb safely returns 200: unknown render IDs (superseded by a
// retry) and already-terminal jobs are acknowledged without changes.
func (h *WebhookHandler) RenderCompletedHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var payload renderWebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to decode webhook payload")
		WriteError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	renderID := payload.renderID()
	if renderID == "" {
		WriteError(w, http.StatusBadRequest, "Missing render ID")
		return
	}

	h.logger.Info().
		Str("render_id", renderID).
		Str("render_status", payload.Status).
		Msg("Render webhook received")

	switch payload.Status {
	case "succeeded":
		if payload.URL == "" {
			WriteError(w, http.StatusBadRequest, "Succeeded render missing artifact URL")
			return
		}
		meta := &models.RenderMetadata{
			SizeBytes:       payload.FileSize,
			DurationSeconds: payload.Duration,
			CostUnits:       payload.CostUnits,
		}
		if err := h.completion.HandleSuccess(r.Context(), renderID, payload.URL, meta); err != nil {
			h.logger.Error().Err(err).Str("render_id", renderID).Msg("Failed to process successful render")
			WriteError(w, http.StatusInternalServerError, "Failed to process render completion")
			return
		}
	case "failed":
		if err := h.completion.HandleFailure(r.Context(), renderID, payload.ErrorMessage); err != nil {
			h.logger.Error().Err(err).Str("render_id", renderID).Msg("Failed to process failed render")
			WriteError(w, http.StatusInternalServerError, "Failed to process render failure")
			return
		}
	default:
		// Intermediate statuses (planned, rendering) need no action.
		h.logger.Debug().
			Str("render_id", renderID).
			Str("render_status", payload.Status).
			Msg("Ignoring non-terminal render status")
	}

	WriteSuccess(w, "Webhook processed")
}
