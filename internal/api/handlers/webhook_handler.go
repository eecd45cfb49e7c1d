package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"tradehook/internal/service"
)

// WebhookResponse - ответ отправителю вебхука
type WebhookResponse struct {
	Success bool   `json:"success"`
	LogID   int64  `json:"log_id,omitempty"`
	Status  string `json:"status,omitempty"`
}

// WebhookHandler принимает вебхуки (алерты TradingView)
//
// Endpoints:
// - POST /webhook/{automation_id}
//
// Endpoint публичный: automation_id - неугадываемый uuid.
type WebhookHandler struct {
	webhookService service.WebhookServiceInterface
	maxBodyBytes   int64
}

// NewWebhookHandler создает новый WebhookHandler
func NewWebhookHandler(webhookService service.WebhookServiceInterface, maxBodyBytes int64) *WebhookHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = MaxRequestBodySize
	}
	return &WebhookHandler{
		webhookService: webhookService,
		maxBodyBytes:   maxBodyBytes,
	}
}

// ReceiveWebhook сохраняет вебхук в лог
// POST /webhook/{automation_id}
//
// Ответы:
// - 200 OK: вебхук записан (status received или ignored)
// - 400 Bad Request: тело не JSON объект (записан как rejected)
// - 404 Not Found: неизвестная автоматизация
// - 413 Request Entity Too Large: тело больше WEBHOOK_MAX_BODY_BYTES
// - 429 Too Many Requests: превышен лимит автоматизации
func (h *WebhookHandler) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "Webhook body is too large", "")
			return
		}
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Failed to read body", "")
		return
	}

	entry, err := h.webhookService.Handle(r.Context(), mux.Vars(r)["automation_id"], body)
	switch {
	case err == nil:
		respondWithJSON(w, http.StatusOK, WebhookResponse{Success: true, LogID: entry.ID, Status: entry.Status})

	case errors.Is(err, service.ErrAutomationNotFound):
		respondWithError(w, http.StatusNotFound, "automation_not_found", "Automation not found", "")

	case errors.Is(err, service.ErrWebhookRateLimited):
		w.Header().Set("Retry-After", "1")
		respondWithError(w, http.StatusTooManyRequests, "rate_limited", "Too many webhooks for this automation", "")

	case errors.Is(err, service.ErrInvalidPayload):
		respondWithError(w, http.StatusBadRequest, "invalid_payload", "Webhook body must be a JSON object", "")

	default:
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Internal server error", "")
	}
}
