package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cast"

	"tradehook/internal/models"
	"tradehook/internal/service"
	"tradehook/internal/stream"
	"tradehook/pkg/utils"
)

// LogStreamer - источник SSE потока (stream.Broker)
type LogStreamer interface {
	Serve(ctx context.Context, w http.ResponseWriter, scope models.LogScope, snapshot stream.SnapshotFunc, opts stream.Options) error
}

var _ LogStreamer = (*stream.Broker)(nil)

// LogHandler отдает логи вебхуков
//
// Endpoints:
// - GET /api/logs?limit=N - снимок последних логов пользователя
// - GET /api/logs/stream - SSE поток логов пользователя
// - GET /webhook-stream - SSE поток логов всех пользователей (админ)
type LogHandler struct {
	logService service.LogServiceInterface
	streamer   LogStreamer
	opts       stream.Options
}

// NewLogHandler создает новый LogHandler
func NewLogHandler(logService service.LogServiceInterface, streamer LogStreamer, opts stream.Options) *LogHandler {
	return &LogHandler{
		logService: logService,
		streamer:   streamer,
		opts:       opts,
	}
}

// GetLogs возвращает последние логи (новые первыми)
// GET /api/logs?limit=50
//
// Некорректный limit заменяется значением по умолчанию.
func (h *LogHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	limit := cast.ToInt(r.URL.Query().Get("limit"))

	entries, err := h.logService.Recent(r.Context(), models.LogScope{UserID: userID}, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to load logs", "")
		return
	}

	respondWithJSON(w, http.StatusOK, entries)
}

// StreamLogs держит SSE поток логов пользователя
// GET /api/logs/stream
//
// Каждое событие data: - JSON массив последних логов целиком.
func (h *LogHandler) StreamLogs(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	h.serve(w, r, models.LogScope{UserID: userID})
}

// StreamAllLogs - SSE поток по всем пользователям (дашборд администратора)
// GET /webhook-stream
func (h *LogHandler) StreamAllLogs(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, models.AdminScope)
}

func (h *LogHandler) serve(w http.ResponseWriter, r *http.Request, scope models.LogScope) {
	err := h.streamer.Serve(r.Context(), w, scope, h.logService.Snapshot(scope), h.opts)
	if errors.Is(err, stream.ErrStreamingUnsupported) {
		respondWithError(w, http.StatusInternalServerError, "streaming_unsupported", "Streaming unsupported", "")
		return
	}
	if err != nil {
		utils.L().WithComponent("stream").Debug("log stream closed", utils.UserID(scope.UserID), utils.Err(err))
	}
}
