package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/spf13/cast"

	"tradehook/internal/models"
	"tradehook/internal/service"
)

// TransferResponse - ответ на проведенный перевод
type TransferResponse struct {
	Success  bool             `json:"success"`
	Transfer *models.Transfer `json:"transfer"`
}

// ExchangeHandler отвечает за аккаунты биржи, балансы и переводы
//
// Endpoints:
// - GET /api/exchanges - подключенные аккаунты пользователя
// - POST /api/exchanges - подключение аккаунта
// - DELETE /api/exchanges/{id} - отключение аккаунта
// - POST /api/exchanges/{id}/sync - обновление балансов с биржи
// - GET /exchange/{exchange_id}/transfer-context - снимок для окна перевода
// - POST /exchange/{exchange_id}/transfer - перевод (форма)
type ExchangeHandler struct {
	exchangeService service.ExchangeServiceInterface
	transferService service.TransferServiceInterface
}

// NewExchangeHandler создает новый ExchangeHandler
func NewExchangeHandler(exchangeService service.ExchangeServiceInterface, transferService service.TransferServiceInterface) *ExchangeHandler {
	return &ExchangeHandler{
		exchangeService: exchangeService,
		transferService: transferService,
	}
}

// GetExchanges возвращает аккаунты бирж пользователя (без ключей)
// GET /api/exchanges
func (h *ExchangeHandler) GetExchanges(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	credentials, err := h.exchangeService.List(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	if credentials == nil {
		credentials = []*models.ExchangeCredential{}
	}

	respondWithJSON(w, http.StatusOK, credentials)
}

// ConnectExchange подключает аккаунт биржи с API ключами
// POST /api/exchanges
//
// Тело запроса:
//
//	{
//	  "exchange": "coinbase",
//	  "name": "main",
//	  "api_key": "your-api-key",
//	  "api_secret": "base64-secret",
//	  "passphrase": "your-passphrase"
//	}
//
// Ответы:
// - 201 Created: аккаунт подключен, балансы загружены
// - 400 Bad Request: некорректные данные
// - 401 Unauthorized: неверные API ключи
// - 409 Conflict: аккаунт с таким именем уже есть
// - 502 Bad Gateway: биржа недоступна
func (h *ExchangeHandler) ConnectExchange(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req service.ConnectRequest
	normalize := func() { req.Exchange = strings.ToLower(strings.TrimSpace(req.Exchange)) }
	if err := decodeJSON(w, r, &req, normalize); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", validationMessage(err))
		return
	}

	credential, err := h.exchangeService.Connect(r.Context(), userID, req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, credential)
}

// DisconnectExchange удаляет аккаунт биржи
// DELETE /api/exchanges/{id}
//
// Ответы:
// - 204 No Content: аккаунт удален
// - 404 Not Found: аккаунт не найден
// - 409 Conflict: у стратегий остались выделенные средства
func (h *ExchangeHandler) DisconnectExchange(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	credentialID, ok := h.credentialID(w, r, "id")
	if !ok {
		return
	}

	if err := h.exchangeService.Disconnect(r.Context(), userID, credentialID); err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SyncBalances обновляет балансы основного аккаунта с биржи
// POST /api/exchanges/{id}/sync
func (h *ExchangeHandler) SyncBalances(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	credentialID, ok := h.credentialID(w, r, "id")
	if !ok {
		return
	}

	assets, err := h.exchangeService.SyncBalances(r.Context(), userID, credentialID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	if assets == nil {
		assets = []models.MainAccountAsset{}
	}

	respondWithJSON(w, http.StatusOK, assets)
}

// GetTransferContext возвращает балансы и стратегии аккаунта
// GET /exchange/{exchange_id}/transfer-context
//
// Ответ:
//
//	{
//	  "exchange_credential_id": 3,
//	  "main_assets": [{"asset_symbol": "BTC", "available_balance": "1.5"}],
//	  "strategies": [{"id": 7, "base_asset_symbol": "BTC", ...}]
//	}
func (h *ExchangeHandler) GetTransferContext(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	credentialID, ok := h.credentialID(w, r, "exchange_id")
	if !ok {
		return
	}

	tc, err := h.exchangeService.TransferContext(r.Context(), userID, credentialID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, tc)
}

// Transfer проводит перевод между основным аккаунтом и стратегиями
// POST /exchange/{exchange_id}/transfer
//
// Форма: source, destination, amount (main::USD, strategy::7::BTC)
//
// Ответы:
// - 200 OK: перевод проведен
// - 400 Bad Request: некорректный источник, получатель или сумма
// - 404 Not Found: аккаунт не найден
// - 409 Conflict: недостаточно средств на момент списания
func (h *ExchangeHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	credentialID, ok := h.credentialID(w, r, "exchange_id")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := r.ParseForm(); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid form", "")
		return
	}

	req := service.TransferRequest{
		CredentialID: credentialID,
		Source:       strings.TrimSpace(r.PostForm.Get("source")),
		Destination:  strings.TrimSpace(r.PostForm.Get("destination")),
		Amount:       strings.TrimSpace(r.PostForm.Get("amount")),
	}
	if err := validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Source, destination and amount are required", validationMessage(err))
		return
	}

	t, err := h.transferService.Execute(r.Context(), userID, req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, TransferResponse{Success: true, Transfer: t})
}

// credentialID читает числовой ID аккаунта из пути
func (h *ExchangeHandler) credentialID(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := cast.ToIntE(mux.Vars(r)[name])
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "invalid_id", "Invalid exchange account ID", "")
		return 0, false
	}
	return id, true
}

// handleServiceError обрабатывает ошибки от сервиса и возвращает соответствующий HTTP статус
func (h *ExchangeHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrCredentialNotFound):
		respondWithError(w, http.StatusNotFound, "exchange_not_found", "Exchange account not found", "")

	case errors.Is(err, service.ErrExchangeNotSupported):
		respondWithError(w, http.StatusBadRequest, "exchange_not_supported", "Exchange not supported", "")

	case errors.Is(err, service.ErrCredentialExists):
		respondWithError(w, http.StatusConflict, "exchange_exists", "Exchange account with this name already exists", "")

	case errors.Is(err, service.ErrInvalidCredentials):
		respondWithError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid API credentials", "")

	case errors.Is(err, service.ErrConnectionFailed):
		respondWithError(w, http.StatusBadGateway, "connection_failed", "Failed to connect to exchange", "")

	case errors.Is(err, service.ErrCredentialHasStrategies):
		respondWithError(w, http.StatusConflict, "has_allocations", "Strategies still hold allocated funds", "Move funds back to the main account first")

	case errors.Is(err, service.ErrInvalidSource):
		respondWithError(w, http.StatusBadRequest, "invalid_source", "Invalid transfer source", "")

	case errors.Is(err, service.ErrInvalidDestination):
		respondWithError(w, http.StatusBadRequest, "invalid_destination", "Please select a destination", "")

	case errors.Is(err, service.ErrIncompatibleDestination):
		respondWithError(w, http.StatusBadRequest, "incompatible_destination", "Destination does not hold this asset", "")

	case errors.Is(err, service.ErrInvalidAmount):
		respondWithError(w, http.StatusBadRequest, "invalid_amount", "Please enter a valid positive amount", "")

	case errors.Is(err, service.ErrInsufficientBalance):
		respondWithError(w, http.StatusConflict, "insufficient_balance", "Amount exceeds available balance", "")

	default:
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Internal server error", "")
	}
}
