package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"tradehook/internal/models"
	"tradehook/internal/service"
)

// ToggleResponse - ответ на включение/выключение автоматизации
type ToggleResponse struct {
	Success      bool   `json:"success"`
	AutomationID string `json:"automation_id"`
	IsActive     bool   `json:"is_active"`
}

// AutomationHandler отвечает за автоматизации и их статус
//
// Endpoints:
// - GET /automation - список автоматизаций пользователя
// - POST /automation - создание
// - GET /automation/{id} - получение
// - PUT /automation/{id} - обновление
// - DELETE /automation/{id} - удаление
// - POST /activate-automation/{id}, /deactivate-automation/{id} - статус (владелец)
// - POST /admin/api/automation/{id}/activate|deactivate - статус (администратор)
type AutomationHandler struct {
	automationService service.AutomationServiceInterface
}

// NewAutomationHandler создает новый AutomationHandler
func NewAutomationHandler(automationService service.AutomationServiceInterface) *AutomationHandler {
	return &AutomationHandler{
		automationService: automationService,
	}
}

// ListAutomations возвращает автоматизации текущего пользователя
// GET /automation
func (h *AutomationHandler) ListAutomations(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	automations, err := h.automationService.List(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	if automations == nil {
		automations = []*models.Automation{}
	}

	respondWithJSON(w, http.StatusOK, automations)
}

// CreateAutomation создает автоматизацию (выключенной)
// POST /automation
//
// Тело запроса:
//
//	{
//	  "name": "BTC breakout",
//	  "trading_pair": "BTC-USD",
//	  "exchange_credential_id": 3,
//	  "strategy_id": 7
//	}
//
// Ответы:
// - 201 Created: автоматизация создана
// - 400 Bad Request: некорректные данные
func (h *AutomationHandler) CreateAutomation(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var params models.AutomationParams
	if err := decodeJSON(w, r, &params); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", validationMessage(err))
		return
	}

	automation, err := h.automationService.Create(r.Context(), userID, params)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, automation)
}

// GetAutomation возвращает автоматизацию по публичному ID
// GET /automation/{id}
func (h *AutomationHandler) GetAutomation(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	automation, err := h.automationService.Get(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, automation)
}

// UpdateAutomation обновляет имя, пару и привязки
// PUT /automation/{id}
func (h *AutomationHandler) UpdateAutomation(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var params models.AutomationParams
	if err := decodeJSON(w, r, &params); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", validationMessage(err))
		return
	}

	automation, err := h.automationService.Update(r.Context(), userID, mux.Vars(r)["id"], params)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, automation)
}

// DeleteAutomation удаляет автоматизацию (логи остаются в истории)
// DELETE /automation/{id}
func (h *AutomationHandler) DeleteAutomation(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.automationService.Delete(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ActivateAutomation включает автоматизацию владельца
// POST /activate-automation/{id}
//
// Ответы:
// - 200 OK: {"success": true, "automation_id": "...", "is_active": true}
// - 404 Not Found: нет такой автоматизации у пользователя
// - 409 Conflict: уже включена
func (h *AutomationHandler) ActivateAutomation(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, true)
}

// DeactivateAutomation выключает автоматизацию владельца
// POST /deactivate-automation/{id}
func (h *AutomationHandler) DeactivateAutomation(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, false)
}

// AdminActivateAutomation включает любую автоматизацию
// POST /admin/api/automation/{id}/activate
func (h *AutomationHandler) AdminActivateAutomation(w http.ResponseWriter, r *http.Request) {
	h.adminToggle(w, r, true)
}

// AdminDeactivateAutomation выключает любую автоматизацию
// POST /admin/api/automation/{id}/deactivate
func (h *AutomationHandler) AdminDeactivateAutomation(w http.ResponseWriter, r *http.Request) {
	h.adminToggle(w, r, false)
}

func (h *AutomationHandler) toggle(w http.ResponseWriter, r *http.Request, active bool) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	id := mux.Vars(r)["id"]
	var (
		automation *models.Automation
		err        error
	)
	if active {
		automation, err = h.automationService.Activate(r.Context(), userID, id)
	} else {
		automation, err = h.automationService.Deactivate(r.Context(), userID, id)
	}
	h.respondToggle(w, automation, err)
}

func (h *AutomationHandler) adminToggle(w http.ResponseWriter, r *http.Request, active bool) {
	automation, err := h.automationService.AdminSetActive(r.Context(), mux.Vars(r)["id"], active)
	h.respondToggle(w, automation, err)
}

func (h *AutomationHandler) respondToggle(w http.ResponseWriter, automation *models.Automation, err error) {
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, ToggleResponse{
		Success:      true,
		AutomationID: automation.AutomationID,
		IsActive:     automation.IsActive,
	})
}

// handleServiceError обрабатывает ошибки от сервиса и возвращает соответствующий HTTP статус
func (h *AutomationHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrAutomationNotFound):
		respondWithError(w, http.StatusNotFound, "automation_not_found", "Automation not found", "")

	case errors.Is(err, service.ErrAutomationAlreadyActive):
		respondWithError(w, http.StatusConflict, "automation_already_active", "Automation is already active", "")

	case errors.Is(err, service.ErrAutomationAlreadyInactive):
		respondWithError(w, http.StatusConflict, "automation_already_inactive", "Automation is already inactive", "")

	case errors.Is(err, service.ErrInvalidAutomationName):
		respondWithError(w, http.StatusBadRequest, "invalid_name", "Name is required and must be at most 100 characters", "")

	case errors.Is(err, service.ErrInvalidTradingPair):
		respondWithError(w, http.StatusBadRequest, "invalid_trading_pair", "Trading pair must look like BTC-USD", "")

	default:
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Internal server error", "")
	}
}
