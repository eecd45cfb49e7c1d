package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"tradehook/internal/models"
)

// ============ AutomationHandler Tests ============

func newAutomationFixture() (*AutomationHandler, *MockAutomationService) {
	mockSvc := NewMockAutomationService()
	mockSvc.AddAutomation(&models.Automation{AutomationID: "a-1", UserID: 1, Name: "BTC breakout", IsActive: true})
	mockSvc.AddAutomation(&models.Automation{AutomationID: "a-2", UserID: 2, Name: "ETH dip"})
	return NewAutomationHandler(mockSvc), mockSvc
}

func TestAutomationHandler_Toggle(t *testing.T) {
	tests := []struct {
		name       string
		activate   bool
		userID     int
		id         string
		wantStatus int
		wantActive bool
	}{
		{"deactivate active", false, 1, "a-1", http.StatusOK, false},
		{"activate already active", true, 1, "a-1", http.StatusConflict, false},
		{"activate inactive", true, 2, "a-2", http.StatusOK, true},
		{"deactivate already inactive", false, 2, "a-2", http.StatusConflict, false},
		{"foreign automation", false, 2, "a-1", http.StatusNotFound, false},
		{"unknown automation", true, 1, "missing", http.StatusNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _ := newAutomationFixture()

			path := "/deactivate-automation/" + tt.id
			if tt.activate {
				path = "/activate-automation/" + tt.id
			}
			req := httptest.NewRequest(http.MethodPost, path, nil)
			req = withUser(mux.SetURLVars(req, map[string]string{"id": tt.id}), tt.userID)
			w := httptest.NewRecorder()

			if tt.activate {
				handler.ActivateAutomation(w, req)
			} else {
				handler.DeactivateAutomation(w, req)
			}

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.wantStatus, w.Code, w.Body.String())
			}

			if tt.wantStatus == http.StatusOK {
				var resp ToggleResponse
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				if !resp.Success || resp.AutomationID != tt.id || resp.IsActive != tt.wantActive {
					t.Errorf("unexpected response: %+v", resp)
				}
				return
			}

			var errResp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&errResp); err != nil {
				t.Fatalf("failed to decode error: %v", err)
			}
			if errResp.Error == "" {
				t.Error("error response must carry error text")
			}
		})
	}
}

func TestAutomationHandler_AdminToggle(t *testing.T) {
	handler, _ := newAutomationFixture()

	// администратор меняет статус чужой автоматизации
	req := httptest.NewRequest(http.MethodPost, "/admin/api/automation/a-2/activate", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "a-2"})
	w := httptest.NewRecorder()

	handler.AdminActivateAutomation(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var resp ToggleResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if !resp.IsActive {
		t.Error("automation should be active")
	}

	req = httptest.NewRequest(http.MethodPost, "/admin/api/automation/a-1/deactivate", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "a-1"})
	w = httptest.NewRecorder()
	handler.AdminDeactivateAutomation(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}

func TestAutomationHandler_ToggleServiceError(t *testing.T) {
	handler, mockSvc := newAutomationFixture()
	mockSvc.SetError(ErrMockDatabase)

	req := httptest.NewRequest(http.MethodPost, "/activate-automation/a-2", nil)
	req = withUser(mux.SetURLVars(req, map[string]string{"id": "a-2"}), 2)
	w := httptest.NewRecorder()

	handler.ActivateAutomation(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), ErrMockDatabase.Error()) {
		t.Error("internal error details must not leak")
	}
}

func TestAutomationHandler_RequiresUser(t *testing.T) {
	handler, _ := newAutomationFixture()

	req := httptest.NewRequest(http.MethodGet, "/automation", nil)
	w := httptest.NewRecorder()

	handler.ListAutomations(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", w.Code)
	}
}

func TestAutomationHandler_ListAutomations(t *testing.T) {
	handler, _ := newAutomationFixture()

	req := withUser(httptest.NewRequest(http.MethodGet, "/automation", nil), 1)
	w := httptest.NewRecorder()

	handler.ListAutomations(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var list []models.Automation
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(list) != 1 || list[0].AutomationID != "a-1" {
		t.Errorf("expected only own automation, got %+v", list)
	}

	// пользователь без автоматизаций получает [], не null
	req = withUser(httptest.NewRequest(http.MethodGet, "/automation", nil), 99)
	w = httptest.NewRecorder()
	handler.ListAutomations(w, req)
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("expected [], got %s", w.Body.String())
	}
}

func TestAutomationHandler_CreateAutomation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"valid", `{"name":"BTC breakout","trading_pair":"BTC-USD"}`, http.StatusCreated},
		{"missing name", `{"trading_pair":"BTC-USD"}`, http.StatusBadRequest},
		{"name too long", `{"name":"` + strings.Repeat("x", 101) + `"}`, http.StatusBadRequest},
		{"unknown field", `{"name":"x","is_active":true}`, http.StatusBadRequest},
		{"invalid json", `{`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _ := newAutomationFixture()

			req := withUser(httptest.NewRequest(http.MethodPost, "/automation", strings.NewReader(tt.body)), 1)
			w := httptest.NewRecorder()

			handler.CreateAutomation(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d (%s)", tt.wantStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestAutomationHandler_GetUpdateDelete(t *testing.T) {
	handler, mockSvc := newAutomationFixture()

	req := withUser(mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/automation/a-1", nil), map[string]string{"id": "a-1"}), 1)
	w := httptest.NewRecorder()
	handler.GetAutomation(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", w.Code)
	}

	body := strings.NewReader(`{"name":"renamed","trading_pair":"ETH-USD"}`)
	req = withUser(mux.SetURLVars(httptest.NewRequest(http.MethodPut, "/automation/a-1", body), map[string]string{"id": "a-1"}), 1)
	w = httptest.NewRecorder()
	handler.UpdateAutomation(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", w.Code)
	}
	if mockSvc.automations["a-1"].Name != "renamed" {
		t.Error("update was not applied")
	}

	req = withUser(mux.SetURLVars(httptest.NewRequest(http.MethodDelete, "/automation/a-1", nil), map[string]string{"id": "a-1"}), 2)
	w = httptest.NewRecorder()
	handler.DeleteAutomation(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("delete foreign: expected 404, got %d", w.Code)
	}

	req = withUser(mux.SetURLVars(httptest.NewRequest(http.MethodDelete, "/automation/a-1", nil), map[string]string{"id": "a-1"}), 1)
	w = httptest.NewRecorder()
	handler.DeleteAutomation(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete: expected 204, got %d", w.Code)
	}
}
