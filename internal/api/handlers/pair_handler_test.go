package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tradehook/internal/models"
	"tradehook/internal/service"
)

// ============ PairHandler Tests ============

func TestPairHandler_GetTradingPairs(t *testing.T) {
	t.Run("returns pairs", func(t *testing.T) {
		handler := NewPairHandler(&MockPairService{pairs: []models.TradingPair{
			{ProductID: "BTC-USD", BaseCurrency: "BTC", QuoteCurrency: "USD"},
			{ProductID: "ETH-USD", BaseCurrency: "ETH", QuoteCurrency: "USD"},
		}})

		w := httptest.NewRecorder()
		handler.GetTradingPairs(w, httptest.NewRequest(http.MethodGet, "/api/coinbase/trading-pairs", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}

		var resp TradingPairsResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if !resp.Success || len(resp.TradingPairs) != 2 || resp.TradingPairs[0].ProductID != "BTC-USD" {
			t.Errorf("unexpected response: %+v", resp)
		}
	})

	t.Run("exchange failure", func(t *testing.T) {
		handler := NewPairHandler(&MockPairService{err: service.ErrPairsUnavailable})

		w := httptest.NewRecorder()
		handler.GetTradingPairs(w, httptest.NewRequest(http.MethodGet, "/api/coinbase/trading-pairs", nil))

		var resp TradingPairsResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Success || resp.Error == "" || len(resp.TradingPairs) != 0 {
			t.Errorf("unexpected response: %+v", resp)
		}
	})

	t.Run("empty list is an array", func(t *testing.T) {
		handler := NewPairHandler(&MockPairService{})

		w := httptest.NewRecorder()
		handler.GetTradingPairs(w, httptest.NewRequest(http.MethodGet, "/api/coinbase/trading-pairs", nil))

		var raw map[string]interface{}
		json.NewDecoder(w.Body).Decode(&raw)
		if _, ok := raw["trading_pairs"].([]interface{}); !ok {
			t.Errorf("trading_pairs must be an array, got %v", raw["trading_pairs"])
		}
	})
}
