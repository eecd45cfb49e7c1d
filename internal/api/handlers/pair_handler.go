package handlers

import (
	"net/http"

	"tradehook/internal/models"
	"tradehook/internal/service"
	"tradehook/pkg/utils"
)

// TradingPairsResponse - ответ со справочником пар
//
// При ошибке success=false и заполнено error, HTTP статус 200:
// страница показывает уведомление и оставляет список пустым.
type TradingPairsResponse struct {
	Success      bool                 `json:"success"`
	TradingPairs []models.TradingPair `json:"trading_pairs"`
	Error        string               `json:"error,omitempty"`
}

// PairHandler отдает торговые пары Coinbase
//
// Endpoints:
// - GET /api/coinbase/trading-pairs
type PairHandler struct {
	pairService service.TradingPairServiceInterface
}

// NewPairHandler создает новый PairHandler
func NewPairHandler(pairService service.TradingPairServiceInterface) *PairHandler {
	return &PairHandler{
		pairService: pairService,
	}
}

// GetTradingPairs возвращает торгуемые пары, отсортированные по product_id
// GET /api/coinbase/trading-pairs
func (h *PairHandler) GetTradingPairs(w http.ResponseWriter, r *http.Request) {
	pairs, err := h.pairService.List(r.Context())
	if err != nil {
		utils.L().WithComponent("pairs").Warn("trading pairs unavailable", utils.Err(err))
		respondWithJSON(w, http.StatusOK, TradingPairsResponse{
			Success: false,
			Error:   "Failed to load trading pairs from Coinbase",
		})
		return
	}
	if pairs == nil {
		pairs = []models.TradingPair{}
	}

	respondWithJSON(w, http.StatusOK, TradingPairsResponse{
		Success:      true,
		TradingPairs: pairs,
	})
}
