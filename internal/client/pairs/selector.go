// Package pairs - выбор торговой пары с поиском
//
// Список пар загружается один раз за страницу и фильтруется на клиенте
// при каждом вводе, без debounce.
package pairs

import (
	"context"
	"strings"
	"sync"

	"tradehook/internal/client"
	"tradehook/internal/client/appstate"
	"tradehook/internal/models"
	"tradehook/pkg/utils"
)

// MaxResults - максимум вариантов в выпадающем списке
const MaxResults = 10

// ErrorNotice - текст ошибки загрузки списка
const ErrorNotice = "Failed to load trading pairs. Please try again later."

// Getter - GET с JSON ответом (реализует *client.API)
type Getter interface {
	GetJSON(ctx context.Context, path string, out interface{}) error
}

// pairsResponse - ответ GET /api/coinbase/trading-pairs
type pairsResponse struct {
	Success      bool                 `json:"success"`
	TradingPairs []models.TradingPair `json:"trading_pairs"`
	Error        string               `json:"error,omitempty"`
}

// Selector - поле выбора пары
type Selector struct {
	mu     sync.Mutex
	api    Getter
	state  *appstate.State
	logger *utils.Logger

	value    string // видимое поле
	hidden   string // скрытое поле формы
	open     bool
	results  []models.TradingPair
	errorMsg string
}

// New создает поле выбора
func New(api Getter, state *appstate.State, logger *utils.Logger) *Selector {
	if logger == nil {
		logger = utils.L()
	}
	return &Selector{
		api:    api,
		state:  state,
		logger: logger.WithComponent("pairs"),
	}
}

// Load загружает список пар в State
//
// При ошибке или success:false показывается ErrorNotice, список
// остается пустым. Повторный вызов после успешной загрузки ничего
// не запрашивает.
func (s *Selector) Load(ctx context.Context) error {
	if s.state.PairsLoaded() {
		return nil
	}

	var resp pairsResponse
	err := s.api.GetJSON(ctx, "/api/coinbase/trading-pairs", &resp)
	if err == nil && !resp.Success {
		err = &client.APIError{StatusCode: 200, Message: resp.Error}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.logger.Warn("failed to load trading pairs", utils.Err(err))
		s.errorMsg = ErrorNotice
		return err
	}

	s.errorMsg = ""
	s.state.SetTradingPairs(resp.TradingPairs)
	return nil
}

// ErrorNotice - текст ошибки под полем, пусто если ошибки нет
func (s *Selector) ErrorNotice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorMsg
}

// Search фильтрует пары по введенному тексту
//
// Регистронезависимый поиск подстроки в product_id, base и quote.
// Возвращает первые MaxResults совпадений. Без загруженных пар - [].
func (s *Selector) Search(text string) []models.TradingPair {
	results := Filter(s.state.TradingPairs(), text)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = text
	s.results = results
	s.open = strings.TrimSpace(text) != "" && len(results) > 0
	return results
}

// Filter - чистая функция поиска
func Filter(pairs []models.TradingPair, text string) []models.TradingPair {
	results := []models.TradingPair{}
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return results
	}

	for _, p := range pairs {
		if strings.Contains(strings.ToLower(p.ProductID), needle) ||
			strings.Contains(strings.ToLower(p.BaseCurrency), needle) ||
			strings.Contains(strings.ToLower(p.QuoteCurrency), needle) {
			results = append(results, p)
			if len(results) == MaxResults {
				break
			}
		}
	}
	return results
}

// Select записывает пару в видимое и скрытое поле и закрывает список
func (s *Selector) Select(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = productID
	s.hidden = productID
	s.open = false
}

// ClickOutside закрывает список, если клик был вне поля
func (s *Selector) ClickOutside(inside bool) {
	if inside {
		return
	}
	s.mu.Lock()
	s.open = false
	s.mu.Unlock()
}

// Open - показан ли выпадающий список
func (s *Selector) Open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Results - варианты последнего поиска
func (s *Selector) Results() []models.TradingPair {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

// Value - текст видимого поля
func (s *Selector) Value() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Hidden - значение скрытого поля trading_pair
func (s *Selector) Hidden() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hidden
}
