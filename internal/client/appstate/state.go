// Package appstate - снимок данных страницы
//
// Загружается один раз при открытии страницы и передается в конструкторы
// компонентов. После загрузки меняется только список торговых пар,
// который выбор пары заполняет один раз.
package appstate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tradehook/internal/client"
	"tradehook/internal/models"
	"tradehook/internal/transfer"
)

var ErrNotLoaded = errors.New("page state not loaded")

// State - данные страницы
type State struct {
	mu sync.RWMutex

	ExchangeCredentialID int
	MainAssets           []models.MainAccountAsset
	Strategies           []models.Strategy

	tradingPairs []models.TradingPair
	pairsLoaded  bool
	loaded       bool
}

// New создает пустой снимок
func New() *State {
	return &State{}
}

// FromContext строит снимок из уже полученного TransferContext
func FromContext(tc models.TransferContext) *State {
	return &State{
		ExchangeCredentialID: tc.ExchangeCredentialID,
		MainAssets:           tc.MainAssets,
		Strategies:           tc.Strategies,
		loaded:               true,
	}
}

// Load загружает GET /exchange/{id}/transfer-context
func Load(ctx context.Context, api *client.API, credentialID int) (*State, error) {
	var tc models.TransferContext
	path := fmt.Sprintf("/exchange/%d/transfer-context", credentialID)
	if err := api.GetJSON(ctx, path, &tc); err != nil {
		return nil, fmt.Errorf("load transfer context: %w", err)
	}
	return FromContext(tc), nil
}

// Loaded - снимок получен с сервера
func (s *State) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Book - правила перевода по снимку
func (s *State) Book() (transfer.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return transfer.Book{}, ErrNotLoaded
	}
	return transfer.Book{
		CredentialID: s.ExchangeCredentialID,
		MainAssets:   s.MainAssets,
		Strategies:   s.Strategies,
	}, nil
}

// SetTradingPairs сохраняет список пар (nil сохраняется как пустой)
func (s *State) SetTradingPairs(pairs []models.TradingPair) {
	if pairs == nil {
		pairs = []models.TradingPair{}
	}
	s.mu.Lock()
	s.tradingPairs = pairs
	s.pairsLoaded = true
	s.mu.Unlock()
}

// TradingPairs - загруженные пары, nil если загрузки еще не было
func (s *State) TradingPairs() []models.TradingPair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tradingPairs
}

// PairsLoaded - список пар уже запрашивался успешно
func (s *State) PairsLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pairsLoaded
}
