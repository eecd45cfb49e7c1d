package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"tradehook/internal/exchange"
	"tradehook/internal/metrics"
	"tradehook/internal/models"
	"tradehook/pkg/utils"
)

// ErrPairsUnavailable - биржа недоступна и кэш пуст
var ErrPairsUnavailable = errors.New("trading pairs are temporarily unavailable")

const (
	pairsFreshKey = "pairs:coinbase:fresh"
	pairsLastKey  = "pairs:coinbase:last"

	// Запрос к бирже не зависит от отмены запроса, который его начал
	pairsRefreshTimeout = 30 * time.Second
)

// TradingPairService - справочник торговых пар Coinbase
//
// Свежая копия живет ttl в кэше. Последняя успешная копия хранится
// без срока и отдается, если биржа не отвечает.
type TradingPairService struct {
	exchange exchange.Exchange
	cache    PairCache
	ttl      time.Duration
	group    singleflight.Group
	log      *utils.Logger
}

// NewTradingPairService создает сервис
func NewTradingPairService(ex exchange.Exchange, cache PairCache, ttl time.Duration) *TradingPairService {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &TradingPairService{
		exchange: ex,
		cache:    cache,
		ttl:      ttl,
		log:      utils.L().WithComponent("pairs"),
	}
}

// List возвращает торгуемые пары, отсортированные по product_id
func (s *TradingPairService) List(ctx context.Context) ([]models.TradingPair, error) {
	var pairs []models.TradingPair
	if found, err := s.cache.Get(pairsFreshKey, &pairs); err != nil {
		s.log.Warn("pairs cache read failed", utils.Err(err))
	} else if found {
		metrics.PairsCache.WithLabelValues("hit").Inc()
		return pairs, nil
	}

	// параллельные промахи ждут один запрос к бирже
	ch := s.group.DoChan(pairsFreshKey, func() (interface{}, error) {
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pairsRefreshTimeout)
		defer cancel()
		return s.refresh(refreshCtx)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	err := res.Err
	if err == nil {
		metrics.PairsCache.WithLabelValues("miss").Inc()
		return res.Val.([]models.TradingPair), nil
	}

	var stale []models.TradingPair
	if found, cacheErr := s.cache.Get(pairsLastKey, &stale); cacheErr == nil && found {
		metrics.PairsCache.WithLabelValues("stale").Inc()
		s.log.Warn("serving stale trading pairs", utils.Err(err))
		return stale, nil
	}

	s.log.Error("failed to load trading pairs", utils.Err(err))
	return nil, errors.Join(ErrPairsUnavailable, err)
}

// refresh загружает пары с биржи и обновляет обе копии кэша
func (s *TradingPairService) refresh(ctx context.Context) ([]models.TradingPair, error) {
	start := time.Now()
	products, err := s.exchange.Products(ctx)
	metrics.RecordExchangeRequest(s.exchange.Name(), "products", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	pairs := make([]models.TradingPair, 0, len(products))
	for _, p := range products {
		if !p.Tradable() {
			continue
		}
		pairs = append(pairs, models.TradingPair{
			ProductID:     p.ID,
			BaseCurrency:  p.BaseCurrency,
			QuoteCurrency: p.QuoteCurrency,
		})
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].ProductID < pairs[j].ProductID
	})

	if err := s.cache.Set(pairsFreshKey, pairs, s.ttl); err != nil {
		s.log.Warn("pairs cache write failed", utils.Err(err))
	}
	if err := s.cache.Set(pairsLastKey, pairs, 0); err != nil {
		s.log.Warn("pairs cache write failed", utils.Err(err))
	}

	s.log.Info("trading pairs refreshed", utils.Int("count", len(pairs)), utils.Elapsed(time.Since(start)))
	return pairs, nil
}
