package transfer

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"tradehook/internal/models"
)

var (
	ErrUnknownSource           = errors.New("source not found for this exchange account")
	ErrIncompatibleDestination = errors.New("destination is not compatible with source")
)

// Option - элемент выпадающего списка
type Option struct {
	Value     string          `json:"value"`
	Label     string          `json:"label"`
	Asset     string          `json:"asset"`
	Available decimal.Decimal `json:"available"`
}

// Book - снимок балансов одного аккаунта биржи
//
// Записи других аккаунтов игнорируются, поэтому в Book можно
// передавать общий снимок страницы.
type Book struct {
	CredentialID int
	MainAssets   []models.MainAccountAsset
	Strategies   []models.Strategy
}

// NewBook строит Book из снимка TransferContext
func NewBook(ctx models.TransferContext) Book {
	return Book{
		CredentialID: ctx.ExchangeCredentialID,
		MainAssets:   ctx.MainAssets,
		Strategies:   ctx.Strategies,
	}
}

// Sources - все возможные источники: активы основного аккаунта,
// затем каждая стратегия по base и quote
func (b Book) Sources() []Option {
	options := []Option{}

	for _, asset := range b.MainAssets {
		if asset.ExchangeCredentialID != b.CredentialID {
			continue
		}
		options = append(options, Option{
			Value:     Main(asset.AssetSymbol).Value(),
			Label:     fmt.Sprintf("Main account: %s (%s)", asset.AssetSymbol, asset.AvailableBalance.String()),
			Asset:     asset.AssetSymbol,
			Available: asset.AvailableBalance,
		})
	}

	for i := range b.Strategies {
		s := &b.Strategies[i]
		if s.ExchangeCredentialID != b.CredentialID {
			continue
		}
		for _, asset := range []string{s.BaseAssetSymbol, s.QuoteAssetSymbol} {
			options = append(options, strategyOption(s, asset))
		}
	}

	return options
}

// Available - доступный остаток источника
func (b Book) Available(src Account) (decimal.Decimal, error) {
	if src.IsMain() {
		for _, asset := range b.MainAssets {
			if asset.ExchangeCredentialID == b.CredentialID && asset.AssetSymbol == src.Asset {
				return asset.AvailableBalance, nil
			}
		}
		return decimal.Zero, ErrUnknownSource
	}

	s := b.strategy(src.StrategyID)
	if s == nil || !s.Holds(src.Asset) {
		return decimal.Zero, ErrUnknownSource
	}
	return s.Allocated(src.Asset), nil
}

// Destinations - допустимые получатели для источника
//
// Основной аккаунт -> стратегии того же аккаунта биржи с этим активом.
// Стратегия -> основной аккаунт (тот же актив) и другие стратегии с этим активом.
func (b Book) Destinations(src Account) ([]Option, error) {
	if _, err := b.Available(src); err != nil {
		return nil, err
	}

	options := []Option{}

	if !src.IsMain() {
		options = append(options, Option{
			Value:     Main(src.Asset).Value(),
			Label:     "Main account: " + src.Asset,
			Asset:     src.Asset,
			Available: b.mainBalance(src.Asset),
		})
	}

	for i := range b.Strategies {
		s := &b.Strategies[i]
		if s.ExchangeCredentialID != b.CredentialID || !s.Holds(src.Asset) {
			continue
		}
		if !src.IsMain() && s.ID == src.StrategyID {
			continue
		}
		options = append(options, strategyOption(s, src.Asset))
	}

	return options, nil
}

// Compatible проверяет, что dst входит в список получателей src
func (b Book) Compatible(src, dst Account) error {
	destinations, err := b.Destinations(src)
	if err != nil {
		return err
	}

	value := dst.Value()
	for _, opt := range destinations {
		if opt.Value == value {
			return nil
		}
	}
	return ErrIncompatibleDestination
}

func (b Book) strategy(id int) *models.Strategy {
	for i := range b.Strategies {
		s := &b.Strategies[i]
		if s.ID == id && s.ExchangeCredentialID == b.CredentialID {
			return s
		}
	}
	return nil
}

func (b Book) mainBalance(asset string) decimal.Decimal {
	for _, a := range b.MainAssets {
		if a.ExchangeCredentialID == b.CredentialID && a.AssetSymbol == asset {
			return a.AvailableBalance
		}
	}
	return decimal.Zero
}

func strategyOption(s *models.Strategy, asset string) Option {
	available := s.Allocated(asset)
	return Option{
		Value:     StrategyAccount(s.ID, asset).Value(),
		Label:     fmt.Sprintf("%s: %s (%s)", s.Name, asset, available.String()),
		Asset:     asset,
		Available: available,
	}
}
