package models

import "github.com/shopspring/decimal"

// MainAccountAsset - свободный остаток актива на основном аккаунте
type MainAccountAsset struct {
	ExchangeCredentialID int             `json:"exchange_credential_id" db:"exchange_credential_id"`
	AssetSymbol          string          `json:"asset_symbol" db:"asset_symbol"`
	AvailableBalance     decimal.Decimal `json:"available_balance" db:"available_balance"`
}

// Strategy - выделенная под стратегию часть активов
type Strategy struct {
	ID                          int             `json:"id" db:"id"`
	Name                        string          `json:"name" db:"name"`
	ExchangeCredentialID        int             `json:"exchange_credential_id" db:"exchange_credential_id"`
	BaseAssetSymbol             string          `json:"base_asset_symbol" db:"base_asset_symbol"`
	QuoteAssetSymbol            string          `json:"quote_asset_symbol" db:"quote_asset_symbol"`
	AllocatedBaseAssetQuantity  decimal.Decimal `json:"allocated_base_asset_quantity" db:"allocated_base_asset_quantity"`
	AllocatedQuoteAssetQuantity decimal.Decimal `json:"allocated_quote_asset_quantity" db:"allocated_quote_asset_quantity"`
}

// Holds проверяет, держит ли стратегия актив (base или quote)
func (s *Strategy) Holds(asset string) bool {
	return s.BaseAssetSymbol == asset || s.QuoteAssetSymbol == asset
}

// Allocated - выделенное количество актива (ноль, если стратегия его не держит)
func (s *Strategy) Allocated(asset string) decimal.Decimal {
	switch asset {
	case s.BaseAssetSymbol:
		return s.AllocatedBaseAssetQuantity
	case s.QuoteAssetSymbol:
		return s.AllocatedQuoteAssetQuantity
	default:
		return decimal.Zero
	}
}

// HasAllocations - есть ли ненулевые выделения
func (s *Strategy) HasAllocations() bool {
	return s.AllocatedBaseAssetQuantity.IsPositive() || s.AllocatedQuoteAssetQuantity.IsPositive()
}

// TransferContext - снимок для окна перевода (загружается при открытии страницы)
type TransferContext struct {
	ExchangeCredentialID int                `json:"exchange_credential_id"`
	MainAssets           []MainAccountAsset `json:"main_assets"`
	Strategies           []Strategy         `json:"strategies"`
}
