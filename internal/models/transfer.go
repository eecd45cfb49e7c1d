package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transfer - проведенный перевод между основным аккаунтом и стратегиями
type Transfer struct {
	ID                   int             `json:"id" db:"id"`
	ExchangeCredentialID int             `json:"exchange_credential_id" db:"exchange_credential_id"`
	Source               string          `json:"source" db:"source"`           // main::USD, strategy::3::BTC
	Destination          string          `json:"destination" db:"destination"` // в той же кодировке
	AssetSymbol          string          `json:"asset_symbol" db:"asset_symbol"`
	Amount               decimal.Decimal `json:"amount" db:"amount"`
	CreatedAt            time.Time       `json:"created_at" db:"created_at"`
}
