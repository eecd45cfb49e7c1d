// Package exchange предоставляет доступ к REST API биржи:
// справочник торговых пар и балансы основного аккаунта.
package exchange

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Exchange - операции с биржей, используемые сервисами
type Exchange interface {
	// Name возвращает имя биржи
	Name() string

	// Products - все торговые пары биржи (публичный endpoint)
	Products(ctx context.Context) ([]Product, error)

	// Accounts - балансы аккаунта (подписанный запрос)
	Accounts(ctx context.Context, creds Credentials) ([]Account, error)

	// Close закрывает соединения с биржей
	Close() error
}

// Credentials - расшифрованные API ключи
type Credentials struct {
	APIKey     string
	APISecret  string
	Passphrase string
}

// Product - торговая пара в формате биржи
type Product struct {
	ID              string `json:"id"`
	BaseCurrency    string `json:"base_currency"`
	QuoteCurrency   string `json:"quote_currency"`
	Status          string `json:"status"`
	TradingDisabled bool   `json:"trading_disabled"`
}

// Tradable - пара доступна для торговли
func (p Product) Tradable() bool {
	return p.Status == "online" && !p.TradingDisabled
}

// Account - баланс одной валюты
type Account struct {
	ID        string          `json:"id"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	Available decimal.Decimal `json:"available"`
	Hold      decimal.Decimal `json:"hold"`
}

var (
	ErrUnauthorized        = errors.New("exchange rejected api credentials")
	ErrRateLimited         = errors.New("exchange rate limit exceeded")
	ErrUnsupportedExchange = errors.New("unsupported exchange")
)

// ExchangeError - ошибка ответа биржи
type ExchangeError struct {
	Exchange   string
	StatusCode int
	Message    string
	Original   error
}

func (e *ExchangeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %d %s", e.Exchange, e.StatusCode, e.Message)
	}
	return e.Exchange + ": " + e.Message
}

// Unwrap возвращает оригинальную ошибку для errors.Is() и errors.As()
func (e *ExchangeError) Unwrap() error {
	return e.Original
}
