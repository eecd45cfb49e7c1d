package models

import "time"

// ExchangeCredential - подключенный аккаунт биржи с API ключами
type ExchangeCredential struct {
	ID         int       `json:"id" db:"id"`
	UserID     int       `json:"user_id" db:"user_id"`
	Exchange   string    `json:"exchange" db:"exchange"` // coinbase
	Name       string    `json:"name" db:"name"`
	APIKey     string    `json:"-" db:"api_key"`    // зашифрован, не возвращается в JSON
	APISecret  string    `json:"-" db:"api_secret"` // зашифрован
	Passphrase string    `json:"-" db:"passphrase"` // зашифрован
	LastError  string    `json:"last_error,omitempty" db:"last_error"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// ExchangeCoinbase - единственная поддерживаемая биржа
const ExchangeCoinbase = "coinbase"
