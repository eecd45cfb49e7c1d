package models

import "time"

// Automation - правило, принимающее вебхуки (например, алерты TradingView)
//
// Публичный идентификатор - AutomationID (uuid), он же часть URL вебхука.
// Внутренний ID используется только для связей в БД.
type Automation struct {
	ID                   int       `json:"-" db:"id"`
	AutomationID         string    `json:"automation_id" db:"automation_id"`
	UserID               int       `json:"user_id" db:"user_id"`
	Name                 string    `json:"name" db:"name"`
	TradingPair          string    `json:"trading_pair,omitempty" db:"trading_pair"` // BTC-USD
	ExchangeCredentialID *int      `json:"exchange_credential_id,omitempty" db:"exchange_credential_id"`
	StrategyID           *int      `json:"strategy_id,omitempty" db:"strategy_id"`
	IsActive             bool      `json:"is_active" db:"is_active"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}

// AutomationParams - изменяемые пользователем поля (создание и обновление)
type AutomationParams struct {
	Name                 string `json:"name" validate:"required,max=100"`
	TradingPair          string `json:"trading_pair" validate:"omitempty,max=32"`
	ExchangeCredentialID *int   `json:"exchange_credential_id" validate:"omitempty,gt=0"`
	StrategyID           *int   `json:"strategy_id" validate:"omitempty,gt=0"`
}

// StatusLabel - текст кнопки статуса
func (a *Automation) StatusLabel() string {
	if a.IsActive {
		return "Active"
	}
	return "Inactive"
}
