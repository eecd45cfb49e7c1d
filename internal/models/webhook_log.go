package models

import (
	"encoding/json"
	"time"
)

// WebhookLog - запись о полученном вебхуке (элемент потока логов)
//
// Идентичность записи - серверный ID. Порядок выдачи: новые первыми.
type WebhookLog struct {
	ID             int64           `json:"id" db:"id"`
	Timestamp      time.Time       `json:"timestamp" db:"timestamp"`
	AutomationID   string          `json:"automation_id" db:"automation_id"`
	AutomationName string          `json:"automation_name" db:"automation_name"`
	Payload        json.RawMessage `json:"payload" db:"payload"`
	Status         string          `json:"status" db:"status"`
	UserID         int             `json:"-" db:"user_id"`
}

// Статусы обработки вебхука
const (
	WebhookStatusReceived = "received" // автоматизация активна
	WebhookStatusIgnored  = "ignored"  // автоматизация выключена
	WebhookStatusRejected = "rejected" // некорректный payload или превышен лимит
)

// LogScope - чьи логи попадают в снимок
//
// UserID == 0 означает административный просмотр всех пользователей.
type LogScope struct {
	UserID int
}

// AdminScope - снимок по всем пользователям
var AdminScope = LogScope{}

// IsAdmin - скоуп без фильтра по пользователю
func (s LogScope) IsAdmin() bool {
	return s.UserID == 0
}
