package websocket

import (
	"time"

	"tradehook/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypeAutomationStatus - автоматизация включена/выключена
	// (пользователем на странице, в админке или с другой вкладки)
	MessageTypeAutomationStatus MessageType = "automationStatus"

	// MessageTypeWebhookLog - сохранен новый лог вебхука
	MessageTypeWebhookLog MessageType = "webhookLog"
)

// BaseMessage - базовая структура для всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// AutomationStatusMessage - новое состояние автоматизации
type AutomationStatusMessage struct {
	BaseMessage
	AutomationID string `json:"automation_id"`
	IsActive     bool   `json:"is_active"`
}

// WebhookLogMessage - новый лог вебхука
type WebhookLogMessage struct {
	BaseMessage
	Data *models.WebhookLog `json:"data"`
}

// NewAutomationStatusMessage создает сообщение о смене статуса
func NewAutomationStatusMessage(automationID string, active bool) *AutomationStatusMessage {
	return &AutomationStatusMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeAutomationStatus,
			Timestamp: time.Now().UTC(),
		},
		AutomationID: automationID,
		IsActive:     active,
	}
}

// NewWebhookLogMessage создает сообщение о новом логе
func NewWebhookLogMessage(entry *models.WebhookLog) *WebhookLogMessage {
	return &WebhookLogMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeWebhookLog,
			Timestamp: time.Now().UTC(),
		},
		Data: entry,
	}
}
