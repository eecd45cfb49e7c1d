package service

import (
	"context"
	"errors"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cast"

	"tradehook/internal/metrics"
	"tradehook/internal/models"
	"tradehook/pkg/ratelimit"
	"tradehook/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Ошибки приема вебхуков
var (
	ErrInvalidPayload     = errors.New("webhook payload must be a JSON object")
	ErrWebhookRateLimited = errors.New("too many webhooks for this automation")
)

// maxRawPayload - сколько байт невалидного тела сохраняется в лог
const maxRawPayload = 1024

// WebhookService - прием вебхуков (алерты TradingView и т.п.)
//
// Ордера не выставляются: вебхук только фиксируется в логе со статусом
// received (автоматизация включена) или ignored (выключена),
// после чего будятся SSE потоки и рассылается событие WebSocket.
type WebhookService struct {
	automations AutomationRepositoryInterface
	logs        WebhookLogRepositoryInterface
	limiter     *ratelimit.KeyedLimiter
	notifier    LogNotifier
	hub         LogBroadcaster
	now         func() time.Time
	log         *utils.Logger
}

// NewWebhookService создает сервис с лимитом rate вебхуков/сек (burst) на автоматизацию
func NewWebhookService(
	automations AutomationRepositoryInterface,
	logs WebhookLogRepositoryInterface,
	notifier LogNotifier,
	rate, burst float64,
) *WebhookService {
	return &WebhookService{
		automations: automations,
		logs:        logs,
		limiter:     ratelimit.NewKeyedLimiter(rate, burst),
		notifier:    notifier,
		now:         time.Now,
		log:         utils.L().WithComponent("webhook"),
	}
}

// SetWebSocketHub устанавливает hub для рассылки логов
func (s *WebhookService) SetWebSocketHub(hub LogBroadcaster) {
	s.hub = hub
}

// Handle принимает вебхук автоматизации
//
// 1. Неизвестная автоматизация -> ErrAutomationNotFound (ничего не пишется)
// 2. Превышен лимит -> ErrWebhookRateLimited (ничего не пишется)
// 3. Тело не JSON объект -> лог rejected + ErrInvalidPayload
// 4. Иначе лог received/ignored
func (s *WebhookService) Handle(ctx context.Context, automationID string, body []byte) (*models.WebhookLog, error) {
	start := s.now()

	a, err := s.automations.GetByAutomationID(ctx, automationID)
	if err != nil {
		return nil, mapAutomationError(err)
	}

	if !s.limiter.Allow(automationID) {
		metrics.WebhooksTotal.WithLabelValues("rate_limited").Inc()
		s.log.Warn("webhook rate limited", utils.AutomationID(automationID))
		return nil, ErrWebhookRateLimited
	}

	payload, parseErr := normalizePayload(body)

	status := models.WebhookStatusIgnored
	switch {
	case parseErr != nil:
		status = models.WebhookStatusRejected
	case a.IsActive:
		status = models.WebhookStatusReceived
	}

	entry := &models.WebhookLog{
		Timestamp:      start.UTC(),
		AutomationID:   a.AutomationID,
		AutomationName: a.Name,
		Payload:        payload,
		Status:         status,
		UserID:         a.UserID,
	}
	if err := s.logs.Create(ctx, entry); err != nil {
		return nil, err
	}

	s.notifier.Notify(a.UserID)
	if s.hub != nil {
		s.hub.BroadcastWebhookLog(entry)
	}

	metrics.RecordWebhook(status, s.now().Sub(start))
	s.log.Info("webhook logged",
		utils.AutomationID(a.AutomationID),
		utils.LogID(entry.ID),
		utils.Status(status),
	)

	if parseErr != nil {
		return entry, parseErr
	}
	return entry, nil
}

// PruneLimiters удаляет ведра автоматизаций без вебхуков дольше idle
func (s *WebhookService) PruneLimiters(idle time.Duration) int {
	return s.limiter.Prune(idle)
}

// normalizePayload проверяет, что тело - JSON объект, и приводит action
//
// action приводится к строке в нижнем регистре ("BUY" -> "buy", 1 -> "1").
// Невалидное тело сохраняется как {"raw": "..."} (обрезается до maxRawPayload).
func normalizePayload(body []byte) ([]byte, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		raw := string(body)
		if len(raw) > maxRawPayload {
			raw = raw[:maxRawPayload]
		}
		wrapped, _ := json.Marshal(map[string]string{"raw": raw})
		return wrapped, ErrInvalidPayload
	}

	if action, ok := fields["action"]; ok {
		fields["action"] = strings.ToLower(strings.TrimSpace(cast.ToString(action)))
	}

	normalized, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return normalized, nil
}
