// Package metrics - Prometheus метрики сервера (/metrics)
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============ Вебхуки ============

// WebhooksTotal - принятые вебхуки по итоговому статусу лога
var WebhooksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradehook",
		Subsystem: "webhook",
		Name:      "received_total",
		Help:      "Total number of webhooks by resulting log status",
	},
	[]string{"status"}, // received, ignored, rejected
)

// WebhookLatency - время обработки вебхука
var WebhookLatency = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "tradehook",
		Subsystem: "webhook",
		Name:      "handle_latency_ms",
		Help:      "Time to validate and store a webhook in milliseconds",
		Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
	},
)

// ============ Автоматизации ============

// AutomationToggles - переключения статуса
var AutomationToggles = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradehook",
		Subsystem: "automation",
		Name:      "toggles_total",
		Help:      "Number of automation status changes",
	},
	[]string{"action", "scope"}, // activate|deactivate, user|admin
)

// ============ Потоки ============

// StreamSubscribers - открытые SSE потоки логов
var StreamSubscribers = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "tradehook",
		Subsystem: "stream",
		Name:      "subscribers",
		Help:      "Current number of open log streams",
	},
	[]string{"scope"}, // user, admin
)

// StreamPushes - отправленные снимки логов
var StreamPushes = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradehook",
		Subsystem: "stream",
		Name:      "pushes_total",
		Help:      "Number of log snapshots pushed to streams",
	},
	[]string{"reason"}, // initial, tick, wake
)

// WebSocketClients - подключенные WebSocket клиенты
var WebSocketClients = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "tradehook",
		Subsystem: "stream",
		Name:      "websocket_clients",
		Help:      "Current number of WebSocket clients",
	},
)

// ============ Биржа ============

// ExchangeRequestLatency - латентность запросов к бирже
var ExchangeRequestLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "tradehook",
		Subsystem: "exchange",
		Name:      "request_latency_ms",
		Help:      "Exchange REST request latency in milliseconds",
		Buckets:   []float64{50, 100, 200, 300, 500, 1000, 2000, 5000},
	},
	[]string{"exchange", "endpoint", "result"},
)

// PairsCache - обращения к кэшу торговых пар
var PairsCache = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradehook",
		Subsystem: "exchange",
		Name:      "pairs_cache_total",
		Help:      "Trading pair cache lookups",
	},
	[]string{"result"}, // hit, miss, stale
)

// TransfersTotal - переводы между основным аккаунтом и стратегиями
var TransfersTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradehook",
		Subsystem: "transfer",
		Name:      "executed_total",
		Help:      "Number of transfer attempts by result",
	},
	[]string{"result"}, // success, rejected, failed
)

// ============ Вспомогательные функции ============

// RecordWebhook записывает обработанный вебхук
func RecordWebhook(status string, elapsed time.Duration) {
	WebhooksTotal.WithLabelValues(status).Inc()
	WebhookLatency.Observe(float64(elapsed.Microseconds()) / 1000)
}

// RecordToggle записывает смену статуса автоматизации
func RecordToggle(active, admin bool) {
	action := "deactivate"
	if active {
		action = "activate"
	}
	AutomationToggles.WithLabelValues(action, scopeLabel(admin)).Inc()
}

// StreamOpened / StreamClosed ведут счетчик открытых потоков
func StreamOpened(admin bool) {
	StreamSubscribers.WithLabelValues(scopeLabel(admin)).Inc()
}

func StreamClosed(admin bool) {
	StreamSubscribers.WithLabelValues(scopeLabel(admin)).Dec()
}

// RecordExchangeRequest записывает латентность запроса к бирже
func RecordExchangeRequest(exchange, endpoint string, elapsed time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	ExchangeRequestLatency.WithLabelValues(exchange, endpoint, result).Observe(float64(elapsed.Milliseconds()))
}

// RecordTransfer записывает результат перевода
func RecordTransfer(result string) {
	TransfersTotal.WithLabelValues(result).Inc()
}

func scopeLabel(admin bool) string {
	if admin {
		return "admin"
	}
	return "user"
}
