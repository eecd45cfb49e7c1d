package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradehook/internal/api/handlers"
	"tradehook/internal/api/middleware"
	"tradehook/internal/config"
	"tradehook/internal/service"
	"tradehook/internal/stream"
	"tradehook/internal/websocket"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	Config             *config.Config
	AutomationService  service.AutomationServiceInterface
	WebhookService     service.WebhookServiceInterface
	LogService         service.LogServiceInterface
	TradingPairService service.TradingPairServiceInterface
	ExchangeService    service.ExchangeServiceInterface
	TransferService    service.TransferServiceInterface
	Streamer           handlers.LogStreamer
	Hub                *websocket.Hub
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
//	├── POST /webhook/{automation_id} - прием вебхука (публичный)
//	├── пользователь (заголовок X-User-ID от upstream)
//	│   ├── GET|POST /automation, GET|PUT|DELETE /automation/{id}
//	│   ├── POST /activate-automation/{id}, /deactivate-automation/{id}
//	│   ├── GET /api/logs, GET /api/logs/stream (SSE)
//	│   ├── GET /api/coinbase/trading-pairs
//	│   ├── GET|POST /api/exchanges, DELETE /api/exchanges/{id}, POST /api/exchanges/{id}/sync
//	│   ├── GET /exchange/{exchange_id}/transfer-context, POST /exchange/{exchange_id}/transfer
//	│   └── GET /ws/stream (WebSocket)
//	├── администратор (HTTP Basic)
//	│   ├── POST /admin/api/automation/{id}/activate|deactivate
//	│   ├── GET /admin/ws/stream (WebSocket, все пользователи)
//	│   └── GET /webhook-stream (SSE, все пользователи)
//	└── GET /health, GET /metrics
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
// 4. Auth / AdminAuth (по группам)
func SetupRoutes(deps *Dependencies) *mux.Router {
	cfg := deps.Config
	router := mux.NewRouter()

	// Глобальные middleware (применяются ко всем маршрутам)
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	streamOpts := stream.Options{
		Interval:    cfg.Stream.Interval,
		KeepAlive:   cfg.Stream.KeepAlive,
		RetryMillis: cfg.Stream.RetryMillis,
	}

	automationHandler := handlers.NewAutomationHandler(deps.AutomationService)
	webhookHandler := handlers.NewWebhookHandler(deps.WebhookService, cfg.Webhook.MaxBodyBytes)
	logHandler := handlers.NewLogHandler(deps.LogService, deps.Streamer, streamOpts)
	pairHandler := handlers.NewPairHandler(deps.TradingPairService)
	exchangeHandler := handlers.NewExchangeHandler(deps.ExchangeService, deps.TransferService)
	wsHandler := websocket.NewHandler(deps.Hub, cfg.Server.AllowedOrigins)

	// Preflight для любого пути (иначе mux ответит 405 до CORS)
	router.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Публичные маршруты
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/webhook/{automation_id}", webhookHandler.ReceiveWebhook).Methods(http.MethodPost)

	// Администратор
	adminAuth := middleware.AdminAuth(cfg.Security.AdminUsername, cfg.Security.AdminPasswordHash, cfg.IsDevelopment())

	admin := router.PathPrefix("/admin").Subrouter()
	admin.Use(adminAuth)
	admin.HandleFunc("/api/automation/{id}/activate", automationHandler.AdminActivateAutomation).Methods(http.MethodPost)
	admin.HandleFunc("/api/automation/{id}/deactivate", automationHandler.AdminDeactivateAutomation).Methods(http.MethodPost)
	admin.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
		wsHandler.ServeWS(w, r, 0)
	}).Methods(http.MethodGet)

	router.Handle("/webhook-stream", adminAuth(http.HandlerFunc(logHandler.StreamAllLogs))).Methods(http.MethodGet)

	// Пользователь
	user := router.NewRoute().Subrouter()
	user.Use(middleware.Auth(cfg.Security.UserHeader))

	user.HandleFunc("/automation", automationHandler.ListAutomations).Methods(http.MethodGet)
	user.HandleFunc("/automation", automationHandler.CreateAutomation).Methods(http.MethodPost)
	user.HandleFunc("/automation/{id}", automationHandler.GetAutomation).Methods(http.MethodGet)
	user.HandleFunc("/automation/{id}", automationHandler.UpdateAutomation).Methods(http.MethodPut)
	user.HandleFunc("/automation/{id}", automationHandler.DeleteAutomation).Methods(http.MethodDelete)
	user.HandleFunc("/activate-automation/{id}", automationHandler.ActivateAutomation).Methods(http.MethodPost)
	user.HandleFunc("/deactivate-automation/{id}", automationHandler.DeactivateAutomation).Methods(http.MethodPost)

	user.HandleFunc("/api/logs", logHandler.GetLogs).Methods(http.MethodGet)
	user.HandleFunc("/api/logs/stream", logHandler.StreamLogs).Methods(http.MethodGet)
	user.HandleFunc("/api/coinbase/trading-pairs", pairHandler.GetTradingPairs).Methods(http.MethodGet)

	user.HandleFunc("/api/exchanges", exchangeHandler.GetExchanges).Methods(http.MethodGet)
	user.HandleFunc("/api/exchanges", exchangeHandler.ConnectExchange).Methods(http.MethodPost)
	user.HandleFunc("/api/exchanges/{id:[0-9]+}", exchangeHandler.DisconnectExchange).Methods(http.MethodDelete)
	user.HandleFunc("/api/exchanges/{id:[0-9]+}/sync", exchangeHandler.SyncBalances).Methods(http.MethodPost)
	user.HandleFunc("/exchange/{exchange_id:[0-9]+}/transfer-context", exchangeHandler.GetTransferContext).Methods(http.MethodGet)
	user.HandleFunc("/exchange/{exchange_id:[0-9]+}/transfer", exchangeHandler.Transfer).Methods(http.MethodPost)

	user.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFrom(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		wsHandler.ServeWS(w, r, userID)
	}).Methods(http.MethodGet)

	return router
}
