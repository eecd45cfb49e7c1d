package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradehook/internal/api"
	"tradehook/internal/cache"
	"tradehook/internal/config"
	"tradehook/internal/exchange"
	"tradehook/internal/repository"
	"tradehook/internal/service"
	"tradehook/internal/stream"
	"tradehook/internal/websocket"
	"tradehook/pkg/crypto"
	"tradehook/pkg/utils"
)

func main() {
	if err := run(); err != nil {
		utils.Error("server stopped with error", utils.Err(err))
		utils.GetGlobalLogger().Sync()
		os.Exit(1)
	}
}

func run() error {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := utils.InitGlobalLogger(utils.LogConfig{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      cfg.Logging.Output,
		Development: cfg.IsDevelopment(),
		MaxSizeMB:   cfg.Logging.MaxSizeMB,
		MaxBackups:  cfg.Logging.MaxBackups,
		MaxAgeDays:  cfg.Logging.MaxAgeDays,
	})
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Инициализация базы данных
	db, err := repository.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := repository.Migrate(ctx, db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Info("connected to database", utils.String("dsn", cfg.Database.DSNWithoutPassword()))

	// Инициализация репозиториев
	automationRepo := repository.NewAutomationRepository(db)
	logRepo := repository.NewWebhookLogRepository(db)
	credentialRepo := repository.NewCredentialRepository(db)
	balanceRepo := repository.NewBalanceRepository(db)
	transferRepo := repository.NewTransferRepository(db)

	vault, err := crypto.NewVault([]byte(cfg.Security.EncryptionKey))
	if err != nil {
		return fmt.Errorf("failed to init vault: %w", err)
	}

	coinbase, err := exchange.NewExchange(exchange.SupportedExchanges[0], exchange.Config{
		BaseURL:   cfg.Exchange.CoinbaseBaseURL,
		Timeout:   cfg.Exchange.RequestTimeout,
		RateLimit: cfg.Exchange.RateLimit,
	})
	if err != nil {
		return err
	}
	defer coinbase.Close()

	pairCache, err := cache.Open(cfg.Exchange.PairsCacheDir)
	if err != nil {
		return fmt.Errorf("failed to open pairs cache: %w", err)
	}
	defer pairCache.Close()

	// Push: SSE брокер и WebSocket hub
	broker := stream.NewBroker()
	hub := websocket.NewHub()
	go hub.Run()
	defer hub.Stop()

	// Инициализация сервисов
	automationService := service.NewAutomationService(automationRepo)
	automationService.SetWebSocketHub(hub)

	webhookService := service.NewWebhookService(automationRepo, logRepo, broker, cfg.Webhook.Rate, cfg.Webhook.Burst)
	webhookService.SetWebSocketHub(hub)

	logService := service.NewLogService(logRepo, cfg.Stream.SnapshotLimit)
	pairService := service.NewTradingPairService(coinbase, pairCache, cfg.Exchange.PairsCacheTTL)
	exchangeService := service.NewExchangeService(credentialRepo, balanceRepo, coinbase, vault)
	transferService := service.NewTransferService(credentialRepo, balanceRepo, transferRepo)

	router := api.SetupRoutes(&api.Dependencies{
		Config:             cfg,
		AutomationService:  automationService,
		WebhookService:     webhookService,
		LogService:         logService,
		TradingPairService: pairService,
		ExchangeService:    exchangeService,
		TransferService:    transferService,
		Streamer:           broker,
		Hub:                hub,
	})

	// Фоновая очистка: старые логи и простаивающие лимитеры
	go runJanitor(ctx, cfg.Webhook.JanitorEvery, func() {
		if _, err := logService.Cleanup(ctx, cfg.Webhook.LogRetention); err != nil && ctx.Err() == nil {
			log.Warn("webhook log cleanup failed", utils.Err(err))
		}
		webhookService.PruneLimiters(cfg.Webhook.JanitorEvery)
	})

	// HTTP сервер
	// WriteTimeout не задан: SSE и WebSocket соединения долгоживущие
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting server", utils.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Graceful shutdown
	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited")
	return nil
}

// runJanitor вызывает task каждые every до отмены ctx
func runJanitor(ctx context.Context, every time.Duration, task func()) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			task()
		}
	}
}
