package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tradehook/internal/models"
	"tradehook/internal/repository"
	"tradehook/internal/transfer"
)

// AutomationRepositoryInterface определяет интерфейс репозитория автоматизаций
type AutomationRepositoryInterface interface {
	Create(ctx context.Context, a *models.Automation) error
	GetByAutomationID(ctx context.Context, automationID string) (*models.Automation, error)
	ListByUser(ctx context.Context, userID int) ([]*models.Automation, error)
	Update(ctx context.Context, a *models.Automation) error
	Delete(ctx context.Context, userID int, automationID string) error
	SetActive(ctx context.Context, automationID string, active bool) error
}

// WebhookLogRepositoryInterface определяет интерфейс репозитория логов вебхуков
type WebhookLogRepositoryInterface interface {
	Create(ctx context.Context, entry *models.WebhookLog) error
	Recent(ctx context.Context, scope models.LogScope, limit int) ([]models.WebhookLog, error)
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// CredentialRepositoryInterface определяет интерфейс репозитория API ключей
type CredentialRepositoryInterface interface {
	Create(ctx context.Context, c *models.ExchangeCredential) error
	GetByID(ctx context.Context, userID, id int) (*models.ExchangeCredential, error)
	ListByUser(ctx context.Context, userID int) ([]*models.ExchangeCredential, error)
	Delete(ctx context.Context, userID, id int) error
	UpdateLastError(ctx context.Context, id int, lastError string) error
}

// BalanceRepositoryInterface определяет интерфейс репозитория балансов
type BalanceRepositoryInterface interface {
	MainAssets(ctx context.Context, credentialID int) ([]models.MainAccountAsset, error)
	Strategies(ctx context.Context, credentialID int) ([]models.Strategy, error)
	ReplaceMainAssets(ctx context.Context, credentialID int, balances map[string]decimal.Decimal) error
	CountAllocatedStrategies(ctx context.Context, credentialID int) (int, error)
}

// TransferRepositoryInterface определяет интерфейс репозитория переводов
type TransferRepositoryInterface interface {
	Apply(ctx context.Context, credentialID int, src, dst transfer.Account, amount decimal.Decimal) (*models.Transfer, error)
	ListByCredential(ctx context.Context, credentialID, limit int) ([]models.Transfer, error)
}

// Проверяем, что реальные репозитории реализуют интерфейсы
var _ AutomationRepositoryInterface = (*repository.AutomationRepository)(nil)
var _ WebhookLogRepositoryInterface = (*repository.WebhookLogRepository)(nil)
var _ CredentialRepositoryInterface = (*repository.CredentialRepository)(nil)
var _ BalanceRepositoryInterface = (*repository.BalanceRepository)(nil)
var _ TransferRepositoryInterface = (*repository.TransferRepository)(nil)

// ============ Push-интерфейсы (WebSocket hub, SSE broker) ============

// StatusBroadcaster - рассылка смены статуса автоматизации
type StatusBroadcaster interface {
	BroadcastAutomationStatus(userID int, automationID string, active bool)
}

// LogBroadcaster - рассылка нового лога вебхука
type LogBroadcaster interface {
	BroadcastWebhookLog(entry *models.WebhookLog)
}

// LogNotifier будит SSE потоки владельца и администратора
type LogNotifier interface {
	Notify(userID int) int
}

// PairCache - хранилище справочника пар
type PairCache interface {
	Get(key string, out interface{}) (bool, error)
	Set(key string, value interface{}, ttl time.Duration) error
}

// ============ Интерфейсы сервисов для Dependency Injection ============

// AutomationServiceInterface определяет интерфейс сервиса автоматизаций
type AutomationServiceInterface interface {
	Create(ctx context.Context, userID int, params models.AutomationParams) (*models.Automation, error)
	Get(ctx context.Context, userID int, automationID string) (*models.Automation, error)
	List(ctx context.Context, userID int) ([]*models.Automation, error)
	Update(ctx context.Context, userID int, automationID string, params models.AutomationParams) (*models.Automation, error)
	Delete(ctx context.Context, userID int, automationID string) error
	Activate(ctx context.Context, userID int, automationID string) (*models.Automation, error)
	Deactivate(ctx context.Context, userID int, automationID string) (*models.Automation, error)
	AdminSetActive(ctx context.Context, automationID string, active bool) (*models.Automation, error)
}

// WebhookServiceInterface определяет интерфейс сервиса приема вебхуков
type WebhookServiceInterface interface {
	Handle(ctx context.Context, automationID string, body []byte) (*models.WebhookLog, error)
}

// LogServiceInterface определяет интерфейс сервиса логов
type LogServiceInterface interface {
	Recent(ctx context.Context, scope models.LogScope, limit int) ([]models.WebhookLog, error)
	Snapshot(scope models.LogScope) func(ctx context.Context) ([]models.WebhookLog, error)
}

// TradingPairServiceInterface определяет интерфейс сервиса торговых пар
type TradingPairServiceInterface interface {
	List(ctx context.Context) ([]models.TradingPair, error)
}

// ExchangeServiceInterface определяет интерфейс сервиса аккаунтов биржи
type ExchangeServiceInterface interface {
	Connect(ctx context.Context, userID int, req ConnectRequest) (*models.ExchangeCredential, error)
	List(ctx context.Context, userID int) ([]*models.ExchangeCredential, error)
	Disconnect(ctx context.Context, userID, credentialID int) error
	SyncBalances(ctx context.Context, userID, credentialID int) ([]models.MainAccountAsset, error)
	TransferContext(ctx context.Context, userID, credentialID int) (*models.TransferContext, error)
}

// TransferServiceInterface определяет интерфейс сервиса переводов
type TransferServiceInterface interface {
	Execute(ctx context.Context, userID int, req TransferRequest) (*models.Transfer, error)
}

// Проверяем, что реальные сервисы реализуют интерфейсы
var _ AutomationServiceInterface = (*AutomationService)(nil)
var _ WebhookServiceInterface = (*WebhookService)(nil)
var _ LogServiceInterface = (*LogService)(nil)
var _ TradingPairServiceInterface = (*TradingPairService)(nil)
var _ ExchangeServiceInterface = (*ExchangeService)(nil)
var _ TransferServiceInterface = (*TransferService)(nil)
