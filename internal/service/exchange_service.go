package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tradehook/internal/exchange"
	"tradehook/internal/metrics"
	"tradehook/internal/models"
	"tradehook/internal/repository"
	"tradehook/pkg/crypto"
	"tradehook/pkg/utils"
)

// Ошибки сервиса
var (
	ErrExchangeNotSupported    = errors.New("exchange is not supported")
	ErrCredentialNotFound      = errors.New("exchange account not found")
	ErrCredentialExists        = errors.New("exchange account with this name already exists")
	ErrInvalidCredentials      = errors.New("invalid API credentials")
	ErrConnectionFailed        = errors.New("failed to connect to exchange")
	ErrCredentialHasStrategies = errors.New("cannot disconnect: strategies still hold allocated funds")
)

// ConnectRequest - данные для подключения аккаунта биржи
type ConnectRequest struct {
	Exchange   string `json:"exchange" validate:"omitempty,oneof=coinbase"`
	Name       string `json:"name" validate:"required,max=100"`
	APIKey     string `json:"api_key" validate:"required"`
	APISecret  string `json:"api_secret" validate:"required"`
	Passphrase string `json:"passphrase"`
}

// ExchangeService - аккаунты биржи пользователя и их балансы
//
// API ключи хранятся зашифрованными (AES-256-GCM) и расшифровываются
// только на время запроса к бирже.
type ExchangeService struct {
	credentials CredentialRepositoryInterface
	balances    BalanceRepositoryInterface
	exchange    exchange.Exchange
	vault       *crypto.Vault
	log         *utils.Logger
}

// NewExchangeService создает новый экземпляр сервиса
func NewExchangeService(
	credentials CredentialRepositoryInterface,
	balances BalanceRepositoryInterface,
	ex exchange.Exchange,
	vault *crypto.Vault,
) *ExchangeService {
	return &ExchangeService{
		credentials: credentials,
		balances:    balances,
		exchange:    ex,
		vault:       vault,
		log:         utils.L().WithComponent("exchange"),
	}
}

// Connect подключает аккаунт биржи
// Выполняет:
// 1. Проверку поддержки биржи
// 2. Тестовый запрос балансов (проверка ключей)
// 3. Шифрование ключей перед сохранением
// 4. Сохранение аккаунта и стартовых балансов
func (s *ExchangeService) Connect(ctx context.Context, userID int, req ConnectRequest) (*models.ExchangeCredential, error) {
	// 1. Проверяем биржу
	name := strings.ToLower(strings.TrimSpace(req.Exchange))
	if name == "" {
		name = models.ExchangeCoinbase
	}
	if !exchange.IsSupported(name) {
		return nil, ErrExchangeNotSupported
	}

	creds := exchange.Credentials{
		APIKey:     strings.TrimSpace(req.APIKey),
		APISecret:  strings.TrimSpace(req.APISecret),
		Passphrase: req.Passphrase,
	}

	// 2. Проверяем ключи
	accounts, err := s.fetchAccounts(ctx, creds)
	if err != nil {
		return nil, err
	}

	// 3. Шифруем
	cred := &models.ExchangeCredential{
		UserID:   userID,
		Exchange: name,
		Name:     strings.TrimSpace(req.Name),
	}
	if cred.APIKey, err = s.vault.Seal(creds.APIKey); err != nil {
		return nil, err
	}
	if cred.APISecret, err = s.vault.Seal(creds.APISecret); err != nil {
		return nil, err
	}
	if creds.Passphrase != "" {
		if cred.Passphrase, err = s.vault.Seal(creds.Passphrase); err != nil {
			return nil, err
		}
	}

	// 4. Сохраняем
	if err := s.credentials.Create(ctx, cred); err != nil {
		if errors.Is(err, repository.ErrCredentialExists) {
			return nil, ErrCredentialExists
		}
		return nil, err
	}

	if err := s.balances.ReplaceMainAssets(ctx, cred.ID, availableByAsset(accounts)); err != nil {
		return nil, err
	}

	s.log.Info("exchange account connected", utils.CredentialID(cred.ID), utils.UserID(userID))
	return cred, nil
}

// List возвращает аккаунты пользователя (без ключей)
func (s *ExchangeService) List(ctx context.Context, userID int) ([]*models.ExchangeCredential, error) {
	return s.credentials.ListByUser(ctx, userID)
}

// Disconnect удаляет аккаунт, если на стратегиях нет выделенных средств
func (s *ExchangeService) Disconnect(ctx context.Context, userID, credentialID int) error {
	if _, err := s.owned(ctx, userID, credentialID); err != nil {
		return err
	}

	allocated, err := s.balances.CountAllocatedStrategies(ctx, credentialID)
	if err != nil {
		return err
	}
	if allocated > 0 {
		return ErrCredentialHasStrategies
	}

	if err := s.credentials.Delete(ctx, userID, credentialID); err != nil {
		return mapCredentialError(err)
	}

	s.log.Info("exchange account disconnected", utils.CredentialID(credentialID), utils.UserID(userID))
	return nil
}

// SyncBalances обновляет остатки основного аккаунта с биржи
//
// Ошибка биржи сохраняется в last_error аккаунта, успешная синхронизация
// его очищает.
func (s *ExchangeService) SyncBalances(ctx context.Context, userID, credentialID int) ([]models.MainAccountAsset, error) {
	cred, err := s.owned(ctx, userID, credentialID)
	if err != nil {
		return nil, err
	}

	creds, err := s.decrypt(cred)
	if err != nil {
		return nil, err
	}

	accounts, err := s.fetchAccounts(ctx, creds)
	if err != nil {
		if updErr := s.credentials.UpdateLastError(ctx, credentialID, err.Error()); updErr != nil {
			s.log.Warn("failed to store last error", utils.CredentialID(credentialID), utils.Err(updErr))
		}
		return nil, err
	}

	if err := s.balances.ReplaceMainAssets(ctx, credentialID, availableByAsset(accounts)); err != nil {
		return nil, err
	}
	if cred.LastError != "" {
		if err := s.credentials.UpdateLastError(ctx, credentialID, ""); err != nil {
			s.log.Warn("failed to clear last error", utils.CredentialID(credentialID), utils.Err(err))
		}
	}

	s.log.Info("balances synced", utils.CredentialID(credentialID), utils.Int("assets", len(accounts)))
	return s.balances.MainAssets(ctx, credentialID)
}

// TransferContext - снимок остатков и стратегий для окна перевода
func (s *ExchangeService) TransferContext(ctx context.Context, userID, credentialID int) (*models.TransferContext, error) {
	if _, err := s.owned(ctx, userID, credentialID); err != nil {
		return nil, err
	}
	return loadTransferContext(ctx, s.balances, credentialID)
}

func (s *ExchangeService) owned(ctx context.Context, userID, credentialID int) (*models.ExchangeCredential, error) {
	cred, err := s.credentials.GetByID(ctx, userID, credentialID)
	if err != nil {
		return nil, mapCredentialError(err)
	}
	return cred, nil
}

func (s *ExchangeService) decrypt(cred *models.ExchangeCredential) (exchange.Credentials, error) {
	var (
		creds exchange.Credentials
		err   error
	)
	if creds.APIKey, err = s.vault.Open(cred.APIKey); err != nil {
		return creds, err
	}
	if creds.APISecret, err = s.vault.Open(cred.APISecret); err != nil {
		return creds, err
	}
	if cred.Passphrase != "" {
		if creds.Passphrase, err = s.vault.Open(cred.Passphrase); err != nil {
			return creds, err
		}
	}
	return creds, nil
}

// fetchAccounts запрашивает балансы и переводит ошибки биржи в ошибки сервиса
func (s *ExchangeService) fetchAccounts(ctx context.Context, creds exchange.Credentials) ([]exchange.Account, error) {
	start := time.Now()
	accounts, err := s.exchange.Accounts(ctx, creds)
	metrics.RecordExchangeRequest(s.exchange.Name(), "accounts", time.Since(start), err)
	if err != nil {
		if errors.Is(err, exchange.ErrUnauthorized) {
			return nil, errors.Join(ErrInvalidCredentials, err)
		}
		return nil, errors.Join(ErrConnectionFailed, err)
	}
	return accounts, nil
}

// availableByAsset суммирует доступные остатки по валютам (нулевые пропускаются)
func availableByAsset(accounts []exchange.Account) map[string]decimal.Decimal {
	result := make(map[string]decimal.Decimal, len(accounts))
	for _, acc := range accounts {
		if !acc.Available.IsPositive() {
			continue
		}
		asset := strings.ToUpper(acc.Currency)
		result[asset] = result[asset].Add(acc.Available)
	}
	return result
}

func loadTransferContext(ctx context.Context, balances BalanceRepositoryInterface, credentialID int) (*models.TransferContext, error) {
	mainAssets, err := balances.MainAssets(ctx, credentialID)
	if err != nil {
		return nil, err
	}
	strategies, err := balances.Strategies(ctx, credentialID)
	if err != nil {
		return nil, err
	}
	if mainAssets == nil {
		mainAssets = []models.MainAccountAsset{}
	}
	if strategies == nil {
		strategies = []models.Strategy{}
	}
	return &models.TransferContext{
		ExchangeCredentialID: credentialID,
		MainAssets:           mainAssets,
		Strategies:           strategies,
	}, nil
}

func mapCredentialError(err error) error {
	if errors.Is(err, repository.ErrCredentialNotFound) {
		return ErrCredentialNotFound
	}
	return err
}
