package service

import (
	"context"
	"errors"
	"fmt"

	"tradehook/internal/metrics"
	"tradehook/internal/models"
	"tradehook/internal/repository"
	"tradehook/internal/transfer"
	"tradehook/pkg/utils"
)

// Ошибки переводов
var (
	ErrInvalidSource           = errors.New("invalid transfer source")
	ErrInvalidDestination      = errors.New("invalid transfer destination")
	ErrIncompatibleDestination = errors.New("destination is not compatible with source")
	ErrInvalidAmount           = errors.New("invalid transfer amount")
	ErrInsufficientBalance     = errors.New("insufficient balance")
)

// TransferRequest - поля формы перевода
type TransferRequest struct {
	CredentialID int
	Source       string `validate:"required"`
	Destination  string `validate:"required"`
	Amount       string `validate:"required"`
}

// TransferService - переводы между основным аккаунтом и стратегиями
//
// Клиентская проверка не доверяется: источник, получатель и сумма
// проверяются заново по текущим данным, списание идет в транзакции
// с блокировкой строк.
type TransferService struct {
	credentials CredentialRepositoryInterface
	balances    BalanceRepositoryInterface
	transfers   TransferRepositoryInterface
	log         *utils.Logger
}

// NewTransferService создает новый экземпляр сервиса
func NewTransferService(
	credentials CredentialRepositoryInterface,
	balances BalanceRepositoryInterface,
	transfers TransferRepositoryInterface,
) *TransferService {
	return &TransferService{
		credentials: credentials,
		balances:    balances,
		transfers:   transfers,
		log:         utils.L().WithComponent("transfer"),
	}
}

// Execute проводит перевод
// Выполняет:
// 1. Разбор источника и получателя (main::ASSET, strategy::ID::ASSET)
// 2. Проверку владельца аккаунта биржи
// 3. Проверку совместимости и суммы по текущему снимку
// 4. Атомарное списание/зачисление с повторной проверкой остатка
func (s *TransferService) Execute(ctx context.Context, userID int, req TransferRequest) (t *models.Transfer, err error) {
	defer func() {
		switch {
		case err == nil:
			metrics.RecordTransfer("success")
		case isTransferRejection(err):
			metrics.RecordTransfer("rejected")
		default:
			metrics.RecordTransfer("failed")
		}
	}()

	// 1. Разбор
	src, err := transfer.Parse(req.Source)
	if err != nil {
		return nil, ErrInvalidSource
	}
	dst, err := transfer.Parse(req.Destination)
	if err != nil {
		return nil, ErrInvalidDestination
	}

	// 2. Владелец
	if _, err := s.credentials.GetByID(ctx, userID, req.CredentialID); err != nil {
		return nil, mapCredentialError(err)
	}

	// 3. Совместимость и сумма
	tc, err := loadTransferContext(ctx, s.balances, req.CredentialID)
	if err != nil {
		return nil, err
	}
	book := transfer.NewBook(*tc)

	available, err := book.Available(src)
	if err != nil {
		return nil, ErrInvalidSource
	}
	if err := book.Compatible(src, dst); err != nil {
		return nil, ErrIncompatibleDestination
	}

	amount, err := transfer.ParseAmount(req.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if amount.GreaterThan(available) {
		return nil, ErrInsufficientBalance
	}

	// 4. Проведение
	t, err = s.transfers.Apply(ctx, req.CredentialID, src, dst, amount)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientBalance):
			return nil, ErrInsufficientBalance
		case errors.Is(err, repository.ErrStrategyNotFound), errors.Is(err, repository.ErrAssetNotHeld),
			errors.Is(err, repository.ErrSameAccount):
			return nil, ErrIncompatibleDestination
		}
		return nil, err
	}

	s.log.Info("transfer executed",
		utils.CredentialID(req.CredentialID),
		utils.String("source", t.Source),
		utils.String("destination", t.Destination),
		utils.Asset(t.AssetSymbol),
		utils.Amount(t.Amount.String()),
	)
	return t, nil
}

func isTransferRejection(err error) bool {
	for _, target := range []error{
		ErrInvalidSource,
		ErrInvalidDestination,
		ErrIncompatibleDestination,
		ErrInvalidAmount,
		ErrInsufficientBalance,
		ErrCredentialNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
