package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"tradehook/internal/models"
	"tradehook/internal/transfer"
)

// Ошибки проведения перевода
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrStrategyNotFound    = errors.New("strategy not found")
	ErrAssetNotHeld        = errors.New("strategy does not hold this asset")
	ErrSameAccount         = errors.New("source and destination are the same account")
)

// TransferRepository проводит переводы и ведет их журнал
type TransferRepository struct {
	db *sql.DB
}

// NewTransferRepository создает новый экземпляр репозитория
func NewTransferRepository(db *sql.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// Apply атомарно списывает amount с src, зачисляет на dst и пишет журнал
//
// Строки источника и получателя блокируются (SELECT ... FOR UPDATE)
// в порядке lockOrder, остаток проверяется по текущему значению в БД.
func (r *TransferRepository) Apply(ctx context.Context, credentialID int, src, dst transfer.Account, amount decimal.Decimal) (t *models.Transfer, err error) {
	if src == dst {
		return nil, ErrSameAccount
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	// 1. Блокируем оба счета
	var (
		srcColumn, dstColumn string
		balance              decimal.Decimal
	)
	for _, acc := range lockOrder(src, dst) {
		column, current, lockErr := lockAccount(ctx, tx, credentialID, acc)
		if lockErr != nil {
			return nil, lockErr
		}
		if acc == src {
			srcColumn, balance = column, current
		} else {
			dstColumn = column
		}
	}

	// 2. Проверяем остаток источника
	if balance.LessThan(amount) {
		return nil, ErrInsufficientBalance
	}

	// 3. Списание
	if err = adjust(ctx, tx, credentialID, src, srcColumn, amount.Neg()); err != nil {
		return nil, err
	}

	// 4. Зачисление
	if err = adjust(ctx, tx, credentialID, dst, dstColumn, amount); err != nil {
		return nil, err
	}

	// 5. Журнал
	t = &models.Transfer{
		ExchangeCredentialID: credentialID,
		Source:               src.Value(),
		Destination:          dst.Value(),
		AssetSymbol:          src.Asset,
		Amount:               amount,
		CreatedAt:            time.Now(),
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO transfers (exchange_credential_id, source, destination, asset_symbol, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		t.ExchangeCredentialID, t.Source, t.Destination, t.AssetSymbol, t.Amount, t.CreatedAt,
	).Scan(&t.ID)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return t, nil
}

// ListByCredential - последние переводы аккаунта
func (r *TransferRepository) ListByCredential(ctx context.Context, credentialID, limit int) ([]models.Transfer, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, exchange_credential_id, source, destination, asset_symbol, amount, created_at
		FROM transfers
		WHERE exchange_credential_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, credentialID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transfers := []models.Transfer{}
	for rows.Next() {
		var t models.Transfer
		if err := rows.Scan(&t.ID, &t.ExchangeCredentialID, &t.Source, &t.Destination, &t.AssetSymbol, &t.Amount, &t.CreatedAt); err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return transfers, nil
}

// lockOrder - единый порядок блокировок для всех переводов
//
// Основной аккаунт раньше стратегий, стратегии по возрастанию id.
// Встречные переводы A->B и B->A ждут друг друга, а не ловят deadlock.
func lockOrder(src, dst transfer.Account) []transfer.Account {
	if lockBefore(dst, src) {
		return []transfer.Account{dst, src}
	}
	return []transfer.Account{src, dst}
}

func lockBefore(a, b transfer.Account) bool {
	if a.IsMain() != b.IsMain() {
		return a.IsMain()
	}
	return a.StrategyID < b.StrategyID
}

// lockAccount блокирует строку счета и возвращает колонку и текущий остаток
//
// Для стратегии колонка - allocated_base_asset_quantity или allocated_quote_asset_quantity.
// Отсутствующий актив основного аккаунта имеет нулевой остаток.
func lockAccount(ctx context.Context, tx *sql.Tx, credentialID int, acc transfer.Account) (string, decimal.Decimal, error) {
	if acc.IsMain() {
		var balance decimal.Decimal
		err := tx.QueryRowContext(ctx, `
			SELECT available_balance FROM main_account_assets
			WHERE exchange_credential_id = $1 AND asset_symbol = $2
			FOR UPDATE`, credentialID, acc.Asset).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return "", decimal.Zero, nil
		}
		return "", balance, err
	}

	var (
		base, quote       string
		baseQty, quoteQty decimal.Decimal
	)
	err := tx.QueryRowContext(ctx, `
		SELECT base_asset_symbol, quote_asset_symbol, allocated_base_asset_quantity, allocated_quote_asset_quantity
		FROM strategies
		WHERE id = $1 AND exchange_credential_id = $2
		FOR UPDATE`, acc.StrategyID, credentialID).Scan(&base, &quote, &baseQty, &quoteQty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", decimal.Zero, ErrStrategyNotFound
		}
		return "", decimal.Zero, err
	}

	switch acc.Asset {
	case base:
		return "allocated_base_asset_quantity", baseQty, nil
	case quote:
		return "allocated_quote_asset_quantity", quoteQty, nil
	default:
		return "", decimal.Zero, ErrAssetNotHeld
	}
}

// adjust изменяет остаток счета на delta
func adjust(ctx context.Context, tx *sql.Tx, credentialID int, acc transfer.Account, column string, delta decimal.Decimal) error {
	if acc.IsMain() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO main_account_assets (exchange_credential_id, asset_symbol, available_balance)
			VALUES ($1, $2, $3)
			ON CONFLICT (exchange_credential_id, asset_symbol)
			DO UPDATE SET available_balance = main_account_assets.available_balance + EXCLUDED.available_balance`,
			credentialID, acc.Asset, delta)
		return err
	}

	// column получен из lockAccount и не зависит от пользовательского ввода
	_, err := tx.ExecContext(ctx,
		`UPDATE strategies SET `+column+` = `+column+` + $1 WHERE id = $2 AND exchange_credential_id = $3`,
		delta, acc.StrategyID, credentialID)
	return err
}
