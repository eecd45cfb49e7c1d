package repository

import (
	"context"
	"database/sql"
	"sort"

	"github.com/shopspring/decimal"

	"tradehook/internal/models"
)

// BalanceRepository - балансы основного аккаунта и стратегий
//
// Назначение: Data Access Layer для окна перевода
//
// Функции:
// - MainAssets: активы основного аккаунта
// - Strategies: стратегии аккаунта биржи
// - ReplaceMainAssets: заменить балансы после синхронизации с биржей
// - CountAllocatedStrategies: сколько стратегий держат активы
type BalanceRepository struct {
	db *sql.DB
}

// NewBalanceRepository создает новый экземпляр репозитория
func NewBalanceRepository(db *sql.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// MainAssets возвращает активы основного аккаунта по символу
func (r *BalanceRepository) MainAssets(ctx context.Context, credentialID int) ([]models.MainAccountAsset, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT exchange_credential_id, asset_symbol, available_balance
		FROM main_account_assets
		WHERE exchange_credential_id = $1
		ORDER BY asset_symbol`, credentialID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assets := []models.MainAccountAsset{}
	for rows.Next() {
		var a models.MainAccountAsset
		if err := rows.Scan(&a.ExchangeCredentialID, &a.AssetSymbol, &a.AvailableBalance); err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assets, nil
}

// Strategies возвращает стратегии аккаунта биржи
func (r *BalanceRepository) Strategies(ctx context.Context, credentialID int) ([]models.Strategy, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, exchange_credential_id, base_asset_symbol, quote_asset_symbol,
		       allocated_base_asset_quantity, allocated_quote_asset_quantity
		FROM strategies
		WHERE exchange_credential_id = $1
		ORDER BY id`, credentialID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	strategies := []models.Strategy{}
	for rows.Next() {
		var s models.Strategy
		if err := rows.Scan(
			&s.ID,
			&s.Name,
			&s.ExchangeCredentialID,
			&s.BaseAssetSymbol,
			&s.QuoteAssetSymbol,
			&s.AllocatedBaseAssetQuantity,
			&s.AllocatedQuoteAssetQuantity,
		); err != nil {
			return nil, err
		}
		strategies = append(strategies, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return strategies, nil
}

// ReplaceMainAssets записывает балансы, полученные с биржи
//
// Активы, отсутствующие в balances, удаляются. Выполняется в одной транзакции.
func (r *BalanceRepository) ReplaceMainAssets(ctx context.Context, credentialID int, balances map[string]decimal.Decimal) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM main_account_assets WHERE exchange_credential_id = $1`, credentialID); err != nil {
		return err
	}

	for _, symbol := range sortedKeys(balances) {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO main_account_assets (exchange_credential_id, asset_symbol, available_balance)
			VALUES ($1, $2, $3)`, credentialID, symbol, balances[symbol]); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// CountAllocatedStrategies - стратегии аккаунта с ненулевыми выделениями
func (r *BalanceRepository) CountAllocatedStrategies(ctx context.Context, credentialID int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM strategies
		WHERE exchange_credential_id = $1
		  AND (allocated_base_asset_quantity > 0 OR allocated_quote_asset_quantity > 0)`,
		credentialID).Scan(&count)
	return count, err
}

func sortedKeys(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
