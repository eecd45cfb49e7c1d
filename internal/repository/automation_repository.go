package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tradehook/internal/models"
)

// Ошибки репозитория автоматизаций
var (
	ErrAutomationNotFound  = errors.New("automation not found")
	ErrAutomationExists    = errors.New("automation already exists")
	ErrAutomationUnchanged = errors.New("automation already in requested state")
)

const automationColumns = `id, automation_id, user_id, name, trading_pair, exchange_credential_id, strategy_id, is_active, created_at, updated_at`

// AutomationRepository - работа с таблицей automations
type AutomationRepository struct {
	db *sql.DB
}

// NewAutomationRepository создает новый экземпляр репозитория
func NewAutomationRepository(db *sql.DB) *AutomationRepository {
	return &AutomationRepository{db: db}
}

// Create сохраняет автоматизацию, AutomationID задается вызывающим
func (r *AutomationRepository) Create(ctx context.Context, a *models.Automation) error {
	query := `
		INSERT INTO automations (automation_id, user_id, name, trading_pair, exchange_credential_id, strategy_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now

	err := r.db.QueryRowContext(ctx, query,
		a.AutomationID,
		a.UserID,
		a.Name,
		a.TradingPair,
		toNullInt(a.ExchangeCredentialID),
		toNullInt(a.StrategyID),
		a.IsActive,
		a.CreatedAt,
		a.UpdatedAt,
	).Scan(&a.ID)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrAutomationExists
		}
		return err
	}
	return nil
}

// GetByAutomationID возвращает автоматизацию по публичному идентификатору
func (r *AutomationRepository) GetByAutomationID(ctx context.Context, automationID string) (*models.Automation, error) {
	query := `SELECT ` + automationColumns + ` FROM automations WHERE automation_id = $1`

	a, err := scanAutomation(r.db.QueryRowContext(ctx, query, automationID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAutomationNotFound
		}
		return nil, err
	}
	return a, nil
}

// ListByUser возвращает автоматизации пользователя, новые первыми
func (r *AutomationRepository) ListByUser(ctx context.Context, userID int) ([]*models.Automation, error) {
	query := `SELECT ` + automationColumns + ` FROM automations WHERE user_id = $1 ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	automations := []*models.Automation{}
	for rows.Next() {
		a, err := scanAutomation(rows)
		if err != nil {
			return nil, err
		}
		automations = append(automations, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return automations, nil
}

// Update обновляет изменяемые поля (владелец проверяется в WHERE)
func (r *AutomationRepository) Update(ctx context.Context, a *models.Automation) error {
	query := `
		UPDATE automations
		SET name = $1, trading_pair = $2, exchange_credential_id = $3, strategy_id = $4, updated_at = $5
		WHERE automation_id = $6 AND user_id = $7`

	a.UpdatedAt = time.Now()
	result, err := r.db.ExecContext(ctx, query,
		a.Name,
		a.TradingPair,
		toNullInt(a.ExchangeCredentialID),
		toNullInt(a.StrategyID),
		a.UpdatedAt,
		a.AutomationID,
		a.UserID,
	)
	if err != nil {
		return err
	}
	return checkAffected(result, ErrAutomationNotFound)
}

// Delete удаляет автоматизацию пользователя
func (r *AutomationRepository) Delete(ctx context.Context, userID int, automationID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM automations WHERE automation_id = $1 AND user_id = $2`,
		automationID, userID)
	if err != nil {
		return err
	}
	return checkAffected(result, ErrAutomationNotFound)
}

// SetActive переключает флаг, только если он отличается от текущего
//
// 0 затронутых строк означает, что автоматизация уже в нужном
// состоянии (существование проверяется вызывающим).
func (r *AutomationRepository) SetActive(ctx context.Context, automationID string, active bool) error {
	query := `
		UPDATE automations
		SET is_active = $1, updated_at = $2
		WHERE automation_id = $3 AND is_active <> $1`

	result, err := r.db.ExecContext(ctx, query, active, time.Now(), automationID)
	if err != nil {
		return err
	}
	return checkAffected(result, ErrAutomationUnchanged)
}

// CountActive возвращает количество включенных автоматизаций (для метрик)
func (r *AutomationRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM automations WHERE is_active = TRUE`).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAutomation(row rowScanner) (*models.Automation, error) {
	a := &models.Automation{}
	var credID, strategyID sql.NullInt64

	err := row.Scan(
		&a.ID,
		&a.AutomationID,
		&a.UserID,
		&a.Name,
		&a.TradingPair,
		&credID,
		&strategyID,
		&a.IsActive,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.ExchangeCredentialID = fromNullInt(credID)
	a.StrategyID = fromNullInt(strategyID)
	return a, nil
}

func toNullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func fromNullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
