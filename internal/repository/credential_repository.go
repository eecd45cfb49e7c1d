package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tradehook/internal/models"
)

// Ошибки репозитория ключей бирж
var (
	ErrCredentialNotFound = errors.New("exchange credential not found")
	ErrCredentialExists   = errors.New("exchange credential with this name already exists")
)

// CredentialRepository - работа с таблицей exchange_credentials
//
// Ключи хранятся в зашифрованном виде, шифрование выполняет сервис.
type CredentialRepository struct {
	db *sql.DB
}

// NewCredentialRepository создает новый экземпляр репозитория
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Create сохраняет подключение биржи
func (r *CredentialRepository) Create(ctx context.Context, c *models.ExchangeCredential) error {
	query := `
		INSERT INTO exchange_credentials (user_id, exchange, name, api_key, api_secret, passphrase, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	err := r.db.QueryRowContext(ctx, query,
		c.UserID,
		c.Exchange,
		c.Name,
		c.APIKey,
		c.APISecret,
		c.Passphrase,
		c.LastError,
		c.CreatedAt,
		c.UpdatedAt,
	).Scan(&c.ID)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrCredentialExists
		}
		return err
	}
	return nil
}

// GetByID возвращает подключение пользователя (чужое = не найдено)
func (r *CredentialRepository) GetByID(ctx context.Context, userID, id int) (*models.ExchangeCredential, error) {
	query := `
		SELECT id, user_id, exchange, name, api_key, api_secret, passphrase, last_error, created_at, updated_at
		FROM exchange_credentials
		WHERE id = $1 AND user_id = $2`

	c := &models.ExchangeCredential{}
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(
		&c.ID,
		&c.UserID,
		&c.Exchange,
		&c.Name,
		&c.APIKey,
		&c.APISecret,
		&c.Passphrase,
		&c.LastError,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCredentialNotFound
		}
		return nil, err
	}
	return c, nil
}

// ListByUser возвращает подключения пользователя без ключей
func (r *CredentialRepository) ListByUser(ctx context.Context, userID int) ([]*models.ExchangeCredential, error) {
	query := `
		SELECT id, user_id, exchange, name, last_error, created_at, updated_at
		FROM exchange_credentials
		WHERE user_id = $1
		ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	credentials := []*models.ExchangeCredential{}
	for rows.Next() {
		c := &models.ExchangeCredential{}
		if err := rows.Scan(&c.ID, &c.UserID, &c.Exchange, &c.Name, &c.LastError, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		credentials = append(credentials, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return credentials, nil
}

// Delete удаляет подключение (балансы и стратегии удаляются каскадно)
func (r *CredentialRepository) Delete(ctx context.Context, userID, id int) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM exchange_credentials WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	return checkAffected(result, ErrCredentialNotFound)
}

// UpdateLastError сохраняет последнюю ошибку API (пустая строка = сброс)
func (r *CredentialRepository) UpdateLastError(ctx context.Context, id int, lastError string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE exchange_credentials SET last_error = $1, updated_at = $2 WHERE id = $3`,
		lastError, time.Now(), id)
	if err != nil {
		return err
	}
	return checkAffected(result, ErrCredentialNotFound)
}
