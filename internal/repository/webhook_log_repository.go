package repository

import (
	"context"
	"database/sql"
	"time"

	"tradehook/internal/models"
)

// WebhookLogRepository - журнал полученных вебхуков
//
// Назначение: источник снимков для SSE потока логов
//
// Функции:
// - Create: записать вебхук (ID и timestamp назначает сервер)
// - Recent: последние N записей скоупа, новые первыми
// - DeleteOlderThan: очистка старых записей
type WebhookLogRepository struct {
	db *sql.DB
}

// NewWebhookLogRepository создает новый экземпляр репозитория
func NewWebhookLogRepository(db *sql.DB) *WebhookLogRepository {
	return &WebhookLogRepository{db: db}
}

// Create сохраняет запись и заполняет ID
func (r *WebhookLogRepository) Create(ctx context.Context, entry *models.WebhookLog) error {
	query := `
		INSERT INTO webhook_logs (timestamp, automation_id, automation_name, user_id, payload, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	return r.db.QueryRowContext(ctx, query,
		entry.Timestamp,
		entry.AutomationID,
		entry.AutomationName,
		entry.UserID,
		[]byte(entry.Payload),
		entry.Status,
	).Scan(&entry.ID)
}

// Recent возвращает последние limit записей, новые первыми
//
// Для административного скоупа фильтр по пользователю не применяется.
func (r *WebhookLogRepository) Recent(ctx context.Context, scope models.LogScope, limit int) ([]models.WebhookLog, error) {
	var (
		rows *sql.Rows
		err  error
	)

	if scope.IsAdmin() {
		rows, err = r.db.QueryContext(ctx, `
			SELECT id, timestamp, automation_id, automation_name, user_id, payload, status
			FROM webhook_logs
			ORDER BY timestamp DESC, id DESC
			LIMIT $1`, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, `
			SELECT id, timestamp, automation_id, automation_name, user_id, payload, status
			FROM webhook_logs
			WHERE user_id = $1
			ORDER BY timestamp DESC, id DESC
			LIMIT $2`, scope.UserID, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]models.WebhookLog, 0, limit)
	for rows.Next() {
		var entry models.WebhookLog
		var payload []byte
		if err := rows.Scan(
			&entry.ID,
			&entry.Timestamp,
			&entry.AutomationID,
			&entry.AutomationName,
			&entry.UserID,
			&payload,
			&entry.Status,
		); err != nil {
			return nil, err
		}
		entry.Payload = payload
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return logs, nil
}

// DeleteOlderThan удаляет записи старше before, возвращает количество удаленных
func (r *WebhookLogRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM webhook_logs WHERE timestamp < $1`, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
