package service

import (
	"context"
	"time"

	"tradehook/internal/models"
	"tradehook/pkg/utils"
)

// Ограничения размера снимка логов
const (
	DefaultLogLimit = 50
	MaxLogLimit     = 200
)

// LogService - снимки последних логов вебхуков
type LogService struct {
	repo         WebhookLogRepositoryInterface
	defaultLimit int
}

// NewLogService создает сервис, defaultLimit <= 0 = DefaultLogLimit
func NewLogService(repo WebhookLogRepositoryInterface, defaultLimit int) *LogService {
	if defaultLimit <= 0 || defaultLimit > MaxLogLimit {
		defaultLimit = DefaultLogLimit
	}
	return &LogService{repo: repo, defaultLimit: defaultLimit}
}

// Recent возвращает последние логи scope, новые первыми
//
// limit <= 0 заменяется значением по умолчанию, больше MaxLogLimit обрезается.
func (s *LogService) Recent(ctx context.Context, scope models.LogScope, limit int) ([]models.WebhookLog, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > MaxLogLimit {
		limit = MaxLogLimit
	}

	entries, err := s.repo.Recent(ctx, scope, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.WebhookLog{}
	}
	return entries, nil
}

// Snapshot - снимок для SSE потока с лимитом по умолчанию
func (s *LogService) Snapshot(scope models.LogScope) func(ctx context.Context) ([]models.WebhookLog, error) {
	return func(ctx context.Context) ([]models.WebhookLog, error) {
		return s.Recent(ctx, scope, s.defaultLimit)
	}
}

// Cleanup удаляет логи старше retention
func (s *LogService) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	deleted, err := s.repo.DeleteOlderThan(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		utils.Info("old webhook logs removed", utils.Int64("deleted", deleted), utils.Duration("retention", retention))
	}
	return deleted, nil
}
