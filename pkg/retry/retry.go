package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Config - параметры повторных попыток
//
// Экспоненциальный backoff с jitter:
// delay = min(InitialDelay * Multiplier^attempt, MaxDelay) +- jitter
type Config struct {
	// MaxRetries - число попыток включая первую, 0 = без ограничения
	MaxRetries int

	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// JitterFactor 0.0 - 1.0, 0 = детерминированные задержки
	JitterFactor float64

	// RetryIf решает, повторять ли ошибку (по умолчанию IsRetryable)
	RetryIf func(error) bool

	// OnRetry вызывается перед ожиданием очередной попытки
	OnRetry func(attempt int, err error, delay time.Duration)
}

// ExchangeConfig - запросы к REST API биржи (продукты, балансы)
//
// 3 попытки, задержки 500ms, 1s (+ jitter)
func ExchangeConfig() Config {
	return Config{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.2,
	}
}

// StreamReconnectConfig - переподключение к потоку логов
//
// Первая задержка 5s, удвоение до 60s, без ограничения числа попыток.
// Без jitter: задержки предсказуемы для клиента и тестов.
func StreamReconnectConfig() Config {
	return Config{
		MaxRetries:   0,
		InitialDelay: 5 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
	}
}

// normalize подставляет значения по умолчанию
func (c *Config) normalize() {
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.MaxDelay < c.InitialDelay {
		c.MaxDelay = c.InitialDelay
	}
	if c.Multiplier < 1 {
		c.Multiplier = 2.0
	}
	if c.JitterFactor < 0 {
		c.JitterFactor = 0
	}
	if c.JitterFactor > 1 {
		c.JitterFactor = 1
	}
	if c.RetryIf == nil {
		c.RetryIf = IsRetryable
	}
}

// Delay возвращает задержку перед попыткой attempt (с нуля)
func (c Config) Delay(attempt int) time.Duration {
	c.normalize()
	if attempt < 0 {
		attempt = 0
	}

	delay := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt))
	if delay > float64(c.MaxDelay) || math.IsInf(delay, 0) {
		delay = float64(c.MaxDelay)
	}

	if c.JitterFactor > 0 {
		delay += delay * c.JitterFactor * (rand.Float64()*2 - 1)
	}
	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay)
}

// Do выполняет operation с повторами
//
// Возвращает nil при успехе, иначе последнюю ошибку.
// Отмена ctx прерывает ожидание между попытками.
func Do(ctx context.Context, cfg Config, operation func() error) error {
	_, err := DoWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, operation()
	})
	return err
}

// DoWithResult - Do для операций, возвращающих значение
//
//	products, err := retry.DoWithResult(ctx, retry.ExchangeConfig(), func() ([]Product, error) {
//	    return client.fetchProducts(ctx)
//	})
func DoWithResult[T any](ctx context.Context, cfg Config, operation func() (T, error)) (T, error) {
	cfg.normalize()

	var zero T
	var lastErr error

	for attempt := 0; cfg.MaxRetries <= 0 || attempt < cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, err
		}

		result, err := operation()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !cfg.RetryIf(err) {
			return zero, unwrapPermanent(err)
		}
		if cfg.MaxRetries > 0 && attempt >= cfg.MaxRetries-1 {
			break
		}

		delay := cfg.Delay(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		}
	}

	return zero, lastErr
}

// ============================================================
// Классификация ошибок
// ============================================================

// PermanentError - ошибка, которую повторять бессмысленно (4xx, валидация)
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent помечает ошибку как неповторяемую
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent проверяет пометку Permanent
func IsPermanent(err error) bool {
	var perm *PermanentError
	return errors.As(err, &perm)
}

// IsRetryable - по умолчанию повторяем все, кроме Permanent и ошибок контекста
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsPermanent(err) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func unwrapPermanent(err error) error {
	var perm *PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

// ============================================================
// Backoff - счетчик попыток для долгоживущих подключений
// ============================================================

// Backoff выдает последовательные задержки по Config
//
// В отличие от Do, сам ничего не вызывает: владелец подключения
// спрашивает Next() при обрыве и вызывает Reset() после успешного
// получения данных. Безопасен для конкурентного использования.
type Backoff struct {
	mu      sync.Mutex
	cfg     Config
	attempt int
}

// NewBackoff создает счетчик задержек
func NewBackoff(cfg Config) *Backoff {
	cfg.normalize()
	return &Backoff{cfg: cfg}
}

// Next возвращает задержку до следующей попытки и номер попытки (с 1)
//
// ok == false, если лимит MaxRetries исчерпан.
func (b *Backoff) Next() (delay time.Duration, attempt int, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cfg.MaxRetries > 0 && b.attempt >= b.cfg.MaxRetries {
		return 0, b.attempt, false
	}
	delay = b.cfg.Delay(b.attempt)
	b.attempt++
	return delay, b.attempt, true
}

// Attempts - число выданных задержек с последнего Reset
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempt
}

// Reset сбрасывает счетчик
func (b *Backoff) Reset() {
	b.mu.Lock()
	b.attempt = 0
	b.mu.Unlock()
}
