package ratelimit

import (
	"context"
	"sync"
	"time"
)

// RateLimiter - Token Bucket
//
// Ведро наполняется со скоростью rate токенов/сек до емкости burst.
// Каждое событие потребляет 1 токен.
//
//	limiter := NewRateLimiter(10, 20) // 10 req/sec, burst 20
//	err := limiter.Wait(ctx)          // блокирующее ожидание (запросы к бирже)
//	if limiter.Allow() { ... }        // неблокирующая проверка (вебхуки)
type RateLimiter struct {
	rate       float64
	burst      float64
	tokens     float64
	lastRefill time.Time
	now        func() time.Time
	mu         sync.Mutex
}

// NewRateLimiter создает лимитер с полным ведром
func NewRateLimiter(rate, burst float64) *RateLimiter {
	return newRateLimiter(rate, burst, time.Now)
}

func newRateLimiter(rate, burst float64, now func() time.Time) *RateLimiter {
	if rate <= 0 {
		rate = 10
	}
	if burst <= 0 {
		burst = rate * 2
	}
	if burst < 1 {
		burst = 1
	}

	return &RateLimiter{
		rate:       rate,
		burst:      burst,
		tokens:     burst,
		lastRefill: now(),
		now:        now,
	}
}

// refill вызывается под lock'ом
func (rl *RateLimiter) refill() time.Time {
	now := rl.now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	if elapsed > 0 {
		rl.tokens += elapsed * rl.rate
		if rl.tokens > rl.burst {
			rl.tokens = rl.burst
		}
		rl.lastRefill = now
	}
	return now
}

// Allow забирает токен, если он есть
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

// Wait блокирует до получения токена или отмены контекста
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		rl.refill()
		if rl.tokens >= 1 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}
		wait := time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
		rl.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// Tokens - текущее количество токенов
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	return rl.tokens
}

// idleSince - время последнего пополнения (для очистки KeyedLimiter)
func (rl *RateLimiter) idleSince() time.Time {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.lastRefill
}

// ============================================================
// KeyedLimiter - отдельное ведро на каждый ключ
// ============================================================

// KeyedLimiter держит по RateLimiter на ключ (automation_id вебхука)
//
// Ведра создаются лениво с одинаковыми rate/burst.
// Prune удаляет ведра, к которым давно не обращались.
type KeyedLimiter struct {
	rate    float64
	burst   float64
	now     func() time.Time
	buckets map[string]*RateLimiter
	mu      sync.Mutex
}

// NewKeyedLimiter создает пустой набор ведер
func NewKeyedLimiter(rate, burst float64) *KeyedLimiter {
	return &KeyedLimiter{
		rate:    rate,
		burst:   burst,
		now:     time.Now,
		buckets: make(map[string]*RateLimiter),
	}
}

// Get возвращает ведро ключа, создавая его при необходимости
func (kl *KeyedLimiter) Get(key string) *RateLimiter {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	rl, ok := kl.buckets[key]
	if !ok {
		rl = newRateLimiter(kl.rate, kl.burst, kl.now)
		kl.buckets[key] = rl
	}
	return rl
}

// Allow - неблокирующая проверка для ключа
func (kl *KeyedLimiter) Allow(key string) bool {
	return kl.Get(key).Allow()
}

// Len - количество активных ведер
func (kl *KeyedLimiter) Len() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.buckets)
}

// Prune удаляет ведра без обращений дольше idle, возвращает число удаленных
func (kl *KeyedLimiter) Prune(idle time.Duration) int {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	cutoff := kl.now().Add(-idle)
	removed := 0
	for key, rl := range kl.buckets {
		if rl.idleSince().Before(cutoff) {
			delete(kl.buckets, key)
			removed++
		}
	}
	return removed
}
