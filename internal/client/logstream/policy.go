package logstream

import (
	"time"

	"tradehook/pkg/retry"
)

// ReconnectPolicy - задержки переподключения после обрыва
//
// Первая задержка Initial, дальше умножение на Multiplier до Max.
// MaxAttempts == 0 - без ограничения. Счетчик сбрасывается после
// первого успешно полученного события.
type ReconnectPolicy struct {
	Initial     time.Duration
	Max         time.Duration
	Multiplier  float64
	MaxAttempts int
}

// DefaultReconnectPolicy - 5s, удвоение до 60s, без ограничения попыток
func DefaultReconnectPolicy() ReconnectPolicy {
	cfg := retry.StreamReconnectConfig()
	return ReconnectPolicy{
		Initial:     cfg.InitialDelay,
		Max:         cfg.MaxDelay,
		Multiplier:  cfg.Multiplier,
		MaxAttempts: cfg.MaxRetries,
	}
}

func (p ReconnectPolicy) backoff() *retry.Backoff {
	return retry.NewBackoff(retry.Config{
		MaxRetries:   p.MaxAttempts,
		InitialDelay: p.Initial,
		MaxDelay:     p.Max,
		Multiplier:   p.Multiplier,
	})
}
