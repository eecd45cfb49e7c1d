package stream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
	jsoniter "github.com/json-iterator/go"

	"tradehook/internal/metrics"
	"tradehook/internal/models"
	"tradehook/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrStreamingUnsupported - ResponseWriter не поддерживает Flush
var ErrStreamingUnsupported = errors.New("streaming unsupported")

// SnapshotFunc загружает текущий снимок логов (новые первыми)
type SnapshotFunc func(ctx context.Context) ([]models.WebhookLog, error)

// Options - параметры потока
type Options struct {
	Interval    time.Duration // период полной отправки
	KeepAlive   time.Duration // период комментариев-keepalive
	RetryMillis int           // поле retry: в первом событии, 0 = не отправлять
}

// DefaultOptions - 2s снимки, 15s keepalive, retry 5000
func DefaultOptions() Options {
	return Options{
		Interval:    2 * time.Second,
		KeepAlive:   15 * time.Second,
		RetryMillis: 5000,
	}
}

// Serve держит SSE поток до отмены ctx или ошибки записи
//
// 1. Отправляет снимок сразу (вместе с retry:)
// 2. Повторяет снимок каждые Interval и по сигналу брокера
// 3. Между снимками шлет комментарий ": keepalive"
//
// Ошибка загрузки снимка не закрывает поток: логируется, следующая
// попытка будет на следующем тике.
func (b *Broker) Serve(ctx context.Context, w http.ResponseWriter, scope models.LogScope, snapshot SnapshotFunc, opts Options) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return ErrStreamingUnsupported
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultOptions().Interval
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = DefaultOptions().KeepAlive
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := b.Subscribe(scope)
	metrics.StreamOpened(scope.IsAdmin())
	defer func() {
		b.Unsubscribe(sub)
		metrics.StreamClosed(scope.IsAdmin())
	}()

	logger := utils.L().WithComponent("stream").WithUser(scope.UserID)
	logger.Debug("log stream opened")
	defer logger.Debug("log stream closed")

	retryMillis := uint(0)
	if opts.RetryMillis > 0 {
		retryMillis = uint(opts.RetryMillis)
	}

	push := func(reason string) error {
		entries, err := snapshot(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("failed to load log snapshot", utils.Err(err))
			return nil
		}
		if err := writeSnapshot(w, entries, retryMillis); err != nil {
			return err
		}
		retryMillis = 0
		flusher.Flush()
		metrics.StreamPushes.WithLabelValues(reason).Inc()
		return nil
	}

	if err := push("initial"); err != nil {
		return ignoreCancel(err)
	}

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()
	keepAlive := time.NewTicker(opts.KeepAlive)
	defer keepAlive.Stop()

	for {
		var err error
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			err = push("tick")
		case <-sub.Wake():
			err = push("wake")
		case <-keepAlive.C:
			if _, err = io.WriteString(w, ": keepalive\n\n"); err == nil {
				flusher.Flush()
			}
		}
		if err != nil {
			return ignoreCancel(err)
		}
	}
}

// writeSnapshot пишет одно событие data: с JSON массивом логов
func writeSnapshot(w io.Writer, entries []models.WebhookLog, retryMillis uint) error {
	if entries == nil {
		entries = []models.WebhookLog{}
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return sse.Encode(w, sse.Event{
		Retry: retryMillis,
		Data:  string(payload),
	})
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
