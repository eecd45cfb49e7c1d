package logstream

import (
	"bufio"
	"context"
	"io"
	"strings"

	"tradehook/internal/client"
)

// Stream - одно открытое SSE соединение
type Stream interface {
	// Next блокируется до следующего события и возвращает его data
	Next() ([]byte, error)
	Close() error
}

// Dialer открывает новое соединение
type Dialer func(ctx context.Context) (Stream, error)

// APIDialer открывает поток path через клиент API
//
// path: /api/logs/stream (пользователь) или /webhook-stream (админ).
func APIDialer(api *client.API, path string) Dialer {
	return func(ctx context.Context) (Stream, error) {
		body, err := api.OpenStream(ctx, path)
		if err != nil {
			return nil, err
		}
		return NewEventReader(body), nil
	}
}

// EventReader разбирает text/event-stream
//
// Поддерживаются поля data: (многострочные склеиваются через \n)
// и комментарии. Поля event:, id:, retry: пропускаются: сервер
// шлет только безымянные события, задержкой управляет ReconnectPolicy.
type EventReader struct {
	body io.ReadCloser
	r    *bufio.Reader
}

// NewEventReader оборачивает тело ответа
func NewEventReader(body io.ReadCloser) *EventReader {
	return &EventReader{body: body, r: bufio.NewReader(body)}
}

// Next возвращает data следующего непустого события
func (e *EventReader) Next() ([]byte, error) {
	var data strings.Builder
	hasData := false

	for {
		line, err := e.r.ReadString('\n')
		if err != nil && (line == "" || err != io.EOF) {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if err != nil {
				return nil, err
			}
			if hasData {
				return []byte(data.String()), nil
			}
			continue
		}

		if !strings.HasPrefix(line, ":") {
			field, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")
			if field == "data" {
				if hasData {
					data.WriteByte('\n')
				}
				data.WriteString(value)
				hasData = true
			}
		}

		if err != nil {
			return nil, err
		}
	}
}

// Close закрывает соединение
func (e *EventReader) Close() error {
	return e.body.Close()
}
