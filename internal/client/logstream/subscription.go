// Package logstream - живая таблица логов вебхуков
//
// Subscription держит одно SSE соединение, перерисовывает таблицу при
// смене первой записи и переподключается после обрыва. Обработчики
// событий выполняются под мьютексом подписки по одному, до конца.
package logstream

import (
	"context"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"tradehook/internal/models"
	"tradehook/pkg/retry"
	"tradehook/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Renderer заменяет тело таблицы целиком
//
// Вызывается под мьютексом подписки: методы Subscription из Render
// вызывать нельзя.
type Renderer interface {
	Render(entries []models.WebhookLog)
}

// RenderFunc - адаптер функции к Renderer
type RenderFunc func(entries []models.WebhookLog)

func (f RenderFunc) Render(entries []models.WebhookLog) { f(entries) }

// Timer - отложенный вызов, который можно отменить
type Timer interface {
	Stop() bool
}

// AfterFunc планирует f через d
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Config - параметры подписки
type Config struct {
	Policy    ReconnectPolicy
	AfterFunc AfterFunc // nil = time.AfterFunc
	Logger    *utils.Logger
}

// Subscription - клиент потока логов
type Subscription struct {
	mu sync.Mutex

	dial      Dialer
	renderer  Renderer
	backoff   *retry.Backoff
	afterFunc AfterFunc
	logger    *utils.Logger

	ctx    context.Context
	cancel context.CancelFunc

	stream     Stream
	connCancel context.CancelFunc
	gen        uint64 // меняется при каждом открытии и закрытии соединения
	dialing    bool

	pending  Timer
	timerSeq uint64

	visible bool
	started bool
	closed  bool

	hasRows bool
	firstID int64
}

// New создает подписку, соединение открывает Start
func New(dial Dialer, renderer Renderer, cfg Config) *Subscription {
	if cfg.Policy.Initial <= 0 {
		cfg.Policy = DefaultReconnectPolicy()
	}
	if cfg.AfterFunc == nil {
		cfg.AfterFunc = realAfterFunc
	}
	if cfg.Logger == nil {
		cfg.Logger = utils.L()
	}

	return &Subscription{
		dial:      dial,
		renderer:  renderer,
		backoff:   cfg.Policy.backoff(),
		afterFunc: cfg.AfterFunc,
		logger:    cfg.Logger.WithComponent("logstream"),
		visible:   true,
	}
}

// Seed запоминает строки, уже показанные в таблице (серверный рендер)
func (s *Subscription) Seed(entries []models.WebhookLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remember(entries)
}

// Start открывает соединение
//
// Отмена ctx равносильна Close (уход со страницы).
func (s *Subscription) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	done := s.ctx.Done()
	s.mu.Unlock()

	go func() {
		<-done
		s.Close()
	}()

	s.connect()
}

// SetVisible - смена видимости страницы
//
// Скрытие закрывает соединение и отменяет запланированное
// переподключение. Показ открывает новое соединение, если его нет.
func (s *Subscription) SetVisible(visible bool) {
	s.mu.Lock()
	s.visible = visible
	if !visible {
		s.stopPending()
		s.dropStream()
		s.mu.Unlock()
		return
	}
	open := s.started && !s.closed && s.stream == nil && !s.dialing && s.pending == nil
	s.mu.Unlock()

	if open {
		s.connect()
	}
}

// Close закрывает соединение и отменяет переподключение
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopPending()
	s.dropStream()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Connected - есть открытое соединение
func (s *Subscription) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream != nil
}

// ReconnectPending - запланировано переподключение
func (s *Subscription) ReconnectPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// connect открывает соединение, если оно нужно и его нет
func (s *Subscription) connect() {
	s.mu.Lock()
	if s.closed || !s.visible || s.stream != nil || s.dialing {
		s.mu.Unlock()
		return
	}
	s.gen++
	gen := s.gen
	s.dialing = true
	connCtx, connCancel := context.WithCancel(s.ctx)
	s.connCancel = connCancel
	s.mu.Unlock()

	stream, err := s.dial(connCtx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		// соединение отменено, пока открывалось
		connCancel()
		if stream != nil {
			stream.Close()
		}
		return
	}
	s.dialing = false

	if err != nil {
		s.logger.Warn("log stream connect failed", utils.Err(err))
		s.connCancel = nil
		connCancel()
		s.scheduleReconnect()
		return
	}

	s.stream = stream
	go s.read(gen, stream)
}

// read - цикл чтения одного соединения
func (s *Subscription) read(gen uint64, stream Stream) {
	for {
		data, err := stream.Next()
		if err != nil {
			s.handleError(gen, err)
			return
		}
		s.handleMessage(gen, data)
	}
}

// handleMessage - событие с JSON массивом логов (новые первыми)
func (s *Subscription) handleMessage(gen uint64, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return
	}

	var entries []models.WebhookLog
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn("malformed log stream event", utils.Err(err))
		return
	}

	s.backoff.Reset()
	s.apply(entries)
}

// handleError закрывает соединение и планирует одно переподключение
func (s *Subscription) handleError(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return
	}

	s.dropStream()
	if s.closed || !s.visible {
		return
	}

	s.logger.Warn("log stream error", utils.Err(err))
	s.scheduleReconnect()
}

// apply перерисовывает таблицу, если сменилась первая запись
//
// Пустой массив очищает таблицу, только если в ней есть строки.
func (s *Subscription) apply(entries []models.WebhookLog) {
	if len(entries) == 0 {
		if s.hasRows {
			s.renderer.Render([]models.WebhookLog{})
			s.remember(nil)
		}
		return
	}

	if s.hasRows && entries[0].ID == s.firstID {
		return
	}

	s.renderer.Render(entries)
	s.remember(entries)
}

func (s *Subscription) remember(entries []models.WebhookLog) {
	if len(entries) == 0 {
		s.hasRows = false
		s.firstID = 0
		return
	}
	s.hasRows = true
	s.firstID = entries[0].ID
}

// scheduleReconnect вызывается под lock'ом
func (s *Subscription) scheduleReconnect() {
	if s.pending != nil {
		return
	}

	delay, attempt, ok := s.backoff.Next()
	if !ok {
		s.logger.Error("log stream reconnect attempts exhausted", utils.Int("attempts", attempt))
		return
	}

	s.logger.Info("log stream reconnect scheduled",
		utils.Duration("delay", delay),
		utils.Int("attempt", attempt),
	)

	s.timerSeq++
	seq := s.timerSeq
	s.pending = s.afterFunc(delay, func() {
		s.fireReconnect(seq)
	})
}

func (s *Subscription) fireReconnect(seq uint64) {
	s.mu.Lock()
	if seq != s.timerSeq || s.pending == nil {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	s.mu.Unlock()

	s.connect()
}

// stopPending вызывается под lock'ом
func (s *Subscription) stopPending() {
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.timerSeq++
}

// dropStream закрывает текущее соединение (под lock'ом)
func (s *Subscription) dropStream() {
	s.gen++
	s.dialing = false
	if s.connCancel != nil {
		s.connCancel()
		s.connCancel = nil
	}
	if s.stream != nil {
		s.stream.Close()
		s.stream = nil
	}
}
