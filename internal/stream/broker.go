// Package stream - SSE поток последних логов вебхуков
//
// Каждый открытый поток получает полный снимок логов своего scope:
// сразу после подключения, каждые Interval и сразу после Notify
// для владельца автоматизации. Снимок всегда отправляется целиком.
package stream

import (
	"sync"

	"tradehook/internal/models"
)

// Subscriber - один открытый поток
type Subscriber struct {
	scope models.LogScope

	// wake буферизован на 1: повторные Notify схлопываются,
	// медленный поток не блокирует прием вебхуков
	wake chan struct{}
}

// Scope возвращает scope потока
func (s *Subscriber) Scope() models.LogScope {
	return s.scope
}

// Wake - сигнал о новом логе
func (s *Subscriber) Wake() <-chan struct{} {
	return s.wake
}

func (s *Subscriber) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Broker хранит открытые потоки и будит их при новых логах
type Broker struct {
	subscribers map[*Subscriber]struct{}
	mu          sync.RWMutex
}

// NewBroker создает пустой брокер
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[*Subscriber]struct{}),
	}
}

// Subscribe регистрирует поток
func (b *Broker) Subscribe(scope models.LogScope) *Subscriber {
	sub := &Subscriber{
		scope: scope,
		wake:  make(chan struct{}, 1),
	}

	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Unsubscribe удаляет поток (повторный вызов безопасен)
func (b *Broker) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	delete(b.subscribers, sub)
	b.mu.Unlock()
}

// Notify будит потоки пользователя userID и все admin потоки
//
// Возвращает число разбуженных потоков.
func (b *Broker) Notify(userID int) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	woken := 0
	for sub := range b.subscribers {
		if sub.scope.IsAdmin() || sub.scope.UserID == userID {
			sub.signal()
			woken++
		}
	}
	return woken
}

// Count - количество открытых потоков
func (b *Broker) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
