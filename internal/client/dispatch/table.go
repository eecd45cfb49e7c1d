// Package dispatch - таблица действий страницы
//
// Каждое действие пользователя имеет явный идентификатор и
// обработчик, зарегистрированный в Table.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrUnknownAction = errors.New("unknown action")

// Action - идентификатор действия
type Action string

const (
	ActionToggleStatus     Action = "toggle_status"
	ActionExpandRow        Action = "expand_row"
	ActionSearchPairs      Action = "search_pairs"
	ActionSelectPair       Action = "select_pair"
	ActionClickOutside     Action = "click_outside"
	ActionSelectSource     Action = "select_source"
	ActionSubmitTransfer   Action = "submit_transfer"
	ActionVisibilityChange Action = "visibility_change"
)

// Event - действие и его параметры
type Event struct {
	Action Action
	Target string // automation_id, product_id, источник или получатель перевода
	Value  string // текст поиска, сумма перевода
	RowID  int64  // ID записи лога для expand_row
	Flag   bool   // visible для visibility_change, inside для click_outside
}

// Handler обрабатывает одно действие
type Handler func(ctx context.Context, ev Event) error

// Table - отображение действия в обработчик
type Table struct {
	mu       sync.RWMutex
	handlers map[Action]Handler
}

// New создает пустую таблицу
func New() *Table {
	return &Table{handlers: make(map[Action]Handler)}
}

// Register добавляет или заменяет обработчик
func (t *Table) Register(action Action, h Handler) {
	t.mu.Lock()
	t.handlers[action] = h
	t.mu.Unlock()
}

// Dispatch вызывает обработчик действия
func (t *Table) Dispatch(ctx context.Context, ev Event) error {
	t.mu.RLock()
	h, ok := t.handlers[ev.Action]
	t.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAction, ev.Action)
	}
	return h(ctx, ev)
}

// Actions - зарегистрированные действия по алфавиту
func (t *Table) Actions() []Action {
	t.mu.RLock()
	defer t.mu.RUnlock()

	actions := make([]Action, 0, len(t.handlers))
	for a := range t.handlers {
		actions = append(actions, a)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	return actions
}
