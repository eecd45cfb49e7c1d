package logstream

import "sync"

// Expanded - раскрытые строки таблицы (payload показан целиком)
//
// Состояние переживает перерисовку: строки определяются по ID записи.
type Expanded struct {
	mu  sync.Mutex
	ids map[int64]bool
}

// NewExpanded создает пустой набор
func NewExpanded() *Expanded {
	return &Expanded{ids: make(map[int64]bool)}
}

// Toggle раскрывает или сворачивает строку, возвращает новое состояние
func (e *Expanded) Toggle(id int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ids[id] {
		delete(e.ids, id)
		return false
	}
	e.ids[id] = true
	return true
}

// IsExpanded - раскрыта ли строка
func (e *Expanded) IsExpanded(id int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ids[id]
}
