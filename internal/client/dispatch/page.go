package dispatch

import (
	"context"
	"fmt"

	"tradehook/internal/client/logstream"
	"tradehook/internal/client/pairs"
	"tradehook/internal/client/toggle"
	"tradehook/internal/client/transfer"
)

// Page - компоненты страницы, nil-компоненты пропускаются
type Page struct {
	Toggles  map[string]*toggle.Control // по automation_id
	Stream   *logstream.Subscription
	Expanded *logstream.Expanded
	Pairs    *pairs.Selector
	Transfer *transfer.Modal
}

// Bind регистрирует обработчики для компонентов страницы
func Bind(t *Table, p Page) {
	if p.Toggles != nil {
		t.Register(ActionToggleStatus, func(ctx context.Context, ev Event) error {
			c, ok := p.Toggles[ev.Target]
			if !ok {
				return fmt.Errorf("no status control for automation %q", ev.Target)
			}
			return c.Toggle(ctx)
		})
	}

	if p.Expanded != nil {
		t.Register(ActionExpandRow, func(ctx context.Context, ev Event) error {
			p.Expanded.Toggle(ev.RowID)
			return nil
		})
	}

	if p.Stream != nil {
		t.Register(ActionVisibilityChange, func(ctx context.Context, ev Event) error {
			p.Stream.SetVisible(ev.Flag)
			return nil
		})
	}

	if p.Pairs != nil {
		t.Register(ActionSearchPairs, func(ctx context.Context, ev Event) error {
			p.Pairs.Search(ev.Value)
			return nil
		})
		t.Register(ActionSelectPair, func(ctx context.Context, ev Event) error {
			p.Pairs.Select(ev.Target)
			return nil
		})
		t.Register(ActionClickOutside, func(ctx context.Context, ev Event) error {
			p.Pairs.ClickOutside(ev.Flag)
			return nil
		})
	}

	if p.Transfer != nil {
		t.Register(ActionSelectSource, func(ctx context.Context, ev Event) error {
			_, err := p.Transfer.SelectSource(ev.Target)
			return err
		})
		t.Register(ActionSubmitTransfer, func(ctx context.Context, ev Event) error {
			_, err := p.Transfer.Submit(ctx, ev.Target, ev.Value)
			return err
		})
	}
}
