// Package toggle - кнопка включения/выключения автоматизации
//
// Состояния кнопки:
//
//	active   --request--> pending_from_active   --succeed--> inactive
//	                                            --fail-----> active
//	inactive --request--> pending_from_inactive --succeed--> active
//	                                            --fail-----> inactive
//
// Пока запрос в полете, кнопка заблокирована и повторное нажатие
// возвращает ErrToggleInFlight.
package toggle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/qmuntal/stateless"

	"tradehook/internal/client"
	"tradehook/pkg/utils"
)

var ErrToggleInFlight = errors.New("status change already in progress")

// Состояния
const (
	StateActive              = "active"
	StatePendingFromActive   = "pending_from_active"
	StateInactive            = "inactive"
	StatePendingFromInactive = "pending_from_inactive"
)

// Триггеры
const (
	triggerRequest = "request"
	triggerSucceed = "succeed"
	triggerFail    = "fail"
)

// Классы кнопки
const (
	ClassActive   = "btn-success"
	ClassInactive = "btn-danger"
)

// Poster - отправка POST без тела (реализует *client.API)
type Poster interface {
	PostJSON(ctx context.Context, path string, out interface{}) error
}

// Response - ответ сервера на переключение
type Response struct {
	Success      bool   `json:"success"`
	AutomationID string `json:"automation_id"`
	IsActive     bool   `json:"is_active"`
}

// View - отображение кнопки и строки таблицы
type View struct {
	AutomationID string
	Active       bool
	Disabled     bool
	Text         string            // Active / Inactive
	Class        string            // btn-success / btn-danger
	Dataset      map[string]string // data-active="true|false"
	RowMuted     bool              // строка выключенной автоматизации приглушена
}

// Config - параметры кнопки
type Config struct {
	AutomationID string
	Active       bool
	Admin        bool // админские endpoints /admin/api/automation/{id}/...

	// AfterSuccess вызывается после успешного переключения
	// (вариант страницы с перезагрузкой)
	AfterSuccess func()
	Notifier     client.Notifier
	Logger       *utils.Logger
}

// Control - кнопка статуса одной автоматизации
type Control struct {
	mu     sync.Mutex
	sm     *stateless.StateMachine
	api    Poster
	cfg    Config
	notify client.Notifier
	logger *utils.Logger
}

// New создает кнопку в начальном состоянии cfg.Active
func New(api Poster, cfg Config) *Control {
	initial := StateInactive
	if cfg.Active {
		initial = StateActive
	}
	logger := cfg.Logger
	if logger == nil {
		logger = utils.L()
	}

	c := &Control{
		api:    api,
		cfg:    cfg,
		notify: client.NotifierOrNop(cfg.Notifier),
		logger: logger.WithComponent("toggle").WithAutomation(cfg.AutomationID),
	}
	c.sm = newMachine(initial)
	return c
}

func newMachine(initial string) *stateless.StateMachine {
	sm := stateless.NewStateMachineWithMode(initial, stateless.FiringImmediate)

	sm.Configure(StateActive).
		Permit(triggerRequest, StatePendingFromActive)
	sm.Configure(StateInactive).
		Permit(triggerRequest, StatePendingFromInactive)
	sm.Configure(StatePendingFromActive).
		Permit(triggerSucceed, StateInactive).
		Permit(triggerFail, StateActive)
	sm.Configure(StatePendingFromInactive).
		Permit(triggerSucceed, StateActive).
		Permit(triggerFail, StateInactive)

	return sm
}

// State - текущее состояние машины
func (c *Control) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state()
}

func (c *Control) state() string {
	return c.sm.MustState().(string)
}

// View - текущее отображение
//
// Во время запроса кнопка выглядит как до нажатия, но заблокирована.
func (c *Control) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := c.state()
	active := state == StateActive || state == StatePendingFromActive
	v := View{
		AutomationID: c.cfg.AutomationID,
		Active:       active,
		Disabled:     state == StatePendingFromActive || state == StatePendingFromInactive,
		Text:         "Inactive",
		Class:        ClassInactive,
		Dataset:      map[string]string{"active": "false"},
		RowMuted:     !active,
	}
	if active {
		v.Text = "Active"
		v.Class = ClassActive
		v.Dataset["active"] = "true"
	}
	return v
}

// Endpoint - адрес запроса для текущего состояния
func (c *Control) Endpoint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoint(c.state() == StateActive || c.state() == StatePendingFromActive)
}

func (c *Control) endpoint(active bool) string {
	id := url.PathEscape(c.cfg.AutomationID)
	action := "activate"
	if active {
		action = "deactivate"
	}
	if c.cfg.Admin {
		return fmt.Sprintf("/admin/api/automation/%s/%s", id, action)
	}
	return fmt.Sprintf("/%s-automation/%s", action, id)
}

// Toggle переключает статус
//
// Выполняет:
// 1. Блокирует кнопку (ErrToggleInFlight, если уже заблокирована)
// 2. POST на activate/deactivate в зависимости от текущего статуса
// 3. Успех - смена статуса и AfterSuccess
// 4. Ошибка - возврат прежнего статуса и Notifier.Alert
//
// Автоматических повторов нет.
func (c *Control) Toggle(ctx context.Context) error {
	c.mu.Lock()
	state := c.state()
	if state != StateActive && state != StateInactive {
		c.mu.Unlock()
		return ErrToggleInFlight
	}
	path := c.endpoint(state == StateActive)
	if err := c.sm.FireCtx(ctx, triggerRequest); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	var resp Response
	err := c.api.PostJSON(ctx, path, &resp)
	if err == nil && !resp.Success {
		err = &client.APIError{StatusCode: http.StatusOK, Message: "status change was not confirmed"}
	}

	c.mu.Lock()
	if err != nil {
		_ = c.sm.Fire(triggerFail)
		c.mu.Unlock()

		c.logger.Warn("status toggle failed", utils.Err(err))
		c.notify.Alert("Failed to update automation status: " + err.Error())
		return err
	}
	_ = c.sm.Fire(triggerSucceed)
	c.mu.Unlock()

	c.logger.Debug("status toggled", utils.Bool("is_active", resp.IsActive))

	if c.cfg.AfterSuccess != nil {
		c.cfg.AfterSuccess()
	}
	return nil
}
