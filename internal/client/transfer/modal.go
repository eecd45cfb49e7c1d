// Package transfer - окно перевода активов
//
// Источник выбирается из активов основного аккаунта и активов
// стратегий, получатель - из совместимых с источником счетов.
// Сумма проверяется на клиенте до отправки формы.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"tradehook/internal/client"
	"tradehook/internal/client/appstate"
	"tradehook/internal/models"
	rules "tradehook/internal/transfer"
	"tradehook/pkg/utils"
)

// FormPoster - отправка формы (реализует *client.API)
type FormPoster interface {
	PostForm(ctx context.Context, path string, form url.Values, out interface{}) error
}

// Response - ответ сервера на перевод
type Response struct {
	Success  bool             `json:"success"`
	Transfer *models.Transfer `json:"transfer"`
}

// Modal - состояние окна перевода
type Modal struct {
	mu     sync.Mutex
	api    FormPoster
	state  *appstate.State
	notify client.Notifier
	logger *utils.Logger

	source       *rules.Account
	available    decimal.Decimal
	asset        string
	destinations []rules.Option
	submitting   bool
}

// New создает окно перевода поверх снимка страницы
func New(api FormPoster, state *appstate.State, notifier client.Notifier, logger *utils.Logger) *Modal {
	if logger == nil {
		logger = utils.L()
	}
	return &Modal{
		api:    api,
		state:  state,
		notify: client.NotifierOrNop(notifier),
		logger: logger.WithComponent("transfer_modal"),
	}
}

// Sources - варианты источника для аккаунта биржи страницы
//
// По одному на актив основного аккаунта и по два (base, quote)
// на каждую стратегию аккаунта. Аккаунт тот же, что у SelectSource
// и Submit.
func (m *Modal) Sources() ([]rules.Option, error) {
	book, err := m.state.Book()
	if err != nil {
		return nil, err
	}
	return book.Sources(), nil
}

// SelectSource выбирает источник и пересчитывает получателей
//
// Пустое значение сбрасывает выбор.
func (m *Modal) SelectSource(value string) ([]rules.Option, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.source = nil
	m.available = decimal.Zero
	m.asset = ""
	m.destinations = nil

	if strings.TrimSpace(value) == "" {
		return []rules.Option{}, nil
	}

	src, err := rules.Parse(value)
	if err != nil {
		return nil, err
	}
	book, err := m.state.Book()
	if err != nil {
		return nil, err
	}

	available, err := book.Available(src)
	if err != nil {
		return nil, err
	}
	destinations, err := book.Destinations(src)
	if err != nil {
		return nil, err
	}

	m.source = &src
	m.available = available
	m.asset = src.Asset
	m.destinations = destinations
	return destinations, nil
}

// Available - доступный остаток и символ актива выбранного источника
func (m *Modal) Available() (decimal.Decimal, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available, m.asset
}

// Destinations - получатели для выбранного источника
func (m *Modal) Destinations() []rules.Option {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.destinations
}

// Submitting - показан ли индикатор отправки
func (m *Modal) Submitting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submitting
}

// Submit проверяет форму и отправляет перевод
//
// Выполняет:
// 1. Включает индикатор отправки
// 2. Проверяет источник, получателя и сумму (> 0 и <= остатка)
// 3. При ошибке ввода - Notifier.Alert, индикатор сбрасывается, запрос не уходит
// 4. POST /exchange/{id}/transfer (form: source, destination, amount)
func (m *Modal) Submit(ctx context.Context, destination, amount string) (*models.Transfer, error) {
	m.mu.Lock()
	m.submitting = true
	form, err := m.validate(destination, amount)
	if err != nil {
		m.submitting = false
		m.mu.Unlock()
		m.notify.Alert(alertMessage(err))
		return nil, err
	}
	credentialID := m.state.ExchangeCredentialID
	m.mu.Unlock()

	var resp Response
	path := fmt.Sprintf("/exchange/%d/transfer", credentialID)
	err = m.api.PostForm(ctx, path, form, &resp)

	m.mu.Lock()
	m.submitting = false
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("transfer failed", utils.Err(err))
		m.notify.Alert("Transfer failed: " + err.Error())
		return nil, err
	}

	if resp.Transfer != nil {
		m.logger.Info("transfer submitted",
			utils.CredentialID(credentialID),
			utils.Asset(resp.Transfer.AssetSymbol),
			utils.Amount(resp.Transfer.Amount.String()),
		)
	}
	return resp.Transfer, nil
}

// validate вызывается под lock'ом
func (m *Modal) validate(destination, amount string) (url.Values, error) {
	if m.source == nil {
		return nil, &rules.ValidationError{Field: "source", Message: "please select a source"}
	}

	destination = strings.TrimSpace(destination)
	if destination == "" {
		return nil, &rules.ValidationError{Field: "destination", Message: "please select a destination"}
	}
	dst, err := rules.Parse(destination)
	if err != nil {
		return nil, &rules.ValidationError{Field: "destination", Message: "invalid destination"}
	}
	if !m.hasDestination(dst.Value()) {
		return nil, &rules.ValidationError{Field: "destination", Message: "destination is not compatible with source"}
	}

	parsed, err := rules.ValidateAmount(amount, m.available)
	if err != nil {
		return nil, err
	}

	return url.Values{
		"source":      {m.source.Value()},
		"destination": {dst.Value()},
		"amount":      {parsed.String()},
	}, nil
}

func (m *Modal) hasDestination(value string) bool {
	for _, opt := range m.destinations {
		if opt.Value == value {
			return true
		}
	}
	return false
}

func alertMessage(err error) string {
	var ve *rules.ValidationError
	if errors.As(err, &ve) && ve.Message != "" {
		return strings.ToUpper(ve.Message[:1]) + ve.Message[1:]
	}
	return err.Error()
}
