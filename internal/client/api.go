// Package client - HTTP клиент страниц tradehook
//
// Общий для всех клиентских компонентов (поток логов, кнопки статуса,
// выбор пары, окно перевода). Пользователь передается заголовком
// X-User-ID (как от upstream прокси), админ - через Basic auth.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Options - параметры подключения к серверу
type Options struct {
	BaseURL       string
	UserID        int
	UserHeader    string // по умолчанию X-User-ID
	AdminUsername string
	AdminPassword string
	Timeout       time.Duration // 0 = без ограничения; на поток не действует
	HTTPClient    *http.Client  // для тестов
}

// APIError - ответ сервера с ошибкой
//
// Возвращается и для non-2xx, и для 2xx с полем error в теле.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return e.Message
}

// errorBody - общий формат ошибок сервера
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// API - клиент REST API сервера
type API struct {
	rest    *resty.Client
	stream  *resty.Client
	baseURL string
}

// New создает клиент
func New(opts Options) *API {
	if opts.UserHeader == "" {
		opts.UserHeader = "X-User-ID"
	}
	baseURL := strings.TrimSuffix(opts.BaseURL, "/")

	build := func() *resty.Client {
		var c *resty.Client
		if opts.HTTPClient != nil {
			hc := *opts.HTTPClient
			c = resty.NewWithClient(&hc)
		} else {
			c = resty.New()
		}
		c.SetBaseURL(baseURL).
			SetHeader("User-Agent", "tradehook-client/1.0")
		if opts.UserID > 0 {
			c.SetHeader(opts.UserHeader, fmt.Sprint(opts.UserID))
		}
		if opts.AdminUsername != "" {
			c.SetBasicAuth(opts.AdminUsername, opts.AdminPassword)
		}
		c.JSONMarshal = json.Marshal
		c.JSONUnmarshal = json.Unmarshal
		return c
	}

	rest := build()
	if opts.Timeout > 0 {
		rest.SetTimeout(opts.Timeout)
	}
	stream := build()

	return &API{rest: rest, stream: stream, baseURL: baseURL}
}

// BaseURL - адрес сервера без завершающего "/"
func (a *API) BaseURL() string {
	return a.baseURL
}

// GetJSON выполняет GET и декодирует ответ в out
func (a *API) GetJSON(ctx context.Context, path string, out interface{}) error {
	resp, err := a.newRequest(ctx).Get(path)
	return decodeResponse(resp, err, out)
}

// PostJSON выполняет POST без тела (переключатели статуса)
func (a *API) PostJSON(ctx context.Context, path string, out interface{}) error {
	resp, err := a.newRequest(ctx).
		SetHeader("Content-Type", "application/json").
		Post(path)
	return decodeResponse(resp, err, out)
}

// PostForm отправляет форму application/x-www-form-urlencoded
func (a *API) PostForm(ctx context.Context, path string, form url.Values, out interface{}) error {
	resp, err := a.newRequest(ctx).
		SetFormDataFromValues(form).
		Post(path)
	return decodeResponse(resp, err, out)
}

// OpenStream открывает SSE поток и возвращает тело ответа
//
// Вызывающий обязан закрыть тело. Отмена ctx обрывает поток.
func (a *API) OpenStream(ctx context.Context, path string) (io.ReadCloser, error) {
	resp, err := a.stream.R().
		SetContext(ctx).
		SetHeader("Accept", "text/event-stream").
		SetHeader("Cache-Control", "no-cache").
		SetDoNotParseResponse(true).
		Get(path)
	if err != nil {
		return nil, err
	}

	body := resp.RawBody()
	if resp.StatusCode() != http.StatusOK {
		defer body.Close()
		data, _ := io.ReadAll(io.LimitReader(body, 64*1024))
		return nil, parseError(resp.StatusCode(), data)
	}
	return body, nil
}

func (a *API) newRequest(ctx context.Context) *resty.Request {
	r := a.rest.R()
	if ctx != nil {
		r.SetContext(ctx)
	}
	r.SetHeader("Accept", "application/json")
	return r
}

// decodeResponse превращает ответ в out или *APIError
func decodeResponse(resp *resty.Response, err error, out interface{}) error {
	if err != nil {
		return err
	}

	body := resp.Body()
	if !resp.IsSuccess() {
		return parseError(resp.StatusCode(), body)
	}

	if len(body) == 0 {
		return nil
	}

	// {"error": "..."} с кодом 2xx тоже ошибка
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '{' {
		var e errorBody
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return &APIError{StatusCode: resp.StatusCode(), Code: e.Code, Message: e.Error}
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseError(status int, body []byte) error {
	apiErr := &APIError{StatusCode: status}
	var e errorBody
	if len(body) > 0 && json.Unmarshal(body, &e) == nil {
		apiErr.Code = e.Code
		apiErr.Message = e.Error
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
