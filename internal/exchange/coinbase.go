package exchange

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"

	"tradehook/pkg/crypto"
	"tradehook/pkg/ratelimit"
	"tradehook/pkg/retry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config - настройки клиента биржи
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // запросов/сек
	Retry     retry.Config
}

// DefaultCoinbaseURL - REST API Coinbase Exchange
const DefaultCoinbaseURL = "https://api.exchange.coinbase.com"

// Coinbase - клиент REST API Coinbase Exchange
//
// Публичные запросы (products) и подписанные (accounts) проходят
// через общий token bucket и повторяются по retry.Config.
// Ответы 4xx не повторяются.
type Coinbase struct {
	http    *http.Client
	client  *resty.Client
	limiter *ratelimit.RateLimiter
	retry   retry.Config
	now     func() time.Time
}

// NewCoinbase создает клиент
func NewCoinbase(cfg Config) *Coinbase {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultCoinbaseURL
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialDelay == 0 {
		cfg.Retry = retry.ExchangeConfig()
	}

	httpCfg := DefaultHTTPClientConfig()
	if cfg.Timeout > 0 {
		httpCfg.RequestTimeout = cfg.Timeout
	}
	httpClient := httpCfg.client()

	client := resty.NewWithClient(httpClient).
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "tradehook/1.0")
	client.JSONMarshal = json.Marshal
	client.JSONUnmarshal = json.Unmarshal

	return &Coinbase{
		http:    httpClient,
		client:  client,
		limiter: ratelimit.NewRateLimiter(cfg.RateLimit, cfg.RateLimit),
		retry:   cfg.Retry,
		now:     time.Now,
	}
}

// Name возвращает имя биржи
func (c *Coinbase) Name() string {
	return "coinbase"
}

// Products возвращает все торговые пары
func (c *Coinbase) Products(ctx context.Context) ([]Product, error) {
	return retry.DoWithResult(ctx, c.retry, func() ([]Product, error) {
		var products []Product
		if err := c.get(ctx, "/products", nil, &products); err != nil {
			return nil, err
		}
		return products, nil
	})
}

// Accounts возвращает балансы аккаунта
func (c *Coinbase) Accounts(ctx context.Context, creds Credentials) ([]Account, error) {
	if creds.APIKey == "" || creds.APISecret == "" {
		return nil, ErrUnauthorized
	}

	return retry.DoWithResult(ctx, c.retry, func() ([]Account, error) {
		headers, err := c.signHeaders(creds, http.MethodGet, "/accounts", "")
		if err != nil {
			return nil, retry.Permanent(err)
		}

		var accounts []Account
		if err := c.get(ctx, "/accounts", headers, &accounts); err != nil {
			return nil, err
		}
		return accounts, nil
	})
}

// Close закрывает idle соединения
func (c *Coinbase) Close() error {
	closeIdle(c.http)
	return nil
}

// signHeaders формирует заголовки CB-ACCESS-*
func (c *Coinbase) signHeaders(creds Credentials, method, path, body string) (map[string]string, error) {
	timestamp := strconv.FormatInt(c.now().Unix(), 10)

	signature, err := crypto.SignRequest(creds.APISecret, timestamp, method, path, body)
	if err != nil {
		return nil, &ExchangeError{Exchange: c.Name(), Message: "invalid api secret", Original: errors.Join(ErrUnauthorized, err)}
	}

	return map[string]string{
		"CB-ACCESS-KEY":        creds.APIKey,
		"CB-ACCESS-SIGN":       signature,
		"CB-ACCESS-TIMESTAMP":  timestamp,
		"CB-ACCESS-PASSPHRASE": creds.Passphrase,
	}, nil
}

// coinbaseError - тело ошибки API
type coinbaseError struct {
	Message string `json:"message"`
}

// get выполняет GET и декодирует ответ в out
//
// 401/403 -> ErrUnauthorized, 429 -> ErrRateLimited (повторяется),
// прочие 4xx не повторяются, 5xx и сетевые ошибки повторяются.
func (c *Coinbase) get(ctx context.Context, path string, headers map[string]string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var apiErr coinbaseError
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetResult(out).
		SetError(&apiErr).
		Get(path)
	if err != nil {
		return &ExchangeError{Exchange: c.Name(), Message: "request failed", Original: err}
	}

	if !resp.IsError() {
		return nil
	}

	exErr := &ExchangeError{
		Exchange:   c.Name(),
		StatusCode: resp.StatusCode(),
		Message:    apiErr.Message,
	}
	if exErr.Message == "" {
		exErr.Message = http.StatusText(resp.StatusCode())
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		exErr.Original = ErrUnauthorized
		return retry.Permanent(exErr)
	case code == http.StatusTooManyRequests:
		exErr.Original = ErrRateLimited
		return exErr
	case code < http.StatusInternalServerError:
		return retry.Permanent(exErr)
	default:
		return exErr
	}
}
