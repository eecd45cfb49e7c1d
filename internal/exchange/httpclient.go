package exchange

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// HTTPClientConfig - транспорт REST клиента биржи
//
// Запросов к Coinbase немного (список пар раз в TTL кэша, балансы по
// открытию окна перевода), поэтому пул небольшой.
type HTTPClientConfig struct {
	DialTimeout    time.Duration
	RequestTimeout time.Duration
	IdlePerHost    int
	IdleTimeout    time.Duration
}

// DefaultHTTPClientConfig возвращает конфигурацию по умолчанию
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		DialTimeout:    5 * time.Second,
		RequestTimeout: 10 * time.Second,
		IdlePerHost:    4,
		IdleTimeout:    90 * time.Second,
	}
}

// client собирает http.Client с keep-alive для resty
func (c HTTPClientConfig) client() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   c.DialTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.MaxIdleConnsPerHost = c.IdlePerHost
	transport.IdleConnTimeout = c.IdleTimeout
	transport.TLSHandshakeTimeout = c.DialTimeout
	transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}

	return &http.Client{Transport: transport, Timeout: c.RequestTimeout}
}

// closeIdle освобождает соединения пула
func closeIdle(client *http.Client) {
	client.CloseIdleConnections()
}
