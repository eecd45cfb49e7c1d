package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T, handler http.HandlerFunc, opts Options) *API {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts.BaseURL = srv.URL + "/"
	return New(opts)
}

func TestAPI_SendsUserHeader(t *testing.T) {
	var got string
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-User-ID")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"ok":true}`)
	}, Options{UserID: 7})

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, api.GetJSON(context.Background(), "/api/logs", &out))
	assert.Equal(t, "7", got)
	assert.True(t, out.OK)
}

func TestAPI_BasicAuthForAdmin(t *testing.T) {
	var user, pass string
	var ok bool
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok = r.BasicAuth()
		io.WriteString(w, `{}`)
	}, Options{AdminUsername: "admin", AdminPassword: "secret"})

	require.NoError(t, api.PostJSON(context.Background(), "/admin/api/automation/a/activate", nil))
	assert.True(t, ok)
	assert.Equal(t, "admin", user)
	assert.Equal(t, "secret", pass)
}

func TestAPI_ErrorStatus(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":"Automation not found","code":"not_found"}`)
	}, Options{UserID: 1})

	err := api.PostJSON(context.Background(), "/activate-automation/x", nil)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "not_found", apiErr.Code)
	assert.Equal(t, "Automation not found", apiErr.Error())
}

func TestAPI_ErrorFieldWithOKStatus(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":false,"trading_pairs":[],"error":"upstream unavailable"}`)
	}, Options{UserID: 1})

	var out map[string]interface{}
	err := api.GetJSON(context.Background(), "/api/coinbase/trading-pairs", &out)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusOK, apiErr.StatusCode)
	assert.Equal(t, "upstream unavailable", apiErr.Message)
}

func TestAPI_ErrorFieldAfterWhitespace(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "\n  {\"error\":\"Automation not found\"}")
	}, Options{UserID: 1})

	var out map[string]interface{}
	err := api.PostJSON(context.Background(), "/activate-automation/x", &out)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Automation not found", apiErr.Message)
}

func TestAPI_NoTimeoutByDefault(t *testing.T) {
	api := New(Options{BaseURL: "http://localhost"})
	assert.Zero(t, api.rest.GetClient().Timeout)
	assert.Zero(t, api.stream.GetClient().Timeout)

	shared := &http.Client{}
	limited := New(Options{BaseURL: "http://localhost", Timeout: 3 * time.Second, HTTPClient: shared})
	assert.Equal(t, 3*time.Second, limited.rest.GetClient().Timeout)
	assert.Zero(t, limited.stream.GetClient().Timeout)
	assert.Zero(t, shared.Timeout)
}

func TestAPI_PlainTextError(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}, Options{UserID: 1})

	err := api.GetJSON(context.Background(), "/api/logs", nil)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "bad gateway", apiErr.Message)
}

func TestAPI_PostForm(t *testing.T) {
	var form url.Values
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		io.WriteString(w, `{"success":true}`)
	}, Options{UserID: 1})

	err := api.PostForm(context.Background(), "/exchange/3/transfer", url.Values{
		"source":      {"main::BTC"},
		"destination": {"strategy::5::BTC"},
		"amount":      {"0.1"},
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "main::BTC", form.Get("source"))
	assert.Equal(t, "strategy::5::BTC", form.Get("destination"))
	assert.Equal(t, "0.1", form.Get("amount"))
}

func TestAPI_OpenStream(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data:[]\n\n")
	}, Options{UserID: 1})

	body, err := api.OpenStream(context.Background(), "/api/logs/stream")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "data:[]\n\n", string(data))
}

func TestAPI_OpenStreamUnauthorized(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":"Unauthorized"}`)
	}, Options{})

	_, err := api.OpenStream(context.Background(), "/api/logs/stream")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}
