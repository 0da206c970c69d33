package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonDecode(r *http.Request, out any) error {
	return json.NewDecoder(r.Body).Decode(out)
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig(srv.URL)
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	client, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	return client
}

func TestProductsDecodesResponse(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/products", r.URL.Path)
		assert.Equal(t, "Молоко", r.URL.Query().Get("category_level_1"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"products": [{"id": "p-1", "name": "Кефир", "brand": null, "favorites_count": 7}],
			"total": 51, "page": 2, "page_size": 25, "total_pages": 3
		}`))
	}))

	list, err := client.Products(context.Background(), ProductFilter{
		CategoryLevel1: "Молоко",
		Page:           2,
		PageSize:       25,
	})
	require.NoError(t, err)
	assert.Equal(t, 51, list.Total)
	assert.Equal(t, 3, list.TotalPages)
	require.Len(t, list.Products, 1)
	assert.Equal(t, "Кефир", list.Products[0].Name)
	assert.Nil(t, list.Products[0].Brand, "null brand stays nil")
}

func TestZeroFilterSendsNoParams(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery, "zero-value filters must not emit parameters")
		w.Write([]byte(`{"products": [], "total": 0, "page": 1, "page_size": 50, "total_pages": 0}`))
	}))

	_, err := client.Products(context.Background(), ProductFilter{})
	require.NoError(t, err)
}

func TestServerDetailWinsErrorMessage(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail": "Товар не найден"}`))
	}))

	_, err := client.Product(context.Background(), "missing")
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Товар не найден", apiErr.Message)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.False(t, apiErr.Timeout)
}

func TestMalformedErrorBodyFallsBack(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("not json at all"))
	}))

	_, err := client.Status(context.Background())
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.NotEmpty(t, apiErr.Message)
	assert.NotContains(t, apiErr.Message, "not json",
		"raw body never leaks into the message")
}

func TestTimeoutFlagged(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	client.httpClient.Timeout = 20 * time.Millisecond

	_, err := client.Status(context.Background())
	require.Error(t, err)
	assert.True(t, IsTimeout(err), "timeouts must be distinguishable from other failures")
}

func TestRetryOnceOn5xx(t *testing.T) {
	var calls int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"cache_ready": true, "loading": false, "files_loaded": 12, "total_products": 3400, "using_mock_data": false}`))
	}))

	status, err := client.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, status.CacheReady)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls), "one transparent retry")
}

func TestNoRetryOn4xx(t *testing.T) {
	var calls int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail": "bad filter"}`))
	}))

	_, err := client.Status(context.Background())
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "client errors are not retried")
}

func TestRetryExhaustionKeepsLastError(t *testing.T) {
	var calls int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"detail": "warming up"}`))
	}))

	_, err := client.Status(context.Background())
	require.Error(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "warming up", apiErr.Message)
	assert.Equal(t, 2, apiErr.Attempts)
}

func TestToggleWorkflowRequest(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/n8n/workflows/wf-9/toggle", r.URL.Path)
		assert.Equal(t, "https://n8n.example.com", r.URL.Query().Get("url"))

		var body map[string]bool
		require.NoError(t, jsonDecode(r, &body))
		assert.Equal(t, map[string]bool{"active": true}, body)

		w.Write([]byte(`{"success": true}`))
	}))

	res, err := client.ToggleWorkflow(context.Background(), "wf-9", true, "https://n8n.example.com", "key")
	require.NoError(t, err)
	assert.True(t, res.Success)
}
