package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := NewClient(ClientOptions{
		BaseURL:      srv.URL,
		TenantID:     "tenant-a",
		APIKey:       "secret",
		APIKeyHeader: "X-API-Key",
	})
	return c, srv
}

func TestClient_Headers(t *testing.T) {
	var got http.Header
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte(`{"id":"x-1","updatedAt":"2026-01-02T15:04:05Z"}`))
	})
	defer srv.Close()

	t.Run("create sends tenant, key and idempotency headers", func(t *testing.T) {
		res, err := c.Create(context.Background(), "orders", json.RawMessage(`{"total":1}`), "client-id-7")
		require.NoError(t, err)

		assert.Equal(t, "tenant-a", got.Get("X-Tenant-ID"))
		assert.Equal(t, "secret", got.Get("X-API-Key"))
		assert.Equal(t, "client-id-7", got.Get("Idempotency-Key"))
		assert.Equal(t, "application/json", got.Get("Content-Type"))
		assert.Equal(t, "x-1", res.ID)
	})

	t.Run("reads omit the idempotency key", func(t *testing.T) {
		_, err := c.GetByID(context.Background(), "orders", "x-1")
		require.NoError(t, err)
		assert.Empty(t, got.Get("Idempotency-Key"))
	})
}

func TestClient_ErrorClassification(t *testing.T) {
	ctx := context.Background()

	t.Run("5xx is transient", func(t *testing.T) {
		c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		defer srv.Close()

		_, err := c.Update(ctx, "orders", "o-1", json.RawMessage(`{}`))
		require.Error(t, err)
		assert.True(t, IsTransient(err))

		var transient *TransientError
		require.ErrorAs(t, err, &transient)
		assert.Equal(t, http.StatusBadGateway, transient.Status)
	})

	t.Run("429 carries the Retry-After hint", func(t *testing.T) {
		c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
		})
		defer srv.Close()

		_, err := c.Update(ctx, "orders", "o-1", json.RawMessage(`{}`))
		var transient *TransientError
		require.ErrorAs(t, err, &transient)
		assert.Equal(t, 7*time.Second, transient.RetryAfter)
	})

	t.Run("network failure is transient", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close() // connection refused from here on
		c := NewClient(ClientOptions{BaseURL: srv.URL})

		err := c.Ping(ctx)
		require.Error(t, err)
		assert.True(t, IsTransient(err))
	})

	t.Run("409 is a rejection with authoritative state", func(t *testing.T) {
		c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"message":"stale version","data":{"id":"o-1","total":42}}`))
		})
		defer srv.Close()

		_, err := c.Update(ctx, "orders", "o-1", json.RawMessage(`{"total":5}`))
		require.Error(t, err)
		assert.False(t, IsTransient(err))

		var rejection *RejectionError
		require.ErrorAs(t, err, &rejection)
		assert.Equal(t, http.StatusConflict, rejection.Status)
		assert.Equal(t, "stale version", rejection.Message)
		assert.JSONEq(t, `{"id":"o-1","total":42}`, string(rejection.Authoritative))
	})

	t.Run("422 without an envelope still yields a message", func(t *testing.T) {
		c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`price must be positive`))
		})
		defer srv.Close()

		_, err := c.Update(ctx, "orders", "o-1", json.RawMessage(`{"price":-1}`))
		var rejection *RejectionError
		require.ErrorAs(t, err, &rejection)
		assert.Equal(t, "price must be positive", rejection.Message)
	})

	t.Run("canceled context is not misreported as transient", func(t *testing.T) {
		c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(time.Second)
		})
		defer srv.Close()

		cancelCtx, cancel := context.WithCancel(ctx)
		cancel()
		err := c.Ping(cancelCtx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestClient_WriteResponses(t *testing.T) {
	ctx := context.Background()

	t.Run("plain entity body", func(t *testing.T) {
		c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"id":"srv-9","updatedAt":"2026-03-01T10:00:00Z","name":"Espresso"}`))
		})
		defer srv.Close()

		res, err := c.Create(ctx, "food-items", json.RawMessage(`{"name":"Espresso"}`), "tmp-9")
		require.NoError(t, err)
		assert.Equal(t, "srv-9", res.ID)
		assert.Equal(t, 2026, res.UpdatedAt.Year())
		assert.Contains(t, string(res.Body), "Espresso")
	})

	t.Run("enveloped entity body", func(t *testing.T) {
		c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data":{"id":"srv-10","name":"Latte"}}`))
		})
		defer srv.Close()

		res, err := c.Update(ctx, "food-items", "srv-10", json.RawMessage(`{"name":"Latte"}`))
		require.NoError(t, err)
		assert.Equal(t, "srv-10", res.ID)
		assert.JSONEq(t, `{"id":"srv-10","name":"Latte"}`, string(res.Body))
	})
}

func TestListParams_Encode(t *testing.T) {
	t.Run("is deterministic", func(t *testing.T) {
		p := ListParams{
			Page:    2,
			Limit:   50,
			Search:  "pizza",
			Filters: map[string]string{"branch": "1", "status": "open"},
		}
		first := p.Encode()
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, p.Encode())
		}
		assert.Contains(t, first, "page=2")
		assert.Contains(t, first, "search=pizza")
	})

	t.Run("omits zero values", func(t *testing.T) {
		assert.Empty(t, ListParams{}.Encode())
	})
}
