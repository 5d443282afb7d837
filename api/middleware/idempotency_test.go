package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
)

const (
	checkoutPath    = "/api/v1/cart/abc/checkout"
	checkoutPattern = "/api/v1/cart/{shopUniqueKey}/checkout"
)

// mapStore is an in-memory ResponseStore.
type mapStore map[string]string

func (m mapStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := m[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m mapStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m[key]; ok {
		return false, nil
	}
	m[key], _ = value.(string)
	return true, nil
}

func (m mapStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m[key], _ = value.(string)
	return nil
}

func (m mapStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m, key)
	}
	return nil
}

func (m mapStore) IdempotencyKey(scope, id string) string {
	return "test:" + scope + ":" + id
}

func routedRequest(method, url, pattern string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func checkoutRequest(key, body string) *http.Request {
	req := routedRequest(http.MethodPost, checkoutPath, checkoutPattern, strings.NewReader(body))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouteTTLSelection(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		pattern string
		want    time.Duration
		ok      bool
	}{
		{"checkout", http.MethodPost, checkoutPattern, criticalIdempotencyTTL, true},
		{"checkout raw path", http.MethodPost, checkoutPath, criticalIdempotencyTTL, true},
		{"product create", http.MethodPost, "/api/v1/products", defaultIdempotencyTTL, true},
		{"cart validate", http.MethodPost, "/api/v1/cart/{shopUniqueKey}/validate", 0, false},
		{"product update", http.MethodPut, "/api/v1/products/{productId}", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ttl, ok := routeTTL(tt.method, tt.pattern)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, ttl)
			}
		})
	}
}

func TestIdempotencyRejectsMissingKey(t *testing.T) {
	for name, store := range map[string]mapStore{"with store": {}, "without store": nil} {
		t.Run(name, func(t *testing.T) {
			var mw func(http.Handler) http.Handler
			if store == nil {
				mw = Idempotency(nil, nil)
			} else {
				mw = Idempotency(store, nil)
			}
			called := false
			h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

			rec := serve(h, checkoutRequest("", `{"foo":"bar"}`))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, called)
		})
	}
}

func TestIdempotencyReplaysCompletedResponse(t *testing.T) {
	calls := 0
	h := Idempotency(mapStore{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	first := serve(h, checkoutRequest("abc", `{"foo":"bar"}`))
	require.Equal(t, http.StatusAccepted, first.Code)
	assert.Empty(t, first.Header().Get(replayedHeader))

	replay := serve(h, checkoutRequest("abc", `{"foo":"bar"}`))
	assert.Equal(t, http.StatusAccepted, replay.Code)
	assert.Equal(t, "application/json", replay.Header().Get("Content-Type"))
	assert.Equal(t, "true", replay.Header().Get(replayedHeader))
	assert.JSONEq(t, `{"ok":true}`, replay.Body.String())
	assert.Equal(t, 1, calls)
}

func TestIdempotencyRejectsKeyReuseWithDifferentBody(t *testing.T) {
	h := Idempotency(mapStore{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	serve(h, checkoutRequest("xyz", `{"foo":"bar"}`))
	rec := serve(h, checkoutRequest("xyz", `{"foo":"diff"}`))

	require.Equal(t, http.StatusConflict, rec.Code)
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, string(pkgerrors.CodeIdempotency), payload.Error.Code)
}

func TestIdempotencyReleasesKeyAfterServerError(t *testing.T) {
	store := mapStore{}
	calls := 0
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	serve(h, checkoutRequest("retry", `{}`))
	serve(h, checkoutRequest("retry", `{}`))

	assert.Equal(t, 2, calls, "a retry after 503 must reach the handler")
	assert.Len(t, store, 1)
}

func TestIdempotencyRefusesInFlightDuplicate(t *testing.T) {
	calls := 0
	var h http.Handler
	h = Idempotency(mapStore{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			dup := serve(h, checkoutRequest("dup", `{}`))
			assert.Equal(t, http.StatusConflict, dup.Code)
		}
		w.WriteHeader(http.StatusCreated)
	}))

	rec := serve(h, checkoutRequest("dup", `{}`))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, calls)
}

func TestIdempotencyRejectsOversizedKey(t *testing.T) {
	h := Idempotency(mapStore{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	req := routedRequest(http.MethodPost, "/api/v1/products", "/api/v1/products", strings.NewReader(`{}`))
	req.Header.Set(idempotencyHeader, strings.Repeat("k", maxKeyLength+1))

	assert.Equal(t, http.StatusBadRequest, serve(h, req).Code)
}

func TestRoutePatternFallsBackToPathUnderMount(t *testing.T) {
	req := routedRequest(http.MethodPost, checkoutPath, "/api/v1/*", nil)
	assert.Equal(t, checkoutPath, routePattern(req))

	req = routedRequest(http.MethodPost, "/api/v1/products/", "/api/v1/products/", nil)
	assert.Equal(t, "/api/v1/products", routePattern(req))
}
