package middleware

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var integration = flag.Bool("integration", false, "perform integration tests")

func redisClient(t *testing.T) *redis.Client {
	t.Helper()

	if !*integration {
		t.Skip("skipping integration tests")
	}
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() { client.Close() })
	return client
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	client := redisClient(t)
	key := fmt.Sprintf("test-%d", time.Now().UnixNano())
	t.Cleanup(func() { client.Del(context.Background(), "idempotency:"+key) })

	calls := 0
	h := Idempotency(client, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"filename":"a.aiff"}`))
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/signed-url", nil)
		req.Header.Set("Idempotency-Key", key)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"filename":"a.aiff"}`, rec.Body.String())
		if i == 1 {
			assert.Equal(t, "true", rec.Header().Get("X-Idempotency-Hit"))
		}
	}
	assert.Equal(t, 1, calls)
}

func TestIdempotency_InFlightConflict(t *testing.T) {
	client := redisClient(t)
	ctx := context.Background()
	key := fmt.Sprintf("test-%d", time.Now().UnixNano())
	require.NoError(t, client.Set(ctx, "idempotency:"+key, processingMarker, time.Minute).Err())
	t.Cleanup(func() { client.Del(ctx, "idempotency:"+key) })

	h := Idempotency(client, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodPost, "/signed-url", nil)
	req.Header.Set("Idempotency-Key", key)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestIdempotency_ServerErrorReleasesKey(t *testing.T) {
	client := redisClient(t)
	ctx := context.Background()
	key := fmt.Sprintf("test-%d", time.Now().UnixNano())

	h := Idempotency(client, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	req := httptest.NewRequest(http.MethodPost, "/signed-url", nil)
	req.Header.Set("Idempotency-Key", key)
	h.ServeHTTP(httptest.NewRecorder(), req)

	n, err := client.Exists(ctx, "idempotency:"+key).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}
