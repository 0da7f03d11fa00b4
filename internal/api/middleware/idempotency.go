package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const processingMarker = "PROCESSING"

// lockTTL bounds how long a crashed request can hold its key.
const lockTTL = 30 * time.Second

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type recorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *recorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// Idempotency replays the stored response of a POST that carries an
// Idempotency-Key already seen within ttl. A request racing one still in
// flight gets 409. Server errors are not stored so the client can retry.
// Redis failures let the request through unprotected.
func Idempotency(redisClient *redis.Client, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Only apply to state-changing methods
			if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("Idempotency-Key")
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			idemKey := fmt.Sprintf("idempotency:%s", key)
			ctx := r.Context()

			acquired, err := redisClient.SetNX(ctx, idemKey, processingMarker, lockTTL).Result()
			if err != nil {
				slog.WarnContext(ctx, "idempotency check unavailable", "error", err, "key", key)
				next.ServeHTTP(w, r)
				return
			}

			if !acquired {
				val, err := redisClient.Get(ctx, idemKey).Result()
				if errors.Is(err, redis.Nil) || val == processingMarker {
					writeConflict(w)
					return
				}
				if err != nil {
					slog.WarnContext(ctx, "idempotency lookup failed", "error", err, "key", key)
					next.ServeHTTP(w, r)
					return
				}

				var stored storedResponse
				if err := json.Unmarshal([]byte(val), &stored); err != nil {
					writeConflict(w)
					return
				}
				w.Header().Set("X-Idempotency-Hit", "true")
				if stored.ContentType != "" {
					w.Header().Set("Content-Type", stored.ContentType)
				}
				w.WriteHeader(stored.Status)
				w.Write(stored.Body)
				return
			}

			rec := &recorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			if rec.status >= http.StatusInternalServerError {
				redisClient.Del(ctx, idemKey)
				return
			}

			payload, err := json.Marshal(storedResponse{
				Status:      rec.status,
				ContentType: w.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			})
			if err != nil {
				redisClient.Del(ctx, idemKey)
				return
			}
			if err := redisClient.Set(ctx, idemKey, payload, ttl).Err(); err != nil {
				slog.WarnContext(ctx, "failed to store idempotent response", "error", err, "key", key)
			}
		})
	}
}

func writeConflict(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusConflict)
	w.Write([]byte(`{"error": "concurrent request"}`))
}
