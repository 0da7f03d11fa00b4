package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/yasu-888/monologue-muser/internal/api/middleware"

	"github.com/go-chi/chi/v5"
	ChiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// NewUploaderRouter serves the signed-url endpoint. redisClient may be nil,
// in which case Idempotency-Key headers are ignored.
func NewUploaderRouter(h *Handlers, redisClient *redis.Client, idempotencyTTL time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(ChiMiddleware.Logger)
	r.Use(ChiMiddleware.Recoverer)
	r.Use(ChiMiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "Idempotency-Key"},
		ExposedHeaders: []string{"X-Idempotency-Hit"},
		MaxAge:         3600,
	}))

	r.Get("/health", health)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if redisClient != nil {
			r.Use(middleware.Idempotency(redisClient, idempotencyTTL))
		}
		r.Post("/signed-url", h.IssueUploadURL)
		// The function URL is served at the root.
		r.Post("/", h.IssueUploadURL)
	})

	slog.Info("registered routes", "routes", "POST /signed-url, POST /, GET /health, GET /metrics", "idempotency", redisClient != nil)

	return r
}

// NewSummarizerRouter serves the CloudEvent push endpoint.
func NewSummarizerRouter(h *EventHandlers) http.Handler {
	r := chi.NewRouter()

	r.Use(ChiMiddleware.Logger)
	r.Use(ChiMiddleware.Recoverer)
	r.Use(ChiMiddleware.RequestID)

	r.Get("/health", health)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", h.HandleObjectFinalized)

	slog.Info("registered routes", "routes", "POST /, GET /health, GET /metrics")

	return r
}
