package handler

import (
	"net/http"
	"time"

	"github.com/MichaelAJay/go-logger"
	"github.com/MichaelAJay/go-metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MichaelAJay/go-login-security/audit"
	"github.com/MichaelAJay/go-login-security/security"
)

// Dependencies are the collaborators the router serves from.
type Dependencies struct {
	Attempts  audit.LoginAttemptRepository
	Summaries security.RiskSummaryRepository
	Recorder  AttemptRecorder
	Store     Pinger
	Logger    logger.Logger
	Metrics   metrics.Registry

	// MetricsHandler serves GET /metrics when set
	MetricsHandler http.Handler
}

// NewRouter builds the HTTP API.
func NewRouter(deps Dependencies) http.Handler {
	summaries := NewRiskSummaryHandler(deps.Summaries)
	attempts := NewLoginAttemptHandler(deps.Attempts, deps.Recorder, deps.Logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(deps.Logger, deps.Metrics))

	r.Get("/healthz", HealthHandler(deps.Store))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/risk-summaries", func(r chi.Router) {
			r.Get("/", summaries.List)
			r.Get("/{userID}", summaries.Get)
		})
		r.Route("/login-attempts", func(r chi.Router) {
			r.Get("/", attempts.List)
			r.Post("/", attempts.Create)
		})
	})

	return r
}

// RequestLogger logs each request and records its latency, tagged by route
// pattern and status.
func RequestLogger(log logger.Logger, registry metrics.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}

			registry.Timer(metrics.Options{
				Name: "http.request_duration",
				Tags: metrics.Tags{"method": r.Method, "route": route, "status": http.StatusText(status)},
			}).RecordSince(start)

			log.WithContext(r.Context()).Info("http request",
				logger.Field{Key: "method", Value: r.Method},
				logger.Field{Key: "path", Value: r.URL.Path},
				logger.Field{Key: "status", Value: status},
				logger.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()},
				logger.Field{Key: "request_id", Value: middleware.GetReqID(r.Context())})
		})
	}
}
