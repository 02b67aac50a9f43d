/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client IP from proxy headers
  3. zap logger: Structured request logging
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the dashboard frontend

ROUTE GROUPS:
  /api/pay-dates               Pay date scheduling
  /api/compliance-deadlines    Statutory deadline calendar
  /api/calendar                Composed month view
  /api/reconciliation          Month-over-month diff reports
  /api/batches/*               Batch lifecycle and approvals
  /api/snapshots               Snapshot ingest from the pipeline
  /healthz                     Liveness probe

SECURITY NOTE:
  Authentication is terminated upstream; the gateway injects
  X-Company-ID and X-Actor-ID. These endpoints trust those headers.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterConfig carries the router-level settings from the config layer.
type RouterConfig struct {
	CORSOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig, logger *zap.Logger) *chi.Mux {
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Company-ID", "X-Actor-ID"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Scheduling routes
		r.Get("/pay-dates", h.GetPayDates)
		r.Get("/compliance-deadlines", h.GetComplianceDeadlines)
		r.Get("/calendar", h.GetCalendar)

		// Reconciliation routes
		r.Get("/reconciliation", h.GetReconciliation)

		// Batch routes
		r.Route("/batches", func(r chi.Router) {
			r.Get("/", h.ListBatches)
			r.Post("/", h.CreateBatch)
			r.Get("/{id}", h.GetBatch)
			r.Get("/{id}/audit", h.GetBatchAudit)
			r.Post("/{id}/status", h.SetProcessingStatus)
			r.Post("/{id}/submit-for-approval", h.SubmitForApproval)
			r.Post("/{id}/approve", h.ApproveBatch)
			r.Post("/{id}/reject", h.RejectBatch)
		})

		// Snapshot ingest
		r.Put("/snapshots", h.PutSnapshot)
	})

	return r
}

// requestLogger logs one structured line per request.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
