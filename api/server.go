/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     zerolog request line (request_id, method, path, status, latency)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the back-office frontend

ROUTE GROUPS:
  /api/files/*          File summaries, payments, uploads, certificates
  /api/lots, /clients   Record forms
  /api/documents/*      Logical delete
  /api/certificates/*   Lifecycle views, cancel, estado refresh
  /api/import, /derive  Backend payload ingestion and stateless derivation
  /api/scenarios/*      Demo scenarios

SECURITY NOTE:
  No authentication middleware. Deploy behind the back-office gateway.

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
	"github.com/rs/zerolog"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		// File routes
		r.Route("/files", func(r chi.Router) {
			r.Get("/", h.ListFiles)
			r.Post("/", h.CreateFile)
			r.Get("/{id}", h.GetFile)
			r.Get("/{id}/balance", h.GetFileBalance)
			r.Post("/{id}/payments", h.RecordPayment)
			r.Post("/{id}/documents", h.UploadDocument)
			r.Post("/{id}/certificates", h.IssueCertificate)
		})

		// Record forms
		r.Post("/lots", h.CreateLot)
		r.Post("/clients", h.CreateClient)

		// Document routes
		r.Route("/documents", func(r chi.Router) {
			r.Delete("/{id}", h.DeleteDocument)
		})

		// Certificate routes
		r.Route("/certificates", func(r chi.Router) {
			r.Get("/", h.ListCertificates)
			r.Post("/refresh", h.RefreshEstados)
			r.Delete("/{id}", h.DeleteCertificate)
		})

		// Derivation routes
		r.Post("/import", h.Import)
		r.Post("/derive", h.Derive)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetStore)
		})
	})

	return r
}

// requestLogger logs each request with method, path, status, latency and
// request_id.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("latency", time.Since(start)).
				Msg("request")
		})
	}
}
