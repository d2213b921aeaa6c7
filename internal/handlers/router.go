package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/skintrack/server/internal/middleware"
	"github.com/skintrack/server/internal/observability"
)

// RouterConfig holds everything the HTTP surface is assembled from
type RouterConfig struct {
	APIKey       string
	APIKeyHeader string
	UserIDHeader string
	ServiceName  string
	HTTPMetrics  *observability.HTTPMetrics

	Health    *HealthHandler
	Sessions  *SessionHandler
	Dashboard *DashboardHandler
	History   *HistoryHandler
	Photos    *PhotoHandler
	Tests     *TestHandler
	Profile   *ProfileHandler
	WebSocket *WebSocketHandler
}

// NewRouter builds the chi router with middleware and routes
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if cfg.ServiceName != "" {
		r.Use(observability.TracingMiddleware(cfg.ServiceName))
	}
	if cfg.HTTPMetrics != nil {
		r.Use(observability.MetricsMiddleware(cfg.HTTPMetrics))
	}
	r.Use(middleware.OwnerAuth(cfg.APIKey, cfg.APIKeyHeader, cfg.UserIDHeader))

	// Routes
	r.Get("/health", cfg.Health.HealthCheck)
	r.Get("/api/health", cfg.Health.HealthCheck)
	if cfg.WebSocket != nil {
		r.Get("/ws", cfg.WebSocket.HandleConnection)
	}

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", cfg.Sessions.Start)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", cfg.Sessions.Get)
			r.Post("/capture", cfg.Sessions.Capture)
			r.Post("/retake", cfg.Sessions.Retake)
			r.Post("/confirm", cfg.Sessions.Confirm)
			r.Post("/photos-only", cfg.Sessions.SubmitPhotosOnly)
			r.Post("/restart-photos", cfg.Sessions.RestartPhotos)
			r.Put("/answers/{qid}", cfg.Sessions.Answer)
			r.Post("/next", cfg.Sessions.Next)
			r.Post("/previous", cfg.Sessions.Previous)
			r.Post("/submit", cfg.Sessions.Submit)
			r.Post("/finish", cfg.Sessions.Finish)
			r.Post("/cancel", cfg.Sessions.Cancel)
		})
	})

	r.Get("/api/dashboard", cfg.Dashboard.Get)
	r.Get("/api/checkins", cfg.History.ListCheckIns)
	r.Get("/api/test-checkins/{id}", cfg.History.GetTestCheckin)

	r.Route("/api/photos", func(r chi.Router) {
		r.Get("/", cfg.Photos.List)
		r.Delete("/{id}", cfg.Photos.Delete)
	})

	r.Get("/api/catalog", cfg.Tests.Catalog)
	r.Post("/api/tests", cfg.Tests.Start)
	r.Get("/api/tests/active", cfg.Tests.Active)

	r.Get("/api/profile", cfg.Profile.Get)
	r.Put("/api/profile", cfg.Profile.Put)

	return r
}
