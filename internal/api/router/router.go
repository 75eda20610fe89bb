package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/wolfman30/appointment-insights/internal/http/middleware"
	"github.com/wolfman30/appointment-insights/internal/web"
	"github.com/wolfman30/appointment-insights/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Web                *web.Handler
	Hub                *web.Hub
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Manual refresh limit per client IP (requests/sec and burst).
	RefreshRate  float64
	RefreshBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()
	useCommon(r, cfg.Logger, cfg.CORSAllowedOrigins)

	r.Get("/health", healthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(web.StaticFS()))))

	if cfg.Hub != nil {
		r.Get("/ws", cfg.Hub.ServeWS)
	}

	if cfg.Web != nil {
		r.Get("/", cfg.Web.DashboardPage)
		r.Get("/settings", cfg.Web.SettingsPage)
		r.Post("/settings", cfg.Web.SaveSettings)

		r.Route("/api", func(api chi.Router) {
			api.Get("/dashboard", cfg.Web.GetDashboard)
			api.Get("/settings", cfg.Web.GetSettings)
			api.Put("/settings", cfg.Web.PutSettings)
			api.Get("/status", cfg.Web.GetStatus)

			rate, burst := cfg.RefreshRate, cfg.RefreshBurst
			if rate <= 0 {
				rate = 0.2
			}
			if burst <= 0 {
				burst = 3
			}
			api.With(httpmiddleware.RateLimit(rate, burst)).Post("/refresh", cfg.Web.Refresh)
		})
	}

	return r
}

// NewSetup serves the setup instructions for every route. Used when the
// generative API key is missing.
func NewSetup(logger *logging.Logger, setup http.Handler) http.Handler {
	r := chi.NewRouter()
	useCommon(r, logger, nil)
	r.Handle("/*", setup)
	return r
}

func useCommon(r chi.Router, logger *logging.Logger, origins []string) {
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5, "text/html", "text/css", "application/javascript", "application/json"))
	if policy := httpmiddleware.NewOriginPolicy(origins); policy.Configured() {
		r.Use(httpmiddleware.CORS(policy))
	}
	if logger != nil {
		r.Use(httpmiddleware.RequestLogger(logger))
	}
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
