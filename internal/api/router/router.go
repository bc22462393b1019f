package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/chatdesk/internal/dashboard"
	httpmiddleware "github.com/wolfman30/chatdesk/internal/http/middleware"
	"github.com/wolfman30/chatdesk/internal/operator"
	"github.com/wolfman30/chatdesk/internal/webchat"
	"github.com/wolfman30/chatdesk/pkg/logging"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Webchat            *webchat.Handler
	Dashboard          *dashboard.Handler
	Operators          *operator.Handler
	ChatLimiter        *httpmiddleware.RateLimiter
	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// ReadyChecks run on /ready; /health only reports the process is up.
	ReadyChecks map[string]HealthCheck
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	r.Group(func(public chi.Router) {
		public.Get("/health", health)
		public.Get("/ready", ready(cfg.ReadyChecks))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	if cfg.Webchat != nil {
		r.Route("/chat", func(chat chi.Router) {
			if cfg.ChatLimiter != nil {
				chat.Use(httpmiddleware.RateLimit(cfg.ChatLimiter))
			}
			chat.Mount("/", cfg.Webchat.Routes())
		})
	}

	// Operator-facing routes stay unmounted without a signing secret.
	if cfg.AdminAuthSecret != "" {
		auth := httpmiddleware.AdminJWT(cfg.AdminAuthSecret)
		if cfg.Dashboard != nil {
			r.Route("/dashboard", func(d chi.Router) {
				d.Use(auth)
				d.Use(middleware.Compress(5))
				d.Mount("/", cfg.Dashboard.Routes())
			})
		}
		if cfg.Operators != nil {
			r.Route("/admin/operators", func(admin chi.Router) {
				admin.Use(auth)
				admin.Mount("/", cfg.Operators.Routes())
			})
		}
	} else if cfg.Logger != nil {
		cfg.Logger.Warn("ADMIN_JWT_SECRET not set; dashboard and admin routes disabled")
	}

	return r
}

func health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func ready(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		body := map[string]any{"status": "ok", "checks": results}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		writeJSON(w, status, body)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
