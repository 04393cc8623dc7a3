package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"evidencevault/internal/config"
	"evidencevault/internal/logging"
	"evidencevault/internal/middleware"
	"evidencevault/internal/rate"
	"evidencevault/internal/service"
	"evidencevault/internal/util"
	"evidencevault/internal/version"
)

type Handlers struct {
	cfg     config.Config
	svc     *service.Service
	log     logging.Logger
	limiter *rate.Limiter
}

const maxJSONBody = 1 << 20

func NewRouter(cfg config.Config, svc *service.Service, logger logging.Logger) http.Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	h := &Handlers{
		cfg:     cfg,
		svc:     svc,
		log:     logger,
		limiter: rate.NewLimiter(),
	}
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.RequestLogger(logger, cfg.TrustProxy))
	r.Use(middleware.SecurityHeaders)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			ExposedHeaders: []string{"Content-Disposition", "X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		util.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok", "version": version.Current()})
	})
	r.Get("/health/ready", h.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.RateLimit(h.limiter, "login", cfg.LoginRatePerMinute, time.Minute, cfg.TrustProxy)).Post("/sessions", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authn(h.svc, logger))
			r.Post("/sessions/refresh", h.Refresh)
			r.Get("/whoami", h.WhoAmI)

			r.Route("/evidence", func(r chi.Router) {
				r.Get("/", h.ListEvidence)
				r.Post("/", h.UploadEvidence)
				r.Get("/{id}", h.GetEvidence)
				r.Get("/{id}/download", h.DownloadEvidence)
				r.Post("/{id}/encrypt", h.EncryptEvidence)
				r.Post("/{id}/decrypt", h.DecryptEvidence)
				r.Delete("/{id}", h.DeleteEvidence)
			})

			r.Route("/users", func(r chi.Router) {
				r.Post("/me/password", h.ChangeOwnPassword)
				r.Get("/", h.ListUsers)
				r.Post("/", h.CreateUser)
				r.Get("/{id}", h.GetUser)
				r.Patch("/{id}", h.UpdateUser)
				r.Delete("/{id}", h.DeleteUser)
				r.Post("/{id}/reset-password", h.ResetPassword)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Get("/audit-log", h.AuditLog)
				r.Get("/stats", h.Stats)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		util.WriteError(w, http.StatusNotFound, "not_found", "route not found", middleware.RequestID(r.Context()))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		util.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", middleware.RequestID(r.Context()))
	})
	return r
}

func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	ready := map[string]any{"checked_at": time.Now().UTC().Format(time.RFC3339)}
	if err := h.svc.Ready(ctx); err != nil {
		h.log.Warn(r.Context(), "readiness check failed", "err", err)
		ready["status"] = "degraded"
		ready["components"] = map[string]any{"database": map[string]any{"ok": false}}
		util.WriteJSON(w, http.StatusServiceUnavailable, ready)
		return
	}
	ready["status"] = "ready"
	ready["components"] = map[string]any{"database": map[string]any{"ok": true}}
	util.WriteJSON(w, http.StatusOK, ready)
}
