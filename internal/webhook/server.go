// Package webhook serves the dialogue fulfillment endpoint, the write
// triggers for entity documents, and the debug API.
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/user/blurt/internal/broadcast"
	"github.com/user/blurt/internal/device"
	"github.com/user/blurt/internal/gateway"
	"github.com/user/blurt/internal/manifest"
	"github.com/user/blurt/internal/propagate"
	"github.com/user/blurt/internal/types"
)

// Syncer runs one group reconciliation pass.
type Syncer interface {
	Run(ctx context.Context) (broadcast.Report, error)
}

// Deps are the components behind the endpoints. Nil members disable the
// endpoints that need them.
type Deps struct {
	Gateway   *gateway.Gateway
	Sessions  types.SessionStore
	Journal   types.Journal
	Writer    *propagate.Writer
	Sync      Syncer
	Manifests *manifest.Builder
	Devices   *device.Hub
}

// Auth is the basic-auth credential. An empty hash leaves the API open.
type Auth struct {
	User         string
	PasswordHash string
}

// Server is the HTTP handler for every endpoint.
type Server struct {
	deps   Deps
	auth   Auth
	logger *slog.Logger
	router chi.Router
}

func NewServer(deps Deps, auth Auth, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{deps: deps, auth: auth, logger: logger}
	if auth.PasswordHash == "" {
		logger.Warn("http auth disabled: no password hash configured")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)
	if deps.Devices != nil {
		r.Get("/ws/devices/{signal_id}", device.Handler(deps.Devices, func(r *http.Request) string {
			return chi.URLParam(r, "signal_id")
		}))
	}

	r.Group(func(r chi.Router) {
		r.Use(s.basicAuth)
		r.Post("/fulfillment", s.handleFulfillment)
		r.Post("/sync", s.handleSync)
		r.Route("/api", func(r chi.Router) {
			r.Put("/events/{id}", s.handlePutItem(types.KindEvent))
			r.Delete("/events/{id}", s.handleDeleteItem(types.KindEvent))
			r.Put("/announcements/{id}", s.handlePutItem(types.KindAnnouncement))
			r.Delete("/announcements/{id}", s.handleDeleteItem(types.KindAnnouncement))
			r.Put("/groups/{id}", s.handlePutGroup)
			r.Delete("/groups/{id}", s.handleDeleteGroup)
			r.Get("/users/{id}/manifest", s.handleManifest)
			r.Get("/sessions", s.handleSessions)
			r.Get("/sessions/{id}/journal", s.handleJournal)
		})
	})
	s.router = r
	return s
}

// ServeHTTP delegates to the router, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.auth.PasswordHash == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(s.auth.User)) != 1 ||
			bcrypt.CompareHashAndPassword([]byte(s.auth.PasswordHash), []byte(pass)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="blurt"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
