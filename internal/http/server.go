package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"reco-chatbot/internal/core"
)

// Listener delivers the IDs of sessions whose summary became available.
// db.Notifier and db.LocalNotifier both satisfy it.
type Listener interface {
	Listen(ctx context.Context) (<-chan string, error)
}

// Server exposes the check-in workflow over a JSON API.  It implements
// http.Handler so it can be passed to http.ListenAndServe.
type Server struct {
	checkins *core.CheckinService
	listener Listener
	logger   *slog.Logger
	origins  []string
	timeout  time.Duration
	router   chi.Router
}

type Option func(*Server)

// WithListener enables server-sent summary updates.  Without a listener the
// stream endpoint only reports summaries that already exist.
func WithListener(l Listener) Option { return func(s *Server) { s.listener = l } }

func WithLogger(l *slog.Logger) Option { return func(s *Server) { s.logger = l } }

// WithAllowedOrigins sets the CORS origins accepted by the API.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithRequestTimeout bounds every non-streaming request.
func WithRequestTimeout(d time.Duration) Option { return func(s *Server) { s.timeout = d } }

// NewServer constructs a Server around a check-in service.
func NewServer(checkins *core.CheckinService, opts ...Option) *Server {
	s := &Server{
		checkins: checkins,
		logger:   slog.Default(),
		origins:  []string{"http://localhost:*", "http://127.0.0.1:*"},
		timeout:  90 * time.Second,
	}
	for _, o := range opts {
		o(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.timeout))
			r.Post("/patients", s.handleSignUp)
			r.Post("/patients/{id}/checkins", s.handleStart)
			r.Post("/sessions/{id}/messages", s.handlePostMessage)
			r.Post("/sessions/{id}/end", s.handleEnd)
			r.Get("/sessions/{id}", s.handleSession)
			r.Get("/doctor/sessions", s.handleDoctorSessions)
		})
		r.Get("/doctor/sessions/{id}/stream", s.handleSummaryStream)
	})
	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
