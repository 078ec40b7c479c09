// Package httpserver exposes the auth and task API over HTTP.
package httpserver

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/and161185/tasktracker/internal/limiter"
	"github.com/and161185/tasktracker/internal/service"
	"github.com/and161185/tasktracker/internal/validate"
)

// Server routes HTTP requests to the auth and task services.
type Server struct {
	auth       service.AuthService
	tasks      service.TaskService
	validator  *validate.Validator
	limiter    limiter.Limiter
	log        *zap.Logger
	trustProxy bool
	metrics    http.Handler
}

// Option customizes a Server.
type Option func(*Server)

// WithTrustProxy makes the rate limiter key on X-Forwarded-For.
func WithTrustProxy(v bool) Option { return func(s *Server) { s.trustProxy = v } }

// WithMetricsHandler replaces the default Prometheus handler on /metrics.
func WithMetricsHandler(h http.Handler) Option { return func(s *Server) { s.metrics = h } }

// New constructs Server.
func New(auth service.AuthService, tasks service.TaskService, v *validate.Validator, lim limiter.Limiter, log *zap.Logger, opts ...Option) *Server {
	s := &Server{
		auth:      auth,
		tasks:     tasks,
		validator: v,
		limiter:   lim,
		log:       log,
		metrics:   promhttp.Handler(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the root http.Handler.
//
// Auth routes: Recover, Logging, rate limit, then validation in the handler.
// Task routes: Recover, Logging, authenticate, ownership for {id}, handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	authGroup := []Middleware{s.rateLimit}
	s.route(mux, "POST /api/auth/register", http.HandlerFunc(s.handleRegister), authGroup...)
	s.route(mux, "POST /api/auth/login", http.HandlerFunc(s.handleLogin), authGroup...)
	s.route(mux, "GET /api/auth/me", http.HandlerFunc(s.handleMe), s.rateLimit, s.authenticate)

	s.route(mux, "GET /api/tasks", http.HandlerFunc(s.handleListTasks), s.authenticate)
	s.route(mux, "POST /api/tasks", http.HandlerFunc(s.handleCreateTask), s.authenticate)
	owned := []Middleware{s.authenticate, s.requireTaskOwner}
	s.route(mux, "GET /api/tasks/{id}", http.HandlerFunc(s.handleGetTask), owned...)
	s.route(mux, "PUT /api/tasks/{id}", http.HandlerFunc(s.handleUpdateTask), owned...)
	s.route(mux, "DELETE /api/tasks/{id}", http.HandlerFunc(s.handleDeleteTask), owned...)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, map[string]any{"ok": true})
	})
	mux.Handle("GET /metrics", s.metrics)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, msgNotFound)
	})

	return Chain(mux, Recover(s.log), Logging(s.log))
}

func (s *Server) route(mux *http.ServeMux, pattern string, h http.Handler, mws ...Middleware) {
	mux.Handle(pattern, Chain(h, append([]Middleware{instrument(pattern)}, mws...)...))
}
