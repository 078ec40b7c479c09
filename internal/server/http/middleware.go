package httpserver

import (
	"errors"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/tasktracker/internal/errs"
	"github.com/and161185/tasktracker/internal/metrics"
)

// Middleware is one stage of the request pipeline. A stage either calls the
// next handler or writes a terminal response.
type Middleware func(http.Handler) http.Handler

// Chain wraps h so that mws run in the given order.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) code() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// Logging logs one line per request with metadata only, never payloads.
func Logging(log *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			log.Info("http",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.code()),
				zap.Duration("dur", time.Since(start)),
				zap.String("remote", r.RemoteAddr),
			)
		})
	}
}

// Recover turns a handler panic into an opaque 500.
func Recover(log *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rv := recover(); rv != nil {
					if rv == http.ErrAbortHandler {
						panic(rv)
					}
					log.Error("panic",
						zap.Any("reason", rv),
						zap.ByteString("stack", debug.Stack()),
						zap.String("path", r.URL.Path),
					)
					writeMessage(w, http.StatusInternalServerError, msgInternal)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// instrument records latency under the route pattern.
func instrument(route string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			metrics.ObserveRequest(route, strconv.Itoa(rec.code()), time.Since(start))
		})
	}
}

// rateLimit counts every request per client address and rejects the ones
// past the window cap.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d, err := s.limiter.Allow(r.Context(), clientIP(r, s.trustProxy))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		h := w.Header()
		h.Set("RateLimit-Limit", strconv.Itoa(d.Limit))
		h.Set("RateLimit-Remaining", strconv.Itoa(d.Remaining))
		h.Set("RateLimit-Reset", seconds(d.ResetIn))
		if !d.Allowed {
			metrics.RateLimited()
			s.fail(w, r, &errs.RateLimitError{RetryAfter: d.RetryAfter})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authenticate resolves the bearer token to a user and stores its ID in the
// request context. Any failure ends the request with 401.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			metrics.AuthOutcome(metrics.OpAuthenticate, metrics.ResultDenied)
			s.fail(w, r, errs.ErrUnauthorized)
			return
		}
		u, err := s.auth.Authenticate(r.Context(), tok)
		if err != nil {
			if errors.Is(err, errs.ErrUnauthorized) {
				metrics.AuthOutcome(metrics.OpAuthenticate, metrics.ResultDenied)
			} else {
				metrics.AuthOutcome(metrics.OpAuthenticate, metrics.ResultError)
			}
			s.fail(w, r, err)
			return
		}
		metrics.AuthOutcome(metrics.OpAuthenticate, metrics.ResultOK)
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), u)))
	})
}

// requireTaskOwner lets the request through only when the authenticated user
// owns the task named by the {id} path segment. Foreign and missing tasks
// get the same 404.
func (s *Server) requireTaskOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromCtx(r.Context())
		if !ok {
			s.fail(w, r, errs.ErrUnauthorized)
			return
		}
		id, err := uuid.FromString(r.PathValue("id"))
		if err != nil {
			writeMessage(w, http.StatusNotFound, msgTaskNotFound)
			return
		}
		owner, err := s.tasks.Owner(r.Context(), id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if owner != uid {
			metrics.AuthzDenied()
			s.log.Warn("authorization denied",
				zap.String("user", uid.String()),
				zap.String("task", id.String()),
				zap.String("method", r.Method),
			)
			writeMessage(w, http.StatusNotFound, msgTaskNotFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the token from "Bearer <token>".
func bearerToken(header string) (string, bool) {
	v := strings.TrimSpace(header)
	if len(v) < 7 || !strings.EqualFold(v[:7], "bearer ") {
		return "", false
	}
	t := strings.TrimSpace(v[7:])
	return t, t != ""
}
