package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/tasktracker/internal/errs"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Client-facing messages. Internal detail never goes into a response body.
const (
	msgValidation   = "Validation failed"
	msgConflict     = "Username already exists"
	msgAuthFailed   = "Invalid or missing credentials"
	msgRateLimited  = "Too many requests, please try again later."
	msgTaskNotFound = "Task not found"
	msgNotFound     = "Not found"
	msgInternal     = "Internal server error"
)

// maxBody caps request payloads.
const maxBody = 1 << 20

type envelope struct {
	Status  string            `json:"status"`
	Data    any               `json:"data,omitempty"`
	Message string            `json:"message,omitempty"`
	Errors  []errs.FieldError `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Status: statusSuccess, Data: data})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	st := statusSuccess
	if status >= http.StatusBadRequest {
		st = statusError
	}
	writeJSON(w, status, envelope{Status: st, Message: msg})
}

// readBody reads at most maxBody bytes. Oversized bodies are a validation error.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return nil, &errs.ValidationError{Fields: []errs.FieldError{{
			Field:   "body",
			Message: fmt.Sprintf("Body must be at most %d bytes", tooBig.Limit),
		}}}
	}
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return raw, nil
}

// seconds rounds d up to whole seconds for Retry-After style headers.
func seconds(d time.Duration) string {
	return strconv.FormatInt(int64(math.Ceil(d.Seconds())), 10)
}

// fail maps err onto the response taxonomy.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve  *errs.ValidationError
		rle *errs.RateLimitError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, envelope{Status: statusError, Message: msgValidation, Errors: ve.Fields})
	case errors.Is(err, errs.ErrAlreadyExists):
		writeMessage(w, http.StatusConflict, msgConflict)
	case errors.Is(err, errs.ErrUnauthorized), errors.Is(err, errs.ErrInvalidToken):
		s.log.Debug("authentication failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeMessage(w, http.StatusUnauthorized, msgAuthFailed)
	case errors.Is(err, errs.ErrForbidden):
		uid, _ := UserIDFromCtx(r.Context())
		s.log.Warn("authorization denied",
			zap.String("user", uid.String()),
			zap.String("path", r.URL.Path),
		)
		writeMessage(w, http.StatusNotFound, msgTaskNotFound)
	case errors.Is(err, errs.ErrNotFound):
		writeMessage(w, http.StatusNotFound, msgTaskNotFound)
	case errors.As(err, &rle):
		w.Header().Set("Retry-After", seconds(rle.RetryAfter))
		writeMessage(w, http.StatusTooManyRequests, msgRateLimited)
	default:
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeMessage(w, http.StatusInternalServerError, msgInternal)
	}
}
