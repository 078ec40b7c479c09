package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/tasktracker/internal/errs"
	"github.com/and161185/tasktracker/internal/metrics"
	"github.com/and161185/tasktracker/internal/validate"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userView struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

type tokenView struct {
	Token string `json:"token"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	in, err := validate.Decode[credentials](s.validator, validate.Register, raw)
	if err != nil {
		metrics.AuthOutcome(metrics.OpRegister, metrics.ResultInvalid)
		s.fail(w, r, err)
		return
	}
	u, err := s.auth.Register(r.Context(), in.Username, in.Password)
	switch {
	case errors.Is(err, errs.ErrAlreadyExists):
		metrics.AuthOutcome(metrics.OpRegister, metrics.ResultConflict)
		s.fail(w, r, err)
		return
	case err != nil:
		metrics.AuthOutcome(metrics.OpRegister, metrics.ResultError)
		s.fail(w, r, err)
		return
	}
	metrics.AuthOutcome(metrics.OpRegister, metrics.ResultOK)
	writeJSON(w, http.StatusCreated, envelope{
		Status:  statusSuccess,
		Message: "User registered successfully",
		Data:    userView{ID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt},
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	in, err := validate.Decode[credentials](s.validator, validate.Login, raw)
	if err != nil {
		metrics.AuthOutcome(metrics.OpLogin, metrics.ResultInvalid)
		s.fail(w, r, err)
		return
	}
	tok, err := s.auth.Login(r.Context(), in.Username, in.Password)
	switch {
	case errors.Is(err, errs.ErrUnauthorized):
		metrics.AuthOutcome(metrics.OpLogin, metrics.ResultDenied)
		s.fail(w, r, err)
		return
	case err != nil:
		metrics.AuthOutcome(metrics.OpLogin, metrics.ResultError)
		s.fail(w, r, err)
		return
	}
	metrics.AuthOutcome(metrics.OpLogin, metrics.ResultOK)
	writeData(w, http.StatusOK, tokenView{Token: tok.AccessToken})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := userFromCtx(r.Context())
	if !ok {
		s.fail(w, r, errs.ErrUnauthorized)
		return
	}
	writeData(w, http.StatusOK, userView{ID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt})
}
