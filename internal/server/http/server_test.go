package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	pkgcrypto "github.com/and161185/tasktracker/internal/crypto"
	"github.com/and161185/tasktracker/internal/limiter"
	"github.com/and161185/tasktracker/internal/model"
	"github.com/and161185/tasktracker/internal/repository/memory"
	"github.com/and161185/tasktracker/internal/service"
	"github.com/and161185/tasktracker/internal/token"
	"github.com/and161185/tasktracker/internal/validate"
)

const goodPassword = "Passw0rd!"

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// spyTasks counts mutations reaching the task layer.
type spyTasks struct {
	service.TaskService
	updates atomic.Int32
	deletes atomic.Int32
}

func (s *spyTasks) Update(ctx context.Context, userID, id uuid.UUID, in model.TaskInput) (*model.Task, error) {
	s.updates.Add(1)
	return s.TaskService.Update(ctx, userID, id, in)
}

func (s *spyTasks) Delete(ctx context.Context, userID, id uuid.UUID) error {
	s.deletes.Add(1)
	return s.TaskService.Delete(ctx, userID, id)
}

type env struct {
	h     http.Handler
	users *memory.Users
	tasks *spyTasks
	clk   *clock
	logs  *observer.ObservedLogs
}

func newEnv(t *testing.T, limit int) *env {
	t.Helper()

	db := memory.New()
	hasher, err := pkgcrypto.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	tokens, err := token.NewService([]byte("test-secret"), time.Hour)
	require.NoError(t, err)
	v, err := validate.New()
	require.NoError(t, err)

	clk := &clock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	lim := limiter.NewMemory(15*time.Minute, limit, limiter.WithClock(clk.Now))
	t.Cleanup(lim.Close)

	core, logs := observer.New(zap.DebugLevel)
	tasks := &spyTasks{TaskService: service.NewTaskService(db.Tasks())}
	auth := service.NewAuthService(db.Users(), hasher, tokens)
	srv := New(auth, tasks, v, lim, zap.New(core), WithMetricsHandler(http.NotFoundHandler()))

	return &env{h: srv.Handler(), users: db.Users(), tasks: tasks, clk: clk, logs: logs}
}

func (e *env) do(t *testing.T, method, path, tok string, body any) (*httptest.ResponseRecorder, envelopeOut) {
	t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)

	var out envelopeOut
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

// tamper flips the first character of the signature segment.
func tamper(tok string) string {
	i := strings.LastIndex(tok, ".") + 1
	c := byte('A')
	if tok[i] == 'A' {
		c = 'B'
	}
	return tok[:i] + string(c) + tok[i+1:]
}

type envelopeOut struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (e *env) register(t *testing.T, username string) {
	t.Helper()
	rec, _ := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"username": username, "password": goodPassword})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (e *env) login(t *testing.T, username string) string {
	t.Helper()
	rec, out := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": username, "password": goodPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}

func (e *env) createTask(t *testing.T, tok, title string) model.Task {
	t.Helper()
	rec, out := e.do(t, http.MethodPost, "/api/tasks", tok, map[string]any{"title": title})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var task model.Task
	require.NoError(t, json.Unmarshal(out.Data, &task))
	return task
}

func TestRegisterLoginAndTasks(t *testing.T) {
	t.Parallel()
	e := newEnv(t, 100)

	e.register(t, "alice")
	tok := e.login(t, "alice")

	rec, out := e.do(t, http.MethodGet, "/api/auth/me", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(out.Data), `"username":"alice"`)

	rec, out = e.do(t, http.MethodGet, "/api/tasks", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(out.Data))

	task := e.createTask(t, tok, "buy milk")
	assert.Equal(t, "buy milk", task.Title)

	rec, out = e.do(t, http.MethodPut, "/api/tasks/"+task.ID.String(), tok,
		map[string]any{"id": task.ID, "title": "buy milk", "isComplete": true, "userId": task.UserID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, string(out.Data), `"isComplete":true`)

	rec, out = e.do(t, http.MethodGet, "/api/tasks/"+task.ID.String(), tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, statusSuccess, out.Status)

	rec, _ = e.do(t, http.MethodDelete, "/api/tasks/"+task.ID.String(), tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, out = e.do(t, http.MethodGet, "/api/tasks/"+task.ID.String(), tok, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, msgTaskNotFound, out.Message)
}

func TestRegister_ValidationFailureCreatesNothing(t *testing.T) {
	t.Parallel()
	e := newEnv(t, 100)

	rec, out := e.do(t, http.MethodPost, "/api/auth/register", "",
		map[string]string{"username": "bob", "password": "alllowercase1!"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, statusError, out.Status)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, "password", out.Errors[0].Field)
	assert.Equal(t, 0, e.users.Count())

	rec, out = e.do(t, http.MethodPost, "/api/auth/register", "",
		map[string]string{"username": "x", "password": "short"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, out.Errors, 2, "violations accumulate across fields")

	rec, out = e.do(t, http.MethodPost, "/api/auth/register", "", "{not json")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, "body", out.Errors[0].Field)
}

func TestRegister_Conflict(t *testing.T) {
	t.Parallel()
	e := newEnv(t, 100)

	e.register(t, "carol")
	rec, out := e.do(t, http.MethodPost, "/api/auth/register", "",
		map[string]string{"username": "carol", "password": goodPassword})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, msgConflict, out.Message)
	assert.Equal(t, 1, e.users.Count())
}

func TestLogin_FailuresIndistinguishable(t *testing.T) {
	t.Parallel()
	e := newEnv(t, 100)
	e.register(t, "dave")

	wrongPw, _ := e.do(t, http.MethodPost, "/api/auth/login", "",
		map[string]string{"username": "dave", "password": "Wrong0rd!"})
	noUser, _ := e.do(t, http.MethodPost, "/api/auth/login", "",
		map[string]string{"username": "nobody", "password": goodPassword})

	require.Equal(t, http.StatusUnauthorized, wrongPw.Code)
	require.Equal(t, wrongPw.Code, noUser.Code)
	require.Equal(t, wrongPw.Body.String(), noUser.Body.String())
}

func TestTasks_RequireAuthentication(t *testing.T) {
	t.Parallel()
	e := newEnv(t, 100)
	e.register(t, "erin")
	tok := e.login(t, "erin")
	ghost := e.createTask(t, tok, "x")

	cases := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"not bearer", "Basic Zm9vOmJhcg=="},
		{"empty bearer", "Bearer   "},
		{"garbage", "Bearer not.a.jwt"},
		{"tampered", "Bearer " + tamper(tok)},
	}
	var bodies []string
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPut, "/api/tasks/"+ghost.ID.String(), strings.NewReader(`{"title":"y"}`))
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		e.h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code, tc.name)
		bodies = append(bodies, rec.Body.String())
	}
	for _, b := range bodies[1:] {
		assert.Equal(t, bodies[0], b)
	}
	assert.Zero(t, e.tasks.updates.Load(), "unauthenticated requests must not reach the task layer")
}

func TestTasks_ForeignTaskNeverReachesMutation(t *testing.T) {
	t.Parallel()
	e := newEnv(t, 100)
	e.register(t, "usera")
	e.register(t, "userb")
	tokA := e.login(t, "usera")
	tokB := e.login(t, "userb")
	taskB := e.createTask(t, tokB, "b's task")

	rec, out := e.do(t, http.MethodPut, "/api/tasks/"+taskB.ID.String(), tokA,
		map[string]any{"title": "hijacked", "isComplete": true})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, msgTaskNotFound, out.Message)

	rec, _ = e.do(t, http.MethodDelete, "/api/tasks/"+taskB.ID.String(), tokA, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	assert.Zero(t, e.tasks.updates.Load())
	assert.Zero(t, e.tasks.deletes.Load())
	assert.Equal(t, 2, e.logs.FilterMessage("authorization denied").Len())

	// Same response as for a task that does not exist at all.
	missing, _ := e.do(t, http.MethodPut, "/api/tasks/"+uuid.Must(uuid.NewV4()).String(), tokA,
		map[string]any{"title": "x"})
	require.Equal(t, rec.Code, missing.Code)

	rec, out = e.do(t, http.MethodGet, "/api/tasks/"+taskB.ID.String(), tokB, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(out.Data), `"title":"b's task"`)

	rec, out = e.do(t, http.MethodGet, "/api/tasks", tokA, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(out.Data))
}

func TestAuthRoutes_RateLimited(t *testing.T) {
	t.Parallel()
	const limit = 3
	e := newEnv(t, limit)
	creds := map[string]string{"username": "frank", "password": goodPassword}

	for i := 0; i < limit; i++ {
		rec, _ := e.do(t, http.MethodPost, "/api/auth/login", "", creds)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "3", rec.Header().Get("RateLimit-Limit"))
	}

	rec, out := e.do(t, http.MethodPost, "/api/auth/login", "", creds)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, msgRateLimited, out.Message)
	assert.Equal(t, "900", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("RateLimit-Remaining"))
	assert.Equal(t, "900", rec.Header().Get("RateLimit-Reset"))

	// Task routes are not limited.
	rec, _ = e.do(t, http.MethodGet, "/api/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	e.clk.Advance(15 * time.Minute)
	rec, _ = e.do(t, http.MethodPost, "/api/auth/login", "", creds)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (limiter.Decision, error) {
	return limiter.Decision{}, errors.New("db down at 10.0.0.5")
}

func TestUnexpectedErrorIsOpaque(t *testing.T) {
	t.Parallel()
	v, err := validate.New()
	require.NoError(t, err)
	srv := New(nil, nil, v, brokenLimiter{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
	assert.Contains(t, rec.Body.String(), msgInternal)
}

func TestHealthAndUnknownRoute(t *testing.T) {
	t.Parallel()
	e := newEnv(t, 100)

	rec, out := e.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, statusSuccess, out.Status)

	rec, out = e.do(t, http.MethodGet, "/nope", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, statusError, out.Status)
}
