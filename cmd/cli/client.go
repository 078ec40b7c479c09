package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	u "github.com/gofrs/uuid/v5"
)

// apiError is a non-2xx response decoded from the server envelope.
type apiError struct {
	Code    int
	Message string
	Fields  []fieldError
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "http %d: %s", e.Code, e.Message)
	for _, f := range e.Fields {
		fmt.Fprintf(&b, "\n  %s: %s", f.Field, f.Message)
	}
	return b.String()
}

type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Errors  []fieldError    `json:"errors"`
}

type task struct {
	ID          u.UUID    `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	IsComplete  bool      `json:"isComplete"`
	CreatedAt   time.Time `json:"createdAt"`
}

type taskInput struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	IsComplete  bool    `json:"isComplete"`
}

// client talks to the tasktracker HTTP API.
type client struct {
	base  string
	token string
	hc    *http.Client
}

func newClient(base, token string, hc *http.Client) *client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &client{base: strings.TrimRight(base, "/"), token: token, hc: hc}
}

func (c *client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("http %d: decode response: %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return &apiError{Code: resp.StatusCode, Message: env.Message, Fields: env.Errors}
	}
	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

func (c *client) register(ctx context.Context, username, password string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/register", map[string]string{"username": username, "password": password}, &out)
	return out.ID, err
}

func (c *client) login(ctx context.Context, username, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{"username": username, "password": password}, &out)
	return out.Token, err
}

func (c *client) listTasks(ctx context.Context) ([]task, error) {
	var out []task
	err := c.do(ctx, http.MethodGet, "/api/tasks", nil, &out)
	return out, err
}

func (c *client) getTask(ctx context.Context, id string) (task, error) {
	var out task
	err := c.do(ctx, http.MethodGet, "/api/tasks/"+id, nil, &out)
	return out, err
}

func (c *client) addTask(ctx context.Context, in taskInput) (task, error) {
	var out task
	err := c.do(ctx, http.MethodPost, "/api/tasks", in, &out)
	return out, err
}

// setComplete reads the task and writes it back with the new flag, like the
// web client does.
func (c *client) setComplete(ctx context.Context, id string, done bool) (task, error) {
	cur, err := c.getTask(ctx, id)
	if err != nil {
		return task{}, err
	}
	var out task
	in := taskInput{Title: cur.Title, Description: cur.Description, IsComplete: done}
	err = c.do(ctx, http.MethodPut, "/api/tasks/"+id, in, &out)
	return out, err
}

func (c *client) removeTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/tasks/"+id, nil, nil)
}
