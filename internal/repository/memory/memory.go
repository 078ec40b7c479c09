// Package memory implements in-memory repositories for development and testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/tasktracker/internal/errs"
	"github.com/and161185/tasktracker/internal/model"
	"github.com/and161185/tasktracker/internal/repository"
)

// DB holds users and tasks behind a single mutex.
type DB struct {
	mu     sync.Mutex
	users  map[uuid.UUID]model.User
	byName map[string]uuid.UUID
	tasks  map[uuid.UUID]model.Task
	now    func() time.Time
}

// New creates an empty in-memory database.
func New() *DB {
	return &DB{
		users:  make(map[uuid.UUID]model.User),
		byName: make(map[string]uuid.UUID),
		tasks:  make(map[uuid.UUID]model.Task),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Ensure interfaces are met.
var _ repository.UserRepository = (*Users)(nil)
var _ repository.TaskRepository = (*Tasks)(nil)

// Users is the UserRepository view of DB.
type Users struct{ db *DB }

// Tasks is the TaskRepository view of DB.
type Tasks struct{ db *DB }

// Users returns the user repository.
func (db *DB) Users() *Users { return &Users{db: db} }

// Tasks returns the task repository.
func (db *DB) Tasks() *Tasks { return &Tasks{db: db} }

// --- UserRepository ---

// Create checks and inserts under one lock.
func (r *Users) Create(ctx context.Context, u *model.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db := r.db
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, taken := db.byName[u.Username]; taken {
		return errs.ErrAlreadyExists
	}
	u.CreatedAt = db.now()
	db.users[u.ID] = *u
	db.byName[u.Username] = u.ID
	return nil
}

// GetByID loads a user by ID.
func (r *Users) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	db := r.db
	db.mu.Lock()
	defer db.mu.Unlock()

	u, ok := db.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &u, nil
}

// GetByUsername loads a user by username.
func (r *Users) GetByUsername(_ context.Context, username string) (*model.User, error) {
	db := r.db
	db.mu.Lock()
	defer db.mu.Unlock()

	id, ok := db.byName[username]
	if !ok {
		return nil, errs.ErrNotFound
	}
	u := db.users[id]
	return &u, nil
}

// Count returns the number of stored users.
func (r *Users) Count() int {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return len(r.db.users)
}

// --- TaskRepository ---

// List returns the user's tasks ordered by creation time.
func (r *Tasks) List(_ context.Context, userID uuid.UUID) ([]model.Task, error) {
	db := r.db
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make([]model.Task, 0)
	for _, t := range db.tasks {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Get returns a task by ID.
func (r *Tasks) Get(_ context.Context, id uuid.UUID) (*model.Task, error) {
	db := r.db
	db.mu.Lock()
	defer db.mu.Unlock()

	t, ok := db.tasks[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &t, nil
}

// Create stores a new task.
func (r *Tasks) Create(_ context.Context, t *model.Task) error {
	db := r.db
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.tasks[t.ID]; exists {
		return errs.ErrAlreadyExists
	}
	now := db.now()
	t.CreatedAt, t.UpdatedAt = now, now
	db.tasks[t.ID] = *t
	return nil
}

// Update overwrites a task owned by t.UserID.
func (r *Tasks) Update(_ context.Context, t *model.Task) error {
	db := r.db
	db.mu.Lock()
	defer db.mu.Unlock()

	cur, ok := db.tasks[t.ID]
	if !ok || cur.UserID != t.UserID {
		return errs.ErrNotFound
	}
	cur.Title = t.Title
	cur.Description = t.Description
	cur.IsComplete = t.IsComplete
	cur.UpdatedAt = db.now()
	db.tasks[t.ID] = cur
	*t = cur
	return nil
}

// Delete removes a task owned by userID.
func (r *Tasks) Delete(_ context.Context, userID, id uuid.UUID) error {
	db := r.db
	db.mu.Lock()
	defer db.mu.Unlock()

	cur, ok := db.tasks[id]
	if !ok || cur.UserID != userID {
		return errs.ErrNotFound
	}
	delete(db.tasks, id)
	return nil
}
