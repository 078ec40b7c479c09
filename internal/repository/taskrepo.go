package repository

import (
	"context"

	"github.com/and161185/tasktracker/internal/model"
	"github.com/gofrs/uuid/v5"
)

// TaskRepository provides access to tasks. Ownership is enforced by callers;
// mutations are additionally scoped by user ID.
type TaskRepository interface {
	// List returns the user's tasks, oldest first.
	List(ctx context.Context, userID uuid.UUID) ([]model.Task, error)
	// Get returns a task by ID regardless of owner.
	Get(ctx context.Context, id uuid.UUID) (*model.Task, error)
	// Create inserts a task; timestamps are filled in.
	Create(ctx context.Context, t *model.Task) error
	// Update overwrites title, description and completion of the user's task.
	Update(ctx context.Context, t *model.Task) error
	// Delete removes the user's task.
	Delete(ctx context.Context, userID, id uuid.UUID) error
}
