package service

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/tasktracker/internal/errs"
	"github.com/and161185/tasktracker/internal/model"
	"github.com/and161185/tasktracker/internal/repository"
)

// TaskService defines operations over a user's tasks.
type TaskService interface {
	// List returns all tasks of userID.
	List(ctx context.Context, userID uuid.UUID) ([]model.Task, error)
	// Owner returns the owning user of a task.
	Owner(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	// Get returns one task if userID owns it.
	Get(ctx context.Context, userID, id uuid.UUID) (*model.Task, error)
	// Create adds a task for userID.
	Create(ctx context.Context, userID uuid.UUID, in model.TaskInput) (*model.Task, error)
	// Update replaces the mutable fields of a task owned by userID.
	Update(ctx context.Context, userID, id uuid.UUID, in model.TaskInput) (*model.Task, error)
	// Delete removes a task owned by userID.
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type TaskServiceImpl struct {
	repo repository.TaskRepository
}

// NewTaskService constructs TaskService.
func NewTaskService(repo repository.TaskRepository) *TaskServiceImpl {
	return &TaskServiceImpl{repo: repo}
}

// List returns the user's tasks.
func (s *TaskServiceImpl) List(ctx context.Context, userID uuid.UUID) ([]model.Task, error) {
	if userID == uuid.Nil {
		return nil, errors.New("validation: empty userID")
	}
	return s.repo.List(ctx, userID)
}

// Owner looks up who owns task id.
func (s *TaskServiceImpl) Owner(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return uuid.Nil, err
	}
	return t.UserID, nil
}

// Get returns the task when owned by userID, errs.ErrForbidden otherwise.
func (s *TaskServiceImpl) Get(ctx context.Context, userID, id uuid.UUID) (*model.Task, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, errs.ErrForbidden
	}
	return t, nil
}

// Create stores a new task owned by userID.
func (s *TaskServiceImpl) Create(ctx context.Context, userID uuid.UUID, in model.TaskInput) (*model.Task, error) {
	if userID == uuid.Nil {
		return nil, errors.New("validation: empty userID")
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	t := &model.Task{
		ID:          id,
		UserID:      userID,
		Title:       in.Title,
		Description: in.Description,
		IsComplete:  in.IsComplete,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Update replaces title, description and completion.
func (s *TaskServiceImpl) Update(ctx context.Context, userID, id uuid.UUID, in model.TaskInput) (*model.Task, error) {
	if userID == uuid.Nil || id == uuid.Nil {
		return nil, errors.New("validation: empty userID/id")
	}
	t := &model.Task{
		ID:          id,
		UserID:      userID,
		Title:       in.Title,
		Description: in.Description,
		IsComplete:  in.IsComplete,
	}
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Delete removes the task.
func (s *TaskServiceImpl) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if userID == uuid.Nil || id == uuid.Nil {
		return errors.New("validation: empty userID/id")
	}
	return s.repo.Delete(ctx, userID, id)
}
