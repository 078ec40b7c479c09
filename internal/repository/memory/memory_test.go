package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/and161185/tasktracker/internal/errs"
	"github.com/and161185/tasktracker/internal/model"
)

func TestUsers_CreateAndLookup(t *testing.T) {
	t.Parallel()
	users := New().Users()
	ctx := context.Background()

	u := &model.User{ID: uuid.Must(uuid.NewV4()), Username: "alice", PwdHash: "h"}
	require.NoError(t, users.Create(ctx, u))
	assert.False(t, u.CreatedAt.IsZero())

	got, err := users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	got, err = users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	dup := &model.User{ID: uuid.Must(uuid.NewV4()), Username: "alice", PwdHash: "other"}
	require.ErrorIs(t, users.Create(ctx, dup), errs.ErrAlreadyExists)

	got, err = users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "h", got.PwdHash, "duplicate must not overwrite")

	_, err = users.GetByID(ctx, uuid.Must(uuid.NewV4()))
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUsers_ConcurrentCreateSameName(t *testing.T) {
	t.Parallel()
	users := New().Users()

	const n = 32
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- users.Create(context.Background(), &model.User{ID: uuid.Must(uuid.NewV4()), Username: "race"})
		}()
	}
	wg.Wait()
	close(results)

	var ok, conflict int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, errs.ErrAlreadyExists):
			conflict++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflict)
	assert.Equal(t, 1, users.Count())
}

func TestUsers_CreateHonorsCancellation(t *testing.T) {
	t.Parallel()
	users := New().Users()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := users.Create(ctx, &model.User{ID: uuid.Must(uuid.NewV4()), Username: "late"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, users.Count())
}

func TestTasks_CRUDScopedByOwner(t *testing.T) {
	t.Parallel()
	tasks := New().Tasks()
	ctx := context.Background()
	alice, bob := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())

	tk := &model.Task{ID: uuid.Must(uuid.NewV4()), UserID: alice, Title: "a"}
	require.NoError(t, tasks.Create(ctx, tk))
	require.NoError(t, tasks.Create(ctx, &model.Task{ID: uuid.Must(uuid.NewV4()), UserID: bob, Title: "b"}))

	list, err := tasks.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0].Title)

	foreign := &model.Task{ID: tk.ID, UserID: bob, Title: "hijack"}
	require.ErrorIs(t, tasks.Update(ctx, foreign), errs.ErrNotFound)
	require.ErrorIs(t, tasks.Delete(ctx, bob, tk.ID), errs.ErrNotFound)

	tk.IsComplete = true
	require.NoError(t, tasks.Update(ctx, tk))
	got, err := tasks.Get(ctx, tk.ID)
	require.NoError(t, err)
	assert.True(t, got.IsComplete)
	assert.Equal(t, "a", got.Title)

	require.NoError(t, tasks.Delete(ctx, alice, tk.ID))
	_, err = tasks.Get(ctx, tk.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}
