package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/and161185/tasktracker/internal/errs"
	"github.com/and161185/tasktracker/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

var taskCols = []string{"id", "user_id", "title", "description", "is_complete", "created_at", "updated_at"}

func ptr(s string) *string { return &s }

func TestTaskRepo_List(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewTaskRepo(db)
	userID := uuid.Must(uuid.NewV4())
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM tasks WHERE user_id=$1 ORDER BY created_at, id`)).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows(taskCols).
			AddRow(uuid.Must(uuid.NewV4()), userID, "a", ptr("desc"), false, now, now).
			AddRow(uuid.Must(uuid.NewV4()), userID, "b", ptr("more"), true, now, now))

	got, err := r.List(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "a", got[0].Title)
	require.Equal(t, "desc", *got[0].Description)
	require.True(t, got[1].IsComplete)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepo_Get(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewTaskRepo(db)
	id, owner := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	now := time.Now()
	sel := regexp.QuoteMeta(`FROM tasks WHERE id=$1`)

	mock.ExpectQuery(sel).WithArgs(id).
		WillReturnRows(pgxmock.NewRows(taskCols).AddRow(id, owner, "t", ptr("d"), false, now, now))
	got, err := r.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, owner, got.UserID)

	mock.ExpectQuery(sel).WithArgs(id).WillReturnError(pgx.ErrNoRows)
	_, err = r.Get(context.Background(), id)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestTaskRepo_CreateUpdate(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewTaskRepo(db)
	now := time.Now()
	task := &model.Task{
		ID:     uuid.Must(uuid.NewV4()),
		UserID: uuid.Must(uuid.NewV4()),
		Title:  "write tests",
	}

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO tasks (id, user_id, title, description, is_complete) VALUES ($1, $2, $3, $4, $5) RETURNING created_at, updated_at`)).
		WithArgs(task.ID, task.UserID, task.Title, task.Description, false).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	require.NoError(t, r.Create(context.Background(), task))
	require.Equal(t, now, task.CreatedAt)

	upd := regexp.QuoteMeta(`UPDATE tasks SET title=$3, description=$4, is_complete=$5, updated_at=now() WHERE id=$1 AND user_id=$2`)
	task.IsComplete = true
	later := now.Add(time.Minute)
	mock.ExpectQuery(upd).
		WithArgs(task.ID, task.UserID, task.Title, task.Description, true).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, later))
	require.NoError(t, r.Update(context.Background(), task))
	require.Equal(t, later, task.UpdatedAt)

	mock.ExpectQuery(upd).
		WithArgs(task.ID, task.UserID, task.Title, task.Description, true).
		WillReturnError(pgx.ErrNoRows)
	require.ErrorIs(t, r.Update(context.Background(), task), errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepo_Delete(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewTaskRepo(db)
	id, userID := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	del := regexp.QuoteMeta(`DELETE FROM tasks WHERE id=$1 AND user_id=$2`)

	mock.ExpectExec(del).WithArgs(id, userID).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, r.Delete(context.Background(), userID, id))

	mock.ExpectExec(del).WithArgs(id, userID).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	require.ErrorIs(t, r.Delete(context.Background(), userID, id), errs.ErrNotFound)
}
