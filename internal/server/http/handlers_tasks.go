package httpserver

import (
	"net/http"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/tasktracker/internal/errs"
	"github.com/and161185/tasktracker/internal/model"
	"github.com/and161185/tasktracker/internal/validate"
)

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserIDFromCtx(r.Context())
	list, err := s.tasks.List(r.Context(), uid)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []model.Task{}
	}
	writeData(w, http.StatusOK, list)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserIDFromCtx(r.Context())
	in, ok := s.decodeTask(w, r)
	if !ok {
		return
	}
	t, err := s.tasks.Create(r.Context(), uid, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, t)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.taskRef(w, r)
	if !ok {
		return
	}
	t, err := s.tasks.Get(r.Context(), uid, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.taskRef(w, r)
	if !ok {
		return
	}
	in, ok := s.decodeTask(w, r)
	if !ok {
		return
	}
	t, err := s.tasks.Update(r.Context(), uid, id, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.taskRef(w, r)
	if !ok {
		return
	}
	if err := s.tasks.Delete(r.Context(), uid, id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Task deleted")
}

// taskRef returns the caller and the {id} path segment. Ownership has
// already been checked by requireTaskOwner.
func (s *Server) taskRef(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	uid, ok := UserIDFromCtx(r.Context())
	if !ok {
		s.fail(w, r, errs.ErrUnauthorized)
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.FromString(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, errs.ErrNotFound)
		return uuid.Nil, uuid.Nil, false
	}
	return uid, id, true
}

func (s *Server) decodeTask(w http.ResponseWriter, r *http.Request) (model.TaskInput, bool) {
	raw, err := readBody(w, r)
	if err != nil {
		s.fail(w, r, err)
		return model.TaskInput{}, false
	}
	in, err := validate.Decode[model.TaskInput](s.validator, validate.Task, raw)
	if err != nil {
		s.fail(w, r, err)
		return model.TaskInput{}, false
	}
	return in, true
}
