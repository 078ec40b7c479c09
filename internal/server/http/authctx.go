package httpserver

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/tasktracker/internal/model"
)

type ctxKey string

const userIDKey ctxKey = "tt.userID"

// WithUserID stores authenticated user ID in context.
func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromCtx fetches user ID from context.
func UserIDFromCtx(ctx context.Context) (uuid.UUID, bool) {
	v := ctx.Value(userIDKey)
	if v == nil {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

const userKey ctxKey = "tt.user"

func withUser(ctx context.Context, u model.User) context.Context {
	return context.WithValue(WithUserID(ctx, u.ID), userKey, u)
}

func userFromCtx(ctx context.Context) (model.User, bool) {
	u, ok := ctx.Value(userKey).(model.User)
	return u, ok
}
