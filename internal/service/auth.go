// Package service contains application services for authentication and tasks.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/tasktracker/internal/errs"
	"github.com/and161185/tasktracker/internal/model"
	"github.com/and161185/tasktracker/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// PasswordHasher hashes and verifies secrets.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) bool
	// VerifyDummy costs as much as Verify and always fails.
	VerifyDummy(password string) bool
}

// TokenService issues and verifies session tokens.
type TokenService interface {
	Issue(userID uuid.UUID) (model.Tokens, error)
	Verify(token string) (model.Claims, error)
}

// AuthService defines registration, login and request authentication.
type AuthService interface {
	// Register creates a new user with a salted password hash.
	Register(ctx context.Context, username, password string) (model.User, error)
	// Login checks credentials and issues a session token.
	Login(ctx context.Context, username, password string) (model.Tokens, error)
	// Authenticate resolves a bearer token to an existing user.
	Authenticate(ctx context.Context, token string) (model.User, error)
}

type AuthServiceImpl struct {
	users  repository.UserRepository
	hasher PasswordHasher
	tokens TokenService
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, hasher PasswordHasher, tokens TokenService) *AuthServiceImpl {
	return &AuthServiceImpl{users: users, hasher: hasher, tokens: tokens}
}

// Register creates a new user record. A taken username yields errs.ErrAlreadyExists.
func (s *AuthServiceImpl) Register(ctx context.Context, username, password string) (model.User, error) {
	if username == "" || password == "" {
		return model.User{}, errors.New("empty username/password")
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return model.User{}, err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}
	// Hashing is slow; don't write for a client that already went away.
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}

	u := &model.User{ID: uid, Username: username, PwdHash: hash}
	if err := s.users.Create(ctx, u); err != nil {
		return model.User{}, err
	}
	return *u, nil
}

// Login authenticates by username and password. Unknown usernames and wrong
// passwords both return errs.ErrUnauthorized after a full hash comparison.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (model.Tokens, error) {
	u, err := s.users.GetByUsername(ctx, username)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		s.hasher.VerifyDummy(password)
		return model.Tokens{}, errs.ErrUnauthorized
	case err != nil:
		return model.Tokens{}, fmt.Errorf("lookup user: %w", err)
	}

	if !s.hasher.Verify(password, u.PwdHash) {
		return model.Tokens{}, errs.ErrUnauthorized
	}
	return s.tokens.Issue(u.ID)
}

// Authenticate verifies token and loads the user it names. A valid token for
// a user that no longer exists is an authentication failure.
func (s *AuthServiceImpl) Authenticate(ctx context.Context, token string) (model.User, error) {
	if token == "" {
		return model.User{}, errs.ErrUnauthorized
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return model.User{}, fmt.Errorf("%w: %w", errs.ErrUnauthorized, err)
	}
	u, err := s.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, errs.ErrNotFound) {
		return model.User{}, fmt.Errorf("%w: user %s gone", errs.ErrUnauthorized, claims.UserID)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("load user: %w", err)
	}
	return *u, nil
}
