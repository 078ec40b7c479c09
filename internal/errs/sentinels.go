// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnauthorized indicates failed authentication: bad credentials,
	// a missing/invalid token or a token referencing an unknown user.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the authenticated user does not own the resource.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidToken is returned by token verification for any malformed,
	// tampered or expired token.
	ErrInvalidToken = errors.New("invalid token")

	// ErrRateLimited indicates the request window cap was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrMissingSecret indicates the token signing secret was not configured.
	ErrMissingSecret = errors.New("missing signing secret")
)
