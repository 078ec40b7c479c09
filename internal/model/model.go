// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// User represents a registered account. PwdHash is never serialized outward.
type User struct {
	ID        uuid.UUID // PK
	Username  string    // unique, 3..30 chars
	PwdHash   string    // bcrypt digest, write-once
	CreatedAt time.Time
}

// Claims is the identity carried by a verified session token.
type Claims struct {
	UserID    uuid.UUID
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Tokens collects an issued access token and its expiry (for clients).
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Task is a single to-do entry owned by exactly one user.
type Task struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"userId"` // FK -> users.id
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	IsComplete  bool      `json:"isComplete"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TaskInput is the client-supplied part of a task on create/update.
type TaskInput struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	IsComplete  bool    `json:"isComplete"`
}
