// Package domain holds the user service's authoritative user model.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrUserNotFound is returned when no user exists for the given id.
var ErrUserNotFound = errors.New("user not found")

// ErrUserExists is returned when a username or email is already taken.
var ErrUserExists = errors.New("user already exists")

// User is the authoritative account record. Password and token
// handling live in the out-of-scope API layer; this service owns the
// profile that other services replicate through events.
type User struct {
	ID             uuid.UUID
	Username       string
	Email          string
	GamingPlatform string
	PreferredGame  string
	SkillLevel     string
	CreatedAt      time.Time
}

// Repository persists users.
type Repository interface {
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	List(ctx context.Context) ([]*User, error)
}
