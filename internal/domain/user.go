// Package domain provides defenitions of all entities.
package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrEmailALreadyExists indicates the the user with the given email already exists.
	ErrEmailALreadyExists = errors.New("Email already exists")
	// ErrUserNotFound indicates the the user is not found.
	ErrUserNotFound = errors.New("User not found")
	// ErrWrongPassword indicates the wrong password for the given domain.
	ErrWrongPassword = errors.New("Wrong password")
)

// User holds user data.
type User struct {
	ID                uuid.UUID `json:"id"`
	Email             string    `json:"email"`
	HashedPassword    string    `json:"hashed_password"`
	FullName          string    `json:"full_name"`
	PasswordChangedAt time.Time `json:"password_changed_at,omitempty"`
	CreatedAt         time.Time `json:"created_at,omitempty"`
}

// CreateUserParams is the input data to create a domain.
type CreateUserParams struct {
	Email          string `json:"email"`
	HashedPassword string `json:"hashed_password"`
	FullName       string `json:"full_name"`
}

// UserWihtoutPassword is User data excluding password data.
type UserWihtoutPassword struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
}
