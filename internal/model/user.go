package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserStore defines storage operations for users.
type UserStore interface {
	Create(ctx context.Context, user User) (User, error)
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context, page, size int) ([]User, int, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// User represents a stored user with authentication material.
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string `json:"-"`
	CreatedAt    time.Time
}

// UserView is the outward-facing projection of User without the password hash.
type UserView struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// View strips authentication material from the user.
// Every outward representation of a user goes through this method.
func (u User) View() UserView {
	return UserView{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

// UserPage is a single window of the user listing.
type UserPage struct {
	Users []UserView `json:"users"`
	Page  int        `json:"page"`
	Size  int        `json:"size"`
	Total int        `json:"total"`
	Pages int        `json:"pages"`
}

// Listing defaults applied by the transports.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// PageCount returns the number of pages of the given size needed to hold total items.
func PageCount(total, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	pages := total / size
	if total%size != 0 {
		pages++
	}
	return pages
}

// Session is the result of a successful login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      UserView  `json:"user"`
}
