package repository

import (
	"context"
	"errors"

	"github.com/FallyxInc/cortex-behaviours/internal/domain"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("username already exists")
)

// UsersRepository admin dashboard accounts
type UsersRepository interface {
	ListUsers(ctx context.Context) ([]*domain.User, error)
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	// CreateUser stores the user and returns its id (generated when empty)
	CreateUser(ctx context.Context, user *domain.User) (string, error)
	UpdateUserRole(ctx context.Context, userID, role string) error
	DeleteUser(ctx context.Context, userID string) error
}
