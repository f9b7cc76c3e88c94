package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/FallyxInc/cortex-behaviours/internal/domain"
	"github.com/FallyxInc/cortex-behaviours/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength for newly created accounts.
const MinPasswordLength = 6

// UserService manages admin dashboard accounts.
type UserService interface {
	ListUsers(ctx context.Context) (*ListUsersResponse, error)
	CreateUser(ctx context.Context, req CreateUserRequest) (*CreateUserResponse, error)
	UpdateUserRole(ctx context.Context, req UpdateUserRoleRequest) error
	DeleteUser(ctx context.Context, req DeleteUserRequest) error
}

type userService struct {
	usersRepo repository.UsersRepository
	homes     HomeService
	logger    *zap.Logger
	now       func() time.Time
}

func NewUserService(usersRepo repository.UsersRepository, homes HomeService, logger *zap.Logger) UserService {
	return &userService{
		usersRepo: usersRepo,
		homes:     homes,
		logger:    logger,
		now:       time.Now,
	}
}

// ============================================
// Request/Response DTOs
// ============================================

// UserDTO is the public view of a user; the password hash never leaves the service.
type UserDTO struct {
	ID         string    `json:"id"`
	Username   string    `json:"username,omitempty"`
	Email      string    `json:"email,omitempty"`
	Role       string    `json:"role"`
	LoginCount int       `json:"loginCount"`
	CreatedAt  time.Time `json:"createdAt"`
}

type ListUsersResponse struct {
	Items []*UserDTO
}

type CreateUserRequest struct {
	Username string
	Email    string
	Password string
	Role     string
}

type CreateUserResponse struct {
	UserID string
}

type UpdateUserRoleRequest struct {
	UserID string
	Role   string
}

type DeleteUserRequest struct {
	UserID string
}

func toUserDTO(u *domain.User) *UserDTO {
	return &UserDTO{
		ID:         u.UserID,
		Username:   u.Username,
		Email:      u.Email,
		Role:       u.Role,
		LoginCount: u.LoginCount,
		CreatedAt:  u.CreatedAt,
	}
}

func (s *userService) ListUsers(ctx context.Context) (*ListUsersResponse, error) {
	users, err := s.usersRepo.ListUsers(ctx)
	if err != nil {
		s.logger.Error("ListUsers failed", zap.Error(err))
		return nil, newError(KindStore, err, "failed to list users")
	}
	items := make([]*UserDTO, 0, len(users))
	for _, u := range users {
		items = append(items, toUserDTO(u))
	}
	return &ListUsersResponse{Items: items}, nil
}

func (s *userService) CreateUser(ctx context.Context, req CreateUserRequest) (*CreateUserResponse, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, validationError("username is required")
	}
	if len(req.Password) < MinPasswordLength {
		return nil, validationError("password must be at least %d characters", MinPasswordLength)
	}
	if err := s.checkRole(ctx, req.Role); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, newError(KindInternal, err, "failed to hash password")
	}

	user := &domain.User{
		Username:     username,
		Email:        strings.TrimSpace(req.Email),
		Role:         req.Role,
		CreatedAt:    s.now().UTC(),
		PasswordHash: hash,
	}
	id, err := s.usersRepo.CreateUser(ctx, user)
	if err != nil {
		return nil, s.repoError(err, "failed to create user")
	}

	s.logger.Info("User created", zap.String("user_id", id), zap.String("role", req.Role))
	return &CreateUserResponse{UserID: id}, nil
}

func (s *userService) UpdateUserRole(ctx context.Context, req UpdateUserRoleRequest) error {
	if req.UserID == "" {
		return validationError("user id is required")
	}
	if err := s.checkRole(ctx, req.Role); err != nil {
		return err
	}
	if err := s.usersRepo.UpdateUserRole(ctx, req.UserID, req.Role); err != nil {
		return s.repoError(err, "failed to update role")
	}
	s.logger.Info("User role updated", zap.String("user_id", req.UserID), zap.String("role", req.Role))
	return nil
}

func (s *userService) DeleteUser(ctx context.Context, req DeleteUserRequest) error {
	if req.UserID == "" {
		return validationError("userId is required")
	}
	if err := s.usersRepo.DeleteUser(ctx, req.UserID); err != nil {
		return s.repoError(err, "failed to delete user")
	}
	s.logger.Info("User deleted", zap.String("user_id", req.UserID))
	return nil
}

// checkRole validates against the role set as it is at request time.
func (s *userService) checkRole(ctx context.Context, role string) error {
	if role == "" {
		return validationError("role is required")
	}
	roles, err := s.homes.Roles(ctx)
	if err != nil {
		return err
	}
	if !roles.Contains(role) {
		return validationError("invalid role %q", role)
	}
	return nil
}

func (s *userService) repoError(err error, msg string) error {
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return newError(KindNotFound, err, "%s", msg)
	case errors.Is(err, repository.ErrDuplicateUser):
		return newError(KindConflict, err, "%s", msg)
	default:
		s.logger.Error(msg, zap.Error(err))
		return newError(KindStore, err, "%s", msg)
	}
}
