package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/FallyxInc/cortex-behaviours/internal/domain"
	"github.com/FallyxInc/cortex-behaviours/internal/store"

	"github.com/google/uuid"
)

// usersNode is the reserved top-level node holding one child per user id.
const usersNode = "users"

// StoreUsersRepo keeps users under /users/<id> in the document store.
// Username uniqueness is checked before the write, so two concurrent creates
// with the same name can both succeed.
type StoreUsersRepo struct {
	docs *store.DocumentStore
	now  func() time.Time
}

func NewStoreUsersRepo(docs *store.DocumentStore) *StoreUsersRepo {
	return &StoreUsersRepo{docs: docs, now: time.Now}
}

var _ UsersRepository = (*StoreUsersRepo)(nil)

func (r *StoreUsersRepo) ListUsers(ctx context.Context) ([]*domain.User, error) {
	children, err := r.docs.Children(ctx, usersNode)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]*domain.User, 0, len(children))
	for id, raw := range children {
		var u domain.User
		if err := json.Unmarshal(raw, &u); err != nil {
			// skip records written by other tools in a different shape
			continue
		}
		if u.UserID == "" {
			u.UserID = id
		}
		users = append(users, &u)
	}
	sortUsers(users)
	return users, nil
}

func (r *StoreUsersRepo) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, ErrUserNotFound
	}
	raw, err := r.docs.Child(ctx, usersNode, userID)
	if err != nil {
		if errors.Is(err, store.ErrMiss) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	var u domain.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", userID, err)
	}
	if u.UserID == "" {
		u.UserID = userID
	}
	return &u, nil
}

func (r *StoreUsersRepo) CreateUser(ctx context.Context, user *domain.User) (string, error) {
	existing, err := r.ListUsers(ctx)
	if err != nil {
		return "", err
	}
	for _, u := range existing {
		if u.Username != "" && strings.EqualFold(u.Username, user.Username) {
			return "", ErrDuplicateUser
		}
	}

	created := *user
	if created.UserID == "" {
		created.UserID = uuid.NewString()
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = r.now().UTC()
	}
	if err := r.docs.SetChild(ctx, usersNode, created.UserID, created); err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}
	return created.UserID, nil
}

func (r *StoreUsersRepo) UpdateUserRole(ctx context.Context, userID, role string) error {
	u, err := r.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	u.Role = role
	if err := r.docs.SetChild(ctx, usersNode, userID, u); err != nil {
		return fmt.Errorf("update user role: %w", err)
	}
	return nil
}

func (r *StoreUsersRepo) DeleteUser(ctx context.Context, userID string) error {
	if _, err := r.GetUser(ctx, userID); err != nil {
		return err
	}
	if err := r.docs.DeleteChild(ctx, usersNode, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// sortUsers orders newest first, then by id for a stable listing.
func sortUsers(users []*domain.User) {
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.After(users[j].CreatedAt)
		}
		return users[i].UserID < users[j].UserID
	})
}
