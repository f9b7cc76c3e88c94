package repository

import (
	"context"
	"testing"
	"time"

	"github.com/FallyxInc/cortex-behaviours/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreUsersRepo_CRUD(t *testing.T) {
	_, docs := setupTestDocs(t)
	ctx := context.Background()
	repo := NewStoreUsersRepo(docs)
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return base }

	id1, err := repo.CreateUser(ctx, &domain.User{Username: "alice", Role: "admin", PasswordHash: []byte("h1")})
	require.NoError(t, err)
	require.NotEmpty(t, id1)

	repo.now = func() time.Time { return base.Add(time.Hour) }
	id2, err := repo.CreateUser(ctx, &domain.User{Username: "bob", Role: "oneill"})
	require.NoError(t, err)

	_, err = repo.CreateUser(ctx, &domain.User{Username: "ALICE", Role: "admin"})
	assert.ErrorIs(t, err, ErrDuplicateUser)

	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, id2, users[0].UserID)
	assert.Equal(t, id1, users[1].UserID)
	assert.True(t, base.Equal(users[1].CreatedAt))

	require.NoError(t, repo.UpdateUserRole(ctx, id2, "banwell"))
	u, err := repo.GetUser(ctx, id2)
	require.NoError(t, err)
	assert.Equal(t, "banwell", u.Role)
	assert.Equal(t, "bob", u.Username)

	require.NoError(t, repo.DeleteUser(ctx, id1))
	_, err = repo.GetUser(ctx, id1)
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.ErrorIs(t, repo.DeleteUser(ctx, id1), ErrUserNotFound)
	assert.ErrorIs(t, repo.UpdateUserRole(ctx, "missing", "admin"), ErrUserNotFound)
}

func TestStoreUsersRepo_UsersNodeIsNotAHome(t *testing.T) {
	_, docs := setupTestDocs(t)
	ctx := context.Background()
	users := NewStoreUsersRepo(docs)

	_, err := users.CreateUser(ctx, &domain.User{UserID: "behaviours", Username: "odd", Role: "admin"})
	require.NoError(t, err)

	homes, err := NewStoreHomesRepo(docs).ListHomes(ctx)
	require.NoError(t, err)
	assert.Empty(t, homes)
}
