package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/FallyxInc/cortex-behaviours/internal/domain"

	"github.com/lib/pq"
)

// usersSchema is applied at startup when DB mode is enabled.
const usersSchema = `
	CREATE TABLE IF NOT EXISTS admin_users (
		user_id       UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		username      VARCHAR(255) UNIQUE,
		email         VARCHAR(255),
		role          VARCHAR(255) NOT NULL,
		login_count   INTEGER NOT NULL DEFAULT 0,
		password_hash BYTEA,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

// uniqueViolation is the SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

// PostgresUsersRepo UsersRepository backed by the admin_users table
type PostgresUsersRepo struct {
	db *sql.DB
}

func NewPostgresUsersRepo(db *sql.DB) *PostgresUsersRepo {
	return &PostgresUsersRepo{db: db}
}

var _ UsersRepository = (*PostgresUsersRepo)(nil)

// EnsureSchema creates the admin_users table if it does not exist.
func (r *PostgresUsersRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, usersSchema); err != nil {
		return fmt.Errorf("ensure admin_users schema: %w", err)
	}
	return nil
}

func (r *PostgresUsersRepo) ListUsers(ctx context.Context) ([]*domain.User, error) {
	query := `
		SELECT user_id::text, username, email, role, login_count, created_at
		FROM admin_users
		ORDER BY created_at DESC, user_id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]*domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *PostgresUsersRepo) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, ErrUserNotFound
	}
	query := `
		SELECT user_id::text, username, email, role, login_count, created_at
		FROM admin_users
		WHERE user_id::text = $1
	`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *PostgresUsersRepo) CreateUser(ctx context.Context, user *domain.User) (string, error) {
	query := `
		INSERT INTO admin_users (username, email, role, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING user_id::text
	`
	var userID string
	err := r.db.QueryRowContext(ctx, query,
		nullString(user.Username),
		nullString(user.Email),
		user.Role,
		user.PasswordHash,
	).Scan(&userID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return "", ErrDuplicateUser
		}
		return "", fmt.Errorf("create user: %w", err)
	}
	return userID, nil
}

func (r *PostgresUsersRepo) UpdateUserRole(ctx context.Context, userID, role string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE admin_users SET role = $2 WHERE user_id::text = $1`, userID, role)
	if err != nil {
		return fmt.Errorf("update user role: %w", err)
	}
	return requireOneRow(res)
}

func (r *PostgresUsersRepo) DeleteUser(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM admin_users WHERE user_id::text = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireOneRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	var username, email sql.NullString
	if err := row.Scan(&u.UserID, &username, &email, &u.Role, &u.LoginCount, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Username = username.String
	u.Email = email.String
	return &u, nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
