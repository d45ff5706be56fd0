package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/freeeve/dicewars/internal/model"
)

// UserRepo handles user rows.
type UserRepo struct {
	db *sql.DB
}

func (r *UserRepo) find(ctx context.Context, where string, arg any) (*model.User, error) {
	var u model.User
	var created, updated int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id, display_name, created_at, updated_at FROM users WHERE `+where+` = ?`, arg,
	).Scan(&u.ID, &u.DisplayName, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	u.CreatedAt, u.UpdatedAt = fromMillis(created), fromMillis(updated)
	return &u, nil
}

// FindByID looks up a user by ID.
func (r *UserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.find(ctx, "id", id)
}

// FindByName looks up a user by display name.
func (r *UserRepo) FindByName(ctx context.Context, displayName string) (*model.User, error) {
	return r.find(ctx, "display_name", displayName)
}

// Create inserts a user, or returns the existing one with the same name.
func (r *UserRepo) Create(ctx context.Context, displayName string) (*model.User, error) {
	ts := now()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, display_name, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(display_name) DO UPDATE SET updated_at = excluded.updated_at`,
		uuid.NewString(), displayName, ts, ts)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return r.FindByName(ctx, displayName)
}
