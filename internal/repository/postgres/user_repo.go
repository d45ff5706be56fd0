package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/freeeve/dicewars/internal/model"
)

// UserRepo stores players. Display names are unique and double as the
// dev-login key.
type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, display_name, created_at, updated_at`

func (r *UserRepo) findOne(ctx context.Context, where string, arg any) (*model.User, error) {
	var u model.User
	err := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where+` = $1`, arg).
		Scan(&u.ID, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user by %s: %w", where, err)
	}
	return &u, nil
}

// FindByID returns the user, or nil if none exists.
func (r *UserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, "id", id)
}

// FindByName returns the user with the given display name, or nil.
func (r *UserRepo) FindByName(ctx context.Context, displayName string) (*model.User, error) {
	return r.findOne(ctx, "display_name", strings.TrimSpace(displayName))
}

// Create inserts a user, or touches and returns the existing one with the
// same name.
func (r *UserRepo) Create(ctx context.Context, displayName string) (*model.User, error) {
	var u model.User
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (display_name) VALUES ($1)
		 ON CONFLICT (display_name) DO UPDATE SET updated_at = now()
		 RETURNING `+userColumns,
		strings.TrimSpace(displayName),
	).Scan(&u.ID, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}
