package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/seyio/owemi/internal/model"
)

// CreateUser creates a new user account.
func CreateUser(ctx context.Context, db *sql.DB, username, passwordHash, plan string) (*model.User, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, plan) VALUES (?, ?, ?)`,
		username, passwordHash, plan,
	)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting user id: %w", err)
	}

	return GetUser(ctx, db, id)
}

// GetUser returns a user by ID.
func GetUser(ctx context.Context, db *sql.DB, id int64) (*model.User, error) {
	u := &model.User{}
	err := db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, plan, created_at, deleted_at
		 FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Plan, &u.CreatedAt, &u.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetUserByUsername returns a user by username (including soft-deleted
// for auth checks).
func GetUserByUsername(ctx context.Context, db *sql.DB, username string) (*model.User, error) {
	u := &model.User{}
	err := db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, plan, created_at, deleted_at
		 FROM users WHERE username = ?`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Plan, &u.CreatedAt, &u.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by username: %w", err)
	}
	return u, nil
}

// UpdateUserPassword replaces a user's password hash.
func UpdateUserPassword(ctx context.Context, db *sql.DB, id int64, passwordHash string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ? AND deleted_at IS NULL`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	return nil
}

// SetUserPlan changes a user's subscription plan.
func SetUserPlan(ctx context.Context, db *sql.DB, id int64, plan string) error {
	if plan != model.PlanFree && plan != model.PlanPro {
		return model.Validationf("unknown plan %q", plan)
	}
	_, err := db.ExecContext(ctx,
		`UPDATE users SET plan = ? WHERE id = ? AND deleted_at IS NULL`,
		plan, id,
	)
	if err != nil {
		return fmt.Errorf("updating plan: %w", err)
	}
	return nil
}
