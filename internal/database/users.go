package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rentescrow/internal/models"
)

// CreateOrUpdateUser upserts a user keyed by email.
func (db *DB) CreateOrUpdateUser(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (email, first_name, last_name, phone, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?)
              ON CONFLICT(email) DO UPDATE SET
                first_name = excluded.first_name,
                last_name = excluded.last_name,
                phone = excluded.phone,
                updated_at = excluded.updated_at`
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, query,
		user.Email,
		user.FirstName,
		user.LastName,
		user.Phone,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create or update user: %w", err)
	}

	stored, err := db.GetUserByEmail(ctx, user.Email)
	if err != nil {
		return err
	}
	*user = *stored
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT id, email, first_name, last_name, phone, created_at, updated_at FROM users WHERE id = ?`
	return db.queryUser(ctx, query, id)
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id, email, first_name, last_name, phone, created_at, updated_at FROM users WHERE email = ?`
	return db.queryUser(ctx, query, email)
}

func (db *DB) queryUser(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	var user models.User
	err := db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID, &user.Email, &user.FirstName, &user.LastName, &user.Phone, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}
