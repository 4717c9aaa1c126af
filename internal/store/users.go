package store

import (
	"context"
	"database/sql"
	"errors"

	"inventory-service/internal/apperr"
	"inventory-service/internal/models"
)

// CreateUser inserts a user. A duplicate active email fails with Conflict.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (email, first_name, last_name, role, status, last_login, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := s.db.GetContext(ctx, &u.ID, query,
		u.Email, u.FirstName, u.LastName, u.Role, u.Status, u.LastLogin, u.CreatedAt)
	return classify(err, "create user")
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, "SELECT * FROM users WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user %d not found", id)
	}
	if err != nil {
		return nil, classify(err, "get user")
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context, f models.UserFilter) ([]models.User, error) {
	query := "SELECT * FROM users WHERE is_deleted = $1"
	args := []interface{}{f.Deleted}
	if f.Role != "" {
		query += " AND role = $2"
		args = append(args, string(f.Role))
	}
	query += " ORDER BY id"

	users := []models.User{}
	if err := s.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, classify(err, "list users")
	}
	return users, nil
}
