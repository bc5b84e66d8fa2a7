package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tarisrizki/provisioning-telkom/internal/models"
)

const userColumns = `id, username, email, name, role, status, password_hash, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var id uuid.UUID
	if err := row.Scan(&id, &u.Username, &u.Email, &u.Name, &u.Role, &u.Status, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.ID = id.String()
	return &u, nil
}

// CreateUser inserts user, assigning a new id when it has none. Duplicate
// usernames or emails return ErrConflict.
func (m *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	id, err := uuid.Parse(user.ID)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", user.ID, err)
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now

	query := `
	INSERT INTO users (` + userColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);`

	_, err = m.dbpool.Exec(ctx, query, id, user.Username, user.Email, user.Name, user.Role, user.Status,
		user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", user.Username, ErrConflict)
		}
		return fmt.Errorf("error inserting user: %w", err)
	}

	return nil
}

func (m *PostgresStore) getUser(ctx context.Context, column string, value any) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s = $1;`, userColumns, column)
	u, err := scanUser(m.dbpool.QueryRow(ctx, query, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding user: %w", err)
	}
	return u, nil
}

func (m *PostgresStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return m.getUser(ctx, "id", parsed)
}

func (m *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return m.getUser(ctx, "username", username)
}

func (m *PostgresStore) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := m.dbpool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY username;`)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over users: %w", err)
	}

	return users, nil
}

func (m *PostgresStore) UpdateUser(ctx context.Context, user *models.User) error {
	parsed, err := uuid.Parse(user.ID)
	if err != nil {
		return ErrNotFound
	}
	user.UpdatedAt = time.Now().UTC()

	query := `
	UPDATE users
	SET username = $1,
		email = $2,
		name = $3,
		role = $4,
		status = $5,
		password_hash = $6,
		updated_at = $7
	WHERE id = $8;`

	tag, err := m.dbpool.Exec(ctx, query, user.Username, user.Email, user.Name, user.Role, user.Status,
		user.PasswordHash, user.UpdatedAt, parsed)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", user.Username, ErrConflict)
		}
		return fmt.Errorf("error updating user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (m *PostgresStore) DeleteUser(ctx context.Context, id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}

	tag, err := m.dbpool.Exec(ctx, `DELETE FROM users WHERE id = $1;`, parsed)
	if err != nil {
		return fmt.Errorf("error deleting user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
