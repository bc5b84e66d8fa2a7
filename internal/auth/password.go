// Package auth covers password hashing, signed session cookies and the
// routing guard.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/tarisrizki/provisioning-telkom/internal/database"
	"github.com/tarisrizki/provisioning-telkom/internal/models"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 8

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInactiveUser       = errors.New("user account is inactive")
)

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// UserFinder is the lookup Authenticate needs.
type UserFinder interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Authenticate checks username and password. Unknown users and wrong
// passwords both return ErrInvalidCredentials.
func Authenticate(ctx context.Context, users UserFinder, username, password string) (*models.User, error) {
	user, err := users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if user.Status != models.UserActive {
		return nil, ErrInactiveUser
	}
	return user, nil
}

// ValidateUser checks the editable fields of user. password is validated only
// when non-empty; creating requires one.
func ValidateUser(user *models.User, password string, creating bool) error {
	user.Username = strings.TrimSpace(user.Username)
	user.Email = strings.TrimSpace(user.Email)
	user.Name = strings.TrimSpace(user.Name)

	var problems []string
	if len(user.Username) < 3 {
		problems = append(problems, "username must be at least 3 characters")
	}
	if _, err := mail.ParseAddress(user.Email); err != nil {
		problems = append(problems, "email is not valid")
	}
	if !user.Role.Valid() {
		problems = append(problems, fmt.Sprintf("role must be %s or %s", models.RoleAdmin, models.RoleUser))
	}
	if !user.Status.Valid() {
		problems = append(problems, fmt.Sprintf("status must be %s or %s", models.UserActive, models.UserInactive))
	}
	if creating && password == "" {
		problems = append(problems, "password is required")
	}
	if password != "" && len(password) < minPasswordLen {
		problems = append(problems, fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
