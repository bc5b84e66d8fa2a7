package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/tarisrizki/provisioning-telkom/internal/auth"
	"github.com/tarisrizki/provisioning-telkom/internal/events"
	"github.com/tarisrizki/provisioning-telkom/internal/models"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Service) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "body must be {\"username\": ..., \"password\": ...}")
		return
	}

	user, err := auth.Authenticate(r.Context(), s.store, body.Username, body.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		s.logger.Info().Str("username", body.Username).Msg("failed login")
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	case errors.Is(err, auth.ErrInactiveUser):
		writeError(w, http.StatusForbidden, err.Error())
		return
	case err != nil:
		s.storeFailure(w, r, err, "failed to sign in")
		return
	}

	if _, err := s.sessions.Issue(w, user); err != nil {
		s.logger.Error().Err(err).Msg("failed to issue session")
		writeError(w, http.StatusInternalServerError, "failed to sign in")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Service) Logout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) Me(w http.ResponseWriter, r *http.Request) {
	session, _ := auth.SessionFromContext(r.Context())
	user, err := s.store.GetUser(r.Context(), session.UserID)
	if err != nil {
		s.storeFailure(w, r, err, "failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type profileUpdate struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password string  `json:"password"`
}

// UpdateMe lets a user change their own name, email and password. Role and
// status are left alone.
func (s *Service) UpdateMe(w http.ResponseWriter, r *http.Request) {
	session, _ := auth.SessionFromContext(r.Context())
	var body profileUpdate
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid profile body")
		return
	}

	user, err := s.store.GetUser(r.Context(), session.UserID)
	if err != nil {
		s.storeFailure(w, r, err, "failed to load profile")
		return
	}
	if body.Name != nil {
		user.Name = *body.Name
	}
	if body.Email != nil {
		user.Email = *body.Email
	}
	s.saveUser(w, r, user, body.Password, http.StatusOK)
}

type userRequest struct {
	Username string            `json:"username"`
	Email    string            `json:"email"`
	Name     string            `json:"name"`
	Role     models.Role       `json:"role"`
	Status   models.UserStatus `json:"status"`
	Password string            `json:"password"`
}

func (s *Service) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.storeFailure(w, r, err, "failed to load users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Service) CreateUser(w http.ResponseWriter, r *http.Request) {
	var body userRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid user body")
		return
	}
	if body.Status == "" {
		body.Status = models.UserActive
	}
	user := &models.User{Username: body.Username, Email: body.Email, Name: body.Name, Role: body.Role, Status: body.Status}
	if err := auth.ValidateUser(user, body.Password, true); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		s.storeFailure(w, r, err, "failed to create user")
		return
	}
	user.PasswordHash = hash
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		s.storeFailure(w, r, err, "failed to create user")
		return
	}
	s.publish(events.TopicUsersChanged, "users")
	writeJSON(w, http.StatusCreated, user)
}

// UpdateUser applies the non-empty fields of the body to a user.
func (s *Service) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var body userRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid user body")
		return
	}
	user, err := s.store.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeFailure(w, r, err, "failed to load user")
		return
	}

	if body.Username != "" {
		user.Username = body.Username
	}
	if body.Email != "" {
		user.Email = body.Email
	}
	if body.Name != "" {
		user.Name = body.Name
	}
	if body.Role != "" {
		user.Role = body.Role
	}
	if body.Status != "" {
		user.Status = body.Status
	}
	s.saveUser(w, r, user, body.Password, http.StatusOK)
}

func (s *Service) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if session, ok := auth.SessionFromContext(r.Context()); ok && session.UserID == id {
		writeError(w, http.StatusBadRequest, "you cannot delete your own account")
		return
	}
	if err := s.store.DeleteUser(r.Context(), id); err != nil {
		s.storeFailure(w, r, err, "failed to delete user")
		return
	}
	s.publish(events.TopicUsersChanged, "users")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) saveUser(w http.ResponseWriter, r *http.Request, user *models.User, password string, status int) {
	if err := auth.ValidateUser(user, password, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(password) != "" {
		hash, err := auth.HashPassword(password)
		if err != nil {
			s.storeFailure(w, r, err, "failed to save user")
			return
		}
		user.PasswordHash = hash
	}
	if err := s.store.UpdateUser(r.Context(), user); err != nil {
		s.storeFailure(w, r, err, "failed to save user")
		return
	}
	s.publish(events.TopicUsersChanged, "users")
	writeJSON(w, status, user)
}
