package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/tarisrizki/provisioning-telkom/internal/models"
)

const CookieName = "provisioning_session"

var (
	ErrNoSession      = errors.New("no session")
	ErrInvalidSession = errors.New("invalid session")
	ErrSessionExpired = errors.New("session expired")
)

// Session is the signed-in user carried in the session cookie.
type Session struct {
	UserID   string      `json:"id"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	Expires  int64       `json:"exp"`
}

func (s *Session) IsAdmin() bool {
	return s.Role == models.RoleAdmin
}

// SessionCodec signs sessions with HMAC-SHA256. A token is the base64url JSON
// payload and its signature joined by a dot.
type SessionCodec struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

func NewSessionCodec(secret string, ttl time.Duration, secure bool) (*SessionCodec, error) {
	if len(secret) < 16 {
		return nil, errors.New("session secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &SessionCodec{secret: []byte(secret), ttl: ttl, secure: secure, now: time.Now}, nil
}

func (c *SessionCodec) sign(payload string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// NewSession builds a session for user expiring after the codec's TTL.
func (c *SessionCodec) NewSession(user *models.User) Session {
	return Session{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		Expires:  c.now().Add(c.ttl).Unix(),
	}
}

func (c *SessionCodec) Encode(s Session) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	payload := base64.RawURLEncoding.EncodeToString(data)
	return payload + "." + c.sign(payload), nil
}

func (c *SessionCodec) Decode(token string) (*Session, error) {
	payload, sig, ok := strings.Cut(token, ".")
	if !ok || !hmac.Equal([]byte(sig), []byte(c.sign(payload))) {
		return nil, ErrInvalidSession
	}
	data, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return nil, ErrInvalidSession
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil || s.UserID == "" {
		return nil, ErrInvalidSession
	}
	if c.now().Unix() >= s.Expires {
		return nil, ErrSessionExpired
	}
	return &s, nil
}

// Issue writes the session cookie for user.
func (c *SessionCodec) Issue(w http.ResponseWriter, user *models.User) (*Session, error) {
	s := c.NewSession(user)
	token, err := c.Encode(s)
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Unix(s.Expires, 0),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return &s, nil
}

func (c *SessionCodec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// FromRequest reads and verifies the session cookie of r.
func (c *SessionCodec) FromRequest(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, ErrNoSession
	}
	return c.Decode(cookie.Value)
}
