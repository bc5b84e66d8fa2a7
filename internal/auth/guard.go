package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"
)

type contextKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok && s != nil
}

// Guard protects routes. Unauthenticated requests are sent to the login
// screen and non-admins are sent away from admin routes. API requests get a
// JSON status instead of a redirect.
type Guard struct {
	codec  *SessionCodec
	logger zerolog.Logger
}

func NewGuard(codec *SessionCodec, logger zerolog.Logger) *Guard {
	return &Guard{codec: codec, logger: logger.With().Str("component", "guard").Logger()}
}

func (g *Guard) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := g.codec.FromRequest(r)
		if err != nil {
			g.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("rejecting unauthenticated request")
			deny(w, r, http.StatusUnauthorized, "authentication required", LoginPath)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
	})
}

func (g *Guard) RequireAdmin(next http.Handler) http.Handler {
	return g.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, _ := SessionFromContext(r.Context())
		if !s.IsAdmin() {
			g.logger.Warn().Str("user", s.Username).Str("path", r.URL.Path).Msg("non-admin on admin route")
			deny(w, r, http.StatusForbidden, "admin access required", DashboardPath)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func deny(w http.ResponseWriter, r *http.Request, status int, msg, redirect string) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]string{"error": msg})
		return
	}
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}
