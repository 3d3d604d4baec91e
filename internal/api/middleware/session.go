package middleware

import (
	"context"
	"net/http"
	"strings"

	apiContext "qrstudio/internal/api/context"
	"qrstudio/internal/engine/sessions"
	"qrstudio/internal/pkg/errors"
	"qrstudio/internal/platform/auth"
)

// SessionMiddleware resolves the caller's studio session from a bearer
// token, the session cookie or a ?token= query parameter (websockets).
type SessionMiddleware struct {
	tokenSvc   *auth.TokenService
	manager    *sessions.Manager
	cookieName string
}

func NewSessionMiddleware(tokenSvc *auth.TokenService, manager *sessions.Manager, cookieName string) *SessionMiddleware {
	return &SessionMiddleware{
		tokenSvc:   tokenSvc,
		manager:    manager,
		cookieName: cookieName,
	}
}

func (m *SessionMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := m.token(r)
		if !ok {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Missing session token", nil)
			return
		}

		claims, err := m.tokenSvc.ValidateToken(token)
		if err != nil {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid or expired session token", nil)
			return
		}

		sess, err := m.manager.Get(claims.SessionID)
		if err != nil {
			errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Session not found or expired", nil)
			return
		}

		ctx := context.WithValue(r.Context(), apiContext.Claims, claims)
		ctx = context.WithValue(ctx, apiContext.Session, sess)
		next(w, r.WithContext(ctx))
	}
}

func (m *SessionMiddleware) token(r *http.Request) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", false
		}
		return parts[1], true
	}

	if c, err := r.Cookie(m.cookieName); err == nil && c.Value != "" {
		return c.Value, true
	}

	if t := r.URL.Query().Get("token"); t != "" {
		return t, true
	}

	return "", false
}

// SessionFrom returns the session SessionMiddleware stored in ctx.
func SessionFrom(ctx context.Context) *sessions.Session {
	s, _ := ctx.Value(apiContext.Session).(*sessions.Session)
	return s
}
