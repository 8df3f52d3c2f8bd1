package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"portfolio-service/internal/logger"
	"portfolio-service/internal/session"
)

// unexported, collision-proof context keys
type userIDContextKeyType struct{}
type emailContextKeyType struct{}

var (
	userIDKey = userIDContextKeyType{}
	emailKey  = emailContextKeyType{}
)

// UserIDFromContext extracts the authenticated user ID from context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok
}

func EmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(emailKey).(string)
	return email, ok
}

// SessionReader is the slice of the session store the guard consults.
type SessionReader interface {
	GetSession(ctx context.Context, sessionID string) (*session.Session, error)
	Refresh(ctx context.Context, sessionID string) (*session.Session, error)
	SessionTTL() time.Duration
}

type AuthMiddleware struct {
	Sessions   SessionReader
	Cookies    session.CookieOptions
	SignInPath string

	now func() time.Time
}

func NewAuthMiddleware(sessions SessionReader, cookies session.CookieOptions) *AuthMiddleware {
	return &AuthMiddleware{
		Sessions:   sessions,
		Cookies:    cookies,
		SignInPath: "/signin",
		now:        time.Now,
	}
}

// RequireAuth guards API routes: requests without a live session get 401.
func (a *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return a.require(next, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	})
}

// RequirePage guards rendered pages: requests without a live session are
// sent to the sign-in page before any handler runs.
func (a *AuthMiddleware) RequirePage(next http.Handler) http.Handler {
	return a.require(next, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, a.SignInPath, http.StatusSeeOther)
	})
}

func (a *AuthMiddleware) require(next http.Handler, reject http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 1. Read session cookie
		sessionID := session.SessionIDFromRequest(r)
		if sessionID == "" {
			reject(w, r)
			return
		}

		// 2. Load session from the store, never from a cached copy
		sess, err := a.Sessions.GetSession(r.Context(), sessionID)
		if err != nil {
			logger.Warn("session lookup failed", map[string]any{
				"path":  r.URL.Path,
				"error": err,
			})
			reject(w, r)
			return
		}
		if sess == nil {
			session.ClearCookie(w, a.Cookies)
			reject(w, r)
			return
		}

		// 3. Enforce expiry
		now := a.now()
		if sess.Expired(now) {
			session.ClearCookie(w, a.Cookies)
			reject(w, r)
			return
		}

		// 4. Slide the session once less than half its TTL remains
		if sess.ExpiresAt.Sub(now) < a.Sessions.SessionTTL()/2 {
			refreshed, err := a.Sessions.Refresh(r.Context(), sessionID)
			switch {
			case err != nil:
				logger.Warn("session refresh failed", map[string]any{
					"user_id": sess.UserID,
					"error":   err,
				})
			case refreshed != nil:
				sess = refreshed
				session.SetCookie(w, sess.SessionID, sess.ExpiresAt, a.Cookies)
			}
		}

		// 5. The session decides which client this browser is, so the
		// auth context mounted after the guard follows the same session.
		if sess.ClientID != "" {
			session.AdoptClientID(w, r, sess.ClientID, a.Cookies)
		}

		// 6. Attach identity to context
		ctx := context.WithValue(r.Context(), userIDKey, sess.UserID)
		ctx = context.WithValue(ctx, emailKey, sess.Email)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
