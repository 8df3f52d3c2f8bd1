package session

import (
	"context"
	"errors"
	"time"
)

var ErrNotBound = errors.New("session: client has no bound session")

// Session is the server-side record behind a session cookie.
// The Auth Context and route guards only ever hold copies of it.
type Session struct {
	SessionID         string    `json:"session_id"`
	ClientID          string    `json:"client_id"`
	UserID            string    `json:"user_id"`
	Email             string    `json:"email"`
	RefreshToken      string    `json:"refresh_token"`
	CreatedAt         time.Time `json:"created_at"`
	ExpiresAt         time.Time `json:"expires_at"`
	AbsoluteExpiresAt time.Time `json:"absolute_expires_at"`
}

// Expired reports whether s is unusable at now. A nil session is expired.
func (s *Session) Expired(now time.Time) bool {
	return s == nil || !now.Before(s.ExpiresAt)
}

// Store persists sessions and the client → current session binding.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Update(ctx context.Context, s Session) error
	Delete(ctx context.Context, sessionID string) error

	// Bind records sessionID as the current session of a browser client.
	Bind(ctx context.Context, clientID, sessionID string, expiresAt time.Time) error
	// Current returns the session id bound to clientID, or ErrNotBound.
	Current(ctx context.Context, clientID string) (string, error)
	Unbind(ctx context.Context, clientID string) error

	// ListByUser returns the ids of userID's sessions that still exist.
	ListByUser(ctx context.Context, userID string) ([]string, error)
}
