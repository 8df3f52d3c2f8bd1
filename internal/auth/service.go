package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"portfolio-service/internal/apperr"
	"portfolio-service/internal/auth/credentials"
	"portfolio-service/internal/auth/reset"
	"portfolio-service/internal/logger"
	"portfolio-service/internal/mail"
	"portfolio-service/internal/session"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// CredentialStore is the password side of the session store.
type CredentialStore interface {
	Register(ctx context.Context, email, password string) (credentials.Account, error)
	Authenticate(ctx context.Context, email, password string) (credentials.Account, error)
	FindByEmail(ctx context.Context, email string) (credentials.Account, error)
	SetPassword(ctx context.Context, userID, password string) error
}

// EventBus carries session-changed events to mounted auth contexts.
type EventBus interface {
	Publish(ctx context.Context, ev session.Event) error
	Subscribe(clientID string) (*session.Subscription, error)
}

type Options struct {
	SessionTTL         time.Duration
	SessionAbsoluteTTL time.Duration
	// PublicBaseURL prefixes links sent by email.
	PublicBaseURL string
}

// Service is the session store: it issues and validates credentials,
// persists sessions, and announces every change on the event bus.
type Service struct {
	credentials CredentialStore
	sessions    session.Store
	events      EventBus
	resets      *reset.Issuer
	mailer      mail.Mailer
	opts        Options
	now         func() time.Time
}

func NewService(
	creds CredentialStore,
	sessions session.Store,
	events EventBus,
	resets *reset.Issuer,
	mailer mail.Mailer,
	opts Options,
) *Service {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = time.Hour
	}
	if opts.SessionAbsoluteTTL < opts.SessionTTL {
		opts.SessionAbsoluteTTL = opts.SessionTTL
	}
	return &Service{
		credentials: creds,
		sessions:    sessions,
		events:      events,
		resets:      resets,
		mailer:      mailer,
		opts:        opts,
		now:         time.Now,
	}
}

func (s *Service) SessionTTL() time.Duration {
	return s.opts.SessionTTL
}

// SignUp registers a password account. It does not start a session.
func (s *Service) SignUp(ctx context.Context, in Credentials) (*User, error) {
	const op = "auth.SignUp"

	in = in.normalized()
	if err := in.validateNew(); err != nil {
		return nil, apperr.Validation(op, err)
	}

	account, err := s.credentials.Register(ctx, in.Email, in.Password)
	switch {
	case errors.Is(err, credentials.ErrAlreadyRegistered):
		return nil, apperr.Conflict(op, err)
	case errors.Is(err, credentials.ErrPasswordTooShort), errors.Is(err, credentials.ErrPasswordTooLong):
		return nil, apperr.Validation(op, err)
	case err != nil:
		return nil, apperr.Internal(op, err)
	}

	logger.Info("user registered", map[string]any{
		"user_id": account.UserID,
	})

	return &User{ID: account.UserID, Email: account.Email}, nil
}

// SignIn verifies credentials and starts a session bound to clientID.
func (s *Service) SignIn(ctx context.Context, clientID string, in Credentials) (*session.Session, error) {
	const op = "auth.SignIn"

	in = in.normalized()
	if err := in.Validate(); err != nil {
		return nil, apperr.Validation(op, err)
	}

	account, err := s.credentials.Authenticate(ctx, in.Email, in.Password)
	if errors.Is(err, credentials.ErrInvalidCredentials) {
		return nil, apperr.Unauthorized(op, ErrInvalidCredentials)
	}
	if err != nil {
		return nil, apperr.Internal(op, err)
	}

	return s.StartSession(ctx, clientID, User{ID: account.UserID, Email: account.Email})
}

// StartSession issues a fresh session for user and binds it to clientID,
// replacing whatever session the client held before.
func (s *Service) StartSession(ctx context.Context, clientID string, user User) (*session.Session, error) {
	const op = "auth.StartSession"

	if clientID == "" {
		return nil, apperr.Validation(op, errors.New("missing client id"))
	}

	sessionID, err := session.GenerateID()
	if err != nil {
		return nil, apperr.Internal(op, err)
	}
	refreshToken, err := session.GenerateRefreshToken()
	if err != nil {
		return nil, apperr.Internal(op, err)
	}

	now := s.now()
	sess := session.Session{
		SessionID:         sessionID,
		ClientID:          clientID,
		UserID:            user.ID,
		Email:             user.Email,
		RefreshToken:      refreshToken,
		CreatedAt:         now,
		ExpiresAt:         now.Add(s.opts.SessionTTL),
		AbsoluteExpiresAt: now.Add(s.opts.SessionAbsoluteTTL),
	}

	if previous, err := s.sessions.Current(ctx, clientID); err == nil {
		if err := s.sessions.Delete(ctx, previous); err != nil {
			logger.Warn("failed to revoke previous session", map[string]any{
				"client_id": clientID,
				"error":     err,
			})
		}
	}

	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, apperr.Internal(op, err)
	}
	if err := s.sessions.Bind(ctx, clientID, sessionID, sess.AbsoluteExpiresAt); err != nil {
		_ = s.sessions.Delete(ctx, sessionID)
		return nil, apperr.Internal(op, err)
	}

	logger.Info("session started", map[string]any{
		"user_id":   user.ID,
		"client_id": clientID,
	})

	s.publish(ctx, session.EventSignedIn, clientID, &sess)
	return &sess, nil
}

// GetSession returns the live session with sessionID, or nil when it is
// absent or expired. Expired sessions are removed as a side effect.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*session.Session, error) {
	const op = "auth.GetSession"

	if sessionID == "" {
		return nil, nil
	}

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, apperr.SessionQuery(op, err)
	}
	if sess == nil {
		return nil, nil
	}

	if sess.Expired(s.now()) {
		if err := s.sessions.Delete(ctx, sessionID); err != nil {
			logger.Warn("failed to delete expired session", map[string]any{
				"error": err,
			})
		}
		return nil, nil
	}
	return sess, nil
}

// CurrentSession returns the live session bound to clientID, or nil.
func (s *Service) CurrentSession(ctx context.Context, clientID string) (*session.Session, error) {
	const op = "auth.CurrentSession"

	sessionID, err := s.sessions.Current(ctx, clientID)
	if errors.Is(err, session.ErrNotBound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.SessionQuery(op, err)
	}

	sess, err := s.GetSession(ctx, sessionID)
	if err != nil || sess == nil {
		return nil, err
	}
	if sess.ClientID != clientID {
		return nil, nil
	}
	return sess, nil
}

// Refresh slides the expiry of sessionID forward, capped at its absolute
// expiry, and rotates the refresh token.
func (s *Service) Refresh(ctx context.Context, sessionID string) (*session.Session, error) {
	const op = "auth.Refresh"

	sess, err := s.GetSession(ctx, sessionID)
	if err != nil || sess == nil {
		return nil, err
	}

	expiresAt := s.now().Add(s.opts.SessionTTL)
	if expiresAt.After(sess.AbsoluteExpiresAt) {
		expiresAt = sess.AbsoluteExpiresAt
	}
	if !expiresAt.After(sess.ExpiresAt) {
		return sess, nil
	}

	refreshToken, err := session.GenerateRefreshToken()
	if err != nil {
		return nil, apperr.Internal(op, err)
	}

	updated := *sess
	updated.ExpiresAt = expiresAt
	updated.RefreshToken = refreshToken

	if err := s.sessions.Update(ctx, updated); err != nil {
		return nil, apperr.Internal(op, err)
	}

	s.publish(ctx, session.EventTokenRefreshed, updated.ClientID, &updated)
	return &updated, nil
}

// SignOut ends the session bound to clientID. Signing out a client with
// no session is not an error; the event is published either way.
func (s *Service) SignOut(ctx context.Context, clientID string) error {
	const op = "auth.SignOut"

	sessionID, err := s.sessions.Current(ctx, clientID)
	switch {
	case errors.Is(err, session.ErrNotBound):
	case err != nil:
		return apperr.Internal(op, err)
	default:
		if err := s.sessions.Delete(ctx, sessionID); err != nil {
			return apperr.Internal(op, err)
		}
	}

	if err := s.sessions.Unbind(ctx, clientID); err != nil {
		return apperr.Internal(op, err)
	}

	s.publish(ctx, session.EventSignedOut, clientID, nil)
	return nil
}

// RevokeSession deletes a session by id, signing its client out when the
// session is still that client's current one.
func (s *Service) RevokeSession(ctx context.Context, sessionID string) error {
	const op = "auth.RevokeSession"

	if sessionID == "" {
		return nil
	}

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return apperr.SessionQuery(op, err)
	}
	if sess == nil {
		return nil
	}

	current, err := s.sessions.Current(ctx, sess.ClientID)
	if err == nil && current == sessionID {
		return s.SignOut(ctx, sess.ClientID)
	}

	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return apperr.Internal(op, err)
	}
	return nil
}

// OnSessionChange subscribes to the session events of clientID.
func (s *Service) OnSessionChange(clientID string) (*session.Subscription, error) {
	sub, err := s.events.Subscribe(clientID)
	if err != nil {
		return nil, apperr.Internal("auth.OnSessionChange", err)
	}
	return sub, nil
}

// RequestPasswordReset emails a reset link when email belongs to an
// account. Unknown addresses succeed silently so callers cannot enumerate
// which emails are registered.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	const op = "auth.RequestPasswordReset"

	account, err := s.credentials.FindByEmail(ctx, email)
	if errors.Is(err, credentials.ErrUnknownAccount) {
		logger.Info("password reset requested for unknown email", nil)
		return nil
	}
	if err != nil {
		return apperr.Internal(op, err)
	}

	token, _, err := s.resets.Issue(account.UserID, account.Email)
	if err != nil {
		return apperr.Internal(op, err)
	}

	link := s.opts.PublicBaseURL + "/reset-password?token=" + url.QueryEscape(token)
	err = s.mailer.Send(ctx, mail.Message{
		To:      account.Email,
		Subject: "Reset your portfolio password",
		Body:    fmt.Sprintf("Follow this link to choose a new password:\n\n%s\n", link),
	})
	if err != nil {
		return apperr.Internal(op, err)
	}
	return nil
}

// ResetPassword sets a new password for the account named by token. A
// token works once, and every session of the account is revoked so a
// stolen session does not survive the reset.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	const op = "auth.ResetPassword"

	claims, err := s.resets.Parse(token)
	if err != nil {
		return apperr.Validation(op, err)
	}

	// Checked before redeeming so a rejected password leaves the link usable.
	if len(password) < credentials.MinPasswordLength {
		return apperr.Validation(op, credentials.ErrPasswordTooShort)
	}
	if len(password) > credentials.MaxPasswordLength {
		return apperr.Validation(op, credentials.ErrPasswordTooLong)
	}

	err = s.resets.Redeem(ctx, claims)
	switch {
	case errors.Is(err, reset.ErrTokenUsed), errors.Is(err, reset.ErrInvalidToken):
		return apperr.Validation(op, err)
	case err != nil:
		return apperr.Internal(op, err)
	}

	err = s.credentials.SetPassword(ctx, claims.Subject, password)
	switch {
	case errors.Is(err, credentials.ErrPasswordTooShort),
		errors.Is(err, credentials.ErrPasswordTooLong),
		errors.Is(err, credentials.ErrUnknownAccount):
		return apperr.Validation(op, err)
	case err != nil:
		return apperr.Internal(op, err)
	}

	s.revokeUserSessions(ctx, claims.Subject)

	logger.Info("password reset", map[string]any{
		"user_id": claims.Subject,
	})
	return nil
}

// revokeUserSessions signs out every session of userID. Failures are
// logged; the password has already changed.
func (s *Service) revokeUserSessions(ctx context.Context, userID string) {
	ids, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		logger.Error("failed to list sessions for revocation", map[string]any{
			"user_id": userID,
			"error":   err,
		})
		return
	}
	for _, id := range ids {
		if err := s.RevokeSession(ctx, id); err != nil {
			logger.Error("failed to revoke session", map[string]any{
				"user_id": userID,
				"error":   err,
			})
		}
	}
}

// ForClient scopes the store to one browser client.
func (s *Service) ForClient(clientID string) *Client {
	return &Client{service: s, clientID: clientID}
}

func (s *Service) publish(ctx context.Context, kind session.EventKind, clientID string, sess *session.Session) {
	err := s.events.Publish(ctx, session.Event{
		Kind:     kind,
		ClientID: clientID,
		Session:  sess,
		At:       s.now(),
	})
	if err != nil {
		logger.Error("failed to publish session event", map[string]any{
			"kind":      string(kind),
			"client_id": clientID,
			"error":     err,
		})
	}
}
