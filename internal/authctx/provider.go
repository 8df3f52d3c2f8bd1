// Package authctx keeps a reactive, non-authoritative copy of the current
// session for one mounted page tree. The session store stays the source
// of truth; a Provider only mirrors it through a single subscription.
package authctx

import (
	"context"
	"sync"
	"time"

	"portfolio-service/internal/apperr"
	"portfolio-service/internal/auth"
	"portfolio-service/internal/logger"
	"portfolio-service/internal/session"
)

const DefaultSignInPath = "/signin"

// SessionStore is the part of the session store a Provider consumes.
type SessionStore interface {
	GetSession(ctx context.Context) (*session.Session, error)
	SignOut(ctx context.Context) error
	OnSessionChange(ctx context.Context) (*session.Subscription, error)
}

type State int

const (
	// StateUnknown is reported before the first resolution. It is never
	// treated as authenticated.
	StateUnknown State = iota
	StateAnonymous
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Value is the cached pair. User is set iff Session is set and unexpired.
type Value struct {
	User    *auth.User
	Session *session.Session
}

func (v Value) Authenticated() bool {
	return v.User != nil
}

// Navigator moves the browser to another page.
type Navigator interface {
	Navigate(ctx context.Context, path string)
}

type NavigatorFunc func(ctx context.Context, path string)

func (f NavigatorFunc) Navigate(ctx context.Context, path string) {
	f(ctx, path)
}

type Option func(*Provider)

func WithNavigator(n Navigator) Option {
	return func(p *Provider) { p.navigator = n }
}

// WithOnChange registers the hook run after each applied session event.
// It runs on the consumer goroutine and must not call Unmount.
func WithOnChange(fn func(Value)) Option {
	return func(p *Provider) { p.onChange = fn }
}

func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

func WithSignInPath(path string) Option {
	return func(p *Provider) { p.signInPath = path }
}

// Provider is the auth context of one mounted tree.
type Provider struct {
	store      SessionStore
	navigator  Navigator
	onChange   func(Value)
	now        func() time.Time
	signInPath string

	mu    sync.Mutex
	state State
	value Value
	// gen counts applied events; a refresh that raced an event is dropped.
	gen  uint64
	torn bool

	sub  *session.Subscription
	done chan struct{}
}

// Mount registers the provider's only subscription with store, starts
// the event consumer and resolves the initial session.
func Mount(ctx context.Context, store SessionStore, opts ...Option) (*Provider, error) {
	const op = "authctx.Mount"

	if store == nil {
		return nil, apperr.Configuration(op, "no session store")
	}

	p := &Provider{
		store:      store,
		navigator:  NavigatorFunc(func(context.Context, string) {}),
		now:        time.Now,
		signInPath: DefaultSignInPath,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	sub, err := store.OnSessionChange(ctx)
	if err != nil {
		return nil, apperr.Internal(op, err)
	}
	p.sub = sub

	go p.consume()

	p.RefreshSession(ctx)
	return p, nil
}

// RefreshSession re-reads the session from the store. A failed query is
// logged and resolves to anonymous.
func (p *Provider) RefreshSession(ctx context.Context) Value {
	p.mu.Lock()
	if p.torn {
		v := p.currentLocked()
		p.mu.Unlock()
		return v
	}
	gen := p.gen
	p.mu.Unlock()

	sess, err := p.store.GetSession(ctx)
	if err != nil {
		logger.Warn("session query failed", map[string]any{
			"kind":  apperr.KindOf(err).String(),
			"error": err,
		})
		sess = nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.torn || p.gen != gen {
		return p.currentLocked()
	}
	p.setLocked(sess)
	return p.currentLocked()
}

// SignOut ends the session in the store and navigates to the sign-in
// page, whether or not a session was active.
func (p *Provider) SignOut(ctx context.Context) {
	if err := p.store.SignOut(ctx); err != nil {
		logger.Error("sign out failed", map[string]any{
			"error": err,
		})
	}

	p.mu.Lock()
	if !p.torn {
		p.gen++
		p.setLocked(nil)
	}
	p.mu.Unlock()

	p.navigator.Navigate(ctx, p.signInPath)
}

// Unmount releases the subscription and waits for the consumer to stop.
// No event mutates the provider once Unmount has returned.
func (p *Provider) Unmount() {
	p.mu.Lock()
	if p.torn {
		p.mu.Unlock()
		return
	}
	p.torn = true
	p.mu.Unlock()

	p.sub.Unsubscribe()
	<-p.done
}

func (p *Provider) Value() Value {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentLocked()
}

func (p *Provider) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateAuthenticated && !p.currentLocked().Authenticated() {
		return StateAnonymous
	}
	return p.state
}

func (p *Provider) consume() {
	defer close(p.done)
	for ev := range p.sub.Events() {
		p.apply(ev)
	}
}

func (p *Provider) apply(ev session.Event) {
	p.mu.Lock()
	if p.torn {
		p.mu.Unlock()
		return
	}
	p.gen++
	if ev.Kind == session.EventSignedOut {
		p.setLocked(nil)
	} else {
		p.setLocked(ev.Session)
	}
	v := p.currentLocked()
	p.mu.Unlock()

	logger.Debug("session event applied", map[string]any{
		"kind":  string(ev.Kind),
		"state": p.State().String(),
	})

	if p.onChange != nil {
		p.onChange(v)
	}
}

func (p *Provider) setLocked(sess *session.Session) {
	if sess == nil || sess.Expired(p.now()) {
		p.state = StateAnonymous
		p.value = Value{}
		return
	}
	cp := *sess
	p.state = StateAuthenticated
	p.value = Value{
		User:    &auth.User{ID: cp.UserID, Email: cp.Email},
		Session: &cp,
	}
}

// currentLocked hides a cached session that has expired since it was set.
func (p *Provider) currentLocked() Value {
	if p.value.Session == nil || p.value.Session.Expired(p.now()) {
		return Value{}
	}
	return p.value
}
