package session

import (
	"net/http"
	"time"
)

const (
	CookieName       = "portfolio_session"
	ClientCookieName = "portfolio_client"

	// The client cookie outlives any single session; it identifies the
	// browser whose auth context listens for session events.
	clientCookieTTL = 365 * 24 * time.Hour
)

// CookieOptions defines how session cookies are issued.
type CookieOptions struct {
	Path     string
	HttpOnly bool
	Secure   bool
	SameSite http.SameSite
	Domain   string
}

// normalize applies safe defaults without breaking callers
func (o CookieOptions) normalize() CookieOptions {
	if o.Path == "" {
		o.Path = "/"
	}
	if !o.HttpOnly {
		o.HttpOnly = true
	}
	if o.SameSite == 0 {
		o.SameSite = http.SameSiteLaxMode
	}
	return o
}

// SetCookie issues the session cookie to the client.
func SetCookie(
	w http.ResponseWriter,
	sessionID string,
	expiresAt time.Time,
	opts CookieOptions,
) {
	setCookie(w, CookieName, sessionID, expiresAt, opts)
}

// ClearCookie removes the session cookie from the client.
func ClearCookie(
	w http.ResponseWriter,
	opts CookieOptions,
) {
	opts = opts.normalize()

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     opts.Path,
		Domain:   opts.Domain,
		MaxAge:   -1,
		HttpOnly: opts.HttpOnly,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
}

// SessionIDFromRequest returns the session cookie value, or "".
func SessionIDFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// EnsureClientID returns the request's client id, issuing a new client
// cookie when the request carries none. A freshly issued id is also added
// to r so later handlers of the same request see the same client.
func EnsureClientID(w http.ResponseWriter, r *http.Request, opts CookieOptions) (string, error) {
	if cookie, err := r.Cookie(ClientCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	clientID, err := GenerateClientID()
	if err != nil {
		return "", err
	}

	setCookie(w, ClientCookieName, clientID, time.Now().Add(clientCookieTTL), opts)
	r.AddCookie(&http.Cookie{Name: ClientCookieName, Value: clientID})
	return clientID, nil
}

// AdoptClientID makes clientID the client of this browser, replacing any
// other client cookie on both the response and r.
func AdoptClientID(w http.ResponseWriter, r *http.Request, clientID string, opts CookieOptions) {
	if cookie, err := r.Cookie(ClientCookieName); err == nil && cookie.Value == clientID {
		return
	}

	setCookie(w, ClientCookieName, clientID, time.Now().Add(clientCookieTTL), opts)

	kept := r.Cookies()
	r.Header.Del("Cookie")
	for _, c := range kept {
		if c.Name != ClientCookieName {
			r.AddCookie(c)
		}
	}
	r.AddCookie(&http.Cookie{Name: ClientCookieName, Value: clientID})
}

func setCookie(w http.ResponseWriter, name, value string, expiresAt time.Time, opts CookieOptions) {
	opts = opts.normalize()

	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     opts.Path,
		Domain:   opts.Domain,
		Expires:  expiresAt,
		HttpOnly: opts.HttpOnly,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
}
