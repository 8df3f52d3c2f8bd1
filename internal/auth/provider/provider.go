package provider

import (
	"context"

	"portfolio-service/internal/auth"
)

// OAuthProvider is a social sign-in option shown on the sign-in page.
// Providers only report who the user is; the resolver and the session
// store decide what that identity may do.
type OAuthProvider interface {
	// Name is the path segment in /oauth/login/:provider.
	Name() string

	// AuthCodeURL is where the browser is sent to authenticate. The
	// caller owns state and the PKCE challenge.
	AuthCodeURL(state, codeChallenge string) string

	// ExchangeCode redeems the callback code and returns the verified
	// identity.
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*auth.Identity, error)
}
