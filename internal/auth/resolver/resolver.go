package resolver

import (
	"context"

	"portfolio-service/internal/auth"
)

// Resolver maps an identity asserted by a social provider onto the
// portfolio user it signs in as, creating the user on first sign-in.
type Resolver interface {
	Resolve(ctx context.Context, identity *auth.Identity) (auth.User, error)
}
