package authctx

import (
	"context"

	"portfolio-service/internal/apperr"
)

type providerKey struct{}

func WithProvider(ctx context.Context, p *Provider) context.Context {
	return context.WithValue(ctx, providerKey{}, p)
}

// FromContext returns the provider mounted for ctx. Calling it outside a
// mounted tree is a configuration error.
func FromContext(ctx context.Context) (*Provider, error) {
	p, ok := ctx.Value(providerKey{}).(*Provider)
	if !ok || p == nil {
		return nil, apperr.Configuration("authctx.FromContext", "auth context used outside of a mounted provider")
	}
	return p, nil
}

// Use is FromContext for callers that cannot continue without a provider.
func Use(ctx context.Context) *Provider {
	p, err := FromContext(ctx)
	if err != nil {
		panic(err)
	}
	return p
}
