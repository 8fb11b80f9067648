package auth

import (
	"context"

	"github.com/platinummonkey/alertdesk/pkg/contextkeys"
)

// WithPrincipal stores the resolved principal on the context
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return contextkeys.WithPrincipal(ctx, p)
}

// PrincipalFromContext returns the principal set by the auth middleware, or nil
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(contextkeys.PrincipalKey).(*Principal)
	return p
}
