package middleware

import (
	"context"

	"github.com/angelmondragon/readcycle-backend/pkg/auth"
)

type contextKey string

const ctxIdentity contextKey = "identity"

// IdentityFromContext returns the actor resolved by Auth.
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	if ctx == nil {
		return auth.Identity{}, false
	}
	id, ok := ctx.Value(ctxIdentity).(auth.Identity)
	return id, ok
}

// ActorEmail returns the authenticated email or "".
func ActorEmail(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.Email
}

// WithIdentity injects the actor into the context.
func WithIdentity(ctx context.Context, id auth.Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdentity, id)
}
