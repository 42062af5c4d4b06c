package httpx

import "context"

// Identity is the authenticated principal resolved by the bearer gate.
type Identity struct {
	UserID   string
	ClientID string
	Scopes   []string
}

type ctxKey string

const ctxKeyIdentity ctxKey = "identity"

// ContextWithIdentity attaches the resolved identity to a request context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, id)
}

// IdentityFromContext returns the identity attached by the bearer gate.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKeyIdentity).(Identity)
	return id, ok
}
