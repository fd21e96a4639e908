package auth

import "context"

// Method identifies how a caller authenticated.
type Method string

const (
	// MethodBearer marks identities established from an OAuth bearer token.
	MethodBearer Method = "bearer"
	// MethodPAT marks identities established from a personal access token.
	MethodPAT Method = "pat"
)

// Identity holds authenticated caller information.
type Identity struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Method   Method `json:"method"`

	// Token is the raw credential the caller presented, kept so tool
	// handlers can forward it downstream.
	Token string `json:"-"`
}

// IsPAT reports whether the identity was established from a PAT.
func (id *Identity) IsPAT() bool {
	return id.Method == MethodPAT
}

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const identityKey contextKey = "mcp_identity"

// WithIdentity returns a context carrying the caller identity.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext extracts the caller identity, if present.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil
}
