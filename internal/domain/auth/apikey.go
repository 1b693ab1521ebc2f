package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when no active API key matches a hash.
var ErrNotFound = errors.New("api key not found")

// ScopeAdmin grants access to the administrative order surface: the
// system-wide listing and status transitions.
const ScopeAdmin = "orders:admin"

// APIKey holds the identity and permission data for a validated API key.
// A key is the trusted-identity bridge: authenticating with it resolves to
// the owning user id.
type APIKey struct {
	ID      string
	KeyHash string
	UserID  string
	Name    string
	Scopes  []string
	Active  bool
}

// HasScope reports whether the key carries the given scope.
func (k *APIKey) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	UserID string
	Scopes []string
}

// HasScope reports whether the identity carries the given scope.
func (id Identity) HasScope(scope string) bool {
	for _, s := range id.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

type identityKey struct{}

// WithIdentity returns a context carrying the authenticated identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom extracts the authenticated identity from the context.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// Repository provides lookup of API keys by their HMAC-SHA256 hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKey, error)
}
