// ABOUTME: Authentication context for tracking identity through request handlers
// ABOUTME: Provides WithIdentity/FromContext for propagating auth info via context

package auth

import (
	"context"
)

// Role strings carried in tokens and contexts
const (
	RoleClient = "client"
	RoleAdmin  = "admin"
)

// Identity holds the authenticated identity extracted from a request.
// This is populated by the auth middleware and can be retrieved from
// context in handlers.
type Identity struct {
	PrincipalID string // client or admin user id
	Role        string // RoleClient or RoleAdmin
}

// IsAdmin returns true if the identity is a firm-side staff account.
func (i *Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// identityKey is the key type for storing Identity in context.Context.
type identityKey struct{}

// WithIdentity returns a new context with the Identity attached.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext retrieves the Identity from the context, returning nil if not present.
func FromContext(ctx context.Context) *Identity {
	val := ctx.Value(identityKey{})
	if val == nil {
		return nil
	}
	id, ok := val.(*Identity)
	if !ok {
		return nil
	}
	return id
}

// MustFromContext retrieves the Identity from the context, panicking if not present.
func MustFromContext(ctx context.Context) *Identity {
	id := FromContext(ctx)
	if id == nil {
		panic("auth: Identity not found in context")
	}
	return id
}
