package session

import "context"

// Identity is the signed-in user as seen by the form coordinators. An empty
// UserID means nobody is signed in.
type Identity struct {
	UserID   string
	UserName string
}

func (i Identity) Authenticated() bool {
	return i.UserID != ""
}

type identityKey struct{}

// WithIdentity stores identity on ctx.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// FromContext returns the identity stored on ctx, or the zero Identity.
func FromContext(ctx context.Context) Identity {
	identity, _ := ctx.Value(identityKey{}).(Identity)
	return identity
}

// ContextSource reads the current user from the request context.
type ContextSource struct{}

func (ContextSource) CurrentUser(ctx context.Context) (Identity, error) {
	return FromContext(ctx), nil
}
