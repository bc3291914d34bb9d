package portal

import (
	"context"
)

var userCtxKey = &contextKey{"user"}

type contextKey struct {
	name string
}

// WithContext sets the SessionUser in the given context
func WithContext(r context.Context, user *SessionUser) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the session user from the context.
func FromContext(ctx context.Context) (*SessionUser, bool) {
	raw, ok := ctx.Value(userCtxKey).(*SessionUser)
	return raw, ok
}
