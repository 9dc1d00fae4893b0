// Package auth carries the request-scoped caller identity. Authentication
// itself happens upstream; this service trusts the user ID the gateway
// forwards.
package auth

import "context"

type contextKey struct{}

func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserID returns the caller's user ID, or false when the request carried none.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(contextKey{}).(int64)
	return id, ok
}
