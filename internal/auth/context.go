package auth

import "context"

type contextKey struct{}

// Identity is the verified user attached to a request or connection. It is
// extracted from the credential once at the boundary and never re-validated.
type Identity struct {
	UserID      int64
	DisplayName string
	AvatarURL   string
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

func UserID(ctx context.Context) int64 {
	id, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return id.UserID
}
