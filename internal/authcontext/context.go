package authcontext

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Identity is the caller resolved by the upstream auth layer. The core trusts
// it; nothing here re-verifies credentials.
type Identity struct {
	UserID snowflake.ID
	Role   string
}

type contextKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok && id.UserID != 0
}
