package reqid

import (
	"context"

	"github.com/google/uuid"
)

// key is an unexported type to avoid collisions in context values.
type key struct{}

// New tags ctx with a fresh poll cycle ID and returns it.
func New(ctx context.Context) (context.Context, string) {
	id := uuid.NewString()
	return With(ctx, id), id
}

// With returns a new context carrying the provided cycle ID.
func With(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key{}, id)
}

// From extracts the cycle ID from the context, if present.
func From(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	s, ok := ctx.Value(key{}).(string)
	return s, ok && s != ""
}
