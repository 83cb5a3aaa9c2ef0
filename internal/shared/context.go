package shared

import (
	"context"

	"github.com/google/uuid"
)

type actorContextKey struct{}

// ContextWithActor stores the acting user id in context.
func ContextWithActor(ctx context.Context, actorID uuid.UUID) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actorID)
}

// ActorFromContext extracts the acting user id, uuid.Nil when absent.
func ActorFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(actorContextKey{}).(uuid.UUID)
	return id
}
