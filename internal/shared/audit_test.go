package shared

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestAuditLogValidate(t *testing.T) {
	log := AuditLog{Action: "journal.submit", Entity: "journal_entry", EntityID: uuid.NewString()}
	require.Error(t, log.validate())

	log.BusinessID = uuid.New()
	require.NoError(t, log.validate())

	log.Action = ""
	require.Error(t, log.validate())
}

func TestActorContextRoundTrip(t *testing.T) {
	require.Equal(t, uuid.Nil, ActorFromContext(context.Background()))

	actor := uuid.New()
	ctx := ContextWithActor(context.Background(), actor)
	require.Equal(t, actor, ActorFromContext(ctx))
}
