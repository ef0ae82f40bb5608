package runtime

import (
	"context"
	"testing"

	"chat-relay/domain/event"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type Sink struct {
	id string
}

func (s Sink) Consume(_ context.Context, _ event.DomainEvent) error {
	return nil
}

func TestRegistry_Register_And_Resolve(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sessionID := uuid.NewString()

	// Given no user is connected
	_, ok := registry.Resolve("alice")
	req.False(ok)

	// When a user registers a session
	registry.Register("alice", sessionID, Sink{id: "a"})

	// Then the session and its sink resolve
	resolved, ok := registry.Resolve("alice")
	req.True(ok)
	req.Equal(sessionID, resolved)

	sink, ok := registry.Sink(sessionID)
	req.True(ok)
	req.Equal(Sink{id: "a"}, sink)
}

func TestRegistry_Last_Connection_Wins(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	first := uuid.NewString()
	second := uuid.NewString()

	// Given a user already connected on one device
	registry.Register("alice", first, Sink{id: "first"})

	// When the same user connects again
	registry.Register("alice", second, Sink{id: "second"})

	// Then only the newest session resolves
	resolved, ok := registry.Resolve("alice")
	req.True(ok)
	req.Equal(second, resolved)
}

func TestRegistry_Unregister_Removes_Session(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sessionID := uuid.NewString()
	registry.Register("alice", sessionID, Sink{})

	// When the session disconnects
	registry.Unregister(sessionID)

	// Then the user is unreachable and the sink is gone
	_, ok := registry.Resolve("alice")
	req.False(ok)
	_, ok = registry.Sink(sessionID)
	req.False(ok)
}

func TestRegistry_Unregister_Superseded_Session_Keeps_Current(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	first := uuid.NewString()
	second := uuid.NewString()

	// Given a superseded session
	registry.Register("alice", first, Sink{id: "first"})
	registry.Register("alice", second, Sink{id: "second"})

	// When the old session finally disconnects
	registry.Unregister(first)

	// Then the current session is untouched
	resolved, ok := registry.Resolve("alice")
	req.True(ok)
	req.Equal(second, resolved)

	_, ok = registry.Sink(second)
	req.True(ok)
}

func TestRegistry_Unregister_Unknown_Session_Is_NoOp(t *testing.T) {
	registry := NewRegistry()
	registry.Unregister(uuid.NewString())
}
