// Package event defines the domain events pushed through the fan-out
// pipeline to connected sessions.
package event

import (
	"chat-relay/domain"

	"github.com/google/uuid"
)

// DomainEvent is anything the dispatcher can push to a live session.
// Name is the wire event the transport layer emits it under.
type DomainEvent interface {
	Name() string
}

// DirectMessagePosted is delivered to both parties of a direct
// conversation, echo to the sender included.
type DirectMessagePosted struct {
	Message domain.Message
}

func (DirectMessagePosted) Name() string { return "receiveMessage" }

// GroupMessagePosted is delivered to every session currently joined
// to the group's room.
type GroupMessagePosted struct {
	Message domain.Message
}

func (GroupMessagePosted) Name() string { return "receiveGroupMessage" }

// ReactionsUpdated carries the full reaction set of one message after a
// mutation. Recipients are resolved the same way as the owning message.
type ReactionsUpdated struct {
	MessageID uuid.UUID
	Reactions []domain.Reaction
}

func (ReactionsUpdated) Name() string { return "reactionUpdated" }
