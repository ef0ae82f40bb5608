package ws

import (
	"encoding/json"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"

	"github.com/go-playground/validator/v10"
)

// Envelope is the wire frame in both directions: an event name plus its
// JSON payload. Unknown events and malformed payloads are logged and
// dropped; the connection stays up.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound event names.
const (
	evJoinGroups     = "joinGroups"
	evLeaveGroup     = "leaveGroup"
	evSendDirect     = "sendMessageTo"
	evSendGroup      = "sendMessageToGroup"
	evMarkAsRead     = "markAsRead"
	evAddReaction    = "addReaction"
	evRemoveReaction = "removeReaction"
)

var validate = validator.New()

type sendDirectPayload struct {
	ToUserID string `json:"toUserId" validate:"required"`
	Message  string `json:"message" validate:"required"`
	Type     string `json:"type" validate:"omitempty,oneof=text image video file"`
}

type sendGroupPayload struct {
	GroupID string `json:"groupId" validate:"required"`
	Message string `json:"message" validate:"required"`
	Type    string `json:"type" validate:"omitempty,oneof=text image video file"`
}

type markAsReadPayload struct {
	FromUserID string `json:"fromUserId" validate:"required"`
}

type reactionPayload struct {
	MessageID string `json:"messageId" validate:"required,uuid"`
	Emoji     string `json:"emoji" validate:"required"`
}

// reactionUpdate is the outbound shape of a reaction fan-out.
type reactionUpdate struct {
	MessageID string            `json:"messageId"`
	Reactions []domain.Reaction `json:"reactions"`
}

func decodePayload(data json.RawMessage, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}

// encodeEvent turns a domain event into its wire frame. The payload is a
// structural superset of what an optimistic client fabricates locally, plus
// the authoritative id and timestamp, so the client can reconcile in place.
func encodeEvent(e event.DomainEvent) ([]byte, error) {
	var data any
	switch evt := e.(type) {
	case event.DirectMessagePosted:
		data = evt.Message
	case event.GroupMessagePosted:
		data = evt.Message
	case event.ReactionsUpdated:
		data = reactionUpdate{MessageID: evt.MessageID.String(), Reactions: evt.Reactions}
	default:
		return nil, errors.ErrUnknownEvent
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: e.Name(), Data: raw})
}
