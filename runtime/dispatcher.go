// Package runtime owns the in-memory side of message delivery: the
// connection registry, the per-connection room set and the dispatcher
// that fans stored messages out to live sessions.
package runtime

import (
	"context"
	"log/slog"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/observability"
)

// Dispatcher resolves the recipient set of a stored message and pushes a
// delivery event to every reachable session in it.
//
// It provides best-effort fan-out with no delivery, ordering, durability or
// retry guarantees beyond the message already being persisted. An
// unreachable recipient simply picks the message up on its next fetch.
type Dispatcher struct {
	log      *slog.Logger
	registry contract.IRegistry
	rooms    contract.IRoomSet
	metrics  *observability.Metrics
}

func NewDispatcher(log *slog.Logger, registry contract.IRegistry,
	rooms contract.IRoomSet, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{log: log, registry: registry, rooms: rooms, metrics: metrics}
}

// DeliverDirect pushes the message to both parties of the conversation,
// echo to the sender included so its optimistic copy can be reconciled
// against the authoritative record.
func (d *Dispatcher) DeliverDirect(ctx context.Context, msg domain.Message) {
	sessions := make([]string, 0, 2)
	if sessionID, ok := d.registry.Resolve(msg.From.ID); ok {
		sessions = append(sessions, sessionID)
	}
	if sessionID, ok := d.registry.Resolve(msg.To); ok && msg.To != msg.From.ID {
		sessions = append(sessions, sessionID)
	}
	d.push(ctx, sessions, event.DirectMessagePosted{Message: msg})
}

// DeliverGroup pushes the message to every session currently joined to the
// group's room, whether or not its user is still on the persisted roster.
// Stale room membership is corrected the next time the roster is consulted,
// not here.
func (d *Dispatcher) DeliverGroup(ctx context.Context, msg domain.Message) {
	d.push(ctx, d.rooms.SessionsIn(msg.Group), event.GroupMessagePosted{Message: msg})
}

// DeliverReactions fans the full reaction set of a message out to the same
// recipient set as the owning message.
func (d *Dispatcher) DeliverReactions(ctx context.Context, owner domain.Message, reactions []domain.Reaction) {
	evt := event.ReactionsUpdated{MessageID: owner.ID, Reactions: reactions}
	if owner.IsGroup() {
		d.push(ctx, d.rooms.SessionsIn(owner.Group), evt)
		return
	}
	sessions := make([]string, 0, 2)
	if sessionID, ok := d.registry.Resolve(owner.From.ID); ok {
		sessions = append(sessions, sessionID)
	}
	if sessionID, ok := d.registry.Resolve(owner.To); ok && owner.To != owner.From.ID {
		sessions = append(sessions, sessionID)
	}
	d.push(ctx, sessions, evt)
}

// push delivers one event to each resolved session. A session whose sink
// refuses the event loses it; nothing is queued for later.
func (d *Dispatcher) push(ctx context.Context, sessionIDs []string, evt event.DomainEvent) {
	for _, sessionID := range sessionIDs {
		sink, ok := d.registry.Sink(sessionID)
		if !ok {
			// Session disconnected between resolution and push.
			continue
		}
		if err := sink.Consume(ctx, evt); err != nil {
			d.metrics.EventsDropped.Inc()
			d.log.Debug("delivery dropped", "event", evt.Name(), "session_id", sessionID, "error", err)
			continue
		}
		d.metrics.EventsDelivered.WithLabelValues(evt.Name()).Inc()
	}
}
