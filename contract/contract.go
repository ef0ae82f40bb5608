package contract

import (
	"context"
	"reflect"
	"time"

	"chat-relay/domain"
	"chat-relay/domain/event"

	"github.com/google/uuid"
)

// EventSink is one live session's inbound side. Consume must not block
// the caller beyond its buffering policy; a full sink drops, it never stalls
// the dispatcher.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry maps user ids to their live transport session. Last connection
// wins: registering a user who already has a session supersedes it silently.
type IRegistry interface {
	Register(userID, sessionID string, sink EventSink)
	Resolve(userID string) (string, bool)
	Sink(sessionID string) (EventSink, bool)
	Unregister(sessionID string)
}

// IRoomSet tracks which group rooms each session has explicitly joined.
// Membership is connection-scoped: it is not derived from the persisted
// roster and does not survive a reconnect.
type IRoomSet interface {
	Join(sessionID string, groupIDs ...string)
	Leave(sessionID, groupID string)
	DropSession(sessionID string)
	SessionsIn(groupID string) []string
}

// IDispatcher resolves the recipient set of a stored message and pushes
// delivery events to every reachable session in it.
type IDispatcher interface {
	DeliverDirect(ctx context.Context, msg domain.Message)
	DeliverGroup(ctx context.Context, msg domain.Message)
	DeliverReactions(ctx context.Context, owner domain.Message, reactions []domain.Reaction)
}

type IMessageRepository interface {
	Store(msg domain.Message) error
	FindByID(id uuid.UUID) (domain.Message, error)
	// Mutate applies a read-modify-write to one message under the store's
	// per-record atomicity. The callback reports whether anything changed;
	// unchanged records are not rewritten.
	Mutate(id uuid.UUID, apply func(*domain.Message) bool) (domain.Message, error)
	ListDirect(userA, userB string, before time.Time, limit int) ([]domain.Message, error)
	ListGroup(groupID string, before time.Time, limit int) ([]domain.Message, error)
	MarkRead(readerID, otherUserID string) (int, error)
}

type IGroupRepository interface {
	Store(group domain.Group) error
	Find(id string) (domain.Group, error)
}

type IUserRepository interface {
	Store(user domain.User) error
	Find(id string) (domain.User, error)
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// lifecycle events, avoiding manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
