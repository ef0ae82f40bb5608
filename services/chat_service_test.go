package services

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// recordingDispatcher captures deliveries instead of pushing to sessions.
type recordingDispatcher struct {
	mu        sync.Mutex
	direct    []domain.Message
	group     []domain.Message
	reactions []domain.Message
}

func (d *recordingDispatcher) DeliverDirect(_ context.Context, msg domain.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.direct = append(d.direct, msg)
}

func (d *recordingDispatcher) DeliverGroup(_ context.Context, msg domain.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.group = append(d.group, msg)
}

func (d *recordingDispatcher) DeliverReactions(_ context.Context, owner domain.Message, _ []domain.Reaction) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reactions = append(d.reactions, owner)
}

func newTestService(t *testing.T) (*ChatService, *recordingDispatcher, repositories.MessageRepository, repositories.GroupRepository, repositories.UserRepository) {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	messages := repositories.NewMessageRepository(db, log)
	groups := repositories.NewGroupRepository(db, log)
	users := repositories.NewUserRepository(db, log)
	dispatcher := &recordingDispatcher{}
	metrics := observability.NewMetrics(promclient.NewRegistry())
	service := NewChatService(log, messages, groups, users, dispatcher, metrics, 50)
	return service, dispatcher, messages, groups, users
}

func TestChatService_SendDirect_Persists_Then_Fans_Out(t *testing.T) {
	req := require.New(t)
	service, dispatcher, messages, _, users := newTestService(t)
	req.NoError(users.Store(domain.User{ID: "alice", Name: "Alice", Avatar: "https://cdn/a.png"}))

	// When alice sends bob a message
	msg, err := service.SendDirect(context.Background(), "alice", "bob", "hello bob", "")
	req.NoError(err)

	// Then the stored form carries the authoritative id, timestamp, the
	// defaulted type and the resolved sender display fields
	req.NotEqual(uuid.Nil, msg.ID)
	req.False(msg.CreatedAt.IsZero())
	req.Equal(domain.TypeText, msg.Type)
	req.Equal("Alice", msg.From.Name)
	req.False(msg.IsRead)
	req.Empty(msg.Reactions)

	// And it was persisted before being fanned out
	stored, err := messages.FindByID(msg.ID)
	req.NoError(err)
	req.Equal(msg.Content, stored.Content)
	req.Len(dispatcher.direct, 1)
	req.Equal(msg.ID, dispatcher.direct[0].ID)
}

func TestChatService_SendDirect_Without_Profile_Keeps_Bare_Sender(t *testing.T) {
	req := require.New(t)
	service, _, _, _, _ := newTestService(t)

	msg, err := service.SendDirect(context.Background(), "ghost", "bob", "boo", domain.TypeText)
	req.NoError(err)
	req.Equal(domain.Sender{ID: "ghost"}, msg.From)
}

func TestChatService_SendDirect_Rejects_Invalid_Type(t *testing.T) {
	req := require.New(t)
	service, dispatcher, _, _, _ := newTestService(t)

	_, err := service.SendDirect(context.Background(), "alice", "bob", "hello", "sticker")
	req.ErrorIs(err, errors.ErrInvalidMessageType)
	req.Empty(dispatcher.direct)
}

func TestChatService_SendGroup_Member_Flow(t *testing.T) {
	req := require.New(t)
	service, dispatcher, _, groups, _ := newTestService(t)
	req.NoError(groups.Store(domain.Group{ID: "g1", Owner: "alice", Members: []string{"alice", "bob"}}))

	msg, err := service.SendGroup(context.Background(), "alice", "g1", "hi all", domain.TypeText)
	req.NoError(err)
	req.Equal("g1", msg.Group)
	req.Empty(msg.To)
	req.Len(dispatcher.group, 1)
}

func TestChatService_SendGroup_NonMember_Writes_Nothing(t *testing.T) {
	req := require.New(t)
	service, dispatcher, messages, groups, _ := newTestService(t)
	req.NoError(groups.Store(domain.Group{ID: "g1", Owner: "alice", Members: []string{"alice"}}))

	// When an outsider tries to post
	_, err := service.SendGroup(context.Background(), "mallory", "g1", "let me in", domain.TypeText)

	// Then the send is rejected with no persisted message and no fan-out
	req.ErrorIs(err, errors.ErrNotGroupMember)
	req.Empty(dispatcher.group)

	stored, err := messages.ListGroup("g1", time.Time{}, 10)
	req.NoError(err)
	req.Empty(stored)
}

func TestChatService_SendGroup_Missing_Group(t *testing.T) {
	req := require.New(t)
	service, dispatcher, _, _, _ := newTestService(t)

	_, err := service.SendGroup(context.Background(), "alice", "nope", "anyone?", domain.TypeText)
	req.ErrorIs(err, errors.ErrGroupNotFound)
	req.Empty(dispatcher.group)
}

func TestChatService_Reactions_Mutate_And_Fan_Out(t *testing.T) {
	req := require.New(t)
	service, dispatcher, messages, _, _ := newTestService(t)

	msg, err := service.SendDirect(context.Background(), "alice", "bob", "react", domain.TypeText)
	req.NoError(err)

	// Adding twice keeps a single occurrence but re-broadcasts both times
	req.NoError(service.AddReaction(context.Background(), msg.ID, "bob", "👍"))
	req.NoError(service.AddReaction(context.Background(), msg.ID, "bob", "👍"))
	req.Len(dispatcher.reactions, 2)

	stored, err := messages.FindByID(msg.ID)
	req.NoError(err)
	req.Equal([]domain.Reaction{{Emoji: "👍", Users: []string{"bob"}}}, stored.Reactions)

	// Removing an absent reaction is a no-op, not an error
	req.NoError(service.RemoveReaction(context.Background(), msg.ID, "clara", "👍"))

	// Removing the last user deletes the entry
	req.NoError(service.RemoveReaction(context.Background(), msg.ID, "bob", "👍"))
	stored, err = messages.FindByID(msg.ID)
	req.NoError(err)
	req.Empty(stored.Reactions)
}

func TestChatService_Reaction_On_Missing_Message(t *testing.T) {
	req := require.New(t)
	service, dispatcher, _, _, _ := newTestService(t)

	err := service.AddReaction(context.Background(), uuid.New(), "bob", "👍")
	req.ErrorIs(err, errors.ErrMessageNotFound)
	req.Empty(dispatcher.reactions)
}

func TestChatService_MarkRead_Is_Silent(t *testing.T) {
	req := require.New(t)
	service, dispatcher, _, _, _ := newTestService(t)

	_, err := service.SendDirect(context.Background(), "alice", "bob", "one", domain.TypeText)
	req.NoError(err)
	_, err = service.SendDirect(context.Background(), "alice", "bob", "two", domain.TypeText)
	req.NoError(err)

	updated, err := service.MarkRead(context.Background(), "bob", "alice")
	req.NoError(err)
	req.Equal(2, updated)

	// Read-state updates trigger no realtime echo
	req.Empty(dispatcher.reactions)
	req.Len(dispatcher.direct, 2)
}

func TestChatService_List_Clamps_Limit(t *testing.T) {
	req := require.New(t)
	service, _, _, _, _ := newTestService(t)

	for i := 0; i < 3; i++ {
		_, err := service.SendDirect(context.Background(), "alice", "bob", "spam", domain.TypeText)
		req.NoError(err)
		time.Sleep(time.Millisecond)
	}

	// A non-positive limit falls back to the configured page size
	messages, err := service.ListDirect(context.Background(), "alice", "bob", time.Time{}, 0)
	req.NoError(err)
	req.Len(messages, 3)

	messages, err = service.ListDirect(context.Background(), "alice", "bob", time.Time{}, 2)
	req.NoError(err)
	req.Len(messages, 2)
}
