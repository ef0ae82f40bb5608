package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chat-relay/domain"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/services"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type testRelay struct {
	server *Server
	http   *httptest.Server
	rooms  *runtime.RoomSet
	groups repositories.GroupRepository
	users  repositories.UserRepository
}

func newTestRelay(t *testing.T) *testRelay {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	metrics := observability.NewMetrics(promclient.NewRegistry())
	registry := runtime.NewRegistry()
	rooms := runtime.NewRoomSet()
	dispatcher := runtime.NewDispatcher(log, registry, rooms, metrics)

	messages := repositories.NewMessageRepository(db, log)
	groups := repositories.NewGroupRepository(db, log)
	users := repositories.NewUserRepository(db, log)
	chat := services.NewChatService(log, messages, groups, users, dispatcher, metrics, 50)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	// No verifier: the handshake userId parameter is trusted, like dev mode.
	server := NewServer(ctx, log, nil, registry, rooms, chat, metrics, 64)
	httpServer := httptest.NewServer(server.Handler())
	t.Cleanup(httpServer.Close)

	return &testRelay{server: server, http: httpServer, rooms: rooms, groups: groups, users: users}
}

func (r *testRelay) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	url := strings.Replace(r.http.URL, "http", "ws", 1) + "/ws?userId=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, eventName string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	frame, err := json.Marshal(Envelope{Event: eventName, Data: data})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}

func TestServer_Handshake_Requires_Identity(t *testing.T) {
	req := require.New(t)
	relay := newTestRelay(t)

	url := strings.Replace(relay.http.URL, "http", "ws", 1) + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	req.Error(err)
	req.Equal(401, resp.StatusCode)
}

func TestServer_Direct_Message_Reaches_Both_Parties(t *testing.T) {
	req := require.New(t)
	relay := newTestRelay(t)
	require.NoError(t, relay.users.Store(domain.User{ID: "alice", Name: "Alice"}))

	alice := relay.dial(t, "alice")
	bob := relay.dial(t, "bob")

	// When alice sends bob a direct message
	send(t, alice, "sendMessageTo", map[string]string{"toUserId": "bob", "message": "hello bob"})

	// Then both sessions receive the authoritative echo
	var direct, echo domain.Message
	env := readEnvelope(t, bob)
	req.Equal("receiveMessage", env.Event)
	req.NoError(json.Unmarshal(env.Data, &direct))

	env = readEnvelope(t, alice)
	req.Equal("receiveMessage", env.Event)
	req.NoError(json.Unmarshal(env.Data, &echo))

	req.Equal(direct.ID, echo.ID)
	req.NotEqual(uuid.Nil, direct.ID)
	req.Equal("hello bob", direct.Content)
	req.Equal(domain.TypeText, direct.Type)
	req.Equal("Alice", direct.From.Name)
	req.False(direct.CreatedAt.IsZero())
}

func TestServer_Group_Message_Only_For_Joined_Sessions(t *testing.T) {
	req := require.New(t)
	relay := newTestRelay(t)
	req.NoError(relay.groups.Store(domain.Group{
		ID: "g1", Owner: "alice", Members: []string{"alice", "bob", "clara"},
	}))

	alice := relay.dial(t, "alice")
	bob := relay.dial(t, "bob")
	clara := relay.dial(t, "clara")

	// Given alice and bob joined the room; clara is a persisted member but
	// never asked to join
	send(t, alice, "joinGroups", []string{"g1"})
	send(t, bob, "joinGroups", []string{"g1"})
	require.Eventually(t, func() bool {
		return len(relay.rooms.SessionsIn("g1")) == 2
	}, 2*time.Second, 10*time.Millisecond)

	// When alice posts to the group
	send(t, alice, "sendMessageToGroup", map[string]string{"groupId": "g1", "message": "hi all"})

	// Then only the joined sessions receive it
	env := readEnvelope(t, bob)
	req.Equal("receiveGroupMessage", env.Event)
	env = readEnvelope(t, alice)
	req.Equal("receiveGroupMessage", env.Event)
	expectSilence(t, clara)
}

func TestServer_NonMember_Group_Send_Is_Silently_Rejected(t *testing.T) {
	req := require.New(t)
	relay := newTestRelay(t)
	req.NoError(relay.groups.Store(domain.Group{ID: "g1", Owner: "alice", Members: []string{"alice"}}))

	alice := relay.dial(t, "alice")
	mallory := relay.dial(t, "mallory")

	send(t, alice, "joinGroups", []string{"g1"})
	require.Eventually(t, func() bool {
		return len(relay.rooms.SessionsIn("g1")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// When a non-member posts, nothing reaches the room and the sender
	// gets no error frame either
	send(t, mallory, "sendMessageToGroup", map[string]string{"groupId": "g1", "message": "intruder"})
	expectSilence(t, alice)
	expectSilence(t, mallory)
}

func TestServer_Reaction_Update_Reaches_Direct_Pair(t *testing.T) {
	req := require.New(t)
	relay := newTestRelay(t)

	alice := relay.dial(t, "alice")
	bob := relay.dial(t, "bob")

	send(t, alice, "sendMessageTo", map[string]string{"toUserId": "bob", "message": "react to me"})

	var msg domain.Message
	env := readEnvelope(t, bob)
	req.NoError(json.Unmarshal(env.Data, &msg))
	readEnvelope(t, alice) // drain alice's echo

	// When bob reacts
	send(t, bob, "addReaction", map[string]string{"messageId": msg.ID.String(), "emoji": "👍"})

	// Then both parties see the full updated reaction set
	for _, conn := range []*websocket.Conn{alice, bob} {
		env = readEnvelope(t, conn)
		req.Equal("reactionUpdated", env.Event)
		var update reactionUpdate
		req.NoError(json.Unmarshal(env.Data, &update))
		req.Equal(msg.ID.String(), update.MessageID)
		req.Equal([]domain.Reaction{{Emoji: "👍", Users: []string{"bob"}}}, update.Reactions)
	}
}

func TestServer_Malformed_Frames_Keep_Connection_Alive(t *testing.T) {
	req := require.New(t)
	relay := newTestRelay(t)

	alice := relay.dial(t, "alice")
	bob := relay.dial(t, "bob")

	// Given garbage, an unknown event and an invalid payload
	req.NoError(alice.WriteMessage(websocket.TextMessage, []byte("not json")))
	send(t, alice, "definitelyNotAnEvent", map[string]string{})
	send(t, alice, "sendMessageTo", map[string]string{"message": "missing recipient"})

	// Then the connection still works
	send(t, alice, "sendMessageTo", map[string]string{"toUserId": "bob", "message": "still here"})
	env := readEnvelope(t, bob)
	req.Equal("receiveMessage", env.Event)
}

func TestServer_History_Endpoint_Pages_Backwards(t *testing.T) {
	req := require.New(t)
	relay := newTestRelay(t)

	alice := relay.dial(t, "alice")
	bob := relay.dial(t, "bob")

	for _, content := range []string{"one", "two", "three"} {
		send(t, alice, "sendMessageTo", map[string]string{"toUserId": "bob", "message": content})
		readEnvelope(t, bob)
		readEnvelope(t, alice)
	}

	resp, err := relay.http.Client().Get(relay.http.URL + "/history/direct?userA=alice&userB=bob&limit=2")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(200, resp.StatusCode)

	var page []domain.Message
	req.NoError(json.NewDecoder(resp.Body).Decode(&page))
	req.Len(page, 2)
	req.Equal("two", page[0].Content)
	req.Equal("three", page[1].Content)

	// Chaining the oldest returned timestamp never repeats a record
	before := page[0].CreatedAt.Format(time.RFC3339Nano)
	resp, err = relay.http.Client().Get(relay.http.URL +
		"/history/direct?userA=alice&userB=bob&limit=2&before=" + before)
	req.NoError(err)
	defer resp.Body.Close()

	page = nil
	req.NoError(json.NewDecoder(resp.Body).Decode(&page))
	req.Len(page, 1)
	req.Equal("one", page[0].Content)
}
