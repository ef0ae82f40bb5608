package ws

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"chat-relay/domain"
	"chat-relay/domain/event"
	chaterrors "chat-relay/errors"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client is one live websocket session. Its read pump processes inbound
// events strictly in arrival order, which is what preserves a sender's
// per-connection send order end to end. It implements contract.EventSink:
// the dispatcher pushes delivery events into the buffered send channel and
// the write pump drains it.
type Client struct {
	SessionID string
	UserID    string

	server *Server
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	log    *slog.Logger
}

func newClient(server *Server, conn *websocket.Conn, userID string) *Client {
	sessionID := uuid.NewString()
	return &Client{
		SessionID: sessionID,
		UserID:    userID,
		server:    server,
		conn:      conn,
		send:      make(chan []byte, server.sendBuffer),
		done:      make(chan struct{}),
		log:       server.log.With("session_id", sessionID, "user_id", userID),
	}
}

// Consume is called by the dispatcher. It never blocks fan-out: when the
// session's buffer is full the event is dropped here and the client catches
// up from the store on its next fetch.
func (c *Client) Consume(_ context.Context, e event.DomainEvent) error {
	frame, err := encodeEvent(e)
	if err != nil {
		return err
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return fmt.Errorf("session %s backpressured, event %s dropped", c.SessionID, e.Name())
	}
}

// readPump consumes inbound frames until the connection dies. Every failure
// mode of an individual event (bad JSON, validation, persistence) is logged
// and swallowed; nothing on the realtime path answers the emitter
// synchronously.
func (c *Client) readPump(ctx context.Context) {
	defer c.server.detach(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("connection closed unexpectedly", "error", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.log.Warn("malformed frame ignored", "error", err)
			continue
		}
		c.handle(ctx, env)
	}
}

// handle dispatches one inbound event. The context is the server's root
// context, not the connection's: a disconnect mid-handler must not roll
// back a persistence write already issued.
func (c *Client) handle(ctx context.Context, env Envelope) {
	switch env.Event {
	case evJoinGroups:
		var groupIDs []string
		if err := json.Unmarshal(env.Data, &groupIDs); err != nil {
			c.log.Warn("joinGroups payload ignored", "error", err)
			return
		}
		c.server.rooms.Join(c.SessionID, groupIDs...)

	case evLeaveGroup:
		var groupID string
		if err := json.Unmarshal(env.Data, &groupID); err != nil {
			c.log.Warn("leaveGroup payload ignored", "error", err)
			return
		}
		c.server.rooms.Leave(c.SessionID, groupID)

	case evSendDirect:
		var p sendDirectPayload
		if err := decodePayload(env.Data, &p); err != nil {
			c.log.Warn("sendMessageTo payload ignored", "error", err)
			return
		}
		if _, err := c.server.chat.SendDirect(ctx, c.UserID, p.ToUserID, p.Message, domain.MessageType(p.Type)); err != nil {
			c.log.Error("direct send failed", "to", p.ToUserID, "error", err)
		}

	case evSendGroup:
		var p sendGroupPayload
		if err := decodePayload(env.Data, &p); err != nil {
			c.log.Warn("sendMessageToGroup payload ignored", "error", err)
			return
		}
		_, err := c.server.chat.SendGroup(ctx, c.UserID, p.GroupID, p.Message, domain.MessageType(p.Type))
		switch {
		case stderrors.Is(err, chaterrors.ErrNotGroupMember), stderrors.Is(err, chaterrors.ErrGroupNotFound):
			// Non-fatal to the connection; the sender simply sees no echo.
			c.log.Warn("group send rejected", "group_id", p.GroupID, "error", err)
		case err != nil:
			c.log.Error("group send failed", "group_id", p.GroupID, "error", err)
		}

	case evMarkAsRead:
		var p markAsReadPayload
		if err := decodePayload(env.Data, &p); err != nil {
			c.log.Warn("markAsRead payload ignored", "error", err)
			return
		}
		if _, err := c.server.chat.MarkRead(ctx, c.UserID, p.FromUserID); err != nil {
			c.log.Error("mark as read failed", "from", p.FromUserID, "error", err)
		}

	case evAddReaction, evRemoveReaction:
		var p reactionPayload
		if err := decodePayload(env.Data, &p); err != nil {
			c.log.Warn("reaction payload ignored", "error", err)
			return
		}
		messageID, err := uuid.Parse(p.MessageID)
		if err != nil {
			c.log.Warn("reaction payload ignored", "error", err)
			return
		}
		if env.Event == evAddReaction {
			err = c.server.chat.AddReaction(ctx, messageID, c.UserID, p.Emoji)
		} else {
			err = c.server.chat.RemoveReaction(ctx, messageID, c.UserID, p.Emoji)
		}
		if err != nil {
			c.log.Error("reaction mutation failed", "message_id", p.MessageID, "error", err)
		}

	default:
		c.log.Warn("unknown event ignored", "event", env.Event)
	}
}

// writePump drains the send channel onto the wire and keeps the connection
// alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
