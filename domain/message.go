// Package domain contains core concepts of the chat system.
// This file defines Message records and the invariants enforced
// before anything reaches persistence or fan-out.
package domain

import (
	"time"

	"chat-relay/errors"

	"github.com/google/uuid"
)

type MessageType string

const (
	TypeText  MessageType = "text"
	TypeImage MessageType = "image"
	TypeVideo MessageType = "video"
	TypeFile  MessageType = "file"
)

// ValidTypes lists every accepted message type.
// Media types carry a URL as content, produced by the upload layer upstream.
var ValidTypes = map[MessageType]struct{}{
	TypeText:  {},
	TypeImage: {},
	TypeVideo: {},
	TypeFile:  {},
}

// Sender carries the displayable identity resolved at send time,
// so fan-out does not need a second round-trip per recipient.
type Sender struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// Reaction groups the users who reacted with one emoji.
// A user appears at most once per emoji; an entry never persists empty.
type Reaction struct {
	Emoji string   `json:"emoji"`
	Users []string `json:"users"`
}

// Message is a persisted chat record. Exactly one of To or Group is set.
// Once stored it is immutable except for the IsRead flag and Reactions.
type Message struct {
	ID        uuid.UUID   `json:"id"`
	From      Sender      `json:"from"`
	To        string      `json:"to,omitempty"`
	Group     string      `json:"group,omitempty"`
	Content   string      `json:"content"`
	Type      MessageType `json:"type"`
	CreatedAt time.Time   `json:"createdAt"`
	IsRead    bool        `json:"isRead"`
	Reactions []Reaction  `json:"reactions"`
}

// Validate rejects a message before any write is attempted.
func (m Message) Validate() error {
	if m.From.ID == "" {
		return errors.ErrMissingSender
	}
	if (m.To == "") == (m.Group == "") {
		return errors.ErrExclusiveRecipient
	}
	if _, ok := ValidTypes[m.Type]; !ok {
		return errors.ErrInvalidMessageType
	}
	return nil
}

// IsGroup reports whether the message belongs to a group conversation.
func (m Message) IsGroup() bool {
	return m.Group != ""
}

// AddReaction records userID under emoji. Re-adding is a no-op.
// It reports whether the reaction set actually changed.
func (m *Message) AddReaction(userID, emoji string) bool {
	for i, r := range m.Reactions {
		if r.Emoji != emoji {
			continue
		}
		for _, u := range r.Users {
			if u == userID {
				return false
			}
		}
		m.Reactions[i].Users = append(m.Reactions[i].Users, userID)
		return true
	}
	m.Reactions = append(m.Reactions, Reaction{Emoji: emoji, Users: []string{userID}})
	return true
}

// RemoveReaction drops userID from the emoji entry, deleting the entry
// entirely when its last user leaves. Removing an absent reaction is a no-op.
func (m *Message) RemoveReaction(userID, emoji string) bool {
	for i, r := range m.Reactions {
		if r.Emoji != emoji {
			continue
		}
		for j, u := range r.Users {
			if u != userID {
				continue
			}
			users := append(r.Users[:j], r.Users[j+1:]...)
			if len(users) == 0 {
				m.Reactions = append(m.Reactions[:i], m.Reactions[i+1:]...)
			} else {
				m.Reactions[i].Users = users
			}
			return true
		}
		return false
	}
	return false
}

// DirectPair returns the unordered pair of user ids identifying a
// direct conversation, smallest first, so both parties resolve the
// same storage scope.
func DirectPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}
