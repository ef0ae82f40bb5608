package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"chat-relay/domain"
	"chat-relay/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// MessageRepository persists messages in BadgerDB.
//
// Primary keys embed the conversation scope and a 19-digit zero-padded
// UnixNano timestamp so a prefix scan yields chronological order
// lexicographically, with the UUID as a collision disconnector when two
// messages land on the same nanosecond:
//
//	msg:d:{userLo}:{userHi}:{timestamp_padded}:{uuid}   direct pair scope
//	msg:g:{groupID}:{timestamp_padded}:{uuid}           group scope
//
// A secondary index "idx:msg:{uuid}" points at the primary key so reaction
// and read-state mutations can locate a message by id alone.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

const maxMutateRetries = 5

func directPrefix(userA, userB string) string {
	lo, hi := domain.DirectPair(userA, userB)
	return fmt.Sprintf("msg:d:%s:%s:", lo, hi)
}

func groupPrefix(groupID string) string {
	return fmt.Sprintf("msg:g:%s:", groupID)
}

func (m MessageRepository) primaryKey(msg domain.Message) string {
	var prefix string
	if msg.IsGroup() {
		prefix = groupPrefix(msg.Group)
	} else {
		prefix = directPrefix(msg.From.ID, msg.To)
	}
	return fmt.Sprintf("%s%019d:%s", prefix, msg.CreatedAt.UnixNano(), msg.ID)
}

func indexKey(id uuid.UUID) []byte {
	return []byte("idx:msg:" + id.String())
}

// Store writes the message and its by-id index entry in one transaction.
// The message must already have passed domain validation.
func (m MessageRepository) Store(msg domain.Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	key := []byte(m.primaryKey(msg))
	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, value); err != nil {
			return err
		}
		return txn.Set(indexKey(msg.ID), key)
	})
}

// FindByID resolves the by-id index and loads the message.
func (m MessageRepository) FindByID(id uuid.UUID) (domain.Message, error) {
	var msg domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		loaded, _, err := loadByID(txn, id)
		if err != nil {
			return err
		}
		msg = loaded
		return nil
	})
	return msg, err
}

// Mutate applies a read-modify-write to one message. The whole cycle runs
// inside a single transaction so concurrent mutations of the same message
// serialize; a conflicting commit is retried with a fresh read. The apply
// callback reports whether anything changed; unchanged records are not
// rewritten.
func (m MessageRepository) Mutate(id uuid.UUID, apply func(*domain.Message) bool) (domain.Message, error) {
	var msg domain.Message
	for attempt := 0; ; attempt++ {
		err := m.db.Update(func(txn *badger.Txn) error {
			loaded, key, err := loadByID(txn, id)
			if err != nil {
				return err
			}
			changed := apply(&loaded)
			msg = loaded
			if !changed {
				return nil
			}
			value, err := json.Marshal(loaded)
			if err != nil {
				return err
			}
			return txn.Set(key, value)
		})
		if err == badger.ErrConflict && attempt < maxMutateRetries {
			m.log.Debug("message mutation conflicted, retrying", "message_id", id, "attempt", attempt)
			continue
		}
		return msg, err
	}
}

// MarkRead bulk-flips IsRead on every unread message sent by otherUserID to
// readerID in their direct conversation. Group messages carry no per-member
// read state and are untouched. Returns the number of records updated.
func (m MessageRepository) MarkRead(readerID, otherUserID string) (int, error) {
	updated := 0
	prefix := []byte(directPrefix(readerID, otherUserID))
	err := m.db.Update(func(txn *badger.Txn) error {
		updated = 0
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var msg domain.Message
			err := item.Value(func(value []byte) error {
				return json.Unmarshal(value, &msg)
			})
			if err != nil {
				return err
			}
			if msg.IsRead || msg.From.ID != otherUserID || msg.To != readerID {
				continue
			}
			msg.IsRead = true
			value, err := json.Marshal(msg)
			if err != nil {
				return err
			}
			if err := txn.Set(item.KeyCopy(nil), value); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	return updated, err
}

// ListDirect pages backwards through a direct conversation.
func (m MessageRepository) ListDirect(userA, userB string, before time.Time, limit int) ([]domain.Message, error) {
	return m.list(directPrefix(userA, userB), before, limit)
}

// ListGroup pages backwards through a group conversation.
func (m MessageRepository) ListGroup(groupID string, before time.Time, limit int) ([]domain.Message, error) {
	return m.list(groupPrefix(groupID), before, limit)
}

// list scans the scope prefix in reverse from just below the cursor.
// The cursor is strictly exclusive: no returned message has
// CreatedAt >= before, so chaining the oldest returned timestamp never
// re-fetches a record. A zero cursor means "from the newest". Results come
// back oldest-first, ready for display.
func (m MessageRepository) list(prefix string, before time.Time, limit int) ([]domain.Message, error) {
	var messages []domain.Message
	prefixBytes := []byte(prefix)
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		if before.IsZero() {
			// Past any real timestamp; the reverse scan starts at the newest.
			seekKey = append(prefixBytes, []byte("9999999999999999999")...)
		} else {
			// Keys at exactly this timestamp sort above the bare padded value
			// because of the ":uuid" suffix, so the cursor stays exclusive.
			seekKey = append(prefixBytes, []byte(fmt.Sprintf("%019d", before.UnixNano()))...)
		}

		for it.Seek(seekKey); it.ValidForPrefix(prefixBytes); it.Next() {
			if limit > 0 && len(messages) == limit {
				break
			}
			var msg domain.Message
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &msg)
			})
			if err != nil {
				return err
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Scan order is newest-first; callers render oldest-first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func loadByID(txn *badger.Txn, id uuid.UUID) (domain.Message, []byte, error) {
	item, err := txn.Get(indexKey(id))
	if err == badger.ErrKeyNotFound {
		return domain.Message{}, nil, errors.ErrMessageNotFound
	}
	if err != nil {
		return domain.Message{}, nil, err
	}
	key, err := item.ValueCopy(nil)
	if err != nil {
		return domain.Message{}, nil, err
	}
	record, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return domain.Message{}, nil, errors.ErrMessageNotFound
	}
	if err != nil {
		return domain.Message{}, nil, err
	}
	var msg domain.Message
	err = record.Value(func(value []byte) error {
		return json.Unmarshal(value, &msg)
	})
	return msg, key, err
}
