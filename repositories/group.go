package repositories

import (
	"encoding/json"
	"log/slog"

	"chat-relay/domain"
	"chat-relay/errors"

	"github.com/dgraph-io/badger/v4"
)

// GroupRepository reads the persisted group roster. The realtime core only
// ever consults it; roster mutation belongs to the CRUD layer, which shares
// the same store.
type GroupRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewGroupRepository(db *badger.DB, log *slog.Logger) GroupRepository {
	return GroupRepository{db: db, log: log}
}

func groupKey(id string) []byte {
	return []byte("group:" + id)
}

func (g GroupRepository) Store(group domain.Group) error {
	value, err := json.Marshal(group)
	if err != nil {
		return err
	}
	return g.db.Update(func(txn *badger.Txn) error {
		return txn.Set(groupKey(group.ID), value)
	})
}

// Find loads the roster fresh; it is consulted on demand at send time and
// never cached by the core.
func (g GroupRepository) Find(id string) (domain.Group, error) {
	var group domain.Group
	err := g.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(groupKey(id))
		if err == badger.ErrKeyNotFound {
			return errors.ErrGroupNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &group)
		})
	})
	return group, err
}
