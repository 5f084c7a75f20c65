package journal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

type Badger struct {
	db *badger.DB
}

func NewBadger(db *badger.DB) *Badger {
	return &Badger{db: db}
}

// OpenBadger opens a journal database in dir. An empty dir keeps everything
// in memory.
func OpenBadger(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return db, nil
}

func chatPrefix(chatID int64) string {
	return fmt.Sprintf("chat/%d/", chatID)
}

// entryKey is "chat/{chat_id}/{unix_nano padded to 20 digits}/{transfer_id}"
// so a prefix scan returns a conversation's entries in time order.
func entryKey(e Entry) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", chatPrefix(e.ChatID), e.At.UnixNano(), e.TransferID))
}

func (b *Badger) Save(ctx context.Context, e Entry) error {
	value, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(e), value)
	})
}

func (b *Badger) Recent(ctx context.Context, chatID int64, limit int) ([]Entry, error) {
	var entries []Entry
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := []byte(chatPrefix(chatID))
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// 0xFF sorts after every digit, so the seek lands past the newest key.
		for it.Seek(append(prefix, 0xFF)); it.ValidForPrefix(prefix) && len(entries) < limit; it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var e Entry
			err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &e)
			})
			if err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
