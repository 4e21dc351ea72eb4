// Package history persists the per-channel message log in BadgerDB. Entries
// are append-only and keyed so that a plain prefix scan returns a channel's
// messages in send order:
//
//	Key:   msg:<channel>:<19-digit zero-padded unix nanos>:<uuid>
//	Value: JSON-encoded Entry
//
// The zero padding makes lexicographic key order equal chronological order;
// the trailing UUID disambiguates two messages appended in the same
// nanosecond.
package history

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const keyPrefix = "msg:"

// Entry is one immutable message in the log. The identity fields are a
// snapshot of the sender taken at send time; profile edits after the fact do
// not rewrite history.
type Entry struct {
	ID       uuid.UUID `json:"id"`
	Channel  string    `json:"channel"`
	Username string    `json:"username"`
	Tag      string    `json:"tag"`
	Avatar   string    `json:"avatar"`
	Body     string    `json:"body"`
	At       time.Time `json:"at"`
}

// Log is the append-only message store.
type Log struct {
	db *badger.DB
}

// Open opens (or creates) a message log at dir.
func Open(dir string) (*Log, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", dir, err)
	}
	return &Log{db: db}, nil
}

// NewLog wraps an already-open Badger handle. Used by tests that manage the
// database lifecycle themselves.
func NewLog(db *badger.DB) *Log {
	return &Log{db: db}
}

// Append persists an entry. The entry's ID is assigned here if unset.
func (l *Log) Append(entry Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	key := fmt.Sprintf("%s%s:%019d:%s", keyPrefix, entry.Channel, entry.At.UnixNano(), entry.ID)

	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("history: marshal: %w", err)
	}
	err = l.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("history: append: %w", err)
	}
	return nil
}

// List returns all entries for a channel in append order. Channels share one
// keyspace but never bleed into each other thanks to the channel segment in
// the key prefix.
func (l *Log) List(channel string) ([]Entry, error) {
	prefix := []byte(keyPrefix + channel + ":")

	var entries []Entry
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var entry Entry
				if err := json.Unmarshal(value, &entry); err != nil {
					return fmt.Errorf("history: unmarshal %s: %w", it.Item().Key(), err)
				}
				entries = append(entries, entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Close closes the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}
