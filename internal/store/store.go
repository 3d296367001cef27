// Package store persists the chat history as an append-only log in BadgerDB.
//
// Every accepted chat message is assigned a strictly increasing sequence id and
// stored under a zero-padded decimal key, so Badger's lexicographic iteration
// order matches numeric id order. Values are the serialized outbound message
// payloads, allowing history replies to forward records verbatim.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// ErrCorruptRecord reports a persisted record that is no longer valid JSON.
// It only affects the range that touched the record.
var ErrCorruptRecord = errors.New("corrupt message record")

// Message is the wire and storage representation of one chat message.
type Message struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Username string `json:"username"`
	ID       uint64 `json:"id"`
	Datetime int64  `json:"datetime"`
}

// Store is an append-only message log. Id assignment and appends are
// serialized by a single mutex so concurrent writers never observe the same
// sequence id.
type Store struct {
	db  *badger.DB
	log *slog.Logger

	mu   sync.Mutex
	next uint64
}

// Open opens (or creates) the log at path and resumes the sequence counter
// from the number of persisted records.
func Open(path string, log *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening message store: %w", err)
	}

	next, err := countRecords(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Info("message store opened", "path", path, "messages", next)
	return &Store{db: db, log: log, next: next}, nil
}

func countRecords(db *badger.DB) (uint64, error) {
	var n uint64
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("counting persisted messages: %w", err)
	}
	return n, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Count returns the number of persisted messages. The next append receives
// exactly this value as its id.
func (s *Store) Count() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Append assigns the next sequence id, persists the message, and returns the
// id together with the exact payload that was stored. The counter only
// advances after the write succeeded, so a failed append never leaves a gap.
func (s *Store) Append(username, text string, at time.Time) (uint64, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.next
	payload, err := json.Marshal(Message{
		Type:     "message",
		Message:  text,
		Username: username,
		ID:       id,
		Datetime: at.Unix(),
	})
	if err != nil {
		return 0, nil, fmt.Errorf("marshaling message %d: %w", id, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(id), payload)
	})
	if err != nil {
		return 0, nil, fmt.Errorf("persisting message %d: %w", id, err)
	}

	s.next++
	return id, payload, nil
}

// Range returns the raw payloads of all persisted messages with ids in
// [from, to), in ascending id order. A negative from is clamped to zero and
// ids beyond the persisted range are simply absent. A record that fails JSON
// validation surfaces ErrCorruptRecord for this range only.
func (s *Store) Range(from, to int64) ([]string, error) {
	if from < 0 {
		from = 0
	}
	if to <= from {
		return nil, nil
	}

	var out []string
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(key(uint64(from))); it.Valid(); it.Next() {
			item := it.Item()
			id, err := parseKey(item.Key())
			if err != nil {
				return err
			}
			if id >= uint64(to) {
				break
			}
			err = item.Value(func(v []byte) error {
				if !json.Valid(v) {
					return fmt.Errorf("%w: id %d", ErrCorruptRecord, id)
				}
				out = append(out, string(v))
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
	return out, nil
}

// key formats a sequence id as a 19-digit zero-padded decimal string so that
// lexicographic key order equals numeric order.
func key(id uint64) []byte {
	return fmt.Appendf(nil, "%019d", id)
}

func parseKey(k []byte) (uint64, error) {
	id, err := strconv.ParseUint(string(k), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: unparsable key %q", ErrCorruptRecord, k)
	}
	return id, nil
}
