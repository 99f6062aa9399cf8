//go:generate go run go.uber.org/mock/mockgen -source=../contract/contract.go -destination=../mocks/mock_contract.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"chat-relay/domain/chat"
	"chat-relay/errors"
)

// seqBandwidth is the size of the badger sequence lease used for
// insertion-order tie-breaking.
const seqBandwidth = 1024

type MessageRepository struct {
	db            *badger.DB
	seq           *badger.Sequence
	log           *slog.Logger
	limitMessages *int
}

// NewMessageRepository opens the append-only message log backed by
// BadgerDB. limitMessages caps the page size of QueryLatest; nil means
// unbounded pages.
func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte("seq:msg"), seqBandwidth)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return &MessageRepository{db: db, seq: seq, log: log, limitMessages: limitMessages}, nil
}

// Close releases the remaining sequence lease.
func (m *MessageRepository) Close() error {
	return m.seq.Release()
}

// Store persists a message and returns it with its store-assigned id.
// The key is formatted as "msg:{conversation}:{timestamp_padded}:{seq_padded}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Break same-nanosecond ties in insertion order via a durable
//     monotonic sequence, so history ordering is stable.
//
// Safe for concurrent writers; records are never mutated or deleted.
func (m *MessageRepository) Store(message chat.Message) (chat.Message, error) {
	seq, err := m.seq.Next()
	if err != nil {
		return chat.Message{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	message.ID = uuid.New()

	key := fmt.Sprintf("msg:%s:%019d:%012d",
		message.Conversation(),
		message.At.UnixNano(),
		seq,
	)
	bytes, err := json.Marshal(message)
	if err != nil {
		return chat.Message{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
	if err != nil {
		return chat.Message{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return message, nil
}

// Query returns the full conversation of the pair (either direction, or
// the public feed when one side is the public sentinel), ascending by
// timestamp. Thanks to the padded key layout the scan order is already
// chronological; no re-sort happens.
func (m *MessageRepository) Query(a, b string) ([]chat.Message, error) {
	prefix := []byte("msg:" + chat.ConversationKey(a, b) + ":")
	var out []chat.Message

	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var msg chat.Message
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &msg)
			})
			if err != nil {
				return err
			}
			out = append(out, msg)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return out, nil
}

// QueryLatest retrieves the newest page of a conversation using a reverse
// prefix scan. The returned cursor is the key suffix of the last message
// read; passing it back resumes the scan one entry further into the past.
// A nil cursor means the page read nothing: the history is exhausted.
// It stops collecting messages once the configured limitMessages is reached.
func (m *MessageRepository) QueryLatest(a, b string, cursor *string) ([]chat.Message, *string, error) {
	prefixStr := "msg:" + chat.ConversationKey(a, b) + ":"
	prefix := []byte(prefixStr)
	prefixLen := len(prefixStr)

	var out []chat.Message
	var lastKey string

	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible timestamp, then walk backwards.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(out) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[prefixLen:])
			var msg chat.Message
			err := item.Value(func(value []byte) error {
				return json.Unmarshal(value, &msg)
			})
			if err != nil {
				return err
			}
			out = append(out, msg)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	if lastKey == "" {
		// End of history: no cursor, so clients get a clean stop signal.
		return out, nil, nil
	}
	return out, &lastKey, nil
}
