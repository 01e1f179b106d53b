//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"chat-relay/errors"
)

type IMessageRepository interface {
	StoreMessage(message DiskMessage) error
	GetMessages(userID string, cursor *string) ([]DiskMessage, *string, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

type DiskMessage struct {
	ID            uuid.UUID
	Sender        string
	Receiver      string
	Kind          string
	Content       string
	AttachmentURL string
	At            time.Time
}

// diskRecord is the stored JSON shape. Kept separate from DiskMessage so the
// on-disk field names stay stable if the repository struct evolves.
type diskRecord struct {
	ID            string    `json:"id"`
	Sender        string    `json:"sender"`
	Receiver      string    `json:"receiver"`
	Kind          string    `json:"kind"`
	Content       string    `json:"content,omitempty"`
	AttachmentURL string    `json:"attachmentUrl,omitempty"`
	At            time.Time `json:"at"`
}

// StoreMessage persists a message in BadgerDB under one key per participant:
// "msg:{user_id}:{timestamp_padded}:{uuid}". History for a user is then a
// single prefix scan, matching the sender-or-receiver query. The layout:
//  1. Ensures chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Prevents data loss by using UUID as a collision disconnector if two
//     messages arrive at the same nanosecond.
func (m MessageRepository) StoreMessage(message DiskMessage) error {
	bytes, err := json.Marshal(fromDiskMessage(message))
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrStorageFailure, err)
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		for _, participant := range participants(message) {
			key := fmt.Sprintf("msg:%s:%019d:%s",
				participant,
				message.At.UnixNano(),
				message.ID,
			)
			if err := txn.Set([]byte(key), bytes); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrStorageFailure, err)
	}
	return nil
}

func participants(message DiskMessage) []string {
	if message.Sender == message.Receiver {
		return []string{message.Sender}
	}
	return []string{message.Sender, message.Receiver}
}

// GetMessages retrieves a user's messages, newest first, using a prefix scan.
// Thanks to the padded timestamp in the key, messages are naturally sorted
// by time. It stops collecting messages once the configured limitMessages is
// reached and returns an opaque cursor for the next page.
func (m MessageRepository) GetMessages(userID string, cursor *string) ([]DiskMessage, *string, error) {
	var byteMessages [][]byte
	var diskMessages []DiskMessage
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", userID)
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)
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
			if m.limitMessages != nil && len(byteMessages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			item := it.Item()
			// Memorize cursor part of the actual key
			lastKey = string(item.Key()[prefixLen:])
			err := item.Value(func(value []byte) error {
				byteMessages = append(byteMessages, value)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	for _, b := range byteMessages {
		var record diskRecord
		if err = json.Unmarshal(b, &record); err != nil {
			return nil, nil, err
		}
		message, err := toDiskMessage(record)
		if err != nil {
			return nil, nil, err
		}
		diskMessages = append(diskMessages, message)
	}
	// A cursor only makes sense when the limit cut the scan short;
	// an exhausted scan has no position to resume from.
	if m.limitMessages == nil || len(diskMessages) < *m.limitMessages {
		return diskMessages, nil, err
	}
	return diskMessages, &lastKey, err
}

func fromDiskMessage(message DiskMessage) diskRecord {
	return diskRecord{
		ID:            message.ID.String(),
		Sender:        message.Sender,
		Receiver:      message.Receiver,
		Kind:          message.Kind,
		Content:       message.Content,
		AttachmentURL: message.AttachmentURL,
		At:            message.At.UTC(),
	}
}

func toDiskMessage(record diskRecord) (DiskMessage, error) {
	parsedID, err := uuid.Parse(record.ID)
	if err != nil {
		return DiskMessage{}, err
	}
	return DiskMessage{
		ID:            parsedID,
		Sender:        record.Sender,
		Receiver:      record.Receiver,
		Kind:          record.Kind,
		Content:       record.Content,
		AttachmentURL: record.AttachmentURL,
		At:            record.At.UTC(),
	}, nil
}
