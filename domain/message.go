// Package domain contains core concepts of the relay.
// This file defines Message entities and their rules.
// Messages are immutable once persisted.
package domain

import (
	"time"

	"github.com/google/uuid"

	"chat-relay/errors"
)

type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
)

// Message represents one durable chat message between two users.
type Message struct {
	ID            uuid.UUID
	SenderID      string
	ReceiverID    string
	Kind          MessageKind
	Content       string
	AttachmentURL string
	CreatedAt     time.Time
}

// Validate enforces the persistence invariants: both participants are known
// and exactly one of content/attachment is populated according to the kind.
func (m Message) Validate() error {
	if m.SenderID == "" || m.ReceiverID == "" {
		return errors.ErrInvalidMessage
	}
	switch m.Kind {
	case KindText:
		if m.Content == "" || m.AttachmentURL != "" {
			return errors.ErrInvalidMessage
		}
	case KindImage:
		if m.AttachmentURL == "" || m.Content != "" {
			return errors.ErrInvalidMessage
		}
	default:
		return errors.ErrInvalidMessage
	}
	return nil
}
