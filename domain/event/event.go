// Package event defines the outbound events the relay pushes to connections.
package event

import (
	"time"

	"github.com/google/uuid"

	"chat-relay/domain"
)

// Event is anything deliverable to a connection sink. Name returns the wire
// event name understood by clients.
type Event interface {
	Name() string
}

// MessageReceived is delivered to the recipient of a persisted message.
type MessageReceived struct {
	ID            uuid.UUID
	From          string
	Kind          domain.MessageKind
	Content       string
	AttachmentURL string
	At            time.Time
}

func (MessageReceived) Name() string { return "receive_message" }

// MessageSent acknowledges a persisted message to its sender, whether or not
// live delivery happened.
type MessageSent struct {
	ID uuid.UUID
	At time.Time
}

func (MessageSent) Name() string { return "message_sent" }

// MessageFailed reports a validation or persistence failure to the sender.
type MessageFailed struct {
	Reason string
}

func (MessageFailed) Name() string { return "message_error" }

// PresenceSnapshot is the full current online list, self excluded.
type PresenceSnapshot struct {
	Entries []domain.PresenceEntry
}

func (PresenceSnapshot) Name() string { return "users_status" }

// UserTyping is forwarded to the target of a typing notification.
type UserTyping struct {
	UserID   string
	Username string
	IsTyping bool
}

func (UserTyping) Name() string { return "user_typing" }
