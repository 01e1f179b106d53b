// Package ws is the websocket transport: it upgrades HTTP connections,
// decodes inbound client events, and encodes relay events back to the wire.
package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"chat-relay/domain"
	"chat-relay/domain/event"
)

// Inbound event names.
const (
	EventUserConnected = "user_connected"
	EventSendMessage   = "send_message"
	EventTyping        = "typing"
)

// inboundEnvelope wraps every client frame: {"event": ..., "data": {...}}.
type inboundEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type outboundEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type connectPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type sendMessagePayload struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
	Image   string `json:"image,omitempty"`
}

type typingPayload struct {
	To       string `json:"to"`
	From     string `json:"from"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

type receiveMessagePayload struct {
	ID        string    `json:"_id"`
	From      string    `json:"from"`
	Message   string    `json:"message,omitempty"`
	Type      string    `json:"type"`
	Image     string    `json:"image,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type messageSentPayload struct {
	ID        string    `json:"_id"`
	Timestamp time.Time `json:"timestamp"`
}

type messageErrorPayload struct {
	Error string `json:"error"`
}

type userTypingPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

func toCommand(p sendMessagePayload) domain.SendMessageCommand {
	return domain.SendMessageCommand{
		To:            p.To,
		From:          p.From,
		Kind:          domain.MessageKind(p.Type),
		Content:       p.Message,
		AttachmentURL: p.Image,
	}
}

// encode turns a relay event into its wire frame.
func encode(e event.Event) ([]byte, error) {
	var data any
	switch evt := e.(type) {
	case event.PresenceSnapshot:
		data = evt.Entries
	case event.MessageReceived:
		data = receiveMessagePayload{
			ID:        evt.ID.String(),
			From:      evt.From,
			Message:   evt.Content,
			Type:      string(evt.Kind),
			Image:     evt.AttachmentURL,
			Timestamp: evt.At,
		}
	case event.MessageSent:
		data = messageSentPayload{ID: evt.ID.String(), Timestamp: evt.At}
	case event.MessageFailed:
		data = messageErrorPayload{Error: evt.Reason}
	case event.UserTyping:
		data = userTypingPayload{UserID: evt.UserID, Username: evt.Username, IsTyping: evt.IsTyping}
	default:
		return nil, fmt.Errorf("unknown event type %T", e)
	}
	return json.Marshal(outboundEnvelope{Event: e.Name(), Data: data})
}
