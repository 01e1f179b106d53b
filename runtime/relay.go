package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/repositories"
)

var validate = validator.New()

var _ contract.IRelay = (*Relay)(nil)

// Relay consumes connection events, coordinates the registry and the message
// store, and dispatches outbound events to target connections. Sender-facing
// failures become explicit error events; recipient unreachable is an
// expected condition and is skipped silently. No failure here may terminate
// the process.
type Relay struct {
	log       *slog.Logger
	registry  contract.IRegistry
	messages  repositories.IMessageRepository
	moderator *moderation.Moderator
	metrics   *observability.Metrics
}

func NewRelay(
	log *slog.Logger,
	registry contract.IRegistry,
	messages repositories.IMessageRepository,
	moderator *moderation.Moderator,
	metrics *observability.Metrics,
) *Relay {
	return &Relay{
		log:       log,
		registry:  registry,
		messages:  messages,
		moderator: moderator,
		metrics:   metrics,
	}
}

// Connect attaches an identity to a live connection. The registry treats a
// missing user id as a no-op, mirroring the handling of incomplete connect
// payloads upstream.
func (r *Relay) Connect(userID, username, connID string, sink contract.EventSink) {
	r.registry.Register(contract.Session{
		UserID:   userID,
		Username: username,
		ConnID:   connID,
		Sink:     sink,
	})
	r.metrics.IncrConnects()
}

// Disconnect cleans up after a closed connection. Safe to call more than
// once for the same connection id: only the first effective removal counts
// and triggers a presence change.
func (r *Relay) Disconnect(connID string) {
	if r.registry.Unregister(connID) {
		r.metrics.IncrDisconnects()
	}
}

// SendMessage runs the message path: validate, persist, deliver, acknowledge.
// The acknowledgment always reaches the sender once the message is durable,
// independent of whether the recipient was reachable.
func (r *Relay) SendMessage(ctx context.Context, cmd domain.SendMessageCommand, sender contract.EventSink) {
	msg, err := r.buildMessage(cmd)
	if err != nil {
		r.metrics.IncrInvalidMessages()
		r.log.Debug("Rejecting malformed message", "from", cmd.From, "to", cmd.To)
		r.reply(ctx, sender, event.MessageFailed{Reason: "invalid message payload"})
		return
	}

	// The store append is the only blocking I/O on this path and runs
	// without any registry lock held.
	if err := r.messages.StoreMessage(toDiskMessage(msg)); err != nil {
		r.metrics.IncrStorageFailures()
		r.log.Error("Failed to persist message", "from", msg.SenderID, "to", msg.ReceiverID, "error", err)
		r.reply(ctx, sender, event.MessageFailed{Reason: "failed to send message"})
		return
	}
	r.metrics.IncrMessagesRelayed()

	// At-most-once live delivery; the recipient catches up via history
	// retrieval on next connect when offline.
	if target, ok := r.registry.Lookup(msg.ReceiverID); ok {
		received := event.MessageReceived{
			ID:            msg.ID,
			From:          msg.SenderID,
			Kind:          msg.Kind,
			Content:       msg.Content,
			AttachmentURL: msg.AttachmentURL,
			At:            msg.CreatedAt,
		}
		if err := target.Sink.Consume(ctx, received); err != nil {
			r.log.Debug("Live delivery skipped", "to", msg.ReceiverID, "error", err)
		} else {
			r.metrics.IncrDeliveredLive()
		}
	} else {
		r.metrics.IncrOfflineSkips()
	}

	r.reply(ctx, sender, event.MessageSent{ID: msg.ID, At: msg.CreatedAt})
}

// Typing forwards a typing notification to its target connection only.
// Best-effort: unreachable targets are dropped, never queued or retried.
func (r *Relay) Typing(cmd domain.TypingCommand) {
	target, ok := r.registry.Lookup(cmd.To)
	if !ok {
		r.metrics.IncrTypingDropped()
		return
	}
	evt := event.UserTyping{
		UserID:   cmd.From,
		Username: cmd.Username,
		IsTyping: cmd.IsTyping,
	}
	if err := target.Sink.Consume(context.Background(), evt); err != nil {
		r.metrics.IncrTypingDropped()
		return
	}
	r.metrics.IncrTypingRelayed()
}

// buildMessage validates the command and produces the immutable message to
// persist, censoring text content on the way.
func (r *Relay) buildMessage(cmd domain.SendMessageCommand) (domain.Message, error) {
	if err := validate.Struct(cmd); err != nil {
		return domain.Message{}, err
	}

	kind := cmd.Kind
	if kind == "" {
		kind = domain.KindText
	}

	msg := domain.Message{
		ID:            uuid.New(),
		SenderID:      cmd.From,
		ReceiverID:    cmd.To,
		Kind:          kind,
		Content:       cmd.Content,
		AttachmentURL: cmd.AttachmentURL,
		CreatedAt:     time.Now().UTC(),
	}
	if err := msg.Validate(); err != nil {
		return domain.Message{}, err
	}

	if msg.Kind == domain.KindText && r.moderator != nil {
		sanitized, foundWords := r.moderator.Censor(msg.Content)
		if len(foundWords) > 0 {
			info := whatlanggo.Detect(msg.Content)
			r.log.Warn("Censored message content",
				"sender_id", msg.SenderID,
				"words", len(foundWords),
				"lang", info.Lang.Iso6391())
			msg.Content = sanitized
		}
	}
	return msg, nil
}

// reply pushes a sender-facing event on the originating connection. The
// originating connection may be unregistered (pending handshake); it still
// receives its acknowledgments and errors.
func (r *Relay) reply(ctx context.Context, sender contract.EventSink, e event.Event) {
	if sender == nil {
		return
	}
	if err := sender.Consume(ctx, e); err != nil {
		r.log.Debug(fmt.Sprintf("Sender reply dropped: %v", err))
	}
}

func toDiskMessage(msg domain.Message) repositories.DiskMessage {
	return repositories.DiskMessage{
		ID:            msg.ID,
		Sender:        msg.SenderID,
		Receiver:      msg.ReceiverID,
		Kind:          string(msg.Kind),
		Content:       msg.Content,
		AttachmentURL: msg.AttachmentURL,
		At:            msg.CreatedAt,
	}
}
