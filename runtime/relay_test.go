package runtime

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/repositories"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// recordingSink collects every event pushed to it. The relay delivers
// synchronously in the caller's goroutine, so no locking is needed here.
type recordingSink struct {
	events []event.Event
}

func (s *recordingSink) Consume(ctx context.Context, e event.Event) error {
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) received() []event.MessageReceived {
	var out []event.MessageReceived
	for _, e := range s.events {
		if evt, ok := e.(event.MessageReceived); ok {
			out = append(out, evt)
		}
	}
	return out
}

func (s *recordingSink) acks() []event.MessageSent {
	var out []event.MessageSent
	for _, e := range s.events {
		if evt, ok := e.(event.MessageSent); ok {
			out = append(out, evt)
		}
	}
	return out
}

func (s *recordingSink) failures() []event.MessageFailed {
	var out []event.MessageFailed
	for _, e := range s.events {
		if evt, ok := e.(event.MessageFailed); ok {
			out = append(out, evt)
		}
	}
	return out
}

func TestRelay_Send_To_Offline_Recipient_Acknowledges_And_Persists(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	messageRepo := mocks.NewMockIMessageRepository(ctrl)

	// Given only the sender is connected
	registry := NewRegistry()
	relay := NewRelay(slog.Default(), registry, messageRepo, nil, observability.NewMetrics())
	sender := &recordingSink{}
	relay.Connect("alice", "Alice", "c1", sender)

	// Then the message is persisted exactly once
	messageRepo.EXPECT().StoreMessage(gomock.Any()).Return(nil).Times(1)

	// When Alice messages an offline user
	relay.SendMessage(context.Background(), domain.SendMessageCommand{
		To: "bob", From: "alice", Content: "hello?",
	}, sender)

	// Then the sender gets exactly one acknowledgment and no error
	req.Len(sender.acks(), 1)
	req.Empty(sender.failures())
	req.Empty(sender.received())
}

func TestRelay_Send_To_Online_Recipient_Delivers_Once(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	messageRepo := mocks.NewMockIMessageRepository(ctrl)
	messageRepo.EXPECT().StoreMessage(gomock.Any()).Return(nil).Times(1)

	registry := NewRegistry()
	relay := NewRelay(slog.Default(), registry, messageRepo, nil, observability.NewMetrics())

	// Given both participants are connected
	sender := &recordingSink{}
	receiver := &recordingSink{}
	relay.Connect("alice", "Alice", "c1", sender)
	relay.Connect("bob", "Bob", "c2", receiver)

	// When Alice messages Bob
	relay.SendMessage(context.Background(), domain.SendMessageCommand{
		To: "bob", From: "alice", Content: "hi Bob",
	}, sender)

	// Then Bob receives the message exactly once
	delivered := receiver.received()
	req.Len(delivered, 1)
	req.Equal("alice", delivered[0].From)
	req.Equal("hi Bob", delivered[0].Content)

	// And the acknowledgment carries the same id and timestamp
	acks := sender.acks()
	req.Len(acks, 1)
	req.Equal(delivered[0].ID, acks[0].ID)
	req.Equal(delivered[0].At, acks[0].At)
}

func TestRelay_Send_Invalid_Message_Reports_Error(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	// No StoreMessage expectation: an invalid message must never touch storage
	messageRepo := mocks.NewMockIMessageRepository(ctrl)

	registry := NewRegistry()
	relay := NewRelay(slog.Default(), registry, messageRepo, nil, observability.NewMetrics())
	sender := &recordingSink{}
	relay.Connect("alice", "Alice", "c1", sender)

	// When the recipient id is missing
	relay.SendMessage(context.Background(), domain.SendMessageCommand{
		To: "", From: "alice", Content: "lost",
	}, sender)

	// Then the sender is told, and nothing else happens
	req.Len(sender.failures(), 1)
	req.Empty(sender.acks())
}

func TestRelay_Send_Storage_Failure_Reports_Error_Without_Delivery(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	messageRepo := mocks.NewMockIMessageRepository(ctrl)
	messageRepo.EXPECT().StoreMessage(gomock.Any()).Return(errors.ErrStorageFailure).Times(1)

	registry := NewRegistry()
	relay := NewRelay(slog.Default(), registry, messageRepo, nil, observability.NewMetrics())

	sender := &recordingSink{}
	receiver := &recordingSink{}
	relay.Connect("alice", "Alice", "c1", sender)
	relay.Connect("bob", "Bob", "c2", receiver)

	// When persistence fails
	relay.SendMessage(context.Background(), domain.SendMessageCommand{
		To: "bob", From: "alice", Content: "hi Bob",
	}, sender)

	// Then the sender gets an error, no ack, and the recipient sees nothing
	failures := sender.failures()
	req.Len(failures, 1)
	req.Equal("failed to send message", failures[0].Reason)
	req.Empty(sender.acks())
	req.Empty(receiver.events)
}

func TestRelay_Send_Text_Content_Is_Censored(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var stored repositories.DiskMessage
	messageRepo := mocks.NewMockIMessageRepository(ctrl)
	messageRepo.EXPECT().StoreMessage(gomock.Any()).
		DoAndReturn(func(message repositories.DiskMessage) error {
			stored = message
			return nil
		}).Times(1)

	moderator, err := moderation.NewModerator([]string{"badword"}, '*')
	req.NoError(err)

	registry := NewRegistry()
	relay := NewRelay(slog.Default(), registry, messageRepo, &moderator, observability.NewMetrics())

	sender := &recordingSink{}
	receiver := &recordingSink{}
	relay.Connect("alice", "Alice", "c1", sender)
	relay.Connect("bob", "Bob", "c2", receiver)

	// When the message contains a blacklisted word
	relay.SendMessage(context.Background(), domain.SendMessageCommand{
		To: "bob", From: "alice", Content: "you badword!",
	}, sender)

	// Then both the stored copy and the delivered copy are sanitized
	req.Equal("you *******!", stored.Content)
	delivered := receiver.received()
	req.Len(delivered, 1)
	req.Equal("you *******!", delivered[0].Content)
}

func TestRelay_Typing_To_Online_Target_Only(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	messageRepo := mocks.NewMockIMessageRepository(ctrl)

	registry := NewRegistry()
	relay := NewRelay(slog.Default(), registry, messageRepo, nil, observability.NewMetrics())

	receiver := &recordingSink{}
	bystander := &recordingSink{}
	relay.Connect("bob", "Bob", "c1", receiver)
	relay.Connect("clara", "Clara", "c2", bystander)

	// When Alice types to Bob
	relay.Typing(domain.TypingCommand{To: "bob", From: "alice", Username: "Alice", IsTyping: true})

	// Then only Bob is notified
	req.Len(receiver.events, 1)
	typing, ok := receiver.events[0].(event.UserTyping)
	req.True(ok)
	req.Equal("alice", typing.UserID)
	req.True(typing.IsTyping)
	req.Empty(bystander.events)
}

func TestRelay_Typing_To_Offline_Target_Is_Dropped(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	messageRepo := mocks.NewMockIMessageRepository(ctrl)

	registry := NewRegistry()
	metrics := observability.NewMetrics()
	relay := NewRelay(slog.Default(), registry, messageRepo, nil, metrics)

	// When typing targets a user who is not connected
	relay.Typing(domain.TypingCommand{To: "ghost", From: "alice", Username: "Alice", IsTyping: true})

	// Then the notification vanishes, counted for observability
	req.Equal(uint64(1), metrics.GetLatest().TypingDropped)
}

func TestRelay_Disconnect_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	messageRepo := mocks.NewMockIMessageRepository(ctrl)

	registry := NewRegistry()
	metrics := observability.NewMetrics()
	relay := NewRelay(slog.Default(), registry, messageRepo, nil, metrics)
	relay.Connect("alice", "Alice", "c1", &recordingSink{})

	// When the same connection disconnects twice
	relay.Disconnect("c1")
	relay.Disconnect("c1")

	// Then only the first removal counts
	req.Equal(uint64(1), metrics.GetLatest().Disconnects)
	req.Empty(registry.Sessions())
}
