//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"chat-relay/domain"
	"chat-relay/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// initialization or lifecycle events, avoiding the need for manual naming
// in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is one connection's receiving end. Consume must never block
// beyond ctx: a slow connection is dropped, not waited for.
type EventSink interface {
	Consume(ctx context.Context, e event.Event) error
}

// Session ties an authenticated identity to its live connection.
type Session struct {
	UserID   string
	Username string
	ConnID   string
	Sink     EventSink
}

type IRegistry interface {
	Register(s Session)
	Lookup(userID string) (Session, bool)
	Unregister(connID string) bool
	Snapshot(excludeUserID string) []domain.PresenceEntry
	Sessions() []Session
	Changes() <-chan struct{}
}

// IRelay consumes connection events. SendMessage and Typing are invoked from
// a connection's read loop, so one connection's events are serialized while
// different connections run concurrently.
type IRelay interface {
	Connect(userID, username, connID string, sink EventSink)
	Disconnect(connID string)
	SendMessage(ctx context.Context, cmd domain.SendMessageCommand, sender EventSink)
	Typing(cmd domain.TypingCommand)
}
