package repositories

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chat-relay/errors"
)

func testMessage(sender, receiver, content string, at time.Time) DiskMessage {
	return DiskMessage{
		ID:       uuid.New(),
		Sender:   sender,
		Receiver: receiver,
		Kind:     "text",
		Content:  content,
		At:       at.UTC(),
	}
}

func Test_Record_Multiple_Messages_Visible_To_Both_Participants(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	repository := NewMessageRepository(db, slog.Default(), nil)
	at := time.Now().UTC()
	diskMessages := []DiskMessage{
		testMessage("alice", "bob", "hello Bob", at),
		testMessage("bob", "alice", "hello Alice", at.Add(1*time.Minute)),
		testMessage("alice", "bob", "how are you?", at.Add(2*time.Minute)),
	}
	for _, dm := range diskMessages {
		err = repository.StoreMessage(dm)
		req.NoError(err)
	}

	// Both sides of the conversation see the same history, newest first
	for _, user := range []string{"alice", "bob"} {
		fetched, _, err := repository.GetMessages(user, nil)
		req.NoError(err)
		req.Len(fetched, len(diskMessages))
		req.Equal("how are you?", fetched[0].Content)
		req.Equal("hello Bob", fetched[2].Content)
	}

	// A stranger sees nothing, and gets no cursor to resume from
	fetched, cursor, err := repository.GetMessages("clara", nil)
	req.NoError(err)
	req.Empty(fetched)
	req.Nil(cursor)
}

func Test_Record_Multiple_Messages_And_Limit(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	limit := 2
	repository := NewMessageRepository(db, slog.Default(), &limit)
	at := time.Now().UTC()
	diskMessages := []DiskMessage{
		testMessage("alice", "bob", "first", at),
		testMessage("alice", "bob", "second", at.Add(1*time.Minute)),
		testMessage("alice", "bob", "third", at.Add(2*time.Minute)),
	}
	for _, dm := range diskMessages {
		err = repository.StoreMessage(dm)
		req.NoError(err)
	}

	// The first page holds the newest messages only
	page, cursor, err := repository.GetMessages("alice", nil)
	req.NoError(err)
	req.Len(page, limit)
	req.Equal("third", page[0].Content)
	req.Equal("second", page[1].Content)
	req.NotNil(cursor)

	// The cursor resumes right after the last returned message; once the
	// scan is exhausted no further cursor is handed out
	nextPage, cursor, err := repository.GetMessages("alice", cursor)
	req.NoError(err)
	req.Len(nextPage, 1)
	req.Equal("first", nextPage[0].Content)
	req.Nil(cursor)
}

func Test_Store_Message_On_Closed_Database_Fails(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	req.NoError(db.Close())

	repository := NewMessageRepository(db, slog.Default(), nil)

	// When the store cannot accept the write
	err = repository.StoreMessage(testMessage("alice", "bob", "too late", time.Now()))

	// Then the failure surfaces under the storage sentinel
	req.ErrorIs(err, errors.ErrStorageFailure)
}

func Test_Record_Self_Message_Is_Stored_Once(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	repository := NewMessageRepository(db, slog.Default(), nil)
	err = repository.StoreMessage(testMessage("alice", "alice", "note to self", time.Now()))
	req.NoError(err)

	fetched, _, err := repository.GetMessages("alice", nil)
	req.NoError(err)
	req.Len(fetched, 1)
	req.Equal("note to self", fetched[0].Content)
}
