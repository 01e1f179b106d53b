// Command viewer prints a user's stored conversation history straight from
// the BadgerDB files, without going through the server.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"

	"chat-relay/internal"
	"chat-relay/repositories"
)

func main() {
	// 1. Load config
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	userID := flag.String("user", "", "User whose history to print")
	flag.Parse()
	if *userID == "" {
		log.Fatal("missing -user flag")
	}

	// 2. Open Badger in Read-Only mode
	// Note: BypassLockGuard allows opening if another process (the server) holds the lock
	opts := badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	repo := repositories.NewMessageRepository(db, logs.GetLoggerFromString("ERROR"), config.LimitMessages)
	messages, _, err := repo.GetMessages(*userID, nil)
	if err != nil {
		log.Fatalf("Failed to read messages: %v", err)
	}

	color.Cyan.Printf("History for %s (%d messages)\n", *userID, len(messages))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Time", "From", "To", "Type", "Content"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	// The repository pages newest-first; print oldest-first like a chat log.
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		content := m.Content
		if m.Kind == "image" {
			content = m.AttachmentURL
		}
		table.Append([]string{
			m.At.Format("2006-01-02 15:04:05"),
			m.Sender,
			m.Receiver,
			m.Kind,
			content,
		})
	}

	table.Render()
}
