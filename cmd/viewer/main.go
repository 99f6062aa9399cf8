// Command viewer renders a conversation's durable history from a live (or
// offline) store, read-only, without going through the server.
//
//	viewer            # public feed
//	viewer alice bob  # private conversation
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"

	"chat-relay/domain/chat"
	"chat-relay/internal"
)

func main() {
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	// BypassLockGuard allows opening while the server holds the lock.
	opts := badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	a, b := chat.PublicReceiver, chat.PublicReceiver
	if len(os.Args) == 3 {
		a, b = os.Args[1], os.Args[2]
	}

	messages, err := scanConversation(db, a, b)
	if err != nil {
		log.Fatalf("Failed to read history: %v", err)
	}

	title := "public feed"
	if a != chat.PublicReceiver {
		title = fmt.Sprintf("%s <-> %s", a, b)
	}
	color.Bold.Printf("History: %s (%d messages)\n", title, len(messages))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"At", "Sender", "Receiver", "Body"})
	table.SetAutoWrapText(false)
	for _, m := range messages {
		receiver := m.Receiver
		if m.Public() {
			receiver = color.Gray.Sprint("<public>")
		}
		table.Append([]string{
			m.At.Format("2006-01-02 15:04:05.000"),
			color.Cyan.Sprint(m.Sender),
			receiver,
			m.Body,
		})
	}
	table.Render()
}

// scanConversation walks the conversation prefix in key order, which is
// already chronological thanks to the padded key layout.
func scanConversation(db *badger.DB, a, b string) ([]chat.Message, error) {
	prefix := []byte("msg:" + chat.ConversationKey(a, b) + ":")
	var out []chat.Message

	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var m chat.Message
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			})
			if err != nil {
				return err
			}
			out = append(out, m)
		}
		return nil
	})
	return out, err
}
