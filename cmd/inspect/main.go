// Command inspect dumps the relay's message store as a table, for operator
// debugging. It opens the Badger directory read-only alongside (not inside)
// a running relay.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"chat-relay/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "./data", "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Prefix to scan (msg:, msg:d:, msg:g:, group:, user:)")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	color.Bold.Printf("Scanning %s with prefix %q\n", *dbPath, *prefix)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Scope", "Time", "From", "Content", "Type", "Read", "Reactions"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	rows := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			rawKey := string(item.Key())

			// Index entries hold keys, not records.
			if strings.HasPrefix(rawKey, "idx:") {
				continue
			}

			err := item.Value(func(v []byte) error {
				var msg domain.Message
				if err := json.Unmarshal(v, &msg); err != nil {
					// Keep scanning; non-message records share some prefixes.
					fmt.Printf("skipping key %s: %v\n", rawKey, err)
					return nil
				}

				scope := "direct:" + msg.To
				if msg.IsGroup() {
					scope = "group:" + msg.Group
				}

				content := msg.Content
				if len(content) > 40 {
					content = content[:40] + "…"
				}

				reactions := ""
				for _, r := range msg.Reactions {
					reactions += fmt.Sprintf("%s×%d ", r.Emoji, len(r.Users))
				}

				table.Append([]string{
					rawKey,
					scope,
					msg.CreatedAt.Format("01-02 15:04:05"),
					msg.From.ID,
					content,
					string(msg.Type),
					fmt.Sprintf("%t", msg.IsRead),
					reactions,
				})
				rows++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
	color.Gray.Printf("%d records\n", rows)
}
