package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"

	"cinematch/repositories"
)

func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	// Par défaut on cherche "msg:" pour éviter de percuter les clés de présence
	prefix := flag.String("prefix", "msg:", "Prefix to scan (empty scans everything)")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Timestamp", "Entity ID", "Room", "Detail"})
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

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			rawKey := string(item.Key())

			// Sécurité : on ignore la clé de version de la file
			if rawKey == "queue:v" {
				continue
			}

			err := item.Value(func(v []byte) error {
				table.Append(describe(rawKey, v))
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
}

// describe renders one key/value pair as a table row based on the key
// prefix. Undecodable values are reported inline rather than stopping
// the whole scan.
func describe(key string, value []byte) []string {
	switch {
	case strings.HasPrefix(key, "msg:"):
		var m repositories.DiskMessage
		if err := json.Unmarshal(value, &m); err != nil {
			return []string{key, "MESSAGE", "", "", "", fmt.Sprintf("unreadable: %v", err)}
		}
		author := m.Author
		if m.Anonymous {
			author = m.Alias
		}
		return []string{key, "MESSAGE", m.At.Format("15:04:05"), short(m.ID.String()), short(m.Room),
			fmt.Sprintf("%s: %s", author, m.Content)}

	case strings.HasPrefix(key, "msgcount:"):
		room := strings.TrimPrefix(key, "msgcount:")
		return []string{key, "COUNTER", "", "", short(room), fmt.Sprintf("%s messages", value)}

	case strings.HasPrefix(key, "room:"):
		var r repositories.DiskRoom
		if err := json.Unmarshal(value, &r); err != nil {
			return []string{key, "ROOM", "", "", "", fmt.Sprintf("unreadable: %v", err)}
		}
		name := r.Name
		if name == "" {
			name = "(unnamed)"
		}
		return []string{key, "ROOM", r.CreatedAt.Format("15:04:05"), short(r.ID), short(r.ID),
			fmt.Sprintf("%s %s (%d members)", name, r.Kind, len(r.Members))}

	case strings.HasPrefix(key, "queue:e:"):
		var e repositories.DiskQueueEntry
		if err := json.Unmarshal(value, &e); err != nil {
			return []string{key, "QUEUE", "", "", "", fmt.Sprintf("unreadable: %v", err)}
		}
		return []string{key, "QUEUE", e.EnqueuedAt.Format("15:04:05"), e.UserID, "", "waiting"}

	case strings.HasPrefix(key, "queue:u:"):
		// La valeur est la clé d'entrée correspondante, pratique pour suivre un cancel
		return []string{key, "INDEX", "", strings.TrimPrefix(key, "queue:u:"), "", string(value)}

	case strings.HasPrefix(key, "reveal:"):
		var d repositories.DiskDisclosure
		if err := json.Unmarshal(value, &d); err != nil {
			return []string{key, "REVEAL", "", "", "", fmt.Sprintf("unreadable: %v", err)}
		}
		return []string{key, "REVEAL", d.At.Format("15:04:05"), d.UserID, short(d.Room),
			fmt.Sprintf("revealed as %s", d.Username)}

	case strings.HasPrefix(key, "broadcast:"), strings.HasPrefix(key, "member:"):
		return []string{key, "INDEX", "", "", "", "-"}

	default:
		detail := string(value)
		if len(detail) > 40 {
			detail = detail[:40] + "..."
		}
		return []string{key, "RAW", "", "", "", detail}
	}
}

// On affiche les 8 premiers caractères des UUID pour la lisibilité
func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	db, err := badger.Open(opts)
	if err != nil {
		// Si corruption détectée, essaie un open en write pour truncate
		if strings.Contains(err.Error(), "Log truncate required") {
			fmt.Println("⚠️  Log truncate required, reopening once in write mode")

			repairOpts := badger.DefaultOptions(path).
				WithLogger(nil).WithBypassLockGuard(true)

			db, err = badger.Open(repairOpts)
			if err != nil {
				return nil, fmt.Errorf("repair failed: %w", err)
			}

			// Ferme et réouvre en read-only
			db.Close()
			return badger.Open(opts)
		}
		return nil, err
	}
	return db, nil
}
