package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"

	"cinematch/internal"
	"cinematch/repositories"
)

func main() {
	// 1. Load config
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	// 2. Open Badger in Read-Only mode
	// Note: BypassLockGuard allows opening while the server holds the lock
	opts := badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// 3. Start Debug Server Only
	// Static stats since the engine isn't running here
	viewerStats := func() map[string]any {
		return map[string]any{
			"Status": "Viewer Mode (Read-Only)",
			"Time":   time.Now().Format(time.RFC822),
		}
	}

	fmt.Printf("🌐 Viewer started at http://localhost:%d/inspect\n", config.DebugPort)

	internal.StartDebugServer(db, config.DebugPort, "/inspect", StoreMapper, viewerStats)

	// The inspector serves from a goroutine; block until interrupted.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	fmt.Println("Viewer stopped")
}

// StoreMapper is the viewer's sibling of the server's mapper, kept
// local so the viewer stays independent.
func StoreMapper(key string, val []byte) internal.InspectRow {
	row := internal.DefaultMapper(key, val)

	switch {
	case strings.HasPrefix(key, "msg:"):
		var m repositories.DiskMessage
		if err := json.Unmarshal(val, &m); err != nil {
			return row
		}
		author := m.Author
		if m.Anonymous {
			author = m.Alias
		}
		row.Type = "MESSAGE"
		row.Detail = fmt.Sprintf("%s: %s", author, m.Content)

	case strings.HasPrefix(key, "msgcount:"):
		row.Type = "COUNTER"
		row.Room = shortID(strings.TrimPrefix(key, "msgcount:"))
		row.Detail = fmt.Sprintf("%s messages", val)

	case strings.HasPrefix(key, "room:"):
		var r repositories.DiskRoom
		if err := json.Unmarshal(val, &r); err != nil {
			return row
		}
		name := r.Name
		if name == "" {
			name = "(unnamed)"
		}
		row.Type = "ROOM"
		row.Timestamp = r.CreatedAt.Format("15:04:05")
		row.EntityID = shortID(r.ID)
		row.Room = shortID(r.ID)
		row.Detail = fmt.Sprintf("%s %s (%d members)", name, r.Kind, len(r.Members))

	case strings.HasPrefix(key, "queue:e:"):
		var e repositories.DiskQueueEntry
		if err := json.Unmarshal(val, &e); err != nil {
			return row
		}
		row.Type = "QUEUE"
		row.Timestamp = e.EnqueuedAt.Format("15:04:05")
		row.EntityID = e.UserID
		row.Room = "-"
		row.Detail = "waiting"

	case strings.HasPrefix(key, "reveal:"):
		var d repositories.DiskDisclosure
		if err := json.Unmarshal(val, &d); err != nil {
			return row
		}
		row.Type = "REVEAL"
		row.Timestamp = d.At.Format("15:04:05")
		row.EntityID = d.UserID
		row.Room = shortID(d.Room)
		row.Detail = fmt.Sprintf("revealed as %s", d.Username)

	case strings.HasPrefix(key, "broadcast:"), strings.HasPrefix(key, "member:"), strings.HasPrefix(key, "queue:u:"):
		row.Type = "INDEX"
		row.Detail = "-"
	}
	return row
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
