package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"cinematch/domain"
	"cinematch/domain/event"
	"cinematch/internal"
	"cinematch/repositories"
	"cinematch/search"
	"cinematch/services"
)

type seedMessage struct {
	authorID string
	author   string
	content  string
}

// Scripted conversations for the broadcast rooms. Consecutive lines by
// the same author land minutes apart, which exercises the grouping in
// the terminal client.
var script = []struct {
	room     string
	messages []seedMessage
}{
	{
		room: "cinema",
		messages: []seedMessage{
			{"demo-marty", "Marty", "Wait a minute Doc, are you telling me you built a time machine out of a DeLorean?"},
			{"demo-ellen", "Ellen", "In space no one can hear you scream, but in this room everyone does"},
			{"demo-sam", "Sam", "The projectionist swapped reels five minutes in and nobody noticed"},
			{"demo-sam", "Sam", "Still a better cut than the theatrical release"},
		},
	},
	{
		room: "classics",
		messages: []seedMessage{
			{"demo-rick", "Rick", "Louis, I think this is the beginning of a beautiful friendship"},
			{"demo-ilsa", "Ilsa", "Play it, Sam. Play As Time Goes By"},
			{"demo-rick", "Rick", "Of all the gin joints in all the towns in all the world"},
			{"demo-norma", "Norma", "I am big, it is the pictures that got small"},
		},
	},
}

// Anonymous small talk for the demo match room, aliases drawn per line.
var matchScript = []string{
	"hey stranger, seen anything good lately",
	"rewatched the whole Dollars trilogy this weekend",
	"a person of taste then",
	"the harmonica scene still gives me chills",
	"alright you have my attention",
	"six messages in, I say we earned the big reveal",
}

func main() {
	// 1. Load config
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}
	logger := logs.GetLoggerFromLevel(slog.LevelError)
	ctx := context.Background()

	fmt.Println("🚀 CineMatch : génération des données de démo...")
	// Relancer sur un store vierge, le seeder ne déduplique pas

	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	index, err := search.Open(config.BlugeFilepath, logger, 20, 10)
	if err != nil {
		log.Fatalf("Failed to open index: %v", err)
	}
	defer index.Close()

	roomRepo := repositories.NewRoomRepository(db, logger)
	messageRepo := repositories.NewMessageRepository(db, logger, nil)
	matchRepo := repositories.NewMatchRepository(db, logger)
	revealRepo := repositories.NewRevealRepository(db, logger)
	indexer := search.NewIndexer(index, logger)

	// 2. Broadcast rooms and their conversations
	rooms := services.NewRoomService(logger, roomRepo)
	names := make([]string, 0, len(script))
	for _, s := range script {
		names = append(names, s.room)
	}
	if err := rooms.Provision(names); err != nil {
		log.Fatalf("Failed to provision rooms: %v", err)
	}

	base := time.Now().UTC().Add(-time.Hour)
	for _, s := range script {
		room := domain.NewBroadcastRoom(s.room, base)
		for i, line := range s.messages {
			msg := domain.Message{
				ID:        uuid.New(),
				RoomID:    room.ID,
				AuthorID:  line.authorID,
				Author:    line.author,
				Content:   line.content,
				Lang:      "eng",
				CreatedAt: base.Add(time.Duration(i*2) * time.Minute),
			}
			if _, err := messageRepo.Append(repositories.FromMessage(msg)); err != nil {
				log.Fatalf("Failed to append message: %v", err)
			}
			if err := indexer.Consume(ctx, event.MessageAppended{Message: msg}); err != nil {
				log.Fatalf("Failed to index message: %v", err)
			}
		}
		fmt.Printf("🎬 Room %q : %d messages\n", s.room, len(s.messages))
	}

	// 3. A paired match room with an opened reveal gate
	now := time.Now().UTC()
	if _, err := matchRepo.PopOrEnqueue("demo-alice", now); err != nil {
		log.Fatalf("Failed to enqueue: %v", err)
	}
	outcome, err := matchRepo.PopOrEnqueue("demo-bob", now.Add(time.Second))
	if err != nil {
		log.Fatalf("Failed to pair: %v", err)
	}
	matchRoomID, err := uuid.Parse(outcome.Room.ID)
	if err != nil {
		log.Fatalf("Unexpected room id: %v", err)
	}

	authors := []seedMessage{{"demo-alice", "Alice", ""}, {"demo-bob", "Bob", ""}}
	for i, content := range matchScript {
		who := authors[i%2]
		msg := domain.Message{
			ID:        uuid.New(),
			RoomID:    matchRoomID,
			AuthorID:  who.authorID,
			Author:    who.author,
			Alias:     domain.RandomAlias(),
			Content:   content,
			Lang:      "eng",
			Anonymous: true,
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
		}
		if _, err := messageRepo.Append(repositories.FromMessage(msg)); err != nil {
			log.Fatalf("Failed to append match message: %v", err)
		}
	}

	// The gate opens above 5; the demo room has six messages.
	added, err := revealRepo.Record(outcome.Room.ID, repositories.DiskDisclosure{
		Room:     outcome.Room.ID,
		UserID:   "demo-alice",
		Username: "Alice",
		At:       now.Add(time.Duration(len(matchScript)) * time.Minute),
	}, 5)
	if err != nil || !added {
		log.Fatalf("Failed to record disclosure: %v", err)
	}
	fmt.Printf("🤝 Match room %s : %d messages, Alice revealed\n", outcome.Room.ID[:8], len(matchScript))

	// 4. One user left waiting so the queue shows up in the inspector
	if _, err := matchRepo.PopOrEnqueue("demo-carol", now.Add(time.Minute)); err != nil {
		log.Fatalf("Failed to enqueue: %v", err)
	}
	fmt.Println("⏳ demo-carol is waiting in the queue")

	fmt.Println("\n✅ Prêt ! Lance le serveur ou le viewer sur ce store")
}
