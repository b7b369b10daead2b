package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"cinematch/domain"
	"cinematch/projection"
	"cinematch/search"
)

// app holds the terminal session state. The websocket writer side is
// only ever touched from the main loop, which keeps gorilla's single
// writer rule without extra locking.
type app struct {
	log      *slog.Logger
	api      *api
	conn     *websocket.Conn
	selfID   string
	room     *roomInfo
	rooms    []roomInfo
	timeline *projection.Timeline
	last     domain.Message // previous printed message, for grouping
}

// handleLine dispatches one line of user input. Lines without a
// leading slash are sent as messages to the current room.
func (a *app) handleLine(line string) (quit bool) {
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		a.post(line)
		return false
	}

	command, rest, _ := strings.Cut(line, " ")
	switch command {
	case "/quit", "/exit":
		return true
	case "/help":
		a.help()
	case "/rooms":
		a.listRooms()
	case "/match":
		a.requestMatch()
	case "/cancel":
		a.cancelMatch()
	case "/join":
		a.join(strings.TrimSpace(rest))
	case "/leave":
		a.leave()
	case "/history":
		a.history()
	case "/find":
		a.find(line)
	case "/reveal":
		a.reveal()
	case "/who":
		a.who()
	default:
		failure("Unknown command %s, try /help", command)
	}
	return false
}

func (a *app) help() {
	faint(`Commands:
  /rooms            list rooms you can enter
  /join <n|name|id> enter a room and load its history
  /leave            leave the current room feed
  /match            pair with a waiting stranger, or queue up
  /cancel           leave the waiting queue
  /find <terms>     search the room (--author Bob --limit 5)
  /history          reprint the room timeline
  /reveal           disclose your identity once the gate is open
  /who              show the reveal state of the room
  /quit             exit
Anything else is sent as a message.`)
}

func (a *app) post(content string) {
	if a.room == nil {
		failure("Join a room first (/rooms then /join)")
		return
	}
	if _, err := a.api.Post(a.room.ID, content); err != nil {
		failure("Send failed: %v", err)
	}
	// The echo comes back on the feed, so it prints once and in order.
}

func (a *app) listRooms() {
	rooms, err := a.api.Rooms()
	if err != nil {
		failure("Listing rooms failed: %v", err)
		return
	}
	a.rooms = rooms
	printRooms(rooms)
}

func (a *app) requestMatch() {
	room, paired, err := a.api.RequestMatch()
	if err != nil {
		failure("Match request failed: %v", err)
		return
	}
	if !paired {
		notice("Waiting for a partner... (/cancel to leave the queue)")
		return
	}
	notice("Matched with a stranger!")
	a.enter(*room)
}

func (a *app) cancelMatch() {
	cancelled, err := a.api.CancelMatch()
	if err != nil {
		failure("Cancel failed: %v", err)
		return
	}
	if cancelled {
		notice("Left the waiting queue")
	} else {
		faint("You were not queued")
	}
}

func (a *app) join(arg string) {
	if arg == "" {
		failure("Usage: /join <n|name|id>")
		return
	}
	room, err := a.resolve(arg)
	if err != nil {
		failure("%v", err)
		return
	}
	a.enter(room)
}

// resolve accepts a list index from the last /rooms output, a room
// name, an ID prefix or a full UUID.
func (a *app) resolve(arg string) (roomInfo, error) {
	if len(a.rooms) == 0 {
		rooms, err := a.api.Rooms()
		if err != nil {
			return roomInfo{}, fmt.Errorf("listing rooms: %w", err)
		}
		a.rooms = rooms
	}

	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(a.rooms) {
			return roomInfo{}, fmt.Errorf("no room numbered %d", n)
		}
		return a.rooms[n-1], nil
	}

	for _, room := range a.rooms {
		if strings.EqualFold(room.Name, arg) || strings.HasPrefix(room.ID, arg) {
			return room, nil
		}
	}

	if _, err := uuid.Parse(arg); err == nil {
		return roomInfo{ID: arg}, nil
	}
	return roomInfo{}, fmt.Errorf("no room matches %q", arg)
}

// enter switches the feed to the room and replays its history into a
// fresh timeline, so live events and history dedup against each other.
func (a *app) enter(room roomInfo) {
	if err := a.send(wsCommand{Action: "join", RoomID: room.ID}); err != nil {
		failure("Joining feed failed: %v", err)
		return
	}
	a.room = &room
	a.timeline = projection.NewTimeline()
	a.last = domain.Message{}

	history, err := a.api.History(room.ID)
	if err != nil {
		failure("Loading history failed: %v", err)
		return
	}
	for _, info := range history {
		a.timeline.Add(toDomain(info, a.selfID))
	}

	name := room.Name
	if name == "" {
		name = shortID(room.ID)
	}
	notice("  ====== %s ======", name)
	printTimeline(a.timeline, a.selfID)
	a.syncLast()
}

// syncLast aligns live grouping with the tail of the replayed history.
func (a *app) syncLast() {
	entries := a.timeline.Entries()
	if len(entries) > 0 {
		a.last = entries[len(entries)-1].Message
	}
}

func (a *app) leave() {
	if a.room == nil {
		faint("Not in a room")
		return
	}
	if err := a.send(wsCommand{Action: "leave"}); err != nil {
		failure("Leaving feed failed: %v", err)
		return
	}
	notice("Left the room")
	a.room = nil
}

func (a *app) history() {
	if a.room == nil {
		failure("Join a room first")
		return
	}
	printTimeline(a.timeline, a.selfID)
}

func (a *app) find(line string) {
	if a.room == nil {
		failure("Join a room first")
		return
	}
	query := search.ParseQuery(line)
	if query.Terms == "" && query.Author == "" {
		failure("Usage: /find <terms> [--author name] [--limit n]")
		return
	}
	result, err := a.api.Search(a.room.ID, query)
	if err != nil {
		failure("Search failed: %v", err)
		return
	}
	printHits(result)
}

func (a *app) reveal() {
	if a.room == nil {
		failure("Join a room first")
		return
	}
	state, err := a.api.Reveal(a.room.ID)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusPreconditionFailed {
			failure("Not yet: %s", apiErr.Message)
			return
		}
		failure("Reveal failed: %v", err)
		return
	}
	printRevealState(state)
}

func (a *app) who() {
	if a.room == nil {
		failure("Join a room first")
		return
	}
	state, err := a.api.RevealState(a.room.ID)
	if err != nil {
		failure("Reveal state failed: %v", err)
		return
	}
	printRevealState(state)
}

func (a *app) send(cmd wsCommand) error {
	_ = a.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return a.conn.WriteJSON(cmd)
}

// handleEvent reacts to one frame of the server feed.
func (a *app) handleEvent(evt wsEvent) {
	switch evt.Type {
	case "message.appended":
		if evt.Message != nil {
			a.printLive(*evt.Message)
		}
	case "match.found":
		if evt.Room != nil {
			notice("Matched with a stranger!")
			a.enter(*evt.Room)
		}
	case "identity.revealed":
		if evt.Disclosure != nil {
			notice("Identity revealed: say hello to %s", evt.Disclosure.Username)
		}
	case "search.expired":
		notice("Nobody showed up; your match request expired. /match to try again.")
	case "joined", "left":
		// Acks for our own control frames.
		a.log.Debug("Feed switched", "type", evt.Type)
	case "error":
		failure("Server: %s", evt.Error)
	default:
		a.log.Debug("Ignoring frame", "type", evt.Type)
	}
}

// printLive renders a message as it arrives, skipping frames for other
// rooms and anything the history replay already showed.
func (a *app) printLive(info messageInfo) {
	if a.room == nil || info.RoomID != a.room.ID {
		return
	}
	m := toDomain(info, a.selfID)
	if a.timeline.Add(m) == 0 {
		return
	}
	printMessage(m, a.selfID, projection.Grouped(a.last, m))
	a.last = m
}
