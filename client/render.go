package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"

	"cinematch/domain"
	"cinematch/projection"
)

// Terminal styles. Own messages and peers get distinct colors so a
// two-party room stays readable without names on every line.
var (
	styleMine   = color.New(color.FgCyan, color.Bold)
	stylePeer   = color.New(color.FgGreen, color.Bold)
	styleNotice = color.New(color.FgYellow)
	styleError  = color.New(color.FgLightRed)
	styleFaint  = color.New(color.FgDarkGray)
)

func notice(format string, args ...any) {
	fmt.Println(styleNotice.Render(fmt.Sprintf(format, args...)))
}

func failure(format string, args ...any) {
	fmt.Println(styleError.Render(fmt.Sprintf(format, args...)))
}

func faint(format string, args ...any) {
	fmt.Println(styleFaint.Render(fmt.Sprintf(format, args...)))
}

// toDomain rebuilds a message from its wire form so the projection
// package can order and group it. Anonymous messages carry no author
// ID and a fresh alias each time, but they only occur in two-member
// match rooms, so "not mine" pins the author exactly.
func toDomain(info messageInfo, selfID string) domain.Message {
	id, _ := uuid.Parse(info.ID)
	roomID, _ := uuid.Parse(info.RoomID)

	authorID := info.AuthorID
	if authorID == "" {
		authorID = "peer:" + info.RoomID
		if info.Mine {
			authorID = selfID
		}
	}

	m := domain.Message{
		ID:        id,
		RoomID:    roomID,
		AuthorID:  authorID,
		Content:   info.Content,
		Lang:      info.Lang,
		Anonymous: info.Anonymous,
		CreatedAt: info.CreatedAt,
	}
	if info.Anonymous {
		m.Alias = info.Author
	} else {
		m.Author = info.Author
	}
	return m
}

// printMessage renders one message. Grouped messages drop the author
// header and attach under the previous line.
func printMessage(m domain.Message, selfID string, grouped bool) {
	if !grouped {
		style := stylePeer
		if m.AuthorID == selfID {
			style = styleMine
		}
		header := fmt.Sprintf("%s %s", m.CreatedAt.Local().Format(time.TimeOnly), m.DisplayName())
		fmt.Println(style.Render(header))
	}
	fmt.Printf("  %s\n", m.Content)
}

func printTimeline(timeline *projection.Timeline, selfID string) {
	entries := timeline.Entries()
	if len(entries) == 0 {
		faint("(no messages yet)")
		return
	}
	for _, entry := range entries {
		printMessage(entry.Message, selfID, entry.Grouped)
	}
}

func printRooms(rooms []roomInfo) {
	if len(rooms) == 0 {
		faint("(no rooms)")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"#", "Room", "Kind", "Created"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for i, room := range rooms {
		name := room.Name
		if name == "" {
			name = shortID(room.ID)
		}
		table.Append([]string{
			fmt.Sprintf("%d", i+1),
			name,
			room.Kind,
			room.CreatedAt.Local().Format(time.DateTime),
		})
	}
	table.Render()
}

func printHits(result searchResult) {
	if len(result.Hits) == 0 {
		faint("(no results)")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Author", "Message", "At"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, hit := range result.Hits {
		table.Append([]string{
			hit.Author,
			hit.Content,
			hit.At.Local().Format(time.DateTime),
		})
	}
	table.Render()
	faint("%d of %d results", len(result.Hits), result.Total)
}

func printRevealState(state revealState) {
	switch state.Phase {
	case "open":
		notice("Reveal is open: %d messages exchanged (threshold %d)", state.Messages, state.Threshold)
	default:
		notice("Reveal locked: %d of %d messages exchanged", state.Messages, state.Threshold)
	}
	for _, d := range state.Disclosures {
		notice("  %s revealed as %s", d.UserID, d.Username)
	}
}

// shortID keeps the first UUID block, enough to tell rooms apart on
// one screen.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
