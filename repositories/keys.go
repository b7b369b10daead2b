package repositories

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Key layout. Room IDs are UUID strings and user IDs are rejected at the
// edge when they contain ':', so every prefix below scans cleanly.
//
//	msg:{room}:{ts}:{uuid}  message bodies, ts zero padded to 19 digits
//	msgcount:{room}         exchanged message counter, one per room
//	room:{room}             room documents
//	broadcast:{room}        broadcast index, key presence only
//	member:{user}:{room}    membership index, key presence only
//	queue:e:{ts}:{user}     waiting entries, FIFO through key order
//	queue:u:{user}          entry key of a waiting user
//	queue:v                 touched by every queue transaction
//	reveal:{room}:{user}    identity disclosures

var queueVersionKey = []byte("queue:v")

const queueEntryPrefix = "queue:e:"

// msgKey orders messages chronologically under their room prefix.
// The 19-digit zero padding keeps lexicographic and chronological order
// identical, and the trailing UUID disambiguates same-nanosecond writes.
func msgKey(roomID string, at time.Time, id uuid.UUID) []byte {
	return fmt.Appendf(nil, "msg:%s:%019d:%s", roomID, at.UnixNano(), id)
}

func msgPrefix(roomID string) []byte {
	return fmt.Appendf(nil, "msg:%s:", roomID)
}

func msgCountKey(roomID string) []byte {
	return fmt.Appendf(nil, "msgcount:%s", roomID)
}

func roomKey(roomID string) []byte {
	return fmt.Appendf(nil, "room:%s", roomID)
}

func broadcastKey(roomID string) []byte {
	return fmt.Appendf(nil, "broadcast:%s", roomID)
}

const broadcastPrefix = "broadcast:"

func memberKey(userID, roomID string) []byte {
	return fmt.Appendf(nil, "member:%s:%s", userID, roomID)
}

func memberPrefix(userID string) []byte {
	return fmt.Appendf(nil, "member:%s:", userID)
}

func queueEntryKey(at time.Time, userID string) []byte {
	return fmt.Appendf(nil, "%s%019d:%s", queueEntryPrefix, at.UnixNano(), userID)
}

func queuedKey(userID string) []byte {
	return fmt.Appendf(nil, "queue:u:%s", userID)
}

func revealKey(roomID, userID string) []byte {
	return fmt.Appendf(nil, "reveal:%s:%s", roomID, userID)
}

func revealPrefix(roomID string) []byte {
	return fmt.Appendf(nil, "reveal:%s:", roomID)
}
