package bus

import "strings"

// Subjects carry one token of scope and the raw identifier after it.
// Room IDs are UUIDs, user IDs are validated at the auth edge, so the
// identifier never contains whitespace or NATS wildcards.
const (
	ScopeRoom = "room"
	ScopeUser = "user"

	// SubjectAllRooms and SubjectAllUsers are the wildcard
	// subscriptions used by the fanout worker.
	SubjectAllRooms = ScopeRoom + ".>"
	SubjectAllUsers = ScopeUser + ".>"
)

func RoomSubject(roomID string) string {
	return ScopeRoom + "." + roomID
}

func UserSubject(userID string) string {
	return ScopeUser + "." + userID
}

// SplitSubject returns the scope and identifier of a subject.
// Everything after the first dot belongs to the identifier.
func SplitSubject(subject string) (scope, id string, ok bool) {
	scope, id, ok = strings.Cut(subject, ".")
	if !ok || id == "" {
		return "", "", false
	}
	if scope != ScopeRoom && scope != ScopeUser {
		return "", "", false
	}
	return scope, id, true
}
