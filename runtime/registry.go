package runtime

import (
	"sync"

	"cinematch/contract"
)

type sinkSet map[string]contract.EventSink

// Registry tracks live subscriptions for the fanout worker.
// Feeds are keyed by an opaque subscription ID so one user may hold
// several connections to the same room without stepping on each other.
// Room feeds carry messages and disclosures, user feeds carry
// matchmaking outcomes.
type Registry struct {
	mu        sync.RWMutex
	roomSinks map[string]sinkSet // room -> subID -> sink
	userSinks map[string]sinkSet // user -> subID -> sink
}

func NewRegistry() *Registry {
	return &Registry{
		roomSinks: make(map[string]sinkSet),
		userSinks: make(map[string]sinkSet),
	}
}

// SubscribeRoom attaches a connection's sink to a room feed.
// If the feed does not yet exist in the registry, it is initialized on the fly.
func (r *Registry) SubscribeRoom(subID, roomID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.roomSinks[roomID]; !ok {
		r.roomSinks[roomID] = make(sinkSet)
	}
	r.roomSinks[roomID][subID] = sink
}

// UnsubscribeRoom detaches one connection from a room feed.
// It ensures no empty sets are left in the feed map to prevent memory
// leaks over time.
func (r *Registry) UnsubscribeRoom(subID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sinks, ok := r.roomSinks[roomID]; ok {
		delete(sinks, subID)

		// If no one is left on the feed, remove the entry entirely
		if len(sinks) == 0 {
			delete(r.roomSinks, roomID)
		}
	}
}

// SubscribeUser attaches a connection's sink to a user feed. Every
// session subscribes its own user feed to hear matchmaking outcomes.
func (r *Registry) SubscribeUser(subID, userID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.userSinks[userID]; !ok {
		r.userSinks[userID] = make(sinkSet)
	}
	r.userSinks[userID][subID] = sink
}

func (r *Registry) UnsubscribeUser(subID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sinks, ok := r.userSinks[userID]; ok {
		delete(sinks, subID)
		if len(sinks) == 0 {
			delete(r.userSinks, userID)
		}
	}
}

// SinksForRoom retrieves all active sinks for one room feed.
// Returns nil if the room has no subscribers.
func (r *Registry) SinksForRoom(roomID string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return collect(r.roomSinks[roomID])
}

// SinksForUser retrieves all active sinks for one user feed.
func (r *Registry) SinksForUser(userID string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return collect(r.userSinks[userID])
}

// Counts reports the number of live subscriptions per scope, for the
// runtime stats worker.
func (r *Registry) Counts() (rooms, users int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sinks := range r.roomSinks {
		rooms += len(sinks)
	}
	for _, sinks := range r.userSinks {
		users += len(sinks)
	}
	return rooms, users
}

func collect(set sinkSet) []contract.EventSink {
	if len(set) == 0 {
		return nil
	}
	sinks := make([]contract.EventSink, 0, len(set))
	for _, sink := range set {
		sinks = append(sinks, sink)
	}
	return sinks
}
