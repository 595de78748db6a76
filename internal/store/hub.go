package store

import "sync"

// Change keys published by the domain stores.
const (
	KeyAccounts  = "accounts"
	KeyMedicines = "medicines"
	KeyLogs      = "logs"
	KeyCooldowns = "cooldowns"
	KeyReminder  = "reminder"
)

// Change describes one mutation of shared state.
type Change struct {
	Key string `json:"key"`
	Op  string `json:"op"`
	ID  string `json:"id,omitempty"`
}

// Hub is the cross-viewer change-notification mechanism: every write to
// shared state is published here and forwarded to all live subscribers, so
// no viewer needs a manual refresh. Delivery is best-effort; a slow
// subscriber drops events rather than blocking writers.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]subscriber
}

type subscriber struct {
	keys map[string]bool
	ch   chan Change
}

// NewHub creates a new change hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]subscriber)}
}

// Subscribe registers interest in the given keys (all keys if none given).
// The returned cancel func must be called when the viewer goes away.
func (h *Hub) Subscribe(keys ...string) (<-chan Change, func()) {
	keySet := make(map[string]bool, len(keys))
	for _, k := range keys {
		keySet[k] = true
	}

	ch := make(chan Change, 16)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = subscriber{keys: keySet, ch: ch}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub.ch)
		}
		h.mu.Unlock()
	}

	return ch, cancel
}

// Publish notifies all interested subscribers of a change.
func (h *Hub) Publish(change Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if len(sub.keys) > 0 && !sub.keys[change.Key] {
			continue
		}
		select {
		case sub.ch <- change:
		default:
		}
	}
}

// SubscriberCount returns the number of live subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
