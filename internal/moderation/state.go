package moderation

import (
	"sync"
	"time"

	"github.com/daminow/chatwarden/internal/moderation/rules"
)

// stateMap is a thread-safe map of per-user transient state with
// inactivity-based expiry. Entries are soft anti-spam signals, so losing
// them on eviction or restart is acceptable.
type stateMap struct {
	mu      sync.Mutex
	data    map[int64]*rules.State
	expires map[int64]time.Time
	ttl     time.Duration
	done    chan struct{}
}

// newStateMap creates a stateMap that evicts entries idle longer than ttl.
func newStateMap(ttl time.Duration) *stateMap {
	m := &stateMap{
		data:    make(map[int64]*rules.State),
		expires: make(map[int64]time.Time),
		ttl:     ttl,
		done:    make(chan struct{}),
	}

	go m.cleanup()

	return m
}

// get returns the state for a user, creating it on first touch, and
// refreshes its expiry.
func (m *stateMap) get(userID int64) *rules.State {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, exists := m.data[userID]
	if !exists || time.Now().After(m.expires[userID]) {
		state = &rules.State{}
		m.data[userID] = state
	}

	m.expires[userID] = time.Now().Add(m.ttl)

	return state
}

// close stops the cleanup goroutine.
func (m *stateMap) close() {
	close(m.done)
}

// cleanup periodically removes expired entries.
func (m *stateMap) cleanup() {
	ticker := time.NewTicker(m.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.mu.Lock()

			now := time.Now()
			for userID, expires := range m.expires {
				if now.After(expires) {
					delete(m.data, userID)
					delete(m.expires, userID)
				}
			}

			m.mu.Unlock()
		}
	}
}
