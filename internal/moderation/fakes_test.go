package moderation

import (
	"context"
	"sync"
	"time"

	"github.com/daminow/chatwarden/internal/chat"
	"github.com/daminow/chatwarden/internal/database/models"
	"github.com/daminow/chatwarden/internal/database/types"
)

// fakeClock is a manually advanced time source. Advancing it fires due
// timers synchronously, which keeps the tests deterministic.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	fireAt  time.Time
	fn      func()
	stopped bool
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	timer := &fakeTimer{fireAt: c.now.Add(d), fn: f}
	c.timers = append(c.timers, timer)

	return timer
}

func (t *fakeTimer) Stop() bool {
	if t.stopped {
		return false
	}

	t.stopped = true

	return true
}

// Advance moves the clock forward and runs every timer that became due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)

	var due []*fakeTimer

	remaining := c.timers[:0]
	for _, timer := range c.timers {
		if !timer.stopped && !timer.fireAt.After(c.now) {
			due = append(due, timer)
		} else {
			remaining = append(remaining, timer)
		}
	}

	c.timers = remaining
	c.mu.Unlock()

	for _, timer := range due {
		timer.fn()
	}
}

// memoryUserStore is an in-memory UserStore with atomic updates. A non-nil
// failWith makes every update fail until cleared.
type memoryUserStore struct {
	mu       sync.Mutex
	users    map[int64]*types.User
	failWith error
}

func (s *memoryUserStore) setFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failWith = err
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{users: make(map[int64]*types.User)}
}

func (s *memoryUserStore) GetUser(_ context.Context, userID int64) (*types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, models.ErrUserNotFound
	}

	clone := *user

	return &clone, nil
}

func (s *memoryUserStore) UpdateUser(
	_ context.Context, userID int64, fn func(*types.User) (*types.User, error),
) (*types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != nil {
		return nil, s.failWith
	}

	var current *types.User

	if stored, ok := s.users[userID]; ok {
		clone := *stored
		clone.History = append([]types.PunishmentEntry(nil), stored.History...)
		current = &clone
	}

	updated, err := fn(current)
	if err != nil {
		return nil, err
	}

	s.users[userID] = updated
	clone := *updated

	return &clone, nil
}

// memorySanctionStore is an in-memory SanctionStore.
type memorySanctionStore struct {
	mu   sync.Mutex
	rows map[timerKey]*types.Sanction
}

func newMemorySanctionStore() *memorySanctionStore {
	return &memorySanctionStore{rows: make(map[timerKey]*types.Sanction)}
}

func (s *memorySanctionStore) SaveSanction(_ context.Context, sanction *types.Sanction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows[timerKey{userID: sanction.UserID, kind: sanction.Kind}] = sanction

	return nil
}

func (s *memorySanctionStore) DeleteSanction(
	_ context.Context, userID int64, kind types.PunishmentKind,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := timerKey{userID: userID, kind: kind}
	if _, ok := s.rows[key]; !ok {
		return false, nil
	}

	delete(s.rows, key)

	return true, nil
}

func (s *memorySanctionStore) ListSanctions(_ context.Context) ([]*types.Sanction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sanctions := make([]*types.Sanction, 0, len(s.rows))
	for _, sanction := range s.rows {
		sanctions = append(sanctions, sanction)
	}

	return sanctions, nil
}

func (s *memorySanctionStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.rows)
}

type sentMessage struct {
	chatID   int64
	threadID int
	text     string
}

type restriction struct {
	userID int64
	perms  chat.Permissions
	until  time.Time
}

// fakeMessenger records every outbound transport call.
type fakeMessenger struct {
	mu         sync.Mutex
	deleted    []int
	sent       []sentMessage
	restricted []restriction
	banned     []int64
	unbanned   []int64
	admins     map[int64]bool
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{admins: make(map[int64]bool)}
}

func (m *fakeMessenger) DeleteMessage(_ context.Context, _ int64, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deleted = append(m.deleted, messageID)

	return nil
}

func (m *fakeMessenger) SendMessage(_ context.Context, chatID int64, threadID int, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent = append(m.sent, sentMessage{chatID: chatID, threadID: threadID, text: text})

	return nil
}

func (m *fakeMessenger) RestrictMember(
	_ context.Context, _ int64, userID int64, perms chat.Permissions, until time.Time,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.restricted = append(m.restricted, restriction{userID: userID, perms: perms, until: until})

	return nil
}

func (m *fakeMessenger) BanMember(_ context.Context, _ int64, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.banned = append(m.banned, userID)

	return nil
}

func (m *fakeMessenger) UnbanMember(_ context.Context, _ int64, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.unbanned = append(m.unbanned, userID)

	return nil
}

func (m *fakeMessenger) IsAdministrator(_ context.Context, _ int64, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.admins[userID], nil
}

func (m *fakeMessenger) sentTo(chatID int64) []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	var messages []sentMessage

	for _, msg := range m.sent {
		if msg.chatID == chatID {
			messages = append(messages, msg)
		}
	}

	return messages
}

// fakeStats records counters and the last reported health flag.
type fakeStats struct {
	mu         sync.Mutex
	processed  int
	violations int
	healthy    bool
}

func newFakeStats() *fakeStats {
	return &fakeStats{healthy: true}
}

func (s *fakeStats) MessageProcessed() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.processed++
}

func (s *fakeStats) ViolationFound() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.violations++
}

func (s *fakeStats) SetHealthy(healthy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.healthy = healthy
}

func (s *fakeStats) isHealthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.healthy
}
