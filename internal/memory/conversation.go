package memory

import (
	"fmt"
	"sync"
	"time"
)

// ConversationMemory keeps a short, capacity-bounded window of recent turns per user.
//
// Capacity and age are independent: capacity evicts on write, age only filters reads, so stale
// turns stay stored until pushed out by newer ones. The map grows by one entry per distinct user
// and entries are never removed, only emptied by ClearContext.
type ConversationMemory struct {
	mu      sync.RWMutex
	buffers map[string]*userBuffer

	maxMessages int
	maxAge      time.Duration
	now         func() time.Time
	onEvict     func(string, Turn)
}

// userBuffer serializes all operations for one user.
type userBuffer struct {
	mu    sync.Mutex
	turns *ring
}

func New(cfg Config) *ConversationMemory {
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = DefaultMaxMessages
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.Now == nil {
		// Keep the monotonic reading so age checks ignore wall-clock steps.
		cfg.Now = time.Now
	}
	return &ConversationMemory{
		buffers:     make(map[string]*userBuffer),
		maxMessages: cfg.MaxMessages,
		maxAge:      cfg.MaxAge,
		now:         cfg.Now,
		onEvict:     cfg.OnEvict,
	}
}

// MaxMessages returns the per-user capacity.
func (m *ConversationMemory) MaxMessages() int { return m.maxMessages }

// MaxAge returns the read-time age cutoff.
func (m *ConversationMemory) MaxAge() time.Duration { return m.maxAge }

// AddMessage appends a turn stamped with the current time, evicting the oldest turn when the
// buffer is full. role must be RoleUser or RoleAssistant; anything else panics, so callers
// handling untrusted input should go through ParseRole first.
func (m *ConversationMemory) AddMessage(userID string, role Role, content string) {
	if !role.Valid() {
		panic(fmt.Sprintf("memory: AddMessage with invalid role %q", role))
	}

	b := m.bufferFor(userID)
	b.mu.Lock()
	now := m.now()
	if last, ok := b.turns.last(); ok && now.Before(last.CreatedAt) {
		// Keep creation times non-decreasing even if the wall clock steps back.
		now = last.CreatedAt
	}
	evicted, didEvict := b.turns.push(Turn{Role: role, Content: content, CreatedAt: now})
	b.mu.Unlock()

	if didEvict && m.onEvict != nil {
		m.onEvict(userID, evicted)
	}
}

// GetContext returns the user's turns that are at most MaxAge old, oldest first. It never
// modifies storage and never creates a buffer for an unknown user.
func (m *ConversationMemory) GetContext(userID string) []Entry {
	b := m.lookup(userID)
	if b == nil {
		return []Entry{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	now := m.now()
	out := make([]Entry, 0, b.turns.len())
	for i := 0; i < b.turns.len(); i++ {
		t := b.turns.at(i)
		if now.Sub(t.CreatedAt) > m.maxAge {
			continue
		}
		out = append(out, Entry{Role: t.Role, Content: t.Content})
	}
	return out
}

// ClearContext empties the user's buffer in place. Unknown users are a no-op.
func (m *ConversationMemory) ClearContext(userID string) {
	b := m.lookup(userID)
	if b == nil {
		return
	}
	b.mu.Lock()
	b.turns.reset()
	b.mu.Unlock()
}

// Len returns how many turns are physically stored for the user, stale ones included.
func (m *ConversationMemory) Len(userID string) int {
	b := m.lookup(userID)
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.turns.len()
}

// snapshot copies every stored turn for the user, oldest first, without age filtering.
func (m *ConversationMemory) snapshot(userID string) []Turn {
	b := m.lookup(userID)
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Turn, b.turns.len())
	for i := range out {
		out[i] = b.turns.at(i)
	}
	return out
}

// Users returns the number of buffers ever created. Cleared buffers still count.
func (m *ConversationMemory) Users() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.buffers)
}

func (m *ConversationMemory) lookup(userID string) *userBuffer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.buffers[userID]
}

func (m *ConversationMemory) bufferFor(userID string) *userBuffer {
	if b := m.lookup(userID); b != nil {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.buffers[userID]; ok {
		return b
	}
	b := &userBuffer{turns: newRing(m.maxMessages)}
	m.buffers[userID] = b
	return b
}
