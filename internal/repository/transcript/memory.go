package transcript

import (
	"context"
	"sort"
	"sync"
	"time"

	"coursemart/internal/domain"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultMemorySessions = 10000
	DefaultMemoryTTL      = 24 * time.Hour
)

type memorySession struct {
	userID   string
	endedAt  *time.Time
	messages []domain.ChatMessage
	handoffs []domain.Handoff
}

// Memory keeps transcripts in process; used when no database is configured.
// Sessions are forgotten once idle for the TTL or when newer sessions push
// them out of the size bound.
type Memory struct {
	mu       sync.Mutex
	sessions *expirable.LRU[string, *memorySession]
}

// NewMemory bounds the store to maxSessions sessions, each kept for ttl after
// its last write. Zero values pick the defaults.
func NewMemory(maxSessions int, ttl time.Duration) *Memory {
	if maxSessions <= 0 {
		maxSessions = DefaultMemorySessions
	}
	if ttl <= 0 {
		ttl = DefaultMemoryTTL
	}
	return &Memory{sessions: expirable.NewLRU[string, *memorySession](maxSessions, nil, ttl)}
}

func (m *Memory) AppendMessage(_ context.Context, sessionID, userID string, msg domain.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.touchLocked(sessionID)
	if s.userID == "" {
		s.userID = userID
	}
	s.messages = append(s.messages, msg)
	sort.SliceStable(s.messages, func(i, j int) bool { return s.messages[i].TS < s.messages[j].TS })
	return nil
}

func (m *Memory) ListMessages(_ context.Context, sessionID string, limit int) ([]domain.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions.Get(sessionID)
	if !ok {
		return []domain.ChatMessage{}, nil
	}
	msgs := s.messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]domain.ChatMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (m *Memory) SessionOwner(_ context.Context, sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions.Get(sessionID)
	if !ok {
		return "", domain.ErrNotFound
	}
	return s.userID, nil
}

func (m *Memory) EndSession(_ context.Context, sessionID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions.Get(sessionID)
	if !ok {
		return domain.ErrNotFound
	}
	if s.endedAt == nil {
		s.endedAt = &at
	}
	return nil
}

func (m *Memory) CreateHandoff(_ context.Context, h domain.Handoff) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.touchLocked(h.SessionID)
	s.handoffs = append(s.handoffs, h)
	return nil
}

// touchLocked returns the session, creating it if needed, and restarts its TTL.
func (m *Memory) touchLocked(id string) *memorySession {
	s, ok := m.sessions.Get(id)
	if !ok {
		s = &memorySession{}
	}
	m.sessions.Add(id, s)
	return s
}

// Handoffs lists the handoffs recorded for sessionID.
func (m *Memory) Handoffs(sessionID string) []domain.Handoff {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions.Get(sessionID)
	if !ok {
		return nil
	}
	out := make([]domain.Handoff, len(s.handoffs))
	copy(out, s.handoffs)
	return out
}

func (m *Memory) Len() int {
	return m.sessions.Len()
}
