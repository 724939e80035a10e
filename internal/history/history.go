// Package history holds the per-session conversation log. The store
// enforces two rules at append time: consecutive duplicates are
// suppressed, and only the most recent messages are retained. Callers
// can therefore pass the returned view straight into a model request.
package history

import (
	"sync"
	"time"

	"dirigent/internal/logging"
)

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one conversation entry. Immutable once appended.
type Message struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

// Store is the bounded conversation log for one session. Safe for
// concurrent use.
type Store struct {
	mu       sync.RWMutex
	session  string
	cap      int
	messages []Message
	archive  *Archive
}

// NewStore creates a store for the given session retaining at most cap
// messages. The archive may be nil; when set, every accepted append is
// also recorded there.
func NewStore(session string, cap int, archive *Archive) *Store {
	if cap <= 0 {
		cap = 20
	}
	return &Store{
		session: session,
		cap:     cap,
		archive: archive,
	}
}

// Append adds a message to the log. Returns false when the message was
// suppressed as a consecutive duplicate of the last entry.
func (s *Store) Append(role Role, content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.messages); n > 0 {
		last := s.messages[n-1]
		if last.Role == role && last.Content == content {
			return false
		}
	}

	msg := Message{Role: role, Content: content, Timestamp: time.Now()}
	s.messages = append(s.messages, msg)
	if len(s.messages) > s.cap {
		trimmed := make([]Message, s.cap)
		copy(trimmed, s.messages[len(s.messages)-s.cap:])
		s.messages = trimmed
	}

	if s.archive != nil {
		if err := s.archive.Record(s.session, msg); err != nil {
			logging.Get(logging.CategoryHistory).Debugw("archive write failed",
				"session", s.session, "error", err)
		}
	}
	return true
}

// Messages returns a copy of the current ordered log.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of retained messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Last returns the most recent message, if any.
func (s *Store) Last() (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.messages) == 0 {
		return Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}

// Clear drops all retained messages. The archive keeps its rows.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}

// Restore replaces the log with previously archived messages, applying
// the cap. Used when a session is recreated after a restart.
func (s *Store) Restore(msgs []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(msgs) > s.cap {
		msgs = msgs[len(msgs)-s.cap:]
	}
	s.messages = make([]Message, len(msgs))
	copy(s.messages, msgs)
}
