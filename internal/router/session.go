package router

import (
	"context"
	"sync"

	"dirigent/internal/history"
)

// session is the per-origin conversation state. Turns on one session
// run serially under turns; different sessions do not contend.
type session struct {
	key     string
	turns   sync.Mutex
	history *history.Store

	ctx    context.Context
	cancel context.CancelFunc
}

// session returns the state for an origin key, creating it on first
// use. A new session restores its tail from the archive so restarts
// keep context.
func (r *Router) session(key string) *session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[key]; ok {
		return s
	}

	ctx, cancel := context.WithCancel(r.base)
	s := &session{
		key:     key,
		history: history.NewStore(key, r.cfg.History.Cap, r.archive),
		ctx:     ctx,
		cancel:  cancel,
	}
	if r.archive != nil {
		if msgs, err := r.archive.Tail(key, r.cfg.History.Cap); err != nil {
			r.log.Debugw("session restore failed", "session", key, "error", err)
		} else if len(msgs) > 0 {
			s.history.Restore(msgs)
			r.log.Infow("session restored", "session", key, "messages", len(msgs))
		}
	}
	r.sessions[key] = s
	return s
}

// Teardown cancels a session's in-flight work and forgets its state.
// The next message on the same origin starts fresh (plus whatever the
// archive restores).
func (r *Router) Teardown(key string) {
	r.mu.Lock()
	s, ok := r.sessions[key]
	if ok {
		delete(r.sessions, key)
	}
	r.mu.Unlock()

	if ok {
		s.cancel()
		r.log.Infow("session torn down", "session", key)
	}
}

// Shutdown cancels every session. In-flight turns observe the
// cancellation through their context and abandon their results.
func (r *Router) Shutdown() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*session)
	r.mu.Unlock()

	r.stop()
	for _, s := range sessions {
		s.cancel()
	}
}
