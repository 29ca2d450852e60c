// Package session implements the per-Store session arena the guest's
// register/infer ABI addresses by id (spec §3 "Session", Design Notes:
// "represent session state in an arena keyed by session_id, never by
// pointer, to avoid self-referential graphs").
package session

import "sync"

// Config is the per-session configuration the host records when it
// registers a session in the Arena. The guest exports no register
// function; it only receives the session_id as an infer_text argument.
type Config struct {
	ModelID  string
	History  []string
	MaxToken int // the worker's already-resolved, concrete iteration cap; 0 means no iterations
}

// Session is the host's view of one logical chat invocation (spec §3).
// The host assigns the session_id and passes it into the guest's infer
// call; the guest echoes it back on every generate() callback, and the
// host only ever looks sessions up by that id, never by holding a live
// reference to guest-side state across calls.
type Session struct {
	ID        uint64
	Config    Config
	Sink      *Sink
	cancelled bool
	mu        sync.Mutex
}

// Cancel marks the session so Generate() (the token-callback import) starts
// returning 0, asking the guest to stop at its next loop iteration
// (spec §5 "Cancellation").
func (s *Session) Cancel() {
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
}

// Cancelled reports whether Cancel has been called.
func (s *Session) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// Arena is a per-Store registry of Sessions, keyed by the host-assigned
// session_id. One Arena exists per sandbox.Store and is discarded with it.
type Arena struct {
	mu       sync.Mutex
	sessions map[uint64]*Session
}

// NewArena constructs an empty arena for one Store.
func NewArena() *Arena {
	return &Arena{sessions: make(map[uint64]*Session)}
}

// Register installs a Session under id, replacing any Sink routing for it.
func (a *Arena) Register(id uint64, cfg Config, sink *Sink) *Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := &Session{ID: id, Config: cfg, Sink: sink}
	a.sessions[id] = s
	return s
}

// Lookup resolves a session_id; ok is false if the id is unregistered,
// matching spec §4.3 ("if absent, return 0" from the token-callback import).
func (a *Arena) Lookup(id uint64) (*Session, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[id]
	return s, ok
}

// Release drops session id. Called when its infer() call returns.
func (a *Arena) Release(id uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.sessions, id)
}
