package session

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Registry owns all live sessions, keyed by call ID. Exactly one session may
// exist per call; a second create for the same call ID is rejected.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	log      *slog.Logger

	// OnDestroy, when set, runs after a session is removed and its legs are
	// closed. The relay uses it to persist state and append history.
	OnDestroy func(*Session)
}

func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{sessions: map[string]*Session{}, log: log}
}

// Create registers a new ringing session for the call.
func (r *Registry) Create(callID, identity string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[callID]; exists {
		return nil, ErrDuplicateSession
	}
	s := New(callID, identity)
	r.sessions[callID] = s
	return s, nil
}

// Get returns the live session for the call, if any.
func (r *Registry) Get(callID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[callID]
	return s, ok
}

// Destroy removes the session, closes both legs, marks it closed, and runs
// the OnDestroy hook. Idempotent: destroying an unknown or already destroyed
// call is a no-op.
func (r *Registry) Destroy(callID string) {
	r.mu.Lock()
	s, ok := r.sessions[callID]
	if ok {
		delete(r.sessions, callID)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	s.SetStatus(StatusDraining)
	s.CloseConns()

	if r.OnDestroy != nil {
		r.OnDestroy(s)
	}
	s.SetStatus(StatusClosed)
	r.log.Info("session destroyed", "call_id", s.CallID, "identity", s.Identity)
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot returns operator-facing info for every live session, ordered by
// call ID for stable output.
func (r *Registry) Snapshot() []Info {
	r.mu.RLock()
	out := make([]Info, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Snapshot())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CallID < out[j].CallID })
	return out
}

// idleCalls returns the call IDs idle longer than the threshold.
func (r *Registry) idleCalls(threshold time.Duration) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for id, s := range r.sessions {
		if s.IdleFor() > threshold {
			ids = append(ids, id)
		}
	}
	return ids
}
