package session

import (
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned by Update when no session exists for the
// call id. Duplicate hangups and stray events hit this path; callers
// treat it as a benign outcome, not a failure.
var ErrNotFound = errors.New("session: call not found")

// Seed carries the fields used to initialize a session on first
// creation. Later events for the same call never overwrite them.
type Seed struct {
	CallSessionID string
	From          string
	To            string
}

type entry struct {
	mu   sync.Mutex
	sess *CallSession
}

// Store is the registry of active call sessions. The store mutex only
// guards the map itself; each session carries its own lock so that
// events for different calls proceed fully in parallel while events
// for the same call are serialized.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// GetOrCreate returns the session for callID, creating it if absent.
// Creation is idempotent: concurrent callers for the same call id all
// observe the same session, and exactly one of them sees created=true.
// The mutator runs with the session lock held.
func (st *Store) GetOrCreate(callID string, seed Seed, fn func(s *CallSession, created bool)) {
	st.mu.Lock()
	e, ok := st.entries[callID]
	if !ok {
		e = &entry{sess: &CallSession{
			CallID:        callID,
			CallSessionID: seed.CallSessionID,
			From:          seed.From,
			To:            seed.To,
			State:         StateNew,
			StartTime:     time.Now(),
		}}
		st.entries[callID] = e
	}
	st.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.sess, !ok)
}

// Update runs the mutator with the session lock held. No two mutators
// for the same call id ever interleave.
func (st *Store) Update(callID string, fn func(s *CallSession)) error {
	st.mu.RLock()
	e, ok := st.entries[callID]
	st.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.sess)
	return nil
}

// Remove atomically removes and returns the session, or nil if it was
// already gone (a duplicate hangup, for example).
func (st *Store) Remove(callID string) *CallSession {
	st.mu.Lock()
	e, ok := st.entries[callID]
	if ok {
		delete(st.entries, callID)
	}
	st.mu.Unlock()
	if !ok {
		return nil
	}

	// Wait out any in-flight mutator before handing the session back.
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess
}

// Len reports the number of active sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.entries)
}

// Summary is a read-only view of one active call, for the live
// monitoring endpoint.
type Summary struct {
	CallID    string    `json:"call_id"`
	From      string    `json:"from"`
	State     State     `json:"state"`
	Intent    string    `json:"intent,omitempty"`
	StartTime time.Time `json:"start_time"`
}

// Snapshot returns summaries of all active sessions.
func (st *Store) Snapshot() []Summary {
	st.mu.RLock()
	entries := make([]*entry, 0, len(st.entries))
	for _, e := range st.entries {
		entries = append(entries, e)
	}
	st.mu.RUnlock()

	out := make([]Summary, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, Summary{
			CallID:    e.sess.CallID,
			From:      e.sess.From,
			State:     e.sess.State,
			Intent:    e.sess.Intent,
			StartTime: e.sess.StartTime,
		})
		e.mu.Unlock()
	}
	return out
}
