// Package session tracks the single active analysis session. A session is
// minted server-side on the first model upload and replaced wholesale by the
// next one; anything still in flight for a replaced session must have its
// result dropped, never applied.
package session

import (
	"errors"
	"sync"
)

// ErrSuperseded marks work whose session was replaced by a newer upload.
var ErrSuperseded = errors.New("session superseded")

// Handle pins a session id to the generation it was current at. Components
// capture a Handle when they start a request and re-check it before applying
// the response.
type Handle struct {
	ID         string
	generation uint64
}

// Tracker owns the single active session. Safe for concurrent use; the CLI
// polls from a goroutine while the prompt stays responsive.
type Tracker struct {
	mu         sync.Mutex
	current    string
	generation uint64
}

// NewTracker returns a Tracker with no active session.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Begin installs id as the active session and supersedes every handle issued
// before. Re-installing the same id still bumps the generation: a new upload
// into an existing session invalidates data loaded for the previous file.
func (t *Tracker) Begin(id string) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = id
	t.generation++
	return Handle{ID: id, generation: t.generation}
}

// Current returns the live handle, or ok=false when no session exists.
func (t *Tracker) Current() (Handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == "" {
		return Handle{}, false
	}
	return Handle{ID: t.current, generation: t.generation}, true
}

// Stale reports whether h has been superseded by a later Begin.
func (t *Tracker) Stale(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return h.generation != t.generation || h.ID != t.current
}
