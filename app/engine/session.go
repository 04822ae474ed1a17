package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateStopped   State = "stopped"
	StateErrored   State = "errored"
)

// Terminal reports whether no further live events are applied in this state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateStopped || s == StateErrored
}

type Options struct {
	// ReconcileAfterStop controls whether a completion snapshot arriving
	// after Stop or Fail is still merged. Stopped scans may still emit
	// partial completion data; merging it keeps that progress.
	ReconcileAfterStop bool
}

func DefaultOptions() Options {
	return Options{ReconcileAfterStop: true}
}

// Session owns one scan's lifecycle and its per-kind stores. It is the
// unit of isolation between concurrent scans: stores are never shared
// across sessions. The transport read loop, API handlers and background
// workers touch a session from different goroutines, so all state is
// guarded by the mutex; dedup correctness itself rests on TryInsert, not
// on lock ordering.
type Session struct {
	ID      string
	Website string

	opts Options

	mu         sync.RWMutex
	state      State
	stores     map[Kind]*Store
	progress   Progress
	lastErr    string
	startedAt  time.Time
	endedAt    *time.Time
	persisted  bool
	onTerminal []func()
}

func NewSession(id, website string, opts Options) *Session {
	if id == "" {
		id = uuid.NewString()
	}

	stores := make(map[Kind]*Store, len(Kinds))
	for _, kind := range Kinds {
		stores[kind] = NewStore(kind)
	}

	return &Session{
		ID:      id,
		Website: website,
		opts:    opts,
		state:   StatePending,
		stores:  stores,
	}
}

// Start transitions the session to running. It clears the stores and
// transient state so a session handle reused across relaunches always
// begins a clean run.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, store := range s.stores {
		store.clear()
	}
	s.progress = Progress{}
	s.lastErr = ""
	s.endedAt = nil
	s.persisted = false
	s.startedAt = time.Now().UTC()
	s.state = StateRunning
}

// Apply merges one live discovery event into the kind's store. Applying
// after a terminal transition is a documented no-op, not an error: stale
// listeners from a previous run must not resurrect mutation. The only
// error case is an unknown kind, which is a caller bug rather than a
// data-shape problem.
func (s *Session) Apply(kind Kind, raw any) (bool, error) {
	if !kind.Valid() {
		return false, fmt.Errorf("invalid discovery kind: %q", kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return false, nil
	}

	return s.stores[kind].TryInsert(Normalize(kind, raw)), nil
}

// UpdateProgress advances the transient progress indicator. Progress is
// monotonic: a stale event delivered out of order never moves it backwards.
func (s *Session) UpdateProgress(p Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return
	}
	if p.PagesVisited > s.progress.PagesVisited {
		s.progress.PagesVisited = p.PagesVisited
	}
	if p.TotalPages > s.progress.TotalPages {
		s.progress.TotalPages = p.TotalPages
	}
	if p.Phase != "" {
		s.progress.Phase = p.Phase
	}
}

// ResetProgress clears the progress indicator without touching the
// stores. Emitted phase starts reset progress; accumulated discoveries
// survive.
func (s *Session) ResetProgress() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return
	}
	s.progress = Progress{}
}

// Complete reconciles the authoritative completion snapshot and freezes
// the session. When the session was already stopped or errored, the
// snapshot is still merged if ReconcileAfterStop allows it, but the
// terminal state is not rewritten. Returns the number of snapshot items
// that were new.
func (s *Session) Complete(snap *Snapshot) int {
	s.mu.Lock()

	var inserted int
	switch {
	case s.state == StateRunning:
		inserted = s.reconcileLocked(snap)
		s.finishLocked(StateCompleted)
	case s.state.Terminal() && s.opts.ReconcileAfterStop:
		inserted = s.reconcileLocked(snap)
	}

	callbacks := s.takeTerminalCallbacksLocked()
	s.mu.Unlock()

	runCallbacks(callbacks)
	return inserted
}

// Stop freezes the session without discarding accumulated progress.
func (s *Session) Stop() {
	s.terminate(StateStopped, "")
}

// Fail records the upstream error and freezes the session. Everything
// accumulated so far stays queryable.
func (s *Session) Fail(err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	s.terminate(StateErrored, msg)
}

func (s *Session) terminate(state State, errMsg string) {
	s.mu.Lock()

	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	if errMsg != "" {
		s.lastErr = errMsg
	}
	s.finishLocked(state)

	callbacks := s.takeTerminalCallbacksLocked()
	s.mu.Unlock()

	runCallbacks(callbacks)
}

func (s *Session) finishLocked(state State) {
	now := time.Now().UTC()
	s.endedAt = &now
	s.state = state
}

// Reconcile merges a snapshot into the stores regardless of state. Used
// for cold loads of persisted results, which are valid against pending
// and terminal sessions alike. Returns the number of new items.
func (s *Session) Reconcile(snap *Snapshot) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconcileLocked(snap)
}

// OnTerminal registers a callback fired once when the session reaches a
// terminal state. Used to scope transport listener registration to the
// session lifecycle.
func (s *Session) OnTerminal(fn func()) {
	s.mu.Lock()
	if !s.state.Terminal() {
		s.onTerminal = append(s.onTerminal, fn)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	// Already terminal: fire immediately.
	fn()
}

func (s *Session) takeTerminalCallbacksLocked() []func() {
	if !s.state.Terminal() {
		return nil
	}
	callbacks := s.onTerminal
	s.onTerminal = nil
	return callbacks
}

func runCallbacks(callbacks []func()) {
	for _, fn := range callbacks {
		fn()
	}
}

// Read accessors. Safe to call in any state, including mid-run.

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) CountOf(kind Kind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	store, ok := s.stores[kind]
	if !ok {
		return 0
	}
	return store.Count()
}

func (s *Session) ItemsOf(kind Kind) []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	store, ok := s.stores[kind]
	if !ok {
		return nil
	}
	return store.Items()
}

func (s *Session) Progress() Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress
}

func (s *Session) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Session) StartedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startedAt
}

func (s *Session) EndedAt() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.endedAt
}

// Persisted reports whether a background task already flushed this
// session's results to storage.
func (s *Session) Persisted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persisted
}

func (s *Session) MarkPersisted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persisted = true
}
