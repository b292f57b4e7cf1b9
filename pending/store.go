// Package pending stages file-system mutations in memory before they are
// committed to a storage.Provider. A Store keeps the ordered operation
// ledger and the cut/copy clipboard, derives a virtual listing that overlays
// staged changes on real listings, offers linear undo/redo, and executes the
// batch with per-operation partial-failure reporting.
package pending

import (
	"log/slog"
	"slices"
	gosync "sync"
	"time"

	"github.com/ghyeongl/pendingfs/logging"
)

// DefaultHistoryLimit bounds the undo stack of stores built without
// WithHistoryLimit.
const DefaultHistoryLimit = 100

// Snapshot is an immutable view of the store. Store.Snapshot returns the
// same pointer until the state changes.
type Snapshot struct {
	Operations []Operation
	Clipboard  *Clipboard
	CanUndo    bool
	CanRedo    bool
	// Version increases with every change.
	Version uint64
}

// Store is the pending-operations store. All methods are safe for
// concurrent use; Execute may run while other goroutines stage.
type Store struct {
	mu        gosync.Mutex
	ops       []Operation
	clipboard *Clipboard

	undo         []state
	redo         []state
	historyLimit int

	version   uint64
	snap      *Snapshot
	retries   uint64
	retryBase time.Duration
	listeners listeners
	log       *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithHistoryLimit bounds the undo and redo stacks. n <= 0 keeps the default.
func WithHistoryLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// WithRetry makes Execute retry provider errors flagged retryable up to
// maxRetries times, backing off exponentially from base.
func WithRetry(maxRetries uint64, base time.Duration) Option {
	return func(s *Store) {
		s.retries = maxRetries
		s.retryBase = base
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		historyLimit: DefaultHistoryLimit,
		retryBase:    100 * time.Millisecond,
		log:          logging.Sub("store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	defaultOnce  gosync.Once
	defaultStore *Store
)

// Default returns the process-wide store, creating it on first use.
func Default() *Store {
	defaultOnce.Do(func() {
		defaultStore = New()
	})
	return defaultStore
}

// apply runs fn under the lock. fn reports whether it changed anything;
// only then is the version bumped and listeners notified. Undoable changes
// push the prior state and clear the redo stack.
func (s *Store) apply(undoable bool, fn func() bool) bool {
	s.mu.Lock()
	var before state
	if undoable {
		before = s.capture()
	}
	changed := fn()
	if changed {
		if undoable {
			s.undo = pushBounded(s.undo, before, s.historyLimit)
			s.redo = nil
		}
		s.changedLocked()
	}
	s.mu.Unlock()

	if changed {
		s.listeners.publish()
	}
	return changed
}

func (s *Store) changedLocked() {
	s.version++
	operationsStaged.Set(float64(len(s.ops)))
}

// Snapshot returns the current state. Repeated calls without an intervening
// change return the identical pointer.
func (s *Store) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap != nil && s.snap.Version == s.version {
		return s.snap
	}
	s.snap = &Snapshot{
		Operations: slices.Clone(s.ops),
		Clipboard:  s.clipboard.clone(),
		CanUndo:    len(s.undo) > 0,
		CanRedo:    len(s.redo) > 0,
		Version:    s.version,
	}
	return s.snap
}

// Operations returns a copy of the ledger as of this call, in staging
// order. Later staging is not reflected in the returned slice.
func (s *Store) Operations() []Operation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.ops)
}

// Len returns the number of staged operations.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ops)
}

// Version increases with every state change.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}
