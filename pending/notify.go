package pending

import (
	gosync "sync"
)

// listeners holds change callbacks in registration order.
type listeners struct {
	mu   gosync.RWMutex
	next uint64
	fns  []listener
}

type listener struct {
	id uint64
	fn func()
}

func (l *listeners) add(fn func()) func() {
	l.mu.Lock()
	l.next++
	id := l.next
	l.fns = append(l.fns, listener{id: id, fn: fn})
	l.mu.Unlock()

	var once gosync.Once
	return func() {
		once.Do(func() { l.remove(id) })
	}
}

func (l *listeners) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, ln := range l.fns {
		if ln.id == id {
			l.fns = append(l.fns[:i:i], l.fns[i+1:]...)
			return
		}
	}
}

// publish calls every listener once. The set is copied first so a listener
// may unsubscribe itself.
func (l *listeners) publish() {
	l.mu.RLock()
	fns := make([]func(), len(l.fns))
	for i, ln := range l.fns {
		fns[i] = ln.fn
	}
	l.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}

func (l *listeners) len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.fns)
}

// Subscribe registers fn to run after every state change. fn runs on the
// goroutine that made the change, after the store lock is released, so it
// may read the store. The returned func unsubscribes; calling it twice is
// harmless.
func (s *Store) Subscribe(fn func()) (unsubscribe func()) {
	return s.listeners.add(fn)
}
