package pending

import (
	"strings"

	"github.com/samber/lo"

	"github.com/ghyeongl/pendingfs/storage"
)

func isDeleteOf(uri URI) func(Operation) bool {
	return func(op Operation) bool {
		d, ok := op.(Delete)
		return ok && d.URI == uri
	}
}

func withoutDeleteOf(ops []Operation, uri URI) []Operation {
	return lo.Reject(ops, func(op Operation, _ int) bool {
		return isDeleteOf(uri)(op)
	})
}

// MarkForDeletion stages a Delete of uri. Marking an already-marked uri is a
// no-op. It reports whether the ledger changed.
func (s *Store) MarkForDeletion(uri URI, entry storage.Entry) bool {
	if uri == "" {
		return false
	}
	return s.apply(true, func() bool {
		if lo.ContainsBy(s.ops, isDeleteOf(uri)) {
			return false
		}
		s.ops = append(s.ops, Delete{ID: newID(), URI: uri, Entry: entry})
		s.log.Debug("mark delete", "uri", uri)
		return true
	})
}

// UnmarkForDeletion drops the staged Delete of uri, if any.
func (s *Store) UnmarkForDeletion(uri URI) bool {
	return s.apply(true, func() bool {
		if !lo.ContainsBy(s.ops, isDeleteOf(uri)) {
			return false
		}
		s.ops = withoutDeleteOf(s.ops, uri)
		s.log.Debug("unmark delete", "uri", uri)
		return true
	})
}

// ToggleDeletion marks uri when unmarked and unmarks it otherwise. It
// returns whether uri is marked afterwards.
func (s *Store) ToggleDeletion(uri URI, entry storage.Entry) bool {
	if uri == "" {
		return false
	}
	marked := false
	s.apply(true, func() bool {
		if lo.ContainsBy(s.ops, isDeleteOf(uri)) {
			s.ops = withoutDeleteOf(s.ops, uri)
			return true
		}
		s.ops = append(s.ops, Delete{ID: newID(), URI: uri, Entry: entry})
		marked = true
		return true
	})
	return marked
}

// IsMarkedForDeletion reports whether uri has a staged Delete.
func (s *Store) IsMarkedForDeletion(uri URI) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.ContainsBy(s.ops, isDeleteOf(uri))
}

// CountDeletions returns the number of staged Deletes.
func (s *Store) CountDeletions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.CountBy(s.ops, func(op Operation) bool {
		return op.Kind() == KindDelete
	})
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

// Rename stages renaming uri to newName. A uri carries at most one Rename:
// a later call replaces the earlier one in place, and renaming back to the
// entry's current name drops it. Invalid names are ignored.
func (s *Store) Rename(uri URI, entry storage.Entry, newName string) bool {
	newName = strings.TrimSpace(newName)
	if uri == "" || !validName(newName) {
		return false
	}
	current := entry.Name
	if current == "" {
		current = uri.Base()
	}
	return s.apply(true, func() bool {
		existing, idx, found := lo.FindIndexOf(s.ops, func(op Operation) bool {
			r, ok := op.(Rename)
			return ok && r.URI == uri
		})
		if newName == current {
			if !found {
				return false
			}
			s.ops = append(s.ops[:idx:idx], s.ops[idx+1:]...)
			return true
		}
		if found {
			prev := existing.(Rename)
			if prev.NewName == newName {
				return false
			}
			prev.NewName = newName
			prev.Entry = entry
			s.ops[idx] = prev
			return true
		}
		s.ops = append(s.ops, Rename{ID: newID(), URI: uri, Entry: entry, NewName: newName})
		s.log.Debug("rename", "uri", uri, "to", newName)
		return true
	})
}

// Create stages a new empty file or directory named name inside the
// directory parent. It returns the URI of the staged entry; ok is false when
// nothing was staged (invalid name, unresolvable parent, or the same create
// already staged).
func (s *Store) Create(parent URI, name string, entryType storage.EntryType) (URI, bool) {
	name = strings.TrimSpace(name)
	if parent == "" || !validName(name) {
		return "", false
	}
	if _, _, _, err := ParseURI(parent); err != nil {
		return "", false
	}

	target := parent.Child(name, entryType.IsContainer())
	if target == "" {
		return "", false
	}

	ok := s.apply(true, func() bool {
		dup := lo.ContainsBy(s.ops, func(op Operation) bool {
			c, ok := op.(Create)
			return ok && c.URI == target
		})
		if dup {
			return false
		}
		s.ops = append(s.ops, Create{ID: newID(), URI: target, Name: name, EntryType: entryType})
		s.log.Debug("create", "uri", target, "type", entryType)
		return true
	})
	return target, ok
}

// RemoveOperation drops the staged operation with id without executing it.
func (s *Store) RemoveOperation(id string) bool {
	return s.apply(true, func() bool {
		_, idx, found := lo.FindIndexOf(s.ops, func(op Operation) bool {
			return op.OpID() == id
		})
		if !found {
			return false
		}
		s.ops = append(s.ops[:idx:idx], s.ops[idx+1:]...)
		return true
	})
}

// Find returns the staged operation with id.
func (s *Store) Find(id string) (Operation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Find(s.ops, func(op Operation) bool {
		return op.OpID() == id
	})
}

// Discard drops every staged operation, the clipboard and the history.
// Nothing is executed.
func (s *Store) Discard() {
	s.apply(false, func() bool {
		changed := len(s.ops) > 0 || s.clipboard != nil
		s.ops = nil
		s.clipboard = nil
		if s.clearHistoryLocked() {
			changed = true
		}
		if changed {
			s.log.Info("discarded pending operations")
		}
		return changed
	})
}
