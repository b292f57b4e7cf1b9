package pending

import "slices"

// state is one undo/redo frame.
type state struct {
	ops       []Operation
	clipboard *Clipboard
}

func (s *Store) capture() state {
	return state{ops: slices.Clone(s.ops), clipboard: s.clipboard}
}

func (s *Store) restore(st state) {
	s.ops = slices.Clone(st.ops)
	s.clipboard = st.clipboard
}

// pushBounded appends st, dropping the oldest frames beyond limit.
func pushBounded(stack []state, st state, limit int) []state {
	stack = append(stack, st)
	if limit > 0 && len(stack) > limit {
		stack = slices.Delete(stack, 0, len(stack)-limit)
	}
	return stack
}

// Undo restores the state before the last undoable change. It returns false
// when there is nothing to undo.
func (s *Store) Undo() bool {
	return s.apply(false, func() bool {
		if len(s.undo) == 0 {
			return false
		}
		prev := s.undo[len(s.undo)-1]
		s.undo = s.undo[:len(s.undo)-1]
		s.redo = pushBounded(s.redo, s.capture(), s.historyLimit)
		s.restore(prev)
		s.log.Debug("undo", "ops", len(s.ops), "undoDepth", len(s.undo))
		return true
	})
}

// Redo reapplies the last undone change. It returns false when there is
// nothing to redo.
func (s *Store) Redo() bool {
	return s.apply(false, func() bool {
		if len(s.redo) == 0 {
			return false
		}
		next := s.redo[len(s.redo)-1]
		s.redo = s.redo[:len(s.redo)-1]
		s.undo = pushBounded(s.undo, s.capture(), s.historyLimit)
		s.restore(next)
		s.log.Debug("redo", "ops", len(s.ops), "redoDepth", len(s.redo))
		return true
	})
}

// CanUndo reports whether Undo would change anything.
func (s *Store) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.undo) > 0
}

// CanRedo reports whether Redo would change anything.
func (s *Store) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.redo) > 0
}

func (s *Store) clearHistoryLocked() bool {
	had := len(s.undo) > 0 || len(s.redo) > 0
	s.undo = nil
	s.redo = nil
	return had
}
