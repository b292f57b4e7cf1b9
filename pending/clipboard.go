package pending

import (
	"slices"

	"github.com/samber/lo"

	"github.com/ghyeongl/pendingfs/storage"
)

// ClipboardMode selects what Paste stages.
type ClipboardMode int

const (
	ClipboardCut ClipboardMode = iota
	ClipboardCopy
)

func (m ClipboardMode) String() string {
	if m == ClipboardCut {
		return "cut"
	}
	return "copy"
}

// Clipboard holds the entries of the last cut or copy. URIs[i] is the
// identity of Entries[i].
type Clipboard struct {
	Entries []storage.Entry
	URIs    []URI
	Mode    ClipboardMode
}

func (c *Clipboard) clone() *Clipboard {
	if c == nil {
		return nil
	}
	return &Clipboard{
		Entries: slices.Clone(c.Entries),
		URIs:    slices.Clone(c.URIs),
		Mode:    c.Mode,
	}
}

// PasteResult describes what a Paste staged.
type PasteResult struct {
	Staged []Operation
	// SelfTargets lists sources whose destination equals the source; they
	// are skipped rather than staged as self-moves.
	SelfTargets []URI
	// Duplicates lists sources whose identical transfer was already staged.
	Duplicates []URI
	// Refused is set when a destination could not be resolved; nothing is
	// staged and the clipboard is kept.
	Refused bool
}

// Cut replaces the clipboard with entries for moving. It refuses a
// selection whose entries and uris do not pair up one to one.
func (s *Store) Cut(entries []storage.Entry, uris []URI) bool {
	return s.setClipboard(entries, uris, ClipboardCut)
}

// Copy replaces the clipboard with entries for copying.
func (s *Store) Copy(entries []storage.Entry, uris []URI) bool {
	return s.setClipboard(entries, uris, ClipboardCopy)
}

func (s *Store) setClipboard(entries []storage.Entry, uris []URI, mode ClipboardMode) bool {
	if len(entries) == 0 || len(entries) != len(uris) || slices.Contains(uris, "") {
		return false
	}
	next := &Clipboard{Entries: slices.Clone(entries), URIs: slices.Clone(uris), Mode: mode}
	return s.apply(true, func() bool {
		if cur := s.clipboard; cur != nil && cur.Mode == mode && slices.Equal(cur.URIs, uris) {
			return false
		}
		s.clipboard = next
		s.log.Debug("clipboard set", "mode", mode, "count", len(uris))
		return true
	})
}

// HasClipboardContent reports whether Paste has anything to stage.
func (s *Store) HasClipboardContent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clipboard != nil
}

// Clipboard returns a copy of the clipboard, nil when empty.
func (s *Store) Clipboard() *Clipboard {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clipboard.clone()
}

// ClearClipboard empties the clipboard without staging anything.
func (s *Store) ClearClipboard() bool {
	return s.apply(true, func() bool {
		if s.clipboard == nil {
			return false
		}
		s.clipboard = nil
		return true
	})
}

// Paste stages the clipboard into destPath. A copy clipboard stages one Copy
// per entry and stays available for further pastes; a cut clipboard stages
// one Move per entry and is cleared. Each destination is the source
// basename rebased onto destPath.
func (s *Store) Paste(destPath, scheme, container string) PasteResult {
	var res PasteResult
	s.apply(true, func() bool {
		cb := s.clipboard
		if cb == nil {
			return false
		}

		dests := make([]URI, len(cb.URIs))
		for i, src := range cb.URIs {
			dest, ok := RebaseURI(src, destPath, scheme, container)
			if !ok {
				res.Refused = true
				return false
			}
			dests[i] = dest
		}

		for i, src := range cb.URIs {
			dest := dests[i]
			if dest == src {
				res.SelfTargets = append(res.SelfTargets, src)
				continue
			}
			if s.hasTransferLocked(cb.Mode, src, dest) {
				res.Duplicates = append(res.Duplicates, src)
				continue
			}
			var op Operation
			if cb.Mode == ClipboardCut {
				op = Move{ID: newID(), Source: src, Dest: dest, Entry: cb.Entries[i]}
			} else {
				op = Copy{ID: newID(), Source: src, Dest: dest, Entry: cb.Entries[i]}
			}
			s.ops = append(s.ops, op)
			res.Staged = append(res.Staged, op)
		}

		changed := len(res.Staged) > 0
		if cb.Mode == ClipboardCut {
			s.clipboard = nil
			changed = true
		}
		s.log.Debug("paste", "mode", cb.Mode, "dest", destPath,
			"staged", len(res.Staged), "self", len(res.SelfTargets), "dup", len(res.Duplicates))
		return changed
	})
	return res
}

func (s *Store) hasTransferLocked(mode ClipboardMode, src, dest URI) bool {
	return lo.ContainsBy(s.ops, func(op Operation) bool {
		switch o := op.(type) {
		case Move:
			return mode == ClipboardCut && o.Source == src && o.Dest == dest
		case Copy:
			return mode == ClipboardCopy && o.Source == src && o.Dest == dest
		}
		return false
	})
}
