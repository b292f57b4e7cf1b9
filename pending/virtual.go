package pending

import (
	"maps"

	"github.com/ghyeongl/pendingfs/storage"
)

// EntryState is the staged status of one URI, derived on every query.
// Several flags can be set at once, e.g. MovedHere and Renamed.
type EntryState struct {
	Deleted    bool
	MovedAway  bool
	MovedHere  bool
	CopiedHere bool
	Renamed    bool
	Created    bool
	// RenamedTo is the staged new name when Renamed is set.
	RenamedTo string
}

// Any reports whether any flag is set.
func (st EntryState) Any() bool {
	return st.Deleted || st.MovedAway || st.MovedHere || st.CopiedHere || st.Renamed || st.Created
}

// EntryState scans the ledger for operations touching uri.
func (s *Store) EntryState(uri URI) EntryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entryStateLocked(uri)
}

func (s *Store) entryStateLocked(uri URI) EntryState {
	var st EntryState
	for _, op := range s.ops {
		switch o := op.(type) {
		case Delete:
			st.Deleted = st.Deleted || o.URI == uri
		case Move:
			st.MovedAway = st.MovedAway || o.Source == uri
			st.MovedHere = st.MovedHere || o.Dest == uri
		case Copy:
			st.CopiedHere = st.CopiedHere || o.Dest == uri
		case Rename:
			if o.URI == uri {
				st.Renamed = true
				st.RenamedTo = o.NewName
			}
		case Create:
			st.Created = st.Created || o.URI == uri
		default:
			panic("pending: unknown operation")
		}
	}
	return st
}

// ShouldFilterEntry reports whether uri should be hidden from its real
// listing: it is staged for deletion or is the source of a staged move.
func (s *Store) ShouldFilterEntry(uri URI) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shouldFilterLocked(uri)
}

func (s *Store) shouldFilterLocked(uri URI) bool {
	for _, op := range s.ops {
		switch o := op.(type) {
		case Delete:
			if o.URI == uri {
				return true
			}
		case Move:
			if o.Source == uri {
				return true
			}
		}
	}
	return false
}

// VirtualEntries synthesizes listing rows for staged creates, moves and
// copies landing directly inside path. Callers append them after the real
// listing. Resolving a returned entry with EntryToURI under the same scheme
// and container yields the staged destination.
func (s *Store) VirtualEntries(path, scheme, container string) []storage.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.virtualEntriesLocked(path, scheme, container)
}

func (s *Store) virtualEntriesLocked(path, scheme, container string) []storage.Entry {
	dir, ok := PathToURI(path, true, scheme, container)
	if !ok {
		return nil
	}
	base := normalizePath(path)

	var out []storage.Entry
	seen := make(map[URI]struct{})
	for _, op := range s.ops {
		target, ok := placedAt(op)
		if !ok || target.Parent() != dir {
			continue
		}
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, virtualEntry(op, target, base))
	}
	return out
}

func virtualEntry(op Operation, target URI, dir string) storage.Entry {
	name := target.Base()
	e := storage.Entry{
		ID:   string(target),
		Name: name,
		Path: storage.JoinPath(dir, name),
	}
	switch o := op.(type) {
	case Create:
		e.Type = o.EntryType
	case Move:
		e.Type, e.Size, e.Modified = o.Entry.Type, o.Entry.Size, o.Entry.Modified
		e.Metadata = maps.Clone(o.Entry.Metadata)
	case Copy:
		e.Type, e.Size, e.Modified = o.Entry.Type, o.Entry.Size, o.Entry.Modified
		e.Metadata = maps.Clone(o.Entry.Metadata)
	}
	if e.Metadata == nil {
		e.Metadata = map[string]string{}
	}
	e.Metadata["pending"] = op.Kind().String()
	return e
}

// VisibleEntries merges the real listing of path with the staged state: rows
// hidden by ShouldFilterEntry are dropped, then virtual rows not already
// present are appended.
func (s *Store) VisibleEntries(listing []storage.Entry, path, scheme, container string) []storage.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]storage.Entry, 0, len(listing))
	present := make(map[URI]struct{}, len(listing))
	for _, e := range listing {
		uri, ok := EntryToURI(e, scheme, container)
		if ok && s.shouldFilterLocked(uri) {
			continue
		}
		if ok {
			present[uri] = struct{}{}
		}
		out = append(out, e)
	}
	for _, v := range s.virtualEntriesLocked(path, scheme, container) {
		if _, dup := present[URI(v.ID)]; dup {
			continue
		}
		out = append(out, v)
	}
	return out
}
