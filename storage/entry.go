// Package storage defines the Provider interface every pendingfs backend
// implements, together with the entry, capability and status types the
// pending store consumes.
package storage

import (
	"slices"
	"strings"
	"time"

	"github.com/maruel/natural"
)

// EntryType classifies a listing row.
type EntryType int

const (
	File EntryType = iota
	Directory
	Bucket
	Symlink
)

func (t EntryType) String() string {
	switch t {
	case File:
		return "file"
	case Directory:
		return "dir"
	case Bucket:
		return "bucket"
	case Symlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// IsContainer reports whether entries of this type hold children.
func (t EntryType) IsContainer() bool {
	return t == Directory || t == Bucket
}

// ParseEntryType is the inverse of EntryType.String. Unknown names are File.
func ParseEntryType(s string) EntryType {
	switch strings.ToLower(s) {
	case "dir", "directory":
		return Directory
	case "bucket":
		return Bucket
	case "symlink", "link":
		return Symlink
	default:
		return File
	}
}

// Entry is one row of a provider listing.
// Path is the provider-relative identity within a single provider.
type Entry struct {
	ID       string            `json:"id" yaml:"id"`
	Name     string            `json:"name" yaml:"name"`
	Type     EntryType         `json:"type" yaml:"type"`
	Path     string            `json:"path" yaml:"path"`
	Size     *int64            `json:"size,omitempty" yaml:"size,omitempty"` // nil for directories
	Modified *time.Time        `json:"modified,omitempty" yaml:"modified,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// SortEntries orders a listing in place: containers first, then names in
// natural order ("file2" before "file10").
func SortEntries(entries []Entry) {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		ac, bc := a.Type.IsContainer(), b.Type.IsContainer()
		switch {
		case ac && !bc:
			return -1
		case !ac && bc:
			return 1
		}
		if a.Name == b.Name {
			return 0
		}
		if natural.Less(a.Name, b.Name) {
			return -1
		}
		return 1
	})
}
