package pending

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ghyeongl/pendingfs/storage"
)

// Kind names an operation variant.
type Kind int

const (
	KindDelete Kind = iota
	KindMove
	KindCopy
	KindRename
	KindCreate
)

func (k Kind) String() string {
	switch k {
	case KindDelete:
		return "delete"
	case KindMove:
		return "move"
	case KindCopy:
		return "copy"
	case KindRename:
		return "rename"
	case KindCreate:
		return "create"
	default:
		return "unknown"
	}
}

// Operation is a staged mutation. The set of variants is closed: Delete,
// Move, Copy, Rename and Create. Values are immutable once staged.
type Operation interface {
	OpID() string
	Kind() Kind
	String() string
	isOperation()
}

// Delete removes URI (recursively for directories).
type Delete struct {
	ID    string
	URI   URI
	Entry storage.Entry
}

// Move relocates Source to Dest.
type Move struct {
	ID     string
	Source URI
	Dest   URI
	Entry  storage.Entry
}

// Copy duplicates Source at Dest.
type Copy struct {
	ID     string
	Source URI
	Dest   URI
	Entry  storage.Entry
}

// Rename gives URI a new basename in the same directory.
type Rename struct {
	ID      string
	URI     URI
	Entry   storage.Entry
	NewName string
}

// Create makes an empty file or directory at URI.
type Create struct {
	ID        string
	URI       URI
	Name      string
	EntryType storage.EntryType
}

func (o Delete) OpID() string { return o.ID }
func (o Move) OpID() string   { return o.ID }
func (o Copy) OpID() string   { return o.ID }
func (o Rename) OpID() string { return o.ID }
func (o Create) OpID() string { return o.ID }

func (Delete) Kind() Kind { return KindDelete }
func (Move) Kind() Kind   { return KindMove }
func (Copy) Kind() Kind   { return KindCopy }
func (Rename) Kind() Kind { return KindRename }
func (Create) Kind() Kind { return KindCreate }

func (Delete) isOperation() {}
func (Move) isOperation()   {}
func (Copy) isOperation()   {}
func (Rename) isOperation() {}
func (Create) isOperation() {}

func (o Delete) String() string { return fmt.Sprintf("delete %s", o.URI) }
func (o Move) String() string   { return fmt.Sprintf("move %s -> %s", o.Source, o.Dest) }
func (o Copy) String() string   { return fmt.Sprintf("copy %s -> %s", o.Source, o.Dest) }
func (o Rename) String() string { return fmt.Sprintf("rename %s -> %s", o.URI, o.NewName) }
func (o Create) String() string { return fmt.Sprintf("create %s %s", o.EntryType, o.URI) }

// newID generates operation IDs; tests swap it for a deterministic sequence.
var newID = func() string { return uuid.NewString() }

// placedAt returns the URI an operation makes appear, if any.
func placedAt(op Operation) (URI, bool) {
	switch o := op.(type) {
	case Create:
		return o.URI, true
	case Move:
		return o.Dest, true
	case Copy:
		return o.Dest, true
	case Delete, Rename:
		return "", false
	default:
		panic(fmt.Sprintf("pending: unknown operation %T", op))
	}
}
