package pending

import (
	"errors"
	"fmt"
	"strings"
	gosync "sync"

	"golang.org/x/text/unicode/norm"

	"github.com/ghyeongl/pendingfs/storage"
)

// URI is the canonical identity of an entry across the store:
// scheme://container/path, with a trailing slash for directories and buckets.
// The empty URI means "unresolvable"; it is never staged.
type URI string

var ErrInvalidURI = errors.New("invalid storage uri")

var (
	schemesMu        gosync.RWMutex
	containerSchemes = map[string]struct{}{"s3": {}, "gcs": {}, "azblob": {}}
)

// RegisterContainerScheme marks scheme as container scoped: URIs for it
// cannot be built without a container.
func RegisterContainerScheme(scheme string) {
	schemesMu.Lock()
	containerSchemes[strings.ToLower(scheme)] = struct{}{}
	schemesMu.Unlock()
}

// IsContainerScheme reports whether scheme needs a container.
func IsContainerScheme(scheme string) bool {
	schemesMu.RLock()
	defer schemesMu.RUnlock()
	_, ok := containerSchemes[strings.ToLower(scheme)]
	return ok
}

// EntryToURI builds the URI of entry under scheme and container. ok is false
// when the identity would be ambiguous and the caller must refuse the action.
// A Bucket entry listed without a container names its own container.
func EntryToURI(entry storage.Entry, scheme, container string) (URI, bool) {
	if entry.Type == storage.Bucket && container == "" {
		return PathToURI("", true, scheme, entry.Name)
	}
	return PathToURI(entry.Path, entry.Type.IsContainer(), scheme, container)
}

// PathToURI is EntryToURI for a bare provider path.
func PathToURI(p string, isDir bool, scheme, container string) (URI, bool) {
	if scheme == "" {
		return "", false
	}
	if container == "" && IsContainerScheme(scheme) {
		return "", false
	}
	np := normalizePath(p)
	u := scheme + "://" + container + "/" + np
	if isDir && np != "" {
		u += "/"
	}
	return URI(u), true
}

func normalizePath(p string) string {
	return storage.CleanPath(norm.NFC.String(p))
}

// ParseURI splits u into its parts. path is canonical: no leading or
// trailing slash, "" for the container root.
func ParseURI(u URI) (scheme, container, path string, err error) {
	s := string(u)
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok || scheme == "" {
		return "", "", "", fmt.Errorf("%w: %q", ErrInvalidURI, s)
	}
	container, path, ok = strings.Cut(rest, "/")
	if !ok {
		return "", "", "", fmt.Errorf("%w: %q has no path", ErrInvalidURI, s)
	}
	return scheme, container, storage.CleanPath(path), nil
}

func (u URI) String() string { return string(u) }

// IsDir reports whether u names a container.
func (u URI) IsDir() bool { return strings.HasSuffix(string(u), "/") }

func (u URI) parts() (scheme, container, path string) {
	scheme, container, path, _ = ParseURI(u)
	return scheme, container, path
}

// Scheme returns the URI scheme.
func (u URI) Scheme() string {
	s, _, _ := u.parts()
	return s
}

// Container returns the container segment, "" for unscoped schemes.
func (u URI) Container() string {
	_, c, _ := u.parts()
	return c
}

// Path returns the canonical provider path.
func (u URI) Path() string {
	_, _, p := u.parts()
	return p
}

// ProviderPath is Path with a trailing slash kept for directories, the form
// passed to providers.
func (u URI) ProviderPath() string {
	p := u.Path()
	if p != "" && u.IsDir() {
		return p + "/"
	}
	return p
}

// Base returns the last path element.
func (u URI) Base() string {
	return storage.BaseName(u.Path())
}

// Parent returns the URI of the directory holding u. The root is its own
// parent.
func (u URI) Parent() URI {
	scheme, container, p := u.parts()
	if scheme == "" {
		return ""
	}
	parent := storage.ParentPath(p)
	out := scheme + "://" + container + "/" + parent
	if parent != "" {
		out += "/"
	}
	return URI(out)
}

// Child returns the URI of name inside directory u.
func (u URI) Child(name string, isDir bool) URI {
	scheme, container, p := u.parts()
	if scheme == "" {
		return ""
	}
	child, _ := PathToURI(storage.JoinPath(p, name), isDir, scheme, container)
	return child
}

// RebaseURI moves src's basename onto destDir under scheme and container.
func RebaseURI(src URI, destDir, scheme, container string) (URI, bool) {
	base := src.Base()
	if base == "" {
		return "", false
	}
	return PathToURI(storage.JoinPath(normalizePath(destDir), base), src.IsDir(), scheme, container)
}
