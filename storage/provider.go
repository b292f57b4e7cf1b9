package storage

import (
	"context"
	"io"
	"path"
	"strings"
)

// Provider is a storage backend. Paths are slash separated and relative to
// the provider's root (or container); directory paths may carry a trailing
// slash. Failures are reported as *Error so callers can read the Status and
// retryable flag.
type Provider interface {
	// Scheme is the URI scheme entries from this provider are keyed under.
	Scheme() string
	// Container is the bucket/share the provider is bound to, "" when the
	// scheme has no containers.
	Container() string

	Capabilities() Capability
	HasCapability(want Capability) bool

	List(ctx context.Context, dir string) ([]Entry, error)
	Read(ctx context.Context, p string) (io.ReadCloser, error)
	Write(ctx context.Context, p string, body io.Reader) error
	// Delete removes a file, or a directory with everything below it.
	Delete(ctx context.Context, p string) error
	Move(ctx context.Context, src, dst string) error
	Copy(ctx context.Context, src, dst string) error
	Mkdir(ctx context.Context, p string) error
	Exists(ctx context.Context, p string) (bool, error)
	GetMetadata(ctx context.Context, p string) (*Entry, error)

	// Close releases any resources held by the provider.
	Close() error
}

// CleanPath converts p into the canonical provider form: slash separated,
// no leading slash, no "." or ".." segments. The root is "".
func CleanPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}

// JoinPath joins a directory and a name, keeping the caller's leading-slash
// style.
func JoinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	if strings.HasSuffix(dir, "/") {
		return dir + name
	}
	return dir + "/" + name
}

// ParentPath returns the canonical parent of p ("" for top-level paths).
func ParentPath(p string) string {
	p = CleanPath(p)
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return ""
	}
	return p[:i]
}

// BaseName returns the last element of p, ignoring a trailing slash.
func BaseName(p string) string {
	p = CleanPath(p)
	if p == "" {
		return ""
	}
	return path.Base(p)
}
