// Package local provides a storage.Provider over an afero filesystem: the
// OS filesystem below a root directory, or an in-memory tree.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/ghyeongl/pendingfs/logging"
	"github.com/ghyeongl/pendingfs/storage"
)

// Scheme is the URI scheme of local entries.
const Scheme = "file"

// nowFunc is the time source, replaceable in tests.
var nowFunc = time.Now

const defaultCaps = storage.CapList | storage.CapRead | storage.CapWrite | storage.CapDelete |
	storage.CapMkdir | storage.CapCopy | storage.CapMove | storage.CapDownload |
	storage.CapUpload | storage.CapMetadata

// Options tunes a local provider.
type Options struct {
	// TrashDir, when set, turns Delete into a move under TrashDir/YYYY-MM-DD/.
	// It is a provider path and is hidden from listings.
	TrashDir string
	// Ignore holds name globs hidden from listings; a trailing "/" limits a
	// pattern to directories.
	Ignore []string
	// ShowHidden lists dot-files.
	ShowHidden bool
	// Capabilities overrides the declared set (read-only mounts, tests).
	Capabilities storage.Capability
}

// Provider implements storage.Provider on an afero.Fs.
type Provider struct {
	storage.CapabilitySet
	fs     afero.Fs
	opts   Options
	ignore *Ignore
}

var _ storage.Provider = (*Provider)(nil)

// New creates a provider over fsys.
func New(fsys afero.Fs, opts Options) *Provider {
	caps := opts.Capabilities
	if caps == 0 {
		caps = defaultCaps
	}
	return &Provider{
		CapabilitySet: storage.CapabilitySet{Set: caps},
		fs:            fsys,
		opts:          opts,
		ignore:        NewIgnore(opts.Ignore),
	}
}

// NewOS creates a provider rooted at an existing OS directory.
func NewOS(root string, opts Options) (*Provider, error) {
	if root == "" {
		return nil, fmt.Errorf("root path is required")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root path %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path %s is not a directory", root)
	}
	p := New(afero.NewBasePathFs(afero.NewOsFs(), root), opts)
	p.ignore.Merge(LoadIgnore(p.fs, "/"+IgnoreFile))
	logging.Sub("local").Info("local provider ready", "root", root, "trash", opts.TrashDir)
	return p, nil
}

// NewMemory creates a provider over an empty in-memory filesystem.
func NewMemory(opts Options) *Provider {
	return New(afero.NewMemMapFs(), opts)
}

// Fs exposes the underlying filesystem (seeding test trees).
func (p *Provider) Fs() afero.Fs { return p.fs }

func (p *Provider) Scheme() string    { return Scheme }
func (p *Provider) Container() string { return "" }
func (p *Provider) Close() error      { return nil }

func full(p string) string {
	return "/" + storage.CleanPath(p)
}

// List returns the children of dir, containers first.
func (p *Provider) List(_ context.Context, dir string) ([]storage.Entry, error) {
	l := logging.Sub("local")
	infos, err := afero.ReadDir(p.fs, full(dir))
	if err != nil {
		return nil, storage.Classify("list", dir, err)
	}

	base := storage.CleanPath(dir)
	trash := storage.CleanPath(p.opts.TrashDir)
	entries := make([]storage.Entry, 0, len(infos))
	for _, info := range infos {
		name := info.Name()
		rel := storage.JoinPath(base, name)
		if !p.opts.ShowHidden && strings.HasPrefix(name, ".") {
			continue
		}
		if p.opts.TrashDir != "" && rel == trash {
			continue
		}
		if p.ignore.Match(name, info.IsDir()) {
			continue
		}
		entries = append(entries, toEntry(rel, info))
	}
	storage.SortEntries(entries)
	l.Debug("list", "dir", base, "count", len(entries))
	return entries, nil
}

func toEntry(rel string, info os.FileInfo) storage.Entry {
	mod := info.ModTime()
	e := storage.Entry{
		ID:       rel,
		Name:     info.Name(),
		Path:     rel,
		Modified: &mod,
		Metadata: map[string]string{
			"kind": ClassifyKind(info.Name(), info.IsDir()),
			"mode": info.Mode().String(),
		},
	}
	switch {
	case info.IsDir():
		e.Type = storage.Directory
	case info.Mode()&os.ModeSymlink != 0:
		e.Type = storage.Symlink
	default:
		e.Type = storage.File
		size := info.Size()
		e.Size = &size
	}
	return e
}

// Read opens a file for reading.
func (p *Provider) Read(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := p.fs.Open(full(name))
	if err != nil {
		return nil, storage.Classify("read", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, storage.Classify("read", name, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, storage.NewError("read", name, storage.StatusError, fmt.Errorf("is a directory"))
	}
	return f, nil
}

// Write stores body at name atomically, creating parent directories.
func (p *Provider) Write(_ context.Context, name string, body io.Reader) error {
	if storage.CleanPath(name) == "" {
		return storage.NewError("write", name, storage.StatusError, storage.ErrInvalidPath)
	}
	if err := writeAtomic(p.fs, full(name), body); err != nil {
		return storage.Classify("write", name, err)
	}
	logging.Sub("local").Debug("write", "path", name)
	return nil
}

// Delete removes name and everything below it, or moves it to the trash.
func (p *Provider) Delete(_ context.Context, name string) error {
	target := full(name)
	if target == "/" {
		return storage.NewError("delete", name, storage.StatusPermissionDenied, storage.ErrInvalidPath)
	}
	if _, err := p.fs.Stat(target); err != nil {
		return storage.Classify("delete", name, err)
	}
	if p.opts.TrashDir != "" {
		trashed, err := softDelete(p.fs, target, full(p.opts.TrashDir))
		if err != nil {
			return storage.Classify("delete", name, err)
		}
		logging.Sub("local").Info("moved to trash", "path", name, "trash", trashed)
		return nil
	}
	if err := p.fs.RemoveAll(target); err != nil {
		return storage.Classify("delete", name, err)
	}
	logging.Sub("local").Debug("delete", "path", name)
	return nil
}

// Move renames src to dst. dst must not exist.
func (p *Provider) Move(_ context.Context, src, dst string) error {
	from, to := full(src), full(dst)
	if _, err := p.fs.Stat(from); err != nil {
		return storage.Classify("move", src, err)
	}
	if err := p.refuseExisting("move", dst); err != nil {
		return err
	}
	if to == from || strings.HasPrefix(to, from+"/") {
		return storage.NewError("move", dst, storage.StatusError, fmt.Errorf("destination inside source %s", src))
	}
	if err := p.fs.MkdirAll(path.Dir(to), 0755); err != nil {
		return storage.Classify("move", dst, err)
	}
	if err := p.fs.Rename(from, to); err != nil {
		return storage.Classify("move", src, err)
	}
	logging.Sub("local").Debug("move", "src", src, "dst", dst)
	return nil
}

// Copy duplicates src (file or directory tree) at dst. dst must not exist.
func (p *Provider) Copy(ctx context.Context, src, dst string) error {
	from, to := full(src), full(dst)
	info, err := p.fs.Stat(from)
	if err != nil {
		return storage.Classify("copy", src, err)
	}
	if err := p.refuseExisting("copy", dst); err != nil {
		return err
	}
	if info.IsDir() {
		if to == from || strings.HasPrefix(to, from+"/") {
			return storage.NewError("copy", dst, storage.StatusError, fmt.Errorf("destination inside source %s", src))
		}
		err = copyTree(ctx, p.fs, from, to)
	} else {
		err = copyFile(ctx, p.fs, from, to)
	}
	if err != nil {
		return storage.Classify("copy", src, err)
	}
	logging.Sub("local").Debug("copy", "src", src, "dst", dst, "dir", info.IsDir())
	return nil
}

// Mkdir creates name and any missing parents.
func (p *Provider) Mkdir(_ context.Context, name string) error {
	target := full(name)
	if info, err := p.fs.Stat(target); err == nil {
		if info.IsDir() {
			return storage.NewError("mkdir", name, storage.StatusAlreadyExists, os.ErrExist)
		}
		return storage.NewError("mkdir", name, storage.StatusAlreadyExists, storage.ErrNotDirectory)
	}
	if err := p.fs.MkdirAll(target, 0755); err != nil {
		return storage.Classify("mkdir", name, err)
	}
	return nil
}

// Exists reports whether name is present.
func (p *Provider) Exists(_ context.Context, name string) (bool, error) {
	ok, err := afero.Exists(p.fs, full(name))
	if err != nil {
		return false, storage.Classify("exists", name, err)
	}
	return ok, nil
}

// GetMetadata stats name.
func (p *Provider) GetMetadata(_ context.Context, name string) (*storage.Entry, error) {
	info, err := p.fs.Stat(full(name))
	if err != nil {
		return nil, storage.Classify("metadata", name, err)
	}
	rel := storage.CleanPath(name)
	e := toEntry(rel, info)
	if rel == "" {
		e.Name = "/"
	}
	return &e, nil
}

func (p *Provider) refuseExisting(op, name string) error {
	ok, err := afero.Exists(p.fs, full(name))
	if err != nil {
		return storage.Classify(op, name, err)
	}
	if ok {
		return storage.NewError(op, name, storage.StatusAlreadyExists, os.ErrExist)
	}
	return nil
}
