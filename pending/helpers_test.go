package pending

import (
	"context"
	"fmt"
	"io"
	"strings"
	gosync "sync"
	"sync/atomic"
	"testing"

	"github.com/ghyeongl/pendingfs/storage"
)

const allCaps = storage.CapList | storage.CapRead | storage.CapWrite | storage.CapDelete |
	storage.CapMkdir | storage.CapCopy | storage.CapMove

// setupStore returns a fresh store whose operation IDs are op-1, op-2, ...
func setupStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	var n atomic.Int64
	orig := newID
	newID = func() string { return fmt.Sprintf("op-%d", n.Add(1)) }
	t.Cleanup(func() { newID = orig })
	return New(opts...)
}

func fileEntry(p string) storage.Entry {
	return storage.Entry{ID: p, Name: storage.BaseName(p), Path: p, Type: storage.File}
}

func dirEntry(p string) storage.Entry {
	return storage.Entry{ID: p, Name: storage.BaseName(p), Path: p, Type: storage.Directory}
}

// uriOf builds an s3://bucket URI for an entry.
func uriOf(t *testing.T, e storage.Entry) URI {
	t.Helper()
	u, ok := EntryToURI(e, "s3", "bucket")
	if !ok {
		t.Fatalf("unresolvable entry %+v", e)
	}
	return u
}

// subscribeCount counts notifications.
func subscribeCount(s *Store) *atomic.Int32 {
	var n atomic.Int32
	s.Subscribe(func() { n.Add(1) })
	return &n
}

type providerCall struct {
	Method string
	Src    string
	Dst    string
}

// fakeProvider records calls. Per-path behaviour: failOn returns an error,
// panicOn panics, failTimes fails that many times with a retryable error.
type fakeProvider struct {
	storage.CapabilitySet

	mu        gosync.Mutex
	calls     []providerCall
	failOn    map[string]error
	panicOn   map[string]bool
	failTimes map[string]int
	onCall    func(providerCall)
}

var _ storage.Provider = (*fakeProvider)(nil)

func newFakeProvider(caps storage.Capability) *fakeProvider {
	return &fakeProvider{
		CapabilitySet: storage.CapabilitySet{Set: caps},
		failOn:        map[string]error{},
		panicOn:       map[string]bool{},
		failTimes:     map[string]int{},
	}
}

func (f *fakeProvider) record(method, src, dst string) error {
	c := providerCall{Method: method, Src: src, Dst: dst}
	f.mu.Lock()
	f.calls = append(f.calls, c)
	err := f.failOn[src]
	shouldPanic := f.panicOn[src]
	if n := f.failTimes[src]; n > 0 {
		f.failTimes[src] = n - 1
		err = storage.Retryable(method, src, storage.StatusConnectionFailed, fmt.Errorf("flaky"))
	}
	hook := f.onCall
	f.mu.Unlock()

	if hook != nil {
		hook(c)
	}
	if shouldPanic {
		panic("backend exploded on " + src)
	}
	return err
}

func (f *fakeProvider) Calls() []providerCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]providerCall(nil), f.calls...)
}

func (f *fakeProvider) methodCalls(method string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (f *fakeProvider) Scheme() string    { return "s3" }
func (f *fakeProvider) Container() string { return "bucket" }
func (f *fakeProvider) Close() error      { return nil }

func (f *fakeProvider) List(_ context.Context, dir string) ([]storage.Entry, error) {
	return nil, f.record("list", dir, "")
}

func (f *fakeProvider) Read(_ context.Context, p string) (io.ReadCloser, error) {
	if err := f.record("read", p, ""); err != nil {
		return nil, err
	}
	return io.NopCloser(strings.NewReader("")), nil
}

func (f *fakeProvider) Write(_ context.Context, p string, body io.Reader) error {
	if body != nil {
		io.Copy(io.Discard, body) //nolint:errcheck
	}
	return f.record("write", p, "")
}

func (f *fakeProvider) Delete(_ context.Context, p string) error {
	return f.record("delete", p, "")
}

func (f *fakeProvider) Move(_ context.Context, src, dst string) error {
	return f.record("move", src, dst)
}

func (f *fakeProvider) Copy(_ context.Context, src, dst string) error {
	return f.record("copy", src, dst)
}

func (f *fakeProvider) Mkdir(_ context.Context, p string) error {
	return f.record("mkdir", p, "")
}

func (f *fakeProvider) Exists(_ context.Context, p string) (bool, error) {
	return false, f.record("exists", p, "")
}

func (f *fakeProvider) GetMetadata(_ context.Context, p string) (*storage.Entry, error) {
	if err := f.record("metadata", p, ""); err != nil {
		return nil, err
	}
	e := fileEntry(p)
	return &e, nil
}
