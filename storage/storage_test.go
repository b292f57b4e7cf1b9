package storage_test

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghyeongl/pendingfs/storage"
	"github.com/ghyeongl/pendingfs/storage/local"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want storage.Status
	}{
		{"nil", nil, storage.StatusSuccess},
		{"classified", storage.NewError("list", "a", storage.StatusPermissionDenied, errors.New("no")), storage.StatusPermissionDenied},
		{"wrapped classified", fmt.Errorf("outer: %w", storage.NewError("read", "a", storage.StatusNotFound, fs.ErrNotExist)), storage.StatusNotFound},
		{"not exist", fs.ErrNotExist, storage.StatusNotFound},
		{"permission", fmt.Errorf("open: %w", fs.ErrPermission), storage.StatusPermissionDenied},
		{"exist", fs.ErrExist, storage.StatusAlreadyExists},
		{"cancelled", context.Canceled, storage.StatusCancelled},
		{"deadline", context.DeadlineExceeded, storage.StatusCancelled},
		{"unimplemented", storage.Unimplemented("copy"), storage.StatusUnimplemented},
		{"other", errors.New("boom"), storage.StatusError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, storage.StatusOf(tc.err))
		})
	}
}

func TestError_Message(t *testing.T) {
	err := storage.NewError("move", "a/b", storage.StatusAlreadyExists, fs.ErrExist)
	assert.Equal(t, "move a/b: already-exists: file already exists", err.Error())
	assert.ErrorIs(t, err, fs.ErrExist)

	assert.Nil(t, storage.NewError("move", "a", storage.StatusError, nil))
}

func TestRetryable(t *testing.T) {
	err := storage.Retryable("put", "k", storage.StatusConnectionFailed, errors.New("reset"))
	assert.True(t, storage.IsRetryable(err))
	assert.True(t, storage.IsRetryable(fmt.Errorf("wrap: %w", err)))
	assert.Equal(t, storage.StatusConnectionFailed, storage.StatusOf(err))

	assert.False(t, storage.IsRetryable(errors.New("plain")))
	assert.NoError(t, storage.Retryable("put", "k", storage.StatusError, nil))
}

func TestClassify_KeepsExisting(t *testing.T) {
	inner := storage.NewError("read", "x", storage.StatusConnectionFailed, errors.New("down"))
	assert.Same(t, inner, storage.Classify("list", "y", inner))

	got := storage.Classify("list", "y", fs.ErrNotExist)
	var se *storage.Error
	require.ErrorAs(t, got, &se)
	assert.Equal(t, "list", se.Op)
	assert.Equal(t, storage.StatusNotFound, se.Status)
}

func TestCapability(t *testing.T) {
	c := storage.CapList | storage.CapRead | storage.CapMove

	assert.True(t, c.Has(storage.CapMove))
	assert.True(t, c.Has(storage.CapList|storage.CapRead))
	assert.False(t, c.Has(storage.CapMove|storage.CapCopy))
	assert.False(t, c.Has(0))
	assert.Equal(t, "list,read,move", c.String())
	assert.Equal(t, "none", storage.Capability(0).String())

	set := storage.CapabilitySet{Set: c}
	assert.Equal(t, c, set.Capabilities())
	assert.True(t, set.HasCapability(storage.CapRead))
	assert.False(t, set.HasCapability(storage.CapDelete))
}

func TestEntryType(t *testing.T) {
	assert.True(t, storage.Directory.IsContainer())
	assert.True(t, storage.Bucket.IsContainer())
	assert.False(t, storage.File.IsContainer())
	assert.False(t, storage.Symlink.IsContainer())

	for _, typ := range []storage.EntryType{storage.File, storage.Directory, storage.Bucket, storage.Symlink} {
		assert.Equal(t, typ, storage.ParseEntryType(typ.String()))
	}
	assert.Equal(t, storage.File, storage.ParseEntryType("whatever"))
}

func TestSortEntries(t *testing.T) {
	entries := []storage.Entry{
		{Name: "file10.txt", Type: storage.File},
		{Name: "zeta", Type: storage.Directory},
		{Name: "file2.txt", Type: storage.File},
		{Name: "alpha", Type: storage.Bucket},
		{Name: "file1.txt", Type: storage.File},
	}
	storage.SortEntries(entries)

	var got []string
	for _, e := range entries {
		got = append(got, e.Name)
	}
	assert.Equal(t, []string{"alpha", "zeta", "file1.txt", "file2.txt", "file10.txt"}, got)
}

func TestPaths(t *testing.T) {
	assert.Equal(t, "", storage.CleanPath("/"))
	assert.Equal(t, "", storage.CleanPath(""))
	assert.Equal(t, "a/b", storage.CleanPath("/a//b/"))
	assert.Equal(t, "a/c", storage.CleanPath("a/b/../c"))
	assert.Equal(t, "a/b", storage.CleanPath(`a\b`))
	assert.Equal(t, "b", storage.CleanPath("../../b"))

	assert.Equal(t, "x", storage.JoinPath("", "x"))
	assert.Equal(t, "a/x", storage.JoinPath("a", "x"))
	assert.Equal(t, "/a/x", storage.JoinPath("/a/", "x"))

	assert.Equal(t, "a", storage.ParentPath("a/b/"))
	assert.Equal(t, "", storage.ParentPath("a"))
	assert.Equal(t, "b", storage.BaseName("/a/b/"))
	assert.Equal(t, "", storage.BaseName("/"))
}

// countingProvider records how often List reaches the backend.
type countingProvider struct {
	storage.Provider
	lists atomic.Int32
}

func (c *countingProvider) List(ctx context.Context, dir string) ([]storage.Entry, error) {
	c.lists.Add(1)
	return c.Provider.List(ctx, dir)
}

func setupCache(t *testing.T) (*storage.CachedProvider, *countingProvider) {
	t.Helper()
	mem := local.NewMemory(local.Options{})
	require.NoError(t, mem.Fs().MkdirAll("/docs/sub", 0755))
	require.NoError(t, afero.WriteFile(mem.Fs(), "/docs/a.txt", []byte("a"), 0644))

	inner := &countingProvider{Provider: mem}
	c := storage.NewCachedProvider(inner, time.Minute)
	t.Cleanup(func() { c.Close() })
	return c, inner
}

func TestCachedProvider_Hit(t *testing.T) {
	c, inner := setupCache(t)
	ctx := context.Background()

	first, err := c.List(ctx, "docs")
	require.NoError(t, err)
	second, err := c.List(ctx, "/docs/")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), inner.lists.Load())
	assert.Equal(t, 1, c.Len())

	second[0].Name = "mutated"
	third, err := c.List(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, "sub", third[0].Name, "cached slice is not shared with callers")
}

func TestCachedProvider_ErrorNotCached(t *testing.T) {
	c, inner := setupCache(t)
	ctx := context.Background()

	_, err := c.List(ctx, "missing")
	require.Error(t, err)
	_, err = c.List(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, int32(2), inner.lists.Load())
	assert.Equal(t, 0, c.Len())
}

func TestCachedProvider_InvalidatesOnMutation(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(c *storage.CachedProvider) error
		want   []string
	}{
		{"write", func(c *storage.CachedProvider) error {
			return c.Write(ctx, "docs/b.txt", strings.NewReader("b"))
		}, []string{"sub", "a.txt", "b.txt"}},
		{"delete", func(c *storage.CachedProvider) error {
			return c.Delete(ctx, "docs/a.txt")
		}, []string{"sub"}},
		{"move", func(c *storage.CachedProvider) error {
			return c.Move(ctx, "docs/a.txt", "docs/sub/a.txt")
		}, []string{"sub"}},
		{"copy", func(c *storage.CachedProvider) error {
			return c.Copy(ctx, "docs/a.txt", "docs/c.txt")
		}, []string{"sub", "a.txt", "c.txt"}},
		{"mkdir", func(c *storage.CachedProvider) error {
			return c.Mkdir(ctx, "docs/new")
		}, []string{"new", "sub", "a.txt"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := setupCache(t)
			_, err := c.List(ctx, "docs")
			require.NoError(t, err)

			require.NoError(t, tc.mutate(c))

			entries, err := c.List(ctx, "docs")
			require.NoError(t, err)
			var got []string
			for _, e := range entries {
				got = append(got, e.Name)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCachedProvider_InvalidateSubtree(t *testing.T) {
	c, inner := setupCache(t)
	ctx := context.Background()

	for _, dir := range []string{"", "docs", "docs/sub"} {
		_, err := c.List(ctx, dir)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, c.Len())

	c.Invalidate("docs")
	assert.Equal(t, 0, c.Len(), "parent, self and descendants dropped")

	_, err := c.List(ctx, "docs/sub")
	require.NoError(t, err)
	assert.Equal(t, int32(4), inner.lists.Load())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}
