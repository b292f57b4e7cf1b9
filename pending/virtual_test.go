package pending

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghyeongl/pendingfs/storage"
)

func names(entries []storage.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

func TestVirtualEntries_Create(t *testing.T) {
	s := setupStore(t)
	parent := uriOf(t, dirEntry("docs"))
	created, ok := s.Create(parent, "newfile.txt", storage.File)
	require.True(t, ok)

	entries := s.VirtualEntries("docs", "s3", "bucket")
	require.Len(t, entries, 1)
	v := entries[0]
	assert.Equal(t, "newfile.txt", v.Name)
	assert.Equal(t, storage.File, v.Type)
	assert.Equal(t, "docs/newfile.txt", v.Path)
	assert.Equal(t, "create", v.Metadata["pending"])

	u, ok := EntryToURI(v, "s3", "bucket")
	require.True(t, ok)
	assert.Equal(t, created, u)
	assert.True(t, s.EntryState(u).Created)
}

func TestVirtualEntries_FiltersByParentSchemeAndContainer(t *testing.T) {
	s := setupStore(t)
	s.Create("s3://bucket/docs/", "in.txt", storage.File)
	s.Create("s3://bucket/docs/deeper/", "nested.txt", storage.File)
	s.Create("s3://bucket/", "top.txt", storage.File)
	s.Create("s3://other/docs/", "elsewhere.txt", storage.File)
	s.Create("file:///docs/", "local.txt", storage.File)

	assert.Equal(t, []string{"in.txt"}, names(s.VirtualEntries("/docs/", "s3", "bucket")))
	assert.Equal(t, []string{"top.txt"}, names(s.VirtualEntries("", "s3", "bucket")))
	assert.Equal(t, []string{"local.txt"}, names(s.VirtualEntries("docs", "file", "")))
	assert.Nil(t, s.VirtualEntries("docs", "s3", ""))
}

func TestVirtualEntries_MoveAndCopyCarryEntry(t *testing.T) {
	s := setupStore(t)
	size := int64(42)
	a := fileEntry("src/a.txt")
	a.Size = &size
	a.Metadata = map[string]string{"kind": "text"}
	d := dirEntry("src/photos")

	s.Cut([]storage.Entry{a}, []URI{uriOf(t, a)})
	s.Paste("dst", "s3", "bucket")
	s.Copy([]storage.Entry{d}, []URI{uriOf(t, d)})
	s.Paste("dst", "s3", "bucket")

	entries := s.VirtualEntries("dst", "s3", "bucket")
	require.Len(t, entries, 2)

	moved := entries[0]
	assert.Equal(t, "a.txt", moved.Name)
	assert.Equal(t, "dst/a.txt", moved.Path)
	assert.Equal(t, &size, moved.Size)
	assert.Equal(t, "text", moved.Metadata["kind"])
	assert.Equal(t, "move", moved.Metadata["pending"])
	assert.NotContains(t, a.Metadata, "pending", "source entry metadata is not touched")

	copied := entries[1]
	assert.Equal(t, storage.Directory, copied.Type)
	u, ok := EntryToURI(copied, "s3", "bucket")
	require.True(t, ok)
	assert.Equal(t, URI("s3://bucket/dst/photos/"), u)
	assert.True(t, s.EntryState(u).CopiedHere)
}

func TestShouldFilterEntry(t *testing.T) {
	s := setupStore(t)
	a, b, c := fileEntry("a.txt"), fileEntry("b.txt"), fileEntry("c.txt")
	s.MarkForDeletion(uriOf(t, a), a)
	s.Cut([]storage.Entry{b}, []URI{uriOf(t, b)})
	s.Paste("moved", "s3", "bucket")
	s.Rename(uriOf(t, c), c, "renamed.txt")

	assert.True(t, s.ShouldFilterEntry(uriOf(t, a)))
	assert.True(t, s.ShouldFilterEntry(uriOf(t, b)))
	assert.False(t, s.ShouldFilterEntry(uriOf(t, c)))
	assert.False(t, s.ShouldFilterEntry("s3://bucket/moved/b.txt"))
}

func TestEntryState_MultipleFlags(t *testing.T) {
	s := setupStore(t)
	a := fileEntry("a.txt")
	s.Cut([]storage.Entry{a}, []URI{uriOf(t, a)})
	s.Paste("dst", "s3", "bucket")
	dest := URI("s3://bucket/dst/a.txt")
	s.Rename(dest, fileEntry("dst/a.txt"), "b.txt")
	s.MarkForDeletion(dest, fileEntry("dst/a.txt"))

	st := s.EntryState(dest)
	assert.True(t, st.MovedHere)
	assert.True(t, st.Renamed)
	assert.True(t, st.Deleted)
	assert.Equal(t, "b.txt", st.RenamedTo)
	assert.False(t, st.MovedAway)
	assert.True(t, st.Any())

	assert.False(t, s.EntryState("s3://bucket/untouched").Any())
}

func TestVisibleEntries(t *testing.T) {
	s := setupStore(t)
	listing := []storage.Entry{dirEntry("docs/sub"), fileEntry("docs/a.txt"), fileEntry("docs/b.txt")}
	s.MarkForDeletion(uriOf(t, listing[1]), listing[1])
	s.Create("s3://bucket/docs/", "new.txt", storage.File)
	// A copy onto an existing name shows once.
	s.Copy([]storage.Entry{fileEntry("x/b.txt")}, []URI{"s3://bucket/x/b.txt"})
	s.Paste("docs", "s3", "bucket")

	got := s.VisibleEntries(listing, "docs", "s3", "bucket")
	assert.Equal(t, []string{"sub", "b.txt", "new.txt"}, names(got))
}
