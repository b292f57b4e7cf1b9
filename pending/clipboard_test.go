package pending

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghyeongl/pendingfs/storage"
)

func TestCut_RejectsMismatchedSelection(t *testing.T) {
	s := setupStore(t)
	a, b := fileEntry("a.txt"), fileEntry("b.txt")

	assert.False(t, s.Cut([]storage.Entry{a, b}, []URI{uriOf(t, a)}))
	assert.False(t, s.Copy(nil, nil))
	assert.False(t, s.Cut([]storage.Entry{a}, []URI{""}))
	assert.False(t, s.HasClipboardContent())
	assert.False(t, s.CanUndo())
}

func TestCut_ReplacesClipboardWholesale(t *testing.T) {
	s := setupStore(t)
	a, b := fileEntry("a.txt"), fileEntry("b.txt")

	require.True(t, s.Copy([]storage.Entry{a}, []URI{uriOf(t, a)}))
	require.True(t, s.Cut([]storage.Entry{b}, []URI{uriOf(t, b)}))

	cb := s.Clipboard()
	require.NotNil(t, cb)
	assert.Equal(t, ClipboardCut, cb.Mode)
	assert.Equal(t, []URI{uriOf(t, b)}, cb.URIs)
	assert.Equal(t, []storage.Entry{b}, cb.Entries)

	assert.False(t, s.Cut([]storage.Entry{b}, []URI{uriOf(t, b)}), "same selection is not a change")
}

func TestPaste_CutRoundTrip(t *testing.T) {
	s := setupStore(t)
	e := fileEntry("docs/a.txt")
	u := uriOf(t, e)
	require.True(t, s.Cut([]storage.Entry{e}, []URI{u}))

	res := s.Paste("archive", "s3", "bucket")

	require.Len(t, res.Staged, 1)
	dest := URI("s3://bucket/archive/a.txt")
	assert.Equal(t, Move{ID: "op-1", Source: u, Dest: dest, Entry: e}, res.Staged[0])
	assert.Equal(t, res.Staged, s.Operations())
	assert.False(t, s.HasClipboardContent(), "cut clipboard is cleared")
	assert.True(t, s.EntryState(u).MovedAway)
	assert.True(t, s.EntryState(dest).MovedHere)
	assert.True(t, s.ShouldFilterEntry(u))
}

func TestPaste_CopyRepeatable(t *testing.T) {
	s := setupStore(t)
	e := fileEntry("a.txt")
	u := uriOf(t, e)
	require.True(t, s.Copy([]storage.Entry{e}, []URI{u}))

	r1 := s.Paste("d1", "s3", "bucket")
	r2 := s.Paste("d2/", "s3", "bucket")

	require.Len(t, r1.Staged, 1)
	require.Len(t, r2.Staged, 1)
	ops := s.Operations()
	require.Len(t, ops, 2)
	assert.Equal(t, URI("s3://bucket/d1/a.txt"), ops[0].(Copy).Dest)
	assert.Equal(t, URI("s3://bucket/d2/a.txt"), ops[1].(Copy).Dest)
	assert.NotEqual(t, ops[0].OpID(), ops[1].OpID())
	assert.True(t, s.HasClipboardContent())
	assert.False(t, s.ShouldFilterEntry(u), "copy sources stay visible")
}

func TestPaste_SelfTargetIsSkipped(t *testing.T) {
	s := setupStore(t)
	a, b := fileEntry("docs/a.txt"), fileEntry("other/b.txt")
	require.True(t, s.Cut([]storage.Entry{a, b}, []URI{uriOf(t, a), uriOf(t, b)}))

	res := s.Paste("docs", "s3", "bucket")

	assert.Equal(t, []URI{uriOf(t, a)}, res.SelfTargets)
	require.Len(t, res.Staged, 1)
	assert.Equal(t, URI("s3://bucket/docs/b.txt"), res.Staged[0].(Move).Dest)
}

func TestPaste_DuplicateNotRestaged(t *testing.T) {
	s := setupStore(t)
	e := fileEntry("a.txt")
	require.True(t, s.Copy([]storage.Entry{e}, []URI{uriOf(t, e)}))

	s.Paste("d1", "s3", "bucket")
	notified := subscribeCount(s)
	res := s.Paste("d1", "s3", "bucket")

	assert.Empty(t, res.Staged)
	assert.Equal(t, []URI{uriOf(t, e)}, res.Duplicates)
	assert.Equal(t, 1, s.Len())
	assert.Zero(t, notified.Load())
}

func TestPaste_UnresolvableDestinationRefused(t *testing.T) {
	s := setupStore(t)
	e := fileEntry("a.txt")
	require.True(t, s.Cut([]storage.Entry{e}, []URI{uriOf(t, e)}))

	res := s.Paste("dest", "s3", "")

	assert.True(t, res.Refused)
	assert.Empty(t, res.Staged)
	assert.Zero(t, s.Len())
	assert.True(t, s.HasClipboardContent(), "a refused paste keeps the clipboard")
}

func TestPaste_EmptyClipboardIsNoop(t *testing.T) {
	s := setupStore(t)
	notified := subscribeCount(s)

	res := s.Paste("x", "s3", "bucket")

	assert.Empty(t, res.Staged)
	assert.False(t, res.Refused)
	assert.Zero(t, notified.Load())
	assert.False(t, s.CanUndo())
}

func TestPaste_CrossContainer(t *testing.T) {
	s := setupStore(t)
	d := dirEntry("photos")
	require.True(t, s.Copy([]storage.Entry{d}, []URI{uriOf(t, d)}))

	res := s.Paste("", "s3", "backup")

	require.Len(t, res.Staged, 1)
	assert.Equal(t, URI("s3://backup/photos/"), res.Staged[0].(Copy).Dest)
}

func TestClearClipboard(t *testing.T) {
	s := setupStore(t)
	e := fileEntry("a.txt")
	s.Copy([]storage.Entry{e}, []URI{uriOf(t, e)})

	assert.True(t, s.ClearClipboard())
	assert.False(t, s.ClearClipboard())
	assert.Nil(t, s.Clipboard())
}
