package pending

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghyeongl/pendingfs/storage"
)

type view struct {
	ops       []Operation
	clipboard *Clipboard
}

func viewOf(s *Store) view {
	return view{ops: s.Operations(), clipboard: s.Clipboard()}
}

func TestUndoRedo_InverseLaw(t *testing.T) {
	s := setupStore(t)
	a, b, c := fileEntry("a.txt"), fileEntry("b.txt"), dirEntry("docs")
	s.MarkForDeletion(uriOf(t, c), c)
	pre := viewOf(s)

	mutations := []func(){
		func() { s.MarkForDeletion(uriOf(t, a), a) },
		func() { s.Rename(uriOf(t, b), b, "bee.txt") },
		func() { s.Create(uriOf(t, c), "new.txt", storage.File) },
		func() { s.Cut([]storage.Entry{b}, []URI{uriOf(t, b)}) },
		func() { s.Paste("archive", "s3", "bucket") },
		func() { s.Copy([]storage.Entry{a}, []URI{uriOf(t, a)}) },
		func() { s.Paste("backup", "s3", "bucket") },
		func() { s.RemoveOperation("op-2") },
		func() { s.UnmarkForDeletion(uriOf(t, c)) },
	}
	for _, m := range mutations {
		m()
	}
	post := viewOf(s)

	for i := range mutations {
		require.True(t, s.Undo(), "undo %d", i)
	}
	assert.Equal(t, pre, viewOf(s))

	for i := range mutations {
		require.True(t, s.Redo(), "redo %d", i)
	}
	assert.Equal(t, post, viewOf(s))
}

func TestUndo_EmptyStacks(t *testing.T) {
	s := setupStore(t)
	notified := subscribeCount(s)

	assert.False(t, s.Undo())
	assert.False(t, s.Redo())
	assert.Zero(t, notified.Load())
}

func TestRedo_InvalidatedByNewMutation(t *testing.T) {
	s := setupStore(t)
	a, b := fileEntry("a.txt"), fileEntry("b.txt")

	s.MarkForDeletion(uriOf(t, a), a)
	require.True(t, s.Undo())
	assert.True(t, s.CanRedo())

	s.MarkForDeletion(uriOf(t, b), b)

	assert.False(t, s.Redo())
	assert.False(t, s.CanRedo())
	assert.False(t, s.Snapshot().CanRedo)
}

func TestRedo_SurvivesNoopMutation(t *testing.T) {
	s := setupStore(t)
	a := fileEntry("a.txt")

	s.MarkForDeletion(uriOf(t, a), a)
	s.Undo()
	s.UnmarkForDeletion(uriOf(t, a))

	assert.True(t, s.CanRedo(), "a call that changes nothing leaves history alone")
}

func TestUndo_RestoresClipboard(t *testing.T) {
	s := setupStore(t)
	a := fileEntry("a.txt")
	s.Cut([]storage.Entry{a}, []URI{uriOf(t, a)})
	s.Paste("dst", "s3", "bucket")
	require.False(t, s.HasClipboardContent())

	require.True(t, s.Undo())
	assert.True(t, s.HasClipboardContent())
	assert.Zero(t, s.Len())
}

func TestHistory_Bounded(t *testing.T) {
	s := setupStore(t, WithHistoryLimit(3))
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		e := fileEntry(name)
		s.MarkForDeletion(uriOf(t, e), e)
	}

	undos := 0
	for s.Undo() {
		undos++
	}
	assert.Equal(t, 3, undos)
	assert.Equal(t, 2, s.Len(), "the two oldest frames were dropped")
}

func TestUndo_NotifiesOnce(t *testing.T) {
	s := setupStore(t)
	a := fileEntry("a.txt")
	s.MarkForDeletion(uriOf(t, a), a)
	notified := subscribeCount(s)

	s.Undo()
	s.Redo()
	assert.Equal(t, int32(2), notified.Load())
}
