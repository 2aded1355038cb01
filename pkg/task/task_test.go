package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/iris/pkg/errdefs"
	"github.com/cuemby/iris/pkg/ident"
)

func spawn(t *testing.T, r *Registry) ID {
	t.Helper()
	rec, err := r.Spawn(ident.NewObjectID(), nil, "test")
	require.NoError(t, err)
	return rec.ID
}

func TestSpawn(t *testing.T) {
	r := NewRegistry()

	first, err := r.Spawn(ident.NewObjectID(), nil, "root")
	require.NoError(t, err)
	assert.Equal(t, ID(1), first.ID)
	assert.Equal(t, StateRunning, first.State)
	assert.Nil(t, first.Parent)

	child, err := r.Spawn(ident.NewObjectID(), &first.ID, "child")
	require.NoError(t, err)
	assert.Equal(t, ID(2), child.ID)
	require.NotNil(t, child.Parent)
	assert.Equal(t, first.ID, *child.Parent)

	parent := r.Get(first.ID)
	require.NotNil(t, parent)
	assert.Equal(t, []ID{child.ID}, parent.Children)
}

func TestSpawnParentNotFound(t *testing.T) {
	r := NewRegistry()
	ghost := ID(99)
	_, err := r.Spawn(ident.NewObjectID(), &ghost, "orphan")
	assert.ErrorIs(t, err, errdefs.ErrParentNotFound)
}

func TestWaitResumeCycle(t *testing.T) {
	r := NewRegistry()
	id := spawn(t, r)

	require.NoError(t, r.Wait(id))
	assert.Equal(t, StateWaiting, r.Get(id).State)

	// Waiting tasks cannot wait again.
	assert.ErrorIs(t, r.Wait(id), errdefs.ErrIllegalTransition)

	require.NoError(t, r.Resume(id))
	assert.Equal(t, StateRunning, r.Get(id).State)

	// Running tasks cannot resume.
	assert.ErrorIs(t, r.Resume(id), errdefs.ErrIllegalTransition)
}

func TestCancelFlow(t *testing.T) {
	r := NewRegistry()

	// Cancel from Running.
	a := spawn(t, r)
	require.NoError(t, r.Cancel(a))
	assert.Equal(t, StateCancelRequested, r.Get(a).State)
	require.NoError(t, r.MarkCanceled(a))
	assert.Equal(t, StateCanceled, r.Get(a).State)

	// Cancel from Waiting.
	b := spawn(t, r)
	require.NoError(t, r.Wait(b))
	require.NoError(t, r.Cancel(b))
	assert.Equal(t, StateCancelRequested, r.Get(b).State)

	// MarkCanceled only applies to CancelRequested.
	c := spawn(t, r)
	assert.ErrorIs(t, r.MarkCanceled(c), errdefs.ErrIllegalTransition)
}

func TestTerminalStatesSticky(t *testing.T) {
	r := NewRegistry()

	terminalize := map[string]func(ID) error{
		"completed": r.Complete,
		"failed":    func(id ID) error { return r.Fail(id, "boom") },
		"killed":    r.Kill,
	}
	for name, end := range terminalize {
		t.Run(name, func(t *testing.T) {
			id := spawn(t, r)
			require.NoError(t, end(id))
			assert.True(t, r.Get(id).State.IsTerminal())

			assert.ErrorIs(t, r.Wait(id), errdefs.ErrIllegalTransition)
			assert.ErrorIs(t, r.Resume(id), errdefs.ErrIllegalTransition)
			assert.ErrorIs(t, r.Cancel(id), errdefs.ErrIllegalTransition)
			assert.ErrorIs(t, r.Complete(id), errdefs.ErrIllegalTransition)
			assert.ErrorIs(t, r.Fail(id, ""), errdefs.ErrIllegalTransition)
			assert.ErrorIs(t, r.Kill(id), errdefs.ErrIllegalTransition)
			assert.ErrorIs(t, r.MarkCanceled(id), errdefs.ErrIllegalTransition)
		})
	}

	// Canceled is terminal too.
	id := spawn(t, r)
	require.NoError(t, r.Cancel(id))
	require.NoError(t, r.MarkCanceled(id))
	assert.ErrorIs(t, r.Cancel(id), errdefs.ErrIllegalTransition)
}

func TestKillFromWaiting(t *testing.T) {
	r := NewRegistry()
	id := spawn(t, r)
	require.NoError(t, r.Wait(id))
	require.NoError(t, r.Kill(id))
	assert.Equal(t, StateKilled, r.Get(id).State)
}

func TestCompleteRequiresRunning(t *testing.T) {
	r := NewRegistry()
	id := spawn(t, r)
	require.NoError(t, r.Wait(id))
	assert.ErrorIs(t, r.Complete(id), errdefs.ErrIllegalTransition)
	assert.ErrorIs(t, r.Fail(id, ""), errdefs.ErrIllegalTransition)
}

func TestCancelRequestedOnlyMarkCanceled(t *testing.T) {
	r := NewRegistry()
	id := spawn(t, r)
	require.NoError(t, r.Cancel(id))

	assert.ErrorIs(t, r.Wait(id), errdefs.ErrIllegalTransition)
	assert.ErrorIs(t, r.Resume(id), errdefs.ErrIllegalTransition)
	assert.ErrorIs(t, r.Kill(id), errdefs.ErrIllegalTransition)
	assert.ErrorIs(t, r.Complete(id), errdefs.ErrIllegalTransition)
	require.NoError(t, r.MarkCanceled(id))
}

func TestMissingTask(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get(42))
	assert.ErrorIs(t, r.Wait(42), errdefs.ErrNotFound)
}

func TestListSortedByID(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 10; i++ {
		spawn(t, r)
	}
	list := r.List()
	require.Len(t, list, 10)
	for i, rec := range list {
		assert.Equal(t, ID(i+1), rec.ID)
	}
}
