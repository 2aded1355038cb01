package wait

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cuemby/iris/pkg/task"
)

func TestEventLevelTriggered(t *testing.T) {
	e := NewEvent(false)

	res := e.Wait(1)
	assert.False(t, res.Ready)
	res = e.Wait(2)
	assert.False(t, res.Ready)

	res = e.Signal()
	assert.True(t, res.Ready)
	assert.Equal(t, []task.ID{1, 2}, res.Woken)

	// Level-triggered: while set, waits pass immediately.
	res = e.Wait(3)
	assert.True(t, res.Ready)
	assert.Empty(t, res.Woken)

	e.Reset()
	assert.False(t, e.IsSet())
	res = e.Wait(3)
	assert.False(t, res.Ready)
}

func TestEventInitiallySet(t *testing.T) {
	e := NewEvent(true)
	assert.True(t, e.Wait(1).Ready)
}

func TestSemaphoreCount(t *testing.T) {
	s := NewSemaphore(2)

	assert.True(t, s.Wait(1).Ready)
	assert.True(t, s.Wait(2).Ready)
	assert.Zero(t, s.Available())

	// Exhausted: parks.
	assert.False(t, s.Wait(3).Ready)
	assert.False(t, s.Wait(4).Ready)

	// FIFO wake, one per unit.
	res := s.Signal(1)
	assert.True(t, res.Ready)
	assert.Equal(t, []task.ID{3}, res.Woken)

	// Surplus spills into the available count.
	res = s.Signal(3)
	assert.True(t, res.Ready)
	assert.Equal(t, []task.ID{4}, res.Woken)
	assert.Equal(t, uint64(2), s.Available())
}

func TestSemaphoreSignalZero(t *testing.T) {
	s := NewSemaphore(0)
	res := s.Signal(0)
	assert.False(t, res.Ready)
	assert.Empty(t, res.Woken)
}

func TestSemaphoreSignalWithNoWaiters(t *testing.T) {
	s := NewSemaphore(0)
	res := s.Signal(2)
	assert.True(t, res.Ready)
	assert.Empty(t, res.Woken)
	assert.Equal(t, uint64(2), s.Available())
}

func TestMutexHandoff(t *testing.T) {
	m := NewMutex()

	owner := task.ID(1)
	assert.True(t, m.Wait(owner).Ready)
	assert.Equal(t, owner, *m.Owner())

	// Reentrant for equality only.
	assert.True(t, m.Wait(owner).Ready)

	// A and B park in order.
	assert.False(t, m.Wait(2).Ready)
	assert.False(t, m.Wait(3).Ready)

	// FIFO handoff: A first.
	res := m.Unlock(owner)
	assert.True(t, res.Ready)
	assert.Equal(t, []task.ID{2}, res.Woken)
	assert.Equal(t, task.ID(2), *m.Owner())

	res = m.Unlock(2)
	assert.Equal(t, []task.ID{3}, res.Woken)
	assert.Equal(t, task.ID(3), *m.Owner())

	// Last unlock clears ownership.
	res = m.Unlock(3)
	assert.True(t, res.Ready)
	assert.Empty(t, res.Woken)
	assert.Nil(t, m.Owner())
}

func TestMutexUnlockByNonOwner(t *testing.T) {
	m := NewMutex()
	assert.True(t, m.Wait(1).Ready)

	res := m.Unlock(2)
	assert.False(t, res.Ready)
	assert.Empty(t, res.Woken)
	assert.Equal(t, task.ID(1), *m.Owner())

	// Unowned mutex: unlock is also a no-op.
	m2 := NewMutex()
	assert.False(t, m2.Unlock(1).Ready)
}

func TestFutureOneShot(t *testing.T) {
	f := NewFuture()
	assert.False(t, f.Ready())
	assert.Nil(t, f.Value())

	assert.False(t, f.Wait(1).Ready)
	assert.False(t, f.Wait(2).Ready)

	res := f.SetValue([]byte("answer"))
	assert.True(t, res.Ready)
	assert.Equal(t, []task.ID{1, 2}, res.Woken)
	assert.True(t, f.Ready())
	assert.Equal(t, []byte("answer"), f.Value())

	// Second set is rejected.
	res = f.SetValue([]byte("other"))
	assert.False(t, res.Ready)
	assert.Empty(t, res.Woken)
	assert.Equal(t, []byte("answer"), f.Value())

	// After resolution, waits pass.
	assert.True(t, f.Wait(3).Ready)
}
