// Package wait implements the waitable primitives of the cooperative task
// core: event, semaphore, mutex, and future. Every primitive answers the
// single Wait(task) contract; suspension itself is the reactor's job.
package wait

import (
	"github.com/cuemby/iris/pkg/task"
)

// Result is the outcome of any waitable operation. Ready=true means the
// caller proceeds without suspending; Woken lists tasks that should be
// resumed by the reactor.
type Result struct {
	Ready bool
	Woken []task.ID
}

// Waitable is the single capability every primitive shares. Parked queues
// are processed FIFO; a single logical signal may wake many tasks at once.
// No ordering is defined across different waitables.
type Waitable interface {
	Wait(t task.ID) Result
}

// Event is a level-triggered boolean. While set, waits pass immediately;
// Signal wakes every parked task at once.
type Event struct {
	set     bool
	waiters []task.ID
}

// NewEvent creates an event, optionally already set.
func NewEvent(initiallySet bool) *Event {
	return &Event{set: initiallySet}
}

func (e *Event) Wait(t task.ID) Result {
	if e.set {
		return Result{Ready: true}
	}
	e.waiters = append(e.waiters, t)
	return Result{}
}

// Signal sets the event and releases every parked task.
func (e *Event) Signal() Result {
	e.set = true
	out := Result{Ready: true, Woken: e.waiters}
	e.waiters = nil
	return out
}

// Reset clears the flag. Nobody is parked or woken by a reset.
func (e *Event) Reset() {
	e.set = false
}

// IsSet reports the current flag.
func (e *Event) IsSet() bool { return e.set }

// Semaphore is a counting semaphore with a FIFO waiter queue.
type Semaphore struct {
	count   uint64
	waiters []task.ID
}

// NewSemaphore creates a semaphore with an initial count.
func NewSemaphore(initial uint64) *Semaphore {
	return &Semaphore{count: initial}
}

func (s *Semaphore) Wait(t task.ID) Result {
	if s.count > 0 {
		s.count--
		return Result{Ready: true}
	}
	s.waiters = append(s.waiters, t)
	return Result{}
}

// Signal releases up to n parked tasks in FIFO order; any surplus is added
// to the available count.
func (s *Semaphore) Signal(n uint64) Result {
	var out Result
	if n == 0 {
		return out
	}
	for n > 0 && len(s.waiters) > 0 {
		out.Woken = append(out.Woken, s.waiters[0])
		s.waiters = s.waiters[1:]
		n--
	}
	s.count += n
	out.Ready = true
	return out
}

// Available returns the current count.
func (s *Semaphore) Available() uint64 { return s.count }

// Mutex grants ownership to one task at a time and hands off to the front
// of the waiter queue on unlock. Re-acquiring while owning is a no-op grant,
// not a counter.
type Mutex struct {
	owner   *task.ID
	waiters []task.ID
}

// NewMutex creates an unowned mutex.
func NewMutex() *Mutex {
	return &Mutex{}
}

func (m *Mutex) Wait(t task.ID) Result {
	if m.owner == nil {
		owner := t
		m.owner = &owner
		return Result{Ready: true}
	}
	if *m.owner == t {
		return Result{Ready: true}
	}
	m.waiters = append(m.waiters, t)
	return Result{}
}

// Unlock transfers ownership to the oldest waiter, or clears it when the
// queue is empty. Unlocking a mutex the caller does not own is a no-op with
// Ready=false.
func (m *Mutex) Unlock(t task.ID) Result {
	if m.owner == nil || *m.owner != t {
		return Result{}
	}
	if len(m.waiters) == 0 {
		m.owner = nil
		return Result{Ready: true}
	}
	next := m.waiters[0]
	m.waiters = m.waiters[1:]
	m.owner = &next
	return Result{Ready: true, Woken: []task.ID{next}}
}

// Owner returns the current owner, or nil.
func (m *Mutex) Owner() *task.ID {
	if m.owner == nil {
		return nil
	}
	owner := *m.owner
	return &owner
}

// Future is a one-shot value. The first SetValue wakes every parked task;
// later sets are rejected.
type Future struct {
	value   []byte
	done    bool
	waiters []task.ID
}

// NewFuture creates an unset future.
func NewFuture() *Future {
	return &Future{}
}

func (f *Future) Wait(t task.ID) Result {
	if f.done {
		return Result{Ready: true}
	}
	f.waiters = append(f.waiters, t)
	return Result{}
}

// SetValue resolves the future. Only the first call succeeds; the rest
// return Ready=false with nobody woken.
func (f *Future) SetValue(value []byte) Result {
	if f.done {
		return Result{}
	}
	f.done = true
	f.value = append([]byte(nil), value...)
	out := Result{Ready: true, Woken: f.waiters}
	f.waiters = nil
	return out
}

// Ready reports whether the value has been set.
func (f *Future) Ready() bool { return f.done }

// Value returns the resolved value, or nil while unset.
func (f *Future) Value() []byte {
	if !f.done {
		return nil
	}
	return append([]byte(nil), f.value...)
}
