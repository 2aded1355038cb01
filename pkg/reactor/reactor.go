// Package reactor couples waitables to task suspension: awaiting a
// not-ready waitable parks the task, and wake lists are turned into
// resumed/canceled sets against the task registry.
package reactor

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cuemby/iris/pkg/comms"
	"github.com/cuemby/iris/pkg/errdefs"
	"github.com/cuemby/iris/pkg/log"
	"github.com/cuemby/iris/pkg/task"
	"github.com/cuemby/iris/pkg/wait"
)

// AwaitOutcome partitions the woken tasks of a wait result.
type AwaitOutcome struct {
	Resumed  []task.ID
	Canceled []task.ID
}

// AwaitTask couples a wait on any waitable to the task's suspension. A
// pending cancel request is converted to Canceled before the waitable is
// consulted, and the caller gets Ready=true to mean "stop immediately".
// Otherwise the waitable decides: not-ready moves the task to Waiting.
func AwaitTask(w wait.Waitable, registry *task.Registry, id task.ID) (wait.Result, error) {
	rec := registry.Get(id)
	if rec == nil {
		return wait.Result{}, fmt.Errorf("%w: task %d", errdefs.ErrNotFound, id)
	}

	if rec.State == task.StateCancelRequested {
		if err := registry.MarkCanceled(id); err != nil {
			return wait.Result{}, err
		}
		return wait.Result{Ready: true}, nil
	}

	res := w.Wait(id)
	if !res.Ready {
		if err := registry.Wait(id); err != nil {
			return wait.Result{}, err
		}
	}
	return res, nil
}

// HandleWaitResult resumes or cancels every woken task. A woken task with a
// pending cancel request ends Canceled; the rest go back to Running.
// Missing tasks and failed transitions are dropped silently.
func HandleWaitResult(registry *task.Registry, res wait.Result) AwaitOutcome {
	var out AwaitOutcome
	for _, id := range res.Woken {
		rec := registry.Get(id)
		if rec == nil {
			continue
		}
		if rec.State == task.StateCancelRequested {
			if registry.MarkCanceled(id) == nil {
				out.Canceled = append(out.Canceled, id)
			}
			continue
		}
		if registry.Resume(id) == nil {
			out.Resumed = append(out.Resumed, id)
		}
	}
	return out
}

// IoReactor couples the three I/O waitables to a task registry: awaiting
// readability suspends the task, and producing data resumes (or cancels)
// whoever was parked. One method per concrete primitive keeps dynamic
// dispatch out of the hot path. The reactor spawns no threads; it is a
// coordination surface for a single-threaded cooperative scheduler.
type IoReactor struct {
	registry *task.Registry
	logger   zerolog.Logger
}

// NewIoReactor wraps a task registry.
func NewIoReactor(registry *task.Registry) *IoReactor {
	return &IoReactor{
		registry: registry,
		logger:   log.WithComponent("reactor"),
	}
}

// AwaitStreamReadable suspends the task until the stream has bytes.
func (r *IoReactor) AwaitStreamReadable(s *comms.ByteStream, id task.ID) (wait.Result, error) {
	return AwaitTask(s, r.registry, id)
}

// AwaitChannelReadable suspends the task until the channel has bytes.
func (r *IoReactor) AwaitChannelReadable(c *comms.Channel, id task.ID) (wait.Result, error) {
	return AwaitTask(c, r.registry, id)
}

// AwaitPortReadable suspends the task until the port has a datagram.
func (r *IoReactor) AwaitPortReadable(p *comms.DatagramPort, id task.ID) (wait.Result, error) {
	return AwaitTask(p, r.registry, id)
}

// HandleResult applies a wait result produced outside the reactor.
func (r *IoReactor) HandleResult(res wait.Result) AwaitOutcome {
	return HandleWaitResult(r.registry, res)
}

// Push writes into a byte stream and processes the woken tasks.
func (r *IoReactor) Push(s *comms.ByteStream, data []byte) AwaitOutcome {
	return r.handle(s.Push(data))
}

// Send writes into a channel and processes the woken tasks.
func (r *IoReactor) Send(c *comms.Channel, data []byte) AwaitOutcome {
	return r.handle(c.Send(data))
}

// SendDatagram enqueues a datagram and processes the woken tasks.
func (r *IoReactor) SendDatagram(p *comms.DatagramPort, data []byte) AwaitOutcome {
	return r.handle(p.Send(data))
}

func (r *IoReactor) handle(res wait.Result) AwaitOutcome {
	out := HandleWaitResult(r.registry, res)
	if len(out.Resumed) > 0 || len(out.Canceled) > 0 {
		r.logger.Debug().
			Int("resumed", len(out.Resumed)).
			Int("canceled", len(out.Canceled)).
			Msg("processed wake list")
	}
	return out
}
