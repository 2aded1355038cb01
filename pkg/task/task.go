// Package task is the task registry: ID allocation, parent/child tracking,
// and the fixed lifecycle state machine.
package task

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/cuemby/iris/pkg/errdefs"
	"github.com/cuemby/iris/pkg/events"
	"github.com/cuemby/iris/pkg/ident"
	"github.com/cuemby/iris/pkg/log"
	"github.com/cuemby/iris/pkg/metrics"
)

// ID identifies a task within one registry. IDs start at 1.
type ID uint64

// State is a task's position in the fixed state machine.
type State string

const (
	StateCreated         State = "Created"
	StateRunning         State = "Running"
	StateWaiting         State = "Waiting"
	StateCancelRequested State = "CancelRequested"
	StateCanceled        State = "Canceled"
	StateCompleted       State = "Completed"
	StateFailed          State = "Failed"
	StateKilled          State = "Killed"
)

// IsTerminal reports whether the state is sticky.
func (s State) IsTerminal() bool {
	switch s {
	case StateCanceled, StateCompleted, StateFailed, StateKilled:
		return true
	}
	return false
}

// Record is one task. Children are recorded in spawn order and never pruned.
type Record struct {
	ID       ID
	ObjectID ident.ObjectID
	Parent   *ID
	Children []ID
	State    State
	Name     string
}

// Registry allocates task IDs and enforces the state machine:
//
//	spawn → Running
//	Running → Waiting                       (Wait)
//	Waiting → Running                       (Resume)
//	Running | Waiting → CancelRequested     (Cancel)
//	CancelRequested → Canceled              (MarkCanceled)
//	Running → Completed | Failed | Killed
//	Waiting → Killed
//
// Anything else is ErrIllegalTransition; terminal states are sticky.
type Registry struct {
	nextID ID
	tasks  map[ID]*Record
	broker *events.Broker
	logger zerolog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithBroker publishes task lifecycle events to b.
func WithBroker(b *events.Broker) Option {
	return func(r *Registry) { r.broker = b }
}

// NewRegistry creates an empty task registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		nextID: 1,
		tasks:  make(map[ID]*Record),
		logger: log.WithComponent("task"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Spawn creates a task in the Running state. The parent, when given, must
// already exist; the new ID is pushed onto its children list.
func (r *Registry) Spawn(objectID ident.ObjectID, parent *ID, name string) (Record, error) {
	if parent != nil {
		if _, ok := r.tasks[*parent]; !ok {
			return Record{}, fmt.Errorf("%w: %d", errdefs.ErrParentNotFound, *parent)
		}
	}

	rec := &Record{
		ID:       r.nextID,
		ObjectID: objectID,
		Parent:   parent,
		State:    StateRunning,
		Name:     name,
	}
	r.nextID++
	r.tasks[rec.ID] = rec
	if parent != nil {
		p := r.tasks[*parent]
		p.Children = append(p.Children, rec.ID)
	}

	metrics.TasksSpawned.Inc()
	metrics.TasksTotal.WithLabelValues(string(StateRunning)).Inc()
	r.logger.Debug().Uint64("task_id", uint64(rec.ID)).Str("name", name).Msg("task spawned")
	if r.broker != nil {
		r.broker.Publish(events.New(events.EventTaskSpawned, "task spawned", map[string]string{
			"task_id": fmt.Sprintf("%d", rec.ID),
			"name":    name,
		}))
	}
	return *rec, nil
}

// Wait moves a Running task to Waiting.
func (r *Registry) Wait(id ID) error {
	return r.transition(id, StateWaiting, StateRunning)
}

// Resume moves a Waiting task back to Running.
func (r *Registry) Resume(id ID) error {
	return r.transition(id, StateRunning, StateWaiting)
}

// Cancel requests cooperative cancellation. The task keeps running (or
// waiting) until an await or a wake pass observes the request.
func (r *Registry) Cancel(id ID) error {
	return r.transition(id, StateCancelRequested, StateRunning, StateWaiting)
}

// MarkCanceled finishes a cancellation. Only valid from CancelRequested.
func (r *Registry) MarkCanceled(id ID) error {
	return r.transition(id, StateCanceled, StateCancelRequested)
}

// Complete terminates a Running task successfully.
func (r *Registry) Complete(id ID) error {
	return r.transition(id, StateCompleted, StateRunning)
}

// Fail terminates a Running task with a failure. A non-empty reason
// replaces the task's display name.
func (r *Registry) Fail(id ID, reason string) error {
	if err := r.transition(id, StateFailed, StateRunning); err != nil {
		return err
	}
	if reason != "" {
		r.tasks[id].Name = reason
	}
	return nil
}

// Kill terminates a Running or Waiting task immediately.
func (r *Registry) Kill(id ID) error {
	return r.transition(id, StateKilled, StateRunning, StateWaiting)
}

// Get returns a copy of the task, or nil when absent.
func (r *Registry) Get(id ID) *Record {
	rec, ok := r.tasks[id]
	if !ok {
		return nil
	}
	cp := *rec
	cp.Children = append([]ID(nil), rec.Children...)
	return &cp
}

// List returns every task sorted ascending by ID.
func (r *Registry) List() []Record {
	out := make([]Record, 0, len(r.tasks))
	for _, rec := range r.tasks {
		cp := *rec
		cp.Children = append([]ID(nil), rec.Children...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) transition(id ID, to State, from ...State) error {
	rec, ok := r.tasks[id]
	if !ok {
		return fmt.Errorf("%w: task %d", errdefs.ErrNotFound, id)
	}
	allowed := false
	for _, s := range from {
		if rec.State == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: task %d cannot go %s -> %s", errdefs.ErrIllegalTransition, id, rec.State, to)
	}

	metrics.TasksTotal.WithLabelValues(string(rec.State)).Dec()
	metrics.TasksTotal.WithLabelValues(string(to)).Inc()
	prev := rec.State
	rec.State = to

	if r.broker != nil {
		r.broker.Publish(events.New(events.EventTaskStateChanged, "task state changed", map[string]string{
			"task_id": fmt.Sprintf("%d", id),
			"from":    string(prev),
			"to":      string(to),
		}))
	}
	return nil
}
