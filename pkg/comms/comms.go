// Package comms implements the I/O-flavored waitables: byte streams,
// bidirectional channels, and datagram ports. They share the wait package's
// readiness contract and are driven by the reactor.
package comms

import (
	"github.com/cuemby/iris/pkg/task"
	"github.com/cuemby/iris/pkg/wait"
)

// ByteStream is a FIFO byte queue with an internal readiness event. Waiters
// park on the event while the buffer is empty; draining the buffer resets
// the event so later waits block again.
type ByteStream struct {
	dataReady wait.Event
	buffer    []byte
}

// NewByteStream creates an empty stream.
func NewByteStream() *ByteStream {
	return &ByteStream{}
}

// Wait is the generic waitable form of WaitReadable.
func (s *ByteStream) Wait(t task.ID) wait.Result {
	return s.WaitReadable(t)
}

// WaitReadable passes immediately while the buffer is nonempty; otherwise
// the task parks on the readiness event.
func (s *ByteStream) WaitReadable(t task.ID) wait.Result {
	if len(s.buffer) > 0 {
		return wait.Result{Ready: true}
	}
	return s.dataReady.Wait(t)
}

// Available returns the buffered byte count.
func (s *ByteStream) Available() int { return len(s.buffer) }

// Recv drains up to maxBytes from the head of the buffer. Draining the last
// byte resets readiness.
func (s *ByteStream) Recv(maxBytes int) []byte {
	if maxBytes <= 0 || len(s.buffer) == 0 {
		return nil
	}
	n := maxBytes
	if n > len(s.buffer) {
		n = len(s.buffer)
	}
	out := append([]byte(nil), s.buffer[:n]...)
	s.buffer = s.buffer[n:]
	if len(s.buffer) == 0 {
		s.dataReady.Reset()
	}
	return out
}

// Push appends bytes and signals readiness, returning whatever the event
// wakes. An empty push is a no-op that still reports Ready.
func (s *ByteStream) Push(data []byte) wait.Result {
	if len(data) == 0 {
		return wait.Result{Ready: true}
	}
	s.buffer = append(s.buffer, data...)
	return s.dataReady.Signal()
}

// Channel is a bidirectional pipe built from two byte streams wired in
// opposite directions.
type Channel struct {
	incoming *ByteStream
	outgoing *ByteStream
}

// Loopback builds a connected pair: a.Send appears on b's incoming stream
// and vice versa.
func Loopback() (*Channel, *Channel) {
	aToB := NewByteStream()
	bToA := NewByteStream()
	a := &Channel{incoming: bToA, outgoing: aToB}
	b := &Channel{incoming: aToB, outgoing: bToA}
	return a, b
}

// Wait is the generic waitable form of WaitReadable.
func (c *Channel) Wait(t task.ID) wait.Result {
	return c.WaitReadable(t)
}

// WaitReadable delegates to the incoming stream.
func (c *Channel) WaitReadable(t task.ID) wait.Result {
	return c.incoming.WaitReadable(t)
}

// Available returns the incoming buffered byte count.
func (c *Channel) Available() int { return c.incoming.Available() }

// Recv drains from the incoming stream.
func (c *Channel) Recv(maxBytes int) []byte {
	return c.incoming.Recv(maxBytes)
}

// Send pushes onto the outgoing stream.
func (c *Channel) Send(data []byte) wait.Result {
	return c.outgoing.Push(data)
}

// mailbox is one direction of a datagram port: a FIFO of whole datagrams
// plus a readiness event.
type mailbox struct {
	dataReady wait.Event
	queue     [][]byte
}

// DatagramPort transports whole byte vectors. A port constructed without
// mailboxes (the zero value) is non-operational: waits and sends report
// not-ready and Recv returns nil.
type DatagramPort struct {
	inbox  *mailbox
	outbox *mailbox
}

// LoopbackDatagram builds a connected port pair.
func LoopbackDatagram() (*DatagramPort, *DatagramPort) {
	inboxA := &mailbox{}
	inboxB := &mailbox{}
	a := &DatagramPort{inbox: inboxA, outbox: inboxB}
	b := &DatagramPort{inbox: inboxB, outbox: inboxA}
	return a, b
}

// Wait is the generic waitable form of WaitReadable.
func (p *DatagramPort) Wait(t task.ID) wait.Result {
	return p.WaitReadable(t)
}

// WaitReadable passes while a datagram is queued, otherwise parks on the
// inbox event.
func (p *DatagramPort) WaitReadable(t task.ID) wait.Result {
	if p.inbox == nil || p.outbox == nil {
		return wait.Result{}
	}
	if len(p.inbox.queue) > 0 {
		return wait.Result{Ready: true}
	}
	return p.inbox.dataReady.Wait(t)
}

// Recv returns the oldest datagram whole, or nil when the mailbox is empty.
func (p *DatagramPort) Recv() []byte {
	if p.inbox == nil || len(p.inbox.queue) == 0 {
		return nil
	}
	packet := p.inbox.queue[0]
	p.inbox.queue = p.inbox.queue[1:]
	if len(p.inbox.queue) == 0 {
		p.inbox.dataReady.Reset()
	}
	return packet
}

// Send enqueues the datagram whole on the peer's inbox and signals its
// readiness event.
func (p *DatagramPort) Send(data []byte) wait.Result {
	if p.inbox == nil || p.outbox == nil {
		return wait.Result{}
	}
	p.outbox.queue = append(p.outbox.queue, append([]byte(nil), data...))
	return p.outbox.dataReady.Signal()
}
