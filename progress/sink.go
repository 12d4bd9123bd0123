package progress

import (
	"context"
	"sync"
)

// Sink receives the events of one comparison in emission order
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(Event)

// Emit implements Sink
func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event
var Discard Sink = SinkFunc(func(Event) {})

// ChanSink forwards events to a channel until its context ends.
// Events emitted after that are dropped so a producer never blocks on a
// consumer that went away.
type ChanSink struct {
	ctx context.Context
	ch  chan Event
}

// NewChanSink creates a ChanSink with the given buffer size
func NewChanSink(ctx context.Context, buffer int) *ChanSink {
	return &ChanSink{ctx: ctx, ch: make(chan Event, buffer)}
}

// Emit implements Sink
func (s *ChanSink) Emit(e Event) {
	select {
	case s.ch <- e:
	case <-s.ctx.Done():
	}
}

// Events returns the receive side of the sink
func (s *ChanSink) Events() <-chan Event {
	return s.ch
}

// Recorder keeps every emitted event, for tests and the console front-end
type Recorder struct {
	mu     sync.Mutex
	events []Event
	next   Sink
}

// NewRecorder creates a Recorder that also forwards to next when it is not nil
func NewRecorder(next Sink) *Recorder {
	return &Recorder{next: next}
}

// Emit implements Sink
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	if r.next != nil {
		r.next.Emit(e)
	}
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Guard wraps a sink so that it sees at most one terminal event and
// nothing after it. It is safe for concurrent use.
type Guard struct {
	mu     sync.Mutex
	next   Sink
	closed bool
}

// NewGuard wraps next
func NewGuard(next Sink) *Guard {
	if next == nil {
		next = Discard
	}
	return &Guard{next: next}
}

// Emit implements Sink. It reports nothing; late events are dropped.
func (g *Guard) Emit(e Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	if e.Terminal() {
		g.closed = true
	}
	g.next.Emit(e)
}

// Closed reports whether the terminal event has been emitted
func (g *Guard) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}
