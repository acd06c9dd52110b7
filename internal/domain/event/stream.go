package event

import (
	"context"
	"sync"
)

// Stream delivers one task's events to a single consumer over a buffered
// channel. The producing orchestrator is the only writer: emission blocks
// when the buffer is full rather than dropping, so the consumer sees the
// complete sequence in order. The task context is the escape hatch — a
// cancelled task stops blocking on an absent consumer.
type Stream struct {
	ch        chan Event
	closeOnce sync.Once
}

// NewStream creates a stream with the given buffer size.
func NewStream(buffer int) *Stream {
	if buffer < 1 {
		buffer = 1
	}
	return &Stream{ch: make(chan Event, buffer)}
}

// Emit appends one event to the stream. Returns false when the context was
// cancelled before the event could be delivered.
func (s *Stream) Emit(ctx context.Context, ev Event) bool {
	select {
	case s.ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Events returns the receive side of the stream.
func (s *Stream) Events() <-chan Event {
	return s.ch
}

// Close ends the stream. Safe to call more than once; must only be called
// after the last Emit.
func (s *Stream) Close() {
	s.closeOnce.Do(func() { close(s.ch) })
}
