package events

import "gigchain/core/types"

// Event represents a structured state change emitted by a module.
type Event interface {
	EventType() string
}

// Payload is implemented by events that can render their canonical payload.
type Payload interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Buffer collects events until the surrounding operation decides whether to
// publish or drop them.
type Buffer struct {
	pending []*types.Event
}

// Emit implements the Emitter interface. Events without a payload are ignored.
func (b *Buffer) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	payload, ok := evt.(Payload)
	if !ok {
		return
	}
	if e := payload.Event(); e != nil {
		b.pending = append(b.pending, e)
	}
}

// Len reports the number of buffered events.
func (b *Buffer) Len() int { return len(b.pending) }

// Drain returns the buffered events and empties the buffer.
func (b *Buffer) Drain() []*types.Event {
	out := b.pending
	b.pending = nil
	return out
}

// Reset drops every buffered event.
func (b *Buffer) Reset() { b.pending = nil }
