package domain

import "iter"

// Event is one parsed event of a streamed invocation response.
type Event map[string]any

// EventStream is a lazy, single-pass sequence of events backed by an open
// connection. Events may be ranged over once; breaking out early releases the
// connection. Close must be called when the stream is never iterated.
type EventStream interface {
	Events() iter.Seq2[Event, error]
	Close() error
}
