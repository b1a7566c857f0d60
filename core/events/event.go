package events

// Event is a structured record emitted by the rebase engine for downstream
// consumers (RPC subscribers, indexers, the history store).
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Emitter broadcasts events to downstream subscribers.
type Emitter interface {
	Emit(*Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(*Event) {}

// CollectEmitter buffers emitted events in order. Intended for tests and for
// draining events into the RPC event feed.
type CollectEmitter struct {
	Events []*Event
}

// Emit implements the Emitter interface.
func (c *CollectEmitter) Emit(evt *Event) {
	if evt == nil {
		return
	}
	c.Events = append(c.Events, evt)
}
