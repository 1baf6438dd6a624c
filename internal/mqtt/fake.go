package mqtt

import "github.com/sweeney/irrigation-controller/internal/logic"

// FakePublisher records published messages for test assertions.
type FakePublisher struct {
	Cycles         []Cycle       // every cycle accepted by Publish
	Payloads       [][]byte      // JSON payload per accepted cycle
	SystemEvents   []SystemEvent // every event accepted by PublishSystem
	SystemPayloads [][]byte      // JSON payload per accepted event

	// PublishError and PublishSystemError, if set, reject the message.
	PublishError       error
	PublishSystemError error

	Closed    bool
	Connected bool // returned by IsConnected
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records the cycle and its formatted payload.
func (f *FakePublisher) Publish(cycle Cycle) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatPayload(cycle)
	if err != nil {
		return err
	}
	f.Cycles = append(f.Cycles, cycle)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishSystem records the event and its formatted payload.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// Records returns the controller records of every published cycle.
func (f *FakePublisher) Records() []logic.Record {
	recs := make([]logic.Record, len(f.Cycles))
	for i, c := range f.Cycles {
		recs[i] = c.Record
	}
	return recs
}

// SystemEventNames returns the Event field of every recorded system event.
func (f *FakePublisher) SystemEventNames() []string {
	names := make([]string, len(f.SystemEvents))
	for i, e := range f.SystemEvents {
		names[i] = e.Event
	}
	return names
}

// EventsNamed returns the recorded system events with the given name.
func (f *FakePublisher) EventsNamed(name string) []SystemEvent {
	var out []SystemEvent
	for _, e := range f.SystemEvents {
		if e.Event == name {
			out = append(out, e)
		}
	}
	return out
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports the Connected field.
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded messages and injected errors.
func (f *FakePublisher) Reset() {
	*f = FakePublisher{}
}
