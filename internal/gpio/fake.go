package gpio

// Write is a single recorded output change.
type Write struct {
	Channel int
	On      bool
}

// FakeDriver is a test double that records pump writes.
type FakeDriver struct {
	// Writes contains every SetPump call in order.
	Writes []Write

	// Levels holds the current level per channel.
	Levels map[int]bool

	// Closed tracks if Close was called
	Closed bool

	// SetError, if set, will be returned by SetPump()
	SetError error
}

// NewFakeDriver creates a FakeDriver with all channels low.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{Levels: make(map[int]bool)}
}

// SetPump records the write.
func (f *FakeDriver) SetPump(channel int, on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.Writes = append(f.Writes, Write{Channel: channel, On: on})
	f.Levels[channel] = on
	return nil
}

// AnyOn reports whether any channel is currently driven high.
func (f *FakeDriver) AnyOn() bool {
	for _, on := range f.Levels {
		if on {
			return true
		}
	}
	return false
}

// Close drives every channel low and marks the driver as closed.
func (f *FakeDriver) Close() error {
	for ch := range f.Levels {
		f.Levels[ch] = false
	}
	f.Closed = true
	return nil
}

// Reset clears recorded writes.
func (f *FakeDriver) Reset() {
	f.Writes = nil
	f.Levels = make(map[int]bool)
	f.Closed = false
	f.SetError = nil
}
