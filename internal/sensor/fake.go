package sensor

import "errors"

// FakeReader is a test double that returns scripted readings.
type FakeReader struct {
	// Values contains scripted readings. Each call to ReadMoisture consumes
	// the next one; the last repeats once exhausted.
	Values []uint16

	// Errors maps a call index to an error returned instead of a value.
	Errors map[int]error

	// Reads counts calls to ReadMoisture.
	Reads int

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeReader creates a FakeReader with the given readings.
func NewFakeReader(values ...uint16) *FakeReader {
	return &FakeReader{Values: values}
}

// ReadMoisture returns the next scripted reading.
func (f *FakeReader) ReadMoisture() (uint16, error) {
	i := f.Reads
	f.Reads++
	if err := f.Errors[i]; err != nil {
		return 0, err
	}
	if len(f.Values) == 0 {
		return 0, errors.New("no readings configured")
	}
	if i >= len(f.Values) {
		i = len(f.Values) - 1
	}
	return f.Values[i], nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}
