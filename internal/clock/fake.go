package clock

import "github.com/sweeney/irrigation-controller/internal/logic"

// Fake is a manually advanced clock for tests.
type Fake struct {
	T logic.Timestamp
	// Step, if non-zero, is added after every Now call.
	Step logic.Duration
}

// NewFake creates a Fake reading start.
func NewFake(start logic.Timestamp) *Fake {
	return &Fake{T: start}
}

// Now returns the current fake time, then advances it by Step.
func (f *Fake) Now() logic.Timestamp {
	t := f.T
	f.T = f.T.Add(f.Step)
	return t
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d logic.Duration) {
	f.T = f.T.Add(d)
}

// Set moves the clock to t.
func (f *Fake) Set(t logic.Timestamp) {
	f.T = t
}
