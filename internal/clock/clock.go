// Package clock provides the wrapping microsecond counter the controller runs on.
package clock

import (
	"time"

	"github.com/sweeney/irrigation-controller/internal/logic"
)

// Monotonic counts microseconds since it was created, truncated to 32 bits
// so it wraps the way a microcontroller timer does (about every 71.6 minutes).
type Monotonic struct {
	start time.Time
}

// NewMonotonic creates a counter starting at zero.
func NewMonotonic() *Monotonic {
	return &Monotonic{start: time.Now()}
}

// NewMonotonicAt creates a counter that reads offset at creation time.
// Useful to exercise the wrap soon after startup.
func NewMonotonicAt(offset logic.Timestamp) *Monotonic {
	return &Monotonic{start: time.Now().Add(-time.Duration(offset) * time.Microsecond)}
}

// Now returns the current counter value.
func (m *Monotonic) Now() logic.Timestamp {
	return logic.Timestamp(uint32(time.Since(m.start).Microseconds()))
}
