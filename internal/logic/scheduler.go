package logic

// ScheduleClock tracks the next sampling deadline and overrun accounting.
type ScheduleClock struct {
	NextRelease    Timestamp
	Lateness       Duration // only meaningful right after Fire
	ScheduleMisses uint32

	period Duration
	policy CatchUpPolicy
}

// NewScheduleClock creates a scheduler for the given period and catch-up policy.
func NewScheduleClock(period Duration, policy CatchUpPolicy) ScheduleClock {
	return ScheduleClock{period: period, policy: policy}
}

// Arm sets the next deadline one period after now.
func (s *ScheduleClock) Arm(now Timestamp) {
	s.NextRelease = now.Add(s.period)
}

// Due reports whether the next deadline has been reached.
func (s *ScheduleClock) Due(now Timestamp) bool {
	return now.Reached(s.NextRelease)
}

// Fire does the bookkeeping for a due cycle: it records lateness, counts
// whole periods missed, and advances the deadline per the catch-up policy.
// It returns the number of periods missed by this cycle.
func (s *ScheduleClock) Fire(now Timestamp) uint32 {
	s.Lateness = now.Sub(s.NextRelease)
	missed := uint32(s.Lateness / s.period)
	s.ScheduleMisses += missed

	switch s.policy {
	case FixedIncrement:
		s.NextRelease = s.NextRelease.Add(s.period)
	default:
		s.NextRelease = s.NextRelease.Add(Duration(missed+1) * s.period)
	}
	return missed
}

// Reset clears the overrun accumulators.
func (s *ScheduleClock) Reset() {
	s.ScheduleMisses = 0
	s.Lateness = 0
}
