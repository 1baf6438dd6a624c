// Package logic contains the pure control logic for the irrigation controller.
// This package has NO external dependencies (no GPIO, MQTT, serial, OS, or time.Sleep).
// Time is always injectable via the Clock interface.
package logic

// Timestamp is a reading of a wrapping microsecond counter.
type Timestamp uint32

// Duration is an elapsed number of microseconds.
type Duration uint32

// Sub returns t-u using wraparound arithmetic. The result is correct as long
// as the real elapsed time is less than one full counter width.
func (t Timestamp) Sub(u Timestamp) Duration {
	return Duration(t - u)
}

// Add returns t+d, wrapping at the counter width.
func (t Timestamp) Add(d Duration) Timestamp {
	return t + Timestamp(d)
}

// Reached reports whether t is at or past deadline. The signed difference
// tolerates one wraparound between the two readings.
func (t Timestamp) Reached(deadline Timestamp) bool {
	return int32(t-deadline) >= 0
}

// Clock is a monotonically increasing microsecond counter.
type Clock interface {
	Now() Timestamp
}

// Sensor performs one synchronous moisture read.
// Out-of-range values are valid wire values; the controller judges them.
type Sensor interface {
	ReadMoisture() (uint16, error)
}

// Actuator drives one pump output channel.
type Actuator interface {
	SetPump(channel int, on bool) error
}

// ControlState is the active state of the control state machine.
type ControlState int

const (
	StateInit ControlState = iota
	StateIdle
	StateCheck
	StateWatering
	StateFault
	StateRecovery
)

func (s ControlState) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateIdle:
		return "IDLE"
	case StateCheck:
		return "CHECK"
	case StateWatering:
		return "WATERING"
	case StateFault:
		return "FAULT"
	case StateRecovery:
		return "RECOVERY"
	default:
		return "UNKNOWN"
	}
}

// FaultCode identifies the cause of a latched fault.
type FaultCode int

const (
	FaultNone FaultCode = iota
	FaultSensorInvalid
	FaultTimerInvalid
)

func (f FaultCode) String() string {
	switch f {
	case FaultNone:
		return "NONE"
	case FaultSensorInvalid:
		return "SENSOR_INVALID"
	case FaultTimerInvalid:
		return "TIMER_INVALID"
	default:
		return "UNKNOWN"
	}
}

// CatchUpPolicy selects how the scheduler advances a missed deadline.
type CatchUpPolicy int

const (
	// SkipAhead moves the deadline past the present, dropping missed periods.
	SkipAhead CatchUpPolicy = iota
	// FixedIncrement advances by exactly one period per fired cycle.
	FixedIncrement
)

func (p CatchUpPolicy) String() string {
	switch p {
	case SkipAhead:
		return "skip"
	case FixedIncrement:
		return "fixed"
	default:
		return "unknown"
	}
}

// Config holds the controller constants. It is fixed for the life of a Controller.
type Config struct {
	Period            Duration
	Budget            Duration
	ValidMin          uint16
	ValidMax          uint16
	DryThreshold      uint16
	DeltaThreshold    uint16
	FaultConfirm      int
	RecoverConfirm    int
	MaxScheduleMisses uint32
	MaxBudgetMisses   uint32
	MaxPumpOn         Duration
	Policy            CatchUpPolicy
	Channels          []int
}

// Record is the per-cycle diagnostic record handed to the log sink.
type Record struct {
	Cycle          uint64
	State          ControlState // state the machine moved to at the end of the cycle
	Moisture       uint16
	SampleTime     Duration
	MaxSampleTime  Duration
	ScheduleMisses uint32
	BudgetMisses   uint32
	Lateness       Duration
	LastFaultCode  FaultCode
	FaultCount     uint32
	ReadErr        error
}

// Status is a point-in-time copy of the controller's counters.
type Status struct {
	State          ControlState
	Cycles         uint64
	Moisture       uint16
	LastMoisture   uint16
	SampleTime     Duration
	MaxSampleTime  Duration
	ScheduleMisses uint32
	BudgetMisses   uint32
	Lateness       Duration
	FaultFlag      bool
	LastFaultCode  FaultCode
	FaultCount     uint32
	FaultConfirm   int
	RecoverConfirm int
	PumpOn         bool
	ActuatorErrors uint32
}
