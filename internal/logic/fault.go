package logic

// Verdict is the outcome of evaluating one sample in the Check state.
type Verdict int

const (
	// VerdictClean means the sample is usable.
	VerdictClean Verdict = iota
	// VerdictSuspect means the sample is anomalous but not yet confirmed.
	VerdictSuspect
	// VerdictSensorFault means a sensor fault has just latched.
	VerdictSensorFault
	// VerdictTimerFault means a timer fault has just latched.
	VerdictTimerFault
)

// FaultState is the latched fault condition and its hysteresis counters.
type FaultState struct {
	LastFaultCode         FaultCode
	FaultFlag             bool
	FaultConfirmCounter   int
	RecoverConfirmCounter int
	FaultCount            uint32 // lifetime total
}

// FaultTracker judges samples and timing, debouncing both entry into and
// exit from a fault.
type FaultTracker struct {
	FaultState

	validMin, validMax uint16
	delta              uint16
	faultConfirm       int
	recoverConfirm     int
	maxScheduleMisses  uint32
	maxBudgetMisses    uint32

	// hasReference is false for the first sample since start, since a fault
	// latched, and since recovery; continuity is not judged for that sample.
	hasReference bool
}

// NewFaultTracker creates a tracker from the thresholds in cfg.
func NewFaultTracker(cfg Config) FaultTracker {
	return FaultTracker{
		validMin:          cfg.ValidMin,
		validMax:          cfg.ValidMax,
		delta:             cfg.DeltaThreshold,
		faultConfirm:      cfg.FaultConfirm,
		recoverConfirm:    cfg.RecoverConfirm,
		maxScheduleMisses: cfg.MaxScheduleMisses,
		maxBudgetMisses:   cfg.MaxBudgetMisses,
	}
}

// Evaluate classifies a sample taken in the Check state.
// Timer overruns take precedence over the sensor classification.
func (f *FaultTracker) Evaluate(rec *SampleRecord, scheduleMisses uint32) Verdict {
	suspect := f.observe(rec)

	if scheduleMisses > f.maxScheduleMisses || rec.BudgetMisses > f.maxBudgetMisses {
		f.latch(FaultTimerInvalid)
		return VerdictTimerFault
	}

	if !suspect {
		f.FaultConfirmCounter = 0
		return VerdictClean
	}

	f.FaultConfirmCounter++
	if f.FaultConfirmCounter >= f.faultConfirm {
		f.latch(FaultSensorInvalid)
		return VerdictSensorFault
	}
	return VerdictSuspect
}

// CheckSensorRecovery judges a sample taken while a sensor fault is latched.
// It reports whether recovery has been confirmed.
func (f *FaultTracker) CheckSensorRecovery(rec *SampleRecord) bool {
	suspect := f.observe(rec)
	return f.confirmRecovery(!suspect)
}

// CheckTimerRecovery judges one cycle's timing while a timer fault is latched.
// The cycle is clean when it missed no whole period and the read met its budget.
func (f *FaultTracker) CheckTimerRecovery(rec *SampleRecord, missed uint32, inBudget bool) bool {
	f.observe(rec)
	return f.confirmRecovery(missed == 0 && inBudget)
}

// Clear unlatches the fault and zeroes the hysteresis counters.
// LastFaultCode and FaultCount are kept for diagnostics.
func (f *FaultTracker) Clear() {
	f.FaultFlag = false
	f.FaultConfirmCounter = 0
	f.RecoverConfirmCounter = 0
	f.hasReference = false
}

// observe applies the validity and continuity checks and updates the
// continuity reference. It reports whether the sample is anomalous.
func (f *FaultTracker) observe(rec *SampleRecord) bool {
	if rec.ReadErr != nil {
		return true
	}

	v := rec.MoistureValue
	suspect := v < f.validMin || v > f.validMax
	if f.hasReference && absDiff(v, rec.LastMoistureValue) > f.delta {
		suspect = true
	}

	rec.LastMoistureValue = v
	f.hasReference = true
	return suspect
}

func (f *FaultTracker) latch(code FaultCode) {
	f.LastFaultCode = code
	f.FaultFlag = true
	f.FaultCount++
	f.FaultConfirmCounter = 0
	f.RecoverConfirmCounter = 0
	f.hasReference = false
}

func (f *FaultTracker) confirmRecovery(clean bool) bool {
	if !clean {
		f.RecoverConfirmCounter = 0
		return false
	}
	f.RecoverConfirmCounter++
	return f.RecoverConfirmCounter > f.recoverConfirm
}

func absDiff(a, b uint16) uint16 {
	if a > b {
		return a - b
	}
	return b - a
}
