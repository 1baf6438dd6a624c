package logic

// Controller is the control state machine. It owns all control state and is
// advanced one state per Step call. It is not safe for concurrent use.
type Controller struct {
	cfg   Config
	clock Clock
	state ControlState

	sched   ScheduleClock
	sampler Sampler
	sample  SampleRecord
	fault   FaultTracker
	pump    PumpController

	cycles uint64
}

// NewController creates a controller in the Init state.
func NewController(cfg Config, clock Clock, sensor Sensor, actuator Actuator) *Controller {
	return &Controller{
		cfg:     cfg,
		clock:   clock,
		state:   StateInit,
		sched:   NewScheduleClock(cfg.Period, cfg.Policy),
		sampler: NewSampler(clock, sensor, cfg.Budget),
		fault:   NewFaultTracker(cfg),
		pump:    NewPumpController(actuator, cfg.Channels, cfg.MaxPumpOn),
	}
}

// Step processes the current state once. It returns a Record when a
// sampling cycle completed during this step, nil otherwise.
func (c *Controller) Step() *Record {
	now := c.clock.Now()

	switch c.state {
	case StateInit:
		c.pump.Off()
		c.sched.Arm(now)
		c.state = StateIdle

	case StateIdle:
		if !c.sched.Due(now) {
			return nil
		}
		if c.fault.FaultFlag {
			c.state = StateFault
		} else {
			c.state = StateCheck
		}

	case StateCheck:
		return c.check(now)

	case StateWatering:
		if c.pump.Run(now) {
			c.sched.Arm(now)
			c.state = StateIdle
		}

	case StateFault:
		// Fault handling runs once per due cycle, like Check.
		if !c.sched.Due(now) {
			return nil
		}
		return c.handleFault(now)

	case StateRecovery:
		c.fault.Clear()
		c.sched.Reset()
		c.sample.BudgetMisses = 0
		c.sched.Arm(now)
		c.state = StateIdle
	}
	return nil
}

func (c *Controller) check(now Timestamp) *Record {
	c.sched.Fire(now)
	c.sampler.Sample(&c.sample)

	switch c.fault.Evaluate(&c.sample, c.sched.ScheduleMisses) {
	case VerdictTimerFault, VerdictSensorFault:
		c.state = StateFault
	case VerdictClean:
		if c.sample.MoistureValue >= c.cfg.DryThreshold {
			c.pump.Start(now)
			c.state = StateWatering
		} else {
			c.state = StateIdle
		}
	case VerdictSuspect:
		c.state = StateIdle
	}
	return c.record()
}

func (c *Controller) handleFault(now Timestamp) *Record {
	missed := c.sched.Fire(now)
	inBudget := c.sampler.Sample(&c.sample)

	var recovered bool
	switch c.fault.LastFaultCode {
	case FaultSensorInvalid:
		recovered = c.fault.CheckSensorRecovery(&c.sample)
	case FaultTimerInvalid:
		recovered = c.fault.CheckTimerRecovery(&c.sample, missed, inBudget)
	case FaultNone:
		// Unreachable while FaultFlag is set; treat as confirmed.
		recovered = true
	}

	if recovered {
		c.state = StateRecovery
	} else {
		c.state = StateIdle
	}
	return c.record()
}

func (c *Controller) record() *Record {
	c.cycles++
	return &Record{
		Cycle:          c.cycles,
		State:          c.state,
		Moisture:       c.sample.MoistureValue,
		SampleTime:     c.sample.SampleTime,
		MaxSampleTime:  c.sample.MaxSampleTime,
		ScheduleMisses: c.sched.ScheduleMisses,
		BudgetMisses:   c.sample.BudgetMisses,
		Lateness:       c.sched.Lateness,
		LastFaultCode:  c.fault.LastFaultCode,
		FaultCount:     c.fault.FaultCount,
		ReadErr:        c.sample.ReadErr,
	}
}

// Shutdown drives every pump channel low. The controller returns to Init.
func (c *Controller) Shutdown() {
	c.pump.Off()
	c.state = StateInit
}

// State returns the active control state.
func (c *Controller) State() ControlState {
	return c.state
}

// Status returns a copy of the controller's counters.
func (c *Controller) Status() Status {
	return Status{
		State:          c.state,
		Cycles:         c.cycles,
		Moisture:       c.sample.MoistureValue,
		LastMoisture:   c.sample.LastMoistureValue,
		SampleTime:     c.sample.SampleTime,
		MaxSampleTime:  c.sample.MaxSampleTime,
		ScheduleMisses: c.sched.ScheduleMisses,
		BudgetMisses:   c.sample.BudgetMisses,
		Lateness:       c.sched.Lateness,
		FaultFlag:      c.fault.FaultFlag,
		LastFaultCode:  c.fault.LastFaultCode,
		FaultCount:     c.fault.FaultCount,
		FaultConfirm:   c.fault.FaultConfirmCounter,
		RecoverConfirm: c.fault.RecoverConfirmCounter,
		PumpOn:         c.pump.Asserted,
		ActuatorErrors: c.pump.Errors,
	}
}

// NextRelease returns the current sampling deadline.
func (c *Controller) NextRelease() Timestamp {
	return c.sched.NextRelease
}
