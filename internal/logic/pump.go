package logic

// PumpController drives the pump channels and enforces the maximum on-time.
type PumpController struct {
	PumpOn   Timestamp
	Asserted bool
	Errors   uint32
	LastErr  error

	actuator Actuator
	channels []int
	maxOn    Duration
}

// NewPumpController creates a controller for the given channels.
func NewPumpController(actuator Actuator, channels []int, maxOn Duration) PumpController {
	return PumpController{actuator: actuator, channels: channels, maxOn: maxOn}
}

// Start arms the on-time measurement.
func (p *PumpController) Start(now Timestamp) {
	p.PumpOn = now
}

// Run keeps the pump asserted until the maximum on-time has elapsed, then
// deasserts it. It returns true once the cutoff has fired. The cutoff does
// not depend on any other state.
func (p *PumpController) Run(now Timestamp) bool {
	if now.Sub(p.PumpOn) >= p.maxOn {
		p.drive(false)
		return true
	}
	p.drive(true)
	return false
}

// Off drives every channel low.
func (p *PumpController) Off() {
	p.drive(false)
}

func (p *PumpController) drive(on bool) {
	p.Asserted = on
	for _, ch := range p.channels {
		if err := p.actuator.SetPump(ch, on); err != nil {
			p.Errors++
			p.LastErr = err
		}
	}
}
