package logic

// SampleRecord holds the most recent reading and its timing.
type SampleRecord struct {
	MoistureValue     uint16
	LastMoistureValue uint16
	SampleTime        Duration
	MaxSampleTime     Duration
	BudgetMisses      uint32
	ReadErr           error
}

// Sampler performs one timed sensor read per call.
type Sampler struct {
	clock  Clock
	sensor Sensor
	budget Duration
}

// NewSampler creates a sampler that times reads against budget.
func NewSampler(clock Clock, sensor Sensor, budget Duration) Sampler {
	return Sampler{clock: clock, sensor: sensor, budget: budget}
}

// Sample reads the sensor once into rec and classifies the read time.
// It reports whether the read finished inside the budget.
// LastMoistureValue is left for the fault tracker to update.
func (s Sampler) Sample(rec *SampleRecord) bool {
	start := s.clock.Now()
	v, err := s.sensor.ReadMoisture()
	end := s.clock.Now()

	rec.MoistureValue = v
	rec.ReadErr = err
	rec.SampleTime = end.Sub(start)
	if rec.SampleTime > rec.MaxSampleTime {
		rec.MaxSampleTime = rec.SampleTime
	}
	if rec.SampleTime >= s.budget {
		rec.BudgetMisses++
		return false
	}
	return true
}
