package logic

import "fmt"

// manualClock returns whatever time the test last set.
type manualClock struct {
	t Timestamp
}

func (c *manualClock) Now() Timestamp { return c.t }

// scriptSensor returns scripted readings, advancing the clock by latency on
// every read. The last reading repeats once the script is exhausted.
type scriptSensor struct {
	clock   *manualClock
	values  []uint16
	errs    map[int]error // read index -> error
	latency Duration
	reads   int
}

func (s *scriptSensor) ReadMoisture() (uint16, error) {
	i := s.reads
	s.reads++
	s.clock.t = s.clock.t.Add(s.latency)
	if err := s.errs[i]; err != nil {
		return 0, err
	}
	if i >= len(s.values) {
		i = len(s.values) - 1
	}
	return s.values[i], nil
}

type pumpWrite struct {
	channel int
	on      bool
}

// recordingActuator records every write and the current level per channel.
type recordingActuator struct {
	writes []pumpWrite
	level  map[int]bool
	err    error
}

func newRecordingActuator() *recordingActuator {
	return &recordingActuator{level: make(map[int]bool)}
}

func (a *recordingActuator) SetPump(channel int, on bool) error {
	if a.err != nil {
		return a.err
	}
	a.writes = append(a.writes, pumpWrite{channel: channel, on: on})
	a.level[channel] = on
	return nil
}

func (a *recordingActuator) anyOn() bool {
	for _, on := range a.level {
		if on {
			return true
		}
	}
	return false
}

func (w pumpWrite) String() string {
	return fmt.Sprintf("ch%d=%v", w.channel, w.on)
}
