package status

import (
	"encoding/json"
	"time"
)

// Health levels reported by /healthz.
const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
	HealthDown     = "down"
)

// minStallAge is the shortest cycle age treated as a stalled control loop.
const minStallAge = 5 * time.Second

// HealthJSON is the /healthz response body.
type HealthJSON struct {
	Status          string   `json:"status"`
	State           string   `json:"state"`
	LastCycleAgeSec float64  `json:"last_cycle_age_sec"`
	MQTTConnected   bool     `json:"mqtt_connected"`
	Problems        []string `json:"problems,omitempty"`
}

// Health classifies the snapshot. The daemon is down when no cycle has
// completed within stallAge, and degraded while a fault is latched, the broker is unreachable, or
// pump writes have failed.
func (s Snapshot) Health() HealthJSON {
	h := HealthJSON{
		State:         s.Control.State.String(),
		MQTTConnected: s.MQTTConnected,
	}

	stall := s.stallAge()
	last := s.LastCycleAt
	if last.IsZero() {
		last = s.StartTime
	}
	age := s.Now.Sub(last)
	h.LastCycleAgeSec = age.Seconds()

	if age > stall {
		h.Problems = append(h.Problems, "control loop stalled")
	}
	if s.Control.FaultFlag {
		h.Problems = append(h.Problems, "fault latched: "+s.Control.LastFaultCode.String())
	}
	if !s.MQTTConnected {
		h.Problems = append(h.Problems, "mqtt disconnected")
	}
	if s.Control.ActuatorErrors > 0 {
		h.Problems = append(h.Problems, "pump output errors")
	}

	switch {
	case age > stall:
		h.Status = HealthDown
	case len(h.Problems) > 0:
		h.Status = HealthDegraded
	default:
		h.Status = HealthOK
	}
	return h
}

// stallAge is the longest gap between completed cycles that is still
// normal: three periods, or a full watering run plus one period, and never
// less than minStallAge. No cycle record is produced while the pump runs.
func (s Snapshot) stallAge() time.Duration {
	period := time.Duration(s.Config.PeriodMs) * time.Millisecond
	stall := 3 * period
	if watering := time.Duration(s.Config.MaxPumpOnMs)*time.Millisecond + period; watering > stall {
		stall = watering
	}
	if stall < minStallAge {
		stall = minStallAge
	}
	return stall
}

// FormatHealth returns the JSON health report.
func FormatHealth(snap Snapshot) []byte {
	data, _ := json.Marshal(snap.Health())
	return data
}
