// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/irrigation-controller/internal/logic"
)

// Topic is the MQTT topic for per-cycle controller records.
const Topic = "garden/irrigation/controller/cycles"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "garden/irrigation/controller/system"

// Publisher publishes controller output to MQTT.
type Publisher interface {
	// Publish sends a completed sampling cycle to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(cycle Cycle) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Cycle is a controller record stamped with wall-clock time.
type Cycle struct {
	Timestamp time.Time
	Record    logic.Record
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT", "FAULT", "RECOVERED"
	Reason     string // e.g., "SIGTERM", "SENSOR_INVALID"
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Irrigation CyclePayload `json:"irrigation"`
}

// CyclePayload contains the cycle record fields.
type CyclePayload struct {
	Timestamp       string `json:"timestamp"`
	Cycle           uint64 `json:"cycle"`
	State           string `json:"state"`
	Moisture        uint16 `json:"moisture"`
	SampleTimeUs    uint32 `json:"sample_time_us"`
	MaxSampleTimeUs uint32 `json:"max_sample_time_us"`
	ScheduleMisses  uint32 `json:"schedule_misses"`
	BudgetMisses    uint32 `json:"budget_misses"`
	LatenessUs      uint32 `json:"lateness_us"`
	LastFaultCode   string `json:"last_fault_code"`
	FaultCount      uint32 `json:"fault_count"`
	ReadError       string `json:"read_error,omitempty"`
}

// FormatPayload creates the JSON payload for a cycle record.
func FormatPayload(cycle Cycle) ([]byte, error) {
	r := cycle.Record
	p := CyclePayload{
		Timestamp:       cycle.Timestamp.UTC().Format(time.RFC3339Nano),
		Cycle:           r.Cycle,
		State:           r.State.String(),
		Moisture:        r.Moisture,
		SampleTimeUs:    uint32(r.SampleTime),
		MaxSampleTimeUs: uint32(r.MaxSampleTime),
		ScheduleMisses:  r.ScheduleMisses,
		BudgetMisses:    r.BudgetMisses,
		LatenessUs:      uint32(r.Lateness),
		LastFaultCode:   r.LastFaultCode.String(),
		FaultCount:      r.FaultCount,
	}
	if r.ReadErr != nil {
		p.ReadError = r.ReadErr.Error()
	}
	return json.Marshal(Payload{Irrigation: p})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
