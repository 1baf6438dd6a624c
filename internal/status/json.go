package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	State         string       `json:"state"`
	Pump          string       `json:"pump"`
	Control       ControlJSON  `json:"control"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	LastCycle     string       `json:"last_cycle,omitempty"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// ControlJSON is the JSON representation of the controller counters.
type ControlJSON struct {
	Cycles          uint64 `json:"cycles"`
	Moisture        uint16 `json:"moisture"`
	SampleTimeUs    uint32 `json:"sample_time_us"`
	MaxSampleTimeUs uint32 `json:"max_sample_time_us"`
	ScheduleMisses  uint32 `json:"schedule_misses"`
	BudgetMisses    uint32 `json:"budget_misses"`
	LatenessUs      uint32 `json:"lateness_us"`
	Faulted         bool   `json:"faulted"`
	LastFaultCode   string `json:"last_fault_code"`
	FaultCount      uint32 `json:"fault_count"`
	FaultConfirm    int    `json:"fault_confirm"`
	RecoverConfirm  int    `json:"recover_confirm"`
	ActuatorErrors  uint32 `json:"actuator_errors"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PeriodMs       int64  `json:"period_ms"`
	BudgetUs       int64  `json:"budget_us"`
	MaxPumpOnMs    int64  `json:"max_pump_on_ms"`
	ValidMin       uint16 `json:"valid_min"`
	ValidMax       uint16 `json:"valid_max"`
	DryThreshold   uint16 `json:"dry_threshold"`
	DeltaThreshold uint16 `json:"delta_threshold"`
	FaultConfirm   int    `json:"fault_confirm"`
	RecoverConfirm int    `json:"recover_confirm"`
	CatchUp        string `json:"catch_up"`
	PumpPins       []int  `json:"pump_pins"`
	SensorPort     string `json:"sensor_port"`
	HeartbeatMs    int64  `json:"heartbeat_ms"`
	Broker         string `json:"broker"`
	HTTPAddr       string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	c := snap.Control
	pump := "OFF"
	if c.PumpOn {
		pump = "ON"
	}

	inner := StatusInner{
		State: c.State.String(),
		Pump:  pump,
		Control: ControlJSON{
			Cycles:          c.Cycles,
			Moisture:        c.Moisture,
			SampleTimeUs:    uint32(c.SampleTime),
			MaxSampleTimeUs: uint32(c.MaxSampleTime),
			ScheduleMisses:  c.ScheduleMisses,
			BudgetMisses:    c.BudgetMisses,
			LatenessUs:      uint32(c.Lateness),
			Faulted:         c.FaultFlag,
			LastFaultCode:   c.LastFaultCode.String(),
			FaultCount:      c.FaultCount,
			FaultConfirm:    c.FaultConfirm,
			RecoverConfirm:  c.RecoverConfirm,
			ActuatorErrors:  c.ActuatorErrors,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			PeriodMs:       snap.Config.PeriodMs,
			BudgetUs:       snap.Config.BudgetUs,
			MaxPumpOnMs:    snap.Config.MaxPumpOnMs,
			ValidMin:       snap.Config.ValidMin,
			ValidMax:       snap.Config.ValidMax,
			DryThreshold:   snap.Config.DryThreshold,
			DeltaThreshold: snap.Config.DeltaThreshold,
			FaultConfirm:   snap.Config.FaultConfirm,
			RecoverConfirm: snap.Config.RecoverConfirm,
			CatchUp:        snap.Config.CatchUp,
			PumpPins:       snap.Config.PumpPins,
			SensorPort:     snap.Config.SensorPort,
			HeartbeatMs:    snap.Config.HeartbeatMs,
			Broker:         snap.Config.Broker,
			HTTPAddr:       snap.Config.HTTPAddr,
		},
	}
	if !snap.LastCycleAt.IsZero() {
		inner.LastCycle = snap.LastCycleAt.UTC().Format(time.RFC3339)
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
