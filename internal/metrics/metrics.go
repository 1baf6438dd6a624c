// Package metrics exposes controller counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/irrigation-controller/internal/logic"
)

const namespace = "irrigation"

// Collector holds the controller metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	cycles         prometheus.Counter
	readErrors     prometheus.Counter
	moisture       prometheus.Gauge
	sampleTime     prometheus.Gauge
	maxSampleTime  prometheus.Gauge
	lateness       prometheus.Gauge
	scheduleMisses prometheus.Gauge
	budgetMisses   prometheus.Gauge
	faultCount     prometheus.Gauge
	faulted        prometheus.Gauge
	pumpOn         prometheus.Gauge
	actuatorErrors prometheus.Gauge
	historyErrors  prometheus.Gauge
	state          *prometheus.GaugeVec
	faultCode      *prometheus.GaugeVec
}

var states = []logic.ControlState{
	logic.StateInit, logic.StateIdle, logic.StateCheck,
	logic.StateWatering, logic.StateFault, logic.StateRecovery,
}

var faultCodes = []logic.FaultCode{
	logic.FaultNone, logic.FaultSensorInvalid, logic.FaultTimerInvalid,
}

func gauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
}

// New creates a Collector and registers its metrics.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "cycles_total",
			Help: "Sampling cycles completed.",
		}),
		readErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "read_errors_total",
			Help: "Sensor reads that returned an error.",
		}),
		moisture:       gauge("moisture", "Most recent raw moisture reading."),
		sampleTime:     gauge("sample_time_microseconds", "Duration of the most recent sensor read."),
		maxSampleTime:  gauge("max_sample_time_microseconds", "Longest sensor read observed."),
		lateness:       gauge("lateness_microseconds", "Lateness of the most recent cycle."),
		scheduleMisses: gauge("schedule_misses", "Whole periods missed since the last recovery."),
		budgetMisses:   gauge("budget_misses", "Reads over budget since the last recovery."),
		faultCount:     gauge("fault_count", "Faults latched since start."),
		faulted:        gauge("faulted", "1 while a fault is latched."),
		pumpOn:         gauge("pump_on", "1 while the pump output is asserted."),
		actuatorErrors: gauge("actuator_errors", "Failed pump output writes since start."),
		historyErrors:  gauge("influx_write_errors", "Failed InfluxDB history writes since start."),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "state",
			Help: "1 for the active control state.",
		}, []string{"state"}),
		faultCode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_fault_code",
			Help: "1 for the most recently latched fault code.",
		}, []string{"code"}),
	}

	c.registry.MustRegister(
		c.cycles, c.readErrors, c.moisture, c.sampleTime, c.maxSampleTime,
		c.lateness, c.scheduleMisses, c.budgetMisses, c.faultCount, c.faulted,
		c.pumpOn, c.actuatorErrors, c.historyErrors, c.state, c.faultCode,
	)
	c.setState(logic.StateInit)
	c.setFaultCode(logic.FaultNone)
	return c
}

// Observe records one completed cycle.
func (c *Collector) Observe(rec logic.Record) {
	c.cycles.Inc()
	if rec.ReadErr != nil {
		c.readErrors.Inc()
	}
	c.sampleTime.Set(float64(rec.SampleTime))
	c.lateness.Set(float64(rec.Lateness))
}

// Update mirrors the controller status into the gauges.
func (c *Collector) Update(st logic.Status) {
	c.moisture.Set(float64(st.Moisture))
	c.maxSampleTime.Set(float64(st.MaxSampleTime))
	c.scheduleMisses.Set(float64(st.ScheduleMisses))
	c.budgetMisses.Set(float64(st.BudgetMisses))
	c.faultCount.Set(float64(st.FaultCount))
	c.faulted.Set(boolValue(st.FaultFlag))
	c.pumpOn.Set(boolValue(st.PumpOn))
	c.actuatorErrors.Set(float64(st.ActuatorErrors))
	c.setState(st.State)
	c.setFaultCode(st.LastFaultCode)
}

// SetHistoryErrors records the number of failed history writes.
func (c *Collector) SetHistoryErrors(n uint64) {
	c.historyErrors.Set(float64(n))
}

// Registry returns the registry holding the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) setState(active logic.ControlState) {
	for _, s := range states {
		c.state.WithLabelValues(s.String()).Set(boolValue(s == active))
	}
}

func (c *Collector) setFaultCode(active logic.FaultCode) {
	for _, f := range faultCodes {
		c.faultCode.WithLabelValues(f.String()).Set(boolValue(f == active))
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
