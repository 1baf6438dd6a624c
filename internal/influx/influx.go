// Package influx mirrors cycle records into InfluxDB as time series points.
package influx

import (
	"log"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/sweeney/irrigation-controller/internal/logic"
)

// Measurement is the measurement name used for cycle points.
const Measurement = "irrigation_cycle"

// pointWriter is the subset of api.WriteAPI the Writer uses.
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
	Errors() <-chan error
}

// Writer queues one point per cycle on the client's non-blocking write API.
// Failed batches are logged and counted; they never reach the control loop.
type Writer struct {
	api    pointWriter
	client influxdb2.Client

	mu      sync.Mutex
	errs    uint64
	lastErr error
	done    chan struct{}
}

// New connects a Writer to the given server, org, and bucket.
func New(url, token, org, bucket string) *Writer {
	opts := influxdb2.DefaultOptions().
		SetBatchSize(50).
		SetFlushInterval(1000)
	client := influxdb2.NewClientWithOptions(url, token, opts)
	w := newWriter(client.WriteAPI(org, bucket))
	w.client = client
	return w
}

func newWriter(api pointWriter) *Writer {
	w := &Writer{api: api, done: make(chan struct{})}
	go w.drainErrors()
	return w
}

func (w *Writer) drainErrors() {
	defer close(w.done)
	for err := range w.api.Errors() {
		if err == nil {
			continue
		}
		w.mu.Lock()
		w.errs++
		w.lastErr = err
		w.mu.Unlock()
		log.Printf("influx write error: %v", err)
	}
}

// Write queues the record as a point stamped at ts.
func (w *Writer) Write(ts time.Time, rec logic.Record) {
	w.api.WritePoint(Point(ts, rec))
}

// Errors returns the number of failed writes and the most recent error.
func (w *Writer) Errors() (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.errs, w.lastErr
}

// Close flushes queued points and closes the client.
func (w *Writer) Close() {
	w.api.Flush()
	if w.client != nil {
		w.client.Close()
	}
}

// Point converts a cycle record into an InfluxDB point.
func Point(ts time.Time, rec logic.Record) *write.Point {
	tags := map[string]string{
		"state":      rec.State.String(),
		"fault_code": rec.LastFaultCode.String(),
	}
	fields := map[string]interface{}{
		"cycle":           int64(rec.Cycle),
		"moisture":        int64(rec.Moisture),
		"sample_time_us":  int64(rec.SampleTime),
		"max_sample_us":   int64(rec.MaxSampleTime),
		"lateness_us":     int64(rec.Lateness),
		"schedule_misses": int64(rec.ScheduleMisses),
		"budget_misses":   int64(rec.BudgetMisses),
		"fault_count":     int64(rec.FaultCount),
		"read_error":      rec.ReadErr != nil,
	}
	return influxdb2.NewPoint(Measurement, tags, fields, ts)
}
