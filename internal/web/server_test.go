package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/irrigation-controller/internal/logic"
	"github.com/sweeney/irrigation-controller/internal/metrics"
	"github.com/sweeney/irrigation-controller/internal/status"
)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker, *metrics.Collector) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		PeriodMs:     1000,
		BudgetUs:     5000,
		MaxPumpOnMs:  10000,
		ValidMax:     470,
		DryThreshold: 440,
		CatchUp:      "skip",
		PumpPins:     []int{17, 27},
		SensorPort:   "/dev/ttyUSB0",
		HeartbeatMs:  900000,
		Broker:       "tcp://192.168.1.200:1883",
		HTTPAddr:     ":80",
	}
	tr := status.NewTracker(start, cfg)
	m := metrics.New()
	srv := New(":0", tr, m.Handler())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tr, m
}

func getJSON(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.Update(logic.Status{State: logic.StateWatering, Moisture: 450, PumpOn: true, Cycles: 5})
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if sj.Status.State != "WATERING" {
		t.Errorf("State: got %q, want WATERING", sj.Status.State)
	}
	if sj.Status.Pump != "ON" {
		t.Errorf("Pump: got %q, want ON", sj.Status.Pump)
	}
	if sj.Status.Control.Moisture != 450 {
		t.Errorf("Moisture: got %d, want 450", sj.Status.Control.Moisture)
	}
	if sj.Status.Control.Cycles != 5 {
		t.Errorf("Cycles: got %d, want 5", sj.Status.Control.Cycles)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.MQTT.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("MQTT.Broker: got %q, want tcp://192.168.1.200:1883", sj.Status.MQTT.Broker)
	}
	if sj.Status.Config.PeriodMs != 1000 {
		t.Errorf("Config.PeriodMs: got %d, want 1000", sj.Status.Config.PeriodMs)
	}
	if len(sj.Status.Config.PumpPins) != 2 {
		t.Errorf("Config.PumpPins: got %v, want [17 27]", sj.Status.Config.PumpPins)
	}
}

func TestJSONInitBeforeFirstStep(t *testing.T) {
	ts, _, _ := newTestServer(t)

	sj := getJSON(t, ts.URL+"/index.json")
	if sj.Status.State != "INIT" {
		t.Errorf("State before first step: got %q, want INIT", sj.Status.State)
	}
	if sj.Status.Pump != "OFF" {
		t.Errorf("Pump before first step: got %q, want OFF", sj.Status.Pump)
	}
}

func TestJSONNetworkInfo(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.SetNetwork(&status.NetworkInfo{
		Type:   "wifi",
		IP:     "192.168.1.42",
		Status: "connected",
		SSID:   "MyNet",
	})

	sj := getJSON(t, ts.URL+"/index.json")
	if sj.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if sj.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", sj.Status.Network.IP)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.Update(logic.Status{
		State:         logic.StateIdle,
		Moisture:      612,
		FaultFlag:     true,
		LastFaultCode: logic.FaultSensorInvalid,
		FaultCount:    1,
	})

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"IDLE", "612", "SENSOR_INVALID", "17, 27", "/dev/ttyUSB0"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("HTML missing %q", want)
		}
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _, m := newTestServer(t)
	m.Observe(logic.Record{})
	m.Update(logic.Status{State: logic.StateIdle, Moisture: 300})

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "irrigation_cycles_total 1") {
		t.Errorf("metrics missing cycle counter:\n%s", body)
	}
}

func TestMetricsAbsentWithoutHandler(t *testing.T) {
	tr := status.NewTracker(time.Now(), status.Config{})
	srv := New(":0", tr, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr, _ := newTestServer(t)

	sj1 := getJSON(t, ts.URL+"/index.json")
	if sj1.Status.Control.Faulted {
		t.Error("expected no fault initially")
	}

	tr.Update(logic.Status{State: logic.StateFault, FaultFlag: true, LastFaultCode: logic.FaultTimerInvalid, FaultCount: 1})
	tr.SetMQTTConnected(true)

	sj2 := getJSON(t, ts.URL+"/index.json")
	if !sj2.Status.Control.Faulted {
		t.Error("expected fault after update")
	}
	if sj2.Status.Control.LastFaultCode != "TIMER_INVALID" {
		t.Errorf("LastFaultCode: got %q, want TIMER_INVALID", sj2.Status.Control.LastFaultCode)
	}
	if !sj2.Status.MQTT.Connected {
		t.Error("expected MQTT connected after update")
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.SetMQTTConnected(true)
	tr.MarkCycle(time.Now())

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	var h status.HealthJSON
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if h.Status != status.HealthOK {
		t.Errorf("health: got %q, want ok (problems %v)", h.Status, h.Problems)
	}
}

func TestHealthEndpointDegradedStillOK(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.MarkCycle(time.Now())
	tr.Update(logic.Status{State: logic.StateFault, FaultFlag: true, LastFaultCode: logic.FaultSensorInvalid})

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	var h status.HealthJSON
	json.NewDecoder(resp.Body).Decode(&h)
	if h.Status != status.HealthDegraded {
		t.Errorf("health: got %q, want degraded", h.Status)
	}
}

func TestHealthEndpointStalledLoop(t *testing.T) {
	// Tracker started an hour ago and has never seen a cycle.
	tr := status.NewTracker(time.Now().Add(-time.Hour), status.Config{PeriodMs: 1000})
	srv := New(":0", tr, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", resp.StatusCode)
	}
}

func TestServeOnListenerUntilShutdown(t *testing.T) {
	tr := status.NewTracker(time.Now(), status.Config{PeriodMs: 1000})
	srv := New("127.0.0.1:0", tr, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	select {
	case err := <-served:
		if !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("Serve returned %v, want ErrServerClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}
