// Command irrigation-controller samples soil moisture, drives the pump relay,
// and publishes per-cycle diagnostics to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/irrigation-controller/internal/clock"
	"github.com/sweeney/irrigation-controller/internal/config"
	"github.com/sweeney/irrigation-controller/internal/gpio"
	"github.com/sweeney/irrigation-controller/internal/influx"
	"github.com/sweeney/irrigation-controller/internal/logic"
	"github.com/sweeney/irrigation-controller/internal/metrics"
	"github.com/sweeney/irrigation-controller/internal/mqtt"
	"github.com/sweeney/irrigation-controller/internal/sensor"
	"github.com/sweeney/irrigation-controller/internal/status"
	"github.com/sweeney/irrigation-controller/internal/web"
)

func main() {
	configPath := flag.String("config", "/etc/irrigation-controller.yaml", "YAML config file (defaults apply if missing)")
	broker := flag.String("broker", "", "MQTT broker address (overrides config)")
	httpAddr := flag.String("http", "", "HTTP status address, empty to disable (overrides config)")
	port := flag.String("sensor", "", "Serial port of the moisture ADC bridge (overrides config)")
	step := flag.Duration("step", 0, "Controller step cadence (overrides config)")
	heartbeat := flag.Duration("heartbeat", 0, "Heartbeat interval, 0 to disable (overrides config)")
	printState := flag.Bool("print-state", false, "Read the sensor once, print it, and exit")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	// Only flags given on the command line override the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "broker":
			cfg.MQTT.Broker = *broker
		case "http":
			cfg.HTTP.Addr = *httpAddr
		case "sensor":
			cfg.Sensor.Port = *port
		case "step":
			cfg.Loop.Step = *step
		case "heartbeat":
			cfg.Loop.Heartbeat = *heartbeat
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("fatal: invalid config: %v", err)
	}

	if err := run(cfg, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg *config.Config, printState bool) error {
	openCtx, stopOpen := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	reader, err := sensor.OpenSerial(openCtx, cfg.Sensor.Port, cfg.Sensor.BaudRate, cfg.Sensor.ReadTimeout)
	stopOpen()
	if err != nil {
		return fmt.Errorf("init sensor: %w", err)
	}
	defer reader.Close()

	// Print state mode
	if printState {
		v, err := reader.ReadMoisture()
		if err != nil {
			return fmt.Errorf("read sensor: %w", err)
		}
		fmt.Printf("moisture: %d (valid %d..%d, dry at %d)\n",
			v, cfg.Control.ValidMin, cfg.Control.ValidMax, cfg.Control.DryThreshold)
		return nil
	}

	// Initialize GPIO
	driver, err := gpio.NewRealDriver(cfg.Pump.Chip, cfg.Pump.Pins)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer func() {
		if err := driver.Close(); err != nil {
			log.Printf("gpio close: %v", err)
		}
	}()

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Buffer)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	ctl := logic.NewController(cfg.Logic(), clock.NewMonotonic(), reader, driver)

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	if ni := readNetworkInfo(); ni != nil {
		tracker.SetNetwork(ni)
	}
	tracker.SetMQTTConnected(publisher.IsConnected())

	collector := metrics.New()
	out := sinks{metrics: collector}
	if cfg.Influx.URL != "" {
		w := influx.New(cfg.Influx.URL, cfg.Influx.Token, cfg.Influx.Org, cfg.Influx.Bucket)
		defer w.Close()
		out.history = w
		log.Printf("influx history enabled: %s bucket=%s", cfg.Influx.URL, cfg.Influx.Bucket)
	}

	// Publish startup event with full status snapshot
	publishSystem(publisher, tracker, "STARTUP", "", true)

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, collector.Handler())
		ln, err := net.Listen("tcp", cfg.HTTP.Addr)
		if err != nil {
			return fmt.Errorf("http listen %s: %w", cfg.HTTP.Addr, err)
		}
		go func() {
			if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	cc := cfg.Control
	log.Printf("started: period=%v budget=%v dry=%d valid=%d..%d max_pump_on=%v catch_up=%s pins=%v broker=%s",
		cc.Period, cc.Budget, cc.DryThreshold, cc.ValidMin, cc.ValidMax, cc.MaxPumpOn, cc.CatchUp, cfg.Pump.Pins, cfg.MQTT.Broker)

	ticker := time.NewTicker(cfg.Loop.Step)
	defer ticker.Stop()

	var hbTick <-chan time.Time
	if cfg.Loop.Heartbeat > 0 {
		hb := time.NewTicker(cfg.Loop.Heartbeat)
		defer hb.Stop()
		hbTick = hb.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(ctl, publisher, publisher, tracker, out, time.Now, ticker.C, hbTick, sigCh)
}

// historyWriter stores cycle records outside the process.
type historyWriter interface {
	Write(ts time.Time, rec logic.Record)
	Errors() (uint64, error)
}

// sinks are the optional per-cycle consumers besides MQTT.
type sinks struct {
	metrics *metrics.Collector
	history historyWriter
}

// maxStepsPerTick bounds the state transitions run for one tick. A sampling
// cycle needs two (Idle then Check or Fault), so a due deadline is served
// within the tick that notices it.
const maxStepsPerTick = 4

func runLoop(ctl *logic.Controller, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, out sinks, now func() time.Time, tick, hbTick <-chan time.Time, sig <-chan os.Signal) error {
	var faultCount uint32
	pumpOn := false

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			ctl.Shutdown()
			tracker.Update(ctl.Status())

			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
			publishSystem(publisher, tracker, "SHUTDOWN", signalName, true)
			return nil

		case <-hbTick:
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
			// Refresh network info for heartbeat
			if ni := readNetworkInfo(); ni != nil {
				tracker.SetNetwork(ni)
			}
			st := ctl.Status()
			tracker.Update(st)
			log.Printf("heartbeat: state=%s cycles=%d moisture=%d faults=%d max_sample=%dus",
				st.State, st.Cycles, st.Moisture, st.FaultCount, st.MaxSampleTime)
			publishSystem(publisher, tracker, "HEARTBEAT", "", false)

		case <-tick:
			for i := 0; i < maxStepsPerTick; i++ {
				prev := ctl.State()
				rec := ctl.Step()
				if rec != nil {
					t := now()
					handleCycle(*rec, t, publisher, tracker, out)

					if rec.FaultCount > faultCount {
						faultCount = rec.FaultCount
						log.Printf("fault latched: %s (total %d)", rec.LastFaultCode, rec.FaultCount)
						tracker.Update(ctl.Status())
						publishSystem(publisher, tracker, "FAULT", rec.LastFaultCode.String(), false)
					}
					if rec.State == logic.StateRecovery {
						log.Printf("fault recovered: %s", rec.LastFaultCode)
						tracker.Update(ctl.Status())
						publishSystem(publisher, tracker, "RECOVERED", rec.LastFaultCode.String(), false)
					}
				}
				if rec == nil && ctl.State() == prev {
					break
				}
			}

			st := ctl.Status()
			if st.PumpOn != pumpOn {
				pumpOn = st.PumpOn
				log.Printf("pump %s (moisture=%d)", onOff(pumpOn), st.Moisture)
			}

			// Update status tracker for HTTP/metrics consumers
			tracker.Update(st)
			if out.metrics != nil {
				out.metrics.Update(st)
				if out.history != nil {
					n, _ := out.history.Errors()
					out.metrics.SetHistoryErrors(n)
				}
			}
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
		}
	}
}

// handleCycle fans one completed cycle out to the log and every sink.
func handleCycle(rec logic.Record, t time.Time, publisher mqtt.Publisher, tracker *status.Tracker, out sinks) {
	if rec.ReadErr != nil {
		log.Printf("cycle %d: sensor read error: %v", rec.Cycle, rec.ReadErr)
	}
	log.Printf("cycle %d: state=%s moisture=%d sample=%dus max_sample=%dus late=%dus sched_misses=%d budget_misses=%d fault=%s faults=%d",
		rec.Cycle, rec.State, rec.Moisture, rec.SampleTime, rec.MaxSampleTime, rec.Lateness,
		rec.ScheduleMisses, rec.BudgetMisses, rec.LastFaultCode, rec.FaultCount)

	if err := publisher.Publish(mqtt.Cycle{Timestamp: t, Record: rec}); err != nil {
		log.Printf("publish error: %v", err)
		// Don't stop the control loop on publish failure
	}
	if out.metrics != nil {
		out.metrics.Observe(rec)
	}
	if out.history != nil {
		out.history.Write(t, rec)
	}
	tracker.MarkCycle(t)
}

func publishSystem(publisher mqtt.Publisher, tracker *status.Tracker, event, reason string, retained bool) {
	snap := tracker.Snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := publisher.PublishSystem(ev); err != nil {
		log.Printf("failed to publish %s event: %v", event, err)
	} else if event != "HEARTBEAT" {
		log.Printf("published %s event", event)
	}
}

func statusConfig(cfg *config.Config) status.Config {
	cc := cfg.Control
	return status.Config{
		PeriodMs:       cc.Period.Milliseconds(),
		BudgetUs:       cc.Budget.Microseconds(),
		MaxPumpOnMs:    cc.MaxPumpOn.Milliseconds(),
		ValidMin:       cc.ValidMin,
		ValidMax:       cc.ValidMax,
		DryThreshold:   cc.DryThreshold,
		DeltaThreshold: cc.DeltaThreshold,
		FaultConfirm:   cc.FaultConfirm,
		RecoverConfirm: cc.RecoverConfirm,
		CatchUp:        cc.CatchUp,
		PumpPins:       append([]int(nil), cfg.Pump.Pins...),
		SensorPort:     cfg.Sensor.Port,
		HeartbeatMs:    cfg.Loop.Heartbeat.Milliseconds(),
		Broker:         cfg.MQTT.Broker,
		HTTPAddr:       cfg.HTTP.Addr,
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
