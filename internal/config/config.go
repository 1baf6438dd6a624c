// Package config loads the controller configuration from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/irrigation-controller/internal/gpio"
	"github.com/sweeney/irrigation-controller/internal/logic"
	"github.com/sweeney/irrigation-controller/internal/sensor"
)

// Config represents the daemon configuration.
type Config struct {
	Control ControlConfig `yaml:"control"`
	Sensor  SensorConfig  `yaml:"sensor"`
	Pump    PumpConfig    `yaml:"pump"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	HTTP    HTTPConfig    `yaml:"http"`
	Influx  InfluxConfig  `yaml:"influx"`
	Loop    LoopConfig    `yaml:"loop"`
}

// ControlConfig contains the control constants. Durations are converted to
// whole microseconds for the controller.
type ControlConfig struct {
	Period            time.Duration `yaml:"period"`
	Budget            time.Duration `yaml:"budget"`
	ValidMin          uint16        `yaml:"valid_min"`
	ValidMax          uint16        `yaml:"valid_max"`
	DryThreshold      uint16        `yaml:"dry_threshold"`
	DeltaThreshold    uint16        `yaml:"delta_threshold"`
	FaultConfirm      int           `yaml:"fault_confirm"`
	RecoverConfirm    int           `yaml:"recover_confirm"`
	MaxScheduleMisses uint32        `yaml:"max_schedule_misses"`
	MaxBudgetMisses   uint32        `yaml:"max_budget_misses"`
	MaxPumpOn         time.Duration `yaml:"max_pump_on"`
	CatchUp           string        `yaml:"catch_up"` // "skip" or "fixed"
}

// SensorConfig contains the serial ADC bridge settings.
type SensorConfig struct {
	Port        string        `yaml:"port"`
	BaudRate    int           `yaml:"baud_rate"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// PumpConfig contains the pump output settings.
type PumpConfig struct {
	Chip string `yaml:"chip"`
	Pins []int  `yaml:"pins"` // BCM numbering; all pins switch together
}

// MQTTConfig contains the broker settings.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Buffer   int    `yaml:"buffer"` // records kept while disconnected
}

// HTTPConfig contains the status server settings.
type HTTPConfig struct {
	Addr string `yaml:"addr"` // empty disables the server
}

// InfluxConfig contains the optional history sink settings.
type InfluxConfig struct {
	URL    string `yaml:"url"` // empty disables the sink
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// LoopConfig contains the host loop settings.
type LoopConfig struct {
	Step      time.Duration `yaml:"step"`      // cadence of Step calls
	Heartbeat time.Duration `yaml:"heartbeat"` // 0 disables
}

// Default returns a default configuration with sensible values.
// Sensor and threshold values match a 10-bit capacitive probe where higher
// counts mean drier soil.
func Default() *Config {
	return &Config{
		Control: ControlConfig{
			Period:            time.Second,
			Budget:            5 * time.Millisecond,
			ValidMin:          0,
			ValidMax:          470,
			DryThreshold:      440,
			DeltaThreshold:    50,
			FaultConfirm:      3,
			RecoverConfirm:    5,
			MaxScheduleMisses: 10,
			MaxBudgetMisses:   10,
			MaxPumpOn:         10 * time.Second,
			CatchUp:           "skip",
		},
		Sensor: SensorConfig{
			Port:        "/dev/ttyACM0",
			BaudRate:    sensor.DefaultBaudRate,
			ReadTimeout: sensor.DefaultReadTimeout,
		},
		Pump: PumpConfig{
			Chip: gpio.DefaultChip,
			Pins: []int{gpio.DefaultPinPump},
		},
		MQTT: MQTTConfig{
			Broker:   "tcp://192.168.1.200:1883",
			ClientID: "irrigation-controller",
			Buffer:   256,
		},
		HTTP: HTTPConfig{
			Addr: ":80",
		},
		Loop: LoopConfig{
			Step:      time.Millisecond,
			Heartbeat: 15 * time.Minute,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values. The result is validated.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", filename, err)
	}
	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults fills zero values that have no meaningful zero setting.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Control.Period == 0 {
		c.Control.Period = def.Control.Period
	}
	if c.Control.Budget == 0 {
		c.Control.Budget = def.Control.Budget
	}
	if c.Control.ValidMax == 0 {
		c.Control.ValidMax = def.Control.ValidMax
	}
	if c.Control.FaultConfirm == 0 {
		c.Control.FaultConfirm = def.Control.FaultConfirm
	}
	if c.Control.RecoverConfirm == 0 {
		c.Control.RecoverConfirm = def.Control.RecoverConfirm
	}
	if c.Control.MaxPumpOn == 0 {
		c.Control.MaxPumpOn = def.Control.MaxPumpOn
	}
	if c.Control.CatchUp == "" {
		c.Control.CatchUp = def.Control.CatchUp
	}

	if c.Sensor.Port == "" {
		c.Sensor.Port = def.Sensor.Port
	}
	if c.Sensor.BaudRate == 0 {
		c.Sensor.BaudRate = def.Sensor.BaudRate
	}
	if c.Sensor.ReadTimeout == 0 {
		c.Sensor.ReadTimeout = def.Sensor.ReadTimeout
	}

	if c.Pump.Chip == "" {
		c.Pump.Chip = def.Pump.Chip
	}
	if len(c.Pump.Pins) == 0 {
		c.Pump.Pins = def.Pump.Pins
	}

	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}
	if c.MQTT.Buffer == 0 {
		c.MQTT.Buffer = def.MQTT.Buffer
	}

	if c.Loop.Step == 0 {
		c.Loop.Step = def.Loop.Step
	}
}

// maxMicros is the longest duration the 32-bit microsecond clock can
// compare without ambiguity.
const maxMicros = time.Duration(1<<31-1) * time.Microsecond

// Validate rejects inconsistent control settings.
func (c *Config) Validate() error {
	cc := c.Control
	var errs []error

	if cc.Period < time.Microsecond || cc.Period > maxMicros {
		errs = append(errs, fmt.Errorf("period %v out of range", cc.Period))
	}
	if cc.Budget < time.Microsecond || cc.Budget >= cc.Period {
		errs = append(errs, fmt.Errorf("budget %v must be positive and shorter than period", cc.Budget))
	}
	if cc.MaxPumpOn < time.Microsecond || cc.MaxPumpOn > maxMicros {
		errs = append(errs, fmt.Errorf("max_pump_on %v out of range", cc.MaxPumpOn))
	}
	if cc.ValidMin > cc.ValidMax {
		errs = append(errs, fmt.Errorf("valid_min %d above valid_max %d", cc.ValidMin, cc.ValidMax))
	}
	if cc.FaultConfirm < 1 {
		errs = append(errs, fmt.Errorf("fault_confirm must be at least 1, got %d", cc.FaultConfirm))
	}
	if cc.RecoverConfirm < 0 {
		errs = append(errs, fmt.Errorf("recover_confirm must not be negative, got %d", cc.RecoverConfirm))
	}
	if _, err := parseCatchUp(cc.CatchUp); err != nil {
		errs = append(errs, err)
	}
	if len(c.Pump.Pins) == 0 {
		errs = append(errs, errors.New("at least one pump pin is required"))
	}
	if c.Loop.Step <= 0 || c.Loop.Step > cc.Budget {
		errs = append(errs, fmt.Errorf("loop step %v must be positive and no longer than budget %v", c.Loop.Step, cc.Budget))
	}

	return errors.Join(errs...)
}

// Logic converts the control settings for the controller.
// The config must have passed Validate.
func (c *Config) Logic() logic.Config {
	cc := c.Control
	policy, _ := parseCatchUp(cc.CatchUp)
	return logic.Config{
		Period:            micros(cc.Period),
		Budget:            micros(cc.Budget),
		ValidMin:          cc.ValidMin,
		ValidMax:          cc.ValidMax,
		DryThreshold:      cc.DryThreshold,
		DeltaThreshold:    cc.DeltaThreshold,
		FaultConfirm:      cc.FaultConfirm,
		RecoverConfirm:    cc.RecoverConfirm,
		MaxScheduleMisses: cc.MaxScheduleMisses,
		MaxBudgetMisses:   cc.MaxBudgetMisses,
		MaxPumpOn:         micros(cc.MaxPumpOn),
		Policy:            policy,
		Channels:          append([]int(nil), c.Pump.Pins...),
	}
}

func micros(d time.Duration) logic.Duration {
	return logic.Duration(d / time.Microsecond)
}

func parseCatchUp(s string) (logic.CatchUpPolicy, error) {
	switch s {
	case "skip":
		return logic.SkipAhead, nil
	case "fixed":
		return logic.FixedIncrement, nil
	default:
		return 0, fmt.Errorf("unknown catch_up policy %q (want skip or fixed)", s)
	}
}
