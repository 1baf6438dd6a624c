// Package gpio provides pump output control with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Driver drives pump output lines.
type Driver interface {
	// SetPump sets the output for the pump on the given BCM pin.
	// on=true drives the line high (relay energised).
	SetPump(channel int, on bool) error

	// Close drives every line low and releases GPIO resources.
	Close() error
}

// DefaultChip is the GPIO character device on a Raspberry Pi.
const DefaultChip = "gpiochip0"

// Pin definitions (BCM numbering)
const (
	DefaultPinPump = 17 // Pump relay
)
