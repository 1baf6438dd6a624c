//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealDriver drives pump relays using the Linux GPIO character device.
type RealDriver struct {
	chip  *gpiocdev.Chip
	lines map[int]*gpiocdev.Line
}

// NewRealDriver requests every pin as an output, initially low.
func NewRealDriver(chipName string, pins []int) (*RealDriver, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer("irrigation-controller"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	d := &RealDriver{chip: chip, lines: make(map[int]*gpiocdev.Line, len(pins))}
	for _, pin := range pins {
		line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("request pump pin %d: %w", pin, err)
		}
		d.lines[pin] = line
	}
	return d, nil
}

// SetPump drives the line for the given pin.
func (d *RealDriver) SetPump(channel int, on bool) error {
	line, ok := d.lines[channel]
	if !ok {
		return fmt.Errorf("pump pin %d not requested", channel)
	}
	v := 0
	if on {
		v = 1
	}
	if err := line.SetValue(v); err != nil {
		return fmt.Errorf("set pump pin %d: %w", channel, err)
	}
	return nil
}

// Close drives every pump low, then reconfigures the pins to input with
// pull-down (matching Pi boot defaults) so a relay cannot be left energised
// across a restart.
func (d *RealDriver) Close() error {
	var errs []error

	for pin, line := range d.lines {
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("drive pin %d low: %w", pin, err))
		}
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", pin, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
	}
	if d.chip != nil {
		if err := d.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	return errors.Join(errs...)
}
