package sensor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate matches the bridge firmware.
	DefaultBaudRate = 115200
	// DefaultReadTimeout bounds one request/reply exchange.
	DefaultReadTimeout = 20 * time.Millisecond
)

// SerialReader reads moisture from the ADC bridge on a serial port.
type SerialReader struct {
	port serial.Port
	line *lineReader
}

// OpenSerial opens the port, retrying with exponential backoff while the
// bridge enumerates (USB bridges often appear a few seconds after boot).
func OpenSerial(ctx context.Context, name string, baud int, timeout time.Duration) (*SerialReader, error) {
	if baud == 0 {
		baud = DefaultBaudRate
	}
	if timeout == 0 {
		timeout = DefaultReadTimeout
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second

	var port serial.Port
	err := backoff.Retry(func() error {
		p, err := serial.Open(name, &serial.Mode{BaudRate: baud})
		if err != nil {
			log.Printf("sensor: open %s: %v", name, err)
			return err
		}
		port = p
		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}

	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return &SerialReader{port: port, line: newLineReader(port)}, nil
}

// ReadMoisture requests and returns one reading.
func (s *SerialReader) ReadMoisture() (uint16, error) {
	return s.line.request()
}

// Close releases the serial port.
func (s *SerialReader) Close() error {
	return s.port.Close()
}
