// Package sensor reads soil moisture from an ADC bridge on a serial line.
//
// The bridge answers each request byte 'R' with one decimal reading
// terminated by '\n', e.g. "412\n". Readings are raw ADC counts; range
// checking is left to the controller.
package sensor

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Reader reads moisture values.
type Reader interface {
	ReadMoisture() (uint16, error)
	Close() error
}

// ErrTimeout is returned when the bridge does not answer in time.
var ErrTimeout = errors.New("sensor: read timeout")

const (
	requestByte = 'R'
	maxLineLen  = 16
)

// lineReader exchanges request/response lines over a byte stream whose Read
// returns (0, nil) on timeout, as go.bug.st/serial does.
type lineReader struct {
	rw      io.ReadWriter
	pending []byte
	buf     [maxLineLen]byte
}

func newLineReader(rw io.ReadWriter) *lineReader {
	return &lineReader{rw: rw}
}

// inputFlusher is implemented by ports that can drop unread input.
// serial.Port satisfies it.
type inputFlusher interface {
	ResetInputBuffer() error
}

// request sends one request and returns the parsed reply. Input left over
// from an earlier exchange, such as the tail of a reply that arrived after
// a timeout, is discarded first so it cannot be taken for this reply.
func (l *lineReader) request() (uint16, error) {
	l.pending = l.pending[:0]
	if f, ok := l.rw.(inputFlusher); ok {
		if err := f.ResetInputBuffer(); err != nil {
			return 0, fmt.Errorf("flush input: %w", err)
		}
	}
	if _, err := l.rw.Write([]byte{requestByte}); err != nil {
		return 0, fmt.Errorf("write request: %w", err)
	}
	line, err := l.readLine()
	if err != nil {
		return 0, err
	}
	return parseReading(line)
}

func (l *lineReader) readLine() (string, error) {
	for {
		n, err := l.rw.Read(l.buf[:])
		if err != nil {
			return "", fmt.Errorf("read reply: %w", err)
		}
		if n == 0 {
			return "", ErrTimeout
		}
		l.pending = append(l.pending, l.buf[:n]...)
		if i := bytes.IndexByte(l.pending, '\n'); i >= 0 {
			return string(l.pending[:i]), nil
		}
		if len(l.pending) > maxLineLen {
			return "", fmt.Errorf("sensor: reply too long (%d bytes)", len(l.pending))
		}
	}
}

func parseReading(line string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(line), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("parse reading %q: %w", line, err)
	}
	return uint16(v), nil
}
