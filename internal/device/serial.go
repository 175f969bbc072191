package device

import (
	"bufio"
	"context"
	"io"
	"sync"
	"time"

	"github.com/mcp2everything/PID-agent/internal/errors"
	"github.com/mcp2everything/PID-agent/internal/logger"
	"go.bug.st/serial"
)

const defaultReadTimeout = time.Second

// SerialDevice is a wire-connected device speaking the JSON-lines /
// ASCII-command protocol over a serial port.
type SerialDevice struct {
	portName string
	baudRate int

	mu     sync.Mutex
	port   serial.Port
	reader *bufio.Reader
}

// NewSerialDevice creates an unopened serial device.
func NewSerialDevice(portName string, baudRate int) *SerialDevice {
	return &SerialDevice{
		portName: portName,
		baudRate: baudRate,
	}
}

func (d *SerialDevice) Open() error {
	errFactory := errors.New()

	d.mu.Lock()
	defer d.mu.Unlock()

	port, err := serial.Open(d.portName, &serial.Mode{BaudRate: d.baudRate})
	if err != nil {
		return errFactory.Wrap(ErrOpenFailed, err)
	}

	if err := port.SetReadTimeout(defaultReadTimeout); err != nil {
		port.Close()
		return errFactory.Wrap(ErrOpenFailed, err)
	}

	d.port = port
	d.reader = bufio.NewReader(port)
	logger.Info().Str("port", d.portName).Int("baudrate", d.baudRate).Msg("Serial device opened")

	return nil
}

func (d *SerialDevice) Close() error {
	errFactory := errors.New()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.port == nil {
		return nil
	}

	if err := d.port.Close(); err != nil {
		return errFactory.Wrap(ErrCloseFailed, err)
	}
	d.port = nil
	d.reader = nil

	return nil
}

// Send writes one command line to the port.
func (d *SerialDevice) Send(ctx context.Context, command string) error {
	errFactory := errors.New()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.port == nil {
		return errFactory.New(ErrNotConnected)
	}

	if err := ctx.Err(); err != nil {
		return errFactory.Wrap(errors.ErrTimeout, err)
	}

	if _, err := d.port.Write([]byte(command + "\n")); err != nil {
		return errFactory.Wrap(ErrWriteFailed, err)
	}

	return nil
}

// Receive reads the next telemetry line, honoring the context deadline
// by retrying bounded port reads until a full line arrives.
func (d *SerialDevice) Receive(ctx context.Context) ([]byte, error) {
	errFactory := errors.New()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.port == nil {
		return nil, errFactory.New(ErrNotConnected)
	}

	var pending []byte
	for {
		if err := ctx.Err(); err != nil {
			return nil, errFactory.Wrap(errors.ErrTimeout, err)
		}

		chunk, err := d.reader.ReadBytes('\n')
		pending = append(pending, chunk...)
		if err != nil {
			// A timed-out port read makes no progress; keep waiting
			// for the rest of the line until the context expires.
			if errors.Is(err, io.ErrNoProgress) {
				continue
			}
			return nil, errFactory.Wrap(ErrReadFailed, err)
		}

		line := trimLine(pending)
		if len(line) == 0 {
			pending = pending[:0]
			continue
		}

		return line, nil
	}
}

func trimLine(line []byte) []byte {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}

	return line
}
