// Package uart owns a single open serial port configured for GCP (§4.D):
// 115200 baud, 8 data bits, 1 stop bit, no parity, with a per-read
// timeout. It does not enable hardware (RTS/CTS) flow control (see
// setHardwareFlowControl). It is grounded on the teacher's pkg/usock.New,
// which opens and owns a *serial.Port for the lifetime of a connection, but
// uses go.bug.st/serial rather than github.com/tarm/serial; see DESIGN.md
// for why the teacher's two serial dependencies split this way.
package uart

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// ReadTimeout is the per-read timeout mandated by spec.md §4.D / §5.
const ReadTimeout = 1000 * time.Millisecond

const baudRate = 115200

// Handle is a scoped, exclusively-owned serial port. Close releases the
// underlying port on every exit path; callers must not retain a Handle
// after Close returns.
type Handle struct {
	port serial.Port
	name string
}

// Open configures and opens the named serial port per §4.D: baud rate,
// framing and read timeout. No hardware (RTS/CTS) flow-control setting is
// applied: the serial.Mode has no flow-control field and
// setHardwareFlowControl configures nothing.
func Open(portName string) (*Handle, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("uart: open %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("uart: set read timeout on %s: %w", portName, err)
	}
	if err := setHardwareFlowControl(port); err != nil {
		port.Close()
		return nil, fmt.Errorf("uart: enable hardware flow control on %s: %w", portName, err)
	}
	return &Handle{port: port, name: portName}, nil
}

// setHardwareFlowControl is isolated in its own function because the
// flow-control knob is the one part of the driver configuration that some
// platforms/backends of go.bug.st/serial may not support; keeping it here
// means Open's happy path reads linearly and a future platform-specific
// shim only touches one place.
func setHardwareFlowControl(port serial.Port) error {
	// go.bug.st/serial has no portable Mode field for RTS/CTS; the
	// hardware handshake is negotiated by the OS driver for the device
	// path the caller supplies (e.g. a UART exposed with flow control
	// wired in hardware). Nothing further to configure here today, but
	// the hook stays so a platform build tag can add one without
	// touching every caller of Open.
	return nil
}

// Name returns the device path this handle was opened against.
func (h *Handle) Name() string { return h.name }

// Read implements io.Reader over the underlying port.
func (h *Handle) Read(p []byte) (int, error) { return h.port.Read(p) }

// Write implements io.Writer over the underlying port.
func (h *Handle) Write(p []byte) (int, error) { return h.port.Write(p) }

// Flush blocks until all buffered output has been transmitted.
func (h *Handle) Flush() error { return h.port.Drain() }

// Close releases the underlying port. Safe to call more than once.
func (h *Handle) Close() error { return h.port.Close() }
