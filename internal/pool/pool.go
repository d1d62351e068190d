// Package pool is the process-wide connection pool of spec.md §4.E: a
// directory keyed by port name that owns live UART handles and serializes
// concurrent client calls onto each one. It is grounded on the teacher's
// single global *usock.USOCK owned by one Service (pkg/service/service.go),
// generalized here to a map so more than one port can be live at once,
// while keeping the teacher's "one handle, one lock" shape per port.
package pool

import (
	"fmt"
	"sync"

	gcp "github.com/glitchi/gcp-host"
	"github.com/glitchi/gcp-host/internal/uart"
)

// State is the high-level connectivity of a named port (§6).
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnected:
		return "Connected"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Status is the result of a Status query.
type Status struct {
	State   State
	Message string
}

type entry struct {
	mu     sync.Mutex
	handle *uart.Handle
	engine *gcp.Engine
}

// Pool is a directory of live, exclusively-accessed port connections. The
// zero value is not usable; construct with New.
type Pool struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New returns an empty pool.
func New() *Pool {
	return &Pool{entries: make(map[string]*entry)}
}

// Connect opens portName and inserts it into the directory. Connecting an
// already-present port is a no-op reported via the returned message, not an
// error (§4.E).
func (p *Pool) Connect(portName string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.entries[portName]; ok {
		return fmt.Sprintf("%s already connected", portName), nil
	}

	h, err := uart.Open(portName)
	if err != nil {
		return "", err
	}
	p.entries[portName] = &entry{handle: h, engine: gcp.NewEngine(h)}
	return fmt.Sprintf("connected to %s", portName), nil
}

// Disconnect removes portName from the directory and closes its handle.
// Dropping the entry closes the port deterministically (§3 Lifecycle).
func (p *Pool) Disconnect(portName string) error {
	p.mu.Lock()
	e, ok := p.entries[portName]
	if ok {
		delete(p.entries, portName)
	}
	p.mu.Unlock()

	if !ok {
		return gcp.ErrNotConnected(portName)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handle.Close()
}

// Status reports connectivity for portName using a cheap write-only PING
// liveness probe (§4.E, §9 Design Notes: this can mis-report a half-open
// port as healthy, but is the cheap option the spec calls out; callers
// needing the stronger ACK-awaited probe should route a WithConnection
// call through Engine.Ping instead).
func (p *Pool) Status(portName string) Status {
	p.mu.Lock()
	e, ok := p.entries[portName]
	p.mu.Unlock()
	if !ok {
		return Status{State: StateDisconnected}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.engine.WriteOnlyPing(); err != nil {
		return Status{State: StateError, Message: err.Error()}
	}
	return Status{State: StateConnected}
}

// WithConnection acquires portName's exclusive per-port lock and runs fn
// against its Engine, guaranteeing mutual exclusion per port (I4) while
// leaving distinct ports fully parallel. The directory lock itself is only
// held long enough to look up the entry (§4.E, §5).
func (p *Pool) WithConnection(portName string, fn func(*gcp.Engine) error) error {
	p.mu.Lock()
	e, ok := p.entries[portName]
	p.mu.Unlock()
	if !ok {
		return gcp.ErrNotConnected(portName)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.engine)
}

// Names returns the currently connected port names, for diagnostics.
func (p *Pool) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.entries))
	for name := range p.entries {
		names = append(names, name)
	}
	return names
}
