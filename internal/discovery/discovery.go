// Package discovery implements list_ports() (spec.md §6): enumerating
// candidate serial ports and classifying each by transport. It is new
// relative to the teacher, which resolves its single device from a
// command-line flag (cmd/bluetooth-service/main.go's -serial flag) rather
// than discovering it; this package is grounded on go.bug.st/serial's own
// enumerator sub-package, the direct counterpart of the teacher's already
// required go.bug.st/serial dependency (see SPEC_FULL.md §3).
package discovery

import (
	"go.bug.st/serial/enumerator"
)

// PortType classifies how a port is attached (§6).
type PortType int

const (
	PortTypeUnknown PortType = iota
	PortTypeUSB
	PortTypeBluetooth
	PortTypePCI
)

func (t PortType) String() string {
	switch t {
	case PortTypeUSB:
		return "USB"
	case PortTypeBluetooth:
		return "Bluetooth"
	case PortTypePCI:
		return "PCI"
	default:
		return "Unknown"
	}
}

// PortInfo describes one discoverable serial port (§6).
type PortInfo struct {
	PortName     string
	Description  string
	Manufacturer string
	SerialNumber string
	VendorID     string
	ProductID    string
	Type         PortType
}

// List enumerates serial ports currently visible to the OS. cacheHint, when
// non-nil, seeds Description/Manufacturer for ports the OS enumeration call
// leaves blank on the current platform (internal/portcache supplies this
// from the last successful enumeration).
func List(cacheHint map[string]PortInfo) ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}

	out := make([]PortInfo, 0, len(details))
	for _, d := range details {
		info := PortInfo{
			PortName: d.Name,
			Type:     classify(d),
		}
		if d.IsUSB {
			info.VendorID = d.VID
			info.ProductID = d.PID
			info.SerialNumber = d.SerialNumber
			info.Description = d.Product
		}
		if info.Description == "" || info.Manufacturer == "" {
			if hint, ok := cacheHint[d.Name]; ok {
				if info.Description == "" {
					info.Description = hint.Description
				}
				if info.Manufacturer == "" {
					info.Manufacturer = hint.Manufacturer
				}
			}
		}
		out = append(out, info)
	}
	return out, nil
}

// classify guesses a PortInfo's transport. Bluetooth and PCI serial
// adapters do not self-identify distinctly in go.bug.st/serial's
// enumerator output on most platforms, so the USB bit is the only signal
// this implementation trusts; anything else is Unknown rather than a
// guess dressed up as certainty.
func classify(d *enumerator.PortDetails) PortType {
	if d.IsUSB {
		return PortTypeUSB
	}
	return PortTypeUnknown
}
