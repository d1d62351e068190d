package gcp

import "fmt"

// Error taxonomy surfaced to callers (§7). Each variant wraps an optional
// underlying cause: callers use errors.As to recover the *Error and check
// its Kind, and errors.Is/errors.As reach the wrapped cause via Unwrap.

// Kind classifies a Error without requiring a type switch.
type Kind int

const (
	KindIoError Kind = iota
	KindTimeout
	KindFrameCorrupt
	KindDeviceError
	KindInvalidResponse
	KindProtocolState
	KindNotConnected
)

func (k Kind) String() string {
	switch k {
	case KindIoError:
		return "IoError"
	case KindTimeout:
		return "Timeout"
	case KindFrameCorrupt:
		return "FrameCorrupt"
	case KindDeviceError:
		return "DeviceError"
	case KindInvalidResponse:
		return "InvalidResponse"
	case KindProtocolState:
		return "ProtocolState"
	case KindNotConnected:
		return "NotConnected"
	default:
		return "Unknown"
	}
}

// Error is the single error type the engine returns; Kind discriminates the
// taxonomy of §7. DeviceCode is only meaningful when Kind == KindDeviceError.
type Error struct {
	Kind       Kind
	DeviceCode ErrorCode
	Msg        string
	Err        error
}

func (e *Error) Error() string {
	if e.Msg == "" && e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func errIo(msg string, cause error) *Error {
	return &Error{Kind: KindIoError, Msg: msg, Err: cause}
}

func errTimeout(msg string) *Error {
	return &Error{Kind: KindTimeout, Msg: msg}
}

func errFrameCorrupt(msg string, cause error) *Error {
	return &Error{Kind: KindFrameCorrupt, Msg: msg, Err: cause}
}

func errDevice(code ErrorCode) *Error {
	return &Error{Kind: KindDeviceError, DeviceCode: code, Msg: fmt.Sprintf("device reported error code %d", code)}
}

func errInvalidResponse(msg string) *Error {
	return &Error{Kind: KindInvalidResponse, Msg: msg}
}

func errProtocolState(msg string) *Error {
	return &Error{Kind: KindProtocolState, Msg: msg}
}

// ErrNotConnected builds a KindNotConnected error for the named port; the
// connection pool uses this, exported because callers outside this package
// need to construct/compare it too.
func ErrNotConnected(portName string) *Error {
	return &Error{Kind: KindNotConnected, Msg: fmt.Sprintf("port %q is not connected", portName)}
}

// retriable reports whether err should be absorbed by the request engine's
// retry loop (§4.F, §7 propagation policy).
func retriable(err error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	switch e.Kind {
	case KindTimeout, KindFrameCorrupt, KindIoError:
		return true
	case KindDeviceError:
		return e.DeviceCode.retriable()
	default:
		return false
	}
}
