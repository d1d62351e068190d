package gcp

import (
	"encoding/binary"
	"io"
)

// Port is what the request engine needs from a transport: a byte stream
// plus an explicit flush, matching the "write+flush" step of §4.F attempt
// 2. *uart.Handle satisfies this; tests use an in-memory fake.
type Port interface {
	io.Reader
	io.Writer
	Flush() error
}

// Engine is the request/response engine of §4.F plus the typed command API
// of §4.G. One Engine talks to exactly one open port; §4.E's connection
// pool is what guarantees at most one Engine method runs against a given
// port at a time (I4).
type Engine struct {
	port   Port
	reader *Reader
}

// NewEngine wraps an already-open port. Callers normally obtain port via
// the connection pool rather than opening it directly.
func NewEngine(port Port) *Engine {
	return &Engine{port: port, reader: NewReader(port)}
}

// send writes and flushes a single frame; it does not wait for a response.
func (e *Engine) send(f *Frame) error {
	if _, err := e.port.Write(f.Encode()); err != nil {
		return errIo("frame write failed", err)
	}
	if err := e.port.Flush(); err != nil {
		return errIo("frame flush failed", err)
	}
	return nil
}

// attempt performs one send + receive round trip with no retry.
func (e *Engine) attempt(req *Frame) (*Frame, error) {
	if err := e.send(req); err != nil {
		return nil, err
	}
	return e.reader.ReadFrame()
}

// do runs req through up to MaxRetries attempts, classifying the response
// per §4.F: ACKs and non-ACK/NACK replies return directly; NACKs return a
// DeviceError that is retried only for the transient codes enumerated
// there; I/O and framing failures are retried unconditionally up to the
// attempt budget. Requests are never reordered: do blocks until its own
// attempts are exhausted before returning, and the engine issues no other
// request concurrently against the same port (I4, enforced by the pool).
func (e *Engine) do(req *Frame) (*Frame, error) {
	var lastErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		resp, err := e.attempt(req)
		if err != nil {
			lastErr = err
			if retriable(err) {
				continue
			}
			return nil, err
		}

		switch resp.MsgType {
		case CmdAck:
			return resp, nil
		case CmdNack:
			code, perr := parseNackPayload(resp.Payload)
			if perr != nil {
				return nil, perr
			}
			derr := errDevice(code)
			lastErr = derr
			if code.retriable() {
				continue
			}
			return nil, derr
		default:
			// A contract-sanctioned non-ACK reply (e.g. a device-initiated
			// frame observed while waiting for an answer); hand it back
			// as-is rather than forcing it through ACK/NACK classification.
			return resp, nil
		}
	}
	return nil, lastErr
}

// parseNackPayload extracts the ERROR_CODE from a NACK payload
// (ECHOED_CMD(2) ‖ SEQ_NO(4) ‖ ERROR_CODE(2), §3).
func parseNackPayload(payload []byte) (ErrorCode, error) {
	if len(payload) < 8 {
		return 0, errInvalidResponse("nack payload shorter than ECHOED_CMD+SEQ_NO+ERROR_CODE")
	}
	return ErrorCode(binary.LittleEndian.Uint16(payload[6:8])), nil
}

// sliceAck peels the optional ECHOED_CMD(2)‖SEQ_NO(4) prefix off an ACK
// payload per §4.F's detection rule, then returns exactly expectedTrailing
// bytes of RESPONSE_BYTES. When the prefix is not detected, echoedCmd/seqNo
// are zero and the whole payload is treated as RESPONSE_BYTES.
func sliceAck(payload []byte, reqCmd Command, expectedTrailing int) (echoedCmd Command, seqNo uint32, trailing []byte, err error) {
	if len(payload) >= expectedTrailing+6 {
		firstTwo := Command(binary.LittleEndian.Uint16(payload[0:2]))
		if firstTwo == reqCmd {
			rest := payload[6:]
			if len(rest) < expectedTrailing {
				return 0, 0, nil, errInvalidResponse("ack payload shorter than expected after echo+seq prefix")
			}
			return firstTwo, binary.LittleEndian.Uint32(payload[2:6]), rest[:expectedTrailing], nil
		}
	}
	if len(payload) < expectedTrailing {
		return 0, 0, nil, errInvalidResponse("ack payload shorter than expected")
	}
	return 0, 0, payload[:expectedTrailing], nil
}

// ResetAck is the response to Reset: the ACK carries only the echoed
// command and sequence number, no further response bytes (§4.G).
type ResetAck struct {
	EchoedCmd Command
	SeqNo     uint32
}

// Hello requests the device's hardware identity (§4.G).
func (e *Engine) Hello() (HardwareInfo, error) {
	resp, err := e.do(NewHeaderFrame(CmdHello))
	if err != nil {
		return HardwareInfo{}, err
	}
	if resp.MsgType != CmdAck {
		return HardwareInfo{}, errInvalidResponse("unexpected reply to HELLO: " + resp.MsgType.String())
	}
	_, _, trailing, err := sliceAck(resp.Payload, CmdHello, hardwareInfoSize)
	if err != nil {
		return HardwareInfo{}, err
	}
	return parseHardwareInfo(trailing)
}

// GetStatus requests the device's runtime status (§4.G).
func (e *Engine) GetStatus() (StatusData, error) {
	resp, err := e.do(NewHeaderFrame(CmdGetStatus))
	if err != nil {
		return StatusData{}, err
	}
	if resp.MsgType != CmdAck {
		return StatusData{}, errInvalidResponse("unexpected reply to GET_STATUS: " + resp.MsgType.String())
	}
	_, _, trailing, err := sliceAck(resp.Payload, CmdGetStatus, statusDataSize)
	if err != nil {
		return StatusData{}, err
	}
	return parseStatusData(trailing)
}

// GetFwVersion requests the device's firmware version (§4.G).
func (e *Engine) GetFwVersion() (FwVersion, error) {
	resp, err := e.do(NewHeaderFrame(CmdGetFwVer))
	if err != nil {
		return FwVersion{}, err
	}
	if resp.MsgType != CmdAck {
		return FwVersion{}, errInvalidResponse("unexpected reply to GET_FW_VER: " + resp.MsgType.String())
	}
	_, _, trailing, err := sliceAck(resp.Payload, CmdGetFwVer, fwVersionSize)
	if err != nil {
		return FwVersion{}, err
	}
	return parseFwVersion(trailing)
}

// Reset asks the device to reset, optionally applying a pending firmware
// image (§4.G, §6). Non-idempotent: callers that care should disable their
// own retry around this call, since the engine itself still retries
// transient NACKs per §4.F (spec.md §9 Design Notes).
func (e *Engine) Reset(applyFirmware bool) (ResetAck, error) {
	mode := ResetModeSoft
	if applyFirmware {
		mode = ResetModeApplyFirmware
	}
	params := make([]byte, 2)
	binary.LittleEndian.PutUint16(params, mode)

	resp, err := e.do(NewParamFrame(CmdReset, params))
	if err != nil {
		return ResetAck{}, err
	}
	if resp.MsgType != CmdAck {
		return ResetAck{}, errInvalidResponse("unexpected reply to RESET: " + resp.MsgType.String())
	}
	echoedCmd, seqNo, _, err := sliceAck(resp.Payload, CmdReset, 0)
	if err != nil {
		return ResetAck{}, err
	}
	return ResetAck{EchoedCmd: echoedCmd, SeqNo: seqNo}, nil
}

// Ping is a liveness probe (§4.G, §9 Design Notes): it waits for the ACK,
// which is a stronger check than a write-only probe and correctly reports
// a half-open port as unhealthy. Connection-pool status checks that only
// need a cheap write-only probe use WriteOnlyPing instead of Ping.
func (e *Engine) Ping() error {
	resp, err := e.do(NewHeaderFrame(CmdPing))
	if err != nil {
		return err
	}
	if resp.MsgType != CmdAck {
		return errInvalidResponse("unexpected reply to PING: " + resp.MsgType.String())
	}
	return nil
}

// WriteOnlyPing sends a bare PING without waiting for a response, for use
// as the pool's cheap liveness probe (§4.E, §9 Design Notes).
func (e *Engine) WriteOnlyPing() error {
	return e.send(NewHeaderFrame(CmdPing))
}

// RespondNoFirmware answers a device-initiated FW_REQUEST with FW_NONE
// when the host has no pending firmware image to offer (§4, Supplemented
// Features, grounded on original_source's FW_REQUEST/FW_NONE handshake).
// Fire-and-forget: the device does not ACK FW_NONE.
func (e *Engine) RespondNoFirmware() error {
	return e.send(NewHeaderFrame(CmdFwNone))
}

// ReceiveUnsolicited waits for the next frame without sending a request,
// for observing device-initiated traffic such as FW_REQUEST. It does not
// participate in do()'s retry loop.
func (e *Engine) ReceiveUnsolicited() (*Frame, error) {
	return e.reader.ReadFrame()
}
