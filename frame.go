package gcp

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Decode-time sentinel errors (§4.B). These are distinct from the Error
// taxonomy in errors.go: callers that need to distinguish "not enough bytes
// yet" (ErrIncomplete) from a genuine corruption (ErrBadPreamble,
// CrcMismatchError) work against these directly. The transport reader
// surfaces only CrcMismatchError to its own caller, as a KindFrameCorrupt
// *Error; it treats ErrShortFrame/ErrIncomplete as "read more bytes", and
// its preamble scan keeps ErrBadPreamble from arising.
var (
	ErrShortFrame = errors.New("gcp: frame shorter than minimum possible size")
	ErrBadPreamble = errors.New("gcp: preamble mismatch")
	ErrIncomplete  = errors.New("gcp: buffer does not yet contain a full frame")
)

// CrcMismatchError reports a frame whose CRC-16 did not verify.
type CrcMismatchError struct {
	Expected uint16
	Got      uint16
}

func (e *CrcMismatchError) Error() string {
	return fmt.Sprintf("gcp: crc16 mismatch: frame says 0x%04X, computed 0x%04X", e.Expected, e.Got)
}

// Frame is a decoded or to-be-encoded GCP frame (§3).
//
// Payload is the contiguous PARAMS+DATA region exactly as it appears on the
// wire. Params/Data are a convenience split of Payload following §4.B's
// rule and are only populated for non-ACK message types; ACK frames leave
// Params/Data nil and callers (the request engine) work from Payload
// directly, because the generic two-byte split is not meaningful for ACKs
// (see the frame codec's Design Notes in spec.md §9).
type Frame struct {
	MsgType Command
	Payload []byte
	Params  []byte
	Data    []byte
}

// NewHeaderFrame builds a frame with no meaningful params or data: two
// reserved zero bytes are sent as PARAMS, giving LENGTH = 6 (§4.B shape a).
func NewHeaderFrame(msgType Command) *Frame {
	return &Frame{MsgType: msgType, Payload: []byte{0, 0}, Params: []byte{0, 0}}
}

// NewParamFrame builds a frame carrying only params (§4.B shape b).
func NewParamFrame(msgType Command, params []byte) *Frame {
	payload := append([]byte(nil), params...)
	return &Frame{MsgType: msgType, Payload: payload, Params: payload}
}

// NewParamDataFrame builds a frame carrying both params and data (§4.B
// shape c).
func NewParamDataFrame(msgType Command, params, data []byte) *Frame {
	payload := make([]byte, 0, len(params)+len(data))
	payload = append(payload, params...)
	payload = append(payload, data...)
	return &Frame{MsgType: msgType, Payload: payload, Params: append([]byte(nil), params...), Data: append([]byte(nil), data...)}
}

// Encode serializes f into its wire representation, appending the CRC-16
// computed over LENGTH‖MSG_TYPE‖PARAMS+DATA.
func (f *Frame) Encode() []byte {
	length := uint16(4 + len(f.Payload))
	buf := make([]byte, 2, 2+2+length) // preamble reserved below
	buf[0], buf[1] = Preamble0, Preamble1
	body := make([]byte, 4+len(f.Payload))
	binary.LittleEndian.PutUint16(body[0:2], length)
	binary.LittleEndian.PutUint16(body[2:4], uint16(f.MsgType))
	copy(body[4:], f.Payload)

	crc := crc16CCITT(body)
	buf = append(buf, body...)
	crcBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(crcBytes, crc)
	buf = append(buf, crcBytes...)
	return buf
}

// DecodeFrame parses exactly one candidate frame from buf, following the
// steps of §4.B. On success it also reports consumed, the number of bytes
// of buf that made up the frame (LENGTH+4); callers with trailing bytes
// (the transport reader) use that to find the next frame's start.
func DecodeFrame(buf []byte) (frame *Frame, consumed int, err error) {
	if len(buf) < minFrameSize {
		return nil, 0, ErrShortFrame
	}
	if buf[0] != Preamble0 || buf[1] != Preamble1 {
		return nil, 0, ErrBadPreamble
	}
	length := binary.LittleEndian.Uint16(buf[2:4])
	total := int(length) + 4
	if len(buf) < total {
		return nil, 0, ErrIncomplete
	}

	msgType := Command(binary.LittleEndian.Uint16(buf[4:6]))
	payload := append([]byte(nil), buf[6:2+int(length)]...)

	expected := binary.LittleEndian.Uint16(buf[total-2 : total])
	got := crc16CCITT(buf[2 : 2+int(length)])
	if expected != got {
		return nil, 0, &CrcMismatchError{Expected: expected, Got: got}
	}

	f := &Frame{MsgType: msgType, Payload: payload}
	if msgType != CmdAck {
		if len(payload) >= 2 {
			f.Params = payload[:2]
			f.Data = payload[2:]
		} else {
			f.Data = payload
		}
	}
	return f, total, nil
}
