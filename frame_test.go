package gcp

import (
	"bytes"
	"errors"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	cases := []*Frame{
		NewHeaderFrame(CmdHello),
		NewParamFrame(CmdReset, []byte{0x01, 0x00}),
		NewParamDataFrame(CmdFwData, []byte{0x00, 0x00, 0x00, 0x00}, bytes.Repeat([]byte{0x42}, 64)),
	}
	for _, want := range cases {
		wire := want.Encode()
		got, consumed, err := DecodeFrame(wire)
		if err != nil {
			t.Fatalf("decode(%v): %v", want.MsgType, err)
		}
		if consumed != len(wire) {
			t.Fatalf("consumed = %d, want %d", consumed, len(wire))
		}
		if got.MsgType != want.MsgType {
			t.Fatalf("msg type = %v, want %v", got.MsgType, want.MsgType)
		}
		if !bytes.Equal(got.Payload, want.Payload) {
			t.Fatalf("payload = %x, want %x", got.Payload, want.Payload)
		}
	}
}

func TestDecodeFrameShortFrame(t *testing.T) {
	_, _, err := DecodeFrame([]byte{0xAA, 0x55, 0x06, 0x00})
	if !errors.Is(err, ErrShortFrame) {
		t.Fatalf("err = %v, want ErrShortFrame", err)
	}
}

func TestDecodeFrameBadPreamble(t *testing.T) {
	wire := NewHeaderFrame(CmdHello).Encode()
	wire[0] = 0x00
	_, _, err := DecodeFrame(wire)
	if !errors.Is(err, ErrBadPreamble) {
		t.Fatalf("err = %v, want ErrBadPreamble", err)
	}
}

func TestDecodeFrameIncomplete(t *testing.T) {
	wire := NewParamDataFrame(CmdFwData, []byte{0, 0, 0, 0}, make([]byte, 100)).Encode()
	_, _, err := DecodeFrame(wire[:len(wire)-10])
	if !errors.Is(err, ErrIncomplete) {
		t.Fatalf("err = %v, want ErrIncomplete", err)
	}
}

func TestDecodeFrameCrcMismatch(t *testing.T) {
	wire := NewHeaderFrame(CmdHello).Encode()
	wire[6] ^= 0xFF // mutate inside the covered region
	_, _, err := DecodeFrame(wire)
	var mismatch *CrcMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("err = %v, want *CrcMismatchError", err)
	}
}

func TestDecodeFrameUnknownCommandDoesNotFail(t *testing.T) {
	wire := NewParamFrame(Command(0x9999), []byte{0x01, 0x02}).Encode()
	f, _, err := DecodeFrame(wire)
	if err != nil {
		t.Fatalf("unknown command must decode: %v", err)
	}
	if f.MsgType != Command(0x9999) {
		t.Fatalf("msg type = %v, want 0x9999", f.MsgType)
	}
}

func TestDecodeFrameAckPayloadNotSplit(t *testing.T) {
	wire := NewParamDataFrame(CmdAck, []byte{0x01, 0x00}, []byte{0x02, 0x03, 0x04}).Encode()
	f, _, err := DecodeFrame(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.Params != nil || f.Data != nil {
		t.Fatalf("ACK frame must not be split into params/data, got params=%v data=%v", f.Params, f.Data)
	}
	if !bytes.Equal(f.Payload, []byte{0x01, 0x00, 0x02, 0x03, 0x04}) {
		t.Fatalf("ack payload = %x", f.Payload)
	}
}

func TestDecodeFrameNonAckSplitRule(t *testing.T) {
	// >= 2 bytes: first two are params, rest is data.
	wire := NewParamDataFrame(CmdGetStatus, []byte{0xAB, 0xCD}, []byte{0x01, 0x02, 0x03}).Encode()
	f, _, err := DecodeFrame(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(f.Params, []byte{0xAB, 0xCD}) || !bytes.Equal(f.Data, []byte{0x01, 0x02, 0x03}) {
		t.Fatalf("params/data split = %x / %x", f.Params, f.Data)
	}

	// < 2 bytes: entire payload is data.
	wire2 := NewParamFrame(CmdGetStatus, []byte{0x01}).Encode()
	f2, _, err := DecodeFrame(wire2)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f2.Params != nil || !bytes.Equal(f2.Data, []byte{0x01}) {
		t.Fatalf("short payload split = params=%x data=%x", f2.Params, f2.Data)
	}
}

func TestSingleByteMutationBreaksCrc(t *testing.T) {
	wire := NewParamDataFrame(CmdFwData, []byte{0, 0, 0, 0}, bytes.Repeat([]byte{0x11}, 32)).Encode()
	covered := wire[2 : len(wire)-2]
	for i := range covered {
		mutated := append([]byte(nil), wire...)
		mutated[2+i] ^= 0xFF
		_, _, err := DecodeFrame(mutated)
		var mismatch *CrcMismatchError
		if !errors.As(err, &mismatch) {
			t.Fatalf("mutating covered byte %d did not produce CrcMismatchError, got %v", i, err)
		}
	}
}
