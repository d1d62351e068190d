package gcp

import (
	"encoding/binary"
	"testing"
)

// fakePort is an in-memory Port: each Write synchronously produces the
// bytes the test wants Read to hand back, so attempt()'s write-then-read
// pattern never blocks.
type fakePort struct {
	onWrite func(written []byte) []byte
	rx      []byte
	writes  [][]byte
}

func (f *fakePort) Write(p []byte) (int, error) {
	cp := append([]byte(nil), p...)
	f.writes = append(f.writes, cp)
	if f.onWrite != nil {
		f.rx = append(f.rx, f.onWrite(cp)...)
	}
	return len(p), nil
}

func (f *fakePort) Flush() error { return nil }

func (f *fakePort) Read(p []byte) (int, error) {
	if len(f.rx) == 0 {
		return 0, nil
	}
	n := copy(p, f.rx)
	f.rx = f.rx[n:]
	return n, nil
}

func ackFrame(reqCmd Command, response []byte) []byte {
	seq := make([]byte, 4)
	payload := make([]byte, 0, 6+len(response))
	cmdBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(cmdBytes, uint16(reqCmd))
	payload = append(payload, cmdBytes...)
	payload = append(payload, seq...)
	payload = append(payload, response...)
	return NewParamDataFrame(CmdAck, payload[:2], payload[2:]).Encode()
}

func nackFrame(reqCmd Command, code ErrorCode) []byte {
	payload := make([]byte, 8)
	binary.LittleEndian.PutUint16(payload[0:2], uint16(reqCmd))
	binary.LittleEndian.PutUint16(payload[6:8], uint16(code))
	return NewParamDataFrame(CmdNack, payload[:2], payload[2:]).Encode()
}

func TestEngineHelloRoundTrip(t *testing.T) {
	hwInfo := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	port := &fakePort{onWrite: func([]byte) []byte { return ackFrame(CmdHello, hwInfo) }}
	e := NewEngine(port)

	got, err := e.Hello()
	if err != nil {
		t.Fatalf("Hello: %v", err)
	}
	want := HardwareInfo{ManufactureDate: 0x0201, SerialNumber: 0x0403, BoardType: 5, HWRevision: 6, ChipModel: 7, Features: 8}
	if got != want {
		t.Fatalf("Hello = %+v, want %+v", got, want)
	}
}

func TestEngineGetStatusAckPrefixDetection(t *testing.T) {
	// Scenario 2 from spec.md §8: concatenated payload length 21, first
	// two bytes 01 20 (the echoed GET_STATUS command 0x2001, LE).
	status := make([]byte, statusDataSize)
	status[0] = 42 // battery level
	port := &fakePort{onWrite: func([]byte) []byte { return ackFrame(CmdGetStatus, status) }}
	e := NewEngine(port)

	got, err := e.GetStatus()
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if got.BatteryLevel != 42 {
		t.Fatalf("BatteryLevel = %d, want 42", got.BatteryLevel)
	}
}

func TestEngineGetFwVersion(t *testing.T) {
	ver := []byte{2, 4, 1, 'r', 'c', '1'}
	port := &fakePort{onWrite: func([]byte) []byte { return ackFrame(CmdGetFwVer, ver) }}
	e := NewEngine(port)

	got, err := e.GetFwVersion()
	if err != nil {
		t.Fatalf("GetFwVersion: %v", err)
	}
	if got.Major != 2 || got.Minor != 4 || got.Patch != 1 || string(got.Suffix[:]) != "rc1" {
		t.Fatalf("GetFwVersion = %+v", got)
	}
}

func TestEngineRetriesTransientNackThenSucceeds(t *testing.T) {
	attempts := 0
	port := &fakePort{onWrite: func([]byte) []byte {
		attempts++
		if attempts < 2 {
			return nackFrame(CmdHello, ErrCodeBusy)
		}
		return ackFrame(CmdHello, make([]byte, hardwareInfoSize))
	}}
	e := NewEngine(port)

	if _, err := e.Hello(); err != nil {
		t.Fatalf("Hello: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
}

func TestEngineDoesNotRetryInvalidParamNack(t *testing.T) {
	attempts := 0
	port := &fakePort{onWrite: func([]byte) []byte {
		attempts++
		return nackFrame(CmdHello, ErrCodeInvalidParam)
	}}
	e := NewEngine(port)

	_, err := e.Hello()
	gcpErr, ok := err.(*Error)
	if !ok || gcpErr.Kind != KindDeviceError || gcpErr.DeviceCode != ErrCodeInvalidParam {
		t.Fatalf("err = %v, want DeviceError(InvalidParam)", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (no retry)", attempts)
	}
}

func TestEngineExhaustsRetriesOnPersistentBusy(t *testing.T) {
	attempts := 0
	port := &fakePort{onWrite: func([]byte) []byte {
		attempts++
		return nackFrame(CmdHello, ErrCodeBusy)
	}}
	e := NewEngine(port)

	_, err := e.Hello()
	gcpErr, ok := err.(*Error)
	if !ok || gcpErr.Kind != KindDeviceError || gcpErr.DeviceCode != ErrCodeBusy {
		t.Fatalf("err = %v, want DeviceError(Busy)", err)
	}
	if attempts != MaxRetries {
		t.Fatalf("attempts = %d, want %d", attempts, MaxRetries)
	}
}

func TestEngineResetModeParam(t *testing.T) {
	var gotParams []byte
	port := &fakePort{onWrite: func(written []byte) []byte {
		f, _, err := DecodeFrame(written)
		if err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gotParams = f.Params
		return ackFrame(CmdReset, nil)
	}}
	e := NewEngine(port)

	if _, err := e.Reset(true); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	mode := binary.LittleEndian.Uint16(gotParams)
	if mode != ResetModeApplyFirmware {
		t.Fatalf("reset mode = 0x%04x, want 0x%04x", mode, ResetModeApplyFirmware)
	}
}
