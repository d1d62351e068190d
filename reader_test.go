package gcp

import (
	"bytes"
	"io"
	"testing"
)

func TestReaderDiscardsNoiseBeforeFrame(t *testing.T) {
	noise := bytes.Repeat([]byte{0x00, 0x11, 0x22}, 50) // 150 bytes, well under the 1000 threshold
	frame := NewHeaderFrame(CmdHello).Encode()
	stream := append(append([]byte(nil), noise...), frame...)

	r := NewReader(bytes.NewReader(stream))
	got, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got.MsgType != CmdHello {
		t.Fatalf("msg type = %v, want HELLO", got.MsgType)
	}
}

func TestReaderDiscardsOversizedNoiseAccumulator(t *testing.T) {
	noise := bytes.Repeat([]byte{0x7E}, 1500) // past the 1000-byte threshold, no preamble present
	frame := NewHeaderFrame(CmdPing).Encode()
	stream := append(append([]byte(nil), noise...), frame...)

	r := NewReader(bytes.NewReader(stream))
	got, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got.MsgType != CmdPing {
		t.Fatalf("msg type = %v, want PING", got.MsgType)
	}
}

func TestReaderRetainsResidueAcrossFrames(t *testing.T) {
	f1 := NewHeaderFrame(CmdHello).Encode()
	f2 := NewHeaderFrame(CmdPing).Encode()
	stream := append(append([]byte(nil), f1...), f2...)

	r := NewReader(bytes.NewReader(stream))
	got1, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame 1: %v", err)
	}
	if got1.MsgType != CmdHello {
		t.Fatalf("frame 1 = %v, want HELLO", got1.MsgType)
	}
	got2, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame 2: %v", err)
	}
	if got2.MsgType != CmdPing {
		t.Fatalf("frame 2 = %v, want PING", got2.MsgType)
	}
}

// zeroReader simulates a serial read timeout: it returns 0 bytes, no error.
type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) { return 0, nil }

func TestReaderNoDataYieldsTimeout(t *testing.T) {
	r := NewReader(zeroReader{})
	_, err := r.ReadFrame()
	gcpErr, ok := err.(*Error)
	if !ok || gcpErr.Kind != KindTimeout {
		t.Fatalf("err = %v, want KindTimeout", err)
	}
}

func TestReaderCrcMismatchYieldsFrameCorrupt(t *testing.T) {
	frame := NewHeaderFrame(CmdHello).Encode()
	frame[6] ^= 0xFF // corrupt inside the covered region
	r := NewReader(bytes.NewReader(frame))
	_, err := r.ReadFrame()
	gcpErr, ok := err.(*Error)
	if !ok || gcpErr.Kind != KindFrameCorrupt {
		t.Fatalf("err = %v, want KindFrameCorrupt", err)
	}
}

// eofAfter returns io.EOF once the wrapped bytes are exhausted, exercising
// the reader's "io.EOF treated as a timeout-shaped terminal condition" path
// for transports that signal end-of-stream instead of a platform timeout.
type eofAfter struct{ r io.Reader }

func (e *eofAfter) Read(p []byte) (int, error) { return e.r.Read(p) }

func TestReaderEOFYieldsTimeout(t *testing.T) {
	r := NewReader(&eofAfter{r: bytes.NewReader(nil)})
	_, err := r.ReadFrame()
	gcpErr, ok := err.(*Error)
	if !ok || gcpErr.Kind != KindTimeout {
		t.Fatalf("err = %v, want KindTimeout", err)
	}
}
