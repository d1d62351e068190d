package gcp

import (
	"encoding/binary"
	"errors"
	"io"
)

// readChunkSize is the scratch buffer size for each underlying Read call
// (§4.C step 1; 4 KiB is the size the spec calls "typical").
const readChunkSize = 4096

// Reader assembles GCP frames out of a byte stream, resynchronizing on the
// preamble and discarding noise, following §4.C. It is grounded on the
// teacher's pkg/usock byte-at-a-time state machine, generalized here to
// operate on chunks (UART reads can return more than one byte at a time)
// and to GCP's single whole-frame CRC instead of USOCK's separate
// header/payload CRCs.
//
// A Reader retains any bytes left over after a completed frame so a
// partially-received next frame is not discarded between calls.
type Reader struct {
	r       io.Reader
	acc     []byte
	scratch []byte
}

// NewReader wraps r (typically a *uart.Handle) in a Reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, scratch: make([]byte, readChunkSize)}
}

// ReadFrame blocks until one frame has been assembled and validated, or a
// terminal condition is hit. It returns a *Error of KindTimeout (no data /
// platform read timeout / io.EOF), KindFrameCorrupt (CRC mismatch), or
// KindIoError (the underlying reader failed). Noise without a preamble is
// discarded once it passes the resync threshold, and reading continues.
func (r *Reader) ReadFrame() (*Frame, error) {
	for {
		if frame, total, ok, err := r.tryDecode(); ok || err != nil {
			if ok {
				r.acc = append(r.acc[:0:0], r.acc[total:]...)
			}
			return frame, err
		}

		n, err := r.r.Read(r.scratch)
		if n > 0 {
			r.acc = append(r.acc, r.scratch[:n]...)
			continue
		}
		if err == nil {
			// Zero bytes, no error: nothing arrived this round (§4.C step 5, "NoData").
			return nil, errTimeout("no data read from stream")
		}
		if isTimeout(err) || errors.Is(err, io.EOF) {
			return nil, errTimeout("platform read timeout")
		}
		return nil, errIo("stream read failed", err)
	}
}

// tryDecode attempts to make progress against the current accumulator
// without performing any I/O. ok is true when frame/err are the call's
// final result (a decoded frame, or a terminal framing error); ok is false
// when the caller should go read more bytes.
func (r *Reader) tryDecode() (frame *Frame, total int, ok bool, err error) {
	for {
		k := findPreamble(r.acc)
		if k < 0 {
			if len(r.acc) > resyncDiscardThreshold {
				r.acc = r.acc[:0]
			}
			return nil, 0, false, nil
		}
		if k > 0 {
			r.acc = r.acc[k:]
		}

		if len(r.acc) < 4 {
			return nil, 0, false, nil
		}
		length := binary.LittleEndian.Uint16(r.acc[2:4])
		want := int(length) + 4
		if len(r.acc) < want {
			return nil, 0, false, nil
		}

		f, consumed, decErr := DecodeFrame(r.acc[:want])
		if decErr == nil {
			return f, consumed, true, nil
		}

		var mismatch *CrcMismatchError
		if errors.As(decErr, &mismatch) {
			// Corruption inside an otherwise plausible frame: drop the
			// matched preamble and resync from the next byte rather than
			// trusting a LENGTH field that may itself be garbage.
			r.acc = r.acc[2:]
			return nil, 0, true, errFrameCorrupt("crc16 mismatch", mismatch)
		}
		// ErrShortFrame/ErrIncomplete/ErrBadPreamble: the preamble scan
		// above already guarantees bytes[0:2] match, so only short/
		// incomplete are reachable here; treat as "need more bytes".
		return nil, 0, false, nil
	}
}

// findPreamble returns the offset of the first 0xAA,0x55 pair in buf, or -1
// if no complete pair is present yet (a lone trailing 0xAA is left in place
// so it can pair up with a 0x55 arriving on the next read).
func findPreamble(buf []byte) int {
	for i := 0; i+1 < len(buf); i++ {
		if buf[i] == Preamble0 && buf[i+1] == Preamble1 {
			return i
		}
	}
	return -1
}

// isTimeout reports whether err is a platform read timeout, following the
// conventional Go pattern of a Timeout() bool method (net.Error and most
// serial libraries' error types implement this).
func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	if errors.As(err, &te) {
		return te.Timeout()
	}
	return false
}
