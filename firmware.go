package gcp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
)

// FwState is a firmware update FSM state (§4.H).
type FwState int

const (
	FwIdle FwState = iota
	FwTransferring
	FwCompleted
	FwFailed
)

func (s FwState) String() string {
	switch s {
	case FwIdle:
		return "Idle"
	case FwTransferring:
		return "Transferring"
	case FwCompleted:
		return "Completed"
	case FwFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// ErrFirmwareAborted is returned by Run (and by End/SendChunk once an abort
// has been requested) when a transfer is cancelled via Abort (§4.H).
var ErrFirmwareAborted = errors.New("gcp: firmware update aborted by client")

// ProgressEvent describes firmware transfer progress (§4.H).
type ProgressEvent struct {
	Stage         string
	CurrentChunk  int
	TotalChunks   int
	BytesSent     int
	TotalBytes    int
	Percentage    float64
	StatusMessage string
}

// ProgressSink receives ProgressEvents. It is fire-and-forget: a nil sink
// (or one that never gets called because nobody subscribed) does not
// change the engine's behavior (§4.H).
type ProgressSink func(ProgressEvent)

// FirmwareResult is the outcome of a firmware update (§6).
type FirmwareResult struct {
	Success     bool
	CRC32Match  bool
	TotalChunks int
	TotalBytes  int
	Message     string
}

// progressChunkCadence is how often (in chunks) a progress event fires
// during Transferring, in addition to always firing on the final chunk
// (§4.H: "at least every 5 chunks and on the final chunk").
const progressChunkCadence = 5

// FirmwareTransfer drives one firmware update over an Engine's port,
// implementing the Start/Data/End/Abort sequencing of §4.H. Only one
// transfer should run against a given port at a time; the connection
// pool's per-port lock (§4.E) is what guarantees that in production.
type FirmwareTransfer struct {
	engine    *Engine
	image     []byte
	chunkSize int
	crc32     uint32
	totalCh   int

	mu        sync.Mutex
	state     FwState
	nextChunk int
	abortCh   chan struct{}
	abortOnce sync.Once
}

// NewFirmwareTransfer prepares a transfer for image using chunkSize bytes
// per FW_DATA frame. chunkSize <= 0 defaults to RecommendedChunkSize (I3).
func (e *Engine) NewFirmwareTransfer(image []byte, chunkSize int) *FirmwareTransfer {
	if chunkSize <= 0 {
		chunkSize = RecommendedChunkSize
	}
	total := (len(image) + chunkSize - 1) / chunkSize
	return &FirmwareTransfer{
		engine:    e,
		image:     image,
		chunkSize: chunkSize,
		crc32:     crc32Checksum(image),
		totalCh:   total,
		state:     FwIdle,
		abortCh:   make(chan struct{}),
	}
}

// State reports the transfer's current FSM state.
func (t *FirmwareTransfer) State() FwState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *FirmwareTransfer) aborted() bool {
	select {
	case <-t.abortCh:
		return true
	default:
		return false
	}
}

// Abort requests cancellation (§4.H). It may be called from any goroutine
// at any time; the transfer notices it between chunks (or before Start/
// End) and sends FW_ABORT itself, since only the goroutine driving the
// transfer may use the port (I4).
func (t *FirmwareTransfer) Abort() {
	t.abortOnce.Do(func() { close(t.abortCh) })
}

// Start sends FW_START (§4.H). Idle -> Transferring on an ACK.
func (t *FirmwareTransfer) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != FwIdle {
		return errProtocolState(fmt.Sprintf("FW_START invalid in state %s", t.state))
	}
	if t.aborted() {
		return ErrFirmwareAborted
	}

	params := make([]byte, 12)
	binary.LittleEndian.PutUint32(params[0:4], uint32(len(t.image)))
	binary.LittleEndian.PutUint32(params[4:8], t.crc32)
	binary.LittleEndian.PutUint16(params[8:10], uint16(t.chunkSize))
	// params[10:12] left zero (reserved).

	resp, err := t.engine.do(NewParamFrame(CmdFwStart, params))
	if err != nil {
		return err
	}
	if resp.MsgType != CmdAck {
		return errInvalidResponse("unexpected reply to FW_START: " + resp.MsgType.String())
	}
	t.state = FwTransferring
	return nil
}

// SendChunk transmits the next chunk in sequence and advances the FSM.
// Chunks are always sent strictly in order (§4.H); calling SendChunk out of
// sequence (or before Start) is ProtocolState, not a retriable failure.
func (t *FirmwareTransfer) SendChunk() (done bool, err error) {
	t.mu.Lock()
	if t.state != FwTransferring {
		t.mu.Unlock()
		return false, errProtocolState(fmt.Sprintf("FW_DATA invalid in state %s", t.state))
	}
	if t.aborted() {
		t.mu.Unlock()
		return false, ErrFirmwareAborted
	}
	i := t.nextChunk
	if i >= t.totalCh {
		t.mu.Unlock()
		return true, nil
	}
	offset := i * t.chunkSize
	end := offset + t.chunkSize
	if end > len(t.image) {
		end = len(t.image)
	}
	chunk := t.image[offset:end]
	t.mu.Unlock()

	params := make([]byte, 4)
	binary.LittleEndian.PutUint32(params, uint32(offset))

	resp, err := t.engine.do(NewParamDataFrame(CmdFwData, params, chunk))

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.state = FwFailed
		return false, err
	}
	if resp.MsgType != CmdAck {
		t.state = FwFailed
		return false, errInvalidResponse("unexpected reply to FW_DATA: " + resp.MsgType.String())
	}
	t.nextChunk++
	return t.nextChunk >= t.totalCh, nil
}

// End sends FW_END and returns whether the device confirmed a CRC-32
// match (§4.H). A mismatch is reported via the return value, not an error
// (§7): the caller decides whether to retry or surface a diagnostic.
func (t *FirmwareTransfer) End() (crcMatch bool, err error) {
	t.mu.Lock()
	if t.state != FwTransferring {
		t.mu.Unlock()
		return false, errProtocolState(fmt.Sprintf("FW_END invalid in state %s", t.state))
	}
	if t.aborted() {
		t.mu.Unlock()
		return false, ErrFirmwareAborted
	}
	t.mu.Unlock()

	resp, err := t.engine.do(NewHeaderFrame(CmdFwEnd))

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.state = FwFailed
		return false, err
	}
	if resp.MsgType != CmdAck {
		t.state = FwFailed
		return false, errInvalidResponse("unexpected reply to FW_END: " + resp.MsgType.String())
	}
	// The ACK payload layout for FW_END is an Open Question in spec.md §9;
	// this implementation fixes it as ECHOED_CMD(2)‖SEQ_NO(4)‖MATCH(1),
	// where MATCH is non-zero when the device's CRC-32 over the received
	// image equals the CRC-32 the host sent at FW_START (see DESIGN.md).
	_, _, trailing, err := sliceAck(resp.Payload, CmdFwEnd, 1)
	if err != nil {
		t.state = FwFailed
		return false, err
	}
	match := trailing[0] != 0
	if match {
		t.state = FwCompleted
	} else {
		t.state = FwFailed
	}
	return match, nil
}

// sendAbort transmits FW_ABORT and waits for its ACK; called by Run once it
// notices Abort() was requested. Any in-state transition (§4.H: "Any ->
// Abort -> Idle") is allowed.
func (t *FirmwareTransfer) sendAbort() error {
	resp, err := t.engine.do(NewHeaderFrame(CmdFwAbort))
	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		return err
	}
	if resp.MsgType != CmdAck {
		return errInvalidResponse("unexpected reply to FW_ABORT: " + resp.MsgType.String())
	}
	t.state = FwIdle
	return nil
}

func (t *FirmwareTransfer) percentage() float64 {
	if len(t.image) == 0 {
		return 100
	}
	sent := t.nextChunk * t.chunkSize
	if sent > len(t.image) {
		sent = len(t.image)
	}
	return 100 * float64(sent) / float64(len(t.image))
}

func (t *FirmwareTransfer) emit(sink ProgressSink, stage, msg string) {
	if sink == nil {
		return
	}
	t.mu.Lock()
	ev := ProgressEvent{
		Stage:         stage,
		CurrentChunk:  t.nextChunk,
		TotalChunks:   t.totalCh,
		BytesSent:     t.nextChunk * t.chunkSize,
		TotalBytes:    len(t.image),
		Percentage:    t.percentage(),
		StatusMessage: msg,
	}
	if ev.BytesSent > ev.TotalBytes {
		ev.BytesSent = ev.TotalBytes
	}
	t.mu.Unlock()
	sink(ev)
}

// Run drives the full Start -> Data x N -> End sequence, the engine API's
// firmware_update() operation (§6). It is the primary entry point; Start/
// SendChunk/End/Abort remain exposed individually for callers that need
// finer-grained control (mirroring the original source's separate
// start/send-chunk/end/abort Tauri commands — see DESIGN.md).
func (t *FirmwareTransfer) Run(sink ProgressSink) (FirmwareResult, error) {
	result := FirmwareResult{TotalChunks: t.totalCh, TotalBytes: len(t.image)}

	t.emit(sink, "Initiating", "sending firmware update start command")
	if err := t.Start(); err != nil {
		if errors.Is(err, ErrFirmwareAborted) {
			return t.finishAborted(sink, result)
		}
		result.Message = err.Error()
		return result, err
	}
	t.emit(sink, "Transferring", "device accepted firmware update start")

	for {
		if t.aborted() {
			return t.finishAborted(sink, result)
		}
		done, err := t.SendChunk()
		if err != nil {
			if errors.Is(err, ErrFirmwareAborted) {
				return t.finishAborted(sink, result)
			}
			result.Message = err.Error()
			return result, err
		}
		t.mu.Lock()
		current := t.nextChunk
		t.mu.Unlock()
		if (current-1)%progressChunkCadence == 0 || done {
			t.emit(sink, "Transferring", fmt.Sprintf("sent chunk %d/%d", current, t.totalCh))
		}
		if done {
			break
		}
	}

	t.emit(sink, "Verifying", "requesting firmware verification")
	match, err := t.End()
	if err != nil {
		if errors.Is(err, ErrFirmwareAborted) {
			return t.finishAborted(sink, result)
		}
		result.Message = err.Error()
		return result, err
	}

	result.CRC32Match = match
	result.Success = match
	if match {
		result.Message = "firmware update completed"
		t.emit(sink, "Completed", result.Message)
	} else {
		result.Message = "device reported CRC32 mismatch"
		t.emit(sink, "Failed", result.Message)
	}
	return result, nil
}

func (t *FirmwareTransfer) finishAborted(sink ProgressSink, result FirmwareResult) (FirmwareResult, error) {
	if err := t.sendAbort(); err != nil {
		result.Message = fmt.Sprintf("aborted, but FW_ABORT failed: %v", err)
		return result, err
	}
	result.Message = "aborted by client"
	t.emit(sink, "Aborted", result.Message)
	return result, ErrFirmwareAborted
}
