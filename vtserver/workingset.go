package vtserver

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/controlfunction"
	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/vtobject"
)

// ParseState is the lifecycle of a working set's background pool parse.
type ParseState int32

const (
	ParseIdle ParseState = iota
	ParseRunning
	ParseSuccess
	ParseFail
)

// ManagedWorkingSet is one attached client: its control function, the
// raw object pool bytes it has transferred, and the typed pool produced
// by the background parse.
//
// StartParsing hands the parse worker a concatenated copy of iopFiles,
// which stay guarded by mu. The worker alone writes the pool and the
// faulting object ID; the server only reads them after observing a
// terminal state from Tick, so no lock is shared between parse and
// dispatch.
type ManagedWorkingSet struct {
	cf *controlfunction.ControlFunction

	mu       sync.Mutex
	iopFiles [][]byte

	pool             *vtobject.Pool
	faultingObjectID uint16

	parseState atomic.Int32
	parseDone  chan struct{}

	protocolVersion      uint8
	maintenanceTimestamp time.Time
}

// newManagedWorkingSet records a freshly attached client.
func newManagedWorkingSet(cf *controlfunction.ControlFunction, protocolVersion uint8, now time.Time) *ManagedWorkingSet {
	ws := &ManagedWorkingSet{
		cf:                   cf,
		protocolVersion:      protocolVersion,
		maintenanceTimestamp: now,
	}
	ws.parseState.Store(int32(ParseIdle))
	return ws
}

// ControlFunction returns the client this working set belongs to.
func (w *ManagedWorkingSet) ControlFunction() *controlfunction.ControlFunction {
	return w.cf
}

// ProtocolVersion returns the version byte the client announced in its
// first working set maintenance message.
func (w *ManagedWorkingSet) ProtocolVersion() uint8 {
	return w.protocolVersion
}

// AddRawPoolData appends transferred object pool bytes to the working
// set's buffer.
func (w *ManagedWorkingSet) AddRawPoolData(data []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.iopFiles = append(w.iopFiles, append([]byte(nil), data...))
}

// HasRawPoolData reports whether any pool bytes have been transferred.
func (w *ManagedWorkingSet) HasRawPoolData() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.iopFiles) > 0
}

// RawPoolData returns a snapshot of the transferred pool byte buffers.
func (w *ManagedWorkingSet) RawPoolData() [][]byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([][]byte, len(w.iopFiles))
	for i, f := range w.iopFiles {
		out[i] = f
	}
	return out
}

// ParseState returns the current background parse state.
func (w *ManagedWorkingSet) ParseState() ParseState {
	return ParseState(w.parseState.Load())
}

// Pool returns the parsed object pool; valid only after the parse state
// reached ParseSuccess.
func (w *ManagedWorkingSet) Pool() *vtobject.Pool {
	return w.pool
}

// FaultingObjectID returns the object that failed parsing or validation;
// valid only after ParseFail.
func (w *ManagedWorkingSet) FaultingObjectID() uint16 {
	return w.faultingObjectID
}

// Object returns an object from the parsed pool, or nil before a
// successful parse.
func (w *ManagedWorkingSet) Object(id uint16) *vtobject.Object {
	if w.pool == nil {
		return nil
	}
	return w.pool.Get(id)
}

// StartParsing launches the one-shot parse worker for all transferred
// pool data. It is a no-op while a parse is already running.
func (w *ManagedWorkingSet) StartParsing(parser vtobject.Parser) {
	if !w.parseState.CompareAndSwap(int32(ParseIdle), int32(ParseRunning)) &&
		!w.parseState.CompareAndSwap(int32(ParseSuccess), int32(ParseRunning)) &&
		!w.parseState.CompareAndSwap(int32(ParseFail), int32(ParseRunning)) {
		return
	}

	var combined []byte
	w.mu.Lock()
	for _, f := range w.iopFiles {
		combined = append(combined, f...)
	}
	w.mu.Unlock()

	w.parseDone = make(chan struct{})
	go func() {
		defer close(w.parseDone)
		pool, faulting, err := parser.Parse(combined)
		if err != nil {
			w.faultingObjectID = faulting
			w.parseState.Store(int32(ParseFail))
			return
		}
		if faulting, err := pool.Validate(); err != nil {
			w.faultingObjectID = faulting
			w.parseState.Store(int32(ParseFail))
			return
		}
		w.pool = pool
		w.parseState.Store(int32(ParseSuccess))
	}()
}

// joinParser waits for a worker that has already signaled a terminal
// state; the wait is bounded because the state flips before the channel
// closes.
func (w *ManagedWorkingSet) joinParser() {
	if w.parseDone != nil {
		<-w.parseDone
		w.parseDone = nil
	}
}

// acknowledgeParse returns the state flag to idle once the server has
// joined the worker and emitted the end of object pool response. The
// parsed pool itself stays available.
func (w *ManagedWorkingSet) acknowledgeParse() {
	w.parseState.Store(int32(ParseIdle))
}

// touchMaintenance refreshes the last-seen maintenance timestamp.
func (w *ManagedWorkingSet) touchMaintenance(now time.Time) {
	w.maintenanceTimestamp = now
}

// maintenanceExpired reports whether the client has gone silent longer
// than the configured timeout.
func (w *ManagedWorkingSet) maintenanceExpired(now time.Time, timeout time.Duration) bool {
	return now.Sub(w.maintenanceTimestamp) > timeout
}
