package network

import (
	"sync"

	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/canframe"
)

// LoopbackTransceiver is an in-memory Transceiver for tests: everything
// sent is captured in Sent, and Deliver injects frames as if they had
// arrived from the bus.
type LoopbackTransceiver struct {
	mu       sync.Mutex
	running  bool
	onRecv   func(canframe.Frame)
	Sent     []canframe.Frame
	DropNext bool
}

// NewLoopbackTransceiver returns a loopback transceiver; call Start
// before sending through it.
func NewLoopbackTransceiver() *LoopbackTransceiver {
	return &LoopbackTransceiver{}
}

func (l *LoopbackTransceiver) Start() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.running = true
	return true
}

func (l *LoopbackTransceiver) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.running = false
}

func (l *LoopbackTransceiver) Send(frame canframe.Frame) bool {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return false
	}
	if l.DropNext {
		l.DropNext = false
		l.mu.Unlock()
		return true
	}
	l.Sent = append(l.Sent, frame)
	l.mu.Unlock()
	return true
}

func (l *LoopbackTransceiver) OnReceive(callback func(canframe.Frame)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onRecv = callback
}

// Deliver injects a frame as if it had arrived from the bus, without
// going through Send (useful for simulating a remote peer).
func (l *LoopbackTransceiver) Deliver(frame canframe.Frame) {
	l.mu.Lock()
	cb := l.onRecv
	l.mu.Unlock()
	if cb != nil {
		cb(frame)
	}
}
