// Package network implements PGN dispatch, frame transmission, and the
// cooperative tick pump that the transport and VT layers are built on.
package network

import (
	"fmt"
	"sync"

	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/canframe"
	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/controlfunction"
)

// PGNHandler receives a fully decoded frame on a PGN a caller has
// subscribed to.
type PGNHandler func(frame canframe.Frame)

// Transceiver is the hardware-driver collaborator boundary: a kernel
// socket, USB interface, or any other link that accepts and produces
// 8-byte CAN frames. Implementations live outside this module's scope;
// candriver.SocketCANTransceiver is one concrete realization.
type Transceiver interface {
	Start() bool
	Stop()
	Send(frame canframe.Frame) bool
	// OnReceive registers the callback the transceiver invokes for every
	// received frame. It may be called from an I/O thread; the callback
	// must only enqueue, never process in place.
	OnReceive(callback func(canframe.Frame))
}

type pgnSubscription struct {
	handler     PGNHandler
	destination *uint8 // nil means "any destination", used by any-CF handlers
}

// Tickable is a component the Manager drives cooperatively from Tick.
// The transport manager, the VT server, and address-claim state machines
// all implement this.
type Tickable interface {
	Tick()
}

// Manager dispatches incoming frames to registered PGN handlers, sends
// outgoing frames through a Transceiver, and pumps registered Tickables
// on each Tick call. Tick is the single cooperative scheduling point: all
// protocol state transitions happen inside it.
type Manager struct {
	registry    *controlfunction.Registry
	transceiver Transceiver

	mu          sync.Mutex
	handlers    map[uint32][]pgnSubscription
	anyHandlers map[uint32][]PGNHandler
	tickables   []Tickable

	rxMu    sync.Mutex
	rxQueue []canframe.Frame
}

// NewManager creates a Manager bound to a control-function registry and a
// hardware transceiver. The transceiver's receive callback is wired to
// enqueue frames for draining inside Tick.
func NewManager(registry *controlfunction.Registry, transceiver Transceiver) *Manager {
	m := &Manager{
		registry:    registry,
		transceiver: transceiver,
		handlers:    make(map[uint32][]pgnSubscription),
		anyHandlers: make(map[uint32][]PGNHandler),
	}
	if transceiver != nil {
		transceiver.OnReceive(m.enqueueReceived)
	}
	return m
}

func (m *Manager) enqueueReceived(f canframe.Frame) {
	m.rxMu.Lock()
	m.rxQueue = append(m.rxQueue, f)
	m.rxMu.Unlock()
}

// RegisterPGNHandler subscribes fn to frames on pgn addressed to one of
// this node's internal control functions (destination matches, or the PGN
// is a broadcast PGN).
func (m *Manager) RegisterPGNHandler(pgn uint32, fn PGNHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[pgn] = append(m.handlers[pgn], pgnSubscription{handler: fn})
}

// RegisterAnyControlFunctionHandler subscribes fn to every frame on pgn,
// regardless of destination.
func (m *Manager) RegisterAnyControlFunctionHandler(pgn uint32, fn PGNHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.anyHandlers[pgn] = append(m.anyHandlers[pgn], fn)
}

// RegisterTickable adds a component to be driven from Tick.
func (m *Manager) RegisterTickable(t Tickable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickables = append(m.tickables, t)
}

// SendFrame encodes and transmits a PGN payload as a single 8-byte CAN
// frame. It does not segment long payloads; callers with payloads over 8
// bytes must go through the transport package.
func (m *Manager) SendFrame(pgn uint32, data []byte, source, destination, priority uint8) (bool, error) {
	if len(data) > 8 {
		return false, fmt.Errorf("network: SendFrame payload of %d bytes exceeds 8-byte frame", len(data))
	}
	frame, err := canframe.NewFrame(priority, pgn, source, destination, data)
	if err != nil {
		return false, err
	}
	if m.transceiver == nil {
		return false, fmt.Errorf("network: no transceiver configured")
	}
	return m.transceiver.Send(frame), nil
}

// dispatch routes a received frame first to destination-scoped PGN
// handlers, then to any-control-function handlers. A frame matching both
// is delivered to both, in that order.
func (m *Manager) dispatch(frame canframe.Frame) {
	m.mu.Lock()
	scoped := append([]pgnSubscription(nil), m.handlers[frame.ID.PGN]...)
	any := append([]PGNHandler(nil), m.anyHandlers[frame.ID.PGN]...)
	m.mu.Unlock()

	addressedToUs := frame.ID.IsBroadcast() ||
		frame.ID.Destination == canframe.AddressGlobal ||
		m.registry.IsInternal(frame.ID.Destination)
	if addressedToUs {
		for _, sub := range scoped {
			sub.handler(frame)
		}
	}
	for _, fn := range any {
		fn(frame)
	}
}

// Tick drains queued received frames to registered handlers, then pumps
// every registered Tickable. This is the single cooperative scheduling
// point for the whole stack; callers must invoke it on a cadence of at
// least 10ms and must not call it concurrently with itself.
func (m *Manager) Tick() {
	m.rxMu.Lock()
	pending := m.rxQueue
	m.rxQueue = nil
	m.rxMu.Unlock()

	for _, frame := range pending {
		m.dispatch(frame)
	}

	m.mu.Lock()
	tickables := append([]Tickable(nil), m.tickables...)
	m.mu.Unlock()
	for _, t := range tickables {
		t.Tick()
	}

	m.registry.PruneInvalid()
}

// Registry returns the control-function registry backing this manager.
func (m *Manager) Registry() *controlfunction.Registry {
	return m.registry
}
