//go:build linux

// Package candriver provides concrete hardware-driver implementations of
// the network.Transceiver boundary. SocketCANTransceiver talks to a
// Linux SocketCAN interface through go.einride.tech/can.
package candriver

import (
	"context"
	"fmt"
	"net"
	"sync"

	"go.einride.tech/can/pkg/socketcan"

	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/canframe"
	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/canlog"
)

// SocketCANTransceiver is a network.Transceiver backed by a SocketCAN
// interface such as "can0" or "vcan0". Received frames are handed to the
// registered callback from a dedicated reader goroutine; the callback
// must only enqueue.
type SocketCANTransceiver struct {
	ifname string
	log    canlog.Logger

	mu      sync.Mutex
	conn    net.Conn
	tx      *socketcan.Transmitter
	rx      *socketcan.Receiver
	onRecv  func(canframe.Frame)
	cancel  context.CancelFunc
	running bool
}

// NewSocketCANTransceiver prepares a transceiver for the named
// interface; the socket is opened by Start.
func NewSocketCANTransceiver(ifname string, logger canlog.Logger) *SocketCANTransceiver {
	if logger == nil {
		logger = canlog.Discard{}
	}
	return &SocketCANTransceiver{ifname: ifname, log: logger}
}

// Start dials the SocketCAN interface and launches the reader goroutine.
func (s *SocketCANTransceiver) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return true
	}

	ctx, cancel := context.WithCancel(context.Background())
	conn, err := socketcan.DialContext(ctx, "can", s.ifname)
	if err != nil {
		cancel()
		s.log.Errorf("[SocketCAN]: dial %s: %v", s.ifname, err)
		return false
	}
	s.conn = conn
	s.tx = socketcan.NewTransmitter(conn)
	s.rx = socketcan.NewReceiver(conn)
	s.cancel = cancel
	s.running = true

	go s.readLoop()
	return true
}

func (s *SocketCANTransceiver) readLoop() {
	for s.rx.Receive() {
		frame := canframe.FromEinride(s.rx.Frame())
		s.mu.Lock()
		cb := s.onRecv
		s.mu.Unlock()
		if cb != nil {
			cb(frame)
		}
	}
	s.log.Warnf("[SocketCAN]: receive loop on %s ended", s.ifname)
}

// Stop cancels the reader and closes the socket.
func (s *SocketCANTransceiver) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.cancel()
	if err := s.conn.Close(); err != nil {
		s.log.Warnf("[SocketCAN]: close %s: %v", s.ifname, err)
	}
}

// Send transmits one frame, reporting success.
func (s *SocketCANTransceiver) Send(frame canframe.Frame) bool {
	s.mu.Lock()
	tx := s.tx
	running := s.running
	s.mu.Unlock()
	if !running {
		return false
	}

	ef, err := frame.ToEinride()
	if err != nil {
		s.log.Errorf("[SocketCAN]: encode frame: %v", err)
		return false
	}
	if err := tx.TransmitFrame(context.Background(), ef); err != nil {
		s.log.Errorf("[SocketCAN]: transmit: %v", err)
		return false
	}
	return true
}

// OnReceive registers the receive callback.
func (s *SocketCANTransceiver) OnReceive(callback func(canframe.Frame)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRecv = callback
}

// String names the transceiver for logs.
func (s *SocketCANTransceiver) String() string {
	return fmt.Sprintf("socketcan(%s)", s.ifname)
}
