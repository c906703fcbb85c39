package transport

import (
	"bytes"
	"testing"
	"time"

	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/canframe"
	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/canlog"
	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/controlfunction"
	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/network"
)

// harness wires a transport manager to a loopback transceiver with a
// controllable clock. Frames the manager sends are captured in link.Sent
// but not looped back, so tests can play the remote peer explicitly.
type harness struct {
	registry *controlfunction.Registry
	link     *network.LoopbackTransceiver
	net      *network.Manager
	tp       *Manager
	now      time.Time
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		registry: controlfunction.NewRegistry(),
		link:     network.NewLoopbackTransceiver(),
		now:      time.Unix(1000, 0),
	}
	h.link.Start()
	h.net = network.NewManager(h.registry, h.link)
	tp, err := NewManager(h.net, cfg, canlog.Discard{})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	h.tp = tp
	h.tp.clock = func() time.Time { return h.now }
	h.net.RegisterTickable(h.tp)
	return h
}

func (h *harness) advance(d time.Duration) {
	h.now = h.now.Add(d)
}

// deliver injects a remote frame and pumps one tick so it is dispatched.
func (h *harness) deliver(t *testing.T, pgn uint32, source, destination uint8, data []byte) {
	t.Helper()
	frame, err := canframe.NewFrame(7, pgn, source, destination, data)
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	h.link.Deliver(frame)
	h.net.Tick()
}

// sentFrames returns captured frames on a PGN, consuming nothing.
func (h *harness) sentFrames(pgn uint32) []canframe.Frame {
	var out []canframe.Frame
	for _, f := range h.link.Sent {
		if f.ID.PGN == pgn {
			out = append(out, f)
		}
	}
	return out
}

func (h *harness) clearSent() {
	h.link.Sent = nil
}

func TestTransmitRejectsBadRequests(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	src := controlfunction.New(controlfunction.Internal, 1, 0x26)
	h.registry.AddInternal(src)
	dst := h.registry.GetOrCreateExternal(0x80)

	cases := []struct {
		name string
		run  func() error
	}{
		{"too short", func() error {
			return h.tp.Transmit(0x1F001, make([]byte, 8), src, dst, nil)
		}},
		{"too long", func() error {
			return h.tp.Transmit(0x1F001, make([]byte, MaxPayloadLength+1), src, dst, nil)
		}},
		{"invalid source", func() error {
			bad := controlfunction.New(controlfunction.Internal, 2, canframe.AddressNull)
			return h.tp.Transmit(0x1F001, make([]byte, 20), bad, dst, nil)
		}},
	}
	for _, tc := range cases {
		if err := tc.run(); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}

	if err := h.tp.Transmit(0x1F001, make([]byte, 20), src, dst, nil); err != nil {
		t.Fatalf("valid transmit: %v", err)
	}
	if err := h.tp.Transmit(0x1F001, make([]byte, 20), src, dst, nil); err == nil {
		t.Errorf("expected slot-busy error for duplicate (source, destination)")
	}
}

// TestConnectionModeRoundTrip sends a 100-byte payload end to end: RTS,
// full CTS window, 15 data frames, EOM-ACK, completion callback.
func TestConnectionModeRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxFramesPerTick = 255
	h := newHarness(t, cfg)
	src := controlfunction.New(controlfunction.Internal, 1, 0x26)
	h.registry.AddInternal(src)
	dst := h.registry.GetOrCreateExternal(0x80)

	payload := make([]byte, 100)
	for i := range payload {
		payload[i] = byte(i + 1)
	}

	var completed, success bool
	err := h.tp.Transmit(0x1F001, payload, src, dst, func(pgn uint32, length int, destination *controlfunction.ControlFunction, ok bool) {
		completed = true
		success = ok
		if pgn != 0x1F001 || length != 100 || destination != dst {
			t.Errorf("completion args: pgn=%#X length=%d", pgn, length)
		}
	})
	if err != nil {
		t.Fatalf("Transmit: %v", err)
	}

	h.net.Tick() // emits RTS
	cm := h.sentFrames(PGNConnectionManagement)
	if len(cm) != 1 {
		t.Fatalf("expected 1 TP.CM frame, got %d", len(cm))
	}
	rts := cm[0].Data
	if rts[0] != muxRequestToSend || rts[1] != 100 || rts[2] != 0 || rts[3] != 15 {
		t.Fatalf("bad RTS frame: %x", rts)
	}
	if got := uint32(rts[5]) | uint32(rts[6])<<8 | uint32(rts[7])<<16; got != 0x1F001 {
		t.Fatalf("RTS pgn = %#X", got)
	}

	// Peer grants the whole transfer.
	h.clearSent()
	h.deliver(t, PGNConnectionManagement, 0x80, 0x26, []byte{muxClearToSend, 15, 1, 0xFF, 0xFF, 0x01, 0xF0, 0x01})

	dt := h.sentFrames(PGNDataTransfer)
	if len(dt) != 15 {
		t.Fatalf("expected 15 TP.DT frames, got %d", len(dt))
	}
	var assembled []byte
	for i, f := range dt {
		if int(f.Data[0]) != i+1 {
			t.Fatalf("frame %d sequence = %d", i, f.Data[0])
		}
		assembled = append(assembled, f.Data[1:]...)
	}
	if !bytes.Equal(assembled[:100], payload) {
		t.Fatalf("reassembled payload mismatch")
	}
	// The final frame carries 2 payload bytes then 0xFF padding.
	last := dt[14].Data
	if last[1] != payload[98] || last[2] != payload[99] {
		t.Fatalf("final frame payload bytes wrong: %x", last)
	}
	for _, b := range last[3:] {
		if b != 0xFF {
			t.Fatalf("final frame not padded with 0xFF: %x", last)
		}
	}

	h.deliver(t, PGNConnectionManagement, 0x80, 0x26, []byte{muxEndOfMessageAck, 100, 0, 15, 0xFF, 0x01, 0xF0, 0x01})
	if !completed || !success {
		t.Fatalf("completion callback: completed=%v success=%v", completed, success)
	}
	if h.tp.ActiveSessionCount() != 0 {
		t.Fatalf("session table not empty after EOM-ACK")
	}
}

// TestBroadcastRoundTrip broadcasts a 20-byte payload: announce, three
// paced data frames, silent close with no EOM-ACK.
func TestBroadcastRoundTrip(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	src := controlfunction.New(controlfunction.Internal, 1, 0x26)
	h.registry.AddInternal(src)

	payload := make([]byte, 20)
	for i := range payload {
		payload[i] = byte(0xA0 + i)
	}
	if err := h.tp.Transmit(0x1F002, payload, src, nil, nil); err != nil {
		t.Fatalf("Transmit: %v", err)
	}

	h.net.Tick() // BAM
	cm := h.sentFrames(PGNConnectionManagement)
	if len(cm) != 1 {
		t.Fatalf("expected 1 BAM frame, got %d", len(cm))
	}
	bam := cm[0].Data
	if bam[0] != muxBroadcastAnnounce || bam[1] != 20 || bam[2] != 0 || bam[3] != 3 {
		t.Fatalf("bad BAM frame: %x", bam)
	}
	if cm[0].ID.Destination != canframe.AddressGlobal {
		t.Fatalf("BAM destination = %#X", cm[0].ID.Destination)
	}

	// Frames are paced: a tick inside the gap must emit nothing.
	h.net.Tick()
	if len(h.sentFrames(PGNDataTransfer)) != 0 {
		t.Fatalf("data frame emitted before pacing gap elapsed")
	}
	for i := 0; i < 3; i++ {
		h.advance(51 * time.Millisecond)
		h.net.Tick()
		if got := len(h.sentFrames(PGNDataTransfer)); got != i+1 {
			t.Fatalf("after gap %d expected %d data frames, got %d", i, i+1, got)
		}
	}
	if h.tp.ActiveSessionCount() != 0 {
		t.Fatalf("broadcast tx session should close after final frame")
	}
	for _, f := range h.sentFrames(PGNConnectionManagement) {
		if f.Data[0] == muxEndOfMessageAck {
			t.Fatalf("broadcast session must not emit EOM-ACK")
		}
	}
}

// TestBroadcastReceive assembles a BAM transfer and delivers it once.
func TestBroadcastReceive(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	local := controlfunction.New(controlfunction.Internal, 1, 0x26)
	h.registry.AddInternal(local)

	var got []Message
	h.tp.RegisterMessageHandler(0x1F002, func(msg Message) { got = append(got, msg) })

	h.deliver(t, PGNConnectionManagement, 0x80, canframe.AddressGlobal, []byte{muxBroadcastAnnounce, 20, 0, 3, 0xFF, 0x02, 0xF0, 0x01})
	payload := make([]byte, 20)
	for i := range payload {
		payload[i] = byte(i)
	}
	for seq := 1; seq <= 3; seq++ {
		data := []byte{byte(seq), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
		for j := 0; j < 7; j++ {
			idx := (seq-1)*7 + j
			if idx < len(payload) {
				data[1+j] = payload[idx]
			}
		}
		h.deliver(t, PGNDataTransfer, 0x80, canframe.AddressGlobal, data)
	}

	if len(got) != 1 {
		t.Fatalf("expected exactly 1 delivered message, got %d", len(got))
	}
	if !bytes.Equal(got[0].Data, payload) {
		t.Fatalf("assembled payload mismatch: %x", got[0].Data)
	}
	if got[0].Destination != nil {
		t.Fatalf("broadcast message should have nil destination")
	}
}

// TestDuplicateSequenceAborts: a repeated sequence number aborts the rx
// session with reason 8.
func TestDuplicateSequenceAborts(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	local := controlfunction.New(controlfunction.Internal, 1, 0x26)
	h.registry.AddInternal(local)

	h.deliver(t, PGNConnectionManagement, 0x80, 0x26, []byte{muxRequestToSend, 100, 0, 15, 16, 0x01, 0xF0, 0x01})
	h.net.Tick() // the CTS already went out during deliver's tick
	h.clearSent()

	for seq := 1; seq <= 3; seq++ {
		h.deliver(t, PGNDataTransfer, 0x80, 0x26, []byte{byte(seq), 1, 2, 3, 4, 5, 6, 7})
	}
	// Duplicate of sequence 3.
	h.deliver(t, PGNDataTransfer, 0x80, 0x26, []byte{3, 1, 2, 3, 4, 5, 6, 7})

	aborts := 0
	for _, f := range h.sentFrames(PGNConnectionManagement) {
		if f.Data[0] == muxConnectionAbort {
			aborts++
			if f.Data[1] != byte(AbortDuplicateSequenceNumber) {
				t.Fatalf("abort reason = %d, want %d", f.Data[1], AbortDuplicateSequenceNumber)
			}
			if f.ID.Destination != 0x80 {
				t.Fatalf("abort destination = %#X", f.ID.Destination)
			}
		}
	}
	if aborts != 1 {
		t.Fatalf("expected 1 abort frame, got %d", aborts)
	}
	if h.tp.ActiveSessionCount() != 0 {
		t.Fatalf("session should be removed after duplicate-sequence abort")
	}
}

// TestBadSequenceAborts verifies any other sequence mismatch uses
// reason 7.
func TestBadSequenceAborts(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	local := controlfunction.New(controlfunction.Internal, 1, 0x26)
	h.registry.AddInternal(local)

	h.deliver(t, PGNConnectionManagement, 0x80, 0x26, []byte{muxRequestToSend, 100, 0, 15, 16, 0x01, 0xF0, 0x01})
	h.net.Tick()
	h.clearSent()

	h.deliver(t, PGNDataTransfer, 0x80, 0x26, []byte{5, 1, 2, 3, 4, 5, 6, 7})

	cm := h.sentFrames(PGNConnectionManagement)
	if len(cm) != 1 || cm[0].Data[0] != muxConnectionAbort || cm[0].Data[1] != byte(AbortBadSequenceNumber) {
		t.Fatalf("expected BadSequenceNumber abort, got %x", cm)
	}
}

// TestAdmissionAbort: with the session cap at 1 and one session active,
// a second RTS is refused with AlreadyInCMSession.
func TestAdmissionAbort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSessions = 1
	h := newHarness(t, cfg)
	local := controlfunction.New(controlfunction.Internal, 1, 0x26)
	h.registry.AddInternal(local)

	h.deliver(t, PGNConnectionManagement, 0x80, 0x26, []byte{muxRequestToSend, 100, 0, 15, 16, 0x01, 0xF0, 0x01})
	if h.tp.ActiveSessionCount() != 1 {
		t.Fatalf("first RTS should open a session")
	}
	h.clearSent()

	h.deliver(t, PGNConnectionManagement, 0x81, 0x26, []byte{muxRequestToSend, 100, 0, 15, 16, 0x01, 0xF0, 0x01})
	cm := h.sentFrames(PGNConnectionManagement)
	if len(cm) != 1 || cm[0].Data[0] != muxConnectionAbort || cm[0].Data[1] != byte(AbortAlreadyInCMSession) {
		t.Fatalf("expected AlreadyInCMSession abort, got %x", cm)
	}
	if cm[0].ID.Destination != 0x81 {
		t.Fatalf("abort sent to %#X, want 0x81", cm[0].ID.Destination)
	}
	if h.tp.ActiveSessionCount() != 1 {
		t.Fatalf("second RTS must not create a session")
	}
}

// TestAdmissionDropsBroadcast: over-limit BAM is ignored without reply.
func TestAdmissionDropsBroadcast(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSessions = 1
	h := newHarness(t, cfg)
	local := controlfunction.New(controlfunction.Internal, 1, 0x26)
	h.registry.AddInternal(local)

	h.deliver(t, PGNConnectionManagement, 0x80, 0x26, []byte{muxRequestToSend, 100, 0, 15, 16, 0x01, 0xF0, 0x01})
	h.clearSent()
	h.deliver(t, PGNConnectionManagement, 0x82, canframe.AddressGlobal, []byte{muxBroadcastAnnounce, 20, 0, 3, 0xFF, 0x02, 0xF0, 0x01})

	if len(h.sentFrames(PGNConnectionManagement)) != 0 {
		t.Fatalf("broadcast admission refusal must be silent")
	}
	if h.tp.ActiveSessionCount() != 1 {
		t.Fatalf("over-limit BAM must not create a session")
	}
}

// TestReceivedAbortClosesSilently: a peer abort closes the session with
// no reply frame.
func TestReceivedAbortClosesSilently(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	local := controlfunction.New(controlfunction.Internal, 1, 0x26)
	h.registry.AddInternal(local)

	h.deliver(t, PGNConnectionManagement, 0x80, 0x26, []byte{muxRequestToSend, 100, 0, 15, 16, 0x01, 0xF0, 0x01})
	h.net.Tick()
	h.clearSent()

	h.deliver(t, PGNConnectionManagement, 0x80, 0x26, []byte{muxConnectionAbort, byte(AbortAnyOtherError), 0xFF, 0xFF, 0xFF, 0x01, 0xF0, 0x01})
	if h.tp.ActiveSessionCount() != 0 {
		t.Fatalf("session should close on received abort")
	}
	if len(h.sentFrames(PGNConnectionManagement)) != 0 {
		t.Fatalf("received abort must not be answered")
	}
}

// TestCTSWindowFlowControl: a two-packet CTS window makes the sender
// stop after two frames and wait for the next grant.
func TestCTSWindowFlowControl(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxFramesPerTick = 255
	h := newHarness(t, cfg)
	src := controlfunction.New(controlfunction.Internal, 1, 0x26)
	h.registry.AddInternal(src)
	dst := h.registry.GetOrCreateExternal(0x80)

	payload := make([]byte, 28) // 4 packets
	if err := h.tp.Transmit(0x1F001, payload, src, dst, nil); err != nil {
		t.Fatalf("Transmit: %v", err)
	}
	h.net.Tick() // RTS
	h.clearSent()

	h.deliver(t, PGNConnectionManagement, 0x80, 0x26, []byte{muxClearToSend, 2, 1, 0xFF, 0xFF, 0x01, 0xF0, 0x01})
	if got := len(h.sentFrames(PGNDataTransfer)); got != 2 {
		t.Fatalf("expected 2 data frames for a 2-packet window, got %d", got)
	}
	h.net.Tick()
	if got := len(h.sentFrames(PGNDataTransfer)); got != 2 {
		t.Fatalf("sender must hold after exhausting the window, got %d frames", got)
	}

	h.deliver(t, PGNConnectionManagement, 0x80, 0x26, []byte{muxClearToSend, 2, 3, 0xFF, 0xFF, 0x01, 0xF0, 0x01})
	dt := h.sentFrames(PGNDataTransfer)
	if len(dt) != 4 {
		t.Fatalf("expected 4 data frames after second grant, got %d", len(dt))
	}
	for i, f := range dt {
		if int(f.Data[0]) != i+1 {
			t.Fatalf("frame %d sequence = %d", i, f.Data[0])
		}
	}
}

// TestZeroWindowCTSHolds: a packets=0 CTS is a wait hint; the sender
// stays in WaitForClearToSend without advancing.
func TestZeroWindowCTSHolds(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	src := controlfunction.New(controlfunction.Internal, 1, 0x26)
	h.registry.AddInternal(src)
	dst := h.registry.GetOrCreateExternal(0x80)

	if err := h.tp.Transmit(0x1F001, make([]byte, 28), src, dst, nil); err != nil {
		t.Fatalf("Transmit: %v", err)
	}
	h.net.Tick()
	h.clearSent()

	h.deliver(t, PGNConnectionManagement, 0x80, 0x26, []byte{muxClearToSend, 0, 1, 0xFF, 0xFF, 0x01, 0xF0, 0x01})
	h.net.Tick()
	if len(h.sentFrames(PGNDataTransfer)) != 0 {
		t.Fatalf("wait CTS must not release data frames")
	}
	if h.tp.ActiveSessionCount() != 1 {
		t.Fatalf("session must persist through a wait CTS")
	}
}

// TestReceiverReissuesCTS: the receiver grants another window after the
// first is consumed.
func TestReceiverReissuesCTS(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	local := controlfunction.New(controlfunction.Internal, 1, 0x26)
	h.registry.AddInternal(local)

	// 4 packets total, window max of 2.
	h.deliver(t, PGNConnectionManagement, 0x80, 0x26, []byte{muxRequestToSend, 28, 0, 4, 2, 0x01, 0xF0, 0x01})
	h.net.Tick()
	cts := h.sentFrames(PGNConnectionManagement)
	if len(cts) != 1 || cts[0].Data[0] != muxClearToSend || cts[0].Data[1] != 2 || cts[0].Data[2] != 1 {
		t.Fatalf("bad first CTS: %x", cts)
	}
	h.clearSent()

	h.deliver(t, PGNDataTransfer, 0x80, 0x26, []byte{1, 1, 2, 3, 4, 5, 6, 7})
	h.deliver(t, PGNDataTransfer, 0x80, 0x26, []byte{2, 1, 2, 3, 4, 5, 6, 7})
	h.net.Tick()
	cts = h.sentFrames(PGNConnectionManagement)
	if len(cts) != 1 || cts[0].Data[0] != muxClearToSend || cts[0].Data[1] != 2 || cts[0].Data[2] != 3 {
		t.Fatalf("bad second CTS: %x", cts)
	}
}

// TestTimeoutAbortsTxSession: no CTS within the connection timeout
// aborts with reason Timeout.
func TestTimeoutAbortsTxSession(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	src := controlfunction.New(controlfunction.Internal, 1, 0x26)
	h.registry.AddInternal(src)
	dst := h.registry.GetOrCreateExternal(0x80)

	var success *bool
	if err := h.tp.Transmit(0x1F001, make([]byte, 28), src, dst, func(pgn uint32, length int, destination *controlfunction.ControlFunction, ok bool) {
		success = &ok
	}); err != nil {
		t.Fatalf("Transmit: %v", err)
	}
	h.net.Tick() // RTS, now waiting for CTS
	h.clearSent()

	h.advance(1300 * time.Millisecond)
	h.net.Tick()

	cm := h.sentFrames(PGNConnectionManagement)
	if len(cm) != 1 || cm[0].Data[0] != muxConnectionAbort || cm[0].Data[1] != byte(AbortTimeout) {
		t.Fatalf("expected Timeout abort, got %x", cm)
	}
	if success == nil || *success {
		t.Fatalf("completion callback must fire with success=false")
	}
}

// TestAddressLossClosesSession: a session whose peer loses its address
// is aborted on the next tick.
func TestAddressLossClosesSession(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	src := controlfunction.New(controlfunction.Internal, 1, 0x26)
	h.registry.AddInternal(src)
	dst := h.registry.GetOrCreateExternal(0x80)

	if err := h.tp.Transmit(0x1F001, make([]byte, 28), src, dst, nil); err != nil {
		t.Fatalf("Transmit: %v", err)
	}
	dst.Invalidate()
	h.net.Tick()
	if h.tp.ActiveSessionCount() != 0 {
		t.Fatalf("session must close when the peer address becomes invalid")
	}
}

// TestBroadcastRxTimeoutSilent: a stalled broadcast receive closes with
// no abort frame.
func TestBroadcastRxTimeoutSilent(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	local := controlfunction.New(controlfunction.Internal, 1, 0x26)
	h.registry.AddInternal(local)

	h.deliver(t, PGNConnectionManagement, 0x80, canframe.AddressGlobal, []byte{muxBroadcastAnnounce, 20, 0, 3, 0xFF, 0x02, 0xF0, 0x01})
	h.clearSent()

	h.advance(800 * time.Millisecond)
	h.net.Tick()
	if h.tp.ActiveSessionCount() != 0 {
		t.Fatalf("broadcast rx session should time out")
	}
	if len(h.sentFrames(PGNConnectionManagement)) != 0 {
		t.Fatalf("broadcast timeout must not emit an abort")
	}
}
