// Package transport implements the ISO 11783-3 / SAE J1939-21 transport
// protocol: segmented transfer of 9..1785 byte messages over 8-byte CAN
// frames, in both the connection-managed (RTS/CTS) and broadcast (BAM)
// variants.
package transport

import (
	"time"

	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/canframe"
	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/canlog"
	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/controlfunction"
	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/network"
)

// Transport protocol PGNs.
const (
	PGNConnectionManagement uint32 = 0x00EC00 // TP.CM
	PGNDataTransfer         uint32 = 0x00EB00 // TP.DT
)

// TP.CM multiplexor values (byte 0).
const (
	muxRequestToSend     = 0x10
	muxClearToSend       = 0x11
	muxEndOfMessageAck   = 0x13
	muxBroadcastAnnounce = 0x20
	muxConnectionAbort   = 0xFF
)

// priorityLowest is the CAN priority used for all transport frames.
const priorityLowest = 7

// MessageHandler receives a fully reassembled multi-packet message.
type MessageHandler func(msg Message)

// Manager runs the transport protocol session table. All methods except
// Transmit and RegisterMessageHandler are driven from the network
// manager's Tick; the caller must serialize Transmit with the tick loop
// as described in the concurrency model.
type Manager struct {
	cfg      Config
	net      *network.Manager
	registry *controlfunction.Registry
	log      canlog.Logger

	sessions []*session

	handlers map[uint32][]MessageHandler

	clock func() time.Time
}

// NewManager creates a transport manager bound to a network manager and
// registers its TP.CM and TP.DT frame handlers. The caller is expected to
// add the returned manager to the network manager's tick loop.
func NewManager(net *network.Manager, cfg Config, logger canlog.Logger) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = canlog.Discard{}
	}
	m := &Manager{
		cfg:      cfg,
		net:      net,
		registry: net.Registry(),
		log:      logger,
		handlers: make(map[uint32][]MessageHandler),
		clock:    time.Now,
	}
	net.RegisterPGNHandler(PGNConnectionManagement, m.handleConnectionManagement)
	net.RegisterPGNHandler(PGNDataTransfer, m.handleDataTransfer)
	return m, nil
}

// RegisterMessageHandler subscribes fn to reassembled messages on pgn.
func (m *Manager) RegisterMessageHandler(pgn uint32, fn MessageHandler) {
	m.handlers[pgn] = append(m.handlers[pgn], fn)
}

// Transmit starts a new transmit session for the given payload. A nil
// destination starts a broadcast (BAM) session. The completion callback,
// if any, fires when the session closes.
func (m *Manager) Transmit(pgn uint32, data []byte, source, destination *controlfunction.ControlFunction, onComplete CompleteCallback) error {
	if len(data) < MinPayloadLength || len(data) > MaxPayloadLength {
		return PayloadLengthError{}
	}
	if source == nil || !source.IsValid() {
		return UnknownSourceError{}
	}
	if m.findSession(source, destination) != nil {
		return SessionSlotBusyError{}
	}

	s := &session{
		direction:   Transmit,
		pgn:         pgn,
		source:      source,
		destination: destination,
		data:        append([]byte(nil), data...),
		onComplete:  onComplete,
	}
	s.totalPackets = packetCountForLength(len(data))
	s.packetCount = s.totalPackets

	if destination != nil {
		s.setState(StateRequestToSend, m.clock())
	} else {
		s.setState(StateBroadcastAnnounce, m.clock())
	}
	m.sessions = append(m.sessions, s)
	return nil
}

// ActiveSessionCount returns the number of sessions currently in the
// table, for admission decisions and tests.
func (m *Manager) ActiveSessionCount() int {
	return len(m.sessions)
}

// Tick advances every active session's state machine: it emits pending
// control frames, paces data frames, and applies the timeout rules.
func (m *Manager) Tick() {
	// Snapshot: sessions may close themselves while being updated.
	active := append([]*session(nil), m.sessions...)
	for _, s := range active {
		if !m.hasSession(s) {
			continue
		}
		if !s.canContinue() {
			m.log.Warnf("[TP]: Closing active session for %#06X as it is unable to continue", s.pgn)
			m.abortSession(s, AbortAnyOtherError)
			continue
		}
		m.updateStateMachine(s)
	}
}

func (m *Manager) updateStateMachine(s *session) {
	now := m.clock()
	switch s.state {
	case StateNone:

	case StateClearToSend:
		if m.sendClearToSend(s) {
			s.setState(StateRxDataSession, now)
		}

	case StateWaitForClearToSend, StateWaitForEndOfMessageAcknowledge:
		timeout := m.cfg.ConnectionTimeout
		if s.state == StateWaitForClearToSend && s.clearToSendHold {
			timeout = m.cfg.CTSHoldTimeout
		}
		if now.Sub(s.timestamp) > timeout {
			m.log.Errorf("[TP]: Timeout tx session for %#06X", s.pgn)
			m.abortSession(s, AbortTimeout)
		}

	case StateRequestToSend:
		if m.sendRequestToSend(s) {
			s.setState(StateWaitForClearToSend, now)
		}

	case StateBroadcastAnnounce:
		if m.sendBroadcastAnnounce(s) {
			s.setState(StateTxDataSession, now)
		}

	case StateTxDataSession:
		if s.isBroadcast() && now.Sub(s.timestamp) < m.cfg.MinBAMGap {
			// Hold the pacing gap before the next broadcast data frame.
			return
		}
		m.sendDataTransferPackets(s)

	case StateRxDataSession:
		if s.isBroadcast() {
			if now.Sub(s.timestamp) > m.cfg.BroadcastRxTimeout {
				m.log.Warnf("[TP]: Broadcast rx session timeout for %#06X", s.pgn)
				m.closeSession(s, false)
			}
		} else {
			if now.Sub(s.timestamp) > m.cfg.RxDataGapTimeout {
				m.log.Errorf("[TP]: Destination specific rx session timeout for %#06X", s.pgn)
				m.abortSession(s, AbortTimeout)
			}
		}
	}
}

func (m *Manager) sendDataTransferPackets(s *session) {
	framesSent := 0
	for s.lastPacketNumber < s.packetCount {
		var buffer [8]byte
		buffer[0] = byte(s.processedPackets + 1)
		for j := 0; j < bytesPerFrame; j++ {
			index := j + bytesPerFrame*s.processedPackets
			if index < s.dataLength() {
				buffer[1+j] = s.data[index]
			} else {
				buffer[1+j] = 0xFF
			}
		}

		if !m.sendFrame(PGNDataTransfer, buffer[:], s.source, s.destination) {
			// Try again next tick.
			break
		}
		framesSent++
		s.lastPacketNumber++
		s.processedPackets++
		s.timestamp = m.clock()

		if s.isBroadcast() {
			// One frame per tick; the pacing gap applies before the next.
			break
		}
		if framesSent >= m.cfg.MaxFramesPerTick {
			break
		}
	}

	if s.lastPacketNumber == s.packetCount {
		if s.dataLength() <= bytesPerFrame*s.processedPackets {
			if s.isBroadcast() {
				m.closeSession(s, true)
			} else {
				s.setState(StateWaitForEndOfMessageAcknowledge, m.clock())
			}
		} else {
			s.setState(StateWaitForClearToSend, m.clock())
		}
	}
}

// handleConnectionManagement processes a TP.CM frame.
func (m *Manager) handleConnectionManagement(frame canframe.Frame) {
	if len(frame.Data) != 8 {
		m.log.Warnf("[TP]: Received a Connection Management message of invalid length %d", len(frame.Data))
		return
	}
	pgn := uint32(frame.Data[5]) | uint32(frame.Data[6])<<8 | uint32(frame.Data[7])<<16
	global := frame.ID.Destination == canframe.AddressGlobal
	source := m.registry.GetOrCreateExternal(frame.ID.Source)

	switch frame.Data[0] {
	case muxBroadcastAnnounce:
		if !global {
			m.log.Warnf("[TP]: Received a Broadcast Announcement Message (BAM) with a non-global destination, ignoring")
			return
		}
		totalSize := int(frame.Data[1]) | int(frame.Data[2])<<8
		totalPackets := int(frame.Data[3])
		m.processBroadcastAnnounce(source, pgn, totalSize, totalPackets)

	case muxRequestToSend:
		if global {
			m.log.Warnf("[TP]: Received a Request to Send (RTS) message with a global destination, ignoring")
			return
		}
		destination := m.registry.ByAddress(frame.ID.Destination)
		if destination == nil {
			return
		}
		totalSize := int(frame.Data[1]) | int(frame.Data[2])<<8
		totalPackets := int(frame.Data[3])
		windowMax := int(frame.Data[4])
		m.processRequestToSend(source, destination, pgn, totalSize, totalPackets, windowMax)

	case muxClearToSend:
		if global {
			m.log.Warnf("[TP]: Received a Clear to Send (CTS) message with a global destination, ignoring")
			return
		}
		destination := m.registry.ByAddress(frame.ID.Destination)
		if destination == nil {
			return
		}
		packetsThisWindow := int(frame.Data[1])
		nextPacket := int(frame.Data[2])
		m.processClearToSend(source, destination, pgn, packetsThisWindow, nextPacket)

	case muxEndOfMessageAck:
		if global {
			m.log.Warnf("[TP]: Received an End of Message Acknowledge message with a global destination, ignoring")
			return
		}
		destination := m.registry.ByAddress(frame.ID.Destination)
		if destination == nil {
			return
		}
		m.processEndOfMessageAck(source, destination, pgn)

	case muxConnectionAbort:
		if global {
			m.log.Warnf("[TP]: Received an Abort message with a global destination, ignoring")
			return
		}
		destination := m.registry.ByAddress(frame.ID.Destination)
		if destination == nil {
			return
		}
		m.processAbort(source, destination, pgn, AbortReason(frame.Data[1]))

	default:
		m.log.Warnf("[TP]: Bad Mux in Transport Protocol Connection Management message")
	}
}

func (m *Manager) processBroadcastAnnounce(source *controlfunction.ControlFunction, pgn uint32, totalSize, totalPackets int) {
	// The standard forbids aborting global-destination sessions; over
	// the session limit the BAM is simply ignored.
	if len(m.sessions) >= m.cfg.MaxSessions {
		m.log.Warnf("[TP]: Ignoring Broadcast Announcement Message (BAM) for %#06X, configured maximum number of sessions reached", pgn)
		return
	}
	if existing := m.findSession(source, nil); existing != nil {
		m.log.Warnf("[TP]: Received Broadcast Announcement Message (BAM) while a session already existed for this source, overwriting for %#06X", pgn)
		m.closeSession(existing, false)
	}

	s := &session{
		direction: Receive,
		pgn:       pgn,
		source:    source,
		data:      make([]byte, totalSize),
	}
	s.packetCount = totalPackets
	s.totalPackets = totalPackets
	s.setState(StateRxDataSession, m.clock())
	m.sessions = append(m.sessions, s)
	m.log.Debugf("[TP]: New rx broadcast message session for %#06X. Source: %d", pgn, source.Address())
}

func (m *Manager) processRequestToSend(source, destination *controlfunction.ControlFunction, pgn uint32, totalSize, totalPackets, windowMax int) {
	if len(m.sessions) >= m.cfg.MaxSessions {
		m.log.Warnf("[TP]: Replying with abort to Request To Send (RTS) for %#06X, configured maximum number of sessions reached", pgn)
		m.sendAbort(destination, source, pgn, AbortAlreadyInCMSession)
		return
	}
	if existing := m.findSession(source, destination); existing != nil {
		if existing.pgn != pgn {
			m.log.Errorf("[TP]: Received Request To Send (RTS) while a session already existed for this source and destination, aborting for %#06X", pgn)
			m.abortSession(existing, AbortAlreadyInCMSession)
		} else {
			m.log.Warnf("[TP]: Received Request To Send (RTS) while a session already existed for this source, destination and pgn, overwriting for %#06X", pgn)
			m.closeSession(existing, false)
		}
	}

	s := &session{
		direction:   Receive,
		pgn:         pgn,
		source:      source,
		destination: destination,
		data:        make([]byte, totalSize),
	}
	s.packetCount = totalPackets
	s.totalPackets = totalPackets
	s.clearToSendPacketMax = windowMax
	s.setState(StateClearToSend, m.clock())
	m.sessions = append(m.sessions, s)
}

func (m *Manager) processClearToSend(source, destination *controlfunction.ControlFunction, pgn uint32, packetsThisWindow, nextPacket int) {
	// The CTS comes from the remote receiver to our sender; the tx
	// session is keyed (local, remote).
	s := m.findSession(destination, source)
	if s == nil {
		// Aborting clears the situation up faster than letting the peer
		// time out.
		m.log.Warnf("[TP]: Received Clear To Send (CTS) for %#06X while no session existed for this source and destination, sending abort", pgn)
		m.sendAbort(destination, source, pgn, AbortAnyOtherError)
		return
	}
	switch {
	case s.pgn != pgn:
		m.log.Errorf("[TP]: Received a Clear To Send (CTS) message for %#06X while a session already existed for this source and destination, sending abort for both", pgn)
		m.abortSession(s, AbortAnyOtherError)
		m.sendAbort(destination, source, pgn, AbortAnyOtherError)
	case nextPacket != s.processedPackets+1 && packetsThisWindow != 0:
		m.log.Errorf("[TP]: Received a Clear To Send (CTS) message for %#06X with a bad sequence number, aborting", pgn)
		m.abortSession(s, AbortBadSequenceNumber)
	case s.state != StateWaitForClearToSend:
		m.log.Warnf("[TP]: Received a Clear To Send (CTS) message for %#06X, but not expecting one, aborting session", pgn)
		m.abortSession(s, AbortCTSWhileTransferInProgress)
	default:
		s.timestamp = m.clock()
		if packetsThisWindow == 0 {
			// A zero grant is a "wait" hint; hold without advancing.
			s.clearToSendHold = true
		} else {
			s.clearToSendHold = false
			s.packetCount = packetsThisWindow
			s.lastPacketNumber = 0
			s.state = StateTxDataSession
		}
	}
}

func (m *Manager) processEndOfMessageAck(source, destination *controlfunction.ControlFunction, pgn uint32) {
	s := m.findSession(destination, source)
	if s == nil {
		m.log.Warnf("[TP]: Received End Of Message Acknowledgement for %#06X while no session existed for this source and destination, sending abort", pgn)
		m.sendAbort(destination, source, pgn, AbortAnyOtherError)
		return
	}
	if s.state == StateWaitForEndOfMessageAcknowledge {
		s.state = StateNone
		m.closeSession(s, true)
	} else {
		m.log.Warnf("[TP]: Received an End Of Message Acknowledgement message for %#06X, but not expecting one, ignoring", pgn)
	}
}

func (m *Manager) processAbort(source, destination *controlfunction.ControlFunction, pgn uint32, reason AbortReason) {
	found := false
	if s := m.findSession(source, destination); s != nil && s.pgn == pgn {
		found = true
		m.log.Errorf("[TP]: Received an abort (%s) for an rx session for PGN %#06X", reason, pgn)
		m.closeSession(s, false)
	}
	if s := m.findSession(destination, source); s != nil && s.pgn == pgn {
		found = true
		m.log.Errorf("[TP]: Received an abort (%s) for a tx session for PGN %#06X", reason, pgn)
		m.closeSession(s, false)
	}
	if !found {
		m.log.Warnf("[TP]: Received an abort (%s) with no matching session for PGN %#06X", reason, pgn)
	}
}

// handleDataTransfer processes a TP.DT frame.
func (m *Manager) handleDataTransfer(frame canframe.Frame) {
	if len(frame.Data) != 8 {
		m.log.Warnf("[TP]: Received a Data Transfer message of invalid length %d", len(frame.Data))
		return
	}
	source := m.registry.GetOrCreateExternal(frame.ID.Source)
	var destination *controlfunction.ControlFunction
	if frame.ID.Destination != canframe.AddressGlobal {
		destination = m.registry.ByAddress(frame.ID.Destination)
		if destination == nil {
			return
		}
	}

	s := m.findSession(source, destination)
	if s == nil {
		if destination != nil {
			m.log.Warnf("[TP]: Received a Data Transfer message from %d with no matching session, ignoring", source.Address())
		}
		return
	}

	sequence := int(frame.Data[0])
	switch {
	case s.state != StateRxDataSession:
		m.log.Warnf("[TP]: Received a Data Transfer message from %d while not expecting one, sending abort", source.Address())
		m.abortSession(s, AbortUnexpectedDataTransfer)

	case sequence == s.lastPacketNumber:
		m.log.Errorf("[TP]: Aborting rx session for %#06X due to duplicate sequence number", s.pgn)
		m.abortSession(s, AbortDuplicateSequenceNumber)

	case sequence == s.lastPacketNumber+1:
		for i := 0; i < bytesPerFrame && bytesPerFrame*s.lastPacketNumber+i < s.dataLength(); i++ {
			s.data[bytesPerFrame*s.lastPacketNumber+i] = frame.Data[1+i]
		}
		s.lastPacketNumber++
		s.processedPackets++
		s.timestamp = m.clock()

		if bytesPerFrame*s.lastPacketNumber >= s.dataLength() {
			if !s.isBroadcast() {
				m.sendEndOfMessageAck(s)
			}
			m.deliver(s)
			m.closeSession(s, true)
		} else if !s.isBroadcast() && s.processedPackets%effectiveWindow(s) == 0 {
			// Window exhausted; grant the next one on the following tick.
			s.setState(StateClearToSend, m.clock())
		}

	default:
		m.log.Errorf("[TP]: Aborting rx session for %#06X due to bad sequence number", s.pgn)
		m.abortSession(s, AbortBadSequenceNumber)
	}
}

// effectiveWindow is the CTS grant size currently in force for an rx
// session, never zero.
func effectiveWindow(s *session) int {
	if s.clearToSendPacketMax <= 0 {
		return s.totalPackets
	}
	return s.clearToSendPacketMax
}

func (m *Manager) deliver(s *session) {
	msg := Message{
		PGN:         s.pgn,
		Data:        s.data,
		Source:      s.source,
		Destination: s.destination,
	}
	for _, fn := range m.handlers[s.pgn] {
		fn(msg)
	}
}

func (m *Manager) sendFrame(pgn uint32, data []byte, source, destination *controlfunction.ControlFunction) bool {
	destAddress := canframe.AddressGlobal
	if destination != nil {
		destAddress = destination.Address()
	}
	ok, err := m.net.SendFrame(pgn, data, source.Address(), destAddress, priorityLowest)
	if err != nil {
		m.log.Errorf("[TP]: Failed to encode frame for %#06X: %v", pgn, err)
		return false
	}
	return ok
}

func (m *Manager) sendRequestToSend(s *session) bool {
	length := s.dataLength()
	buffer := []byte{
		muxRequestToSend,
		byte(length & 0xFF),
		byte((length >> 8) & 0xFF),
		byte(s.totalPackets),
		0xFF,
		byte(s.pgn & 0xFF),
		byte((s.pgn >> 8) & 0xFF),
		byte((s.pgn >> 16) & 0xFF),
	}
	return m.sendFrame(PGNConnectionManagement, buffer, s.source, s.destination)
}

func (m *Manager) sendBroadcastAnnounce(s *session) bool {
	length := s.dataLength()
	buffer := []byte{
		muxBroadcastAnnounce,
		byte(length & 0xFF),
		byte((length >> 8) & 0xFF),
		byte(s.totalPackets),
		0xFF,
		byte(s.pgn & 0xFF),
		byte((s.pgn >> 8) & 0xFF),
		byte((s.pgn >> 16) & 0xFF),
	}
	return m.sendFrame(PGNConnectionManagement, buffer, s.source, nil)
}

func (m *Manager) sendClearToSend(s *session) bool {
	remaining := s.totalPackets - s.processedPackets
	window := remaining
	if s.clearToSendPacketMax > 0 && s.clearToSendPacketMax < remaining {
		window = s.clearToSendPacketMax
	}
	buffer := []byte{
		muxClearToSend,
		byte(window),
		byte(s.processedPackets + 1),
		0xFF,
		0xFF,
		byte(s.pgn & 0xFF),
		byte((s.pgn >> 8) & 0xFF),
		byte((s.pgn >> 16) & 0xFF),
	}
	// A receive session replies from its destination (our internal CF)
	// back to the sending peer.
	return m.sendFrame(PGNConnectionManagement, buffer, s.destination, s.source)
}

func (m *Manager) sendEndOfMessageAck(s *session) bool {
	length := s.dataLength()
	buffer := []byte{
		muxEndOfMessageAck,
		byte(length & 0xFF),
		byte((length >> 8) & 0xFF),
		byte(s.totalPackets),
		0xFF,
		byte(s.pgn & 0xFF),
		byte((s.pgn >> 8) & 0xFF),
		byte((s.pgn >> 16) & 0xFF),
	}
	return m.sendFrame(PGNConnectionManagement, buffer, s.destination, s.source)
}

func (m *Manager) sendAbort(sender, receiver *controlfunction.ControlFunction, pgn uint32, reason AbortReason) bool {
	if sender == nil || receiver == nil {
		return false
	}
	buffer := []byte{
		muxConnectionAbort,
		byte(reason),
		0xFF,
		0xFF,
		0xFF,
		byte(pgn & 0xFF),
		byte((pgn >> 8) & 0xFF),
		byte((pgn >> 16) & 0xFF),
	}
	return m.sendFrame(PGNConnectionManagement, buffer, sender, receiver)
}

// abortSession notifies the peer with an abort frame and closes the
// session unsuccessfully. Broadcast sessions are closed silently; the
// standard forbids aborting them.
func (m *Manager) abortSession(s *session, reason AbortReason) {
	if !s.isBroadcast() {
		var mine, peer *controlfunction.ControlFunction
		if s.direction == Transmit {
			mine, peer = s.source, s.destination
		} else {
			mine, peer = s.destination, s.source
		}
		m.sendAbort(mine, peer, s.pgn, reason)
	}
	m.closeSession(s, false)
}

func (m *Manager) closeSession(s *session, successful bool) {
	if s.onComplete != nil && s.direction == Transmit {
		s.onComplete(s.pgn, s.dataLength(), s.destination, successful)
	}
	for i, candidate := range m.sessions {
		if candidate == s {
			m.sessions = append(m.sessions[:i], m.sessions[i+1:]...)
			m.log.Debugf("[TP]: Session Closed")
			break
		}
	}
}

func (m *Manager) hasSession(s *session) bool {
	for _, candidate := range m.sessions {
		if candidate == s {
			return true
		}
	}
	return false
}

// findSession locates the active session keyed by (source, destination);
// a nil destination matches broadcast sessions only.
func (m *Manager) findSession(source, destination *controlfunction.ControlFunction) *session {
	for _, s := range m.sessions {
		if s.source == source && s.destination == destination {
			return s
		}
	}
	return nil
}
