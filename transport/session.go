package transport

import (
	"time"

	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/controlfunction"
)

// bytesPerFrame is the number of payload bytes carried by one TP.DT frame.
const bytesPerFrame = 7

// MaxPayloadLength is the largest message the transport protocol can
// carry (255 packets of 7 bytes).
const MaxPayloadLength = 1785

// MinPayloadLength is the smallest message worth segmenting; anything
// that fits a single 8-byte frame belongs on the network manager directly.
const MinPayloadLength = 9

// Direction distinguishes sessions we originate from sessions we receive.
type Direction int

const (
	Transmit Direction = iota
	Receive
)

// State enumerates the transport session state machine.
type State int

const (
	StateNone State = iota
	StateClearToSend
	StateRxDataSession
	StateRequestToSend
	StateWaitForClearToSend
	StateBroadcastAnnounce
	StateTxDataSession
	StateWaitForEndOfMessageAcknowledge
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "None"
	case StateClearToSend:
		return "ClearToSend"
	case StateRxDataSession:
		return "RxDataSession"
	case StateRequestToSend:
		return "RequestToSend"
	case StateWaitForClearToSend:
		return "WaitForClearToSend"
	case StateBroadcastAnnounce:
		return "BroadcastAnnounce"
	case StateTxDataSession:
		return "TxDataSession"
	case StateWaitForEndOfMessageAcknowledge:
		return "WaitForEndOfMessageAcknowledge"
	default:
		return "Unknown"
	}
}

// CompleteCallback is invoked when a transmit session finishes, with
// success=false on abort, timeout, or peer address loss.
type CompleteCallback func(pgn uint32, dataLength int, destination *controlfunction.ControlFunction, success bool)

// Message is a fully assembled multi-packet payload handed to registered
// message handlers once a receive session completes.
type Message struct {
	PGN         uint32
	Data        []byte
	Source      *controlfunction.ControlFunction
	Destination *controlfunction.ControlFunction // nil for broadcast
}

// session is one active transfer. Sessions are keyed by (source,
// destination) where a nil destination means global; at most one session
// may occupy a key at a time.
type session struct {
	direction   Direction
	state       State
	pgn         uint32
	source      *controlfunction.ControlFunction
	destination *controlfunction.ControlFunction // nil for broadcast

	data []byte

	// packetCount is the total number of TP.DT frames the transfer
	// spans; during a CM transmit it is temporarily re-used as the CTS
	// window grant, so totalPackets keeps the true count.
	packetCount  int
	totalPackets int

	lastPacketNumber int
	processedPackets int

	clearToSendPacketMax int

	// clearToSendHold is set while a zero-packet "wait" CTS is in force;
	// the hold timeout applies instead of the connection timeout.
	clearToSendHold bool

	timestamp time.Time

	onComplete CompleteCallback
}

func (s *session) setState(state State, now time.Time) {
	s.state = state
	s.timestamp = now
}

func (s *session) isBroadcast() bool {
	return s.destination == nil
}

// dataLength is the total payload length of the transfer.
func (s *session) dataLength() int {
	return len(s.data)
}

// canContinue reports whether both endpoints still hold valid addresses.
func (s *session) canContinue() bool {
	if s.source == nil || !s.source.IsValid() {
		return false
	}
	if s.destination != nil && !s.destination.IsValid() {
		return false
	}
	return true
}

// packetCountForLength returns ceil(length / 7).
func packetCountForLength(length int) int {
	count := length / bytesPerFrame
	if length%bytesPerFrame != 0 {
		count++
	}
	return count
}
