package transport

import "fmt"

// AbortReason is the connection abort reason code carried in byte 1 of a
// TP.CM abort frame.
type AbortReason uint8

const (
	AbortAlreadyInCMSession         AbortReason = 1
	AbortSystemResourcesNeeded      AbortReason = 2
	AbortTimeout                    AbortReason = 3
	AbortCTSWhileTransferInProgress AbortReason = 4
	AbortMaxRetransmitReached       AbortReason = 5
	AbortUnexpectedDataTransfer     AbortReason = 6
	AbortBadSequenceNumber          AbortReason = 7
	AbortDuplicateSequenceNumber    AbortReason = 8
	AbortTotalMessageTooBig         AbortReason = 9
	AbortAnyOtherError              AbortReason = 250
)

func (r AbortReason) String() string {
	switch r {
	case AbortAlreadyInCMSession:
		return "already in one or more connection-managed sessions"
	case AbortSystemResourcesNeeded:
		return "system resources needed for another task"
	case AbortTimeout:
		return "a timeout occurred"
	case AbortCTSWhileTransferInProgress:
		return "CTS received while a data transfer was in progress"
	case AbortMaxRetransmitReached:
		return "maximum retransmit request limit reached"
	case AbortUnexpectedDataTransfer:
		return "unexpected data transfer packet received"
	case AbortBadSequenceNumber:
		return "bad sequence number"
	case AbortDuplicateSequenceNumber:
		return "duplicate sequence number"
	case AbortTotalMessageTooBig:
		return "total message size exceeds 1785 bytes"
	case AbortAnyOtherError:
		return "any other error"
	default:
		return fmt.Sprintf("reason %d", uint8(r))
	}
}

// messageOrDefault returns msg if present, otherwise fallback.
func messageOrDefault(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}

// ProtocolError is the base error type for the transport package.
type ProtocolError struct {
	msg string
}

func newProtocolError(msg string) ProtocolError {
	return ProtocolError{msg: msg}
}

func (e ProtocolError) Error() string {
	return messageOrDefault(e.msg, "transport protocol error")
}

// SessionAbortedError reports that a session ended with an abort, either
// sent by us or received from the peer.
type SessionAbortedError struct {
	ProtocolError
	Reason AbortReason
}

func (e SessionAbortedError) Error() string {
	return messageOrDefault(e.msg, fmt.Sprintf("session aborted: %s", e.Reason))
}

// PayloadLengthError reports a transmit payload outside [9, 1785] bytes.
type PayloadLengthError struct {
	ProtocolError
}

func (e PayloadLengthError) Error() string {
	return messageOrDefault(e.msg, "payload length must be 9..1785 bytes")
}

// UnknownSourceError reports a transmit request from a control function
// with no valid address.
type UnknownSourceError struct {
	ProtocolError
}

func (e UnknownSourceError) Error() string {
	return messageOrDefault(e.msg, "source control function has no valid address")
}

// SessionSlotBusyError reports that the (source, destination) pair already
// has an active session in the requested direction.
type SessionSlotBusyError struct {
	ProtocolError
}

func (e SessionSlotBusyError) Error() string {
	return messageOrDefault(e.msg, "a session already exists for this source and destination")
}
