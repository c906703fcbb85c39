package vtserver

import (
	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/controlfunction"
	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/vtobject"
)

// KeyActivationCode is the activation state reported by button and soft
// key activation messages.
type KeyActivationCode uint8

const (
	KeyReleased KeyActivationCode = iota
	KeyPressed
	KeyStillHeld
	KeyPressAborted
)

func le16(lo, hi byte) uint16 {
	return uint16(lo) | uint16(hi)<<8
}

func le32(b0, b1, b2, b3 byte) uint32 {
	return uint32(b0) | uint32(b1)<<8 | uint32(b2)<<16 | uint32(b3)<<24
}

// sendToClient emits a VT→ECU payload to a client, using a single frame
// when it fits and the transport protocol otherwise.
func (s *Server) sendToClient(destination *controlfunction.ControlFunction, data []byte) bool {
	if len(data) <= 8 {
		ok, err := s.net.SendFrame(PGNVTToECU, data, s.internal.Address(), destination.Address(), priorityLowest)
		if err != nil {
			s.log.Errorf("[VT Server]: Failed to encode response frame: %v", err)
			return false
		}
		return ok
	}
	if err := s.tp.Transmit(PGNVTToECU, data, s.internal, destination, nil); err != nil {
		s.log.Errorf("[VT Server]: Failed to start transport session for long response: %v", err)
		return false
	}
	return true
}

// sendNegativeAcknowledgement replies with a NACK on the Acknowledge PGN
// for a message we will not handle.
func (s *Server) sendNegativeAcknowledgement(pgn uint32, destination *controlfunction.ControlFunction) bool {
	buffer := []byte{
		acknowledgementNegative,
		0xFF,
		0xFF,
		0xFF,
		destination.Address(),
		byte(pgn & 0xFF),
		byte((pgn >> 8) & 0xFF),
		byte((pgn >> 16) & 0xFF),
	}
	ok, err := s.net.SendFrame(PGNAcknowledge, buffer, s.internal.Address(), 0xFF, priorityLowest)
	if err != nil {
		s.log.Errorf("[VT Server]: Failed to encode acknowledgement frame: %v", err)
		return false
	}
	return ok
}

func (s *Server) sendChangeNumericValueResponse(objectID uint16, errorBits uint8, value uint32, destination *controlfunction.ControlFunction) bool {
	return s.sendToClient(destination, []byte{
		byte(FunctionChangeNumericValue),
		byte(objectID & 0xFF),
		byte(objectID >> 8),
		errorBits,
		byte(value & 0xFF),
		byte(value >> 8),
		byte(value >> 16),
		byte(value >> 24),
	})
}

func (s *Server) sendHideShowObjectResponse(objectID uint16, errorBits uint8, shown bool, destination *controlfunction.ControlFunction) bool {
	value := byte(0)
	if shown {
		value = 1
	}
	return s.sendToClient(destination, []byte{
		byte(FunctionHideShowObject),
		byte(objectID & 0xFF),
		byte(objectID >> 8),
		value,
		errorBits,
		0xFF,
		0xFF,
		0xFF,
	})
}

func (s *Server) sendEnableDisableObjectResponse(objectID uint16, errorBits uint8, enabled bool, destination *controlfunction.ControlFunction) bool {
	value := byte(0)
	if enabled {
		value = 1
	}
	return s.sendToClient(destination, []byte{
		byte(FunctionEnableDisableObject),
		byte(objectID & 0xFF),
		byte(objectID >> 8),
		value,
		errorBits,
		0xFF,
		0xFF,
		0xFF,
	})
}

func (s *Server) sendChangeChildLocationResponse(parentObjectID, objectID uint16, errorBits uint8, destination *controlfunction.ControlFunction) bool {
	return s.sendToClient(destination, []byte{
		byte(FunctionChangeChildLocation),
		byte(parentObjectID & 0xFF),
		byte(parentObjectID >> 8),
		byte(objectID & 0xFF),
		byte(objectID >> 8),
		errorBits,
		0xFF,
		0xFF,
	})
}

func (s *Server) sendChangeChildPositionResponse(parentObjectID, objectID uint16, errorBits uint8, destination *controlfunction.ControlFunction) bool {
	return s.sendToClient(destination, []byte{
		byte(FunctionChangeChildPosition),
		byte(parentObjectID & 0xFF),
		byte(parentObjectID >> 8),
		byte(objectID & 0xFF),
		byte(objectID >> 8),
		errorBits,
		0xFF,
		0xFF,
	})
}

func (s *Server) sendChangeActiveMaskResponse(newMaskObjectID uint16, errorBits uint8, destination *controlfunction.ControlFunction) bool {
	return s.sendToClient(destination, []byte{
		byte(FunctionChangeActiveMask),
		byte(newMaskObjectID & 0xFF),
		byte(newMaskObjectID >> 8),
		errorBits,
		0xFF,
		0xFF,
		0xFF,
		0xFF,
	})
}

func (s *Server) sendChangeSoftKeyMaskResponse(maskObjectID, newSoftKeyMaskID uint16, errorBits uint8, destination *controlfunction.ControlFunction) bool {
	return s.sendToClient(destination, []byte{
		byte(FunctionChangeSoftKeyMask),
		byte(maskObjectID & 0xFF),
		byte(maskObjectID >> 8),
		byte(newSoftKeyMaskID & 0xFF),
		byte(newSoftKeyMaskID >> 8),
		errorBits,
		0xFF,
		0xFF,
	})
}

func (s *Server) sendChangeStringValueResponse(objectID uint16, errorBits uint8, destination *controlfunction.ControlFunction) bool {
	return s.sendToClient(destination, []byte{
		byte(FunctionChangeStringValue),
		0xFF,
		0xFF,
		byte(objectID & 0xFF),
		byte(objectID >> 8),
		errorBits,
		0xFF,
		0xFF,
	})
}

func (s *Server) sendChangeFillAttributesResponse(objectID uint16, errorBits uint8, destination *controlfunction.ControlFunction) bool {
	return s.sendToClient(destination, []byte{
		byte(FunctionChangeFillAttributes),
		byte(objectID & 0xFF),
		byte(objectID >> 8),
		errorBits,
		0xFF,
		0xFF,
		0xFF,
		0xFF,
	})
}

func (s *Server) sendChangeAttributeResponse(objectID uint16, errorBits uint8, attributeID uint8, destination *controlfunction.ControlFunction) bool {
	return s.sendToClient(destination, []byte{
		byte(FunctionChangeAttribute),
		byte(objectID & 0xFF),
		byte(objectID >> 8),
		attributeID,
		errorBits,
		0xFF,
		0xFF,
		0xFF,
	})
}

func (s *Server) sendChangeSizeResponse(objectID uint16, errorBits uint8, destination *controlfunction.ControlFunction) bool {
	return s.sendToClient(destination, []byte{
		byte(FunctionChangeSize),
		byte(objectID & 0xFF),
		byte(objectID >> 8),
		errorBits,
		0xFF,
		0xFF,
		0xFF,
		0xFF,
	})
}

func (s *Server) sendChangeListItemResponse(objectID, newObjectID uint16, errorBits uint8, listIndex uint8, destination *controlfunction.ControlFunction) bool {
	return s.sendToClient(destination, []byte{
		byte(FunctionChangeListItem),
		byte(objectID & 0xFF),
		byte(objectID >> 8),
		listIndex,
		byte(newObjectID & 0xFF),
		byte(newObjectID >> 8),
		errorBits,
		0xFF,
	})
}

func (s *Server) sendChangeFontAttributesResponse(objectID uint16, errorBits uint8, destination *controlfunction.ControlFunction) bool {
	return s.sendToClient(destination, []byte{
		byte(FunctionChangeFontAttributes),
		byte(objectID & 0xFF),
		byte(objectID >> 8),
		errorBits,
		0xFF,
		0xFF,
		0xFF,
		0xFF,
	})
}

// sendEndOfObjectPoolResponse reports parse completion. On failure the
// faulting object ID is included and the error bit set.
func (s *Server) sendEndOfObjectPoolResponse(success bool, faultingObjectID uint16, destination *controlfunction.ControlFunction) bool {
	errorBits := byte(0)
	parentID := vtobject.NullObjectID
	faultingID := vtobject.NullObjectID
	poolErrorCodes := byte(0)
	if !success {
		errorBits = 0x01
		faultingID = faultingObjectID
		poolErrorCodes = 0x01
	}
	return s.sendToClient(destination, []byte{
		byte(FunctionEndOfObjectPool),
		errorBits,
		byte(parentID & 0xFF),
		byte(parentID >> 8),
		byte(faultingID & 0xFF),
		byte(faultingID >> 8),
		poolErrorCodes,
		0xFF,
	})
}

// SendButtonActivation notifies a client that one of its buttons was
// pressed, held or released by the operator.
func (s *Server) SendButtonActivation(code KeyActivationCode, objectID, parentObjectID uint16, keyNumber uint8, destination *controlfunction.ControlFunction) bool {
	return s.sendToClient(destination, []byte{
		byte(FunctionButtonActivation),
		byte(code),
		byte(objectID & 0xFF),
		byte(objectID >> 8),
		byte(parentObjectID & 0xFF),
		byte(parentObjectID >> 8),
		keyNumber,
		0xFF,
	})
}

// SendSoftKeyActivation notifies a client of a soft key press.
func (s *Server) SendSoftKeyActivation(code KeyActivationCode, objectID, parentObjectID uint16, keyNumber uint8, destination *controlfunction.ControlFunction) bool {
	return s.sendToClient(destination, []byte{
		byte(FunctionSoftKeyActivation),
		byte(code),
		byte(objectID & 0xFF),
		byte(objectID >> 8),
		byte(parentObjectID & 0xFF),
		byte(parentObjectID >> 8),
		keyNumber,
		0xFF,
	})
}

// SendVTChangeNumericValue notifies a client that the operator changed
// an input object's value on the terminal.
func (s *Server) SendVTChangeNumericValue(objectID uint16, value uint32, destination *controlfunction.ControlFunction) bool {
	return s.sendToClient(destination, []byte{
		byte(FunctionVTChangeNumericValue),
		byte(objectID & 0xFF),
		byte(objectID >> 8),
		0xFF,
		byte(value & 0xFF),
		byte(value >> 8),
		byte(value >> 16),
		byte(value >> 24),
	})
}
