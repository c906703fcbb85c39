// Package canframe implements the 29-bit extended CAN identifier codec and
// the 8-byte data frame that every other package in this module exchanges.
package canframe

import "fmt"

// AddressGlobal is the broadcast destination address (0xFF).
const AddressGlobal uint8 = 0xFF

// AddressNull is the "no address" placeholder (0xFE), used by a control
// function that has not yet completed address claiming.
const AddressNull uint8 = 0xFE

// pduFormatBoundary is the PF value at and above which the PGN is a
// broadcast PGN with no embedded destination byte.
const pduFormatBoundary = 240

// Identifier is a decoded 29-bit extended CAN identifier.
type Identifier struct {
	Priority    uint8
	PGN         uint32
	Source      uint8
	Destination uint8
}

// Validate reports whether the identifier's fields are in range.
func (id Identifier) Validate() error {
	if id.Priority > 7 {
		return fmt.Errorf("canframe: priority %d out of range 0..7", id.Priority)
	}
	if id.PGN > 0x3FFFF {
		return fmt.Errorf("canframe: pgn %#X out of range for 18 bits", id.PGN)
	}
	return nil
}

// IsBroadcast reports whether the PGN carries no destination byte, i.e. the
// PDU format byte is >= 240.
func (id Identifier) IsBroadcast() bool {
	return pduFormat(id.PGN) >= pduFormatBoundary
}

func pduFormat(pgn uint32) uint8 {
	return uint8((pgn >> 8) & 0xFF)
}

// Encode packs the identifier into a 29-bit value (top 3 bits zero).
//
// Layout: [priority:3][reserved:1=0][DP:1=0][PF:8][PS:8][SA:8].
func (id Identifier) Encode() (uint32, error) {
	if err := id.Validate(); err != nil {
		return 0, err
	}
	pf := pduFormat(id.PGN)
	var ps uint8
	if pf < pduFormatBoundary {
		ps = id.Destination
	} else {
		ps = uint8(id.PGN & 0xFF)
	}
	raw := (uint32(id.Priority) << 26) | (uint32(pf) << 16) | (uint32(ps) << 8) | uint32(id.Source)
	return raw, nil
}

// Decode unpacks a 29-bit extended CAN identifier.
func Decode(raw uint32) Identifier {
	priority := uint8((raw >> 26) & 0x7)
	pf := uint8((raw >> 16) & 0xFF)
	ps := uint8((raw >> 8) & 0xFF)
	sa := uint8(raw & 0xFF)

	var pgn uint32
	var da uint8
	if pf < pduFormatBoundary {
		pgn = uint32(pf) << 8
		da = ps
	} else {
		pgn = (uint32(pf) << 8) | uint32(ps)
		da = AddressGlobal
	}

	return Identifier{
		Priority:    priority,
		PGN:         pgn,
		Source:      sa,
		Destination: da,
	}
}

// Frame is an 8-byte CAN data frame together with its decoded identifier.
type Frame struct {
	ID   Identifier
	Data []byte
}

// NewFrame builds a Frame, validating the identifier and payload length.
func NewFrame(priority uint8, pgn uint32, source, destination uint8, data []byte) (Frame, error) {
	if len(data) > 8 {
		return Frame{}, fmt.Errorf("canframe: data length %d exceeds 8 bytes", len(data))
	}
	id := Identifier{Priority: priority, PGN: pgn, Source: source, Destination: destination}
	if err := id.Validate(); err != nil {
		return Frame{}, err
	}
	return Frame{ID: id, Data: data}, nil
}

// RawID returns the frame's packed 29-bit identifier.
func (f Frame) RawID() (uint32, error) {
	return f.ID.Encode()
}
