package canframe

import "go.einride.tech/can"

// ToEinride converts a Frame to the wire representation used by
// go.einride.tech/can, for handoff across the hardware-driver boundary.
func (f Frame) ToEinride() (can.Frame, error) {
	raw, err := f.RawID()
	if err != nil {
		return can.Frame{}, err
	}
	var ef can.Frame
	ef.ID = raw
	ef.IsExtended = true
	ef.Length = uint8(len(f.Data))
	copy(ef.Data[:], f.Data)
	return ef, nil
}

// FromEinride converts a go.einride.tech/can.Frame received from the
// hardware driver into this module's Frame type.
func FromEinride(ef can.Frame) Frame {
	id := Decode(ef.ID)
	data := make([]byte, ef.Length)
	copy(data, ef.Data[:ef.Length])
	return Frame{ID: id, Data: data}
}
