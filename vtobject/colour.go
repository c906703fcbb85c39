package vtobject

// Colour is one colour table entry as unit-range RGB.
type Colour struct {
	R, G, B float32
}

// colourTableSize is the number of entries in a VT colour table.
const colourTableSize = 256

// ColourTable holds the 256-entry VT colour table. Entries 0..15 are the
// fixed standard palette, 16..231 follow the standard's radix-6 formula,
// and 232..255 are proprietary, initialized white and overwritable at
// runtime.
type ColourTable struct {
	entries [colourTableSize]Colour
}

// NewColourTable returns a colour table initialized to the standard
// palette.
func NewColourTable() *ColourTable {
	t := &ColourTable{}

	t.entries[0] = Colour{0, 0, 0}                                     // Black
	t.entries[1] = Colour{1, 1, 1}                                     // White
	t.entries[2] = Colour{0, 153.0 / 255.0, 0}                         // Green
	t.entries[3] = Colour{0, 153.0 / 255.0, 153.0 / 255.0}             // Teal
	t.entries[4] = Colour{153.0 / 255.0, 0, 0}                         // Maroon
	t.entries[5] = Colour{153.0 / 255.0, 0, 153.0 / 255.0}             // Purple
	t.entries[6] = Colour{153.0 / 255.0, 153.0 / 255.0, 0}             // Olive
	t.entries[7] = Colour{204.0 / 255.0, 204.0 / 255.0, 204.0 / 255.0} // Silver
	t.entries[8] = Colour{153.0 / 255.0, 153.0 / 255.0, 153.0 / 255.0} // Grey
	t.entries[9] = Colour{0, 0, 1}                                     // Blue
	t.entries[10] = Colour{0, 1, 0}                                    // Lime
	t.entries[11] = Colour{0, 1, 1}                                    // Cyan
	t.entries[12] = Colour{1, 0, 0}                                    // Red
	t.entries[13] = Colour{1, 0, 1}                                    // Magenta
	t.entries[14] = Colour{1, 1, 0}                                    // Yellow
	t.entries[15] = Colour{0, 0, 153.0 / 255.0}                        // Navy

	for i := 16; i <= 231; i++ {
		index := i - 16
		r := float32(index / 36)
		g := float32((index / 6) % 6)
		b := float32(index % 6)
		t.entries[i] = Colour{51.0 * r / 255.0, 51.0 * g / 255.0, 51.0 * b / 255.0}
	}

	for i := 232; i < colourTableSize; i++ {
		t.entries[i] = Colour{1, 1, 1}
	}
	return t
}

// Get returns the colour at an index.
func (t *ColourTable) Get(index uint8) Colour {
	return t.entries[index]
}

// Set overwrites the colour at an index; intended for the proprietary
// 232..255 range but permitted anywhere, as terminals may restyle the
// whole table.
func (t *ColourTable) Set(index uint8, colour Colour) {
	t.entries[index] = colour
}
