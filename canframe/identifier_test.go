package canframe

import "testing"

func TestEncodeDecodeAddressed(t *testing.T) {
	id := Identifier{Priority: 6, PGN: 0xEC00, Source: 0x80, Destination: 0x01}
	raw, err := id.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got := Decode(raw)
	if got != id {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", got, id)
	}
}

func TestEncodeDecodeBroadcast(t *testing.T) {
	id := Identifier{Priority: 3, PGN: 0xFE41, Source: 0x10, Destination: AddressGlobal}
	raw, err := id.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got := Decode(raw)
	if got.PGN != id.PGN || got.Source != id.Source || got.Priority != id.Priority {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", got, id)
	}
	if got.Destination != AddressGlobal {
		t.Fatalf("broadcast PGN should decode to global destination, got %#x", got.Destination)
	}
	if !got.IsBroadcast() {
		t.Fatalf("expected IsBroadcast for PF>=240")
	}
}

func TestEncodeInvalidPriority(t *testing.T) {
	id := Identifier{Priority: 8, PGN: 0x1F001}
	if _, err := id.Encode(); err == nil {
		t.Fatalf("expected error for out-of-range priority")
	}
}

func TestNewFrameRejectsOversizedData(t *testing.T) {
	_, err := NewFrame(6, 0xEC00, 0x80, 0x01, make([]byte, 9))
	if err == nil {
		t.Fatalf("expected error for 9-byte payload")
	}
}
