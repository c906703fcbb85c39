package controlfunction

import "testing"

func TestControlFunctionValidity(t *testing.T) {
	cf := New(Internal, 0x1122334455667788, 0x80)
	if !cf.IsValid() {
		t.Fatalf("expected fresh control function to be valid")
	}
	cf.Invalidate()
	if cf.IsValid() {
		t.Fatalf("expected invalidated control function to report invalid")
	}
	if cf.Address() != 0xFE {
		t.Fatalf("expected invalidate to set null address, got %#x", cf.Address())
	}
}

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry()
	internal := New(Internal, 1, 0x26)
	reg.AddInternal(internal)

	if !reg.IsInternal(0x26) {
		t.Fatalf("expected 0x26 to be internal")
	}
	if got := reg.ByAddress(0x26); got != internal {
		t.Fatalf("ByAddress did not return the registered internal CF")
	}

	ext := reg.GetOrCreateExternal(0x80)
	if ext == nil || ext.Address() != 0x80 {
		t.Fatalf("expected external CF created at 0x80")
	}
	if reg.GetOrCreateExternal(0x80) != ext {
		t.Fatalf("expected second lookup to return the same external CF")
	}
}

func TestRegistryPruneInvalid(t *testing.T) {
	reg := NewRegistry()
	ext := reg.GetOrCreateExternal(0x81)
	ext.Invalidate()
	reg.PruneInvalid()
	if reg.ExternalByAddress(0x81) != nil {
		t.Fatalf("expected invalid external CF to be pruned")
	}
}
