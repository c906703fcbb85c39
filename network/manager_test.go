package network

import (
	"testing"

	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/canframe"
	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/controlfunction"
)

func TestDispatchToScopedAndAnyHandlers(t *testing.T) {
	reg := controlfunction.NewRegistry()
	reg.AddInternal(controlfunction.New(controlfunction.Internal, 1, 0x26))
	link := NewLoopbackTransceiver()
	link.Start()
	m := NewManager(reg, link)

	var scopedCalls, anyCalls int
	m.RegisterPGNHandler(0xE600, func(canframe.Frame) { scopedCalls++ })
	m.RegisterAnyControlFunctionHandler(0xE600, func(canframe.Frame) { anyCalls++ })

	frame, err := canframe.NewFrame(6, 0xE600, 0x80, 0x26, []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	link.Deliver(frame)
	m.Tick()

	if scopedCalls != 1 || anyCalls != 1 {
		t.Fatalf("expected 1 scoped and 1 any call, got %d/%d", scopedCalls, anyCalls)
	}
}

func TestDispatchSkipsScopedHandlerWhenNotAddressedToUs(t *testing.T) {
	reg := controlfunction.NewRegistry()
	reg.AddInternal(controlfunction.New(controlfunction.Internal, 1, 0x26))
	link := NewLoopbackTransceiver()
	link.Start()
	m := NewManager(reg, link)

	var scopedCalls, anyCalls int
	m.RegisterPGNHandler(0xE600, func(canframe.Frame) { scopedCalls++ })
	m.RegisterAnyControlFunctionHandler(0xE600, func(canframe.Frame) { anyCalls++ })

	frame, _ := canframe.NewFrame(6, 0xE600, 0x80, 0x99, []byte{1})
	link.Deliver(frame)
	m.Tick()

	if scopedCalls != 0 || anyCalls != 1 {
		t.Fatalf("expected 0 scoped and 1 any call, got %d/%d", scopedCalls, anyCalls)
	}
}

func TestTickPumpsRegisteredTickables(t *testing.T) {
	reg := controlfunction.NewRegistry()
	link := NewLoopbackTransceiver()
	link.Start()
	m := NewManager(reg, link)

	calls := 0
	m.RegisterTickable(tickFunc(func() { calls++ }))
	m.Tick()
	m.Tick()
	if calls != 2 {
		t.Fatalf("expected 2 tick calls, got %d", calls)
	}
}

type tickFunc func()

func (f tickFunc) Tick() { f() }

func TestSendFrameRejectsLongPayload(t *testing.T) {
	reg := controlfunction.NewRegistry()
	link := NewLoopbackTransceiver()
	link.Start()
	m := NewManager(reg, link)
	if _, err := m.SendFrame(0xEB00, make([]byte, 9), 0x80, 0x01, 7); err == nil {
		t.Fatalf("expected error for >8 byte SendFrame payload")
	}
}
