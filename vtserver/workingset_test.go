package vtserver

import (
	"testing"
	"time"

	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/controlfunction"
	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/vtobject"
)

func TestWorkingSetParseLifecycle(t *testing.T) {
	cf := controlfunction.New(controlfunction.External, 42, 0x80)
	ws := newManagedWorkingSet(cf, 4, time.Unix(0, 0))

	if ws.ParseState() != ParseIdle {
		t.Fatalf("initial parse state = %v", ws.ParseState())
	}
	if ws.HasRawPoolData() {
		t.Fatalf("fresh working set should have no pool data")
	}

	ws.AddRawPoolData([]byte{1, 2, 3})
	ws.AddRawPoolData([]byte{4, 5})
	if got := ws.RawPoolData(); len(got) != 2 || len(got[0]) != 3 || len(got[1]) != 2 {
		t.Fatalf("raw pool data snapshot wrong: %v", got)
	}

	pool := vtobject.NewPool()
	pool.Add(&vtobject.Object{ID: 1, Type: vtobject.ObjectTypeWorkingSet, ActiveMask: 1000})
	ws.StartParsing(&poolParser{pool: pool})

	deadline := time.Now().Add(time.Second)
	for ws.ParseState() == ParseRunning && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if ws.ParseState() != ParseSuccess {
		t.Fatalf("parse state = %v, want success", ws.ParseState())
	}
	ws.joinParser()
	ws.acknowledgeParse()

	if ws.ParseState() != ParseIdle {
		t.Fatalf("acknowledged state = %v, want idle", ws.ParseState())
	}
	if ws.Object(1) == nil || ws.Object(1).ActiveMask != 1000 {
		t.Fatalf("parsed pool not available after acknowledge")
	}
}

func TestWorkingSetParseFailureKeepsFaultingObject(t *testing.T) {
	cf := controlfunction.New(controlfunction.External, 42, 0x80)
	ws := newManagedWorkingSet(cf, 4, time.Unix(0, 0))
	ws.AddRawPoolData([]byte{1})
	ws.StartParsing(&poolParser{fail: true, faulting: 321})

	deadline := time.Now().Add(time.Second)
	for ws.ParseState() == ParseRunning && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if ws.ParseState() != ParseFail {
		t.Fatalf("parse state = %v, want fail", ws.ParseState())
	}
	ws.joinParser()
	if ws.FaultingObjectID() != 321 {
		t.Fatalf("faulting object = %d, want 321", ws.FaultingObjectID())
	}
}

func TestWorkingSetValidationFailureReportsParent(t *testing.T) {
	cf := controlfunction.New(controlfunction.External, 42, 0x80)
	ws := newManagedWorkingSet(cf, 4, time.Unix(0, 0))
	ws.AddRawPoolData([]byte{1})

	// Pool parses but fails child validation: a soft key mask holding a
	// button.
	pool := vtobject.NewPool()
	mask := &vtobject.Object{ID: 10, Type: vtobject.ObjectTypeSoftKeyMask}
	mask.AddChild(11, 0, 0)
	pool.Add(mask)
	pool.Add(&vtobject.Object{ID: 11, Type: vtobject.ObjectTypeButton})
	ws.StartParsing(&poolParser{pool: pool})

	deadline := time.Now().Add(time.Second)
	for ws.ParseState() == ParseRunning && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if ws.ParseState() != ParseFail {
		t.Fatalf("parse state = %v, want fail on validation", ws.ParseState())
	}
	ws.joinParser()
	if ws.FaultingObjectID() != 10 {
		t.Fatalf("faulting object = %d, want parent 10", ws.FaultingObjectID())
	}
}

func TestMaintenanceExpiry(t *testing.T) {
	cf := controlfunction.New(controlfunction.External, 42, 0x80)
	start := time.Unix(0, 0)
	ws := newManagedWorkingSet(cf, 4, start)

	if ws.maintenanceExpired(start.Add(5*time.Second), 6*time.Second) {
		t.Fatalf("working set expired too early")
	}
	ws.touchMaintenance(start.Add(5 * time.Second))
	if ws.maintenanceExpired(start.Add(10*time.Second), 6*time.Second) {
		t.Fatalf("touched working set must not expire")
	}
	if !ws.maintenanceExpired(start.Add(12*time.Second), 6*time.Second) {
		t.Fatalf("silent working set must expire")
	}
}
