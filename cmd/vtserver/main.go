//go:build linux

// Command vtserver runs a virtual terminal server on a SocketCAN
// interface. It is a wiring example: the object pool parser is stubbed
// out and version storage is kept in memory.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/candriver"
	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/canlog"
	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/controlfunction"
	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/network"
	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/transport"
	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/vtobject"
	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/vtserver"
)

// acceptAllParser is a placeholder for a real object pool decoder; it
// produces an empty pool so clients can complete their upload handshake.
type acceptAllParser struct{}

func (acceptAllParser) Parse(data []byte) (*vtobject.Pool, uint16, error) {
	return vtobject.NewPool(), vtobject.NullObjectID, nil
}

// memoryStorage keeps stored pool versions for the process lifetime.
type memoryStorage struct {
	versions map[string][]byte
}

func (m *memoryStorage) key(label []byte, name uint64) string {
	return fmt.Sprintf("%s/%016X", label, name)
}

func (m *memoryStorage) SaveVersion(label []byte, name uint64, data []byte) bool {
	m.versions[m.key(label, name)] = append([]byte(nil), data...)
	return true
}

func (m *memoryStorage) LoadVersion(label []byte, name uint64) []byte {
	return m.versions[m.key(label, name)]
}

func (m *memoryStorage) ListVersions(name uint64) [][]byte {
	var out [][]byte
	for key := range m.versions {
		out = append(out, []byte(key[:vtserver.VersionLabelLength]))
	}
	return out
}

func main() {
	ifname := flag.String("interface", "vcan0", "SocketCAN interface to bind")
	address := flag.Uint("address", 0x26, "server source address")
	flag.Parse()

	canlog.Init("vtserver")
	logger := canlog.New(canlog.LevelInfo)

	registry := controlfunction.NewRegistry()
	internal := controlfunction.New(controlfunction.Internal, 0xA00284000DC0C001, uint8(*address))
	registry.AddInternal(internal)

	link := candriver.NewSocketCANTransceiver(*ifname, logger)
	net := network.NewManager(registry, link)

	tp, err := transport.NewManager(net, transport.DefaultConfig(), logger)
	if err != nil {
		log.Fatalf("transport manager: %v", err)
	}
	net.RegisterTickable(tp)

	server, err := vtserver.NewServer(net, tp, internal, vtserver.DefaultConfig(), vtserver.Dependencies{
		Storage: &memoryStorage{versions: make(map[string][]byte)},
		Parser:  acceptAllParser{},
	}, logger)
	if err != nil {
		log.Fatalf("vt server: %v", err)
	}
	net.RegisterTickable(server)

	server.OnRepaint.Subscribe(func(e vtserver.RepaintEvent) {
		logger.Debugf("repaint requested for client %d", e.WorkingSet.ControlFunction().Address())
	})

	if !link.Start() {
		log.Fatalf("failed to open %s", *ifname)
	}
	defer link.Stop()

	logger.Infof("vt server up on %s at address %#02X", *ifname, *address)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		net.Tick()
	}
}
