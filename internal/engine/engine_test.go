package engine

import (
	"net"
	"testing"
	"time"

	"github.com/danger-dream/apollo-ips/internal/config"
	"github.com/danger-dream/apollo-ips/internal/types"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:           t.TempDir(),
		PortScanThreshold: 3,
		ScanTimeWindow:    10,
		FirewallBackend:   "null",
	}
}

func TestIngestCleanPacketRecordsThroughput(t *testing.T) {
	e, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer e.Close()

	e.Ingest(types.Packet{SrcIP: net.ParseIP("203.0.113.1"), Size: 100, Timestamp: time.Now().Unix()})

	if n := e.Throughput.Len(); n != 1 {
		t.Errorf("expected one throughput bucket recorded for a clean packet, got %d", n)
	}
	if e.Response.BlockedCount() != 0 {
		t.Errorf("expected no blocks for a clean packet")
	}
}

func TestIngestNoIPLayerRecordsNoThroughput(t *testing.T) {
	e, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer e.Close()

	e.Ingest(types.Packet{SrcIP: nil, Size: 100, Timestamp: time.Now().Unix()})

	if n := e.Throughput.Len(); n != 0 {
		t.Errorf("expected no throughput bucket recorded for a packet with no IP layer, got %d", n)
	}
}

func TestIngestPortScanTriggersBlock(t *testing.T) {
	e, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer e.Close()

	src := net.ParseIP("203.0.113.7")
	for port := uint16(1); port <= 3; port++ {
		e.Ingest(types.Packet{SrcIP: src, DstPort: port, HasTCP: true, Size: 60})
	}

	if !e.Response.IsBlocked(src.String()) {
		t.Errorf("expected %s to be blocked after a burst over the scan threshold", src)
	}
	if n := e.Response.BlockedCount(); n != 1 {
		t.Errorf("BlockedCount() = %d, want 1", n)
	}
}
