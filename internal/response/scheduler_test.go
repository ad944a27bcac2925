package response

import (
	"testing"
	"time"

	"github.com/danger-dream/apollo-ips/internal/alerts"
	"github.com/danger-dream/apollo-ips/internal/enrichment"
	"github.com/danger-dream/apollo-ips/internal/firewall"
	"github.com/danger-dream/apollo-ips/internal/types"
)

func newTestScheduler() (*Scheduler, *alerts.Queue) {
	queue := alerts.New()
	var enrich *enrichment.Cache
	s := New(&firewall.Null{}, enrich, queue)
	return s, queue
}

func TestBlockIsIdempotent(t *testing.T) {
	s, _ := newTestScheduler()
	if err := s.Block("1.2.3.4", "test", types.SeverityHigh, time.Minute); err != nil {
		t.Fatalf("Block: %v", err)
	}
	if err := s.Block("1.2.3.4", "test", types.SeverityHigh, time.Minute); err != nil {
		t.Fatalf("second Block: %v", err)
	}
	if s.BlockedCount() != 1 {
		t.Errorf("BlockedCount = %d, want 1", s.BlockedCount())
	}
}

func TestUnblockClearsState(t *testing.T) {
	s, _ := newTestScheduler()
	s.Block("5.5.5.5", "test", types.SeverityLow, time.Hour)
	if !s.IsBlocked("5.5.5.5") {
		t.Fatalf("expected blocked")
	}
	s.Unblock("5.5.5.5")
	if s.IsBlocked("5.5.5.5") {
		t.Errorf("expected unblocked after Unblock")
	}
}

func TestBlockThenUnblockRoundTrip(t *testing.T) {
	s, _ := newTestScheduler()
	before := s.BlockedCount()
	s.Block("9.9.9.9", "test", types.SeverityHigh, time.Hour)
	s.Unblock("9.9.9.9")
	if s.BlockedCount() != before {
		t.Errorf("BlockedCount after round-trip = %d, want %d", s.BlockedCount(), before)
	}
}

func TestUnblockOnUnknownIPIsNoop(t *testing.T) {
	s, _ := newTestScheduler()
	s.Unblock("0.0.0.0")
	if s.BlockedCount() != 0 {
		t.Errorf("expected no change")
	}
}

// TestBlockEnqueuesAlertAfterEnrichment wires a real enrichment.Cache
// (instead of newTestScheduler's nil one) so the full Block -> Submit ->
// OnEnrichmentDone -> alert-enqueue hand-off (spec.md §8 testable
// property 3) runs end to end. 127.0.0.1 short-circuits the cache's
// GeoIP/DNS sub-lookups via utils.IsLocalIP, so the test needs no
// network access and completes immediately.
func TestBlockEnqueuesAlertAfterEnrichment(t *testing.T) {
	queue := alerts.New()
	var s *Scheduler
	enrich := enrichment.New(nil, "", func(ip string, info types.GeoInfo) {
		s.OnEnrichmentDone(ip, info)
	})
	defer enrich.Close()
	s = New(&firewall.Null{}, enrich, queue)

	if err := s.Block("127.0.0.1", "test", types.SeverityHigh, time.Hour); err != nil {
		t.Fatalf("Block: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for queue.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	drained := queue.Drain()
	if len(drained) != 1 {
		t.Fatalf("expected exactly 1 enqueued alert, got %d", len(drained))
	}
	alert := drained[0]
	if alert.IP != "127.0.0.1" || alert.Reason != "test" || alert.Action != "BLOCKED" {
		t.Errorf("unexpected alert = %+v", alert)
	}
	if alert.Geo.CountryCode != "local" || alert.Geo.Hostname != "local" {
		t.Errorf("expected local geo info, got %+v", alert.Geo)
	}
	if alert.ID == "" {
		t.Errorf("expected a non-empty alert ID")
	}
}
