package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObservePacketIncrementsCounter(t *testing.T) {
	c := New(func() float64 { return 0 }, func() float64 { return 0 })
	c.ObservePacket(true)
	c.ObservePacket(false)
	if got := testutil.ToFloat64(c.PacketsTotal.WithLabelValues("ip")); got != 1 {
		t.Errorf("ip packets = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.PacketsTotal.WithLabelValues("other")); got != 1 {
		t.Errorf("other packets = %v, want 1", got)
	}
}

func TestObserveVerdictDefaultsToClean(t *testing.T) {
	c := New(func() float64 { return 0 }, func() float64 { return 0 })
	c.ObserveVerdict("")
	if got := testutil.ToFloat64(c.VerdictsTotal.WithLabelValues("clean")); got != 1 {
		t.Errorf("clean verdicts = %v, want 1", got)
	}
}
