// Package throughput implements C2: per-second bucketed packet/byte
// counters with retention-based garbage collection.
package throughput

import (
	"sync"

	"github.com/danger-dream/apollo-ips/internal/clock"
)

// RetentionSeconds bounds the map to at most RetentionSeconds+1 buckets:
// every drain deletes keys older than currentWindow-RetentionSeconds.
const RetentionSeconds = 300

// Bucket holds the packet/byte counters for a single window.
type Bucket struct {
	Packets    uint64 `json:"packets"`
	BytesTotal uint64 `json:"bytes_total"`
}

// Aggregator is the C2 throughput aggregator. Zero value is not usable;
// use New.
type Aggregator struct {
	mu      sync.Mutex
	buckets map[int64]*Bucket
}

func New() *Aggregator {
	return &Aggregator{
		buckets: make(map[int64]*Bucket),
	}
}

// Record increments the current window's counters. Call only for packets
// that carry an IP layer; callers decide that, this method is unconditional.
func (a *Aggregator) Record(size int) {
	window := clock.CurrentWindow(1)
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.buckets[window]
	if !ok {
		b = &Bucket{}
		a.buckets[window] = b
	}
	b.Packets++
	b.BytesTotal += uint64(size)
}

// DrainPreviousWindow atomically reads the bucket at currentWindow-1 (the
// window just closed), returns a copy of it, and garbage-collects every
// bucket whose key is older than currentWindow-RetentionSeconds. Returns
// ok=false if that window never saw a packet.
func (a *Aggregator) DrainPreviousWindow() (windowTS int64, bucket Bucket, ok bool) {
	current := clock.CurrentWindow(1)
	prev := current - 1
	floor := current - RetentionSeconds

	a.mu.Lock()
	defer a.mu.Unlock()

	if b, found := a.buckets[prev]; found {
		bucket = *b
		ok = true
		windowTS = prev
	}

	for key := range a.buckets {
		if key < floor {
			delete(a.buckets, key)
		}
	}
	return windowTS, bucket, ok
}

// Len reports the number of live buckets; used by tests to check the
// retention invariant.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buckets)
}
