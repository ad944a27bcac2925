// Package clock provides the two notions of time the engine needs: a wall
// clock for window keys and alert timestamps, and a monotonic clock for
// block expirations and the port-scan burst window, so NTP jumps on the
// wall clock cannot misfire scan detection.
package clock

import "time"

// CurrentWindow floors the wall-clock unix second onto a size-second
// boundary. size=1 (the default) yields per-second windows.
func CurrentWindow(size int64) int64 {
	if size <= 0 {
		size = 1
	}
	return (time.Now().Unix() / size) * size
}

// NowWall returns the current unix-second wall time, used for window keys
// and alert timestamps.
func NowWall() int64 {
	return time.Now().Unix()
}

// Monotonic is an opaque, comparable instant used only for durations
// (block expirations, scan burst windows). It is never serialized.
type Monotonic struct {
	t time.Time
}

// Now returns the current monotonic instant.
func Now() Monotonic {
	return Monotonic{t: time.Now()}
}

// Since returns the duration elapsed since m.
func (m Monotonic) Since() time.Duration {
	return time.Since(m.t)
}

// Sub returns m - other.
func (m Monotonic) Sub(other Monotonic) time.Duration {
	return m.t.Sub(other.t)
}

// Add returns the monotonic instant d after m.
func (m Monotonic) Add(d time.Duration) Monotonic {
	return Monotonic{t: m.t.Add(d)}
}

// Before reports whether m occurs before other.
func (m Monotonic) Before(other Monotonic) bool {
	return m.t.Before(other.t)
}

// Unix returns the wall-clock approximation of m, for display purposes
// only (e.g. a read-only API snapshot); never use it to compare instants.
func (m Monotonic) Unix() int64 {
	return m.t.Unix()
}
