// Package response implements C8: idempotent firewall block/unblock with
// a timer-driven expiry, followed by asynchronous enrichment and alert
// enqueue.
package response

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/danger-dream/apollo-ips/internal/alerts"
	"github.com/danger-dream/apollo-ips/internal/clock"
	"github.com/danger-dream/apollo-ips/internal/enrichment"
	"github.com/danger-dream/apollo-ips/internal/firewall"
	"github.com/danger-dream/apollo-ips/internal/ipserr"
	"github.com/danger-dream/apollo-ips/internal/types"
	"github.com/danger-dream/apollo-ips/internal/utils"
)

// DefaultDuration is spec.md §4.8's default block duration.
const DefaultDuration = 300 * time.Second

// BlockEntry tracks one live block, per spec.md §3.
type BlockEntry struct {
	InstalledAt clock.Monotonic
	ExpiresAt   clock.Monotonic
	timer       *time.Timer
}

type pendingAlert struct {
	reason   string
	severity types.Severity
}

// Scheduler owns blocked_ips exclusively and is the sole caller of
// Controller.Block/Unblock; it also holds the sole channel into the
// alert queue. Grounded on the teacher's processor.go
// AddBlockRule/cleanupRoutine (BlockRule.ExpireTime + a ticking cleanup)
// generalized into an explicit timer per entry instead of a periodic
// sweep, and the teacher's atomic.Value config-swap style replaced with
// a plain mutex since BlockEntry values here are mutated in place by a
// single timer goroutine per IP.
type Scheduler struct {
	fw      firewall.Controller
	enrich  *enrichment.Cache
	queue   *alerts.Queue
	mu      sync.Mutex
	blocked map[string]*BlockEntry
	pending map[string]pendingAlert

	onBlock   func()
	onUnblock func()
}

func New(fw firewall.Controller, enrich *enrichment.Cache, queue *alerts.Queue) *Scheduler {
	s := &Scheduler{
		fw:      fw,
		enrich:  enrich,
		queue:   queue,
		blocked: make(map[string]*BlockEntry),
		pending: make(map[string]pendingAlert),
	}
	return s
}

// SetMetricsHooks wires the ambient block/unblock counters (D8). It is a
// separate setter rather than a New parameter because the engine builds
// its metrics.Collector after the Scheduler, the same deferred-wiring
// style used for OnEnrichmentDone.
func (s *Scheduler) SetMetricsHooks(onBlock, onUnblock func()) {
	s.onBlock = onBlock
	s.onUnblock = onUnblock
}

// OnEnrichmentDone is wired as the enrichment.Cache callback; it
// completes the hand-off into C9 once GeoIP/DNS data is ready.
func (s *Scheduler) OnEnrichmentDone(ip string, info types.GeoInfo) {
	s.mu.Lock()
	pa, ok := s.pending[ip]
	if ok {
		delete(s.pending, ip)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	s.queue.Enqueue(alerts.Alert{
		ID:        utils.GenerateUUID(),
		Timestamp: clock.NowWall(),
		IP:        ip,
		Reason:    pa.reason,
		Action:    "BLOCKED",
		Severity:  string(pa.severity),
		Geo:       alerts.Geo{CountryCode: info.CountryCode, Hostname: info.Hostname},
	})
}

// Block is idempotent: a second call while ip is already blocked is a
// no-op (spec.md §8 invariant 2). duration<=0 uses DefaultDuration.
func (s *Scheduler) Block(ip, reason string, severity types.Severity, duration time.Duration) error {
	if duration <= 0 {
		duration = DefaultDuration
	}

	s.mu.Lock()
	if _, already := s.blocked[ip]; already {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.fw.Block(context.Background(), ip); err != nil {
		log.Printf("%v: %v", ipserr.ErrFirewallInstall, err)
		return err
	}

	now := clock.Now()
	entry := &BlockEntry{InstalledAt: now, ExpiresAt: now.Add(duration)}

	s.mu.Lock()
	s.blocked[ip] = entry
	s.pending[ip] = pendingAlert{reason: reason, severity: severity}
	s.mu.Unlock()

	entry.timer = time.AfterFunc(duration, func() { s.Unblock(ip) })

	if s.onBlock != nil {
		s.onBlock()
	}
	if s.enrich != nil {
		// Submit does nothing for an already-cached IP, so a re-block of
		// such an IP completes the alert hand-off from the cache directly.
		if info, cached := s.enrich.Lookup(ip); cached {
			s.OnEnrichmentDone(ip, info)
		} else {
			s.enrich.Submit(ip)
		}
	}
	return nil
}

// Unblock removes the platform rule and clears the in-memory entry
// regardless of removal success, per spec.md §9 Open Question 4: the
// timer already fired, so leaving the entry blocked forever would be
// worse than a stale firewall rule.
func (s *Scheduler) Unblock(ip string) {
	s.mu.Lock()
	entry, ok := s.blocked[ip]
	if ok {
		delete(s.blocked, ip)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	if entry.timer != nil {
		entry.timer.Stop()
	}

	if err := s.fw.Unblock(context.Background(), ip); err != nil {
		log.Printf("%v: %v", ipserr.ErrFirewallRemoval, err)
	}
	if s.onUnblock != nil {
		s.onUnblock()
	}
}

// IsBlocked reports whether ip currently has a live BlockEntry.
func (s *Scheduler) IsBlocked(ip string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blocked[ip]
	return ok
}

// BlockedCount is a test/introspection helper.
func (s *Scheduler) BlockedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blocked)
}

// BlockedEntry is a read-only view of one live block, for the blocklist
// API endpoint.
type BlockedEntry struct {
	IP          string `json:"ip"`
	InstalledAt int64  `json:"installed_at"`
	ExpiresAt   int64  `json:"expires_at"`
}

// Snapshot lists every currently blocked source. Callers must not mutate
// the scheduler based on this view; it is read-only per spec.md §6.
func (s *Scheduler) Snapshot() []BlockedEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]BlockedEntry, 0, len(s.blocked))
	for ip, entry := range s.blocked {
		out = append(out, BlockedEntry{
			IP:          ip,
			InstalledAt: entry.InstalledAt.Unix(),
			ExpiresAt:   entry.ExpiresAt.Unix(),
		})
	}
	return out
}

// Shutdown cancels all pending unblock timers without removing the
// installed rules, per spec.md §4.8's default "leave rules in place"
// policy — a crash or restart must not silently reopen blocked sources.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.blocked {
		if entry.timer != nil {
			entry.timer.Stop()
		}
	}
}
