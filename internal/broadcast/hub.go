// Package broadcast implements C10: a 1-second tick loop that drains
// throughput windows and queued alerts and fans them out to connected
// observers, isolating a failed observer rather than letting it stall
// the loop.
package broadcast

import (
	"encoding/json"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/danger-dream/apollo-ips/internal/alerts"
	"github.com/danger-dream/apollo-ips/internal/throughput"
)

// Tick is the cadence from spec.md §4.9.
const Tick = 1 * time.Second

// Message mirrors spec.md §6's wire shape verbatim.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Observer is anything the hub can push JSON to; a failed Send
// unregisters that observer from the hub — the hub never retries or
// re-enqueues.
type Observer interface {
	Send(data []byte) error
}

// Hub owns the set of connected observers and drives C2/C9 drains.
// Grounded on the teacher's gofiber-based server loop style (single
// owner of connection I/O) generalized from HTTP handlers to a
// dedicated ticking goroutine.
type Hub struct {
	throughput *throughput.Aggregator
	queue      *alerts.Queue

	mu        sync.Mutex
	observers map[Observer]struct{}
	done      chan struct{}
}

func New(agg *throughput.Aggregator, queue *alerts.Queue) *Hub {
	return &Hub{
		throughput: agg,
		queue:      queue,
		observers:  make(map[Observer]struct{}),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Register(o Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observers[o] = struct{}{}
}

func (h *Hub) Unregister(o Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.observers, o)
}

func (h *Hub) ObserverCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

// Run starts the 1-second tick loop; it returns when Close is called.
func (h *Hub) Run() {
	ticker := time.NewTicker(Tick)
	defer ticker.Stop()
	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.tick()
		}
	}
}

func (h *Hub) Close() {
	close(h.done)
}

func (h *Hub) tick() {
	if windowTS, bucket, ok := h.throughput.DrainPreviousWindow(); ok {
		payload := map[string]throughput.Bucket{
			formatWindow(windowTS): bucket,
		}
		h.publish(Message{Type: "throughput_data", Payload: payload})
	}

	for _, a := range h.queue.Drain() {
		h.publish(Message{Type: "security_alert", Payload: a})
	}
}

func formatWindow(windowTS int64) string {
	return strconv.FormatInt(windowTS, 10)
}

func (h *Hub) publish(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("broadcast: failed to marshal %s message: %v", msg.Type, err)
		return
	}

	h.mu.Lock()
	targets := make([]Observer, 0, len(h.observers))
	for o := range h.observers {
		targets = append(targets, o)
	}
	h.mu.Unlock()

	for _, o := range targets {
		if err := o.Send(data); err != nil {
			h.Unregister(o)
		}
	}
}
