package server

import (
	"bufio"
	"fmt"
	"time"

	"github.com/danger-dream/apollo-ips/internal/broadcast"
	"github.com/gofiber/fiber/v3"
)

// sseClient adapts one HTTP connection to broadcast.Observer. Send is
// called from the hub's tick goroutine and must never block on a slow
// reader; it only enqueues, with the stream writer goroutine doing the
// actual I/O.
type sseClient struct {
	out chan []byte
}

func newSSEClient() *sseClient {
	return &sseClient{out: make(chan []byte, 64)}
}

func (c *sseClient) Send(data []byte) error {
	select {
	case c.out <- data:
		return nil
	default:
		return fmt.Errorf("stream client buffer full")
	}
}

// Stream is the push channel to observers (spec.md §2/§6): throughput
// windows and security alerts as Server-Sent Events, one JSON message
// per event. Grounded on the teacher's fiber v3 stack; fiber v3 has no
// verified websocket middleware in this corpus, so SSE over the
// existing HTTP server is used instead of adding an ungrounded
// dependency.
func (s *Server) Stream(c fiber.Ctx) error {
	client := newSSEClient()
	s.engine.Broadcast.Register(client)

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer s.engine.Broadcast.Unregister(client)
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case data, ok := <-client.out:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			case <-ticker.C:
				if _, err := w.WriteString(": keepalive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})
	return nil
}

var _ broadcast.Observer = (*sseClient)(nil)
