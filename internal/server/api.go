package server

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) Ping(c fiber.Ctx) error {
	return c.SendString(fmt.Sprintf("pong %s", time.Now().Format(time.DateTime)))
}

// GetMetrics exposes the Prometheus text exposition format from the
// engine's own registry, not the global one, so running the binary twice
// in a test process never double-registers a collector.
func (s *Server) GetMetrics(c fiber.Ctx) error {
	handler := promhttp.HandlerFor(s.engine.Metrics.Registry, promhttp.HandlerOpts{})
	return adaptor.HTTPHandler(handler)(c)
}

// GetBlocklist is the read-only view of currently blocked sources
// (spec.md §6); there is no write path — blocks are only ever installed
// by the response scheduler reacting to a detection.
func (s *Server) GetBlocklist(c fiber.Ctx) error {
	return c.JSON(s.engine.Response.Snapshot())
}

func (s *Server) GetThreatFeeds(c fiber.Ctx) error {
	return c.JSON(s.engine.Threats.GetFeedsMetadata())
}
