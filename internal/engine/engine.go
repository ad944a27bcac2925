// Package engine is the composition root: the single long-lived value
// that replaces the scattered global mutable state of the source
// implementation (spec.md §9), wiring C1-C10 and the domain-stack
// additions (D1-D10) together behind one Ingest entry point.
package engine

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/danger-dream/apollo-ips/internal/alerts"
	"github.com/danger-dream/apollo-ips/internal/broadcast"
	"github.com/danger-dream/apollo-ips/internal/config"
	"github.com/danger-dream/apollo-ips/internal/enrichment"
	"github.com/danger-dream/apollo-ips/internal/firewall"
	"github.com/danger-dream/apollo-ips/internal/metrics"
	"github.com/danger-dream/apollo-ips/internal/pipeline"
	"github.com/danger-dream/apollo-ips/internal/response"
	"github.com/danger-dream/apollo-ips/internal/scanner"
	"github.com/danger-dream/apollo-ips/internal/signature"
	"github.com/danger-dream/apollo-ips/internal/threatintel"
	"github.com/danger-dream/apollo-ips/internal/throughput"
	"github.com/danger-dream/apollo-ips/internal/types"
	"github.com/danger-dream/apollo-ips/internal/utils"
	"github.com/oschwald/geoip2-golang"
)

// Engine owns every component and is the sole caller of the detection
// pipeline from a capture thread's perspective — Ingest never blocks on
// anything but its own in-memory state.
type Engine struct {
	Throughput *throughput.Aggregator
	Threats    *threatintel.Store
	Signatures *signature.Engine
	Scans      *scanner.Tracker
	Pipeline   *pipeline.Pipeline
	Firewall   firewall.Controller
	Enrichment *enrichment.Cache
	Alerts     *alerts.Queue
	Response   *response.Scheduler
	Broadcast  *broadcast.Hub
	Metrics    *metrics.Collector

	geoipDB       *geoip2.Reader
	blockDuration time.Duration
}

// New wires every component from the loaded config. It does not start
// any goroutines; call Run to do that.
func New(cfg *config.Config) (*Engine, error) {
	e := &Engine{
		Throughput:    throughput.New(),
		Alerts:        alerts.New(),
		blockDuration: time.Duration(cfg.BlockDuration) * time.Second,
	}

	var err error
	e.Threats, err = threatintel.NewStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	e.Signatures, err = signature.New(cfg.SignatureRules)
	if err != nil {
		return nil, err
	}

	e.Scans = scanner.New(cfg.PortScanThreshold, time.Duration(cfg.ScanTimeWindow)*time.Second)
	e.Pipeline = pipeline.New(e.Threats, e.Signatures, e.Scans)

	switch cfg.FirewallBackend {
	case "null":
		e.Firewall = &firewall.Null{}
	case "iptables":
		e.Firewall = &firewall.Iptables{}
	case "windows":
		e.Firewall = &firewall.Windows{}
	default:
		e.Firewall = firewall.New()
	}

	e.geoipDB = loadGeoIP(filepath.Join(cfg.DataDir, cfg.GeoIPPath))
	e.Enrichment = enrichment.New(e.geoipDB, cfg.DNSResolver, func(ip string, info types.GeoInfo) {
		e.Response.OnEnrichmentDone(ip, info)
	})
	e.Response = response.New(e.Firewall, e.Enrichment, e.Alerts)

	e.Broadcast = broadcast.New(e.Throughput, e.Alerts)
	e.Metrics = metrics.New(
		func() float64 { return float64(e.Response.BlockedCount()) },
		func() float64 { return float64(e.Alerts.Len()) },
	)
	e.Response.SetMetricsHooks(e.Metrics.BlocksTotal.Inc, e.Metrics.UnblocksTotal.Inc)
	e.Alerts.SetOnDrop(e.Metrics.AlertsDropped.Inc)

	feeds := cfg.ThreatIntelFeeds
	if feeds == nil {
		feeds = e.Threats.GenerateFeedsMetadata()
	}
	if static, ok := feeds["static"]; ok && cfg.ThreatIntelligenceURL != "" {
		static.Enabled = true
		if static.Params == nil {
			static.Params = make(map[string]string)
		}
		static.Params["url"] = cfg.ThreatIntelligenceURL
		feeds["static"] = static
	}
	if err := e.Threats.Initialize(feeds); err != nil {
		return nil, err
	}

	return e, nil
}

// geoIPDownloadURL is the same public GeoLite2 mirror the teacher used,
// since MaxMind's own database now requires a license key.
const geoIPDownloadURL = "https://github.com/du5/geoip/raw/refs/heads/main/GeoLite2-City.tar.gz"

func loadGeoIP(path string) *geoip2.Reader {
	if path == "" {
		log.Println("GeoIP database path is not set, skip loading GeoIP database")
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Printf("GeoIP database not found at %s, downloading", path)
		if err := utils.DownloadGeoIPTarGZ(geoIPDownloadURL, path); err != nil {
			log.Printf("failed to download GeoIP database: %v", err)
		}
	}
	if _, err := os.Stat(path); err != nil {
		log.Printf("GeoIP database unavailable at %s, enrichment will report country_code=N/A", path)
		return nil
	}
	db, err := geoip2.Open(path)
	if err != nil {
		log.Printf("failed to open GeoIP database: %v", err)
		return nil
	}
	return db
}

// Run starts the broadcast tick loop; call in its own goroutine.
func (e *Engine) Run() {
	e.Broadcast.Run()
}

// Ingest implements the data flow from spec.md §2: packet -> C7 ->
// {clean => C2 ; hostile => C8}. It is safe to call from a single
// capture thread repeatedly; it never suspends.
func (e *Engine) Ingest(pkt types.Packet) {
	verdict := e.Pipeline.Classify(pkt)
	e.Metrics.ObservePacket(pkt.SrcIP != nil)

	if !verdict.Hostile() {
		if pkt.SrcIP != nil {
			e.Throughput.Record(pkt.Size)
		}
		e.Metrics.ObserveVerdict("")
		return
	}

	e.Metrics.ObserveVerdict(verdict.Reason)
	if err := e.Response.Block(pkt.SrcIP.String(), verdict.Reason, verdict.Severity, e.blockDuration); err != nil {
		log.Printf("failed to block %s: %v", pkt.SrcIP, err)
	}
}

// Close shuts the engine down. Per spec.md §4.8, pending unblock timers
// are cancelled without removing already-installed rules.
func (e *Engine) Close() error {
	e.Broadcast.Close()
	e.Response.Shutdown()
	e.Threats.Close()
	e.Enrichment.Close()
	if e.geoipDB != nil {
		e.geoipDB.Close()
	}
	return nil
}
