// Package enrichment implements C3: a cached GeoIP + reverse-DNS lookup
// for source IPs that triggered a block, dispatched onto a worker pool so
// the capture thread and broadcast loop never suspend on DNS or GeoIP I/O.
package enrichment

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/danger-dream/apollo-ips/internal/types"
	"github.com/danger-dream/apollo-ips/internal/utils"
	"github.com/miekg/dns"
	"github.com/oschwald/geoip2-golang"
)

// LookupTimeout bounds each of the GeoIP and reverse-DNS sub-lookups,
// per spec.md §5 ("a soft 5-second timeout per sub-lookup").
const LookupTimeout = 5 * time.Second

// maxCachedSources bounds the enrichment cache the same way
// internal/scanner.maxTrackedSources bounds the port-scan ring set
// (spec.md §9 Open Question 1's "ip_cache" half): once the cap is hit,
// the least-recently-added entry is evicted to make room, rather than
// letting the cache grow without bound.
const maxCachedSources = 100_000

// Cache performs enrich-once lookups and keeps each result until the
// maxCachedSources cap evicts it. Grounded on the
// teacher's processor.createPacket, which did the same GeoIP-lookup-then-
// cache-nothing pass inline; here it's split out, cached, and given a
// reverse-DNS leg plus a dedicated worker pool so it never runs on the
// capture path.
type Cache struct {
	geoipDB  *geoip2.Reader
	resolver string // "host:port" of the DNS resolver to query
	pool     *utils.ElasticPool[string]
	queue    chan string
	onDone   func(ip string, info types.GeoInfo)

	mu      sync.Mutex
	cache   map[string]types.GeoInfo
	touched []string // insertion order, trimmed on eviction
	pending map[string]struct{}
}

// New builds a Cache. geoipDB may be nil (GeoIP disabled); resolver may
// be empty (falls back to the system resolver).
func New(geoipDB *geoip2.Reader, resolver string, onDone func(ip string, info types.GeoInfo)) *Cache {
	c := &Cache{
		geoipDB:  geoipDB,
		resolver: resolver,
		onDone:   onDone,
		cache:    make(map[string]types.GeoInfo),
		pending:  make(map[string]struct{}),
		queue:    make(chan string, 256),
	}
	c.pool = utils.NewElasticPool[string](utils.PoolConfig{
		QueueSize:  256,
		MinWorkers: 1,
		MaxWorkers: 8,
	})
	c.pool.SetProducer(func(enqueue func(string)) {
		for ip := range c.queue {
			enqueue(ip)
		}
	})
	c.pool.SetProcessor(c.process)
	c.pool.Start()
	return c
}

func (c *Cache) Close() error {
	close(c.queue)
	return c.pool.Close()
}

// Lookup returns a cached enrichment if present, without triggering a
// new lookup.
func (c *Cache) Lookup(ip string) (types.GeoInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.cache[ip]
	return info, ok
}

// Submit schedules an enrichment lookup for ip if one isn't already
// cached or in flight. The pending set means two concurrent Submits for
// the same uncached IP dispatch a single lookup; onDone fires exactly
// once per dispatched lookup.
func (c *Cache) Submit(ip string) {
	c.mu.Lock()
	if _, ok := c.cache[ip]; ok {
		c.mu.Unlock()
		return
	}
	if _, inFlight := c.pending[ip]; inFlight {
		c.mu.Unlock()
		return
	}
	c.pending[ip] = struct{}{}
	c.mu.Unlock()

	select {
	case c.queue <- ip:
	default:
		// queue full: run on a fresh goroutine rather than drop the
		// enrichment (an EnrichedAlert is required to carry geo data once
		// it's enqueued) or block the caller on DNS/GeoIP I/O.
		go c.process(ip)
	}
}

func (c *Cache) process(ip string) {
	defer func() {
		c.mu.Lock()
		delete(c.pending, ip)
		c.mu.Unlock()
	}()

	info := types.GeoInfo{CountryCode: types.NotAvailable, Hostname: types.NotAvailable}
	if utils.IsLocalIP(ip) {
		info.CountryCode = "local"
		info.Hostname = "local"
	} else {
		info.CountryCode = c.lookupCountry(ip)
		info.Hostname = c.lookupHostname(ip)
	}
	c.store(ip, info)
	if c.onDone != nil {
		c.onDone(ip, info)
	}
}

// store records info for ip, evicting the least-recently-added entry
// first if the cache is at capacity.
func (c *Cache) store(ip string, info types.GeoInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.cache[ip]; !exists && len(c.cache) >= maxCachedSources {
		for len(c.touched) > 0 {
			victim := c.touched[0]
			c.touched = c.touched[1:]
			if _, ok := c.cache[victim]; ok {
				delete(c.cache, victim)
				break
			}
		}
	}
	if _, exists := c.cache[ip]; !exists {
		c.touched = append(c.touched, ip)
	}
	c.cache[ip] = info
}

// CachedSources reports the number of distinct IPs currently cached;
// used by tests to check the bounded-growth invariant.
func (c *Cache) CachedSources() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

func (c *Cache) lookupCountry(ip string) string {
	if c.geoipDB == nil {
		return types.NotAvailable
	}
	done := make(chan string, 1)
	go func() {
		record, err := c.geoipDB.Country(net.ParseIP(ip))
		if err != nil || record.Country.GeoNameID == 0 {
			done <- types.NotAvailable
			return
		}
		done <- record.Country.IsoCode
	}()
	select {
	case code := <-done:
		return code
	case <-time.After(LookupTimeout):
		return types.NotAvailable
	}
}

func (c *Cache) lookupHostname(ip string) string {
	ctx, cancel := context.WithTimeout(context.Background(), LookupTimeout)
	defer cancel()

	reverse, err := dns.ReverseAddr(ip)
	if err != nil {
		return types.NotAvailable
	}

	resolver := c.resolver
	if resolver == "" {
		names, err := net.DefaultResolver.LookupAddr(ctx, ip)
		if err != nil || len(names) == 0 {
			return types.NotAvailable
		}
		return names[0]
	}

	msg := new(dns.Msg)
	msg.SetQuestion(reverse, dns.TypePTR)
	client := new(dns.Client)
	client.Timeout = LookupTimeout
	resp, _, err := client.ExchangeContext(ctx, msg, resolver)
	if err != nil || resp == nil {
		return types.NotAvailable
	}
	for _, answer := range resp.Answer {
		if ptr, ok := answer.(*dns.PTR); ok {
			return ptr.Ptr
		}
	}
	return types.NotAvailable
}
