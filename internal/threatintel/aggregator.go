// Package threatintel implements C4: an immutable-after-load-until-refresh
// set of hostile source addresses, backed by a CIDR-aware trie so both
// exact IPs and network ranges can be registered.
package threatintel

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"golang.org/x/exp/maps"

	"github.com/danger-dream/apollo-ips/internal/ipserr"
	"github.com/danger-dream/apollo-ips/internal/threatintel/iptrie"
	"github.com/danger-dream/apollo-ips/internal/threatintel/provider"
	"github.com/danger-dream/apollo-ips/internal/utils"
)

// FeedMetadata is the persisted, operator-visible state of one registered
// feed.
type FeedMetadata struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Schedule    string            `json:"schedule"`
	Enabled     bool              `json:"enabled"`
	Params      map[string]string `json:"params"`
}

// Feed is the interface every threat intelligence source implements,
// whether it's the spec's single static URL or a richer aggregated list.
type Feed interface {
	Name() string
	Description() string
	Schedule() string
	Fetch(params map[string]string) ([]string, error)
	DefaultParams() map[string]string
}

// Store is the C4 threat-intel store. Contains() holds only a brief read
// lock to load the trie pointer: refreshes build a brand-new trie and swap
// the pointer under a brief write lock, so readers never block on a fetch
// in flight.
type Store struct {
	dataDir  string
	cron     *cron.Cron
	entryIDs map[string]cron.EntryID
	trie     *iptrie.IPTrie
	feeds    map[string]Feed
	metadata *sync.Map
	mu       sync.RWMutex
}

// NewStore creates a store with the spec's static feed plus the teacher
// corpus's AbuseIPDB and Spamhaus feeds registered (disabled by default;
// enabled via FeedMetadata.Enabled in Initialize).
func NewStore(dataDir string) (*Store, error) {
	dir := filepath.Join(dataDir, "threatintel")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", ipserr.ErrConfigLoad, err)
	}

	s := &Store{
		dataDir:  dir,
		cron:     cron.New(),
		entryIDs: make(map[string]cron.EntryID),
		trie:     iptrie.NewIPTrie(),
		feeds:    make(map[string]Feed),
		metadata: &sync.Map{},
	}
	for _, f := range []Feed{&provider.Static{}, &provider.AbuseIPDB{}, &provider.Spamhaus{}} {
		if err := s.registerFeed(f); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) registerFeed(feed Feed) error {
	if feed == nil {
		return errors.New("feed cannot be nil")
	}
	schedule := feed.Schedule()
	if schedule == "" {
		return errors.New("feed schedule cannot be empty")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid schedule expression: %v", err)
	}
	s.feeds[strings.ToLower(feed.Name())] = feed
	return nil
}

// GenerateFeedsMetadata returns the default, disabled metadata for every
// registered feed — the shape persisted to config.
func (s *Store) GenerateFeedsMetadata() map[string]FeedMetadata {
	metadata := make(map[string]FeedMetadata)
	for name, feed := range s.feeds {
		metadata[name] = FeedMetadata{
			Name:        feed.Name(),
			Description: feed.Description(),
			Schedule:    feed.Schedule(),
			Enabled:     false,
			Params:      feed.DefaultParams(),
		}
	}
	return metadata
}

// Initialize schedules every enabled feed and runs the cron dispatcher.
// Called once at startup (spec §4.4: "Refresh is expected at startup and
// optionally on a coarse interval").
func (s *Store) Initialize(metadata map[string]FeedMetadata) error {
	for name, info := range metadata {
		info := info
		s.metadata.Store(name, &info)
		if info.Enabled {
			if err := s.schedule(name, info.Schedule); err != nil {
				return fmt.Errorf("failed to schedule feed %s: %v", name, err)
			}
		}
	}
	s.cron.Start()
	return nil
}

func (s *Store) feedFilename(name string) string {
	return filepath.Join(s.dataDir, fmt.Sprintf("%s.txt", name))
}

// RefreshNow runs one feed synchronously, ignoring its schedule. A total
// fetch failure leaves the current set unchanged and only warns, per spec
// §4.4.
func (s *Store) RefreshNow(name string) {
	s.syncFeed(name)
}

func (s *Store) syncFeed(name string) {
	source, exists := s.feeds[name]
	if !exists {
		return
	}
	infoVal, exists := s.metadata.Load(name)
	info, _ := infoVal.(*FeedMetadata)
	if !exists || info == nil || !info.Enabled {
		return
	}

	indicators, err := source.Fetch(info.Params)
	if err != nil {
		log.Printf("%v: feed %s: %v", ipserr.ErrThreatFeedFetch, name, err)
		return
	}
	if len(indicators) == 0 {
		log.Printf("no indicators retrieved from feed %s", name)
		return
	}

	valid := make([]string, 0, len(indicators))
	for _, ip := range indicators {
		if utils.ParseStringToIPType(ip) != utils.IPTypeUnknown {
			valid = append(valid, ip)
		}
	}
	if len(valid) == 0 {
		log.Printf("no valid indicators retrieved from feed %s", name)
		return
	}

	log.Printf("retrieved %d indicators from feed %s", len(valid), name)

	if err := os.WriteFile(s.feedFilename(name), []byte(strings.Join(valid, "\n")), 0644); err != nil {
		log.Printf("failed to persist feed %s: %v", name, err)
		return
	}
	s.aggregate()
}

func (s *Store) aggregate() {
	trie := iptrie.NewIPTrie()
	total := 0
	s.metadata.Range(func(key, value interface{}) bool {
		info, _ := value.(*FeedMetadata)
		if info == nil || !info.Enabled {
			return true
		}
		filename := s.feedFilename(info.Name)
		data, err := os.ReadFile(filename)
		if err != nil {
			return true
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if err := trie.Insert(line); err == nil {
				total++
			}
		}
		return true
	})
	s.mu.Lock()
	s.trie = trie
	s.mu.Unlock()
	log.Printf("threat-intel: aggregated %d indicators", total)
}

func (s *Store) Close() {
	s.cron.Stop()
}

func (s *Store) schedule(name, sched string) error {
	s.mu.Lock()
	if id, exists := s.entryIDs[name]; exists {
		s.cron.Remove(id)
		delete(s.entryIDs, name)
	}
	id, err := s.cron.AddFunc(sched, func() { s.syncFeed(name) })
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to schedule task: %v", err)
	}
	s.entryIDs[name] = id
	s.mu.Unlock()
	s.syncFeed(name)
	return nil
}

func (s *Store) disableFeed(name string) {
	s.mu.Lock()
	if id, exists := s.entryIDs[name]; exists {
		s.cron.Remove(id)
		delete(s.entryIDs, name)
	}
	s.mu.Unlock()
	if _, exists := s.metadata.Load(name); exists {
		if _, err := os.Stat(s.feedFilename(name)); err == nil {
			os.Remove(s.feedFilename(name))
		}
		s.metadata.Delete(name)
	}
	s.aggregate()
}

// UpdateFeedMetadata reconfigures a registered feed (enable/disable,
// reschedule, reparameterize) and takes effect immediately.
func (s *Store) UpdateFeedMetadata(name string, metadata *FeedMetadata) error {
	name = strings.ToLower(name)
	if _, exists := s.feeds[name]; !exists {
		return fmt.Errorf("feed not found: %s", name)
	}
	if metadata.Schedule != "" {
		if _, err := cron.ParseStandard(metadata.Schedule); err != nil {
			return fmt.Errorf("invalid schedule expression: %v", err)
		}
	}
	currentVal, exists := s.metadata.Load(name)
	if !exists {
		return fmt.Errorf("feed metadata not found: %s", name)
	}
	current, _ := currentVal.(*FeedMetadata)
	oldEnabled := current.Enabled
	s.metadata.Store(name, metadata)

	switch {
	case !oldEnabled && metadata.Enabled:
		if err := s.schedule(name, metadata.Schedule); err != nil {
			s.metadata.Store(name, current)
			return err
		}
	case oldEnabled && !metadata.Enabled:
		s.disableFeed(name)
	case metadata.Enabled:
		if current.Schedule != metadata.Schedule {
			if err := s.schedule(name, metadata.Schedule); err != nil {
				s.metadata.Store(name, current)
				return err
			}
		} else if !maps.Equal(current.Params, metadata.Params) {
			s.syncFeed(name)
		}
	}
	return nil
}

func (s *Store) GetFeedsMetadata() map[string]*FeedMetadata {
	out := make(map[string]*FeedMetadata)
	s.metadata.Range(func(key, value interface{}) bool {
		info, _ := value.(*FeedMetadata)
		out[key.(string)] = info
		return true
	})
	return out
}

// Contains is the C4 membership test: O(trie depth); it never waits on a
// refresh's fetch, only on the brief pointer swap.
func (s *Store) Contains(ip string) bool {
	if ip == "" {
		return false
	}
	s.mu.RLock()
	trie := s.trie
	s.mu.RUnlock()
	if trie == nil || trie.Size() < 1 {
		return false
	}
	return trie.Contains(ip)
}
