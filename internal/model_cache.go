package internal

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lychee-technology/erpgate"
	"go.uber.org/zap"
)

// CacheSnapshot is a consistent copy of a model cache's entries.
type CacheSnapshot struct {
	Descriptors erpgate.ModelDescriptors
	Buttons     []erpgate.WorkflowButton
	Defaults    erpgate.Defaults
	HasDefaults bool
}

// ModelCache holds the metadata of one (database, model). Descriptors and
// buttons are shared by all callers; defaults are kept per session in a
// bounded LRU. Everything is discarded when the TTL elapses.
type ModelCache struct {
	mu          sync.RWMutex
	descriptors erpgate.ModelDescriptors
	buttons     []erpgate.WorkflowButton
	defaults    *lru.Cache[erpgate.SessionID, erpgate.Defaults]

	ttl       time.Duration
	stop      chan struct{}
	closeOnce sync.Once
}

// NewModelCache creates a cache and starts its expiry timer.
func NewModelCache(ttl time.Duration, maxSessions int) *ModelCache {
	if maxSessions <= 0 {
		maxSessions = 128
	}
	defaults, err := lru.New[erpgate.SessionID, erpgate.Defaults](maxSessions)
	if err != nil {
		// only fails for a non-positive size
		panic(err)
	}
	c := &ModelCache{
		defaults: defaults,
		ttl:      ttl,
		stop:     make(chan struct{}),
	}
	if ttl > 0 {
		go c.expireLoop()
	}
	return c
}

func (c *ModelCache) expireLoop() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Clear()
		case <-c.stop:
			return
		}
	}
}

// Snapshot returns the current entries, with the defaults of uid if cached.
func (c *ModelCache) Snapshot(uid erpgate.SessionID) CacheSnapshot {
	c.mu.RLock()
	snap := CacheSnapshot{Descriptors: c.descriptors, Buttons: c.buttons}
	c.mu.RUnlock()
	snap.Defaults, snap.HasDefaults = c.defaults.Get(uid)
	return snap
}

func (c *ModelCache) SetDescriptors(d erpgate.ModelDescriptors) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.descriptors = d
}

// SetButtons stores the button list. A non-nil empty list records that the
// model has no buttons.
func (c *ModelCache) SetButtons(b []erpgate.WorkflowButton) {
	if b == nil {
		b = []erpgate.WorkflowButton{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buttons = b
}

func (c *ModelCache) SetDefaults(uid erpgate.SessionID, d erpgate.Defaults) {
	c.defaults.Add(uid, d)
}

// Clear discards every entry.
func (c *ModelCache) Clear() {
	c.mu.Lock()
	c.descriptors = nil
	c.buttons = nil
	c.mu.Unlock()
	c.defaults.Purge()
	zap.S().Debugw("model cache cleared")
}

// Close stops the expiry timer. Safe to call more than once.
func (c *ModelCache) Close() {
	c.closeOnce.Do(func() { close(c.stop) })
}
