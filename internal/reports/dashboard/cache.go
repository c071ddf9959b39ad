package dashboard

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Key addresses one derived view of one subject
type Key struct {
	Subject string
	View    string
}

func (k Key) String() string {
	return k.Subject + "/" + k.View
}

// SummaryKey is the key of a subject's AggregatedSummary
func SummaryKey(subjectID string) Key {
	return Key{Subject: subjectID, View: "summary"}
}

// TrendKey is the key of a subject's trend summary over depth runs
func TrendKey(subjectID string, depth int) Key {
	return Key{Subject: subjectID, View: fmt.Sprintf("trend:%d", depth)}
}

// RunsKey is the key of a subject's run history limited to depth entries
func RunsKey(subjectID string, depth int) Key {
	return Key{Subject: subjectID, View: fmt.Sprintf("runs:%d", depth)}
}

type cachedView struct {
	value     interface{}
	expiresAt time.Time
}

// SummaryCache is an in-memory TTL cache of per-subject derived views. Invalidating a
// subject drops all of its views at once; Fetch never stores a value whose computation
// overlapped an invalidation.
type SummaryCache struct {
	mu       sync.Mutex
	subjects map[string]map[string]cachedView
	epoch    uint64
	ttl      time.Duration

	sweep *time.Ticker
	done  chan struct{}

	hits      atomic.Int64
	misses    atomic.Int64
	lastSweep atomic.Int64
}

// CacheStats reports cache effectiveness
type CacheStats struct {
	Size      int       `json:"size"`
	Subjects  int       `json:"subjects"`
	Hits      int64     `json:"hits"`
	Misses    int64     `json:"misses"`
	HitRate   float64   `json:"hit_rate"`
	LastSweep time.Time `json:"last_sweep"`
}

// NewSummaryCache creates a cache and starts sweeping expired views every minute
func NewSummaryCache(ttl time.Duration) *SummaryCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	c := &SummaryCache{
		subjects: make(map[string]map[string]cachedView),
		ttl:      ttl,
		sweep:    time.NewTicker(time.Minute),
		done:     make(chan struct{}),
	}
	c.lastSweep.Store(time.Now().UnixNano())

	go c.sweepLoop()
	return c
}

// Get returns a live view and counts the hit or miss
func (c *SummaryCache) Get(key Key) (interface{}, bool) {
	value, _, ok := c.lookup(key)
	return value, ok
}

func (c *SummaryCache) lookup(key Key) (interface{}, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if view, ok := c.subjects[key.Subject][key.View]; ok && time.Now().Before(view.expiresAt) {
		c.hits.Add(1)
		return view.value, c.epoch, true
	}
	c.misses.Add(1)
	return nil, c.epoch, false
}

// Set stores a view with the default TTL
func (c *SummaryCache) Set(key Key, value interface{}) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a view with a custom TTL
func (c *SummaryCache) SetWithTTL(key Key, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.storeLocked(key, value, ttl)
}

func (c *SummaryCache) storeLocked(key Key, value interface{}, ttl time.Duration) {
	views, ok := c.subjects[key.Subject]
	if !ok {
		views = make(map[string]cachedView)
		c.subjects[key.Subject] = views
	}
	views[key.View] = cachedView{value: value, expiresAt: time.Now().Add(ttl)}
}

// storeIfCurrent stores value only if nothing was invalidated since epoch was read
func (c *SummaryCache) storeIfCurrent(key Key, value interface{}, epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch {
		return false
	}
	c.storeLocked(key, value, c.ttl)
	return true
}

// InvalidateSubject drops every cached view of subjectID
func (c *SummaryCache) InvalidateSubject(subjectID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	delete(c.subjects, subjectID)
}

// Size returns the number of cached views
func (c *SummaryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, views := range c.subjects {
		n += len(views)
	}
	return n
}

// Fetch returns the cached view for key or computes and stores it. Errors are not
// cached, and a value computed across an invalidation of its subject is returned but
// not stored.
func Fetch[T any](c *SummaryCache, key Key, compute func() (T, error)) (T, error) {
	cached, epoch, ok := c.lookup(key)
	if ok {
		if typed, ok := cached.(T); ok {
			return typed, nil
		}
	}

	value, err := compute()
	if err != nil {
		var zero T
		return zero, err
	}

	c.storeIfCurrent(key, value, epoch)
	return value, nil
}

// Stats returns cache statistics
func (c *SummaryCache) Stats() CacheStats {
	hits, misses := c.hits.Load(), c.misses.Load()
	rate := 0.0
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}

	c.mu.Lock()
	subjects := len(c.subjects)
	c.mu.Unlock()

	return CacheStats{
		Size:      c.Size(),
		Subjects:  subjects,
		Hits:      hits,
		Misses:    misses,
		HitRate:   rate,
		LastSweep: time.Unix(0, c.lastSweep.Load()),
	}
}

func (c *SummaryCache) sweepLoop() {
	for {
		select {
		case <-c.sweep.C:
			c.removeExpired(time.Now())
		case <-c.done:
			return
		}
	}
}

// removeExpired drops expired views and forgets subjects left with none
func (c *SummaryCache) removeExpired(now time.Time) {
	c.mu.Lock()
	for subject, views := range c.subjects {
		for view, cv := range views {
			if !now.Before(cv.expiresAt) {
				delete(views, view)
			}
		}
		if len(views) == 0 {
			delete(c.subjects, subject)
		}
	}
	c.mu.Unlock()

	c.lastSweep.Store(now.UnixNano())
}

// Stop stops the sweep goroutine
func (c *SummaryCache) Stop() {
	c.sweep.Stop()
	close(c.done)
}
