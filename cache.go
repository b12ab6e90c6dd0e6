package spritebatch

import (
	"errors"
	"fmt"
)

// PixelCache is a byte-bounded LRU cache of decoded images.
//
// The cache is not safe for concurrent use; a Batch owns exactly one.
type PixelCache struct {
	src       PixelSource
	entries   map[uint64]*cacheEntry
	order     lruList
	capacity  int
	bytes     int
	peakBytes int
	onEvict   func(id uint64)

	hits      uint64
	misses    uint64
	evictions uint64
}

// CacheStats contains cache statistics.
type CacheStats struct {
	// Entries is the number of resident images.
	Entries int
	// Bytes is the total size of resident pixel buffers.
	Bytes int
	// Capacity is the configured byte budget.
	Capacity int
	// PeakBytes is the largest Bytes value observed since creation.
	PeakBytes int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// HitRate returns Hits / (Hits + Misses), or 0 before the first lookup.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// NewPixelCache creates a cache holding at most capacity bytes of pixels
// fetched from src.
func NewPixelCache(capacity int, src PixelSource) (*PixelCache, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	if src == nil {
		return nil, fmt.Errorf("%w: nil pixel source", ErrConfiguration)
	}
	return &PixelCache{
		src:      src,
		entries:  make(map[uint64]*cacheEntry),
		capacity: capacity,
	}, nil
}

// SetEvictHook registers fn to be called with the id of every entry evicted
// to make room. Clear does not call it.
func (c *PixelCache) SetEvictHook(fn func(id uint64)) {
	c.onEvict = fn
}

// Get returns the resident pixels for id, fetching them on a miss. The
// returned view is shared with the cache and is valid until id is evicted.
func (c *PixelCache) Get(id uint64) (*Pixels, error) {
	if e, ok := c.entries[id]; ok {
		c.hits++
		c.order.moveToFront(e)
		return e.pixels, nil
	}
	c.misses++
	e, err := c.load(id)
	if err != nil {
		return nil, err
	}
	return e.pixels, nil
}

// Prefetch makes id resident and most recently used.
func (c *PixelCache) Prefetch(id uint64) error {
	_, err := c.Get(id)
	return err
}

// Peek returns the resident pixels for id without touching recency or
// fetching.
func (c *PixelCache) Peek(id uint64) (*Pixels, bool) {
	e, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	return e.pixels, true
}

// Contains reports whether id is resident.
func (c *PixelCache) Contains(id uint64) bool {
	_, ok := c.entries[id]
	return ok
}

// load fetches id and inserts it, evicting least recently used entries
// first. On any failure the cache is left unchanged.
func (c *PixelCache) load(id uint64) (*cacheEntry, error) {
	px, err := c.src.FetchPixels(id)
	if err != nil {
		if !errors.Is(err, ErrSourceUnavailable) && !errors.Is(err, ErrEntryTooLarge) {
			err = fmt.Errorf("%w: id %d: %w", ErrSourceUnavailable, id, err)
		}
		return nil, err
	}
	if px == nil || px.Width <= 0 || px.Height <= 0 || len(px.Pix) != 4*px.Width*px.Height {
		return nil, fmt.Errorf("%w: id %d returned a malformed buffer", ErrSourceUnavailable, id)
	}
	size := px.ByteSize()
	if size > c.capacity {
		return nil, fmt.Errorf("%w: id %d needs %d bytes, capacity is %d",
			ErrEntryTooLarge, id, size, c.capacity)
	}

	for c.bytes+size > c.capacity {
		c.evictOldest()
	}

	e := &cacheEntry{id: id, pixels: px, size: size}
	c.entries[id] = e
	c.order.pushFront(e)
	c.bytes += size
	if c.bytes > c.peakBytes {
		c.peakBytes = c.bytes
	}
	return e, nil
}

func (c *PixelCache) evictOldest() {
	e := c.order.back()
	if e == nil {
		return
	}
	c.order.unlink(e)
	delete(c.entries, e.id)
	c.bytes -= e.size
	c.evictions++
	if c.onEvict != nil {
		c.onEvict(e.id)
	}
}

// Clear drops every entry and releases the pixel buffers.
func (c *PixelCache) Clear() {
	for id, e := range c.entries {
		e.pixels = nil
		delete(c.entries, id)
	}
	c.order.clear()
	c.bytes = 0
}

// Len returns the number of resident entries.
func (c *PixelCache) Len() int {
	return len(c.entries)
}

// Size returns the number of resident bytes.
func (c *PixelCache) Size() int {
	return c.bytes
}

// Capacity returns the byte budget.
func (c *PixelCache) Capacity() int {
	return c.capacity
}

// Stats returns cache statistics.
func (c *PixelCache) Stats() CacheStats {
	return CacheStats{
		Entries:   len(c.entries),
		Bytes:     c.bytes,
		Capacity:  c.capacity,
		PeakBytes: c.peakBytes,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}
