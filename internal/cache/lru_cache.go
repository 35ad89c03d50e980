// Package cache implements the block cache used to hold decoded SST data
// blocks in memory between reads, the same role RocksDB's block cache
// plays for a block-based table reader.
//
// Reference: RocksDB v10.7.5
//   - cache/lru_cache.h
//   - cache/lru_cache.cc
package cache

import (
	"sync"
	"sync/atomic"
)

// Cache is the interface implemented by both a single LRU shard and a
// sharded cache built from several of them.
type Cache interface {
	// Insert adds an entry to the cache, replacing any existing entry for
	// the same key, and returns a handle pinning it.
	Insert(key CacheKey, value []byte, charge uint64) *Handle

	// Lookup returns a pinned handle for key, or nil if it isn't cached.
	Lookup(key CacheKey) *Handle

	// Release unpins a handle obtained from Insert or Lookup. Every handle
	// must eventually be released exactly once.
	Release(handle *Handle)

	// Erase drops key from the cache. An entry still pinned by an
	// outstanding handle is removed once its last handle is released.
	Erase(key CacheKey)

	SetCapacity(capacity uint64)
	GetCapacity() uint64
	GetUsage() uint64
	GetPinnedUsage() uint64
	GetOccupancyCount() uint64

	// Close drops every entry regardless of pin state.
	Close()
}

// CacheKey identifies one cached block: the SST file it came from and its
// byte offset within that file.
type CacheKey struct {
	FileNumber  uint64
	BlockOffset uint64
}

// Handle is a pinned reference to a cached entry. The underlying value
// stays alive and in place until every outstanding Handle for it has been
// released.
type Handle struct {
	key    CacheKey
	value  []byte
	charge uint64
	pins   int32
	erased bool
}

// Value returns the cached bytes.
func (h *Handle) Value() []byte { return h.value }

// Charge returns the memory charge this entry counts against capacity.
func (h *Handle) Charge() uint64 { return h.charge }

// node is one slot in the shard's intrusive recency list; mostRecent sits
// at the head, leastRecent at the tail.
type node struct {
	handle *Handle
	older  *node
	newer  *node
}

// LRUCache is a single fixed-capacity, reference-counted LRU shard. It is
// safe for concurrent use.
type LRUCache struct {
	mu       sync.RWMutex
	capacity uint64
	usage    uint64

	byKey       map[CacheKey]*node
	mostRecent  *node
	leastRecent *node

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewLRUCache creates a shard with the given byte capacity.
func NewLRUCache(capacity uint64) *LRUCache {
	return &LRUCache{
		capacity: capacity,
		byKey:    make(map[CacheKey]*node),
	}
}

// unlink detaches n from the recency list without touching byKey or usage.
func (c *LRUCache) unlink(n *node) {
	if n.older != nil {
		n.older.newer = n.newer
	} else {
		c.leastRecent = n.newer
	}
	if n.newer != nil {
		n.newer.older = n.older
	} else {
		c.mostRecent = n.older
	}
	n.older, n.newer = nil, nil
}

// pushMostRecent inserts n as the most recently used entry.
func (c *LRUCache) pushMostRecent(n *node) {
	n.older = c.mostRecent
	n.newer = nil
	if c.mostRecent != nil {
		c.mostRecent.newer = n
	}
	c.mostRecent = n
	if c.leastRecent == nil {
		c.leastRecent = n
	}
}

func (c *LRUCache) touch(n *node) {
	if n == c.mostRecent {
		return
	}
	c.unlink(n)
	c.pushMostRecent(n)
}

// Insert adds or replaces key's entry and returns a pinned handle for it.
func (c *LRUCache) Insert(key CacheKey, value []byte, charge uint64) *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.byKey[key]; ok {
		c.usage = c.usage - n.handle.charge + charge
		n.handle.value = value
		n.handle.charge = charge
		n.handle.pins++
		c.touch(n)
		return n.handle
	}

	for c.usage+charge > c.capacity && c.leastRecent != nil {
		if !c.evictLeastRecent() {
			break
		}
	}

	h := &Handle{key: key, value: value, charge: charge, pins: 1}
	n := &node{handle: h}
	c.byKey[key] = n
	c.pushMostRecent(n)
	c.usage += charge

	return h
}

// Lookup returns a pinned handle for key, or nil on a miss.
func (c *LRUCache) Lookup(key CacheKey) *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.byKey[key]; ok && !n.handle.erased {
		c.touch(n)
		n.handle.pins++
		c.hits.Add(1)
		return n.handle
	}

	c.misses.Add(1)
	return nil
}

// Release unpins handle, finishing its removal if it was erased while
// still pinned.
func (c *LRUCache) Release(handle *Handle) {
	if handle == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	handle.pins--
	if handle.pins == 0 && handle.erased {
		c.drop(handle.key)
	}
}

// Erase marks key for removal, dropping it immediately if nothing has it
// pinned.
func (c *LRUCache) Erase(key CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.byKey[key]
	if !ok {
		return
	}
	n.handle.erased = true
	if n.handle.pins == 0 {
		c.drop(key)
	}
}

func (c *LRUCache) SetCapacity(capacity uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.capacity = capacity
	for c.usage > c.capacity && c.leastRecent != nil {
		if !c.evictLeastRecent() {
			break
		}
	}
}

func (c *LRUCache) GetCapacity() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.capacity
}

func (c *LRUCache) GetUsage() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.usage
}

func (c *LRUCache) GetPinnedUsage() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var pinned uint64
	for _, n := range c.byKey {
		if n.handle.pins > 0 {
			pinned += n.handle.charge
		}
	}
	return pinned
}

func (c *LRUCache) GetOccupancyCount() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return uint64(len(c.byKey))
}

// Close drops every entry regardless of outstanding pins.
func (c *LRUCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.byKey = make(map[CacheKey]*node)
	c.mostRecent, c.leastRecent = nil, nil
	c.usage = 0
}

func (c *LRUCache) GetHitCount() uint64  { return c.hits.Load() }
func (c *LRUCache) GetMissCount() uint64 { return c.misses.Load() }

func (c *LRUCache) GetHitRate() float64 {
	hits, misses := c.hits.Load(), c.misses.Load()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

// evictLeastRecent drops the oldest unpinned, non-erased entry. Returns
// false if every entry is currently pinned, so callers don't spin.
// REQUIRES: c.mu held.
func (c *LRUCache) evictLeastRecent() bool {
	for n := c.leastRecent; n != nil; n = n.newer {
		if n.handle.pins == 0 {
			c.drop(n.handle.key)
			return true
		}
	}
	return false
}

// drop removes key's node from both the index and the recency list.
// REQUIRES: c.mu held.
func (c *LRUCache) drop(key CacheKey) {
	n, ok := c.byKey[key]
	if !ok {
		return
	}
	c.unlink(n)
	delete(c.byKey, key)
	c.usage -= n.handle.charge
}

// ShardedLRUCache spreads entries across several LRUCache shards, keyed by
// a hash of CacheKey, to cut lock contention under concurrent access.
type ShardedLRUCache struct {
	shards    []*LRUCache
	shardMask uint64
}

// NewShardedLRUCache builds a cache of the given total capacity split
// evenly across numShards shards (rounded up to a power of two).
func NewShardedLRUCache(capacity uint64, numShards int) *ShardedLRUCache {
	if numShards <= 0 {
		numShards = 16
	}
	numShards = roundUpToPowerOfTwo(numShards)

	perShard := capacity / uint64(numShards)
	if perShard == 0 {
		perShard = 1
	}

	shards := make([]*LRUCache, numShards)
	for i := range shards {
		shards[i] = NewLRUCache(perShard)
	}

	return &ShardedLRUCache{shards: shards, shardMask: uint64(numShards) - 1}
}

func roundUpToPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// shardFor picks a shard via a cheap mix of the file number and block
// offset; it doesn't need to be cryptographically strong, just spread
// keys from the same file across shards.
func (c *ShardedLRUCache) shardFor(key CacheKey) *LRUCache {
	mixed := key.FileNumber*0x9E3779B97F4A7C15 ^ key.BlockOffset
	return c.shards[mixed&c.shardMask]
}

func (c *ShardedLRUCache) Insert(key CacheKey, value []byte, charge uint64) *Handle {
	return c.shardFor(key).Insert(key, value, charge)
}

func (c *ShardedLRUCache) Lookup(key CacheKey) *Handle {
	return c.shardFor(key).Lookup(key)
}

func (c *ShardedLRUCache) Release(handle *Handle) {
	if handle == nil {
		return
	}
	c.shardFor(handle.key).Release(handle)
}

func (c *ShardedLRUCache) Erase(key CacheKey) {
	c.shardFor(key).Erase(key)
}

func (c *ShardedLRUCache) SetCapacity(capacity uint64) {
	perShard := capacity / uint64(len(c.shards))
	if perShard == 0 {
		perShard = 1
	}
	for _, s := range c.shards {
		s.SetCapacity(perShard)
	}
}

func (c *ShardedLRUCache) GetCapacity() uint64 {
	var total uint64
	for _, s := range c.shards {
		total += s.GetCapacity()
	}
	return total
}

func (c *ShardedLRUCache) GetUsage() uint64 {
	var total uint64
	for _, s := range c.shards {
		total += s.GetUsage()
	}
	return total
}

func (c *ShardedLRUCache) GetPinnedUsage() uint64 {
	var total uint64
	for _, s := range c.shards {
		total += s.GetPinnedUsage()
	}
	return total
}

func (c *ShardedLRUCache) GetOccupancyCount() uint64 {
	var total uint64
	for _, s := range c.shards {
		total += s.GetOccupancyCount()
	}
	return total
}

func (c *ShardedLRUCache) Close() {
	for _, s := range c.shards {
		s.Close()
	}
}

func (c *ShardedLRUCache) GetHitCount() uint64 {
	var total uint64
	for _, s := range c.shards {
		total += s.GetHitCount()
	}
	return total
}

func (c *ShardedLRUCache) GetMissCount() uint64 {
	var total uint64
	for _, s := range c.shards {
		total += s.GetMissCount()
	}
	return total
}

func (c *ShardedLRUCache) GetHitRate() float64 {
	hits, misses := c.GetHitCount(), c.GetMissCount()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}
