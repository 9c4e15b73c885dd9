// Package tilecache holds computed escape-data tiles under a memory budget.
//
// The cache is the single source of truth for "has this lattice tile been
// computed at this tier". Entries are evicted least-recently-used once the
// tile-count or byte budget is exceeded; InvalidateStale drops tiles that
// no plausible upcoming viewport will need.
//
// Cross-tier policy: a lookup at level L is answered by the entry at level L
// or, if absent, by the lowest level above L that holds the same lattice tile
// with at least the requested iteration bound. The higher-accuracy data is
// returned as-is, never downsampled.
//
// Cache is safe for concurrent use.
package tilecache

import (
	"math"
	"sync"

	mandel "github.com/marben/mandelzoom"
)

// Default budgets.
const (
	DefaultMaxTiles     = 4096
	DefaultMaxBytes     = 256 << 20
	DefaultMargin       = 0.5
	DefaultScaleOctaves = 3
)

// Config bounds the cache. Zero budgets disable that bound.
type Config struct {
	MaxTiles int
	MaxBytes int64

	// Margin inflates the current viewport by this fraction of its size on
	// every side when deciding staleness.
	Margin float64

	// ScaleOctaves is how far (in octaves) a tile's scale may be from the
	// current or predicted scale and still be kept by InvalidateStale.
	ScaleOctaves float64
}

// DefaultConfig returns the default budgets.
func DefaultConfig() Config {
	return Config{
		MaxTiles:     DefaultMaxTiles,
		MaxBytes:     DefaultMaxBytes,
		Margin:       DefaultMargin,
		ScaleOctaves: DefaultScaleOctaves,
	}
}

// Trajectory describes recent viewport motion, per step.
type Trajectory struct {
	PanX, PanY float64 // pixels per step
	Zoom       float64 // zoom factor per step; 0 or 1 means none
	Steps      int     // how many steps ahead to predict
}

// Predict applies the trajectory to v.
func (t Trajectory) Predict(v mandel.Viewport) mandel.Viewport {
	if t.Steps <= 0 {
		return v
	}
	n := float64(t.Steps)
	v = v.Pan(t.PanX*n, t.PanY*n)
	if t.Zoom > 0 && t.Zoom != 1 {
		v = v.Zoom(math.Pow(t.Zoom, n), float64(v.Width)/2, float64(v.Height)/2)
	}
	return v
}

// regionKey identifies a lattice tile independent of its tier.
type regionKey struct {
	scale  uint64
	tx, ty int64
}

func regionOf(k mandel.TileKey) regionKey {
	return regionKey{scale: k.Scale, tx: k.TX, ty: k.TY}
}

type entry struct {
	tile *mandel.Tile
	node *lruNode
}

// Cache is an LRU tile cache.
type Cache struct {
	cfg Config

	mu      sync.Mutex
	entries map[mandel.TileKey]*entry
	regions map[regionKey]map[int]*entry // level -> entry
	lru     lruList
	bytes   int64

	hits, misses, evictions, stale uint64
}

// New creates a cache with the given budgets.
func New(cfg Config) *Cache {
	if cfg.Margin < 0 {
		cfg.Margin = 0
	}
	if cfg.ScaleOctaves <= 0 {
		cfg.ScaleOctaves = DefaultScaleOctaves
	}
	return &Cache{
		cfg:     cfg,
		entries: make(map[mandel.TileKey]*entry),
		regions: make(map[regionKey]map[int]*entry),
	}
}

// Get returns the tile for key, applying the cross-tier policy.
// A hit refreshes the entry's recency.
func (c *Cache) Get(key mandel.TileKey) (*mandel.Tile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		e = c.promoted(key)
	}
	if e == nil {
		c.misses++
		return nil, false
	}
	c.lru.MoveToFront(e.node)
	c.hits++
	return e.tile, true
}

// promoted finds the lowest higher-level entry able to serve key.
func (c *Cache) promoted(key mandel.TileKey) *entry {
	var best *entry
	for level, e := range c.regions[regionOf(key)] {
		if level <= key.Level || e.tile.Key.MaxIterations < key.MaxIterations {
			continue
		}
		if best == nil || level < best.tile.Key.Level {
			best = e
		}
	}
	return best
}

// Put commits t and returns the tile now held for its key. When an entry for
// the key already exists it is kept and returned, so concurrent commits of
// the same key converge on one tile.
func (c *Cache) Put(t *mandel.Tile) *mandel.Tile {
	committed, _ := c.PutIf(t, nil)
	return committed
}

// PutIf is Put guarded by valid, which is evaluated under the cache lock
// right before insertion. When valid reports false nothing is written and
// PutIf returns (nil, false). An existing entry for the key is returned
// with true without consulting valid.
func (c *Cache) PutIf(t *mandel.Tile, valid func() bool) (*mandel.Tile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[t.Key]; ok {
		c.lru.MoveToFront(e.node)
		return e.tile, true
	}
	if valid != nil && !valid() {
		return nil, false
	}

	e := &entry{tile: t, node: c.lru.PushFront(t.Key)}
	c.entries[t.Key] = e
	rk := regionOf(t.Key)
	levels := c.regions[rk]
	if levels == nil {
		levels = make(map[int]*entry, 1)
		c.regions[rk] = levels
	}
	levels[t.Key.Level] = e
	c.bytes += t.Bytes()

	c.evictOverBudget()
	return t, true
}

func (c *Cache) overBudget() bool {
	return (c.cfg.MaxTiles > 0 && c.lru.Len() > c.cfg.MaxTiles) ||
		(c.cfg.MaxBytes > 0 && c.bytes > c.cfg.MaxBytes)
}

// evictOverBudget drops least recently used entries, always keeping the newest one.
func (c *Cache) evictOverBudget() {
	for c.overBudget() && c.lru.Len() > 1 {
		key, ok := c.lru.Oldest()
		if !ok {
			return
		}
		c.remove(key)
		c.evictions++
	}
}

func (c *Cache) remove(key mandel.TileKey) {
	e, ok := c.entries[key]
	if !ok {
		return
	}
	c.lru.Remove(e.node)
	delete(c.entries, key)
	rk := regionOf(key)
	if levels := c.regions[rk]; levels != nil {
		delete(levels, key.Level)
		if len(levels) == 0 {
			delete(c.regions, rk)
		}
	}
	c.bytes -= e.tile.Bytes()
}

// InvalidateStale removes tiles that neither the current viewport nor the one
// predicted from the trajectory is likely to need: tiles outside both inflated
// regions, or more than ScaleOctaves away from both scales. It returns the
// number of tiles removed.
func (c *Cache) InvalidateStale(current mandel.Viewport, traj Trajectory) int {
	next := traj.Predict(current)
	keepCur := current.Region().Inflate(c.cfg.Margin)
	keepNext := next.Region().Inflate(c.cfg.Margin)

	c.mu.Lock()
	defer c.mu.Unlock()

	var stale []mandel.TileKey
	for key, e := range c.entries {
		scale := math.Float64frombits(key.Scale)
		near := octaves(scale, current.Scale) <= c.cfg.ScaleOctaves ||
			octaves(scale, next.Scale) <= c.cfg.ScaleOctaves
		r := e.tile.Region()
		if !near || !(r.Intersects(keepCur) || r.Intersects(keepNext)) {
			stale = append(stale, key)
		}
	}
	for _, key := range stale {
		c.remove(key)
	}
	c.stale += uint64(len(stale))
	if len(stale) > 0 {
		mandel.Logger().Debug("tilecache: invalidated stale tiles",
			"count", len(stale), "remaining", len(c.entries))
	}
	return len(stale)
}

func octaves(a, b float64) float64 {
	return math.Abs(math.Log2(a / b))
}

// Len returns the number of cached tiles.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Bytes returns the escape-data bytes held.
func (c *Cache) Bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// Clear removes every tile. Statistics are kept.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[mandel.TileKey]*entry)
	c.regions = make(map[regionKey]map[int]*entry)
	c.lru.Clear()
	c.bytes = 0
}
