package tilecache

import (
	"math"
	"sync"
	"testing"

	mandel "github.com/marben/mandelzoom"
)

const testScale = 1.0 / 64

func testTile(tx, ty int64, level, maxIter int) *mandel.Tile {
	return &mandel.Tile{
		Key: mandel.TileKey{
			Scale:         math.Float64bits(testScale),
			TX:            tx,
			TY:            ty,
			Level:         level,
			MaxIterations: maxIter,
		},
		Tier:    mandel.Tier{Level: level, MaxIterations: maxIter, Stride: 1},
		Size:    4,
		Samples: 4,
		Pixels:  make([]mandel.EscapePixel, 16),
	}
}

func TestCacheGetPut(t *testing.T) {
	c := New(DefaultConfig())
	tile := testTile(0, 0, 0, 64)

	if _, ok := c.Get(tile.Key); ok {
		t.Fatal("Get on empty cache hit")
	}
	if got := c.Put(tile); got != tile {
		t.Errorf("Put returned %p, want %p", got, tile)
	}
	got, ok := c.Get(tile.Key)
	if !ok || got != tile {
		t.Errorf("Get = %p, %v; want %p, true", got, ok, tile)
	}
	if c.Len() != 1 || c.Bytes() != tile.Bytes() {
		t.Errorf("Len = %d Bytes = %d, want 1 and %d", c.Len(), c.Bytes(), tile.Bytes())
	}
}

func TestCachePutKeepsFirst(t *testing.T) {
	c := New(DefaultConfig())
	first := testTile(1, 1, 0, 64)
	second := testTile(1, 1, 0, 64)

	c.Put(first)
	if got := c.Put(second); got != first {
		t.Error("second Put replaced the committed tile")
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestCachePutIf(t *testing.T) {
	c := New(DefaultConfig())
	tile := testTile(2, 2, 0, 64)

	if got, ok := c.PutIf(tile, func() bool { return false }); ok || got != nil {
		t.Errorf("PutIf(invalid) = %v, %v; want nil, false", got, ok)
	}
	if c.Len() != 0 {
		t.Fatalf("rejected tile was stored")
	}
	if got, ok := c.PutIf(tile, func() bool { return true }); !ok || got != tile {
		t.Errorf("PutIf(valid) = %v, %v; want the tile, true", got, ok)
	}
}

func TestCachePromotion(t *testing.T) {
	c := New(DefaultConfig())
	high := testTile(0, 0, 2, 512)
	c.Put(high)

	// Level 0 and 1 lookups are served by the more accurate level 2 entry.
	for _, level := range []int{0, 1} {
		key := high.Key
		key.Level, key.MaxIterations = level, 64*(level+1)
		got, ok := c.Get(key)
		if !ok || got != high {
			t.Errorf("level %d lookup = %v, %v; want the level 2 tile", level, got, ok)
		}
	}

	// Never served by a lower level.
	key := high.Key
	key.Level, key.MaxIterations = 3, 2048
	if _, ok := c.Get(key); ok {
		t.Error("level 3 lookup served by level 2")
	}

	// Nor by a higher level with a smaller iteration bound.
	key.Level, key.MaxIterations = 1, 1024
	if _, ok := c.Get(key); ok {
		t.Error("lookup served by a tile with fewer iterations")
	}

	// The lowest admissible level wins.
	mid := testTile(0, 0, 1, 256)
	c.Put(mid)
	key.Level, key.MaxIterations = 0, 64
	if got, _ := c.Get(key); got != mid {
		t.Errorf("promotion picked level %d, want 1", got.Key.Level)
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(Config{MaxTiles: 3})
	a, b, d := testTile(0, 0, 0, 64), testTile(1, 0, 0, 64), testTile(2, 0, 0, 64)
	c.Put(a)
	c.Put(b)
	c.Put(d)

	c.Get(a.Key) // a becomes most recent, b is oldest
	c.Put(testTile(3, 0, 0, 64))

	if _, ok := c.Get(b.Key); ok {
		t.Error("least recently used tile survived eviction")
	}
	if _, ok := c.Get(a.Key); !ok {
		t.Error("recently used tile was evicted")
	}
	if st := c.Stats(); st.Evictions != 1 || st.Len != 3 {
		t.Errorf("Evictions = %d Len = %d, want 1 and 3", st.Evictions, st.Len)
	}
}

func TestCacheByteBudget(t *testing.T) {
	per := testTile(0, 0, 0, 64).Bytes()
	c := New(Config{MaxBytes: 2*per + per/2})
	for i := range 5 {
		c.Put(testTile(int64(i), 0, 0, 64))
	}
	if c.Bytes() > 2*per+per/2 {
		t.Errorf("Bytes = %d, over budget %d", c.Bytes(), 2*per+per/2)
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestCacheKeepsNewestOverBudget(t *testing.T) {
	c := New(Config{MaxBytes: 1})
	tile := testTile(0, 0, 0, 64)
	c.Put(tile)
	if _, ok := c.Get(tile.Key); !ok {
		t.Error("newest tile evicted by its own insertion")
	}
}

func TestInvalidateStale(t *testing.T) {
	c := New(Config{Margin: 0, ScaleOctaves: 1})

	// 64×64 pixel viewport at testScale covering lattice tiles 0..15 of size 4.
	v := mandel.Viewport{Center: complex(0.5, -0.5), Scale: testScale, Width: 64, Height: 64}
	near := testTile(3, 3, 0, 64)
	far := testTile(100, 100, 0, 64)
	deep := testTile(3, 3, 0, 64)
	deep.Key.Scale = math.Float64bits(testScale / 16)
	for _, tile := range []*mandel.Tile{near, far, deep} {
		c.Put(tile)
	}

	if n := c.InvalidateStale(v, Trajectory{}); n != 2 {
		t.Errorf("InvalidateStale removed %d tiles, want 2", n)
	}
	if _, ok := c.Get(near.Key); !ok {
		t.Error("visible tile was invalidated")
	}
	if st := c.Stats(); st.Stale != 2 {
		t.Errorf("Stale = %d, want 2", st.Stale)
	}
}

func TestInvalidateStaleKeepsPredictedRegion(t *testing.T) {
	c := New(Config{Margin: 0, ScaleOctaves: 1})
	v := mandel.Viewport{Center: complex(0.5, -0.5), Scale: testScale, Width: 64, Height: 64}

	// One viewport to the right of v.
	ahead := testTile(20, 3, 0, 64)
	c.Put(ahead)

	traj := Trajectory{PanX: 16, Steps: 4}
	if n := c.InvalidateStale(v, traj); n != 0 {
		t.Errorf("InvalidateStale removed %d tiles on the predicted path", n)
	}
	if n := c.InvalidateStale(v, Trajectory{}); n != 1 {
		t.Errorf("InvalidateStale without motion removed %d tiles, want 1", n)
	}
}

func TestTrajectoryPredict(t *testing.T) {
	v := mandel.Viewport{Center: 0, Scale: 1, Width: 10, Height: 10}
	p := Trajectory{PanX: 1, PanY: -2, Zoom: 2, Steps: 3}.Predict(v)
	if p.Center != complex(3, 6) {
		t.Errorf("predicted center = %v, want (3+6i)", p.Center)
	}
	if p.Scale != 1.0/8 {
		t.Errorf("predicted scale = %g, want 0.125", p.Scale)
	}
	if got := (Trajectory{PanX: 5}).Predict(v); got != v {
		t.Errorf("zero-step prediction = %v, want unchanged", got)
	}
}

func TestCacheClearAndStats(t *testing.T) {
	c := New(DefaultConfig())
	tile := testTile(0, 0, 0, 64)
	c.Put(tile)
	c.Get(tile.Key)
	c.Get(testTile(9, 9, 0, 64).Key)

	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 || st.HitRate != 0.5 {
		t.Errorf("Stats = %+v, want 1 hit, 1 miss", st)
	}

	c.Clear()
	if c.Len() != 0 || c.Bytes() != 0 {
		t.Errorf("after Clear: Len = %d Bytes = %d", c.Len(), c.Bytes())
	}
	if _, ok := c.Get(tile.Key); ok {
		t.Error("Get hit after Clear")
	}

	c.ResetStats()
	if st := c.Stats(); st.Hits != 0 || st.Misses != 0 {
		t.Errorf("after ResetStats: %+v", st)
	}
}

func TestCacheConcurrent(t *testing.T) {
	c := New(Config{MaxTiles: 64})
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 500 {
				tile := testTile(int64(i%100), int64(g), i%3, 64*(i%3+1))
				got := c.Put(tile)
				if got.Key != tile.Key {
					t.Errorf("Put returned key %+v, want %+v", got.Key, tile.Key)
					return
				}
				c.Get(tile.Key)
				if i%50 == 0 {
					c.InvalidateStale(mandel.Viewport{Scale: testScale, Width: 64, Height: 64}, Trajectory{})
				}
			}
		}()
	}
	wg.Wait()
	if c.Len() > 64 {
		t.Errorf("Len = %d, over budget 64", c.Len())
	}
}
