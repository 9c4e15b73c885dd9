package render

import (
	"bytes"
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	mandel "github.com/marben/mandelzoom"
	"github.com/marben/mandelzoom/tilecache"
)

var (
	fineTier   = mandel.Tier{Level: 2, MaxIterations: 100, Stride: 1}
	coarseTier = mandel.Tier{Level: 0, MaxIterations: 50, Stride: 4}
)

func testViewport() mandel.Viewport {
	return mandel.Viewport{Center: complex(-0.5, 0), Scale: 3.0 / 100, Width: 100, Height: 70}
}

func newTestScheduler(t *testing.T, opts ...Option) *Scheduler {
	t.Helper()
	s := NewScheduler(append([]Option{WithWorkers(3), WithTileSize(16)}, opts...)...)
	t.Cleanup(s.Close)
	return s
}

func wait(t *testing.T, job *Job) (*mandel.Frame, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	f, err := job.WaitContext(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("job did not resolve")
	}
	return f, err
}

func countingEvaluator(n *atomic.Int64) EvalFunc {
	return func(c complex128, maxIterations int) mandel.EscapePixel {
		n.Add(1)
		return mandel.Evaluate(c, maxIterations)
	}
}

func tileKeys(s *Scheduler, v mandel.Viewport, tier mandel.Tier) []mandel.TileKey {
	v = v.Snap()
	tier = tier.At(v.Scale)
	var keys []mandel.TileKey
	for _, sl := range splitLattice(v, s.TileSize()) {
		keys = append(keys, mandel.TileKey{
			Scale:         math.Float64bits(v.Scale),
			TX:            sl.tx,
			TY:            sl.ty,
			Level:         tier.Level,
			MaxIterations: tier.MaxIterations,
		})
	}
	return keys
}

func TestRenderMatchesDirectEvaluation(t *testing.T) {
	s := newTestScheduler(t)
	req := mandel.RenderRequest{Viewport: testViewport(), Tier: fineTier, Generation: s.NextGeneration(), Palette: mandel.Hue(210)}

	f, err := wait(t, s.Render(context.Background(), req))
	if err != nil {
		t.Fatal(err)
	}
	if b := f.Image.Bounds(); b.Dx() != 100 || b.Dy() != 70 {
		t.Fatalf("frame bounds = %v, want 100x70", b)
	}
	if f.Generation != req.Generation || f.Tier.Level != fineTier.Level {
		t.Errorf("frame generation %d tier %d, want %d and %d", f.Generation, f.Tier.Level, req.Generation, fineTier.Level)
	}

	v := req.Viewport.Snap()
	k, j := v.Lattice()
	p := mandel.NewPalette(req.Palette)
	for y := 0; y < v.Height; y += 7 {
		for x := 0; x < v.Width; x += 9 {
			c := complex(float64(k+int64(x))*v.Scale, -float64(j+int64(y))*v.Scale)
			want := p.ColorFor(mandel.Evaluate(c, fineTier.MaxIterations), fineTier.MaxIterations)
			if got := f.Image.RGBAAt(x, y); got != want {
				t.Fatalf("pixel (%d, %d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestRenderIsIdempotent(t *testing.T) {
	var evals atomic.Int64
	s := newTestScheduler(t, WithEvaluator(countingEvaluator(&evals)))
	req := mandel.RenderRequest{Viewport: testViewport(), Tier: fineTier, Generation: s.NextGeneration(), Palette: mandel.Hue(30)}

	first, err := wait(t, s.Render(context.Background(), req))
	if err != nil {
		t.Fatal(err)
	}
	before := evals.Load()
	if before == 0 {
		t.Fatal("first render did not evaluate")
	}
	tiles := make(map[mandel.TileKey]*mandel.Tile)
	for _, key := range tileKeys(s, req.Viewport, req.Tier) {
		tile, ok := s.Cache().Get(key)
		if !ok {
			t.Fatalf("tile %+v missing after render", key)
		}
		tiles[key] = tile
	}

	job := s.Render(context.Background(), req)
	second, err := wait(t, job)
	if err != nil {
		t.Fatal(err)
	}
	if got := evals.Load(); got != before {
		t.Errorf("second render evaluated %d points, want 0", got-before)
	}
	if st := job.Stats(); st.CacheHits != st.Tiles || st.Computed != 0 {
		t.Errorf("second render stats = %+v, want all cache hits", st)
	}
	if !bytes.Equal(first.Image.Pix, second.Image.Pix) {
		t.Error("second frame differs from the first")
	}
	for key, tile := range tiles {
		again, _ := s.Cache().Get(key)
		if again != tile {
			t.Errorf("tile %+v replaced between renders", key)
		}
	}
}

func TestRenderCancellation(t *testing.T) {
	release := make(chan struct{})
	var started atomic.Bool
	gate := func(c complex128, maxIterations int) mandel.EscapePixel {
		started.Store(true)
		<-release
		return mandel.Evaluate(c, maxIterations)
	}
	s := newTestScheduler(t, WithEvaluator(gate))
	v := testViewport()

	old := s.NextGeneration()
	oldJob := s.Render(context.Background(), mandel.RenderRequest{Viewport: v, Tier: fineTier, Generation: old})
	for !started.Load() {
		time.Sleep(time.Millisecond)
	}

	next := s.NextGeneration()
	close(release)

	if _, err := wait(t, oldJob); !errors.Is(err, mandel.ErrCancelled) {
		t.Fatalf("superseded job error = %v, want ErrCancelled", err)
	}
	var ce *mandel.CancelledError
	if _, err := oldJob.Wait(); !errors.As(err, &ce) || ce.Generation != old {
		t.Errorf("CancelledError = %+v, want generation %d", ce, old)
	}

	f, err := wait(t, s.Render(context.Background(), mandel.RenderRequest{Viewport: v, Tier: fineTier, Generation: next}))
	if err != nil {
		t.Fatal(err)
	}
	if f.Generation != next {
		t.Errorf("frame generation = %d, want %d", f.Generation, next)
	}
	for _, key := range tileKeys(s, v, fineTier) {
		tile, ok := s.Cache().Get(key)
		if !ok {
			t.Fatalf("tile %+v missing", key)
		}
		if tile.Generation == old {
			t.Errorf("tile %+v from superseded generation %d in cache", key, old)
		}
	}
}

func TestRenderStaleGeneration(t *testing.T) {
	s := newTestScheduler(t)
	stale := s.NextGeneration()
	s.NextGeneration()

	_, err := wait(t, s.Render(context.Background(), mandel.RenderRequest{Viewport: testViewport(), Tier: fineTier, Generation: stale}))
	if !errors.Is(err, mandel.ErrCancelled) {
		t.Errorf("stale render error = %v, want ErrCancelled", err)
	}
	if s.Cache().Len() != 0 {
		t.Errorf("stale render cached %d tiles", s.Cache().Len())
	}
}

func TestRenderAdvancesGeneration(t *testing.T) {
	s := newTestScheduler(t)
	if _, err := wait(t, s.Render(context.Background(), mandel.RenderRequest{Viewport: testViewport(), Tier: coarseTier, Generation: 7})); err != nil {
		t.Fatal(err)
	}
	if s.Current() != 7 {
		t.Errorf("Current() = %d, want 7", s.Current())
	}
}

func TestRenderRejectsBadRequests(t *testing.T) {
	s := newTestScheduler(t)

	_, err := wait(t, s.Render(context.Background(), mandel.RenderRequest{Viewport: mandel.Viewport{Width: 10, Height: 10}, Tier: fineTier}))
	if !errors.Is(err, mandel.ErrInvalidViewport) {
		t.Errorf("invalid viewport error = %v, want ErrInvalidViewport", err)
	}

	odd := mandel.Tier{MaxIterations: 10, Stride: 3}
	_, err = wait(t, s.Render(context.Background(), mandel.RenderRequest{Viewport: testViewport(), Tier: odd}))
	if !errors.Is(err, mandel.ErrInvalidTiers) {
		t.Errorf("stride 3 error = %v, want ErrInvalidTiers", err)
	}
}

func TestRenderCoarseStride(t *testing.T) {
	s := newTestScheduler(t)
	req := mandel.RenderRequest{Viewport: testViewport(), Tier: coarseTier, Palette: mandel.Hue(120)}
	f, err := wait(t, s.Render(context.Background(), req))
	if err != nil {
		t.Fatal(err)
	}

	// Every pixel shares the color of the top-left pixel of its lattice block.
	v := req.Viewport.Snap()
	k, j := v.Lattice()
	for y := 0; y < v.Height; y++ {
		for x := 0; x < v.Width; x++ {
			bx := int(floorDiv(k+int64(x), 4)*4 - k)
			by := int(floorDiv(j+int64(y), 4)*4 - j)
			if bx < 0 || by < 0 {
				continue
			}
			if got, want := f.Image.RGBAAt(x, y), f.Image.RGBAAt(bx, by); got != want {
				t.Fatalf("pixel (%d, %d) = %v, block origin (%d, %d) = %v", x, y, got, bx, by, want)
			}
		}
	}
}

func TestRenderDeterministicAcrossWorkerCounts(t *testing.T) {
	req := mandel.RenderRequest{Viewport: testViewport(), Tier: fineTier, Palette: mandel.Monochrome()}
	var frames [][]byte
	for _, workers := range []int{1, 4} {
		s := newTestScheduler(t, WithWorkers(workers))
		f, err := wait(t, s.Render(context.Background(), req))
		if err != nil {
			t.Fatal(err)
		}
		frames = append(frames, f.Image.Pix)
	}
	if !bytes.Equal(frames[0], frames[1]) {
		t.Error("frames differ between worker counts")
	}
}

func TestRenderSharedCachePromotion(t *testing.T) {
	cache := tilecache.New(tilecache.DefaultConfig())
	var evals atomic.Int64
	s := newTestScheduler(t, WithCache(cache), WithEvaluator(countingEvaluator(&evals)))
	v := testViewport()

	if _, err := wait(t, s.Render(context.Background(), mandel.RenderRequest{Viewport: v, Tier: fineTier})); err != nil {
		t.Fatal(err)
	}
	before := evals.Load()

	lower := mandel.Tier{Level: 1, MaxIterations: 80, Stride: 2}
	job := s.Render(context.Background(), mandel.RenderRequest{Viewport: v, Tier: lower})
	f, err := wait(t, job)
	if err != nil {
		t.Fatal(err)
	}
	if evals.Load() != before {
		t.Error("lower tier re-evaluated tiles held at a higher tier")
	}
	if f.Tier.Level != lower.Level {
		t.Errorf("frame tier = %d, want %d", f.Tier.Level, lower.Level)
	}
}

func TestRenderContextCancelled(t *testing.T) {
	s := newTestScheduler(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := wait(t, s.Render(ctx, mandel.RenderRequest{Viewport: testViewport(), Tier: fineTier}))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestRenderAfterClose(t *testing.T) {
	s := NewScheduler(WithWorkers(1))
	s.Close()

	_, err := wait(t, s.Render(context.Background(), mandel.RenderRequest{Viewport: testViewport(), Tier: fineTier}))
	if !errors.Is(err, ErrClosed) {
		t.Errorf("error = %v, want ErrClosed", err)
	}
}

func TestJobProgress(t *testing.T) {
	s := newTestScheduler(t)
	job := s.Render(context.Background(), mandel.RenderRequest{Viewport: testViewport(), Tier: coarseTier})
	if _, err := wait(t, job); err != nil {
		t.Fatal(err)
	}
	if p := job.Progress(); p != 1 {
		t.Errorf("Progress() = %g, want 1", p)
	}
}
