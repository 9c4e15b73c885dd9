// Package render turns render requests into frames.
//
// A Scheduler snaps the viewport onto the global sampling lattice, splits it
// into square tiles, serves each tile from the tile cache or evaluates it on
// a worker pool, colors it and assembles the frame in row-major tile order.
//
// Cancellation is driven only by the generation counter: a worker that sees
// a newer generation before committing drops its result without touching
// the cache or the frame.
package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sync"
	"sync/atomic"

	"golang.org/x/image/draw"

	mandel "github.com/marben/mandelzoom"
	"github.com/marben/mandelzoom/tilecache"
)

// DefaultTileSize is the side of a lattice tile in pixels.
// It must be a multiple of every tier stride.
const DefaultTileSize = 64

// ErrClosed is reported by jobs submitted after Close.
var ErrClosed = errors.New("render: scheduler closed")

// EvalFunc computes the escape record of one point.
type EvalFunc func(c complex128, maxIterations int) mandel.EscapePixel

type options struct {
	workers  int
	tileSize int
	cache    *tilecache.Cache
	eval     EvalFunc
}

// Option configures a Scheduler.
type Option func(*options)

// WithWorkers sets the worker count; 0 means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithTileSize sets the lattice tile side in pixels.
func WithTileSize(n int) Option {
	return func(o *options) { o.tileSize = n }
}

// WithCache shares a tile cache between schedulers.
func WithCache(c *tilecache.Cache) Option {
	return func(o *options) { o.cache = c }
}

// WithEvaluator replaces mandel.Evaluate, e.g. to instrument it.
func WithEvaluator(fn EvalFunc) Option {
	return func(o *options) { o.eval = fn }
}

// Scheduler renders frames on a worker pool.
type Scheduler struct {
	pool     *WorkerPool
	cache    *tilecache.Cache
	tileSize int
	eval     EvalFunc

	current atomic.Uint64
}

// NewScheduler starts a scheduler and its worker pool.
func NewScheduler(opts ...Option) *Scheduler {
	o := options{tileSize: DefaultTileSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tileSize <= 0 {
		o.tileSize = DefaultTileSize
	}
	if o.cache == nil {
		o.cache = tilecache.New(tilecache.DefaultConfig())
	}
	if o.eval == nil {
		o.eval = mandel.Evaluate
	}
	return &Scheduler{
		pool:     NewWorkerPool(o.workers),
		cache:    o.cache,
		tileSize: o.tileSize,
		eval:     o.eval,
	}
}

// Close stops the worker pool. Pending jobs still resolve.
func (s *Scheduler) Close() {
	s.pool.Close()
}

// Cache returns the tile cache.
func (s *Scheduler) Cache() *tilecache.Cache { return s.cache }

// TileSize returns the lattice tile side.
func (s *Scheduler) TileSize() int { return s.tileSize }

// Workers returns the worker count.
func (s *Scheduler) Workers() int { return s.pool.Workers() }

// Current returns the newest generation seen.
func (s *Scheduler) Current() uint64 { return s.current.Load() }

// NextGeneration supersedes all outstanding work and returns the new generation.
func (s *Scheduler) NextGeneration() uint64 {
	return s.current.Add(1)
}

// observe raises the current generation to gen.
func (s *Scheduler) observe(gen uint64) {
	for {
		cur := s.current.Load()
		if gen <= cur || s.current.CompareAndSwap(cur, gen) {
			return
		}
	}
}

func (s *Scheduler) superseded(gen uint64) error {
	if cur := s.current.Load(); cur > gen {
		return &mandel.CancelledError{Generation: gen, Current: cur}
	}
	return nil
}

// Render starts rendering req and returns its pending Job without blocking.
// Requests carrying a generation newer than Current advance it.
func (s *Scheduler) Render(ctx context.Context, req mandel.RenderRequest) *Job {
	job := newJob(req)

	if err := req.Viewport.Validate(); err != nil {
		job.resolve(nil, err)
		return job
	}
	if req.Tier.Stride <= 0 || s.tileSize%req.Tier.Stride != 0 {
		job.resolve(nil, fmt.Errorf("stride %d does not divide tile size %d: %w",
			req.Tier.Stride, s.tileSize, mandel.ErrInvalidTiers))
		return job
	}
	s.observe(req.Generation)
	if err := s.superseded(req.Generation); err != nil {
		job.resolve(nil, err)
		return job
	}

	v := req.Viewport.Snap()
	tier := req.Tier.At(v.Scale)
	palette := mandel.NewPalette(req.Palette)
	slots := splitLattice(v, s.tileSize)
	job.start(slots)

	mandel.Logger().Debug("render: start",
		"generation", req.Generation, "tier", tier.Level, "iterations", tier.MaxIterations,
		"tiles", len(slots), "viewport", v.String())

	// Submit blocks on full queues; Render must not.
	go func() {
		var wg sync.WaitGroup
		wg.Add(len(slots))
		for i, sl := range slots {
			submitted := s.pool.Submit(func() {
				defer wg.Done()
				s.renderTile(ctx, job, i, sl, v, tier, palette)
			})
			if !submitted {
				job.discard(ErrClosed)
				wg.Done()
			}
		}
		wg.Wait()
		job.resolve(s.assemble(ctx, job, v, tier))
	}()
	return job
}

// renderTile produces the colored part of one slot. It runs on a worker.
func (s *Scheduler) renderTile(ctx context.Context, job *Job, i int, sl slot, v mandel.Viewport, tier mandel.Tier, palette mandel.Palette) {
	gen := job.req.Generation
	if err := s.abandon(ctx, gen); err != nil {
		job.discard(err)
		return
	}

	key := mandel.TileKey{
		Scale:         math.Float64bits(v.Scale),
		TX:            sl.tx,
		TY:            sl.ty,
		Level:         tier.Level,
		MaxIterations: tier.MaxIterations,
	}
	tile, hit := s.cache.Get(key)
	if !hit {
		var err error
		tile, err = s.compute(ctx, key, tier, gen, v.Scale)
		if err != nil {
			job.discard(err)
			return
		}
		committed, ok := s.cache.PutIf(tile, func() bool { return s.superseded(gen) == nil })
		if !ok {
			job.discard(s.superseded(gen))
			return
		}
		tile = committed
	}

	part := colorTile(tile, sl, palette)
	if err := s.abandon(ctx, gen); err != nil {
		job.discard(err)
		return
	}
	job.tileFinished(i, sl, part, hit)
}

func (s *Scheduler) abandon(ctx context.Context, gen uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.superseded(gen)
}

// compute evaluates every Stride-th lattice point of a tile. It checks for
// supersession between rows and returns the error instead of a partial tile.
func (s *Scheduler) compute(ctx context.Context, key mandel.TileKey, tier mandel.Tier, gen uint64, scale float64) (*mandel.Tile, error) {
	stride := tier.Stride
	samples := s.tileSize / stride
	pixels := make([]mandel.EscapePixel, samples*samples)

	k0 := key.TX * int64(s.tileSize)
	j0 := key.TY * int64(s.tileSize)
	for sy := 0; sy < samples; sy++ {
		if err := s.abandon(ctx, gen); err != nil {
			return nil, err
		}
		im := -float64(j0+int64(sy*stride)) * scale
		row := pixels[sy*samples : (sy+1)*samples]
		for sx := range row {
			re := float64(k0+int64(sx*stride)) * scale
			row[sx] = s.eval(complex(re, im), tier.MaxIterations)
		}
	}

	return &mandel.Tile{
		Key:        key,
		Tier:       tier,
		Generation: gen,
		Size:       s.tileSize,
		Samples:    samples,
		Pixels:     pixels,
	}, nil
}

// colorTile colors tile and returns an image whose bounds equal sl.dst.
// Coarse tiles are scaled up with nearest-neighbour sampling so each record
// covers its Stride×Stride block.
func colorTile(tile *mandel.Tile, sl slot, palette mandel.Palette) *image.RGBA {
	small := image.NewRGBA(image.Rect(0, 0, tile.Samples, tile.Samples))
	palette.Paint(small, tile)

	full := small
	if tile.Samples != tile.Size {
		full = image.NewRGBA(image.Rect(0, 0, tile.Size, tile.Size))
		draw.NearestNeighbor.Scale(full, full.Bounds(), small, small.Bounds(), draw.Src, nil)
	}

	part := image.NewRGBA(sl.dst)
	draw.Draw(part, sl.dst, full, sl.src, draw.Src)
	return part
}

// assemble draws the finished parts into a frame in row-major tile order.
func (s *Scheduler) assemble(ctx context.Context, job *Job, v mandel.Viewport, tier mandel.Tier) (*mandel.Frame, error) {
	if err := job.cancelErr(); err != nil {
		return nil, err
	}
	if err := s.abandon(ctx, job.req.Generation); err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, v.Width, v.Height))
	for _, part := range job.parts {
		draw.Draw(img, part.Rect, part, part.Rect.Min, draw.Src)
	}

	st := job.Stats()
	mandel.Logger().Debug("render: frame assembled",
		"generation", job.req.Generation, "tier", tier.Level,
		"hits", st.CacheHits, "computed", st.Computed)

	return &mandel.Frame{
		Generation: job.req.Generation,
		Tier:       tier,
		Viewport:   v,
		Palette:    job.req.Palette,
		Image:      img,
	}, nil
}
