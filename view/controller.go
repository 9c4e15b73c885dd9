// Package view drives progressive rendering for a passive host.
//
// The host reports input through Controller methods and receives frames on
// a mandel.FrameSink. Every viewport change starts a new generation: the
// controller renders the cheapest tier first and, once the viewport has been
// still long enough, refines it one tier at a time until the ceiling frame
// is delivered with Final set and GenerationComplete is signalled.
package view

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mandel "github.com/marben/mandelzoom"
	"github.com/marben/mandelzoom/lod"
	"github.com/marben/mandelzoom/render"
	"github.com/marben/mandelzoom/tilecache"
)

// DefaultTrajectorySteps is how many input steps ahead the cache keeps tiles for.
const DefaultTrajectorySteps = 8

type options struct {
	trajectorySteps int
	palette         mandel.PaletteConfig
	policy          []lod.Option
}

// Option configures a Controller.
type Option func(*options)

// WithTrajectorySteps sets how far ahead motion is extrapolated when
// invalidating stale tiles.
func WithTrajectorySteps(n int) Option {
	return func(o *options) { o.trajectorySteps = n }
}

// WithPalette sets the initial palette.
func WithPalette(cfg mandel.PaletteConfig) Option {
	return func(o *options) { o.palette = cfg }
}

// WithPolicy passes options to the level-of-detail policy.
func WithPolicy(opts ...lod.Option) Option {
	return func(o *options) { o.policy = append(o.policy, opts...) }
}

type eventKind int

const (
	evPan eventKind = iota
	evZoom
	evViewport
	evResize
	evBegin
	evEnd
	evPalette
	evFinal
)

type event struct {
	kind           eventKind
	dx, dy, factor float64
	v              mandel.Viewport
	width, height  int
	palette        mandel.PaletteConfig
}

type result struct {
	gen   uint64
	frame *mandel.Frame
	err   error
}

// Controller serializes host input and runs the refinement ladder.
type Controller struct {
	sched  *render.Scheduler
	policy *lod.Policy
	sink   mandel.FrameSink
	steps  int

	events  chan event
	results chan result
	wake    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	timer   *time.Timer
	closeMu sync.Once

	mu    sync.Mutex // guards shown
	shown mandel.Viewport

	// owned by loop
	v          mandel.Viewport
	palette    mandel.PaletteConfig
	gen        uint64
	active     bool
	final      bool
	complete   bool
	lastChange time.Time
	traj       tilecache.Trajectory
	running    bool
	rendered   int // highest level delivered for gen, -1 for none
}

// New starts a controller showing v. Frames go to sink.
func New(sched *render.Scheduler, sink mandel.FrameSink, v mandel.Viewport, opts ...Option) (*Controller, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	o := options{
		trajectorySteps: DefaultTrajectorySteps,
		palette:         mandel.Hue(210),
	}
	for _, opt := range opts {
		opt(&o)
	}
	policy, err := lod.New(o.policy...)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		sched:    sched,
		policy:   policy,
		sink:     sink,
		steps:    max(o.trajectorySteps, 0),
		events:   make(chan event, 64),
		results:  make(chan result, 1),
		wake:     make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		palette:  o.palette,
		rendered: -1,
	}
	c.timer = time.AfterFunc(time.Hour, c.signalWake)
	c.timer.Stop()

	go c.loop()
	c.send(event{kind: evViewport, v: v})
	return c, nil
}

// Close stops the controller and cancels outstanding renders.
func (c *Controller) Close() {
	c.closeMu.Do(func() {
		c.cancel()
		<-c.done
		c.timer.Stop()
	})
}

// Viewport returns the most recently accepted viewport.
func (c *Controller) Viewport() mandel.Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shown
}

// Policy returns the level-of-detail policy.
func (c *Controller) Policy() *lod.Policy { return c.policy }

// Pan moves the view by (dx, dy) pixels.
func (c *Controller) Pan(dx, dy float64) {
	c.send(event{kind: evPan, dx: dx, dy: dy})
}

// Zoom magnifies by factor around pixel (x, y).
func (c *Controller) Zoom(factor, x, y float64) {
	c.send(event{kind: evZoom, factor: factor, dx: x, dy: y})
}

// SetViewport replaces the viewport.
func (c *Controller) SetViewport(v mandel.Viewport) error {
	if err := v.Validate(); err != nil {
		return err
	}
	c.send(event{kind: evViewport, v: v})
	return nil
}

// Resize changes the frame size keeping center and scale.
func (c *Controller) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("resize to %dx%d: %w", width, height, mandel.ErrInvalidViewport)
	}
	c.send(event{kind: evResize, width: width, height: height})
	return nil
}

// BeginInteraction marks the start of a gesture; only the cheapest tier is
// rendered until EndInteraction.
func (c *Controller) BeginInteraction() { c.send(event{kind: evBegin}) }

// EndInteraction marks the end of a gesture.
func (c *Controller) EndInteraction() { c.send(event{kind: evEnd}) }

// SetPalette recolors the current view.
func (c *Controller) SetPalette(cfg mandel.PaletteConfig) {
	c.send(event{kind: evPalette, palette: cfg})
}

// RequestFinal asks for the ceiling tier of the current viewport without
// waiting for quiescence.
func (c *Controller) RequestFinal() { c.send(event{kind: evFinal}) }

func (c *Controller) send(ev event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Controller) signalWake() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Controller) loop() {
	defer close(c.done)
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.events:
			c.handle(ev)
		case r := <-c.results:
			c.finish(r)
		case <-c.wake:
			c.advance()
		}
	}
}

func (c *Controller) handle(ev event) {
	switch ev.kind {
	case evPan:
		c.change(c.v.Pan(ev.dx, ev.dy), tilecache.Trajectory{PanX: ev.dx, PanY: ev.dy, Steps: c.steps})
	case evZoom:
		c.change(c.v.Zoom(ev.factor, ev.dx, ev.dy), tilecache.Trajectory{Zoom: ev.factor, Steps: c.steps})
	case evViewport:
		c.change(ev.v, tilecache.Trajectory{})
	case evResize:
		c.change(c.v.Resize(ev.width, ev.height), tilecache.Trajectory{})
	case evBegin:
		c.active = true
	case evEnd:
		c.active = false
		c.lastChange = c.policy.Now()
		c.advance()
	case evPalette:
		c.recolor(ev.palette)
	case evFinal:
		c.final = true
		c.advance()
	}
}

// change starts a new generation for v.
func (c *Controller) change(v mandel.Viewport, traj tilecache.Trajectory) {
	if v == c.v {
		return
	}
	if err := v.Validate(); err != nil {
		mandel.Logger().Warn("view: rejected viewport", "viewport", v.String(), "err", err)
		return
	}
	c.v = v
	c.mu.Lock()
	c.shown = v
	c.mu.Unlock()

	c.traj = traj
	c.final = false
	c.lastChange = c.policy.Now()
	c.nextGeneration()
	c.sched.Cache().InvalidateStale(v, traj)
	c.advance()
}

// recolor repaints the current viewport at the tier already reached.
func (c *Controller) recolor(cfg mandel.PaletteConfig) {
	c.palette = cfg
	if c.v == (mandel.Viewport{}) {
		return
	}
	c.nextGeneration()
	if t, ok := c.policy.Committed(c.v); ok {
		c.start(t)
		return
	}
	c.advance()
}

func (c *Controller) nextGeneration() {
	c.gen = c.sched.NextGeneration()
	c.running = false
	c.complete = false
	c.rendered = -1
	c.timer.Stop()
}

// advance starts the next rung of the ladder if one is due, or arms the
// quiescence timer.
func (c *Controller) advance() {
	if c.running || c.complete || c.v == (mandel.Viewport{}) {
		return
	}
	tier := c.policy.SelectTier(c.v, lod.InteractionState{
		Active:     c.active,
		LastChange: c.lastChange,
		Final:      c.final,
	})
	if tier.Level > c.rendered {
		c.start(tier)
		return
	}
	if !c.active {
		d := c.policy.Quiescence() - c.policy.Now().Sub(c.lastChange)
		c.timer.Reset(max(d, 0))
	}
}

func (c *Controller) start(tier mandel.Tier) {
	req := mandel.RenderRequest{
		Viewport:   c.v,
		Tier:       tier,
		Generation: c.gen,
		Palette:    c.palette,
	}
	job := c.sched.Render(c.ctx, req)
	c.running = true
	go func() {
		f, err := job.Wait()
		select {
		case c.results <- result{gen: req.Generation, frame: f, err: err}:
		case <-c.ctx.Done():
		}
	}()
}

func (c *Controller) finish(r result) {
	if r.gen != c.gen {
		return
	}
	c.running = false

	if r.err != nil {
		switch {
		case errors.Is(r.err, mandel.ErrCancelled), errors.Is(r.err, context.Canceled):
			mandel.Logger().Debug("view: render dropped", "generation", r.gen, "err", r.err)
		default:
			mandel.Logger().Warn("view: render failed", "generation", r.gen, "err", r.err)
		}
		return
	}

	f := r.frame
	f.Final = f.Tier.Level >= c.policy.Tiers().Ceiling(c.v).Level
	c.rendered = max(c.rendered, f.Tier.Level)
	c.sink.DeliverFrame(f)
	mandel.Logger().Info("view: frame delivered",
		"generation", f.Generation, "tier", f.Tier.Level, "final", f.Final)

	if f.Final {
		c.complete = true
		c.sink.GenerationComplete(r.gen)
		return
	}
	c.advance()
}
