// cliclient renders a Mandelbrot view to a PNG file.
// By default it renders in-process through the full refinement ladder; with
// -server it asks a running mandel server for the final frame instead.

package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"log/slog"
	"os"
	"time"

	mandel "github.com/marben/mandelzoom"
	"github.com/marben/mandelzoom/lod"
	"github.com/marben/mandelzoom/render"
	"github.com/marben/mandelzoom/view"
)

type options struct {
	region  string
	re, im  float64
	scale   float64
	width   int
	height  int
	hue     float64
	out     string
	workers int
	server  string
	timeout time.Duration
}

// main is the entry point for the CLI client.
// It runs the client logic and logs any fatal errors.
func main() {
	log.Printf("Starting CLI client...")
	if err := run(); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
}

// run renders the requested view and saves it as a PNG file.
func run() error {
	var o options
	flag.StringVar(&o.region, "region", "seahorse", "landmark to render, ignored when -scale is set")
	flag.Float64Var(&o.re, "re", -0.5, "real part of the center, with -scale")
	flag.Float64Var(&o.im, "im", 0, "imaginary part of the center, with -scale")
	flag.Float64Var(&o.scale, "scale", 0, "plane units per pixel; 0 fits -region")
	flag.IntVar(&o.width, "width", 1920, "image width")
	flag.IntVar(&o.height, "height", 1080, "image height")
	flag.Float64Var(&o.hue, "hue", 210, "base hue in degrees, NaN for monochrome")
	flag.StringVar(&o.out, "out", "mandel.png", "output file")
	flag.IntVar(&o.workers, "workers", 0, "render workers, 0 for GOMAXPROCS")
	flag.StringVar(&o.server, "server", "", "websocket URL of a mandel server, e.g. ws://localhost:8080/ws")
	flag.DurationVar(&o.timeout, "timeout", 5*time.Minute, "give up after this long")
	verbose := flag.Bool("v", false, "log render diagnostics")
	flag.Parse()

	if *verbose {
		mandel.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	// Step 1: Resolve the viewport
	v, err := o.viewport()
	if err != nil {
		return err
	}
	log.Printf("Viewport: %s", v)

	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	// Step 2: Render
	var img *image.RGBA
	if o.server != "" {
		log.Printf("Requesting final frame from %s...", o.server)
		img, err = renderRemote(ctx, o.server, v, mandel.Hue(o.hue))
	} else {
		log.Printf("Rendering locally...")
		img, err = renderLocal(ctx, v, mandel.Hue(o.hue), o.workers)
	}
	if err != nil {
		return err
	}

	// Step 3: Save the rendered image to a PNG file
	log.Printf("Saving rendered image to %q...", o.out)
	f, err := os.Create(o.out)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}

	log.Printf("Fully rendered image saved to %q", o.out)
	return nil
}

func (o options) viewport() (mandel.Viewport, error) {
	if o.scale > 0 {
		return mandel.NewViewport(complex(o.re, o.im), o.scale, o.width, o.height)
	}
	r, ok := mandel.Landmarks[o.region]
	if !ok {
		return mandel.Viewport{}, fmt.Errorf("unknown region %q", o.region)
	}
	return mandel.Fit(r, o.width, o.height)
}

// ladderSink logs every refinement and hands over the final frame.
type ladderSink struct {
	start time.Time
	final chan *mandel.Frame
}

func (s *ladderSink) DeliverFrame(f *mandel.Frame) {
	log.Printf("Refined to %s after %s", f.Tier, time.Since(s.start).Round(time.Millisecond))
	if f.Final {
		s.final <- f
	}
}

func (s *ladderSink) GenerationComplete(gen uint64) {
	log.Printf("Generation %d complete", gen)
}

// renderLocal runs the refinement ladder without waiting between tiers.
func renderLocal(ctx context.Context, v mandel.Viewport, palette mandel.PaletteConfig, workers int) (*image.RGBA, error) {
	sched := render.NewScheduler(render.WithWorkers(workers))
	defer sched.Close()
	log.Printf("Using %d workers", sched.Workers())

	sink := &ladderSink{start: time.Now(), final: make(chan *mandel.Frame, 1)}
	ctrl, err := view.New(sched, sink, v,
		view.WithPalette(palette),
		view.WithPolicy(lod.WithQuiescence(0)),
	)
	if err != nil {
		return nil, err
	}
	defer ctrl.Close()

	select {
	case f := <-sink.final:
		st := sched.Cache().Stats()
		log.Printf("Cache: %d tiles, %d KiB, hit rate %.2f", st.Len, st.Bytes>>10, st.HitRate)
		return f.Image, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("render: %w", ctx.Err())
	}
}
