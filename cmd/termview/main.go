// termview explores the Mandelbrot set in a terminal.
// Each character cell shows two pixels using the upper half block, with the
// bottom row reserved for status.
//
// Keys: arrows pan, +/- zoom, h rotates the hue, m toggles monochrome,
// f requests full detail, q quits.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/gdamore/tcell/v2"

	mandel "github.com/marben/mandelzoom"
	"github.com/marben/mandelzoom/render"
	"github.com/marben/mandelzoom/view"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("run: %v", err)
	}
}

func run() error {
	region := flag.String("region", "full", "landmark to start from")
	hue := flag.Float64("hue", 210, "base hue in degrees")
	workers := flag.Int("workers", 0, "render workers, 0 for GOMAXPROCS")
	logFile := flag.String("log", "", "write render diagnostics to this file")
	flag.Parse()

	if *logFile != "" {
		f, err := os.Create(*logFile)
		if err != nil {
			return err
		}
		defer f.Close()
		mandel.SetLogger(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	r, ok := mandel.Landmarks[*region]
	if !ok {
		return fmt.Errorf("unknown region %q", *region)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	w, h := frameSize(screen.Size())
	v, err := mandel.Fit(r, w, h)
	if err != nil {
		return err
	}

	sched := render.NewScheduler(render.WithWorkers(*workers))
	defer sched.Close()

	d := newDisplay(screen)
	d.hue = *hue
	ctrl, err := view.New(sched, d, v, view.WithPalette(mandel.Hue(*hue)))
	if err != nil {
		return err
	}
	defer ctrl.Close()

	d.run(ctrl)
	return nil
}
