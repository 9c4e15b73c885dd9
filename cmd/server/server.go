package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	mandel "github.com/marben/mandelzoom"
	"github.com/marben/mandelzoom/tilecache"
)

// main is the entry point for the Mandelbrot server.
// Every browser connection gets its own renderer; computed tiles are shared
// between connections through one tile cache.
func main() {
	if err := run(); err != nil {
		log.Fatalf("run: %+v", err)
	}
}

func run() error {
	var (
		port       = flag.Int("port", 8080, "http port")
		static     = flag.String("static", "./static", "directory with index.html and main.wasm")
		region     = flag.String("region", "seahorse", "initial region: "+landmarkNames())
		width      = flag.Int("width", 1280, "initial frame width until the client reports its canvas")
		height     = flag.Int("height", 720, "initial frame height")
		hue        = flag.Float64("hue", 210, "base hue in degrees, NaN for monochrome")
		workers    = flag.Int("workers", 0, "render workers per connection, 0 for GOMAXPROCS")
		cacheTiles = flag.Int("cache-tiles", tilecache.DefaultMaxTiles, "tile cache capacity in tiles")
		cacheMB    = flag.Int64("cache-mb", tilecache.DefaultMaxBytes>>20, "tile cache capacity in MiB")
		verbose    = flag.Bool("v", false, "log render diagnostics")
	)
	flag.Parse()

	if *verbose {
		mandel.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	r, ok := mandel.Landmarks[*region]
	if !ok {
		return fmt.Errorf("unknown region %q, want one of %s", *region, landmarkNames())
	}
	initial, err := mandel.Fit(r, *width, *height)
	if err != nil {
		return fmt.Errorf("initial viewport: %w", err)
	}

	cfg := tilecache.DefaultConfig()
	cfg.MaxTiles = *cacheTiles
	cfg.MaxBytes = *cacheMB << 20

	srv := webServer(*port, *static, &session{
		cache:   tilecache.New(cfg),
		initial: initial,
		palette: mandel.Hue(*hue),
		workers: *workers,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	log.Printf("mb server waiting for websocket connections")
	select {
	case err := <-errc:
		return fmt.Errorf("httpServer: %w", err)
	case <-ctx.Done():
	}

	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func landmarkNames() string {
	names := make([]string, 0, len(mandel.Landmarks))
	for name := range mandel.Landmarks {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
