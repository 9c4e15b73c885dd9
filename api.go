package mandel

import (
	"image"
)

// RenderRequest is one immutable unit of render work.
// Generation identifies the viewport it was issued for; a newer generation
// supersedes it.
type RenderRequest struct {
	Viewport   Viewport
	Tier       Tier
	Generation uint64
	Palette    PaletteConfig
}

// Frame is an assembled picture of one request.
// Final is set on the last refinement of a generation.
type Frame struct {
	Generation uint64
	Tier       Tier
	Viewport   Viewport
	Palette    PaletteConfig
	Final      bool
	Image      *image.RGBA
}

// FrameSink is implemented by host display surfaces.
// Calls may arrive from render goroutines; implementations synchronize themselves.
type FrameSink interface {
	// DeliverFrame hands over a frame; the sink owns the image afterwards.
	DeliverFrame(f *Frame)
	// GenerationComplete signals that gen reached its highest tier.
	GenerationComplete(gen uint64)
}
