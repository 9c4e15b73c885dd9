package mandel

import (
	"image"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Compression selects how escape values are normalized before coloring.
type Compression int

const (
	// LogCompression spreads bands near low iteration counts: ln(1+v)/ln(1+max).
	LogCompression Compression = iota
	// LinearCompression divides the escape value by the iteration bound.
	LinearCompression
)

// DefaultCycles is the number of hue turns across the normalized escape range.
const DefaultCycles = 3

// InteriorColor is used for points that never escaped.
var InteriorColor = color.RGBA{A: 255}

// PaletteConfig describes the coloring of a render.
// A NaN BaseHue selects the monochrome ramp.
type PaletteConfig struct {
	BaseHue     float64 // degrees in [0, 360), or NaN
	Cycles      float64 // hue turns over the normalized range; <= 0 means DefaultCycles
	Compression Compression
}

// Monochrome returns a grayscale palette.
func Monochrome() PaletteConfig {
	return PaletteConfig{BaseHue: math.NaN()}
}

// Hue returns a palette anchored at deg, normalized into [0, 360).
// A NaN deg gives the monochrome palette.
func Hue(deg float64) PaletteConfig {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return Monochrome()
	}
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return PaletteConfig{BaseHue: deg}
}

// IsMonochrome reports whether the base hue is unset.
func (p PaletteConfig) IsMonochrome() bool {
	return math.IsNaN(p.BaseHue) || math.IsInf(p.BaseHue, 0)
}

// Palette colors escape records. It is a value and safe for concurrent use.
type Palette struct {
	cfg    PaletteConfig
	cycles float64
}

// NewPalette normalizes cfg into a Palette.
func NewPalette(cfg PaletteConfig) Palette {
	if !cfg.IsMonochrome() {
		cfg.BaseHue = Hue(cfg.BaseHue).BaseHue
	}
	cycles := cfg.Cycles
	if !(cycles > 0) || math.IsInf(cycles, 0) {
		cycles = DefaultCycles
	}
	return Palette{cfg: cfg, cycles: cycles}
}

// Config returns the normalized configuration.
func (p Palette) Config() PaletteConfig { return p.cfg }

// Normalize maps an escape value onto [0, 1].
func (p Palette) Normalize(value float64, maxIterations int) float64 {
	if maxIterations <= 0 {
		return 0
	}
	m := float64(maxIterations)
	var t float64
	switch p.cfg.Compression {
	case LinearCompression:
		t = value / m
	default:
		t = math.Log1p(math.Max(value, 0)) / math.Log1p(m)
	}
	return math.Min(math.Max(t, 0), 1)
}

// ColorFor returns the color of one escape record.
func (p Palette) ColorFor(px EscapePixel, maxIterations int) color.RGBA {
	if !px.Escaped {
		return InteriorColor
	}
	t := p.Normalize(px.Value(), maxIterations)

	if p.cfg.IsMonochrome() {
		l := 0.12 + 0.88*t
		r, g, b := colorful.Color{R: l, G: l, B: l}.Clamped().RGB255()
		return color.RGBA{r, g, b, 255}
	}

	hue := math.Mod(p.cfg.BaseHue+360*p.cycles*t, 360)
	sat := 0.9 - 0.3*t
	val := 0.3 + 0.7*t
	r, g, b := colorful.Hsv(hue, sat, val).Clamped().RGB255()
	return color.RGBA{r, g, b, 255}
}

// ColorFor colors px with a palette built from cfg.
func ColorFor(px EscapePixel, maxIterations int, cfg PaletteConfig) color.RGBA {
	return NewPalette(cfg).ColorFor(px, maxIterations)
}

// Paint colors the records of t into dst, one pixel per record, with the
// top-left record at dst.Rect.Min. dst must hold t.Samples×t.Samples pixels.
func (p Palette) Paint(dst *image.RGBA, t *Tile) {
	maxIter := t.Tier.MaxIterations
	o := dst.Rect.Min
	for sy := 0; sy < t.Samples; sy++ {
		row := t.Pixels[sy*t.Samples : (sy+1)*t.Samples]
		for sx, px := range row {
			dst.SetRGBA(o.X+sx, o.Y+sy, p.ColorFor(px, maxIter))
		}
	}
}
