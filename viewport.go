package mandel

import (
	"fmt"
	"math"
)

// Viewport is a window into the complex plane rasterized at Width×Height pixels.
//
// Pixel (x, y) maps to Center + ((x - Width/2)·Scale, -(y - Height/2)·Scale),
// so y grows downward while the imaginary axis grows upward.
// A Viewport is a value: pan and zoom return a new one.
type Viewport struct {
	Center        complex128
	Scale         float64 // plane units per pixel
	Width, Height int
}

// NewViewport returns a validated viewport.
func NewViewport(center complex128, scale float64, width, height int) (Viewport, error) {
	v := Viewport{Center: center, Scale: scale, Width: width, Height: height}
	if err := v.Validate(); err != nil {
		return Viewport{}, err
	}
	return v, nil
}

// Fit returns the viewport of the given pixel size that shows all of r,
// centered, with square pixels.
func Fit(r Region, width, height int) (Viewport, error) {
	if width <= 0 || height <= 0 || r.Empty() {
		return Viewport{}, fmt.Errorf("fit %v into %dx%d: %w", r, width, height, ErrInvalidViewport)
	}
	scale := math.Max(r.Width()/float64(width), r.Height()/float64(height))
	return NewViewport(r.Center(), scale, width, height)
}

// MaxLatticeExtent bounds the distance, in pixels, of any viewport pixel from
// the lattice origin, keeping lattice coordinates exact to an eighth of a
// pixel. It limits how deep a view centered away from 0 can zoom.
const MaxLatticeExtent = 1 << 50

// Validate checks the viewport invariants.
func (v Viewport) Validate() error {
	switch {
	case v.Width <= 0 || v.Height <= 0:
		return fmt.Errorf("dimensions %dx%d: %w", v.Width, v.Height, ErrInvalidViewport)
	case !(v.Scale > 0) || math.IsInf(v.Scale, 0):
		return fmt.Errorf("scale %g: %w", v.Scale, ErrInvalidViewport)
	case !finite(real(v.Center)) || !finite(imag(v.Center)):
		return fmt.Errorf("center %v: %w", v.Center, ErrInvalidViewport)
	case v.latticeExtent() >= MaxLatticeExtent:
		return fmt.Errorf("scale %g too fine for center %v: %w", v.Scale, v.Center, ErrInvalidViewport)
	}
	return nil
}

// latticeExtent returns how far, in pixels, the viewport reaches from the lattice origin.
func (v Viewport) latticeExtent() float64 {
	return math.Max(math.Abs(real(v.Center)), math.Abs(imag(v.Center)))/v.Scale +
		float64(max(v.Width, v.Height))
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (v Viewport) inBounds(x, y float64) bool {
	return x >= 0 && x < float64(v.Width) && y >= 0 && y < float64(v.Height)
}

// PixelToComplex maps a pixel coordinate to the complex plane.
// Coordinates outside [0,Width)×[0,Height) yield *OutOfBoundsError.
func PixelToComplex(v Viewport, x, y float64) (complex128, error) {
	if !v.inBounds(x, y) {
		return 0, &OutOfBoundsError{X: x, Y: y, Width: v.Width, Height: v.Height}
	}
	re := real(v.Center) + (x-float64(v.Width)/2)*v.Scale
	im := imag(v.Center) - (y-float64(v.Height)/2)*v.Scale
	return complex(re, im), nil
}

// ComplexToPixel is the inverse of PixelToComplex.
// Results within rounding error of the viewport edge are clamped into it;
// points further out yield *OutOfBoundsError.
func ComplexToPixel(v Viewport, c complex128) (x, y float64, err error) {
	x = (real(c)-real(v.Center))/v.Scale + float64(v.Width)/2
	y = (imag(v.Center)-imag(c))/v.Scale + float64(v.Height)/2
	if v.inBounds(x, y) {
		return x, y, nil
	}
	tol := v.roundingSlack()
	if x >= -tol && x < float64(v.Width)+tol && y >= -tol && y < float64(v.Height)+tol {
		x, y = ClampPixel(v, x, y)
		return x, y, nil
	}
	return 0, 0, &OutOfBoundsError{X: x, Y: y, Width: v.Width, Height: v.Height}
}

// roundingSlack bounds the pixel error of a round trip through the plane.
// Coordinates are about |center|/scale pixels from the origin, so their
// rounding error grows with that distance.
func (v Viewport) roundingSlack() float64 {
	const ulps = 4
	return ulps * 0x1p-52 * v.latticeExtent()
}

// ClampPixel pulls (x, y) into the viewport's pixel range.
func ClampPixel(v Viewport, x, y float64) (float64, float64) {
	maxX := math.Nextafter(float64(v.Width), 0)
	maxY := math.Nextafter(float64(v.Height), 0)
	return math.Min(math.Max(x, 0), maxX), math.Min(math.Max(y, 0), maxY)
}

// Region returns the part of the plane covered by the viewport.
func (v Viewport) Region() Region {
	hw := float64(v.Width) / 2 * v.Scale
	hh := float64(v.Height) / 2 * v.Scale
	return Region{
		Xmin: real(v.Center) - hw,
		Xmax: real(v.Center) + hw,
		Ymin: imag(v.Center) - hh,
		Ymax: imag(v.Center) + hh,
	}
}

// Pan moves the view by (dx, dy) pixels: positive dx shows content further right,
// positive dy content further down.
func (v Viewport) Pan(dx, dy float64) Viewport {
	v.Center += complex(dx*v.Scale, -dy*v.Scale)
	return v
}

// Zoom magnifies the view by factor (>1 zooms in) keeping pixel (ax, ay) fixed.
// Non-positive factors leave the viewport unchanged.
func (v Viewport) Zoom(factor, ax, ay float64) Viewport {
	if !(factor > 0) || math.IsInf(factor, 0) {
		return v
	}
	anchor := complex(
		real(v.Center)+(ax-float64(v.Width)/2)*v.Scale,
		imag(v.Center)-(ay-float64(v.Height)/2)*v.Scale,
	)
	v.Scale /= factor
	v.Center = anchor - complex((ax-float64(v.Width)/2)*v.Scale, -(ay-float64(v.Height)/2)*v.Scale)
	return v
}

// Resize changes the pixel dimensions keeping center and scale.
func (v Viewport) Resize(width, height int) Viewport {
	v.Width, v.Height = width, height
	return v
}

// Lattice returns the sampling lattice origin of the viewport: pixel (x, y)
// sits on lattice column k+x and row j+y, i.e. at ((k+x)·Scale, -(j+y)·Scale).
func (v Viewport) Lattice() (k, j int64) {
	k = int64(math.Round(real(v.Center)/v.Scale - float64(v.Width)/2))
	j = int64(math.Round(-imag(v.Center)/v.Scale - float64(v.Height)/2))
	return k, j
}

// Snap returns the viewport moved by less than a pixel so that every pixel
// lies exactly on the global sampling lattice. Snapped viewports that differ
// only by a pan share lattice tiles.
func (v Viewport) Snap() Viewport {
	k, j := v.Lattice()
	v.Center = complex(
		(float64(k)+float64(v.Width)/2)*v.Scale,
		-(float64(j)+float64(v.Height)/2)*v.Scale,
	)
	return v
}

// Depth returns the zoom depth in octaves relative to base (plane units per pixel).
// Viewports coarser than base have depth 0.
func (v Viewport) Depth(base float64) float64 {
	if base <= 0 || v.Scale >= base {
		return 0
	}
	return math.Log2(base / v.Scale)
}

func (v Viewport) String() string {
	return fmt.Sprintf("viewport{center=%g scale=%g %dx%d}", v.Center, v.Scale, v.Width, v.Height)
}
