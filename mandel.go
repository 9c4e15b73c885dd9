package mandel

import (
	"math"
	"unsafe"
)

// Region within the complex plane
type Region struct {
	Xmin, Xmax float64
	Ymin, Ymax float64
}

// Classic regions / landmarks in the Mandelbrot set
var (
	// FullSet – the whole set with a little room around it
	FullSet = Region{
		Xmin: -2.0,
		Xmax: 1.0,
		Ymin: -1.5,
		Ymax: 1.5,
	}

	// Seahorse Valley – dense filaments and repeating “seahorse” curls
	SeahorseValley = Region{
		Xmin: -0.8,
		Xmax: -0.7,
		Ymin: 0.05,
		Ymax: 0.15,
	}

	// Elephant Valley – large bulb with trunk-like tendrils
	ElephantValley = Region{
		Xmin: -1.85,
		Xmax: -1.75,
		Ymin: -0.10,
		Ymax: -0.02,
	}

	// Spiral Minibrot – small Mandelbrot copy with tight spiral arms
	SpiralMinibrot = Region{
		Xmin: -0.7435,
		Xmax: -0.7420,
		Ymin: 0.1310,
		Ymax: 0.1325,
	}

	// Triple Spiral – threefold symmetric spiral structure
	TripleSpiral = Region{
		Xmin: -0.7480,
		Xmax: -0.7450,
		Ymin: 0.0950,
		Ymax: 0.0980,
	}

	// Valley of the Dragon – deep, highly detailed spiral filaments
	ValleyOfTheDragon = Region{
		Xmin: -0.7400,
		Xmax: -0.7350,
		Ymin: 0.1800,
		Ymax: 0.1850,
	}

	// Minibrot in a Mini-Spiral – self-similar Mandelbrot copy inside a spiral arm
	MinibrotInMiniSpiral = Region{
		Xmin: -1.7390,
		Xmax: -1.7375,
		Ymin: -0.0235,
		Ymax: -0.0220,
	}
)

// Landmarks maps host-facing names to the classic regions above.
var Landmarks = map[string]Region{
	"full":       FullSet,
	"seahorse":   SeahorseValley,
	"elephant":   ElephantValley,
	"spiral":     SpiralMinibrot,
	"triple":     TripleSpiral,
	"dragon":     ValleyOfTheDragon,
	"minispiral": MinibrotInMiniSpiral,
}

// Width of the region along the real axis.
func (r Region) Width() float64 { return r.Xmax - r.Xmin }

// Height of the region along the imaginary axis.
func (r Region) Height() float64 { return r.Ymax - r.Ymin }

// Center of the region as a complex number.
func (r Region) Center() complex128 {
	return complex((r.Xmin+r.Xmax)/2, (r.Ymin+r.Ymax)/2)
}

// Empty reports whether the region has no area.
func (r Region) Empty() bool {
	return !(r.Xmin < r.Xmax && r.Ymin < r.Ymax)
}

// Contains reports whether c lies inside r (max edges exclusive).
func (r Region) Contains(c complex128) bool {
	return real(c) >= r.Xmin && real(c) < r.Xmax && imag(c) >= r.Ymin && imag(c) < r.Ymax
}

// Intersects reports whether the two regions overlap with positive area.
func (r Region) Intersects(o Region) bool {
	return r.Xmin < o.Xmax && o.Xmin < r.Xmax && r.Ymin < o.Ymax && o.Ymin < r.Ymax
}

// Union returns the smallest region covering both r and o.
// An empty operand is ignored.
func (r Region) Union(o Region) Region {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	return Region{
		Xmin: math.Min(r.Xmin, o.Xmin),
		Xmax: math.Max(r.Xmax, o.Xmax),
		Ymin: math.Min(r.Ymin, o.Ymin),
		Ymax: math.Max(r.Ymax, o.Ymax),
	}
}

// Inflate grows the region by frac of its own size on every side.
func (r Region) Inflate(frac float64) Region {
	dx := r.Width() * frac
	dy := r.Height() * frac
	return Region{
		Xmin: r.Xmin - dx,
		Xmax: r.Xmax + dx,
		Ymin: r.Ymin - dy,
		Ymax: r.Ymax + dy,
	}
}

// TileKey identifies a lattice tile at one resolved tier.
// Scale holds the float64 bits of the viewport scale so that keys compare exactly.
type TileKey struct {
	Scale         uint64
	TX, TY        int64
	Level         int
	MaxIterations int
}

// Tile is a square block of the sampling lattice computed at one tier.
//
// Pixels holds Samples×Samples records in row-major order, where
// Samples = Size / Tier.Stride. A committed Tile is immutable.
type Tile struct {
	Key        TileKey
	Tier       Tier
	Generation uint64 // generation that computed the tile
	Size       int    // lattice points per side
	Samples    int    // escape records per side
	Pixels     []EscapePixel
}

// At returns the record covering lattice offset (px, py) within the tile.
func (t *Tile) At(px, py int) EscapePixel {
	s := t.Tier.Stride
	if s < 1 {
		s = 1
	}
	return t.Pixels[(py/s)*t.Samples+px/s]
}

// Region returns the part of the complex plane covered by the tile.
func (t *Tile) Region() Region {
	return TileRegion(math.Float64frombits(t.Key.Scale), t.Key.TX, t.Key.TY, t.Size)
}

// Bytes approximates the memory held by the tile's escape data.
func (t *Tile) Bytes() int64 {
	return int64(len(t.Pixels)) * int64(unsafe.Sizeof(EscapePixel{}))
}

// TileRegion returns the plane region of lattice tile (tx, ty) of the given size.
// Lattice column k sits at real k·scale and lattice row j at imaginary -j·scale,
// so rows grow downward like pixel rows.
func TileRegion(scale float64, tx, ty int64, size int) Region {
	s := int64(size)
	return Region{
		Xmin: float64(tx*s) * scale,
		Xmax: float64((tx+1)*s) * scale,
		Ymin: -float64((ty+1)*s) * scale,
		Ymax: -float64(ty*s) * scale,
	}
}
