package mandel

import "math"

// Bailout is the squared magnitude an orbit must exceed to count as escaped.
const Bailout = 4.0

// EscapePixel is the escape-time record of one sample point.
type EscapePixel struct {
	Escaped    bool
	Iterations int     // escape index, or maxIterations for interior points
	Fraction   float64 // smoothing correction in [0, 1], zero for interior points
}

// Value returns the continuous escape value Iterations + Fraction.
func (p EscapePixel) Value() float64 {
	return float64(p.Iterations) + p.Fraction
}

var invLn2 = 1 / math.Ln2

// Evaluate iterates z ← z² + c from z = 0 for at most maxIterations steps.
//
// The first step i at which |z|² exceeds Bailout is reported as Iterations=i
// with Escaped=true. The smoothing fraction is 1 - log2(ln|z| / ln 2), which
// makes Value continuous across iteration bands.
func Evaluate(c complex128, maxIterations int) EscapePixel {
	if maxIterations <= 0 {
		return EscapePixel{}
	}
	cr, ci := real(c), imag(c)
	if inCardioidOrBulb(cr, ci) {
		return EscapePixel{Iterations: maxIterations}
	}

	var zr, zi, zr2, zi2 float64
	for i := 0; i < maxIterations; i++ {
		zi = 2*zr*zi + ci
		zr = zr2 - zi2 + cr
		zr2, zi2 = zr*zr, zi*zi
		if m2 := zr2 + zi2; m2 > Bailout {
			return EscapePixel{
				Escaped:    true,
				Iterations: i,
				Fraction:   smoothFraction(m2),
			}
		}
	}
	return EscapePixel{Iterations: maxIterations}
}

// smoothFraction maps the squared magnitude at escape to [0, 1].
func smoothFraction(m2 float64) float64 {
	lnz := 0.5 * math.Log(m2)
	f := 1 - math.Log(lnz*invLn2)*invLn2
	return math.Min(math.Max(f, 0), 1)
}

// inCardioidOrBulb reports whether c lies in the main cardioid or the period-2 bulb,
// where every orbit stays bounded.
func inCardioidOrBulb(x, y float64) bool {
	y2 := y * y
	xq := x - 0.25
	q := xq*xq + y2
	if q*(q+xq) <= 0.25*y2 {
		return true
	}
	xb := x + 1
	return xb*xb+y2 <= 1.0/16
}
