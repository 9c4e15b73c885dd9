package mandel

import (
	"math"
	"math/cmplx"
	"testing"
)

func TestEvaluateInterior(t *testing.T) {
	for _, c := range []complex128{0, -1, complex(-0.1, 0.1), complex(0.25, 0), complex(-1.2, 0.1)} {
		p := Evaluate(c, 1000)
		if p.Escaped {
			t.Errorf("Evaluate(%v) escaped at %d", c, p.Iterations)
		}
		if p.Iterations != 1000 || p.Fraction != 0 {
			t.Errorf("Evaluate(%v) = %+v, want Iterations=1000 Fraction=0", c, p)
		}
	}
}

func TestEvaluateOutsideDisk(t *testing.T) {
	for _, c := range []complex128{3, complex(0, 2.1), complex(-2.01, 0), complex(1.5, 1.5)} {
		p := Evaluate(c, 100)
		if !p.Escaped {
			t.Errorf("Evaluate(%v) did not escape", c)
			continue
		}
		if p.Iterations > 1 {
			t.Errorf("Evaluate(%v) escaped at %d, want 0 or 1", c, p.Iterations)
		}
	}
}

func TestEvaluateMatchesDirectIteration(t *testing.T) {
	// Points outside the fast interior test, both escaping and bounded.
	for _, c := range []complex128{complex(-0.75, 0.1), complex(0.5, 0), complex(-0.1, 0.9), complex(0.3, 0.5), complex(-0.5, 0.6)} {
		var z complex128
		want := -1
		for i := range 500 {
			z = z*z + c
			if m := cmplx.Abs(z); m*m > Bailout {
				want = i
				break
			}
		}
		p := Evaluate(c, 500)
		if want < 0 {
			if p.Escaped {
				t.Errorf("Evaluate(%v) escaped at %d, want bounded", c, p.Iterations)
			}
			continue
		}
		if !p.Escaped || p.Iterations != want {
			t.Errorf("Evaluate(%v) = %+v, want escape at %d", c, p, want)
		}
	}
}

// A point that escapes under a lower tier's bound must escape at the same
// step, with the same fraction, under every higher tier.
func TestEvaluateConsistentAcrossTiers(t *testing.T) {
	for _, scale := range []float64{BaseScale, BaseScale / 64, 1e-9} {
		for i := 1; i < len(DefaultTiers); i++ {
			lo := DefaultTiers[i-1].At(scale).MaxIterations
			hi := DefaultTiers[i].At(scale).MaxIterations
			if hi < lo {
				t.Fatalf("scale %g: tier %d bound %d below %d", scale, i, hi, lo)
			}
			for re := -2.1; re <= 0.6; re += 0.027 {
				for im := -1.2; im <= 1.2; im += 0.031 {
					c := complex(re, im)
					a, b := Evaluate(c, lo), Evaluate(c, hi)
					if a.Escaped && (!b.Escaped || b.Iterations != a.Iterations || b.Fraction != a.Fraction) {
						t.Errorf("scale %g: Evaluate(%v) = %+v at %d but %+v at %d", scale, c, a, lo, b, hi)
					}
				}
			}
		}
	}
}

func TestEvaluateNonPositiveBound(t *testing.T) {
	for _, n := range []int{0, -5} {
		if p := Evaluate(3, n); p != (EscapePixel{}) {
			t.Errorf("Evaluate(3, %d) = %+v, want zero record", n, p)
		}
	}
}

func TestEvaluateSmoothValueIsContinuous(t *testing.T) {
	// Walk along the real axis outside the set; the continuous value must
	// not jump by a whole band between neighbouring samples.
	prev := Evaluate(complex(0.3, 0), 1000).Value()
	for x := 0.3005; x < 0.6; x += 0.0005 {
		v := Evaluate(complex(x, 0), 1000).Value()
		if math.Abs(v-prev) > 0.5 {
			t.Errorf("value jumped from %g to %g at x=%g", prev, v, x)
		}
		prev = v
	}
}

func TestSmoothFractionRange(t *testing.T) {
	for _, m2 := range []float64{4.0000001, 5, 16, 1e6, 1e300} {
		f := smoothFraction(m2)
		if f < 0 || f > 1 {
			t.Errorf("smoothFraction(%g) = %g, outside [0,1]", m2, f)
		}
	}
	if f := smoothFraction(4); math.Abs(f-1) > 1e-12 {
		t.Errorf("smoothFraction(4) = %g, want 1", f)
	}
	if f := smoothFraction(16); math.Abs(f) > 1e-12 {
		t.Errorf("smoothFraction(16) = %g, want 0", f)
	}
}

func BenchmarkEvaluate(b *testing.B) {
	c := complex(-0.7435, 0.1315)
	for b.Loop() {
		Evaluate(c, 1000)
	}
}
