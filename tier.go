package mandel

import (
	"fmt"
	"math"
)

// LevelsOfDetail is the number of detail tiers in DefaultTiers.
// UIs that expose a quality control size it from this constant.
const LevelsOfDetail = 4

// BaseScale is the scale (plane units per pixel) at which zoom depth is zero:
// the full set [-2, 1] spread over 800 pixels.
const BaseScale = 3.0 / 800

// DeepTierDepth is the zoom depth in octaves below BaseScale at which the
// highest default tier becomes admissible.
const DeepTierDepth = 4

// Tier is one level of detail.
//
// Stride is the sampling stride: one escape record is computed per
// Stride×Stride block of pixels. IterationsPerOctave raises the iteration
// bound for every halving of the scale below BaseScale. MinDepth is the
// zoom depth (octaves) from which the tier is worth rendering.
type Tier struct {
	Level               int
	MaxIterations       int
	Stride              int
	IterationsPerOctave int
	MinDepth            float64
}

// DefaultTiers are ordered from cheapest to most accurate.
// The top tier only pays off once the view is zoomed DeepTierDepth octaves in;
// shallower views settle at level 2.
var DefaultTiers = Tiers{
	{Level: 0, MaxIterations: 64, Stride: 4, IterationsPerOctave: 16},
	{Level: 1, MaxIterations: 192, Stride: 2, IterationsPerOctave: 32},
	{Level: 2, MaxIterations: 512, Stride: 1, IterationsPerOctave: 64},
	{Level: 3, MaxIterations: 2048, Stride: 1, IterationsPerOctave: 128, MinDepth: DeepTierDepth},
}

// Cost estimates the relative work per pixel of the tier.
func (t Tier) Cost() float64 {
	s := float64(max(t.Stride, 1))
	return float64(t.MaxIterations) / (s * s)
}

// At resolves the tier for a viewport scale: the iteration bound grows with zoom depth.
func (t Tier) At(scale float64) Tier {
	if t.IterationsPerOctave <= 0 || scale <= 0 || scale >= BaseScale {
		return t
	}
	octaves := math.Log2(BaseScale / scale)
	t.MaxIterations += int(math.Ceil(octaves * float64(t.IterationsPerOctave)))
	return t
}

func (t Tier) String() string {
	return fmt.Sprintf("tier%d(iter=%d stride=%d)", t.Level, t.MaxIterations, t.Stride)
}

// Tiers is a tier table ordered by cost.
type Tiers []Tier

// Validate checks that levels are 0..n-1, iteration bounds never decrease,
// strides never increase and cost strictly increases.
func (ts Tiers) Validate() error {
	if len(ts) == 0 {
		return fmt.Errorf("empty table: %w", ErrInvalidTiers)
	}
	for i, t := range ts {
		switch {
		case t.Level != i:
			return fmt.Errorf("tier %d has level %d: %w", i, t.Level, ErrInvalidTiers)
		case t.MaxIterations <= 0 || t.Stride <= 0:
			return fmt.Errorf("%v: non-positive bound or stride: %w", t, ErrInvalidTiers)
		case t.IterationsPerOctave < 0:
			return fmt.Errorf("%v: negative iterations per octave: %w", t, ErrInvalidTiers)
		}
		if i == 0 {
			continue
		}
		prev := ts[i-1]
		switch {
		case t.MaxIterations < prev.MaxIterations:
			return fmt.Errorf("%v drops iterations below %v: %w", t, prev, ErrInvalidTiers)
		case t.Stride > prev.Stride:
			return fmt.Errorf("%v samples coarser than %v: %w", t, prev, ErrInvalidTiers)
		case t.IterationsPerOctave < prev.IterationsPerOctave:
			return fmt.Errorf("%v grows slower with depth than %v: %w", t, prev, ErrInvalidTiers)
		case t.Cost() <= prev.Cost():
			return fmt.Errorf("%v is not more expensive than %v: %w", t, prev, ErrInvalidTiers)
		}
	}
	return nil
}

// Lowest returns the cheapest tier.
func (ts Tiers) Lowest() Tier { return ts[0] }

// Highest returns the most accurate tier.
func (ts Tiers) Highest() Tier { return ts[len(ts)-1] }

// Ceiling returns the highest tier admissible at the viewport's zoom depth.
// The lowest tier is always admissible.
func (ts Tiers) Ceiling(v Viewport) Tier {
	depth := v.Depth(BaseScale)
	best := ts[0]
	for _, t := range ts[1:] {
		if t.MinDepth <= depth {
			best = t
		}
	}
	return best
}

// MaxStride returns the coarsest sampling stride in the table.
func (ts Tiers) MaxStride() int {
	s := 1
	for _, t := range ts {
		s = max(s, t.Stride)
	}
	return s
}
