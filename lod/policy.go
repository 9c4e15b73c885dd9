// Package lod picks the detail tier of each render.
//
// While a gesture is in progress the cheapest tier keeps the view responsive.
// Once the viewport has been still for the quiescence window every call
// escalates one tier, up to the ceiling for the current zoom depth; a final
// frame request jumps straight to the ceiling. For an unchanged viewport the
// chosen level never decreases.
package lod

import (
	"fmt"
	"sync"
	"time"

	mandel "github.com/marben/mandelzoom"
)

// DefaultQuiescence is how long a viewport must stay unchanged before detail escalates.
const DefaultQuiescence = 150 * time.Millisecond

// InteractionState is what the host reports about user input.
type InteractionState struct {
	Active     bool      // a pan/zoom gesture is in progress
	LastChange time.Time // when the viewport last changed
	Final      bool      // the host asks for the final frame now
}

type options struct {
	tiers      mandel.Tiers
	quiescence time.Duration
	now        func() time.Time
}

// Option configures a Policy.
type Option func(*options)

// WithTiers replaces mandel.DefaultTiers.
func WithTiers(ts mandel.Tiers) Option {
	return func(o *options) { o.tiers = ts }
}

// WithQuiescence sets the stillness window before escalation.
func WithQuiescence(d time.Duration) Option {
	return func(o *options) { o.quiescence = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Policy selects tiers. It is safe for concurrent use.
type Policy struct {
	tiers      mandel.Tiers
	quiescence time.Duration
	now        func() time.Time

	mu        sync.Mutex
	viewport  mandel.Viewport
	committed int // -1 when nothing was chosen for viewport
}

// New returns a policy. The tier table is validated.
func New(opts ...Option) (*Policy, error) {
	o := options{
		tiers:      mandel.DefaultTiers,
		quiescence: DefaultQuiescence,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.tiers.Validate(); err != nil {
		return nil, fmt.Errorf("lod: %w", err)
	}
	if o.quiescence < 0 {
		o.quiescence = 0
	}
	return &Policy{
		tiers:      o.tiers,
		quiescence: o.quiescence,
		now:        o.now,
		committed:  -1,
	}, nil
}

// Tiers returns the tier table.
func (p *Policy) Tiers() mandel.Tiers { return p.tiers }

// Quiescence returns the stillness window.
func (p *Policy) Quiescence() time.Duration { return p.quiescence }

// SelectTier returns the tier to render v with and commits to it.
func (p *Policy) SelectTier(v mandel.Viewport, st InteractionState) mandel.Tier {
	p.mu.Lock()
	defer p.mu.Unlock()

	if v != p.viewport {
		p.viewport = v
		p.committed = -1
	}

	ceiling := p.tiers.Ceiling(v).Level
	target := 0
	switch {
	case st.Final:
		target = ceiling
	case st.Active:
		target = 0
	case p.now().Sub(st.LastChange) >= p.quiescence:
		target = min(p.committed+1, ceiling)
	default:
		target = 0
	}

	p.committed = max(p.committed, target)
	return p.tiers[p.committed]
}

// Committed returns the tier last chosen for v.
func (p *Policy) Committed(v mandel.Viewport) (mandel.Tier, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v != p.viewport || p.committed < 0 {
		return mandel.Tier{}, false
	}
	return p.tiers[p.committed], true
}

// Now reads the policy clock.
func (p *Policy) Now() time.Time { return p.now() }

// Settled reports whether the committed tier of v is its ceiling.
func (p *Policy) Settled(v mandel.Viewport) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return v == p.viewport && p.committed >= p.tiers.Ceiling(v).Level
}

// Reset forgets the committed tier.
func (p *Policy) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.viewport = mandel.Viewport{}
	p.committed = -1
}
