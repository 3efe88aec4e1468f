// Package fractal builds polygon initiators and refines them into Koch-style
// curves driven by a generator profile.
package fractal

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrInvalidConfig reports a configuration no generator can be built from.
	ErrInvalidConfig = errors.New("fractal: invalid configuration")
	// ErrInvalidArgument reports a bad argument to a stateless helper.
	ErrInvalidArgument = errors.New("fractal: invalid argument")
)

// Ring is an ordered vertex sequence. Rings produced by this package are
// closed: the last vertex equals the first.
type Ring []r3.Vec

// Clone returns an independent copy of r.
func (r Ring) Clone() Ring {
	if r == nil {
		return nil
	}
	out := make(Ring, len(r))
	copy(out, r)
	return out
}

// Segment is one edge of a ring.
type Segment struct {
	Start     r3.Vec
	End       r3.Vec
	Direction r3.Vec
	Length    float64
}

// Segments returns the N-1 edges of an N-vertex ring.
func (r Ring) Segments() []Segment {
	if len(r) < 2 {
		return nil
	}
	segs := make([]Segment, len(r)-1)
	for i := range segs {
		start, end := r[i], r[i+1]
		delta := r3.Sub(end, start)
		length := r3.Norm(delta)
		var dir r3.Vec
		if length > 0 {
			dir = r3.Scale(1/length, delta)
		}
		segs[i] = Segment{Start: start, End: end, Direction: dir, Length: length}
	}
	return segs
}

// Step is one generation pass applied at construction.
type Step struct {
	Outward        bool    `json:"outward"`
	SizeMultiplier float64 `json:"sizeMultiplier"`
}

// Config controls Generator construction.
type Config struct {
	EdgeCount int
	Axis      Axis
	Size      float64
	Profile   Profile
	Warmup    []Step // passes applied in order right after the initiator is built
}

// Generator holds the current (undisplaced) and target (displaced) vertex
// rings of one fractal shape. Each Generate call replaces both rings with
// freshly allocated slices; rings handed out earlier are never modified.
type Generator struct {
	edgeCount int
	axis      Axis
	size      float64
	profile   Profile
	interior  []Keyframe

	current Ring
	target  Ring
	steps   int
}

// New validates cfg, builds the initiator and runs the warmup passes.
func New(cfg Config) (*Generator, error) {
	if cfg.Profile.Len() < 2 {
		return nil, fmt.Errorf("%w: profile needs at least 2 keyframes, got %d", ErrInvalidConfig, cfg.Profile.Len())
	}
	ring, err := BuildInitiator(cfg.EdgeCount, cfg.Axis, cfg.Size)
	if err != nil {
		return nil, err
	}
	for i, step := range cfg.Warmup {
		if math.IsNaN(step.SizeMultiplier) || math.IsInf(step.SizeMultiplier, 0) {
			return nil, fmt.Errorf("%w: warmup step %d size multiplier %g", ErrInvalidConfig, i, step.SizeMultiplier)
		}
	}

	g := &Generator{
		edgeCount: cfg.EdgeCount,
		axis:      cfg.Axis,
		size:      cfg.Size,
		profile:   cfg.Profile,
		interior:  cfg.Profile.Interior(),
		current:   ring,
		target:    ring,
	}
	for _, step := range cfg.Warmup {
		g.Generate(step.Outward, step.SizeMultiplier)
	}
	return g, nil
}

// Generate adds one level of detail on top of the current target ring.
func (g *Generator) Generate(outward bool, sizeMultiplier float64) {
	g.GenerateFrom(g.target, outward, sizeMultiplier)
}

// GenerateFrom subdivides every edge of ring according to the profile. The
// new current ring holds the points on the edges, the new target ring the
// same points pushed sideways by the profile values.
func (g *Generator) GenerateFrom(ring Ring, outward bool, sizeMultiplier float64) {
	segs := ring.Segments()
	if len(segs) == 0 {
		return
	}

	angle := radians(90)
	if outward {
		angle = -angle
	}
	normal := g.axis.Normal()

	n := len(segs)*(len(g.interior)+1) + 1
	current := make(Ring, 0, n)
	target := make(Ring, 0, n)

	for _, seg := range segs {
		current = append(current, seg.Start)
		target = append(target, seg.Start)

		side := r3.Rotate(seg.Direction, angle, normal)
		for _, key := range g.interior {
			moveAmount := seg.Length * key.Time
			heightAmount := seg.Length * key.Value * sizeMultiplier

			movePos := r3.Add(seg.Start, r3.Scale(moveAmount, seg.Direction))
			current = append(current, movePos)
			target = append(target, r3.Add(movePos, r3.Scale(heightAmount, side)))
		}
	}

	current = append(current, segs[0].Start)
	target = append(target, segs[0].Start)

	g.current = current
	g.target = target
	g.steps++
}

// Reset drops all detail and returns to the initiator.
func (g *Generator) Reset() {
	// The parameters were validated in New.
	ring, _ := BuildInitiator(g.edgeCount, g.axis, g.size)
	g.current = ring
	g.target = ring
	g.steps = 0
}

// Current returns a copy of the ring before the latest pass's displacement.
func (g *Generator) Current() Ring { return g.current.Clone() }

// Target returns a copy of the ring with the latest pass fully applied.
func (g *Generator) Target() Ring { return g.target.Clone() }

// Steps returns how many passes have been applied since construction or the
// last Reset.
func (g *Generator) Steps() int { return g.steps }

func (g *Generator) EdgeCount() int   { return g.edgeCount }
func (g *Generator) Axis() Axis       { return g.axis }
func (g *Generator) Profile() Profile { return g.profile }
