// Package morph turns a generator's current/target ring pair into the ring
// that is actually drawn each frame.
package morph

import (
	"errors"
	"fmt"

	"github.com/guidoenr/kochizer/internal/analyzer"
	"github.com/guidoenr/kochizer/internal/fractal"
)

// ErrEdgeBand reports an edge mapped to a band outside the 8-band scheme.
var ErrEdgeBand = errors.New("morph: edge band index out of range")

// Geometry is the part of a generator the morph stage reads.
type Geometry interface {
	Current() fractal.Ring
	Target() fractal.Ring
	Steps() int
	EdgeCount() int
}

// Config controls a Line.
type Config struct {
	// EdgeBands maps polygon edges to 8-band indices. Edge i uses
	// EdgeBands[i%len(EdgeBands)]. Empty means every edge uses LerpAmount.
	EdgeBands  []int
	LerpAmount float64

	Bezier            bool
	BezierVertexCount int

	Spring SpringConfig
}

const defaultBezierVertexCount = 8

// Line interpolates every edge of the ring between its undisplaced and
// displaced positions by that edge's audio level.
type Line struct {
	bands      []int
	lerpAmount float64
	bezier     bool
	vertices   int

	springs *springField
	levels  []float64
}

// NewLine validates cfg.
func NewLine(cfg Config) (*Line, error) {
	for i, b := range cfg.EdgeBands {
		if b < 0 || b >= analyzer.Bands8.Count() {
			return nil, fmt.Errorf("%w: edge %d uses band %d", ErrEdgeBand, i, b)
		}
	}
	if cfg.BezierVertexCount < 0 {
		return nil, fmt.Errorf("%w: bezier vertex count %d", fractal.ErrInvalidArgument, cfg.BezierVertexCount)
	}
	vertices := cfg.BezierVertexCount
	if vertices == 0 {
		vertices = defaultBezierVertexCount
	}
	l := &Line{
		bands:      append([]int(nil), cfg.EdgeBands...),
		lerpAmount: cfg.LerpAmount,
		bezier:     cfg.Bezier,
		vertices:   vertices,
	}
	if cfg.Spring.enabled() {
		l.springs = newSpringField(cfg.Spring)
	}
	return l, nil
}

// SetBezier toggles the smoothing pass.
func (l *Line) SetBezier(on bool) { l.bezier = on }

// Bezier reports whether the smoothing pass is on.
func (l *Line) Bezier() bool { return l.bezier }

// Levels returns the per-edge interpolation factors used by the last Update.
func (l *Line) Levels() []float64 {
	return append([]float64(nil), l.levels...)
}

// Update returns the ring to draw for this frame. Before the first generation
// pass it returns the initiator unchanged.
func (l *Line) Update(g Geometry, frame analyzer.Frame) (fractal.Ring, error) {
	current, target := g.Current(), g.Target()
	if g.Steps() == 0 || len(current) == 0 {
		return current, nil
	}
	if len(current) != len(target) {
		return nil, fmt.Errorf("%w: current has %d vertices, target %d", fractal.ErrInvalidArgument, len(current), len(target))
	}

	edges := g.EdgeCount()
	if edges < 1 {
		return current, nil
	}
	l.updateLevels(edges, frame)

	perEdge := (len(current) - 1) / edges
	lerped := make(fractal.Ring, len(current))
	count := 0
	for i := 0; i < edges; i++ {
		for j := 0; j < perEdge; j++ {
			lerped[count] = fractal.Lerp(current[count], target[count], l.levels[i])
			count++
		}
	}
	last := l.levels[edges-1]
	for ; count < len(current); count++ {
		lerped[count] = fractal.Lerp(current[count], target[count], last)
	}

	if !l.bezier {
		return lerped, nil
	}
	return fractal.Smooth(lerped, l.vertices)
}

func (l *Line) updateLevels(edges int, frame analyzer.Frame) {
	if len(l.levels) != edges {
		l.levels = make([]float64, edges)
	}
	for i := range l.levels {
		level := l.lerpAmount
		if len(l.bands) > 0 {
			level = frame.BandBuffers8[l.bands[i%len(l.bands)]]
		}
		if l.springs != nil {
			level = l.springs.step(i, level)
		}
		l.levels[i] = level
	}
}
