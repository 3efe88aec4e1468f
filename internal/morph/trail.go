package morph

import (
	"fmt"

	"github.com/guidoenr/kochizer/internal/fractal"
	"gonum.org/v1/gonum/spatial/r3"
)

// SnapDistance is how close a walker must get before it moves on to the next
// vertex.
const SnapDistance = 0.05

// Walker is one trail head travelling along the drawn path.
type Walker struct {
	Position    r3.Vec
	TargetIndex int
	Hue         float64 // 0..1, spread evenly over the walkers
}

// Trails moves one walker per polygon edge along the drawn path at a speed
// driven by the amplitude.
type Trails struct {
	walkers  []Walker
	speedMin float64
	speedMax float64
	pathLen  int
}

// NewTrails seats one walker at the start of every edge of path.
func NewTrails(path fractal.Ring, edgeCount int, speedMin, speedMax float64) (*Trails, error) {
	if edgeCount < 1 {
		return nil, fmt.Errorf("%w: trail count %d", fractal.ErrInvalidArgument, edgeCount)
	}
	if speedMin < 0 || speedMax < speedMin {
		return nil, fmt.Errorf("%w: trail speed range [%g,%g]", fractal.ErrInvalidArgument, speedMin, speedMax)
	}
	t := &Trails{
		walkers:  make([]Walker, edgeCount),
		speedMin: speedMin,
		speedMax: speedMax,
	}
	t.Reseat(path)
	return t, nil
}

// Reseat puts every walker back at the start of its edge.
func (t *Trails) Reseat(path fractal.Ring) {
	t.pathLen = len(path)
	n := len(t.walkers)
	if len(path) < 2 {
		for i := range t.walkers {
			t.walkers[i] = Walker{Hue: float64(i) / float64(n)}
		}
		return
	}
	step := len(path) / n
	if step < 1 {
		step = 1
	}
	for i := range t.walkers {
		start := (i * step) % len(path)
		target := (start + 1) % len(path)
		t.walkers[i] = Walker{
			Position:    path[start],
			TargetIndex: target,
			Hue:         float64(i) / float64(n),
		}
	}
}

// Speed returns the walker speed for an amplitude in [0,1].
func (t *Trails) Speed(amplitude float64) float64 {
	return t.speedMin + (t.speedMax-t.speedMin)*amplitude
}

// Step advances every walker by delta seconds. Walkers that come within
// SnapDistance of their target jump onto it and head for the next vertex,
// wrapping to the start at the end of the path.
func (t *Trails) Step(path fractal.Ring, amplitude, delta float64) {
	if len(path) < 2 {
		return
	}
	if len(path) != t.pathLen {
		t.rescale(len(path))
	}

	maxDistance := delta * t.Speed(amplitude)
	for i := range t.walkers {
		w := &t.walkers[i]
		goal := path[w.TargetIndex]
		w.Position = moveTowards(w.Position, goal, maxDistance)
		if r3.Norm(r3.Sub(goal, w.Position)) < SnapDistance {
			w.Position = goal
			w.TargetIndex++
			if w.TargetIndex >= len(path) {
				w.TargetIndex = 0
			}
		}
	}
}

// Walkers returns a copy of the walker states.
func (t *Trails) Walkers() []Walker {
	return append([]Walker(nil), t.walkers...)
}

// rescale keeps each walker at the same relative place along a path whose
// vertex count changed.
func (t *Trails) rescale(n int) {
	old := t.pathLen
	t.pathLen = n
	for i := range t.walkers {
		w := &t.walkers[i]
		if old > 0 {
			w.TargetIndex = w.TargetIndex * n / old
		}
		if w.TargetIndex >= n {
			w.TargetIndex = n - 1
		}
	}
}

func moveTowards(from, to r3.Vec, maxDistance float64) r3.Vec {
	delta := r3.Sub(to, from)
	dist := r3.Norm(delta)
	if dist <= maxDistance || dist == 0 {
		return to
	}
	return r3.Add(from, r3.Scale(maxDistance/dist, delta))
}
