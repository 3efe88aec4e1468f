package fractal

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Smooth resamples positions as a chain of quadratic Bezier curves. Every
// triple (i, i+1, i+2), with i stepping by two, contributes vertexCount+1
// points at ratios 0, 1/vertexCount, ..., 1. Points shared by neighbouring
// triples are emitted twice.
func Smooth(positions Ring, vertexCount int) (Ring, error) {
	if vertexCount < 1 {
		return nil, fmt.Errorf("%w: bezier vertex count %d", ErrInvalidArgument, vertexCount)
	}

	triples := 0
	if len(positions) >= 3 {
		triples = (len(positions)-3)/2 + 1
	}
	out := make(Ring, 0, triples*(vertexCount+1))

	for i := 0; i+2 <= len(positions)-1; i += 2 {
		p0, p1, p2 := positions[i], positions[i+1], positions[i+2]
		for k := 0; k <= vertexCount; k++ {
			ratio := float64(k) / float64(vertexCount)
			a := Lerp(p0, p1, ratio)
			b := Lerp(p1, p2, ratio)
			out = append(out, Lerp(a, b, ratio))
		}
	}
	return out, nil
}

// Lerp interpolates linearly between a and b.
func Lerp(a, b r3.Vec, t float64) r3.Vec {
	return r3.Add(a, r3.Scale(t, r3.Sub(b, a)))
}
