package render

import (
	"math"

	"github.com/guidoenr/kochizer/internal/fractal"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// view maps world positions in the curve's plane onto a width x height cell
// grid. cellAspect is how much taller a cell is than wide.
type view struct {
	u, v, normal r3.Vec
	yaw          float64 // radians
	scale        float64
	cx, cy       float64
	cellAspect   float64
}

func newView(axis fractal.Axis, extent, zoom, yawDeg float64, width, height int, cellAspect float64) view {
	u := axis.Direction()
	normal := axis.Normal()
	v := r3.Cross(normal, u)
	if extent <= 0 {
		extent = 1
	}
	if zoom <= 0 {
		zoom = 1
	}
	if cellAspect <= 0 {
		cellAspect = 1
	}
	halfW := float64(width-1) / 2
	halfH := float64(height-1) / 2 * cellAspect
	scale := math.Min(halfW, halfH) / extent * zoom
	return view{
		u:          u,
		v:          v,
		normal:     normal,
		yaw:        yawDeg * math.Pi / 180,
		scale:      scale,
		cx:         halfW,
		cy:         float64(height-1) / 2,
		cellAspect: cellAspect,
	}
}

// project returns fractional cell coordinates for p.
func (vw view) project(p r3.Vec) (float64, float64) {
	if vw.yaw != 0 {
		p = r3.Rotate(p, vw.yaw, vw.v)
	}
	x := r3.Dot(p, vw.u)
	y := r3.Dot(p, vw.v)
	return vw.cx + x*vw.scale, vw.cy - y*vw.scale/vw.cellAspect
}

// Extent returns the largest distance from the origin of any vertex in
// rings, used to keep the framing stable while the curve morphs.
func Extent(rings ...fractal.Ring) float64 {
	var norms []float64
	for _, ring := range rings {
		for _, p := range ring {
			norms = append(norms, r3.Norm(p))
		}
	}
	if len(norms) == 0 {
		return 0
	}
	return floats.Max(norms)
}
