package fractal

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// Axis selects the plane the initiator is drawn in.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// rotation pairs the base direction of an axis with the axis it turns around.
type rotation struct {
	direction r3.Vec
	axis      r3.Vec
}

var rotations = [...]rotation{
	AxisX: {direction: r3.Vec{X: 1}, axis: r3.Vec{Z: 1}},
	AxisY: {direction: r3.Vec{Y: 1}, axis: r3.Vec{X: 1}},
	AxisZ: {direction: r3.Vec{Z: 1}, axis: r3.Vec{Y: 1}},
}

func (a Axis) valid() bool { return a >= AxisX && a <= AxisZ }

// Direction returns the base direction of the axis.
func (a Axis) Direction() r3.Vec { return rotations[a].direction }

// Normal returns the axis every vertex is rotated around. It is perpendicular
// to the plane the curve lives in.
func (a Axis) Normal() r3.Vec { return rotations[a].axis }

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	default:
		return "z"
	}
}

// ParseAxis maps "x", "y" or "z" to an Axis.
func ParseAxis(name string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "x":
		return AxisX, nil
	case "y":
		return AxisY, nil
	case "", "z":
		return AxisZ, nil
	}
	return AxisZ, fmt.Errorf("%w: unknown axis %q", ErrInvalidConfig, name)
}

// Initiator describes the base polygon for an edge count.
type Initiator struct {
	EdgeCount int
	Rotation  float64 // degrees applied before the first vertex
}

// Edge count limits.
const (
	MinEdges = 3
	MaxEdges = 8
)

// initiators is indexed by edge count. The offsets align every shape so it
// sits flat on the same side.
var initiators = [...]Initiator{
	3: {EdgeCount: 3, Rotation: 0},
	4: {EdgeCount: 4, Rotation: 45},
	5: {EdgeCount: 5, Rotation: 36},
	6: {EdgeCount: 6, Rotation: 30},
	7: {EdgeCount: 7, Rotation: 25.71428},
	8: {EdgeCount: 8, Rotation: 22.5},
}

var shapeNames = [...]string{
	3: "triangle",
	4: "square",
	5: "pentagon",
	6: "hexagon",
	7: "heptagon",
	8: "octagon",
}

// InitiatorFor returns the initiator for edgeCount.
func InitiatorFor(edgeCount int) (Initiator, error) {
	if edgeCount < MinEdges || edgeCount > MaxEdges {
		return Initiator{}, fmt.Errorf("%w: edge count %d outside [%d,%d]", ErrInvalidConfig, edgeCount, MinEdges, MaxEdges)
	}
	return initiators[edgeCount], nil
}

// ShapeEdges maps a shape name ("triangle" ... "octagon") or a plain number to
// an edge count.
func ShapeEdges(name string) (int, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for n := MinEdges; n <= MaxEdges; n++ {
		if key == shapeNames[n] || key == fmt.Sprint(n) {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown shape %q", ErrInvalidConfig, name)
}

// ShapeNames returns the supported shape names ordered by edge count.
func ShapeNames() []string {
	out := make([]string, 0, MaxEdges-MinEdges+1)
	for n := MinEdges; n <= MaxEdges; n++ {
		out = append(out, shapeNames[n])
	}
	return out
}

// BuildInitiator returns the closed ring of edgeCount+1 vertices for the given
// edge count, axis and size. The last vertex repeats the first.
func BuildInitiator(edgeCount int, axis Axis, size float64) (Ring, error) {
	ini, err := InitiatorFor(edgeCount)
	if err != nil {
		return nil, err
	}
	if !axis.valid() {
		return nil, fmt.Errorf("%w: axis %d", ErrInvalidConfig, axis)
	}
	if !(size > 0) {
		return nil, fmt.Errorf("%w: initiator size %g must be positive", ErrInvalidConfig, size)
	}

	normal := axis.Normal()
	direction := r3.Rotate(axis.Direction(), radians(ini.Rotation), normal)
	step := radians(360.0 / float64(ini.EdgeCount))

	ring := make(Ring, ini.EdgeCount+1)
	for i := 0; i < ini.EdgeCount; i++ {
		ring[i] = r3.Scale(size, direction)
		direction = r3.Rotate(direction, step, normal)
	}
	ring[ini.EdgeCount] = ring[0]
	return ring, nil
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
