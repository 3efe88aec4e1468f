package morph

import (
	"errors"
	"math"
	"testing"

	"github.com/guidoenr/kochizer/internal/analyzer"
	"github.com/guidoenr/kochizer/internal/fractal"
	"gonum.org/v1/gonum/spatial/r3"
)

func newGenerator(t *testing.T, edges int, passes int) *fractal.Generator {
	t.Helper()
	profile, err := fractal.ProfileByName("koch")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	g, err := fractal.New(fractal.Config{EdgeCount: edges, Axis: fractal.AxisZ, Size: 1, Profile: profile})
	if err != nil {
		t.Fatalf("generator: %v", err)
	}
	for i := 0; i < passes; i++ {
		g.Generate(true, 1)
	}
	return g
}

func TestNewLineRejectsBadBand(t *testing.T) {
	if _, err := NewLine(Config{EdgeBands: []int{0, 8}}); !errors.Is(err, ErrEdgeBand) {
		t.Fatalf("expected ErrEdgeBand, got %v", err)
	}
	if _, err := NewLine(Config{EdgeBands: []int{-1}}); !errors.Is(err, ErrEdgeBand) {
		t.Fatalf("expected ErrEdgeBand, got %v", err)
	}
}

func TestLineBeforeFirstPassReturnsInitiator(t *testing.T) {
	g := newGenerator(t, 3, 0)
	line, _ := NewLine(Config{LerpAmount: 1})
	ring, err := line.Update(g, analyzer.Frame{})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(ring) != 4 {
		t.Fatalf("len=%d want=4", len(ring))
	}
}

func TestLineGlobalLerp(t *testing.T) {
	g := newGenerator(t, 3, 1)
	line, _ := NewLine(Config{LerpAmount: 0.5})
	ring, err := line.Update(g, analyzer.Frame{})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	cur, tgt := g.Current(), g.Target()
	for i := range ring {
		want := fractal.Lerp(cur[i], tgt[i], 0.5)
		if r3.Norm(r3.Sub(ring[i], want)) > 1e-12 {
			t.Fatalf("vertex %d=%v want=%v", i, ring[i], want)
		}
	}
}

func TestLinePerEdgeBands(t *testing.T) {
	g := newGenerator(t, 3, 1)
	line, _ := NewLine(Config{EdgeBands: []int{0, 1, 2}})
	var frame analyzer.Frame
	frame.BandBuffers8[0] = 0
	frame.BandBuffers8[1] = 1
	frame.BandBuffers8[2] = 0.25

	ring, err := line.Update(g, frame)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	cur, tgt := g.Current(), g.Target()
	perEdge := (len(cur) - 1) / 3
	for i := range ring {
		edge := i / perEdge
		if edge > 2 {
			edge = 2
		}
		want := fractal.Lerp(cur[i], tgt[i], frame.BandBuffers8[edge])
		if r3.Norm(r3.Sub(ring[i], want)) > 1e-12 {
			t.Fatalf("vertex %d (edge %d)=%v want=%v", i, edge, ring[i], want)
		}
	}
	levels := line.Levels()
	if len(levels) != 3 || levels[1] != 1 || levels[2] != 0.25 {
		t.Fatalf("levels=%v", levels)
	}
}

func TestLineBandsCycle(t *testing.T) {
	g := newGenerator(t, 4, 1)
	line, _ := NewLine(Config{EdgeBands: []int{3}})
	var frame analyzer.Frame
	frame.BandBuffers8[3] = 0.7
	if _, err := line.Update(g, frame); err != nil {
		t.Fatalf("Update: %v", err)
	}
	for i, l := range line.Levels() {
		if l != 0.7 {
			t.Fatalf("edge %d level=%f want=0.7", i, l)
		}
	}
}

func TestLineBezier(t *testing.T) {
	g := newGenerator(t, 3, 1)
	line, _ := NewLine(Config{LerpAmount: 1, Bezier: true, BezierVertexCount: 4})
	ring, err := line.Update(g, analyzer.Frame{})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	smoothed, _ := fractal.Smooth(g.Target(), 4)
	if len(ring) != len(smoothed) {
		t.Fatalf("len=%d want=%d", len(ring), len(smoothed))
	}
	line.SetBezier(false)
	if ring, _ = line.Update(g, analyzer.Frame{}); len(ring) != len(g.Target()) {
		t.Fatalf("bezier off len=%d want=%d", len(ring), len(g.Target()))
	}
}

func TestLineSpringConverges(t *testing.T) {
	g := newGenerator(t, 3, 1)
	line, _ := NewLine(Config{
		EdgeBands: []int{0},
		Spring:    SpringConfig{FPS: 60, Frequency: 6, Damping: 1},
	})
	var frame analyzer.Frame
	frame.BandBuffers8[0] = 1

	if _, err := line.Update(g, frame); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if first := line.Levels()[0]; first <= 0 || first >= 1 {
		t.Fatalf("first sprung level=%f, want strictly between 0 and 1", first)
	}
	for i := 0; i < 600; i++ {
		_, _ = line.Update(g, frame)
	}
	if got := line.Levels()[0]; math.Abs(got-1) > 1e-3 {
		t.Fatalf("level=%f want ~1", got)
	}
}

func TestTrailsWalkAndWrap(t *testing.T) {
	path := fractal.Ring{{X: 0}, {X: 1}, {X: 1, Y: 1}, {X: 0}}
	trails, err := NewTrails(path, 1, 0, 10)
	if err != nil {
		t.Fatalf("NewTrails: %v", err)
	}
	w := trails.Walkers()[0]
	if w.Position != path[0] || w.TargetIndex != 1 {
		t.Fatalf("initial walker=%+v", w)
	}

	trails.Step(path, 0.5, 0.1) // speed 5, moves 0.5
	w = trails.Walkers()[0]
	if math.Abs(w.Position.X-0.5) > 1e-12 || w.TargetIndex != 1 {
		t.Fatalf("after half step walker=%+v", w)
	}

	trails.Step(path, 1, 0.1) // speed 10 reaches vertex 1
	w = trails.Walkers()[0]
	if w.Position != path[1] || w.TargetIndex != 2 {
		t.Fatalf("after snap walker=%+v", w)
	}

	for i := 0; i < 10; i++ {
		trails.Step(path, 1, 1)
	}
	for _, w := range trails.Walkers() {
		if w.TargetIndex < 0 || w.TargetIndex >= len(path) {
			t.Fatalf("target index %d out of range", w.TargetIndex)
		}
	}
}

func TestTrailsSnapDistance(t *testing.T) {
	path := fractal.Ring{{X: 0}, {X: 1}, {X: 0}}
	trails, _ := NewTrails(path, 1, 0.96, 0.96)
	trails.Step(path, 0, 1)
	w := trails.Walkers()[0]
	if w.Position != path[1] || w.TargetIndex != 2 {
		t.Fatalf("walker within %f did not snap: %+v", SnapDistance, w)
	}
}

func TestTrailsSeatPerEdge(t *testing.T) {
	g := newGenerator(t, 4, 1)
	trails, err := NewTrails(g.Current(), 4, 1, 2)
	if err != nil {
		t.Fatalf("NewTrails: %v", err)
	}
	step := len(g.Current()) / 4
	for i, w := range trails.Walkers() {
		if w.Position != g.Current()[i*step] || w.TargetIndex != i*step+1 {
			t.Fatalf("walker %d=%+v", i, w)
		}
		if want := float64(i) / 4; w.Hue != want {
			t.Fatalf("walker %d hue=%f want=%f", i, w.Hue, want)
		}
	}

	g.Generate(true, 1)
	trails.Step(g.Current(), 0, 0)
	for _, w := range trails.Walkers() {
		if w.TargetIndex >= len(g.Current()) {
			t.Fatalf("target index %d beyond path of %d", w.TargetIndex, len(g.Current()))
		}
	}
}

func TestTrailsRejectBadConfig(t *testing.T) {
	if _, err := NewTrails(nil, 0, 0, 1); !errors.Is(err, fractal.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := NewTrails(nil, 3, 2, 1); !errors.Is(err, fractal.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestSwayPingPong(t *testing.T) {
	s := Sway{Amplitude: 20, Speed: 10}
	cases := []struct {
		t, want float64
	}{
		{0, -10},
		{1, 0},
		{2, 10},
		{3, 0},
		{4, -10},
	}
	for _, c := range cases {
		if got := s.Yaw(c.t); math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("Yaw(%f)=%f want=%f", c.t, got, c.want)
		}
	}
	if got := (Sway{}).Yaw(3); got != 0 {
		t.Fatalf("zero sway yaw=%f", got)
	}
}

func TestTrailsFullSpeedOnLoudTick(t *testing.T) {
	a, err := analyzer.New(analyzer.DefaultConfig())
	if err != nil {
		t.Fatalf("analyzer: %v", err)
	}
	loud := make([]float64, analyzer.SampleCount)
	for i := range loud {
		loud[i] = 0.2
	}
	frame, err := a.Process(loud, loud)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	path := fractal.Ring{{X: 0}, {X: 10}, {X: 0}}
	trails, err := NewTrails(path, 1, 0.05, 0.2)
	if err != nil {
		t.Fatalf("NewTrails: %v", err)
	}
	if got := trails.Speed(frame.Amplitude); got != 0.2 {
		t.Fatalf("speed=%f want 0.2 at amplitude %f", got, frame.Amplitude)
	}
	trails.Step(path, frame.Amplitude, 0.1)
	if w := trails.Walkers()[0]; math.Abs(w.Position.X-0.02) > 1e-12 {
		t.Fatalf("walker at %f want 0.02", w.Position.X)
	}
}
