package app

import (
	"bytes"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eiannone/keyboard"
	"github.com/guidoenr/kochizer/internal/analyzer"
	"github.com/guidoenr/kochizer/internal/config"
	"github.com/guidoenr/kochizer/internal/web"
)

func testApp(t *testing.T, mutate func(*config.Config)) (*App, *bytes.Buffer) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Source = config.SourceSynth
	cfg.Seed = 42
	if mutate != nil {
		mutate(&cfg)
	}
	var out bytes.Buffer
	a, err := newApp(Config{Config: cfg, Log: log.New(io.Discard, "", 0), Out: &out})
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	if err := a.openSource(); err != nil {
		t.Fatalf("openSource: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a, &out
}

func TestSynthSourceIsDeterministic(t *testing.T) {
	a, b := newSynthSource(7), newSynthSource(7)
	for i := 0; i < 5; i++ {
		if err := a.Refresh(); err != nil {
			t.Fatalf("refresh: %v", err)
		}
		_ = b.Refresh()
	}
	left := a.ChannelSamples(analyzer.Left)
	if len(left) != analyzer.SampleCount {
		t.Fatalf("expected %d samples, got %d", analyzer.SampleCount, len(left))
	}
	other := b.ChannelSamples(analyzer.Left)
	for i := range left {
		if left[i] != other[i] {
			t.Fatalf("sample %d differs: %f vs %f", i, left[i], other[i])
		}
	}
	sum := a.ChannelSamples(analyzer.Stereo)
	right := a.ChannelSamples(analyzer.Right)
	if sum[3] != left[3]+right[3] {
		t.Fatal("stereo should be the sum of both channels")
	}
}

func TestNewAppRejectsInvalidConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Shape = "circle"
	if _, err := newApp(Config{Config: cfg, Log: log.New(io.Discard, "", 0), Out: io.Discard}); err == nil {
		t.Fatal("expected error for unknown shape")
	}
}

func TestGenerateAndResetEvents(t *testing.T) {
	a, _ := testApp(t, nil)
	steps := a.gen.Steps()
	vertices := len(a.gen.Current())

	a.handleEvent(event{kind: eventOutward})
	if a.gen.Steps() != steps+1 {
		t.Fatalf("steps = %d, want %d", a.gen.Steps(), steps+1)
	}
	if len(a.gen.Current()) <= vertices {
		t.Fatalf("expected more vertices than %d, got %d", vertices, len(a.gen.Current()))
	}
	a.handleEvent(event{kind: eventInward})
	if a.gen.Steps() != steps+2 {
		t.Fatalf("steps = %d, want %d", a.gen.Steps(), steps+2)
	}

	a.handleEvent(event{kind: eventReset})
	if a.gen.Steps() != steps || len(a.gen.Current()) != vertices {
		t.Fatalf("reset gave step %d with %d vertices", a.gen.Steps(), len(a.gen.Current()))
	}
	if a.handleEvent(event{kind: eventQuit}) != true {
		t.Fatal("quit event should stop the loop")
	}
}

func TestBezierAndStyleEvents(t *testing.T) {
	a, _ := testApp(t, nil)
	a.handleEvent(event{kind: eventBezier})
	if !a.line.Bezier() {
		t.Fatal("toggle should enable bezier")
	}
	off := false
	a.handleEvent(event{kind: eventBezier, bezier: &off})
	if a.line.Bezier() {
		t.Fatal("explicit false should disable bezier")
	}

	a.handleEvent(event{kind: eventStyle, style: web.StyleRequest{Palette: "box"}})
	if a.renderer.PaletteName() != "box" || a.renderer.StrokeName() != "dots" {
		t.Fatalf("style = %s/%s", a.renderer.PaletteName(), a.renderer.StrokeName())
	}
}

func TestQueueReportsBusy(t *testing.T) {
	a, _ := testApp(t, nil)
	for i := 0; i < cap(a.events); i++ {
		if err := a.Generate(true); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if err := a.Reset(); !errors.Is(err, web.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
}

func TestStepDrawsAndPublishes(t *testing.T) {
	a, out := testApp(t, nil)
	var lines int
	for i := 0; i < 5; i++ {
		frame, err := a.step(1.0 / 30)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		lines = len(frame.Lines)
		if err := a.output(frame); err != nil {
			t.Fatalf("output: %v", err)
		}
	}
	if lines != a.renderHeight {
		t.Fatalf("expected %d lines, got %d", a.renderHeight, lines)
	}
	if !strings.Contains(out.String(), "triangle") {
		t.Fatal("status bar missing from output")
	}

	snap := a.Snapshot()
	if snap.Shape != "triangle" || snap.Source != "synth" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if len(snap.Points) != snap.Vertices || snap.Vertices == 0 {
		t.Fatalf("snapshot has %d points for %d vertices", len(snap.Points), snap.Vertices)
	}
	if len(snap.Walkers) != 3 {
		t.Fatalf("expected one walker per edge, got %d", len(snap.Walkers))
	}
	if snap.Amplitude != a.frame.Amplitude {
		t.Fatalf("snapshot amplitude=%f want %f", snap.Amplitude, a.frame.Amplitude)
	}
	if len(snap.Bands) != 8 {
		t.Fatalf("expected 8 bands, got %d", len(snap.Bands))
	}
}

func TestStepWithoutTrails(t *testing.T) {
	a, _ := testApp(t, func(c *config.Config) { c.Trails = false; c.Bezier = true })
	if _, err := a.step(1.0 / 30); err != nil {
		t.Fatalf("step: %v", err)
	}
	if snap := a.Snapshot(); len(snap.Walkers) != 0 || !snap.Bezier {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestKeyEvents(t *testing.T) {
	cases := []struct {
		char rune
		key  keyboard.Key
		want eventKind
	}{
		{'o', 0, eventOutward},
		{'I', 0, eventInward},
		{'r', 0, eventReset},
		{'b', 0, eventBezier},
		{'v', 0, eventRandomize},
		{'q', 0, eventQuit},
		{0, keyboard.KeyEsc, eventQuit},
	}
	for _, c := range cases {
		ev, ok := keyEvent(c.char, c.key)
		if !ok || ev.kind != c.want {
			t.Fatalf("key %q/%v -> %v,%t want %v", c.char, c.key, ev.kind, ok, c.want)
		}
	}
	if _, ok := keyEvent('z', 0); ok {
		t.Fatal("unmapped key produced an event")
	}
}

func TestProfilerWritesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.csv")
	p := newProfiler(path, nil)
	if p == nil {
		t.Fatal("profiler not created")
	}
	p.beginFrame()
	p.mark(stageAnalyze, 0)
	p.mark(stageMorph, 13)
	p.endFrame(13)
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 || lines[0] != "frame,stage,delta_ms,vertices" {
		t.Fatalf("csv = %q", lines)
	}
	if !strings.HasPrefix(lines[2], "1,morph,") || !strings.HasSuffix(lines[2], ",13") {
		t.Fatalf("row = %q", lines[2])
	}

	var nilProfiler *profiler
	nilProfiler.beginFrame()
	nilProfiler.mark(stageRender, 0)
	if err := nilProfiler.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}
