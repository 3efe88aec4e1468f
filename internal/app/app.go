package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/eiannone/keyboard"
	"github.com/guidoenr/kochizer/internal/analyzer"
	"github.com/guidoenr/kochizer/internal/audio"
	"github.com/guidoenr/kochizer/internal/config"
	"github.com/guidoenr/kochizer/internal/fractal"
	"github.com/guidoenr/kochizer/internal/morph"
	"github.com/guidoenr/kochizer/internal/params"
	"github.com/guidoenr/kochizer/internal/render"
	"github.com/guidoenr/kochizer/internal/web"
	"golang.org/x/term"
)

// Config configures the application runtime.
type Config struct {
	config.Config
	UseANSI bool
	Log     *log.Logger
	Out     io.Writer // terminal frames, os.Stdout when nil
}

type eventKind int

const (
	eventOutward eventKind = iota
	eventInward
	eventReset
	eventBezier
	eventStyle
	eventRandomize
	eventQuit
)

// event is a command applied between frames, from the keyboard or the web
// panel.
type event struct {
	kind   eventKind
	bezier *bool // nil toggles
	style  web.StyleRequest
}

// App ties together audio input, analysis, the fractal generator and
// rendering.
type App struct {
	cfg Config
	log *log.Logger
	out *bufio.Writer

	source      audio.SampleSource
	clip        *audio.Clip
	closers     []io.Closer
	sourceLabel string

	analyzer *analyzer.Analyzer
	frame    analyzer.Frame
	gen      *fractal.Generator
	line     *morph.Line
	trails   *morph.Trails
	settings params.Settings
	params   params.Parameters
	extent   float64

	renderer     *render.Renderer
	profiler     *profiler
	width        int
	height       int
	renderHeight int
	last         time.Time
	fps          float64
	warned       bool

	events chan event
	rng    *rand.Rand

	mu   sync.RWMutex
	snap web.Snapshot
}

// New constructs the application and opens the configured audio source.
func New(cfg Config) (*App, error) {
	a, err := newApp(cfg)
	if err != nil {
		return nil, err
	}
	if err := a.openSource(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// newApp builds everything except the audio source.
func newApp(cfg Config) (*App, error) {
	if cfg.Log == nil {
		cfg.Log = log.New(os.Stderr, "", log.LstdFlags)
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	channel, err := analyzer.ParseChannel(cfg.Channel)
	if err != nil {
		return nil, err
	}
	an, err := analyzer.New(analyzer.Config{
		Channel:       channel,
		PeakSeed:      cfg.PeakSeed,
		BaseDecay:     analyzer.DefaultBaseDecay,
		DecayGrowth:   analyzer.DefaultDecayGrowth,
		ClampEnvelope: cfg.ClampEnv,
	})
	if err != nil {
		return nil, err
	}

	edges, err := fractal.ShapeEdges(cfg.Shape)
	if err != nil {
		return nil, err
	}
	axis, err := fractal.ParseAxis(cfg.Axis)
	if err != nil {
		return nil, err
	}
	profile, err := cfg.GeneratorProfile()
	if err != nil {
		return nil, err
	}
	gen, err := fractal.New(fractal.Config{
		EdgeCount: edges,
		Axis:      axis,
		Size:      cfg.Size,
		Profile:   profile,
		Warmup:    cfg.Warmup,
	})
	if err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}

	line, err := morph.NewLine(morph.Config{
		EdgeBands:         cfg.EdgeBands,
		LerpAmount:        cfg.LerpAmount,
		Bezier:            cfg.Bezier,
		BezierVertexCount: cfg.BezierVertices,
		Spring: morph.SpringConfig{
			FPS:       int(math.Round(cfg.TargetFPS)),
			Frequency: cfg.SpringFreq,
			Damping:   cfg.SpringDamping,
		},
	})
	if err != nil {
		return nil, err
	}

	renderHeight := cfg.Height
	if cfg.StatusBar && renderHeight > 1 {
		renderHeight--
	}
	renderer, err := render.New(cfg.Width, renderHeight, cfg.Palette, cfg.Stroke, cfg.ColorMode, cfg.UseANSI)
	if err != nil {
		return nil, err
	}
	if cfg.WindowBackend() {
		if err := renderer.EnableSDL(); err != nil {
			return nil, fmt.Errorf("sdl backend: %w", err)
		}
	}

	a := &App{
		cfg:      cfg,
		log:      cfg.Log,
		out:      bufio.NewWriterSize(cfg.Out, 64*1024),
		analyzer: an,
		gen:      gen,
		line:     line,
		settings: params.Settings{
			EmissionBand: cfg.EmissionBand,
			EmissionGain: cfg.EmissionGain,
			Sway:         morph.Sway{Amplitude: cfg.SwayAmplitude, Speed: cfg.SwaySpeed},
		},
		params:       params.Defaults(),
		renderer:     renderer,
		profiler:     newProfiler(cfg.ProfileCSV, cfg.Log),
		width:        cfg.Width,
		height:       cfg.Height,
		renderHeight: renderHeight,
		events:       make(chan event, 16),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if cfg.Trails {
		trails, err := morph.NewTrails(gen.Current(), edges, cfg.TrailSpeedMin, cfg.TrailSpeedMax)
		if err != nil {
			return nil, err
		}
		a.trails = trails
	}
	a.refit()
	return a, nil
}

func (a *App) openSource() error {
	switch a.cfg.Source {
	case config.SourceSynth:
		a.source = newSynthSource(a.cfg.Seed)
		a.sourceLabel = "synth"
		a.log.Println("using synthetic audio")
	case config.SourceClip:
		path, err := config.ExpandPath(a.cfg.ClipPath)
		if err != nil {
			return err
		}
		clip, err := audio.OpenClip(path, a.cfg.BufferSize, a.cfg.ClipLoop)
		if err != nil {
			return fmt.Errorf("audio clip: %w", err)
		}
		a.clip = clip
		a.closers = append(a.closers, clip)
		a.source = audio.NewSpectrum(clip)
		a.sourceLabel = "clip=" + filepath.Base(path)
		a.log.Printf("playing \"%s\" @ %.0f Hz", path, clip.SampleRate())
	default:
		capture, err := audio.NewCapture(audio.Config{
			DeviceName: a.cfg.Device,
			BufferSize: a.cfg.BufferSize,
		})
		if err != nil {
			return fmt.Errorf("audio capture: %w", err)
		}
		a.closers = append(a.closers, capture)
		a.source = audio.NewSpectrum(capture)
		if info := capture.Device(); info != nil {
			a.sourceLabel = "mic=" + info.Name
			a.log.Printf("audio capture started on \"%s\" @ %.0f Hz", info.Name, capture.SampleRate())
		} else {
			a.sourceLabel = "mic"
			a.log.Printf("audio capture started @ %.0f Hz", capture.SampleRate())
		}
	}
	return nil
}

// Run starts the render loop until context cancellation or quit.
func (a *App) Run(ctx context.Context) error {
	frameDuration := time.Duration(float64(time.Second) / a.cfg.TargetFPS)
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	terminal := !a.renderer.Windowed()
	if terminal {
		a.enterScreen()
		defer a.exitScreen()
	}

	inputCtx, cancelInput := context.WithCancel(ctx)
	defer cancelInput()
	a.startInputListener(inputCtx)

	a.last = time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-a.events:
			if a.handleEvent(ev) {
				return nil
			}
		case <-ticker.C:
			if terminal {
				a.ensureDimensions()
			}
			now := time.Now()
			delta := now.Sub(a.last).Seconds()
			if delta <= 0 {
				delta = 1.0 / a.cfg.TargetFPS
			}
			a.last = now
			a.fps = 1.0 / delta

			frame, err := a.step(delta)
			if err != nil {
				return err
			}
			if err := a.output(frame); err != nil {
				if errors.Is(err, render.ErrRendererQuit) {
					return nil
				}
				return err
			}
			if a.clip != nil && a.clip.Done() {
				a.log.Println("clip finished")
				return nil
			}
		}
	}
}

// Close releases held resources.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	errs = append(errs, a.renderer.Close(), a.profiler.Close())
	return errors.Join(errs...)
}

// step runs one frame: analysis, parameter mapping, morphing and
// rasterisation.
func (a *App) step(delta float64) (render.Frame, error) {
	a.profiler.beginFrame()

	if err := a.source.Refresh(); err != nil {
		// Capture needs a moment to fill its buffer; keep the last frame.
		if !a.warned {
			a.warned = true
			a.debugf("audio: %v", err)
		}
	} else {
		f, err := a.analyzer.Process(a.source.ChannelSamples(analyzer.Left), a.source.ChannelSamples(analyzer.Right))
		if err != nil {
			return render.Frame{}, err
		}
		a.frame = f.Gate(a.cfg.NoiseFloor)
	}
	a.profiler.mark(stageAnalyze, 0)

	a.params.UpdateTime(delta)
	a.params.ApplyFrame(a.frame, a.settings, delta)

	ring, err := a.line.Update(a.gen, a.frame)
	if err != nil {
		return render.Frame{}, err
	}
	var walkers []morph.Walker
	if a.trails != nil {
		a.trails.Step(ring, a.frame.Amplitude, delta)
		walkers = a.trails.Walkers()
	}
	a.profiler.mark(stageMorph, len(ring))

	scene := render.Scene{
		Ring:    ring,
		Walkers: walkers,
		Axis:    a.gen.Axis(),
		Extent:  a.extent,
		Params:  a.params,
		Frame:   a.frame,
		Shape:   a.cfg.Shape,
		Steps:   a.gen.Steps(),
		Bezier:  a.line.Bezier(),
		Source:  a.sourceLabel,
	}
	frame := a.renderer.Render(scene, a.fps)
	a.profiler.mark(stageRender, len(ring))
	a.publish(scene)
	return frame, nil
}

func (a *App) output(frame render.Frame) error {
	defer a.profiler.endFrame(0)
	if frame.Present != nil {
		err := frame.Present(frame.Status)
		a.profiler.mark(stageOutput, 0)
		return err
	}

	a.out.WriteString("\x1b[H")
	for i, line := range frame.Lines {
		if i > 0 {
			a.out.WriteByte('\n')
		}
		a.out.WriteString(line)
	}
	if a.cfg.StatusBar {
		a.out.WriteByte('\n')
		a.out.WriteString(render.StatusBar(frame.Status, a.width, a.cfg.UseANSI))
	}
	err := a.out.Flush()
	a.profiler.mark(stageOutput, 0)
	return err
}

// refit recomputes the framing after the geometry changed.
func (a *App) refit() {
	a.extent = render.Extent(a.gen.Current(), a.gen.Target())
}

func (a *App) handleEvent(ev event) (quit bool) {
	switch ev.kind {
	case eventOutward, eventInward:
		outward := ev.kind == eventOutward
		a.gen.Generate(outward, a.cfg.SizeMultiplier)
		a.refit()
		a.debugf("generate outward=%t step=%d vertices=%d", outward, a.gen.Steps(), len(a.gen.Current()))
	case eventReset:
		a.gen.Reset()
		for _, s := range a.cfg.Warmup {
			a.gen.Generate(s.Outward, s.SizeMultiplier)
		}
		a.refit()
		if a.trails != nil {
			a.trails.Reseat(a.gen.Current())
		}
		a.debugf("reset to step %d", a.gen.Steps())
	case eventBezier:
		on := !a.line.Bezier()
		if ev.bezier != nil {
			on = *ev.bezier
		}
		a.line.SetBezier(on)
	case eventStyle:
		palette, stroke, color := a.renderer.PaletteName(), a.renderer.StrokeName(), a.renderer.ColorModeName()
		if ev.style.Palette != "" {
			palette = ev.style.Palette
		}
		if ev.style.Stroke != "" {
			stroke = ev.style.Stroke
		}
		if ev.style.ColorMode != "" {
			color = ev.style.ColorMode
		}
		a.renderer.Configure(palette, stroke, color)
	case eventRandomize:
		a.randomizeVisuals()
	case eventQuit:
		return true
	}
	return false
}

func (a *App) enqueue(ev event) error {
	select {
	case a.events <- ev:
		return nil
	default:
		return web.ErrBusy
	}
}

// Generate queues one generation pass.
func (a *App) Generate(outward bool) error {
	if outward {
		return a.enqueue(event{kind: eventOutward})
	}
	return a.enqueue(event{kind: eventInward})
}

// Reset queues a return to the configured warmup state.
func (a *App) Reset() error { return a.enqueue(event{kind: eventReset}) }

// SetBezier queues a smoothing change; nil toggles.
func (a *App) SetBezier(on *bool) error { return a.enqueue(event{kind: eventBezier, bezier: on}) }

// Style queues a renderer change. Empty names keep the current value.
func (a *App) Style(palette, stroke, colorMode string) error {
	return a.enqueue(event{kind: eventStyle, style: web.StyleRequest{Palette: palette, Stroke: stroke, ColorMode: colorMode}})
}

// Snapshot returns the state published by the last frame.
func (a *App) Snapshot() web.Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snap
}

func (a *App) publish(scene render.Scene) {
	snap := web.Snapshot{
		FPS:       a.fps,
		Source:    scene.Source,
		Shape:     scene.Shape,
		Axis:      scene.Axis.String(),
		Steps:     scene.Steps,
		Vertices:  len(scene.Ring),
		Bezier:    scene.Bezier,
		Amplitude: scene.Frame.Amplitude,
		Bands:     append([]float64(nil), scene.Frame.BandBuffers8[:]...),
		Renderer: web.RendererStatus{
			Palette:   a.renderer.PaletteName(),
			Stroke:    a.renderer.StrokeName(),
			ColorMode: a.renderer.ColorModeName(),
		},
		Points: make([][3]float64, len(scene.Ring)),
	}
	for i, p := range scene.Ring {
		snap.Points[i] = [3]float64{p.X, p.Y, p.Z}
	}
	for _, w := range scene.Walkers {
		snap.Walkers = append(snap.Walkers, [3]float64{w.Position.X, w.Position.Y, w.Position.Z})
	}

	a.mu.Lock()
	a.snap = snap
	a.mu.Unlock()
}

func (a *App) debugf(format string, args ...any) {
	if a.cfg.Debug {
		a.log.Printf(format, args...)
	}
}

func (a *App) ensureDimensions() {
	fd := int(os.Stdout.Fd())
	if fd < 0 {
		return
	}
	w, h, err := term.GetSize(fd)
	if err != nil || w <= 0 || h <= 0 {
		return
	}

	renderHeight := h
	if a.cfg.StatusBar && renderHeight > 1 {
		renderHeight--
	}

	if w == a.width && h == a.height && renderHeight == a.renderHeight {
		return
	}

	a.width = w
	a.height = h
	a.renderHeight = renderHeight
	a.renderer.Resize(w, renderHeight)
	a.out.WriteString("\x1b[2J")
}

func (a *App) startInputListener(ctx context.Context) {
	if err := keyboard.Open(); err != nil {
		a.log.Printf("keyboard input disabled: %v", err)
		return
	}

	closeOnce := &sync.Once{}
	go func() {
		<-ctx.Done()
		closeOnce.Do(func() {
			_ = keyboard.Close()
		})
	}()

	go func() {
		defer closeOnce.Do(func() {
			_ = keyboard.Close()
		})
		for {
			char, key, err := keyboard.GetKey()
			if err != nil {
				return
			}
			ev, ok := keyEvent(char, key)
			if !ok {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case a.events <- ev:
			}
			if ev.kind == eventQuit {
				return
			}
		}
	}()
}

// keyEvent maps a key press to an event.
func keyEvent(char rune, key keyboard.Key) (event, bool) {
	switch {
	case key == keyboard.KeyEsc || key == keyboard.KeyCtrlC:
		return event{kind: eventQuit}, true
	}
	switch char {
	case 'q', 'Q':
		return event{kind: eventQuit}, true
	case 'o', 'O':
		return event{kind: eventOutward}, true
	case 'i', 'I':
		return event{kind: eventInward}, true
	case 'r', 'R':
		return event{kind: eventReset}, true
	case 'b', 'B':
		return event{kind: eventBezier}, true
	case 'v', 'V':
		return event{kind: eventRandomize}, true
	}
	return event{}, false
}

func (a *App) randomizeVisuals() {
	palette := pickRandom(render.PaletteNames(), a.renderer.PaletteName(), a.rng)
	stroke := pickRandom(render.StrokeNames(), a.renderer.StrokeName(), a.rng)
	color := pickRandom(render.ColorModeNames(), a.renderer.ColorModeName(), a.rng)

	a.renderer.Configure(palette, stroke, color)
	a.debugf("randomize visuals -> palette=%s stroke=%s color=%s", palette, stroke, color)
}

func (a *App) enterScreen() {
	a.out.WriteString("\x1b[?1049h\x1b[2J\x1b[H\x1b[?25l")
	_ = a.out.Flush()
}

func (a *App) exitScreen() {
	a.out.WriteString("\x1b[?25h\x1b[?1049l\x1b[0m")
	_ = a.out.Flush()
}

func pickRandom(options []string, current string, rng *rand.Rand) string {
	if len(options) == 0 {
		return current
	}
	if len(options) == 1 {
		return options[0]
	}
	var choice string
	for attempts := 0; attempts < 4; attempts++ {
		choice = options[rng.Intn(len(options))]
		if !strings.EqualFold(choice, current) {
			return choice
		}
	}
	return options[rng.Intn(len(options))]
}
