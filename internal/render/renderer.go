package render

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/guidoenr/kochizer/internal/analyzer"
	"github.com/guidoenr/kochizer/internal/fractal"
	"github.com/guidoenr/kochizer/internal/morph"
	"github.com/guidoenr/kochizer/internal/params"
)

// ErrRendererQuit is returned by Frame.Present when the output window was
// closed.
var ErrRendererQuit = errors.New("renderer closed")

type colorMode string

const (
	colorModeChromatic colorMode = "chromatic"
	colorModeFire      colorMode = "fire"
	colorModeAurora    colorMode = "aurora"
	colorModeMono      colorMode = "mono"
)

var colorModeNames = []string{
	string(colorModeChromatic),
	string(colorModeFire),
	string(colorModeAurora),
	string(colorModeMono),
}

// ColorModeNames returns the supported color modes.
func ColorModeNames() []string {
	out := make([]string, len(colorModeNames))
	copy(out, colorModeNames)
	sort.Strings(out)
	return out
}

func parseColorMode(name string) colorMode {
	switch strings.ToLower(name) {
	case "fire":
		return colorModeFire
	case "aurora", "cool":
		return colorModeAurora
	case "mono", "monochrome", "bw", "gray":
		return colorModeMono
	default:
		return colorModeChromatic
	}
}

type backend int

const (
	backendTerminal backend = iota
	backendSDL
)

// terminalCellAspect is the height/width ratio of a terminal character cell.
const terminalCellAspect = 2.0

// Scene is everything drawn in one frame.
type Scene struct {
	Ring    fractal.Ring
	Walkers []morph.Walker
	Axis    fractal.Axis
	Extent  float64 // world radius fitted to the screen; 0 derives it from Ring
	Params  params.Parameters
	Frame   analyzer.Frame
	Shape   string
	Steps   int
	Bezier  bool
	Source  string
}

// Renderer rasterises the morphing curve into ANSI text frames, or into an
// SDL window when built with -tags sdl.
type Renderer struct {
	width       int
	height      int
	palette     []rune
	paletteName string
	stroke      strokeFunc
	strokeName  string
	colorMode   colorMode
	useANSI     bool
	mode        backend
	sdl         *sdlState

	statusBuilder strings.Builder
}

// Frame contains the rendered lines and status text. Present is set by the
// SDL backend and draws the frame into its window.
type Frame struct {
	Lines   []string
	Status  string
	Present func(status string) error
}

var (
	resetANSI       = "\x1b[0m"
	precomputedANSI [256]string
)

func init() {
	for i := range precomputedANSI {
		precomputedANSI[i] = "\x1b[38;5;" + strconv.Itoa(i) + "m"
	}
}

// New creates a terminal Renderer.
func New(width, height int, paletteName, strokeName, colorModeName string, useANSI bool) (*Renderer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions: width=%d height=%d", width, height)
	}

	r := &Renderer{
		width:   width,
		height:  height,
		useANSI: useANSI,
	}
	r.Configure(paletteName, strokeName, colorModeName)
	return r, nil
}

// EnableSDL switches output to an SDL window.
func (r *Renderer) EnableSDL() error {
	return r.initSDL(r.width, r.height)
}

// Close releases the SDL window, if any.
func (r *Renderer) Close() error {
	return r.closeSDL()
}

// Windowed reports whether frames go to an SDL window.
func (r *Renderer) Windowed() bool { return r.windowedSDL() }

// Configure updates palette, stroke and color behaviour dynamically.
func (r *Renderer) Configure(paletteName, strokeName, colorModeName string) {
	if paletteName == "" {
		paletteName = "default"
	}
	r.palette = Palette(paletteName)
	r.paletteName = paletteName

	key := strings.ToLower(strokeName)
	if fn, ok := strokeRegistry[key]; ok {
		r.stroke = fn
		r.strokeName = key
	} else {
		r.stroke = strokeDots
		r.strokeName = "dots"
	}

	r.colorMode = parseColorMode(colorModeName)
}

// Resize updates the framebuffer dimensions.
func (r *Renderer) Resize(width, height int) {
	changed := false
	if width > 0 && r.width != width {
		r.width = width
		changed = true
	}
	if height > 0 && r.height != height {
		r.height = height
		changed = true
	}
	if changed {
		r.resizeSDL()
	}
}

func (r *Renderer) PaletteName() string   { return r.paletteName }
func (r *Renderer) StrokeName() string    { return r.strokeName }
func (r *Renderer) ColorModeName() string { return string(r.colorMode) }

type cell struct {
	level float64
	hue   float64
	glyph rune
}

type grid struct {
	width, height int
	cells         []cell
}

func newGrid(width, height int) *grid {
	return &grid{width: width, height: height, cells: make([]cell, width*height)}
}

func (g *grid) at(x, y int) *cell {
	if x < 0 || y < 0 || x >= g.width || y >= g.height {
		return nil
	}
	return &g.cells[y*g.width+x]
}

// Render rasterises the scene.
func (r *Renderer) Render(scene Scene, fps float64) Frame {
	if r.width <= 0 || r.height <= 0 {
		return Frame{}
	}
	status := r.buildStatus(scene, fps)

	if r.mode == backendSDL {
		return r.renderSDL(scene, status)
	}

	g := r.rasterize(scene, terminalCellAspect)
	return Frame{
		Lines:  r.assembleLines(g, scene.Params),
		Status: status,
	}
}

func (r *Renderer) viewFor(scene Scene, width, height int, cellAspect float64) view {
	extent := scene.Extent
	if extent <= 0 {
		extent = Extent(scene.Ring)
	}
	// Leave a margin for the audio driven displacement.
	return newView(scene.Axis, extent*1.05, scene.Params.Zoom, scene.Params.Yaw, width, height, cellAspect)
}

func (r *Renderer) rasterize(scene Scene, cellAspect float64) *grid {
	g := newGrid(r.width, r.height)
	if len(scene.Ring) < 2 {
		return g
	}
	vw := r.viewFor(scene, r.width, r.height, cellAspect)
	level := clamp01(scene.Params.Emission)
	if level < 0.15 {
		level = 0.15
	}

	n := len(scene.Ring) - 1
	x0, y0 := vw.project(scene.Ring[0])
	for i := 1; i <= n; i++ {
		x1, y1 := vw.project(scene.Ring[i])
		hue := float64(i-1) / float64(n)
		r.plotSegment(g, x0, y0, x1, y1, level, hue)
		x0, y0 = x1, y1
	}

	glow := clamp01(scene.Params.TrailGlow)
	for _, w := range scene.Walkers {
		x, y := vw.project(w.Position)
		if c := g.at(int(math.Round(x)), int(math.Round(y))); c != nil {
			c.level = math.Max(c.level, glow)
			c.hue = w.Hue
			c.glyph = trailGlyph
		}
	}
	return g
}

// plotSegment walks the segment one cell at a time, keeping the brightest
// value per cell.
func (r *Renderer) plotSegment(g *grid, x0, y0, x1, y1, level, hue float64) {
	dx, dy := x1-x0, y1-y0
	steps := int(math.Ceil(math.Max(math.Abs(dx), math.Abs(dy))))
	if steps < 1 {
		steps = 1
	}
	glyph := r.stroke(level, dx, dy, r.palette)
	for s := 0; s <= steps; s++ {
		t := float64(s) / float64(steps)
		x := int(math.Round(x0 + dx*t))
		y := int(math.Round(y0 + dy*t))
		c := g.at(x, y)
		if c == nil || c.glyph == trailGlyph || c.level > level {
			continue
		}
		c.level = level
		c.hue = hue
		c.glyph = glyph
	}
}

func (r *Renderer) assembleLines(g *grid, p params.Parameters) []string {
	width, height := g.width, g.height
	lines := make([]string, height)
	useANSI := r.useANSI

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > height {
		numWorkers = height
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	var wg sync.WaitGroup
	rowJobs := make(chan int, numWorkers)

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range rowJobs {
				var builder strings.Builder
				builder.Grow(width * 8)
				lastColor := -1
				for x := 0; x < width; x++ {
					c := g.cells[y*width+x]
					char := c.glyph
					if char == 0 {
						char = ' '
					}
					if useANSI && char != ' ' {
						h, s, v := r.colorFromMode(c.hue, c.level, p)
						fg := hsvToANSI(h, s, v)
						if fg != lastColor {
							builder.WriteString(colorCode(fg))
							lastColor = fg
						}
					}
					builder.WriteRune(char)
				}
				if useANSI {
					builder.WriteString(resetANSI)
				}
				lines[y] = builder.String()
			}
		}()
	}

	for y := 0; y < height; y++ {
		rowJobs <- y
	}
	close(rowJobs)
	wg.Wait()
	return lines
}

func (r *Renderer) colorFromMode(pathHue, brightness float64, p params.Parameters) (float64, float64, float64) {
	shift := math.Mod(p.ColorShift/(2*math.Pi), 1.0)
	if shift < 0 {
		shift += 1.0
	}

	var h, s, v float64
	switch r.colorMode {
	case colorModeFire:
		h = clamp01(0.02 + pathHue*0.08 + shift*0.1)
		s = clamp01(0.7 + brightness*0.25)
		v = clamp01(0.35 + brightness*0.8)
	case colorModeAurora:
		h = clamp01(0.45 + pathHue*0.25 + shift*0.3)
		s = clamp01(0.45 + p.Saturation*0.45)
		v = clamp01(0.28 + brightness*0.85)
	case colorModeMono:
		h = shift
		s = 0.0
		v = clamp01(0.2 + brightness*0.8)
	default:
		h = math.Mod(shift+pathHue, 1.0)
		s = clamp01(0.35 + p.Saturation*0.5)
		v = clamp01(0.3 + brightness*0.7*math.Max(0.2, p.Contrast))
	}
	return h, s, v
}

func colorCode(index int) string {
	if index < 0 {
		index = 0
	} else if index >= len(precomputedANSI) {
		index = len(precomputedANSI) - 1
	}
	return precomputedANSI[index]
}

func hsvToANSI(h, s, v float64) int {
	r, g, b := hsvToRGB(h, s, v)
	return rgbToANSI(r, g, b)
}

func hsvToRGB(h, s, v float64) (float64, float64, float64) {
	h = clamp01(h)
	s = clamp01(s)
	v = clamp01(v)

	if s == 0 {
		return v, v, v
	}

	hv := h * 6.0
	i := math.Floor(hv)
	f := hv - i
	p := v * (1.0 - s)
	q := v * (1.0 - s*f)
	t := v * (1.0 - s*(1.0-f))

	switch int(i) % 6 {
	case 0:
		return v, t, p
	case 1:
		return q, v, p
	case 2:
		return p, v, t
	case 3:
		return p, q, v
	case 4:
		return t, p, v
	default:
		return v, p, q
	}
}

func rgbToANSI(r, g, b float64) int {
	r = clamp01(r)
	g = clamp01(g)
	b = clamp01(b)

	// Grayscale ramp for unsaturated colors
	if math.Abs(r-g) < 0.02 && math.Abs(g-b) < 0.02 {
		gray := int(clampFloat(math.Round(r*23), 0, 23))
		return 232 + gray
	}

	ri := int(clampFloat(r*5+0.5, 0, 5))
	gi := int(clampFloat(g*5+0.5, 0, 5))
	bi := int(clampFloat(b*5+0.5, 0, 5))

	return 16 + 36*ri + 6*gi + bi
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func (r *Renderer) buildStatus(scene Scene, fps float64) string {
	builder := &r.statusBuilder
	builder.Reset()
	builder.Grow(128)
	builder.WriteString(colorModeLabel(r.colorMode))
	builder.WriteString(" | ")
	builder.WriteString(scene.Shape)
	builder.WriteString(" step ")
	builder.WriteString(strconv.Itoa(scene.Steps))
	builder.WriteString(" verts ")
	builder.WriteString(strconv.Itoa(len(scene.Ring)))
	if scene.Bezier {
		builder.WriteString(" bezier")
	}
	builder.WriteString(" | amp ")
	appendFloat(builder, scene.Frame.Amplitude, 2)
	builder.WriteString(" bands")
	for _, v := range scene.Frame.BandBuffers8 {
		builder.WriteByte(' ')
		builder.WriteRune(meterGlyph(v))
	}
	builder.WriteString(" | fps ")
	appendFloat(builder, fps, 1)
	if scene.Source != "" {
		builder.WriteString(" | ")
		builder.WriteString(scene.Source)
	}
	return builder.String()
}

var meterRamp = []rune(" ▁▂▃▄▅▆▇█")

func meterGlyph(v float64) rune {
	return meterRamp[clampInt(int(clamp01(v)*float64(len(meterRamp)-1)+0.5), 0, len(meterRamp)-1)]
}

func colorModeLabel(mode colorMode) string {
	switch mode {
	case colorModeFire:
		return "FIRE"
	case colorModeAurora:
		return "AURORA"
	case colorModeMono:
		return "MONO"
	default:
		return "CHROMATIC"
	}
}

func appendFloat(builder *strings.Builder, value float64, precision int) {
	var buf [32]byte
	b := strconv.AppendFloat(buf[:0], value, 'f', precision, 64)
	builder.Write(b)
}

var statusStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("252")).
	Background(lipgloss.Color("236"))

// StatusBar pads or truncates text to width and styles it when color output
// is on.
func StatusBar(text string, width int, useANSI bool) string {
	if width <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) > width {
		text = string(runes[:width])
	} else {
		text += strings.Repeat(" ", width-len(runes))
	}
	if !useANSI {
		return text
	}
	return statusStyle.Render(text)
}
