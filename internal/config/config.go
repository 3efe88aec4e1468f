package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/guidoenr/kochizer/internal/analyzer"
	"github.com/guidoenr/kochizer/internal/fractal"
	"github.com/guidoenr/kochizer/internal/render"
	"github.com/mitchellh/go-homedir"
)

// ErrInvalid reports a configuration value that cannot be used.
var ErrInvalid = errors.New("config: invalid value")

// Audio sources.
const (
	SourceMic   = "mic"
	SourceClip  = "clip"
	SourceSynth = "synth"
)

// Config holds all runtime configuration. Field tags name the keys of the
// optional JSON config file.
type Config struct {
	// Audio input
	Source     string  `json:"source"`
	Device     string  `json:"device"`
	ClipPath   string  `json:"clip"`
	ClipLoop   bool    `json:"loop"`
	BufferSize int     `json:"bufferSize"`
	Channel    string  `json:"channel"`
	PeakSeed   float64 `json:"peakSeed"`
	ClampEnv   bool    `json:"clampEnvelope"`
	NoiseFloor float64 `json:"noiseFloor"`
	Seed       int64   `json:"seed"` // synthetic source seed, 0 means time based

	// Fractal
	Shape          string             `json:"shape"`
	Axis           string             `json:"axis"`
	Size           float64            `json:"size"`
	Profile        string             `json:"profile"`
	Keyframes      []fractal.Keyframe `json:"keyframes,omitempty"`
	Warmup         []fractal.Step     `json:"warmup"`
	SizeMultiplier float64            `json:"sizeMultiplier"`

	// Morph
	EdgeBands      []int   `json:"edgeBands"`
	LerpAmount     float64 `json:"lerpAmount"`
	Bezier         bool    `json:"bezier"`
	BezierVertices int     `json:"bezierVertices"`
	SpringFreq     float64 `json:"springFrequency"`
	SpringDamping  float64 `json:"springDamping"`
	Trails         bool    `json:"trails"`
	TrailSpeedMin  float64 `json:"trailSpeedMin"`
	TrailSpeedMax  float64 `json:"trailSpeedMax"`
	EmissionBand   int     `json:"emissionBand"`
	EmissionGain   float64 `json:"emissionMultiplier"`
	SwayAmplitude  float64 `json:"swayAmplitude"`
	SwaySpeed      float64 `json:"swaySpeed"`

	// Output
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	TargetFPS  float64 `json:"targetFPS"`
	Palette    string  `json:"palette"`
	Stroke     string  `json:"stroke"`
	ColorMode  string  `json:"colorMode"`
	NoColor    bool    `json:"noColor"`
	StatusBar  bool    `json:"statusBar"`
	Backend    string  `json:"backend"`
	WebPort    int     `json:"webPort"`
	ProfileCSV string  `json:"profileCSV"`
	Debug      bool    `json:"debug"`
}

// Defaults returns the configuration used when nothing else is given.
func Defaults() Config {
	return Config{
		Source:     SourceMic,
		ClipLoop:   true,
		BufferSize: 2048,
		Channel:    analyzer.Stereo.String(),

		Shape:          "triangle",
		Axis:           "z",
		Size:           1,
		Profile:        "koch",
		Warmup:         []fractal.Step{{Outward: true, SizeMultiplier: 1}},
		SizeMultiplier: 1,

		EdgeBands:      []int{1, 3, 5, 2, 4, 6, 0, 7},
		LerpAmount:     0.5,
		BezierVertices: 8,
		SpringFreq:     6,
		SpringDamping:  0.6,
		Trails:         true,
		TrailSpeedMin:  0.2,
		TrailSpeedMax:  2,
		EmissionBand:   0,
		EmissionGain:   1.5,
		SwayAmplitude:  30,
		SwaySpeed:      6,

		Width:     80,
		Height:    24,
		TargetFPS: 30,
		Palette:   "default",
		Stroke:    "dots",
		ColorMode: "chromatic",
		StatusBar: true,
		Backend:   "terminal",
	}
}

// Load starts from Defaults, overlays the JSON file at path when path is not
// empty, then applies KOCHIZER_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	full, err := ExpandPath(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", full, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Source = envStr("KOCHIZER_SOURCE", c.Source)
	c.Device = envStr("KOCHIZER_DEVICE", c.Device)
	c.ClipPath = envStr("KOCHIZER_CLIP", c.ClipPath)
	c.ClipLoop = envBool("KOCHIZER_LOOP", c.ClipLoop)
	c.BufferSize = envInt("KOCHIZER_BUFFER_SIZE", c.BufferSize)
	c.Channel = envStr("KOCHIZER_CHANNEL", c.Channel)
	c.PeakSeed = envFloat("KOCHIZER_PEAK_SEED", c.PeakSeed)
	c.NoiseFloor = envFloat("KOCHIZER_NOISE_FLOOR", c.NoiseFloor)

	c.Shape = envStr("KOCHIZER_SHAPE", c.Shape)
	c.Axis = envStr("KOCHIZER_AXIS", c.Axis)
	c.Size = envFloat("KOCHIZER_SIZE", c.Size)
	c.Profile = envStr("KOCHIZER_PROFILE", c.Profile)
	c.SizeMultiplier = envFloat("KOCHIZER_SIZE_MULTIPLIER", c.SizeMultiplier)
	c.EdgeBands = envInts("KOCHIZER_EDGE_BANDS", c.EdgeBands)
	c.LerpAmount = envFloat("KOCHIZER_LERP", c.LerpAmount)
	c.Bezier = envBool("KOCHIZER_BEZIER", c.Bezier)
	c.Trails = envBool("KOCHIZER_TRAILS", c.Trails)

	c.TargetFPS = envFloat("KOCHIZER_FPS", c.TargetFPS)
	c.Palette = envStr("KOCHIZER_PALETTE", c.Palette)
	c.Stroke = envStr("KOCHIZER_STROKE", c.Stroke)
	c.ColorMode = envStr("KOCHIZER_COLOR_MODE", c.ColorMode)
	c.Backend = envStr("KOCHIZER_BACKEND", c.Backend)
	c.WebPort = envInt("KOCHIZER_WEB_PORT", c.WebPort)
	c.Debug = envBool("KOCHIZER_DEBUG", c.Debug)
}

// Validate rejects values nothing downstream can work with.
func (c Config) Validate() error {
	switch c.Source {
	case SourceMic, SourceSynth:
	case SourceClip:
		if c.ClipPath == "" {
			return fmt.Errorf("%w: clip source needs a clip path", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: source %q (mic|clip|synth)", ErrInvalid, c.Source)
	}
	if c.BufferSize < analyzer.SampleCount*2 {
		return fmt.Errorf("%w: buffer-size must be at least %d (got %d)", ErrInvalid, analyzer.SampleCount*2, c.BufferSize)
	}
	if _, err := analyzer.ParseChannel(c.Channel); err != nil {
		return err
	}
	if c.PeakSeed < 0 {
		return fmt.Errorf("%w: peak seed %g", ErrInvalid, c.PeakSeed)
	}
	if _, err := fractal.ShapeEdges(c.Shape); err != nil {
		return err
	}
	if _, err := fractal.ParseAxis(c.Axis); err != nil {
		return err
	}
	if c.Size <= 0 {
		return fmt.Errorf("%w: size must be positive (got %g)", ErrInvalid, c.Size)
	}
	if _, err := c.GeneratorProfile(); err != nil {
		return err
	}
	for i, b := range c.EdgeBands {
		if b < 0 || b >= analyzer.Bands8.Count() {
			return fmt.Errorf("%w: edge band %d is %d", ErrInvalid, i, b)
		}
	}
	if c.EmissionBand < 0 || c.EmissionBand >= analyzer.Bands8.Count() {
		return fmt.Errorf("%w: emission band %d", ErrInvalid, c.EmissionBand)
	}
	if c.BezierVertices < 1 {
		return fmt.Errorf("%w: bezier vertices must be positive (got %d)", ErrInvalid, c.BezierVertices)
	}
	if c.TrailSpeedMin < 0 || c.TrailSpeedMax < c.TrailSpeedMin {
		return fmt.Errorf("%w: trail speed range [%g,%g]", ErrInvalid, c.TrailSpeedMin, c.TrailSpeedMax)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: dimensions width=%d height=%d", ErrInvalid, c.Width, c.Height)
	}
	if c.TargetFPS <= 0 {
		return fmt.Errorf("%w: fps must be positive (got %.2f)", ErrInvalid, c.TargetFPS)
	}
	switch strings.ToLower(c.Backend) {
	case "terminal":
	case "sdl":
		if !render.SupportsSDL() {
			return fmt.Errorf("%w: backend sdl needs a build with -tags sdl", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: backend %q (terminal|sdl)", ErrInvalid, c.Backend)
	}
	if c.WebPort < 0 || c.WebPort > 65535 {
		return fmt.Errorf("%w: web port %d", ErrInvalid, c.WebPort)
	}
	return nil
}

// WindowBackend reports whether frames go to an SDL window instead of the
// terminal.
func (c Config) WindowBackend() bool { return strings.EqualFold(c.Backend, "sdl") }

// GeneratorProfile resolves the explicit keyframes, or the named preset when
// none are given.
func (c Config) GeneratorProfile() (fractal.Profile, error) {
	if len(c.Keyframes) > 0 {
		return fractal.NewProfile(c.Keyframes)
	}
	return fractal.ProfileByName(c.Profile)
}

// ExpandPath resolves a leading ~ and environment variables.
func ExpandPath(path string) (string, error) {
	p, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("expand %q: %w", path, err)
	}
	return os.ExpandEnv(p), nil
}

// ArgPath returns the value of --config/-c in args, if present. It lets the
// file be loaded before the remaining flags are parsed on top of it.
func ArgPath(args []string) string {
	for i, arg := range args {
		for _, name := range []string{"--config", "-config", "-c"} {
			if arg == name && i+1 < len(args) {
				return args[i+1]
			}
			if v, ok := strings.CutPrefix(arg, name+"="); ok {
				return v
			}
		}
	}
	return envStr("KOCHIZER_CONFIG", "")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// envInts reads a comma separated list.
func envInts(key string, fallback []int) []int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	out, err := ParseInts(v)
	if err != nil {
		return fallback
	}
	return out
}

// ParseInts parses a comma separated list such as "1,3,5".
func ParseInts(v string) ([]int, error) {
	parts := strings.Split(v, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer list", ErrInvalid, v)
		}
		out = append(out, n)
	}
	return out, nil
}
