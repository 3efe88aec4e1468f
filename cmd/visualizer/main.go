package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guidoenr/kochizer/internal/app"
	"github.com/guidoenr/kochizer/internal/audio"
	"github.com/guidoenr/kochizer/internal/config"
	"github.com/guidoenr/kochizer/internal/web"
	"github.com/integrii/flaggy"
	"golang.org/x/term"
)

const (
	appName = "kochizer"
	appDesc = "Koch fractal audio visualizer for the terminal"
)

var version = "dev"

func main() {
	cfg, err := config.Load(config.ArgPath(os.Args[1:]))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	listDevices, err := parseFlags(&cfg)
	if err != nil {
		log.Fatalf("parse arguments: %v", err)
	}

	logger := log.New(os.Stdout, "["+appName+"] ", log.LstdFlags)
	if !cfg.Debug {
		logger.SetOutput(os.Stderr)
		logger.SetFlags(0)
	}

	if listDevices {
		if err := audio.Initialize(); err != nil {
			logger.Fatalf("failed to initialize PortAudio: %v", err)
		}
		defer audio.Terminate()
		printDevices(logger)
		return
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}

	if fd := int(os.Stdout.Fd()); fd >= 0 && !cfg.WindowBackend() {
		if w, h, err := term.GetSize(fd); err == nil {
			if w > 0 {
				cfg.Width = w
			}
			if h > 0 {
				cfg.Height = h
			}
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Source == config.SourceMic {
		if err := audio.Initialize(); err != nil {
			logger.Fatalf("failed to initialize PortAudio: %v", err)
		}
		defer audio.Terminate()
	}

	a, err := app.New(app.Config{
		Config:  cfg,
		UseANSI: !cfg.NoColor,
		Log:     logger,
	})
	if err != nil {
		logger.Fatalf("failed to create app: %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "cleanup error: %v\n", err)
		}
	}()

	if cfg.WebPort > 0 {
		srv := web.NewServer(a, log.New(logger.Writer(), "[web] ", logger.Flags()))
		go func() {
			if err := srv.Start(ctx, cfg.WebPort); err != nil {
				logger.Printf("web server stopped: %v", err)
			}
		}()
	}

	if err := a.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println("\nExiting...")
			return
		}
		logger.Fatalf("runtime error: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
}

// parseFlags binds the command line onto cfg, which already holds the file
// and environment values, so only flags that are given override them.
func parseFlags(cfg *config.Config) (listDevices bool, err error) {
	parser := flaggy.NewParser(appName)
	parser.Description = appDesc
	parser.Version = version

	listDevicesCmd := flaggy.Subcommand{
		Name:        "list-devices",
		ShortName:   "ld",
		Description: "list audio input devices and exit",
	}
	parser.AttachSubcommand(&listDevicesCmd, 1)

	// Read before parsing by config.ArgPath; declared so flaggy accepts it.
	var configPath string
	parser.String(&configPath, "c", "config", "JSON config file")

	parser.String(&cfg.Source, "s", "source", "audio source (mic|clip|synth)")
	parser.String(&cfg.Device, "d", "device", "PortAudio input device (substring match)")
	parser.String(&cfg.ClipPath, "", "clip", "WAV file played with --source clip")
	parser.Bool(&cfg.ClipLoop, "", "loop", "loop the clip")
	parser.Int(&cfg.BufferSize, "n", "buffer-size", "samples kept per channel")
	parser.String(&cfg.Channel, "ch", "channel", "channel mode (stereo|left|right)")
	parser.Float64(&cfg.PeakSeed, "", "peak-seed", "initial band peak")
	parser.Bool(&cfg.ClampEnv, "", "clamp-envelope", "stop buffered bands at zero")
	parser.Float64(&cfg.NoiseFloor, "", "noise-floor", "ignore band levels below this value (0-1)")
	parser.Int64(&cfg.Seed, "", "seed", "synthetic source seed")

	parser.String(&cfg.Shape, "", "shape", "initiator (triangle|square|pentagon|hexagon|heptagon|octagon)")
	parser.String(&cfg.Axis, "", "axis", "rotation axis (x|y|z)")
	parser.Float64(&cfg.Size, "", "size", "initiator radius")
	parser.String(&cfg.Profile, "", "profile", "generator profile (koch|square|spike|flat)")
	parser.Float64(&cfg.SizeMultiplier, "", "size-multiplier", "displacement scale of keyboard passes")

	var edgeBands string
	parser.String(&edgeBands, "", "edge-bands", "comma separated band index per edge")
	parser.Float64(&cfg.LerpAmount, "", "lerp", "morph amount when no edge bands are set")
	parser.Bool(&cfg.Bezier, "", "bezier", "smooth the curve")
	parser.Int(&cfg.BezierVertices, "", "bezier-vertices", "vertices per bezier window")
	parser.Float64(&cfg.SpringFreq, "", "spring", "per-edge spring frequency, 0 disables")
	parser.Float64(&cfg.SpringDamping, "", "damping", "per-edge spring damping")
	parser.Bool(&cfg.Trails, "", "trails", "draw trail walkers")
	parser.Int(&cfg.EmissionBand, "", "emission-band", "band driving line brightness")
	parser.Float64(&cfg.EmissionGain, "", "emission", "line brightness multiplier")
	parser.Float64(&cfg.SwayAmplitude, "", "sway", "view sway in degrees, 0 disables")

	parser.Int(&cfg.Width, "", "width", "frame width")
	parser.Int(&cfg.Height, "", "height", "frame height")
	parser.Float64(&cfg.TargetFPS, "f", "fps", "target frames per second")
	parser.String(&cfg.Palette, "p", "palette", "glyph palette (default|box|lines|spark)")
	parser.String(&cfg.Stroke, "", "stroke", "stroke style (dots|slopes|blocks)")
	parser.String(&cfg.ColorMode, "", "color-mode", "color mode (chromatic|fire|aurora|mono)")
	parser.Bool(&cfg.NoColor, "", "no-color", "disable ANSI color output")
	parser.Bool(&cfg.StatusBar, "", "status", "display status bar")
	parser.String(&cfg.Backend, "b", "backend", "output backend (terminal|sdl)")
	parser.Int(&cfg.WebPort, "w", "web", "serve the web view on this port, 0 disables")
	parser.String(&cfg.ProfileCSV, "", "profile-csv", "write per-frame stage timings to this CSV file")
	parser.Bool(&cfg.Debug, "", "debug", "enable verbose logging")

	if err := parser.Parse(); err != nil {
		return false, err
	}
	if edgeBands != "" {
		bands, err := config.ParseInts(edgeBands)
		if err != nil {
			return false, err
		}
		cfg.EdgeBands = bands
	}
	return listDevicesCmd.Used, nil
}

func printDevices(logger *log.Logger) {
	devices, err := audio.InputDevices()
	if err != nil {
		logger.Fatalf("list devices: %v", err)
	}
	if err := audio.WriteDeviceTable(os.Stdout, devices); err != nil {
		logger.Fatalf("list devices: %v", err)
	}
	if dev, err := audio.AutoDetectDevice(); err == nil && dev != nil {
		fmt.Printf("\nauto-detected input: %s (%.0f Hz, %d channels)\n", dev.Name, dev.DefaultSampleRate, dev.MaxInputChannels)
	}
}
