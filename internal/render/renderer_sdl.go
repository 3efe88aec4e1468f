//go:build sdl

package render

import (
	"fmt"

	"github.com/veandco/go-sdl2/sdl"
)

// sdlPixelsPerCell sizes the window from the terminal dimensions.
const sdlPixelsPerCell = 10

type sdlState struct {
	initialized bool
	window      *sdl.Window
	renderer    *sdl.Renderer
	width       int32
	height      int32
	windowTitle string
}

func (r *Renderer) initSDL(width, height int) error {
	if r.sdl != nil {
		r.mode = backendSDL
		r.useANSI = false
		return nil
	}
	if err := sdl.InitSubSystem(sdl.INIT_VIDEO); err != nil {
		return err
	}
	r.sdl = &sdlState{
		initialized: true,
	}
	r.mode = backendSDL
	r.useANSI = false
	return nil
}

func (r *Renderer) ensureSDLResources() error {
	if r.sdl == nil {
		return fmt.Errorf("SDL backend not initialized")
	}
	state := r.sdl
	if !state.initialized {
		if err := sdl.InitSubSystem(sdl.INIT_VIDEO); err != nil {
			return err
		}
		state.initialized = true
	}
	w := int32(r.width * sdlPixelsPerCell)
	h := int32(r.height * sdlPixelsPerCell)
	if state.window == nil {
		window, err := sdl.CreateWindow(
			"kochizer",
			sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
			w, h,
			sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE,
		)
		if err != nil {
			return err
		}
		state.window = window
	}
	if state.renderer == nil {
		renderer, err := sdl.CreateRenderer(state.window, -1, sdl.RENDERER_ACCELERATED|sdl.RENDERER_PRESENTVSYNC)
		if err != nil {
			return err
		}
		state.renderer = renderer
	}
	if state.width != w || state.height != h {
		_ = state.renderer.SetLogicalSize(w, h)
		state.width = w
		state.height = h
	}
	return nil
}

func (r *Renderer) renderSDL(scene Scene, status string) Frame {
	if err := r.ensureSDLResources(); err != nil {
		return Frame{
			Status: fmt.Sprintf("SDL init error: %v", err),
			Present: func(string) error {
				return err
			},
		}
	}
	state := r.sdl
	width, height := int(state.width), int(state.height)
	vw := r.viewFor(scene, width, height, 1)
	ring := scene.Ring
	walkers := scene.Walkers
	p := scene.Params
	level := clamp01(p.Emission)

	return Frame{
		Status: status,
		Present: func(status string) error {
			if status != "" && status != state.windowTitle && state.window != nil {
				state.window.SetTitle(status)
				state.windowTitle = status
			}
			_ = state.renderer.SetDrawColor(0, 0, 0, 255)
			if err := state.renderer.Clear(); err != nil {
				return err
			}
			n := len(ring) - 1
			for i := 1; i <= n; i++ {
				x0, y0 := vw.project(ring[i-1])
				x1, y1 := vw.project(ring[i])
				h, s, v := r.colorFromMode(float64(i-1)/float64(n), level, p)
				rr, gg, bb := hsvToRGB(h, s, v)
				_ = state.renderer.SetDrawColor(byte(rr*255), byte(gg*255), byte(bb*255), 255)
				_ = state.renderer.DrawLine(int32(x0), int32(y0), int32(x1), int32(y1))
			}
			for _, w := range walkers {
				x, y := vw.project(w.Position)
				h, s, v := r.colorFromMode(w.Hue, clamp01(p.TrailGlow), p)
				rr, gg, bb := hsvToRGB(h, s, v)
				_ = state.renderer.SetDrawColor(byte(rr*255), byte(gg*255), byte(bb*255), 255)
				_ = state.renderer.FillRect(&sdl.Rect{X: int32(x) - 2, Y: int32(y) - 2, W: 5, H: 5})
			}
			state.renderer.Present()
			for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
				switch event.(type) {
				case *sdl.QuitEvent:
					return ErrRendererQuit
				}
			}
			return nil
		},
	}
}

func (r *Renderer) resizeSDL() {
	if r.sdl == nil {
		return
	}
	r.sdl.width = 0
	r.sdl.height = 0
}

func (r *Renderer) closeSDL() error {
	if r.sdl == nil {
		return nil
	}
	if r.sdl.renderer != nil {
		r.sdl.renderer.Destroy()
		r.sdl.renderer = nil
	}
	if r.sdl.window != nil {
		r.sdl.window.Destroy()
		r.sdl.window = nil
	}
	if r.sdl.initialized {
		sdl.QuitSubSystem(sdl.INIT_VIDEO)
		r.sdl.initialized = false
	}
	r.sdl = nil
	return nil
}

func (r *Renderer) windowedSDL() bool {
	return r.sdl != nil
}

func SupportsSDL() bool { return true }
