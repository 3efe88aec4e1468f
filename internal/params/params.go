package params

import (
	"math"

	"github.com/guidoenr/kochizer/internal/analyzer"
	"github.com/guidoenr/kochizer/internal/morph"
)

// Parameters is the per-frame visual state derived from the audio features.
type Parameters struct {
	Time       float64
	Clock      float64 // wall clock seconds, drives the sway
	Speed      float64
	Emission   float64 // line brightness, 0..~2
	TrailGlow  float64
	ColorShift float64 // radians
	Saturation float64
	Zoom       float64
	Yaw        float64 // degrees
	Contrast   float64
}

// Settings are the user tunables that shape how features map to parameters.
type Settings struct {
	EmissionBand int
	EmissionGain float64
	Sway         morph.Sway
}

// Defaults returns the calm idle state.
func Defaults() Parameters {
	return Parameters{
		Speed:      0.05,
		Emission:   0.35,
		TrailGlow:  0.3,
		Saturation: 0.8,
		Zoom:       1,
		Contrast:   0.8,
	}
}

// UpdateTime advances the internal timers based on frame delta.
func (p *Parameters) UpdateTime(delta float64) {
	p.Time += delta * p.Speed
	p.Clock += delta
}

// ApplyFrame updates parameters from one analyzer frame.
func (p *Parameters) ApplyFrame(f analyzer.Frame, s Settings, delta float64) {
	p.Yaw = s.Sway.Yaw(p.Clock)

	if f.Silent() {
		p.applySilenceDecay(delta)
		return
	}

	band := 0
	if s.EmissionBand >= 0 && s.EmissionBand < len(f.BandBuffers8) {
		band = s.EmissionBand
	}
	gain := s.EmissionGain
	if gain <= 0 {
		gain = 1
	}
	p.Emission = clamp(f.BandBuffers8[band]*gain, 0, 2)

	// The buffered sum shares the raw peak and can overshoot it.
	level := f.Amplitude
	buffered := clamp(f.AmplitudeBuffer, 0, 1)

	p.TrailGlow = lerp(p.TrailGlow, 0.3+buffered*0.7, 0.4)
	p.Speed = lerp(p.Speed, 0.08+level*0.7, 0.4)
	p.ColorShift = math.Mod(p.ColorShift+f.BandBuffers8[0]*0.05+f.BandBuffers8[6]*0.03, 2*math.Pi)
	p.Zoom = lerp(p.Zoom, 1+buffered*0.15, 0.3)
	p.Contrast = lerp(p.Contrast, 0.7+level*0.5, 0.4)

	target := clamp(0.7+f.BandBuffers8[1]*0.3, 0, 1)
	if target > p.Saturation {
		p.Saturation = lerp(p.Saturation, target, 0.7)
	} else {
		p.Saturation = lerp(p.Saturation, target, 0.3)
	}
}

func (p *Parameters) applySilenceDecay(delta float64) {
	decay := math.Pow(0.92, delta*60)
	speedDecay := math.Pow(0.88, delta*60)

	p.Emission = p.Emission*decay + 0.35*(1-decay)
	p.TrailGlow = p.TrailGlow*decay + 0.3*(1-decay)
	p.Speed *= speedDecay
	p.Zoom = lerp(p.Zoom, 1.0, 0.15)
	p.Contrast = p.Contrast*decay + 0.8*(1-decay)
	p.Saturation = lerp(p.Saturation, 0.8, 0.1)
}

func lerp(current, target, factor float64) float64 {
	return current*(1-factor) + target*factor
}

func clamp(v, minVal, maxVal float64) float64 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}
