package audio

import (
	"fmt"
	"math/cmplx"

	"github.com/guidoenr/kochizer/internal/analyzer"
	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// FrameSource supplies the latest raw samples of both channels, oldest first.
type FrameSource interface {
	StereoSamples() (left, right []float32)
}

// SampleSource hands the analyzer one spectrum per channel per tick.
type SampleSource interface {
	// Refresh prepares the spectra for the current tick.
	Refresh() error
	// ChannelSamples returns analyzer.SampleCount magnitudes. Stereo returns
	// the element-wise sum of both channels.
	ChannelSamples(ch analyzer.Channel) []float64
}

// Spectrum turns raw stereo samples into per-channel magnitude spectra with a
// Blackman-windowed FFT of twice the band sample count.
type Spectrum struct {
	src     FrameSource
	fftSize int
	scratch []float64
	left    []float64
	right   []float64
	sum     []float64
}

// NewSpectrum wraps src.
func NewSpectrum(src FrameSource) *Spectrum {
	size := analyzer.SampleCount * 2
	return &Spectrum{
		src:     src,
		fftSize: size,
		scratch: make([]float64, size),
		left:    make([]float64, analyzer.SampleCount),
		right:   make([]float64, analyzer.SampleCount),
		sum:     make([]float64, analyzer.SampleCount),
	}
}

// Refresh pulls the newest window from the source and transforms it.
func (s *Spectrum) Refresh() error {
	left, right := s.src.StereoSamples()
	if len(left) < s.fftSize || len(right) < s.fftSize {
		return fmt.Errorf("spectrum: need %d samples per channel, have %d/%d", s.fftSize, len(left), len(right))
	}
	s.transform(left[len(left)-s.fftSize:], s.left)
	s.transform(right[len(right)-s.fftSize:], s.right)
	for i := range s.sum {
		s.sum[i] = s.left[i] + s.right[i]
	}
	return nil
}

// ChannelSamples returns the spectrum computed by the last Refresh.
func (s *Spectrum) ChannelSamples(ch analyzer.Channel) []float64 {
	switch ch {
	case analyzer.Left:
		return s.left
	case analyzer.Right:
		return s.right
	default:
		return s.sum
	}
}

func (s *Spectrum) transform(samples []float32, dst []float64) {
	for i, v := range samples {
		s.scratch[i] = float64(v)
	}
	window.Apply(s.scratch, window.Blackman)
	coeffs := fft.FFTReal(s.scratch)
	norm := 2 / float64(s.fftSize)
	for i := range dst {
		dst[i] = cmplx.Abs(coeffs[i]) * norm
	}
}
