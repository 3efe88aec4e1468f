package analyzer

import "fmt"

// Frame is the AudioFeatureFrame produced by one analyzer tick. It is a plain
// value: copies never alias the analyzer's state.
type Frame struct {
	Bands8          [8]float64
	BandBuffers8    [8]float64
	Bands64         [64]float64
	BandBuffers64   [64]float64
	Amplitude       float64
	AmplitudeBuffer float64
}

// Level is the normalized value of one band and its buffered envelope.
type Level struct {
	Normalized float64
	Buffered   float64
}

// Level returns the normalized and buffered values of a band.
func (f *Frame) Level(scheme Scheme, index int) (Level, error) {
	if index < 0 || index >= scheme.Count() {
		return Level{}, fmt.Errorf("%w: %s index %d", ErrBandIndex, scheme, index)
	}
	if scheme == Bands64 {
		return Level{Normalized: f.Bands64[index], Buffered: f.BandBuffers64[index]}, nil
	}
	return Level{Normalized: f.Bands8[index], Buffered: f.BandBuffers8[index]}, nil
}

// Gate applies a noise floor so weak signals are ignored. Values at or below
// floor become 0, the rest are stretched back over [0, 1].
func (f Frame) Gate(floor float64) Frame {
	if floor <= 0 || floor >= 1 {
		return f
	}
	gate := func(v float64) float64 {
		if v <= floor {
			return 0
		}
		return clampFloat((v-floor)/(1.0-floor), 0, 1)
	}

	for i := range f.Bands8 {
		f.Bands8[i] = gate(f.Bands8[i])
		f.BandBuffers8[i] = gate(f.BandBuffers8[i])
	}
	for i := range f.Bands64 {
		f.Bands64[i] = gate(f.Bands64[i])
		f.BandBuffers64[i] = gate(f.BandBuffers64[i])
	}
	f.Amplitude = gate(f.Amplitude)
	f.AmplitudeBuffer = gate(f.AmplitudeBuffer)
	return f
}

// Silent reports whether every band of the frame is zero.
func (f *Frame) Silent() bool {
	for _, v := range f.Bands8 {
		if v != 0 {
			return false
		}
	}
	return f.Amplitude == 0
}

func clampFloat(v, minVal, maxVal float64) float64 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}
