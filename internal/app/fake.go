package app

import (
	"math"
	"math/rand"
	"time"

	"github.com/guidoenr/kochizer/internal/analyzer"
)

// synthSource fakes a spectrum: a few drifting peaks over a noise floor,
// with a pulsing kick in the lowest bins. A fixed seed replays the same
// sequence.
type synthSource struct {
	rng   *rand.Rand
	tick  int
	left  []float64
	right []float64
	sum   []float64
}

func newSynthSource(seed int64) *synthSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &synthSource{
		rng:   rand.New(rand.NewSource(seed)),
		left:  make([]float64, analyzer.SampleCount),
		right: make([]float64, analyzer.SampleCount),
		sum:   make([]float64, analyzer.SampleCount),
	}
}

// Refresh advances the fake signal by one tick.
func (f *synthSource) Refresh() error {
	f.tick++
	t := float64(f.tick) / 30

	kick := math.Max(0, math.Sin(t*math.Pi*2))
	kick *= kick
	peaks := [...]struct{ center, width, gain float64 }{
		{center: 6, width: 3, gain: 0.6 + 0.4*kick},
		{center: 40 + 20*math.Sin(t*0.7), width: 8, gain: 0.3 + 0.2*math.Sin(t*1.3)},
		{center: 180 + 60*math.Sin(t*0.4+1), width: 24, gain: 0.15 + 0.1*math.Sin(t*2.1)},
	}

	for i := range f.left {
		x := float64(i)
		var v float64
		for _, p := range peaks {
			d := (x - p.center) / p.width
			v += p.gain * math.Exp(-d*d)
		}
		f.left[i] = v + f.rng.Float64()*0.01
		f.right[i] = v*0.9 + f.rng.Float64()*0.01
		f.sum[i] = f.left[i] + f.right[i]
	}
	return nil
}

func (f *synthSource) ChannelSamples(ch analyzer.Channel) []float64 {
	switch ch {
	case analyzer.Left:
		return f.left
	case analyzer.Right:
		return f.right
	default:
		return f.sum
	}
}
