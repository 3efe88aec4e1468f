package analyzer

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Envelope defaults.
const (
	DefaultBaseDecay   = 0.005
	DefaultDecayGrowth = 1.2
)

// Config controls Analyzer behavior.
type Config struct {
	Channel     Channel
	PeakSeed    float64 // initial value of every band peak
	BaseDecay   float64 // release step right after an attack
	DecayGrowth float64 // factor applied to the release step every falling tick

	// Bands8 and Bands64 override the standard partitions. They must keep 8
	// and 64 bands respectively.
	Bands8  *Partition
	Bands64 *Partition

	// ClampEnvelope stops the buffered envelope at zero instead of letting the
	// accelerating release overshoot below it.
	ClampEnvelope bool
}

// DefaultConfig returns the stereo configuration with the standard constants.
func DefaultConfig() Config {
	return Config{
		Channel:     Stereo,
		BaseDecay:   DefaultBaseDecay,
		DecayGrowth: DefaultDecayGrowth,
	}
}

// bandSet is the BandState of every band in one scheme.
type bandSet struct {
	partition Partition

	raw      []float64
	buffered []float64
	decay    []float64
	peak     []float64
}

func newBandSet(p Partition, seed float64) *bandSet {
	n := p.Len()
	bs := &bandSet{
		partition: p,
		raw:       make([]float64, n),
		buffered:  make([]float64, n),
		decay:     make([]float64, n),
		peak:      make([]float64, n),
	}
	for i := range bs.peak {
		bs.peak[i] = seed
	}
	return bs
}

// envelope runs the ballistic meter: instant attack, accelerating release.
func (bs *bandSet) envelope(base, growth float64, clamp bool) {
	for i, raw := range bs.raw {
		switch {
		case raw > bs.buffered[i]:
			bs.buffered[i] = raw
			bs.decay[i] = base
		case raw < bs.buffered[i]:
			bs.buffered[i] -= bs.decay[i]
			bs.decay[i] *= growth
			if clamp && bs.buffered[i] < 0 {
				bs.buffered[i] = 0
			}
		}
	}
}

// normalize raises peaks first so the current tick never exceeds 1.
func (bs *bandSet) normalize(norm, normBuf []float64) {
	for i, raw := range bs.raw {
		if raw > bs.peak[i] {
			bs.peak[i] = raw
		}
		norm[i] = ratio(raw, bs.peak[i])
		normBuf[i] = ratio(bs.buffered[i], bs.peak[i])
	}
}

// Analyzer turns per-tick spectrum buffers into smoothed, normalized band
// energies. An Analyzer is owned by a single tick loop and is not safe for
// concurrent use.
type Analyzer struct {
	cfg Config

	bands8  *bandSet
	bands64 *bandSet

	amplitudePeak float64
	frame         Frame
	ticks         uint64
}

// New validates cfg and builds an Analyzer.
func New(cfg Config) (*Analyzer, error) {
	if cfg.BaseDecay == 0 {
		cfg.BaseDecay = DefaultBaseDecay
	}
	if cfg.DecayGrowth == 0 {
		cfg.DecayGrowth = DefaultDecayGrowth
	}
	switch {
	case cfg.Channel < Stereo || cfg.Channel > Right:
		return nil, fmt.Errorf("%w: channel mode %d", ErrInvalidConfig, cfg.Channel)
	case cfg.PeakSeed < 0:
		return nil, fmt.Errorf("%w: peak seed %g is negative", ErrInvalidConfig, cfg.PeakSeed)
	case cfg.BaseDecay < 0:
		return nil, fmt.Errorf("%w: base decay %g is negative", ErrInvalidConfig, cfg.BaseDecay)
	case cfg.DecayGrowth < 1:
		return nil, fmt.Errorf("%w: decay growth %g below 1", ErrInvalidConfig, cfg.DecayGrowth)
	}

	p8 := EightBands()
	if cfg.Bands8 != nil {
		if err := checkPartition(*cfg.Bands8, Bands8); err != nil {
			return nil, err
		}
		p8 = *cfg.Bands8
	}
	p64 := SixtyFourBands()
	if cfg.Bands64 != nil {
		if err := checkPartition(*cfg.Bands64, Bands64); err != nil {
			return nil, err
		}
		p64 = *cfg.Bands64
	}

	return &Analyzer{
		cfg:     cfg,
		bands8:  newBandSet(p8, cfg.PeakSeed),
		bands64: newBandSet(p64, cfg.PeakSeed),
	}, nil
}

func checkPartition(p Partition, scheme Scheme) error {
	if p.Len() != scheme.Count() {
		return fmt.Errorf("%w: %s partition has %d bands", ErrInvalidConfig, scheme, p.Len())
	}
	if p.Total() != SampleCount {
		return fmt.Errorf("%w: %s partition consumes %d samples, want %d", ErrInvalidConfig, scheme, p.Total(), SampleCount)
	}
	return nil
}

// Process runs one tick over the left and right spectrum buffers and returns
// the resulting frame. Only the channels the configured mode reads need to be
// supplied. On error the analyzer state is left untouched.
func (a *Analyzer) Process(left, right []float64) (Frame, error) {
	if a.cfg.Channel != Right && len(left) < SampleCount {
		return a.frame, fmt.Errorf("%w: left channel has %d samples", ErrShortBuffer, len(left))
	}
	if a.cfg.Channel != Left && len(right) < SampleCount {
		return a.frame, fmt.Errorf("%w: right channel has %d samples", ErrShortBuffer, len(right))
	}

	var value func(int) float64
	switch a.cfg.Channel {
	case Left:
		value = func(i int) float64 { return left[i] }
	case Right:
		value = func(i int) float64 { return right[i] }
	default:
		value = func(i int) float64 { return left[i] + right[i] }
	}

	var frame Frame
	a.tickBands(a.bands8, value, frame.Bands8[:], frame.BandBuffers8[:])
	a.tickBands(a.bands64, value, frame.Bands64[:], frame.BandBuffers64[:])

	current := floats.Sum(frame.Bands8[:])
	currentBuffer := floats.Sum(frame.BandBuffers8[:])
	if current > a.amplitudePeak {
		a.amplitudePeak = current
	}
	// One peak serves both sums.
	frame.Amplitude = ratio(current, a.amplitudePeak)
	frame.AmplitudeBuffer = ratio(currentBuffer, a.amplitudePeak)

	a.frame = frame
	a.ticks++
	return frame, nil
}

func (a *Analyzer) tickBands(bs *bandSet, value func(int) float64, norm, normBuf []float64) {
	bs.partition.extract(bs.raw, value)
	bs.envelope(a.cfg.BaseDecay, a.cfg.DecayGrowth, a.cfg.ClampEnvelope)
	bs.normalize(norm, normBuf)
}

// Frame returns the most recent frame.
func (a *Analyzer) Frame() Frame { return a.frame }

// Ticks returns how many ticks have been processed.
func (a *Analyzer) Ticks() uint64 { return a.ticks }

// Channel returns the configured channel mode.
func (a *Analyzer) Channel() Channel { return a.cfg.Channel }

// Raw returns the unnormalized value of a band from the last tick.
func (a *Analyzer) Raw(scheme Scheme, index int) (float64, error) {
	bs, err := a.band(scheme, index)
	if err != nil {
		return 0, err
	}
	return bs.raw[index], nil
}

// Buffered returns the envelope value of a band.
func (a *Analyzer) Buffered(scheme Scheme, index int) (float64, error) {
	bs, err := a.band(scheme, index)
	if err != nil {
		return 0, err
	}
	return bs.buffered[index], nil
}

// DecayRate returns the current release step of a band.
func (a *Analyzer) DecayRate(scheme Scheme, index int) (float64, error) {
	bs, err := a.band(scheme, index)
	if err != nil {
		return 0, err
	}
	return bs.decay[index], nil
}

// Peak returns the running peak of a band.
func (a *Analyzer) Peak(scheme Scheme, index int) (float64, error) {
	bs, err := a.band(scheme, index)
	if err != nil {
		return 0, err
	}
	return bs.peak[index], nil
}

// AmplitudePeak returns the running peak of the summed 8-band levels.
func (a *Analyzer) AmplitudePeak() float64 { return a.amplitudePeak }

func (a *Analyzer) band(scheme Scheme, index int) (*bandSet, error) {
	bs := a.bands8
	if scheme == Bands64 {
		bs = a.bands64
	}
	if index < 0 || index >= len(bs.raw) {
		return nil, fmt.Errorf("%w: %s index %d", ErrBandIndex, scheme, index)
	}
	return bs, nil
}

// ratio divides by a peak, mapping an empty peak to zero.
func ratio(value, peak float64) float64 {
	if peak <= 0 {
		return 0
	}
	return value / peak
}
