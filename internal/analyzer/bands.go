package analyzer

import (
	"errors"
	"fmt"
	"strings"
)

// SampleCount is the number of spectrum samples consumed per channel each tick.
const SampleCount = 512

// Band scale constants applied after averaging.
const (
	Scale8  = 10.0
	Scale64 = 80.0
)

var (
	// ErrInvalidConfig reports a configuration the analyzer cannot be built from.
	ErrInvalidConfig = errors.New("analyzer: invalid configuration")
	// ErrBandIndex reports a band index outside the scheme's band count.
	ErrBandIndex = errors.New("analyzer: band index out of range")
	// ErrShortBuffer reports a sample buffer holding fewer than SampleCount values.
	ErrShortBuffer = errors.New("analyzer: short sample buffer")
)

// Scheme selects one of the two band layouts.
type Scheme int

const (
	Bands8 Scheme = iota
	Bands64
)

// Count returns the number of bands in the scheme.
func (s Scheme) Count() int {
	if s == Bands64 {
		return 64
	}
	return 8
}

func (s Scheme) String() string {
	if s == Bands64 {
		return "64-band"
	}
	return "8-band"
}

// Channel selects which spectrum channels feed the bands.
type Channel int

const (
	Stereo Channel = iota
	Left
	Right
)

func (c Channel) String() string {
	switch c {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "stereo"
	}
}

// ParseChannel maps a user supplied name to a Channel.
func ParseChannel(name string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "stereo", "both":
		return Stereo, nil
	case "left", "l":
		return Left, nil
	case "right", "r":
		return Right, nil
	}
	return Stereo, fmt.Errorf("%w: unknown channel %q", ErrInvalidConfig, name)
}

// Partition is an immutable schedule of how many consecutive samples make up
// each band, together with the scale applied to every band value.
type Partition struct {
	counts []int
	scale  float64
}

// NewPartition validates counts and returns a Partition. The counts must be
// positive and add up to exactly SampleCount.
func NewPartition(counts []int, scale float64) (Partition, error) {
	if len(counts) == 0 {
		return Partition{}, fmt.Errorf("%w: empty band partition", ErrInvalidConfig)
	}
	total := 0
	for i, c := range counts {
		if c <= 0 {
			return Partition{}, fmt.Errorf("%w: band %d has sample count %d", ErrInvalidConfig, i, c)
		}
		total += c
	}
	if total != SampleCount {
		return Partition{}, fmt.Errorf("%w: band sample counts sum to %d, want %d", ErrInvalidConfig, total, SampleCount)
	}
	if scale <= 0 {
		return Partition{}, fmt.Errorf("%w: band scale %g must be positive", ErrInvalidConfig, scale)
	}
	cp := make([]int, len(counts))
	copy(cp, counts)
	return Partition{counts: cp, scale: scale}, nil
}

// EightBands returns the standard 8-band partition: 2, 4, 8, 16, 32, 64, 128,
// 258. Band i takes 2^i*2 samples and the last band two extra so the schedule
// lands on 512.
func EightBands() Partition {
	counts := make([]int, 8)
	for i := range counts {
		counts[i] = (1 << i) * 2
	}
	counts[7] += 2
	return Partition{counts: counts, scale: Scale8}
}

// SixtyFourBands returns the standard 64-band partition. Bands 0-15 take one
// sample each; at 16, 32, 40, 48 and 56 the count steps to the next power of
// two, except the third step which uses 2^3-2.
func SixtyFourBands() Partition {
	counts := make([]int, 64)
	count, power := 1, 0
	for i := range counts {
		switch i {
		case 16, 32, 40, 48, 56:
			power++
			count = 1 << power
			if power == 3 {
				count -= 2
			}
		}
		counts[i] = count
	}
	return Partition{counts: counts, scale: Scale64}
}

// Len returns the number of bands.
func (p Partition) Len() int { return len(p.counts) }

// Scale returns the constant applied to each band value.
func (p Partition) Scale() float64 { return p.scale }

// Counts returns a copy of the per-band sample counts.
func (p Partition) Counts() []int {
	out := make([]int, len(p.counts))
	copy(out, p.counts)
	return out
}

// Total returns the number of samples the partition consumes.
func (p Partition) Total() int {
	total := 0
	for _, c := range p.counts {
		total += c
	}
	return total
}

// extract writes one raw value per band into dst. The divisor grows with the
// running sample index across the whole partition and is not reset per band.
func (p Partition) extract(dst []float64, value func(int) float64) {
	index := 0
	for band, count := range p.counts {
		sum := 0.0
		for j := 0; j < count; j++ {
			sum += value(index) * float64(index+1)
			index++
		}
		dst[band] = sum / float64(index) * p.scale
	}
}
