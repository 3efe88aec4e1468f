package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"sync/atomic"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/oto/v2"
)

// PCM is a decoded clip, one float slice per channel in [-1,1].
type PCM struct {
	SampleRate int
	Left       []float32
	Right      []float32
}

// Frames returns the clip length in sample frames.
func (p *PCM) Frames() int { return len(p.Left) }

// DecodeWAV reads a PCM WAV stream. Mono files are copied to both channels.
func DecodeWAV(r io.ReadSeeker) (*PCM, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, errors.New("wav: missing format")
	}
	bitDepth := int(decoder.BitDepth)
	if bitDepth == 0 {
		bitDepth = buf.SourceBitDepth
	}
	if bitDepth == 0 {
		return nil, errors.New("wav: unknown bit depth")
	}

	channels := buf.Format.NumChannels
	frames := len(buf.Data) / channels
	factor := math.Pow(2, float64(bitDepth-1))
	pcm := &PCM{
		SampleRate: buf.Format.SampleRate,
		Left:       make([]float32, frames),
		Right:      make([]float32, frames),
	}
	for i := 0; i < frames; i++ {
		base := i * channels
		l := float32(float64(buf.Data[base]) / factor)
		r := l
		if channels > 1 {
			r = float32(float64(buf.Data[base+1]) / factor)
		}
		pcm.Left[i] = l
		pcm.Right[i] = r
	}
	return pcm, nil
}

// Clip plays a decoded WAV file and exposes the samples around the
// playhead, so the visuals follow what is heard.
type Clip struct {
	pcm    *PCM
	window int
	loop   bool

	player oto.Player
	reader *pcmReader
}

var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoRate int
	otoErr  error
)

// otoContext returns the process wide playback context. oto allows only one,
// so every clip must share the sample rate of the first.
func otoContext(sampleRate int) (*oto.Context, error) {
	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(sampleRate, 2, oto.FormatFloat32LE)
		if err != nil {
			otoErr = fmt.Errorf("audio output: %w", err)
			return
		}
		<-ready
		otoCtx = ctx
		otoRate = sampleRate
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if otoRate != sampleRate {
		return nil, fmt.Errorf("audio output already running at %d Hz, clip is %d Hz", otoRate, sampleRate)
	}
	return otoCtx, nil
}

// OpenClip decodes path and starts playing it. window is the number of
// samples per channel StereoSamples returns.
func OpenClip(path string, window int, loop bool) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open clip: %w", err)
	}
	defer f.Close()

	pcm, err := DecodeWAV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if pcm.Frames() == 0 {
		return nil, fmt.Errorf("%s: empty clip", path)
	}

	ctx, err := otoContext(pcm.SampleRate)
	if err != nil {
		return nil, err
	}

	c := newClip(pcm, window, loop)
	c.player = ctx.NewPlayer(c.reader)
	c.player.Play()
	return c, nil
}

func newClip(pcm *PCM, window int, loop bool) *Clip {
	if window <= 0 {
		window = defaultBufferSize
	}
	return &Clip{
		pcm:    pcm,
		window: window,
		loop:   loop,
		reader: &pcmReader{pcm: pcm, loop: loop},
	}
}

// SampleRate returns the clip's sample rate.
func (c *Clip) SampleRate() float64 { return float64(c.pcm.SampleRate) }

// Playhead returns the frame currently heard.
func (c *Clip) Playhead() int {
	consumed := c.reader.consumed()
	if c.player != nil {
		consumed -= int64(c.player.UnplayedBufferSize())
	}
	frame := int(consumed / bytesPerFrame)
	if frame < 0 {
		frame = 0
	}
	if c.loop {
		return frame % c.pcm.Frames()
	}
	if frame > c.pcm.Frames() {
		frame = c.pcm.Frames()
	}
	return frame
}

// Done reports whether a non-looping clip has finished.
func (c *Clip) Done() bool {
	return !c.loop && c.Playhead() >= c.pcm.Frames()
}

// StereoSamples returns the window of samples that ends at the playhead. The
// part before the start of the clip is silence, or the clip's tail when
// looping.
func (c *Clip) StereoSamples() (left, right []float32) {
	return c.windowAt(c.Playhead())
}

func (c *Clip) windowAt(end int) (left, right []float32) {
	left = make([]float32, c.window)
	right = make([]float32, c.window)
	n := c.pcm.Frames()
	for i := 0; i < c.window; i++ {
		src := end - c.window + i
		if src < 0 {
			if !c.loop {
				continue
			}
			src = ((src % n) + n) % n
		}
		if src >= n {
			continue
		}
		left[i] = c.pcm.Left[src]
		right[i] = c.pcm.Right[src]
	}
	return left, right
}

// Close stops playback.
func (c *Clip) Close() error {
	if c.player == nil {
		return nil
	}
	return c.player.Close()
}

const bytesPerFrame = 8 // two float32 channels

// pcmReader streams the clip as interleaved float32 little endian frames and
// counts how many bytes the player pulled.
type pcmReader struct {
	pcm   *PCM
	loop  bool
	pos   int // next frame
	total atomic.Int64
}

func (r *pcmReader) Read(p []byte) (int, error) {
	n := 0
	for n+bytesPerFrame <= len(p) {
		if r.pos >= r.pcm.Frames() {
			if !r.loop {
				break
			}
			r.pos = 0
		}
		binary.LittleEndian.PutUint32(p[n:], math.Float32bits(r.pcm.Left[r.pos]))
		binary.LittleEndian.PutUint32(p[n+4:], math.Float32bits(r.pcm.Right[r.pos]))
		r.pos++
		n += bytesPerFrame
	}
	r.total.Add(int64(n))
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (r *pcmReader) consumed() int64 { return r.total.Load() }
