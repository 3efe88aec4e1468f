package audio

import (
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/guidoenr/kochizer/internal/analyzer"
)

func TestRingKeepsNewestInOrder(t *testing.T) {
	r := newRing(4)
	r.write([]float32{1, 2, 3})
	r.write([]float32{4, 5})
	got := r.snapshot()
	want := []float32{2, 3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("snapshot=%v want=%v", got, want)
		}
	}
	r.write([]float32{6, 7, 8, 9, 10})
	got = r.snapshot()
	want = []float32{7, 8, 9, 10}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("snapshot=%v want=%v", got, want)
		}
	}
}

func TestDeinterleave(t *testing.T) {
	left, right := newRing(2), newRing(2)
	deinterleave([]float32{1, -1, 2, -2}, 2, left, right)
	l, r := left.snapshot(), right.snapshot()
	if l[0] != 1 || l[1] != 2 || r[0] != -1 || r[1] != -2 {
		t.Fatalf("left=%v right=%v", l, r)
	}
	deinterleave([]float32{5, 6}, 1, left, right)
	l, r = left.snapshot(), right.snapshot()
	if l[1] != 6 || r[1] != 6 {
		t.Fatalf("mono left=%v right=%v", l, r)
	}
}

type fixedFrames struct {
	left, right []float32
}

func (f fixedFrames) StereoSamples() ([]float32, []float32) { return f.left, f.right }

func sine(n int, cycles float64, amp float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = amp * float32(math.Sin(2*math.Pi*cycles*float64(i)/float64(n)))
	}
	return out
}

func argmax(v []float64) int {
	best := 0
	for i := range v {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func TestSpectrumFindsTone(t *testing.T) {
	n := analyzer.SampleCount * 2
	src := fixedFrames{left: sine(n, 40, 0.8), right: sine(n, 200, 0.5)}
	s := NewSpectrum(src)
	if err := s.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	left := s.ChannelSamples(analyzer.Left)
	right := s.ChannelSamples(analyzer.Right)
	if len(left) != analyzer.SampleCount || len(right) != analyzer.SampleCount {
		t.Fatalf("len left=%d right=%d", len(left), len(right))
	}
	if got := argmax(left); got != 40 {
		t.Fatalf("left peak bin=%d want=40", got)
	}
	if got := argmax(right); got != 200 {
		t.Fatalf("right peak bin=%d want=200", got)
	}
	sum := s.ChannelSamples(analyzer.Stereo)
	if math.Abs(sum[40]-(left[40]+right[40])) > 1e-12 {
		t.Fatalf("stereo is not the channel sum")
	}
	for i, v := range left {
		if v < 0 {
			t.Fatalf("negative magnitude at %d", i)
		}
	}
}

func TestSpectrumShortInput(t *testing.T) {
	s := NewSpectrum(fixedFrames{left: make([]float32, 10), right: make([]float32, 10)})
	if err := s.Refresh(); err == nil {
		t.Fatal("expected error for short input")
	}
}

func writeWAV(t *testing.T, channels int, data []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	enc := wav.NewEncoder(f, 8000, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: 8000},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return path
}

func decodeFile(t *testing.T, path string) *PCM {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	pcm, err := DecodeWAV(f)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	return pcm
}

func TestDecodeWAVStereo(t *testing.T) {
	pcm := decodeFile(t, writeWAV(t, 2, []int{16384, -16384, 0, 32767}))
	if pcm.SampleRate != 8000 || pcm.Frames() != 2 {
		t.Fatalf("rate=%d frames=%d", pcm.SampleRate, pcm.Frames())
	}
	if pcm.Left[0] != 0.5 || pcm.Right[0] != -0.5 || pcm.Left[1] != 0 {
		t.Fatalf("left=%v right=%v", pcm.Left, pcm.Right)
	}
}

func TestDecodeWAVMonoFeedsBoth(t *testing.T) {
	pcm := decodeFile(t, writeWAV(t, 1, []int{8192, -8192, 0}))
	if pcm.Frames() != 3 {
		t.Fatalf("frames=%d", pcm.Frames())
	}
	for i := range pcm.Left {
		if pcm.Left[i] != pcm.Right[i] {
			t.Fatalf("frame %d left=%f right=%f", i, pcm.Left[i], pcm.Right[i])
		}
	}
	if pcm.Left[0] != 0.25 {
		t.Fatalf("left[0]=%f want=0.25", pcm.Left[0])
	}
}

func testPCM(frames int) *PCM {
	pcm := &PCM{SampleRate: 8000, Left: make([]float32, frames), Right: make([]float32, frames)}
	for i := 0; i < frames; i++ {
		pcm.Left[i] = float32(i)
		pcm.Right[i] = -float32(i)
	}
	return pcm
}

func TestPCMReaderStreamsAndCounts(t *testing.T) {
	r := &pcmReader{pcm: testPCM(3)}
	buf := make([]byte, 20) // room for two frames
	n, err := r.Read(buf)
	if err != nil || n != 16 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(buf[8:])); got != 1 {
		t.Fatalf("second left=%f want=1", got)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(buf[12:])); got != -1 {
		t.Fatalf("second right=%f want=-1", got)
	}
	n, _ = r.Read(buf)
	if n != 8 {
		t.Fatalf("tail n=%d want=8", n)
	}
	if _, err := r.Read(buf); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
	if r.consumed() != 24 {
		t.Fatalf("consumed=%d want=24", r.consumed())
	}
}

func TestClipWindowFollowsPlayhead(t *testing.T) {
	c := newClip(testPCM(10), 4, false)
	buf := make([]byte, 6*bytesPerFrame)
	if _, err := c.reader.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if c.Playhead() != 6 {
		t.Fatalf("playhead=%d want=6", c.Playhead())
	}
	left, right := c.StereoSamples()
	for i, want := range []float32{2, 3, 4, 5} {
		if left[i] != want || right[i] != -want {
			t.Fatalf("window left=%v right=%v", left, right)
		}
	}

	early, _ := c.windowAt(2)
	if early[0] != 0 || early[1] != 0 || early[2] != 0 || early[3] != 1 {
		t.Fatalf("early window=%v", early)
	}
	if c.Done() {
		t.Fatal("clip done too early")
	}
}

func TestClipLoopWraps(t *testing.T) {
	c := newClip(testPCM(5), 3, true)
	left, _ := c.windowAt(1)
	want := []float32{3, 4, 0}
	for i := range want {
		if left[i] != want[i] {
			t.Fatalf("loop window=%v want=%v", left, want)
		}
	}
	buf := make([]byte, 7*bytesPerFrame)
	_, _ = c.reader.Read(buf)
	if c.Playhead() != 2 {
		t.Fatalf("playhead=%d want=2", c.Playhead())
	}
}

func TestDeviceTableSortedAndMarked(t *testing.T) {
	devices := []Device{
		{Name: "usb mic", MaxInput: 1, DefaultSampleHz: 48000, HostAPI: "ALSA"},
		{Name: "built-in", MaxInput: 2, DefaultSampleHz: 44100, HostAPI: "ALSA", IsDefault: true},
		{Name: "monitor", MaxInput: 2, DefaultSampleHz: 44100, HostAPI: "JACK"},
	}
	sortDevices(devices)
	if devices[0].Name != "built-in" || devices[2].HostAPI != "JACK" {
		t.Fatalf("unexpected order: %v", devices)
	}
	var buf strings.Builder
	if err := WriteDeviceTable(&buf, devices); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d", len(lines))
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[1]), "*") {
		t.Fatalf("default device not marked: %q", lines[1])
	}
	if !strings.Contains(devices[0].String(), "(default)") {
		t.Fatalf("String() = %q", devices[0].String())
	}
}
