package app

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"time"
)

// Frame stages recorded by the profiler.
const (
	stageAnalyze = "analyze"
	stageMorph   = "morph"
	stageRender  = "render"
	stageOutput  = "output"
)

// profiler appends per-stage timings as CSV rows:
// frame,stage,delta_ms,vertices. A nil profiler records nothing.
type profiler struct {
	file  *os.File
	w     *bufio.Writer
	frame uint64
	start time.Time
	last  time.Time
}

func newProfiler(path string, logger *log.Logger) *profiler {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		if logger != nil {
			logger.Printf("profiler disabled: %v", err)
		}
		return nil
	}
	p := &profiler{file: f, w: bufio.NewWriter(f)}
	fmt.Fprintln(p.w, "frame,stage,delta_ms,vertices")
	return p
}

func (p *profiler) beginFrame() {
	if p == nil {
		return
	}
	p.frame++
	p.start = time.Now()
	p.last = p.start
}

func (p *profiler) mark(stage string, vertices int) {
	if p == nil {
		return
	}
	now := time.Now()
	p.write(stage, now.Sub(p.last), vertices)
	p.last = now
}

func (p *profiler) endFrame(vertices int) {
	if p == nil {
		return
	}
	p.write("total", time.Since(p.start), vertices)
}

func (p *profiler) write(stage string, d time.Duration, vertices int) {
	fmt.Fprintf(p.w, "%d,%s,%.3f,%d\n", p.frame, stage, d.Seconds()*1000, vertices)
}

func (p *profiler) Close() error {
	if p == nil {
		return nil
	}
	if err := p.w.Flush(); err != nil {
		p.file.Close()
		return err
	}
	return p.file.Close()
}
