package morph

import "github.com/charmbracelet/harmonica"

// SpringConfig smooths per-edge levels with a damped spring. A zero
// Frequency disables it.
type SpringConfig struct {
	FPS       int
	Frequency float64
	Damping   float64
}

func (c SpringConfig) enabled() bool { return c.Frequency > 0 && c.FPS > 0 }

type springField struct {
	spring harmonica.Spring
	pos    []float64
	vel    []float64
}

func newSpringField(cfg SpringConfig) *springField {
	return &springField{spring: harmonica.NewSpring(harmonica.FPS(cfg.FPS), cfg.Frequency, cfg.Damping)}
}

func (s *springField) step(i int, target float64) float64 {
	if i >= len(s.pos) {
		s.pos = append(s.pos, make([]float64, i+1-len(s.pos))...)
		s.vel = append(s.vel, make([]float64, i+1-len(s.vel))...)
	}
	p, v := s.spring.Update(s.pos[i], s.vel[i], target)
	s.pos[i] = p
	s.vel[i] = v
	return p
}
