package morph

import "math"

// Sway swings the view back and forth around its rest angle.
type Sway struct {
	Amplitude float64 // full swing in degrees
	Speed     float64 // degrees per second
}

// Yaw returns the view angle in degrees at time t seconds. The angle
// ping-pongs between -Amplitude/2 and +Amplitude/2.
func (s Sway) Yaw(t float64) float64 {
	if s.Amplitude <= 0 {
		return 0
	}
	return pingPong(t*s.Speed, s.Amplitude) - s.Amplitude/2
}

func pingPong(t, length float64) float64 {
	m := math.Mod(t, 2*length)
	if m < 0 {
		m += 2 * length
	}
	return length - math.Abs(m-length)
}
