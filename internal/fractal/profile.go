package fractal

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Keyframe places a detail vertex Time of the way along an edge, displaced
// Value edge lengths sideways.
type Keyframe struct {
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

// Profile is an immutable generator curve. The first and last keyframes only
// mark the edge ends and never produce vertices.
type Profile struct {
	keys []Keyframe
}

// NewProfile validates keys: at least two, times within [0,1] and in
// nondecreasing order.
func NewProfile(keys []Keyframe) (Profile, error) {
	if len(keys) < 2 {
		return Profile{}, fmt.Errorf("%w: profile needs at least 2 keyframes, got %d", ErrInvalidConfig, len(keys))
	}
	for i, k := range keys {
		if math.IsNaN(k.Time) || math.IsNaN(k.Value) || k.Time < 0 || k.Time > 1 {
			return Profile{}, fmt.Errorf("%w: keyframe %d has time %g", ErrInvalidConfig, i, k.Time)
		}
		if i > 0 && k.Time < keys[i-1].Time {
			return Profile{}, fmt.Errorf("%w: keyframe %d out of order", ErrInvalidConfig, i)
		}
	}
	cp := make([]Keyframe, len(keys))
	copy(cp, keys)
	return Profile{keys: cp}, nil
}

// Interior returns the keyframes that emit vertices.
func (p Profile) Interior() []Keyframe {
	if len(p.keys) <= 2 {
		return nil
	}
	out := make([]Keyframe, len(p.keys)-2)
	copy(out, p.keys[1:len(p.keys)-1])
	return out
}

// Len returns the number of keyframes including both boundary markers.
func (p Profile) Len() int { return len(p.keys) }

// KochBump is the height of the classic Koch triangle bump: sqrt(3)/6.
const KochBump = 0.2887

var presets = map[string][]Keyframe{
	"koch": {
		{0, 0}, {1.0 / 3, 0}, {0.5, KochBump}, {2.0 / 3, 0}, {1, 0},
	},
	"square": {
		{0, 0}, {1.0 / 3, 0}, {1.0 / 3, 1.0 / 3}, {2.0 / 3, 1.0 / 3}, {2.0 / 3, 0}, {1, 0},
	},
	"spike": {
		{0, 0}, {0.5, 0.5}, {1, 0},
	},
	"flat": {
		{0, 0}, {1, 0},
	},
}

// ProfileByName returns a built in profile.
func ProfileByName(name string) (Profile, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = "koch"
	}
	keys, ok := presets[key]
	if !ok {
		return Profile{}, fmt.Errorf("%w: unknown profile %q", ErrInvalidConfig, name)
	}
	return NewProfile(keys)
}

// ProfileNames returns the built in profile identifiers.
func ProfileNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
