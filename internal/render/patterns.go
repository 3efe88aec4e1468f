package render

import (
	"math"
	"sort"
)

// strokeFunc picks the glyph for a cell the curve passes through. level is
// the brightness in [0,1]; dx, dy the direction of the segment in cells.
type strokeFunc func(level, dx, dy float64, palette []rune) rune

var strokeRegistry = map[string]strokeFunc{
	"dots":   strokeDots,
	"slopes": strokeSlopes,
	"blocks": strokeBlocks,
}

// StrokeNames returns the available stroke identifiers.
func StrokeNames() []string {
	names := make([]string, 0, len(strokeRegistry))
	for name := range strokeRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func strokeDots(level, dx, dy float64, palette []rune) rune {
	return paletteGlyph(level, palette)
}

// strokeSlopes draws with characters that follow the segment direction.
func strokeSlopes(level, dx, dy float64, palette []rune) rune {
	if level < 0.05 {
		return ' '
	}
	angle := math.Atan2(-dy, dx) * 180 / math.Pi
	if angle < 0 {
		angle += 180
	}
	switch {
	case angle < 22.5 || angle >= 157.5:
		return '-'
	case angle < 67.5:
		return '/'
	case angle < 112.5:
		return '|'
	default:
		return '\\'
	}
}

var blockRamp = []rune(" ░▒▓█")

func strokeBlocks(level, dx, dy float64, palette []rune) rune {
	return paletteGlyph(level, blockRamp)
}

func paletteGlyph(level float64, palette []rune) rune {
	if len(palette) == 0 {
		return '#'
	}
	// Index 0 is blank; a lit cell always shows something.
	index := clampInt(int(clamp01(level)*float64(len(palette)-1)+0.5), 1, len(palette)-1)
	if len(palette) == 1 {
		index = 0
	}
	return palette[index]
}
