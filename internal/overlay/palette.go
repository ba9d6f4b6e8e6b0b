package overlay

import (
	"fmt"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// goldenAngle spreads consecutive class hues around the color wheel.
const goldenAngle = 137.50776

// Palette assigns a stable color to every class index.
type Palette struct {
	overrides map[int]color.Color
}

// NewPalette returns a palette using the given hex colors for the listed
// classes and generated colors for all others.
func NewPalette(overrides map[int]string) (*Palette, error) {
	p := &Palette{overrides: make(map[int]color.Color, len(overrides))}
	for class, hex := range overrides {
		c, err := colorful.Hex(hex)
		if err != nil {
			return nil, fmt.Errorf("color for class %d: %w", class, err)
		}
		p.overrides[class] = c
	}
	return p, nil
}

// Color returns the color of class.
func (p *Palette) Color(class int) color.Color {
	if c, ok := p.overrides[class]; ok {
		return c
	}
	hue := math.Mod(float64(class)*goldenAngle, 360)
	if hue < 0 {
		hue += 360
	}
	return colorful.Hsv(hue, 0.85, 0.95).Clamped()
}
