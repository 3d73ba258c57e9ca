// SPDX-License-Identifier: Unlicense OR MIT

package feature

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/math/f32"
)

// Theme holds the configured colors of the widget.
type Theme struct {
	Background colorful.Color
	Foreground colorful.Color
	Accent     colorful.Color
}

// ParseTheme parses #rrggbb colors.
func ParseTheme(background, foreground, accent string) (Theme, error) {
	var t Theme
	for _, c := range []struct {
		dst *colorful.Color
		hex string
	}{
		{&t.Background, background},
		{&t.Foreground, foreground},
		{&t.Accent, accent},
	} {
		v, err := colorful.Hex(c.hex)
		if err != nil {
			return Theme{}, fmt.Errorf("feature: theme color %q: %w", c.hex, err)
		}
		*c.dst = v
	}
	return t, nil
}

// DefaultTheme is the theme used without configuration.
var DefaultTheme = Theme{
	Background: colorful.Color{R: 0x1a / 255.0, G: 0x1a / 255.0, B: 0x1a / 255.0},
	Foreground: colorful.Color{R: 1, G: 1, B: 1},
	Accent:     colorful.Color{R: 0x4a / 255.0, G: 0x9e / 255.0, B: 1},
}

// ColorModes is the number of digit color modes of the clock.
const ColorModes = 11

func rgb8(r, g, b uint8) colorful.Color {
	return colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
}

var (
	classicRed = rgb8(255, 64, 64)
	cyan       = rgb8(0, 255, 255)
	green      = rgb8(64, 255, 64)
	amber      = rgb8(255, 191, 0)
	purple     = rgb8(191, 64, 255)
	timerBlue  = rgb8(64, 128, 255)
)

// modeColor returns the color of segment seg of the digit at position pos
// of total in color mode m, t seconds into the animation.
func (th Theme) modeColor(m int, t float64, pos, total, seg int) colorful.Color {
	po := float64(pos) / float64(total)
	so := float64(seg) / 7
	switch m {
	case 0:
		return th.Accent
	case 1:
		return th.Foreground
	case 2:
		return classicRed
	case 3:
		return cyan
	case 4:
		return green
	case 5:
		return amber
	case 6:
		return purple
	case 7:
		// Rainbow wave flowing across the digits.
		h := math.Mod(t*0.2+po*0.5+so*0.05, 1)
		return colorful.Hsv(h*360, 1, 1)
	case 8:
		// Breathing, left to right.
		v := math.Max(0.4, math.Min(1, math.Sin(t+po*0.5)*0.3+0.7))
		return colorful.Hsv(0, 0.75, v)
	case 9:
		// Matrix rain cascading down the segments.
		i := math.Abs(math.Mod(t*2+float64(pos)*0.3+float64(seg)*0.1, 3)-1.5) / 1.5
		return colorful.Color{G: (64 + 191*i) / 255, B: 1 - i*0.7}
	case 10:
		// Flickering fire.
		flicker := math.Sin(t*10 + float64(pos)*3.7 + float64(seg)*5.3)
		_, noise := math.Modf(math.Abs(math.Sin(float64(pos)*7.3+float64(seg)*13.7) * 43758.5453))
		i := math.Max(0.5, math.Min(1, 0.7+flicker*0.2+noise*0.1))
		return colorful.Color{R: i, G: 0.75 * i * 0.7, B: 0.25 * i * 0.2}
	default:
		return classicRed
	}
}

// vec converts c to an RGBA vector with alpha a.
func vec(c colorful.Color, a float32) f32.Vec4 {
	c = c.Clamped()
	return f32.Vec4{float32(c.R), float32(c.G), float32(c.B), a}
}
