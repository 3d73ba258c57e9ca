// SPDX-License-Identifier: Unlicense OR MIT

package feature

import (
	"image"
	"time"

	"corna.org/anim"
	"corna.org/draw"
	"corna.org/input"
	"corna.org/render"
	"go.uber.org/zap"
	"golang.org/x/image/math/f32"
)

// Clock surface sizes.
var (
	ClockSize        = image.Pt(150, 60)
	ClockSizeSeconds = image.Pt(220, 60)
)

// Clock is a 12-hour seven-segment clock. A left click toggles the
// seconds, a right click toggles the pomodoro overlay and scrolling
// cycles the color modes.
type Clock struct {
	log     *zap.Logger
	theme   Theme
	seconds bool
	mode    int
	// prev is the color mode being faded out.
	prev int
	// t drives the animated color modes. It stops while the surface is
	// hidden.
	t       time.Duration
	digits  [6]uint8
	lastSec int
	flip    anim.Handle
	fade    anim.Handle
	faded   bool
}

func NewClock(log *zap.Logger, theme Theme, seconds bool) *Clock {
	return &Clock{
		log:     log.Named("clock"),
		theme:   theme,
		seconds: seconds,
		lastSec: -1,
		faded:   true,
	}
}

func (c *Clock) SetTheme(t Theme) {
	c.theme = t
}

func (c *Clock) ShowsSeconds() bool { return c.seconds }

// Mode returns the color mode, in [0, ColorModes).
func (c *Clock) Mode() int { return c.mode }

// Digits returns the displayed hour, minute and second digits.
func (c *Clock) Digits() [6]uint8 { return c.digits }

func (c *Clock) Size() image.Point {
	if c.seconds {
		return ClockSizeSeconds
	}
	return ClockSize
}

func (c *Clock) Event(e input.Event) input.Request {
	switch e.Kind {
	case input.Press:
		switch e.Button {
		case input.ButtonLeft:
			c.seconds = !c.seconds
			c.log.Debug("toggled seconds", zap.Bool("seconds", c.seconds))
		case input.ButtonRight:
			return input.ToggleOverlay
		}
	case input.Scroll:
		m := c.mode
		switch {
		case e.Scroll > 0:
			m = (m + 1) % ColorModes
		case e.Scroll < 0:
			m = (m + ColorModes - 1) % ColorModes
		default:
			return input.None
		}
		c.prev, c.mode = c.mode, m
		c.faded = false
		c.log.Debug("color mode", zap.Int("mode", m))
	}
	return input.None
}

func (c *Clock) Paint(f *render.Frame) []draw.Primitive {
	c.t += f.Delta
	if now := f.Now; now.Second() != c.lastSec {
		c.lastSec = now.Second()
		h := now.Hour() % 12
		if h == 0 {
			h = 12
		}
		m, s := now.Minute(), now.Second()
		c.digits = [6]uint8{
			uint8(h / 10), uint8(h % 10),
			uint8(m / 10), uint8(m % 10),
			uint8(s / 10), uint8(s % 10),
		}
		restart(f.Anim, &c.flip, flip)
	}
	if !c.faded {
		restart(f.Anim, &c.fade, fade)
		c.faded = true
	}
	flipK := value(f.Anim, &c.flip)
	fadeK := value(f.Anim, &c.fade)

	const (
		outer   = 4
		spacing = 6
		rw      = 0.62
		rc      = 0.28
		rm      = 1.5
	)
	vp := f.Viewport
	dh := max(float32(vp.Y)-outer*2-rm*spacing*2, 0)
	dw := dh * rw
	cw := dw * rc
	n := 4
	total := dw*4 + spacing*3 + cw
	if c.seconds {
		n = 6
		total = dw*6 + spacing*7 + cw*2
	}
	margin := float32(max(spacing*rm, 4))
	fw, fh := total+margin*2, dh+margin*2
	fx := float32(vp.X) - fw - outer
	fy := float32(outer)

	ps := []draw.Primitive{
		draw.FilledRect{Rect: draw.R(fx, fy, fw, fh), Color: vec(c.theme.Background, 1)},
	}
	colorAt := func(pos, seg int) f32.Vec4 {
		t := c.t.Seconds()
		col := c.theme.modeColor(c.mode, t, pos, n, seg)
		if fadeK < 1 {
			col = c.theme.modeColor(c.prev, t, pos, n, seg).BlendLab(col, float64(fadeK))
		}
		return vec(col, 1)
	}
	x, y := fx+margin, fy+margin
	dot := dw * 0.11
	for pos := 0; pos < n; pos++ {
		if pos == 2 || pos == 4 {
			ps = colon(ps, x, y, dot, dh, colorAt(pos, 0))
			x += cw + spacing
		}
		h := dh
		if pos == n-1 && c.seconds {
			// The changing digit grows back to full height.
			h = dh * (0.8 + 0.2*flipK)
		}
		pos := pos
		ps = digit(ps, c.digits[pos], x, y+(dh-h), dw, h, func(seg int) f32.Vec4 {
			return colorAt(pos, seg)
		})
		x += dw + spacing
	}
	return ps
}
