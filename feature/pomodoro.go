// SPDX-License-Identifier: Unlicense OR MIT

package feature

import (
	"image"
	"time"

	"corna.org/anim"
	"corna.org/draw"
	"corna.org/gpu"
	"corna.org/input"
	"corna.org/render"
	"go.uber.org/zap"
	"golang.org/x/image/math/f32"
)

// Durations are the selectable countdown lengths, longest first.
var Durations = []time.Duration{
	30 * time.Minute,
	25 * time.Minute,
	20 * time.Minute,
	15 * time.Minute,
	10 * time.Minute,
	5 * time.Minute,
}

// PomodoroSize is the size of the overlay surface.
var PomodoroSize = image.Pt(80, 30)

// PlasmaProgram is the overlay program of the completion effect.
const PlasmaProgram = "plasma"

// plasmaMode selects the completion pattern of PlasmaProgram.
const plasmaMode = 2

type phase uint8

const (
	counting phase = iota
	completing
	finished
)

// Pomodoro counts down from the selected duration in wall-clock time,
// plays a completion effect and then asks for its surface to go away by
// reporting an empty size. Scrolling selects another duration and
// restarts the countdown.
type Pomodoro struct {
	log         *zap.Logger
	theme       Theme
	index       int
	phase       phase
	start       time.Time
	remaining   time.Duration
	lastSec     int
	flip        anim.Handle
	effect      anim.Handle
	effectStart time.Time
}

func NewPomodoro(log *zap.Logger, theme Theme) *Pomodoro {
	return &Pomodoro{
		log:       log.Named("pomodoro"),
		theme:     theme,
		remaining: Durations[0],
		lastSec:   -1,
	}
}

func (p *Pomodoro) SetTheme(t Theme) {
	p.theme = t
}

func (p *Pomodoro) Duration() time.Duration  { return Durations[p.index] }
func (p *Pomodoro) Remaining() time.Duration { return p.remaining }

// Completing reports whether the completion effect is playing.
func (p *Pomodoro) Completing() bool { return p.phase == completing }

// Finished reports whether the effect has ended.
func (p *Pomodoro) Finished() bool { return p.phase == finished }

func (p *Pomodoro) Size() image.Point {
	if p.phase == finished {
		return image.Point{}
	}
	return PomodoroSize
}

func (p *Pomodoro) Event(e input.Event) input.Request {
	if e.Kind != input.Scroll || e.Scroll == 0 || p.phase != counting {
		return input.None
	}
	n := len(Durations)
	if e.Scroll > 0 {
		p.index = (p.index + 1) % n
	} else {
		p.index = (p.index + n - 1) % n
	}
	p.start = time.Time{}
	p.remaining = Durations[p.index]
	p.lastSec = -1
	p.log.Info("duration", zap.Duration("duration", Durations[p.index]))
	return input.None
}

func (p *Pomodoro) Paint(f *render.Frame) []draw.Primitive {
	if p.phase == counting {
		if p.start.IsZero() {
			p.start = f.Now
		}
		p.remaining = max(Durations[p.index]-f.Now.Sub(p.start), 0)
		if sec := int(p.remaining / time.Second); sec != p.lastSec {
			p.lastSec = sec
			restart(f.Anim, &p.flip, flip)
		}
		if p.remaining > 0 {
			return p.paintTimer(f)
		}
		p.phase = completing
		if p.flip != 0 {
			f.Anim.Cancel(p.flip)
			p.flip = 0
		}
		restart(f.Anim, &p.effect, plasma)
		p.effectStart = f.Now
		p.log.Info("pomodoro complete", zap.Duration("duration", Durations[p.index]))
	}
	if p.phase == completing {
		k, err := f.Anim.Value(p.effect)
		done, _ := f.Anim.IsComplete(p.effect)
		if err != nil || done {
			f.Anim.Reap(p.effect)
			p.effect = 0
			p.phase = finished
			return nil
		}
		vp := f.Viewport
		return []draw.Primitive{
			draw.ShaderOverlay{
				Rect:    draw.R(0, 0, float32(vp.X), float32(vp.Y)),
				Program: PlasmaProgram,
				Uniforms: []gpu.Uniform{
					gpu.Float("uTime", float32(f.Now.Sub(p.effectStart).Seconds())),
					gpu.Float("uProgress", k),
					gpu.Int("uEffectMode", plasmaMode),
					gpu.Vec4("uColor", vec(p.theme.Accent, 1)),
				},
			},
		}
	}
	return nil
}

func (p *Pomodoro) paintTimer(f *render.Frame) []draw.Primitive {
	flipK := value(f.Anim, &p.flip)
	const (
		outer   = 3
		margin  = 2
		spacing = 2
	)
	vp := f.Viewport
	fw, fh := float32(vp.X)-outer*2, float32(vp.Y)-outer*2
	dh := max(fh-margin*2, 0)
	dw := dh * 0.62
	cw := dw * 0.28
	total := dw*4 + spacing*3 + cw
	x := outer + (fw-total)/2
	y := float32(outer + margin)

	sec := int(p.remaining / time.Second)
	m, s := sec/60, sec%60
	digits := [4]uint8{uint8(m / 10), uint8(m % 10), uint8(s / 10), uint8(s % 10)}
	c := vec(timerBlue, 1)
	solid := func(int) f32.Vec4 { return c }

	ps := []draw.Primitive{
		draw.FilledRect{Rect: draw.R(outer, outer, fw, fh), Color: vec(p.theme.Background, 1)},
	}
	for i, d := range digits {
		if i == 2 {
			ps = colon(ps, x, y, dw*0.11, dh, c)
			x += cw + spacing
		}
		h := dh
		if i == 3 {
			h = dh * (0.8 + 0.2*flipK)
		}
		ps = digit(ps, d, x, y+(dh-h), dw, h, solid)
		x += dw + spacing
	}
	return ps
}
