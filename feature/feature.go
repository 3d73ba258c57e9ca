// SPDX-License-Identifier: Unlicense OR MIT

/*
Package feature implements the widget features: the Clock shown on the
primary surface and the Pomodoro timer shown on the overlay.

Features are a closed set. Each paints its surface from the animation
state of the frame and turns pointer events into optional surface
lifecycle requests.
*/
package feature

import (
	"time"

	"corna.org/anim"
	"corna.org/input"
	"corna.org/render"
)

// Feature is either *Clock or *Pomodoro.
type Feature interface {
	render.Painter
	input.Handler
	feature()
}

var (
	_ Feature = (*Clock)(nil)
	_ Feature = (*Pomodoro)(nil)
)

func (*Clock) feature()    {}
func (*Pomodoro) feature() {}

// Name returns a short name for logging.
func Name(f Feature) string {
	switch f.(type) {
	case *Clock:
		return "clock"
	case *Pomodoro:
		return "pomodoro"
	default:
		panic("unreachable")
	}
}

// value returns the value of timeline *h, or 1 if there is none. A
// completed timeline is reaped and *h cleared.
func value(e *anim.Engine, h *anim.Handle) float32 {
	if *h == 0 {
		return 1
	}
	v, err := e.Value(*h)
	if err != nil {
		*h = 0
		return 1
	}
	if done, _ := e.IsComplete(*h); done {
		e.Reap(*h)
		*h = 0
	}
	return v
}

// restart cancels timeline *h, if any, and starts a 0 → 1 timeline in
// its place.
func restart(e *anim.Engine, h *anim.Handle, m motion) {
	if *h != 0 {
		e.Cancel(*h)
	}
	*h = e.Start(0, 1, m.d, m.ease)
}

type motion struct {
	d    time.Duration
	ease anim.Easing
}

var (
	flip   = motion{120 * time.Millisecond, anim.EaseInOut}
	fade   = motion{150 * time.Millisecond, anim.EaseOut}
	plasma = motion{5 * time.Second, anim.Linear}
)
