// SPDX-License-Identifier: Unlicense OR MIT

/*
Package anim implements a set of independent timelines advanced by
explicit time deltas.

A timeline maps its elapsed time to a value between a start and an end
value through an easing function:

	value = start + ease(clamp(elapsed/duration, 0, 1)) * (end - start)

A timeline completes exactly once, on the first Advance that carries its
elapsed time to or past its duration, and from then on reports exactly
its end value. Completed timelines stay queryable until their owner
calls Reap; the Engine never drops an unread completion.
*/
package anim

import (
	"errors"
	"time"

	"golang.org/x/exp/constraints"
	"golang.org/x/image/math/f32"
)

var (
	ErrUnknownTimeline = errors.New("anim: unknown timeline")
	ErrNotComplete     = errors.New("anim: timeline not complete")
)

// Handle identifies a timeline. The zero Handle is never valid.
type Handle uint32

// Easing maps linear progress in [0, 1] to eased progress in [0, 1].
// Every Easing is monotonic.
type Easing uint8

const (
	Linear Easing = iota
	EaseIn
	EaseOut
	EaseInOut
)

func (e Easing) Apply(t float32) float32 {
	switch e {
	case EaseIn:
		return t * t
	case EaseOut:
		u := 1 - t
		return 1 - u*u*u
	case EaseInOut:
		if t < 0.5 {
			return 2 * t * t
		}
		u := 1 - t
		return 1 - 2*u*u
	default:
		return t
	}
}

func (e Easing) String() string {
	switch e {
	case Linear:
		return "linear"
	case EaseIn:
		return "ease-in"
	case EaseOut:
		return "ease-out"
	case EaseInOut:
		return "ease-in-out"
	default:
		return "unknown"
	}
}

type timeline struct {
	from, to f32.Vec4
	value    f32.Vec4
	duration time.Duration
	elapsed  time.Duration
	ease     Easing
	complete bool
}

// Engine holds the active timelines of one owner. It is not safe for
// concurrent use.
type Engine struct {
	enabled   bool
	next      Handle
	timelines map[Handle]*timeline
}

// NewEngine returns an Engine. When enabled is false, Advance does
// nothing and every timeline starts out complete at its end value.
func NewEngine(enabled bool) *Engine {
	return &Engine{
		enabled:   enabled,
		timelines: make(map[Handle]*timeline),
	}
}

// SetEnabled switches animations on or off. Disabling completes every
// running timeline at its end value.
func (e *Engine) SetEnabled(enabled bool) {
	e.enabled = enabled
	if enabled {
		return
	}
	for _, t := range e.timelines {
		t.finish()
	}
}

func (e *Engine) Enabled() bool { return e.enabled }

// Start starts a scalar timeline.
func (e *Engine) Start(from, to float32, d time.Duration, ease Easing) Handle {
	return e.StartVec(f32.Vec4{from}, f32.Vec4{to}, d, ease)
}

// StartVec starts a timeline over four components.
func (e *Engine) StartVec(from, to f32.Vec4, d time.Duration, ease Easing) Handle {
	e.next++
	t := &timeline{
		from:     from,
		to:       to,
		value:    from,
		duration: d,
		ease:     ease,
	}
	if !e.enabled {
		t.finish()
	}
	e.timelines[e.next] = t
	return e.next
}

// Advance moves every running timeline forward by dt and returns the
// timelines that completed during this step.
func (e *Engine) Advance(dt time.Duration) []Handle {
	if !e.enabled {
		return nil
	}
	if dt < 0 {
		dt = 0
	}
	var done []Handle
	for h, t := range e.timelines {
		if t.complete {
			continue
		}
		t.elapsed += dt
		if t.elapsed >= t.duration {
			t.finish()
			done = append(done, h)
			continue
		}
		k := clamp(t.ease.Apply(t.progress()), 0, 1)
		for i := range t.value {
			t.value[i] = between(lerp(t.from[i], t.to[i], k), t.from[i], t.to[i])
		}
	}
	return done
}

// Value returns the first component of the timeline's current value.
func (e *Engine) Value(h Handle) (float32, error) {
	t, ok := e.timelines[h]
	if !ok {
		return 0, ErrUnknownTimeline
	}
	return t.value[0], nil
}

// Vec returns the timeline's current value.
func (e *Engine) Vec(h Handle) (f32.Vec4, error) {
	t, ok := e.timelines[h]
	if !ok {
		return f32.Vec4{}, ErrUnknownTimeline
	}
	return t.value, nil
}

// Progress returns the linear progress of the timeline in [0, 1].
func (e *Engine) Progress(h Handle) (float32, error) {
	t, ok := e.timelines[h]
	if !ok {
		return 0, ErrUnknownTimeline
	}
	if t.complete {
		return 1, nil
	}
	return t.progress(), nil
}

func (e *Engine) IsComplete(h Handle) (bool, error) {
	t, ok := e.timelines[h]
	if !ok {
		return false, ErrUnknownTimeline
	}
	return t.complete, nil
}

// Cancel removes a timeline without completing it.
func (e *Engine) Cancel(h Handle) error {
	if _, ok := e.timelines[h]; !ok {
		return ErrUnknownTimeline
	}
	delete(e.timelines, h)
	return nil
}

// Reap removes a completed timeline. Reaping a running timeline fails
// with ErrNotComplete.
func (e *Engine) Reap(h Handle) error {
	t, ok := e.timelines[h]
	if !ok {
		return ErrUnknownTimeline
	}
	if !t.complete {
		return ErrNotComplete
	}
	delete(e.timelines, h)
	return nil
}

// Len returns the number of timelines, completed or not, that have not
// been reaped or canceled.
func (e *Engine) Len() int {
	return len(e.timelines)
}

func (t *timeline) progress() float32 {
	if t.duration <= 0 {
		return 1
	}
	p := float32(float64(t.elapsed) / float64(t.duration))
	return clamp(p, 0, 1)
}

func (t *timeline) finish() {
	t.complete = true
	t.elapsed = t.duration
	t.value = t.to
}

func lerp[T constraints.Float](a, b, t T) T {
	return a + (b-a)*t
}

func clamp[T constraints.Float](v, lo, hi T) T {
	return max(lo, min(v, hi))
}

// between clamps v to the closed interval spanned by a and b. Rounding in
// lerp must never carry a value past the end it is heading for.
func between[T constraints.Float](v, a, b T) T {
	if a > b {
		a, b = b, a
	}
	return clamp(v, a, b)
}
