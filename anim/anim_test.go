// SPDX-License-Identifier: Unlicense OR MIT

package anim

import (
	"math/rand"
	"reflect"
	"testing"
	"testing/quick"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/math/f32"
)

func TestLinearCountdown(t *testing.T) {
	e := NewEngine(true)
	h := e.Start(1, 0, 5*time.Second, Linear)

	steps := []time.Duration{0, time.Second, time.Second, time.Second, time.Second, time.Second}
	want := []float32{1, 0.8, 0.6, 0.4, 0.2, 0}
	for i, dt := range steps {
		done := e.Advance(dt)
		v, err := e.Value(h)
		require.NoError(t, err)
		assert.InDelta(t, want[i], v, 1e-6, "step %d", i)
		complete, err := e.IsComplete(h)
		require.NoError(t, err)
		last := i == len(steps)-1
		assert.Equal(t, last, complete, "step %d", i)
		if last {
			assert.Equal(t, []Handle{h}, done)
			assert.Equal(t, float32(0), v)
		} else {
			assert.Empty(t, done)
		}
	}
	// Still complete, still exactly at the end, and not reported again.
	assert.Empty(t, e.Advance(time.Second))
	complete, _ := e.IsComplete(h)
	assert.True(t, complete)
	v, _ := e.Value(h)
	assert.Equal(t, float32(0), v)
}

func TestBoundaries(t *testing.T) {
	f := func(a, b int16, ms uint16, ease uint8) bool {
		from, to := float32(a)/8, float32(b)/8
		d := time.Duration(ms%5000+1) * time.Millisecond
		e := NewEngine(true)
		h := e.Start(from, to, d, Easing(ease%4))
		e.Advance(0)
		v0, _ := e.Value(h)
		e.Advance(d)
		v1, _ := e.Value(h)
		return v0 == from && v1 == to
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestOvershootClamped(t *testing.T) {
	e := NewEngine(true)
	h := e.StartVec(f32.Vec4{0, 10, -1, 2}, f32.Vec4{1, 20, -2, 2}, 100*time.Millisecond, EaseOut)
	done := e.Advance(time.Hour)
	require.Equal(t, []Handle{h}, done)
	v, err := e.Vec(h)
	require.NoError(t, err)
	assert.Equal(t, f32.Vec4{1, 20, -2, 2}, v)
	p, _ := e.Progress(h)
	assert.Equal(t, float32(1), p)
}

type steps []time.Duration

func (steps) Generate(r *rand.Rand, size int) reflect.Value {
	s := make(steps, r.Intn(size+1)+1)
	for i := range s {
		s[i] = time.Duration(r.Int63n(int64(400 * time.Millisecond)))
	}
	return reflect.ValueOf(s)
}

func TestMonotonic(t *testing.T) {
	for _, ease := range []Easing{Linear, EaseIn, EaseOut, EaseInOut} {
		ease := ease
		t.Run(ease.String(), func(t *testing.T) {
			f := func(a, b int16, s steps) bool {
				from, to := float32(a)/8, float32(b)/8
				e := NewEngine(true)
				h := e.Start(from, to, 2*time.Second, ease)
				prev, _ := e.Value(h)
				for _, dt := range s {
					e.Advance(dt)
					v, _ := e.Value(h)
					if from <= to && v < prev || from > to && v > prev {
						return false
					}
					prev = v
				}
				return true
			}
			if err := quick.Check(f, nil); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestEasingEndpoints(t *testing.T) {
	for _, ease := range []Easing{Linear, EaseIn, EaseOut, EaseInOut} {
		assert.Equal(t, float32(0), ease.Apply(0), ease.String())
		assert.Equal(t, float32(1), ease.Apply(1), ease.String())
	}
}

func TestReapAndCancel(t *testing.T) {
	e := NewEngine(true)
	a := e.Start(0, 1, time.Second, Linear)
	b := e.Start(0, 1, time.Second, Linear)

	assert.ErrorIs(t, e.Reap(a), ErrNotComplete)
	require.NoError(t, e.Cancel(b))
	_, err := e.Value(b)
	assert.ErrorIs(t, err, ErrUnknownTimeline)

	// A canceled timeline never reports completion.
	done := e.Advance(2 * time.Second)
	assert.Equal(t, []Handle{a}, done)

	// Completed timelines survive further advances until reaped.
	e.Advance(time.Second)
	v, err := e.Value(a)
	require.NoError(t, err)
	assert.Equal(t, float32(1), v)
	require.NoError(t, e.Reap(a))
	_, err = e.Value(a)
	assert.ErrorIs(t, err, ErrUnknownTimeline)
	assert.ErrorIs(t, e.Reap(a), ErrUnknownTimeline)
	assert.ErrorIs(t, e.Cancel(a), ErrUnknownTimeline)
	_, err = e.IsComplete(Handle(0))
	assert.ErrorIs(t, err, ErrUnknownTimeline)
	assert.Zero(t, e.Len())
}

func TestDisabled(t *testing.T) {
	e := NewEngine(false)
	h := e.Start(3, 7, time.Minute, EaseInOut)
	assert.Nil(t, e.Advance(time.Second))
	v, err := e.Value(h)
	require.NoError(t, err)
	assert.Equal(t, float32(7), v)
	complete, _ := e.IsComplete(h)
	assert.True(t, complete)
}

func TestDisableFinishesRunning(t *testing.T) {
	e := NewEngine(true)
	h := e.Start(0, 10, time.Second, Linear)
	e.Advance(100 * time.Millisecond)
	e.SetEnabled(false)
	v, _ := e.Value(h)
	assert.Equal(t, float32(10), v)
	assert.False(t, e.Enabled())
}

func TestIndependentTimelines(t *testing.T) {
	e := NewEngine(true)
	short := e.Start(0, 1, 100*time.Millisecond, Linear)
	long := e.Start(0, 1, time.Second, Linear)
	done := e.Advance(500 * time.Millisecond)
	assert.Equal(t, []Handle{short}, done)
	v, _ := e.Value(long)
	assert.InDelta(t, 0.5, v, 1e-6)
}
