// SPDX-License-Identifier: Unlicense OR MIT

package render

import (
	"errors"
	"image"
	"regexp"
	"strings"
	"testing"
	"time"

	"corna.org/anim"
	"corna.org/draw"
	"corna.org/gpu"
	"corna.org/gpu/gputest"
	"corna.org/surface"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/image/math/f32"
)

type native struct {
	frames int
}

func (n *native) Configure(surface.Geometry) error { return nil }
func (n *native) RequestFrame()                    { n.frames++ }
func (n *native) Destroy() error                   { return nil }

type platform struct {
	natives  map[surface.Handle]*native
	contexts map[surface.Handle]*gputest.Context
	pending  surface.Handle
}

func (p *platform) NewSurface(h surface.Handle, _ surface.Role, _ surface.Geometry) (surface.Native, error) {
	n := &native{}
	p.natives[h] = n
	p.pending = h
	return n, nil
}

func (p *platform) NewContext(surface.Native) (gpu.Context, error) {
	c := gputest.NewContext()
	p.contexts[p.pending] = c
	return c, nil
}

type painter struct {
	size   image.Point
	deltas []time.Duration
	paint  func(f *Frame)
}

func (p *painter) Paint(f *Frame) []draw.Primitive {
	p.deltas = append(p.deltas, f.Delta)
	if p.paint != nil {
		p.paint(f)
	}
	return []draw.Primitive{
		draw.FilledRect{Rect: draw.R(0, 0, float32(f.Viewport.X), float32(f.Viewport.Y)), Color: f32.Vec4{0, 0, 0, 1}},
	}
}

func (p *painter) Size() image.Point { return p.size }

type fixture struct {
	log      *observer.ObservedLogs
	platform *platform
	surfaces *surface.Manager
	loop     *Loop
	trace    map[surface.Handle][]string
}

func newFixture(t *testing.T, fps int) *fixture {
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)
	p := &platform{
		natives:  make(map[surface.Handle]*native),
		contexts: make(map[surface.Handle]*gputest.Context),
	}
	f := &fixture{
		log:      logs,
		platform: p,
		surfaces: surface.NewManager(log, p),
		trace:    make(map[surface.Handle][]string),
	}
	f.surfaces.SetTrace(func(h surface.Handle, s surface.State) {
		f.trace[h] = append(f.trace[h], s.String())
	})
	f.loop = NewLoop(log, f.surfaces, fps, true)
	return f
}

func (f *fixture) create(t *testing.T, role surface.Role, size image.Point) (surface.Handle, *painter) {
	t.Helper()
	h, err := f.surfaces.Create(role, surface.Geometry{Anchor: surface.AnchorTop | surface.AnchorRight, Size: size})
	require.NoError(t, err)
	p := &painter{size: size}
	require.NoError(t, f.loop.Attach(h, p))
	return h, p
}

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func TestStateSequence(t *testing.T) {
	f := newFixture(t, 0)
	clock, _ := f.create(t, surface.Primary, image.Pt(150, 60))
	timer, _ := f.create(t, surface.Overlay, image.Pt(80, 30))

	now := t0
	for i := 0; i < 20; i++ {
		now = now.Add(ms(16))
		require.NoError(t, f.loop.Frame(clock, now))
		assert.True(t, f.loop.Armed(clock))
		if i%3 == 0 {
			require.NoError(t, f.loop.Frame(timer, now))
			assert.True(t, f.loop.Armed(timer))
		}
	}
	re := regexp.MustCompile(`^(AwaitingCallback FrameReady Rendering Presented )*AwaitingCallback $`)
	for _, h := range []surface.Handle{clock, timer} {
		seq := strings.Join(f.trace[h], " ") + " "
		assert.Regexp(t, re, seq, "%s", h)
	}
	assert.Equal(t, 21, f.platform.natives[clock].frames)
	assert.Equal(t, 20, f.platform.contexts[clock].Presents)
	assert.Equal(t, 7, f.platform.contexts[timer].Presents)
}

func TestExplicitMakeCurrent(t *testing.T) {
	f := newFixture(t, 0)
	clock, _ := f.create(t, surface.Primary, image.Pt(150, 60))
	timer, _ := f.create(t, surface.Overlay, image.Pt(80, 30))

	require.NoError(t, f.loop.Frame(clock, t0))
	assert.Equal(t, clock, f.surfaces.Current())
	require.NoError(t, f.loop.Frame(timer, t0))
	assert.Equal(t, timer, f.surfaces.Current())

	for _, c := range []*gputest.Context{f.platform.contexts[clock], f.platform.contexts[timer]} {
		ops := c.Ops()
		require.NotEmpty(t, ops)
		assert.Equal(t, "current", ops[0])
		assert.Equal(t, "begin", ops[1])
		assert.Equal(t, "present", ops[len(ops)-1])
	}
}

func TestDuplicateFrameRejected(t *testing.T) {
	f := newFixture(t, 0)
	clock, p := f.create(t, surface.Primary, image.Pt(150, 60))
	var nested error
	p.paint = func(fr *Frame) {
		nested = f.loop.Frame(clock, fr.Now)
	}
	require.NoError(t, f.loop.Frame(clock, t0))
	assert.ErrorIs(t, nested, ErrDuplicateFrame)
	assert.Len(t, p.deltas, 1)
	assert.Equal(t, 1, f.platform.contexts[clock].Presents)
	assert.Equal(t, 1, f.log.FilterMessage("duplicate frame signal").FilterField(zap.Stringer("surface", clock)).Len())
	assert.True(t, f.loop.Armed(clock))
}

func TestHiddenPausesTime(t *testing.T) {
	f := newFixture(t, 0)
	clock, p := f.create(t, surface.Primary, image.Pt(150, 60))

	var tl anim.Handle
	p.paint = func(fr *Frame) {
		if tl == 0 {
			tl = fr.Anim.Start(0, 1, time.Minute, anim.Linear)
		}
	}
	require.NoError(t, f.loop.Frame(clock, t0))
	require.NoError(t, f.loop.Frame(clock, t0.Add(ms(16))))

	require.NoError(t, f.loop.SetVisibility(clock, surface.Hidden))
	err := f.loop.Frame(clock, t0.Add(5*time.Second))
	assert.ErrorIs(t, err, ErrHidden)
	assert.True(t, f.loop.Armed(clock))

	require.NoError(t, f.loop.SetVisibility(clock, surface.Mapped))
	require.NoError(t, f.loop.Frame(clock, t0.Add(10*time.Second)))
	require.NoError(t, f.loop.Frame(clock, t0.Add(10*time.Second+ms(16))))

	want := []time.Duration{0, ms(16), 0, ms(16)}
	if diff := cmp.Diff(want, p.deltas); diff != "" {
		t.Errorf("deltas (-want +got):\n%s", diff)
	}
	e, err := f.loop.Anim(clock)
	require.NoError(t, err)
	v, err := e.Value(tl)
	require.NoError(t, err)
	assert.InDelta(t, float64(ms(32))/float64(time.Minute), v, 1e-6)
}

func TestFPSCapDefersRearm(t *testing.T) {
	f := newFixture(t, 10)
	clock, _ := f.create(t, surface.Primary, image.Pt(150, 60))
	n := f.platform.natives[clock]

	require.NoError(t, f.loop.Frame(clock, t0))
	assert.Equal(t, 2, n.frames)
	_, ok := f.loop.Deadline()
	assert.False(t, ok)

	require.NoError(t, f.loop.Frame(clock, t0.Add(ms(16))))
	assert.Equal(t, 2, n.frames)
	assert.True(t, f.loop.Armed(clock))
	d, ok := f.loop.Deadline()
	require.True(t, ok)
	assert.Equal(t, t0.Add(ms(16)).Add(ms(84)), d)

	// A signal before the re-arm is a protocol violation.
	assert.ErrorIs(t, f.loop.Frame(clock, t0.Add(ms(20))), ErrDuplicateFrame)

	f.loop.Tick(t0.Add(ms(50)))
	assert.Equal(t, 2, n.frames)
	f.loop.Tick(d)
	assert.Equal(t, 3, n.frames)
	_, ok = f.loop.Deadline()
	assert.False(t, ok)

	// Slow frames re-arm at once.
	require.NoError(t, f.loop.Frame(clock, t0.Add(ms(300))))
	assert.Equal(t, 4, n.frames)
}

func TestPresentFailureTearsDownOneSurface(t *testing.T) {
	f := newFixture(t, 0)
	clock, _ := f.create(t, surface.Primary, image.Pt(150, 60))
	timer, _ := f.create(t, surface.Overlay, image.Pt(80, 30))
	transient := errors.Join(gpu.ErrTransient, errors.New("eglSwapBuffers failed (300d)"))

	f.platform.contexts[timer].PresentErrs = []error{transient}
	require.NoError(t, f.loop.Frame(timer, t0))
	assert.Equal(t, 1, f.platform.contexts[timer].Presents)

	f.platform.contexts[timer].PresentErrs = []error{transient, transient}
	err := f.loop.Frame(timer, t0.Add(ms(16)))
	assert.ErrorIs(t, err, gpu.ErrTransient)
	_, ok := f.surfaces.Overlay()
	assert.False(t, ok)
	assert.True(t, f.platform.contexts[timer].Released)
	assert.Equal(t, 1, f.log.FilterMessage("surface failed").Len())

	require.NoError(t, f.loop.Frame(clock, t0.Add(ms(16))))
	assert.Equal(t, 1, f.platform.contexts[clock].Presents)
}

func TestDestroyWhilePainting(t *testing.T) {
	f := newFixture(t, 0)
	f.create(t, surface.Primary, image.Pt(150, 60))
	timer, p := f.create(t, surface.Overlay, image.Pt(80, 30))
	p.paint = func(*Frame) {
		require.NoError(t, f.surfaces.Destroy(timer))
	}
	require.NoError(t, f.loop.Frame(timer, t0))
	c := f.platform.contexts[timer]
	assert.Zero(t, c.Presents)
	assert.True(t, c.Released)
	assert.NotContains(t, c.Ops(), "present")
	assert.Zero(t, f.log.FilterMessage("frame callback not re-armed").Len())
}

func TestFollowPainterSize(t *testing.T) {
	f := newFixture(t, 0)
	clock, cp := f.create(t, surface.Primary, image.Pt(150, 60))
	timer, tp := f.create(t, surface.Overlay, image.Pt(80, 30))
	var resized []surface.Geometry
	f.loop.OnResize(func(h surface.Handle, g surface.Geometry) {
		resized = append(resized, g)
	})

	cp.size = image.Pt(220, 60)
	require.NoError(t, f.loop.Frame(clock, t0))
	s, _ := f.surfaces.Lookup(clock)
	assert.Equal(t, image.Pt(220, 60), s.Viewport())
	require.Len(t, resized, 1)
	assert.Equal(t, image.Pt(220, 60), resized[0].Size)

	tp.size = image.Point{}
	require.NoError(t, f.loop.Frame(timer, t0))
	_, ok := f.surfaces.Overlay()
	assert.False(t, ok)
	assert.Len(t, resized, 1)
	assert.False(t, f.loop.Armed(timer))
}

func TestCompletionReported(t *testing.T) {
	f := newFixture(t, 0)
	clock, p := f.create(t, surface.Primary, image.Pt(150, 60))
	var tl anim.Handle
	var completed [][]anim.Handle
	p.paint = func(fr *Frame) {
		if tl == 0 {
			tl = fr.Anim.Start(0, 1, ms(120), anim.EaseInOut)
		}
		completed = append(completed, fr.Completed)
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, f.loop.Frame(clock, t0.Add(time.Duration(i)*ms(50))))
	}
	assert.Equal(t, [][]anim.Handle{nil, nil, nil, {tl}}, completed)
}

func TestAnimationsDisabled(t *testing.T) {
	f := newFixture(t, 0)
	clock, p := f.create(t, surface.Primary, image.Pt(150, 60))
	var values []float32
	var tl anim.Handle
	p.paint = func(fr *Frame) {
		if tl == 0 {
			tl = fr.Anim.Start(0, 1, time.Second, anim.Linear)
		}
		v, _ := fr.Anim.Value(tl)
		values = append(values, v)
	}
	require.NoError(t, f.loop.Frame(clock, t0))
	f.loop.SetAnimations(false)
	require.NoError(t, f.loop.Frame(clock, t0.Add(ms(16))))
	assert.Equal(t, []float32{0, 1}, values)
}

func TestUnknownSurface(t *testing.T) {
	f := newFixture(t, 0)
	assert.ErrorIs(t, f.loop.Frame(surface.Handle(9), t0), surface.ErrUnknownSurface)
	assert.ErrorIs(t, f.loop.Attach(surface.Handle(9), &painter{}), surface.ErrUnknownSurface)
	assert.False(t, f.loop.Armed(surface.Handle(9)))
}

func TestMappedWhileMappedKeepsDelta(t *testing.T) {
	f := newFixture(t, 0)
	clock, p := f.create(t, surface.Primary, image.Pt(150, 60))
	require.NoError(t, f.loop.Frame(clock, t0))
	require.NoError(t, f.loop.Frame(clock, t0.Add(ms(100))))
	require.NoError(t, f.loop.SetVisibility(clock, surface.Mapped))
	require.NoError(t, f.loop.Frame(clock, t0.Add(ms(200))))

	want := []time.Duration{0, ms(100), ms(100)}
	if diff := cmp.Diff(want, p.deltas); diff != "" {
		t.Errorf("deltas (-want +got):\n%s", diff)
	}
}

func TestUnflushedBatchReported(t *testing.T) {
	f := newFixture(t, 0)
	clock, _ := f.create(t, surface.Primary, image.Pt(150, 60))
	require.NoError(t, f.surfaces.Transition(clock, surface.AwaitingCallback, surface.FrameReady))
	require.NoError(t, f.surfaces.Transition(clock, surface.FrameReady, surface.Rendering))
	s, err := f.surfaces.Lookup(clock)
	require.NoError(t, err)
	b, err := draw.Begin(s, 1)
	require.NoError(t, err)

	f.loop.settle(clock, b)
	assert.True(t, b.Done())
	assert.False(t, b.Flushed())
	assert.Zero(t, f.platform.contexts[clock].Presents)
	logs := f.log.FilterMessage("batch never flushed")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.DPanicLevel, logs.All()[0].Level)

	// A finished batch is left alone.
	f.loop.settle(clock, b)
	assert.Equal(t, 1, f.log.FilterMessage("batch never flushed").Len())
}

func TestTickFailureTearsDownSurface(t *testing.T) {
	f := newFixture(t, 10)
	clock, _ := f.create(t, surface.Primary, image.Pt(150, 60))
	timer, _ := f.create(t, surface.Overlay, image.Pt(80, 30))
	require.NoError(t, f.loop.Frame(clock, t0))
	require.NoError(t, f.loop.Frame(timer, t0))
	require.NoError(t, f.loop.Frame(clock, t0.Add(ms(16))))
	require.NoError(t, f.loop.Frame(timer, t0.Add(ms(16))))

	// Armed behind the loop's back, so the deferred re-arm is out of order.
	require.NoError(t, f.surfaces.Arm(timer))
	d, ok := f.loop.Deadline()
	require.True(t, ok)
	f.loop.Tick(d)

	_, ok = f.surfaces.Overlay()
	assert.False(t, ok)
	assert.Equal(t, 1, f.log.FilterMessage("surface failed").Len())
	assert.True(t, f.loop.Armed(clock))
	assert.Equal(t, 3, f.platform.natives[clock].frames)
}
