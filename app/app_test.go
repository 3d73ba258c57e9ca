// SPDX-License-Identifier: Unlicense OR MIT

package app

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"corna.org/config"
	"corna.org/feature"
	"corna.org/gpu"
	"corna.org/gpu/gputest"
	"corna.org/input"
	"corna.org/surface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type native struct {
	geom      surface.Geometry
	frames    int
	destroyed bool
}

func (n *native) Configure(g surface.Geometry) error { n.geom = g; return nil }
func (n *native) RequestFrame()                      { n.frames++ }
func (n *native) Destroy() error                     { n.destroyed = true; return nil }

type platform struct {
	natives  map[surface.Handle]*native
	contexts map[surface.Handle]*gputest.Context
	pending  surface.Handle
}

func newPlatform() *platform {
	return &platform{
		natives:  make(map[surface.Handle]*native),
		contexts: make(map[surface.Handle]*gputest.Context),
	}
}

func (p *platform) NewSurface(h surface.Handle, _ surface.Role, g surface.Geometry) (surface.Native, error) {
	n := &native{geom: g}
	p.natives[h] = n
	p.pending = h
	return n, nil
}

func (p *platform) NewContext(surface.Native) (gpu.Context, error) {
	c := gputest.NewContext()
	p.contexts[p.pending] = c
	return c, nil
}

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.Local)

func newApp(t *testing.T, cfg config.Config) (*App, *platform) {
	t.Helper()
	p := newPlatform()
	a, err := New(zap.NewNop(), p, cfg)
	require.NoError(t, err)
	return a, p
}

func rightClick(a *App, h surface.Handle) {
	a.Pointer(input.Event{Surface: h, Kind: input.Press, Button: input.ButtonRight})
	a.Pointer(input.Event{Surface: h, Kind: input.Release, Button: input.ButtonRight})
}

func TestNew(t *testing.T) {
	a, p := newApp(t, config.Default())
	h := a.Primary()
	require.NotZero(t, h)
	assert.Equal(t, surface.Geometry{
		Anchor:  surface.AnchorTop | surface.AnchorRight,
		Margins: surface.Margins{Top: 8, Right: 8, Bottom: 8, Left: 8},
		Size:    image.Pt(150, 60),
	}, p.natives[h].geom)
	assert.Equal(t, 1, p.natives[h].frames)

	a.Frame(h, t0)
	assert.Equal(t, 1, p.contexts[h].Presents)
	assert.Equal(t, 2, p.natives[h].frames)
}

func TestNewInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Theme.Accent = "blue"
	_, err := New(zap.NewNop(), newPlatform(), cfg)
	assert.Error(t, err)
}

func TestToggleOverlay(t *testing.T) {
	a, p := newApp(t, config.Default())
	primary := a.Primary()
	a.Frame(primary, t0)

	rightClick(a, primary)
	h := a.Overlay()
	require.NotZero(t, h)
	assert.True(t, a.OverlayActive())
	assert.Equal(t, surface.Geometry{
		Anchor:  surface.AnchorTop | surface.AnchorRight,
		Margins: surface.Margins{Top: 8, Right: 8 + 150 + overlayGap, Bottom: 8, Left: 8},
		Size:    feature.PomodoroSize,
	}, p.natives[h].geom)

	a.Frame(h, t0)
	assert.Equal(t, 1, p.contexts[h].Presents)

	// Scrolling on the overlay picks the next duration.
	a.Pointer(input.Event{Surface: h, Kind: input.Scroll, Scroll: 1})
	assert.Equal(t, 25*time.Minute, a.pomodoro.Duration())
	// Right clicks on the overlay do not stop it.
	rightClick(a, h)
	assert.Equal(t, h, a.Overlay())

	rightClick(a, primary)
	assert.Zero(t, a.Overlay())
	assert.True(t, p.natives[h].destroyed)
	assert.True(t, p.contexts[h].Released)

	// Events for the destroyed overlay are dropped.
	a.Pointer(input.Event{Surface: h, Kind: input.Scroll, Scroll: 1})
	a.Frame(h, t0.Add(time.Second))

	rightClick(a, primary)
	assert.NotZero(t, a.Overlay())
	assert.NotEqual(t, h, a.Overlay())
}

func TestOverlayFollowsClock(t *testing.T) {
	a, p := newApp(t, config.Default())
	primary := a.Primary()
	a.Frame(primary, t0)
	rightClick(a, primary)
	overlay := a.Overlay()

	// Showing seconds widens the clock after the next frame.
	a.Pointer(input.Event{Surface: primary, Kind: input.Press, Button: input.ButtonLeft})
	a.Frame(primary, t0.Add(time.Second))
	assert.Equal(t, image.Pt(220, 60), p.natives[primary].geom.Size)
	assert.Equal(t, image.Pt(220, 60), p.contexts[primary].Size)
	assert.Equal(t, 8+220+overlayGap, p.natives[overlay].geom.Margins.Right)
	assert.Equal(t, feature.PomodoroSize, p.natives[overlay].geom.Size)
}

func TestExpandedSizeClampsClock(t *testing.T) {
	cfg := config.Default()
	cfg.ExpandedSize = config.Size{Width: 200, Height: 50}
	a, p := newApp(t, cfg)
	primary := a.Primary()
	assert.Equal(t, image.Pt(150, 50), p.natives[primary].geom.Size)
	a.Frame(primary, t0)
	a.Pointer(input.Event{Surface: primary, Kind: input.Press, Button: input.ButtonLeft})
	a.Frame(primary, t0.Add(time.Second))
	assert.Equal(t, image.Pt(200, 50), p.natives[primary].geom.Size)
}

func TestApply(t *testing.T) {
	a, p := newApp(t, config.Default())
	primary := a.Primary()
	a.Frame(primary, t0)
	rightClick(a, primary)
	overlay := a.Overlay()

	cfg := config.Default()
	cfg.Position = config.Position{Anchor: config.BottomLeft, ExclusiveZone: 60}
	cfg.Margins = config.Margins{Top: 0, Right: 0, Bottom: 4, Left: 12}
	cfg.FPSCap = 0
	cfg.Theme.Accent = "#ff8800"
	require.NoError(t, a.Apply(cfg))

	assert.Equal(t, surface.Geometry{
		Anchor:        surface.AnchorBottom | surface.AnchorLeft,
		Margins:       surface.Margins{Bottom: 4, Left: 12},
		Size:          image.Pt(150, 60),
		ExclusiveZone: 60,
	}, p.natives[primary].geom)
	assert.Equal(t, surface.Geometry{
		Anchor:  surface.AnchorBottom | surface.AnchorLeft,
		Margins: surface.Margins{Bottom: 4, Left: 12 + 150 + overlayGap},
		Size:    feature.PomodoroSize,
	}, p.natives[overlay].geom)

	// Without a cap every frame re-arms at once.
	a.Frame(primary, t0.Add(time.Millisecond))
	_, pending := a.Deadline()
	assert.False(t, pending)

	bad := cfg
	bad.Theme.Background = "black"
	assert.Error(t, a.Apply(bad))
	assert.Equal(t, cfg, a.cfg)
}

func TestFPSCapDefersRearm(t *testing.T) {
	a, p := newApp(t, config.Default())
	primary := a.Primary()
	a.Frame(primary, t0)
	a.Frame(primary, t0.Add(5*time.Millisecond))
	assert.Equal(t, 2, p.natives[primary].frames)
	d, ok := a.Deadline()
	require.True(t, ok)
	a.Tick(d)
	assert.Equal(t, 3, p.natives[primary].frames)
}

func TestHiddenSurfaceSkipsFrames(t *testing.T) {
	a, p := newApp(t, config.Default())
	primary := a.Primary()
	a.Frame(primary, t0)
	a.Visibility(primary, surface.Hidden)
	a.Frame(primary, t0.Add(time.Second))
	assert.Equal(t, 1, p.contexts[primary].Presents)
	a.Visibility(primary, surface.Mapped)
	a.Frame(primary, t0.Add(2*time.Second))
	assert.Equal(t, 2, p.contexts[primary].Presents)
}

func TestClosedPrimaryStops(t *testing.T) {
	a, p := newApp(t, config.Default())
	primary := a.Primary()
	err := a.Run(context.Background(), func(ctx context.Context) error {
		a.Frame(primary, t0)
		a.Closed(primary)
		<-ctx.Done()
		return nil
	})
	require.NoError(t, err)
	assert.True(t, p.natives[primary].destroyed)
	assert.Zero(t, a.Primary())
}

func TestClosedOverlay(t *testing.T) {
	a, p := newApp(t, config.Default())
	primary := a.Primary()
	rightClick(a, primary)
	overlay := a.Overlay()
	a.Closed(overlay)
	assert.Zero(t, a.Overlay())
	assert.True(t, p.natives[overlay].destroyed)
	assert.Equal(t, primary, a.Primary())
}

func TestPrimaryFailureStops(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	p := newPlatform()
	a, err := New(zap.New(core), p, config.Default())
	require.NoError(t, err)
	primary := a.Primary()
	lost := errors.New("device lost")
	p.contexts[primary].PresentErrs = []error{lost}

	err = a.Run(context.Background(), func(ctx context.Context) error {
		a.Frame(primary, t0)
		<-ctx.Done()
		return nil
	})
	assert.ErrorIs(t, err, lost)
	assert.Zero(t, a.Primary())
	assert.True(t, p.contexts[primary].Released)
	assert.NotZero(t, logs.FilterMessage("stopping").Len())
}

func TestOverlayFinishes(t *testing.T) {
	a, p := newApp(t, config.Default())
	primary := a.Primary()
	rightClick(a, primary)
	overlay := a.Overlay()
	// The shortest duration.
	a.Pointer(input.Event{Surface: overlay, Kind: input.Scroll, Scroll: -1})
	a.Frame(overlay, t0)
	a.Frame(overlay, t0.Add(5*time.Minute))
	assert.True(t, a.pomodoro.Completing())
	a.Frame(overlay, t0.Add(5*time.Minute+6*time.Second))
	assert.Zero(t, a.Overlay())
	assert.True(t, p.natives[overlay].destroyed)
}
