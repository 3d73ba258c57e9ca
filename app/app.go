// SPDX-License-Identifier: Unlicense OR MIT

/*
Package app wires the surface manager, the render loop, the input router
and the features into one widget.

An App is the event sink of a platform: the platform delivers frame
signals, pointer events and visibility changes to it from a single event
loop goroutine. Every method of App must be called from that goroutine.

The primary surface shows the clock. The overlay surface shows the
pomodoro timer while it runs, placed next to the clock on the side away
from the anchored edge.
*/
package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"corna.org/config"
	"corna.org/draw"
	"corna.org/feature"
	"corna.org/input"
	"corna.org/render"
	"corna.org/surface"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// overlayGap is the distance in pixels between the clock and the overlay.
const overlayGap = 10

type App struct {
	log      *zap.Logger
	cfg      config.Config
	theme    feature.Theme
	surfaces *surface.Manager
	loop     *render.Loop
	router   *input.Router

	clock    *feature.Clock
	primary  surface.Handle
	pomodoro *feature.Pomodoro
	overlay  surface.Handle

	cancel  context.CancelFunc
	stopped bool
	err     error
}

// New creates the primary surface on p and starts rendering the clock.
func New(log *zap.Logger, p surface.Platform, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	theme, err := parseTheme(cfg.Theme)
	if err != nil {
		return nil, err
	}
	a := &App{
		log:   log.Named("app"),
		cfg:   cfg,
		theme: theme,
	}
	a.surfaces = surface.NewManager(log, p)
	a.surfaces.OnDestroy(a.destroyed)
	a.loop = render.NewLoop(log, a.surfaces, cfg.FPSCap, cfg.AnimationsEnabled)
	a.loop.OnResize(a.resized)
	a.router = input.NewRouter(log, a)

	a.clock = feature.NewClock(log, theme, false)
	h, err := a.surfaces.Create(surface.Primary, a.primaryGeometry())
	if err != nil {
		return nil, err
	}
	if err := a.loop.Attach(h, clockPainter{a}); err != nil {
		return nil, multierr.Append(err, a.surfaces.Destroy(h))
	}
	a.router.Register(h, surface.Primary, a.clock)
	a.primary = h
	a.log.Info("started",
		zap.String("anchor", string(cfg.Position.Anchor)),
		zap.Int("fps_cap", cfg.FPSCap),
		zap.Bool("animations", cfg.AnimationsEnabled))
	return a, nil
}

// Run runs loop until ctx is done, loop returns, or the primary surface
// goes away. It destroys every surface before returning.
func (a *App) Run(ctx context.Context, loop func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.cancel = cancel
	if a.stopped {
		cancel()
	}
	err := loop(ctx)
	return multierr.Combine(err, a.err, a.Close())
}

// Close destroys every surface.
func (a *App) Close() error {
	return a.surfaces.Close()
}

// Apply switches to cfg. The theme, frame rate cap, animations and the
// surface geometry change in place.
func (a *App) Apply(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	theme, err := parseTheme(cfg.Theme)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.theme = theme
	a.clock.SetTheme(theme)
	if a.pomodoro != nil {
		a.pomodoro.SetTheme(theme)
	}
	a.loop.SetFPSCap(cfg.FPSCap)
	a.loop.SetAnimations(cfg.AnimationsEnabled)
	if a.primary == 0 {
		return nil
	}
	g := a.primaryGeometry()
	if err := a.surfaces.Resize(a.primary, g); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	a.resized(a.primary, g)
	a.log.Info("applied configuration",
		zap.String("anchor", string(cfg.Position.Anchor)),
		zap.Int("fps_cap", cfg.FPSCap),
		zap.Bool("animations", cfg.AnimationsEnabled))
	return nil
}

// Frame handles a frame signal. A failing primary surface stops the app.
func (a *App) Frame(h surface.Handle, now time.Time) {
	primary := h == a.primary
	err := a.loop.Frame(h, now)
	switch {
	case err == nil:
	case errors.Is(err, render.ErrHidden):
		a.log.Debug("frame while hidden", zap.Stringer("surface", h))
	case errors.Is(err, render.ErrDuplicateFrame), errors.Is(err, surface.ErrUnknownSurface):
		// Logged by the loop, or a late signal for a destroyed surface.
	case primary:
		a.stop(err)
	}
}

func (a *App) Pointer(e input.Event) {
	if err := a.router.Dispatch(e); err != nil {
		a.log.Error("input", zap.Stringer("surface", e.Surface), zap.Error(err))
	}
}

func (a *App) Visibility(h surface.Handle, v surface.Visibility) {
	if err := a.loop.SetVisibility(h, v); err != nil {
		a.log.Warn("visibility", zap.Stringer("surface", h), zap.Error(err))
		return
	}
	a.log.Debug("visibility", zap.Stringer("surface", h), zap.Stringer("visibility", v))
}

// Closed handles the compositor closing a surface. Losing the primary
// surface stops the app.
func (a *App) Closed(h surface.Handle) {
	a.log.Info("surface closed by compositor", zap.Stringer("surface", h))
	if h == a.primary {
		a.stop(nil)
		return
	}
	if err := a.surfaces.Destroy(h); err != nil {
		a.log.Error("destroy", zap.Stringer("surface", h), zap.Error(err))
	}
}

func (a *App) Deadline() (time.Time, bool) {
	return a.loop.Deadline()
}

func (a *App) Tick(now time.Time) {
	a.loop.Tick(now)
}

// StartOverlay starts a fresh pomodoro on a new overlay surface.
func (a *App) StartOverlay() error {
	if a.overlay != 0 {
		return surface.ErrDuplicateOverlay
	}
	s, err := a.surfaces.Lookup(a.primary)
	if err != nil {
		return err
	}
	p := feature.NewPomodoro(a.log, a.theme)
	h, err := a.surfaces.Create(surface.Overlay, overlayGeometry(s.Geometry(), p.Size()))
	if err != nil {
		return err
	}
	if err := a.loop.Attach(h, p); err != nil {
		return multierr.Append(err, a.surfaces.Destroy(h))
	}
	a.router.Register(h, surface.Overlay, p)
	a.overlay, a.pomodoro = h, p
	a.log.Info("pomodoro started", zap.Stringer("surface", h), zap.Duration("duration", p.Duration()))
	return nil
}

func (a *App) StopOverlay() error {
	if a.overlay == 0 {
		return nil
	}
	return a.surfaces.Destroy(a.overlay)
}

func (a *App) OverlayActive() bool {
	return a.overlay != 0
}

// Primary returns the clock surface, or 0 once it is gone.
func (a *App) Primary() surface.Handle { return a.primary }

// Overlay returns the pomodoro surface, or 0 if there is none.
func (a *App) Overlay() surface.Handle { return a.overlay }

func (a *App) destroyed(h surface.Handle) {
	a.router.Unregister(h)
	switch h {
	case a.overlay:
		a.overlay, a.pomodoro = 0, nil
		a.log.Info("pomodoro stopped", zap.Stringer("surface", h))
	case a.primary:
		a.primary = 0
	}
}

// resized keeps the overlay next to the clock.
func (a *App) resized(h surface.Handle, g surface.Geometry) {
	if h != a.primary || a.overlay == 0 {
		return
	}
	s, err := a.surfaces.Lookup(a.overlay)
	if err != nil {
		return
	}
	og := overlayGeometry(g, s.Geometry().Size)
	if og == s.Geometry() {
		return
	}
	if err := a.surfaces.Resize(a.overlay, og); err != nil {
		a.log.Warn("move overlay", zap.Stringer("surface", a.overlay), zap.Error(err))
	}
}

func (a *App) stop(err error) {
	if err != nil {
		a.log.Error("stopping", zap.Error(err))
		if a.err == nil {
			a.err = err
		}
	}
	a.stopped = true
	if a.cancel != nil {
		a.cancel()
	}
}

func (a *App) primaryGeometry() surface.Geometry {
	m := a.cfg.Margins
	return surface.Geometry{
		Anchor:        anchor(a.cfg.Position.Anchor),
		Margins:       surface.Margins{Top: m.Top, Right: m.Right, Bottom: m.Bottom, Left: m.Left},
		Size:          a.clockSize(),
		ExclusiveZone: a.cfg.Position.ExclusiveZone,
	}
}

// clockSize is the collapsed size, widened in proportion when the clock
// shows seconds and clamped to the expanded size.
func (a *App) clockSize() image.Point {
	c, e := a.cfg.CollapsedSize, a.cfg.ExpandedSize
	sz := image.Pt(c.Width, c.Height)
	if a.clock.ShowsSeconds() {
		sz.X = sz.X * feature.ClockSizeSeconds.X / feature.ClockSize.X
	}
	return image.Pt(min(sz.X, e.Width), min(sz.Y, e.Height))
}

// clockPainter sizes the clock from the configuration.
type clockPainter struct {
	a *App
}

func (p clockPainter) Paint(f *render.Frame) []draw.Primitive { return p.a.clock.Paint(f) }
func (p clockPainter) Size() image.Point                      { return p.a.clockSize() }

// overlayGeometry places a surface of the given size beside the clock at
// primary, on the side away from the clock's horizontal anchor.
func overlayGeometry(primary surface.Geometry, size image.Point) surface.Geometry {
	g := surface.Geometry{
		Anchor:  primary.Anchor,
		Margins: primary.Margins,
		Size:    size,
	}
	off := primary.Size.X + overlayGap
	if primary.Anchor&surface.AnchorRight != 0 {
		g.Margins.Right += off
	} else {
		g.Margins.Left += off
	}
	return g
}

func anchor(a config.Anchor) surface.Anchor {
	switch a {
	case config.TopLeft:
		return surface.AnchorTop | surface.AnchorLeft
	case config.TopRight:
		return surface.AnchorTop | surface.AnchorRight
	case config.BottomLeft:
		return surface.AnchorBottom | surface.AnchorLeft
	case config.BottomRight:
		return surface.AnchorBottom | surface.AnchorRight
	default:
		panic(fmt.Errorf("invalid anchor %q", a))
	}
}

func parseTheme(t config.Theme) (feature.Theme, error) {
	th, err := feature.ParseTheme(t.Background, t.Foreground, t.Accent)
	if err != nil {
		return feature.Theme{}, fmt.Errorf("app: %w", err)
	}
	return th, nil
}
