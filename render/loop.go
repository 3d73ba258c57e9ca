// SPDX-License-Identifier: Unlicense OR MIT

/*
Package render drives frames of every surface from compositor frame
signals.

Each frame signal runs one whole frame before returning: the surface's
animations advance by the time since its previous frame, its painter
produces primitives, the batch is flushed and presented, and the frame
callback is re-armed. Re-arming may be deferred to honor a frame rate
cap; the caller then calls Tick once Deadline has passed.
*/
package render

import (
	"errors"
	"fmt"
	"image"
	"time"

	"corna.org/anim"
	"corna.org/draw"
	"corna.org/surface"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

var (
	ErrDuplicateFrame = errors.New("render: frame signal while a frame is outstanding")
	ErrHidden         = errors.New("render: surface hidden")
)

// Painter produces the contents of one surface.
type Painter interface {
	// Paint returns the primitives of frame f, back to front.
	Paint(f *Frame) []draw.Primitive
	// Size is the surface size the painter currently wants. An empty size
	// asks for an Overlay surface to be destroyed.
	Size() image.Point
}

// Frame is the state handed to a Painter.
type Frame struct {
	Surface  surface.Handle
	Seq      uint64
	Now      time.Time
	Delta    time.Duration
	Viewport image.Point
	// Anim holds the timelines of the surface. Completed lists the
	// timelines that completed during this frame.
	Anim      *anim.Engine
	Completed []anim.Handle
}

type track struct {
	painter Painter
	anim    *anim.Engine
	last    time.Time
	seq     uint64
	// rearm is the time a deferred re-arm is due, or zero.
	rearm time.Time
}

type Loop struct {
	log        *zap.Logger
	surfaces   *surface.Manager
	interval   time.Duration
	animations bool
	tracks     map[surface.Handle]*track
	onResize   func(surface.Handle, surface.Geometry)
}

// NewLoop returns a loop for the surfaces of m. An fpsCap of zero leaves
// the frame rate to the compositor.
func NewLoop(log *zap.Logger, m *surface.Manager, fpsCap int, animations bool) *Loop {
	l := &Loop{
		log:        log.Named("render"),
		surfaces:   m,
		animations: animations,
		tracks:     make(map[surface.Handle]*track),
	}
	l.SetFPSCap(fpsCap)
	m.OnDestroy(func(h surface.Handle) {
		delete(l.tracks, h)
	})
	return l
}

// Attach binds a painter to a live surface.
func (l *Loop) Attach(h surface.Handle, p Painter) error {
	if _, err := l.surfaces.Lookup(h); err != nil {
		return err
	}
	l.tracks[h] = &track{
		painter: p,
		anim:    anim.NewEngine(l.animations),
	}
	return nil
}

// OnResize registers fn to be called after the loop resized a surface to
// follow its painter.
func (l *Loop) OnResize(fn func(surface.Handle, surface.Geometry)) {
	l.onResize = fn
}

// Anim returns the timelines of surface h.
func (l *Loop) Anim(h surface.Handle) (*anim.Engine, error) {
	t, ok := l.tracks[h]
	if !ok {
		return nil, fmt.Errorf("%w: %s", surface.ErrUnknownSurface, h)
	}
	return t.anim, nil
}

func (l *Loop) SetFPSCap(fps int) {
	l.interval = 0
	if fps > 0 {
		l.interval = time.Second / time.Duration(fps)
	}
}

// SetAnimations enables or disables the timelines of every surface.
func (l *Loop) SetAnimations(enabled bool) {
	l.animations = enabled
	for _, t := range l.tracks {
		t.anim.SetEnabled(enabled)
	}
}

// SetVisibility records a visibility change. Time spent hidden is never
// seen by animations: the first frame after mapping has a zero delta.
func (l *Loop) SetVisibility(h surface.Handle, v surface.Visibility) error {
	s, err := l.surfaces.Lookup(h)
	if err != nil {
		return err
	}
	was := s.Visibility()
	if err := l.surfaces.SetVisibility(h, v); err != nil {
		return err
	}
	if t, ok := l.tracks[h]; ok && was == surface.Hidden && v == surface.Mapped {
		t.last = time.Time{}
	}
	return nil
}

// Frame handles a frame signal for h.
func (l *Loop) Frame(h surface.Handle, now time.Time) error {
	t, ok := l.tracks[h]
	if !ok {
		return fmt.Errorf("%w: %s", surface.ErrUnknownSurface, h)
	}
	s, err := l.surfaces.Lookup(h)
	if err != nil {
		return err
	}
	if s.Visibility() == surface.Hidden && s.State() == surface.AwaitingCallback {
		t.last = time.Time{}
		if err := l.surfaces.RequestFrame(h); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrHidden, h)
	}
	if err := l.surfaces.Transition(h, surface.AwaitingCallback, surface.FrameReady); err != nil {
		l.log.Warn("duplicate frame signal", zap.Stringer("surface", h), zap.Stringer("state", s.State()))
		return fmt.Errorf("%w: %s is %s", ErrDuplicateFrame, h, s.State())
	}

	var delta time.Duration
	first := t.last.IsZero()
	if !first {
		delta = max(now.Sub(t.last), 0)
	}
	t.last = now
	completed := t.anim.Advance(delta)

	if err := l.surfaces.MakeCurrent(h); err != nil {
		return l.fail(h, err)
	}
	if err := l.surfaces.Transition(h, surface.FrameReady, surface.Rendering); err != nil {
		return l.fail(h, err)
	}
	t.seq++
	b, err := draw.Begin(s, t.seq)
	if err != nil {
		l.log.DPanic("begin frame", zap.Stringer("surface", h), zap.Error(err))
		return l.fail(h, err)
	}
	defer l.settle(h, b)
	if err := l.surfaces.SetInflight(h, b); err != nil {
		b.Abort()
		return err
	}
	f := &Frame{
		Surface:   h,
		Seq:       t.seq,
		Now:       now,
		Delta:     delta,
		Viewport:  s.Viewport(),
		Anim:      t.anim,
		Completed: completed,
	}
	prims := t.painter.Paint(f)
	if b.Done() {
		// Destroyed while painting.
		return nil
	}
	for _, p := range prims {
		b.Push(p)
	}
	if err := l.surfaces.SetInflight(h, nil); err != nil {
		b.Abort()
		return err
	}
	if err := b.Flush(); err != nil {
		return l.fail(h, err)
	}
	if err := l.surfaces.Transition(h, surface.Rendering, surface.Presented); err != nil {
		return l.fail(h, err)
	}

	if !first && l.interval > 0 && delta < l.interval {
		t.rearm = now.Add(l.interval - delta)
	} else if err := l.surfaces.Arm(h); err != nil {
		return l.fail(h, err)
	}

	if err := l.follow(h, s, t); err != nil {
		l.log.Warn("resize", zap.Stringer("surface", h), zap.Error(err))
	}
	if _, alive := l.tracks[h]; alive && !l.Armed(h) {
		l.log.DPanic("frame callback not re-armed", zap.Stringer("surface", h))
	}
	return nil
}

// follow resizes s to its painter's size.
func (l *Loop) follow(h surface.Handle, s *surface.Surface, t *track) error {
	size := t.painter.Size()
	g := s.Geometry()
	if size == g.Size {
		return nil
	}
	g.Size = size
	if err := l.surfaces.Resize(h, g); err != nil {
		return err
	}
	if _, alive := l.tracks[h]; alive && l.onResize != nil {
		l.onResize(h, g)
	}
	return nil
}

// settle aborts a batch that left its frame neither flushed nor aborted.
func (l *Loop) settle(h surface.Handle, b *draw.Batch) {
	if b.Done() {
		return
	}
	l.log.DPanic("batch never flushed", zap.Stringer("surface", h), zap.Uint64("seq", b.Seq()))
	b.Abort()
}

// fail tears the surface down. Other surfaces are unaffected.
func (l *Loop) fail(h surface.Handle, err error) error {
	l.log.Error("surface failed", zap.Stringer("surface", h), zap.Error(err))
	return multierr.Append(fmt.Errorf("render: %s: %w", h, err), l.surfaces.Destroy(h))
}

// Armed reports whether h will receive another frame signal, either
// because its frame callback is requested or because a deferred re-arm
// is pending.
func (l *Loop) Armed(h surface.Handle) bool {
	t, ok := l.tracks[h]
	if !ok {
		return false
	}
	s, err := l.surfaces.Lookup(h)
	if err != nil {
		return false
	}
	switch s.State() {
	case surface.AwaitingCallback:
		return true
	case surface.Presented:
		return !t.rearm.IsZero()
	default:
		return false
	}
}

// Deadline returns the earliest pending re-arm.
func (l *Loop) Deadline() (time.Time, bool) {
	var d time.Time
	for _, t := range l.tracks {
		if t.rearm.IsZero() {
			continue
		}
		if d.IsZero() || t.rearm.Before(d) {
			d = t.rearm
		}
	}
	return d, !d.IsZero()
}

// Tick issues the re-arms due at now.
func (l *Loop) Tick(now time.Time) {
	hs := maps.Keys(l.tracks)
	slices.Sort(hs)
	for _, h := range hs {
		t, ok := l.tracks[h]
		if !ok || t.rearm.IsZero() || now.Before(t.rearm) {
			continue
		}
		t.rearm = time.Time{}
		if err := l.surfaces.Arm(h); err != nil {
			// Logged by fail; the other surfaces keep ticking.
			_ = l.fail(h, err)
		}
	}
}
