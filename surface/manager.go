// SPDX-License-Identifier: Unlicense OR MIT

/*
Package surface manages the lifetime of on-screen surfaces.

A Manager exclusively owns every surface together with its native window
and graphics context. Exactly one Primary surface and at most one Overlay
surface exist at any time. Other packages refer to surfaces by Handle.

Each surface moves through the render states

	AwaitingCallback → FrameReady → Rendering → Presented → AwaitingCallback

and no other edge is accepted by Transition.
*/
package surface

import (
	"errors"
	"fmt"

	"corna.org/gpu"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

var (
	ErrContextCreation  = errors.New("surface: graphics context creation failed")
	ErrUnknownSurface   = errors.New("surface: unknown surface")
	ErrDuplicateOverlay = errors.New("surface: overlay already exists")
	ErrDuplicatePrimary = errors.New("surface: primary already exists")
	ErrSurfaceBusy      = errors.New("surface: frame in progress")
	ErrBadTransition    = errors.New("surface: invalid state transition")
)

type Manager struct {
	log      *zap.Logger
	platform Platform
	next     Handle
	surfaces map[Handle]*Surface
	primary  Handle
	overlay  Handle
	current  Handle

	trace     func(Handle, State)
	onDestroy []func(Handle)
}

func NewManager(log *zap.Logger, p Platform) *Manager {
	return &Manager{
		log:      log.Named("surface"),
		platform: p,
		surfaces: make(map[Handle]*Surface),
	}
}

// SetTrace registers fn to be called with every state a surface enters,
// including the initial AwaitingCallback.
func (m *Manager) SetTrace(fn func(Handle, State)) {
	m.trace = fn
}

// OnDestroy registers fn to be called after a surface is destroyed.
func (m *Manager) OnDestroy(fn func(Handle)) {
	m.onDestroy = append(m.onDestroy, fn)
}

// Create creates a mapped surface with a frame callback requested.
func (m *Manager) Create(role Role, g Geometry) (Handle, error) {
	switch {
	case role == Overlay && m.overlay != 0:
		return 0, ErrDuplicateOverlay
	case role == Primary && m.primary != 0:
		return 0, ErrDuplicatePrimary
	}
	m.next++
	h := m.next
	n, err := m.platform.NewSurface(h, role, g)
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrContextCreation, role, err)
		m.log.Error("create surface", zap.Stringer("surface", h), zap.Error(err))
		return 0, err
	}
	ctx, err := m.platform.NewContext(n)
	if err != nil {
		err = multierr.Append(fmt.Errorf("%w: %s: %w", ErrContextCreation, role, err), n.Destroy())
		m.log.Error("create surface", zap.Stringer("surface", h), zap.Error(err))
		return 0, err
	}
	s := &Surface{
		handle: h,
		role:   role,
		geom:   g,
		vis:    Mapped,
		state:  AwaitingCallback,
		native: n,
		ctx:    ctx,
	}
	m.surfaces[h] = s
	switch role {
	case Primary:
		m.primary = h
	case Overlay:
		m.overlay = h
	}
	m.log.Debug("created",
		zap.Stringer("surface", h),
		zap.Stringer("role", role),
		zap.Int("width", g.Size.X),
		zap.Int("height", g.Size.Y),
		zap.Uint64("context", ctx.ID()))
	m.enter(h, AwaitingCallback)
	n.RequestFrame()
	return h, nil
}

// Lookup returns the surface for h.
func (m *Manager) Lookup(h Handle) (*Surface, error) {
	s, ok := m.surfaces[h]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSurface, h)
	}
	return s, nil
}

// Resize changes the geometry of a surface between frames. An Overlay
// resized to an empty size is destroyed.
func (m *Manager) Resize(h Handle, g Geometry) error {
	s, err := m.Lookup(h)
	if err != nil {
		return err
	}
	if s.state.Busy() {
		return fmt.Errorf("%w: %s is %s", ErrSurfaceBusy, h, s.state)
	}
	if g.Empty() {
		if s.role == Overlay {
			return m.Destroy(h)
		}
		return fmt.Errorf("surface: empty geometry for %s", h)
	}
	if err := s.native.Configure(g); err != nil {
		return fmt.Errorf("surface: configure %s: %w", h, err)
	}
	if g.Size != s.geom.Size {
		if err := s.ctx.Resize(g.Size.X, g.Size.Y); err != nil {
			return fmt.Errorf("surface: resize %s: %w", h, err)
		}
	}
	s.geom = g
	return nil
}

// Destroy aborts any in-flight frame, releases the graphics context and
// destroys the native surface. Destroying an unknown surface does
// nothing.
func (m *Manager) Destroy(h Handle) error {
	s, ok := m.surfaces[h]
	if !ok {
		return nil
	}
	if s.state.Busy() && s.inflight != nil {
		s.inflight.Abort()
		m.log.Debug("aborted in-flight frame", zap.Stringer("surface", h), zap.Stringer("state", s.state))
	}
	s.inflight = nil
	delete(m.surfaces, h)
	switch h {
	case m.primary:
		m.primary = 0
	case m.overlay:
		m.overlay = 0
	}
	if m.current == h {
		m.current = 0
	}
	s.ctx.Release()
	err := s.native.Destroy()
	m.log.Debug("destroyed", zap.Stringer("surface", h), zap.Stringer("role", s.role))
	for _, fn := range m.onDestroy {
		fn(h)
	}
	return err
}

// SetVisibility records whether the surface is shown on any output.
func (m *Manager) SetVisibility(h Handle, v Visibility) error {
	s, err := m.Lookup(h)
	if err != nil {
		return err
	}
	s.vis = v
	return nil
}

// Transition moves the surface from state from to state to.
func (m *Manager) Transition(h Handle, from, to State) error {
	s, err := m.Lookup(h)
	if err != nil {
		return err
	}
	if s.state != from || from.Next() != to {
		return fmt.Errorf("%w: %s is %s, not %s → %s", ErrBadTransition, h, s.state, from, to)
	}
	m.enter(h, to)
	return nil
}

// Arm requests the next frame signal for a presented surface and moves it
// back to AwaitingCallback.
func (m *Manager) Arm(h Handle) error {
	if err := m.Transition(h, Presented, AwaitingCallback); err != nil {
		return err
	}
	m.surfaces[h].native.RequestFrame()
	return nil
}

// RequestFrame requests another frame signal for a surface still
// awaiting one, replacing a signal that was consumed without rendering.
func (m *Manager) RequestFrame(h Handle) error {
	s, err := m.Lookup(h)
	if err != nil {
		return err
	}
	if s.state != AwaitingCallback {
		return fmt.Errorf("%w: %s is %s", ErrBadTransition, h, s.state)
	}
	s.native.RequestFrame()
	return nil
}

func (m *Manager) enter(h Handle, st State) {
	m.surfaces[h].state = st
	if m.trace != nil {
		m.trace(h, st)
	}
}

// MakeCurrent makes the context of h current.
func (m *Manager) MakeCurrent(h Handle) error {
	s, err := m.Lookup(h)
	if err != nil {
		return err
	}
	if err := s.ctx.MakeCurrent(); err != nil {
		return fmt.Errorf("surface: make %s current: %w", h, err)
	}
	m.current = h
	return nil
}

// Current returns the surface whose context was last made current, or 0.
func (m *Manager) Current() Handle {
	return m.current
}

// SetInflight registers the frame being rendered for h, or clears it if
// a is nil.
func (m *Manager) SetInflight(h Handle, a Aborter) error {
	s, err := m.Lookup(h)
	if err != nil {
		return err
	}
	s.inflight = a
	return nil
}

// Primary returns the primary surface, if any.
func (m *Manager) Primary() (Handle, bool) {
	return m.primary, m.primary != 0
}

// Overlay returns the overlay surface, if any.
func (m *Manager) Overlay() (Handle, bool) {
	return m.overlay, m.overlay != 0
}

// Handles returns the live surfaces in creation order.
func (m *Manager) Handles() []Handle {
	hs := maps.Keys(m.surfaces)
	slices.Sort(hs)
	return hs
}

func (m *Manager) Len() int {
	return len(m.surfaces)
}

// Context returns the graphics context of h.
func (m *Manager) Context(h Handle) (gpu.Context, error) {
	s, err := m.Lookup(h)
	if err != nil {
		return nil, err
	}
	return s.ctx, nil
}

// Close destroys every surface, overlay first.
func (m *Manager) Close() error {
	hs := m.Handles()
	slices.Reverse(hs)
	var err error
	for _, h := range hs {
		err = multierr.Append(err, m.Destroy(h))
	}
	return err
}
