// SPDX-License-Identifier: Unlicense OR MIT

package surface

import (
	"fmt"
	"image"

	"corna.org/gpu"
)

// Handle identifies a surface. Handles are never reused; the zero Handle
// is invalid.
type Handle uint32

type Role uint8

const (
	// Primary is the clock surface, alive for the whole process.
	Primary Role = iota
	// Overlay is the on-demand timer surface.
	Overlay
)

type Visibility uint8

const (
	Hidden Visibility = iota
	Mapped
)

// State is the render state of a surface.
type State uint8

const (
	AwaitingCallback State = iota
	FrameReady
	Rendering
	Presented
)

// Anchor is a set of screen edges a surface is attached to.
type Anchor uint8

const (
	AnchorTop Anchor = 1 << iota
	AnchorBottom
	AnchorLeft
	AnchorRight
)

// Margins are distances in pixels from the anchored edges.
type Margins struct {
	Top, Right, Bottom, Left int
}

type Geometry struct {
	Anchor  Anchor
	Margins Margins
	// Size in pixels.
	Size image.Point
	// ExclusiveZone is the length of the anchored edge reserved from
	// other surfaces. Zero reserves nothing; -1 ignores other zones.
	ExclusiveZone int
}

// Native is the compositor side of a surface.
type Native interface {
	// Configure applies anchor, margins and size.
	Configure(g Geometry) error
	// RequestFrame subscribes to the next frame signal.
	RequestFrame()
	Destroy() error
}

// Platform creates native surfaces and binds graphics contexts to them.
type Platform interface {
	NewSurface(h Handle, role Role, g Geometry) (Native, error)
	NewContext(n Native) (gpu.Context, error)
}

// Aborter is an in-flight frame that can be discarded without
// presenting.
type Aborter interface {
	Abort()
}

// Surface is owned by a Manager. Callers look surfaces up by Handle for
// the duration of one operation and must not retain them.
type Surface struct {
	handle   Handle
	role     Role
	geom     Geometry
	vis      Visibility
	state    State
	native   Native
	ctx      gpu.Context
	inflight Aborter
}

func (s *Surface) Handle() Handle         { return s.handle }
func (s *Surface) Role() Role             { return s.role }
func (s *Surface) Geometry() Geometry     { return s.geom }
func (s *Surface) Visibility() Visibility { return s.vis }
func (s *Surface) State() State           { return s.state }
func (s *Surface) Context() gpu.Context   { return s.ctx }

// Rendering reports whether the surface is in the Rendering state.
func (s *Surface) Rendering() bool { return s.state == Rendering }

// Viewport returns the surface size in pixels.
func (s *Surface) Viewport() image.Point { return s.geom.Size }

func (r Role) String() string {
	switch r {
	case Primary:
		return "primary"
	case Overlay:
		return "overlay"
	default:
		panic("invalid Role")
	}
}

func (v Visibility) String() string {
	if v == Mapped {
		return "mapped"
	}
	return "hidden"
}

func (s State) String() string {
	switch s {
	case AwaitingCallback:
		return "AwaitingCallback"
	case FrameReady:
		return "FrameReady"
	case Rendering:
		return "Rendering"
	case Presented:
		return "Presented"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Next returns the only state that may follow s.
func (s State) Next() State {
	return (s + 1) % 4
}

// Busy reports whether a frame is being processed in state s.
func (s State) Busy() bool {
	return s == FrameReady || s == Rendering
}

func (h Handle) String() string {
	return fmt.Sprintf("surface#%d", uint32(h))
}

// Empty reports whether the geometry has no area.
func (g Geometry) Empty() bool {
	return g.Size.X <= 0 || g.Size.Y <= 0
}
