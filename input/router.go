// SPDX-License-Identifier: Unlicense OR MIT

// Package input routes pointer events to the handler of the surface they
// arrived on.
package input

import (
	"fmt"

	"corna.org/surface"
	"go.uber.org/zap"
	"golang.org/x/image/math/f32"
)

type Kind uint8

const (
	Enter Kind = iota
	Leave
	Motion
	Press
	Release
	Scroll
)

// Linux input event codes for pointer buttons.
const (
	ButtonLeft   uint32 = 0x110
	ButtonRight  uint32 = 0x111
	ButtonMiddle uint32 = 0x112
)

// Event is a pointer event on one surface.
type Event struct {
	Surface surface.Handle
	Kind    Kind
	// Button is set for Press and Release.
	Button uint32
	// Position in surface pixels.
	Position f32.Vec2
	// Scroll is the vertical scroll amount; positive scrolls down.
	Scroll float32
}

// Request is a surface lifecycle request returned by a handler.
type Request uint8

const (
	None Request = iota
	StartOverlay
	StopOverlay
	// ToggleOverlay starts the overlay if there is none, and stops it
	// otherwise.
	ToggleOverlay
)

// Handler handles the events of one surface.
type Handler interface {
	Event(e Event) Request
}

// Lifecycle creates and destroys the overlay surface.
type Lifecycle interface {
	StartOverlay() error
	StopOverlay() error
	OverlayActive() bool
}

type route struct {
	role    surface.Role
	handler Handler
}

// Router delivers each event to exactly one handler. It is the only
// input path that starts or stops the overlay, and only on behalf of the
// primary surface.
type Router struct {
	log       *zap.Logger
	lifecycle Lifecycle
	routes    map[surface.Handle]route
}

func NewRouter(log *zap.Logger, l Lifecycle) *Router {
	return &Router{
		log:       log.Named("input"),
		lifecycle: l,
		routes:    make(map[surface.Handle]route),
	}
}

// Register sets the handler for surface h, replacing any previous one.
func (r *Router) Register(h surface.Handle, role surface.Role, hd Handler) {
	r.routes[h] = route{role: role, handler: hd}
}

func (r *Router) Unregister(h surface.Handle) {
	delete(r.routes, h)
}

// Dispatch delivers e and carries out the lifecycle request it yields.
// Events for surfaces without a handler are dropped.
func (r *Router) Dispatch(e Event) error {
	rt, ok := r.routes[e.Surface]
	if !ok {
		r.log.Debug("dropped event", zap.Stringer("surface", e.Surface), zap.Stringer("kind", e.Kind))
		return nil
	}
	req := rt.handler.Event(e)
	if req == None {
		return nil
	}
	if rt.role != surface.Primary {
		r.log.Warn("lifecycle request from non-primary surface",
			zap.Stringer("surface", e.Surface), zap.Stringer("request", req))
		return nil
	}
	if req == ToggleOverlay {
		req = StartOverlay
		if r.lifecycle.OverlayActive() {
			req = StopOverlay
		}
	}
	var err error
	switch req {
	case StartOverlay:
		err = r.lifecycle.StartOverlay()
	case StopOverlay:
		err = r.lifecycle.StopOverlay()
	}
	if err != nil {
		return fmt.Errorf("input: %s: %w", req, err)
	}
	return nil
}

func (k Kind) String() string {
	switch k {
	case Enter:
		return "enter"
	case Leave:
		return "leave"
	case Motion:
		return "motion"
	case Press:
		return "press"
	case Release:
		return "release"
	case Scroll:
		return "scroll"
	default:
		panic("invalid Kind")
	}
}

func (r Request) String() string {
	switch r {
	case None:
		return "none"
	case StartOverlay:
		return "start overlay"
	case StopOverlay:
		return "stop overlay"
	case ToggleOverlay:
		return "toggle overlay"
	default:
		panic("invalid Request")
	}
}
