// SPDX-License-Identifier: Unlicense OR MIT

// Package wayland drives wlr-layer-shell surfaces on a Wayland
// compositor and feeds their frame, pointer and output events to a Sink.
package wayland

import (
	"math"
	"time"

	"corna.org/input"
	"corna.org/surface"
)

// Sink receives compositor events on the event loop goroutine.
type Sink interface {
	// Frame delivers the frame signal of h.
	Frame(h surface.Handle, now time.Time)
	Pointer(e input.Event)
	Visibility(h surface.Handle, v surface.Visibility)
	// Closed reports that the compositor removed h.
	Closed(h surface.Handle)
	// Deadline returns the time of the next Tick, if any.
	Deadline() (time.Time, bool)
	Tick(now time.Time)
}

// Namespace is the layer surface namespace compositors match rules on.
const Namespace = "corna"

// wlr-layer-shell layers.
const (
	layerTop     = 2
	layerOverlay = 3
)

// layerFor places the timer overlay above the clock.
func layerFor(r surface.Role) uint32 {
	if r == surface.Overlay {
		return layerOverlay
	}
	return layerTop
}

// anchorBits converts a to the protocol anchor bitmask. The bits of
// surface.Anchor match the protocol's.
func anchorBits(a surface.Anchor) uint32 {
	return uint32(a & (surface.AnchorTop | surface.AnchorBottom | surface.AnchorLeft | surface.AnchorRight))
}

// From linux-event-codes.h.
var buttons = map[uint32]uint32{
	0x110: input.ButtonLeft,
	0x111: input.ButtonRight,
	0x112: input.ButtonMiddle,
}

// scrollDelta converts accumulated vertical axis motion to wheel steps,
// positive when scrolling down. Discrete steps are preferred when the
// device reports them.
func scrollDelta(dist float32, steps int) float32 {
	if steps != 0 {
		return float32(steps)
	}
	// A wheel notch is reported as 10 surface pixels.
	const notch = 10
	return dist / notch
}

// pollTimeout returns the unix.Poll timeout in milliseconds until
// deadline, or -1 to block.
func pollTimeout(now, deadline time.Time, ok bool) int {
	if !ok {
		return -1
	}
	d := deadline.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(float64(d) / float64(time.Millisecond)))
}

// fromFixed converts a Wayland wl_fixed_t 23.8 number to float32.
func fromFixed(v int32) float32 {
	// Convert to float64 to avoid overflow.
	// From wayland-util.h.
	b := ((1023 + 44) << 52) + (1 << 51) + uint64(int64(v))
	f := math.Float64frombits(b) - (3 << 43)
	return float32(f)
}
