// SPDX-License-Identifier: Unlicense OR MIT

//go:build linux && cgo

package wayland

/*
#cgo LDFLAGS: -lwayland-client

#include <stdlib.h>
#include <wayland-client.h>
#include "wlr_layer_shell.h"
#include "wayland.h"
*/
import "C"

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"
	"unsafe"

	"corna.org/gpu"
	"corna.org/input"
	"corna.org/internal/egl"
	"corna.org/surface"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/image/math/f32"
	syscall "golang.org/x/sys/unix"
)

// Conn is the connection to the compositor. It implements
// surface.Platform. Except for Invoke, its methods must be called on the
// goroutine running Run, which must be locked to its OS thread for the
// EGL contexts to stay current.
type Conn struct {
	log        *zap.Logger
	disp       *C.struct_wl_display
	reg        *C.struct_wl_registry
	compositor *C.struct_wl_compositor
	shell      *C.struct_zwlr_layer_shell_v1
	seat       *C.struct_wl_seat
	seatName   C.uint32_t
	seatVer    C.uint32_t
	pointer    *C.struct_wl_pointer
	outputs    map[C.uint32_t]*C.struct_wl_output
	egl        *egl.Display

	sink     Sink
	surfaces map[*C.struct_wl_surface]*native
	layers   map[*C.struct_zwlr_layer_surface_v1]*native
	// kicks are first frame signals delivered by the loop.
	kicks []*native

	ptr struct {
		focus  *native
		pos    f32.Vec2
		dist   float32
		steps  int
		frames bool
	}

	box *mailbox
}

// native implements surface.Native with a layer surface.
type native struct {
	c        *Conn
	h        surface.Handle
	role     surface.Role
	surf     *C.struct_wl_surface
	layer    *C.struct_zwlr_layer_surface_v1
	callback *C.struct_wl_callback
	size     image.Point
	outputs  map[*C.struct_wl_output]bool
	// configured is set by the first layer surface configure event.
	configured bool
	// started is set once the first frame signal is delivered.
	started bool
	kick    bool
	dead    bool
}

var (
	_ surface.Platform = (*Conn)(nil)
	_ surface.Native   = (*native)(nil)
)

// Callbacks are dispatched from C without a context argument.
var conn *Conn

// Connect connects to the compositor named by $WAYLAND_DISPLAY. overlays
// are the fragment sources of the overlay programs compiled into every
// surface context.
func Connect(log *zap.Logger, overlays map[string]string) (*Conn, error) {
	if conn != nil {
		return nil, errors.New("wayland: already connected")
	}
	c := &Conn{
		log:      log.Named("wayland"),
		outputs:  make(map[C.uint32_t]*C.struct_wl_output),
		surfaces: make(map[*C.struct_wl_surface]*native),
		layers:   make(map[*C.struct_zwlr_layer_surface_v1]*native),
	}
	conn = c
	box, err := newMailbox()
	if err != nil {
		c.destroy()
		return nil, err
	}
	c.box = box
	c.disp = C.wl_display_connect(nil)
	if c.disp == nil {
		c.destroy()
		return nil, errors.New("wayland: wl_display_connect failed")
	}
	c.reg = C.wl_display_get_registry(c.disp)
	if c.reg == nil {
		c.destroy()
		return nil, errors.New("wayland: wl_display_get_registry failed")
	}
	C.corna_wl_registry_add_listener(c.reg)
	// Wait for the server to register all its globals to the
	// registry listener (corna_onRegistryGlobal).
	C.wl_display_roundtrip(c.disp)
	if c.compositor == nil {
		c.destroy()
		return nil, errors.New("wayland: no compositor available")
	}
	if c.shell == nil {
		c.destroy()
		return nil, errors.New("wayland: compositor does not support zwlr_layer_shell_v1")
	}
	d, err := egl.NewDisplay(unsafe.Pointer(c.disp), overlays)
	if err != nil {
		c.destroy()
		return nil, err
	}
	c.egl = d
	c.log.Debug("connected", zap.Int("outputs", len(c.outputs)), zap.Strings("egl_extensions", d.Extensions()))
	return c, nil
}

func (c *Conn) NewSurface(h surface.Handle, role surface.Role, g surface.Geometry) (surface.Native, error) {
	n := &native{
		c:       c,
		h:       h,
		role:    role,
		outputs: make(map[*C.struct_wl_output]bool),
	}
	n.surf = C.wl_compositor_create_surface(c.compositor)
	if n.surf == nil {
		return nil, errors.New("wayland: wl_compositor_create_surface failed")
	}
	ns := C.CString(Namespace)
	defer C.free(unsafe.Pointer(ns))
	n.layer = C.zwlr_layer_shell_v1_get_layer_surface(c.shell, n.surf, nil, C.uint32_t(layerFor(role)), ns)
	if n.layer == nil {
		C.wl_surface_destroy(n.surf)
		return nil, errors.New("wayland: get_layer_surface failed")
	}
	c.surfaces[n.surf] = n
	c.layers[n.layer] = n
	C.corna_wl_surface_add_listener(n.surf)
	C.corna_layer_surface_add_listener(n.layer)
	C.zwlr_layer_surface_v1_set_keyboard_interactivity(n.layer, C.ZWLR_LAYER_SURFACE_V1_KEYBOARD_INTERACTIVITY_NONE)
	if err := n.Configure(g); err != nil {
		return nil, multierr.Append(err, n.Destroy())
	}
	return n, nil
}

func (c *Conn) NewContext(n surface.Native) (gpu.Context, error) {
	nn, ok := n.(*native)
	if !ok || nn.c != c {
		return nil, errors.New("wayland: foreign native surface")
	}
	ctx, err := c.egl.NewContext(unsafe.Pointer(nn.surf), nn.size.X, nn.size.Y)
	if err != nil {
		return nil, err
	}
	return ctx, nil
}

// Invoke runs fn on the event loop. It is safe to call from any
// goroutine. After Close fn is dropped.
func (c *Conn) Invoke(fn func()) {
	if !c.box.post(fn) {
		c.log.Debug("dropped invoke after close")
	}
}

// Run dispatches compositor events to sink until ctx is done or the
// connection breaks.
func (c *Conn) Run(ctx context.Context, sink Sink) error {
	c.sink = sink
	defer func() { c.sink = nil }()
	stop := context.AfterFunc(ctx, c.wakeup)
	defer stop()
	dispfd := C.wl_display_get_fd(c.disp)
	// Poll for events and notifications.
	pollfds := []syscall.PollFd{
		{Fd: int32(dispfd), Events: syscall.POLLIN | syscall.POLLERR},
		{Fd: int32(c.box.fd()), Events: syscall.POLLIN | syscall.POLLERR},
	}
	dispFd := &pollfds[0]
	for {
		if C.wl_display_dispatch_pending(c.disp) < 0 {
			return errors.New("wayland: dispatch failed")
		}
		c.runInvokes()
		c.deliverKicks()
		sink.Tick(time.Now())
		if ctx.Err() != nil {
			return nil
		}
		dispFd.Events &^= syscall.POLLOUT
		if _, err := C.wl_display_flush(c.disp); err != nil {
			if err != syscall.EAGAIN {
				return fmt.Errorf("wayland: flush: %w", err)
			}
			// EAGAIN means the output buffer was full. Poll for
			// POLLOUT to know when we can write again.
			dispFd.Events |= syscall.POLLOUT
		}
		// Clear poll events.
		dispFd.Revents = 0
		deadline, ok := sink.Deadline()
		if _, err := syscall.Poll(pollfds, pollTimeout(time.Now(), deadline, ok)); err != nil && err != syscall.EINTR {
			return fmt.Errorf("wayland: poll: %w", err)
		}
		if err := c.box.drain(); err != nil {
			return err
		}
		switch {
		case dispFd.Revents&syscall.POLLIN != 0:
			if C.wl_display_dispatch(c.disp) < 0 {
				return errors.New("wayland: connection lost")
			}
		case dispFd.Revents&(syscall.POLLERR|syscall.POLLHUP) != 0:
			return errors.New("wayland: connection closed")
		}
	}
}

// Close disconnects from the compositor. Surfaces must be destroyed
// first.
func (c *Conn) Close() error {
	var err error
	if len(c.surfaces) > 0 {
		err = fmt.Errorf("wayland: %d surfaces still alive", len(c.surfaces))
	}
	c.destroy()
	return err
}

func (c *Conn) runInvokes() {
	for _, fn := range c.box.take() {
		fn()
	}
}

func (c *Conn) deliverKicks() {
	kicks := c.kicks
	c.kicks = nil
	for _, n := range kicks {
		if n.dead || c.sink == nil {
			continue
		}
		n.started = true
		c.sink.Frame(n.h, time.Now())
	}
}

// wakeup wakes up the event loop through the notification pipe.
func (c *Conn) wakeup() {
	if err := c.box.wake(); err != nil {
		c.log.Error("wakeup", zap.Error(err))
	}
}

func (c *Conn) destroy() {
	if c.egl != nil {
		c.egl.Release()
		c.egl = nil
	}
	c.releaseSeat()
	for name, output := range c.outputs {
		C.wl_output_destroy(output)
		delete(c.outputs, name)
	}
	if c.shell != nil {
		C.zwlr_layer_shell_v1_destroy(c.shell)
		c.shell = nil
	}
	if c.compositor != nil {
		C.wl_compositor_destroy(c.compositor)
		c.compositor = nil
	}
	if c.reg != nil {
		C.wl_registry_destroy(c.reg)
		c.reg = nil
	}
	if c.disp != nil {
		C.wl_display_disconnect(c.disp)
		c.disp = nil
	}
	if c.box != nil {
		if err := c.box.close(); err != nil {
			c.log.Warn("close notify pipe", zap.Error(err))
		}
	}
	if conn == c {
		conn = nil
	}
}

func (n *native) Configure(g surface.Geometry) error {
	if n.dead {
		return errors.New("wayland: surface destroyed")
	}
	if g.Empty() {
		return fmt.Errorf("wayland: invalid size %v", g.Size)
	}
	n.size = g.Size
	m := g.Margins
	C.zwlr_layer_surface_v1_set_size(n.layer, C.uint32_t(g.Size.X), C.uint32_t(g.Size.Y))
	C.zwlr_layer_surface_v1_set_anchor(n.layer, C.uint32_t(anchorBits(g.Anchor)))
	C.zwlr_layer_surface_v1_set_margin(n.layer, C.int32_t(m.Top), C.int32_t(m.Right), C.int32_t(m.Bottom), C.int32_t(m.Left))
	C.zwlr_layer_surface_v1_set_exclusive_zone(n.layer, C.int32_t(g.ExclusiveZone))
	C.wl_surface_commit(n.surf)
	return nil
}

// RequestFrame asks for a frame callback. The first frame of a surface is
// signaled by the event loop once the compositor has configured the
// surface, because unmapped surfaces receive no frame callbacks.
func (n *native) RequestFrame() {
	if n.dead {
		return
	}
	if !n.started {
		n.kick = true
		if n.configured {
			n.queueKick()
		}
		return
	}
	if n.callback != nil {
		return
	}
	n.callback = C.wl_surface_frame(n.surf)
	// Use the surface as listener data for corna_onFrameDone.
	C.corna_wl_callback_add_listener(n.callback, unsafe.Pointer(n.surf))
	C.wl_surface_commit(n.surf)
}

func (n *native) queueKick() {
	if !n.kick {
		return
	}
	n.kick = false
	n.c.kicks = append(n.c.kicks, n)
	n.c.wakeup()
}

func (n *native) Destroy() error {
	if n.dead {
		return nil
	}
	n.dead = true
	c := n.c
	if c.ptr.focus == n {
		c.ptr.focus = nil
	}
	if n.callback != nil {
		C.wl_callback_destroy(n.callback)
		n.callback = nil
	}
	delete(c.layers, n.layer)
	C.zwlr_layer_surface_v1_destroy(n.layer)
	delete(c.surfaces, n.surf)
	C.wl_surface_destroy(n.surf)
	return nil
}

//export corna_onRegistryGlobal
func corna_onRegistryGlobal(data unsafe.Pointer, reg *C.struct_wl_registry, name C.uint32_t, cintf *C.char, version C.uint32_t) {
	switch C.GoString(cintf) {
	case "wl_compositor":
		conn.compositor = (*C.struct_wl_compositor)(C.wl_registry_bind(reg, name, &C.wl_compositor_interface, min(version, 4)))
	case "wl_output":
		output := (*C.struct_wl_output)(C.wl_registry_bind(reg, name, &C.wl_output_interface, 1))
		conn.outputs[name] = output
	case "wl_seat":
		if conn.seat == nil {
			conn.seatName = name
			conn.seatVer = min(version, 5)
			conn.seat = (*C.struct_wl_seat)(C.wl_registry_bind(reg, name, &C.wl_seat_interface, conn.seatVer))
			C.corna_wl_seat_add_listener(conn.seat)
		}
	case "zwlr_layer_shell_v1":
		conn.shell = (*C.struct_zwlr_layer_shell_v1)(C.wl_registry_bind(reg, name, &C.zwlr_layer_shell_v1_interface, min(version, 4)))
	}
}

//export corna_onRegistryGlobalRemove
func corna_onRegistryGlobalRemove(data unsafe.Pointer, reg *C.struct_wl_registry, name C.uint32_t) {
	if conn.seat != nil && name == conn.seatName {
		conn.releaseSeat()
	}
	if output, exists := conn.outputs[name]; exists {
		for _, n := range conn.surfaces {
			n.leave(output)
		}
		C.wl_output_destroy(output)
		delete(conn.outputs, name)
	}
}

//export corna_onSeatCapabilities
func corna_onSeatCapabilities(data unsafe.Pointer, seat *C.struct_wl_seat, caps C.uint32_t) {
	if seat != conn.seat {
		panic("unexpected seat")
	}
	switch {
	case conn.pointer == nil && caps&C.WL_SEAT_CAPABILITY_POINTER != 0:
		conn.pointer = C.wl_seat_get_pointer(seat)
		conn.ptr.frames = conn.seatVer >= 5
		C.corna_wl_pointer_add_listener(conn.pointer)
	case conn.pointer != nil && caps&C.WL_SEAT_CAPABILITY_POINTER == 0:
		conn.releasePointer()
	}
}

func (c *Conn) releasePointer() {
	if c.pointer == nil {
		return
	}
	// wl_pointer.release needs version 3 of the seat.
	if c.seatVer >= 3 {
		C.wl_pointer_release(c.pointer)
	} else {
		C.wl_pointer_destroy(c.pointer)
	}
	c.pointer = nil
	c.ptr.focus = nil
}

func (c *Conn) releaseSeat() {
	c.releasePointer()
	if c.seat == nil {
		return
	}
	if c.seatVer >= 5 {
		C.wl_seat_release(c.seat)
	} else {
		C.wl_seat_destroy(c.seat)
	}
	c.seat = nil
}

//export corna_onSeatName
func corna_onSeatName(data unsafe.Pointer, seat *C.struct_wl_seat, name *C.char) {
}

//export corna_onSurfaceEnter
func corna_onSurfaceEnter(data unsafe.Pointer, surf *C.struct_wl_surface, output *C.struct_wl_output) {
	if n, ok := conn.surfaces[surf]; ok {
		n.enter(output)
	}
}

//export corna_onSurfaceLeave
func corna_onSurfaceLeave(data unsafe.Pointer, surf *C.struct_wl_surface, output *C.struct_wl_output) {
	if n, ok := conn.surfaces[surf]; ok {
		n.leave(output)
	}
}

func (n *native) enter(output *C.struct_wl_output) {
	first := len(n.outputs) == 0
	n.outputs[output] = true
	if first && n.c.sink != nil {
		n.c.sink.Visibility(n.h, surface.Mapped)
	}
}

func (n *native) leave(output *C.struct_wl_output) {
	if !n.outputs[output] {
		return
	}
	delete(n.outputs, output)
	if len(n.outputs) == 0 && n.c.sink != nil {
		n.c.sink.Visibility(n.h, surface.Hidden)
	}
}

//export corna_onLayerSurfaceConfigure
func corna_onLayerSurfaceConfigure(data unsafe.Pointer, layer *C.struct_zwlr_layer_surface_v1, serial, width, height C.uint32_t) {
	n, ok := conn.layers[layer]
	if !ok {
		return
	}
	C.zwlr_layer_surface_v1_ack_configure(layer, serial)
	if size := image.Pt(int(width), int(height)); size != n.size && width != 0 && height != 0 {
		conn.log.Debug("compositor resized surface", zap.Stringer("surface", n.h), zap.Stringer("requested", n.size), zap.Stringer("size", size))
	}
	if !n.configured {
		n.configured = true
		n.queueKick()
	}
}

//export corna_onLayerSurfaceClosed
func corna_onLayerSurfaceClosed(data unsafe.Pointer, layer *C.struct_zwlr_layer_surface_v1) {
	n, ok := conn.layers[layer]
	if !ok || conn.sink == nil {
		return
	}
	conn.sink.Closed(n.h)
}

//export corna_onFrameDone
func corna_onFrameDone(data unsafe.Pointer, callback *C.struct_wl_callback, t C.uint32_t) {
	C.wl_callback_destroy(callback)
	surf := (*C.struct_wl_surface)(data)
	n, ok := conn.surfaces[surf]
	if !ok || n.callback != callback {
		return
	}
	n.callback = nil
	if conn.sink != nil {
		conn.sink.Frame(n.h, time.Now())
	}
}

//export corna_onPointerEnter
func corna_onPointerEnter(data unsafe.Pointer, pointer *C.struct_wl_pointer, serial C.uint32_t, surf *C.struct_wl_surface, x, y C.wl_fixed_t) {
	n, ok := conn.surfaces[surf]
	if !ok {
		return
	}
	conn.ptr.focus = n
	conn.ptr.pos = f32.Vec2{fromFixed(int32(x)), fromFixed(int32(y))}
	conn.pointerEvent(input.Event{Kind: input.Enter})
}

//export corna_onPointerLeave
func corna_onPointerLeave(data unsafe.Pointer, p *C.struct_wl_pointer, serial C.uint32_t, surf *C.struct_wl_surface) {
	conn.flushScroll()
	conn.pointerEvent(input.Event{Kind: input.Leave})
	conn.ptr.focus = nil
}

//export corna_onPointerMotion
func corna_onPointerMotion(data unsafe.Pointer, p *C.struct_wl_pointer, t C.uint32_t, x, y C.wl_fixed_t) {
	conn.flushScroll()
	conn.ptr.pos = f32.Vec2{fromFixed(int32(x)), fromFixed(int32(y))}
	conn.pointerEvent(input.Event{Kind: input.Motion})
}

//export corna_onPointerButton
func corna_onPointerButton(data unsafe.Pointer, p *C.struct_wl_pointer, serial, t, wbtn, state C.uint32_t) {
	btn, ok := buttons[uint32(wbtn)]
	if !ok {
		return
	}
	kind := input.Release
	if state == C.WL_POINTER_BUTTON_STATE_PRESSED {
		kind = input.Press
	}
	conn.flushScroll()
	conn.pointerEvent(input.Event{Kind: kind, Button: btn})
}

//export corna_onPointerAxis
func corna_onPointerAxis(data unsafe.Pointer, p *C.struct_wl_pointer, t, axis C.uint32_t, value C.wl_fixed_t) {
	if axis != C.WL_POINTER_AXIS_VERTICAL_SCROLL {
		return
	}
	conn.ptr.dist += fromFixed(int32(value))
	if !conn.ptr.frames {
		conn.flushScroll()
	}
}

//export corna_onPointerFrame
func corna_onPointerFrame(data unsafe.Pointer, p *C.struct_wl_pointer) {
	conn.flushScroll()
}

//export corna_onPointerAxisSource
func corna_onPointerAxisSource(data unsafe.Pointer, p *C.struct_wl_pointer, source C.uint32_t) {
}

//export corna_onPointerAxisStop
func corna_onPointerAxisStop(data unsafe.Pointer, p *C.struct_wl_pointer, t, axis C.uint32_t) {
}

//export corna_onPointerAxisDiscrete
func corna_onPointerAxisDiscrete(data unsafe.Pointer, p *C.struct_wl_pointer, axis C.uint32_t, discrete C.int32_t) {
	if axis == C.WL_POINTER_AXIS_VERTICAL_SCROLL {
		conn.ptr.steps += int(discrete)
	}
}

func (c *Conn) flushScroll() {
	dist, steps := c.ptr.dist, c.ptr.steps
	c.ptr.dist, c.ptr.steps = 0, 0
	if dist == 0 && steps == 0 {
		return
	}
	c.pointerEvent(input.Event{Kind: input.Scroll, Scroll: scrollDelta(dist, steps)})
}

// pointerEvent delivers e to the focused surface.
func (c *Conn) pointerEvent(e input.Event) {
	n := c.ptr.focus
	if n == nil || c.sink == nil {
		return
	}
	e.Surface = n.h
	e.Position = c.ptr.pos
	c.sink.Pointer(e)
}
