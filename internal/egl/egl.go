// SPDX-License-Identifier: Unlicense OR MIT

//go:build linux && cgo

package egl

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"unsafe"

	"corna.org/gpu"
	gpugl "corna.org/gpu/gl"
	"corna.org/internal/gl"
	"golang.org/x/exp/slices"
)

// Display is an initialized EGL display shared by every surface context.
type Display struct {
	disp   _EGLDisplay
	config _EGLConfig
	// overlays are the overlay programs compiled into each context.
	overlays map[string]string
}

// Context implements gpu.Context for a single wl_surface. Contexts are
// not shared; every Renderer call must follow the owning context's
// MakeCurrent.
type Context struct {
	id      uint64
	d       *Display
	ctx     _EGLContext
	win     *eglWindow
	surf    _EGLSurface
	funcs   *gl.Functions
	backend *gpugl.Backend
	width   int
	height  int
}

var (
	nilEGLDisplay _EGLDisplay
	nilEGLSurface _EGLSurface
	nilEGLContext _EGLContext
	nilEGLConfig  _EGLConfig
)

const (
	_EGL_ALPHA_SIZE             = 0x3021
	_EGL_BLUE_SIZE              = 0x3022
	_EGL_CONFIG_CAVEAT          = 0x3027
	_EGL_CONTEXT_CLIENT_VERSION = 0x3098
	_EGL_GREEN_SIZE             = 0x3023
	_EGL_EXTENSIONS             = 0x3055
	_EGL_NONE                   = 0x3038
	_EGL_OPENGL_ES2_BIT         = 0x4
	_EGL_RED_SIZE               = 0x3024
	_EGL_RENDERABLE_TYPE        = 0x3040
	_EGL_SURFACE_TYPE           = 0x3033
	_EGL_WINDOW_BIT             = 0x4
)

var lastID atomic.Uint64

// NewDisplay initializes EGL on the wl_display disp and picks an RGBA8
// config with alpha, so that transparent widget corners blend with the
// desktop.
func NewDisplay(disp unsafe.Pointer, overlays map[string]string) (*Display, error) {
	eglDisp := eglGetDisplay(nativeDisplay(disp))
	if eglDisp == nilEGLDisplay {
		return nil, fmt.Errorf("egl: eglGetDisplay failed: 0x%x", eglGetError())
	}
	if _, _, ok := eglInitialize(eglDisp); !ok {
		return nil, fmt.Errorf("egl: eglInitialize failed: 0x%x", eglGetError())
	}
	attribs := []_EGLint{
		_EGL_RENDERABLE_TYPE, _EGL_OPENGL_ES2_BIT,
		_EGL_SURFACE_TYPE, _EGL_WINDOW_BIT,
		_EGL_BLUE_SIZE, 8,
		_EGL_GREEN_SIZE, 8,
		_EGL_RED_SIZE, 8,
		_EGL_ALPHA_SIZE, 8,
		_EGL_CONFIG_CAVEAT, _EGL_NONE,
		_EGL_NONE,
	}
	cfg, ok := eglChooseConfig(eglDisp, attribs)
	if !ok {
		eglTerminate(eglDisp)
		return nil, fmt.Errorf("egl: eglChooseConfig failed: 0x%x", eglGetError())
	}
	if cfg == nilEGLConfig {
		eglTerminate(eglDisp)
		return nil, errors.New("egl: eglChooseConfig returned 0 configs")
	}
	return &Display{disp: eglDisp, config: cfg, overlays: overlays}, nil
}

// Extensions lists the display's EGL extensions.
func (d *Display) Extensions() []string {
	exts := strings.Fields(eglQueryString(d.disp, _EGL_EXTENSIONS))
	slices.Sort(exts)
	return exts
}

func (d *Display) Release() {
	eglTerminate(d.disp)
	eglReleaseThread()
}

// NewContext creates a context rendering to the wl_surface surf.
func (d *Display) NewContext(surf unsafe.Pointer, width, height int) (*Context, error) {
	ctxAttribs := []_EGLint{
		_EGL_CONTEXT_CLIENT_VERSION, 2,
		_EGL_NONE,
	}
	eglCtx := eglCreateContext(d.disp, d.config, nilEGLContext, ctxAttribs)
	if eglCtx == nilEGLContext {
		return nil, fmt.Errorf("egl: eglCreateContext failed: 0x%x", eglGetError())
	}
	c := &Context{
		id:     lastID.Add(1),
		d:      d,
		ctx:    eglCtx,
		funcs:  new(gl.Functions),
		width:  width,
		height: height,
	}
	win, err := newEGLWindow(surf, max(width, 1), max(height, 1))
	if err != nil {
		c.Release()
		return nil, fmt.Errorf("egl: %w", err)
	}
	c.win = win
	c.surf = eglCreateWindowSurface(d.disp, d.config, win.window(), []_EGLint{_EGL_NONE})
	if c.surf == nilEGLSurface {
		err := fmt.Errorf("egl: eglCreateWindowSurface failed: 0x%x", eglGetError())
		c.Release()
		return nil, err
	}
	if err := c.MakeCurrent(); err != nil {
		c.Release()
		return nil, err
	}
	// Frame pacing is done with surface frame callbacks.
	eglSwapInterval(d.disp, 0)
	b, err := gpugl.NewBackend(c.funcs, d.overlays)
	if err != nil {
		c.Release()
		return nil, err
	}
	c.backend = b
	return c, nil
}

func (c *Context) ID() uint64 { return c.id }

func (c *Context) MakeCurrent() error {
	if !eglMakeCurrent(c.d.disp, c.surf, c.surf, c.ctx) {
		return fmt.Errorf("egl: eglMakeCurrent error 0x%x", eglGetError())
	}
	return nil
}

func (c *Context) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("egl: invalid size %dx%d", width, height)
	}
	if width == c.width && height == c.height {
		return nil
	}
	c.width, c.height = width, height
	c.win.resize(width, height)
	return nil
}

func (c *Context) Present() error {
	if err := c.backend.Err(); err != nil {
		return err
	}
	if !eglSwapBuffers(c.d.disp, c.surf) {
		return swapError(int(eglGetError()))
	}
	return nil
}

func (c *Context) Renderer() gpu.Renderer {
	return c.backend
}

// Release finishes in-flight GL commands and destroys the context.
func (c *Context) Release() {
	if c.ctx == nilEGLContext {
		return
	}
	if c.surf != nilEGLSurface && c.MakeCurrent() == nil {
		// Make sure any in-flight GL commands are complete.
		c.funcs.Finish()
		if c.backend != nil {
			c.backend.Release()
			c.backend = nil
		}
	}
	eglMakeCurrent(c.d.disp, nilEGLSurface, nilEGLSurface, nilEGLContext)
	if c.surf != nilEGLSurface {
		eglDestroySurface(c.d.disp, c.surf)
		c.surf = nilEGLSurface
	}
	if c.win != nil {
		c.win.destroy()
		c.win = nil
	}
	eglDestroyContext(c.d.disp, c.ctx)
	c.ctx = nilEGLContext
}
