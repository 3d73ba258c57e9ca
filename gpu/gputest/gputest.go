// SPDX-License-Identifier: Unlicense OR MIT

// Package gputest provides a recording gpu.Context for tests.
package gputest

import (
	"fmt"
	"image"
	"sync/atomic"

	"corna.org/gpu"
	"golang.org/x/image/math/f32"
)

var nextID atomic.Uint64

// Call is one recorded renderer or context call.
type Call struct {
	Op       string
	Viewport image.Point
	Pipeline gpu.Pipeline
	Uniforms []gpu.Uniform
	Vertices int
}

// Context records every call made through it. PresentErrs is consumed
// one error per Present call; a nil entry means success.
type Context struct {
	id          uint64
	Calls       []Call
	PresentErrs []error
	CurrentErr  error
	Presents    int
	Released    bool
	Size        image.Point
	// OnRelease is invoked by Release before the context is marked released.
	OnRelease func()
}

func NewContext() *Context {
	return &Context{id: nextID.Add(1)}
}

func (c *Context) ID() uint64 { return c.id }

func (c *Context) MakeCurrent() error {
	c.check()
	c.Calls = append(c.Calls, Call{Op: "current"})
	return c.CurrentErr
}

func (c *Context) Resize(width, height int) error {
	c.check()
	c.Size = image.Pt(width, height)
	c.Calls = append(c.Calls, Call{Op: "resize", Viewport: c.Size})
	return nil
}

func (c *Context) Present() error {
	c.check()
	c.Calls = append(c.Calls, Call{Op: "present"})
	if len(c.PresentErrs) > 0 {
		err := c.PresentErrs[0]
		c.PresentErrs = c.PresentErrs[1:]
		if err != nil {
			return err
		}
	}
	c.Presents++
	return nil
}

func (c *Context) Release() {
	if c.OnRelease != nil {
		c.OnRelease()
	}
	c.Released = true
}

func (c *Context) Renderer() gpu.Renderer { return (*renderer)(c) }

// Ops returns the recorded operation names in order.
func (c *Context) Ops() []string {
	ops := make([]string, len(c.Calls))
	for i, call := range c.Calls {
		ops[i] = call.Op
	}
	return ops
}

// Reset forgets the recorded calls.
func (c *Context) Reset() {
	c.Calls = nil
}

func (c *Context) check() {
	if c.Released {
		panic(fmt.Sprintf("gputest: context %d used after Release", c.id))
	}
}

type renderer Context

func (r *renderer) Begin(viewport image.Point, clear f32.Vec4) {
	(*Context)(r).check()
	r.Calls = append(r.Calls, Call{Op: "begin", Viewport: viewport})
}

func (r *renderer) Use(p gpu.Pipeline) error {
	r.Calls = append(r.Calls, Call{Op: "use", Pipeline: p})
	return nil
}

func (r *renderer) Uniforms(u []gpu.Uniform) {
	r.Calls = append(r.Calls, Call{Op: "uniforms", Uniforms: append([]gpu.Uniform(nil), u...)})
}

func (r *renderer) Draw(v []gpu.Vertex) {
	r.Calls = append(r.Calls, Call{Op: "draw", Vertices: len(v)})
}
