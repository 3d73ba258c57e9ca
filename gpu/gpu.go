// SPDX-License-Identifier: Unlicense OR MIT

/*
Package gpu defines the contracts between the drawing code and a graphics
context bound to one native surface.

A Context owns the GPU state of exactly one surface. Only one Context may
be current at a time; callers switch explicitly with MakeCurrent before
issuing any Renderer call.
*/
package gpu

import (
	"errors"
	"image"

	"golang.org/x/image/math/f32"
)

// ErrTransient marks a recoverable driver failure. A Present that fails
// with an error wrapping ErrTransient may be retried once.
var ErrTransient = errors.New("gpu: transient failure")

// Built-in program names. Any other name refers to an externally
// supplied overlay program.
const (
	ProgramSolid    = "solid"
	ProgramTextured = "textured"
)

// Context is a rendering context bound to a native window.
type Context interface {
	// ID is unique for the lifetime of the process.
	ID() uint64
	MakeCurrent() error
	// Resize resizes the backing buffer to width×height pixels.
	Resize(width, height int) error
	// Present swaps the back buffer to the surface.
	Present() error
	// Release finishes outstanding GPU work and frees the context.
	Release()
	Renderer() Renderer
}

// Renderer issues draw calls on the current context.
type Renderer interface {
	// Begin sets the viewport and clears the frame to clear.
	Begin(viewport image.Point, clear f32.Vec4)
	// Use binds the pipeline for the following draw calls.
	Use(p Pipeline) error
	// Uniforms uploads uniform values to the bound program.
	Uniforms(u []Uniform)
	// Draw draws v as a list of triangles.
	Draw(v []Vertex)
}

// Pipeline identifies the GPU state for a group of draw calls.
type Pipeline struct {
	Program string
	// Texture is sampled by ProgramTextured. Renderers cache
	// uploads by image identity.
	Texture *image.RGBA
}

// Vertex is the vertex layout shared by every built-in program.
type Vertex struct {
	Pos   f32.Vec2
	UV    f32.Vec2
	Color f32.Vec4
}

// Uniform is a named shader parameter of Size floats, or a single
// integer if Int is set.
type Uniform struct {
	Name  string
	Value f32.Vec4
	Size  int
	Int   bool
}

func Float(name string, v float32) Uniform {
	return Uniform{Name: name, Value: f32.Vec4{v}, Size: 1}
}

func Vec2(name string, x, y float32) Uniform {
	return Uniform{Name: name, Value: f32.Vec4{x, y}, Size: 2}
}

func Vec4(name string, v f32.Vec4) Uniform {
	return Uniform{Name: name, Value: v, Size: 4}
}

func Int(name string, v int32) Uniform {
	return Uniform{Name: name, Value: f32.Vec4{float32(v)}, Size: 1, Int: true}
}
