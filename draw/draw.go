// SPDX-License-Identifier: Unlicense OR MIT

/*
Package draw implements immediate-mode drawing for a single surface frame.

A Batch collects primitives for one frame of one surface and is flushed
exactly once. Flush groups primitives that share GPU state, keeping
submission order inside each group, so that later primitives of a group
are drawn on top of earlier ones. Groups are drawn in the order of their
first primitive. There is no depth test.
*/
package draw

import (
	"errors"
	"fmt"
	"image"

	"corna.org/gpu"
	"golang.org/x/exp/slices"
	"golang.org/x/image/math/f32"
)

// ErrSurfaceNotReady is returned by Begin for a target that is not
// rendering a frame.
var ErrSurfaceNotReady = errors.New("draw: surface not ready")

// Kind is the kind of a primitive.
type Kind uint8

const (
	KindFilledRect Kind = iota
	KindTexturedQuad
	KindShaderOverlay
)

func (k Kind) String() string {
	switch k {
	case KindFilledRect:
		return "FilledRect"
	case KindTexturedQuad:
		return "TexturedQuad"
	case KindShaderOverlay:
		return "ShaderOverlay"
	default:
		panic("invalid Kind")
	}
}

// Rect is a rectangle in surface pixels, origin top-left.
type Rect struct {
	X, Y, W, H float32
}

func R(x, y, w, h float32) Rect {
	return Rect{X: x, Y: y, W: w, H: h}
}

func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Primitive is one of FilledRect, TexturedQuad or ShaderOverlay.
type Primitive interface {
	Kind() Kind
	pipeline() gpu.Pipeline
}

// FilledRect fills Rect with a solid RGBA color.
type FilledRect struct {
	Rect  Rect
	Color f32.Vec4
}

// TexturedQuad draws Texture stretched over Rect, multiplied by Tint.
// A zero Tint is treated as opaque white.
type TexturedQuad struct {
	Rect    Rect
	Texture *image.RGBA
	Tint    f32.Vec4
}

// ShaderOverlay covers Rect with an external program. Its uniforms are
// uploaded as given; the draw layer does not interpret them.
type ShaderOverlay struct {
	Rect     Rect
	Program  string
	Uniforms []gpu.Uniform
}

func (FilledRect) Kind() Kind    { return KindFilledRect }
func (TexturedQuad) Kind() Kind  { return KindTexturedQuad }
func (ShaderOverlay) Kind() Kind { return KindShaderOverlay }

func (FilledRect) pipeline() gpu.Pipeline {
	return gpu.Pipeline{Program: gpu.ProgramSolid}
}

func (q TexturedQuad) pipeline() gpu.Pipeline {
	return gpu.Pipeline{Program: gpu.ProgramTextured, Texture: q.Texture}
}

func (o ShaderOverlay) pipeline() gpu.Pipeline {
	return gpu.Pipeline{Program: o.Program}
}

// Target is a surface a batch draws to.
type Target interface {
	// Rendering reports whether the target is in its rendering state.
	Rendering() bool
	Viewport() image.Point
	Context() gpu.Context
}

// Batch accumulates the primitives of one frame.
type Batch struct {
	target   Target
	seq      uint64
	viewport image.Point
	clear    f32.Vec4
	prims    []Primitive
	done     bool
	flushed  bool
}

// Begin starts a batch for frame seq of t.
func Begin(t Target, seq uint64) (*Batch, error) {
	if !t.Rendering() {
		return nil, ErrSurfaceNotReady
	}
	return &Batch{
		target:   t,
		seq:      seq,
		viewport: t.Viewport(),
	}, nil
}

func (b *Batch) Seq() uint64 { return b.seq }

func (b *Batch) Viewport() image.Point { return b.viewport }

// Len returns the number of pushed primitives.
func (b *Batch) Len() int { return len(b.prims) }

// Done reports whether the batch was flushed or aborted.
func (b *Batch) Done() bool { return b.done }

// Flushed reports whether the batch was presented by Flush.
func (b *Batch) Flushed() bool { return b.flushed }

// SetClear sets the color the frame is cleared to. The default is
// transparent.
func (b *Batch) SetClear(c f32.Vec4) {
	b.clear = c
}

// Push appends p to the batch. Empty rectangles are dropped.
func (b *Batch) Push(p Primitive) {
	if b.done {
		panic("draw: Push on finished batch")
	}
	if rect(p).Empty() {
		return
	}
	b.prims = append(b.prims, p)
}

// Abort discards the batch without drawing or presenting. Aborting a
// finished batch does nothing.
func (b *Batch) Abort() {
	b.done = true
	b.prims = nil
}

// Flush issues the draw calls of the batch and presents the frame. A
// present that fails with gpu.ErrTransient is retried once.
func (b *Batch) Flush() error {
	if b.done {
		panic("draw: batch flushed twice")
	}
	b.done = true
	ctx := b.target.Context()
	r := ctx.Renderer()
	r.Begin(b.viewport, b.clear)
	for _, g := range group(b.prims) {
		if err := r.Use(g.pipeline); err != nil {
			return fmt.Errorf("draw: frame %d: %w", b.seq, err)
		}
		switch g.kind {
		case KindShaderOverlay:
			vp := b.viewport
			for _, p := range g.prims {
				o := p.(ShaderOverlay)
				r.Uniforms(append(slices.Clip(o.Uniforms), gpu.Vec2("uViewport", float32(vp.X), float32(vp.Y))))
				r.Draw(quad(nil, o.Rect, f32.Vec4{1, 1, 1, 1}))
			}
		default:
			r.Uniforms([]gpu.Uniform{gpu.Vec2("uViewport", float32(b.viewport.X), float32(b.viewport.Y))})
			var verts []gpu.Vertex
			for _, p := range g.prims {
				switch p := p.(type) {
				case FilledRect:
					verts = quad(verts, p.Rect, p.Color)
				case TexturedQuad:
					tint := p.Tint
					if tint == (f32.Vec4{}) {
						tint = f32.Vec4{1, 1, 1, 1}
					}
					verts = quad(verts, p.Rect, tint)
				}
			}
			r.Draw(verts)
		}
	}
	b.prims = nil
	err := ctx.Present()
	if errors.Is(err, gpu.ErrTransient) {
		err = ctx.Present()
	}
	if err != nil {
		return fmt.Errorf("draw: present frame %d: %w", b.seq, err)
	}
	b.flushed = true
	return nil
}

type drawGroup struct {
	kind     Kind
	pipeline gpu.Pipeline
	prims    []Primitive
}

// group partitions prims by pipeline. Groups are ordered by their first
// primitive and keep the submission order of their members.
func group(prims []Primitive) []drawGroup {
	type keyed struct {
		first int
		prim  Primitive
	}
	type key struct {
		kind Kind
		p    gpu.Pipeline
	}
	firsts := make(map[key]int)
	items := make([]keyed, len(prims))
	for i, p := range prims {
		k := key{p.Kind(), p.pipeline()}
		f, ok := firsts[k]
		if !ok {
			f = i
			firsts[k] = f
		}
		items[i] = keyed{first: f, prim: p}
	}
	slices.SortStableFunc(items, func(a, b keyed) int {
		return a.first - b.first
	})
	var groups []drawGroup
	for i, it := range items {
		if i == 0 || it.first != items[i-1].first {
			groups = append(groups, drawGroup{kind: it.prim.Kind(), pipeline: it.prim.pipeline()})
		}
		g := &groups[len(groups)-1]
		g.prims = append(g.prims, it.prim)
	}
	return groups
}

func rect(p Primitive) Rect {
	switch p := p.(type) {
	case FilledRect:
		return p.Rect
	case TexturedQuad:
		return p.Rect
	case ShaderOverlay:
		return p.Rect
	default:
		panic(fmt.Sprintf("draw: unknown primitive %T", p))
	}
}

// quad appends the two triangles covering r.
func quad(v []gpu.Vertex, r Rect, c f32.Vec4) []gpu.Vertex {
	x0, y0, x1, y1 := r.X, r.Y, r.X+r.W, r.Y+r.H
	return append(v,
		gpu.Vertex{Pos: f32.Vec2{x0, y0}, UV: f32.Vec2{0, 0}, Color: c},
		gpu.Vertex{Pos: f32.Vec2{x1, y0}, UV: f32.Vec2{1, 0}, Color: c},
		gpu.Vertex{Pos: f32.Vec2{x1, y1}, UV: f32.Vec2{1, 1}, Color: c},
		gpu.Vertex{Pos: f32.Vec2{x0, y0}, UV: f32.Vec2{0, 0}, Color: c},
		gpu.Vertex{Pos: f32.Vec2{x1, y1}, UV: f32.Vec2{1, 1}, Color: c},
		gpu.Vertex{Pos: f32.Vec2{x0, y1}, UV: f32.Vec2{0, 1}, Color: c},
	)
}
