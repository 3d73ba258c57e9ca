// SPDX-License-Identifier: Unlicense OR MIT

// Package gl implements gpu.Renderer with OpenGL ES 2.0.
package gl

import (
	"errors"
	"fmt"
	"image"
	"unsafe"

	"corna.org/gpu"
	"corna.org/internal/gl"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/image/math/f32"
)

// Backend implements gpu.Renderer. It must only be used while its
// context is current.
type Backend struct {
	funcs gl.API
	progs map[string]*program
	vbo   gl.Buffer
	// textures caches uploads by image identity.
	textures map[*image.RGBA]*texture
	frame    uint64

	state glstate
}

// State tracking.
type glstate struct {
	prog *program
	tex  *texture
	// nattr is the current number of enabled vertex arrays.
	nattr int
}

type program struct {
	obj      gl.Program
	uniforms map[string]gl.Uniform
	textured bool
}

type texture struct {
	obj gl.Texture
	// frame is the last frame the texture was bound in.
	frame uint64
}

// Vertex attribute locations.
var attribs = []string{"pos", "uv", "color"}

const vertexStride = int(unsafe.Sizeof(gpu.Vertex{}))

// NewBackend compiles the built-in programs and the overlay programs, given
// as fragment shader sources by name.
func NewBackend(f gl.API, overlays map[string]string) (*Backend, error) {
	glVer := f.GetString(gl.VERSION)
	ver, err := gl.ParseGLVersion(glVer)
	if err != nil {
		return nil, err
	}
	if ver[0] < 2 {
		return nil, fmt.Errorf("gl: OpenGL ES %d.%d is too old", ver[0], ver[1])
	}
	b := &Backend{
		funcs:    f,
		progs:    make(map[string]*program),
		textures: make(map[*image.RGBA]*texture),
	}
	srcs := map[string]string{
		gpu.ProgramSolid:    solidFSrc,
		gpu.ProgramTextured: texturedFSrc,
	}
	for name, src := range overlays {
		if _, exists := srcs[name]; exists {
			return nil, fmt.Errorf("gl: overlay program %q shadows a built-in program", name)
		}
		srcs[name] = src
	}
	names := maps.Keys(srcs)
	slices.Sort(names)
	for _, name := range names {
		prog, err := gl.CreateProgram(f, vertexSrc, srcs[name], attribs)
		if err != nil {
			b.Release()
			return nil, fmt.Errorf("gl: program %q: %w", name, err)
		}
		b.progs[name] = &program{
			obj:      prog,
			uniforms: make(map[string]gl.Uniform),
			textured: name == gpu.ProgramTextured,
		}
	}
	b.vbo = f.CreateBuffer()
	if !b.vbo.Valid() {
		b.Release()
		return nil, errors.New("gl: glGenBuffers failed")
	}
	return b, nil
}

func (b *Backend) Begin(viewport image.Point, clear f32.Vec4) {
	// Assume GL state is reset.
	b.state = glstate{}
	b.frame++
	b.evictTextures()
	f := b.funcs
	f.Viewport(0, 0, viewport.X, viewport.Y)
	f.ClearColor(clear[0], clear[1], clear[2], clear[3])
	f.Clear(gl.COLOR_BUFFER_BIT)
	f.Disable(gl.DEPTH_TEST)
	f.Enable(gl.BLEND)
	f.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
}

func (b *Backend) Use(p gpu.Pipeline) error {
	prog, ok := b.progs[p.Program]
	if !ok {
		return fmt.Errorf("gl: unknown program %q", p.Program)
	}
	if b.state.prog != prog {
		b.funcs.UseProgram(prog.obj)
		b.state.prog = prog
	}
	if !prog.textured {
		return nil
	}
	if p.Texture == nil {
		return errors.New("gl: textured pipeline without texture")
	}
	b.bindTexture(p.Texture)
	if loc := prog.uniform(b.funcs, "uTex"); loc.Valid() {
		b.funcs.Uniform1i(loc, 0)
	}
	return nil
}

func (b *Backend) Uniforms(us []gpu.Uniform) {
	prog := b.state.prog
	if prog == nil {
		panic("no program is bound")
	}
	f := b.funcs
	for _, u := range us {
		loc := prog.uniform(f, u.Name)
		if !loc.Valid() {
			// Unused uniforms are optimized away by the shader compiler.
			continue
		}
		v := u.Value
		switch {
		case u.Int:
			f.Uniform1i(loc, int(v[0]))
		case u.Size == 1:
			f.Uniform1f(loc, v[0])
		case u.Size == 2:
			f.Uniform2f(loc, v[0], v[1])
		case u.Size == 3:
			f.Uniform3f(loc, v[0], v[1], v[2])
		case u.Size == 4:
			f.Uniform4f(loc, v[0], v[1], v[2], v[3])
		default:
			panic(fmt.Errorf("uniform %s: unsupported size %d", u.Name, u.Size))
		}
	}
}

func (b *Backend) Draw(v []gpu.Vertex) {
	if len(v) == 0 {
		return
	}
	f := b.funcs
	f.BindBuffer(gl.ARRAY_BUFFER, b.vbo)
	f.BufferData(gl.ARRAY_BUFFER, gl.BytesView(v), gl.DYNAMIC_DRAW)
	b.enableVertexArrays(len(attribs))
	f.VertexAttribPointer(0, 2, gl.FLOAT, false, vertexStride, int(unsafe.Offsetof(gpu.Vertex{}.Pos)))
	f.VertexAttribPointer(1, 2, gl.FLOAT, false, vertexStride, int(unsafe.Offsetof(gpu.Vertex{}.UV)))
	f.VertexAttribPointer(2, 4, gl.FLOAT, false, vertexStride, int(unsafe.Offsetof(gpu.Vertex{}.Color)))
	f.DrawArrays(gl.TRIANGLES, 0, len(v))
}

// Err reports and clears the GL error flag. A lost context is reported as
// gpu.ErrTransient.
func (b *Backend) Err() error {
	switch e := b.funcs.GetError(); e {
	case gl.NO_ERROR:
		return nil
	case gl.CONTEXT_LOST:
		return fmt.Errorf("gl: context lost: %w", gpu.ErrTransient)
	default:
		return fmt.Errorf("gl: error 0x%x", uint(e))
	}
}

// Release frees every GL object. The context must be current.
func (b *Backend) Release() {
	for _, p := range b.progs {
		b.funcs.DeleteProgram(p.obj)
	}
	b.progs = nil
	for img, t := range b.textures {
		b.funcs.DeleteTexture(t.obj)
		delete(b.textures, img)
	}
	if b.vbo.Valid() {
		b.funcs.DeleteBuffer(b.vbo)
		b.vbo = gl.Buffer{}
	}
	b.state = glstate{}
}

func (b *Backend) enableVertexArrays(n int) {
	for i := b.state.nattr; i < n; i++ {
		b.funcs.EnableVertexAttribArray(gl.Attrib(i))
	}
	b.state.nattr = n
}

func (b *Backend) bindTexture(img *image.RGBA) {
	t, ok := b.textures[img]
	if !ok {
		t = &texture{obj: b.funcs.CreateTexture()}
		b.textures[img] = t
		b.state.tex = nil
		b.upload(t, img)
	}
	t.frame = b.frame
	if b.state.tex != t {
		b.funcs.ActiveTexture(gl.TEXTURE0)
		b.funcs.BindTexture(gl.TEXTURE_2D, t.obj)
		b.state.tex = t
	}
}

func (b *Backend) upload(t *texture, img *image.RGBA) {
	f := b.funcs
	f.ActiveTexture(gl.TEXTURE0)
	f.BindTexture(gl.TEXTURE_2D, t.obj)
	f.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	f.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	f.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	f.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	f.PixelStorei(gl.UNPACK_ALIGNMENT, 4)
	sz := img.Bounds().Size()
	f.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA, sz.X, sz.Y, gl.RGBA, gl.UNSIGNED_BYTE, pixels(img))
}

// evictTextures deletes textures not bound during the previous frame.
func (b *Backend) evictTextures() {
	for img, t := range b.textures {
		if t.frame+1 < b.frame {
			b.funcs.DeleteTexture(t.obj)
			delete(b.textures, img)
		}
	}
}

// pixels returns the tightly packed pixels of img.
func pixels(img *image.RGBA) []byte {
	r := img.Bounds()
	w, h := r.Dx(), r.Dy()
	if w == 0 || h == 0 {
		return nil
	}
	start := img.PixOffset(r.Min.X, r.Min.Y)
	if img.Stride == w*4 {
		return img.Pix[start : start+w*h*4]
	}
	buf := make([]byte, 0, w*h*4)
	for y := 0; y < h; y++ {
		off := start + y*img.Stride
		buf = append(buf, img.Pix[off:off+w*4]...)
	}
	return buf
}

func (p *program) uniform(f gl.API, name string) gl.Uniform {
	loc, ok := p.uniforms[name]
	if !ok {
		loc = f.GetUniformLocation(p.obj, name)
		p.uniforms[name] = loc
	}
	return loc
}
