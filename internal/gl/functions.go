// SPDX-License-Identifier: Unlicense OR MIT

//go:build linux && cgo

package gl

import (
	"unsafe"
)

/*
#cgo CFLAGS: -Werror
#cgo LDFLAGS: -lGLESv2

#include <stdlib.h>
#include <GLES2/gl2.h>

// Takes the attribute offset as an integer so no Go pointer crosses cgo.
__attribute__ ((visibility ("hidden"))) void corna_glVertexAttribPointer(GLuint index, GLint size, GLenum type, GLboolean normalized, GLsizei stride, uintptr_t offset) {
	glVertexAttribPointer(index, size, type, normalized, stride, (const GLvoid *)offset);
}
*/
import "C"

// Functions calls into the GLES2 implementation of the context current on
// the calling thread. It is not safe for concurrent use.
type Functions struct {
	// Scratch space for object names and integer queries, kept here so
	// the pointers handed to GL never point into the Go stack.
	name C.GLuint
	iv   C.GLint
}

// ptr returns the address of the first element of b, or nil.
func ptr(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(&b[0])
}

// cstr calls fn with a NUL terminated copy of s.
func cstr(s string, fn func(*C.GLchar)) {
	p := C.CString(s)
	defer C.free(unsafe.Pointer(p))
	fn((*C.GLchar)(unsafe.Pointer(p)))
}

// infoLog reads a log of n bytes written by read.
func infoLog(n int, read func(size C.GLsizei, dst *C.GLchar)) string {
	if n <= 0 {
		return ""
	}
	log := make([]byte, n)
	read(C.GLsizei(n), (*C.GLchar)(ptr(log)))
	// Drop the terminating NUL.
	if log[n-1] == 0 {
		log = log[:n-1]
	}
	return string(log)
}

func glBool(v bool) C.GLboolean {
	if v {
		return C.GL_TRUE
	}
	return C.GL_FALSE
}

func (f *Functions) ActiveTexture(texture Enum) { C.glActiveTexture(C.GLenum(texture)) }

func (f *Functions) AttachShader(p Program, s Shader) { C.glAttachShader(C.GLuint(p.V), C.GLuint(s.V)) }

func (f *Functions) BindAttribLocation(p Program, a Attrib, name string) {
	cstr(name, func(n *C.GLchar) { C.glBindAttribLocation(C.GLuint(p.V), C.GLuint(a), n) })
}

func (f *Functions) BindBuffer(target Enum, b Buffer) { C.glBindBuffer(C.GLenum(target), C.GLuint(b.V)) }

func (f *Functions) BindTexture(target Enum, t Texture) {
	C.glBindTexture(C.GLenum(target), C.GLuint(t.V))
}

func (f *Functions) BlendFunc(src, dst Enum) { C.glBlendFunc(C.GLenum(src), C.GLenum(dst)) }

func (f *Functions) BufferData(target Enum, src []byte, usage Enum) {
	C.glBufferData(C.GLenum(target), C.GLsizeiptr(len(src)), ptr(src), C.GLenum(usage))
}

func (f *Functions) Clear(mask Enum) { C.glClear(C.GLbitfield(mask)) }

func (f *Functions) ClearColor(r, g, b, a float32) {
	C.glClearColor(C.GLfloat(r), C.GLfloat(g), C.GLfloat(b), C.GLfloat(a))
}

func (f *Functions) CompileShader(s Shader) { C.glCompileShader(C.GLuint(s.V)) }

func (f *Functions) CreateBuffer() Buffer {
	C.glGenBuffers(1, &f.name)
	return Buffer{V: uint(f.name)}
}

func (f *Functions) CreateProgram() Program { return Program{V: uint(C.glCreateProgram())} }

func (f *Functions) CreateShader(kind Enum) Shader {
	return Shader{V: uint(C.glCreateShader(C.GLenum(kind)))}
}

func (f *Functions) CreateTexture() Texture {
	C.glGenTextures(1, &f.name)
	return Texture{V: uint(f.name)}
}

func (f *Functions) DeleteBuffer(b Buffer) {
	f.name = C.GLuint(b.V)
	C.glDeleteBuffers(1, &f.name)
}

func (f *Functions) DeleteProgram(p Program) { C.glDeleteProgram(C.GLuint(p.V)) }

func (f *Functions) DeleteShader(s Shader) { C.glDeleteShader(C.GLuint(s.V)) }

func (f *Functions) DeleteTexture(t Texture) {
	f.name = C.GLuint(t.V)
	C.glDeleteTextures(1, &f.name)
}

func (f *Functions) Disable(c Enum) { C.glDisable(C.GLenum(c)) }

func (f *Functions) DrawArrays(mode Enum, first, count int) {
	C.glDrawArrays(C.GLenum(mode), C.GLint(first), C.GLsizei(count))
}

func (f *Functions) Enable(c Enum) { C.glEnable(C.GLenum(c)) }

func (f *Functions) EnableVertexAttribArray(a Attrib) { C.glEnableVertexAttribArray(C.GLuint(a)) }

func (f *Functions) Finish() { C.glFinish() }

func (f *Functions) GetError() Enum { return Enum(C.glGetError()) }

func (f *Functions) GetProgrami(p Program, pname Enum) int {
	C.glGetProgramiv(C.GLuint(p.V), C.GLenum(pname), &f.iv)
	return int(f.iv)
}

func (f *Functions) GetProgramInfoLog(p Program) string {
	return infoLog(f.GetProgrami(p, INFO_LOG_LENGTH), func(size C.GLsizei, dst *C.GLchar) {
		C.glGetProgramInfoLog(C.GLuint(p.V), size, nil, dst)
	})
}

func (f *Functions) GetShaderi(s Shader, pname Enum) int {
	C.glGetShaderiv(C.GLuint(s.V), C.GLenum(pname), &f.iv)
	return int(f.iv)
}

func (f *Functions) GetShaderInfoLog(s Shader) string {
	return infoLog(f.GetShaderi(s, INFO_LOG_LENGTH), func(size C.GLsizei, dst *C.GLchar) {
		C.glGetShaderInfoLog(C.GLuint(s.V), size, nil, dst)
	})
}

func (f *Functions) GetString(pname Enum) string {
	return C.GoString((*C.char)(unsafe.Pointer(C.glGetString(C.GLenum(pname)))))
}

func (f *Functions) GetUniformLocation(p Program, name string) Uniform {
	var loc C.GLint
	cstr(name, func(n *C.GLchar) { loc = C.glGetUniformLocation(C.GLuint(p.V), n) })
	return Uniform{V: int(loc)}
}

func (f *Functions) LinkProgram(p Program) { C.glLinkProgram(C.GLuint(p.V)) }

func (f *Functions) PixelStorei(pname Enum, param int32) {
	C.glPixelStorei(C.GLenum(pname), C.GLint(param))
}

func (f *Functions) ShaderSource(s Shader, src string) {
	cstr(src, func(p *C.GLchar) {
		f.iv = C.GLint(len(src))
		C.glShaderSource(C.GLuint(s.V), 1, &p, &f.iv)
	})
}

func (f *Functions) TexImage2D(target Enum, level int, internalFormat int, width, height int, format Enum, ty Enum, data []byte) {
	C.glTexImage2D(C.GLenum(target), C.GLint(level), C.GLint(internalFormat),
		C.GLsizei(width), C.GLsizei(height), 0, C.GLenum(format), C.GLenum(ty), ptr(data))
}

func (f *Functions) TexParameteri(target, pname Enum, param int) {
	C.glTexParameteri(C.GLenum(target), C.GLenum(pname), C.GLint(param))
}

func (f *Functions) Uniform1f(u Uniform, x float32) { C.glUniform1f(C.GLint(u.V), C.GLfloat(x)) }

func (f *Functions) Uniform1i(u Uniform, x int) { C.glUniform1i(C.GLint(u.V), C.GLint(x)) }

func (f *Functions) Uniform2f(u Uniform, x, y float32) {
	C.glUniform2f(C.GLint(u.V), C.GLfloat(x), C.GLfloat(y))
}

func (f *Functions) Uniform3f(u Uniform, x, y, z float32) {
	C.glUniform3f(C.GLint(u.V), C.GLfloat(x), C.GLfloat(y), C.GLfloat(z))
}

func (f *Functions) Uniform4f(u Uniform, x, y, z, w float32) {
	C.glUniform4f(C.GLint(u.V), C.GLfloat(x), C.GLfloat(y), C.GLfloat(z), C.GLfloat(w))
}

func (f *Functions) UseProgram(p Program) { C.glUseProgram(C.GLuint(p.V)) }

func (f *Functions) VertexAttribPointer(a Attrib, size int, ty Enum, normalized bool, stride, offset int) {
	C.corna_glVertexAttribPointer(C.GLuint(a), C.GLint(size), C.GLenum(ty), glBool(normalized), C.GLsizei(stride), C.uintptr_t(offset))
}

func (f *Functions) Viewport(x, y, width, height int) {
	C.glViewport(C.GLint(x), C.GLint(y), C.GLsizei(width), C.GLsizei(height))
}

var _ API = (*Functions)(nil)
