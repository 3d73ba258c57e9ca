// SPDX-License-Identifier: Unlicense OR MIT

package gl

// API is the set of GL calls made by the renderer. *Functions implements
// it on platforms with cgo.
type API interface {
	ActiveTexture(texture Enum)
	AttachShader(p Program, s Shader)
	BindAttribLocation(p Program, a Attrib, name string)
	BindBuffer(target Enum, b Buffer)
	BindTexture(target Enum, t Texture)
	BlendFunc(sfactor, dfactor Enum)
	BufferData(target Enum, src []byte, usage Enum)
	Clear(mask Enum)
	ClearColor(red, green, blue, alpha float32)
	CompileShader(s Shader)
	CreateBuffer() Buffer
	CreateProgram() Program
	CreateShader(ty Enum) Shader
	CreateTexture() Texture
	DeleteBuffer(v Buffer)
	DeleteProgram(p Program)
	DeleteShader(s Shader)
	DeleteTexture(v Texture)
	Disable(cap Enum)
	DrawArrays(mode Enum, first, count int)
	Enable(cap Enum)
	EnableVertexAttribArray(a Attrib)
	Finish()
	GetError() Enum
	GetProgrami(p Program, pname Enum) int
	GetProgramInfoLog(p Program) string
	GetShaderi(s Shader, pname Enum) int
	GetShaderInfoLog(s Shader) string
	GetString(pname Enum) string
	GetUniformLocation(p Program, name string) Uniform
	LinkProgram(p Program)
	PixelStorei(pname Enum, param int32)
	ShaderSource(s Shader, src string)
	TexImage2D(target Enum, level int, internalFormat int, width, height int, format Enum, ty Enum, data []byte)
	TexParameteri(target, pname Enum, param int)
	Uniform1f(dst Uniform, v float32)
	Uniform1i(dst Uniform, v int)
	Uniform2f(dst Uniform, v0, v1 float32)
	Uniform3f(dst Uniform, v0, v1, v2 float32)
	Uniform4f(dst Uniform, v0, v1, v2, v3 float32)
	UseProgram(p Program)
	VertexAttribPointer(dst Attrib, size int, ty Enum, normalized bool, stride, offset int)
	Viewport(x, y, width, height int)
}
