// SPDX-License-Identifier: Unlicense OR MIT

// Package gl is a thin binding of the OpenGL ES 2.0 subset the widget
// renderer draws with.
package gl

type (
	Attrib uint
	Enum   uint
)

const (
	ARRAY_BUFFER        = 0x8892
	BLEND               = 0xbe2
	CLAMP_TO_EDGE       = 0x812f
	COLOR_BUFFER_BIT    = 0x4000
	COMPILE_STATUS      = 0x8b81
	CONTEXT_LOST        = 0x0507
	DEPTH_TEST          = 0xb71
	DYNAMIC_DRAW        = 0x88E8
	FALSE               = 0
	FLOAT               = 0x1406
	FRAGMENT_SHADER     = 0x8b30
	INFO_LOG_LENGTH     = 0x8B84
	INVALID_OPERATION   = 0x0502
	LINEAR              = 0x2601
	LINK_STATUS         = 0x8b82
	NO_ERROR            = 0x0
	ONE                 = 0x1
	ONE_MINUS_SRC_ALPHA = 0x303
	OUT_OF_MEMORY       = 0x0505
	RENDERER            = 0x1F01
	RGBA                = 0x1908
	SCISSOR_TEST        = 0xc11
	SRC_ALPHA           = 0x302
	TEXTURE_2D          = 0xde1
	TEXTURE_MAG_FILTER  = 0x2800
	TEXTURE_MIN_FILTER  = 0x2801
	TEXTURE_WRAP_S      = 0x2802
	TEXTURE_WRAP_T      = 0x2803
	TEXTURE0            = 0x84c0
	TRIANGLES           = 0x4
	TRUE                = 1
	UNPACK_ALIGNMENT    = 0xcf5
	UNSIGNED_BYTE       = 0x1401
	VERSION             = 0x1f02
	VERTEX_SHADER       = 0x8b31
)
