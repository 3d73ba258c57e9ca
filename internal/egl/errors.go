// SPDX-License-Identifier: Unlicense OR MIT

// Package egl creates one EGL context per Wayland surface.
package egl

import (
	"fmt"

	"corna.org/gpu"
)

// EGL error codes.
const (
	eglSuccess           = 0x3000
	eglBadAlloc          = 0x3003
	eglBadCurrentSurface = 0x3007
	eglBadNativeWindow   = 0x300B
	eglBadSurface        = 0x300D
	eglContextLost       = 0x300E
)

// swapError describes a failed eglSwapBuffers. Errors that leave the
// context usable wrap gpu.ErrTransient.
func swapError(code int) error {
	switch code {
	case eglSuccess:
		return nil
	case eglBadCurrentSurface, eglBadSurface, eglBadNativeWindow:
		return fmt.Errorf("egl: eglSwapBuffers failed (0x%x): %w", code, gpu.ErrTransient)
	case eglContextLost:
		return fmt.Errorf("egl: context lost (0x%x)", code)
	default:
		return fmt.Errorf("egl: eglSwapBuffers failed (0x%x)", code)
	}
}
