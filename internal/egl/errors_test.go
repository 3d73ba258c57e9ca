// SPDX-License-Identifier: Unlicense OR MIT

package egl

import (
	"testing"

	"corna.org/gpu"
	"github.com/stretchr/testify/assert"
)

func TestSwapError(t *testing.T) {
	assert.NoError(t, swapError(eglSuccess))
	for _, code := range []int{eglBadCurrentSurface, eglBadSurface, eglBadNativeWindow} {
		assert.ErrorIs(t, swapError(code), gpu.ErrTransient, "0x%x", code)
	}
	for _, code := range []int{eglContextLost, eglBadAlloc} {
		err := swapError(code)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, gpu.ErrTransient, "0x%x", code)
	}
}
