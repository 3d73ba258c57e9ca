// SPDX-License-Identifier: Unlicense OR MIT

package wayland

import (
	"testing"
	"testing/quick"
	"time"

	"corna.org/input"
	"corna.org/surface"
	"github.com/stretchr/testify/assert"
)

func TestLayerFor(t *testing.T) {
	assert.EqualValues(t, layerTop, layerFor(surface.Primary))
	assert.EqualValues(t, layerOverlay, layerFor(surface.Overlay))
}

func TestAnchorBits(t *testing.T) {
	assert.Equal(t, uint32(1|8), anchorBits(surface.AnchorTop|surface.AnchorRight))
	assert.Equal(t, uint32(2|4), anchorBits(surface.AnchorBottom|surface.AnchorLeft))
	assert.Equal(t, uint32(15), anchorBits(0xff))
}

func TestButtons(t *testing.T) {
	assert.Equal(t, input.ButtonLeft, buttons[0x110])
	_, ok := buttons[0x113]
	assert.False(t, ok)
}

func TestScrollDelta(t *testing.T) {
	assert.Equal(t, float32(-1), scrollDelta(-10, 0))
	assert.Equal(t, float32(1), scrollDelta(10, 0))
	assert.Equal(t, float32(-2), scrollDelta(10, -2))
	assert.Zero(t, scrollDelta(0, 0))
}

func TestPollTimeout(t *testing.T) {
	now := time.Now()
	assert.Equal(t, -1, pollTimeout(now, time.Time{}, false))
	assert.Equal(t, 0, pollTimeout(now, now.Add(-time.Second), true))
	assert.Equal(t, 0, pollTimeout(now, now, true))
	assert.Equal(t, 1, pollTimeout(now, now.Add(100*time.Microsecond), true))
	assert.Equal(t, 16, pollTimeout(now, now.Add(16*time.Millisecond), true))
}

func TestFromFixed(t *testing.T) {
	assert.Equal(t, float32(1), fromFixed(256))
	assert.Equal(t, float32(-2.5), fromFixed(-640))
	f := func(v int16) bool {
		return fromFixed(int32(v)*256) == float32(v)
	}
	assert.NoError(t, quick.Check(f, nil))
}
