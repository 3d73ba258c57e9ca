// SPDX-License-Identifier: Unlicense OR MIT

package feature

import (
	"corna.org/draw"
	"golang.org/x/image/math/f32"
)

// Segments a through g of each decimal digit: top, upper right, lower
// right, bottom, lower left, upper left, middle.
var segments = [10][7]bool{
	{true, true, true, true, true, true, false},
	{false, true, true, false, false, false, false},
	{true, true, false, true, true, false, true},
	{true, true, true, true, false, false, true},
	{false, true, true, false, false, true, true},
	{true, false, true, true, false, true, true},
	{true, false, true, true, true, true, true},
	{true, true, true, false, false, false, false},
	{true, true, true, true, true, true, true},
	{true, true, true, true, false, true, true},
}

// bevelSteps is the number of slices a segment is built from.
const bevelSteps = 12

// digit appends the lit segments of d in the box (x, y, w, h). color
// returns the color of segment s.
func digit(ps []draw.Primitive, d uint8, x, y, w, h float32, color func(s int) f32.Vec4) []draw.Primitive {
	if d > 9 {
		return ps
	}
	sw := w * 0.8
	th := w * 0.15
	ho := w * 0.1
	vh := h * 0.4
	bevel := th * 0.5
	for s, on := range segments[d] {
		if !on {
			continue
		}
		c := color(s)
		switch s {
		case 0:
			ps = hsegment(ps, x+ho, y, sw, th, bevel, c)
		case 1:
			ps = vsegment(ps, x+w-th, y+th, vh, th, bevel, false, c)
		case 2:
			ps = vsegment(ps, x+w-th, y+h*0.5+th*0.5, vh, th, bevel, true, c)
		case 3:
			ps = hsegment(ps, x+ho, y+h-th, sw, th, bevel, c)
		case 4:
			ps = vsegment(ps, x, y+h*0.5+th*0.5, vh, th, bevel, true, c)
		case 5:
			ps = vsegment(ps, x, y+th, vh, th, bevel, false, c)
		case 6:
			ps = hsegment(ps, x+ho, y+h*0.5-th*0.5, sw, th, bevel*1.2, c)
		}
	}
	return ps
}

// hsegment draws a horizontal segment with both ends beveled.
func hsegment(ps []draw.Primitive, x, y, w, th, bevel float32, c f32.Vec4) []draw.Primitive {
	for i := 0; i < bevelSteps; i++ {
		t := float32(i) / (bevelSteps - 1)
		inset := abs(t-0.5) * 2 * bevel
		ps = append(ps, draw.FilledRect{
			Rect:  draw.R(x+inset, y+t*th, w-2*inset, th/bevelSteps+0.5),
			Color: c,
		})
	}
	return ps
}

// vsegment draws a vertical segment beveled at its outer end.
func vsegment(ps []draw.Primitive, x, y, h, th, bevel float32, bottom bool, c f32.Vec4) []draw.Primitive {
	for i := 0; i < bevelSteps; i++ {
		t := float32(i) / (bevelSteps - 1)
		inset := abs(t-0.5) * 2 * bevel
		top, bot := inset, float32(0)
		if bottom {
			top, bot = 0, inset
		}
		ps = append(ps, draw.FilledRect{
			Rect:  draw.R(x+t*th, y+top, th/bevelSteps+0.5, h-top-bot),
			Color: c,
		})
	}
	return ps
}

// colon appends the two dots of a colon.
func colon(ps []draw.Primitive, x, y, dot, h float32, c f32.Vec4) []draw.Primitive {
	return append(ps,
		draw.FilledRect{Rect: draw.R(x, y+h*0.3, dot, dot), Color: c},
		draw.FilledRect{Rect: draw.R(x, y+h*0.62, dot, dot), Color: c},
	)
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
