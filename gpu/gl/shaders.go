// SPDX-License-Identifier: Unlicense OR MIT

package gl

// vertexSrc maps pixel coordinates with a top-left origin to clip space.
// It is shared by every program, overlays included.
const vertexSrc = `#version 100
precision highp float;

attribute vec2 pos;
attribute vec2 uv;
attribute vec4 color;

uniform vec2 uViewport;

varying vec2 vUV;
varying vec4 vColor;

void main() {
	vec2 ndc = pos / uViewport * 2.0 - 1.0;
	gl_Position = vec4(ndc.x, -ndc.y, 0.0, 1.0);
	vUV = uv;
	vColor = color;
}
`

const solidFSrc = `#version 100
precision mediump float;

varying vec4 vColor;

void main() {
	gl_FragColor = vColor;
}
`

const texturedFSrc = `#version 100
precision mediump float;

uniform sampler2D uTex;

varying vec2 vUV;
varying vec4 vColor;

void main() {
	gl_FragColor = texture2D(uTex, vUV) * vColor;
}
`
