// SPDX-License-Identifier: Unlicense OR MIT

package feature

// PlasmaShader is the GLSL ES fragment source of PlasmaProgram. It mixes
// sine fields into a plasma tinted by uColor that fades out as uProgress
// reaches 1. Mode 2 is the completion pattern; other modes draw uColor
// flat.
const PlasmaShader = `#version 100
precision mediump float;

uniform float uTime;
uniform float uProgress;
uniform int uEffectMode;
uniform vec4 uColor;

varying vec2 vUV;

void main() {
	if (uEffectMode != 2) {
		gl_FragColor = uColor;
		return;
	}
	vec2 p = vUV * vec2(8.0, 3.0);
	float t = uTime * 2.0;
	float v = sin(p.x + t);
	v += sin((p.y + t) * 0.5);
	v += sin((p.x + p.y + t) * 0.5);
	vec2 c = p + vec2(sin(t / 3.0), cos(t / 2.0)) * 2.0;
	v += sin(sqrt(c.x * c.x + c.y * c.y + 1.0) + t);
	v *= 0.5;
	vec3 col = vec3(sin(v * 3.14159), sin(v * 3.14159 + 2.094), sin(v * 3.14159 + 4.188)) * 0.5 + 0.5;
	col = mix(col, uColor.rgb, 0.35);
	float a = 1.0 - smoothstep(0.7, 1.0, uProgress);
	gl_FragColor = vec4(col, a);
}
`

// Overlays returns the overlay programs used by the features, keyed by
// program name.
func Overlays() map[string]string {
	return map[string]string{PlasmaProgram: PlasmaShader}
}
