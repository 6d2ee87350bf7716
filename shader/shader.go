// Package shader assembles panel fragment shaders from user code and
// translates them from WebGL2 GLSL to desktop GLSL.
package shader

import (
	"strings"

	"github.com/richinsley/goshaderjam/timewarp"
)

// Uniform names every composed program declares. Users may reference
// iTime, iResolution, iMouse, iChannel0 and iChannel1; iTrueTime and bpm
// feed the epilogue.
const (
	UniformTrueTime   = "iTrueTime"
	UniformResolution = "iResolution"
	UniformMouse      = "iMouse"
	UniformBPM        = "bpm"
	UniformChannel0   = "iChannel0"
	UniformChannel1   = "iChannel1"
)

// Uniforms lists the names above in binding order.
var Uniforms = []string{
	UniformTrueTime,
	UniformResolution,
	UniformMouse,
	UniformBPM,
	UniformChannel0,
	UniformChannel1,
}

const vertexShaderSourceGL = `#version 410 core
layout (location = 0) in vec2 in_vert;
out vec2 frag_uv;
void main() {
    frag_uv = in_vert * 0.5 + 0.5;
    gl_Position = vec4(in_vert, 0.0, 1.0);
}
`

const preamble = `#version 300 es
precision highp float;
precision highp int;

uniform float iTrueTime;
uniform vec3  iResolution;
uniform vec2  iMouse;
uniform float bpm;
uniform sampler2D iChannel0;
uniform sampler2D iChannel1;

out vec4 fragColor;
`

const epilogue = `
void main(void)
{
    settime(iTrueTime * bpm / 60.);
    iTime = lt;
    mainImage(fragColor, gl_FragCoord.xy);
    fragColor.a = 1.0;
}
`

// VertexShader returns the full-screen quad vertex stage.
func VertexShader() string {
	return vertexShaderSourceGL
}

// Compose wraps a user body that defines mainImage(out vec4, in vec2).
func Compose(body string) string {
	var b strings.Builder
	b.Grow(len(preamble) + len(timewarp.SetTimeGLSL) + len(body) + len(epilogue) + 2)
	b.WriteString(preamble)
	b.WriteString(timewarp.SetTimeGLSL)
	b.WriteString("\n")
	b.WriteString(body)
	b.WriteString("\n")
	b.WriteString(epilogue)
	return b.String()
}

// PreambleLines is the number of lines Compose puts before the user body,
// for mapping compiler diagnostics back to user line numbers.
func PreambleLines() int {
	return strings.Count(preamble, "\n") + strings.Count(timewarp.SetTimeGLSL, "\n") + 1
}
