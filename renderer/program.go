package renderer

import (
	"strings"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"github.com/richinsley/goshaderjam/shader"
	"github.com/richinsley/goshaderjam/surface"
)

// Compiler links translated panel shaders on the current context.
type Compiler struct {
	builder *shader.Builder
}

func NewCompiler(builder *shader.Builder) *Compiler {
	return &Compiler{builder: builder}
}

// Compile implements surface.Compiler. Errors are *shader.CompileError.
func (c *Compiler) Compile(source string) (surface.Program, error) {
	fsShader, err := c.builder.Build(source)
	if err != nil {
		return nil, err
	}
	id, err := newProgram(shader.VertexShader(), fsShader.Code)
	if err != nil {
		return nil, err
	}

	p := &glProgram{id: id}
	gl.UseProgram(id)
	p.trueTimeLoc = uniformLocation(fsShader.Mapped, id, shader.UniformTrueTime)
	p.resolutionLoc = uniformLocation(fsShader.Mapped, id, shader.UniformResolution)
	p.mouseLoc = uniformLocation(fsShader.Mapped, id, shader.UniformMouse)
	p.bpmLoc = uniformLocation(fsShader.Mapped, id, shader.UniformBPM)
	p.channelLoc[0] = uniformLocation(fsShader.Mapped, id, shader.UniformChannel0)
	p.channelLoc[1] = uniformLocation(fsShader.Mapped, id, shader.UniformChannel1)
	gl.UseProgram(0)
	return p, nil
}

// uniformLocation resolves a declared name through the translator's name
// mapping. Uniforms the compiler optimized away report -1.
func uniformLocation(mapped map[string]string, program uint32, name string) int32 {
	v, ok := mapped[name]
	if !ok {
		return -1
	}
	return gl.GetUniformLocation(program, gl.Str(v+"\x00"))
}

type glProgram struct {
	id            uint32
	trueTimeLoc   int32
	resolutionLoc int32
	mouseLoc      int32
	bpmLoc        int32
	channelLoc    [2]int32
}

// Draw renders the quad bound by the current window.
func (p *glProgram) Draw(u *surface.Uniforms) {
	gl.Viewport(0, 0, int32(u.Resolution.X()), int32(u.Resolution.Y()))
	gl.UseProgram(p.id)
	if p.trueTimeLoc != -1 {
		gl.Uniform1f(p.trueTimeLoc, u.TrueTime)
	}
	if p.resolutionLoc != -1 {
		gl.Uniform3f(p.resolutionLoc, u.Resolution.X(), u.Resolution.Y(), u.Resolution.Z())
	}
	if p.mouseLoc != -1 {
		gl.Uniform2f(p.mouseLoc, u.Mouse.X(), u.Mouse.Y())
	}
	if p.bpmLoc != -1 {
		gl.Uniform1f(p.bpmLoc, u.BPM)
	}
	for i, loc := range p.channelLoc {
		if loc == -1 {
			continue
		}
		gl.ActiveTexture(gl.TEXTURE0 + uint32(i))
		gl.BindTexture(gl.TEXTURE_2D, u.Channels[i])
		gl.Uniform1i(loc, int32(i))
	}

	gl.DrawArrays(gl.TRIANGLES, 0, 6)

	for i, loc := range p.channelLoc {
		if loc == -1 {
			continue
		}
		gl.ActiveTexture(gl.TEXTURE0 + uint32(i))
		gl.BindTexture(gl.TEXTURE_2D, 0)
	}
}

func (p *glProgram) Release() {
	gl.DeleteProgram(p.id)
}

func newProgram(vertexShaderSource, fragmentShaderSource string) (uint32, error) {
	vertexShader, err := compileShader(vertexShaderSource, gl.VERTEX_SHADER, "vertex")
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(vertexShader)
	fragmentShader, err := compileShader(fragmentShaderSource, gl.FRAGMENT_SHADER, "fragment")
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(fragmentShader)

	program := gl.CreateProgram()
	gl.AttachShader(program, vertexShader)
	gl.AttachShader(program, fragmentShader)
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(log))
		gl.DeleteProgram(program)
		return 0, &shader.CompileError{Stage: "link", Log: strings.TrimRight(log, "\x00")}
	}
	gl.DetachShader(program, vertexShader)
	gl.DetachShader(program, fragmentShader)
	return program, nil
}

func compileShader(source string, shaderType uint32, stage string) (uint32, error) {
	sh := gl.CreateShader(shaderType)
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(sh, 1, csources, nil)
	free()
	gl.CompileShader(sh)

	var status int32
	gl.GetShaderiv(sh, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(sh, gl.INFO_LOG_LENGTH, &logLength)
		logText := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(sh, logLength, nil, gl.Str(logText))
		gl.DeleteShader(sh)
		return 0, &shader.CompileError{Stage: stage, Log: strings.TrimRight(logText, "\x00")}
	}
	return sh, nil
}
