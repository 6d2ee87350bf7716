// Package surface keeps one live render loop per registry entry. A Surface
// owns one output context and at most one compiled program; a Manager keeps
// the list of surfaces in step with the registry.
//
// Everything here runs on the render thread.
package surface

import (
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/richinsley/goshaderjam/metrics"
	"github.com/richinsley/goshaderjam/textures"
)

// State is the lifecycle position of a Surface.
type State int

const (
	Uninitialized State = iota
	Building
	// Running draws the program built from the current source.
	Running
	// Stale draws the last good program (or nothing) because the current
	// source failed to build.
	Stale
	Rebuilding
	Disposed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Building:
		return "building"
	case Running:
		return "running"
	case Stale:
		return "stale"
	case Rebuilding:
		return "rebuilding"
	case Disposed:
		return "disposed"
	}
	return "unknown"
}

// Context is one output region with its own graphics context.
type Context interface {
	MakeCurrent()
	FramebufferSize() (width, height int)
	// OnResize and OnPointer register event handlers; the returned function
	// removes the handler. Pointer coordinates are normalized device
	// coordinates, y up.
	OnResize(fn func(width, height int)) (detach func())
	OnPointer(fn func(x, y float32)) (detach func())
	ShouldClose() bool
	Clear()
	Present()
	Release()
}

// Program is a compiled shader program ready to draw into the current context.
type Program interface {
	Draw(u *Uniforms)
	Release()
}

// Compiler builds a Program from user shader text. Failures are returned as
// *shader.CompileError.
type Compiler interface {
	Compile(source string) (Program, error)
}

// Uniforms is the per-frame input of a Program.
type Uniforms struct {
	TrueTime   float32
	Resolution mgl32.Vec3
	Mouse      mgl32.Vec2
	BPM        float32
	// Channels holds texture names; 0 means the producer has no data yet.
	Channels [2]uint32
}

// Inputs are the process wide values read by every surface each frame.
type Inputs struct {
	// Clock returns seconds since start.
	Clock func() float64
	BPM   func() float64
	// Channels are the webcam and audio textures. Entries may be nil.
	Channels [2]textures.Handle
}

// Surface renders one shader source into one Context.
type Surface struct {
	log      *zap.Logger
	ctx      Context
	compiler Compiler
	inputs   *Inputs
	metrics  *metrics.Metrics

	state   State
	source  string
	program Program
	err     error

	width, height int
	pointer       mgl32.Vec2
	bound         [2]uint32
	detach        []func()
}

// New returns an unmounted surface. m may be nil.
func New(ctx Context, compiler Compiler, inputs *Inputs, log *zap.Logger, m *metrics.Metrics) *Surface {
	return &Surface{
		log:      log,
		ctx:      ctx,
		compiler: compiler,
		inputs:   inputs,
		metrics:  m,
	}
}

// Mount attaches event handlers and performs the first build.
func (s *Surface) Mount(source string) {
	if s.state != Uninitialized {
		return
	}
	s.state = Building
	s.width, s.height = s.ctx.FramebufferSize()
	s.detach = append(s.detach,
		s.ctx.OnResize(func(w, h int) {
			s.width, s.height = w, h
		}),
		s.ctx.OnPointer(func(x, y float32) {
			s.pointer = mgl32.Vec2{x, y}
		}),
	)
	s.source = source
	s.build()
}

// SetSource rebuilds when text differs from the current source. On failure
// the previous program keeps drawing.
func (s *Surface) SetSource(source string) {
	switch s.state {
	case Uninitialized:
		s.Mount(source)
		return
	case Disposed:
		return
	}
	if source == s.source {
		return
	}
	s.state = Rebuilding
	s.source = source
	s.build()
}

func (s *Surface) build() {
	s.ctx.MakeCurrent()
	p, err := s.compiler.Compile(s.source)
	s.metrics.ObserveCompile(err == nil)
	if err != nil {
		s.err = err
		s.state = Stale
		s.log.Warn("shader build failed, keeping previous program",
			zap.Bool("has_program", s.program != nil), zap.Error(err))
		return
	}
	if s.program != nil {
		s.program.Release()
	}
	s.program = p
	s.err = nil
	s.state = Running
}

// Frame draws one frame. It returns false once the surface is disposed.
func (s *Surface) Frame() bool {
	if s.state != Running && s.state != Stale {
		return false
	}
	s.ctx.MakeCurrent()
	if s.program == nil {
		s.ctx.Clear()
		s.ctx.Present()
		return true
	}

	u := Uniforms{
		Resolution: mgl32.Vec3{float32(s.width), float32(s.height), 1},
		Mouse:      s.pointer,
		Channels:   s.channels(),
	}
	if s.inputs.Clock != nil {
		u.TrueTime = float32(s.inputs.Clock())
	}
	if s.inputs.BPM != nil {
		u.BPM = float32(s.inputs.BPM())
	}
	s.program.Draw(&u)
	s.metrics.ObserveFrame()
	s.ctx.Present()
	return true
}

// channels re-reads the texture handles and notes identity changes.
func (s *Surface) channels() [2]uint32 {
	for i, h := range s.inputs.Channels {
		var id uint32
		if h != nil {
			if tex, ok := h.Texture(); ok {
				id = tex
			}
		}
		if id != s.bound[i] {
			s.log.Debug("channel texture changed", zap.Int("channel", i), zap.Uint32("texture", id))
			s.bound[i] = id
		}
	}
	return s.bound
}

// Dispose detaches handlers and releases the program and context. After it
// returns no further frame is drawn.
func (s *Surface) Dispose() {
	if s.state == Disposed {
		return
	}
	for _, fn := range s.detach {
		fn()
	}
	s.detach = nil
	if s.program != nil {
		s.ctx.MakeCurrent()
		s.program.Release()
		s.program = nil
	}
	s.ctx.Release()
	s.state = Disposed
}

func (s *Surface) State() State { return s.state }

// Err is the last build error, nil after a successful build.
func (s *Surface) Err() error { return s.err }

func (s *Surface) Source() string { return s.source }

// HasProgram reports whether there is anything to draw.
func (s *Surface) HasProgram() bool { return s.program != nil }

// Context returns the output context.
func (s *Surface) Context() Context { return s.ctx }
