package surface

import (
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/richinsley/goshaderjam/shader"
	"github.com/richinsley/goshaderjam/textures"
)

type fakeContext struct {
	width, height int
	resize        map[int]func(int, int)
	pointer       map[int]func(float32, float32)
	nextID        int
	closed        bool
	clears        int
	presents      int
	released      int
}

func newFakeContext() *fakeContext {
	return &fakeContext{
		width:   640,
		height:  360,
		resize:  map[int]func(int, int){},
		pointer: map[int]func(float32, float32){},
	}
}

func (c *fakeContext) MakeCurrent()                {}
func (c *fakeContext) FramebufferSize() (int, int) { return c.width, c.height }
func (c *fakeContext) ShouldClose() bool           { return c.closed }
func (c *fakeContext) Clear()                      { c.clears++ }
func (c *fakeContext) Present()                    { c.presents++ }
func (c *fakeContext) Release()                    { c.released++ }
func (c *fakeContext) listeners() int              { return len(c.resize) + len(c.pointer) }
func (c *fakeContext) OnResize(fn func(int, int)) func() {
	id := c.nextID
	c.nextID++
	c.resize[id] = fn
	return func() { delete(c.resize, id) }
}
func (c *fakeContext) OnPointer(fn func(float32, float32)) func() {
	id := c.nextID
	c.nextID++
	c.pointer[id] = fn
	return func() { delete(c.pointer, id) }
}
func (c *fakeContext) fireResize(w, h int) {
	for _, fn := range c.resize {
		fn(w, h)
	}
}
func (c *fakeContext) firePointer(x, y float32) {
	for _, fn := range c.pointer {
		fn(x, y)
	}
}

type fakeProgram struct {
	source   string
	draws    []Uniforms
	released bool
}

func (p *fakeProgram) Draw(u *Uniforms) { p.draws = append(p.draws, *u) }
func (p *fakeProgram) Release()         { p.released = true }

type fakeCompiler struct {
	compiles int
	programs []*fakeProgram
}

func (c *fakeCompiler) Compile(source string) (Program, error) {
	c.compiles++
	if strings.Contains(source, "broken") {
		return nil, &shader.CompileError{Stage: "fragment", Log: "0:12: syntax error"}
	}
	p := &fakeProgram{source: source}
	c.programs = append(c.programs, p)
	return p, nil
}

type fakeHandle struct {
	id uint32
	ok bool
}

func (h *fakeHandle) Texture() (uint32, bool) { return h.id, h.ok }

func testInputs() *Inputs {
	return &Inputs{
		Clock: func() float64 { return 2.5 },
		BPM:   func() float64 { return 120 },
	}
}

func TestMountRunsAndDraws(t *testing.T) {
	ctx := newFakeContext()
	comp := &fakeCompiler{}
	s := New(ctx, comp, testInputs(), zap.NewNop(), nil)
	assert.Equal(t, Uninitialized, s.State())
	assert.False(t, s.Frame())

	s.Mount("good")
	require.Equal(t, Running, s.State())
	require.True(t, s.Frame())

	p := comp.programs[0]
	require.Len(t, p.draws, 1)
	u := p.draws[0]
	assert.Equal(t, float32(2.5), u.TrueTime)
	assert.Equal(t, float32(120), u.BPM)
	assert.Equal(t, mgl32.Vec3{640, 360, 1}, u.Resolution)
	assert.Equal(t, [2]uint32{0, 0}, u.Channels)
	assert.Equal(t, 1, ctx.presents)
}

func TestFailedFirstBuildStaysBlank(t *testing.T) {
	ctx := newFakeContext()
	s := New(ctx, &fakeCompiler{}, testInputs(), zap.NewNop(), nil)
	s.Mount("broken")

	assert.Equal(t, Stale, s.State())
	assert.False(t, s.HasProgram())
	var ce *shader.CompileError
	require.ErrorAs(t, s.Err(), &ce)
	assert.Equal(t, "fragment", ce.Stage)

	assert.True(t, s.Frame())
	assert.Equal(t, 1, ctx.clears)

	s.SetSource("fixed")
	assert.Equal(t, Running, s.State())
	assert.NoError(t, s.Err())
}

func TestBrokenEditKeepsLastGoodProgram(t *testing.T) {
	comp := &fakeCompiler{}
	s := New(newFakeContext(), comp, testInputs(), zap.NewNop(), nil)
	s.Mount("v1")
	first := comp.programs[0]

	s.SetSource("v2 broken")
	assert.Equal(t, Stale, s.State())
	assert.False(t, first.released)
	s.Frame()
	assert.Len(t, first.draws, 1)

	s.SetSource("v3")
	assert.Equal(t, Running, s.State())
	assert.True(t, first.released)
	s.Frame()
	assert.Len(t, comp.programs[1].draws, 1)
	assert.Len(t, first.draws, 1)
}

func TestSameSourceDoesNotRebuild(t *testing.T) {
	comp := &fakeCompiler{}
	s := New(newFakeContext(), comp, testInputs(), zap.NewNop(), nil)
	s.Mount("v1")
	s.SetSource("v1")
	assert.Equal(t, 1, comp.compiles)
}

func TestTempoAndTexturesDoNotRebuild(t *testing.T) {
	comp := &fakeCompiler{}
	bpm := 120.0
	cam := &fakeHandle{}
	in := &Inputs{
		Clock:    func() float64 { return 1 },
		BPM:      func() float64 { return bpm },
		Channels: [2]textures.Handle{cam, nil},
	}
	s := New(newFakeContext(), comp, in, zap.NewNop(), nil)
	s.Mount("v1")
	s.Frame()

	bpm = 140
	cam.id, cam.ok = 7, true
	s.Frame()

	cam.id = 9
	s.Frame()

	assert.Equal(t, 1, comp.compiles)
	draws := comp.programs[0].draws
	require.Len(t, draws, 3)
	assert.Equal(t, float32(120), draws[0].BPM)
	assert.Equal(t, float32(140), draws[1].BPM)
	assert.Equal(t, [2]uint32{0, 0}, draws[0].Channels)
	assert.Equal(t, [2]uint32{7, 0}, draws[1].Channels)
	assert.Equal(t, [2]uint32{9, 0}, draws[2].Channels)
}

func TestResizeAndPointerEvents(t *testing.T) {
	ctx := newFakeContext()
	comp := &fakeCompiler{}
	s := New(ctx, comp, testInputs(), zap.NewNop(), nil)
	s.Mount("v1")

	ctx.fireResize(800, 600)
	ctx.firePointer(-0.5, 0.25)
	s.Frame()

	u := comp.programs[0].draws[0]
	assert.Equal(t, mgl32.Vec3{800, 600, 1}, u.Resolution)
	assert.Equal(t, mgl32.Vec2{-0.5, 0.25}, u.Mouse)
}

func TestDisposeReleasesEverything(t *testing.T) {
	ctx := newFakeContext()
	comp := &fakeCompiler{}
	s := New(ctx, comp, testInputs(), zap.NewNop(), nil)
	s.Mount("v1")
	require.Equal(t, 2, ctx.listeners())

	s.Dispose()
	assert.Equal(t, Disposed, s.State())
	assert.Zero(t, ctx.listeners())
	assert.Equal(t, 1, ctx.released)
	assert.True(t, comp.programs[0].released)

	assert.False(t, s.Frame())
	assert.Empty(t, comp.programs[0].draws)

	s.Dispose()
	assert.Equal(t, 1, ctx.released)

	s.SetSource("v2")
	assert.Equal(t, 1, comp.compiles)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "stale", Stale.String())
	assert.Equal(t, "disposed", Disposed.String())
	assert.Equal(t, "unknown", State(42).String())
}
