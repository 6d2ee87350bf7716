package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/richinsley/goshaderjam/metrics"
	"github.com/richinsley/goshaderjam/registry"
	"github.com/richinsley/goshaderjam/surface"
	"github.com/richinsley/goshaderjam/tempo"
)

type stubContext struct {
	closed   bool
	released bool
}

func (c *stubContext) MakeCurrent()                            {}
func (c *stubContext) FramebufferSize() (int, int)             { return 64, 32 }
func (c *stubContext) OnResize(func(int, int)) func()          { return func() {} }
func (c *stubContext) OnPointer(func(float32, float32)) func() { return func() {} }
func (c *stubContext) ShouldClose() bool                       { return c.closed }
func (c *stubContext) Clear()                                  {}
func (c *stubContext) Present()                                {}
func (c *stubContext) Release()                                { c.released = true }

type stubProgram struct{}

func (stubProgram) Draw(*surface.Uniforms) {}
func (stubProgram) Release()               {}

type stubCompiler struct{}

func (stubCompiler) Compile(string) (surface.Program, error) { return stubProgram{}, nil }

type stubGenerator struct {
	generates, blends, topUps int
}

func (g *stubGenerator) Generate() { g.generates++ }
func (g *stubGenerator) Blend()    { g.blends++ }
func (g *stubGenerator) TopUp()    { g.topUps++ }

type fixture struct {
	reg      *registry.Registry
	panels   *surface.Manager
	gen      *stubGenerator
	rate     *tempo.Rate
	contexts []*stubContext
	ctrl     *Controller
	session  string
}

func newFixture(t *testing.T, initial ...string) *fixture {
	t.Helper()
	rate, err := tempo.NewRate(135)
	require.NoError(t, err)
	f := &fixture{
		reg:     registry.New(initial...),
		gen:     &stubGenerator{},
		rate:    rate,
		session: filepath.Join(t.TempDir(), "session.json"),
	}
	inputs := &surface.Inputs{Clock: func() float64 { return 0 }, BPM: rate.BPM}
	f.panels = surface.NewManager(func(int) (surface.Context, error) {
		c := &stubContext{}
		f.contexts = append(f.contexts, c)
		return c, nil
	}, stubCompiler{}, inputs, zap.NewNop(), nil)
	f.reg.Subscribe(f.panels.Reconcile)
	f.ctrl = NewController(f.reg, f.panels, f.gen, rate, f.session, zap.NewNop())
	return f
}

func TestAddDefaultOpensPanel(t *testing.T) {
	f := newFixture(t)
	f.ctrl.AddDefault()
	require.Equal(t, 1, f.panels.Len())
	assert.Equal(t, []string{DefaultShader}, f.reg.Snapshot())
	assert.Equal(t, surface.Running, f.panels.Surface(0).State())
}

func TestRemoveDropsPanelAndTopsUp(t *testing.T) {
	f := newFixture(t, "a", "b", "c")
	require.Len(t, f.contexts, 3)

	f.ctrl.Remove(1)
	assert.Equal(t, []string{"a", "c"}, f.reg.Snapshot())
	assert.True(t, f.contexts[1].released)
	assert.False(t, f.contexts[0].released)
	assert.False(t, f.contexts[2].released)
	assert.Same(t, f.contexts[2], f.panels.Surface(1).Context())
	assert.Equal(t, 1, f.gen.topUps)
}

func TestRemoveDuplicateKeepsOtherWindows(t *testing.T) {
	f := newFixture(t, "x", "x", "x")
	f.ctrl.Remove(1)
	assert.Equal(t, 2, f.reg.Len())
	assert.True(t, f.contexts[1].released)
	assert.Same(t, f.contexts[0], f.panels.Surface(0).Context())
	assert.Same(t, f.contexts[2], f.panels.Surface(1).Context())
}

func TestRemoveOutOfRangeIgnored(t *testing.T) {
	f := newFixture(t, "a")
	f.ctrl.Remove(-1)
	f.ctrl.Remove(3)
	assert.Equal(t, 1, f.reg.Len())
	assert.Zero(t, f.gen.topUps)
}

func TestRemoveClosed(t *testing.T) {
	f := newFixture(t, "a", "b", "c", "d")
	f.contexts[0].closed = true
	f.contexts[2].closed = true

	f.ctrl.RemoveClosed()
	assert.Equal(t, []string{"b", "d"}, f.reg.Snapshot())
	assert.Same(t, f.contexts[1], f.panels.Surface(0).Context())
	assert.Same(t, f.contexts[3], f.panels.Surface(1).Context())
	assert.Equal(t, 2, f.gen.topUps)
}

func TestReplace(t *testing.T) {
	f := newFixture(t, "a", "b")
	f.ctrl.Replace(1, "edited")
	assert.Equal(t, []string{"a", "edited"}, f.reg.Snapshot())
	assert.Equal(t, "edited", f.panels.Surface(1).Source())

	f.ctrl.Replace(5, "nope")
	assert.Equal(t, []string{"a", "edited"}, f.reg.Snapshot())
}

func TestGenerateAndBlendForward(t *testing.T) {
	f := newFixture(t, "a")
	f.ctrl.Generate()
	f.ctrl.Blend()
	assert.Equal(t, 1, f.gen.generates)
	assert.Equal(t, 1, f.gen.blends)
}

func TestTempoControls(t *testing.T) {
	f := newFixture(t)

	f.ctrl.SetBPM(90)
	assert.Equal(t, 90.0, f.rate.BPM())

	f.ctrl.SetBPM(0)
	f.ctrl.SetBPM(-10)
	assert.Equal(t, 90.0, f.rate.BPM())

	f.ctrl.Nudge(1)
	assert.Equal(t, 91.0, f.rate.BPM())
	f.ctrl.Nudge(-2)
	assert.Equal(t, 89.0, f.rate.BPM())

	f.ctrl.SetBPM(1)
	f.ctrl.Nudge(-1)
	assert.Equal(t, 1.0, f.rate.BPM())
}

func TestSingleTapKeepsTempo(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Tap()
	assert.Equal(t, 135.0, f.rate.BPM())
}

func TestSaveAndLoad(t *testing.T) {
	f := newFixture(t, "a", "b")
	f.ctrl.Save()

	f.ctrl.AddDefault()
	f.ctrl.Replace(0, "changed")
	require.Equal(t, 3, f.panels.Len())

	f.ctrl.Load()
	assert.Equal(t, []string{"a", "b"}, f.reg.Snapshot())
	assert.Equal(t, 2, f.panels.Len())
}

func TestLoadMalformedKeepsRegistry(t *testing.T) {
	f := newFixture(t, "a")
	require.NoError(t, os.WriteFile(f.session, []byte(`{"not":"a list"}`), 0o644))

	f.ctrl.Load()
	assert.Equal(t, []string{"a"}, f.reg.Snapshot())
}

func TestLoadEmptySessionKeepsRegistry(t *testing.T) {
	f := newFixture(t, "a", "b")
	require.NoError(t, os.WriteFile(f.session, []byte("[]\n"), 0o644))

	f.ctrl.Load()
	assert.Equal(t, []string{"a", "b"}, f.reg.Snapshot())
	assert.Equal(t, 2, f.panels.Len())
}

func TestLoadMissingKeepsRegistry(t *testing.T) {
	f := newFixture(t, "a")
	f.ctrl.Load()
	assert.Equal(t, []string{"a"}, f.reg.Snapshot())
}

func TestTrackBPM(t *testing.T) {
	rate, err := tempo.NewRate(120)
	require.NoError(t, err)
	m := metrics.New()

	cancel := TrackBPM(rate, m)
	assert.Equal(t, 120.0, testutil.ToFloat64(m.BPM))

	require.NoError(t, rate.Set(128))
	assert.Equal(t, 128.0, testutil.ToFloat64(m.BPM))

	cancel()
	require.NoError(t, rate.Set(100))
	assert.Equal(t, 128.0, testutil.ToFloat64(m.BPM))
}

func TestPanelTitle(t *testing.T) {
	assert.Equal(t, "goshaderjam #3", panelTitle(3))
}

func TestRejectedTempoIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	f := newFixture(t)
	f.ctrl.log = zap.New(core)

	f.ctrl.SetBPM(-1)
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "Rejected tempo", entry.Message)
	assert.Equal(t, -1.0, entry.ContextMap()["bpm"])
}
