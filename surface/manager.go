package surface

import (
	"go.uber.org/zap"

	"github.com/richinsley/goshaderjam/metrics"
)

// ContextFactory opens the output for the panel at index.
type ContextFactory func(index int) (Context, error)

// Manager keeps exactly one Surface per registry entry.
type Manager struct {
	log        *zap.Logger
	newContext ContextFactory
	compiler   Compiler
	inputs     *Inputs
	metrics    *metrics.Metrics

	surfaces []*Surface
}

func NewManager(newContext ContextFactory, compiler Compiler, inputs *Inputs, log *zap.Logger, m *metrics.Metrics) *Manager {
	return &Manager{
		log:        log,
		newContext: newContext,
		compiler:   compiler,
		inputs:     inputs,
		metrics:    m,
	}
}

// Reconcile matches surfaces to sources. It is used as the registry
// observer. When entries were removed, the first surfaces whose source no
// longer lines up are disposed so that the remaining ones keep their
// programs; all other differences rebuild in place.
func (m *Manager) Reconcile(sources []string) {
	for len(m.surfaces) > len(sources) {
		i := firstMismatch(m.surfaces, sources)
		m.Drop(i)
	}

	for i, src := range sources {
		if i < len(m.surfaces) {
			m.surfaces[i].SetSource(src)
			continue
		}
		m.surfaces = append(m.surfaces, m.open(i, src))
	}
	m.metrics.SetPanels(len(m.surfaces))
}

func firstMismatch(surfaces []*Surface, sources []string) int {
	for i, src := range sources {
		if surfaces[i].Source() != src {
			return i
		}
	}
	return len(sources)
}

func (m *Manager) open(index int, source string) *Surface {
	ctx, err := m.newContext(index)
	if err != nil {
		m.log.Error("could not open panel output", zap.Int("panel", index), zap.Error(err))
		ctx = nullContext{}
	}
	s := New(ctx, m.compiler, m.inputs, m.log.With(zap.Int("panel", index)), m.metrics)
	s.Mount(source)
	return s
}

// Drop disposes the surface at index ahead of the matching registry removal,
// so the following Reconcile finds the lists already aligned.
func (m *Manager) Drop(index int) {
	if index < 0 || index >= len(m.surfaces) {
		return
	}
	m.surfaces[index].Dispose()
	m.surfaces = append(m.surfaces[:index], m.surfaces[index+1:]...)
	m.metrics.SetPanels(len(m.surfaces))
}

// Frame draws every surface once and returns how many drew.
func (m *Manager) Frame() int {
	n := 0
	for _, s := range m.surfaces {
		if s.Frame() {
			n++
		}
	}
	return n
}

// Closed returns the indices of surfaces whose output was closed by the
// user, highest first so they can be removed in order.
func (m *Manager) Closed() []int {
	var out []int
	for i := len(m.surfaces) - 1; i >= 0; i-- {
		if m.surfaces[i].ctx.ShouldClose() {
			out = append(out, i)
		}
	}
	return out
}

// IndexOf returns the position of the surface drawing into ctx, or -1.
func (m *Manager) IndexOf(ctx Context) int {
	for i, s := range m.surfaces {
		if s.ctx == ctx {
			return i
		}
	}
	return -1
}

func (m *Manager) Len() int { return len(m.surfaces) }

func (m *Manager) Surface(index int) *Surface { return m.surfaces[index] }

// Close disposes every surface.
func (m *Manager) Close() {
	for _, s := range m.surfaces {
		s.Dispose()
	}
	m.surfaces = nil
	m.metrics.SetPanels(0)
}

// nullContext stands in for an output that failed to open.
type nullContext struct{}

func (nullContext) MakeCurrent()                            {}
func (nullContext) FramebufferSize() (int, int)             { return 0, 0 }
func (nullContext) OnResize(func(int, int)) func()          { return func() {} }
func (nullContext) OnPointer(func(float32, float32)) func() { return func() {} }
func (nullContext) ShouldClose() bool                       { return false }
func (nullContext) Clear()                                  {}
func (nullContext) Present()                                {}
func (nullContext) Release()                                {}
