package app

import (
	"errors"

	"go.uber.org/zap"

	"github.com/richinsley/goshaderjam/metrics"
	"github.com/richinsley/goshaderjam/registry"
	"github.com/richinsley/goshaderjam/session"
	"github.com/richinsley/goshaderjam/surface"
	"github.com/richinsley/goshaderjam/tempo"
)

// DefaultShader passes the webcam texture straight through.
const DefaultShader = `
void mainImage(out vec4 fragColor, in vec2 fragCoord) {
    // Normalized pixel coordinates (from 0 to 1)
    vec2 uv = fragCoord / iResolution.xy;

    // Sample the texture from iChannel0
    vec4 texColor = texture(iChannel0, uv);

    fragColor = vec4(texColor.rgb, 1.0);
}
`

// Generator is the part of the orchestrator driven by user actions.
type Generator interface {
	Generate()
	Blend()
	TopUp()
}

// Controller applies user actions to the registry and the tempo. All methods
// run on the render thread.
type Controller struct {
	log         *zap.Logger
	reg         *registry.Registry
	panels      *surface.Manager
	gen         Generator
	rate        *tempo.Rate
	tapper      *tempo.Tapper
	sessionPath string
}

func NewController(reg *registry.Registry, panels *surface.Manager, gen Generator, rate *tempo.Rate, sessionPath string, log *zap.Logger) *Controller {
	return &Controller{
		log:         log,
		reg:         reg,
		panels:      panels,
		gen:         gen,
		rate:        rate,
		tapper:      tempo.NewTapper(),
		sessionPath: sessionPath,
	}
}

func (c *Controller) Generate() { c.gen.Generate() }

func (c *Controller) Blend() { c.gen.Blend() }

// AddDefault appends the webcam pass-through shader.
func (c *Controller) AddDefault() {
	c.reg.Append(DefaultShader)
}

// Remove deletes entry index and its panel, then tops generation back up.
func (c *Controller) Remove(index int) {
	if index < 0 || index >= c.reg.Len() {
		return
	}
	if index < c.panels.Len() {
		c.panels.Drop(index)
	}
	if err := c.reg.RemoveAt(index); err != nil {
		c.log.Warn("Failed to remove panel", zap.Int("panel", index), zap.Error(err))
		return
	}
	c.log.Info("Removed panel", zap.Int("panel", index), zap.Int("panels", c.reg.Len()))
	c.gen.TopUp()
}

// RemoveClosed removes every panel whose window was closed.
func (c *Controller) RemoveClosed() {
	// Closed is descending, so earlier indices stay valid
	for _, i := range c.panels.Closed() {
		c.Remove(i)
	}
}

// Replace sets entry index to source, e.g. after an external file edit.
func (c *Controller) Replace(index int, source string) {
	if err := c.reg.ReplaceAt(index, source); err != nil {
		c.log.Warn("Ignoring edit", zap.Int("panel", index), zap.Error(err))
	}
}

// Tap records a tempo tap and applies the measured tempo once available.
func (c *Controller) Tap() {
	bpm, ok := c.tapper.Tap()
	if !ok {
		return
	}
	c.SetBPM(float64(bpm))
}

// SetBPM applies a manually entered tempo.
func (c *Controller) SetBPM(bpm float64) {
	if err := c.rate.Set(bpm); err != nil {
		c.log.Warn("Rejected tempo", zap.Float64("bpm", bpm), zap.Error(err))
		return
	}
	c.log.Info("Tempo", zap.Float64("bpm", bpm))
}

func (c *Controller) Nudge(delta float64) {
	bpm, err := c.rate.Nudge(delta)
	if err != nil {
		c.log.Warn("Rejected tempo", zap.Float64("bpm", bpm+delta), zap.Error(err))
		return
	}
	c.log.Info("Tempo", zap.Float64("bpm", bpm))
}

func (c *Controller) Save() {
	if err := session.Save(c.sessionPath, c.reg.Snapshot()); err != nil {
		c.log.Error("Failed to save session", zap.String("path", c.sessionPath), zap.Error(err))
		return
	}
	c.log.Info("Saved session", zap.String("path", c.sessionPath), zap.Int("panels", c.reg.Len()))
}

// Load replaces the registry with the saved session. A missing, malformed or
// empty file leaves the registry unchanged.
func (c *Controller) Load() {
	sources, err := session.Load(c.sessionPath)
	if err != nil {
		var malformed *session.MalformedError
		if errors.As(err, &malformed) {
			c.log.Warn("Ignoring malformed session", zap.String("path", c.sessionPath), zap.Error(err))
		} else {
			c.log.Error("Failed to load session", zap.String("path", c.sessionPath), zap.Error(err))
		}
		return
	}
	if len(sources) == 0 {
		c.log.Warn("Ignoring empty session", zap.String("path", c.sessionPath))
		return
	}
	c.reg.Load(sources)
	c.log.Info("Loaded session", zap.String("path", c.sessionPath), zap.Int("panels", len(sources)))
}

// TrackBPM mirrors the tempo into m.
func TrackBPM(rate *tempo.Rate, m *metrics.Metrics) (cancel func()) {
	m.SetBPM(rate.BPM())
	return rate.Subscribe(m.SetBPM)
}
