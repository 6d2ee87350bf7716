// Package app wires the panels, producers and generation into one render
// loop running on the main OS thread.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	glfw "github.com/go-gl/glfw/v3.3/glfw"
	"go.uber.org/zap"

	"github.com/richinsley/goshaderjam/audio"
	"github.com/richinsley/goshaderjam/config"
	"github.com/richinsley/goshaderjam/generate"
	"github.com/richinsley/goshaderjam/metrics"
	"github.com/richinsley/goshaderjam/registry"
	"github.com/richinsley/goshaderjam/renderer"
	"github.com/richinsley/goshaderjam/scheduler"
	"github.com/richinsley/goshaderjam/session"
	"github.com/richinsley/goshaderjam/shader"
	"github.com/richinsley/goshaderjam/shadertoy"
	"github.com/richinsley/goshaderjam/surface"
	"github.com/richinsley/goshaderjam/tempo"
	"github.com/richinsley/goshaderjam/textures"
	"github.com/richinsley/goshaderjam/video"
	"github.com/richinsley/goshaderjam/workspace"
)

const micSampleRate = 44100

// App owns everything that lives on the render thread.
type App struct {
	cfg     *config.Config
	log     *zap.Logger
	metrics *metrics.Metrics
	queue   *scheduler.Queue
	start   time.Time

	reg    *registry.Registry
	rate   *tempo.Rate
	root   *renderer.Window
	live   []*renderer.LiveTexture
	panels *surface.Manager
	gen    *generate.Orchestrator
	ctrl   *Controller

	quit bool

	wakeMu sync.RWMutex
	awake  bool
}

// wake interrupts WaitEventsTimeout. Posts racing with shutdown are dropped
// because GLFW must not be called after Terminate.
func (a *App) wake() {
	a.wakeMu.RLock()
	defer a.wakeMu.RUnlock()
	if a.awake {
		glfw.PostEmptyEvent()
	}
}

func (a *App) setAwake(v bool) {
	a.wakeMu.Lock()
	a.awake = v
	a.wakeMu.Unlock()
}

// Run opens the panels and renders until ctx ends, Escape is pressed or the
// last panel is removed. It must be called from the main goroutine.
func Run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a := &App{
		cfg:     cfg,
		log:     log,
		metrics: metrics.New(),
		start:   time.Now(),
	}
	a.queue = scheduler.NewQueue(a.wake)
	if cfg.MetricsAddr != "" {
		a.metrics.Serve(ctx, cfg.MetricsAddr, log.Named("metrics"))
	}

	if err := renderer.InitGraphics(); err != nil {
		return fmt.Errorf("failed to initialize graphics: %w", err)
	}
	defer renderer.TerminateGraphics()
	a.setAwake(true)
	defer a.setAwake(false)

	// hidden window owning the shared object namespace
	root, err := renderer.NewWindow(renderer.WindowConfig{Width: 1, Height: 1, Title: "goshaderjam"}, nil, log.Named("renderer"))
	if err != nil {
		return err
	}
	a.root = root
	defer root.Release()

	rate, err := tempo.NewRate(cfg.BPM)
	if err != nil {
		return err
	}
	a.rate = rate
	defer TrackBPM(rate, a.metrics)()

	inputs := &surface.Inputs{
		Clock: func() float64 { return time.Since(a.start).Seconds() },
		BPM:   rate.BPM,
	}
	if !cfg.NoCamera {
		inputs.Channels[0] = a.startCamera(ctx)
	}
	if !cfg.NoMic {
		inputs.Channels[1] = a.startMicrophone(ctx)
	}
	defer func() {
		root.MakeCurrent()
		for _, t := range a.live {
			t.Destroy()
		}
	}()

	translator, err := shader.SharedTranslator()
	if err != nil {
		return fmt.Errorf("failed to create shader translator: %w", err)
	}
	compiler := renderer.NewCompiler(shader.NewBuilder(translator))
	a.panels = surface.NewManager(a.openPanel, compiler, inputs, log.Named("surface"), a.metrics)
	defer a.panels.Close()

	a.reg = registry.New(a.initialSources()...)

	var t generate.Transformer = generate.NewOpenAI(generate.OpenAIConfig{
		APIKey:  cfg.OpenAIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.Model,
	}, log.Named("openai"))
	if cfg.OpenAIKey == "" {
		log.Warn("No OpenAI key configured; generation requests will fail")
	}
	t = generate.NewBreaker(t, generate.BreakerSettings{}, log.Named("breaker"))
	a.gen = generate.New(ctx, a.reg, t, a.queue, generate.Options{
		MaxAhead:    cfg.MaxAhead,
		MaxAttempts: cfg.MaxAttempts,
		Timeout:     cfg.RequestTimeout,
	}, cfg.Caption, log.Named("generate"), a.metrics)
	defer a.gen.Wait()

	a.ctrl = NewController(a.reg, a.panels, a.gen, rate, cfg.Session, log.Named("control"))

	a.reg.Subscribe(a.panels.Reconcile)
	a.reg.Subscribe(a.retitle)

	if cfg.MIDI {
		if err := tempo.ListenMIDI(ctx, tempo.NewMIDIClock(rate), a.queue.Post, log.Named("midi")); err != nil {
			log.Warn("MIDI clock unavailable", zap.Error(err))
		}
	}
	if cfg.Workspace != "" {
		stop, err := a.startWorkspace(ctx)
		if err != nil {
			return err
		}
		defer stop()
	}
	a.importShaders(ctx)

	log.Info("Running",
		zap.Int("panels", a.reg.Len()),
		zap.Float64("bpm", rate.BPM()),
		zap.String("caption", a.gen.Caption()))
	a.loop(ctx)
	cancel()
	return nil
}

// initialSources reads the session file when it exists, otherwise starts with
// the default shader.
func (a *App) initialSources() []string {
	if a.cfg.Session != "" {
		sources, err := session.Load(a.cfg.Session)
		switch {
		case err == nil && len(sources) > 0:
			a.log.Info("Restored session", zap.String("path", a.cfg.Session), zap.Int("panels", len(sources)))
			return sources
		case err != nil && !errors.Is(err, os.ErrNotExist):
			a.log.Warn("Ignoring session file", zap.String("path", a.cfg.Session), zap.Error(err))
		}
	}
	return []string{DefaultShader}
}

func (a *App) openPanel(index int) (surface.Context, error) {
	w, err := renderer.NewWindow(renderer.WindowConfig{
		Width:   a.cfg.Width,
		Height:  a.cfg.Height,
		Title:   panelTitle(index),
		Visible: true,
	}, a.root, a.log.Named("renderer"))
	if err != nil {
		return nil, err
	}
	a.bindKeys(w)
	return w, nil
}

func panelTitle(index int) string {
	return fmt.Sprintf("goshaderjam #%d", index)
}

// retitle keeps window titles in step with registry positions.
func (a *App) retitle([]string) {
	for i := 0; i < a.panels.Len(); i++ {
		if w, ok := a.panels.Surface(i).Context().(*renderer.Window); ok {
			w.SetTitle(panelTitle(i))
		}
	}
}

// bindKeys installs the keyboard controls. Actions are queued so that no
// window is destroyed from inside its own callback.
func (a *App) bindKeys(w *renderer.Window) {
	bind := func(key glfw.Key, fn func()) {
		w.RegisterKeyCallback(key, func() { a.queue.Post(fn) })
	}
	remove := func() { a.ctrl.Remove(a.panels.IndexOf(w)) }

	bind(glfw.KeyG, a.ctrl.Generate)
	bind(glfw.KeyB, a.ctrl.Blend)
	bind(glfw.KeyN, a.ctrl.AddDefault)
	bind(glfw.KeyDelete, remove)
	bind(glfw.KeyBackspace, remove)
	bind(glfw.KeySpace, a.ctrl.Tap)
	bind(glfw.KeyUp, func() { a.ctrl.Nudge(1) })
	bind(glfw.KeyDown, func() { a.ctrl.Nudge(-1) })
	bind(glfw.KeyS, a.ctrl.Save)
	bind(glfw.KeyL, a.ctrl.Load)
	bind(glfw.KeyEscape, func() { a.quit = true })
}

func (a *App) startCamera(ctx context.Context) textures.Handle {
	width, height, err := a.cfg.CameraDimensions()
	if err != nil {
		a.log.Warn("Camera disabled", zap.Error(err))
		return nil
	}
	source := textures.NewSource("webcam")
	cam := video.NewWebcam(video.Config{
		Device:     a.cfg.Camera,
		Width:      width,
		Height:     height,
		FFmpegPath: a.cfg.FFmpegPath,
	}, source, a.log.Named("webcam"))
	go func() {
		if err := cam.Run(ctx); err != nil {
			a.log.Warn("Camera stopped, iChannel0 stays empty", zap.Error(err))
		}
	}()
	t := renderer.NewLiveTexture(source)
	a.live = append(a.live, t)
	return t
}

func (a *App) startMicrophone(ctx context.Context) textures.Handle {
	source := startAudio(ctx, func() (audio.Device, error) {
		return audio.NewMicrophone(a.cfg.MicDevice, micSampleRate, a.log.Named("microphone"))
	}, a.log.Named("audio"))
	if source == nil {
		return nil
	}
	t := renderer.NewLiveTexture(source)
	a.live = append(a.live, t)
	return t
}

// startAudio runs an analyser on the opened device. It returns nil when the
// device cannot be opened, so iChannel1 stays unbound for the whole run.
func startAudio(ctx context.Context, open func() (audio.Device, error), log *zap.Logger) *textures.Source {
	device, err := open()
	if err != nil {
		log.Warn("Microphone unavailable, iChannel1 stays empty", zap.Error(err))
		return nil
	}
	source := textures.NewSource("audio")
	analyser := audio.NewAnalyser(device, source, log)
	go func() {
		if err := analyser.Run(ctx); err != nil {
			log.Warn("Audio analyser stopped, iChannel1 stays empty", zap.Error(err))
		}
	}()
	return source
}

func (a *App) startWorkspace(ctx context.Context) (stop func(), err error) {
	mirror, err := workspace.NewMirror(a.cfg.Workspace, a.log.Named("workspace"))
	if err != nil {
		return nil, err
	}
	cancelSync := a.reg.Subscribe(mirror.Sync)
	watcher, err := workspace.NewWatcher(mirror, a.queue.Post, a.ctrl.Replace, a.log.Named("workspace"))
	if err != nil {
		cancelSync()
		return nil, err
	}
	caption, err := mirror.WriteCaption(a.gen.Caption())
	if err != nil {
		a.log.Warn("Caption file unavailable", zap.Error(err))
	}
	a.gen.SetCaption(caption)
	watcher.OnCaption = a.gen.SetCaption
	if err := watcher.Start(ctx); err != nil {
		cancelSync()
		return nil, err
	}
	a.log.Info("Mirroring panels", zap.String("dir", mirror.Dir()))
	return func() {
		cancelSync()
		if err := watcher.Stop(); err != nil {
			a.log.Warn("Failed to stop workspace watcher", zap.Error(err))
		}
	}, nil
}

// importShaders fetches the configured Shadertoy IDs in the background and
// appends each image pass as it arrives.
func (a *App) importShaders(ctx context.Context) {
	if len(a.cfg.Import) == 0 {
		return
	}
	client := shadertoy.NewClient(a.cfg.ShadertoyKey, "", a.log)
	for _, id := range a.cfg.Import {
		go func(id string) {
			code, err := client.FetchImageCode(ctx, id)
			if err != nil {
				a.log.Warn("Shadertoy import failed", zap.String("id", id), zap.Error(err))
				return
			}
			a.queue.Post(func() { a.reg.Append(code) })
		}(id)
	}
}

func (a *App) loop(ctx context.Context) {
	interval := time.Second / time.Duration(a.cfg.FPS)
	next := time.Now()
	for !a.quit && ctx.Err() == nil {
		a.queue.Drain()
		a.ctrl.RemoveClosed()
		if a.reg.Len() == 0 && a.gen.Idle() {
			a.log.Info("Last panel removed")
			return
		}

		a.root.MakeCurrent()
		for _, t := range a.live {
			t.Sync()
		}
		a.panels.Frame()

		next = next.Add(interval)
		if wait := time.Until(next); wait > 0 {
			glfw.WaitEventsTimeout(wait.Seconds())
		} else {
			glfw.PollEvents()
			next = time.Now()
		}
	}
}
