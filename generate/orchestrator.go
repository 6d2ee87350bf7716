package generate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/richinsley/goshaderjam/metrics"
	"github.com/richinsley/goshaderjam/registry"
)

// Poster runs callbacks on the render thread.
type Poster interface {
	Post(fn func())
}

// Options bound the orchestrator's automatic continuation.
type Options struct {
	// MaxAhead is the registry depth generation tops up to.
	MaxAhead int
	// MaxAttempts is how many consecutive responses without a code block end
	// a continuation. A failed request ends it at once.
	MaxAttempts int
	// Timeout applies to each request. Zero means none.
	Timeout time.Duration
}

// Orchestrator issues generate and blend requests against the registry.
// All methods must be called on the render thread; responses are delivered
// back through the Poster.
type Orchestrator struct {
	ctx     context.Context
	log     *zap.Logger
	reg     *registry.Registry
	t       Transformer
	post    Poster
	metrics *metrics.Metrics
	opts    Options

	caption    string
	generating bool
	blends     int
	failures   int
	wg         sync.WaitGroup
}

// New returns an idle orchestrator. Requests are cancelled when ctx ends.
func New(ctx context.Context, reg *registry.Registry, t Transformer, post Poster, opts Options, caption string, log *zap.Logger, m *metrics.Metrics) *Orchestrator {
	if opts.MaxAhead < 1 {
		opts.MaxAhead = 5
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	return &Orchestrator{
		ctx:     ctx,
		log:     log,
		reg:     reg,
		t:       t,
		post:    post,
		metrics: m,
		opts:    opts,
		caption: caption,
	}
}

func (o *Orchestrator) SetCaption(caption string) { o.caption = caption }

func (o *Orchestrator) Caption() string { return o.caption }

// Idle reports whether no request is outstanding.
func (o *Orchestrator) Idle() bool { return !o.generating && o.blends == 0 }

// Generate mutates the last entry. Results keep coming until the registry
// holds MaxAhead entries, MaxAttempts responses in a row carry no code, or a
// request fails.
// A call while a generation is outstanding is ignored.
func (o *Orchestrator) Generate() {
	if o.generating {
		o.log.Debug("generation already in flight")
		return
	}
	o.failures = 0
	o.generate()
}

// TopUp starts a generation if the registry is below MaxAhead.
func (o *Orchestrator) TopUp() {
	if o.reg.Len() < o.opts.MaxAhead {
		o.Generate()
	}
}

func (o *Orchestrator) generate() {
	last, err := o.reg.At(o.reg.Len() - 1)
	if err != nil {
		o.log.Info("nothing to generate from, registry is empty")
		return
	}
	o.generating = true
	o.send(newRequest(KindGenerate, o.caption, last))
}

// Blend combines the last two entries into one new entry.
func (o *Orchestrator) Blend() {
	n := o.reg.Len()
	if n < 2 {
		o.log.Info("blend needs two entries", zap.Int("entries", n))
		return
	}
	a, _ := o.reg.At(n - 2)
	b, _ := o.reg.At(n - 1)
	o.blends++
	o.send(newRequest(KindBlend, o.caption, a, b))
}

func (o *Orchestrator) send(req Request) {
	o.log.Info("requesting shader", zap.String("request_id", req.ID.String()), zap.String("kind", string(req.Kind)))
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx := o.ctx
		if o.opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
			defer cancel()
		}
		text, err := o.t.Transform(ctx, req)
		o.post.Post(func() { o.complete(req, text, err) })
	}()
}

// complete runs on the render thread.
func (o *Orchestrator) complete(req Request, text string, err error) {
	log := o.log.With(zap.String("request_id", req.ID.String()), zap.String("kind", string(req.Kind)))
	if req.Kind == KindBlend {
		o.blends--
	}

	appended := false
	if errors.Is(err, gobreaker.ErrOpenState) {
		log.Warn("code transform service unavailable", zap.Error(err))
		o.metrics.ObserveGeneration(string(req.Kind), metrics.OutcomeTransport)
	} else if err != nil {
		log.Error("shader request failed", zap.Error(err))
		o.metrics.ObserveGeneration(string(req.Kind), metrics.OutcomeTransport)
	} else if code, xerr := Extract(text); xerr != nil {
		log.Warn("discarding response", zap.Error(xerr))
		o.metrics.ObserveGeneration(string(req.Kind), metrics.OutcomeNoCode)
	} else {
		o.reg.Append(code)
		appended = true
		log.Info("appended shader", zap.Int("entries", o.reg.Len()))
		o.metrics.ObserveGeneration(string(req.Kind), metrics.OutcomeAppended)
	}

	if req.Kind != KindGenerate {
		return
	}
	o.generating = false
	if err != nil {
		// a failed request ends the run; only a new Generate or TopUp starts another
		return
	}
	if appended {
		o.failures = 0
	} else {
		o.failures++
	}
	if o.reg.Len() >= o.opts.MaxAhead {
		return
	}
	switch {
	case o.ctx.Err() != nil:
		return
	case o.failures >= o.opts.MaxAttempts:
		log.Warn("giving up after consecutive failures", zap.Int("failures", o.failures))
		return
	}
	o.generate()
}

// Wait blocks until every request goroutine has posted its result.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}
