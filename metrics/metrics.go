// Package metrics exposes render and generation counters to prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Compile results.
const (
	CompileOK     = "ok"
	CompileFailed = "failed"
)

// Generation outcomes.
const (
	OutcomeAppended  = "appended"
	OutcomeNoCode    = "no_code_block"
	OutcomeTransport = "transport_error"
)

// Metrics groups the collectors registered for one process.
type Metrics struct {
	Registry    *prometheus.Registry
	Compiles    *prometheus.CounterVec
	Frames      prometheus.Counter
	Generations *prometheus.CounterVec
	Panels      prometheus.Gauge
	BPM         prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		Compiles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shaderjam",
			Name:      "shader_compiles_total",
			Help:      "Panel program builds by result.",
		}, []string{"result"}),
		Frames: f.NewCounter(prometheus.CounterOpts{
			Namespace: "shaderjam",
			Name:      "frames_drawn_total",
			Help:      "Draw calls issued across all panels.",
		}),
		Generations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shaderjam",
			Name:      "generations_total",
			Help:      "Code-transform requests by kind and outcome.",
		}, []string{"kind", "outcome"}),
		Panels: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "shaderjam",
			Name:      "panels",
			Help:      "Live render panels.",
		}),
		BPM: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "shaderjam",
			Name:      "bpm",
			Help:      "Current shared tempo.",
		}),
	}
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		log.Info("Serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server failed", zap.Error(err))
		}
	}()
}

// The helpers below accept a nil receiver so components can run without
// metrics in tests.

func (m *Metrics) ObserveCompile(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.Compiles.WithLabelValues(CompileOK).Inc()
	} else {
		m.Compiles.WithLabelValues(CompileFailed).Inc()
	}
}

func (m *Metrics) ObserveFrame() {
	if m == nil {
		return
	}
	m.Frames.Inc()
}

func (m *Metrics) ObserveGeneration(kind, outcome string) {
	if m == nil {
		return
	}
	m.Generations.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) SetPanels(n int) {
	if m == nil {
		return
	}
	m.Panels.Set(float64(n))
}

func (m *Metrics) SetBPM(bpm float64) {
	if m == nil {
		return
	}
	m.BPM.Set(bpm)
}
