package audio

import (
	"context"
	"math"
	"sync"
	"time"

	fft "github.com/mjibson/go-dsp/fft"
	"go.uber.org/zap"

	"github.com/richinsley/goshaderjam/textures"
)

const (
	// TextureWidth is the bin / sample count per row of the spectrum texture.
	TextureWidth  = 512
	TextureHeight = 2

	fftInputSize      = 2048
	historyBufferSize = fftInputSize * 4

	minDecibels = -100.0
	maxDecibels = -30.0

	// magnitude smoothing inside the analyser, before byte conversion
	analyserSmoothing = 0.8
)

// Analyser turns a sample stream into 512x2 single channel frames: row 0 is
// the byte-scaled spectrum, row 1 the byte-scaled waveform. Both rows are EMA
// smoothed before publishing.
type Analyser struct {
	log      *zap.Logger
	device   Device
	source   *textures.Source
	interval time.Duration

	mutex         sync.Mutex
	historyBuffer []float32
	bufferPos     int

	window     []float64
	magnitudes []float64
	current    []float64
	smoother   *Smoother
}

// NewAnalyser publishes into source at roughly 60 frames per second.
func NewAnalyser(device Device, source *textures.Source, log *zap.Logger) *Analyser {
	return &Analyser{
		log:           log,
		device:        device,
		source:        source,
		interval:      time.Second / 60,
		historyBuffer: make([]float32, historyBufferSize),
		window:        blackmanWindow(fftInputSize),
		magnitudes:    make([]float64, TextureWidth),
		current:       make([]float64, TextureWidth*TextureHeight),
		smoother:      NewSmoother(TextureWidth*TextureHeight, DefaultSmoothing),
	}
}

// Run starts the device and publishes frames until ctx ends. A device that
// fails to start leaves the texture empty; the error is returned for logging.
func (a *Analyser) Run(ctx context.Context) error {
	defer func() {
		if err := a.device.Stop(); err != nil {
			a.log.Warn("audio device stop", zap.Error(err))
		}
	}()
	audioChan, err := a.device.Start()
	if err != nil {
		return err
	}
	a.log.Info("audio analyser started", zap.Int("sample_rate", a.device.SampleRate()))

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case samples, ok := <-audioChan:
			if !ok {
				a.log.Info("audio channel closed")
				return nil
			}
			a.Write(samples)
		case <-ticker.C:
			if err := a.source.Publish(a.Tick()); err != nil {
				a.log.Error("publish spectrum", zap.Error(err))
			}
		}
	}
}

// Write appends samples to the history ring.
func (a *Analyser) Write(samples []float32) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	for _, sample := range samples {
		a.historyBuffer[a.bufferPos] = sample
		a.bufferPos = (a.bufferPos + 1) % historyBufferSize
	}
}

func (a *Analyser) recentSamples(numSamples int) []float32 {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	out := make([]float32, numSamples)
	for i := 0; i < numSamples; i++ {
		index := (a.bufferPos - numSamples + i + historyBufferSize) % historyBufferSize
		out[i] = a.historyBuffer[index]
	}
	return out
}

// Tick computes one smoothed frame from the most recent samples.
func (a *Analyser) Tick() *textures.Frame {
	samples := a.recentSamples(fftInputSize)
	samples64 := make([]float64, fftInputSize)
	for i, s := range samples {
		samples64[i] = float64(s) * a.window[i]
	}

	fftResult := fft.FFTReal(samples64)
	for i := 0; i < TextureWidth; i++ {
		re := real(fftResult[i])
		im := imag(fftResult[i])
		magnitude := math.Sqrt(re*re+im*im) * (2.0 / float64(fftInputSize))
		a.magnitudes[i] = analyserSmoothing*a.magnitudes[i] + (1-analyserSmoothing)*magnitude

		db := 20 * math.Log10(a.magnitudes[i]+1e-9)
		a.current[i] = decibelsToByte(db)
	}

	waveSegment := samples[len(samples)-TextureWidth:]
	for i, s := range waveSegment {
		a.current[TextureWidth+i] = clampByteRange(128 * (1 + float64(s)))
	}

	a.smoother.Update(a.current)
	pix := make([]byte, TextureWidth*TextureHeight)
	a.smoother.Bytes(pix)
	return &textures.Frame{Width: TextureWidth, Height: TextureHeight, Format: textures.R8, Pix: pix}
}

func decibelsToByte(db float64) float64 {
	scaled := 255 * (db - minDecibels) / (maxDecibels - minDecibels)
	return clampByteRange(math.Floor(scaled))
}

func clampByteRange(v float64) float64 {
	return math.Max(0, math.Min(255, v))
}

// blackmanWindow generates a Blackman window, as used by Shadertoy.
func blackmanWindow(size int) []float64 {
	window := make([]float64, size)
	a0 := 0.42
	a1 := 0.5
	a2 := 0.08
	invSize := 1.0 / float64(size-1)
	for i := range window {
		t := float64(i) * invSize
		window[i] = a0 - (a1 * math.Cos(2*math.Pi*t)) + (a2 * math.Cos(4*math.Pi*t))
	}
	return window
}
