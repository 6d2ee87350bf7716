package audio

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"
)

// Microphone captures from a portaudio input. Stereo inputs are downmixed
// to mono in the callback.
type Microphone struct {
	log        *zap.Logger
	name       string
	sampleRate int
	channels   int

	stream  *portaudio.Stream
	out     chan []float32
	dropped atomic.Int64
}

// NewMicrophone initializes portaudio. name selects an input whose name
// contains it (case insensitive); empty means the host default.
func NewMicrophone(name string, sampleRate int, log *zap.Logger) (*Microphone, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: initialize portaudio: %v", ErrDeviceUnavailable, err)
	}
	return &Microphone{log: log, name: name, sampleRate: sampleRate}, nil
}

// pickInput returns the first input device matching name, or fallback when
// name is empty.
func pickInput(devices []*portaudio.DeviceInfo, name string, fallback *portaudio.DeviceInfo) (*portaudio.DeviceInfo, error) {
	if name == "" {
		if fallback == nil {
			return nil, fmt.Errorf("%w: no default input device", ErrDeviceUnavailable)
		}
		return fallback, nil
	}
	want := strings.ToLower(name)
	for _, d := range devices {
		if d.MaxInputChannels > 0 && strings.Contains(strings.ToLower(d.Name), want) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: no input device matching %q", ErrDeviceUnavailable, name)
}

// downmix averages interleaved frames of the given channel count.
func downmix(in []float32, channels int) []float32 {
	if channels <= 1 {
		return append([]float32(nil), in...)
	}
	mono := make([]float32, len(in)/channels)
	for i := range mono {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += in[i*channels+c]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}

func (m *Microphone) process(in []float32) {
	// portaudio reuses in; downmix always copies
	chunk := downmix(in, m.channels)
	select {
	case m.out <- chunk:
	default:
		if n := m.dropped.Add(1); n%100 == 1 {
			m.log.Warn("audio consumer behind, dropping chunk", zap.Int64("dropped", n))
		}
	}
}

func (m *Microphone) Start() (<-chan []float32, error) {
	var devices []*portaudio.DeviceInfo
	var fallback *portaudio.DeviceInfo
	if m.name != "" {
		all, err := portaudio.Devices()
		if err != nil {
			return nil, fmt.Errorf("%w: list devices: %v", ErrDeviceUnavailable, err)
		}
		devices = all
	} else {
		host, err := portaudio.DefaultHostApi()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		}
		fallback = host.DefaultInputDevice
	}
	dev, err := pickInput(devices, m.name, fallback)
	if err != nil {
		return nil, err
	}

	m.channels = 1
	if dev.MaxInputChannels >= 2 {
		m.channels = 2
	}
	params := portaudio.HighLatencyParameters(dev, nil)
	params.Input.Channels = m.channels
	params.SampleRate = float64(m.sampleRate)

	m.out = make(chan []float32, 16)
	stream, err := portaudio.OpenStream(params, m.process)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrDeviceUnavailable, dev.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("%w: start %s: %v", ErrDeviceUnavailable, dev.Name, err)
	}
	m.stream = stream
	m.log.Info("microphone started",
		zap.String("device", dev.Name),
		zap.Int("channels", m.channels),
		zap.Int("sample_rate", m.sampleRate))
	return m.out, nil
}

// Stop closes the stream, if one is open, and terminates portaudio.
func (m *Microphone) Stop() error {
	defer portaudio.Terminate()
	if m.stream == nil {
		return nil
	}
	err := m.stream.Close()
	m.stream = nil
	close(m.out)
	return err
}

func (m *Microphone) SampleRate() int {
	return m.sampleRate
}
