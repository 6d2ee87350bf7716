package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/richinsley/goshaderjam/audio"
)

type stubDevice struct {
	startErr error
	out      chan []float32
}

func (d *stubDevice) Start() (<-chan []float32, error) {
	if d.startErr != nil {
		return nil, d.startErr
	}
	d.out = make(chan []float32)
	return d.out, nil
}

func (d *stubDevice) Stop() error { return nil }

func (d *stubDevice) SampleRate() int { return 44100 }

func TestStartAudioWithoutDevice(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := startAudio(ctx, func() (audio.Device, error) {
		return nil, audio.ErrDeviceUnavailable
	}, zap.NewNop())
	assert.Nil(t, source)
}

func TestStartAudioDeviceFailsToStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := startAudio(ctx, func() (audio.Device, error) {
		return &stubDevice{startErr: audio.ErrDeviceUnavailable}, nil
	}, zap.NewNop())
	require.NotNil(t, source)
	assert.Never(t, func() bool {
		f, _ := source.Latest()
		return f != nil
	}, 100*time.Millisecond, 5*time.Millisecond)
}

func TestStartAudioPublishes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := startAudio(ctx, func() (audio.Device, error) {
		return &stubDevice{}, nil
	}, zap.NewNop())
	require.NotNil(t, source)
	assert.Eventually(t, func() bool {
		f, _ := source.Latest()
		return f != nil && f.Width == audio.TextureWidth
	}, time.Second, 5*time.Millisecond)
}
