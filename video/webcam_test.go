package video

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/richinsley/goshaderjam/textures"
)

func TestInputFor(t *testing.T) {
	format, name, err := InputFor("linux", "")
	require.NoError(t, err)
	assert.Equal(t, "v4l2", format)
	assert.Equal(t, "/dev/video0", name)

	format, name, err = InputFor("darwin", "1")
	require.NoError(t, err)
	assert.Equal(t, "avfoundation", format)
	assert.Equal(t, "1", name)

	format, name, err = InputFor("windows", "USB Camera")
	require.NoError(t, err)
	assert.Equal(t, "dshow", format)
	assert.Equal(t, "video=USB Camera", name)

	_, _, err = InputFor("windows", "")
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
	_, _, err = InputFor("plan9", "")
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
}

func TestReadFramesPublishesWholeFrames(t *testing.T) {
	src := textures.NewSource("webcam")
	data := make([]byte, 2*2*3*2+5) // two frames and a partial one
	for i := range data {
		data[i] = byte(i)
	}

	n, err := ReadFrames(bytes.NewReader(data), 2, 2, src)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	f, ver := src.Latest()
	require.NotNil(t, f)
	assert.Equal(t, uint64(2), ver)
	assert.Equal(t, textures.RGB8, f.Format)
	assert.Equal(t, byte(12), f.Pix[0])
}

func TestRunRejectsBadSize(t *testing.T) {
	src := textures.NewSource("webcam")
	w := NewWebcam(Config{Width: 0, Height: 480}, src, zap.NewNop())
	err := w.Run(context.Background())
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
	f, _ := src.Latest()
	assert.Nil(t, f)
}

func TestRunMissingFFmpeg(t *testing.T) {
	src := textures.NewSource("webcam")
	w := NewWebcam(Config{Width: 4, Height: 4, Device: "cam", FFmpegPath: "/nonexistent/ffmpeg"}, src, zap.NewNop())
	err := w.Run(context.Background())
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
}
