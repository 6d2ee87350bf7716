package textures

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceNilUntilPublished(t *testing.T) {
	s := NewSource("webcam")
	f, ver := s.Latest()
	assert.Nil(t, f)
	assert.Zero(t, ver)

	var notified int
	s.Subscribe(func(*Frame) { notified++ })
	require.NoError(t, s.Publish(&Frame{Width: 2, Height: 1, Format: RGB8, Pix: make([]byte, 6)}))

	f, ver = s.Latest()
	require.NotNil(t, f)
	assert.Equal(t, uint64(1), ver)
	assert.Equal(t, 1, notified)
}

func TestPublishRejectsBadFrames(t *testing.T) {
	s := NewSource("audio")
	assert.Error(t, s.Publish(&Frame{Width: 512, Height: 2, Format: R8, Pix: make([]byte, 10)}))
	assert.Error(t, s.Publish(&Frame{Width: 0, Height: 2, Format: R8}))
	f, _ := s.Latest()
	assert.Nil(t, f)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, 1, R8.BytesPerPixel())
	assert.Equal(t, 3, RGB8.BytesPerPixel())
	assert.Equal(t, "r8", R8.String())
}
