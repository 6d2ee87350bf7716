package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/richinsley/goshaderjam/registry"
	"github.com/richinsley/goshaderjam/scheduler"
)

func TestFileNames(t *testing.T) {
	assert.Equal(t, "panel_03.glsl", FileName(3))
	assert.Equal(t, "panel_120.glsl", FileName(120))

	i, ok := IndexOf("/tmp/ws/panel_07.glsl")
	assert.True(t, ok)
	assert.Equal(t, 7, i)
	_, ok = IndexOf("panel_07.glsl.swp")
	assert.False(t, ok)
	_, ok = IndexOf("notes.txt")
	assert.False(t, ok)
}

func readFile(t *testing.T, dir, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(b)
}

func TestMirrorFollowsRegistry(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ws")
	m, err := NewMirror(dir, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0o644))

	reg := registry.New("a", "b", "c")
	reg.Subscribe(m.Sync)
	assert.Equal(t, "b", readFile(t, dir, "panel_01.glsl"))

	require.NoError(t, reg.RemoveAt(0))
	assert.Equal(t, "b", readFile(t, dir, "panel_00.glsl"))
	assert.Equal(t, "c", readFile(t, dir, "panel_01.glsl"))
	_, err = os.Stat(filepath.Join(dir, "panel_02.glsl"))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, "keep", readFile(t, dir, "notes.txt"))

	assert.False(t, m.Changed(1, "c"))
	assert.True(t, m.Changed(1, "c edited"))
	assert.True(t, m.Changed(5, "anything"))
}

func TestWatcherAppliesExternalEdits(t *testing.T) {
	dir := t.TempDir()
	m, err := NewMirror(dir, zap.NewNop())
	require.NoError(t, err)
	reg := registry.New("a", "b")
	reg.Subscribe(m.Sync)

	q := scheduler.NewQueue(nil)
	var applied []string
	w, err := NewWatcher(m, q.Post, func(i int, src string) {
		applied = append(applied, src)
		require.NoError(t, reg.ReplaceAt(i, src))
	}, zap.NewNop())
	require.NoError(t, err)
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName(1)), []byte("b edited"), 0o644))

	deadline := time.Now().Add(3 * time.Second)
	for len(applied) == 0 && time.Now().Before(deadline) {
		q.Drain()
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, []string{"b edited"}, applied)
	assert.Equal(t, []string{"a", "b edited"}, reg.Snapshot())

	// the mirror's own writes do not come back as edits
	reg.Append("c")
	time.Sleep(100 * time.Millisecond)
	q.Drain()
	assert.Len(t, applied, 1)
}

func TestWriteCaptionKeepsExisting(t *testing.T) {
	dir := t.TempDir()
	m, err := NewMirror(dir, zap.NewNop())
	require.NoError(t, err)

	got, err := m.WriteCaption("neon rain")
	require.NoError(t, err)
	assert.Equal(t, "neon rain", got)
	assert.Equal(t, "neon rain\n", readFile(t, dir, CaptionFile))

	got, err = m.WriteCaption("something else")
	require.NoError(t, err)
	assert.Equal(t, "neon rain", got)
}

func TestWatcherAppliesCaptionEdits(t *testing.T) {
	dir := t.TempDir()
	m, err := NewMirror(dir, zap.NewNop())
	require.NoError(t, err)

	q := scheduler.NewQueue(nil)
	w, err := NewWatcher(m, q.Post, func(int, string) {}, zap.NewNop())
	require.NoError(t, err)
	w.debounce = 20 * time.Millisecond
	var captions []string
	w.OnCaption = func(c string) { captions = append(captions, c) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, CaptionFile), []byte("  slow tides \n"), 0o644))

	deadline := time.Now().Add(3 * time.Second)
	for len(captions) == 0 && time.Now().Before(deadline) {
		q.Drain()
		time.Sleep(5 * time.Millisecond)
	}
	require.NotEmpty(t, captions)
	assert.Equal(t, "slow tides", captions[len(captions)-1])
}
