// Package workspace mirrors the registry into a directory of .glsl files and
// feeds edits to those files back into the registry, so panels can be
// live-coded from any editor.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

var panelFile = regexp.MustCompile(`^panel_(\d+)\.glsl$`)

// CaptionFile holds the generation prompt.
const CaptionFile = "caption.txt"

// FileName is the workspace file for the entry at index.
func FileName(index int) string {
	return fmt.Sprintf("panel_%02d.glsl", index)
}

// IndexOf parses a workspace file name.
func IndexOf(name string) (int, bool) {
	m := panelFile.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return 0, false
	}
	i, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return i, true
}

// Mirror writes one file per registry entry.
type Mirror struct {
	dir string
	log *zap.Logger

	mu      sync.Mutex
	written map[int]string
}

func NewMirror(dir string, log *zap.Logger) (*Mirror, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace %s: %w", dir, err)
	}
	return &Mirror{dir: dir, log: log, written: make(map[int]string)}, nil
}

func (m *Mirror) Dir() string { return m.dir }

// WriteCaption seeds CaptionFile unless it already exists. It returns the
// caption in effect.
func (m *Mirror) WriteCaption(caption string) (string, error) {
	path := filepath.Join(m.dir, CaptionFile)
	if data, err := os.ReadFile(path); err == nil {
		if existing := strings.TrimSpace(string(data)); existing != "" {
			return existing, nil
		}
	}
	if err := os.WriteFile(path, []byte(caption+"\n"), 0o644); err != nil {
		return caption, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return caption, nil
}

// Sync is a registry observer. Unchanged entries are not rewritten and files
// past the end of the registry are removed.
func (m *Mirror) Sync(sources []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, src := range sources {
		if prev, ok := m.written[i]; ok && prev == src {
			continue
		}
		path := filepath.Join(m.dir, FileName(i))
		if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
			m.log.Error("Failed to write workspace file", zap.String("path", path), zap.Error(err))
			continue
		}
		m.written[i] = src
	}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		m.log.Error("Failed to list workspace", zap.String("dir", m.dir), zap.Error(err))
		return
	}
	for _, e := range entries {
		i, ok := IndexOf(e.Name())
		if !ok || i < len(sources) {
			continue
		}
		if err := os.Remove(filepath.Join(m.dir, e.Name())); err != nil && !os.IsNotExist(err) {
			m.log.Warn("Failed to remove stale workspace file", zap.String("file", e.Name()), zap.Error(err))
		}
		delete(m.written, i)
	}
}

// Changed reports whether content differs from what Sync last wrote for index.
func (m *Mirror) Changed(index int, content string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.written[index]
	return !ok || prev != content
}

// Watcher reports external edits to workspace files.
type Watcher struct {
	log      *zap.Logger
	mirror   *Mirror
	watcher  *fsnotify.Watcher
	post     func(func())
	apply    func(index int, source string)
	debounce time.Duration

	// OnCaption, if set, receives edits to CaptionFile on the render thread.
	OnCaption func(caption string)
}

// NewWatcher calls apply on the render thread (through post) with the new
// content of each edited file.
func NewWatcher(mirror *Mirror, post func(func()), apply func(index int, source string), log *zap.Logger) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &Watcher{
		log:      log,
		mirror:   mirror,
		watcher:  watcher,
		post:     post,
		apply:    apply,
		debounce: 150 * time.Millisecond,
	}, nil
}

// Start watches the workspace until ctx ends.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.mirror.Dir()); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.mirror.Dir(), err)
	}
	w.log.Info("Watching workspace", zap.String("dir", w.mirror.Dir()))

	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C
	pending := make(map[int]string)
	captionEdited := false

	go func() {
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if filepath.Base(event.Name) == CaptionFile {
					captionEdited = true
					debounceTimer.Reset(w.debounce)
					continue
				}
				i, ok := IndexOf(event.Name)
				if !ok {
					continue
				}
				pending[i] = event.Name
				debounceTimer.Reset(w.debounce)

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.log.Error("Watcher error", zap.Error(err))

			case <-debounceTimer.C:
				for i, path := range pending {
					w.reload(i, path)
				}
				pending = make(map[int]string)
				if captionEdited {
					captionEdited = false
					w.reloadCaption()
				}

			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (w *Watcher) reload(index int, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			w.log.Warn("Failed to read workspace file", zap.String("path", path), zap.Error(err))
		}
		return
	}
	src := string(data)
	w.post(func() {
		if !w.mirror.Changed(index, src) {
			return
		}
		w.log.Info("Workspace edit", zap.String("file", filepath.Base(path)))
		w.apply(index, src)
	})
}

func (w *Watcher) reloadCaption() {
	if w.OnCaption == nil {
		return
	}
	data, err := os.ReadFile(filepath.Join(w.mirror.Dir(), CaptionFile))
	if err != nil {
		return
	}
	caption := strings.TrimSpace(string(data))
	if caption == "" {
		return
	}
	w.post(func() {
		w.log.Info("Caption edit", zap.String("caption", caption))
		w.OnCaption(caption)
	})
}

// Stop closes the underlying watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}
