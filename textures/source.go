// Package textures carries live image data from capture producers to the
// render thread. Producers publish CPU frames; the renderer uploads them
// lazily and exposes a texture handle that stays empty until the first frame.
package textures

import (
	"fmt"

	"github.com/richinsley/goshaderjam/signal"
)

// Format describes the pixel layout of a Frame.
type Format int

const (
	// RGB8 is three bytes per pixel, rows bottom-up.
	RGB8 Format = iota
	// R8 is one byte per pixel, rows bottom-up.
	R8
)

// BytesPerPixel returns the pixel stride for f.
func (f Format) BytesPerPixel() int {
	switch f {
	case R8:
		return 1
	default:
		return 3
	}
}

func (f Format) String() string {
	switch f {
	case R8:
		return "r8"
	case RGB8:
		return "rgb8"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Frame is one immutable image. Producers must not modify Pix after Publish.
type Frame struct {
	Width  int
	Height int
	Format Format
	Pix    []byte
}

// Validate checks that Pix matches the declared size.
func (f *Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", f.Width, f.Height)
	}
	if want := f.Width * f.Height * f.Format.BytesPerPixel(); len(f.Pix) != want {
		return fmt.Errorf("frame %dx%d %s needs %d bytes, got %d", f.Width, f.Height, f.Format, want, len(f.Pix))
	}
	return nil
}

// Source is the producer side of a live texture.
type Source struct {
	name string
	cell *signal.Cell[*Frame]
}

// NewSource returns an empty source. Latest reports nil until the first
// Publish.
func NewSource(name string) *Source {
	return &Source{name: name, cell: signal.NewCell[*Frame](nil)}
}

// Name identifies the source in logs.
func (s *Source) Name() string { return s.name }

// Publish makes frame the current image.
func (s *Source) Publish(frame *Frame) error {
	if err := frame.Validate(); err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}
	s.cell.Set(frame)
	return nil
}

// Latest returns the current frame (possibly nil) and its version.
func (s *Source) Latest() (*Frame, uint64) {
	return s.cell.Load()
}

// Subscribe is notified on the producer goroutine after each Publish.
func (s *Source) Subscribe(fn func(*Frame)) (cancel func()) {
	return s.cell.Subscribe(fn)
}

// Handle is the consumer side: a texture that may not exist yet.
type Handle interface {
	// Texture returns the GPU texture name and whether it is ready.
	Texture() (id uint32, ok bool)
}
