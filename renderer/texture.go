package renderer

import (
	gl "github.com/go-gl/gl/v4.1-core/gl"

	"github.com/richinsley/goshaderjam/textures"
)

// LiveTexture mirrors a textures.Source into a GL texture. Sync uploads the
// newest frame; Texture reports nothing until the first upload.
type LiveTexture struct {
	source  *textures.Source
	id      uint32
	version uint64
	width   int
	height  int
	format  textures.Format
}

func NewLiveTexture(source *textures.Source) *LiveTexture {
	return &LiveTexture{source: source}
}

// Texture implements textures.Handle.
func (t *LiveTexture) Texture() (uint32, bool) {
	return t.id, t.id != 0
}

// Sync uploads a newer frame if there is one. A context of the shared group
// must be current. A size or format change allocates a new texture name.
func (t *LiveTexture) Sync() bool {
	frame, version := t.source.Latest()
	if frame == nil || version == t.version {
		return false
	}
	t.version = version

	internal, format := glFormat(frame.Format)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	if t.id == 0 || frame.Width != t.width || frame.Height != t.height || frame.Format != t.format {
		t.Destroy()
		gl.GenTextures(1, &t.id)
		gl.BindTexture(gl.TEXTURE_2D, t.id)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
		gl.TexImage2D(gl.TEXTURE_2D, 0, internal, int32(frame.Width), int32(frame.Height), 0, format, gl.UNSIGNED_BYTE, gl.Ptr(frame.Pix))
		t.width, t.height, t.format = frame.Width, frame.Height, frame.Format
	} else {
		gl.BindTexture(gl.TEXTURE_2D, t.id)
		gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(frame.Width), int32(frame.Height), format, gl.UNSIGNED_BYTE, gl.Ptr(frame.Pix))
	}
	gl.BindTexture(gl.TEXTURE_2D, 0)
	// other contexts of the group only see the upload once it is flushed
	gl.Flush()
	return true
}

func glFormat(f textures.Format) (internal int32, format uint32) {
	if f == textures.R8 {
		return gl.R8, gl.RED
	}
	return gl.RGB8, gl.RGB
}

// Destroy deletes the GL texture, if any.
func (t *LiveTexture) Destroy() {
	if t.id != 0 {
		gl.DeleteTextures(1, &t.id)
		t.id = 0
	}
}
