package generate

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Kind tells a one-source mutation from a two-source blend.
type Kind string

const (
	KindGenerate Kind = "generate"
	KindBlend    Kind = "blend"
)

// SystemPrompt is sent with every request.
const SystemPrompt = `
you are a webgl creative coding expert

you are adept in reading the sourcecode of a ShaderToy shader and explaining how it works, considering interesting modifications and applying them to the code. You may only use iChannel0 (webcam), iChannel1 (audio: row 0 spectrum, row 1 waveform), iTime, iResolution, iMouse and bpm.

when the code becomes too complex, factor out functions or remove functionality to keep the shader tight and focused. you are in charge.

when presented with shader code you respond with a modified version of the code in a single glsl fenced code block that is interesting and creative with no other output. you provide detailed comments in the code documenting your intentions.
`

// Request is one call to the code-transform service.
type Request struct {
	ID      uuid.UUID
	Kind    Kind
	Caption string
	Sources []string
}

func newRequest(kind Kind, caption string, sources ...string) Request {
	return Request{ID: uuid.New(), Kind: kind, Caption: caption, Sources: sources}
}

// Prompt renders the user message.
func (r Request) Prompt() string {
	var b strings.Builder
	switch r.Kind {
	case KindBlend:
		fmt.Fprintf(&b, "Blend these two shaders into one, based on the prompt:\n<prompt>%s</prompt>\n", r.Caption)
	default:
		fmt.Fprintf(&b, "Modify this shader based on the prompt:\n<prompt>%s</prompt>\n", r.Caption)
	}
	for _, src := range r.Sources {
		fmt.Fprintf(&b, "\n```glsl\n%s\n```\n", strings.TrimSpace(src))
	}
	return b.String()
}
