package shader

import (
	"context"
	"fmt"
	"sync"

	gst "github.com/richinsley/goshadertranslator"
)

// CompileError carries the diagnostic text of a failed build. Stage is
// "translate", "vertex", "fragment" or "link".
type CompileError struct {
	Stage string
	Log   string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("shader %s failed: %s", e.Stage, e.Log)
}

// Translated is a fragment shader ready for the GL driver.
type Translated struct {
	Code string
	// Mapped maps declared uniform names to their names in Code.
	Mapped map[string]string
}

// Translator converts WebGL2 fragment source into desktop GLSL.
type Translator interface {
	Translate(source string) (*Translated, error)
}

type gstTranslator struct {
	mu sync.Mutex
	t  *gst.ShaderTranslator
}

var (
	sharedOnce       sync.Once
	sharedTranslator *gstTranslator
	sharedErr        error
)

// SharedTranslator returns the process wide goshadertranslator instance.
// Starting the wasm runtime is slow, so it is created once.
func SharedTranslator() (Translator, error) {
	sharedOnce.Do(func() {
		t, err := gst.NewShaderTranslator(context.Background())
		if err != nil {
			sharedErr = fmt.Errorf("failed to start shader translator: %w", err)
			return
		}
		sharedTranslator = &gstTranslator{t: t}
	})
	if sharedErr != nil {
		return nil, sharedErr
	}
	return sharedTranslator, nil
}

func (g *gstTranslator) Translate(source string) (*Translated, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fsShader, err := g.t.TranslateShader(source, "fragment", gst.ShaderSpecWebGL2, gst.OutputFormatGLSL410)
	if err != nil {
		return nil, err
	}
	mapped := make(map[string]string, len(fsShader.Variables))
	for name, v := range fsShader.Variables {
		mapped[name] = v.MappedName
	}
	return &Translated{Code: fsShader.Code, Mapped: mapped}, nil
}

// Builder turns user bodies into translated programs.
type Builder struct {
	translator Translator
}

func NewBuilder(t Translator) *Builder {
	return &Builder{translator: t}
}

// Build composes body and translates it. Any rejection, including use of
// symbols the preamble does not declare, comes back as a *CompileError.
func (b *Builder) Build(body string) (*Translated, error) {
	out, err := b.translator.Translate(Compose(body))
	if err != nil {
		return nil, &CompileError{Stage: "translate", Log: err.Error()}
	}
	return out, nil
}
