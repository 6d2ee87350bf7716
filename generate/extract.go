// Package generate asks a code-transform service for new panel shaders and
// appends the results to the registry.
package generate

import (
	"errors"
	"regexp"
)

// ErrNoCodeBlock means a response held no ```glsl fenced block.
var ErrNoCodeBlock = errors.New("response has no glsl code block")

var glslBlock = regexp.MustCompile("```glsl\\n([\\s\\S]+?)```")

// Extract returns the body of the first ```glsl block in text.
func Extract(text string) (string, error) {
	m := glslBlock.FindStringSubmatch(text)
	if m == nil {
		return "", ErrNoCodeBlock
	}
	return m[1], nil
}
