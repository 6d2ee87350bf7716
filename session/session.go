// Package session reads and writes a registry snapshot as a JSON array of
// shader source strings.
package session

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MalformedError means the input was not a JSON array of strings.
type MalformedError struct {
	Err error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed session file: %v", e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// Encode writes sources as an indented JSON array.
func Encode(w io.Writer, sources []string) error {
	if sources == nil {
		sources = []string{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sources); err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return nil
}

// Decode reads a session. Anything other than an array of strings is a
// *MalformedError.
func Decode(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return nil, &MalformedError{Err: fmt.Errorf("expected a JSON array")}
	}
	var entries []*string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, &MalformedError{Err: err}
	}
	sources := make([]string, len(entries))
	for i, e := range entries {
		if e == nil {
			return nil, &MalformedError{Err: fmt.Errorf("entry %d is null", i)}
		}
		sources[i] = *e
	}
	return sources, nil
}

// Save writes the session to path, replacing it atomically.
func Save(path string, sources []string) error {
	var buf bytes.Buffer
	if err := Encode(&buf, sources); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".session-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp session file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to save session to %s: %w", path, err)
	}
	return nil
}

// Load reads the session at path.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}
