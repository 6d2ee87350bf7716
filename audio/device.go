// Package audio turns microphone input into the spectrum/waveform texture
// bound as iChannel1.
//
// Capture uses portaudio:
//
//	macos:   brew install portaudio
//	debian:  sudo apt-get install portaudio19-dev
//	windows: pacman -S mingw-w64-x86_64-portaudio
package audio

import "errors"

// ErrDeviceUnavailable is returned when no capture device can be opened.
// The spectrum texture then stays empty for the rest of the run.
var ErrDeviceUnavailable = errors.New("audio device unavailable")

// Device delivers mono sample chunks.
type Device interface {
	// Start opens the device. Chunks arrive on the returned channel until
	// Stop closes it.
	Start() (<-chan []float32, error)
	// Stop releases the device. It is called once after Start, also when
	// Start failed.
	Stop() error
	SampleRate() int
}
