// Package video captures webcam frames through an ffmpeg subprocess and
// publishes them as RGB texture frames.
package video

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strconv"

	ffmpeg "github.com/u2takey/ffmpeg-go"
	"go.uber.org/zap"

	"github.com/richinsley/goshaderjam/textures"
)

// ErrDeviceUnavailable means the camera could not be opened. The webcam
// texture then stays empty for the rest of the run.
var ErrDeviceUnavailable = errors.New("camera unavailable")

type Config struct {
	// Device is the platform specific device name. Empty selects a default.
	Device     string
	Width      int
	Height     int
	FPS        int
	FFmpegPath string
}

// Webcam owns one ffmpeg capture process.
type Webcam struct {
	cfg    Config
	source *textures.Source
	log    *zap.Logger
}

func NewWebcam(cfg Config, source *textures.Source, log *zap.Logger) *Webcam {
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	return &Webcam{cfg: cfg, source: source, log: log}
}

// InputFor returns the ffmpeg input format and device name for goos.
func InputFor(goos, device string) (format, name string, err error) {
	switch goos {
	case "linux":
		if device == "" {
			device = "/dev/video0"
		}
		return "v4l2", device, nil
	case "darwin":
		if device == "" {
			device = "0"
		}
		return "avfoundation", device, nil
	case "windows":
		if device == "" {
			return "", "", fmt.Errorf("%w: dshow needs a device name (ffmpeg -list_devices true -f dshow -i dummy)", ErrDeviceUnavailable)
		}
		return "dshow", "video=" + device, nil
	default:
		return "", "", fmt.Errorf("%w: unsupported OS %s", ErrDeviceUnavailable, goos)
	}
}

func (w *Webcam) stream(out io.Writer) (*ffmpeg.Stream, error) {
	format, name, err := InputFor(runtime.GOOS, w.cfg.Device)
	if err != nil {
		return nil, err
	}
	size := fmt.Sprintf("%dx%d", w.cfg.Width, w.cfg.Height)
	s := ffmpeg.Input(name, ffmpeg.KwArgs{
		"f":          format,
		"video_size": size,
		"framerate":  strconv.Itoa(w.cfg.FPS),
	}).Output("pipe:", ffmpeg.KwArgs{
		"f":       "rawvideo",
		"pix_fmt": "rgb24",
		"s":       size,
		// GL textures are addressed bottom-up
		"vf": "vflip",
	}).WithOutput(out)

	if w.cfg.FFmpegPath != "" {
		s = s.SetFfmpegPath(w.cfg.FFmpegPath)
	}
	return s, nil
}

// Run captures until ctx ends or ffmpeg exits. Failing before the first
// frame is reported as ErrDeviceUnavailable.
func (w *Webcam) Run(ctx context.Context) error {
	if w.cfg.Width <= 0 || w.cfg.Height <= 0 {
		return fmt.Errorf("%w: invalid capture size %dx%d", ErrDeviceUnavailable, w.cfg.Width, w.cfg.Height)
	}
	pipeReader, pipeWriter := io.Pipe()
	s, err := w.stream(pipeWriter)
	if err != nil {
		return err
	}

	cmd := s.Compile()
	w.log.Info("starting camera capture", zap.Strings("args", cmd.Args))
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	exited := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		pipeWriter.CloseWithError(io.EOF)
		exited <- err
	}()
	go func() {
		<-ctx.Done()
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
	}()

	frames, readErr := ReadFrames(pipeReader, w.cfg.Width, w.cfg.Height, w.source)
	pipeReader.Close()
	waitErr := <-exited

	if ctx.Err() != nil {
		return nil
	}
	if frames == 0 {
		return fmt.Errorf("%w: ffmpeg produced no frames: %v", ErrDeviceUnavailable, errors.Join(readErr, waitErr))
	}
	w.log.Info("camera capture ended", zap.Int("frames", frames), zap.NamedError("ffmpeg", waitErr))
	return readErr
}

// ReadFrames reads packed rgb24 frames of width x height from r and
// publishes each one. It returns the number of frames published. A clean end
// of stream is not an error.
func ReadFrames(r io.Reader, width, height int, source *textures.Source) (int, error) {
	frameSize := width * height * 3
	frames := 0
	for {
		buf := make([]byte, frameSize)
		if _, err := io.ReadFull(r, buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.ErrClosedPipe) {
				return frames, nil
			}
			return frames, fmt.Errorf("read frame: %w", err)
		}
		if err := source.Publish(&textures.Frame{Width: width, Height: height, Format: textures.RGB8, Pix: buf}); err != nil {
			return frames, err
		}
		frames++
	}
}
