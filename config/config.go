// Package config loads runtime settings from flags, SHADERJAM_* environment
// variables and an optional config file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultCaption = "an infinite dream, ever changing and subtly evolving"
	DefaultBPM     = 135
	DefaultModel   = "gpt-4o"
	EnvPrefix      = "SHADERJAM"
)

// Config is the resolved configuration for one run.
type Config struct {
	Width       int
	Height      int
	FPS         int
	BPM         float64
	Caption     string
	Session     string
	Workspace   string
	MaxAhead    int
	MaxAttempts int

	Camera     string
	CameraSize string
	NoCamera   bool
	NoMic      bool
	MicDevice  string
	MIDI       bool
	FFmpegPath string

	Model          string
	OpenAIBaseURL  string
	OpenAIKey      string
	RequestTimeout time.Duration

	ShadertoyKey string
	Import       []string

	MetricsAddr string
	LogLevel    string
	Environment string
}

// RegisterFlags declares every setting on fs with its default.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to a config file (yaml, toml or json)")
	fs.Int("width", 480, "Panel window width")
	fs.Int("height", 270, "Panel window height")
	fs.Int("fps", 60, "Target frames per second")
	fs.Float64("bpm", DefaultBPM, "Initial tempo in beats per minute")
	fs.String("caption", DefaultCaption, "Prompt used when generating shaders")
	fs.String("session", "session.json", "Session file used by save (S) and load (L)")
	fs.String("workspace", "", "Directory mirroring each panel as an editable .glsl file")
	fs.Int("max-ahead", 5, "Number of panels generation tries to keep")
	fs.Int("max-attempts", 3, "Consecutive failed generations before top-up stops")
	fs.String("camera", "", "FFmpeg camera input (empty = platform default)")
	fs.String("camera-size", "640x480", "Camera capture size")
	fs.Bool("no-camera", false, "Disable the webcam texture (iChannel0)")
	fs.Bool("no-mic", false, "Disable the microphone texture (iChannel1)")
	fs.String("mic", "", "Microphone input name to match (empty = default input)")
	fs.Bool("midi", false, "Follow MIDI clock from the default MIDI input")
	fs.String("ffmpeg", "", "Path to the ffmpeg executable")
	fs.String("model", DefaultModel, "Chat model used for generation")
	fs.String("openai-base-url", "", "Override the OpenAI-compatible API base URL")
	fs.String("openai-key", "", "API key for generation (or OPENAI_API_KEY)")
	fs.Duration("request-timeout", 2*time.Minute, "Timeout for one generation request")
	fs.String("shadertoy-key", "", "Shadertoy API key (or SHADERTOY_KEY)")
	fs.StringSlice("import", nil, "Shadertoy shader IDs to append at startup")
	fs.String("metrics-addr", "", "Serve prometheus metrics on this address")
	fs.String("log-level", "info", "debug, info, warn or error")
	fs.String("environment", "development", "development (console logs) or production (JSON logs)")
}

// Load resolves the configuration. Flags win over the environment, which wins
// over the config file.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}
	if err := v.BindEnv("openai-key", EnvPrefix+"_OPENAI_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("shadertoy-key", EnvPrefix+"_SHADERTOY_KEY", "SHADERTOY_KEY"); err != nil {
		return nil, err
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := &Config{
		Width:          v.GetInt("width"),
		Height:         v.GetInt("height"),
		FPS:            v.GetInt("fps"),
		BPM:            v.GetFloat64("bpm"),
		Caption:        v.GetString("caption"),
		Session:        v.GetString("session"),
		Workspace:      v.GetString("workspace"),
		MaxAhead:       v.GetInt("max-ahead"),
		MaxAttempts:    v.GetInt("max-attempts"),
		Camera:         v.GetString("camera"),
		CameraSize:     v.GetString("camera-size"),
		NoCamera:       v.GetBool("no-camera"),
		NoMic:          v.GetBool("no-mic"),
		MicDevice:      v.GetString("mic"),
		MIDI:           v.GetBool("midi"),
		FFmpegPath:     v.GetString("ffmpeg"),
		Model:          v.GetString("model"),
		OpenAIBaseURL:  v.GetString("openai-base-url"),
		OpenAIKey:      v.GetString("openai-key"),
		RequestTimeout: v.GetDuration("request-timeout"),
		ShadertoyKey:   v.GetString("shadertoy-key"),
		Import:         v.GetStringSlice("import"),
		MetricsAddr:    v.GetString("metrics-addr"),
		LogLevel:       v.GetString("log-level"),
		Environment:    v.GetString("environment"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges that would otherwise fail deep inside the render loop.
func (c *Config) Validate() error {
	var errs []error
	if c.BPM <= 0 {
		errs = append(errs, fmt.Errorf("bpm must be positive, got %v", c.BPM))
	}
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("panel size must be positive, got %dx%d", c.Width, c.Height))
	}
	if c.FPS <= 0 {
		errs = append(errs, fmt.Errorf("fps must be positive, got %d", c.FPS))
	}
	if c.MaxAhead < 1 {
		errs = append(errs, fmt.Errorf("max-ahead must be at least 1, got %d", c.MaxAhead))
	}
	if c.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max-attempts must be at least 1, got %d", c.MaxAttempts))
	}
	if _, _, err := c.CameraDimensions(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// CameraDimensions parses CameraSize ("WxH").
func (c *Config) CameraDimensions() (width, height int, err error) {
	if _, err := fmt.Sscanf(c.CameraSize, "%dx%d", &width, &height); err != nil {
		return 0, 0, fmt.Errorf("invalid camera-size %q: %w", c.CameraSize, err)
	}
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("invalid camera-size %q", c.CameraSize)
	}
	return width, height, nil
}
